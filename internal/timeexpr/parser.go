// Package timeexpr превращает свободную форму времени в абсолютный
// момент в UTC.
//
// Поддерживаемые грамматики, в порядке применения:
//  1. ISO-8601 / RFC3339, с офсетом или без. Без офсета время
//     интерпретируется в переданной зоне.
//  2. Относительная: "in <N> (hour|hours|minute|minutes|day|days)".
//  3. Настенные часы: "at <H>[:<MM>][ am|pm]" — ближайшее будущее
//     наступление этого локального времени (сегодня или завтра).
//
// Парсер чистый: текущее время и зона по умолчанию передаются явно,
// никаких глобалов — это делает его детерминированным в тестах.
package timeexpr

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// UnrecognizedError — выражение не подошло ни под одну грамматику.
// Несёт исходную строку: API возвращает её пользователю дословно.
type UnrecognizedError struct {
	Input string
}

func (e *UnrecognizedError) Error() string {
	return fmt.Sprintf("unrecognized time expression: %q", e.Input)
}

// Офсетless-форматы, интерпретируемые в зоне по умолчанию.
var isoLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

var (
	relativeRe  = regexp.MustCompile(`(?i)^in\s+(\d+)\s+(hour|hours|minute|minutes|day|days)$`)
	wallClockRe = regexp.MustCompile(`(?i)^at\s+(\d{1,2})(?::(\d{2}))?(?:\s*(am|pm))?$`)
)

// maxRelative ограничивает относительные выражения: дальше ста лет —
// опечатка, а произведение N на unit переполнило бы Duration
// и дало бы момент в прошлом.
const maxRelative = 100 * 365 * 24 * time.Hour

// Parse разбирает выражение и возвращает момент в UTC.
//
// now — опорное время для относительных и настенных выражений.
// loc — зона по умолчанию для офсетless дат и настенных часов;
// nil означает UTC.
func Parse(input string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}

	expr := strings.TrimSpace(input)
	if expr == "" {
		return time.Time{}, &UnrecognizedError{Input: input}
	}

	// 1. ISO-8601 с офсетом
	if t, err := time.Parse(time.RFC3339, expr); err == nil {
		return t.UTC(), nil
	}

	// 1a. ISO-8601 без офсета — в зоне по умолчанию
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, expr, loc); err == nil {
			return t.UTC(), nil
		}
	}

	// 2. Относительная форма
	if m := relativeRe.FindStringSubmatch(expr); m != nil {
		return parseRelative(m, now, input)
	}

	// 3. Настенные часы
	if m := wallClockRe.FindStringSubmatch(expr); m != nil {
		return parseWallClock(m, now, loc, input)
	}

	return time.Time{}, &UnrecognizedError{Input: input}
}

func parseRelative(m []string, now time.Time, input string) (time.Time, error) {
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, &UnrecognizedError{Input: input}
	}

	var unit time.Duration
	switch strings.ToLower(m[2]) {
	case "hour", "hours":
		unit = time.Hour
	case "minute", "minutes":
		unit = time.Minute
	case "day", "days":
		unit = 24 * time.Hour
	default:
		return time.Time{}, &UnrecognizedError{Input: input}
	}

	if int64(n) > int64(maxRelative/unit) {
		return time.Time{}, &UnrecognizedError{Input: input}
	}

	return now.Add(time.Duration(n) * unit).UTC(), nil
}

func parseWallClock(m []string, now time.Time, loc *time.Location, input string) (time.Time, error) {
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, &UnrecognizedError{Input: input}
	}
	// Минуты опциональны: "at 3 pm" означает 15:00.
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return time.Time{}, &UnrecognizedError{Input: input}
		}
	}

	switch strings.ToLower(m[3]) {
	case "am":
		if hour < 1 || hour > 12 {
			return time.Time{}, &UnrecognizedError{Input: input}
		}
		if hour == 12 {
			hour = 0
		}
	case "pm":
		if hour < 1 || hour > 12 {
			return time.Time{}, &UnrecognizedError{Input: input}
		}
		if hour != 12 {
			hour += 12
		}
	default:
		// 24-часовая запись
		if hour > 23 {
			return time.Time{}, &UnrecognizedError{Input: input}
		}
	}

	local := now.In(loc)
	candidate := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !candidate.After(local) {
		// Сегодняшнее время уже прошло — завтра.
		// Пересобираем дату вместо Add(24h): так корректно при переходе DST.
		candidate = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}

	return candidate.UTC(), nil
}

// Location загружает именованную зону; пустое имя означает UTC.
// Используется при чтении конфигурации сервисов.
func Location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
