package timeexpr

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// Опорное время для тестов: 2025-06-10 14:00 в Africa/Lagos (UTC+1).
func testNow(t *testing.T) (time.Time, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("Africa/Lagos")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return time.Date(2025, 6, 10, 14, 0, 0, 0, loc), loc
}

func TestParse_ISO_WithOffset(t *testing.T) {
	now, loc := testNow(t)

	got, err := Parse("2025-06-11T09:30:00+01:00", now, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := time.Date(2025, 6, 11, 8, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got.Location() != time.UTC {
		t.Errorf("result should be normalized to UTC, got %v", got.Location())
	}
}

func TestParse_ISO_Offsetless(t *testing.T) {
	now, loc := testNow(t)

	// Без офсета — интерпретируется в зоне по умолчанию (UTC+1)
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2025-06-11T09:30:00", time.Date(2025, 6, 11, 8, 30, 0, 0, time.UTC)},
		{"2025-06-11 09:30:00", time.Date(2025, 6, 11, 8, 30, 0, 0, time.UTC)},
		{"2025-06-11 09:30", time.Date(2025, 6, 11, 8, 30, 0, 0, time.UTC)},
		{"2025-06-11", time.Date(2025, 6, 10, 23, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input, now, loc)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Parse(%q): expected %v, got %v", tt.input, tt.want, got)
		}
	}
}

func TestParse_Relative(t *testing.T) {
	now, loc := testNow(t)

	tests := []struct {
		input string
		want  time.Duration
	}{
		{"in 2 hours", 2 * time.Hour},
		{"in 1 hour", time.Hour},
		{"IN 45 MINUTES", 45 * time.Minute},
		{"in 1 minute", time.Minute},
		{"in 3 days", 72 * time.Hour},
		{"in 1 day", 24 * time.Hour},
		{"  in 20 minutes  ", 20 * time.Minute},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input, now, loc)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", tt.input, err)
			continue
		}
		want := now.Add(tt.want).UTC()
		if !got.Equal(want) {
			t.Errorf("Parse(%q): expected %v, got %v", tt.input, want, got)
		}
	}
}

func TestParse_Relative_Horizon(t *testing.T) {
	now, loc := testNow(t)

	// Граница горизонта (сто лет) ещё разбирается.
	got, err := Parse("in 876000 hours", now, loc)
	if err != nil {
		t.Fatalf("unexpected error at horizon boundary: %v", err)
	}
	if !got.After(now) {
		t.Errorf("expected future instant, got %v", got)
	}

	// Сразу за границей — отказ, а не переполнение в прошлое.
	for _, input := range []string{"in 876001 hours", "in 52560001 minutes", "in 36501 days"} {
		if _, err := Parse(input, now, loc); err == nil {
			t.Errorf("Parse(%q): expected error beyond horizon, got nil", input)
		}
	}
}

func TestParse_WallClock(t *testing.T) {
	now, loc := testNow(t) // 14:00 локального времени

	tests := []struct {
		input string
		want  time.Time // локальное время в loc
	}{
		// 15:00 ещё впереди — сегодня
		{"at 3 PM", time.Date(2025, 6, 10, 15, 0, 0, 0, loc)},
		{"at 3:00 pm", time.Date(2025, 6, 10, 15, 0, 0, 0, loc)},
		{"at 15:00", time.Date(2025, 6, 10, 15, 0, 0, 0, loc)},
		{"AT 3:30 PM", time.Date(2025, 6, 10, 15, 30, 0, 0, loc)},
		// 13:00 уже прошло — завтра
		{"at 1:00 pm", time.Date(2025, 6, 11, 13, 0, 0, 0, loc)},
		{"at 9:15 am", time.Date(2025, 6, 11, 9, 15, 0, 0, loc)},
		// полночь и полдень
		{"at 12:00 am", time.Date(2025, 6, 11, 0, 0, 0, 0, loc)},
		{"at 12:00 pm", time.Date(2025, 6, 11, 12, 0, 0, 0, loc)},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input, now, loc)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Parse(%q): expected %v, got %v", tt.input, tt.want.UTC(), got)
		}
	}
}

func TestParse_Unrecognized(t *testing.T) {
	now, loc := testNow(t)

	inputs := []string{
		"",
		"tomorrow-ish",
		"in five minutes", // число словами не поддерживается
		"in 5 weeks",      // неизвестная единица
		"at 25:00",        // невалидный час
		"at 13:00 pm",     // 13 в 12-часовой записи
		"at 10:75",        // невалидные минуты
		"next tuesday",
		"in 9999999999 hours", // за горизонтом: произведение переполнило бы Duration
	}

	for _, input := range inputs {
		_, err := Parse(input, now, loc)
		if err == nil {
			t.Errorf("Parse(%q): expected error, got nil", input)
			continue
		}

		var unrec *UnrecognizedError
		if !errors.As(err, &unrec) {
			t.Errorf("Parse(%q): expected UnrecognizedError, got %T", input, err)
			continue
		}
		if unrec.Input != input {
			t.Errorf("Parse(%q): error should carry original input, got %q", input, unrec.Input)
		}
		if !strings.Contains(err.Error(), "unrecognized time expression") {
			t.Errorf("Parse(%q): unexpected error text: %v", input, err)
		}
	}
}

func TestParse_NilLocationDefaultsToUTC(t *testing.T) {
	now := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)

	got, err := Parse("2025-06-11 09:30", now, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2025, 6, 11, 9, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestLocation(t *testing.T) {
	loc, err := Location("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc != time.UTC {
		t.Error("empty name should mean UTC")
	}

	loc, err = Location("Africa/Lagos")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.String() != "Africa/Lagos" {
		t.Errorf("expected Africa/Lagos, got %s", loc)
	}

	if _, err := Location("Nowhere/Invalid"); err == nil {
		t.Error("expected error for invalid timezone")
	}
}
