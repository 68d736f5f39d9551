// Package speech — клиент сервиса синтеза речи.
//
// Сервис принимает текст и возвращает WAV-аудио. API совместим
// с /v1/audio/speech: JSON-запрос, бинарный ответ.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultTimeout = 60 * time.Second

// Config — конфигурация клиента.
type Config struct {
	// BaseURL — адрес сервиса синтеза, без завершающего /.
	BaseURL string

	// APIKey — Bearer-токен. Пустой — заголовок не выставляется.
	APIKey string

	// Model и Voice — параметры синтеза.
	Model string
	Voice string

	// Timeout — таймаут одного запроса. 0 — значение по умолчанию.
	Timeout time.Duration
}

// Client — HTTP-клиент синтеза речи.
type Client struct {
	cfg  Config
	http *http.Client
}

// New создаёт клиента.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Model == "" {
		cfg.Model = "tts-1"
	}
	if cfg.Voice == "" {
		cfg.Voice = "alloy"
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// NewFromEnv собирает клиента по переменным окружения:
// SPEECH_URL (обязательна), SPEECH_API_KEY, SPEECH_MODEL, SPEECH_VOICE.
// Пустой SPEECH_URL означает, что синтез отключён: возвращается nil.
func NewFromEnv() *Client {
	base := os.Getenv("SPEECH_URL")
	if base == "" {
		return nil
	}
	return New(Config{
		BaseURL: base,
		APIKey:  os.Getenv("SPEECH_API_KEY"),
		Model:   os.Getenv("SPEECH_MODEL"),
		Voice:   os.Getenv("SPEECH_VOICE"),
	})
}

type synthesizeRequest struct {
	Model          string `json:"model"`
	Input          string `json:"input"`
	Voice          string `json:"voice"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize превращает текст в WAV-аудио.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesizeRequest{
		Model:          c.cfg.Model,
		Input:          text,
		Voice:          c.cfg.Voice,
		ResponseFormat: "wav",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("synthesize: HTTP %d: %s", resp.StatusCode, truncate(string(data), 200))
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("synthesize: empty audio response")
	}

	return data, nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
