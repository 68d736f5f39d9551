// Package callout — клиент телефонии для голосовой доставки.
//
// API совместим с Twilio Calls: form-encoded POST, basic auth по
// account SID и токену. Сервис телефонии сам забирает TwiML с
// voice-endpoint-а, переданного в Url.
package callout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 30 * time.Second

// Config — конфигурация клиента.
type Config struct {
	// APIBase — адрес API телефонии, без завершающего /.
	APIBase string

	// AccountSID и AuthToken — basic auth.
	AccountSID string
	AuthToken  string

	// From — номер, с которого идут звонки (E.164).
	From string

	// VoiceBase — базовый URL voice-endpoint-а; к нему добавляется
	// /<reminder_id>/, и телефония забирает оттуда инструкции звонка.
	VoiceBase string

	// Timeout — таймаут одного запроса. 0 — значение по умолчанию.
	Timeout time.Duration
}

// Client — HTTP-клиент телефонии.
type Client struct {
	cfg  Config
	http *http.Client
}

// New создаёт клиента.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// NewFromEnv собирает клиента по переменным окружения:
// CALLOUT_API, CALLOUT_ACCOUNT_SID, CALLOUT_AUTH_TOKEN, CALLOUT_FROM,
// CALLOUT_VOICE_BASE. Пустой CALLOUT_API означает, что телефония
// отключена: возвращается nil.
func NewFromEnv() *Client {
	api := os.Getenv("CALLOUT_API")
	if api == "" {
		return nil
	}
	return New(Config{
		APIBase:    api,
		AccountSID: os.Getenv("CALLOUT_ACCOUNT_SID"),
		AuthToken:  os.Getenv("CALLOUT_AUTH_TOKEN"),
		From:       os.Getenv("CALLOUT_FROM"),
		VoiceBase:  os.Getenv("CALLOUT_VOICE_BASE"),
	})
}

// Receipt — подтверждение принятого звонка.
type Receipt struct {
	// SID — идентификатор звонка на стороне телефонии.
	SID string `json:"sid"`
}

// PlaceCall инициирует звонок на channelID для напоминания reminderID.
func (c *Client) PlaceCall(ctx context.Context, reminderID uuid.UUID, channelID string) (*Receipt, error) {
	form := url.Values{}
	form.Set("To", channelID)
	form.Set("From", c.cfg.From)
	form.Set("Url", strings.TrimRight(c.cfg.VoiceBase, "/")+"/"+reminderID.String()+"/")

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", c.cfg.APIBase, c.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("place call: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("place call: HTTP %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var receipt Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}
	return &receipt, nil
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
