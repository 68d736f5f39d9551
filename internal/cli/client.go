package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ReminderResponse — напоминание из API.
type ReminderResponse struct {
	ID          string `json:"id"`
	ChannelID   string `json:"channel_id"`
	Title       string `json:"title"`
	ScheduledAt string `json:"scheduled_at"`
	LeadTimeSec int64  `json:"lead_time_sec"`
	Delivered   bool   `json:"delivered"`
	CreatedAt   string `json:"created_at"`
}

// AttemptResponse — исход доставки из API.
type AttemptResponse struct {
	ID         string `json:"id"`
	ReminderID string `json:"reminder_id"`
	Kind       string `json:"kind"`
	Outcome    string `json:"outcome"`
	Attempts   int    `json:"attempts"`
	Error      string `json:"error,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// --- Request types ---

// CreateReminderRequest — создание напоминания.
type CreateReminderRequest struct {
	ChannelID      string `json:"channel_id"`
	Title          string `json:"title"`
	TimeExpression string `json:"time_expression"`
	LeadTimeSec    int64  `json:"lead_time_sec,omitempty"`
}

// UpdateReminderRequest — правка напоминания.
type UpdateReminderRequest struct {
	NewTitle          *string `json:"new_title,omitempty"`
	NewTimeExpression *string `json:"new_time_expression,omitempty"`
	NewLeadTimeSec    *int64  `json:"new_lead_time_sec,omitempty"`
}

// ListRemindersOpts — параметры фильтрации напоминаний.
type ListRemindersOpts struct {
	ChannelID string
	Pending   string // "", "true" или "false"
	Limit     int
	Offset    int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Ringer API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Reminders ---

// ListReminders возвращает напоминания с фильтрацией.
func (c *Client) ListReminders(opts ListRemindersOpts) ([]ReminderResponse, error) {
	params := url.Values{}
	if opts.ChannelID != "" {
		params.Set("channel_id", opts.ChannelID)
	}
	if opts.Pending != "" {
		params.Set("pending", opts.Pending)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}
	if opts.Offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", opts.Offset))
	}

	var reminders []ReminderResponse
	err := c.list("/api/v1/reminders", params, &reminders)
	return reminders, err
}

// CreateReminder создаёт новое напоминание.
func (c *Client) CreateReminder(req CreateReminderRequest) (*ReminderResponse, error) {
	var rem ReminderResponse
	err := c.post("/api/v1/reminders", req, &rem)
	return &rem, err
}

// GetReminder возвращает напоминание по ID.
func (c *Client) GetReminder(id string) (*ReminderResponse, error) {
	var rem ReminderResponse
	err := c.get("/api/v1/reminders/"+id, &rem)
	return &rem, err
}

// UpdateReminder правит напоминание.
func (c *Client) UpdateReminder(id string, req UpdateReminderRequest) (*ReminderResponse, error) {
	var rem ReminderResponse
	err := c.put("/api/v1/reminders/"+id, req, &rem)
	return &rem, err
}

// ListAttempts возвращает журнал исходов доставки.
func (c *Client) ListAttempts(reminderID string) ([]AttemptResponse, error) {
	var attempts []AttemptResponse
	err := c.list("/api/v1/reminders/"+reminderID+"/attempts", nil, &attempts)
	return attempts, err
}

// DeliverReminder ставит немедленную ручную доставку.
func (c *Client) DeliverReminder(id string) (*ReminderResponse, error) {
	var rem ReminderResponse
	err := c.post("/api/v1/reminders/"+id+"/deliver", nil, &rem)
	return &rem, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
