package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20

	ParseModeHTML = "HTML"
)

// APIError is a non-success Bot API reply or HTTP status.
type APIError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s: status %d code %d: %s", e.Method, e.StatusCode, e.ErrorCode, e.Description)
}

// Client is a minimal Bot API client. Every call is bounded by Timeout
// unless the context already carries an earlier deadline.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
	timeout time.Duration
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func New(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		http:    &http.Client{},
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type envelope struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: %s: encode: %w", method, err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error text carries the token
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("telegram: %s: read: %w", method, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Method: method, StatusCode: resp.StatusCode, Description: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode != http.StatusOK || !env.OK {
		return &APIError{Method: method, StatusCode: resp.StatusCode, ErrorCode: env.ErrorCode, Description: env.Description}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("telegram: %s: decode result: %w", method, err)
	}
	return nil
}

func (c *Client) SendText(ctx context.Context, chatID, text, parseMode string) (*Message, error) {
	payload := map[string]any{
		"chat_id":                  chatID,
		"text":                     text,
		"disable_web_page_preview": false,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	var m Message
	if err := c.call(ctx, "sendMessage", payload, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string) (*Message, error) {
	var m Message
	err := c.call(ctx, "sendPhoto", map[string]any{
		"chat_id":    chatID,
		"photo":      photoURL,
		"caption":    caption,
		"parse_mode": ParseModeHTML,
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) SendVideo(ctx context.Context, chatID, videoURL, caption string) (*Message, error) {
	var m Message
	err := c.call(ctx, "sendVideo", map[string]any{
		"chat_id":    chatID,
		"video":      videoURL,
		"caption":    caption,
		"parse_mode": ParseModeHTML,
	}, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) DeleteMessage(ctx context.Context, chatID string, messageID int64) error {
	var ok bool
	if err := c.call(ctx, "deleteMessage", map[string]any{"chat_id": chatID, "message_id": messageID}, &ok); err != nil {
		return err
	}
	if !ok {
		return &APIError{Method: "deleteMessage", StatusCode: http.StatusOK, Description: "message was not deleted"}
	}
	return nil
}

// GetChat returns chat details. The member count is filled best effort.
func (c *Client) GetChat(ctx context.Context, chatID string) (*ChatInfo, error) {
	var info ChatInfo
	if err := c.call(ctx, "getChat", map[string]any{"chat_id": chatID}, &info); err != nil {
		return nil, err
	}
	var count int
	if err := c.call(ctx, "getChatMemberCount", map[string]any{"chat_id": chatID}, &count); err == nil {
		info.MemberCount = count
	}
	return &info, nil
}

func (c *Client) GetMe(ctx context.Context) (*User, error) {
	var u User
	if err := c.call(ctx, "getMe", map[string]any{}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) SetWebhook(ctx context.Context, webhookURL string) error {
	return c.call(ctx, "setWebhook", map[string]any{"url": webhookURL}, nil)
}
