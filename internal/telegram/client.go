package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MaxMessageRunes is Telegram's limit for a single text message.
const MaxMessageRunes = 4096

// ErrAPI is returned when Telegram answers with ok=false.
var ErrAPI = errors.New("telegram api error")

// Client is a small Telegram Bot API client covering what the relay needs.
type Client struct {
	apiBase    string
	httpClient *http.Client
}

// NewClient creates a client for the given bot API root
// (e.g. "https://api.telegram.org/bot<token>").
func NewClient(apiBase string, requestTimeout time.Duration) *Client {
	return &Client{
		apiBase: apiBase,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// SendMessage delivers text to a chat, splitting it into several messages
// when it exceeds Telegram's length limit.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitText(text, MaxMessageRunes) {
		payload := map[string]any{
			"chat_id": chatID,
			"text":    part,
		}
		if err := c.call(ctx, "sendMessage", payload, nil); err != nil {
			return err
		}
	}
	return nil
}

// SetWebhook points Telegram at url. A non-empty secret is echoed back by
// Telegram in the X-Telegram-Bot-Api-Secret-Token header of each delivery.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	payload := map[string]any{
		"url":             url,
		"allowed_updates": []string{"message"},
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

// DeleteWebhook removes the webhook registration.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	return c.call(ctx, "deleteWebhook", map[string]any{"drop_pending_updates": dropPending}, nil)
}

// GetWebhookInfo reports the current webhook registration.
func (c *Client) GetWebhookInfo(ctx context.Context) (WebhookInfo, error) {
	var info WebhookInfo
	if err := c.call(ctx, "getWebhookInfo", nil, &info); err != nil {
		return WebhookInfo{}, err
	}
	return info, nil
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	var body io.Reader
	httpMethod := http.MethodGet
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrapf(err, "telegram %s: encode request", method)
		}
		body = bytes.NewReader(encoded)
		httpMethod = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, httpMethod, c.apiBase+"/"+method, body)
	if err != nil {
		return errors.Wrapf(err, "telegram %s: build request", method)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "telegram %s request failed", method)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "telegram %s: read response", method)
	}

	var envelope apiResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return errors.Wrapf(err, "telegram %s: parse response (status %d): %s", method, resp.StatusCode, truncate(string(raw), 400))
	}
	if !envelope.OK {
		log.Warn().Str("method", method).Int("code", envelope.ErrorCode).Str("description", envelope.Description).Msg("telegram rejected request")
		return errors.Wrapf(ErrAPI, "%s: %d %s", method, envelope.ErrorCode, envelope.Description)
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return errors.Wrapf(err, "telegram %s: parse result", method)
		}
	}
	return nil
}

// splitText cuts s into chunks of at most maxRunes runes, preferring to break
// after a newline in the second half of a chunk.
func splitText(s string, maxRunes int) []string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return []string{s}
	}

	var parts []string
	for len(runes) > maxRunes {
		cut := maxRunes
		for i := maxRunes - 1; i >= maxRunes/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
