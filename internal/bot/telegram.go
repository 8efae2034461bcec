package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tg_certbot/internal/format"

	"github.com/sirupsen/logrus"
)

// Client talks to the Telegram Bot API over plain HTTP
type Client struct {
	apiBase string
	token   string
	http    *http.Client
}

// NewClient builds a Bot API client. apiBase is normally
// https://api.telegram.org and only overridden in tests or behind proxies.
func NewClient(apiBase, token string) *Client {
	return &Client{
		apiBase: apiBase,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage sends an HTML message with an optional inline keyboard
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, keyboard format.Keyboard) error {
	payload := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	}
	if len(keyboard) > 0 {
		payload["reply_markup"] = map[string]interface{}{
			"inline_keyboard": keyboard,
		}
	}
	return c.call(ctx, "sendMessage", payload)
}

// AnswerCallback acknowledges a callback query, optionally with a toast text
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]interface{}{
		"callback_query_id": callbackID,
	}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload)
}

func (c *Client) call(ctx context.Context, method string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !apiResp.OK {
		logrus.WithFields(logrus.Fields{
			"method": method,
			"status": resp.StatusCode,
		}).Warn("telegram api rejected request: " + apiResp.Description)
		return fmt.Errorf("telegram %s: %s", method, apiResp.Description)
	}
	return nil
}
