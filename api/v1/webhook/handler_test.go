package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tg_certbot/internal/bot"

	"github.com/gin-gonic/gin"
)

type captureSink struct {
	updates []*bot.Update
}

func (c *captureSink) HandleUpdate(ctx context.Context, u *bot.Update) {
	c.updates = append(c.updates, u)
}

func newTestRouter(sink *captureSink, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook/telegram", NewHandler(sink, secret).Telegram)
	return r
}

const updateJSON = `{"update_id":42,"message":{"message_id":1,"from":{"id":100,"username":"alice"},"chat":{"id":100},"text":"/start"}}`

func TestWebhookAcceptsUpdate(t *testing.T) {
	sink := &captureSink{}
	r := newTestRouter(sink, "")

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(updateJSON))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(sink.updates) != 1 || sink.updates[0].UpdateID != 42 {
		t.Fatalf("update not dispatched: %+v", sink.updates)
	}
	if sink.updates[0].Message == nil || sink.updates[0].Message.Text != "/start" {
		t.Errorf("message payload lost: %+v", sink.updates[0].Message)
	}
}

func TestWebhookSecretCheck(t *testing.T) {
	sink := &captureSink{}
	r := newTestRouter(sink, "s3cret")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong secret", "nope", http.StatusUnauthorized},
		{"correct secret", "s3cret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader(updateJSON))
			req.Header.Set("Content-Type", "application/json")
			if tt.header != "" {
				req.Header.Set("X-Telegram-Bot-Api-Secret-Token", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}

	if len(sink.updates) != 1 {
		t.Errorf("dispatched updates = %d, want 1 (only the authorized request)", len(sink.updates))
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	sink := &captureSink{}
	r := newTestRouter(sink, "")

	req := httptest.NewRequest(http.MethodPost, "/webhook/telegram", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if len(sink.updates) != 0 {
		t.Error("malformed body must not be dispatched")
	}
}
