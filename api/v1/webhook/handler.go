package webhook

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tg_certbot/internal/bot"
	"tg_certbot/internal/httpx"
)

// UpdateSink consumes decoded updates, satisfied by *bot.Handler
type UpdateSink interface {
	HandleUpdate(ctx context.Context, u *bot.Update)
}

// Handler receives Telegram webhook calls and feeds them to the bot router
type Handler struct {
	bot    UpdateSink
	secret string
}

// NewHandler creates the webhook handler. An empty secret disables the
// header check (polling setups, local testing).
func NewHandler(botHandler UpdateSink, secret string) *Handler {
	return &Handler{bot: botHandler, secret: secret}
}

// Telegram handles POST /webhook/telegram. It always answers 200 once the
// update is accepted; processing failures are reported to the chat, not to
// Telegram, which would otherwise redeliver the update in a loop.
func (h *Handler) Telegram(c *gin.Context) {
	if h.secret != "" && c.GetHeader("X-Telegram-Bot-Api-Secret-Token") != h.secret {
		httpx.FailErr(c, httpx.ErrUnauthorized("bad webhook secret"))
		return
	}

	var update bot.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid update payload"))
		return
	}

	traceID := uuid.NewString()
	logrus.WithFields(logrus.Fields{
		"traceId":  traceID,
		"updateId": update.UpdateID,
	}).Info("telegram update received")

	h.bot.HandleUpdate(c.Request.Context(), &update)

	httpx.OK(c, gin.H{"traceId": traceID})
}
