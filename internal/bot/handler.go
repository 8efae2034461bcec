package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tg_certbot/internal/action"
	"tg_certbot/internal/format"
	"tg_certbot/internal/model"
	"tg_certbot/internal/order"

	"github.com/sirupsen/logrus"
)

// Sender is the outbound side of the bot, satisfied by *Client
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, keyboard format.Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Handler routes Telegram updates into the order state machine and renders
// the results back into chat messages
type Handler struct {
	svc    *order.Service
	fmtr   *format.Formatter
	sender Sender
}

// NewHandler wires the update router
func NewHandler(svc *order.Service, fmtr *format.Formatter, sender Sender) *Handler {
	return &Handler{svc: svc, fmtr: fmtr, sender: sender}
}

const helpText = `👋 <b>证书申请机器人</b>

/new — 申请新证书（选择类型后回复主域名）
/domain &lt;域名&gt; — 直接为根域名申请证书
/verify &lt;域名&gt; — DNS 解析完成后验证并签发
/status &lt;域名&gt; — 查询订单状态
/orders — 查看全部订单`

// HandleUpdate dispatches one webhook update. Errors are rendered to the
// user; they are never surfaced to the webhook response.
func (h *Handler) HandleUpdate(ctx context.Context, u *Update) {
	switch {
	case u.CallbackQuery != nil:
		h.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil && u.Message.Chat != nil && !u.Message.From.IsBot:
		h.handleMessage(ctx, u.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *Message) {
	chatID := msg.Chat.ID
	user, err := h.svc.EnsureUser(msg.From.ID, msg.From.Username)
	if err != nil {
		logrus.WithError(err).WithField("tgId", msg.From.ID).Error("ensure user failed")
		h.send(ctx, chatID, "❌ 系统繁忙，请稍后重试。", nil)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		h.handleFreeText(ctx, chatID, user, text)
		return
	}

	cmd, arg := splitCommand(text)
	switch cmd {
	case "/start", "/help":
		h.send(ctx, chatID, helpText, nil)

	case "/new":
		res, err := h.svc.StartOrder(user)
		if err != nil {
			h.send(ctx, chatID, h.renderError(err), nil)
			return
		}
		h.send(ctx, chatID, "📌 请选择证书类型：", format.TypeKeyboard(res.Order.ID))

	case "/domain":
		if arg == "" {
			h.send(ctx, chatID, "用法：/domain example.com", nil)
			return
		}
		res, err := h.svc.CreateOrder(ctx, user, arg)
		if err != nil {
			h.send(ctx, chatID, h.renderError(err), nil)
			return
		}
		h.send(ctx, chatID, res.Message, format.DNSKeyboard(res.Order.ID))

	case "/verify":
		if arg == "" {
			h.send(ctx, chatID, "用法：/verify example.com", nil)
			return
		}
		res, err := h.svc.VerifyOrderByDomain(ctx, user, arg)
		if err != nil {
			h.send(ctx, chatID, h.renderError(err), nil)
			return
		}
		h.send(ctx, chatID, res.Message, format.IssuedKeyboard(res.Order.ID))

	case "/status":
		if arg == "" {
			h.send(ctx, chatID, "用法：/status example.com", nil)
			return
		}
		res, err := h.svc.Status(user, arg)
		if err != nil {
			// Privileged users can look up any order, not just their own
			var nfErr *order.NotFoundError
			if errors.As(err, &nfErr) && user.IsPrivileged() {
				if anyRes, anyErr := h.svc.StatusByDomain(arg); anyErr == nil {
					h.send(ctx, chatID, anyRes.Message, nil)
					return
				}
			}
			h.send(ctx, chatID, h.renderError(err), nil)
			return
		}
		h.send(ctx, chatID, res.Message, statusKeyboard(res.Order))

	case "/orders":
		h.sendOrderList(ctx, chatID, user)

	default:
		h.send(ctx, chatID, "❓ 未知指令。\n\n"+helpText, nil)
	}
}

// handleFreeText routes non-command text. Only meaningful when the user has
// a pending await_domain action armed by the type chooser.
func (h *Handler) handleFreeText(ctx context.Context, chatID int64, user *model.TgUser, text string) {
	if user.PendingAction != model.PendingActionAwaitDomain || text == "" {
		h.send(ctx, chatID, "💡 使用 /new 申请证书，或 /help 查看全部指令。", nil)
		return
	}

	res, err := h.svc.SubmitDomain(ctx, user.ID, text)
	if err != nil {
		h.send(ctx, chatID, h.renderError(err), nil)
		return
	}
	h.send(ctx, chatID, res.Message, format.DNSKeyboard(res.Order.ID))
}

func (h *Handler) handleCallback(ctx context.Context, cb *CallbackQuery) {
	if cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	user, err := h.svc.EnsureUser(cb.From.ID, cb.From.Username)
	if err != nil {
		logrus.WithError(err).WithField("tgId", cb.From.ID).Error("ensure user failed")
		h.answer(ctx, cb.ID, "系统繁忙，请稍后重试")
		return
	}

	act, err := action.Decode(cb.Data)
	if err != nil {
		logrus.WithField("data", cb.Data).Warn("malformed callback data")
		h.answer(ctx, cb.ID, "无效操作")
		return
	}

	switch act.Kind {
	case action.KindType:
		res, err := h.svc.SetOrderType(user.ID, act.OrderID, act.CertType)
		if err != nil {
			h.answer(ctx, cb.ID, "")
			h.send(ctx, chatID, h.renderError(err), nil)
			return
		}
		h.answer(ctx, cb.ID, "")
		h.send(ctx, chatID, fmt.Sprintf("✅ 已选择 <b>%s</b>。\n请直接回复要申请的主域名（如 example.com）：",
			format.CertTypeText(res.Order.CertType)), nil)

	case action.KindVerify:
		h.answer(ctx, cb.ID, "")
		res, err := h.svc.VerifyOrderByID(ctx, user.ID, act.OrderID)
		if err != nil {
			h.send(ctx, chatID, h.renderError(err), nil)
			return
		}
		h.send(ctx, chatID, res.Message, format.IssuedKeyboard(res.Order.ID))

	case action.KindLater:
		h.answer(ctx, cb.ID, "好的，完成解析后可在 /orders 中继续验证。")

	case action.KindDownload:
		res, err := h.svc.DownloadInfo(user.ID, act.OrderID)
		if err != nil {
			h.answer(ctx, cb.ID, "")
			h.send(ctx, chatID, h.renderError(err), nil)
			return
		}
		h.answer(ctx, cb.ID, "")
		h.send(ctx, chatID, res.Message, nil)

	case action.KindInfo:
		res, err := h.svc.CertificateInfo(user.ID, act.OrderID)
		if err != nil {
			h.answer(ctx, cb.ID, "")
			h.send(ctx, chatID, h.renderError(err), nil)
			return
		}
		h.answer(ctx, cb.ID, "")
		h.send(ctx, chatID, res.Message, nil)

	case action.KindMenu:
		h.answer(ctx, cb.ID, "")
		if act.Target == "orders" {
			h.sendOrderList(ctx, chatID, user)
		}
	}
}

func (h *Handler) sendOrderList(ctx context.Context, chatID int64, user *model.TgUser) {
	res, err := h.svc.ListOrders(user)
	if err != nil {
		h.send(ctx, chatID, h.renderError(err), nil)
		return
	}
	if len(res.Cards) == 0 {
		h.send(ctx, chatID, res.Message, nil)
		return
	}
	for _, card := range res.Cards {
		h.send(ctx, chatID, card.Text, card.Keyboard)
	}
}

// renderError maps every tagged failure kind to its user-facing message
func (h *Handler) renderError(err error) string {
	var (
		vErr    *order.ValidationError
		qErr    *order.QuotaExhaustedError
		gErr    *order.StateGuardError
		dupErr  *order.DuplicateOrderError
		toolErr *order.ExternalToolError
		dnsErr  *order.DNSNotPropagatedError
		nfErr   *order.NotFoundError
		busyErr *order.OrderBusyError
	)

	switch {
	case errors.As(err, &vErr):
		return vErr.Reason

	case errors.As(err, &qErr):
		if qErr.Privileged {
			return "✅ 管理员不受申请次数限制。"
		}
		return fmt.Sprintf("🚫 <b>申请次数不足</b>（剩余 %d 次）。请联系管理员添加次数。", qErr.Remaining)

	case errors.As(err, &gErr):
		return gErr.Message

	case errors.As(err, &dupErr):
		// Re-display the conflicting order so the user can continue it
		return "⚠️ 该域名已有进行中的订单：\n\n" + h.fmtr.StatusMessage(dupErr.Order, true)

	case errors.As(err, &toolErr):
		switch toolErr.Step {
		case "dry_run":
			return "❌ acme.sh dry-run 失败：\n<pre>" + toolErr.Output + "</pre>"
		case "renew":
			return "❌ 证书签发失败：\n<pre>" + toolErr.Output + "</pre>"
		default:
			return "❌ 证书导出失败：\n<pre>" + toolErr.Output + "</pre>"
		}

	case errors.As(err, &dnsErr):
		return "⏳ 当前未检测到 TXT 记录，DNS 可能仍在生效中。通常需要 1~10 分钟，部分 DNS 更久。"

	case errors.As(err, &nfErr):
		return nfErr.Message

	case errors.As(err, &busyErr):
		return "⏳ 订单正在处理中，请勿重复操作。"

	default:
		logrus.WithError(err).Error("unexpected order error")
		return "❌ 系统繁忙，请稍后重试。"
	}
}

// statusKeyboard picks the next-action buttons for a status reply
func statusKeyboard(o *model.CertOrder) format.Keyboard {
	switch o.Status {
	case model.OrderStatusDNSWait, model.OrderStatusDNSVerified:
		return format.DNSKeyboard(o.ID)
	case model.OrderStatusIssued:
		return format.IssuedKeyboard(o.ID)
	default:
		return nil
	}
}

func (h *Handler) send(ctx context.Context, chatID int64, text string, keyboard format.Keyboard) {
	if err := h.sender.SendMessage(ctx, chatID, text, keyboard); err != nil {
		logrus.WithError(err).WithField("chatId", chatID).Error("send message failed")
	}
}

func (h *Handler) answer(ctx context.Context, callbackID, text string) {
	if err := h.sender.AnswerCallback(ctx, callbackID, text); err != nil {
		logrus.WithError(err).Error("answer callback failed")
	}
}

func splitCommand(text string) (string, string) {
	parts := strings.SplitN(text, " ", 2)
	cmd := parts[0]
	// Strip the @botname suffix used in group chats
	if at := strings.Index(cmd, "@"); at > 0 {
		cmd = cmd[:at]
	}
	arg := ""
	if len(parts) == 2 {
		arg = strings.TrimSpace(parts[1])
	}
	return cmd, arg
}
