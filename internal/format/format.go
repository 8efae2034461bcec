package format

import (
	"fmt"
	"strings"

	"tg_certbot/internal/acmetool"
	"tg_certbot/internal/action"
	"tg_certbot/internal/dnschallenge"
	"tg_certbot/internal/model"
)

// Button is one inline keyboard button descriptor
type Button struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// Keyboard is a list of button rows
type Keyboard [][]Button

// Card is one rendered message with an optional keyboard
type Card struct {
	Text     string
	Keyboard Keyboard
}

// Formatter renders orders and results into chat messages. It performs no
// I/O; the export root is only used to render artifact paths.
type Formatter struct {
	ExportRoot string
}

// New creates a formatter
func New(exportRoot string) *Formatter {
	return &Formatter{ExportRoot: exportRoot}
}

// CertTypeText renders a certificate type for display
func CertTypeText(certType string) string {
	switch certType {
	case model.CertTypeWildcard:
		return "通配符证书"
	case model.CertTypeRoot:
		return "根域名证书"
	default:
		return "（未选择）"
	}
}

// TxtRecordBlock renders the TXT record the user must add
func TxtRecordBlock(domain, host, value string) string {
	lines := []string{
		"Host (主机记录): " + host,
		"Type (类型): TXT",
		"Value (记录值): " + value,
	}
	msg := "<pre>" + strings.Join(lines, "\n") + "</pre>"
	msg += fmt.Sprintf("\n说明：请在 DNS 中添加 <b>%s</b> 的 TXT 记录，主机记录通常是 <b>%s</b>。", domain, host)
	return msg
}

// DNSWaitMessage renders the instruction message after a successful dry-run
func (f *Formatter) DNSWaitMessage(order *model.CertOrder, txt *dnschallenge.TXTRecord, rawOutput string) string {
	msg := "🧾 <b>状态：dns_wait（等待 DNS TXT 解析）</b>\n"
	msg += "请先添加下面的 TXT 记录，然后点击「我已完成解析（验证）」：\n"
	if txt != nil {
		msg += TxtRecordBlock(order.Domain, txt.Name, txt.Value)
	} else {
		msg += "⚠️ 无法解析 TXT 记录，请查看输出：\n" + rawOutput
	}
	return msg
}

// IssuedMessage renders the final success message
func (f *Formatter) IssuedMessage(order *model.CertOrder, expiresAt string) string {
	paths := acmetool.ExportLayout(f.ExportRoot, order.Domain)
	msg := fmt.Sprintf("🎉 <b>状态：issued（签发成功）</b>\n证书类型：%s\n", CertTypeText(order.CertType))
	msg += "已导出到：" + paths.Dir + "\n"
	msg += f.DownloadFilesMessage(order)
	if expiresAt != "" {
		msg += "\n有效期至：" + expiresAt
	}
	return msg
}

// DownloadFilesMessage renders the exported artifact paths
func (f *Formatter) DownloadFilesMessage(order *model.CertOrder) string {
	paths := acmetool.ExportLayout(f.ExportRoot, order.Domain)
	lines := []string{
		"下载文件：",
		"fullchain.cer -> " + paths.Fullchain,
		"cert.cer -> " + paths.Cert,
		"key -> " + paths.Key,
	}
	return "<pre>" + strings.Join(lines, "\n") + "</pre>"
}

// DownloadInfoMessage renders the download callback response
func (f *Formatter) DownloadInfoMessage(order *model.CertOrder) string {
	paths := acmetool.ExportLayout(f.ExportRoot, order.Domain)
	return "✅ 证书已导出至服务器目录：\n" + paths.Dir + "\n\n" + f.DownloadFilesMessage(order)
}

// CertInfoMessage renders certificate metadata for an issued order
func (f *Formatter) CertInfoMessage(order *model.CertOrder, expiresAt string) string {
	msg := "📄 证书类型：" + CertTypeText(order.CertType)
	if expiresAt != "" {
		msg += "\n有效期至：" + expiresAt
	}
	return msg
}

// StatusMessage renders the current order state. For dns_wait orders the
// pending TXT record is re-displayed so the user never has to scroll back.
func (f *Formatter) StatusMessage(order *model.CertOrder, withTips bool) string {
	domain := order.Domain
	if domain == "" {
		domain = "（未提交域名）"
	}
	msg := fmt.Sprintf("📌 当前状态：<b>%s</b>\n域名：<b>%s</b>\n证书类型：<b>%s</b>",
		order.Status, domain, CertTypeText(order.CertType))

	switch {
	case order.Status == model.OrderStatusDNSWait:
		msg += "\n\n🧾 <b>状态：dns_wait</b>\n请添加 TXT 记录后点击「我已完成解析（验证）」。\n"
		if order.TxtHost != "" && order.TxtValue != "" {
			msg += TxtRecordBlock(order.Domain, order.TxtHost, order.TxtValue)
		}
	case order.Status == model.OrderStatusDNSVerified:
		msg += "\n\n✅ <b>状态：dns_verified</b>\nDNS 已验证，点击「我已完成解析（验证）」继续签发证书。"
	case order.Status == model.OrderStatusCreated && order.Domain == "":
		msg += "\n\n📝 等待选择证书类型 / 提交主域名。"
	case order.Status == model.OrderStatusCreated && order.Domain != "":
		if withTips {
			msg += "\n\n⏳ 订单已创建，等待生成解析记录，请稍后点击“查询状态”获取 TXT 记录。"
		}
	case order.Status == model.OrderStatusIssued:
		msg += "\n\n🎉 <b>状态：issued</b>\n"
		if !order.UpdatedAt.IsZero() {
			msg += "签发时间：" + order.UpdatedAt.Format("2006-01-02 15:04:05") + "\n"
		}
		msg += f.DownloadFilesMessage(order)
	}

	return msg
}

// OrderCard renders one list entry with its state-appropriate actions
func (f *Formatter) OrderCard(order *model.CertOrder) Card {
	domain := order.Domain
	if domain == "" {
		domain = "（未提交域名）"
	}
	msg := fmt.Sprintf("🔖 订单 #%d\n域名：<b>%s</b>\n证书类型：<b>%s</b>\n状态：<b>%s</b>",
		order.ID, domain, CertTypeText(order.CertType), order.Status)
	var keyboard Keyboard

	switch order.Status {
	case model.OrderStatusCreated:
		msg += "\n📝 等待选择证书类型 / 提交主域名。"
	case model.OrderStatusDNSWait:
		msg += "\n🧾 请添加 TXT 记录后点击验证：\n"
		if order.TxtHost != "" && order.TxtValue != "" {
			msg += TxtRecordBlock(order.Domain, order.TxtHost, order.TxtValue)
		}
		keyboard = verifyBackKeyboard(order.ID)
	case model.OrderStatusDNSVerified:
		msg += "\n✅ DNS 已验证，点击下方按钮继续签发证书。"
		keyboard = verifyBackKeyboard(order.ID)
	case model.OrderStatusIssued:
		msg += "\n🎉 已签发完成"
		if !order.UpdatedAt.IsZero() {
			msg += "\n签发时间：" + order.UpdatedAt.Format("2006-01-02 15:04:05")
		}
		msg += "\n" + f.DownloadFilesMessage(order)
		keyboard = Keyboard{
			{
				{Text: "查看证书", CallbackData: action.Action{Kind: action.KindInfo, OrderID: order.ID}.Encode()},
				{Text: "下载证书", CallbackData: action.Action{Kind: action.KindDownload, OrderID: order.ID}.Encode()},
			},
			{backToOrdersButton()},
		}
	}

	return Card{Text: msg, Keyboard: keyboard}
}

// TypeKeyboard renders the certificate type chooser
func TypeKeyboard(orderID int) Keyboard {
	return Keyboard{
		{
			{Text: "仅根域名证书（example.com）", CallbackData: action.Action{Kind: action.KindType, CertType: model.CertTypeRoot, OrderID: orderID}.Encode()},
		},
		{
			{Text: "通配符证书（*.example.com，包含根域名）", CallbackData: action.Action{Kind: action.KindType, CertType: model.CertTypeWildcard, OrderID: orderID}.Encode()},
		},
	}
}

// DNSKeyboard renders the verify/later choice shown after domain submission
func DNSKeyboard(orderID int) Keyboard {
	return Keyboard{
		{
			{Text: "我已完成解析", CallbackData: action.Action{Kind: action.KindVerify, OrderID: orderID}.Encode()},
			{Text: "稍后再说", CallbackData: action.Action{Kind: action.KindLater, OrderID: orderID}.Encode()},
		},
	}
}

// IssuedKeyboard renders the post-issuance actions
func IssuedKeyboard(orderID int) Keyboard {
	return Keyboard{
		{
			{Text: "下载证书", CallbackData: action.Action{Kind: action.KindDownload, OrderID: orderID}.Encode()},
			{Text: "查看证书信息", CallbackData: action.Action{Kind: action.KindInfo, OrderID: orderID}.Encode()},
		},
	}
}

func verifyBackKeyboard(orderID int) Keyboard {
	return Keyboard{
		{
			{Text: "我已完成解析（验证）", CallbackData: action.Action{Kind: action.KindVerify, OrderID: orderID}.Encode()},
		},
		{backToOrdersButton()},
	}
}

func backToOrdersButton() Button {
	return Button{Text: "返回订单列表", CallbackData: action.Action{Kind: action.KindMenu, Target: "orders"}.Encode()}
}
