package bot

import (
	"context"
	"strings"
	"testing"

	"tg_certbot/internal/acmetool"
	"tg_certbot/internal/format"
	"tg_certbot/internal/model"
	"tg_certbot/internal/order"

	"gorm.io/datatypes"
)

// sentMessage captures one outbound sendMessage call
type sentMessage struct {
	ChatID   int64
	Text     string
	Keyboard format.Keyboard
}

type fakeSender struct {
	messages []sentMessage
	answers  []string
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID int64, text string, keyboard format.Keyboard) error {
	f.messages = append(f.messages, sentMessage{ChatID: chatID, Text: text, Keyboard: keyboard})
	return nil
}

func (f *fakeSender) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.answers = append(f.answers, text)
	return nil
}

// botRepo is a minimal in-memory Repository backing the routing tests
type botRepo struct {
	users  []*model.TgUser
	orders []*model.CertOrder
}

func (r *botRepo) FindUserByTgID(tgID int64) (*model.TgUser, error) {
	for _, u := range r.users {
		if u.TgID == tgID {
			return u, nil
		}
	}
	return nil, nil
}

func (r *botRepo) FindUserByID(id int) (*model.TgUser, error) {
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (r *botRepo) CreateUser(u *model.TgUser) error {
	u.ID = len(r.users) + 1
	r.users = append(r.users, u)
	return nil
}

func (r *botRepo) UpdateUser(u *model.TgUser, fields map[string]interface{}) error {
	if v, ok := fields["username"]; ok {
		u.Username = v.(string)
	}
	if v, ok := fields["apply_quota"]; ok {
		u.ApplyQuota = v.(int)
	}
	if v, ok := fields["pending_action"]; ok {
		u.PendingAction = v.(string)
	}
	if v, ok := fields["pending_order_id"]; ok {
		u.PendingOrderID = v.(int)
	}
	return nil
}

func (r *botRepo) FindOrderByID(id, userID int) (*model.CertOrder, error) {
	for _, o := range r.orders {
		if o.ID == id && o.TgUserID == userID {
			return o, nil
		}
	}
	return nil, nil
}

func (r *botRepo) FindActiveOrderByDomain(userID int, domain string) (*model.CertOrder, error) {
	for _, o := range r.orders {
		if o.TgUserID == userID && o.Domain == domain && o.Status != model.OrderStatusIssued {
			return o, nil
		}
	}
	return nil, nil
}

func (r *botRepo) FindOrderByDomain(userID int, domain string) (*model.CertOrder, error) {
	for _, o := range r.orders {
		if o.TgUserID == userID && o.Domain == domain {
			return o, nil
		}
	}
	return nil, nil
}

func (r *botRepo) FindAnyOrderByDomain(domain string) (*model.CertOrder, error) {
	for _, o := range r.orders {
		if o.Domain == domain {
			return o, nil
		}
	}
	return nil, nil
}

func (r *botRepo) FindBlankOrder(userID int) (*model.CertOrder, error) {
	for _, o := range r.orders {
		if o.TgUserID == userID && o.Status == model.OrderStatusCreated && o.Domain == "" {
			return o, nil
		}
	}
	return nil, nil
}

func (r *botRepo) ListOrdersByUser(userID int) ([]model.CertOrder, error) {
	var out []model.CertOrder
	for i := len(r.orders) - 1; i >= 0; i-- {
		if r.orders[i].TgUserID == userID {
			out = append(out, *r.orders[i])
		}
	}
	return out, nil
}

func (r *botRepo) CreateOrder(o *model.CertOrder) error {
	o.ID = len(r.orders) + 1
	r.orders = append(r.orders, o)
	return nil
}

func (r *botRepo) UpdateOrder(o *model.CertOrder, fields map[string]interface{}) error {
	for k, v := range fields {
		switch k {
		case "domain":
			o.Domain = v.(string)
		case "cert_type":
			o.CertType = v.(string)
		case "status":
			o.Status = v.(string)
		case "txt_host":
			o.TxtHost = v.(string)
		case "txt_value":
			o.TxtValue = v.(string)
		case "acme_output":
			o.AcmeOutput = v.(string)
		case "acme_domains_json":
			o.AcmeDomains = datatypes.JSON(v.([]byte))
		case "cert_path":
			o.CertPath = v.(string)
		case "key_path":
			o.KeyPath = v.(string)
		case "fullchain_path":
			o.FullchainPath = v.(string)
		}
	}
	return nil
}

func (r *botRepo) AppendLog(userID int, actionTag, detail string) error { return nil }

type scriptedAcme struct {
	dryRun acmetool.Result
}

func (s *scriptedAcme) DryRun(ctx context.Context, domains []string) acmetool.Result {
	return s.dryRun
}

func (s *scriptedAcme) Renew(ctx context.Context, domains []string) acmetool.Result {
	return acmetool.Result{Success: true}
}

func (s *scriptedAcme) InstallCert(ctx context.Context, domain string) acmetool.Result {
	return acmetool.Result{Success: true}
}

type alwaysPropagated struct{}

func (alwaysPropagated) VerifyPropagation(ctx context.Context, host, value string) bool { return true }

const testDryRunOutput = "_acme-challenge.example.com TXT value: token-xyz"

func newTestHandler(quota int) (*Handler, *fakeSender, *botRepo) {
	repo := &botRepo{}
	sender := &fakeSender{}
	fmtr := format.New("/srv/ssl")
	svc := order.NewService(repo,
		&scriptedAcme{dryRun: acmetool.Result{Success: true, Output: testDryRunOutput}},
		alwaysPropagated{}, fmtr, nil, nil,
		order.Config{ExportRoot: "/srv/ssl", DefaultQuota: quota})
	return NewHandler(svc, fmtr, sender), sender, repo
}

func textUpdate(tgID int64, text string) *Update {
	return &Update{
		Message: &Message{
			From: &User{ID: tgID, Username: "alice"},
			Chat: &Chat{ID: tgID},
			Text: text,
		},
	}
}

func callbackUpdate(tgID int64, data string) *Update {
	return &Update{
		CallbackQuery: &CallbackQuery{
			ID:   "cb-1",
			From: &User{ID: tgID, Username: "alice"},
			Message: &Message{
				Chat: &Chat{ID: tgID},
			},
			Data: data,
		},
	}
}

func TestHelpCommand(t *testing.T) {
	h, sender, _ := newTestHandler(1)

	h.HandleUpdate(context.Background(), textUpdate(100, "/start"))

	if len(sender.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sender.messages))
	}
	if !strings.Contains(sender.messages[0].Text, "/new") {
		t.Errorf("help text missing command list: %q", sender.messages[0].Text)
	}
}

func TestNewCommandShowsTypeChooser(t *testing.T) {
	h, sender, _ := newTestHandler(1)

	h.HandleUpdate(context.Background(), textUpdate(100, "/new"))

	if len(sender.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sender.messages))
	}
	kb := sender.messages[0].Keyboard
	if len(kb) != 2 {
		t.Fatalf("type chooser rows = %d, want 2", len(kb))
	}
	if kb[0][0].CallbackData != "type:root:1" {
		t.Errorf("root button callback = %q", kb[0][0].CallbackData)
	}
	if kb[1][0].CallbackData != "type:wildcard:1" {
		t.Errorf("wildcard button callback = %q", kb[1][0].CallbackData)
	}
}

func TestTypeCallbackThenFreeTextDomain(t *testing.T) {
	h, sender, repo := newTestHandler(1)
	ctx := context.Background()

	h.HandleUpdate(ctx, textUpdate(100, "/new"))
	h.HandleUpdate(ctx, callbackUpdate(100, "type:root:1"))

	// Type chooser armed the pending slot: next free text is the domain
	h.HandleUpdate(ctx, textUpdate(100, "example.com"))

	last := sender.messages[len(sender.messages)-1]
	if !strings.Contains(last.Text, "dns_wait") {
		t.Errorf("expected dns_wait instructions, got %q", last.Text)
	}
	if !strings.Contains(last.Text, "token-xyz") {
		t.Errorf("TXT value missing from reply: %q", last.Text)
	}
	if len(last.Keyboard) == 0 {
		t.Error("dns_wait reply must carry the verify keyboard")
	}

	o, _ := repo.FindOrderByDomain(1, "example.com")
	if o == nil || o.Status != model.OrderStatusDNSWait {
		t.Errorf("order not advanced to dns_wait: %+v", o)
	}
}

func TestFreeTextWithoutPendingActionHints(t *testing.T) {
	h, sender, _ := newTestHandler(1)

	h.HandleUpdate(context.Background(), textUpdate(100, "example.com"))

	if len(sender.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sender.messages))
	}
	if !strings.Contains(sender.messages[0].Text, "/new") {
		t.Errorf("expected usage hint, got %q", sender.messages[0].Text)
	}
}

func TestQuotaExhaustedMessage(t *testing.T) {
	h, sender, _ := newTestHandler(0)

	h.HandleUpdate(context.Background(), textUpdate(100, "/new"))

	if len(sender.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sender.messages))
	}
	if !strings.Contains(sender.messages[0].Text, "申请次数不足") {
		t.Errorf("expected quota message, got %q", sender.messages[0].Text)
	}
	if !strings.Contains(sender.messages[0].Text, "剩余 0 次") {
		t.Errorf("expected remaining count, got %q", sender.messages[0].Text)
	}
}

func TestMalformedCallbackAnswered(t *testing.T) {
	h, sender, _ := newTestHandler(1)

	h.HandleUpdate(context.Background(), callbackUpdate(100, "verify:not-a-number"))

	if len(sender.messages) != 0 {
		t.Errorf("malformed callback must not send messages, got %d", len(sender.messages))
	}
	if len(sender.answers) != 1 || sender.answers[0] != "无效操作" {
		t.Errorf("answers = %v, want invalid-action toast", sender.answers)
	}
}

func TestLaterCallbackOnlyAcknowledges(t *testing.T) {
	h, sender, _ := newTestHandler(1)
	ctx := context.Background()

	h.HandleUpdate(ctx, textUpdate(100, "/new"))
	h.HandleUpdate(ctx, callbackUpdate(100, "type:root:1"))
	h.HandleUpdate(ctx, textUpdate(100, "example.com"))
	before := len(sender.messages)

	h.HandleUpdate(ctx, callbackUpdate(100, "later:1"))

	if len(sender.messages) != before {
		t.Error("later callback must not send messages")
	}
	if last := sender.answers[len(sender.answers)-1]; !strings.Contains(last, "/orders") {
		t.Errorf("later toast = %q", last)
	}
}

func TestVerifyCommandFullIssuance(t *testing.T) {
	h, sender, repo := newTestHandler(1)
	ctx := context.Background()

	h.HandleUpdate(ctx, textUpdate(100, "/domain example.com"))
	h.HandleUpdate(ctx, textUpdate(100, "/verify example.com"))

	last := sender.messages[len(sender.messages)-1]
	if !strings.Contains(last.Text, "issued") {
		t.Errorf("expected issuance message, got %q", last.Text)
	}

	o, _ := repo.FindOrderByDomain(1, "example.com")
	if o == nil || o.Status != model.OrderStatusIssued {
		t.Errorf("order not issued: %+v", o)
	}
}

func TestOrdersCommandSendsCards(t *testing.T) {
	h, sender, _ := newTestHandler(1)
	ctx := context.Background()

	h.HandleUpdate(ctx, textUpdate(100, "/domain example.com"))
	sender.messages = nil

	h.HandleUpdate(ctx, textUpdate(100, "/orders"))

	// Header card plus one order card
	if len(sender.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(sender.messages))
	}
	if !strings.Contains(sender.messages[1].Text, "example.com") {
		t.Errorf("order card missing domain: %q", sender.messages[1].Text)
	}
}

func TestStatusFallbackForPrivilegedUsers(t *testing.T) {
	h, sender, repo := newTestHandler(1)
	ctx := context.Background()

	// Member 100 owns the order
	h.HandleUpdate(ctx, textUpdate(100, "/domain example.com"))

	// Admin account looking at someone else's domain
	admin := &model.TgUser{TgID: 200, Username: "ops", Role: model.RoleAdmin}
	if err := repo.CreateUser(admin); err != nil {
		t.Fatal(err)
	}
	sender.messages = nil
	h.HandleUpdate(ctx, textUpdate(200, "/status example.com"))

	if len(sender.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sender.messages))
	}
	if !strings.Contains(sender.messages[0].Text, "dns_wait") {
		t.Errorf("admin must see the order status, got %q", sender.messages[0].Text)
	}
}

func TestStatusNoFallbackForMembers(t *testing.T) {
	h, sender, _ := newTestHandler(1)
	ctx := context.Background()

	h.HandleUpdate(ctx, textUpdate(100, "/domain example.com"))

	// A different member must not see other users' orders
	sender.messages = nil
	h.HandleUpdate(ctx, textUpdate(300, "/status example.com"))

	if len(sender.messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(sender.messages))
	}
	if !strings.Contains(sender.messages[0].Text, "订单不存在") {
		t.Errorf("member lookup of foreign domain = %q, want not-found", sender.messages[0].Text)
	}
}

func TestUpdateWithoutChatIgnored(t *testing.T) {
	h, sender, _ := newTestHandler(1)

	h.HandleUpdate(context.Background(), &Update{
		Message: &Message{
			From: &User{ID: 100, Username: "alice"},
			Text: "/start",
		},
	})

	if len(sender.messages) != 0 {
		t.Errorf("chat-less update must be dropped, sent %d messages", len(sender.messages))
	}
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		in  string
		cmd string
		arg string
	}{
		{"/start", "/start", ""},
		{"/verify example.com", "/verify", "example.com"},
		{"/verify@certbot_bot example.com", "/verify", "example.com"},
		{"/status   example.com  ", "/status", "example.com"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cmd, arg := splitCommand(tt.in)
			if cmd != tt.cmd || arg != tt.arg {
				t.Errorf("splitCommand(%q) = (%q, %q), want (%q, %q)", tt.in, cmd, arg, tt.cmd, tt.arg)
			}
		})
	}
}
