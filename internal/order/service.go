package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tg_certbot/internal/acmetool"
	"tg_certbot/internal/certinfo"
	"tg_certbot/internal/dnschallenge"
	"tg_certbot/internal/domainutil"
	"tg_certbot/internal/format"
	"tg_certbot/internal/model"

	"github.com/sirupsen/logrus"
)

// DNSVerifier checks live TXT propagation for a challenge record
type DNSVerifier interface {
	VerifyPropagation(ctx context.Context, host, value string) bool
}

// Locker provides per-order mutual exclusion for transitions. A nil Locker
// disables locking.
type Locker interface {
	Acquire(ctx context.Context, orderID int) (bool, error)
	Release(ctx context.Context, orderID int)
}

// Notifier broadcasts order lifecycle events. A nil Notifier disables
// broadcasting.
type Notifier interface {
	Broadcast(event string, data interface{})
}

// Config holds the settings the order core needs
type Config struct {
	ExportRoot   string
	DefaultQuota int   // apply quota granted on first contact
	OwnerTgID    int64 // Telegram id bound to the owner role, 0 = none
}

// Result is the success payload of a state machine operation
type Result struct {
	Order   *model.CertOrder
	Message string
	Cards   []format.Card // only for list rendering
}

// Service is the order lifecycle state machine. It owns all legal
// transitions, guard conditions and response construction; persistence,
// DNS and the issuance tool are injected collaborators.
type Service struct {
	repo     Repository
	acme     acmetool.Orchestrator
	dns      DNSVerifier
	fmtr     *format.Formatter
	quota    QuotaPolicy
	locks    Locker
	notifier Notifier
	cfg      Config

	// readExpiry is replaceable in tests
	readExpiry func(certPath string) string
}

// NewService wires the state machine with its collaborators
func NewService(repo Repository, acme acmetool.Orchestrator, dns DNSVerifier, fmtr *format.Formatter, locks Locker, notifier Notifier, cfg Config) *Service {
	return &Service{
		repo:       repo,
		acme:       acme,
		dns:        dns,
		fmtr:       fmtr,
		locks:      locks,
		notifier:   notifier,
		cfg:        cfg,
		readExpiry: certinfo.ExpiresAt,
	}
}

// EnsureUser finds the Telegram user or creates it on first contact
func (s *Service) EnsureUser(tgID int64, username string) (*model.TgUser, error) {
	user, err := s.repo.FindUserByTgID(tgID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if username != "" && username != user.Username {
			if err := s.repo.UpdateUser(user, map[string]interface{}{"username": username}); err != nil {
				return nil, err
			}
			user.Username = username
		}
		return user, nil
	}

	role := model.RoleMember
	if s.cfg.OwnerTgID != 0 && tgID == s.cfg.OwnerTgID {
		role = model.RoleOwner
	}
	user = &model.TgUser{
		TgID:       tgID,
		Username:   username,
		Role:       role,
		ApplyQuota: s.cfg.DefaultQuota,
	}
	if err := s.repo.CreateUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// StartOrder begins an application: it reuses the user's blank created-status
// order when one exists, otherwise creates one. Domain and type are chosen
// later.
func (s *Service) StartOrder(user *model.TgUser) (*Result, error) {
	if !s.quota.HasQuota(user) {
		return nil, s.quota.ExhaustedError(user)
	}

	existing, err := s.repo.FindBlankOrder(user.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &Result{Order: existing}, nil
	}

	o := &model.CertOrder{
		TgUserID: user.ID,
		Domain:   "",
		Status:   model.OrderStatusCreated,
	}
	if err := s.repo.CreateOrder(o); err != nil {
		return nil, err
	}
	return &Result{Order: o}, nil
}

// SetOrderType records the chosen certificate type and arms the user's
// pending await_domain action so the next free-text message is routed as
// domain input.
func (s *Service) SetOrderType(userID, orderID int, certType string) (*Result, error) {
	o, err := s.repo.FindOrderByID(orderID, userID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, &NotFoundError{Message: "❌ 订单不存在。"}
	}

	if o.Status != model.OrderStatusCreated {
		return nil, &StateGuardError{Message: "⚠️ 当前状态不可选择类型。"}
	}

	if certType != model.CertTypeRoot && certType != model.CertTypeWildcard {
		return nil, &ValidationError{Reason: "❌ 证书类型不合法。"}
	}

	if err := s.repo.UpdateOrder(o, map[string]interface{}{"cert_type": certType}); err != nil {
		return nil, err
	}
	o.CertType = certType

	user, err := s.repo.FindUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		if err := s.setPending(user, model.PendingActionAwaitDomain, orderID); err != nil {
			return nil, err
		}
	}

	return &Result{Order: o}, nil
}

// SubmitDomain fills the pending order's domain, consumes one quota unit and
// immediately attempts issuance.
func (s *Service) SubmitDomain(ctx context.Context, userID int, domain string) (*Result, error) {
	domain, vErr := s.normalizeDomain(domain)
	if vErr != nil {
		return nil, vErr
	}

	user, err := s.repo.FindUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, &NotFoundError{Message: "❌ 用户不存在。"}
	}
	if !s.quota.HasQuota(user) {
		return nil, s.quota.ExhaustedError(user)
	}

	if user.PendingOrderID == 0 {
		_ = s.clearPending(user)
		return nil, &StateGuardError{Message: "⚠️ 没有待处理的订单，请先申请证书。"}
	}

	o, err := s.repo.FindOrderByID(user.PendingOrderID, userID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		_ = s.clearPending(user)
		return nil, &NotFoundError{Message: "❌ 订单不存在。"}
	}

	if o.Status != model.OrderStatusCreated {
		_ = s.clearPending(user)
		return nil, &StateGuardError{Message: "⚠️ 当前订单状态不可提交域名。"}
	}
	if o.Domain != "" {
		_ = s.clearPending(user)
		return nil, &StateGuardError{Message: "⚠️ 该订单已提交域名。"}
	}

	if reason := domainutil.CheckIssuePolicy(domain, o.CertType); reason != "" {
		return nil, &ValidationError{Reason: reason}
	}

	dup, err := s.repo.FindActiveOrderByDomain(userID, domain)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, &DuplicateOrderError{Order: dup}
	}

	release, err := s.lock(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := s.repo.UpdateOrder(o, map[string]interface{}{"domain": domain}); err != nil {
		return nil, err
	}
	o.Domain = domain

	if err := s.clearPending(user); err != nil {
		return nil, err
	}
	s.consumeQuota(user)

	return s.issueOrder(ctx, user, o)
}

// CreateOrder is the legacy single-shot path for non-interactive callers:
// validate, create a root-type order with the domain already set, consume
// quota and issue. It never touches the pending-action slot, so the two
// entry paths stay mutually exclusive per order.
func (s *Service) CreateOrder(ctx context.Context, user *model.TgUser, domain string) (*Result, error) {
	domain, vErr := s.normalizeDomain(domain)
	if vErr != nil {
		return nil, vErr
	}
	if reason := domainutil.CheckIssuePolicy(domain, model.CertTypeRoot); reason != "" {
		return nil, &ValidationError{Reason: reason}
	}

	if !s.quota.HasQuota(user) {
		return nil, s.quota.ExhaustedError(user)
	}

	dup, err := s.repo.FindActiveOrderByDomain(user.ID, domain)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, &DuplicateOrderError{Order: dup}
	}

	o := &model.CertOrder{
		TgUserID: user.ID,
		Domain:   domain,
		CertType: model.CertTypeRoot,
		Status:   model.OrderStatusCreated,
	}
	if err := s.repo.CreateOrder(o); err != nil {
		return nil, err
	}

	s.consumeQuota(user)

	return s.issueOrder(ctx, user, o)
}

// issueOrder runs the dry-run and moves the order to dns_wait. Only legal
// from created with a non-empty domain. A failed dry-run keeps the order at
// created with the diagnostic stored; quota is not refunded.
func (s *Service) issueOrder(ctx context.Context, user *model.TgUser, o *model.CertOrder) (*Result, error) {
	if o.Status != model.OrderStatusCreated {
		return nil, &StateGuardError{Message: "⚠️ 当前订单状态不可生成 TXT。"}
	}
	if o.Domain == "" {
		return nil, &StateGuardError{Message: "⚠️ 请先提交域名。"}
	}

	domains := o.AcmeDomainSet()
	dryRun := s.acme.DryRun(ctx, domains)
	s.audit(user.ID, model.ActionAcmeIssueDryRun, dryRun.Output)

	if !dryRun.Success {
		if err := s.repo.UpdateOrder(o, map[string]interface{}{
			"status":      model.OrderStatusCreated,
			"acme_output": dryRun.Output,
		}); err != nil {
			return nil, err
		}
		o.Status = model.OrderStatusCreated
		o.AcmeOutput = dryRun.Output
		return nil, &ExternalToolError{Step: "dry_run", Output: dryRun.Output}
	}

	txt := dnschallenge.ParseChallenge(dryRun.Output)
	fields := map[string]interface{}{
		"acme_output": dryRun.Output,
	}
	o.AcmeOutput = dryRun.Output
	if txt != nil {
		fields["txt_host"] = txt.Name
		fields["txt_value"] = txt.Value
		o.TxtHost = txt.Name
		o.TxtValue = txt.Value
	}
	if domainsJSON, err := json.Marshal(domains); err == nil {
		fields["acme_domains_json"] = domainsJSON
		o.AcmeDomains = domainsJSON
	}

	if err := s.updateOrderStatus(user.ID, o, model.OrderStatusDNSWait, fields); err != nil {
		return nil, err
	}

	s.audit(user.ID, model.ActionOrderCreate, o.Domain)

	return &Result{
		Order:   o,
		Message: s.fmtr.DNSWaitMessage(o, txt, dryRun.Output),
	}, nil
}

// VerifyOrderByID verifies the user's order identified by id
func (s *Service) VerifyOrderByID(ctx context.Context, userID, orderID int) (*Result, error) {
	o, err := s.repo.FindOrderByID(orderID, userID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, &NotFoundError{Message: "❌ 订单不存在。"}
	}
	return s.verifyOrder(ctx, o)
}

// VerifyOrderByDomain verifies the user's order identified by domain
func (s *Service) VerifyOrderByDomain(ctx context.Context, user *model.TgUser, domain string) (*Result, error) {
	domain, vErr := s.normalizeDomain(domain)
	if vErr != nil {
		return nil, vErr
	}
	o, err := s.repo.FindOrderByDomain(user.ID, domain)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, &NotFoundError{Message: "❌ 订单不存在。"}
	}
	return s.verifyOrder(ctx, o)
}

// verifyOrder drives dns_wait -> dns_verified -> issued. Missing propagation
// is a soft failure with no state change; renew/install failures keep the
// order retryable in its current status.
func (s *Service) verifyOrder(ctx context.Context, o *model.CertOrder) (*Result, error) {
	release, err := s.lock(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	if o.Status != model.OrderStatusDNSWait && o.Status != model.OrderStatusDNSVerified {
		return nil, &StateGuardError{Message: "⚠️ 当前状态不可验证，请先完成 DNS 解析。"}
	}

	userID := o.TgUserID

	if o.Status == model.OrderStatusDNSWait {
		if o.TxtHost != "" && o.TxtValue != "" {
			if !s.dns.VerifyPropagation(ctx, o.TxtHost, o.TxtValue) {
				return nil, &DNSNotPropagatedError{Host: o.TxtHost}
			}
		}
		if err := s.updateOrderStatus(userID, o, model.OrderStatusDNSVerified, nil); err != nil {
			return nil, err
		}
	}

	domains := o.AcmeDomainSet()

	renew := s.acme.Renew(ctx, domains)
	s.audit(userID, model.ActionAcmeRenew, renew.Output)
	if !renew.Success {
		return nil, &ExternalToolError{Step: "renew", Output: renew.Output}
	}

	install := s.acme.InstallCert(ctx, o.Domain)
	s.audit(userID, model.ActionAcmeInstallCert, install.Output)
	if !install.Success {
		return nil, &ExternalToolError{Step: "install", Output: install.Output}
	}

	paths := acmetool.ExportLayout(s.cfg.ExportRoot, o.Domain)
	fields := map[string]interface{}{
		"cert_path":      paths.Cert,
		"key_path":       paths.Key,
		"fullchain_path": paths.Fullchain,
	}
	o.CertPath = paths.Cert
	o.KeyPath = paths.Key
	o.FullchainPath = paths.Fullchain
	if err := s.updateOrderStatus(userID, o, model.OrderStatusIssued, fields); err != nil {
		return nil, err
	}

	s.audit(userID, model.ActionOrderIssued, o.Domain)

	return &Result{
		Order:   o,
		Message: s.fmtr.IssuedMessage(o, s.readExpiry(paths.Cert)),
	}, nil
}

// Status renders the state of the user's order for a domain. Pure read.
func (s *Service) Status(user *model.TgUser, domain string) (*Result, error) {
	domain, vErr := s.normalizeDomain(domain)
	if vErr != nil {
		return nil, vErr
	}
	o, err := s.repo.FindOrderByDomain(user.ID, domain)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, &NotFoundError{Message: "❌ 订单不存在。"}
	}
	return &Result{Order: o, Message: s.fmtr.StatusMessage(o, false)}, nil
}

// StatusByDomain renders the state of any order for a domain, regardless of
// owner. Pure read; callers gate it behind a privileged role.
func (s *Service) StatusByDomain(domain string) (*Result, error) {
	domain, vErr := s.normalizeDomain(domain)
	if vErr != nil {
		return nil, vErr
	}
	o, err := s.repo.FindAnyOrderByDomain(domain)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, &NotFoundError{Message: "❌ 订单不存在。"}
	}
	return &Result{Order: o, Message: s.fmtr.StatusMessage(o, false)}, nil
}

// ListOrders renders one card per order, newest first
func (s *Service) ListOrders(user *model.TgUser) (*Result, error) {
	orders, err := s.repo.ListOrdersByUser(user.ID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return &Result{Message: "📂 暂无证书订单记录。"}, nil
	}

	cards := []format.Card{
		{Text: "📂 <b>证书订单记录</b>\n点击订单按钮查看/操作。"},
	}
	for i := range orders {
		cards = append(cards, s.fmtr.OrderCard(&orders[i]))
	}

	return &Result{Message: "订单列表已发送", Cards: cards}, nil
}

// CertificateInfo reports type and expiry for an issued order
func (s *Service) CertificateInfo(userID, orderID int) (*Result, error) {
	o, err := s.issuedOrder(userID, orderID)
	if err != nil {
		return nil, err
	}
	return &Result{Order: o, Message: s.fmtr.CertInfoMessage(o, s.readExpiry(o.CertPath))}, nil
}

// DownloadInfo reports the export directory and artifact paths for an
// issued order
func (s *Service) DownloadInfo(userID, orderID int) (*Result, error) {
	o, err := s.issuedOrder(userID, orderID)
	if err != nil {
		return nil, err
	}
	return &Result{Order: o, Message: s.fmtr.DownloadInfoMessage(o)}, nil
}

func (s *Service) issuedOrder(userID, orderID int) (*model.CertOrder, error) {
	o, err := s.repo.FindOrderByID(orderID, userID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, &NotFoundError{Message: "❌ 订单不存在。"}
	}
	if o.Status != model.OrderStatusIssued {
		return nil, &StateGuardError{Message: "⚠️ 证书尚未签发。"}
	}
	return o, nil
}

// updateOrderStatus applies a status transition plus extra fields, audits it
// and broadcasts the change
func (s *Service) updateOrderStatus(userID int, o *model.CertOrder, status string, extra map[string]interface{}) error {
	from := o.Status
	fields := map[string]interface{}{"status": status}
	for k, v := range extra {
		fields[k] = v
	}
	if err := s.repo.UpdateOrder(o, fields); err != nil {
		return err
	}
	o.Status = status

	s.audit(userID, model.ActionOrderStatusChange, fmt.Sprintf("%s %s -> %s", o.Domain, from, status))

	if s.notifier != nil {
		s.notifier.Broadcast("order:status", map[string]interface{}{
			"orderId": o.ID,
			"domain":  o.Domain,
			"from":    from,
			"to":      status,
		})
	}
	return nil
}

// normalizeDomain lowercases/trims and runs the syntax check
func (s *Service) normalizeDomain(domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	normalized, err := domainutil.Normalize(domain)
	if err != nil {
		return "", &ValidationError{Reason: "❌ 域名格式错误，请检查后重试。"}
	}
	return normalized, nil
}

// consumeQuota decrements and persists the user's quota counter
func (s *Service) consumeQuota(user *model.TgUser) {
	if !s.quota.Consume(user) {
		return
	}
	if err := s.repo.UpdateUser(user, map[string]interface{}{"apply_quota": user.ApplyQuota}); err != nil {
		logrus.WithError(err).WithField("tgUserId", user.ID).Error("persist quota failed")
	}
}

// setPending arms the single-slot pending action on the user
func (s *Service) setPending(user *model.TgUser, pendingAction string, orderID int) error {
	if err := s.repo.UpdateUser(user, map[string]interface{}{
		"pending_action":   pendingAction,
		"pending_order_id": orderID,
	}); err != nil {
		return err
	}
	user.PendingAction = pendingAction
	user.PendingOrderID = orderID
	return nil
}

// clearPending releases the pending action slot
func (s *Service) clearPending(user *model.TgUser) error {
	return s.setPending(user, model.PendingActionNone, 0)
}

// lock takes the per-order transition lock, returning a release func
func (s *Service) lock(ctx context.Context, orderID int) (func(), error) {
	if s.locks == nil {
		return func() {}, nil
	}
	ok, err := s.locks.Acquire(ctx, orderID)
	if err != nil {
		// Lock backend trouble must not brick issuance; log and continue
		logrus.WithError(err).WithField("orderId", orderID).Warn("order lock acquire failed")
		return func() {}, nil
	}
	if !ok {
		return nil, &OrderBusyError{OrderID: orderID}
	}
	return func() { s.locks.Release(ctx, orderID) }, nil
}

// audit writes one best-effort audit entry
func (s *Service) audit(userID int, actionTag, detail string) {
	if err := s.repo.AppendLog(userID, actionTag, detail); err != nil {
		logrus.WithError(err).WithField("action", actionTag).Warn("append audit log failed")
	}
}
