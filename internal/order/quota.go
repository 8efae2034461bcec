package order

import "tg_certbot/internal/model"

// QuotaPolicy decides whether a user may consume an issuance attempt.
// Owners and admins bypass the counter entirely.
type QuotaPolicy struct{}

// HasQuota reports whether the user may start another issuance attempt
func (QuotaPolicy) HasQuota(u *model.TgUser) bool {
	if u.IsPrivileged() {
		return true
	}
	return u.ApplyQuota > 0
}

// Consume decrements the remaining attempts in memory. It never goes below
// zero; privileged users keep their counter untouched only when it is
// already zero (matching the no-op-on-empty rule).
func (QuotaPolicy) Consume(u *model.TgUser) bool {
	if u.ApplyQuota <= 0 {
		return false
	}
	u.ApplyQuota--
	return true
}

// ExhaustedError builds the role-aware quota failure
func (QuotaPolicy) ExhaustedError(u *model.TgUser) *QuotaExhaustedError {
	return &QuotaExhaustedError{
		Privileged: u.IsPrivileged(),
		Remaining:  u.ApplyQuota,
	}
}
