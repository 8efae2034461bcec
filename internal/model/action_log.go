package model

import "time"

// ActionLog is the append-only audit trail. Entries are written as a side
// effect of every state transition and external tool invocation, and are
// never read back by the core.
type ActionLog struct {
	ID        int       `gorm:"primaryKey;autoIncrement" json:"id"`
	TgUserID  int       `gorm:"column:tg_user_id;not null;index" json:"tgUserId"`
	Action    string    `gorm:"type:varchar(64);not null" json:"action"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName specifies the table name for ActionLog
func (ActionLog) TableName() string {
	return "action_logs"
}

// Audit action constants
const (
	ActionAcmeIssueDryRun   = "acme_issue_dry_run"
	ActionAcmeRenew         = "acme_renew"
	ActionAcmeInstallCert   = "acme_install_cert"
	ActionOrderCreate       = "order_create"
	ActionOrderIssued       = "order_issued"
	ActionOrderStatusChange = "order_status_change"
)
