package model

// User roles
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Pending actions
const (
	PendingActionNone        = ""
	PendingActionAwaitDomain = "await_domain"
)

// TgUser represents a Telegram user bound to the bot
type TgUser struct {
	BaseModel
	TgID           int64  `gorm:"column:tg_id;uniqueIndex;not null" json:"tgId"`
	Username       string `gorm:"type:varchar(64)" json:"username"`
	Role           string `gorm:"type:varchar(32);default:'member'" json:"role"`
	ApplyQuota     int    `gorm:"column:apply_quota;not null;default:0" json:"applyQuota"`                       // Remaining issuance attempts
	PendingAction  string `gorm:"column:pending_action;type:varchar(32);default:''" json:"pendingAction"`        // ''|await_domain
	PendingOrderID int    `gorm:"column:pending_order_id;not null;default:0" json:"pendingOrderId"`              // Order awaiting domain input, 0 = none
}

// TableName specifies the table name for TgUser
func (TgUser) TableName() string {
	return "tg_users"
}

// IsPrivileged reports whether the user bypasses the apply quota
func (u *TgUser) IsPrivileged() bool {
	return u.Role == RoleOwner || u.Role == RoleAdmin
}
