package model

// AdminUserStatus represents admin user status
type AdminUserStatus string

const (
	AdminUserStatusActive   AdminUserStatus = "active"
	AdminUserStatusInactive AdminUserStatus = "inactive"
)

// AdminUser represents an operator account for the admin API
type AdminUser struct {
	BaseModel
	Username     string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string          `gorm:"type:varchar(255);not null" json:"-"`
	Role         string          `gorm:"type:varchar(32);default:'admin'" json:"role"`
	Status       AdminUserStatus `gorm:"type:enum('active','inactive');default:'active'" json:"status"`
}

// TableName specifies the table name for AdminUser
func (AdminUser) TableName() string {
	return "admin_users"
}
