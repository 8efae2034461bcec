package model

import "gorm.io/datatypes"

// CertOrder represents a certificate issuance order driven through chat
type CertOrder struct {
	BaseModel
	TgUserID      int            `gorm:"column:tg_user_id;not null;index" json:"tgUserId"`
	Domain        string         `gorm:"type:varchar(255);not null;default:'';index" json:"domain"` // Empty until submitted
	CertType      string         `gorm:"column:cert_type;type:varchar(20);default:''" json:"certType"` // ''|root|wildcard
	Status        string         `gorm:"type:varchar(20);not null;default:'created';index" json:"status"` // created|dns_wait|dns_verified|issued
	TxtHost       string         `gorm:"column:txt_host;type:varchar(255);default:''" json:"txtHost"`
	TxtValue      string         `gorm:"column:txt_value;type:varchar(255);default:''" json:"txtValue"`
	AcmeDomains   datatypes.JSON `gorm:"column:acme_domains_json;type:json" json:"acmeDomains"` // Exact domain set passed to acme.sh
	AcmeOutput    string         `gorm:"column:acme_output;type:text" json:"acmeOutput"`        // Last tool output, diagnostic only
	CertPath      string         `gorm:"column:cert_path;type:varchar(255);default:''" json:"certPath"`
	KeyPath       string         `gorm:"column:key_path;type:varchar(255);default:''" json:"keyPath"`
	FullchainPath string         `gorm:"column:fullchain_path;type:varchar(255);default:''" json:"fullchainPath"`
}

// TableName specifies the table name for CertOrder
func (CertOrder) TableName() string {
	return "cert_orders"
}

// CertOrder status constants
const (
	OrderStatusCreated     = "created"
	OrderStatusDNSWait     = "dns_wait"
	OrderStatusDNSVerified = "dns_verified"
	OrderStatusIssued      = "issued"
)

// Certificate types
const (
	CertTypeRoot     = "root"
	CertTypeWildcard = "wildcard"
)

// AcmeDomainSet returns the domain set the certificate must cover.
// Root: [domain]; wildcard: [domain, *.domain].
func (o *CertOrder) AcmeDomainSet() []string {
	if o.CertType == CertTypeWildcard {
		return []string{o.Domain, "*." + o.Domain}
	}
	return []string{o.Domain}
}
