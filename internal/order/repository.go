package order

import "tg_certbot/internal/model"

// Repository is the persistence contract the state machine requires. Lookups
// return (nil, nil) when no record matches; updates take partial field maps.
type Repository interface {
	FindUserByTgID(tgID int64) (*model.TgUser, error)
	FindUserByID(id int) (*model.TgUser, error)
	CreateUser(u *model.TgUser) error
	UpdateUser(u *model.TgUser, fields map[string]interface{}) error

	FindOrderByID(id, userID int) (*model.CertOrder, error)
	// FindActiveOrderByDomain finds the user's order for domain with
	// status != issued (the duplicate-issuance guard).
	FindActiveOrderByDomain(userID int, domain string) (*model.CertOrder, error)
	FindOrderByDomain(userID int, domain string) (*model.CertOrder, error)
	FindAnyOrderByDomain(domain string) (*model.CertOrder, error)
	// FindBlankOrder finds the user's created-status order with no domain
	FindBlankOrder(userID int) (*model.CertOrder, error)
	ListOrdersByUser(userID int) ([]model.CertOrder, error)
	CreateOrder(o *model.CertOrder) error
	UpdateOrder(o *model.CertOrder, fields map[string]interface{}) error

	// AppendLog writes one audit entry; failures are the caller's choice
	// to tolerate (audit is best-effort, write-only).
	AppendLog(userID int, actionTag, detail string) error
}
