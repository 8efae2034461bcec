package order

import (
	"errors"

	"tg_certbot/internal/model"

	"gorm.io/gorm"
)

// GormRepository implements Repository on MySQL via gorm
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates the gorm-backed repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) FindUserByTgID(tgID int64) (*model.TgUser, error) {
	var u model.TgUser
	err := r.db.Where("tg_id = ?", tgID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormRepository) FindUserByID(id int) (*model.TgUser, error) {
	var u model.TgUser
	err := r.db.First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *GormRepository) CreateUser(u *model.TgUser) error {
	return r.db.Create(u).Error
}

func (r *GormRepository) UpdateUser(u *model.TgUser, fields map[string]interface{}) error {
	return r.db.Model(u).Updates(fields).Error
}

func (r *GormRepository) FindOrderByID(id, userID int) (*model.CertOrder, error) {
	var o model.CertOrder
	err := r.db.Where("id = ? AND tg_user_id = ?", id, userID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepository) FindActiveOrderByDomain(userID int, domain string) (*model.CertOrder, error) {
	var o model.CertOrder
	err := r.db.
		Where("tg_user_id = ? AND domain = ? AND status <> ?", userID, domain, model.OrderStatusIssued).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepository) FindOrderByDomain(userID int, domain string) (*model.CertOrder, error) {
	var o model.CertOrder
	err := r.db.Where("tg_user_id = ? AND domain = ?", userID, domain).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepository) FindAnyOrderByDomain(domain string) (*model.CertOrder, error) {
	var o model.CertOrder
	err := r.db.Where("domain = ?", domain).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepository) FindBlankOrder(userID int) (*model.CertOrder, error) {
	var o model.CertOrder
	err := r.db.
		Where("tg_user_id = ? AND status = ? AND domain = ''", userID, model.OrderStatusCreated).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *GormRepository) ListOrdersByUser(userID int) ([]model.CertOrder, error) {
	var orders []model.CertOrder
	err := r.db.Where("tg_user_id = ?", userID).Order("id DESC").Find(&orders).Error
	return orders, err
}

func (r *GormRepository) CreateOrder(o *model.CertOrder) error {
	return r.db.Create(o).Error
}

func (r *GormRepository) UpdateOrder(o *model.CertOrder, fields map[string]interface{}) error {
	return r.db.Model(o).Updates(fields).Error
}

func (r *GormRepository) AppendLog(userID int, actionTag, detail string) error {
	return r.db.Create(&model.ActionLog{
		TgUserID: userID,
		Action:   actionTag,
		Detail:   detail,
	}).Error
}
