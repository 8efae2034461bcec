package orders

import (
	"errors"
	"strconv"

	"tg_certbot/internal/httpx"
	"tg_certbot/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListRequest represents list orders request
type ListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
	Domain   string `form:"domain"`
	Status   string `form:"status"`
	TgUserID int    `form:"tgUserId"`
}

// Handler handles the certificate orders API
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new orders handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List handles GET /api/v1/orders
func (h *Handler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	// Set defaults
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 1 {
		req.PageSize = 15
	}

	// Build query
	query := h.db.Model(&model.CertOrder{})

	// Domain filter (fuzzy)
	if req.Domain != "" {
		query = query.Where("domain LIKE ?", "%"+req.Domain+"%")
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.TgUserID > 0 {
		query = query.Where("tg_user_id = ?", req.TgUserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count orders", err))
		return
	}

	var orders []model.CertOrder
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("id DESC").Offset(offset).Limit(req.PageSize).Find(&orders).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query orders", err))
		return
	}

	httpx.OKItems(c, orders, total, req.Page, req.PageSize)
}

// Get handles GET /api/v1/orders/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid order id"))
		return
	}

	var o model.CertOrder
	if err := h.db.First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("order not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query order", err))
		return
	}

	// Attach the recent audit trail for this order's user
	var logs []model.ActionLog
	if err := h.db.Where("tg_user_id = ?", o.TgUserID).
		Order("id DESC").Limit(20).Find(&logs).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query action logs", err))
		return
	}

	httpx.OK(c, gin.H{
		"order": o,
		"logs":  logs,
	})
}
