package users

import (
	"errors"
	"fmt"

	"tg_certbot/internal/httpx"
	"tg_certbot/internal/model"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ListRequest represents list users request
type ListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"pageSize"`
	Username string `form:"username"`
	Role     string `form:"role"`
}

// QuotaRequest represents the quota adjustment request
type QuotaRequest struct {
	TgUserID   int `json:"tgUserId" binding:"required"`
	ApplyQuota int `json:"applyQuota"`
}

// Handler handles the Telegram users API
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new users handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// List handles GET /api/v1/users
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

	query := h.db.Model(&model.TgUser{})
	if req.Username != "" {
		query = query.Where("username LIKE ?", "%"+req.Username+"%")
	}
	if req.Role != "" {
		query = query.Where("role = ?", req.Role)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to count users", err))
		return
	}

	var users []model.TgUser
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("id DESC").Offset(offset).Limit(req.PageSize).Find(&users).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query users", err))
		return
	}

	httpx.OKItems(c, users, total, req.Page, req.PageSize)
}

// UpdateQuota handles POST /api/v1/users/quota
func (h *Handler) UpdateQuota(c *gin.Context) {
	var req QuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}
	if req.ApplyQuota < 0 {
		httpx.FailErr(c, httpx.ErrParamIllegal("applyQuota must not be negative"))
		return
	}

	var user model.TgUser
	if err := h.db.First(&user, req.TgUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("user not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to query user", err))
		return
	}

	old := user.ApplyQuota
	if err := h.db.Model(&user).Update("apply_quota", req.ApplyQuota).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to update quota", err))
		return
	}

	// Audit the adjustment with the operator identity
	operator, _ := c.Get("username")
	entry := model.ActionLog{
		TgUserID: user.ID,
		Action:   "admin_quota_change",
		Detail:   fmt.Sprintf("by %v: %d -> %d", operator, old, req.ApplyQuota),
	}
	if err := h.db.Create(&entry).Error; err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to write action log", err))
		return
	}

	user.ApplyQuota = req.ApplyQuota
	httpx.OK(c, user)
}
