package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/models"
)

type AuditHandler struct {
	db *gorm.DB
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{db: db}
}

// List returns audit logs, newest first
func (h *AuditHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	query := h.db.WithContext(c.UserContext()).Model(&models.AuditLog{})
	if action := c.Query("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if entityType := c.Query("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
	}
	if userID := c.QueryInt("user_id", 0); userID > 0 {
		query = query.Where("user_id = ?", userID)
	}
	if from := c.Query("date_from"); from != "" {
		d, err := calendar.ParseDate(from)
		if err != nil {
			return fail(c, apperr.Validation("invalid date_from %q", from))
		}
		query = query.Where("created_at >= ?", d)
	}
	if to := c.Query("date_to"); to != "" {
		d, err := calendar.ParseDate(to)
		if err != nil {
			return fail(c, apperr.Validation("invalid date_to %q", to))
		}
		query = query.Where("created_at < ?", d.AddDate(0, 0, 1))
	}

	var total int64
	query.Count(&total)

	var logs []models.AuditLog
	if err := query.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&logs).Error; err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    logs,
		"meta": fiber.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// Get returns a single audit log entry
func (h *AuditHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var entry models.AuditLog
	if err := h.db.WithContext(c.UserContext()).Preload("User").First(&entry, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Log entry not found",
		})
	}
	return ok(c, entry)
}

// EntityTypes returns the entity types present in the log
func (h *AuditHandler) EntityTypes(c *fiber.Ctx) error {
	var types []string
	if err := h.db.WithContext(c.UserContext()).Model(&models.AuditLog{}).
		Distinct("entity_type").Order("entity_type").Pluck("entity_type", &types).Error; err != nil {
		return fail(c, err)
	}
	return ok(c, types)
}
