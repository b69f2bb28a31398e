package handlers

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/services"
)

type UserHandler struct {
	db    *gorm.DB
	users *services.UserService
}

func NewUserHandler(db *gorm.DB, users *services.UserService) *UserHandler {
	return &UserHandler{db: db, users: users}
}

// List returns all users with pagination
func (h *UserHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 25)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 25
	}
	offset := (page - 1) * limit

	query := h.db.WithContext(c.UserContext()).Model(&models.User{})
	if c.QueryBool("archived", false) {
		query = query.Where("is_archived = ?", true)
	} else {
		query = query.Where("is_archived = ?", false)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("name LIKE ? OR email LIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var total int64
	query.Count(&total)

	var users []models.User
	if err := query.Order("name, id").Offset(offset).Limit(limit).Find(&users).Error; err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    users,
		"meta": fiber.Map{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": (total + int64(limit) - 1) / int64(limit),
		},
	})
}

// Create creates a user
func (h *UserHandler) Create(c *fiber.Ctx) error {
	var req services.UserInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	u, err := h.users.Create(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, u)
}

// Archive disables a user. Archived users cannot log in.
func (h *UserHandler) Archive(c *fiber.Ctx) error {
	return h.setArchived(c, true)
}

func (h *UserHandler) Unarchive(c *fiber.Ctx) error {
	return h.setArchived(c, false)
}

func (h *UserHandler) setArchived(c *fiber.Ctx, archived bool) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.users.SetArchived(c.UserContext(), id, archived); err != nil {
		return fail(c, err)
	}
	if archived {
		return done(c, "User archived")
	}
	return done(c, "User restored")
}

// CreateGroup creates a group with its members
func (h *UserHandler) CreateGroup(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		UserIDs     []uint `json:"user_ids"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	g, err := h.users.CreateGroup(c.UserContext(), req.Name, req.Description, req.UserIDs)
	if err != nil {
		return fail(c, err)
	}
	return created(c, g)
}
