package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/services"
)

type PurchaseHandler struct {
	purchases *services.PurchaseService
	budgets   *services.BudgetService
}

func NewPurchaseHandler(purchases *services.PurchaseService, budgets *services.BudgetService) *PurchaseHandler {
	return &PurchaseHandler{purchases: purchases, budgets: budgets}
}

// Cost returns the cost breakdown of a purchase
func (h *PurchaseHandler) Cost(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	b, err := h.purchases.Breakdown(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, b)
}

// Validate freezes the calculated cost as the validated cost
func (h *PurchaseHandler) Validate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	p, err := h.purchases.Validate(c.UserContext(), id, middleware.GetCurrentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Purchase cost validated",
		"data":    p,
	})
}

// Unvalidate clears the validated cost
func (h *PurchaseHandler) Unvalidate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	p, err := h.purchases.Unvalidate(c.UserContext(), id, middleware.GetCurrentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Purchase cost unvalidated",
		"data":    p,
	})
}

// History lists validate/unvalidate transitions of a purchase
func (h *PurchaseHandler) History(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.purchases.History(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// BudgetSummary returns spent and remaining amounts of a budget
func (h *PurchaseHandler) BudgetSummary(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	s, err := h.budgets.Summary(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, s)
}
