package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/services"
)

type PolicyHandler struct {
	policies *services.PolicyService
}

func NewPolicyHandler(policies *services.PolicyService) *PolicyHandler {
	return &PolicyHandler{policies: policies}
}

// Required lists every user who must acknowledge a version
func (h *PolicyHandler) Required(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	users, err := h.policies.RequiredUsers(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, users)
}

// Pending lists required users who have not acknowledged yet
func (h *PolicyHandler) Pending(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	users, err := h.policies.PendingUsers(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, users)
}

// Acknowledge records the current user's acknowledgement. Repeating it
// returns the existing row with 200.
func (h *PolicyHandler) Acknowledge(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ack, isNew, err := h.policies.Acknowledge(c.UserContext(), id, middleware.GetCurrentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	if isNew {
		return created(c, ack)
	}
	return ok(c, ack)
}

// CreateVersion adds a draft version to a policy
func (h *PolicyHandler) CreateVersion(c *fiber.Ctx) error {
	policyID, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		VersionNumber string `json:"version_number"`
		Content       string `json:"content"`
		EffectiveDate Date   `json:"effective_date"`
		UserIDs       []uint `json:"user_ids"`
		GroupIDs      []uint `json:"group_ids"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	pv, err := h.policies.CreateVersion(c.UserContext(), policyID, services.VersionInput{
		VersionNumber: req.VersionNumber,
		Content:       req.Content,
		EffectiveDate: req.EffectiveDate.Time,
		UserIDs:       req.UserIDs,
		GroupIDs:      req.GroupIDs,
	})
	if err != nil {
		return fail(c, err)
	}
	return created(c, pv)
}

// SetAudience replaces the users and groups targeted by a version
func (h *PolicyHandler) SetAudience(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		UserIDs  []uint `json:"user_ids"`
		GroupIDs []uint `json:"group_ids"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	pv, err := h.policies.SetAudience(c.UserContext(), id, req.UserIDs, req.GroupIDs)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, pv)
}

// Activate makes a version the policy's single active version
func (h *PolicyHandler) Activate(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	pv, err := h.policies.ActivateVersion(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Policy version activated",
		"data":    pv,
	})
}

// DeleteVersion removes a version with its attachments and links
func (h *PolicyHandler) DeleteVersion(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.policies.DeleteVersion(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return done(c, "Policy version deleted")
}

// ActiveVersion returns the active version of a policy
func (h *PolicyHandler) ActiveVersion(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	pv, err := h.policies.ActiveVersion(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, pv)
}

// Outstanding summarises acknowledgement progress of active versions
func (h *PolicyHandler) Outstanding(c *fiber.Ctx) error {
	rows, err := h.policies.OutstandingSummary(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}
