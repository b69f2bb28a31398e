package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/services"
)

type SubscriptionHandler struct {
	subs  *services.SubscriptionService
	clock calendar.Clock
}

func NewSubscriptionHandler(subs *services.SubscriptionService, clock calendar.Clock) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs, clock: clock}
}

// subscriptionRequest shadows the date field so bodies can carry
// YYYY-MM-DD.
type subscriptionRequest struct {
	services.SubscriptionInput
	RenewalDate *Date `json:"renewal_date"`
}

func (r *subscriptionRequest) input() services.SubscriptionInput {
	in := r.SubscriptionInput
	in.RenewalDate = r.RenewalDate.Ptr()
	return in
}

// Get returns a subscription with its relations
func (h *SubscriptionHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	sub, err := h.subs.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, sub)
}

// Create creates a subscription
func (h *SubscriptionHandler) Create(c *fiber.Ctx) error {
	var req subscriptionRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	sub, err := h.subs.Create(c.UserContext(), req.input())
	if err != nil {
		return fail(c, err)
	}
	return created(c, sub)
}

// Update edits a subscription
func (h *SubscriptionHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req subscriptionRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	sub, err := h.subs.Update(c.UserContext(), id, req.input())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, sub)
}

// Archive hides a subscription from renewal listings
func (h *SubscriptionHandler) Archive(c *fiber.Ctx) error {
	return h.setArchived(c, true)
}

func (h *SubscriptionHandler) Unarchive(c *fiber.Ctx) error {
	return h.setArchived(c, false)
}

func (h *SubscriptionHandler) setArchived(c *fiber.Ctx, archived bool) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.subs.SetArchived(c.UserContext(), id, archived); err != nil {
		return fail(c, err)
	}
	if archived {
		return done(c, "Subscription archived")
	}
	return done(c, "Subscription restored")
}

// CostHistory lists recorded cost changes, oldest first
func (h *SubscriptionHandler) CostHistory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.subs.CostHistory(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// Renewals lists renewal dates between start and end. The range defaults
// to the year starting today.
func (h *SubscriptionHandler) Renewals(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	today := calendar.Today(h.clock)
	start, err := queryDate(c, "start", today)
	if err != nil {
		return fail(c, err)
	}
	end, err := queryDate(c, "end", calendar.AddYears(start, 1))
	if err != nil {
		return fail(c, err)
	}
	dates, err := h.subs.Renewals(c.UserContext(), id, start, end)
	if err != nil {
		return fail(c, err)
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, calendar.Format(d))
	}
	return ok(c, out)
}

// NextRenewal returns the next renewal date and the days until it
func (h *SubscriptionHandler) NextRenewal(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	next, days, err := h.subs.NextRenewal(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.Map{
		"renewal_date": calendar.Format(next),
		"days_until":   days,
	})
}

// Upcoming lists renewals of all active subscriptions within ?days=
// (default 30).
func (h *SubscriptionHandler) Upcoming(c *fiber.Ctx) error {
	window := c.QueryInt("days", 30)
	rows, err := h.subs.UpcomingRenewals(c.UserContext(), window)
	if err != nil {
		return fail(c, err)
	}
	total := 0.0
	for _, r := range rows {
		total += r.CostEUR
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    rows,
		"meta": fiber.Map{
			"days":           window,
			"total":          len(rows),
			"total_cost_eur": total,
		},
	})
}

// ExpiringPaymentMethods lists payment methods expiring within ?days=
// (default 60).
func (h *SubscriptionHandler) ExpiringPaymentMethods(c *fiber.Ctx) error {
	methods, err := h.subs.ExpiringPaymentMethods(c.UserContext(), c.QueryInt("days", 60))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, methods)
}
