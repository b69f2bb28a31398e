package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/opsledger/backend/internal/services"
)

type GRCHandler struct {
	risks      *services.RiskService
	frameworks *services.FrameworkService
	incidents  *services.IncidentService
}

func NewGRCHandler(risks *services.RiskService, frameworks *services.FrameworkService, incidents *services.IncidentService) *GRCHandler {
	return &GRCHandler{risks: risks, frameworks: frameworks, incidents: incidents}
}

// Risks returns the register with derived scores, worst residual first
func (h *GRCHandler) Risks(c *fiber.Ctx) error {
	rows, err := h.risks.Register(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    rows,
		"meta":    fiber.Map{"total": len(rows)},
	})
}

// Risk returns one risk with its scores
func (h *GRCHandler) Risk(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	r, err := h.risks.Assess(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, r)
}

func (h *GRCHandler) CreateRisk(c *fiber.Ctx) error {
	var req services.RiskInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	r, err := h.risks.Create(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, r)
}

// CreateFramework adds a custom framework
func (h *GRCHandler) CreateFramework(c *fiber.Ctx) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	f, err := h.frameworks.Create(c.UserContext(), req.Name, req.Description, false)
	if err != nil {
		return fail(c, err)
	}
	return created(c, f)
}

func (h *GRCHandler) AddControl(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		ControlID   string `json:"control_id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	ctl, err := h.frameworks.AddControl(c.UserContext(), id, req.ControlID, req.Name, req.Description)
	if err != nil {
		return fail(c, err)
	}
	return created(c, ctl)
}

// SetFrameworkActive enables or disables a framework
func (h *GRCHandler) SetFrameworkActive(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	f, err := h.frameworks.SetActive(c.UserContext(), id, req.Active)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, f)
}

// Coverage reports how many controls of a framework have evidence
func (h *GRCHandler) Coverage(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	cov, err := h.frameworks.Coverage(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, cov)
}

// ReportIncident opens a security incident reported by the caller
func (h *GRCHandler) ReportIncident(c *fiber.Ctx) error {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Severity    string `json:"severity"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	inc, err := h.incidents.Report(c.UserContext(), req.Title, req.Description, req.Severity, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return created(c, inc)
}

func (h *GRCHandler) ResolveIncident(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	inc, err := h.incidents.Resolve(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, inc)
}

// AddTimelineEvent appends to an incident timeline. event_time is
// RFC 3339 and defaults to now.
func (h *GRCHandler) AddTimelineEvent(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		EventTime   *time.Time     `json:"event_time"`
		Description string         `json:"description"`
		Metadata    map[string]any `json:"metadata"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	var at time.Time
	if req.EventTime != nil {
		at = *req.EventTime
	}
	ev, err := h.incidents.AddTimelineEvent(c.UserContext(), id, at, req.Description, req.Metadata)
	if err != nil {
		return fail(c, err)
	}
	return created(c, ev)
}

func (h *GRCHandler) Timeline(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.incidents.Timeline(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// UpsertReview writes the post-incident review
func (h *GRCHandler) UpsertReview(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		services.ReviewInput
		ReviewDate *Date `json:"review_date"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	in := req.ReviewInput
	in.ReviewDate = req.ReviewDate.Ptr()
	rev, err := h.incidents.UpsertReview(c.UserContext(), id, in)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rev)
}
