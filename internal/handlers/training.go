package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/services"
)

type TrainingHandler struct {
	training *services.TrainingService
}

func NewTrainingHandler(training *services.TrainingService) *TrainingHandler {
	return &TrainingHandler{training: training}
}

// Assign assigns a course to a user
func (h *TrainingHandler) Assign(c *fiber.Ctx) error {
	courseID, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		UserID  uint `json:"user_id"`
		GroupID uint `json:"group_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}

	switch {
	case req.UserID != 0 && req.GroupID != 0:
		return badRequest(c, "Provide either user_id or group_id, not both")
	case req.GroupID != 0:
		n, err := h.training.AssignGroup(c.UserContext(), courseID, req.GroupID)
		if err != nil {
			return fail(c, err)
		}
		return ok(c, fiber.Map{"assigned": n})
	case req.UserID != 0:
		a, isNew, err := h.training.Assign(c.UserContext(), courseID, req.UserID)
		if err != nil {
			return fail(c, err)
		}
		if isNew {
			return created(c, a)
		}
		return ok(c, a)
	}
	return badRequest(c, "user_id or group_id is required")
}

// Complete records the completion of an assignment. Users complete their
// own assignments for today; editors may complete any assignment and
// back-date it. A multipart "certificate" file is attached when present.
func (h *TrainingHandler) Complete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	ctx := c.UserContext()
	user := middleware.GetCurrentUser(c)

	a, err := h.training.Assignment(ctx, id)
	if err != nil {
		return fail(c, err)
	}
	if a.UserID != user.ID && !user.CanManage() {
		return fail(c, apperr.Authorization("you can only complete your own training"))
	}

	in := services.CompletionInput{RecordedBy: &user.ID}
	var dateValue string
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		dateValue = c.FormValue("completion_date")
		in.Notes = c.FormValue("notes")
		if fh, err := c.FormFile("certificate"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return fail(c, err)
			}
			defer f.Close()
			in.Attachment = &services.Upload{Filename: fh.Filename, Body: f}
		}
	} else if len(c.Body()) > 0 {
		var req struct {
			CompletionDate string `json:"completion_date"`
			Notes          string `json:"notes"`
		}
		if err := parseBody(c, &req); err != nil {
			return fail(c, err)
		}
		dateValue, in.Notes = req.CompletionDate, req.Notes
	}

	if dateValue != "" {
		if !user.CanManage() {
			return fail(c, apperr.Authorization("only editors can back-date a completion"))
		}
		d, err := calendar.ParseDate(dateValue)
		if err != nil {
			return fail(c, apperr.Validation("%v", err))
		}
		in.Date = &d
	}

	comp, isNew, err := h.training.Complete(ctx, id, in)
	if err != nil {
		return fail(c, err)
	}
	if isNew {
		return created(c, comp)
	}
	return ok(c, comp)
}

// Mine lists the current user's assignments
func (h *TrainingHandler) Mine(c *fiber.Ctx) error {
	rows, err := h.training.ForUser(c.UserContext(), middleware.GetCurrentUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// Overdue lists incomplete assignments past their due date
func (h *TrainingHandler) Overdue(c *fiber.Ctx) error {
	rows, err := h.training.Overdue(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}
