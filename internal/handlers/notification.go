package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/glog"

	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/services"
)

// NotificationHandler serves the renewal notifier settings and controls
type NotificationHandler struct {
	settings *services.NotificationSettingsService
	notifier *services.DailyNotificationService
	mailer   services.Mailer
	clock    calendar.Clock
}

func NewNotificationHandler(settings *services.NotificationSettingsService, notifier *services.DailyNotificationService, mailer services.Mailer, clock calendar.Clock) *NotificationHandler {
	return &NotificationHandler{settings: settings, notifier: notifier, mailer: mailer, clock: clock}
}

// GetSettings returns the notification settings, creating defaults on
// first read.
func (h *NotificationHandler) GetSettings(c *fiber.Ctx) error {
	s, err := h.settings.Get(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, s)
}

// UpdateSettings replaces the notification settings
func (h *NotificationHandler) UpdateSettings(c *fiber.Ctx) error {
	var req services.NotificationSettingsInput
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	s, err := h.settings.Update(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Notification settings updated",
		"data":    s,
	})
}

// RunNow runs the daily renewal notification immediately
func (h *NotificationHandler) RunNow(c *fiber.Ctx) error {
	res, err := h.notifier.RunOnce(c.UserContext(), calendar.Today(h.clock))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, res)
}

// Logs lists recent dispatch attempts, newest first
func (h *NotificationHandler) Logs(c *fiber.Ctx) error {
	rows, err := h.notifier.NotificationLogs(c.UserContext(), c.QueryInt("limit", 50))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// TestEmail sends a test message through the configured SMTP server
func (h *NotificationHandler) TestEmail(c *fiber.Ctx) error {
	var req struct {
		To string `json:"test_email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}
	to := strings.TrimSpace(req.To)
	if to == "" {
		return badRequest(c, "test_email is required")
	}
	if h.mailer == nil || !h.mailer.Enabled() {
		return badRequest(c, "SMTP is not configured")
	}
	if err := h.mailer.Send([]string{to}, "Test email", "This is a test email from the renewal notifier."); err != nil {
		glog.Warningf("Notifications: test email to %s failed: %v", to, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"message": "Failed to send test email: " + err.Error(),
		})
	}
	return done(c, "Test email sent to "+to)
}
