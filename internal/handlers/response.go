package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/glog"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
)

// statusFor maps an error kind to the HTTP status returned to clients.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindUniqueness, apperr.KindState:
		return fiber.StatusConflict
	case apperr.KindAuthorization:
		return fiber.StatusForbidden
	case apperr.KindIntegration:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// fail writes err in the standard error envelope. Errors without a kind
// are logged and reported as internal errors.
func fail(c *fiber.Ctx, err error) error {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	msg := apperr.Message(err)
	if kind == "" {
		glog.Errorf("%s %s: %v", c.Method(), c.Path(), err)
		msg = "Internal server error"
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

func ok(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func done(c *fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{
		"success": true,
		"message": message,
	})
}

// paramID reads a positive integer route parameter.
func paramID(c *fiber.Ctx, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.Validation("invalid %s", name)
	}
	return uint(v), nil
}

// queryDate reads an optional YYYY-MM-DD query parameter.
func queryDate(c *fiber.Ctx, name string, def time.Time) (time.Time, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	d, err := calendar.ParseDate(v)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid %s: %v", name, err)
	}
	return d, nil
}

// Date accepts "YYYY-MM-DD" in JSON bodies.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		d.Time = time.Time{}
		return nil
	}
	s, err := strconv.Unquote(string(b))
	if err != nil {
		return apperr.Validation("dates must be strings")
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := calendar.ParseDate(s)
	if err != nil {
		return apperr.Validation("invalid date %q", s)
	}
	d.Time = t
	return nil
}

// Ptr returns a pointer to the date, or nil when unset.
func (d *Date) Ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

// parseBody decodes the request body, mapping decode failures to a
// validation error.
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		if apperr.KindOf(err) != "" {
			return err
		}
		return apperr.Validation("Invalid request body")
	}
	return nil
}
