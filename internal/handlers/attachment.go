package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/glog"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/services"
)

type AttachmentHandler struct {
	links *services.LinkRegistry
}

func NewAttachmentHandler(links *services.LinkRegistry) *AttachmentHandler {
	return &AttachmentHandler{links: links}
}

// target reads a (linkable_type, linkable_id) pair from get.
func target(get func(key string, def ...string) string) (models.LinkableType, uint, error) {
	t := models.LinkableType(get("linkable_type"))
	if !t.Valid() {
		return "", 0, apperr.Validation("unknown linkable type %q", t)
	}
	id, err := strconv.ParseUint(get("linkable_id"), 10, 64)
	if err != nil || id == 0 {
		return "", 0, apperr.Validation("invalid linkable_id")
	}
	return t, uint(id), nil
}

// Upload stores a multipart "file" against linkable_type/linkable_id
func (h *AttachmentHandler) Upload(c *fiber.Ctx) error {
	t, id, err := target(c.FormValue)
	if err != nil {
		return fail(c, err)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, err)
	}
	defer f.Close()

	userID := middleware.GetCurrentUserID(c)
	att, err := h.links.Attach(c.UserContext(), t, id, fh.Filename, f, &userID)
	if err != nil {
		return fail(c, err)
	}
	glog.Infof("Attachments: %s stored for %s %d", att.Filename, t, id)
	return created(c, att)
}

// List returns the attachments of one entity
func (h *AttachmentHandler) List(c *fiber.Ctx) error {
	t, id, err := target(c.Query)
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.links.AttachmentsFor(c.UserContext(), t, id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// Download streams the stored file under its original name
func (h *AttachmentHandler) Download(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	att, f, err := h.links.OpenAttachment(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	c.Attachment(att.Filename)
	if att.ContentType != "" {
		c.Set(fiber.HeaderContentType, att.ContentType)
	}
	// fasthttp closes f once the body is written
	return c.SendStream(f, int(att.Size))
}

// Delete removes an attachment and its file
func (h *AttachmentHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.links.Detach(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return done(c, "Attachment deleted")
}

// CreateComplianceLink ties a framework control to an entity
func (h *AttachmentHandler) CreateComplianceLink(c *fiber.Ctx) error {
	var req struct {
		FrameworkControlID uint                `json:"framework_control_id"`
		LinkableType       models.LinkableType `json:"linkable_type"`
		LinkableID         uint                `json:"linkable_id"`
		Description        string              `json:"description"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.FrameworkControlID == 0 {
		return badRequest(c, "framework_control_id is required")
	}
	if !req.LinkableType.Valid() {
		return fail(c, apperr.Validation("unknown linkable type %q", req.LinkableType))
	}
	link, err := h.links.CreateComplianceLink(c.UserContext(), req.FrameworkControlID, req.LinkableType, req.LinkableID, req.Description)
	if err != nil {
		return fail(c, err)
	}
	return created(c, link)
}

// ComplianceLinks lists the controls linked to one entity
func (h *AttachmentHandler) ComplianceLinks(c *fiber.Ctx) error {
	t, id, err := target(c.Query)
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.links.ComplianceLinksFor(c.UserContext(), t, id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// ControlLinks lists the entities linked to one framework control
func (h *AttachmentHandler) ControlLinks(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.links.LinksForControl(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// DeleteComplianceLink removes one compliance link
func (h *AttachmentHandler) DeleteComplianceLink(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.links.DeleteComplianceLink(c.UserContext(), id); err != nil {
		return fail(c, err)
	}
	return done(c, "Compliance link deleted")
}
