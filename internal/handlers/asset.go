package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/services"
)

type AssetHandler struct {
	assets    *services.AssetService
	disposals *services.DisposalService
	software  *services.SoftwareService
}

func NewAssetHandler(assets *services.AssetService, disposals *services.DisposalService, software *services.SoftwareService) *AssetHandler {
	return &AssetHandler{assets: assets, disposals: disposals, software: software}
}

type itemRequest struct {
	services.ItemInput
	PurchaseDate *Date `json:"purchase_date"`
}

func (r *itemRequest) input() services.ItemInput {
	in := r.ItemInput
	in.PurchaseDate = r.PurchaseDate.Ptr()
	return in
}

type checkoutRequest struct {
	UserID uint   `json:"user_id"`
	Notes  string `json:"notes"`
}

func actor(c *fiber.Ctx) *uint {
	id := middleware.GetCurrentUserID(c)
	if id == 0 {
		return nil
	}
	return &id
}

// CreateAsset creates an asset
func (h *AssetHandler) CreateAsset(c *fiber.Ctx) error {
	var req itemRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	a, err := h.assets.CreateAsset(c.UserContext(), req.input())
	if err != nil {
		return fail(c, err)
	}
	return created(c, a)
}

// UpdateAsset edits an asset and records each changed field
func (h *AssetHandler) UpdateAsset(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req itemRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	a, err := h.assets.UpdateAsset(c.UserContext(), id, req.input(), actor(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, a)
}

func (h *AssetHandler) AssetHistory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.assets.AssetHistory(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

func (h *AssetHandler) AssetAssignments(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.assets.AssetAssignments(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// CheckOutAsset assigns an asset to a user
func (h *AssetHandler) CheckOutAsset(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req checkoutRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.UserID == 0 {
		return badRequest(c, "user_id is required")
	}
	asg, err := h.assets.CheckOutAsset(c.UserContext(), id, req.UserID, req.Notes, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return created(c, asg)
}

// CheckInAsset closes the open assignment of an asset
func (h *AssetHandler) CheckInAsset(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	asg, err := h.assets.CheckInAsset(c.UserContext(), id, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, asg)
}

func (h *AssetHandler) CreatePeripheral(c *fiber.Ctx) error {
	var req itemRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	p, err := h.assets.CreatePeripheral(c.UserContext(), req.input())
	if err != nil {
		return fail(c, err)
	}
	return created(c, p)
}

func (h *AssetHandler) UpdatePeripheral(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req itemRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	p, err := h.assets.UpdatePeripheral(c.UserContext(), id, req.input(), actor(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, p)
}

func (h *AssetHandler) CheckOutPeripheral(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req checkoutRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	if req.UserID == 0 {
		return badRequest(c, "user_id is required")
	}
	asg, err := h.assets.CheckOutPeripheral(c.UserContext(), id, req.UserID, req.Notes, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return created(c, asg)
}

func (h *AssetHandler) CheckInPeripheral(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	asg, err := h.assets.CheckInPeripheral(c.UserContext(), id, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, asg)
}

// ExpiringWarranties lists items whose warranty ends within ?days=
// (default 30).
func (h *AssetHandler) ExpiringWarranties(c *fiber.Ctx) error {
	rows, err := h.assets.WarrantiesExpiring(c.UserContext(), c.QueryInt("days", 30))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// RecordDisposal creates or updates the disposal record of one item
func (h *AssetHandler) RecordDisposal(c *fiber.Ctx) error {
	var req struct {
		services.DisposalInput
		DisposalDate *Date `json:"disposal_date"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	in := req.DisposalInput
	in.DisposalDate = req.DisposalDate.Ptr()
	rec, err := h.disposals.Record(c.UserContext(), in, actor(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rec)
}

func (h *AssetHandler) DisposalHistory(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	rows, err := h.disposals.History(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, rows)
}

// CreateSoftware registers a software product
func (h *AssetHandler) CreateSoftware(c *fiber.Ctx) error {
	var req models.Software
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	req.ID = 0
	sw, err := h.software.Create(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return created(c, sw)
}

// GetSoftware returns a software product with its resolved owner
func (h *AssetHandler) GetSoftware(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	v, err := h.software.Get(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, v)
}

// SetSoftwareOwner assigns a user or group as owner
func (h *AssetHandler) SetSoftwareOwner(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req struct {
		OwnerType models.OwnerType `json:"owner_type"`
		OwnerID   *uint            `json:"owner_id"`
	}
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	v, err := h.software.SetOwner(c.UserContext(), id, req.OwnerType, req.OwnerID)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, v)
}
