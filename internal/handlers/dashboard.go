package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/golang/glog"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/services"
)

type DashboardHandler struct {
	db  *gorm.DB
	svc *services.Services
}

func NewDashboardHandler(db *gorm.DB, svc *services.Services) *DashboardHandler {
	return &DashboardHandler{db: db, svc: svc}
}

// Stats returns dashboard statistics
func (h *DashboardHandler) Stats(c *fiber.Ctx) error {
	var stats struct {
		// Inventory
		Assets           int64 `json:"assets"`
		AssetsCheckedOut int64 `json:"assets_checked_out"`
		Peripherals      int64 `json:"peripherals"`
		Licenses         int64 `json:"licenses"`

		// Spend
		Subscriptions      int64 `json:"subscriptions"`
		Purchases          int64 `json:"purchases"`
		ValidatedPurchases int64 `json:"validated_purchases"`

		// Governance
		OpenIncidents  int64 `json:"open_incidents"`
		Risks          int64 `json:"risks"`
		ActivePolicies int64 `json:"active_policies"`
		Users          int64 `json:"users"`
	}

	db := h.db.WithContext(c.UserContext())
	db.Model(&models.Asset{}).Where("is_archived = ?", false).Count(&stats.Assets)
	db.Model(&models.AssetAssignment{}).Where("checked_in_date IS NULL").Count(&stats.AssetsCheckedOut)
	db.Model(&models.Peripheral{}).Where("is_archived = ?", false).Count(&stats.Peripherals)
	db.Model(&models.License{}).Where("is_archived = ?", false).Count(&stats.Licenses)
	db.Model(&models.Subscription{}).Where("is_archived = ?", false).Count(&stats.Subscriptions)
	db.Model(&models.Purchase{}).Where("is_archived = ?", false).Count(&stats.Purchases)
	db.Model(&models.Purchase{}).Where("is_archived = ? AND validated_cost IS NOT NULL", false).Count(&stats.ValidatedPurchases)
	db.Model(&models.SecurityIncident{}).Where("resolved_at IS NULL AND is_archived = ?", false).Count(&stats.OpenIncidents)
	db.Model(&models.Risk{}).Where("is_archived = ?", false).Count(&stats.Risks)
	db.Model(&models.PolicyVersion{}).Where("status = ?", models.PolicyActive).Count(&stats.ActivePolicies)
	db.Model(&models.User{}).Where("is_archived = ?", false).Count(&stats.Users)

	return ok(c, stats)
}

// Overview gathers the time-sensitive lists shown on the home page.
// A failing section is logged and left empty.
func (h *DashboardHandler) Overview(c *fiber.Ctx) error {
	ctx := c.UserContext()
	days := c.QueryInt("days", 30)
	out := fiber.Map{}

	if rows, err := h.svc.Subscriptions.UpcomingRenewals(ctx, days); err != nil {
		glog.Warningf("Dashboard: upcoming renewals: %v", err)
		out["upcoming_renewals"] = []services.UpcomingRenewal{}
	} else {
		out["upcoming_renewals"] = rows
	}
	if rows, err := h.svc.Assets.WarrantiesExpiring(ctx, days); err != nil {
		glog.Warningf("Dashboard: warranties: %v", err)
		out["expiring_warranties"] = []services.WarrantyItem{}
	} else {
		out["expiring_warranties"] = rows
	}
	if rows, err := h.svc.Subscriptions.ExpiringPaymentMethods(ctx, 2*days); err != nil {
		glog.Warningf("Dashboard: payment methods: %v", err)
		out["expiring_payment_methods"] = []models.PaymentMethod{}
	} else {
		out["expiring_payment_methods"] = rows
	}
	if rows, err := h.svc.Training.Overdue(ctx); err != nil {
		glog.Warningf("Dashboard: overdue training: %v", err)
		out["overdue_training"] = []models.CourseAssignment{}
	} else {
		out["overdue_training"] = rows
	}
	if rows, err := h.svc.Policies.OutstandingSummary(ctx); err != nil {
		glog.Warningf("Dashboard: policy acknowledgements: %v", err)
		out["policy_acknowledgements"] = []services.AckSummary{}
	} else {
		out["policy_acknowledgements"] = rows
	}

	return ok(c, out)
}
