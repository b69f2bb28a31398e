package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/config"
	"github.com/opsledger/backend/internal/metrics"
	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/services"
)

// RouterOptions tune NewApp.
type RouterOptions struct {
	// RateLimit is the number of API requests allowed per client IP per
	// minute. Zero disables the limiter.
	RateLimit int
}

// NewApp builds the Fiber application with every API route registered.
func NewApp(cfg *config.Config, db *gorm.DB, svc *services.Services, opts RouterOptions) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "OpsLedger API",
		ServerHeader: "OpsLedger",
		BodyLimit:    50 * 1024 * 1024, // 50MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	app.Use(middleware.Recovery())
	app.Use(compress.New())
	app.Use(metrics.Middleware())
	app.Use(middleware.Logger())
	app.Use(middleware.CORS())

	app.Get("/health", func(c *fiber.Ctx) error {
		status := "healthy"
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status":  status,
			"service": "opsledger-api",
		})
	})

	authHandler := NewAuthHandler(cfg, db, svc.Users)
	userHandler := NewUserHandler(db, svc.Users)
	dashboardHandler := NewDashboardHandler(db, svc)
	subscriptionHandler := NewSubscriptionHandler(svc.Subscriptions, svc.Clock)
	purchaseHandler := NewPurchaseHandler(svc.Purchases, svc.Budgets)
	policyHandler := NewPolicyHandler(svc.Policies)
	trainingHandler := NewTrainingHandler(svc.Training)
	attachmentHandler := NewAttachmentHandler(svc.Links)
	assetHandler := NewAssetHandler(svc.Assets, svc.Disposals, svc.Software)
	grcHandler := NewGRCHandler(svc.Risks, svc.Frameworks, svc.Incidents)
	auditHandler := NewAuditHandler(db)
	notificationHandler := NewNotificationHandler(svc.Settings, svc.Notifier, svc.Mailer, svc.Clock)

	api := app.Group("/api")
	if opts.RateLimit > 0 {
		api.Use(middleware.RateLimiter(opts.RateLimit, 1*time.Minute))
	}

	// Public routes
	api.Post("/auth/login", authHandler.Login)

	protected := api.Group("", middleware.AuthRequired(cfg, db), middleware.AuditLogger(db))
	editor := middleware.EditorOrAdmin()
	admin := middleware.AdminOnly()

	protected.Post("/auth/logout", authHandler.Logout)
	protected.Get("/auth/me", authHandler.Me)

	dashboard := protected.Group("/dashboard")
	dashboard.Get("/stats", dashboardHandler.Stats)
	dashboard.Get("/overview", dashboardHandler.Overview)

	users := protected.Group("/users", admin)
	users.Get("/", userHandler.List)
	users.Post("/", userHandler.Create)
	users.Post("/:id/archive", userHandler.Archive)
	users.Post("/:id/unarchive", userHandler.Unarchive)
	protected.Post("/groups", admin, userHandler.CreateGroup)

	subscriptions := protected.Group("/subscriptions")
	subscriptions.Get("/upcoming", subscriptionHandler.Upcoming)
	subscriptions.Post("/", editor, subscriptionHandler.Create)
	subscriptions.Get("/:id", subscriptionHandler.Get)
	subscriptions.Put("/:id", editor, subscriptionHandler.Update)
	subscriptions.Post("/:id/archive", editor, subscriptionHandler.Archive)
	subscriptions.Post("/:id/unarchive", editor, subscriptionHandler.Unarchive)
	subscriptions.Get("/:id/renewals", subscriptionHandler.Renewals)
	subscriptions.Get("/:id/next-renewal", subscriptionHandler.NextRenewal)
	subscriptions.Get("/:id/cost-history", subscriptionHandler.CostHistory)
	protected.Get("/payment-methods/expiring", subscriptionHandler.ExpiringPaymentMethods)

	purchases := protected.Group("/purchases")
	purchases.Get("/:id/cost", purchaseHandler.Cost)
	purchases.Post("/:id/validate", editor, purchaseHandler.Validate)
	purchases.Post("/:id/unvalidate", editor, purchaseHandler.Unvalidate)
	purchases.Get("/:id/history", purchaseHandler.History)
	protected.Get("/budgets/:id/summary", purchaseHandler.BudgetSummary)

	policies := protected.Group("/policies")
	policies.Get("/outstanding", policyHandler.Outstanding)
	policies.Get("/:id/active-version", policyHandler.ActiveVersion)
	policies.Post("/:id/versions", editor, policyHandler.CreateVersion)
	versions := protected.Group("/policy-versions")
	versions.Get("/:id/required", policyHandler.Required)
	versions.Get("/:id/pending", policyHandler.Pending)
	versions.Post("/:id/acknowledge", policyHandler.Acknowledge)
	versions.Put("/:id/audience", editor, policyHandler.SetAudience)
	versions.Post("/:id/activate", editor, policyHandler.Activate)
	versions.Delete("/:id", admin, policyHandler.DeleteVersion)

	training := protected.Group("/training")
	training.Get("/mine", trainingHandler.Mine)
	training.Get("/overdue", editor, trainingHandler.Overdue)
	training.Post("/courses/:id/assign", editor, trainingHandler.Assign)
	training.Post("/assignments/:id/complete", trainingHandler.Complete)

	attachments := protected.Group("/attachments")
	attachments.Get("/", attachmentHandler.List)
	attachments.Post("/", editor, attachmentHandler.Upload)
	attachments.Get("/:id/download", attachmentHandler.Download)
	attachments.Delete("/:id", editor, attachmentHandler.Delete)

	compliance := protected.Group("/compliance-links")
	compliance.Get("/", attachmentHandler.ComplianceLinks)
	compliance.Post("/", editor, attachmentHandler.CreateComplianceLink)
	compliance.Delete("/:id", editor, attachmentHandler.DeleteComplianceLink)
	protected.Get("/framework-controls/:id/links", attachmentHandler.ControlLinks)

	assets := protected.Group("/assets")
	assets.Post("/", editor, assetHandler.CreateAsset)
	assets.Put("/:id", editor, assetHandler.UpdateAsset)
	assets.Get("/:id/history", assetHandler.AssetHistory)
	assets.Get("/:id/assignments", assetHandler.AssetAssignments)
	assets.Post("/:id/checkout", editor, assetHandler.CheckOutAsset)
	assets.Post("/:id/checkin", editor, assetHandler.CheckInAsset)

	peripherals := protected.Group("/peripherals")
	peripherals.Post("/", editor, assetHandler.CreatePeripheral)
	peripherals.Put("/:id", editor, assetHandler.UpdatePeripheral)
	peripherals.Post("/:id/checkout", editor, assetHandler.CheckOutPeripheral)
	peripherals.Post("/:id/checkin", editor, assetHandler.CheckInPeripheral)

	protected.Get("/warranties/expiring", assetHandler.ExpiringWarranties)
	protected.Post("/disposals", editor, assetHandler.RecordDisposal)
	protected.Get("/disposals/:id/history", assetHandler.DisposalHistory)

	software := protected.Group("/software")
	software.Post("/", editor, assetHandler.CreateSoftware)
	software.Get("/:id", assetHandler.GetSoftware)
	software.Put("/:id/owner", editor, assetHandler.SetSoftwareOwner)

	risks := protected.Group("/risks")
	risks.Get("/", grcHandler.Risks)
	risks.Post("/", editor, grcHandler.CreateRisk)
	risks.Get("/:id", grcHandler.Risk)

	frameworks := protected.Group("/frameworks")
	frameworks.Post("/", admin, grcHandler.CreateFramework)
	frameworks.Post("/:id/controls", admin, grcHandler.AddControl)
	frameworks.Put("/:id/active", admin, grcHandler.SetFrameworkActive)
	frameworks.Get("/:id/coverage", grcHandler.Coverage)

	incidents := protected.Group("/incidents")
	incidents.Post("/", grcHandler.ReportIncident)
	incidents.Post("/:id/resolve", editor, grcHandler.ResolveIncident)
	incidents.Get("/:id/timeline", grcHandler.Timeline)
	incidents.Post("/:id/timeline", editor, grcHandler.AddTimelineEvent)
	incidents.Put("/:id/review", editor, grcHandler.UpsertReview)

	notifications := protected.Group("/notifications", admin)
	notifications.Get("/settings", notificationHandler.GetSettings)
	notifications.Put("/settings", notificationHandler.UpdateSettings)
	notifications.Post("/run", notificationHandler.RunNow)
	notifications.Get("/logs", notificationHandler.Logs)
	notifications.Post("/test-email", notificationHandler.TestEmail)

	audit := protected.Group("/audit-logs", admin)
	audit.Get("/", auditHandler.List)
	audit.Get("/entity-types", auditHandler.EntityTypes)
	audit.Get("/:id", auditHandler.Get)

	return app
}
