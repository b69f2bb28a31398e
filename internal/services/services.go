package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/config"
	"github.com/opsledger/backend/internal/storage"
)

// Services bundles every domain service over one database handle.
type Services struct {
	Links         *LinkRegistry
	Purchases     *PurchaseService
	Budgets       *BudgetService
	Policies      *PolicyService
	Training      *TrainingService
	Assets        *AssetService
	Subscriptions *SubscriptionService
	Frameworks    *FrameworkService
	Incidents     *IncidentService
	Risks         *RiskService
	Disposals     *DisposalService
	Software      *SoftwareService
	Users         *UserService
	Settings      *NotificationSettingsService
	Notifier      *DailyNotificationService
	Mailer        Mailer
	Clock         calendar.Clock
}

// Options tune New. Zero values pick the production defaults.
type Options struct {
	Clock  calendar.Clock
	Mailer Mailer
	Poster Poster
	// Cache turns on the shared dashboard and settings cache.
	Cache bool
}

// New wires the services together.
func New(db *gorm.DB, cfg *config.Config, blobs *storage.BlobStore, opts Options) *Services {
	clock := opts.Clock
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	mailer := opts.Mailer
	if mailer == nil {
		mailer = NewEmailService(cfg)
	}
	poster := opts.Poster
	if poster == nil {
		poster = NewWebhookClient(15 * time.Second)
	}

	links := NewLinkRegistry(db, blobs)
	purchases := NewPurchaseService(db, clock)
	settings := NewNotificationSettingsService(db)
	settings.Cache = opts.Cache
	subs := NewSubscriptionService(db, clock)
	subs.Cache = opts.Cache

	return &Services{
		Links:         links,
		Purchases:     purchases,
		Budgets:       NewBudgetService(db, purchases),
		Policies:      NewPolicyService(db, links, clock),
		Training:      NewTrainingService(db, links, clock),
		Assets:        NewAssetService(db, clock),
		Subscriptions: subs,
		Frameworks:    NewFrameworkService(db),
		Incidents:     NewIncidentService(db, clock),
		Risks:         NewRiskService(db),
		Disposals:     NewDisposalService(db, clock),
		Software:      NewSoftwareService(db),
		Users:         NewUserService(db),
		Settings:      settings,
		Notifier:      NewDailyNotificationService(db, clock, settings, mailer, poster, cfg),
		Mailer:        mailer,
		Clock:         clock,
	}
}
