package services

import (
	"context"
	"strings"
	"time"

	"github.com/golang/glog"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/currency"
	"github.com/opsledger/backend/internal/database"
	"github.com/opsledger/backend/internal/expiry"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/renewal"
)

// SubscriptionService owns subscription writes and renewal listings.
type SubscriptionService struct {
	db    *gorm.DB
	clock calendar.Clock
	// Cache enables the shared dashboard cache for UpcomingRenewals.
	Cache bool
}

func NewSubscriptionService(db *gorm.DB, clock calendar.Clock) *SubscriptionService {
	return &SubscriptionService{db: db, clock: clock}
}

// SubscriptionInput is the writable part of a subscription. Nil fields
// keep their value on update.
type SubscriptionInput struct {
	Name               *string    `json:"name"`
	SubscriptionType   *string    `json:"subscription_type"`
	Description        *string    `json:"description"`
	RenewalDate        *time.Time `json:"renewal_date"`
	RenewalPeriodType  *string    `json:"renewal_period_type"`
	RenewalPeriodValue *int       `json:"renewal_period_value"`
	MonthlyRenewalDay  *string    `json:"monthly_renewal_day"`
	Cost               *float64   `json:"cost"`
	Currency           *string    `json:"currency"`
	AutoRenew          *bool      `json:"auto_renew"`
	SupplierID         *uint      `json:"supplier_id"`
	SoftwareID         *uint      `json:"software_id"`
	TagIDs             []uint     `json:"tag_ids"`
	ContactIDs         []uint     `json:"contact_ids"`
	PaymentMethodIDs   []uint     `json:"payment_method_ids"`
}

func (in SubscriptionInput) apply(s *models.Subscription) error {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return apperr.Validation("name is required")
		}
		s.Name = name
	}
	if in.SubscriptionType != nil {
		s.SubscriptionType = *in.SubscriptionType
	}
	if in.Description != nil {
		s.Description = *in.Description
	}
	if in.RenewalDate != nil {
		s.RenewalDate = calendar.Truncate(*in.RenewalDate)
	}
	if in.RenewalPeriodType != nil {
		s.RenewalPeriodType = models.RenewalPeriodType(strings.ToLower(strings.TrimSpace(*in.RenewalPeriodType)))
	}
	if in.RenewalPeriodValue != nil {
		s.RenewalPeriodValue = *in.RenewalPeriodValue
	}
	if in.MonthlyRenewalDay != nil {
		s.MonthlyRenewalDay = strings.ToLower(strings.TrimSpace(*in.MonthlyRenewalDay))
	}
	if in.Cost != nil {
		if err := validateCost("cost", in.Cost); err != nil {
			return err
		}
		s.Cost = *in.Cost
	}
	if in.Currency != nil {
		code, err := normalizeCurrency(*in.Currency)
		if err != nil {
			return err
		}
		s.Currency = code
	}
	if in.AutoRenew != nil {
		s.AutoRenew = *in.AutoRenew
	}
	if in.SupplierID != nil {
		s.SupplierID = *in.SupplierID
	}
	if in.SoftwareID != nil {
		if *in.SoftwareID == 0 {
			s.SoftwareID = nil
		} else {
			id := *in.SoftwareID
			s.SoftwareID = &id
		}
	}
	return nil
}

func validateSubscription(s *models.Subscription) error {
	if s.Name == "" {
		return apperr.Validation("name is required")
	}
	if s.RenewalDate.IsZero() {
		return apperr.Validation("renewal date is required")
	}
	if s.SupplierID == 0 {
		return apperr.Validation("supplier is required")
	}
	if _, err := renewal.ForSubscription(s); err != nil {
		return apperr.Validation("%v", err)
	}
	return nil
}

func (s *SubscriptionService) setRelations(tx *gorm.DB, sub *models.Subscription, in SubscriptionInput) error {
	if _, err := findActive[models.Supplier](tx, sub.SupplierID, "supplier"); err != nil {
		return err
	}
	if sub.SoftwareID != nil {
		if _, err := findByID[models.Software](tx, *sub.SoftwareID, "software"); err != nil {
			return err
		}
	}
	if in.TagIDs != nil {
		tags, err := loadByIDs[models.Tag](tx, in.TagIDs, "tag")
		if err != nil {
			return err
		}
		if err := replaceAssociation(tx, sub, "Tags", tags); err != nil {
			return err
		}
	}
	if in.ContactIDs != nil {
		contacts, err := loadByIDs[models.Contact](tx, in.ContactIDs, "contact")
		if err != nil {
			return err
		}
		if err := replaceAssociation(tx, sub, "Contacts", contacts); err != nil {
			return err
		}
	}
	if in.PaymentMethodIDs != nil {
		methods, err := loadByIDs[models.PaymentMethod](tx, in.PaymentMethodIDs, "payment method")
		if err != nil {
			return err
		}
		if err := replaceAssociation(tx, sub, "PaymentMethods", methods); err != nil {
			return err
		}
	}
	return nil
}

// Create validates and inserts a subscription and its initial cost
// history row.
func (s *SubscriptionService) Create(ctx context.Context, in SubscriptionInput) (*models.Subscription, error) {
	sub := &models.Subscription{
		RenewalPeriodType:  models.RenewalMonthly,
		RenewalPeriodValue: 1,
		Currency:           "EUR",
	}
	if err := in.apply(sub); err != nil {
		return nil, err
	}
	if err := validateSubscription(sub); err != nil {
		return nil, err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findActive[models.Supplier](tx, sub.SupplierID, "supplier"); err != nil {
			return err
		}
		if err := tx.Omit("Tags", "Contacts", "PaymentMethods", "CostHistory").Create(sub).Error; err != nil {
			return err
		}
		if err := s.setRelations(tx, sub, in); err != nil {
			return err
		}
		return s.recordCost(tx, sub)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate()
	glog.Infof("Subscription[%d]: created %q (%s/%d)", sub.ID, sub.Name, sub.RenewalPeriodType, sub.RenewalPeriodValue)
	return sub, nil
}

// recordCost appends a CostHistory row unless the subscription has held
// the current (cost, currency) pair before.
func (s *SubscriptionService) recordCost(tx *gorm.DB, sub *models.Subscription) error {
	var count int64
	if err := tx.Model(&models.CostHistory{}).
		Where("subscription_id = ? AND cost = ? AND currency = ?", sub.ID, sub.Cost, sub.Currency).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	return tx.Create(&models.CostHistory{
		SubscriptionID: sub.ID,
		Cost:           sub.Cost,
		Currency:       sub.Currency,
		ChangedDate:    s.clock.Now().UTC(),
	}).Error
}

// Update applies in and keeps the cost history current.
func (s *SubscriptionService) Update(ctx context.Context, id uint, in SubscriptionInput) (*models.Subscription, error) {
	var sub *models.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		sub, err = findByID[models.Subscription](tx, id, "subscription")
		if err != nil {
			return err
		}
		if err := in.apply(sub); err != nil {
			return err
		}
		if err := validateSubscription(sub); err != nil {
			return err
		}
		if err := tx.Omit("Tags", "Contacts", "PaymentMethods", "CostHistory", "Supplier", "Software").Save(sub).Error; err != nil {
			return err
		}
		if err := s.setRelations(tx, sub, in); err != nil {
			return err
		}
		return s.recordCost(tx, sub)
	})
	if err != nil {
		return nil, err
	}
	s.invalidate()
	return sub, nil
}

// SetArchived archives or restores a subscription.
func (s *SubscriptionService) SetArchived(ctx context.Context, id uint, archived bool) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := findByID[models.Subscription](tx, id, "subscription")
		if err != nil {
			return err
		}
		return tx.Model(sub).Update("is_archived", archived).Error
	})
	if err != nil {
		return err
	}
	s.invalidate()
	return nil
}

// Get loads a subscription with its relations.
func (s *SubscriptionService) Get(ctx context.Context, id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := s.db.WithContext(ctx).
		Preload("Supplier").Preload("Software").Preload("Tags").
		Preload("Contacts").Preload("PaymentMethods").
		First(&sub, id).Error
	if err != nil {
		if database.IsNotFound(err) {
			return nil, apperr.NotFound("subscription %d not found", id)
		}
		return nil, err
	}
	return &sub, nil
}

// CostHistory lists the distinct prices a subscription has had, oldest
// first.
func (s *SubscriptionService) CostHistory(ctx context.Context, id uint) ([]models.CostHistory, error) {
	if _, err := findByID[models.Subscription](s.db.WithContext(ctx), id, "subscription"); err != nil {
		return nil, err
	}
	var out []models.CostHistory
	err := s.db.WithContext(ctx).Where("subscription_id = ?", id).Order("changed_date, id").Find(&out).Error
	return out, err
}

// Renewals lists the renewal dates of one subscription in [start, end].
func (s *SubscriptionService) Renewals(ctx context.Context, id uint, start, end time.Time) ([]time.Time, error) {
	sub, err := findByID[models.Subscription](s.db.WithContext(ctx), id, "subscription")
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, apperr.Validation("end date must not be before start date")
	}
	rule, err := renewal.ForSubscription(sub)
	if err != nil {
		return nil, err
	}
	return rule.Occurrences(calendar.Truncate(start), calendar.Truncate(end)), nil
}

// NextRenewal returns the first renewal on or after today.
func (s *SubscriptionService) NextRenewal(ctx context.Context, id uint) (time.Time, int, error) {
	sub, err := findByID[models.Subscription](s.db.WithContext(ctx), id, "subscription")
	if err != nil {
		return time.Time{}, 0, err
	}
	days, next, err := renewal.DaysUntilNext(sub, calendar.Today(s.clock))
	return next, days, err
}

// UpcomingRenewal is one renewal occurrence on the dashboard.
type UpcomingRenewal struct {
	SubscriptionID uint      `json:"subscription_id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Date           time.Time `json:"renewal_date"`
	DaysUntil      int       `json:"days_until"`
	Cost           float64   `json:"cost"`
	Currency       string    `json:"currency"`
	CostEUR        float64   `json:"cost_eur"`
}

// UpcomingRenewals materialises every renewal of every active
// subscription in [today, today+window], ordered by date.
func (s *SubscriptionService) UpcomingRenewals(ctx context.Context, window int) ([]UpcomingRenewal, error) {
	if window < 0 {
		return nil, apperr.Validation("window must not be negative")
	}
	today := calendar.Today(s.clock)
	key := database.UpcomingRenewalsKey(calendar.Format(today), window)

	if s.Cache {
		var cached []UpcomingRenewal
		if err := database.CacheGet(key, &cached); err == nil {
			return cached, nil
		}
	}

	var subs []models.Subscription
	if err := s.db.WithContext(ctx).Where("is_archived = ?", false).Order("id").Find(&subs).Error; err != nil {
		return nil, err
	}
	end := calendar.AddDays(today, window)
	out := []UpcomingRenewal{}
	for i := range subs {
		sub := &subs[i]
		rule, err := renewal.ForSubscription(sub)
		if err != nil {
			glog.Warningf("Subscription[%d]: skipping invalid renewal rule: %v", sub.ID, err)
			continue
		}
		for d := range rule.Between(today, end) {
			out = append(out, UpcomingRenewal{
				SubscriptionID: sub.ID,
				Name:           sub.Name,
				Type:           sub.SubscriptionType,
				Date:           d,
				DaysUntil:      calendar.DaysBetween(today, d),
				Cost:           sub.Cost,
				Currency:       sub.Currency,
				CostEUR:        currency.ToEUR(sub.Cost, sub.Currency),
			})
		}
	}
	sortByDate(out, func(r UpcomingRenewal) time.Time { return r.Date })

	if s.Cache {
		if err := database.CacheSet(key, out, database.CacheTTLRenewals); err != nil {
			glog.Warningf("Subscription: failed to cache upcoming renewals: %v", err)
		}
	}
	return out, nil
}

func (s *SubscriptionService) invalidate() {
	if s.Cache {
		database.InvalidateRenewalsCache()
	}
}

// ExpiringPaymentMethods lists active payment methods whose expiry month
// ends within horizon days.
func (s *SubscriptionService) ExpiringPaymentMethods(ctx context.Context, horizon int) ([]models.PaymentMethod, error) {
	today := calendar.Today(s.clock)
	var methods []models.PaymentMethod
	if err := s.db.WithContext(ctx).Where("is_archived = ? AND expiry_date IS NOT NULL", false).
		Order("expiry_date, id").Find(&methods).Error; err != nil {
		return nil, err
	}
	out := []models.PaymentMethod{}
	for i := range methods {
		if expiry.PaymentMethodExpiringWithin(&methods[i], today, horizon) {
			out = append(out, methods[i])
		}
	}
	return out, nil
}
