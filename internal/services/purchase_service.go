package services

import (
	"context"
	"fmt"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang/glog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/currency"
	"github.com/opsledger/backend/internal/metrics"
	"github.com/opsledger/backend/internal/models"
)

// CostLine is one contributor to a purchase's calculated cost.
type CostLine struct {
	Kind     string  `json:"kind"`
	ID       uint    `json:"id"`
	Name     string  `json:"name"`
	Cost     float64 `json:"cost"`
	Currency string  `json:"currency"`
}

// CostBreakdown explains a purchase's cost. CalculatedCost sums raw
// amounts without conversion; CalculatedCostEUR converts each line first
// and is the meaningful figure when MixedCurrency is set.
type CostBreakdown struct {
	PurchaseID        uint       `json:"purchase_id"`
	AssetsCost        float64    `json:"assets_cost"`
	PeripheralsCost   float64    `json:"peripherals_cost"`
	LicensesCost      float64    `json:"licenses_cost"`
	CalculatedCost    float64    `json:"calculated_cost"`
	CalculatedCostEUR float64    `json:"calculated_cost_eur"`
	Currencies        []string   `json:"currencies"`
	MixedCurrency     bool       `json:"mixed_currency"`
	ValidatedCost     *float64   `json:"validated_cost"`
	TotalCost         float64    `json:"total_cost"`
	Lines             []CostLine `json:"lines"`
}

// PurchaseService runs the validated-cost state machine of purchases.
type PurchaseService struct {
	db    *gorm.DB
	clock calendar.Clock
}

func NewPurchaseService(db *gorm.DB, clock calendar.Clock) *PurchaseService {
	return &PurchaseService{db: db, clock: clock}
}

type costRow struct {
	ID       uint
	Name     string
	Cost     *float64
	Currency string
}

// lines loads every cost contributor of a purchase. Licenses paid through
// a subscription are excluded.
func (s *PurchaseService) lines(tx *gorm.DB, purchaseID uint) ([]CostLine, error) {
	var out []CostLine
	load := func(kind string, q *gorm.DB) error {
		var rows []costRow
		if err := q.Select("id, name, cost, currency").Order("id").Scan(&rows).Error; err != nil {
			return fmt.Errorf("load %s costs: %w", kind, err)
		}
		for _, r := range rows {
			out = append(out, CostLine{
				Kind:     kind,
				ID:       r.ID,
				Name:     r.Name,
				Cost:     derefOr(r.Cost, 0),
				Currency: r.Currency,
			})
		}
		return nil
	}

	if err := load("asset", tx.Model(&models.Asset{}).Where("purchase_id = ?", purchaseID)); err != nil {
		return nil, err
	}
	if err := load("peripheral", tx.Model(&models.Peripheral{}).Where("purchase_id = ?", purchaseID)); err != nil {
		return nil, err
	}
	if err := load("license", tx.Model(&models.License{}).Where("purchase_id = ? AND subscription_id IS NULL", purchaseID)); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PurchaseService) breakdown(tx *gorm.DB, p *models.Purchase) (*CostBreakdown, error) {
	lines, err := s.lines(tx, p.ID)
	if err != nil {
		return nil, err
	}

	sums := map[string]decimal.Decimal{}
	total, totalEUR := decimal.Zero, decimal.Zero
	codes := mapset.NewThreadUnsafeSet[string]()
	for _, l := range lines {
		amount := decimal.NewFromFloat(l.Cost)
		sums[l.Kind] = sums[l.Kind].Add(amount)
		total = total.Add(amount)
		totalEUR = totalEUR.Add(currency.ToEURDecimal(amount, l.Currency))
		if l.Currency != "" {
			codes.Add(l.Currency)
		}
	}

	currencies := codes.ToSlice()
	sort.Strings(currencies)

	b := &CostBreakdown{
		PurchaseID:        p.ID,
		AssetsCost:        sums["asset"].InexactFloat64(),
		PeripheralsCost:   sums["peripheral"].InexactFloat64(),
		LicensesCost:      sums["license"].InexactFloat64(),
		CalculatedCost:    total.Round(2).InexactFloat64(),
		CalculatedCostEUR: totalEUR.Round(2).InexactFloat64(),
		Currencies:        currencies,
		MixedCurrency:     len(currencies) > 1,
		ValidatedCost:     p.ValidatedCost,
		Lines:             lines,
	}
	b.TotalCost = b.CalculatedCost
	if p.ValidatedCost != nil {
		b.TotalCost = *p.ValidatedCost
	}
	return b, nil
}

// Breakdown returns the full cost picture of a purchase.
func (s *PurchaseService) Breakdown(ctx context.Context, purchaseID uint) (*CostBreakdown, error) {
	db := s.db.WithContext(ctx)
	p, err := findByID[models.Purchase](db, purchaseID, "purchase")
	if err != nil {
		return nil, err
	}
	return s.breakdown(db, p)
}

// CalculatedCost is the sum of linked asset, peripheral and perpetual
// license costs. Missing costs count as zero.
func (s *PurchaseService) CalculatedCost(ctx context.Context, purchaseID uint) (float64, error) {
	b, err := s.Breakdown(ctx, purchaseID)
	if err != nil {
		return 0, err
	}
	return b.CalculatedCost, nil
}

// TotalCost is the validated cost when set, else the calculated cost.
func (s *PurchaseService) TotalCost(ctx context.Context, purchaseID uint) (float64, error) {
	b, err := s.Breakdown(ctx, purchaseID)
	if err != nil {
		return 0, err
	}
	return b.TotalCost, nil
}

func requireEditor(actor *models.User, action string) error {
	if !actor.CanManage() {
		return apperr.Authorization("editor or admin role required to %s", action)
	}
	return nil
}

// Validate freezes the current calculated cost as the purchase's cost.
func (s *PurchaseService) Validate(ctx context.Context, purchaseID uint, actor *models.User) (*models.Purchase, error) {
	if err := requireEditor(actor, "validate purchase costs"); err != nil {
		return nil, err
	}

	var out *models.Purchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findByID[models.Purchase](tx, purchaseID, "purchase")
		if err != nil {
			return err
		}
		if p.IsCostValidated() {
			return apperr.State("purchase %d cost is already validated", purchaseID)
		}

		b, err := s.breakdown(tx, p)
		if err != nil {
			return err
		}
		now := s.clock.Now().UTC()
		cost := b.CalculatedCost

		res := tx.Model(&models.Purchase{}).
			Where("id = ? AND validated_cost IS NULL", p.ID).
			Updates(map[string]any{
				"validated_cost":    cost,
				"cost_validated_at": now,
				"cost_validated_by": actor.ID,
			})
		if res.Error != nil {
			return fmt.Errorf("validate purchase %d: %w", p.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.State("purchase %d cost is already validated", purchaseID)
		}

		entry := models.PurchaseCostHistory{
			PurchaseID: p.ID,
			Action:     models.CostActionValidated,
			Cost:       cost,
			UserID:     &actor.ID,
			Timestamp:  now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record cost history: %w", err)
		}

		p.ValidatedCost = &cost
		p.CostValidatedAt = &now
		p.CostValidatedBy = &actor.ID
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PurchaseCostTransitions.WithLabelValues(string(models.CostActionValidated)).Inc()
	glog.Infof("Purchase[%d]: cost validated at %.2f by user %d", purchaseID, *out.ValidatedCost, actor.ID)
	return out, nil
}

// Unvalidate records the frozen cost in history and clears it, so the
// purchase falls back to its calculated cost.
func (s *PurchaseService) Unvalidate(ctx context.Context, purchaseID uint, actor *models.User) (*models.Purchase, error) {
	if err := requireEditor(actor, "un-validate purchase costs"); err != nil {
		return nil, err
	}

	var out *models.Purchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findByID[models.Purchase](tx, purchaseID, "purchase")
		if err != nil {
			return err
		}
		if !p.IsCostValidated() {
			return apperr.State("purchase %d cost is not validated", purchaseID)
		}

		now := s.clock.Now().UTC()
		entry := models.PurchaseCostHistory{
			PurchaseID: p.ID,
			Action:     models.CostActionUnvalidated,
			Cost:       *p.ValidatedCost,
			UserID:     &actor.ID,
			Timestamp:  now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("record cost history: %w", err)
		}

		res := tx.Model(&models.Purchase{}).
			Where("id = ? AND validated_cost IS NOT NULL", p.ID).
			Updates(map[string]any{
				"validated_cost":    nil,
				"cost_validated_at": nil,
				"cost_validated_by": nil,
			})
		if res.Error != nil {
			return fmt.Errorf("unvalidate purchase %d: %w", p.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.State("purchase %d cost is not validated", purchaseID)
		}

		p.ValidatedCost = nil
		p.CostValidatedAt = nil
		p.CostValidatedBy = nil
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PurchaseCostTransitions.WithLabelValues(string(models.CostActionUnvalidated)).Inc()
	glog.Infof("Purchase[%d]: cost un-validated by user %d", purchaseID, actor.ID)
	return out, nil
}

// History returns the validation audit trail, oldest first.
func (s *PurchaseService) History(ctx context.Context, purchaseID uint) ([]models.PurchaseCostHistory, error) {
	if _, err := findByID[models.Purchase](s.db.WithContext(ctx), purchaseID, "purchase"); err != nil {
		return nil, err
	}
	var out []models.PurchaseCostHistory
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("purchase_id = ?", purchaseID).
		Order("timestamp, id").
		Find(&out).Error
	return out, err
}

// costLocked reports whether purchaseID refers to a validated purchase, in
// which case linked items may not change their monetary fields.
func costLocked(tx *gorm.DB, purchaseID *uint) (bool, error) {
	if purchaseID == nil {
		return false, nil
	}
	var count int64
	err := tx.Model(&models.Purchase{}).
		Where("id = ? AND validated_cost IS NOT NULL", *purchaseID).
		Count(&count).Error
	return count > 0, err
}
