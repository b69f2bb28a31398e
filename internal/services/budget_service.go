package services

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/models"
)

// BudgetSummary is a budget with its consumption.
type BudgetSummary struct {
	Budget        *models.Budget `json:"budget"`
	Spent         float64        `json:"spent"`
	Remaining     float64        `json:"remaining"`
	PurchaseCount int            `json:"purchase_count"`
}

// BudgetService aggregates purchase costs per budget.
type BudgetService struct {
	db        *gorm.DB
	purchases *PurchaseService
}

func NewBudgetService(db *gorm.DB, purchases *PurchaseService) *BudgetService {
	return &BudgetService{db: db, purchases: purchases}
}

// Summary computes spent = sum of each linked purchase's total cost and
// remaining = amount - spent. Archived purchases still count as spent.
func (s *BudgetService) Summary(ctx context.Context, budgetID uint) (*BudgetSummary, error) {
	db := s.db.WithContext(ctx)
	b, err := findByID[models.Budget](db, budgetID, "budget")
	if err != nil {
		return nil, err
	}

	var purchases []models.Purchase
	if err := db.Where("budget_id = ?", budgetID).Order("id").Find(&purchases).Error; err != nil {
		return nil, err
	}

	spent := decimal.Zero
	for i := range purchases {
		cb, err := s.purchases.breakdown(db, &purchases[i])
		if err != nil {
			return nil, err
		}
		spent = spent.Add(decimal.NewFromFloat(cb.TotalCost))
	}

	remaining := decimal.NewFromFloat(b.Amount).Sub(spent)
	return &BudgetSummary{
		Budget:        b,
		Spent:         spent.Round(2).InexactFloat64(),
		Remaining:     remaining.Round(2).InexactFloat64(),
		PurchaseCount: len(purchases),
	}, nil
}

// Remaining is Summary reduced to the remaining amount.
func (s *BudgetService) Remaining(ctx context.Context, budgetID uint) (float64, error) {
	sum, err := s.Summary(ctx, budgetID)
	if err != nil {
		return 0, err
	}
	return sum.Remaining, nil
}
