package services

import (
	"context"
	"sort"
	"strings"

	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/risk"
)

// RiskService maintains the risk register.
type RiskService struct {
	db *gorm.DB
}

func NewRiskService(db *gorm.DB) *RiskService {
	return &RiskService{db: db}
}

// RiskInput carries the four ratings and descriptive fields.
type RiskInput struct {
	Title              string                   `json:"title"`
	Description        string                   `json:"description"`
	InherentImpact     int                      `json:"inherent_impact"`
	InherentLikelihood int                      `json:"inherent_likelihood"`
	ResidualImpact     int                      `json:"residual_impact"`
	ResidualLikelihood int                      `json:"residual_likelihood"`
	TreatmentStrategy  models.TreatmentStrategy `json:"treatment_strategy"`
	OwnerID            *uint                    `json:"owner_id"`
}

func (in RiskInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return apperr.Validation("risk title is required")
	}
	for _, r := range []struct {
		field string
		v     int
	}{
		{"inherent impact", in.InherentImpact},
		{"inherent likelihood", in.InherentLikelihood},
		{"residual impact", in.ResidualImpact},
		{"residual likelihood", in.ResidualLikelihood},
	} {
		if err := risk.ValidateRating(r.field, r.v); err != nil {
			return apperr.Validation("%v", err)
		}
	}
	if in.TreatmentStrategy != "" && !in.TreatmentStrategy.Valid() {
		return apperr.Validation("unknown treatment strategy %q", in.TreatmentStrategy)
	}
	return nil
}

// ScoredRisk is a register row with its derived scores.
type ScoredRisk struct {
	models.Risk
	risk.Assessment
}

func score(r models.Risk) ScoredRisk {
	return ScoredRisk{
		Risk:       r,
		Assessment: risk.Assess(r.InherentImpact, r.InherentLikelihood, r.ResidualImpact, r.ResidualLikelihood),
	}
}

// Create registers a risk.
func (s *RiskService) Create(ctx context.Context, in RiskInput) (*ScoredRisk, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	r := models.Risk{
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		InherentImpact:     in.InherentImpact,
		InherentLikelihood: in.InherentLikelihood,
		ResidualImpact:     in.ResidualImpact,
		ResidualLikelihood: in.ResidualLikelihood,
		TreatmentStrategy:  in.TreatmentStrategy,
		OwnerID:            in.OwnerID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.OwnerID != nil {
			if _, err := findActive[models.User](tx, *in.OwnerID, "user"); err != nil {
				return err
			}
		}
		return tx.Create(&r).Error
	})
	if err != nil {
		return nil, err
	}
	out := score(r)
	return &out, nil
}

// Assess returns one risk with its scores.
func (s *RiskService) Assess(ctx context.Context, riskID uint) (*ScoredRisk, error) {
	r, err := findByID[models.Risk](s.db.WithContext(ctx), riskID, "risk")
	if err != nil {
		return nil, err
	}
	out := score(*r)
	return &out, nil
}

// Register lists active risks, highest residual score first.
func (s *RiskService) Register(ctx context.Context) ([]ScoredRisk, error) {
	var risks []models.Risk
	if err := s.db.WithContext(ctx).Where("is_archived = ?", false).Order("id").Find(&risks).Error; err != nil {
		return nil, err
	}
	out := make([]ScoredRisk, 0, len(risks))
	for _, r := range risks {
		out = append(out, score(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ResidualScore > out[j].ResidualScore
	})
	return out, nil
}
