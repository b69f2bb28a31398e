package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/models"
)

// FrameworkService manages compliance frameworks and their controls.
type FrameworkService struct {
	db *gorm.DB
}

func NewFrameworkService(db *gorm.DB) *FrameworkService {
	return &FrameworkService{db: db}
}

// Create adds a framework. Built-in frameworks are only created by seeding.
func (s *FrameworkService) Create(ctx context.Context, name, description string, builtin bool) (*models.Framework, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("framework name is required")
	}
	f := &models.Framework{Name: name, Description: description, IsBuiltin: builtin, IsActive: true}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, uniqueOr(err, "framework %q already exists", name)
	}
	return f, nil
}

// AddControl appends a control to a custom framework.
func (s *FrameworkService) AddControl(ctx context.Context, frameworkID uint, controlID, name, description string) (*models.FrameworkControl, error) {
	controlID = strings.TrimSpace(controlID)
	name = strings.TrimSpace(name)
	if controlID == "" || name == "" {
		return nil, apperr.Validation("control id and name are required")
	}
	var c *models.FrameworkControl
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		f, err := findByID[models.Framework](tx, frameworkID, "framework")
		if err != nil {
			return err
		}
		if f.IsBuiltin {
			return apperr.ErrBuiltinFramework
		}
		c = &models.FrameworkControl{FrameworkID: f.ID, ControlID: controlID, Name: name, Description: description}
		return tx.Create(c).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetActive enables or disables a framework. Existing links stay; new
// links to a disabled framework are refused.
func (s *FrameworkService) SetActive(ctx context.Context, frameworkID uint, active bool) (*models.Framework, error) {
	var f *models.Framework
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		f, err = findByID[models.Framework](tx, frameworkID, "framework")
		if err != nil {
			return err
		}
		f.IsActive = active
		return tx.Model(f).Update("is_active", active).Error
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ControlCoverage is one control and how many entities link to it.
type ControlCoverage struct {
	Control   models.FrameworkControl `json:"control"`
	LinkCount int64                   `json:"link_count"`
}

// FrameworkCoverage summarises how much of a framework is evidenced.
type FrameworkCoverage struct {
	Framework       models.Framework  `json:"framework"`
	Controls        []ControlCoverage `json:"controls"`
	CoveredControls int               `json:"covered_controls"`
	TotalControls   int               `json:"total_controls"`
	CoveragePercent float64           `json:"coverage_percent"`
}

// Coverage counts compliance links per control of a framework.
func (s *FrameworkService) Coverage(ctx context.Context, frameworkID uint) (*FrameworkCoverage, error) {
	db := s.db.WithContext(ctx)
	f, err := findByID[models.Framework](db, frameworkID, "framework")
	if err != nil {
		return nil, err
	}
	var controls []models.FrameworkControl
	if err := db.Where("framework_id = ?", f.ID).Order("control_id, id").Find(&controls).Error; err != nil {
		return nil, err
	}

	type row struct {
		FrameworkControlID uint
		N                  int64
	}
	var rows []row
	if err := db.Model(&models.ComplianceLink{}).
		Select("compliance_links.framework_control_id, COUNT(*) AS n").
		Joins("JOIN framework_controls ON framework_controls.id = compliance_links.framework_control_id").
		Where("framework_controls.framework_id = ?", f.ID).
		Group("compliance_links.framework_control_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[uint]int64, len(rows))
	for _, r := range rows {
		counts[r.FrameworkControlID] = r.N
	}

	cov := &FrameworkCoverage{Framework: *f, Controls: make([]ControlCoverage, 0, len(controls)), TotalControls: len(controls)}
	for _, c := range controls {
		n := counts[c.ID]
		if n > 0 {
			cov.CoveredControls++
		}
		cov.Controls = append(cov.Controls, ControlCoverage{Control: c, LinkCount: n})
	}
	if cov.TotalControls > 0 {
		cov.CoveragePercent = float64(cov.CoveredControls) * 100 / float64(cov.TotalControls)
	}
	return cov, nil
}
