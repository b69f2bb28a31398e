package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/currency"
	"github.com/opsledger/backend/internal/database"
)

// findByID loads one row into a fresh T, mapping a missing row to a
// NotFound error naming what.
func findByID[T any](tx *gorm.DB, id uint, what string) (*T, error) {
	var v T
	if err := tx.First(&v, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("%s %d not found", what, id)
		}
		return nil, fmt.Errorf("load %s %d: %w", what, id, err)
	}
	return &v, nil
}

// findActive is findByID for archivable rows; an archived row counts as
// missing.
func findActive[T any](tx *gorm.DB, id uint, what string) (*T, error) {
	var v T
	err := tx.Where("is_archived = ?", false).First(&v, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("%s %d not found", what, id)
		}
		return nil, fmt.Errorf("load %s %d: %w", what, id, err)
	}
	return &v, nil
}

// uniqueOr maps a unique-index violation to a Uniqueness error and wraps
// anything else.
func uniqueOr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if database.IsUniqueViolation(err) {
		return apperr.Uniqueness(format, args...)
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func validateCost(field string, cost *float64) error {
	if cost != nil && *cost < 0 {
		return apperr.Validation("%s must not be negative", field)
	}
	return nil
}

// normalizeCurrency upper-cases code, defaults it to EUR and rejects codes
// outside the rate table.
func normalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return currency.Base, nil
	}
	if !currency.IsSupported(code) {
		return "", apperr.Validation("unknown currency %q", code)
	}
	return code, nil
}

// normalizeSerial maps blank serial numbers to NULL so the unique index
// ignores them.
func normalizeSerial(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func derefOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// replaceAssociation sets a many-to-many association to exactly values;
// an empty slice clears it.
func replaceAssociation[T any](tx *gorm.DB, owner any, name string, values []T) error {
	assoc := tx.Model(owner).Association(name)
	if len(values) == 0 {
		return assoc.Clear()
	}
	return assoc.Replace(values)
}

// loadByIDs loads every row of ids into a slice, failing with NotFound
// when any id is missing.
func loadByIDs[T any](tx *gorm.DB, ids []uint, what string) ([]T, error) {
	out := []T{}
	if len(ids) == 0 {
		return out, nil
	}
	if err := tx.Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	seen := map[uint]struct{}{}
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	if len(out) != len(seen) {
		return nil, apperr.NotFound("one or more %s not found", what)
	}
	return out, nil
}

// sortByDate orders items ascending by the date key returns.
func sortByDate[T any](items []T, key func(T) time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		return key(items[i]).Before(key(items[j]))
	})
}
