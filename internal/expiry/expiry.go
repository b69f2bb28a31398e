// Package expiry derives warranty, license and payment-method expiry
// values. Every function is pure; callers pass "today" explicitly.
package expiry

import (
	"time"

	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/models"
)

// LicenseStatus is the derived state of a license.
type LicenseStatus string

const (
	LicenseExpired   LicenseStatus = "Expired"
	LicenseInUse     LicenseStatus = "In use"
	LicenseAvailable LicenseStatus = "Available"
)

// WarrantyEnd is purchaseDate plus warrantyMonths, or nil when either is
// missing.
func WarrantyEnd(purchaseDate *time.Time, warrantyMonths *int) *time.Time {
	if purchaseDate == nil || warrantyMonths == nil {
		return nil
	}
	end := calendar.AddMonths(calendar.Truncate(*purchaseDate), *warrantyMonths)
	return &end
}

func AssetWarrantyEnd(a *models.Asset) *time.Time {
	return WarrantyEnd(a.PurchaseDate, a.WarrantyLength)
}

func PeripheralWarrantyEnd(p *models.Peripheral) *time.Time {
	return WarrantyEnd(p.PurchaseDate, p.WarrantyLength)
}

// WarrantyExpiringWithin reports whether end lies in [today, today+days].
func WarrantyExpiringWithin(end *time.Time, today time.Time, days int) bool {
	if end == nil {
		return false
	}
	return calendar.Within(*end, today, calendar.AddDays(today, days))
}

// StatusOf derives the license status: Expired when the expiry date is
// before today, In use when a user holds it, Available otherwise.
func StatusOf(l *models.License, today time.Time) LicenseStatus {
	if l.ExpiryDate != nil && calendar.Truncate(*l.ExpiryDate).Before(calendar.Truncate(today)) {
		return LicenseExpired
	}
	if l.UserID != nil {
		return LicenseInUse
	}
	return LicenseAvailable
}

// PaymentMethodExpiringWithin reports whether the last day of the expiry
// month lies in [today, today+horizon days]. Cards expire at the end of
// the printed month.
func PaymentMethodExpiringWithin(m *models.PaymentMethod, today time.Time, horizon int) bool {
	if m == nil || m.ExpiryDate == nil {
		return false
	}
	end := calendar.LastDayOfMonth(*m.ExpiryDate)
	today = calendar.Truncate(today)
	return calendar.Within(end, today, calendar.AddDays(today, horizon))
}
