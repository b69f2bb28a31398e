package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/golang/glog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/expiry"
	"github.com/opsledger/backend/internal/models"
)

// AssetService runs asset and peripheral lifecycles: creation, edits with
// history, check-out and check-in.
type AssetService struct {
	db    *gorm.DB
	clock calendar.Clock
}

func NewAssetService(db *gorm.DB, clock calendar.Clock) *AssetService {
	return &AssetService{db: db, clock: clock}
}

// ItemInput carries the editable fields shared by assets and
// peripherals. Nil fields are left unchanged on update.
type ItemInput struct {
	Name           *string    `json:"name"`
	Model          *string    `json:"model"`
	Brand          *string    `json:"brand"`
	Type           *string    `json:"type"`
	SerialNumber   *string    `json:"serial_number"`
	Status         *string    `json:"status"`
	InternalID     *string    `json:"internal_id"`
	PurchaseDate   *time.Time `json:"purchase_date"`
	Cost           *float64   `json:"cost"`
	Currency       *string    `json:"currency"`
	WarrantyLength *int       `json:"warranty_length"`
	Notes          *string    `json:"notes"`
	LocationID     *uint      `json:"location_id"`
	SupplierID     *uint      `json:"supplier_id"`
	PurchaseID     *uint      `json:"purchase_id"`
	AssetID        *uint      `json:"asset_id"`
}

// fieldChange is one edited column.
type fieldChange struct {
	Field string
	Old   any
	New   any
}

func jsonValue(v any) datatypes.JSON {
	b, err := json.Marshal(v)
	if err != nil {
		return datatypes.JSON("null")
	}
	return datatypes.JSON(b)
}

// deref unwraps pointers so history shows values rather than addresses.
func deref(v any) any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}

// tracker collects changes applied to a row.
type tracker struct {
	changes []fieldChange
}

func (t *tracker) set(field string, dst any, src any) {
	d := reflect.ValueOf(dst).Elem()
	s := reflect.ValueOf(src)
	if reflect.DeepEqual(deref(d.Interface()), deref(s.Interface())) {
		return
	}
	t.changes = append(t.changes, fieldChange{Field: field, Old: deref(d.Interface()), New: deref(s.Interface())})
	d.Set(s)
}

func (t *tracker) changed(field string) bool {
	for _, c := range t.changes {
		if c.Field == field {
			return true
		}
	}
	return false
}

func validateItem(in ItemInput, create bool) error {
	if create && (in.Name == nil || strings.TrimSpace(*in.Name) == "") {
		return apperr.Validation("name is required")
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return apperr.Validation("name must not be empty")
	}
	if err := validateCost("cost", in.Cost); err != nil {
		return err
	}
	if in.WarrantyLength != nil && *in.WarrantyLength < 0 {
		return apperr.Validation("warranty length must not be negative")
	}
	return nil
}

// applyCommon copies the shared fields of in onto the item pointers and
// records what changed.
func applyCommon(t *tracker, in ItemInput, name *string, brand *string, serial **string, status *string,
	purchaseDate **time.Time, cost **float64, cur *string, warranty **int, supplierID **uint, purchaseID **uint) error {
	if in.Name != nil {
		t.set("name", name, strings.TrimSpace(*in.Name))
	}
	if in.Brand != nil {
		t.set("brand", brand, *in.Brand)
	}
	if in.SerialNumber != nil {
		t.set("serial_number", serial, normalizeSerial(in.SerialNumber))
	}
	if in.Status != nil {
		t.set("status", status, *in.Status)
	}
	if in.PurchaseDate != nil {
		d := calendar.Truncate(*in.PurchaseDate)
		t.set("purchase_date", purchaseDate, &d)
	}
	if in.Cost != nil {
		c := *in.Cost
		t.set("cost", cost, &c)
	}
	if in.Currency != nil {
		code, err := normalizeCurrency(*in.Currency)
		if err != nil {
			return err
		}
		t.set("currency", cur, code)
	}
	if in.WarrantyLength != nil {
		w := *in.WarrantyLength
		t.set("warranty_length", warranty, &w)
	}
	if in.SupplierID != nil {
		id := *in.SupplierID
		t.set("supplier_id", supplierID, &id)
	}
	if in.PurchaseID != nil {
		id := *in.PurchaseID
		t.set("purchase_id", purchaseID, &id)
	}
	return nil
}

// checkMonetaryLock rejects cost or currency edits of an existing item
// while its purchase is validated.
func checkMonetaryLock(tx *gorm.DB, t *tracker, purchaseID *uint) error {
	if !t.changed("cost") && !t.changed("currency") {
		return nil
	}
	locked, err := costLocked(tx, purchaseID)
	if err != nil {
		return err
	}
	if locked {
		return apperr.ErrMonetaryFieldLocked
	}
	return nil
}

func checkRefs(tx *gorm.DB, in ItemInput) error {
	if in.SupplierID != nil {
		if _, err := findByID[models.Supplier](tx, *in.SupplierID, "supplier"); err != nil {
			return err
		}
	}
	if in.PurchaseID != nil {
		if _, err := findByID[models.Purchase](tx, *in.PurchaseID, "purchase"); err != nil {
			return err
		}
	}
	if in.LocationID != nil {
		if _, err := findByID[models.Location](tx, *in.LocationID, "location"); err != nil {
			return err
		}
	}
	if in.AssetID != nil {
		if _, err := findByID[models.Asset](tx, *in.AssetID, "asset"); err != nil {
			return err
		}
	}
	return nil
}

// CreateAsset inserts a new asset. Adding an item to a validated purchase
// is allowed; only edits of existing items are locked.
func (s *AssetService) CreateAsset(ctx context.Context, in ItemInput) (*models.Asset, error) {
	if err := validateItem(in, true); err != nil {
		return nil, err
	}
	a := &models.Asset{Status: "In Stock", Currency: "EUR"}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkRefs(tx, in); err != nil {
			return err
		}
		t := &tracker{}
		if err := applyAsset(t, in, a); err != nil {
			return err
		}
		if err := tx.Create(a).Error; err != nil {
			return uniqueOr(err, "an asset with serial number %q already exists", derefOr(a.SerialNumber, ""))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func applyAsset(t *tracker, in ItemInput, a *models.Asset) error {
	if err := applyCommon(t, in, &a.Name, &a.Brand, &a.SerialNumber, &a.Status,
		&a.PurchaseDate, &a.Cost, &a.Currency, &a.WarrantyLength, &a.SupplierID, &a.PurchaseID); err != nil {
		return err
	}
	if in.Model != nil {
		t.set("model", &a.Model, *in.Model)
	}
	if in.InternalID != nil {
		t.set("internal_id", &a.InternalID, *in.InternalID)
	}
	if in.Notes != nil {
		t.set("notes", &a.Notes, *in.Notes)
	}
	if in.LocationID != nil {
		id := *in.LocationID
		t.set("location_id", &a.LocationID, &id)
	}
	return nil
}

// UpdateAsset applies in to an asset and appends one history row per
// changed field. Cost and currency are locked while the asset's purchase
// is validated.
func (s *AssetService) UpdateAsset(ctx context.Context, assetID uint, in ItemInput, actorID *uint) (*models.Asset, error) {
	if err := validateItem(in, false); err != nil {
		return nil, err
	}
	var a *models.Asset
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		a, err = findByID[models.Asset](tx, assetID, "asset")
		if err != nil {
			return err
		}
		if err := checkRefs(tx, in); err != nil {
			return err
		}
		// The lock follows the purchase the asset belongs to before the edit.
		currentPurchase := a.PurchaseID

		t := &tracker{}
		if err := applyAsset(t, in, a); err != nil {
			return err
		}
		if err := checkMonetaryLock(tx, t, currentPurchase); err != nil {
			return err
		}
		if len(t.changes) == 0 {
			return nil
		}
		if err := tx.Save(a).Error; err != nil {
			return uniqueOr(err, "an asset with serial number %q already exists", derefOr(a.SerialNumber, ""))
		}
		return s.appendAssetHistory(tx, a.ID, actorID, t.changes)
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AssetService) appendAssetHistory(tx *gorm.DB, assetID uint, actorID *uint, changes []fieldChange) error {
	now := s.clock.Now().UTC()
	for _, c := range changes {
		h := models.AssetHistory{
			AssetID:   assetID,
			UserID:    actorID,
			Field:     c.Field,
			OldValue:  jsonValue(c.Old),
			NewValue:  jsonValue(c.New),
			Timestamp: now,
		}
		if err := tx.Create(&h).Error; err != nil {
			return fmt.Errorf("append asset history: %w", err)
		}
	}
	return nil
}

// AssetHistory returns the change log of an asset, oldest first.
func (s *AssetService) AssetHistory(ctx context.Context, assetID uint) ([]models.AssetHistory, error) {
	var out []models.AssetHistory
	err := s.db.WithContext(ctx).Where("asset_id = ?", assetID).Order("timestamp, id").Find(&out).Error
	return out, err
}

// CheckOutAsset hands an asset to userID. Any open assignment is closed
// first; asset.user_id always mirrors the open assignment.
func (s *AssetService) CheckOutAsset(ctx context.Context, assetID, userID uint, notes string, actorID *uint) (*models.AssetAssignment, error) {
	var asg *models.AssetAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findActive[models.Asset](tx, assetID, "asset")
		if err != nil {
			return err
		}
		if _, err := findActive[models.User](tx, userID, "user"); err != nil {
			return err
		}
		now := s.clock.Now().UTC()

		if err := tx.Model(&models.AssetAssignment{}).
			Where("asset_id = ? AND checked_in_date IS NULL", a.ID).
			Update("checked_in_date", now).Error; err != nil {
			return fmt.Errorf("close open assignment: %w", err)
		}

		asg = &models.AssetAssignment{AssetID: a.ID, UserID: &userID, CheckedOutDate: now, Notes: notes}
		if err := tx.Create(asg).Error; err != nil {
			return uniqueOr(err, "asset %d was checked out concurrently", a.ID)
		}

		t := &tracker{}
		t.set("user_id", &a.UserID, &userID)
		if len(t.changes) == 0 {
			return nil
		}
		if err := tx.Model(a).Update("user_id", userID).Error; err != nil {
			return err
		}
		return s.appendAssetHistory(tx, a.ID, actorID, t.changes)
	})
	if err != nil {
		return nil, err
	}
	glog.Infof("Asset[%d]: checked out to user %d", assetID, userID)
	return asg, nil
}

// CheckInAsset closes the open assignment and clears the asset's user.
func (s *AssetService) CheckInAsset(ctx context.Context, assetID uint, actorID *uint) (*models.AssetAssignment, error) {
	var asg models.AssetAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := findByID[models.Asset](tx, assetID, "asset")
		if err != nil {
			return err
		}
		if err := tx.Where("asset_id = ? AND checked_in_date IS NULL", a.ID).First(&asg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.State("asset %d is not checked out", a.ID)
			}
			return err
		}
		now := s.clock.Now().UTC()
		asg.CheckedInDate = &now
		if err := tx.Model(&asg).Update("checked_in_date", now).Error; err != nil {
			return err
		}

		t := &tracker{}
		t.set("user_id", &a.UserID, (*uint)(nil))
		if len(t.changes) == 0 {
			return nil
		}
		if err := tx.Model(a).Update("user_id", nil).Error; err != nil {
			return err
		}
		return s.appendAssetHistory(tx, a.ID, actorID, t.changes)
	})
	if err != nil {
		return nil, err
	}
	return &asg, nil
}

// AssetAssignments lists an asset's check-outs, newest first.
func (s *AssetService) AssetAssignments(ctx context.Context, assetID uint) ([]models.AssetAssignment, error) {
	var out []models.AssetAssignment
	err := s.db.WithContext(ctx).Preload("User").Where("asset_id = ?", assetID).
		Order("checked_out_date DESC, id DESC").Find(&out).Error
	return out, err
}

// CreatePeripheral inserts a new peripheral. A blank serial is stored as
// NULL.
func (s *AssetService) CreatePeripheral(ctx context.Context, in ItemInput) (*models.Peripheral, error) {
	if err := validateItem(in, true); err != nil {
		return nil, err
	}
	p := &models.Peripheral{Status: "In Stock", Currency: "EUR"}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkRefs(tx, in); err != nil {
			return err
		}
		t := &tracker{}
		if err := applyPeripheral(t, in, p); err != nil {
			return err
		}
		if err := tx.Create(p).Error; err != nil {
			return uniqueOr(err, "a peripheral with serial number %q already exists", derefOr(p.SerialNumber, ""))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func applyPeripheral(t *tracker, in ItemInput, p *models.Peripheral) error {
	if err := applyCommon(t, in, &p.Name, &p.Brand, &p.SerialNumber, &p.Status,
		&p.PurchaseDate, &p.Cost, &p.Currency, &p.WarrantyLength, &p.SupplierID, &p.PurchaseID); err != nil {
		return err
	}
	if in.Type != nil {
		t.set("type", &p.Type, *in.Type)
	}
	if in.AssetID != nil {
		id := *in.AssetID
		t.set("asset_id", &p.AssetID, &id)
	}
	return nil
}

// UpdatePeripheral mirrors UpdateAsset.
func (s *AssetService) UpdatePeripheral(ctx context.Context, peripheralID uint, in ItemInput, actorID *uint) (*models.Peripheral, error) {
	if err := validateItem(in, false); err != nil {
		return nil, err
	}
	var p *models.Peripheral
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = findByID[models.Peripheral](tx, peripheralID, "peripheral")
		if err != nil {
			return err
		}
		if err := checkRefs(tx, in); err != nil {
			return err
		}
		currentPurchase := p.PurchaseID

		t := &tracker{}
		if err := applyPeripheral(t, in, p); err != nil {
			return err
		}
		if err := checkMonetaryLock(tx, t, currentPurchase); err != nil {
			return err
		}
		if len(t.changes) == 0 {
			return nil
		}
		if err := tx.Save(p).Error; err != nil {
			return uniqueOr(err, "a peripheral with serial number %q already exists", derefOr(p.SerialNumber, ""))
		}
		return s.appendPeripheralHistory(tx, p.ID, actorID, t.changes)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *AssetService) appendPeripheralHistory(tx *gorm.DB, peripheralID uint, actorID *uint, changes []fieldChange) error {
	now := s.clock.Now().UTC()
	for _, c := range changes {
		h := models.PeripheralHistory{
			PeripheralID: peripheralID,
			UserID:       actorID,
			Field:        c.Field,
			OldValue:     jsonValue(c.Old),
			NewValue:     jsonValue(c.New),
			Timestamp:    now,
		}
		if err := tx.Create(&h).Error; err != nil {
			return fmt.Errorf("append peripheral history: %w", err)
		}
	}
	return nil
}

// CheckOutPeripheral mirrors CheckOutAsset.
func (s *AssetService) CheckOutPeripheral(ctx context.Context, peripheralID, userID uint, notes string, actorID *uint) (*models.PeripheralAssignment, error) {
	var asg *models.PeripheralAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findActive[models.Peripheral](tx, peripheralID, "peripheral")
		if err != nil {
			return err
		}
		if _, err := findActive[models.User](tx, userID, "user"); err != nil {
			return err
		}
		now := s.clock.Now().UTC()

		if err := tx.Model(&models.PeripheralAssignment{}).
			Where("peripheral_id = ? AND checked_in_date IS NULL", p.ID).
			Update("checked_in_date", now).Error; err != nil {
			return fmt.Errorf("close open assignment: %w", err)
		}

		asg = &models.PeripheralAssignment{PeripheralID: p.ID, UserID: &userID, CheckedOutDate: now, Notes: notes}
		if err := tx.Create(asg).Error; err != nil {
			return uniqueOr(err, "peripheral %d was checked out concurrently", p.ID)
		}

		t := &tracker{}
		t.set("user_id", &p.UserID, &userID)
		if len(t.changes) == 0 {
			return nil
		}
		if err := tx.Model(p).Update("user_id", userID).Error; err != nil {
			return err
		}
		return s.appendPeripheralHistory(tx, p.ID, actorID, t.changes)
	})
	if err != nil {
		return nil, err
	}
	return asg, nil
}

// CheckInPeripheral mirrors CheckInAsset.
func (s *AssetService) CheckInPeripheral(ctx context.Context, peripheralID uint, actorID *uint) (*models.PeripheralAssignment, error) {
	var asg models.PeripheralAssignment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := findByID[models.Peripheral](tx, peripheralID, "peripheral")
		if err != nil {
			return err
		}
		if err := tx.Where("peripheral_id = ? AND checked_in_date IS NULL", p.ID).First(&asg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.State("peripheral %d is not checked out", p.ID)
			}
			return err
		}
		now := s.clock.Now().UTC()
		asg.CheckedInDate = &now
		if err := tx.Model(&asg).Update("checked_in_date", now).Error; err != nil {
			return err
		}

		t := &tracker{}
		t.set("user_id", &p.UserID, (*uint)(nil))
		if len(t.changes) == 0 {
			return nil
		}
		if err := tx.Model(p).Update("user_id", nil).Error; err != nil {
			return err
		}
		return s.appendPeripheralHistory(tx, p.ID, actorID, t.changes)
	})
	if err != nil {
		return nil, err
	}
	return &asg, nil
}

// WarrantyItem is an asset or peripheral whose warranty ends soon.
type WarrantyItem struct {
	Kind        string    `json:"kind"`
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	WarrantyEnd time.Time `json:"warranty_end"`
	DaysLeft    int       `json:"days_left"`
}

// WarrantiesExpiring lists non-archived items whose warranty ends within
// days from today.
func (s *AssetService) WarrantiesExpiring(ctx context.Context, days int) ([]WarrantyItem, error) {
	today := calendar.Today(s.clock)
	db := s.db.WithContext(ctx)

	var assets []models.Asset
	if err := db.Where("is_archived = ? AND purchase_date IS NOT NULL AND warranty_length IS NOT NULL", false).
		Find(&assets).Error; err != nil {
		return nil, err
	}
	var peripherals []models.Peripheral
	if err := db.Where("is_archived = ? AND purchase_date IS NOT NULL AND warranty_length IS NOT NULL", false).
		Find(&peripherals).Error; err != nil {
		return nil, err
	}

	out := []WarrantyItem{}
	add := func(kind string, id uint, name string, end *time.Time) {
		if expiry.WarrantyExpiringWithin(end, today, days) {
			out = append(out, WarrantyItem{
				Kind: kind, ID: id, Name: name,
				WarrantyEnd: *end,
				DaysLeft:    calendar.DaysBetween(today, *end),
			})
		}
	}
	for i := range assets {
		add("asset", assets[i].ID, assets[i].Name, expiry.AssetWarrantyEnd(&assets[i]))
	}
	for i := range peripherals {
		add("peripheral", peripherals[i].ID, peripherals[i].Name, expiry.PeripheralWarrantyEnd(&peripherals[i]))
	}
	sortByDate(out, func(w WarrantyItem) time.Time { return w.WarrantyEnd })
	return out, nil
}
