package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/models"
)

// Owner is the resolved owner of a software entry or a documentation
// page. At most one of User and Group is set, matching Kind.
type Owner struct {
	Kind  models.OwnerType `json:"kind"`
	User  *models.User     `json:"user,omitempty"`
	Group *models.Group    `json:"group,omitempty"`
}

// Name is a display label for the owner.
func (o Owner) Name() string {
	switch {
	case o.User != nil:
		return o.User.Name
	case o.Group != nil:
		return o.Group.Name
	}
	return ""
}

// ResolveOwner turns (ownerType, ownerID) into an Owner. A dangling id
// resolves to no owner.
func ResolveOwner(tx *gorm.DB, ownerType models.OwnerType, ownerID *uint) (Owner, error) {
	if ownerID == nil {
		return Owner{Kind: models.OwnerNone}, nil
	}
	switch ownerType {
	case models.OwnerUser:
		var u models.User
		if err := tx.Where("id = ?", *ownerID).Limit(1).Find(&u).Error; err != nil {
			return Owner{}, err
		}
		if u.ID == 0 {
			return Owner{Kind: models.OwnerNone}, nil
		}
		return Owner{Kind: models.OwnerUser, User: &u}, nil
	case models.OwnerGroup:
		var g models.Group
		if err := tx.Where("id = ?", *ownerID).Limit(1).Find(&g).Error; err != nil {
			return Owner{}, err
		}
		if g.ID == 0 {
			return Owner{Kind: models.OwnerNone}, nil
		}
		return Owner{Kind: models.OwnerGroup, Group: &g}, nil
	}
	return Owner{Kind: models.OwnerNone}, nil
}

// checkOwner validates an owner reference before it is stored.
func checkOwner(tx *gorm.DB, ownerType models.OwnerType, ownerID *uint) error {
	switch ownerType {
	case models.OwnerNone:
		if ownerID != nil {
			return apperr.Validation("owner id given without an owner type")
		}
		return nil
	case models.OwnerUser:
		if ownerID == nil {
			return apperr.Validation("owner id is required")
		}
		_, err := findActive[models.User](tx, *ownerID, "user")
		return err
	case models.OwnerGroup:
		if ownerID == nil {
			return apperr.Validation("owner id is required")
		}
		_, err := findByID[models.Group](tx, *ownerID, "group")
		return err
	}
	return apperr.Validation("unknown owner type %q", ownerType)
}

// SoftwareService manages the software catalogue.
type SoftwareService struct {
	db *gorm.DB
}

func NewSoftwareService(db *gorm.DB) *SoftwareService {
	return &SoftwareService{db: db}
}

// SoftwareView is a catalogue entry with its resolved owner.
type SoftwareView struct {
	models.Software
	Owner Owner `json:"owner"`
}

// Create adds a software entry.
func (s *SoftwareService) Create(ctx context.Context, sw models.Software) (*models.Software, error) {
	if sw.Name == "" {
		return nil, apperr.Validation("software name is required")
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkOwner(tx, sw.OwnerType, sw.OwnerID); err != nil {
			return err
		}
		if sw.SupplierID != nil {
			if _, err := findByID[models.Supplier](tx, *sw.SupplierID, "supplier"); err != nil {
				return err
			}
		}
		if err := tx.Create(&sw).Error; err != nil {
			return uniqueOr(err, "software %q already exists", sw.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sw, nil
}

// SetOwner reassigns ownership.
func (s *SoftwareService) SetOwner(ctx context.Context, softwareID uint, ownerType models.OwnerType, ownerID *uint) (*SoftwareView, error) {
	var view *SoftwareView
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sw, err := findByID[models.Software](tx, softwareID, "software")
		if err != nil {
			return err
		}
		if err := checkOwner(tx, ownerType, ownerID); err != nil {
			return err
		}
		if err := tx.Model(sw).Updates(map[string]any{"owner_type": ownerType, "owner_id": ownerID}).Error; err != nil {
			return err
		}
		sw.OwnerType, sw.OwnerID = ownerType, ownerID
		owner, err := ResolveOwner(tx, ownerType, ownerID)
		if err != nil {
			return err
		}
		view = &SoftwareView{Software: *sw, Owner: owner}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// Get loads a software entry with its owner.
func (s *SoftwareService) Get(ctx context.Context, softwareID uint) (*SoftwareView, error) {
	db := s.db.WithContext(ctx)
	sw, err := findByID[models.Software](db, softwareID, "software")
	if err != nil {
		return nil, err
	}
	owner, err := ResolveOwner(db, sw.OwnerType, sw.OwnerID)
	if err != nil {
		return nil, err
	}
	return &SoftwareView{Software: *sw, Owner: owner}, nil
}

// DocumentationOwner resolves the owner of a documentation page.
func DocumentationOwner(ctx context.Context, db *gorm.DB, docID uint) (Owner, error) {
	doc, err := findByID[models.Documentation](db.WithContext(ctx), docID, "documentation")
	if err != nil {
		return Owner{}, err
	}
	return ResolveOwner(db.WithContext(ctx), doc.OwnerType, doc.OwnerID)
}
