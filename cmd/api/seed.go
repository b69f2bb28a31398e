package main

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/services"
)

func ptr[T any](v T) *T { return &v }

// builtinFrameworks are installed by seed-db with a representative subset
// of their controls.
var builtinFrameworks = []models.Framework{
	{
		Name:        "ISO 27001",
		Description: "ISO/IEC 27001:2022 Annex A",
		Controls: []models.FrameworkControl{
			{ControlID: "A.5.1", Name: "Policies for information security"},
			{ControlID: "A.5.9", Name: "Inventory of information and other associated assets"},
			{ControlID: "A.5.19", Name: "Information security in supplier relationships"},
			{ControlID: "A.5.24", Name: "Incident management planning and preparation"},
			{ControlID: "A.6.3", Name: "Information security awareness, education and training"},
			{ControlID: "A.7.14", Name: "Secure disposal or re-use of equipment"},
		},
	},
	{
		Name:        "SOC 2",
		Description: "AICPA Trust Services Criteria",
		Controls: []models.FrameworkControl{
			{ControlID: "CC1.4", Name: "Commitment to competence"},
			{ControlID: "CC3.2", Name: "Risk identification and analysis"},
			{ControlID: "CC6.1", Name: "Logical access security"},
			{ControlID: "CC7.4", Name: "Incident response"},
			{ControlID: "CC9.2", Name: "Vendor and business partner risk"},
		},
	},
}

// seedDemoData inserts a small demo dataset. It does nothing and returns
// false when any supplier already exists.
func seedDemoData(ctx context.Context, db *gorm.DB, svc *services.Services) (bool, error) {
	var suppliers int64
	if err := db.WithContext(ctx).Model(&models.Supplier{}).Count(&suppliers).Error; err != nil {
		return false, err
	}
	if suppliers > 0 {
		return false, nil
	}

	today := calendar.Today(svc.Clock)

	// Reference data is inserted in one transaction; domain objects go
	// through the services so their rules apply.
	var (
		microsoft, dell models.Supplier
		office          models.Location
		card            models.PaymentMethod
		saas            models.Tag
		budget          models.Budget
		purchase        models.Purchase
		policy          models.Policy
		course          models.Course
	)
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		microsoft = models.Supplier{Name: "Microsoft", Website: "https://microsoft.com",
			ComplianceStatus: models.ComplianceApproved, DataStorageRegion: "EU"}
		dell = models.Supplier{Name: "Dell", Website: "https://dell.com", ComplianceStatus: models.CompliancePending}
		office = models.Location{Name: "Head Office", Address: "1 Main Street"}
		card = models.PaymentMethod{Name: "Company Visa", MethodType: "Credit Card",
			ExpiryDate: ptr(time.Date(today.Year(), today.Month()+2, 1, 0, 0, 0, 0, time.UTC))}
		saas = models.Tag{Name: "SaaS", Color: "#2563eb"}
		budget = models.Budget{Name: fmt.Sprintf("IT Hardware %d", today.Year()), Amount: 25000, Currency: "EUR", Year: today.Year()}
		policy = models.Policy{Title: "Acceptable Use", Category: "Security"}
		course = models.Course{Title: "Security Awareness", CompletionDays: 30}

		for _, row := range []any{&microsoft, &dell, &office, &card, &saas, &budget, &policy, &course} {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
		}

		purchase = models.Purchase{Description: "Laptop refresh", InvoiceNumber: "INV-1001",
			PurchaseDate: today.AddDate(0, -3, 0), SupplierID: &dell.ID, BudgetID: &budget.ID, PaymentMethodID: &card.ID}
		if err := tx.Create(&purchase).Error; err != nil {
			return err
		}

		for i := range builtinFrameworks {
			fw := builtinFrameworks[i]
			fw.IsBuiltin = true
			fw.IsActive = true
			if err := tx.Create(&fw).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	admin, err := adminUser(ctx, db)
	if err != nil {
		return false, err
	}

	if _, err := svc.Subscriptions.Create(ctx, services.SubscriptionInput{
		Name:              ptr("Microsoft 365 Business"),
		SubscriptionType:  ptr("SaaS"),
		RenewalDate:       ptr(today.AddDate(0, 0, 7)),
		RenewalPeriodType: ptr(string(models.RenewalMonthly)),
		MonthlyRenewalDay: ptr("first"),
		Cost:              ptr(264.0),
		Currency:          ptr("EUR"),
		AutoRenew:         ptr(true),
		SupplierID:        &microsoft.ID,
		TagIDs:            []uint{saas.ID},
		PaymentMethodIDs:  []uint{card.ID},
	}); err != nil {
		return false, fmt.Errorf("subscription: %w", err)
	}
	if _, err := svc.Subscriptions.Create(ctx, services.SubscriptionInput{
		Name:              ptr("Dell ProSupport"),
		SubscriptionType:  ptr("Support"),
		RenewalDate:       ptr(today.AddDate(0, 0, 30)),
		RenewalPeriodType: ptr(string(models.RenewalYearly)),
		Cost:              ptr(1200.0),
		Currency:          ptr("USD"),
		SupplierID:        &dell.ID,
	}); err != nil {
		return false, fmt.Errorf("subscription: %w", err)
	}

	for i, serial := range []string{"DL-7420-001", "DL-7420-002"} {
		asset, err := svc.Assets.CreateAsset(ctx, services.ItemInput{
			Name:           ptr(fmt.Sprintf("Latitude 7420 #%d", i+1)),
			Brand:          ptr("Dell"),
			Model:          ptr("Latitude 7420"),
			Type:           ptr("Laptop"),
			SerialNumber:   ptr(serial),
			PurchaseDate:   ptr(purchase.PurchaseDate),
			Cost:           ptr(1150.0),
			Currency:       ptr("EUR"),
			WarrantyLength: ptr(12),
			LocationID:     &office.ID,
			SupplierID:     &dell.ID,
			PurchaseID:     &purchase.ID,
		})
		if err != nil {
			return false, fmt.Errorf("asset: %w", err)
		}
		if i == 0 {
			if _, err := svc.Assets.CheckOutAsset(ctx, asset.ID, admin.ID, "Demo checkout", &admin.ID); err != nil {
				return false, fmt.Errorf("checkout: %w", err)
			}
		}
	}

	version, err := svc.Policies.CreateVersion(ctx, policy.ID, services.VersionInput{
		VersionNumber: "1.0",
		Content:       "Company equipment is for business use.",
		EffectiveDate: today,
		UserIDs:       []uint{admin.ID},
	})
	if err != nil {
		return false, fmt.Errorf("policy version: %w", err)
	}
	if _, err := svc.Policies.ActivateVersion(ctx, version.ID); err != nil {
		return false, fmt.Errorf("activate policy: %w", err)
	}

	if _, _, err := svc.Training.Assign(ctx, course.ID, admin.ID); err != nil {
		return false, fmt.Errorf("training: %w", err)
	}

	if _, err := svc.Risks.Create(ctx, services.RiskInput{
		Title:              "Lost or stolen laptop",
		InherentImpact:     4,
		InherentLikelihood: 3,
		ResidualImpact:     2,
		ResidualLikelihood: 2,
		TreatmentStrategy:  models.TreatmentMitigate,
		OwnerID:            &admin.ID,
	}); err != nil {
		return false, fmt.Errorf("risk: %w", err)
	}

	glog.Infof("Seed: demo data created (%d frameworks)", len(builtinFrameworks))
	return true, nil
}

func adminUser(ctx context.Context, db *gorm.DB) (*models.User, error) {
	var u models.User
	if err := db.WithContext(ctx).Where("role = ?", models.RoleAdmin).Order("id").First(&u).Error; err != nil {
		return nil, fmt.Errorf("find admin user: %w", err)
	}
	return &u, nil
}
