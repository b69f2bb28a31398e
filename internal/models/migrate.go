package models

import (
	"fmt"

	"github.com/golang/glog"
	"gorm.io/gorm"
)

// All lists every model managed by AutoMigrate, leaves first.
func All() []any {
	return []any{
		&User{}, &Group{},
		&Supplier{}, &Contact{}, &Location{}, &Tag{}, &PaymentMethod{},
		&Software{}, &Subscription{}, &CostHistory{},
		&Budget{}, &Purchase{}, &PurchaseCostHistory{},
		&Asset{}, &AssetAssignment{}, &AssetHistory{},
		&Peripheral{}, &PeripheralAssignment{}, &PeripheralHistory{},
		&License{},
		&Attachment{},
		&Policy{}, &PolicyVersion{}, &PolicyAcknowledgement{},
		&Course{}, &CourseAssignment{}, &CourseCompletion{},
		&Risk{}, &SecurityIncident{}, &PostIncidentReview{}, &IncidentTimelineEvent{},
		&Framework{}, &FrameworkControl{}, &ComplianceLink{},
		&BCDRPlan{}, &BCDRTestLog{}, &DisposalRecord{}, &DisposalHistory{},
		&Opportunity{}, &Activity{}, &Lead{}, &Documentation{},
		&NotificationSetting{}, &NotificationLog{}, &SystemPreference{},
		&AuditLog{},
	}
}

// postMigrate holds constraints gorm tags cannot express. Both Postgres and
// SQLite accept partial indexes.
var postMigrate = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_active_policy_version ON policy_versions (policy_id) WHERE status = 'Active'`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_asset_assignment ON asset_assignments (asset_id) WHERE checked_in_date IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_one_open_peripheral_assignment ON peripheral_assignments (peripheral_id) WHERE checked_in_date IS NULL`,
}

// AutoMigrate creates or updates the schema.
func AutoMigrate(db *gorm.DB) error {
	glog.Info("Running database migrations...")

	if err := db.AutoMigrate(All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	for _, stmt := range postMigrate {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("post migrate %q: %w", stmt, err)
		}
	}

	glog.Info("Database migrations completed successfully")
	return nil
}
