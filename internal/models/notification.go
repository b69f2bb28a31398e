package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationSetting is the singleton row configuring the daily renewal
// notifier. The row with ID 1 is the only one read.
type NotificationSetting struct {
	ID               uint                     `gorm:"column:id;primaryKey" json:"id"`
	EmailEnabled     bool                     `gorm:"column:email_enabled;default:false" json:"email_enabled"`
	EmailRecipient   string                   `gorm:"column:email_recipient;size:255" json:"email_recipient"`
	WebhookEnabled   bool                     `gorm:"column:webhook_enabled;default:false" json:"webhook_enabled"`
	WebhookURL       string                   `gorm:"column:webhook_url;size:500" json:"webhook_url"`
	NotifyDaysBefore datatypes.JSONSlice[int] `gorm:"column:notify_days_before" json:"notify_days_before"`
	UpdatedAt        time.Time                `gorm:"column:updated_at" json:"updated_at"`
}

// NotificationSettingID is the primary key of the singleton row.
const NotificationSettingID = 1

// DefaultNotifyDaysBefore is used when the row has no configured days.
var DefaultNotifyDaysBefore = []int{30, 14, 7}

// NotificationLog records one dispatch attempt of the daily notifier.
type NotificationLog struct {
	ID           uint      `gorm:"column:id;primaryKey" json:"id"`
	Channel      string    `gorm:"column:channel;size:20;not null" json:"channel"`
	Recipient    string    `gorm:"column:recipient;size:500" json:"recipient"`
	RenewalCount int       `gorm:"column:renewal_count" json:"renewal_count"`
	Status       string    `gorm:"column:status;size:20;not null" json:"status"`
	ErrorMessage string    `gorm:"column:error_message;type:text" json:"error_message"`
	CreatedAt    time.Time `gorm:"column:created_at;index" json:"created_at"`
}

func (NotificationSetting) TableName() string {
	return "notification_settings"
}

func (NotificationLog) TableName() string {
	return "notification_logs"
}

// SystemPreference is a key/value row for process-wide settings.
type SystemPreference struct {
	ID    uint   `gorm:"column:id;primaryKey" json:"id"`
	Key   string `gorm:"column:key;size:100;uniqueIndex;not null" json:"key"`
	Value string `gorm:"column:value;type:text" json:"value"`
}

func (SystemPreference) TableName() string {
	return "system_preferences"
}
