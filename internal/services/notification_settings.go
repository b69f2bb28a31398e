package services

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang/glog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/database"
	"github.com/opsledger/backend/internal/models"
)

// NotificationSettingsService reads and writes the notifier's singleton
// settings row.
type NotificationSettingsService struct {
	db *gorm.DB
	// Cache enables the shared settings cache.
	Cache bool
}

func NewNotificationSettingsService(db *gorm.DB) *NotificationSettingsService {
	return &NotificationSettingsService{db: db}
}

// Get returns the settings row, or defaults when none was saved.
func (s *NotificationSettingsService) Get(ctx context.Context) (*models.NotificationSetting, error) {
	if s.Cache {
		var cached models.NotificationSetting
		if err := database.CacheGet(database.CacheKeyNotificationSetting, &cached); err == nil {
			return &cached, nil
		}
	}
	var setting models.NotificationSetting
	err := s.db.WithContext(ctx).First(&setting, models.NotificationSettingID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		setting = models.NotificationSetting{ID: models.NotificationSettingID}
	} else if err != nil {
		return nil, err
	}
	if len(setting.NotifyDaysBefore) == 0 {
		setting.NotifyDaysBefore = datatypes.JSONSlice[int](append([]int(nil), models.DefaultNotifyDaysBefore...))
	}
	if s.Cache {
		if err := database.CacheSet(database.CacheKeyNotificationSetting, setting, database.CacheTTLSettings); err != nil {
			glog.Warningf("NotificationSettings: cache set failed: %v", err)
		}
	}
	return &setting, nil
}

// NotificationSettingsInput replaces the settings row.
type NotificationSettingsInput struct {
	EmailEnabled     bool   `json:"email_enabled"`
	EmailRecipient   string `json:"email_recipient"`
	WebhookEnabled   bool   `json:"webhook_enabled"`
	WebhookURL       string `json:"webhook_url"`
	NotifyDaysBefore []int  `json:"notify_days_before"`
}

// NormalizeDays deduplicates days and orders them descending. Every day
// must be positive.
func NormalizeDays(days []int) ([]int, error) {
	set := mapset.NewThreadUnsafeSet[int]()
	for _, d := range days {
		if d <= 0 {
			return nil, apperr.Validation("notify days must be positive, got %d", d)
		}
		set.Add(d)
	}
	out := set.ToSlice()
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}

// Update validates and stores the settings row.
func (s *NotificationSettingsService) Update(ctx context.Context, in NotificationSettingsInput) (*models.NotificationSetting, error) {
	days, err := NormalizeDays(in.NotifyDaysBefore)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 {
		days = append([]int(nil), models.DefaultNotifyDaysBefore...)
	}
	recipient := strings.TrimSpace(in.EmailRecipient)
	if in.EmailEnabled && len(splitRecipients(recipient)) == 0 {
		return nil, apperr.Validation("an email recipient is required when email is enabled")
	}
	hook := strings.TrimSpace(in.WebhookURL)
	if hook != "" {
		u, err := url.Parse(hook)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, apperr.Validation("webhook url must be an http(s) url")
		}
	}

	setting := models.NotificationSetting{
		ID:               models.NotificationSettingID,
		EmailEnabled:     in.EmailEnabled,
		EmailRecipient:   recipient,
		WebhookEnabled:   in.WebhookEnabled,
		WebhookURL:       hook,
		NotifyDaysBefore: datatypes.JSONSlice[int](days),
	}
	if err := s.db.WithContext(ctx).Save(&setting).Error; err != nil {
		return nil, err
	}
	if s.Cache {
		database.InvalidateNotificationSettingCache()
	}
	return &setting, nil
}
