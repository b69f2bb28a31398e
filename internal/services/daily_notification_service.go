package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/golang/glog"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/config"
	"github.com/opsledger/backend/internal/currency"
	"github.com/opsledger/backend/internal/metrics"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/renewal"
)

// PreferenceNotificationSendTime overrides NOTIFICATION_SEND_TIME when set.
const PreferenceNotificationSendTime = "notification_send_time"

// DailyNotificationService announces upcoming subscription renewals.
// Runs once per day at the configured notification send time (default 08:00 UTC).
type DailyNotificationService struct {
	db       *gorm.DB
	clock    calendar.Clock
	settings *NotificationSettingsService
	mailer   Mailer
	poster   Poster

	defaultWebhook string
	defaultSend    string

	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	lastRunAt time.Time
}

// NewDailyNotificationService wires the notifier to its channels.
func NewDailyNotificationService(db *gorm.DB, clock calendar.Clock, settings *NotificationSettingsService,
	mailer Mailer, poster Poster, cfg *config.Config) *DailyNotificationService {
	return &DailyNotificationService{
		db:             db,
		clock:          clock,
		settings:       settings,
		mailer:         mailer,
		poster:         poster,
		defaultWebhook: cfg.WebhookURL,
		defaultSend:    cfg.NotificationSendTime,
		stopChan:       make(chan struct{}),
	}
}

// Start begins the daily notification scheduler
func (s *DailyNotificationService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		glog.Info("DailyNotificationService started")

		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.checkAndRun()
			case <-s.stopChan:
				glog.Info("DailyNotificationService stopped")
				return
			}
		}
	}()
}

// Stop stops the daily notification service and waits for a running
// dispatch to finish.
func (s *DailyNotificationService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

// ParseSendTime reads "HH:MM". Anything else falls back to 08:00.
func ParseSendTime(v string) (int, int) {
	parts := strings.Split(strings.TrimSpace(v), ":")
	if len(parts) != 2 {
		return 8, 0
	}
	var hour, minute int
	if _, err := fmt.Sscanf(parts[0], "%d", &hour); err != nil {
		return 8, 0
	}
	if _, err := fmt.Sscanf(parts[1], "%d", &minute); err != nil {
		return 8, 0
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 8, 0
	}
	return hour, minute
}

// sendTime prefers the stored preference over the environment.
func (s *DailyNotificationService) sendTime() (int, int) {
	var pref models.SystemPreference
	if err := s.db.Where("key = ?", PreferenceNotificationSendTime).Limit(1).Find(&pref).Error; err == nil && pref.Value != "" {
		return ParseSendTime(pref.Value)
	}
	return ParseSendTime(s.defaultSend)
}

// checkAndRun fires once when the clock reaches the send time.
func (s *DailyNotificationService) checkAndRun() {
	now := s.clock.Now().UTC()
	sendHour, sendMinute := s.sendTime()
	if now.Hour() != sendHour || now.Minute() != sendMinute {
		return
	}

	// Prevent double-firing within the same minute
	todayRun := time.Date(now.Year(), now.Month(), now.Day(), sendHour, sendMinute, 0, 0, time.UTC)
	s.mu.Lock()
	if !s.lastRunAt.IsZero() && s.lastRunAt.After(todayRun.Add(-1*time.Minute)) {
		s.mu.Unlock()
		return
	}
	s.lastRunAt = now
	s.mu.Unlock()

	glog.Infof("DailyNotif: running at %02d:%02d", sendHour, sendMinute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	if _, err := s.RunOnce(ctx, calendar.Truncate(now)); err != nil {
		glog.Errorf("DailyNotif: run failed: %v", err)
	}
}

// DueRenewal is a subscription whose next renewal distance is one of the
// configured notify days.
type DueRenewal struct {
	SubscriptionID uint      `json:"subscription_id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	RenewalDate    time.Time `json:"renewal_date"`
	DaysUntil      int       `json:"days_until"`
	CostEUR        float64   `json:"cost_eur"`
}

// RunResult reports what a run selected and dispatched.
type RunResult struct {
	Due         []DueRenewal `json:"due"`
	EmailSent   bool         `json:"email_sent"`
	WebhookSent bool         `json:"webhook_sent"`
	Errors      []string     `json:"errors,omitempty"`
}

// SelectDue returns the active subscriptions whose next renewal is
// exactly one of days away from today. ctx is checked between
// subscriptions.
func (s *DailyNotificationService) SelectDue(ctx context.Context, today time.Time, days []int) ([]DueRenewal, error) {
	wanted := mapset.NewThreadUnsafeSet(days...)
	var subs []models.Subscription
	if err := s.db.WithContext(ctx).Where("is_archived = ?", false).Order("id").Find(&subs).Error; err != nil {
		return nil, err
	}
	due := []DueRenewal{}
	for i := range subs {
		if err := ctx.Err(); err != nil {
			return due, err
		}
		sub := &subs[i]
		d, next, err := renewal.DaysUntilNext(sub, today)
		if err != nil {
			glog.Warningf("DailyNotif[%s]: skipping: %v", sub.Name, err)
			continue
		}
		if !wanted.Contains(d) {
			continue
		}
		due = append(due, DueRenewal{
			SubscriptionID: sub.ID,
			Name:           sub.Name,
			Type:           sub.SubscriptionType,
			RenewalDate:    next,
			DaysUntil:      d,
			CostEUR:        currency.ToEUR(sub.Cost, sub.Currency),
		})
	}
	sortByDate(due, func(r DueRenewal) time.Time { return r.RenewalDate })
	return due, nil
}

// RunOnce selects due renewals for today and sends at most one email and
// one webhook. Dispatch failures are logged and recorded, never retried
// within the run.
func (s *DailyNotificationService) RunOnce(ctx context.Context, today time.Time) (*RunResult, error) {
	setting, err := s.settings.Get(ctx)
	if err != nil {
		metrics.NotifierRuns.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("load notification settings: %w", err)
	}
	due, err := s.SelectDue(ctx, calendar.Truncate(today), setting.NotifyDaysBefore)
	if err != nil {
		metrics.NotifierRuns.WithLabelValues("error").Inc()
		return nil, err
	}
	res := &RunResult{Due: due}
	if len(due) == 0 {
		glog.Info("DailyNotif: no renewals due")
		metrics.NotifierRuns.WithLabelValues("empty").Inc()
		return res, nil
	}
	glog.Infof("DailyNotif: %d renewals due", len(due))
	metrics.RenewalsNotified.Add(float64(len(due)))

	text := renewalText(due, today)

	if setting.EmailEnabled && s.mailer != nil && s.mailer.Enabled() {
		to := splitRecipients(setting.EmailRecipient)
		subject := fmt.Sprintf("Upcoming subscription renewals (%d)", len(due))
		err := s.mailer.Send(to, subject, text)
		s.record("email", setting.EmailRecipient, len(due), err)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("email: %v", err))
		} else {
			res.EmailSent = true
		}
	}

	hook := setting.WebhookURL
	if hook == "" {
		hook = s.defaultWebhook
	}
	if setting.WebhookEnabled && hook != "" && s.poster != nil {
		err := s.poster.Post(ctx, hook, webhookPayload(text, due))
		s.record("webhook", hook, len(due), err)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("webhook: %v", err))
		} else {
			res.WebhookSent = true
		}
	}

	outcome := "sent"
	if len(res.Errors) > 0 {
		outcome = "partial"
	}
	metrics.NotifierRuns.WithLabelValues(outcome).Inc()
	return res, nil
}

// record writes a NotificationLog row for one dispatch attempt.
func (s *DailyNotificationService) record(channel, recipient string, count int, sendErr error) {
	status := "sent"
	errMsg := ""
	if sendErr != nil {
		status = "failed"
		errMsg = sendErr.Error()
		glog.Errorf("DailyNotif[%s]: dispatch to %s failed: %v", channel, recipient, sendErr)
	} else {
		glog.Infof("DailyNotif[%s]: sent %d renewals to %s", channel, count, recipient)
	}
	metrics.NotificationsDispatched.WithLabelValues(channel, status).Inc()

	row := models.NotificationLog{
		Channel:      channel,
		Recipient:    recipient,
		RenewalCount: count,
		Status:       status,
		ErrorMessage: errMsg,
		CreatedAt:    s.clock.Now().UTC(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		glog.Warningf("DailyNotif[%s]: failed to write log row: %v", channel, err)
	}
}

func renewalText(due []DueRenewal, today time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subscription renewals coming up (as of %s):\n\n", calendar.Format(today))
	for _, r := range due {
		fmt.Fprintf(&b, "- %s", r.Name)
		if r.Type != "" {
			fmt.Fprintf(&b, " (%s)", r.Type)
		}
		fmt.Fprintf(&b, ": renews %s, in %d days, %.2f EUR\n", calendar.Format(r.RenewalDate), r.DaysUntil, r.CostEUR)
	}
	return b.String()
}

func webhookPayload(text string, due []DueRenewal) WebhookPayload {
	p := WebhookPayload{Text: text, Renewals: make([]WebhookRenewal, 0, len(due))}
	for _, r := range due {
		p.Renewals = append(p.Renewals, WebhookRenewal{
			Name:        r.Name,
			Type:        r.Type,
			RenewalDate: calendar.Format(r.RenewalDate),
			DaysUntil:   r.DaysUntil,
			CostEUR:     r.CostEUR,
		})
	}
	return p
}

// NotificationLogs returns the most recent dispatch attempts.
func (s *DailyNotificationService) NotificationLogs(ctx context.Context, limit int) ([]models.NotificationLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []models.NotificationLog
	err := s.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}
