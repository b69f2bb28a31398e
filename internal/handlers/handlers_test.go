package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/calendar"
	"github.com/opsledger/backend/internal/config"
	"github.com/opsledger/backend/internal/database"
	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/services"
	"github.com/opsledger/backend/internal/storage"
)

const testPassword = "s3cret-pass"

type testEnv struct {
	t   *testing.T
	app *fiber.App
	db  *gorm.DB
	svc *services.Services
	cfg *config.Config

	admin, editor, user *models.User
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	blobs, err := storage.NewBlobStore(t.TempDir())
	require.NoError(t, err)
	cfg := &config.Config{SecretKey: "handler-test-secret", TokenExpireHours: 1}
	clock := calendar.FixedClock{At: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)}
	svc := services.New(db, cfg, blobs, services.Options{Clock: clock})

	e := &testEnv{t: t, db: db, svc: svc, cfg: cfg}
	e.app = NewApp(cfg, db, svc, RouterOptions{})
	e.admin = e.mkUser("Ada", models.RoleAdmin)
	e.editor = e.mkUser("Eddie", models.RoleEditor)
	e.user = e.mkUser("Uma", models.RoleUser)
	return e
}

func (e *testEnv) mkUser(name string, role models.Role) *models.User {
	e.t.Helper()
	u, err := e.svc.Users.Create(context.Background(), services.UserInput{
		Name:     name,
		Email:    strings.ToLower(name) + "-" + strconv.FormatInt(time.Now().UnixNano(), 36) + "@example.com",
		Password: testPassword,
		Role:     role,
	})
	require.NoError(e.t, err)
	return u
}

func (e *testEnv) token(u *models.User) string {
	e.t.Helper()
	tok, err := middleware.GenerateToken(u, e.cfg)
	require.NoError(e.t, err)
	return tok
}

type response struct {
	Status int
	Body   map[string]any
	Raw    []byte
}

func (r response) data() map[string]any {
	m, _ := r.Body["data"].(map[string]any)
	return m
}

func (r response) list() []any {
	l, _ := r.Body["data"].([]any)
	return l
}

func (e *testEnv) send(req *http.Request, as *models.User) response {
	e.t.Helper()
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(as))
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(e.t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(e.t, err)

	out := response{Status: resp.StatusCode, Raw: raw}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(e.t, json.Unmarshal(raw, &out.Body))
	}
	return out
}

func (e *testEnv) do(method, path string, as *models.User, body any) response {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req, as)
}

func (e *testEnv) multipart(path string, as *models.User, fields map[string]string, fileField, filename, content string) response {
	e.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(e.t, w.WriteField(k, v))
	}
	if fileField != "" {
		fw, err := w.CreateFormFile(fileField, filename)
		require.NoError(e.t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(e.t, err)
	}
	require.NoError(e.t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return e.send(req, as)
}

func idOf(m map[string]any) uint {
	return uint(m["id"].(float64))
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestStatusForKinds(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindNotFound:      404,
		apperr.KindValidation:    400,
		apperr.KindUniqueness:    409,
		apperr.KindState:         409,
		apperr.KindAuthorization: 403,
		apperr.KindIntegration:   502,
		"":                       500,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(kind), "kind %q", kind)
	}
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	res := e.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, 200, res.Status)
	assert.Equal(t, "healthy", res.Body["status"])
}

func TestLoginMeAndLogout(t *testing.T) {
	e := newEnv(t)
	u := e.mkUser("Logan", models.RoleUser)

	res := e.do(http.MethodPost, "/api/auth/login", nil, fiber.Map{"login": u.Email, "password": testPassword})
	require.Equal(t, 200, res.Status, string(res.Raw))
	token, _ := res.Body["token"].(string)
	require.NotEmpty(t, token)

	me := func() response {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		return e.send(req, nil)
	}
	res = me()
	require.Equal(t, 200, res.Status)
	assert.Equal(t, u.Email, res.data()["email"])
	assert.NotContains(t, string(res.Raw), "password")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res = e.send(req, nil)
	require.Equal(t, 200, res.Status)

	res = me()
	assert.Equal(t, 401, res.Status)
	assert.Contains(t, res.Body["message"], "revoked")
}

func TestLoginFailuresBlockClient(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.db.Create(&models.SystemPreference{Key: "max_login_attempts", Value: "2"}).Error)

	res := e.do(http.MethodPost, "/api/auth/login", nil, fiber.Map{"login": e.user.Email, "password": "wrong"})
	require.Equal(t, 401, res.Status)
	assert.Contains(t, res.Body["message"], "1 attempts remaining")

	res = e.do(http.MethodPost, "/api/auth/login", nil, fiber.Map{"login": e.user.Email, "password": "wrong"})
	require.Equal(t, 401, res.Status)

	res = e.do(http.MethodPost, "/api/auth/login", nil, fiber.Map{"login": e.user.Email, "password": testPassword})
	assert.Equal(t, 429, res.Status)

	res = e.do(http.MethodPost, "/api/auth/login", nil, fiber.Map{"login": ""})
	assert.Equal(t, 429, res.Status, "blocked before the body is read")
}

func TestLoginLimiterExpires(t *testing.T) {
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	l := newLoginLimiter()
	l.now = func() time.Time { return now }

	assert.Equal(t, 1, l.fail("10.0.0.1", 2))
	blocked, _ := l.blocked("10.0.0.1", 2)
	assert.False(t, blocked)
	assert.Equal(t, 0, l.fail("10.0.0.1", 2))
	blocked, minutes := l.blocked("10.0.0.1", 2)
	assert.True(t, blocked)
	assert.Equal(t, 15, minutes)

	now = now.Add(16 * time.Minute)
	blocked, _ = l.blocked("10.0.0.1", 2)
	assert.False(t, blocked)
}

func TestAuthAndRoleGuards(t *testing.T) {
	e := newEnv(t)

	res := e.do(http.MethodGet, "/api/subscriptions/upcoming", nil, nil)
	assert.Equal(t, 401, res.Status)

	res = e.do(http.MethodPost, "/api/subscriptions", e.user, fiber.Map{"name": "x"})
	assert.Equal(t, 403, res.Status)
	assert.Equal(t, false, res.Body["success"])

	res = e.do(http.MethodGet, "/api/notifications/settings", e.editor, nil)
	assert.Equal(t, 403, res.Status)

	require.NoError(t, e.svc.Users.SetArchived(context.Background(), e.user.ID, true))
	res = e.do(http.MethodGet, "/api/auth/me", e.user, nil)
	assert.Equal(t, 401, res.Status)
}

func TestSubscriptionEndpoints(t *testing.T) {
	e := newEnv(t)
	sup := models.Supplier{Name: "Acme", ComplianceStatus: models.CompliancePending}
	require.NoError(t, e.db.Create(&sup).Error)

	res := e.do(http.MethodPost, "/api/subscriptions", e.editor, fiber.Map{
		"name":         "Chat",
		"renewal_date": "2024-12-08",
		"supplier_id":  sup.ID,
		"cost":         20,
		"currency":     "USD",
	})
	require.Equal(t, 201, res.Status, string(res.Raw))
	id := idOf(res.data())

	res = e.do(http.MethodGet, "/api/subscriptions/"+itoa(id)+"/renewals?start=2025-01-01&end=2025-03-31", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Equal(t, []any{"2025-01-08", "2025-02-08", "2025-03-08"}, res.list())

	res = e.do(http.MethodGet, "/api/subscriptions/"+itoa(id)+"/next-renewal", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Equal(t, "2025-01-08", res.data()["renewal_date"])
	assert.Equal(t, 7.0, res.data()["days_until"])

	res = e.do(http.MethodGet, "/api/subscriptions/upcoming?days=30", e.user, nil)
	require.Equal(t, 200, res.Status)
	require.Len(t, res.list(), 1)
	assert.InDelta(t, 18.4, res.list()[0].(map[string]any)["cost_eur"], 0.001)

	res = e.do(http.MethodGet, "/api/subscriptions/"+itoa(id)+"/renewals?start=2025-13-01", e.user, nil)
	assert.Equal(t, 400, res.Status)

	res = e.do(http.MethodPut, "/api/subscriptions/"+itoa(id), e.editor, fiber.Map{"renewal_period_type": "weekly"})
	assert.Equal(t, 400, res.Status)

	res = e.do(http.MethodPut, "/api/subscriptions/"+itoa(id), e.editor, fiber.Map{"renewal_date": "08/12/2024"})
	assert.Equal(t, 400, res.Status)

	res = e.do(http.MethodPost, "/api/subscriptions/"+itoa(id)+"/archive", e.editor, nil)
	require.Equal(t, 200, res.Status)
	res = e.do(http.MethodGet, "/api/subscriptions/upcoming", e.user, nil)
	assert.Empty(t, res.list())

	res = e.do(http.MethodGet, "/api/subscriptions/999", e.user, nil)
	assert.Equal(t, 404, res.Status)
	res = e.do(http.MethodGet, "/api/subscriptions/abc", e.user, nil)
	assert.Equal(t, 400, res.Status)
}

func TestPurchaseValidationEndpoints(t *testing.T) {
	e := newEnv(t)
	p := models.Purchase{Description: "laptops", PurchaseDate: calendar.Date(2024, 12, 1)}
	require.NoError(t, e.db.Create(&p).Error)
	cost := 900.0
	require.NoError(t, e.db.Create(&models.Asset{Name: "A", Cost: &cost, Currency: "EUR", PurchaseID: &p.ID}).Error)
	path := "/api/purchases/" + itoa(p.ID)

	res := e.do(http.MethodPost, path+"/validate", e.user, nil)
	assert.Equal(t, 403, res.Status)

	res = e.do(http.MethodPost, path+"/validate", e.editor, nil)
	require.Equal(t, 200, res.Status, string(res.Raw))
	assert.Equal(t, 900.0, res.data()["validated_cost"])

	res = e.do(http.MethodPost, path+"/validate", e.editor, nil)
	assert.Equal(t, 409, res.Status)

	res = e.do(http.MethodGet, path+"/cost", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Equal(t, 900.0, res.data()["total_cost"])

	res = e.do(http.MethodPost, path+"/unvalidate", e.editor, nil)
	require.Equal(t, 200, res.Status)

	res = e.do(http.MethodGet, path+"/history", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Len(t, res.list(), 2)
}

func TestAttachmentEndpoints(t *testing.T) {
	e := newEnv(t)
	asset := models.Asset{Name: "Laptop"}
	require.NoError(t, e.db.Create(&asset).Error)
	fields := map[string]string{"linkable_type": "Asset", "linkable_id": itoa(asset.ID)}

	res := e.multipart("/api/attachments", e.editor, fields, "file", "invoice.pdf", "pdf-bytes")
	require.Equal(t, 201, res.Status, string(res.Raw))
	att := res.data()
	assert.Equal(t, "invoice.pdf", att["filename"])
	assert.NotContains(t, att, "secure_filename")

	res = e.do(http.MethodGet, "/api/attachments?linkable_type=Asset&linkable_id="+itoa(asset.ID), e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Len(t, res.list(), 1)

	res = e.do(http.MethodGet, "/api/attachments/"+itoa(idOf(att))+"/download", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Equal(t, "pdf-bytes", string(res.Raw))

	res = e.do(http.MethodDelete, "/api/attachments/"+itoa(idOf(att)), e.editor, nil)
	require.Equal(t, 200, res.Status)
	res = e.do(http.MethodGet, "/api/attachments/"+itoa(idOf(att))+"/download", e.user, nil)
	assert.Equal(t, 404, res.Status)

	res = e.multipart("/api/attachments", e.editor, map[string]string{"linkable_type": "Spaceship", "linkable_id": "1"}, "file", "x.txt", "x")
	assert.Equal(t, 400, res.Status)
	res = e.multipart("/api/attachments", e.editor, map[string]string{"linkable_type": "Asset", "linkable_id": "999"}, "file", "x.txt", "x")
	assert.Equal(t, 404, res.Status)
	res = e.multipart("/api/attachments", e.editor, fields, "", "", "")
	assert.Equal(t, 400, res.Status)
}

func TestComplianceLinkEndpoints(t *testing.T) {
	e := newEnv(t)
	fw, err := e.svc.Frameworks.Create(context.Background(), "ISO 27001", "", false)
	require.NoError(t, err)
	ctl, err := e.svc.Frameworks.AddControl(context.Background(), fw.ID, "A.5.1", "Policies", "")
	require.NoError(t, err)
	asset := models.Asset{Name: "Server"}
	require.NoError(t, e.db.Create(&asset).Error)

	body := fiber.Map{"framework_control_id": ctl.ID, "linkable_type": "Asset", "linkable_id": asset.ID}
	res := e.do(http.MethodPost, "/api/compliance-links", e.editor, body)
	require.Equal(t, 201, res.Status, string(res.Raw))
	res = e.do(http.MethodPost, "/api/compliance-links", e.editor, body)
	assert.Equal(t, 409, res.Status)

	res = e.do(http.MethodGet, "/api/frameworks/"+itoa(fw.ID)+"/coverage", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Equal(t, 100.0, res.data()["coverage_percent"])

	res = e.do(http.MethodPut, "/api/frameworks/"+itoa(fw.ID)+"/active", e.admin, fiber.Map{"active": false})
	require.Equal(t, 200, res.Status)
	other := models.Asset{Name: "Switch"}
	require.NoError(t, e.db.Create(&other).Error)
	res = e.do(http.MethodPost, "/api/compliance-links", e.editor, fiber.Map{"framework_control_id": ctl.ID, "linkable_type": "Asset", "linkable_id": other.ID})
	assert.Equal(t, 409, res.Status)

	res = e.do(http.MethodGet, "/api/compliance-links?linkable_type=Asset&linkable_id="+itoa(asset.ID), e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Len(t, res.list(), 1)
}

func TestPolicyAcknowledgementEndpoints(t *testing.T) {
	e := newEnv(t)
	pol := models.Policy{Title: "Acceptable use"}
	require.NoError(t, e.db.Create(&pol).Error)

	res := e.do(http.MethodPost, "/api/policies/"+itoa(pol.ID)+"/versions", e.editor, fiber.Map{
		"version_number": "1.0",
		"effective_date": "2025-01-01",
		"user_ids":       []uint{e.user.ID},
	})
	require.Equal(t, 201, res.Status, string(res.Raw))
	pvPath := "/api/policy-versions/" + itoa(idOf(res.data()))

	res = e.do(http.MethodPost, pvPath+"/acknowledge", e.user, nil)
	assert.Equal(t, 409, res.Status, "drafts cannot be acknowledged")

	res = e.do(http.MethodPost, pvPath+"/activate", e.editor, nil)
	require.Equal(t, 200, res.Status)

	res = e.do(http.MethodGet, pvPath+"/pending", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Len(t, res.list(), 1)

	res = e.do(http.MethodPost, pvPath+"/acknowledge", e.user, nil)
	assert.Equal(t, 201, res.Status)
	res = e.do(http.MethodPost, pvPath+"/acknowledge", e.user, nil)
	assert.Equal(t, 200, res.Status)

	res = e.do(http.MethodGet, pvPath+"/pending", e.user, nil)
	assert.Empty(t, res.list())

	res = e.do(http.MethodGet, "/api/policies/outstanding", e.user, nil)
	require.Equal(t, 200, res.Status)
	require.Len(t, res.list(), 1)
	assert.Equal(t, 0.0, res.list()[0].(map[string]any)["pending"])
}

func TestTrainingCompletionEndpoints(t *testing.T) {
	e := newEnv(t)
	course := models.Course{Title: "Phishing", CompletionDays: 14}
	require.NoError(t, e.db.Create(&course).Error)

	res := e.do(http.MethodPost, "/api/training/courses/"+itoa(course.ID)+"/assign", e.editor, fiber.Map{"user_id": e.user.ID})
	require.Equal(t, 201, res.Status, string(res.Raw))
	asgPath := "/api/training/assignments/" + itoa(idOf(res.data())) + "/complete"

	res = e.do(http.MethodPost, asgPath, e.user, fiber.Map{"completion_date": "2024-12-20"})
	assert.Equal(t, 403, res.Status, "users cannot back-date")

	other := e.mkUser("Otto", models.RoleUser)
	res = e.do(http.MethodPost, asgPath, other, nil)
	assert.Equal(t, 403, res.Status)

	res = e.multipart(asgPath, e.user, map[string]string{"notes": "done"}, "certificate", "cert.pdf", "certificate")
	require.Equal(t, 201, res.Status, string(res.Raw))
	assert.True(t, strings.HasPrefix(res.data()["completion_date"].(string), "2025-01-01"))
	completionID := idOf(res.data())

	res = e.do(http.MethodPost, asgPath, e.editor, nil)
	assert.Equal(t, 200, res.Status, "second completion returns the first")

	res = e.do(http.MethodGet, "/api/attachments?linkable_type=CourseCompletion&linkable_id="+itoa(completionID), e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Len(t, res.list(), 1)

	res = e.do(http.MethodGet, "/api/training/mine", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Len(t, res.list(), 1)
}

func TestAssetCheckoutEndpoints(t *testing.T) {
	e := newEnv(t)
	res := e.do(http.MethodPost, "/api/assets", e.editor, fiber.Map{"name": "Laptop", "purchase_date": "2024-06-01", "warranty_length": 12})
	require.Equal(t, 201, res.Status, string(res.Raw))
	path := "/api/assets/" + itoa(idOf(res.data()))

	res = e.do(http.MethodPost, path+"/checkout", e.editor, fiber.Map{"user_id": e.user.ID})
	require.Equal(t, 201, res.Status, string(res.Raw))
	res = e.do(http.MethodPost, path+"/checkout", e.editor, fiber.Map{"user_id": e.editor.ID, "notes": "handover"})
	require.Equal(t, 201, res.Status, "checking out again reassigns")
	res = e.do(http.MethodPost, path+"/checkout", e.editor, fiber.Map{})
	assert.Equal(t, 400, res.Status)

	res = e.do(http.MethodPost, path+"/checkin", e.editor, nil)
	require.Equal(t, 200, res.Status)
	res = e.do(http.MethodPost, path+"/checkin", e.editor, nil)
	assert.Equal(t, 409, res.Status)

	res = e.do(http.MethodGet, path+"/assignments", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Len(t, res.list(), 2)

	res = e.do(http.MethodGet, "/api/warranties/expiring?days=180", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Len(t, res.list(), 1)
}

func TestRiskEndpoints(t *testing.T) {
	e := newEnv(t)
	res := e.do(http.MethodPost, "/api/risks", e.editor, fiber.Map{
		"title":               "Ransomware",
		"inherent_impact":     5,
		"inherent_likelihood": 4,
		"residual_impact":     4,
		"residual_likelihood": 4,
		"treatment_strategy":  "Mitigate",
	})
	require.Equal(t, 201, res.Status, string(res.Raw))
	assert.Equal(t, 20.0, res.data()["inherent_score"])
	assert.Equal(t, "Critical", res.data()["inherent_band"])

	res = e.do(http.MethodPost, "/api/risks", e.editor, fiber.Map{"title": "Bad", "inherent_impact": 6, "inherent_likelihood": 1, "residual_impact": 1, "residual_likelihood": 1})
	assert.Equal(t, 400, res.Status)

	res = e.do(http.MethodGet, "/api/risks", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Len(t, res.list(), 1)
}

func TestNotificationSettingsEndpoints(t *testing.T) {
	e := newEnv(t)

	res := e.do(http.MethodGet, "/api/notifications/settings", e.admin, nil)
	require.Equal(t, 200, res.Status)
	assert.Equal(t, []any{30.0, 14.0, 7.0}, res.data()["notify_days_before"])

	res = e.do(http.MethodPut, "/api/notifications/settings", e.admin, fiber.Map{"notify_days_before": []int{0}})
	assert.Equal(t, 400, res.Status)

	res = e.do(http.MethodPut, "/api/notifications/settings", e.admin, fiber.Map{"notify_days_before": []int{7, 30, 7}})
	require.Equal(t, 200, res.Status)
	assert.Equal(t, []any{30.0, 7.0}, res.data()["notify_days_before"])

	res = e.do(http.MethodPost, "/api/notifications/run", e.admin, nil)
	require.Equal(t, 200, res.Status)
	assert.Empty(t, res.data()["due"])

	res = e.do(http.MethodPost, "/api/notifications/test-email", e.admin, fiber.Map{"test_email": "ops@example.com"})
	assert.Equal(t, 400, res.Status, "SMTP is not configured")
}

func TestDashboardOverview(t *testing.T) {
	e := newEnv(t)
	res := e.do(http.MethodGet, "/api/dashboard/overview", e.user, nil)
	require.Equal(t, 200, res.Status)
	for _, key := range []string{"upcoming_renewals", "expiring_warranties", "expiring_payment_methods", "overdue_training", "policy_acknowledgements"} {
		assert.Contains(t, res.data(), key)
	}

	res = e.do(http.MethodGet, "/api/dashboard/stats", e.user, nil)
	require.Equal(t, 200, res.Status)
	assert.Equal(t, 3.0, res.data()["users"])
}

func TestAuditLogRecordsMutations(t *testing.T) {
	e := newEnv(t)
	sup := models.Supplier{Name: "Acme", ComplianceStatus: models.CompliancePending}
	require.NoError(t, e.db.Create(&sup).Error)

	res := e.do(http.MethodPost, "/api/subscriptions", e.editor, fiber.Map{
		"name":         "Chat",
		"renewal_date": "2024-12-08",
		"supplier_id":  sup.ID,
	})
	require.Equal(t, 201, res.Status, string(res.Raw))
	id := idOf(res.data())

	res = e.do(http.MethodPost, "/api/subscriptions/"+itoa(id)+"/archive", e.editor, nil)
	require.Equal(t, 200, res.Status, string(res.Raw))

	// Failed and read-only calls are not recorded.
	res = e.do(http.MethodPost, "/api/subscriptions/999/archive", e.editor, nil)
	require.Equal(t, 404, res.Status)
	e.do(http.MethodGet, "/api/subscriptions/"+itoa(id), e.editor, nil)

	res = e.do(http.MethodGet, "/api/audit-logs?entity_type=subscription", e.admin, nil)
	require.Equal(t, 200, res.Status, string(res.Raw))
	logs := res.list()
	require.Len(t, logs, 2)

	newest := logs[0].(map[string]any)
	assert.Equal(t, "create", newest["action"])
	assert.Equal(t, "Archived subscription \"Chat\"", newest["description"])
	assert.Equal(t, "Eddie", newest["user_name"])

	oldest := logs[1].(map[string]any)
	assert.Equal(t, "Created subscription \"Chat\"", oldest["description"])

	res = e.do(http.MethodGet, "/api/audit-logs", e.editor, nil)
	assert.Equal(t, 403, res.Status)

	res = e.do(http.MethodGet, "/api/audit-logs?date_from=yesterday", e.admin, nil)
	assert.Equal(t, 400, res.Status)
}
