package handlers

import (
	"errors"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang/glog"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/config"
	"github.com/opsledger/backend/internal/database"
	"github.com/opsledger/backend/internal/middleware"
	"github.com/opsledger/backend/internal/models"
	"github.com/opsledger/backend/internal/services"
)

// LoginAttempt tracks failed login attempts
type LoginAttempt struct {
	Count     int
	LastTry   time.Time
	BlockedAt *time.Time
}

const loginBlockDuration = 15 * time.Minute

// loginLimiter blocks a client IP after too many failed logins.
type loginLimiter struct {
	mu       sync.Mutex
	attempts map[string]*LoginAttempt
	now      func() time.Time
}

func newLoginLimiter() *loginLimiter {
	return &loginLimiter{attempts: make(map[string]*LoginAttempt), now: time.Now}
}

// blocked reports whether ip is blocked and the minutes left on the block.
func (l *loginLimiter) blocked(ip string, maxAttempts int) (bool, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	attempt, exists := l.attempts[ip]
	if !exists {
		return false, 0
	}
	now := l.now()
	if attempt.BlockedAt != nil {
		if since := now.Sub(*attempt.BlockedAt); since < loginBlockDuration {
			return true, int(math.Ceil((loginBlockDuration - since).Minutes()))
		}
		delete(l.attempts, ip)
		return false, 0
	}
	// Attempts expire after a quiet period
	if now.Sub(attempt.LastTry) > loginBlockDuration {
		delete(l.attempts, ip)
		return false, 0
	}
	return attempt.Count >= maxAttempts, 0
}

// fail records a failed attempt and returns the attempts left.
func (l *loginLimiter) fail(ip string, maxAttempts int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	attempt, exists := l.attempts[ip]
	if !exists {
		attempt = &LoginAttempt{}
		l.attempts[ip] = attempt
	}
	attempt.Count++
	attempt.LastTry = l.now()
	if attempt.Count >= maxAttempts {
		now := l.now()
		attempt.BlockedAt = &now
	}
	return maxAttempts - attempt.Count
}

func (l *loginLimiter) clear(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, ip)
}

// preferenceInt reads an integer SystemPreference, falling back to def.
func preferenceInt(db *gorm.DB, key string, def int) int {
	var pref models.SystemPreference
	if err := db.Where("key = ?", key).First(&pref).Error; err != nil {
		return def
	}
	if val, err := strconv.Atoi(pref.Value); err == nil && val > 0 {
		return val
	}
	return def
}

type AuthHandler struct {
	cfg     *config.Config
	db      *gorm.DB
	users   *services.UserService
	limiter *loginLimiter
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB, users *services.UserService) *AuthHandler {
	return &AuthHandler{cfg: cfg, db: db, users: users, limiter: newLoginLimiter()}
}

// LoginRequest represents login request body. Login accepts a user's
// email or display name.
type LoginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// LoginResponse represents login response
type LoginResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message,omitempty"`
	Token   string       `json:"token,omitempty"`
	User    *models.User `json:"user,omitempty"`
}

// Login handles user login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	clientIP := c.IP()
	maxAttempts := preferenceInt(h.db, "max_login_attempts", 5)

	if blocked, remaining := h.limiter.blocked(clientIP, maxAttempts); blocked {
		return c.Status(fiber.StatusTooManyRequests).JSON(LoginResponse{
			Success: false,
			Message: "Too many failed login attempts. Please try again in " + strconv.Itoa(remaining) + " minutes",
		})
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(LoginResponse{
			Success: false,
			Message: "Invalid request body",
		})
	}
	if req.Login == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(LoginResponse{
			Success: false,
			Message: "Login and password are required",
		})
	}

	user, err := h.users.Authenticate(c.UserContext(), req.Login, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		remaining := h.limiter.fail(clientIP, maxAttempts)
		msg := "Invalid login or password"
		if remaining > 0 {
			msg += ". " + strconv.Itoa(remaining) + " attempts remaining"
		}
		return c.Status(fiber.StatusUnauthorized).JSON(LoginResponse{
			Success: false,
			Message: msg,
		})
	}
	if err != nil {
		return fail(c, err)
	}
	h.limiter.clear(clientIP)

	token, err := middleware.GenerateToken(user, h.cfg)
	if err != nil {
		glog.Errorf("Auth: failed to sign token for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(LoginResponse{
			Success: false,
			Message: "Failed to generate token",
		})
	}

	c.Locals("user", user)
	middleware.RecordAudit(h.db, c, models.AuditLog{
		Action:      models.AuditActionLogin,
		EntityType:  "user",
		EntityID:    user.ID,
		EntityName:  user.Name,
		Description: "Logged in",
	})
	glog.Infof("Auth: user %d logged in from %s", user.ID, clientIP)
	return c.JSON(LoginResponse{
		Success: true,
		Token:   token,
		User:    user,
	})
}

// Logout revokes the presented token for the rest of its lifetime.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token, _ := c.Locals("token").(string)
	if token != "" {
		ttl := time.Duration(h.cfg.TokenExpireHours) * time.Hour
		if err := database.BlacklistToken(token, ttl); err != nil {
			glog.Warningf("Auth: failed to revoke token: %v", err)
			return fail(c, err)
		}
	}
	middleware.RecordAudit(h.db, c, models.AuditLog{
		Action:      models.AuditActionLogout,
		EntityType:  "user",
		EntityID:    middleware.GetCurrentUserID(c),
		Description: "Logged out",
	})
	return done(c, "Logged out successfully")
}

// Me returns the current user
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Unauthorized",
		})
	}
	return ok(c, user)
}
