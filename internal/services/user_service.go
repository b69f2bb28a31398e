package services

import (
	"context"
	"errors"
	"strings"

	"github.com/golang/glog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/opsledger/backend/internal/apperr"
	"github.com/opsledger/backend/internal/models"
)

// Default admin created by init-db.
const (
	DefaultAdminName     = "admin"
	DefaultAdminEmail    = "admin@localhost"
	DefaultAdminPassword = "admin123"
)

// ErrInvalidCredentials is returned for unknown users, archived users and
// wrong passwords alike.
var ErrInvalidCredentials = apperr.Authorization("invalid username or password")

// UserService manages users and groups.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// HashPassword bcrypts a plain password.
func HashPassword(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Authenticate resolves login (name or email) and checks the password.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, apperr.Validation("username and password are required")
	}
	var u models.User
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ? OR name = ?", strings.ToLower(login), login).
		Order("id").First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if u.IsArchived || u.PasswordHash == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

// UserInput creates a user. Password is optional; users without one
// cannot log in.
type UserInput struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

// Create inserts a user.
func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if name == "" || email == "" {
		return nil, apperr.Validation("name and email are required")
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}
	if !role.Valid() {
		return nil, apperr.Validation("unknown role %q", in.Role)
	}
	u := &models.User{Name: name, Email: email, Role: role}
	if in.Password != "" {
		hash, err := HashPassword(in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = &hash
	}
	if err := s.db.WithContext(ctx).Omit("Groups").Create(u).Error; err != nil {
		return nil, uniqueOr(err, "a user with email %q already exists", email)
	}
	return u, nil
}

// EnsureAdmin creates the default admin unless an admin already exists.
// It reports whether one was created.
func (s *UserService) EnsureAdmin(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("role = ?", models.RoleAdmin).Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if _, err := s.Create(ctx, UserInput{
		Name:     DefaultAdminName,
		Email:    DefaultAdminEmail,
		Password: DefaultAdminPassword,
		Role:     models.RoleAdmin,
	}); err != nil {
		return false, err
	}
	glog.Warningf("Created default admin user %q with the default password; change it", DefaultAdminName)
	return true, nil
}

// CreateGroup inserts a group with the given members.
func (s *UserService) CreateGroup(ctx context.Context, name, description string, userIDs []uint) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("group name is required")
	}
	g := &models.Group{Name: name, Description: description}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Users").Create(g).Error; err != nil {
			return uniqueOr(err, "group %q already exists", name)
		}
		users, err := loadByIDs[models.User](tx, userIDs, "user")
		if err != nil {
			return err
		}
		return replaceAssociation(tx, g, "Users", users)
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

// SetArchived archives or restores a user. Archived users drop out of
// every required-acknowledgement set.
func (s *UserService) SetArchived(ctx context.Context, userID uint, archived bool) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		u, err := findByID[models.User](tx, userID, "user")
		if err != nil {
			return err
		}
		return tx.Model(u).Update("is_archived", archived).Error
	})
}
