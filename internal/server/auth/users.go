package auth

import (
	"context"

	"gorm.io/gorm"

	pkgerrors "github.com/openlearn/tenantd/pkg/errors"
	"github.com/openlearn/tenantd/pkg/utils"

	"github.com/openlearn/tenantd/internal/db/models"
)

// UserService handles admin account operations.
type UserService struct {
	db   *gorm.DB
	totp *TOTPService
}

// NewUserService creates a new user service.
func NewUserService(db *gorm.DB, totp *TOTPService) *UserService {
	return &UserService{
		db:   db,
		totp: totp,
	}
}

// Authenticate verifies an email/password pair, plus a TOTP code when the
// account has two-factor enabled. All failure modes return ErrUnauthorized
// so a caller cannot distinguish a wrong password from an unknown account.
func (s *UserService) Authenticate(ctx context.Context, email, password, totpCode string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND is_active = ?", email, true).
		First(&user).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.ErrUnauthorized
		}
		return nil, pkgerrors.Wrap(err, "failed to query user")
	}

	if !utils.ComparePassword(user.Password, password) {
		return nil, pkgerrors.ErrUnauthorized
	}

	if user.TOTPEnabled {
		if user.TOTPSecret == nil || !s.totp.ValidateCodeWithWindow(*user.TOTPSecret, totpCode, 1) {
			return nil, pkgerrors.ErrUnauthorized
		}
	}

	return &user, nil
}

// EnsureAdmin creates the bootstrap admin account if no user with the given
// email exists. Idempotent across restarts.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return nil
	}

	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("email = ?", email).
		Count(&count).Error
	if err != nil {
		return pkgerrors.Wrap(err, "failed to check admin user")
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to hash admin password")
	}

	user := &models.User{
		Email:    email,
		Password: hashed,
		Name:     "Administrator",
		IsActive: true,
	}
	return pkgerrors.Wrap(s.db.WithContext(ctx).Create(user).Error, "failed to create admin user")
}

// BeginTOTPEnrollment generates and stores a pending TOTP secret for a user
// and returns the provisioning URL. The secret only becomes enforced once
// ConfirmTOTPEnrollment validates a code against it.
func (s *UserService) BeginTOTPEnrollment(ctx context.Context, user *models.User, domain string) (string, error) {
	secret, url, err := s.totp.GenerateSecret(domain, user.Email)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to generate TOTP secret")
	}

	user.TOTPSecret = &secret
	if err := s.db.WithContext(ctx).Model(user).Update("totp_secret", secret).Error; err != nil {
		return "", pkgerrors.Wrap(err, "failed to store TOTP secret")
	}

	return url, nil
}

// ConfirmTOTPEnrollment validates a first code and switches enforcement on.
func (s *UserService) ConfirmTOTPEnrollment(ctx context.Context, user *models.User, code string) error {
	if user.TOTPSecret == nil || !s.totp.ValidateCodeWithWindow(*user.TOTPSecret, code, 1) {
		return pkgerrors.ErrUnauthorized
	}

	user.TOTPEnabled = true
	return pkgerrors.Wrap(
		s.db.WithContext(ctx).Model(user).Update("totp_enabled", true).Error,
		"failed to enable TOTP",
	)
}
