package auth

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPService handles two-factor authentication using TOTP.
type TOTPService struct{}

// NewTOTPService creates a new TOTP service.
func NewTOTPService() *TOTPService {
	return &TOTPService{}
}

// GenerateSecret generates a new TOTP secret for a user.
func (s *TOTPService) GenerateSecret(domain, email string) (string, string, error) {
	secret := make([]byte, 20)
	_, err := rand.Read(secret)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate secret: %w", err)
	}

	secretStr := base32.StdEncoding.EncodeToString(secret)

	issuerName := fmt.Sprintf("Tenantd %s", domain)
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuerName,
		AccountName: email,
		Secret:      []byte(secretStr),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	// Return secret and QR code URL
	return key.Secret(), key.URL(), nil
}

// ValidateCode validates a TOTP code against a secret.
func (s *TOTPService) ValidateCode(secret, code string) bool {
	return totp.Validate(code, secret)
}

// ValidateCodeWithWindow accepts codes from adjacent periods, to tolerate
// clock drift between the server and the authenticator device.
func (s *TOTPService) ValidateCodeWithWindow(secret, code string, window int) bool {
	now := time.Now()

	if totp.Validate(code, secret) {
		return true
	}

	for i := 1; i <= window; i++ {
		pastTime := now.Add(time.Duration(-i*30) * time.Second)
		if code == generateCodeAtTime(secret, pastTime) {
			return true
		}

		futureTime := now.Add(time.Duration(i*30) * time.Second)
		if code == generateCodeAtTime(secret, futureTime) {
			return true
		}
	}

	return false
}

// generateCodeAtTime generates a TOTP code at a specific time.
func generateCodeAtTime(secret string, t time.Time) string {
	code, err := totp.GenerateCodeCustom(secret, t, totp.ValidateOpts{
		Period:    30,
		Skew:      0,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return ""
	}
	return code
}
