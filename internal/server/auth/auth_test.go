package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openlearn/tenantd/internal/db"
	"github.com/openlearn/tenantd/internal/db/models"
	"github.com/openlearn/tenantd/pkg/utils"
)

func setupTestDB(t *testing.T) *gorm.DB {
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(database)
	require.NoError(t, err)

	return database
}

func createTestUser(t *testing.T, database *gorm.DB, password string) *models.User {
	hashed, err := utils.HashPassword(password)
	require.NoError(t, err)

	user := &models.User{
		Email:    "admin@example.com",
		Password: hashed,
		Name:     "Test Admin",
		IsActive: true,
	}
	require.NoError(t, database.Create(user).Error)
	return user
}

func TestAPIKeyService_CreateAndValidate(t *testing.T) {
	database := setupTestDB(t)
	service := NewAPIKeyService(database)
	ctx := context.Background()

	created, plainKey, err := service.CreateKey(ctx, "ci-bot", []string{"tenants:read"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plainKey, "tnt_"))
	assert.True(t, created.HasScope("tenants:read"))
	assert.False(t, created.HasScope("tenants:write"))

	t.Run("valid key", func(t *testing.T) {
		key, err := service.ValidateKey(ctx, plainKey)
		require.NoError(t, err)
		assert.Equal(t, created.ID, key.ID)
		assert.NotNil(t, key.LastUsedAt)
	})

	t.Run("invalid key", func(t *testing.T) {
		_, err := service.ValidateKey(ctx, "tnt_deadbeef")
		assert.Error(t, err)
	})

	t.Run("revoked key", func(t *testing.T) {
		require.NoError(t, service.RevokeKey(ctx, created.ID))
		_, err := service.ValidateKey(ctx, plainKey)
		assert.Error(t, err)
	})
}

func TestAPIKeyService_WildcardScope(t *testing.T) {
	database := setupTestDB(t)
	service := NewAPIKeyService(database)

	created, _, err := service.CreateKey(context.Background(), "root", []string{"*"})
	require.NoError(t, err)
	assert.True(t, created.HasScope("anything:at:all"))
}

func TestAPIKeyService_ListKeys(t *testing.T) {
	database := setupTestDB(t)
	service := NewAPIKeyService(database)
	ctx := context.Background()

	_, _, err := service.CreateKey(ctx, "one", nil)
	require.NoError(t, err)
	_, _, err = service.CreateKey(ctx, "two", nil)
	require.NoError(t, err)

	keys, err := service.ListKeys(ctx)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestUserService_Authenticate(t *testing.T) {
	database := setupTestDB(t)
	service := NewUserService(database, NewTOTPService())
	ctx := context.Background()

	createTestUser(t, database, "correct-horse")

	t.Run("valid credentials", func(t *testing.T) {
		user, err := service.Authenticate(ctx, "admin@example.com", "correct-horse", "")
		require.NoError(t, err)
		assert.Equal(t, "admin@example.com", user.Email)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "admin@example.com", "wrong", "")
		assert.Error(t, err)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := service.Authenticate(ctx, "nobody@example.com", "correct-horse", "")
		assert.Error(t, err)
	})
}

func TestUserService_AuthenticateInactive(t *testing.T) {
	database := setupTestDB(t)
	service := NewUserService(database, NewTOTPService())

	user := createTestUser(t, database, "correct-horse")
	require.NoError(t, database.Model(user).Update("is_active", false).Error)

	_, err := service.Authenticate(context.Background(), "admin@example.com", "correct-horse", "")
	assert.Error(t, err)
}

func TestUserService_TOTPRequiredWhenEnabled(t *testing.T) {
	database := setupTestDB(t)
	totp := NewTOTPService()
	service := NewUserService(database, totp)
	ctx := context.Background()

	user := createTestUser(t, database, "correct-horse")
	secret, _, err := totp.GenerateSecret("learn.example.com", user.Email)
	require.NoError(t, err)
	require.NoError(t, database.Model(user).Updates(map[string]interface{}{
		"totp_secret":  secret,
		"totp_enabled": true,
	}).Error)

	_, err = service.Authenticate(ctx, "admin@example.com", "correct-horse", "000000")
	assert.Error(t, err)
}

func TestUserService_EnsureAdmin(t *testing.T) {
	database := setupTestDB(t)
	service := NewUserService(database, NewTOTPService())
	ctx := context.Background()

	require.NoError(t, service.EnsureAdmin(ctx, "boot@example.com", "bootstrap-pass"))
	require.NoError(t, service.EnsureAdmin(ctx, "boot@example.com", "bootstrap-pass"))

	var count int64
	require.NoError(t, database.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	user, err := service.Authenticate(ctx, "boot@example.com", "bootstrap-pass", "")
	require.NoError(t, err)
	assert.True(t, user.IsActive)
}

func TestTOTPService_GenerateAndValidate(t *testing.T) {
	service := NewTOTPService()

	secret, url, err := service.GenerateSecret("learn.example.com", "admin@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.Contains(t, url, "otpauth://")

	assert.False(t, service.ValidateCode(secret, "000000"))
}
