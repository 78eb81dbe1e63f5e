package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/openlearn/tenantd/pkg/errors"
	"github.com/openlearn/tenantd/pkg/utils"

	"github.com/openlearn/tenantd/internal/db/models"
)

// APIKeyService handles API key operations for machine clients.
type APIKeyService struct {
	db *gorm.DB
}

// NewAPIKeyService creates a new API key service.
func NewAPIKeyService(db *gorm.DB) *APIKeyService {
	return &APIKeyService{
		db: db,
	}
}

// CreateKey creates a new API key with the given scopes. The plain key is
// returned once; only its hash is persisted.
func (s *APIKeyService) CreateKey(ctx context.Context, name string, scopes []string) (*models.APIKey, string, error) {
	key, keyHash, err := utils.GenerateAPIKey()
	if err != nil {
		return nil, "", pkgerrors.Wrap(err, "failed to generate API key")
	}

	rawScopes, err := json.Marshal(scopes)
	if err != nil {
		return nil, "", pkgerrors.Wrap(err, "failed to encode scopes")
	}

	apiKey := &models.APIKey{
		Name:      name,
		TokenHash: keyHash,
		Scopes:    rawScopes,
		IsActive:  true,
	}

	if err := s.db.WithContext(ctx).Create(apiKey).Error; err != nil {
		return nil, "", pkgerrors.Wrap(err, "failed to create API key")
	}

	return apiKey, key, nil
}

// ValidateKey validates a plain API key and returns its record.
func (s *APIKeyService) ValidateKey(ctx context.Context, key string) (*models.APIKey, error) {
	keyHash := utils.HashToken(key)

	var apiKey models.APIKey
	err := s.db.WithContext(ctx).
		Where("token_hash = ? AND is_active = ?", keyHash, true).
		First(&apiKey).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.ErrInvalidToken
		}
		return nil, pkgerrors.Wrap(err, "failed to query API key")
	}

	now := time.Now()
	apiKey.LastUsedAt = &now
	s.db.WithContext(ctx).Model(&apiKey).Update("last_used_at", now)

	return &apiKey, nil
}

// RevokeKey revokes an API key.
func (s *APIKeyService) RevokeKey(ctx context.Context, keyID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Model(&models.APIKey{}).
		Where("id = ?", keyID).
		Update("is_active", false)

	if result.Error != nil {
		return pkgerrors.Wrap(result.Error, "failed to revoke API key")
	}

	if result.RowsAffected == 0 {
		return pkgerrors.ErrInvalidToken
	}

	return nil
}

// ListKeys lists all API keys.
func (s *APIKeyService) ListKeys(ctx context.Context) ([]models.APIKey, error) {
	var keys []models.APIKey
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&keys).Error
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list API keys")
	}

	return keys, nil
}
