package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// APIKey is a machine credential for the management API. Only the SHA256
// hash of the key is stored; the plaintext is shown once at creation.
type APIKey struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string         `gorm:"not null" json:"name"`
	TokenHash  string         `gorm:"uniqueIndex;not null" json:"-"`
	Scopes     datatypes.JSON `gorm:"type:json" json:"scopes"`
	IsActive   bool           `gorm:"default:true" json:"is_active"`
	LastUsedAt *time.Time     `json:"last_used_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// BeforeCreate hook to set UUID if not provided
func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}

// HasScope reports whether the key carries the given scope.
func (k *APIKey) HasScope(scope string) bool {
	if len(k.Scopes) == 0 {
		return false
	}

	var scopes []string
	if err := json.Unmarshal(k.Scopes, &scopes); err != nil {
		return false
	}

	for _, s := range scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

// TableName specifies the table name
func (APIKey) TableName() string {
	return "api_keys"
}
