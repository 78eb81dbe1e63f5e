package models

import (
	"time"

	"gorm.io/datatypes"
)

// Configuration bucket names accepted by lookups.
const (
	BucketLMS     = "lms"
	BucketStudio  = "studio"
	BucketTheming = "theming"
	BucketMeta    = "meta"
)

// TenantConfig stores one tenant's configuration. Most of the configuration
// lives inside JSON buckets so that tenants can carry arbitrary settings
// without schema changes; the external key sits outside the JSON so it can be
// used in indexed queries.
//
// The Organizations association is derived from the "course_org_filter" entry
// of the lms bucket and is maintained by an explicit synchronization step, not
// automatically on save.
type TenantConfig struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ExternalKey string `gorm:"size:63;index" json:"external_key"`

	LMSConfigs     datatypes.JSON `gorm:"type:json" json:"lms_configs"`
	StudioConfigs  datatypes.JSON `gorm:"type:json" json:"studio_configs"`
	ThemingConfigs datatypes.JSON `gorm:"type:json" json:"theming_configs"`
	Meta           datatypes.JSON `gorm:"type:json" json:"meta"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relationships
	Routes        []Route              `gorm:"foreignKey:TenantConfigID" json:"routes,omitempty"`
	Organizations []TenantOrganization `gorm:"many2many:tenant_config_organizations" json:"-"`
}

// Bucket returns the raw JSON bucket selected by name, defaulting to the lms
// bucket for unknown names.
func (t *TenantConfig) Bucket(name string) datatypes.JSON {
	switch name {
	case BucketStudio:
		return t.StudioConfigs
	case BucketTheming:
		return t.ThemingConfigs
	case BucketMeta:
		return t.Meta
	default:
		return t.LMSConfigs
	}
}

// TableName specifies the table name
func (TenantConfig) TableName() string {
	return "tenant_configs"
}
