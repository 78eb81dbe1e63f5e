package models

import (
	"time"

	"gorm.io/datatypes"
)

// Microsite is the legacy tenant record shape, predating TenantConfig/Route.
// It keeps a single JSON values bucket and maps exactly one subdomain. The
// subdomain column is intentionally not unique: old data dumps contain
// duplicates, so lookups break ties deterministically by lowest primary key.
type Microsite struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Key       string         `gorm:"size:63;index" json:"key"`
	Subdomain string         `gorm:"size:127;index" json:"subdomain"`
	Values    datatypes.JSON `gorm:"type:json" json:"values"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	Organizations []TenantOrganization `gorm:"many2many:microsite_organizations" json:"-"`
}

// TableName specifies the table name
func (Microsite) TableName() string {
	return "microsites"
}
