package models

import "time"

// Route maps one literal domain to exactly one tenant. Many routes may point
// at the same tenant (one tenant, many domains); the domain itself is unique
// across all routes. Routes never expire.
type Route struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Domain         string    `gorm:"uniqueIndex;size:253;not null" json:"domain"`
	TenantConfigID uint      `gorm:"not null;index" json:"tenant_config_id"`
	CreatedAt      time.Time `json:"created_at"`

	TenantConfig TenantConfig `gorm:"foreignKey:TenantConfigID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the table name
func (Route) TableName() string {
	return "routes"
}
