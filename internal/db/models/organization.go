package models

import "time"

// TenantOrganization is a normalized organization name claimed by tenants
// through their course_org_filter. It exists so that "who owns org X" and
// "all orgs across all tenants" are indexed joins instead of full-table JSON
// scans. Rows are created lazily during synchronization and never deleted
// automatically; orphans are tolerated.
type TenantOrganization struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:63;not null" json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name
func (TenantOrganization) TableName() string {
	return "tenant_organizations"
}
