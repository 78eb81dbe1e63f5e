package tenancy

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/openlearn/tenantd/internal/db/models"
	"github.com/openlearn/tenantd/pkg/logger"
)

// Index maintains the derived organization associations for tenant records,
// so that "which tenants claim org X" is an indexed join instead of a
// full-table JSON scan.
type Index struct {
	db *gorm.DB
}

// NewIndex creates an organization index over the given database handle.
func NewIndex(db *gorm.DB) *Index {
	return &Index{db: db}
}

// SynchronizeTenant rebuilds a tenant's organization associations from the
// course_org_filter entry of its lms bucket. The full clear-then-rebuild is
// deliberate: it makes the operation idempotent and keeps redundant calls
// (such as one per save) from accumulating duplicates or leaking stale
// associations.
func (ix *Index) SynchronizeTenant(tenant *models.TenantConfig) error {
	bucket := decodeBucket(tenant.LMSConfigs, tenant.ExternalKey)
	orgs, err := ix.ensureOrganizations(NormalizeOrgFilter(bucket[OrgFilterKey]))
	if err != nil {
		return err
	}
	return ix.db.Model(tenant).Association("Organizations").Replace(&orgs)
}

// SynchronizeMicrosite rebuilds a legacy microsite's organization
// associations from the course_org_filter entry of its values bucket.
func (ix *Index) SynchronizeMicrosite(microsite *models.Microsite) error {
	bucket := decodeBucket(microsite.Values, microsite.Key)
	orgs, err := ix.ensureOrganizations(NormalizeOrgFilter(bucket[OrgFilterKey]))
	if err != nil {
		return err
	}
	return ix.db.Model(microsite).Association("Organizations").Replace(&orgs)
}

// SynchronizeAllTenants re-synchronizes every tenant record, for backfills.
// There is no transactional atomicity across records: a partial run is
// acceptable and idempotent to resume. Returns how many records synchronized
// cleanly.
func (ix *Index) SynchronizeAllTenants() (int, error) {
	var tenants []models.TenantConfig
	if err := ix.db.Find(&tenants).Error; err != nil {
		return 0, fmt.Errorf("failed to list tenants: %w", err)
	}

	synced := 0
	for i := range tenants {
		if err := ix.SynchronizeTenant(&tenants[i]); err != nil {
			logger.ErrorEvent().
				Err(err).
				Str("external_key", tenants[i].ExternalKey).
				Msg("Failed to synchronize tenant organizations")
			continue
		}
		synced++
	}
	return synced, nil
}

// SynchronizeAllMicrosites re-synchronizes every legacy microsite record.
func (ix *Index) SynchronizeAllMicrosites() (int, error) {
	var microsites []models.Microsite
	if err := ix.db.Find(&microsites).Error; err != nil {
		return 0, fmt.Errorf("failed to list microsites: %w", err)
	}

	synced := 0
	for i := range microsites {
		if err := ix.SynchronizeMicrosite(&microsites[i]); err != nil {
			logger.ErrorEvent().
				Err(err).
				Str("key", microsites[i].Key).
				Msg("Failed to synchronize microsite organizations")
			continue
		}
		synced++
	}
	return synced, nil
}

// ensureOrganizations resolves the given names to organization rows,
// creating missing ones. Organizations are never deleted here; orphans are
// tolerated.
func (ix *Index) ensureOrganizations(names []string) ([]models.TenantOrganization, error) {
	orgs := make([]models.TenantOrganization, 0, len(names))
	for _, name := range names {
		var org models.TenantOrganization
		err := ix.db.Where(models.TenantOrganization{Name: name}).FirstOrCreate(&org).Error
		if err != nil {
			return nil, fmt.Errorf("failed to get or create organization %q: %w", name, err)
		}
		orgs = append(orgs, org)
	}
	return orgs, nil
}
