package tenancy

import (
	"encoding/json"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openlearn/tenantd/internal/db/models"
	"github.com/openlearn/tenantd/pkg/logger"
	"github.com/openlearn/tenantd/pkg/utils"
)

// Well-known configuration bucket keys.
const (
	// OptInKey must be truthy in a tenant's bucket for the settings
	// override mechanism to install anything.
	OptInKey = "EDNX_USE_SIGNAL"

	// OrgFilterKey holds the organizations claimed by a tenant. Its value
	// may be a single string or a list of strings.
	OrgFilterKey = "course_org_filter"
)

// Store provides domain-indexed access to tenant configuration records.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store on top of the given database handle.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for collaborators that need raw queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// GetConfigsForDomain returns the selected configuration bucket and external
// key for the tenant routed to the given domain. The host may carry a ":port"
// suffix and any casing; both are normalized away. Absence is represented as
// an empty map and empty key, not an error. At most one record can match
// because route domains are unique.
func (s *Store) GetConfigsForDomain(domain, bucket string) (map[string]interface{}, string, error) {
	d := utils.NormalizeDomain(domain)
	if d == "" {
		return map[string]interface{}{}, "", nil
	}

	var tenant models.TenantConfig
	err := s.db.
		Joins("JOIN routes ON routes.tenant_config_id = tenant_configs.id").
		Where("LOWER(routes.domain) = ?", d).
		First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return map[string]interface{}{}, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	return decodeBucket(tenant.Bucket(bucket), tenant.ExternalKey), tenant.ExternalKey, nil
}

// GetMicrositeForDomain returns the legacy microsite record matching the
// given domain, or nil when none exists. Duplicate subdomain rows are broken
// deterministically by lowest primary key.
func (s *Store) GetMicrositeForDomain(domain string) (*models.Microsite, error) {
	d := utils.NormalizeDomain(domain)
	if d == "" {
		return nil, nil
	}

	var microsite models.Microsite
	err := s.db.
		Where("LOWER(subdomain) = ?", d).
		Order("id").
		First(&microsite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &microsite, nil
}

// decodeBucket decodes a stored JSON bucket into a map. A malformed bucket
// must not break request handling for the tenants sharing the process, so it
// decodes to an empty map and an error log instead of propagating.
func decodeBucket(raw datatypes.JSON, key string) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}

	var bucket map[string]interface{}
	if err := json.Unmarshal(raw, &bucket); err != nil {
		logger.ErrorEvent().
			Err(err).
			Str("tenant_key", key).
			Msg("Malformed configuration bucket, treating as empty")
		return map[string]interface{}{}
	}
	if bucket == nil {
		return map[string]interface{}{}
	}
	return bucket
}
