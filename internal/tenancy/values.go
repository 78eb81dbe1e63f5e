package tenancy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/openlearn/tenantd/internal/cache"
	"github.com/openlearn/tenantd/internal/db/models"
	"github.com/openlearn/tenantd/internal/metrics"
	"github.com/openlearn/tenantd/pkg/logger"
)

const allOrgsCacheKey = "tenant.all_orgs_list"

// cachedValue wraps an org-value lookup result for caching, so a legitimate
// null result is distinguishable from a cache miss.
type cachedValue struct {
	Value interface{} `json:"value"`
}

// OrgValues answers organization-scoped configuration queries with a
// short-TTL cache in front of the storage scans. Cache entries are
// invalidated only by TTL expiry, never by writes, so callers must tolerate
// staleness up to the TTL window.
type OrgValues struct {
	db    *gorm.DB
	cache cache.Cache
	ttl   time.Duration
}

// NewOrgValues creates the org-scoped query layer.
func NewOrgValues(db *gorm.DB, c cache.Cache, ttl time.Duration) *OrgValues {
	return &OrgValues{db: db, cache: c, ttl: ttl}
}

// AllOrgs returns every organization claimed by any tenant or legacy
// microsite, in stable name order.
func (v *OrgValues) AllOrgs(ctx context.Context) ([]string, error) {
	if raw, ok := v.cacheGet(ctx, allOrgsCacheKey); ok {
		var orgs []string
		if err := json.Unmarshal(raw, &orgs); err == nil {
			metrics.CacheHitsTotal.WithLabelValues("all_orgs").Inc()
			return orgs, nil
		}
	}
	metrics.CacheMissesTotal.WithLabelValues("all_orgs").Inc()

	var orgs []string
	err := v.db.Model(&models.TenantOrganization{}).
		Order("name").
		Pluck("name", &orgs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}

	v.cacheSet(ctx, allOrgsCacheKey, orgs)
	return orgs, nil
}

// ValueForOrg returns the configured value of name for the tenant(s)
// claiming the given organization. When several tenants claim the same
// organization, the one matching the active tenant context (carried by ctx)
// wins; otherwise the first record in stable primary-key order wins. The
// cache key includes the active tenant key, so the same (org, name) pair can
// legitimately cache different answers per tenant context.
func (v *OrgValues) ValueForOrg(ctx context.Context, org, name string, def interface{}) (interface{}, error) {
	tenantKey := CurrentTenantKey(ctx)

	cacheKey := fmt.Sprintf("org-value-%s-%s", org, name)
	if tenantKey != "" {
		cacheKey = fmt.Sprintf("%s-%s", cacheKey, tenantKey)
	}

	if raw, ok := v.cacheGet(ctx, cacheKey); ok {
		var cached cachedValue
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.CacheHitsTotal.WithLabelValues("org_value").Inc()
			return cached.Value, nil
		}
	}
	metrics.CacheMissesTotal.WithLabelValues("org_value").Inc()

	result, err := v.tenantValueForOrg(org, name, tenantKey)
	if err != nil {
		return nil, err
	}
	if result == nil {
		result, err = v.micrositeValueForOrg(org, name, tenantKey)
		if err != nil {
			return nil, err
		}
	}
	if result == nil {
		result = def
	}

	v.cacheSet(ctx, cacheKey, cachedValue{Value: result})

	return result, nil
}

// tenantValueForOrg scans tenant records claiming the organization, in
// primary-key order, and applies the current-tenant-wins tie-break.
func (v *OrgValues) tenantValueForOrg(org, name, tenantKey string) (interface{}, error) {
	var tenants []models.TenantConfig
	err := v.db.
		Joins("JOIN tenant_config_organizations tco ON tco.tenant_config_id = tenant_configs.id").
		Joins("JOIN tenant_organizations o ON o.id = tco.tenant_organization_id").
		Where("o.name = ?", org).
		Order("tenant_configs.id").
		Find(&tenants).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants for org %q: %w", org, err)
	}

	var first interface{}
	for i := range tenants {
		bucket := decodeBucket(tenants[i].LMSConfigs, tenants[i].ExternalKey)
		value, present := bucket[name]
		if !present {
			continue
		}
		if tenantKey != "" && tenants[i].ExternalKey == tenantKey {
			return value, nil
		}
		if first == nil {
			first = value
		}
	}
	return first, nil
}

// micrositeValueForOrg applies the same tie-break over the legacy microsite
// rows. Only consulted when no tenant record answered.
func (v *OrgValues) micrositeValueForOrg(org, name, tenantKey string) (interface{}, error) {
	var microsites []models.Microsite
	err := v.db.
		Joins("JOIN microsite_organizations mo ON mo.microsite_id = microsites.id").
		Joins("JOIN tenant_organizations o ON o.id = mo.tenant_organization_id").
		Where("o.name = ?", org).
		Order("microsites.id").
		Find(&microsites).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query microsites for org %q: %w", org, err)
	}

	var first interface{}
	for i := range microsites {
		bucket := decodeBucket(microsites[i].Values, microsites[i].Key)
		value, present := bucket[name]
		if !present {
			continue
		}
		if tenantKey != "" && microsites[i].Key == tenantKey {
			return value, nil
		}
		if first == nil {
			first = value
		}
	}
	return first, nil
}

// Cache failures (for example an unreachable shared backend) degrade to
// uncached reads instead of failing the lookup.
func (v *OrgValues) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := v.cache.Get(ctx, key)
	if err != nil {
		logger.WarnEvent().Err(err).Str("key", key).Msg("Cache read failed")
		return nil, false
	}
	return raw, ok
}

func (v *OrgValues) cacheSet(ctx context.Context, key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, key, payload, v.ttl); err != nil {
		logger.WarnEvent().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
