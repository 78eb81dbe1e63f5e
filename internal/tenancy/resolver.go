package tenancy

import (
	"github.com/openlearn/tenantd/internal/metrics"
)

// ConfigSource is one ranked backing implementation of domain resolution.
// Lookup returns an empty config and key when the domain is unknown to this
// source; only store-level failures (database unreachable) surface as errors.
type ConfigSource interface {
	Name() string
	Lookup(domain string) (map[string]interface{}, string, error)
}

// Resolver produces the authoritative (config, external key) pair for a
// domain by consulting its sources in rank order. The tenant-config source
// always outranks the legacy microsite source; this ordering preserves
// migration compatibility for domains present in both shapes.
type Resolver struct {
	sources []ConfigSource
}

// NewResolver builds the standard two-source chain over the given store,
// resolving configuration from the named bucket.
func NewResolver(store *Store, bucket string) *Resolver {
	return &Resolver{
		sources: []ConfigSource{
			&tenantConfigSource{store: store, bucket: bucket},
			&micrositeSource{store: store},
		},
	}
}

// NewResolverWithSources builds a resolver over an explicit source chain.
// Useful for testing precedence in isolation.
func NewResolverWithSources(sources ...ConfigSource) *Resolver {
	return &Resolver{sources: sources}
}

// Resolve walks the source chain and returns the first complete answer.
// An unresolved domain yields an empty config and key, not an error.
func (r *Resolver) Resolve(domain string) (map[string]interface{}, string, error) {
	for _, source := range r.sources {
		config, key, err := source.Lookup(domain)
		if err != nil {
			return nil, "", err
		}
		if len(config) > 0 && key != "" {
			metrics.ResolutionsTotal.WithLabelValues(source.Name()).Inc()
			return config, key, nil
		}
	}

	metrics.ResolutionsTotal.WithLabelValues("none").Inc()
	return map[string]interface{}{}, "", nil
}

// tenantConfigSource resolves against the current TenantConfig/Route shape.
type tenantConfigSource struct {
	store  *Store
	bucket string
}

func (s *tenantConfigSource) Name() string { return "tenant" }

func (s *tenantConfigSource) Lookup(domain string) (map[string]interface{}, string, error) {
	return s.store.GetConfigsForDomain(domain, s.bucket)
}

// micrositeSource resolves against the legacy microsite shape. It is only
// consulted when the tenant-config source yields nothing.
type micrositeSource struct {
	store *Store
}

func (s *micrositeSource) Name() string { return "microsite" }

func (s *micrositeSource) Lookup(domain string) (map[string]interface{}, string, error) {
	microsite, err := s.store.GetMicrositeForDomain(domain)
	if err != nil {
		return nil, "", err
	}
	if microsite == nil {
		return map[string]interface{}{}, "", nil
	}
	return decodeBucket(microsite.Values, microsite.Key), microsite.Key, nil
}
