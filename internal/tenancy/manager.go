package tenancy

import (
	"sync"
	"time"

	"github.com/openlearn/tenantd/internal/metrics"
	"github.com/openlearn/tenantd/pkg/logger"
	"github.com/openlearn/tenantd/pkg/utils"
)

// Reset reasons recorded on the reset counter.
const (
	resetDomainChange  = "domain_change"
	resetTTL           = "ttl"
	resetMissingDomain = "missing_domain"
	resetResolveFailed = "resolve_failed"
)

// Manager decides, once per unit of work, whether the installed settings
// snapshot can be kept, must be reset, or must be reset and replaced.
//
// The installed snapshot is a cache keyed by domain, not the source of
// truth: every unit of work receives the snapshot as an explicit value to
// carry in its context, so concurrent requests for different tenants never
// race on shared mutable settings. The TTL bounds how long a long-lived
// worker can keep serving one tenant's overrides without re-resolving.
type Manager struct {
	mu          sync.Mutex
	resolver    *Resolver
	baseline    *Snapshot
	maxOverride time.Duration
	current     *Snapshot

	now func() time.Time
}

// NewManager creates a manager in the unconfigured state.
func NewManager(resolver *Resolver, defaults Defaults, maxOverride time.Duration) *Manager {
	return &Manager{
		resolver:    resolver,
		baseline:    NewSnapshot(defaults),
		maxOverride: maxOverride,
		now:         time.Now,
	}
}

// BeginRequest evaluates the state machine for an inbound HTTP request. The
// host may carry a ":port" suffix. A request without host information leaves
// the installed state untouched and receives whatever is currently visible.
func (m *Manager) BeginRequest(host string) *Snapshot {
	domain := utils.NormalizeDomain(host)
	if domain == "" {
		logger.WarnEvent().Msg("Could not find the host information for the request")
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.current != nil {
			return m.current
		}
		return m.baseline.Clone()
	}
	return m.begin(domain)
}

// BeginTask evaluates the state machine for an async task carrying a domain
// threaded through its payload. A task without a domain resets to the clean
// baseline so a previous task's tenant context cannot leak into it.
func (m *Manager) BeginTask(domain string) *Snapshot {
	d := utils.NormalizeDomain(domain)
	if d == "" {
		logger.WarnEvent().Msg("Could not find the host information for the task, resetting")
		m.mu.Lock()
		defer m.mu.Unlock()
		m.resetLocked(resetMissingDomain)
		return m.baseline.Clone()
	}
	return m.begin(d)
}

func (m *Manager) begin(domain string) *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Stale overrides are reset regardless of domain match, so a worker
	// that never hits the normal reset paths cannot run one tenant's
	// configuration indefinitely.
	if m.current != nil && m.ttlReachedLocked() {
		m.resetLocked(resetTTL)
	}

	// Fast path: the installed snapshot already matches this domain.
	if m.current != nil && m.current.Domain == domain {
		metrics.SnapshotKeepsTotal.Inc()
		return m.current
	}

	if m.current != nil {
		m.resetLocked(resetDomainChange)
	}

	config, tenantKey, err := m.resolver.Resolve(domain)
	if err != nil {
		// A failed resolve must leave the clean baseline state, never a
		// half-applied override.
		logger.ErrorEvent().Err(err).Str("domain", domain).Msg("Tenant resolution failed")
		metrics.SnapshotResetsTotal.WithLabelValues(resetResolveFailed).Inc()
		return m.baseline.Clone()
	}

	if !OptedIn(config) {
		logger.InfoEvent().Str("domain", domain).Msg("Site does not use settings overrides")
		return m.baseline.Clone()
	}

	snapshot := m.baseline.Clone()
	snapshot.Apply(config)
	snapshot.TenantKey = tenantKey
	snapshot.Domain = domain
	snapshot.SetupTime = m.now()

	m.current = snapshot
	metrics.SnapshotInstallsTotal.Inc()
	logger.DebugEvent().
		Str("tenant_key", tenantKey).
		Str("domain", domain).
		Msg("Configured settings snapshot")

	return snapshot
}

// End terminates the unit of work. Nothing is torn down here: the installed
// snapshot stays cached for the next unit of work on the same domain, and
// the TTL bounds its lifetime.
func (m *Manager) End() {}

// Reset reverts to the unconfigured state. The next unit of work re-resolves
// from storage.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

// CurrentDomain returns the domain of the installed snapshot, or empty when
// unconfigured.
func (m *Manager) CurrentDomain() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.Domain
}

// CurrentTenantKey returns the tenant key of the installed snapshot, or
// empty when unconfigured.
func (m *Manager) CurrentTenantKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return ""
	}
	return m.current.TenantKey
}

func (m *Manager) resetLocked(reason string) {
	m.current = nil
	metrics.SnapshotResetsTotal.WithLabelValues(reason).Inc()
	logger.DebugEvent().Str("reason", reason).Msg("Settings snapshot reset")
}

func (m *Manager) ttlReachedLocked() bool {
	return m.now().Sub(m.current.SetupTime) > m.maxOverride
}
