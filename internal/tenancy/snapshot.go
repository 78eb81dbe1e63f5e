package tenancy

import (
	"time"

	"github.com/openlearn/tenantd/pkg/logger"
)

// Defaults are the baseline settings values visible when no tenant override
// is installed.
type Defaults struct {
	PlatformName        string
	SiteName            string
	LMSRootURL          string
	SessionCookieDomain string
	ContactEmail        string
	Language            string
}

// Snapshot is the configuration state visible to one unit of work. Instead of
// mutating process-wide settings, a snapshot is built per tenant and attached
// to the request or task context; once installed it must be treated as
// read-only, since the manager may hand the same snapshot to concurrent units
// of work for the same domain.
//
// The overridable fields are a fixed, enumerated set. Bucket keys outside
// that set land in Extra and are logged, never grafted on via reflection.
type Snapshot struct {
	// Tags identifying the installed override. Zero values mean the
	// snapshot is the pristine baseline.
	TenantKey string
	Domain    string
	SetupTime time.Time

	PlatformName        string
	SiteName            string
	LMSRootURL          string
	SessionCookieDomain string
	ContactEmail        string
	Language            string
	EnableMktgSite      bool
	CourseOrgFilter     []string
	Features            map[string]interface{}
	MktgURLs            map[string]interface{}

	// Extra holds bucket keys outside the enumerated set.
	Extra map[string]interface{}
}

// NewSnapshot builds a pristine baseline snapshot from the configured
// defaults.
func NewSnapshot(d Defaults) *Snapshot {
	return &Snapshot{
		PlatformName:        d.PlatformName,
		SiteName:            d.SiteName,
		LMSRootURL:          d.LMSRootURL,
		SessionCookieDomain: d.SessionCookieDomain,
		ContactEmail:        d.ContactEmail,
		Language:            d.Language,
		Features:            map[string]interface{}{},
		MktgURLs:            map[string]interface{}{},
		Extra:               map[string]interface{}{},
	}
}

// Clone returns a deep copy, so applying a tenant bucket never mutates the
// baseline.
func (s *Snapshot) Clone() *Snapshot {
	out := *s
	out.CourseOrgFilter = append([]string(nil), s.CourseOrgFilter...)
	out.Features = cloneMap(s.Features)
	out.MktgURLs = cloneMap(s.MktgURLs)
	out.Extra = cloneMap(s.Extra)
	return &out
}

// IsConfigured reports whether a tenant override is installed.
func (s *Snapshot) IsConfigured() bool {
	return s.TenantKey != ""
}

// Apply merges a decoded configuration bucket into the snapshot. Scalar keys
// overwrite; map-valued keys shallow-merge over any existing map (existing
// keys preserved, conflicting keys overwritten by the incoming value).
func (s *Snapshot) Apply(config map[string]interface{}) {
	for key, value := range config {
		switch key {
		case OptInKey:
			// Controls installation, not a setting itself.
		case "PLATFORM_NAME":
			s.PlatformName = asString(value, s.PlatformName)
		case "SITE_NAME":
			s.SiteName = asString(value, s.SiteName)
		case "LMS_ROOT_URL":
			s.LMSRootURL = asString(value, s.LMSRootURL)
		case "SESSION_COOKIE_DOMAIN":
			s.SessionCookieDomain = asString(value, s.SessionCookieDomain)
		case "CONTACT_EMAIL":
			s.ContactEmail = asString(value, s.ContactEmail)
		case "LANGUAGE_CODE":
			s.Language = asString(value, s.Language)
		case "ENABLE_MKTG_SITE":
			s.EnableMktgSite = truthy(value)
		case OrgFilterKey:
			s.CourseOrgFilter = NormalizeOrgFilter(value)
		case "FEATURES":
			s.Features = mergeMap(s.Features, value)
		case "MKTG_URLS":
			s.MktgURLs = mergeMap(s.MktgURLs, value)
		default:
			if nested, ok := value.(map[string]interface{}); ok {
				existing, _ := s.Extra[key].(map[string]interface{})
				merged := cloneMap(existing)
				for k, v := range nested {
					merged[k] = v
				}
				s.Extra[key] = merged
			} else {
				s.Extra[key] = value
			}
			logger.DebugEvent().
				Str("key", key).
				Msg("Configuration key outside the enumerated settings set")
		}
	}
}

// Value returns a named setting from the snapshot, falling back to Extra and
// then to the given default. Key names match the stored bucket keys.
func (s *Snapshot) Value(name string, def interface{}) interface{} {
	switch name {
	case "PLATFORM_NAME":
		return s.PlatformName
	case "SITE_NAME":
		return s.SiteName
	case "LMS_ROOT_URL":
		return s.LMSRootURL
	case "SESSION_COOKIE_DOMAIN":
		return s.SessionCookieDomain
	case "CONTACT_EMAIL":
		return s.ContactEmail
	case "LANGUAGE_CODE":
		return s.Language
	case "ENABLE_MKTG_SITE":
		return s.EnableMktgSite
	case OrgFilterKey:
		return s.CourseOrgFilter
	case "FEATURES":
		return s.Features
	case "MKTG_URLS":
		return s.MktgURLs
	}
	if v, ok := s.Extra[name]; ok {
		return v
	}
	return def
}

// OptedIn reports whether a resolved config enables settings overrides.
// Per-tenant override is strictly opt-in; a tenant that never set the flag
// must not cause settings mutation even when resolution succeeds.
func OptedIn(config map[string]interface{}) bool {
	return truthy(config[OptInKey])
}

// NormalizeOrgFilter normalizes a course_org_filter value, which may be a
// single string or a list, into a deduplicated slice of organization names.
func NormalizeOrgFilter(value interface{}) []string {
	var names []string
	switch v := value.(type) {
	case string:
		if v != "" {
			names = []string{v}
		}
	case []string:
		names = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				names = append(names, s)
			}
		}
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func asString(value interface{}, fallback string) string {
	if s, ok := value.(string); ok {
		return s
	}
	return fallback
}

func truthy(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "false" && v != "0"
	case float64:
		return v != 0
	case int:
		return v != 0
	default:
		return false
	}
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeMap(base map[string]interface{}, value interface{}) map[string]interface{} {
	incoming, ok := value.(map[string]interface{})
	if !ok {
		return base
	}
	merged := cloneMap(base)
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}
