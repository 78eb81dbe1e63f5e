package tenancy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlearn/tenantd/internal/db/models"
)

func TestResolver_TenantConfig(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(NewStore(db), models.BucketLMS)

	createTenant(t, db, "tenant-a", "a.example.com", `{"PLATFORM_NAME": "A"}`)

	config, key, err := resolver.Resolve("a.example.com")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", key)
	assert.Equal(t, "A", config["PLATFORM_NAME"])
}

func TestResolver_FallsBackToMicrosite(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(NewStore(db), models.BucketLMS)

	createMicrosite(t, db, "legacy", "legacy.example.com", `{"PLATFORM_NAME": "Legacy"}`)

	config, key, err := resolver.Resolve("legacy.example.com")
	require.NoError(t, err)
	assert.Equal(t, "legacy", key)
	assert.Equal(t, "Legacy", config["PLATFORM_NAME"])
}

// When both shapes exist for the same domain the tenant config wins, never
// the microsite. This ordering is deliberate migration compatibility.
func TestResolver_TenantConfigPrecedesMicrosite(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(NewStore(db), models.BucketLMS)

	createTenant(t, db, "tenant-a", "both.example.com", `{"PLATFORM_NAME": "New"}`)
	createMicrosite(t, db, "legacy", "both.example.com", `{"PLATFORM_NAME": "Old"}`)

	config, key, err := resolver.Resolve("both.example.com")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", key)
	assert.Equal(t, "New", config["PLATFORM_NAME"])
}

// A tenant config with an empty bucket falls through to the legacy shape.
func TestResolver_EmptyTenantBucketFallsThrough(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(NewStore(db), models.BucketLMS)

	createTenant(t, db, "tenant-a", "both.example.com", `{}`)
	createMicrosite(t, db, "legacy", "both.example.com", `{"PLATFORM_NAME": "Old"}`)

	config, key, err := resolver.Resolve("both.example.com")
	require.NoError(t, err)
	assert.Equal(t, "legacy", key)
	assert.Equal(t, "Old", config["PLATFORM_NAME"])
}

func TestResolver_Unresolved(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(NewStore(db), models.BucketLMS)

	config, key, err := resolver.Resolve("unknown.example.com")
	require.NoError(t, err)
	assert.Empty(t, config)
	assert.Empty(t, key)
}

func TestResolver_PortStripRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	resolver := NewResolver(NewStore(db), models.BucketLMS)

	createTenant(t, db, "tenant-a", "a.example.com", `{"PLATFORM_NAME": "A"}`)

	bareConfig, bareKey, err := resolver.Resolve("a.example.com")
	require.NoError(t, err)
	portConfig, portKey, err := resolver.Resolve("a.example.com:18000")
	require.NoError(t, err)

	assert.Equal(t, bareKey, portKey)
	assert.Equal(t, bareConfig, portConfig)
}

type failingSource struct{}

func (failingSource) Name() string { return "failing" }

func (failingSource) Lookup(string) (map[string]interface{}, string, error) {
	return nil, "", errors.New("database unreachable")
}

func TestResolver_StoreErrorPropagates(t *testing.T) {
	resolver := NewResolverWithSources(failingSource{})

	_, _, err := resolver.Resolve("a.example.com")
	assert.Error(t, err)
}
