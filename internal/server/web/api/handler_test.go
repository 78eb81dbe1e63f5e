package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/openlearn/tenantd/internal/cache"
	"github.com/openlearn/tenantd/internal/config"
	"github.com/openlearn/tenantd/internal/db"
	"github.com/openlearn/tenantd/internal/db/models"
	"github.com/openlearn/tenantd/internal/tasks"
	"github.com/openlearn/tenantd/internal/tenancy"
)

type testAPI struct {
	db      *gorm.DB
	handler *Handler
	mux     *http.ServeMux
	token   string
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	database, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(database))

	cfg := &config.Config{
		Server: config.ServerConfig{Domain: "learn.example.com"},
		Auth: config.AuthConfig{
			JWTSecret:     "test-secret",
			AdminEmail:    "admin@example.com",
			AdminPassword: "admin-pass",
		},
	}

	store := tenancy.NewStore(database)
	resolver := tenancy.NewResolver(store, "lms")
	orgValues := tenancy.NewOrgValues(database, cache.NewMemoryCache(), time.Minute)

	h := NewHandler(database, cfg, resolver, orgValues)
	require.NoError(t, h.users.EnsureAdmin(context.Background(), cfg.Auth.AdminEmail, cfg.Auth.AdminPassword))

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	api := &testAPI{db: database, handler: h, mux: mux}
	api.token = api.login(t, "admin@example.com", "admin-pass")
	return api
}

func (a *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"email":    email,
		"password": password,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	token, _ := resp["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	a := setupAPI(t)

	rec := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	a := setupAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]interface{}{
		"email":    "admin@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	a := setupAPI(t)

	rec := a.do(t, http.MethodGet, "/api/v1/tenants", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTenantLifecycle(t *testing.T) {
	a := setupAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/tenants", a.token, map[string]interface{}{
		"external_key": "tA",
		"lms_configs": map[string]interface{}{
			"EDNX_USE_SIGNAL":   true,
			"PLATFORM_NAME":     "A",
			"course_org_filter": []string{"orgA"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.TenantConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	// The write synchronized the organization index.
	rec = a.do(t, http.MethodGet, "/api/v1/orgs", a.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orgA")

	// Attach a route and resolve through it.
	rec = a.do(t, http.MethodPost, "/api/v1/tenants/1/routes", a.token, map[string]interface{}{
		"domain": "a.example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/resolve?domain=a.example.com:8000", a.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolved struct {
		ExternalKey string                 `json:"external_key"`
		Config      map[string]interface{} `json:"config"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, "tA", resolved.ExternalKey)
	assert.Equal(t, "A", resolved.Config["PLATFORM_NAME"])

	// Delete cascades to routes.
	rec = a.do(t, http.MethodDelete, "/api/v1/tenants/1", a.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var routeCount int64
	require.NoError(t, a.db.Model(&models.Route{}).Count(&routeCount).Error)
	assert.Equal(t, int64(0), routeCount)
}

func TestCreateRoute_RejectsInvalidDomain(t *testing.T) {
	a := setupAPI(t)
	require.NoError(t, a.db.Create(&models.TenantConfig{ExternalKey: "tA"}).Error)

	rec := a.do(t, http.MethodPost, "/api/v1/tenants/1/routes", a.token, map[string]interface{}{
		"domain": "not a domain",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRoute_RejectsDuplicateDomain(t *testing.T) {
	a := setupAPI(t)
	require.NoError(t, a.db.Create(&models.TenantConfig{ExternalKey: "tA"}).Error)
	require.NoError(t, a.db.Create(&models.TenantConfig{ExternalKey: "tB"}).Error)

	rec := a.do(t, http.MethodPost, "/api/v1/tenants/1/routes", a.token, map[string]interface{}{
		"domain": "a.example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodPost, "/api/v1/tenants/2/routes", a.token, map[string]interface{}{
		"domain": "A.example.com:443",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateRoute_ChangesDomain(t *testing.T) {
	a := setupAPI(t)
	require.NoError(t, a.db.Create(&models.TenantConfig{ExternalKey: "tA"}).Error)
	require.NoError(t, a.db.Create(&models.Route{Domain: "old.example.com", TenantConfigID: 1}).Error)
	require.NoError(t, a.db.Create(&models.Route{Domain: "taken.example.com", TenantConfigID: 1}).Error)

	rec := a.do(t, http.MethodPatch, "/api/v1/routes/1", a.token, map[string]interface{}{
		"domain": "New.example.com:8000",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var route models.Route
	require.NoError(t, a.db.First(&route, 1).Error)
	assert.Equal(t, "new.example.com", route.Domain)

	rec = a.do(t, http.MethodPatch, "/api/v1/routes/1", a.token, map[string]interface{}{
		"domain": "taken.example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(t, http.MethodPatch, "/api/v1/routes/99", a.token, map[string]interface{}{
		"domain": "other.example.com",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMicrositeCreateSynchronizesOrgs(t *testing.T) {
	a := setupAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/microsites", a.token, map[string]interface{}{
		"key":       "legacy",
		"subdomain": "legacy.example.com",
		"values": map[string]interface{}{
			"course_org_filter": "orgZ",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/orgs", a.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "orgZ")
}

func TestOrgValueEndpoint(t *testing.T) {
	a := setupAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/tenants", a.token, map[string]interface{}{
		"external_key": "tA",
		"lms_configs": map[string]interface{}{
			"course_org_filter": []string{"orgA"},
			"PLATFORM_NAME":     "A",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/v1/orgs/orgA/values/PLATFORM_NAME", a.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "A", resp["value"])

	rec = a.do(t, http.MethodGet, "/api/v1/orgs/orgB/values/PLATFORM_NAME?default=none", a.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "none", resp["value"])
}

func TestAPIKeyLifecycle(t *testing.T) {
	a := setupAPI(t)

	rec := a.do(t, http.MethodPost, "/api/v1/apikeys", a.token, map[string]interface{}{
		"name":   "ci-bot",
		"scopes": []string{"tenants:read"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Key)

	// The key can read tenants but not write them.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil)
	req.Header.Set("X-API-Key", resp.Key)
	rec2 := httptest.NewRecorder()
	a.mux.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/tenants/1", nil)
	req.Header.Set("X-API-Key", resp.Key)
	rec2 = httptest.NewRecorder()
	a.mux.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusForbidden, rec2.Code)
}

func TestStampTaskEndpoint(t *testing.T) {
	a := setupAPI(t)

	manager := tenancy.NewManager(
		tenancy.NewResolver(tenancy.NewStore(a.db), "lms"),
		tenancy.Defaults{},
		time.Minute,
	)
	th := tasks.NewHandler(manager, a.db, nil, "fallback.example.com")
	a.handler.RegisterTaskRoutes(a.mux, th)

	rec := a.do(t, http.MethodPost, "/api/v1/tasks/stamp", a.token, map[string]interface{}{
		"task":    "send_email",
		"payload": map[string]interface{}{"course": "c1"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Payload map[string]interface{} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "fallback.example.com", resp.Payload[tasks.DomainKey])
	assert.Equal(t, "c1", resp.Payload["course"])
}

func TestSyncOrgsEndpoint(t *testing.T) {
	a := setupAPI(t)

	// Records created outside the API carry no index entries until a sync.
	require.NoError(t, a.db.Create(&models.TenantConfig{
		ExternalKey: "tA",
		LMSConfigs:  []byte(`{"course_org_filter": ["orgA"]}`),
	}).Error)

	rec := a.do(t, http.MethodPost, "/api/v1/sync-orgs", a.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp["tenants_synced"])
}
