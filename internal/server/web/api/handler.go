package api

import (
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"github.com/openlearn/tenantd/internal/config"
	"github.com/openlearn/tenantd/internal/server/auth"
	"github.com/openlearn/tenantd/internal/server/web/middleware"
	"github.com/openlearn/tenantd/internal/tenancy"
	"github.com/openlearn/tenantd/pkg/logger"
)

// Scopes accepted from machine API keys.
const (
	ScopeTenantsRead  = "tenants:read"
	ScopeTenantsWrite = "tenants:write"
	ScopeOrgsRead     = "orgs:read"
)

// Handler handles management API requests.
type Handler struct {
	db        *gorm.DB
	users     *auth.UserService
	apiKeys   *auth.APIKeyService
	resolver  *tenancy.Resolver
	orgValues *tenancy.OrgValues
	index     *tenancy.Index
	config    *config.Config
	authMW    *middleware.AuthMiddleware
}

// NewHandler creates a new management API handler.
func NewHandler(db *gorm.DB, cfg *config.Config, resolver *tenancy.Resolver, orgValues *tenancy.OrgValues) *Handler {
	apiKeys := auth.NewAPIKeyService(db)
	return &Handler{
		db:        db,
		users:     auth.NewUserService(db, auth.NewTOTPService()),
		apiKeys:   apiKeys,
		resolver:  resolver,
		orgValues: orgValues,
		index:     tenancy.NewIndex(db),
		config:    cfg,
		authMW:    middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, apiKeys),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	loginLimiter := middleware.NewRateLimiter(rate.Limit(0.5), 3)

	// Public routes
	mux.HandleFunc("GET /health", h.health)
	mux.Handle("POST /api/v1/auth/login", loginLimiter.Limit(http.HandlerFunc(h.login)))

	// Resolution and org queries
	mux.Handle("GET /api/v1/resolve",
		h.authMW.Protect(ScopeTenantsRead, http.HandlerFunc(h.resolve)))
	mux.Handle("GET /api/v1/orgs",
		h.authMW.Protect(ScopeOrgsRead, http.HandlerFunc(h.listOrgs)))
	mux.Handle("GET /api/v1/orgs/{org}/values/{key}",
		h.authMW.Protect(ScopeOrgsRead, http.HandlerFunc(h.orgValue)))

	// Tenant management
	mux.Handle("GET /api/v1/tenants",
		h.authMW.Protect(ScopeTenantsRead, http.HandlerFunc(h.listTenants)))
	mux.Handle("POST /api/v1/tenants",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.createTenant)))
	mux.Handle("GET /api/v1/tenants/{id}",
		h.authMW.Protect(ScopeTenantsRead, http.HandlerFunc(h.getTenant)))
	mux.Handle("PATCH /api/v1/tenants/{id}",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.updateTenant)))
	mux.Handle("DELETE /api/v1/tenants/{id}",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.deleteTenant)))

	// Route management
	mux.Handle("GET /api/v1/tenants/{id}/routes",
		h.authMW.Protect(ScopeTenantsRead, http.HandlerFunc(h.listRoutes)))
	mux.Handle("POST /api/v1/tenants/{id}/routes",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.createRoute)))
	mux.Handle("PATCH /api/v1/routes/{id}",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.updateRoute)))
	mux.Handle("DELETE /api/v1/routes/{id}",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.deleteRoute)))

	// Legacy microsites
	mux.Handle("GET /api/v1/microsites",
		h.authMW.Protect(ScopeTenantsRead, http.HandlerFunc(h.listMicrosites)))
	mux.Handle("POST /api/v1/microsites",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.createMicrosite)))
	mux.Handle("PATCH /api/v1/microsites/{id}",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.updateMicrosite)))
	mux.Handle("DELETE /api/v1/microsites/{id}",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.deleteMicrosite)))

	// Redirections
	mux.Handle("GET /api/v1/redirections",
		h.authMW.Protect(ScopeTenantsRead, http.HandlerFunc(h.listRedirections)))
	mux.Handle("POST /api/v1/redirections",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.createRedirection)))
	mux.Handle("DELETE /api/v1/redirections/{id}",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.deleteRedirection)))

	// API keys (admin JWT only in practice; keys cannot mint keys without *)
	mux.Handle("GET /api/v1/apikeys",
		h.authMW.Protect("*", http.HandlerFunc(h.listAPIKeys)))
	mux.Handle("POST /api/v1/apikeys",
		h.authMW.Protect("*", http.HandlerFunc(h.createAPIKey)))
	mux.Handle("DELETE /api/v1/apikeys/{id}",
		h.authMW.Protect("*", http.HandlerFunc(h.deleteAPIKey)))

	// Two-factor enrollment
	mux.Handle("POST /api/v1/2fa/setup",
		h.authMW.Protect("*", http.HandlerFunc(h.setup2FA)))
	mux.Handle("POST /api/v1/2fa/verify",
		h.authMW.Protect("*", http.HandlerFunc(h.verify2FA)))

	// Bulk organization synchronization
	mux.Handle("POST /api/v1/sync-orgs",
		h.authMW.Protect(ScopeTenantsWrite, http.HandlerFunc(h.syncOrgs)))
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TOTPCode string `json:"totp_code,omitempty"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Email, req.Password, req.TOTPCode)
	if err != nil {
		logger.WarnEvent().Str("email", req.Email).Msg("Failed login attempt")
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authMW.GenerateToken(user.ID.String(), user.Email)
	if err != nil {
		logger.ErrorEvent().Err(err).Msg("Failed to generate token")
		respondError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user": map[string]interface{}{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
		},
	})
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("domain")
	if domain == "" {
		respondError(w, http.StatusBadRequest, "Missing domain parameter")
		return
	}

	cfg, key, err := h.resolver.Resolve(domain)
	if err != nil {
		logger.ErrorEvent().Err(err).Str("domain", domain).Msg("Resolution failed")
		respondError(w, http.StatusInternalServerError, "Resolution failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"domain":       domain,
		"external_key": key,
		"config":       cfg,
	})
}

func (h *Handler) listOrgs(w http.ResponseWriter, r *http.Request) {
	orgs, err := h.orgValues.AllOrgs(r.Context())
	if err != nil {
		logger.ErrorEvent().Err(err).Msg("Failed to list organizations")
		respondError(w, http.StatusInternalServerError, "Failed to list organizations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"organizations": orgs})
}

func (h *Handler) orgValue(w http.ResponseWriter, r *http.Request) {
	org := r.PathValue("org")
	key := r.PathValue("key")

	var def interface{}
	if d := r.URL.Query().Get("default"); d != "" {
		def = d
	}

	value, err := h.orgValues.ValueForOrg(r.Context(), org, key, def)
	if err != nil {
		logger.ErrorEvent().Err(err).Str("org", org).Str("key", key).Msg("Org value lookup failed")
		respondError(w, http.StatusInternalServerError, "Lookup failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"organization": org,
		"key":          key,
		"value":        value,
	})
}

func (h *Handler) syncOrgs(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.index.SynchronizeAllTenants()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Tenant synchronization failed")
		return
	}

	microsites, err := h.index.SynchronizeAllMicrosites()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Microsite synchronization failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]int{
		"tenants_synced":    tenants,
		"microsites_synced": microsites,
	})
}
