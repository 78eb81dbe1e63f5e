package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/openlearn/tenantd/internal/db/models"
	"github.com/openlearn/tenantd/pkg/logger"
	"github.com/openlearn/tenantd/pkg/utils"
)

// pathID parses the {id} path segment of a request.
func pathID(r *http.Request) (uint, error) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	return uint(id), err
}

type tenantRequest struct {
	ExternalKey    string                 `json:"external_key"`
	LMSConfigs     map[string]interface{} `json:"lms_configs,omitempty"`
	StudioConfigs  map[string]interface{} `json:"studio_configs,omitempty"`
	ThemingConfigs map[string]interface{} `json:"theming_configs,omitempty"`
	Meta           map[string]interface{} `json:"meta,omitempty"`
}

func encodeBucket(bucket map[string]interface{}) (datatypes.JSON, error) {
	if bucket == nil {
		return datatypes.JSON(`{}`), nil
	}
	raw, err := json.Marshal(bucket)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	var tenants []models.TenantConfig
	if err := h.db.Preload("Routes").Order("id").Find(&tenants).Error; err != nil {
		logger.ErrorEvent().Err(err).Msg("Failed to list tenants")
		respondError(w, http.StatusInternalServerError, "Failed to list tenants")
		return
	}

	respondJSON(w, http.StatusOK, tenants)
}

func (h *Handler) getTenant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid tenant ID")
		return
	}

	var tenant models.TenantConfig
	err = h.db.Preload("Routes").Preload("Organizations").First(&tenant, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Tenant not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get tenant")
		return
	}

	respondJSON(w, http.StatusOK, tenant)
}

func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ExternalKey == "" {
		respondError(w, http.StatusBadRequest, "external_key is required")
		return
	}

	tenant := &models.TenantConfig{ExternalKey: req.ExternalKey}
	if err := h.applyBuckets(tenant, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid configuration bucket")
		return
	}

	if err := h.db.Create(tenant).Error; err != nil {
		logger.ErrorEvent().Err(err).Msg("Failed to create tenant")
		respondError(w, http.StatusInternalServerError, "Failed to create tenant")
		return
	}

	h.syncTenantOrgs(tenant)
	respondJSON(w, http.StatusCreated, tenant)
}

func (h *Handler) updateTenant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid tenant ID")
		return
	}

	var tenant models.TenantConfig
	if err := h.db.First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Tenant not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get tenant")
		return
	}

	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ExternalKey != "" {
		tenant.ExternalKey = req.ExternalKey
	}
	if err := h.applyBuckets(&tenant, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid configuration bucket")
		return
	}

	if err := h.db.Save(&tenant).Error; err != nil {
		logger.ErrorEvent().Err(err).Msg("Failed to update tenant")
		respondError(w, http.StatusInternalServerError, "Failed to update tenant")
		return
	}

	h.syncTenantOrgs(&tenant)
	respondJSON(w, http.StatusOK, tenant)
}

func (h *Handler) deleteTenant(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid tenant ID")
		return
	}

	result := h.db.Select("Routes", "Organizations").Delete(&models.TenantConfig{ID: id})
	if result.Error != nil {
		logger.ErrorEvent().Err(result.Error).Msg("Failed to delete tenant")
		respondError(w, http.StatusInternalServerError, "Failed to delete tenant")
		return
	}
	if result.RowsAffected == 0 {
		respondError(w, http.StatusNotFound, "Tenant not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// applyBuckets writes the request's configuration buckets onto the tenant
// record. Only buckets present in the request are replaced.
func (h *Handler) applyBuckets(tenant *models.TenantConfig, req *tenantRequest) error {
	assign := func(target *datatypes.JSON, bucket map[string]interface{}) error {
		if bucket == nil {
			if len(*target) == 0 {
				*target = datatypes.JSON(`{}`)
			}
			return nil
		}
		raw, err := encodeBucket(bucket)
		if err != nil {
			return err
		}
		*target = raw
		return nil
	}

	if err := assign(&tenant.LMSConfigs, req.LMSConfigs); err != nil {
		return err
	}
	if err := assign(&tenant.StudioConfigs, req.StudioConfigs); err != nil {
		return err
	}
	if err := assign(&tenant.ThemingConfigs, req.ThemingConfigs); err != nil {
		return err
	}
	return assign(&tenant.Meta, req.Meta)
}

// syncTenantOrgs keeps the organization index in step with every tenant
// write. Failures are logged, not surfaced; the index can be rebuilt with
// the sync-orgs command.
func (h *Handler) syncTenantOrgs(tenant *models.TenantConfig) {
	if err := h.index.SynchronizeTenant(tenant); err != nil {
		logger.ErrorEvent().
			Err(err).
			Str("external_key", tenant.ExternalKey).
			Msg("Failed to synchronize tenant organizations")
	}
}

type routeRequest struct {
	Domain string `json:"domain"`
}

func (h *Handler) listRoutes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid tenant ID")
		return
	}

	var routes []models.Route
	if err := h.db.Where("tenant_config_id = ?", id).Order("id").Find(&routes).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list routes")
		return
	}

	respondJSON(w, http.StatusOK, routes)
}

func (h *Handler) createRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid tenant ID")
		return
	}

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	domain := utils.NormalizeDomain(req.Domain)
	if !utils.IsValidDomain(domain) {
		respondError(w, http.StatusBadRequest, "Invalid domain")
		return
	}

	var tenant models.TenantConfig
	if err := h.db.First(&tenant, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Tenant not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get tenant")
		return
	}

	var existing int64
	h.db.Model(&models.Route{}).Where("domain = ?", domain).Count(&existing)
	if existing > 0 {
		respondError(w, http.StatusConflict, "Domain already routed to a tenant")
		return
	}

	route := &models.Route{Domain: domain, TenantConfigID: tenant.ID}
	if err := h.db.Create(route).Error; err != nil {
		logger.ErrorEvent().Err(err).Str("domain", domain).Msg("Failed to create route")
		respondError(w, http.StatusInternalServerError, "Failed to create route")
		return
	}

	respondJSON(w, http.StatusCreated, route)
}

func (h *Handler) updateRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid route ID")
		return
	}

	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	domain := utils.NormalizeDomain(req.Domain)
	if !utils.IsValidDomain(domain) {
		respondError(w, http.StatusBadRequest, "Invalid domain")
		return
	}

	var route models.Route
	if err := h.db.First(&route, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Route not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get route")
		return
	}

	var existing int64
	h.db.Model(&models.Route{}).Where("domain = ? AND id <> ?", domain, route.ID).Count(&existing)
	if existing > 0 {
		respondError(w, http.StatusConflict, "Domain already routed to a tenant")
		return
	}

	route.Domain = domain
	if err := h.db.Save(&route).Error; err != nil {
		logger.ErrorEvent().Err(err).Str("domain", domain).Msg("Failed to update route")
		respondError(w, http.StatusInternalServerError, "Failed to update route")
		return
	}

	respondJSON(w, http.StatusOK, route)
}

func (h *Handler) deleteRoute(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid route ID")
		return
	}

	result := h.db.Delete(&models.Route{}, id)
	if result.Error != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete route")
		return
	}
	if result.RowsAffected == 0 {
		respondError(w, http.StatusNotFound, "Route not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
