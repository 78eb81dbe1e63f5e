package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"gorm.io/gorm"

	"github.com/openlearn/tenantd/internal/db/models"
	"github.com/openlearn/tenantd/pkg/logger"
	"github.com/openlearn/tenantd/pkg/utils"
)

type micrositeRequest struct {
	Key       string                 `json:"key"`
	Subdomain string                 `json:"subdomain"`
	Values    map[string]interface{} `json:"values,omitempty"`
}

func (h *Handler) listMicrosites(w http.ResponseWriter, r *http.Request) {
	var microsites []models.Microsite
	if err := h.db.Order("id").Find(&microsites).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list microsites")
		return
	}

	respondJSON(w, http.StatusOK, microsites)
}

func (h *Handler) createMicrosite(w http.ResponseWriter, r *http.Request) {
	var req micrositeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	subdomain := utils.NormalizeDomain(req.Subdomain)
	if !utils.IsValidDomain(subdomain) {
		respondError(w, http.StatusBadRequest, "Invalid subdomain")
		return
	}

	values, err := encodeBucket(req.Values)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid values bucket")
		return
	}

	microsite := &models.Microsite{
		Key:       req.Key,
		Subdomain: subdomain,
		Values:    values,
	}
	if err := h.db.Create(microsite).Error; err != nil {
		logger.ErrorEvent().Err(err).Msg("Failed to create microsite")
		respondError(w, http.StatusInternalServerError, "Failed to create microsite")
		return
	}

	h.syncMicrositeOrgs(microsite)
	respondJSON(w, http.StatusCreated, microsite)
}

func (h *Handler) updateMicrosite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid microsite ID")
		return
	}

	var microsite models.Microsite
	if err := h.db.First(&microsite, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusNotFound, "Microsite not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "Failed to get microsite")
		return
	}

	var req micrositeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Key != "" {
		microsite.Key = req.Key
	}
	if req.Subdomain != "" {
		subdomain := utils.NormalizeDomain(req.Subdomain)
		if !utils.IsValidDomain(subdomain) {
			respondError(w, http.StatusBadRequest, "Invalid subdomain")
			return
		}
		microsite.Subdomain = subdomain
	}
	if req.Values != nil {
		values, err := encodeBucket(req.Values)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid values bucket")
			return
		}
		microsite.Values = values
	}

	if err := h.db.Save(&microsite).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update microsite")
		return
	}

	h.syncMicrositeOrgs(&microsite)
	respondJSON(w, http.StatusOK, microsite)
}

func (h *Handler) deleteMicrosite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid microsite ID")
		return
	}

	result := h.db.Select("Organizations").Delete(&models.Microsite{ID: id})
	if result.Error != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete microsite")
		return
	}
	if result.RowsAffected == 0 {
		respondError(w, http.StatusNotFound, "Microsite not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) syncMicrositeOrgs(microsite *models.Microsite) {
	if err := h.index.SynchronizeMicrosite(microsite); err != nil {
		logger.ErrorEvent().
			Err(err).
			Str("key", microsite.Key).
			Msg("Failed to synchronize microsite organizations")
	}
}

type redirectionRequest struct {
	Domain string `json:"domain"`
	Target string `json:"target"`
	Scheme string `json:"scheme,omitempty"`
	Status int    `json:"status,omitempty"`
}

func (h *Handler) listRedirections(w http.ResponseWriter, r *http.Request) {
	var redirections []models.Redirection
	if err := h.db.Order("id").Find(&redirections).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list redirections")
		return
	}

	respondJSON(w, http.StatusOK, redirections)
}

func (h *Handler) createRedirection(w http.ResponseWriter, r *http.Request) {
	var req redirectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	domain := utils.NormalizeDomain(req.Domain)
	target := utils.NormalizeDomain(req.Target)
	if !utils.IsValidDomain(domain) || !utils.IsValidDomain(target) {
		respondError(w, http.StatusBadRequest, "Invalid domain")
		return
	}

	redirection := &models.Redirection{
		Domain: domain,
		Target: target,
	}
	if req.Scheme != "" {
		redirection.Scheme = req.Scheme
	}
	if req.Status != 0 {
		redirection.Status = req.Status
	}

	if err := h.db.Create(redirection).Error; err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to create redirection")
		return
	}

	respondJSON(w, http.StatusCreated, redirection)
}

func (h *Handler) deleteRedirection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid redirection ID")
		return
	}

	result := h.db.Delete(&models.Redirection{}, id)
	if result.Error != nil {
		respondError(w, http.StatusInternalServerError, "Failed to delete redirection")
		return
	}
	if result.RowsAffected == 0 {
		respondError(w, http.StatusNotFound, "Redirection not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
