package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openlearn/tenantd/internal/db/models"
	"github.com/openlearn/tenantd/internal/server/web/middleware"
	"github.com/openlearn/tenantd/pkg/logger"
)

type createAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

func (h *Handler) listAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.apiKeys.ListKeys(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list API keys")
		return
	}

	respondJSON(w, http.StatusOK, keys)
}

func (h *Handler) createAPIKey(w http.ResponseWriter, r *http.Request) {
	var req createAPIKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	apiKey, plainKey, err := h.apiKeys.CreateKey(r.Context(), req.Name, req.Scopes)
	if err != nil {
		logger.ErrorEvent().Err(err).Msg("Failed to create API key")
		respondError(w, http.StatusInternalServerError, "Failed to create API key")
		return
	}

	// The plain key appears in this response only.
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"api_key": apiKey,
		"key":     plainKey,
	})
}

func (h *Handler) deleteAPIKey(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid API key ID")
		return
	}

	if err := h.apiKeys.RevokeKey(r.Context(), id); err != nil {
		respondError(w, http.StatusNotFound, "API key not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// currentUser loads the account behind the request's JWT. API key callers
// have no account and get a 401 on account-bound endpoints.
func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) *models.User {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "Admin session required")
		return nil
	}

	var user models.User
	err := h.db.Where("id = ?", claims.UserID).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondError(w, http.StatusUnauthorized, "Unknown account")
			return nil
		}
		respondError(w, http.StatusInternalServerError, "Failed to load account")
		return nil
	}
	return &user
}

func (h *Handler) setup2FA(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	url, err := h.users.BeginTOTPEnrollment(r.Context(), user, h.config.Server.Domain)
	if err != nil {
		logger.ErrorEvent().Err(err).Msg("Failed to begin TOTP enrollment")
		respondError(w, http.StatusInternalServerError, "Failed to begin enrollment")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"otpauth_url": url})
}

type verify2FARequest struct {
	Code string `json:"code"`
}

func (h *Handler) verify2FA(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req verify2FARequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.users.ConfirmTOTPEnrollment(r.Context(), user, req.Code); err != nil {
		respondError(w, http.StatusUnauthorized, "Invalid code")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "enabled"})
}
