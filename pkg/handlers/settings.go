package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/appforge-inc/forge-engine/pkg/crypto"
	"github.com/appforge-inc/forge-engine/pkg/models"
	"github.com/appforge-inc/forge-engine/pkg/repositories"
)

// CredentialRequest carries a new upstream generation credential.
type CredentialRequest struct {
	APIKey string `json:"api_key"`
}

// SettingsHandler exposes the operator settings surface. It is only mounted
// when a credentials key is configured, since stored credentials are always
// encrypted at rest.
type SettingsHandler struct {
	settings  repositories.SettingsRepository
	encryptor *crypto.CredentialEncryptor
	logger    *zap.Logger
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(
	settings repositories.SettingsRepository,
	encryptor *crypto.CredentialEncryptor,
	logger *zap.Logger,
) *SettingsHandler {
	return &SettingsHandler{
		settings:  settings,
		encryptor: encryptor,
		logger:    logger.Named("settings"),
	}
}

// RegisterRoutes registers the settings handler's routes on the given mux.
func (h *SettingsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("PUT /api/settings/credential", h.StoreCredential)
}

// StoreCredential handles PUT /api/settings/credential: encrypts the
// submitted API key and persists it, so the engine can pick it up on the
// next start when no env credential is set.
func (h *SettingsHandler) StoreCredential(w http.ResponseWriter, r *http.Request) {
	var req CredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.APIKey == "" {
		WriteError(w, http.StatusBadRequest, "api_key is required")
		return
	}

	encrypted, err := h.encryptor.Encrypt(req.APIKey)
	if err != nil {
		h.logger.Error("failed to encrypt credential", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}

	if err := h.settings.Set(r.Context(), models.SettingAPIKey, encrypted); err != nil {
		h.logger.Error("failed to store credential", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to store credential")
		return
	}

	h.logger.Info("generation credential stored", zap.Int("key_len", len(req.APIKey)))
	w.WriteHeader(http.StatusNoContent)
}
