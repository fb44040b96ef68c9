package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appforge-inc/forge-engine/pkg/apperrors"
	"github.com/appforge-inc/forge-engine/pkg/llm"
	"github.com/appforge-inc/forge-engine/pkg/models"
	"github.com/appforge-inc/forge-engine/pkg/services"
)

// GenerateRequest is the wizard's generation submission. Exactly one of
// ProjectID and DraftKey identifies the target project.
type GenerateRequest struct {
	ProjectID string            `json:"project_id,omitempty"`
	DraftKey  string            `json:"draft_key,omitempty"`
	Config    *models.AppConfig `json:"config"`
	Prompt    string            `json:"prompt,omitempty"`
}

// GenerateResponse carries the recorded version and its code back to the UI.
type GenerateResponse struct {
	VersionID string `json:"version_id"`
	ProjectID string `json:"project_id"`
	Code      string `json:"code"`
}

// GenerationHandler exposes the generation pipeline and lock to the UI layer.
type GenerationHandler struct {
	generation services.GenerationService
	versioning services.VersioningService
	lock       *services.GenerationLock
	logger     *zap.Logger
}

// NewGenerationHandler creates a new GenerationHandler.
func NewGenerationHandler(
	generation services.GenerationService,
	versioning services.VersioningService,
	lock *services.GenerationLock,
	logger *zap.Logger,
) *GenerationHandler {
	return &GenerationHandler{
		generation: generation,
		versioning: versioning,
		lock:       lock,
		logger:     logger.Named("handlers"),
	}
}

// RegisterRoutes registers the generation handler's routes on the given mux.
func (h *GenerationHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/generate", h.Generate)
	mux.HandleFunc("GET /api/projects/{id}/versions", h.ListVersions)
	mux.HandleFunc("GET /api/projects/{id}/versions/latest", h.LatestVersion)
	mux.HandleFunc("GET /api/generation/lock", h.LockStatus)
	mux.HandleFunc("POST /api/generation/lock/clear", h.ClearLock)
}

// Generate handles POST /api/generate: one full pass through the pipeline.
// Lock contention maps to 409 so the UI can show "already in progress".
func (h *GenerationHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Config == nil {
		WriteError(w, http.StatusBadRequest, "config is required")
		return
	}

	ref, err := resolveRef(&req)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	operationID := uuid.New().String()
	if !h.lock.Acquire(operationID) {
		WriteError(w, http.StatusConflict, apperrors.ErrGenerationInProgress.Error())
		return
	}
	defer h.lock.Release(operationID)

	code, err := h.generation.Generate(r.Context(), req.Config, req.Prompt)
	if err != nil {
		h.writeGenerationError(w, err)
		return
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = "Generate " + req.Config.Name
	}

	versionID, err := h.versioning.SaveVersionAutomatically(r.Context(), ref, prompt, code)
	if err != nil {
		h.logger.Error("failed to save generated version", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "generated code could not be saved")
		return
	}

	_ = WriteJSON(w, http.StatusOK, GenerateResponse{
		VersionID: versionID.String(),
		ProjectID: ref.ProjectID().String(),
		Code:      code,
	})
}

// ListVersions handles GET /api/projects/{id}/versions.
func (h *GenerationHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	versions, err := h.versioning.GetProjectVersions(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to list versions", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to list versions")
		return
	}
	if versions == nil {
		versions = []*models.ProjectVersion{}
	}

	_ = WriteJSON(w, http.StatusOK, versions)
}

// LatestVersion handles GET /api/projects/{id}/versions/latest.
func (h *GenerationHandler) LatestVersion(w http.ResponseWriter, r *http.Request) {
	projectID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid project id")
		return
	}

	version, err := h.versioning.GetLatestVersion(r.Context(), projectID)
	if err != nil {
		h.logger.Error("failed to get latest version", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "failed to get latest version")
		return
	}
	if version == nil {
		WriteError(w, http.StatusNotFound, "project has no versions")
		return
	}

	_ = WriteJSON(w, http.StatusOK, version)
}

// LockStatus handles GET /api/generation/lock.
func (h *GenerationHandler) LockStatus(w http.ResponseWriter, r *http.Request) {
	_ = WriteJSON(w, http.StatusOK, h.lock.Status())
}

// ClearLock handles POST /api/generation/lock/clear: the operator escape
// hatch for a wedged lock.
func (h *GenerationHandler) ClearLock(w http.ResponseWriter, r *http.Request) {
	h.lock.ForceClear()
	w.WriteHeader(http.StatusNoContent)
}

// writeGenerationError maps the generation error taxonomy onto HTTP statuses
// the UI distinguishes between: retry, fix credentials, or wait.
func (h *GenerationHandler) writeGenerationError(w http.ResponseWriter, err error) {
	var genErr *llm.Error
	if !errors.As(err, &genErr) {
		h.logger.Error("generation failed", zap.Error(err))
		WriteError(w, http.StatusInternalServerError, "generation failed")
		return
	}

	switch genErr.Type {
	case llm.ErrorTypeNotConfigured, llm.ErrorTypeBadCredential:
		WriteError(w, http.StatusUnprocessableEntity, genErr.Message)
	case llm.ErrorTypeQuota, llm.ErrorTypeQuotaExhausted:
		WriteError(w, http.StatusTooManyRequests, genErr.Message)
	default:
		WriteError(w, http.StatusBadGateway, genErr.Message)
	}
}

func resolveRef(req *GenerateRequest) (services.ProjectRef, error) {
	switch {
	case req.ProjectID != "" && req.DraftKey != "":
		return services.ProjectRef{}, errors.New("provide project_id or draft_key, not both")
	case req.ProjectID != "":
		id, err := uuid.Parse(req.ProjectID)
		if err != nil {
			return services.ProjectRef{}, errors.New("invalid project id")
		}
		return services.PersistedRef(id), nil
	case req.DraftKey != "":
		return services.PendingRef(req.DraftKey), nil
	default:
		return services.ProjectRef{}, errors.New("project_id or draft_key is required")
	}
}
