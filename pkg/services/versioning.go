package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/appforge-inc/forge-engine/pkg/apperrors"
	"github.com/appforge-inc/forge-engine/pkg/models"
	"github.com/appforge-inc/forge-engine/pkg/repositories"
)

// draftNamespace derives stable project ids from draft keys, so repeated
// saves against the same pending draft materialize exactly one project.
var draftNamespace = uuid.MustParse("76b0ac92-3e1f-4a7d-9c55-0f25d0a21c6e")

// ProjectRef identifies the target of a version save: either a persisted
// project id, or a pending draft that has no project row yet. This replaces
// the older convention of marking temporary projects with an id prefix.
type ProjectRef struct {
	id       uuid.UUID
	draftKey string
}

// PersistedRef refers to a project id that is expected to exist (the
// versioning service recreates the row if it has gone missing).
func PersistedRef(id uuid.UUID) ProjectRef {
	return ProjectRef{id: id}
}

// PendingRef refers to a draft that has not been persisted yet. The same
// draft key always resolves to the same project id.
func PendingRef(draftKey string) ProjectRef {
	return ProjectRef{draftKey: draftKey}
}

// IsPending reports whether the ref targets an unmaterialized draft.
func (r ProjectRef) IsPending() bool {
	return r.draftKey != ""
}

// ProjectID resolves the ref to a concrete project id.
func (r ProjectRef) ProjectID() uuid.UUID {
	if r.IsPending() {
		return uuid.NewSHA1(draftNamespace, []byte(r.draftKey))
	}
	return r.id
}

func (r ProjectRef) String() string {
	if r.IsPending() {
		return "draft:" + r.draftKey
	}
	return r.id.String()
}

// VersioningService records accepted code changes as an append-only,
// gapless sequence of numbered versions, materializing the project row when
// it does not exist yet.
type VersioningService interface {
	// SaveVersionAutomatically durably records one new version and returns
	// its id. It never retries persistence internally; a single store error
	// is surfaced, wrapped with context.
	SaveVersionAutomatically(ctx context.Context, ref ProjectRef, userPrompt, code string) (uuid.UUID, error)

	// GetProjectVersions returns all versions for a project, newest first.
	GetProjectVersions(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectVersion, error)

	// GetLatestVersion returns the highest-numbered version, or nil if the
	// project has none.
	GetLatestVersion(ctx context.Context, projectID uuid.UUID) (*models.ProjectVersion, error)

	// HasVersions reports whether the project has at least one version.
	HasVersions(ctx context.Context, projectID uuid.UUID) (bool, error)

	// CorrectVersion overwrites prompt and code of an existing version.
	// Version history is append-only by contract; this is a deliberate,
	// narrowly-scoped exception for repairing a mislabeled initial version
	// and is never invoked by the automatic save path.
	CorrectVersion(ctx context.Context, versionID uuid.UUID, prompt, code string) error
}

type versioningService struct {
	projects repositories.ProjectRepository
	versions repositories.VersionRepository
	logger   *zap.Logger

	// Per-project serialization of read-max-then-insert. The database's
	// unique constraint on (project_id, version_number) backstops other
	// engine replicas.
	mu           sync.Mutex
	projectLocks map[uuid.UUID]*sync.Mutex
}

// NewVersioningService creates a new versioning service.
func NewVersioningService(
	projects repositories.ProjectRepository,
	versions repositories.VersionRepository,
	logger *zap.Logger,
) VersioningService {
	return &versioningService{
		projects:     projects,
		versions:     versions,
		logger:       logger.Named("versioning"),
		projectLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *versioningService) SaveVersionAutomatically(ctx context.Context, ref ProjectRef, userPrompt, code string) (uuid.UUID, error) {
	if userPrompt == "" {
		return uuid.Nil, apperrors.ErrPromptRequired
	}

	projectID := ref.ProjectID()

	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	if err := s.ensureProjectExists(ctx, ref, projectID, code); err != nil {
		return uuid.Nil, fmt.Errorf("save version for project %s: %w", ref, err)
	}

	version, err := s.insertNextVersion(ctx, projectID, userPrompt, code)
	if err != nil {
		return uuid.Nil, fmt.Errorf("save version for project %s (prompt %d chars, code %d chars): %w",
			ref, len(userPrompt), len(code), err)
	}

	if err := s.projects.UpdateCode(ctx, projectID, code, version.CreatedAt); err != nil {
		return uuid.Nil, fmt.Errorf("update latest code for project %s after version %d: %w",
			ref, version.VersionNumber, err)
	}

	s.logger.Info("version saved",
		zap.String("project_id", projectID.String()),
		zap.Int("version_number", version.VersionNumber),
		zap.Int("code_len", len(code)))

	return version.ID, nil
}

// ensureProjectExists materializes the project row when it is missing.
// It never proceeds silently: a failed creation fails the whole save so no
// orphaned version can be inserted.
func (s *versioningService) ensureProjectExists(ctx context.Context, ref ProjectRef, projectID uuid.UUID, code string) error {
	_, err := s.projects.Get(ctx, projectID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("lookup project: %w", err)
	}

	project := &models.Project{
		ID:     projectID,
		Title:  deriveTitle(ref),
		Config: models.JSONBMap{},
		Code:   code,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return fmt.Errorf("materialize project: %w", err)
	}

	s.logger.Info("project materialized for version save",
		zap.String("project_id", projectID.String()),
		zap.Bool("pending", ref.IsPending()))
	return nil
}

// insertNextVersion computes max+1 and inserts. The per-project mutex makes
// this race-free within the process; on a cross-replica unique-constraint
// conflict the number is recomputed once.
func (s *versioningService) insertNextVersion(ctx context.Context, projectID uuid.UUID, prompt, code string) (*models.ProjectVersion, error) {
	for tries := 0; tries < 2; tries++ {
		max, err := s.versions.MaxVersionNumber(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("compute next version number: %w", err)
		}

		version := &models.ProjectVersion{
			ProjectID:     projectID,
			VersionNumber: max + 1,
			Prompt:        prompt,
			Code:          code,
			CreatedAt:     time.Now(),
		}

		err = s.versions.Create(ctx, version)
		if err == nil {
			return version, nil
		}
		if errors.Is(err, apperrors.ErrConflict) && tries == 0 {
			s.logger.Warn("version number conflict, recomputing",
				zap.String("project_id", projectID.String()),
				zap.Int("version_number", version.VersionNumber))
			continue
		}
		return nil, fmt.Errorf("insert version %d: %w", version.VersionNumber, err)
	}

	return nil, fmt.Errorf("insert version: %w", apperrors.ErrConflict)
}

func (s *versioningService) GetProjectVersions(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectVersion, error) {
	versions, err := s.versions.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list versions for project %s: %w", projectID, err)
	}
	return versions, nil
}

func (s *versioningService) GetLatestVersion(ctx context.Context, projectID uuid.UUID) (*models.ProjectVersion, error) {
	version, err := s.versions.Latest(ctx, projectID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest version for project %s: %w", projectID, err)
	}
	return version, nil
}

func (s *versioningService) HasVersions(ctx context.Context, projectID uuid.UUID) (bool, error) {
	max, err := s.versions.MaxVersionNumber(ctx, projectID)
	if err != nil {
		return false, fmt.Errorf("check versions for project %s: %w", projectID, err)
	}
	return max > 0, nil
}

func (s *versioningService) CorrectVersion(ctx context.Context, versionID uuid.UUID, prompt, code string) error {
	if prompt == "" {
		return apperrors.ErrPromptRequired
	}

	version, err := s.versions.Get(ctx, versionID)
	if err != nil {
		return fmt.Errorf("correct version %s: %w", versionID, err)
	}

	if err := s.versions.Update(ctx, versionID, prompt, code); err != nil {
		return fmt.Errorf("correct version %s: %w", versionID, err)
	}

	s.logger.Warn("version corrected in place",
		zap.String("version_id", versionID.String()),
		zap.String("project_id", version.ProjectID.String()),
		zap.Int("version_number", version.VersionNumber))

	return nil
}

func (s *versioningService) projectLock(projectID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.projectLocks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.projectLocks[projectID] = lock
	}
	return lock
}

func deriveTitle(ref ProjectRef) string {
	if ref.IsPending() {
		return "Draft " + time.Now().Format("2006-01-02 15:04:05")
	}
	return "Project " + ref.ProjectID().String()[:8]
}
