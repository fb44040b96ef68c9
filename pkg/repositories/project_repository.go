package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/appforge-inc/forge-engine/pkg/apperrors"
	"github.com/appforge-inc/forge-engine/pkg/database"
	"github.com/appforge-inc/forge-engine/pkg/models"
)

// ProjectRepository defines the interface for project data access.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	// UpdateCode refreshes the denormalized latest code and the
	// latest-version timestamp after a version insert.
	UpdateCode(ctx context.Context, id uuid.UUID, code string, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// projectRepository implements ProjectRepository using PostgreSQL.
type projectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB) ProjectRepository {
	return &projectRepository{db: db}
}

const projectColumns = `id, title, description, config, code, created_at, latest_version_created_at`

// Create inserts a new project. Creation is idempotent on id: a concurrent
// insert of the same id leaves the first row in place.
func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}

	now := time.Now()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}
	if project.LatestVersionCreatedAt.IsZero() {
		project.LatestVersionCreatedAt = project.CreatedAt
	}

	query := `
		INSERT INTO forge_projects (id, title, description, config, code, created_at, latest_version_created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		project.ID,
		project.Title,
		project.Description,
		project.Config,
		project.Code,
		project.CreatedAt,
		project.LatestVersionCreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// Get retrieves a project by ID.
func (r *projectRepository) Get(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM forge_projects WHERE id = $1`

	var project models.Project
	err := r.db.QueryRow(ctx, query, id).Scan(
		&project.ID,
		&project.Title,
		&project.Description,
		&project.Config,
		&project.Code,
		&project.CreatedAt,
		&project.LatestVersionCreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &project, nil
}

// Update rewrites a project's mutable fields.
func (r *projectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE forge_projects
		SET title = $2, description = $3, config = $4, code = $5, latest_version_created_at = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		project.ID,
		project.Title,
		project.Description,
		project.Config,
		project.Code,
		project.LatestVersionCreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// UpdateCode refreshes the denormalized latest code on the project row.
func (r *projectRepository) UpdateCode(ctx context.Context, id uuid.UUID, code string, at time.Time) error {
	query := `
		UPDATE forge_projects
		SET code = $2, latest_version_created_at = $3
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, code, at)
	if err != nil {
		return fmt.Errorf("failed to update project code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// Delete removes a project; versions cascade at the schema level.
func (r *projectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM forge_projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}
