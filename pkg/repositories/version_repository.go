package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/appforge-inc/forge-engine/pkg/apperrors"
	"github.com/appforge-inc/forge-engine/pkg/database"
	"github.com/appforge-inc/forge-engine/pkg/models"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// VersionRepository defines the interface for project version data access.
type VersionRepository interface {
	// Create inserts a new version row. Returns apperrors.ErrConflict when
	// (project_id, version_number) already exists, so callers can recompute
	// the next number and retry.
	Create(ctx context.Context, version *models.ProjectVersion) error
	Get(ctx context.Context, id uuid.UUID) (*models.ProjectVersion, error)
	// ListByProject returns all versions for a project, newest first.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectVersion, error)
	// Latest returns the version with the highest number, or ErrNotFound.
	Latest(ctx context.Context, projectID uuid.UUID) (*models.ProjectVersion, error)
	// MaxVersionNumber returns the highest version number for a project,
	// or 0 when the project has no versions.
	MaxVersionNumber(ctx context.Context, projectID uuid.UUID) (int, error)
	// Update overwrites prompt and code of an existing version. Only the
	// explicit correction path uses this; automatic saves always insert.
	Update(ctx context.Context, id uuid.UUID, prompt, code string) error
}

// versionRepository implements VersionRepository using PostgreSQL.
type versionRepository struct {
	db *database.DB
}

// NewVersionRepository creates a new version repository.
func NewVersionRepository(db *database.DB) VersionRepository {
	return &versionRepository{db: db}
}

const versionColumns = `id, project_id, version_number, prompt, code, created_at`

// Create inserts a new version row.
func (r *versionRepository) Create(ctx context.Context, version *models.ProjectVersion) error {
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO forge_project_versions (id, project_id, version_number, prompt, code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		version.ID,
		version.ProjectID,
		version.VersionNumber,
		version.Prompt,
		version.Code,
		version.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create version: %w", err)
	}

	return nil
}

// Get retrieves a version by ID.
func (r *versionRepository) Get(ctx context.Context, id uuid.UUID) (*models.ProjectVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM forge_project_versions WHERE id = $1`

	version, err := scanVersion(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get version: %w", err)
	}

	return version, nil
}

// ListByProject returns all versions for a project, newest first.
func (r *versionRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM forge_project_versions
		WHERE project_id = $1
		ORDER BY version_number DESC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	var versions []*models.ProjectVersion
	for rows.Next() {
		version, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate versions: %w", err)
	}

	return versions, nil
}

// Latest returns the version with the highest number for a project.
func (r *versionRepository) Latest(ctx context.Context, projectID uuid.UUID) (*models.ProjectVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM forge_project_versions
		WHERE project_id = $1
		ORDER BY version_number DESC
		LIMIT 1`

	version, err := scanVersion(r.db.QueryRow(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest version: %w", err)
	}

	return version, nil
}

// MaxVersionNumber returns the highest version number, or 0 with no versions.
func (r *versionRepository) MaxVersionNumber(ctx context.Context, projectID uuid.UUID) (int, error) {
	var max int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(version_number), 0) FROM forge_project_versions WHERE project_id = $1`,
		projectID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to get max version number: %w", err)
	}

	return max, nil
}

// Update overwrites prompt and code of an existing version.
func (r *versionRepository) Update(ctx context.Context, id uuid.UUID, prompt, code string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE forge_project_versions SET prompt = $2, code = $3 WHERE id = $1`,
		id, prompt, code,
	)
	if err != nil {
		return fmt.Errorf("failed to update version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanVersion(row pgx.Row) (*models.ProjectVersion, error) {
	var version models.ProjectVersion
	err := row.Scan(
		&version.ID,
		&version.ProjectID,
		&version.VersionNumber,
		&version.Prompt,
		&version.Code,
		&version.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &version, nil
}
