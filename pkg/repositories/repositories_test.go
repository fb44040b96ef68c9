package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/appforge-inc/forge-engine/pkg/apperrors"
	"github.com/appforge-inc/forge-engine/pkg/models"
	"github.com/appforge-inc/forge-engine/pkg/testhelpers"
)

func createTestProject(t *testing.T, repo ProjectRepository) *models.Project {
	t.Helper()
	project := &models.Project{
		Title:  "Test Project",
		Config: models.JSONBMap{"app_type": "todo"},
		Code:   "<html></html>",
	}
	if err := repo.Create(context.Background(), project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	return project
}

func TestProjectRepositoryCRUD(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	repo := NewProjectRepository(db.DB)
	ctx := context.Background()

	project := createTestProject(t, repo)

	got, err := repo.Get(ctx, project.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Title != "Test Project" || got.Code != "<html></html>" {
		t.Errorf("Get() = %+v", got)
	}
	if got.Config["app_type"] != "todo" {
		t.Errorf("Config = %v", got.Config)
	}

	got.Title = "Renamed"
	got.Description = "now with description"
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = repo.Get(ctx, project.ID)
	if got.Title != "Renamed" || got.Description != "now with description" {
		t.Errorf("after Update() = %+v", got)
	}

	if err := repo.Delete(ctx, project.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, project.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestProjectRepositoryGetMissing(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	repo := NewProjectRepository(db.DB)

	_, err := repo.Get(context.Background(), uuid.New())
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestProjectRepositoryCreateIdempotentOnID(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	repo := NewProjectRepository(db.DB)
	ctx := context.Background()

	project := createTestProject(t, repo)

	// A second insert with the same id must not error and must not clobber.
	dup := &models.Project{ID: project.ID, Title: "Impostor", Config: models.JSONBMap{}}
	if err := repo.Create(ctx, dup); err != nil {
		t.Fatalf("duplicate Create() error = %v", err)
	}

	got, _ := repo.Get(ctx, project.ID)
	if got.Title != "Test Project" {
		t.Errorf("Title = %q, first writer should win", got.Title)
	}
}

func TestProjectRepositoryUpdateCode(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	repo := NewProjectRepository(db.DB)
	ctx := context.Background()

	project := createTestProject(t, repo)
	at := time.Now().Add(time.Minute).Truncate(time.Millisecond)

	if err := repo.UpdateCode(ctx, project.ID, "<html>v2</html>", at); err != nil {
		t.Fatalf("UpdateCode() error = %v", err)
	}

	got, _ := repo.Get(ctx, project.ID)
	if got.Code != "<html>v2</html>" {
		t.Errorf("Code = %q", got.Code)
	}
	if !got.LatestVersionCreatedAt.Equal(at) {
		t.Errorf("LatestVersionCreatedAt = %v, want %v", got.LatestVersionCreatedAt, at)
	}

	if err := repo.UpdateCode(ctx, uuid.New(), "x", at); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("UpdateCode() on missing project error = %v, want ErrNotFound", err)
	}
}

func TestVersionRepositoryCreateAndList(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	projects := NewProjectRepository(db.DB)
	versions := NewVersionRepository(db.DB)
	ctx := context.Background()

	project := createTestProject(t, projects)

	for i := 1; i <= 3; i++ {
		v := &models.ProjectVersion{
			ProjectID:     project.ID,
			VersionNumber: i,
			Prompt:        "prompt",
			Code:          "<html></html>",
		}
		if err := versions.Create(ctx, v); err != nil {
			t.Fatalf("Create(v%d) error = %v", i, err)
		}
	}

	list, err := versions.ListByProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("ListByProject() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d versions, want 3", len(list))
	}
	for i, v := range list {
		if want := 3 - i; v.VersionNumber != want {
			t.Errorf("list[%d].VersionNumber = %d, want %d (newest first)", i, v.VersionNumber, want)
		}
	}

	latest, err := versions.Latest(ctx, project.ID)
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.VersionNumber != 3 {
		t.Errorf("Latest().VersionNumber = %d, want 3", latest.VersionNumber)
	}

	max, err := versions.MaxVersionNumber(ctx, project.ID)
	if err != nil || max != 3 {
		t.Errorf("MaxVersionNumber() = %d, %v, want 3", max, err)
	}
}

func TestVersionRepositoryDuplicateNumberConflicts(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	projects := NewProjectRepository(db.DB)
	versions := NewVersionRepository(db.DB)
	ctx := context.Background()

	project := createTestProject(t, projects)

	v := &models.ProjectVersion{ProjectID: project.ID, VersionNumber: 1, Prompt: "p"}
	if err := versions.Create(ctx, v); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	dup := &models.ProjectVersion{ProjectID: project.ID, VersionNumber: 1, Prompt: "p"}
	if err := versions.Create(ctx, dup); !errors.Is(err, apperrors.ErrConflict) {
		t.Errorf("duplicate Create() error = %v, want ErrConflict", err)
	}
}

func TestVersionRepositoryEmptyProject(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	versions := NewVersionRepository(db.DB)
	ctx := context.Background()
	missing := uuid.New()

	if _, err := versions.Latest(ctx, missing); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Latest() error = %v, want ErrNotFound", err)
	}
	max, err := versions.MaxVersionNumber(ctx, missing)
	if err != nil || max != 0 {
		t.Errorf("MaxVersionNumber() = %d, %v, want 0", max, err)
	}
	list, err := versions.ListByProject(ctx, missing)
	if err != nil || len(list) != 0 {
		t.Errorf("ListByProject() = %v, %v, want empty", list, err)
	}
}

func TestVersionRepositoryUpdate(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	projects := NewProjectRepository(db.DB)
	versions := NewVersionRepository(db.DB)
	ctx := context.Background()

	project := createTestProject(t, projects)
	v := &models.ProjectVersion{ProjectID: project.ID, VersionNumber: 1, Prompt: "old", Code: "<html>old</html>"}
	if err := versions.Create(ctx, v); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := versions.Update(ctx, v.ID, "new", "<html>new</html>"); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := versions.Get(ctx, v.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Prompt != "new" || got.Code != "<html>new</html>" {
		t.Errorf("after Update() = %+v", got)
	}

	if err := versions.Update(ctx, uuid.New(), "p", "c"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Update() on missing version error = %v, want ErrNotFound", err)
	}
}

func TestVersionsCascadeOnProjectDelete(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	projects := NewProjectRepository(db.DB)
	versions := NewVersionRepository(db.DB)
	ctx := context.Background()

	project := createTestProject(t, projects)
	v := &models.ProjectVersion{ProjectID: project.ID, VersionNumber: 1, Prompt: "p"}
	if err := versions.Create(ctx, v); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := projects.Delete(ctx, project.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := versions.Get(ctx, v.ID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("version survived project deletion, Get() error = %v", err)
	}
}

func TestSettingsRepositoryUpsert(t *testing.T) {
	db := testhelpers.GetEngineDB(t)
	repo := NewSettingsRepository(db.DB)
	ctx := context.Background()

	key := "test." + uuid.New().String()

	if _, err := repo.Get(ctx, key); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Get() on missing key error = %v, want ErrNotFound", err)
	}

	if err := repo.Set(ctx, key, "first"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, _ := repo.Get(ctx, key); got != "first" {
		t.Errorf("Get() = %q, want first", got)
	}

	if err := repo.Set(ctx, key, "second"); err != nil {
		t.Fatalf("Set() upsert error = %v", err)
	}
	if got, _ := repo.Get(ctx, key); got != "second" {
		t.Errorf("Get() after upsert = %q, want second", got)
	}
}
