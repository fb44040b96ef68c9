package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectVersion is one immutable snapshot in a project's version history.
// VersionNumber starts at 1 and increases by exactly 1 per accepted change;
// the database enforces uniqueness of (project_id, version_number).
type ProjectVersion struct {
	ID            uuid.UUID `json:"id"`
	ProjectID     uuid.UUID `json:"project_id"`
	VersionNumber int       `json:"version_number"`
	Prompt        string    `json:"prompt"`
	Code          string    `json:"code"`
	CreatedAt     time.Time `json:"created_at"`
}
