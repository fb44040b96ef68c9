// Package models contains domain types for forge-engine.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Project represents a generated application and its latest code.
// Code is a denormalized copy of the newest version's code so the IDE can
// load a project without joining against the version history.
type Project struct {
	ID                     uuid.UUID `json:"id"`
	Title                  string    `json:"title"`
	Description            string    `json:"description"`
	Config                 JSONBMap  `json:"config"`
	Code                   string    `json:"code"`
	CreatedAt              time.Time `json:"created_at"`
	LatestVersionCreatedAt time.Time `json:"latest_version_created_at"`
}

// JSONBMap is a map type that handles PostgreSQL JSONB serialization.
type JSONBMap map[string]interface{}

// Value implements driver.Valuer for database serialization.
func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner for database deserialization.
func (j *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into JSONBMap", value)
	}

	return json.Unmarshal(bytes, j)
}
