package models

import "time"

// Setting is a generic key/value row used for small pieces of engine state
// that survive restarts, such as the persisted default generation model.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Well-known setting keys.
const (
	SettingDefaultModel = "generation.default_model"
	SettingAPIKey       = "generation.api_key"
)
