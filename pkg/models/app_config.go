package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// AppConfig is the structured wizard output that drives generation.
// The engine does not interpret most of these fields; they feed prompt
// synthesis and the generation result cache key.
type AppConfig struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	AppType      string   `json:"app_type"`
	Stack        string   `json:"stack"`
	CSSFramework string   `json:"css_framework"`
	Features     []string `json:"features"`
	Integrations []string `json:"integrations"`
	Theme        string   `json:"theme"`
	Layout       string   `json:"layout"`
}

// Canonical returns a deterministic JSON encoding of the config: list fields
// are sorted and whitespace is normalized so that semantically identical
// configs produce identical bytes.
func (c *AppConfig) Canonical() []byte {
	norm := *c
	norm.Features = sortedCopy(c.Features)
	norm.Integrations = sortedCopy(c.Integrations)
	norm.Name = strings.TrimSpace(c.Name)
	norm.Description = strings.TrimSpace(c.Description)

	// Marshal of a struct with sorted slices is deterministic.
	b, err := json.Marshal(&norm)
	if err != nil {
		// AppConfig contains only strings and string slices; Marshal cannot fail.
		panic("marshal app config: " + err.Error())
	}
	return b
}

// CacheKey returns the cache key for this config: the SHA-256 of its
// canonical encoding, hex encoded.
func (c *AppConfig) CacheKey() string {
	sum := sha256.Sum256(c.Canonical())
	return hex.EncodeToString(sum[:])
}

// ToMap converts the config to a JSONBMap for persistence on a project row.
func (c *AppConfig) ToMap() JSONBMap {
	var m JSONBMap
	b, _ := json.Marshal(c)
	_ = json.Unmarshal(b, &m)
	return m
}

func sortedCopy(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
