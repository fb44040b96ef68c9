package models

import (
	"testing"
)

func TestCacheKeyStableUnderOrderAndWhitespace(t *testing.T) {
	a := &AppConfig{
		Name:     "My App",
		Features: []string{"charts", "auth", "export"},
	}
	b := &AppConfig{
		Name:     "  My App  ",
		Features: []string{"export", "charts", "auth"},
	}

	if a.CacheKey() != b.CacheKey() {
		t.Error("semantically identical configs produced different cache keys")
	}
}

func TestCacheKeyDistinguishesConfigs(t *testing.T) {
	a := &AppConfig{Name: "App", Theme: "dark"}
	b := &AppConfig{Name: "App", Theme: "light"}

	if a.CacheKey() == b.CacheKey() {
		t.Error("different configs produced the same cache key")
	}
}

func TestCacheKeyFormat(t *testing.T) {
	key := (&AppConfig{Name: "App"}).CacheKey()
	if len(key) != 64 {
		t.Errorf("CacheKey() length = %d, want 64 (sha256 hex)", len(key))
	}
}

func TestCanonicalDoesNotMutateInput(t *testing.T) {
	cfg := &AppConfig{Features: []string{"z", "a"}}
	_ = cfg.Canonical()
	if cfg.Features[0] != "z" {
		t.Error("Canonical() mutated the original features slice")
	}
}

func TestToMap(t *testing.T) {
	cfg := &AppConfig{Name: "App", AppType: "todo"}
	m := cfg.ToMap()
	if m["name"] != "App" {
		t.Errorf("ToMap()[name] = %v, want App", m["name"])
	}
	if m["app_type"] != "todo" {
		t.Errorf("ToMap()[app_type] = %v, want todo", m["app_type"])
	}
}
