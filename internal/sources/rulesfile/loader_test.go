package rulesfile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write rules file: %v", err)
	}
	return path
}

func TestLoadFullFile(t *testing.T) {
	path := writeRules(t, `
listener:
  port: 80
  protocol: HTTP
  default:
    status: 404
    body: "404: page not found"
rules:
  - priority: 10
    pattern: "/api/*"
    pool: web
  - priority: 100
    pattern: "*"
    pool: web
`)

	schema, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if schema.Listener.Port != 80 {
		t.Errorf("listener port = %d, want 80", schema.Listener.Port)
	}
	if schema.Listener.Default.Body != "404: page not found" {
		t.Errorf("default body = %q, want %q", schema.Listener.Default.Body, "404: page not found")
	}
	if len(schema.Rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(schema.Rules))
	}
	if schema.Rules[0].Pattern != "/api/*" || schema.Rules[0].Pool != "web" {
		t.Errorf("rule[0] = %+v, want /api/* -> web", schema.Rules[0])
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewLoader("/nonexistent/rules.yaml").Load()
	if err == nil {
		t.Fatal("Load() on a missing file should fail")
	}
}

func TestLoadMalformedYaml(t *testing.T) {
	path := writeRules(t, "listener: [not a mapping")
	if _, err := NewLoader(path).Load(); err == nil {
		t.Fatal("Load() on malformed yaml should fail")
	}
}

func TestMapAppliesFallbacks(t *testing.T) {
	schema := &FileSchema{
		Rules: []RuleSchema{{Priority: 100, Pattern: "*", Pool: "web"}},
	}

	table, err := NewMapper(80, []string{"web"}).Map(schema)
	if err != nil {
		t.Fatalf("Map() failed: %v", err)
	}

	if table.Listener.Port != 80 {
		t.Errorf("port = %d, want fallback 80", table.Listener.Port)
	}
	if table.Listener.Protocol != DefaultProtocol {
		t.Errorf("protocol = %q, want %q", table.Listener.Protocol, DefaultProtocol)
	}
	if table.Listener.DefaultStatus != DefaultStatus {
		t.Errorf("default status = %d, want %d", table.Listener.DefaultStatus, DefaultStatus)
	}
	if table.Listener.DefaultBody != DefaultBody {
		t.Errorf("default body = %q, want %q", table.Listener.DefaultBody, DefaultBody)
	}
}

func TestMapRejectsUnknownPool(t *testing.T) {
	schema := &FileSchema{
		Rules: []RuleSchema{{Priority: 100, Pattern: "*", Pool: "ghosts"}},
	}

	if _, err := NewMapper(80, []string{"web"}).Map(schema); err == nil {
		t.Fatal("Map() should reject rules targeting unknown pools")
	}
}

func TestMapRejectsDuplicatePriorities(t *testing.T) {
	schema := &FileSchema{
		Rules: []RuleSchema{
			{Priority: 10, Pattern: "/a/*", Pool: "web"},
			{Priority: 10, Pattern: "/b/*", Pool: "web"},
		},
	}

	if _, err := NewMapper(80, []string{"web"}).Map(schema); err == nil {
		t.Fatal("Map() should reject duplicate priorities")
	}
}

func TestLoadAndMapEndToEnd(t *testing.T) {
	path := writeRules(t, `
rules:
  - priority: 100
    pattern: "*"
    pool: web
`)

	schema, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	table, err := NewMapper(8000, []string{"web"}).Map(schema)
	if err != nil {
		t.Fatalf("Map() failed: %v", err)
	}
	if table.Listener.Port != 8000 {
		t.Errorf("port = %d, want fallback 8000", table.Listener.Port)
	}
	if _, ok := table.Match("/anything"); !ok {
		t.Error("catch-all rule should match any path")
	}
}
