package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Message("error.invalid_room_id"); got != "Invalid room ID format" {
		t.Fatalf("Message = %q", got)
	}
	if got := c.Message("error.no_such_key"); got != "error.no_such_key" {
		t.Fatalf("unknown key = %q, want the key itself", got)
	}
}

func TestRenderTemplate(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("error.unknown_event", map[string]string{"Event": "bogus"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Unknown event: bogus" {
		t.Fatalf("Render = %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	override := []byte("error:\n  room_not_joined: \"join a room first\"\n")
	if err := os.WriteFile(filepath.Join(dir, "override.yaml"), override, 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Message("error.room_not_joined"); got != "join a room first" {
		t.Fatalf("override not applied: %q", got)
	}
	// untouched keys keep their defaults
	if got := c.Message("error.invalid_room_id"); got != "Invalid room ID format" {
		t.Fatalf("default lost: %q", got)
	}
}
