package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsWhenFilesMissing(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "none.txt"), filepath.Join(dir, "none2.txt"), nil)
	if !strings.Contains(store.Traffic(), "traffic controller") {
		t.Fatalf("traffic default missing: %q", store.Traffic()[:40])
	}
	if !strings.Contains(store.Hub(), "Hub") {
		t.Fatal("hub default missing")
	}
}

func TestLoadsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt_unified.txt")
	if err := os.WriteFile(path, []byte("custom traffic prompt\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	store := NewStore(path, "", nil)
	if store.Traffic() != "custom traffic prompt" {
		t.Fatalf("got %q", store.Traffic())
	}
}

func TestReloadPicksUpChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt_unified.txt")
	os.WriteFile(path, []byte("first"), 0o644)
	store := NewStore(path, "", nil)

	os.WriteFile(path, []byte("second"), 0o644)
	store.maybeReload(path)
	if store.Traffic() != "second" {
		t.Fatalf("got %q", store.Traffic())
	}
}

func TestEmptyFileKeepsDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt_unified.txt")
	os.WriteFile(path, []byte("   \n"), 0o644)
	store := NewStore(path, "", nil)
	if !strings.Contains(store.Traffic(), "traffic controller") {
		t.Fatal("empty file should fall back to default")
	}
}
