// ABOUTME: Tests for the open type registry
// ABOUTME: Covers first-seen recording, counting, and corrupt-file recovery
package registry

import (
	"os"
	"testing"

	"github.com/recallhq/recall/internal/config"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("RECALL_DATA_DIR", dir)
	cfg, err := config.Load(dir)
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return New(cfg)
}

func TestRecordNewAndRepeatTypes(t *testing.T) {
	r := testRegistry(t)
	for _, typ := range []string{"fact", "fact", "decision", "fact"} {
		if err := r.Record(typ); err != nil {
			t.Fatalf("Record(%q) error = %v", typ, err)
		}
	}
	all, err := r.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if all["fact"].Count != 3 {
		t.Errorf("fact count = %d, want 3", all["fact"].Count)
	}
	if all["decision"].Count != 1 {
		t.Errorf("decision count = %d, want 1", all["decision"].Count)
	}
	if all["fact"].FirstSeen == "" {
		t.Error("fact has no first_seen timestamp")
	}
}

func TestKnownSorted(t *testing.T) {
	r := testRegistry(t)
	for _, typ := range []string{"warning", "audit", "fact"} {
		if err := r.Record(typ); err != nil {
			t.Fatal(err)
		}
	}
	names, err := r.Known()
	if err != nil {
		t.Fatalf("Known() error = %v", err)
	}
	want := []string{"audit", "fact", "warning"}
	if len(names) != len(want) {
		t.Fatalf("Known() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Known()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestRecordEmptyTypeIsNoop(t *testing.T) {
	r := testRegistry(t)
	if err := r.Record(""); err != nil {
		t.Fatalf("Record(\"\") error = %v", err)
	}
	names, err := r.Known()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 0 {
		t.Errorf("Known() = %v after empty record, want empty", names)
	}
}

func TestCorruptRegistryRecovers(t *testing.T) {
	r := testRegistry(t)
	if err := os.WriteFile(r.cfg.TypesPath(), []byte("{not valid json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.Record("fact"); err != nil {
		t.Fatalf("Record() error = %v after corrupt file", err)
	}
	all, err := r.All()
	if err != nil {
		t.Fatal(err)
	}
	if all["fact"].Count != 1 {
		t.Errorf("fact count = %d after recovery, want 1", all["fact"].Count)
	}
}
