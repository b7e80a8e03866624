package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

func cpPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".checkpoint.json")
}

func TestSaveLoadRoundtrip(t *testing.T) {
	path := cpPath(t)

	c := New(path, "demo_project", "run-demo")
	c.MarkInProgress("/in/a.mp4")
	c.MarkClipDone("/in/a.mp4", 0)
	c.MarkClipDone("/in/a.mp4", 2)
	c.MarkCompleted("/in/b.mp4")
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.RunID != c.RunID {
		t.Errorf("run id: got %q, want %q", loaded.RunID, c.RunID)
	}
	if loaded.Project != "demo_project" {
		t.Errorf("project: got %q", loaded.Project)
	}
	if !loaded.IsClipDone("/in/a.mp4", 0) || !loaded.IsClipDone("/in/a.mp4", 2) {
		t.Error("done clips lost in roundtrip")
	}
	if loaded.IsClipDone("/in/a.mp4", 1) {
		t.Error("clip 1 reported done")
	}
	if !loaded.IsCompleted("/in/b.mp4") {
		t.Error("completed video lost in roundtrip")
	}
	if loaded.IsCompleted("/in/a.mp4") {
		t.Error("in-progress video reported completed")
	}
}

func TestSave_LeavesNoTempFile(t *testing.T) {
	path := cpPath(t)
	c := New(path, "p", "run-1")
	if err := c.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
	if !Exists(path) {
		t.Error("checkpoint not written")
	}
}

func TestLoad_CorruptJSON(t *testing.T) {
	path := cpPath(t)
	if err := os.WriteFile(path, []byte("{ truncated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrCorrupt) {
		t.Errorf("got %v, want ErrCorrupt", err)
	}
}

func TestLoad_MissingRunID(t *testing.T) {
	path := cpPath(t)
	if err := os.WriteFile(path, []byte(`{"project":"p","videos":{}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrCorrupt) {
		t.Errorf("got %v, want ErrCorrupt", err)
	}
}

func TestLoad_UnknownStatus(t *testing.T) {
	path := cpPath(t)
	doc := `{"run_id":"r1","project":"p","videos":{"/a.mp4":{"status":"exploded","done_clip_indices":[]}}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrCorrupt) {
		t.Errorf("got %v, want ErrCorrupt", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); !errors.Is(err, ErrCorrupt) {
		t.Errorf("got %v, want ErrCorrupt", err)
	}
}

func TestMarkClipDone_DedupesAndSorts(t *testing.T) {
	c := New(cpPath(t), "p", "run-1")
	for _, i := range []int{3, 1, 3, 0, 1} {
		c.MarkClipDone("/a.mp4", i)
	}
	got := c.Videos["/a.mp4"].DoneClips
	want := []int{0, 1, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DoneClips[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestArchive(t *testing.T) {
	path := cpPath(t)
	c := New(path, "p", "run-1")
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}
	if err := c.Archive(); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if Exists(path) {
		t.Error("checkpoint still present after archive")
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range entries {
		if strings.Contains(e.Name(), ".done-") {
			found = true
		}
	}
	if !found {
		t.Error("archived checkpoint not found")
	}
}

func TestDiscard(t *testing.T) {
	path := cpPath(t)
	c := New(path, "p", "run-1")
	if err := c.Save(); err != nil {
		t.Fatal(err)
	}
	Discard(path)
	if Exists(path) {
		t.Error("checkpoint still present after discard")
	}
	// Discarding an absent file is a no-op.
	Discard(path)
}

// --- Lock ---

func TestAcquireLock_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".checkpoint.json.lock")

	l1, err := AcquireLock(path, "run-1")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	if _, err := AcquireLock(path, "run-2"); !errors.Is(err, ErrLocked) {
		t.Errorf("second acquire: got %v, want ErrLocked", err)
	}

	if err := l1.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	l2, err := AcquireLock(path, "run-2")
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	l2.Release()
}

func TestAcquireLock_ReportsOwner(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	l, err := AcquireLock(path, "owner-run")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Release()

	_, err = AcquireLock(path, "other")
	if err == nil || !strings.Contains(err.Error(), "owner-run") {
		t.Errorf("lock error should name the owner, got %v", err)
	}
}
