package checkpoint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckpointManager(t *testing.T) {
	tempDir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tempDir)

	source := "jobs.txt"
	digest := Digest([][]string{{"echo", "a"}, {"echo", "b"}})

	t.Run("CreateAndLoad", func(t *testing.T) {
		mgr, err := NewManager(source, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create(source, digest, 2)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if cp.Version != Version {
			t.Errorf("Expected version %d, got %d", Version, cp.Version)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.Source != source || loaded.Digest != digest || loaded.Total != 2 {
			t.Errorf("Loaded checkpoint does not match: %+v", loaded)
		}
	})

	t.Run("RecordSuccess", func(t *testing.T) {
		mgr, err := NewManager(source, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create(source, digest, 2)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}

		if err := mgr.RecordSuccess(cp, 1, "echo a"); err != nil {
			t.Fatalf("Failed to record success: %v", err)
		}
		if err := mgr.RecordFailure(cp); err != nil {
			t.Fatalf("Failed to record failure: %v", err)
		}

		loaded, err := mgr.Load()
		if err != nil {
			t.Fatalf("Failed to load checkpoint: %v", err)
		}
		if !loaded.IsCompleted(1) {
			t.Error("Expected job 1 to be completed")
		}
		if loaded.IsCompleted(2) {
			t.Error("Expected job 2 to not be completed")
		}
		if loaded.Failed != 1 {
			t.Errorf("Expected 1 failure, got %d", loaded.Failed)
		}
	})

	t.Run("ResumeSameInput", func(t *testing.T) {
		mgr, err := NewManager(source, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create(source, digest, 2)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if err := mgr.RecordSuccess(cp, 2, "echo b"); err != nil {
			t.Fatalf("Failed to record success: %v", err)
		}

		resumed, err := mgr.Resume(source, digest, 2)
		if err != nil {
			t.Fatalf("Failed to resume: %v", err)
		}
		if !resumed.IsCompleted(2) {
			t.Error("Expected resumed checkpoint to keep job 2")
		}
	})

	t.Run("ResumeChangedInput", func(t *testing.T) {
		mgr, err := NewManager(source, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		cp, err := mgr.Create(source, digest, 2)
		if err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if err := mgr.RecordSuccess(cp, 1, "echo a"); err != nil {
			t.Fatalf("Failed to record success: %v", err)
		}

		other := Digest([][]string{{"echo", "c"}})
		resumed, err := mgr.Resume(source, other, 1)
		if err != nil {
			t.Fatalf("Failed to resume: %v", err)
		}
		if resumed.IsCompleted(1) {
			t.Error("Expected a fresh checkpoint for a changed job list")
		}
		if _, err := os.Stat(mgr.Path() + ".backup"); err != nil {
			t.Errorf("Expected the stale checkpoint to be backed up: %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		mgr, err := NewManager(source, nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}

		if _, err := mgr.Create(source, digest, 2); err != nil {
			t.Fatalf("Failed to create checkpoint: %v", err)
		}
		if !mgr.Exists() {
			t.Error("Expected checkpoint to exist")
		}

		if err := mgr.Delete(); err != nil {
			t.Fatalf("Failed to delete checkpoint: %v", err)
		}
		if mgr.Exists() {
			t.Error("Expected checkpoint to not exist after deletion")
		}

		loaded, err := mgr.Load()
		if err != nil || loaded != nil {
			t.Errorf("Expected nil, nil after deletion, got %v, %v", loaded, err)
		}
	})

	t.Run("Location", func(t *testing.T) {
		mgr, err := NewManager("dir/My Jobs.txt", nil)
		if err != nil {
			t.Fatalf("Failed to create manager: %v", err)
		}
		if !strings.HasPrefix(mgr.Path(), filepath.Join(tempDir, "retrying", "checkpoints")) {
			t.Errorf("Unexpected checkpoint path %s", mgr.Path())
		}
		if strings.Contains(filepath.Base(mgr.Path()), " ") {
			t.Errorf("Expected a sanitized file name, got %s", filepath.Base(mgr.Path()))
		}
	})
}

func TestNewManagerAt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cp.json")
	mgr := NewManagerAt(path, nil)

	if _, err := mgr.Create("stdin", "x", 0); err != nil {
		t.Fatalf("Failed to create checkpoint: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected checkpoint at %s: %v", path, err)
	}

	info, err := mgr.GetCheckpointInfo()
	if err != nil {
		t.Fatalf("Failed to get info: %v", err)
	}
	if info["source"] != "stdin" {
		t.Errorf("Expected source stdin, got %v", info["source"])
	}
}

func TestDigest(t *testing.T) {
	a := Digest([][]string{{"echo", "a b"}})
	b := Digest([][]string{{"echo", "a", "b"}})
	if a == b {
		t.Error("Expected argument boundaries to change the digest")
	}
	if a != Digest([][]string{{"echo", "a b"}}) {
		t.Error("Expected the digest to be stable")
	}
}

func TestGetDataDirectory(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	dir, err := getDataDirectory()
	if err != nil {
		t.Fatalf("Failed to get data directory: %v", err)
	}
	if dir == "" {
		t.Error("Data directory is empty")
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("Expected data directory to exist: %v", err)
	}
}
