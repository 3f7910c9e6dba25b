package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"retrying/pkg/logger"
)

// Version is written into every checkpoint file.
const Version = 1

// Checkpoint is the state of a batch run.
type Checkpoint struct {
	Source    string         `json:"source"`
	Digest    string         `json:"digest"`
	Completed map[int]string `json:"completed"` // job ID -> command line
	Total     int            `json:"total"`
	Failed    int            `json:"failed"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Version   int            `json:"version"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

// NewManager returns a manager for the checkpoint of source, stored in the
// platform data directory.
func NewManager(source string, log logger.Logger) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}

	checkpointsDir := filepath.Join(dataDir, "checkpoints")
	if err := os.MkdirAll(checkpointsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	sum := sha256.Sum256([]byte(absPath(source)))
	name := fmt.Sprintf("%s-%s.checkpoint.json", sanitize(filepath.Base(source)), hex.EncodeToString(sum[:4]))
	return NewManagerAt(filepath.Join(checkpointsDir, name), log), nil
}

// NewManagerAt returns a manager for an explicit checkpoint file.
func NewManagerAt(path string, log logger.Logger) *Manager {
	return &Manager{checkpointPath: path, logger: logger.Or(log)}
}

// Path returns the checkpoint file location.
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a new checkpoint
func (m *Manager) Create(source, digest string, total int) (*Checkpoint, error) {
	now := time.Now()
	checkpoint := &Checkpoint{
		Source:    source,
		Digest:    digest,
		Completed: make(map[int]string),
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   Version,
	}

	if err := m.Save(checkpoint); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"source": source,
		"path":   m.checkpointPath,
	})

	return checkpoint, nil
}

// Load loads an existing checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	file, err := os.Open(m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	if err := json.NewDecoder(file).Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if checkpoint.Completed == nil {
		checkpoint.Completed = make(map[int]string)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"source":     checkpoint.Source,
		"completed":  len(checkpoint.Completed),
		"updated_at": checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Resume loads the checkpoint if it was written for the same input, and
// otherwise starts a new one. A stale checkpoint is backed up first.
func (m *Manager) Resume(source, digest string, total int) (*Checkpoint, error) {
	existing, err := m.Load()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Digest == digest {
			return existing, nil
		}
		m.logger.WarnWithFields("Checkpoint is for a different job list, starting over", map[string]interface{}{
			"path": m.checkpointPath,
		})
		if err := m.BackupCheckpoint(); err != nil {
			return nil, err
		}
	}
	return m.Create(source, digest, total)
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = time.Now()

	if err := os.MkdirAll(filepath.Dir(m.checkpointPath), 0755); err != nil {
		return fmt.Errorf("failed to create checkpoint directory: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(checkpoint); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, m.checkpointPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"source":    checkpoint.Source,
		"completed": len(checkpoint.Completed),
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// RecordSuccess marks a job as done and saves.
func (m *Manager) RecordSuccess(checkpoint *Checkpoint, jobID int, command string) error {
	checkpoint.Completed[jobID] = command
	return m.Save(checkpoint)
}

// RecordFailure counts a job that exhausted its policy and saves.
func (m *Manager) RecordFailure(checkpoint *Checkpoint) error {
	checkpoint.Failed++
	return m.Save(checkpoint)
}

// IsCompleted reports whether the job already succeeded in an earlier run.
func (checkpoint *Checkpoint) IsCompleted(jobID int) bool {
	_, exists := checkpoint.Completed[jobID]
	return exists
}

// GetCheckpointInfo returns a summary of the checkpoint
func (m *Manager) GetCheckpointInfo() (map[string]interface{}, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return nil, err
	}
	if checkpoint == nil {
		return nil, nil
	}

	return map[string]interface{}{
		"source":     checkpoint.Source,
		"completed":  len(checkpoint.Completed),
		"total":      checkpoint.Total,
		"created_at": checkpoint.CreatedAt,
		"updated_at": checkpoint.UpdatedAt,
		"age":        time.Since(checkpoint.UpdatedAt),
	}, nil
}

// BackupCheckpoint copies the current checkpoint to a .backup file
func (m *Manager) BackupCheckpoint() error {
	if !m.Exists() {
		return nil
	}

	backupPath := m.checkpointPath + ".backup"

	src, err := os.Open(m.checkpointPath)
	if err != nil {
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}

	m.logger.Debug("Checkpoint backed up")
	return nil
}

// Digest fingerprints a job list so a checkpoint is only reused for the
// same input.
func Digest(lines [][]string) string {
	h := sha256.New()
	for _, args := range lines {
		h.Write([]byte(strings.Join(args, "\x00")))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, name)
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "retrying")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "retrying")
	default:
		// XDG_DATA_HOME if set, otherwise ~/.local/share
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "retrying")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "retrying")
		}
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
