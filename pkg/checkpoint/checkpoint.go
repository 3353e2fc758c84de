package checkpoint

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"hoopscraper/pkg/logger"
	"hoopscraper/pkg/table"
)

// Version is the current checkpoint file format
const Version = 1

// Checkpoint is the saved state of a fetch run
type Checkpoint struct {
	RunID   string `json:"run_id"`
	Dataset string `json:"dataset"`
	// Scope identifies the request filters, e.g. "2022-23/Regular Season/FGA"
	Scope         string            `json:"scope"`
	Completed     map[string]Entry  `json:"completed"`
	Failed        map[string]string `json:"failed"`
	TotalSubjects int               `json:"total_subjects"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	Version       int               `json:"version"`
}

// Entry is one subject whose record-set was fetched successfully
type Entry struct {
	Table     *table.Table `json:"table"`
	Attempts  int          `json:"attempts"`
	FetchedAt time.Time    `json:"fetched_at"`
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the checkpoint file name for a dataset and scope
func FileName(dataset, scope string) string {
	name := dataset
	if scope != "" {
		name += "_" + scope
	}
	name = strings.Trim(unsafeChars.ReplaceAllString(name, "_"), "_")
	return name + ".checkpoint.json"
}

// NewManager creates a checkpoint manager. An empty dir selects the
// platform data directory.
func NewManager(dir, dataset, scope string) (*Manager, error) {
	if dir == "" {
		dataDir, err := getDataDirectory()
		if err != nil {
			return nil, fmt.Errorf("failed to get data directory: %w", err)
		}
		dir = filepath.Join(dataDir, "checkpoints")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		checkpointPath: filepath.Join(dir, FileName(dataset, scope)),
		logger:         logger.GetLogger(),
	}, nil
}

// SetLogger replaces the manager's logger
func (m *Manager) SetLogger(l logger.Logger) {
	m.logger = l
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Create creates and saves a new checkpoint
func (m *Manager) Create(runID, dataset, scope string, totalSubjects int) (*Checkpoint, error) {
	now := time.Now()
	cp := &Checkpoint{
		RunID:         runID,
		Dataset:       dataset,
		Scope:         scope,
		Completed:     make(map[string]Entry),
		Failed:        make(map[string]string),
		TotalSubjects: totalSubjects,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       Version,
	}

	if err := m.Save(cp); err != nil {
		return nil, fmt.Errorf("failed to save initial checkpoint: %w", err)
	}

	m.logger.InfoWithFields("Checkpoint created", map[string]interface{}{
		"run_id": runID,
		"path":   m.checkpointPath,
	})

	return cp, nil
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

	dec := json.NewDecoder(file)
	dec.UseNumber()

	var cp Checkpoint
	if err := dec.Decode(&cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != Version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}
	if cp.Completed == nil {
		cp.Completed = make(map[string]Entry)
	}
	if cp.Failed == nil {
		cp.Failed = make(map[string]string)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":     cp.RunID,
		"completed":  len(cp.Completed),
		"total":      cp.TotalSubjects,
		"updated_at": cp.UpdatedAt,
	})

	return &cp, nil
}

// Save saves the checkpoint to disk atomically
func (m *Manager) Save(cp *Checkpoint) error {
	cp.UpdatedAt = time.Now()

	tempPath := m.checkpointPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if err := json.NewEncoder(file).Encode(cp); err != nil {
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
		"run_id":    cp.RunID,
		"completed": len(cp.Completed),
		"failed":    len(cp.Failed),
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// Info returns a summary of the saved checkpoint, or nil when none exists
func (m *Manager) Info() (map[string]interface{}, error) {
	cp, err := m.Load()
	if err != nil {
		return nil, err
	}
	if cp == nil {
		return nil, nil
	}

	rows := 0
	for _, e := range cp.Completed {
		rows += e.Table.Len()
	}

	return map[string]interface{}{
		"run_id":     cp.RunID,
		"dataset":    cp.Dataset,
		"scope":      cp.Scope,
		"completed":  len(cp.Completed),
		"failed":     len(cp.Failed),
		"total":      cp.TotalSubjects,
		"rows":       rows,
		"created_at": cp.CreatedAt,
		"updated_at": cp.UpdatedAt,
		"age":        time.Since(cp.UpdatedAt),
	}, nil
}

// Backup copies the current checkpoint next to itself with a .backup suffix
func (m *Manager) Backup() error {
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

// Tracker records fetch outcomes into a checkpoint and saves it on Flush.
// It satisfies the fetch loop's Store interface.
type Tracker struct {
	mu      sync.Mutex
	manager *Manager
	cp      *Checkpoint
	dirty   bool
}

// NewTracker binds cp to the manager that persists it
func NewTracker(m *Manager, cp *Checkpoint) *Tracker {
	return &Tracker{manager: m, cp: cp}
}

// Checkpoint returns the tracked checkpoint
func (t *Tracker) Checkpoint() *Checkpoint {
	return t.cp
}

// Completed returns the saved record-set for a subject fetched by an
// earlier run.
func (t *Tracker) Completed(subjectID string) (*table.Table, int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.cp.Completed[subjectID]
	if !ok || e.Table == nil {
		return nil, 0, false
	}
	return e.Table, e.Attempts, true
}

// RecordSuccess stores a fetched record-set
func (t *Tracker) RecordSuccess(subjectID string, tbl *table.Table, attempts int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cp.Completed[subjectID] = Entry{Table: tbl, Attempts: attempts, FetchedAt: time.Now()}
	delete(t.cp.Failed, subjectID)
	t.dirty = true
}

// RecordFailure notes a subject that failed. Failed subjects are fetched
// again on resume.
func (t *Tracker) RecordFailure(subjectID string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cp.Failed[subjectID] = err.Error()
	t.dirty = true
}

// Flush saves the checkpoint if anything changed since the last save
func (t *Tracker) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.dirty {
		return nil
	}
	if err := t.manager.Save(t.cp); err != nil {
		return err
	}
	t.dirty = false
	return nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "hoopscraper")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "hoopscraper")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "hoopscraper")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "hoopscraper")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	return dataDir, nil
}
