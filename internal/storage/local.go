package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/scanfix/internal/api"
	"github.com/ppiankov/scanfix/internal/models"
)

// ErrNotFound is returned when no snapshot exists for a scan.
var ErrNotFound = errors.New("snapshot not found")

const snapshotSuffix = ".json"

// LocalStorage implements Storage interface using local filesystem
type LocalStorage struct {
	baseDir string
	now     func() time.Time
}

// NewLocal creates a new local storage instance
func NewLocal(baseDir string) *LocalStorage {
	return &LocalStorage{
		baseDir: baseDir,
		now:     time.Now,
	}
}

// SaveSnapshot writes a scan snapshot to <base>/scans/<scan id>.json
func (s *LocalStorage) SaveSnapshot(snapshot *models.ScanSnapshot) error {
	if snapshot == nil {
		return fmt.Errorf("snapshot is nil")
	}
	if err := api.ValidateID("scan", snapshot.Scan.ID); err != nil {
		return err
	}
	if !snapshot.Scan.Status.IsTerminal() {
		return fmt.Errorf("scan %s is still %s", snapshot.Scan.ID, snapshot.Scan.Status)
	}

	if err := s.EnsureDirectoryExists(); err != nil {
		return fmt.Errorf("failed to create scans directory: %w", err)
	}

	if snapshot.FetchedAt.IsZero() {
		snapshot.FetchedAt = s.now().UTC()
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// Write through a temp file so a crash never leaves a torn snapshot
	path := s.snapshotPath(snapshot.Scan.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}

	return nil
}

// LoadSnapshot loads the cached snapshot of a scan
func (s *LocalStorage) LoadSnapshot(scanID string) (*models.ScanSnapshot, error) {
	if err := api.ValidateID("scan", scanID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.snapshotPath(scanID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: scan %s", ErrNotFound, scanID)
		}
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var snapshot models.ScanSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// ListSnapshots returns all cached snapshots sorted by fetch time
func (s *LocalStorage) ListSnapshots() ([]SnapshotInfo, error) {
	dir := s.scansDir()

	// Check if directory exists
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []SnapshotInfo{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scans directory: %w", err)
	}

	infos := make([]SnapshotInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), snapshotSuffix) {
			continue
		}

		scanID := strings.TrimSuffix(entry.Name(), snapshotSuffix)
		snapshot, err := s.LoadSnapshot(scanID)
		if err != nil {
			// Skip unreadable snapshots but continue with others
			continue
		}
		infos = append(infos, SnapshotInfo{ScanID: scanID, FetchedAt: snapshot.FetchedAt})
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].FetchedAt.Equal(infos[j].FetchedAt) {
			return infos[i].FetchedAt.Before(infos[j].FetchedAt)
		}
		return infos[i].ScanID < infos[j].ScanID
	})

	return infos, nil
}

// DeleteSnapshot removes a cached snapshot. Deleting a missing snapshot is not an error.
func (s *LocalStorage) DeleteSnapshot(scanID string) error {
	if err := api.ValidateID("scan", scanID); err != nil {
		return err
	}
	if err := os.Remove(s.snapshotPath(scanID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	return nil
}

func (s *LocalStorage) scansDir() string {
	return filepath.Join(s.baseDir, "scans")
}

func (s *LocalStorage) snapshotPath(scanID string) string {
	return filepath.Join(s.scansDir(), scanID+snapshotSuffix)
}

// GetStoragePath returns the full path to the storage directory
func (s *LocalStorage) GetStoragePath() string {
	return s.baseDir
}

// EnsureDirectoryExists creates the storage directory if it doesn't exist
func (s *LocalStorage) EnsureDirectoryExists() error {
	return os.MkdirAll(s.scansDir(), 0755)
}
