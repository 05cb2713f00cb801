package storage

import (
	"time"

	"github.com/ppiankov/scanfix/internal/models"
)

// SnapshotInfo identifies a cached scan snapshot.
type SnapshotInfo struct {
	ScanID    string
	FetchedAt time.Time
}

// Storage defines the interface for caching finished scans
type Storage interface {
	// SaveSnapshot stores a completed scan with its vulnerabilities and file outcomes
	SaveSnapshot(snapshot *models.ScanSnapshot) error

	// LoadSnapshot loads the cached snapshot of a scan
	LoadSnapshot(scanID string) (*models.ScanSnapshot, error)

	// ListSnapshots returns cached snapshots, oldest first
	ListSnapshots() ([]SnapshotInfo, error)

	// DeleteSnapshot removes a cached snapshot
	DeleteSnapshot(scanID string) error
}
