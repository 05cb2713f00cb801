package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/scanfix/internal/api"
	"github.com/ppiankov/scanfix/internal/apiclient"
	"github.com/ppiankov/scanfix/internal/models"
	"github.com/ppiankov/scanfix/internal/storage"
)

// resolveScanID returns scanID, or the latest scan of the configured
// repository when scanID is empty. An empty result means no scan exists.
func resolveScanID(ctx context.Context, client *apiclient.Client, scanID string) (string, error) {
	if scanID != "" {
		if err := api.ValidateID("scan", scanID); err != nil {
			return "", &ValidationError{Message: err.Error()}
		}
		return scanID, nil
	}

	repoID, err := requireRepository()
	if err != nil {
		return "", err
	}
	repo, err := client.GetRepository(ctx, repoID)
	if err != nil {
		return "", fmt.Errorf("failed to load repository %s: %w", repoID, err)
	}
	if repo.LatestScan == nil {
		return "", nil
	}
	logVerbose("Using latest scan %s of %s", repo.LatestScan.ID, repo.FullName)
	return repo.LatestScan.ID, nil
}

// fetchSnapshot returns the results of a scan and whether they came from
// the local cache. Completed scans are served from the cache when useCache
// is set and written back to it after a fetch. Scans that have not
// completed carry no vulnerabilities.
func fetchSnapshot(ctx context.Context, client *apiclient.Client, store storage.Storage, scanID string, useCache bool) (*models.ScanSnapshot, bool, error) {
	if useCache && store != nil {
		snap, err := store.LoadSnapshot(scanID)
		switch {
		case err == nil:
			logVerbose("Loaded scan %s from cache (%s)", scanID, snap.FetchedAt.Format("2006-01-02 15:04"))
			return snap, true, nil
		case errors.Is(err, storage.ErrNotFound):
			logDebug("scan %s not cached", scanID)
		default:
			logVerbose("Ignoring cached scan %s: %v", scanID, err)
		}
	}

	scan, err := client.GetScan(ctx, scanID)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return nil, false, &ValidationError{Message: fmt.Sprintf("scan %s not found", scanID)}
		}
		return nil, false, fmt.Errorf("failed to load scan %s: %w", scanID, err)
	}

	snap := &models.ScanSnapshot{Scan: *scan}
	if scan.Status != models.ScanCompleted {
		return snap, false, nil
	}
	if err := fillResults(ctx, client, snap); err != nil {
		return nil, false, err
	}

	if store != nil {
		if err := store.SaveSnapshot(snap); err != nil {
			logVerbose("Failed to cache scan %s: %v", scanID, err)
		} else {
			logDebug("cached scan %s", scanID)
		}
	}
	return snap, false, nil
}

// fillResults loads vulnerabilities and per-file outcomes into snap.
func fillResults(ctx context.Context, client *apiclient.Client, snap *models.ScanSnapshot) error {
	vulns, err := client.ListVulnerabilities(ctx, snap.Scan.ID)
	if err != nil {
		return fmt.Errorf("failed to load vulnerabilities: %w", err)
	}
	details, err := client.GetScanDetails(ctx, snap.Scan.ID)
	if err != nil {
		return fmt.Errorf("failed to load scan details: %w", err)
	}
	snap.Vulnerabilities = vulns
	snap.Files = details.Files
	return nil
}

// openStore returns the snapshot cache, or nil when it cannot be resolved.
func openStore() storage.Storage {
	store, err := newStore()
	if err != nil {
		logVerbose("Scan cache disabled: %v", err)
		return nil
	}
	return store
}
