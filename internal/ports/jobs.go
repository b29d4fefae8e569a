package ports

import "context"

// ScanQueue lets background workers claim queued scans.
type ScanQueue interface {
	// ClaimNextScan moves the oldest pending scan to processing and returns its
	// id. found is false when nothing is queued.
	ClaimNextScan(ctx context.Context) (scanID string, found bool, err error)
}
