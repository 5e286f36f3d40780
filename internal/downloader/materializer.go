package downloader

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/openmirror/mirror-downloader/internal/objstore"
)

// Materializer performs idempotent download of single objects to
// deterministic local paths.
type Materializer struct {
	bucket *objstore.Bucket
	log    *slog.Logger
}

// NewMaterializer returns a Materializer over the shared bucket handle.
func NewMaterializer(bucket *objstore.Bucket) *Materializer {
	return &Materializer{
		bucket: bucket,
		log:    slog.With("component", "materializer"),
	}
}

// Materialize transfers key to localPath, blocking until the transfer
// completes or fails.
//
// If the target file already exists nothing is downloaded and the
// outcome is AlreadyPresent: this keeps the whole pipeline idempotent
// under restart even before any checkpoint is consulted. Failures are
// logged with the key and cause but never propagated; a download
// failure is per-object, not per-cycle fatal. Exactly one file or zero
// files exist at localPath after the call, never a partial one.
func (m *Materializer) Materialize(ctx context.Context, key, localPath string) Outcome {
	localPath = filepath.FromSlash(localPath)

	if _, err := os.Stat(localPath); err == nil {
		m.log.Debug("file exists, skipping download", "path", localPath)
		return Outcome{Status: AlreadyPresent, Key: key, LocalPath: localPath}
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		m.log.Error("failed to create download directory",
			"key", key, "dir", filepath.Dir(localPath), "error", err)
		return Outcome{Status: Failed, Key: key}
	}

	if err := m.bucket.DownloadToFile(ctx, key, localPath); err != nil {
		m.log.Error("download failed", "key", key, "error", err)
		return Outcome{Status: Failed, Key: key}
	}

	m.log.Info("finished downloading", "key", key)
	return Outcome{Status: Downloaded, Key: key, LocalPath: localPath}
}
