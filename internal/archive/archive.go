// Package archive pushes cropped detection images to durable object
// storage. An Archiver uploads one crop at a time as the cropper produces
// it, off the hot path via internal/workerpool.
package archive

import (
	"context"

	"github.com/breeze-rmm/agent/internal/audit"
	"github.com/breeze-rmm/agent/internal/config"
	"github.com/breeze-rmm/agent/internal/logging"
	"github.com/breeze-rmm/agent/internal/workerpool"
)

var log = logging.L("archive")

// Backend uploads a single local file to a remote key under durable
// storage.
type Backend interface {
	Upload(ctx context.Context, localPath, key string) error
	Name() string
}

// NewBackend constructs the configured Backend, or nil with ok=false if
// archival is disabled or misconfigured (config.ValidateTiered already
// disables ArchiveEnabled on a bad per-backend config, so this should not
// fail once validation has run).
func NewBackend(cfg *config.Config) (Backend, bool) {
	if !cfg.ArchiveEnabled {
		return nil, false
	}
	switch cfg.ArchiveBackend {
	case "local":
		return NewLocalBackend(cfg.ArchiveLocalPath), true
	case "s3":
		return NewS3Backend(cfg.ArchiveS3Bucket, cfg.ArchiveS3Region), true
	case "azure":
		return NewAzureBackend(cfg.ArchiveAzureAccountURL, cfg.ArchiveAzureAccountKey, cfg.ArchiveAzureContainer), true
	case "gcs":
		return NewGCSBackend(cfg.ArchiveGCSBucket), true
	case "b2":
		return NewB2Backend(cfg.ArchiveB2Bucket, cfg.ArchiveB2KeyID, cfg.ArchiveB2Key), true
	default:
		log.Warn("unrecognized archive backend, archival disabled", "backend", cfg.ArchiveBackend)
		return nil, false
	}
}

// Archiver uploads crops asynchronously through a bounded worker pool so
// a slow or unavailable remote store never blocks the cropper's hot path.
type Archiver struct {
	backend  Backend
	pool     *workerpool.Pool
	auditLog *audit.Logger
}

// NewArchiver wraps backend with async upload via a small dedicated pool.
func NewArchiver(backend Backend, auditLog *audit.Logger) *Archiver {
	return &Archiver{
		backend:  backend,
		pool:     workerpool.New(2, 64),
		auditLog: auditLog,
	}
}

// Submit enqueues localPath for upload to key, fire-and-forget. Failures
// are logged, not returned, since the crop itself is already durable on
// local disk — archival is a best-effort mirror.
func (a *Archiver) Submit(localPath, key string) {
	if a == nil || a.backend == nil {
		return
	}
	ok := a.pool.Submit(func() {
		ctx := context.Background()
		if err := a.backend.Upload(ctx, localPath, key); err != nil {
			log.Error("crop archival failed", "backend", a.backend.Name(), "key", key, "error", err)
			return
		}
		log.Info("crop archived", "backend", a.backend.Name(), "key", key)
		a.auditLog.Log(audit.EventCropArchived, "", map[string]any{"backend": a.backend.Name(), "key": key})
	})
	if !ok {
		log.Warn("archive queue full, dropping crop upload", "key", key)
	}
}

// Close drains in-flight uploads and stops accepting new ones.
func (a *Archiver) Close(ctx context.Context) {
	if a == nil || a.pool == nil {
		return
	}
	a.pool.StopAccepting()
	a.pool.Drain(ctx)
}
