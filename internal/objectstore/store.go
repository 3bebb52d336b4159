// Package objectstore persists photo binaries and hands back public URLs.
// Backends: local disk (default), FTP and SFTP.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
	"github.com/Reefey/Backend-sub000/internal/logging"
	"github.com/Reefey/Backend-sub000/internal/observability/metrics"
)

var logger *slog.Logger

func init() {
	var err error
	logger, _, err = logging.NewFileLogger("logs/objectstore.log", "objectstore", new(slog.LevelVar))
	if err != nil || logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil)).With("service", "objectstore")
	}
}

// Store uploads an object and returns its public URL.
type Store interface {
	Name() string
	Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error)
	Close() error
}

// New selects the configured storage backend.
func New(settings *conf.Settings, m *metrics.ObjectStoreMetrics) (Store, error) {
	var (
		store Store
		err   error
	)
	switch settings.ObjectStore.Type {
	case "", "local":
		store, err = newLocalStore(&settings.ObjectStore)
	case "ftp":
		store, err = newFTPStore(&settings.ObjectStore)
	case "sftp":
		store, err = newSFTPStore(&settings.ObjectStore)
	default:
		return nil, errors.Newf("unknown object store type: %s", settings.ObjectStore.Type).
			Component("objectstore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err != nil {
		return nil, err
	}
	if m != nil {
		return &measuredStore{Store: store, metrics: m}, nil
	}
	return store, nil
}

// ObjectPath builds a collision-free storage path, partitioned by date so
// backends with flat directories stay browsable:
// <prefix>/2026/08/31/<uuid><ext>
func ObjectPath(prefix, ext string) string {
	now := time.Now().UTC()
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s%s",
		strings.Trim(prefix, "/"), now.Year(), now.Month(), now.Day(), uuid.New().String(), ext)
}

// publicURL joins the configured base URL with the object path. Without a
// base URL the bare object path is returned.
func publicURL(base, objectPath string) string {
	if base == "" {
		return objectPath
	}
	joined, err := url.JoinPath(base, objectPath)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(objectPath, "/")
	}
	return joined
}

func uploadError(backend string, err error) error {
	return errors.New(err).
		Component("objectstore").
		Category(errors.CategoryObjectStore).
		Context("backend", backend).
		Build()
}

// measuredStore wraps a backend with upload metrics.
type measuredStore struct {
	Store
	metrics *metrics.ObjectStoreMetrics
}

func (s *measuredStore) Upload(ctx context.Context, data []byte, objectPath, contentType string) (string, error) {
	start := time.Now()
	publicURL, err := s.Store.Upload(ctx, data, objectPath, contentType)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
	}
	s.metrics.RecordUpload(s.Name(), status)
	s.metrics.RecordUploadDuration(s.Name(), time.Since(start).Seconds())
	if err == nil {
		s.metrics.RecordUploadSize(s.Name(), len(data))
	}
	return publicURL, err
}
