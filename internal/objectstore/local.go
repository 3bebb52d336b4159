package objectstore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

// localStore writes objects under a base directory on the local filesystem.
type localStore struct {
	basePath  string
	publicURL string
}

func newLocalStore(settings *conf.ObjectStoreSettings) (*localStore, error) {
	basePath := settings.Local.Path
	if basePath == "" {
		basePath = "data/photos"
	}
	basePath = conf.GetBasePath(basePath)
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.New(err).
			Component("objectstore").
			Category(errors.CategoryFileIO).
			Context("path", basePath).
			Build()
	}
	return &localStore{basePath: basePath, publicURL: settings.PublicURL}, nil
}

func (s *localStore) Name() string { return "local" }

// Upload writes through a temp file and renames, so partially written
// objects never appear under their final path.
func (s *localStore) Upload(_ context.Context, data []byte, objectPath, _ string) (string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(objectPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", uploadError(s.Name(), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		return "", uploadError(s.Name(), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", uploadError(s.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", uploadError(s.Name(), err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		_ = os.Remove(tmpName)
		return "", uploadError(s.Name(), err)
	}

	logger.Debug("Object stored", "backend", s.Name(), "path", objectPath, "bytes", len(data))
	return publicURL(s.publicURL, objectPath), nil
}

func (s *localStore) Close() error { return nil }
