package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

const defaultFTPTimeout = 30 * time.Second

// ftpStore uploads objects to an FTP server, one connection per upload.
// Upload volume is low enough that pooling isn't worth the bookkeeping.
type ftpStore struct {
	addr      string
	username  string
	password  string
	basePath  string
	timeout   time.Duration
	publicURL string
}

func newFTPStore(settings *conf.ObjectStoreSettings) (*ftpStore, error) {
	cfg := settings.FTP
	if cfg.Host == "" {
		return nil, errors.Newf("ftp object store requires a host").
			Component("objectstore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	port := cfg.Port
	if port == "" {
		port = "21"
	}
	timeout := defaultFTPTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &ftpStore{
		addr:      fmt.Sprintf("%s:%s", cfg.Host, port),
		username:  cfg.Username,
		password:  cfg.Password,
		basePath:  strings.Trim(cfg.Path, "/"),
		timeout:   timeout,
		publicURL: settings.PublicURL,
	}, nil
}

func (s *ftpStore) Name() string { return "ftp" }

func (s *ftpStore) Upload(ctx context.Context, data []byte, objectPath, _ string) (string, error) {
	conn, err := ftp.Dial(s.addr, ftp.DialWithTimeout(s.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return "", uploadError(s.Name(), err)
	}
	defer func() { _ = conn.Quit() }()

	if s.username != "" {
		if err := conn.Login(s.username, s.password); err != nil {
			return "", uploadError(s.Name(), err)
		}
	}

	remotePath := objectPath
	if s.basePath != "" {
		remotePath = s.basePath + "/" + objectPath
	}
	if err := s.makeParentDirs(conn, remotePath); err != nil {
		return "", uploadError(s.Name(), err)
	}
	if err := conn.Stor(remotePath, bytes.NewReader(data)); err != nil {
		return "", uploadError(s.Name(), err)
	}

	logger.Debug("Object stored", "backend", s.Name(), "path", remotePath, "bytes", len(data))
	return publicURL(s.publicURL, objectPath), nil
}

// makeParentDirs creates the directory chain for a remote path. MakeDir on an
// existing directory errors on most servers; those errors are ignored.
func (s *ftpStore) makeParentDirs(conn *ftp.ServerConn, remotePath string) error {
	dir := path.Dir(remotePath)
	if dir == "." || dir == "/" {
		return nil
	}
	var current string
	for _, part := range strings.Split(dir, "/") {
		if part == "" {
			continue
		}
		if current == "" {
			current = part
		} else {
			current = current + "/" + part
		}
		_ = conn.MakeDir(current)
	}
	return nil
}

func (s *ftpStore) Close() error { return nil }
