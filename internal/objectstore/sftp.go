package objectstore

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/Reefey/Backend-sub000/internal/conf"
	"github.com/Reefey/Backend-sub000/internal/errors"
)

const defaultSFTPTimeout = 30 * time.Second

// sftpStore uploads objects over SSH, one session per upload.
type sftpStore struct {
	addr      string
	sshConfig *ssh.ClientConfig
	basePath  string
	publicURL string
}

func newSFTPStore(settings *conf.ObjectStoreSettings) (*sftpStore, error) {
	cfg := settings.SFTP
	if cfg.Host == "" {
		return nil, errors.Newf("sftp object store requires a host").
			Component("objectstore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	port := cfg.Port
	if port == "" {
		port = "22"
	}
	timeout := defaultSFTPTimeout
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}

	var auth []ssh.AuthMethod
	switch {
	case cfg.KeyFile != "":
		key, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, errors.New(err).
				Component("objectstore").
				Category(errors.CategoryConfiguration).
				Context("key_file", cfg.KeyFile).
				Build()
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, errors.New(err).
				Component("objectstore").
				Category(errors.CategoryConfiguration).
				Build()
		}
		auth = []ssh.AuthMethod{ssh.PublicKeys(signer)}
	case cfg.Password != "":
		auth = []ssh.AuthMethod{ssh.Password(cfg.Password)}
	default:
		return nil, errors.Newf("sftp object store requires a key file or password").
			Component("objectstore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	return &sftpStore{
		addr: fmt.Sprintf("%s:%s", cfg.Host, port),
		sshConfig: &ssh.ClientConfig{
			User: cfg.Username,
			Auth: auth,
			// TODO: support known_hosts verification via a host key setting.
			HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec
			Timeout:         timeout,
		},
		basePath:  strings.Trim(cfg.Path, "/"),
		publicURL: settings.PublicURL,
	}, nil
}

func (s *sftpStore) Name() string { return "sftp" }

func (s *sftpStore) Upload(ctx context.Context, data []byte, objectPath, _ string) (string, error) {
	sshConn, err := ssh.Dial("tcp", s.addr, s.sshConfig)
	if err != nil {
		return "", uploadError(s.Name(), err)
	}
	defer func() { _ = sshConn.Close() }()

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		return "", uploadError(s.Name(), err)
	}
	defer func() { _ = client.Close() }()

	remotePath := objectPath
	if s.basePath != "" {
		remotePath = s.basePath + "/" + objectPath
	}
	if err := client.MkdirAll(path.Dir(remotePath)); err != nil {
		return "", uploadError(s.Name(), err)
	}

	f, err := client.Create(remotePath)
	if err != nil {
		return "", uploadError(s.Name(), err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", uploadError(s.Name(), err)
	}
	if err := f.Close(); err != nil {
		return "", uploadError(s.Name(), err)
	}

	select {
	case <-ctx.Done():
		return "", uploadError(s.Name(), ctx.Err())
	default:
	}

	logger.Debug("Object stored", "backend", s.Name(), "path", remotePath, "bytes", len(data))
	return publicURL(s.publicURL, objectPath), nil
}

func (s *sftpStore) Close() error { return nil }
