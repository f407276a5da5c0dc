package sftp

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config holds the SFTP destination settings.
type Config struct {
	// Host is the remote hostname or IP address.
	Host string

	// Port is the SSH port (default: 22).
	Port int

	// User is the SSH username.
	User string

	// Password for password-based authentication.
	Password string

	// PrivateKeyPath is the path to a private key file. Takes precedence
	// over Password when set.
	PrivateKeyPath string

	// KnownHostsPath is the path to the known_hosts file. If empty, host
	// key verification is disabled and a warning is logged.
	KnownHostsPath string

	// RemotePath is the destination. A trailing slash means directory; the
	// local base name is appended.
	RemotePath string

	// ConnectTimeout bounds connection establishment.
	ConnectTimeout time.Duration
}

// Uploader delivers a finished artifact to an SFTP destination.
type Uploader struct {
	cfg    Config
	logger zerolog.Logger
}

// NewUploader creates an uploader for the given destination.
func NewUploader(cfg Config, logger zerolog.Logger) *Uploader {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	return &Uploader{
		cfg:    cfg,
		logger: logger.With().Str("component", "sftp-uploader").Logger(),
	}
}

// Upload copies the local file to the configured destination.
func (u *Uploader) Upload(ctx context.Context, localPath string) error {
	auth, err := u.authMethods()
	if err != nil {
		return err
	}

	hostKeyCallback, err := u.hostKeyCallback()
	if err != nil {
		return err
	}

	sshConfig := &ssh.ClientConfig{
		User:            u.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         u.cfg.ConnectTimeout,
	}

	addr := net.JoinHostPort(u.cfg.Host, fmt.Sprintf("%d", u.cfg.Port))
	conn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return fmt.Errorf("ssh connection to %s failed: %w", addr, err)
	}
	defer conn.Close()

	client, err := sftp.NewClient(conn)
	if err != nil {
		return fmt.Errorf("sftp session failed: %w", err)
	}
	defer client.Close()

	remotePath := u.cfg.RemotePath
	if strings.HasSuffix(remotePath, "/") {
		remotePath = path.Join(remotePath, filepath.Base(localPath))
	}

	local, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening artifact failed: %w", err)
	}
	defer local.Close()

	remote, err := client.Create(remotePath)
	if err != nil {
		return fmt.Errorf("creating remote file %s failed: %w", remotePath, err)
	}
	defer remote.Close()

	written, err := io.Copy(remote, local)
	if err != nil {
		return fmt.Errorf("uploading artifact failed: %w", err)
	}

	u.logger.Info().
		Str("remote", addr+":"+remotePath).
		Int64("bytes", written).
		Msg("Artifact delivered")
	return nil
}

func (u *Uploader) authMethods() ([]ssh.AuthMethod, error) {
	if u.cfg.PrivateKeyPath != "" {
		key, err := os.ReadFile(u.cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading private key failed: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing private key failed: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if u.cfg.Password != "" {
		return []ssh.AuthMethod{ssh.Password(u.cfg.Password)}, nil
	}
	return nil, fmt.Errorf("no sftp authentication method configured")
}

func (u *Uploader) hostKeyCallback() (ssh.HostKeyCallback, error) {
	if u.cfg.KnownHostsPath != "" {
		callback, err := knownhosts.New(u.cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("loading known_hosts failed: %w", err)
		}
		return callback, nil
	}
	u.logger.Warn().Msg("Host key verification disabled, configure known_hosts_path for production use")
	return ssh.InsecureIgnoreHostKey(), nil
}
