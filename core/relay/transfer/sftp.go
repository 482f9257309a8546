// Package transfer owns the SFTP upload lifecycle: dial, authenticate,
// verify the remote directory, write the file, and tear everything down on
// every exit path. Each upload opens its own connection; nothing is pooled,
// so a stuck transfer cannot affect other in-flight requests.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/relayops/sftprelay/core/infra/secrets"
	"github.com/relayops/sftprelay/core/relay/filename"
)

var (
	// ErrRemoteDirectory marks a missing or inaccessible remote directory.
	ErrRemoteDirectory = errors.New("remote_directory_error")
	// ErrTransfer marks a connection, authentication, or write failure.
	ErrTransfer = errors.New("transfer_failure")
)

const (
	sftpPort    = "22"
	dialTimeout = 30 * time.Second
)

// Session is the subset of remote operations an upload needs. The
// production implementation wraps an SFTP client over SSH; tests inject
// fakes to exercise the lifecycle without a network.
type Session interface {
	Stat(path string) (os.FileInfo, error)
	Create(path string) (io.WriteCloser, error)
	Close() error
}

// DialFunc opens an authenticated session against the credential host.
type DialFunc func(ctx context.Context, creds secrets.Credentials) (Session, error)

// Client uploads files over SFTP.
type Client struct {
	dial DialFunc
}

// NewClient returns a Client that dials real SFTP sessions.
func NewClient() *Client {
	return &Client{dial: dialSFTP}
}

// NewClientWithDialer returns a Client with a custom session dialer.
func NewClientWithDialer(dial DialFunc) *Client {
	return &Client{dial: dial}
}

// Upload transfers the file at localPath to the credential remote
// directory under the sanitized name, overwriting any existing remote file
// of the same name. The session and transport are released on every exit
// path.
func (c *Client) Upload(ctx context.Context, localPath string, name filename.Sanitized, creds secrets.Credentials) error {
	sess, err := c.dial(ctx, creds)
	if err != nil {
		return fmt.Errorf("%w: connect to %s: %v", ErrTransfer, creds.Host, err)
	}
	defer func() { _ = sess.Close() }()

	if _, err := sess.Stat(creds.RemoteDir); err != nil {
		return fmt.Errorf("%w: directory %q not found or inaccessible: %v", ErrRemoteDirectory, creds.RemoteDir, err)
	}

	remotePath, err := filename.JoinRemote(creds.RemoteDir, name)
	if err != nil {
		return err
	}

	src, err := os.Open(localPath) // #nosec G304 -- localPath is a service-created temp file.
	if err != nil {
		return fmt.Errorf("%w: open local payload: %v", ErrTransfer, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := sess.Create(remotePath)
	if err != nil {
		return fmt.Errorf("%w: create %q: %v", ErrTransfer, remotePath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("%w: write %q: %v", ErrTransfer, remotePath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("%w: finalize %q: %v", ErrTransfer, remotePath, err)
	}
	return nil
}

func dialSFTP(ctx context.Context, creds secrets.Credentials) (Session, error) {
	cfg := &ssh.ClientConfig{
		User: creds.Username,
		Auth: []ssh.AuthMethod{ssh.Password(creds.Password)},
		// #nosec G106 -- the partner endpoint distributes no host keys;
		// password auth over the dedicated transfer account.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}
	addr := net.JoinHostPort(creds.Host, sftpPort)

	dialer := &net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, err
	}
	return &sshSession{ssh: sshClient, sftp: sftpClient}, nil
}

type sshSession struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

func (s *sshSession) Stat(path string) (os.FileInfo, error) {
	return s.sftp.Stat(path)
}

func (s *sshSession) Create(path string) (io.WriteCloser, error) {
	f, err := s.sftp.Create(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *sshSession) Close() error {
	err := s.sftp.Close()
	if cerr := s.ssh.Close(); err == nil {
		err = cerr
	}
	return err
}
