package transfer

import (
	"context"
	"fmt"
	"net"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPUploader delivers files over SFTP. Connections are cached per
// destination and re-established lazily after a failure; a failed upload is
// not retried here, the file stays eligible for the next scheduled run.
type SFTPUploader struct {
	connectTimeout time.Duration
	ioTimeout      time.Duration

	mu    sync.Mutex
	conns map[string]*sftpConn
}

type sftpConn struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

// NewSFTPUploader constructs an SFTPUploader. connectTimeout bounds the SSH
// dial, ioTimeout bounds one whole upload so a hung remote cannot stall a
// transfer run past the run lock's max hold.
func NewSFTPUploader(connectTimeout, ioTimeout time.Duration) *SFTPUploader {
	if connectTimeout <= 0 {
		connectTimeout = 15 * time.Second
	}
	if ioTimeout <= 0 {
		ioTimeout = 2 * time.Minute
	}
	return &SFTPUploader{
		connectTimeout: connectTimeout,
		ioTimeout:      ioTimeout,
		conns:          make(map[string]*sftpConn),
	}
}

// Upload writes content to dest.RemoteDir/name on the remote host. The write
// is bounded by the IO timeout; on expiry the cached connection is torn down
// to unblock the stalled call.
func (u *SFTPUploader) Upload(ctx context.Context, dest Destination, name string, content []byte) error {
	conn, err := u.conn(ctx, dest)
	if err != nil {
		return err
	}

	remote := path.Join(dest.RemoteDir, name)
	err = boundIO(ctx, u.ioTimeout,
		func() error { return putFile(conn.sftp, remote, content) },
		func() { u.evict(dest) })
	if err != nil {
		u.evict(dest)
		return fmt.Errorf("transfer: upload %s: %w", remote, err)
	}
	return nil
}

// putFile runs the blocking sftp calls for one upload.
func putFile(client *sftp.Client, remote string, content []byte) error {
	f, err := client.Create(remote)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// boundIO runs op under the context plus timeout. The sftp client offers no
// per-call deadline, so on expiry abort is invoked to close the underlying
// connection, which unblocks op before boundIO returns.
func boundIO(ctx context.Context, timeout time.Duration, op func() error, abort func()) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	done := make(chan error, 1)
	go func() { done <- op() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		abort()
		<-done
		return ctx.Err()
	}
}

// Close shuts down all cached connections.
func (u *SFTPUploader) Close() {
	u.mu.Lock()
	defer u.mu.Unlock()
	for key, conn := range u.conns {
		_ = conn.sftp.Close()
		_ = conn.ssh.Close()
		delete(u.conns, key)
	}
}

func destKey(dest Destination) string {
	return net.JoinHostPort(dest.Host, strconv.Itoa(dest.Port)) + "/" + dest.Username
}

func (u *SFTPUploader) conn(ctx context.Context, dest Destination) (*sftpConn, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	key := destKey(dest)
	if conn, ok := u.conns[key]; ok {
		return conn, nil
	}

	timeout := u.connectTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}

	config := &ssh.ClientConfig{
		User:            dest.Username,
		Auth:            []ssh.AuthMethod{ssh.Password(dest.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}
	addr := net.JoinHostPort(dest.Host, strconv.Itoa(dest.Port))
	sshClient, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("transfer: dial %s: %w", addr, err)
	}
	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("transfer: sftp session %s: %w", addr, err)
	}

	conn := &sftpConn{ssh: sshClient, sftp: sftpClient}
	u.conns[key] = conn
	return conn, nil
}

func (u *SFTPUploader) evict(dest Destination) {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := destKey(dest)
	if conn, ok := u.conns[key]; ok {
		_ = conn.sftp.Close()
		_ = conn.ssh.Close()
		delete(u.conns, key)
	}
}
