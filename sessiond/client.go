package sessiond

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrSocketUnavailable is returned by Dial when the daemon socket is
// missing, not a socket, or not owned exclusively by the caller.
var ErrSocketUnavailable = errors.New("sessiond: socket unavailable")

// DefaultSocketPath returns the per-user daemon socket path, mirroring
// the teacher's own $XDG_RUNTIME_DIR-first, $TMPDIR-fallback convention.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "imgvault-sessiond.sock")
	}

	return filepath.Join(os.TempDir(), fmt.Sprintf("imgvault-sessiond-%d.sock", os.Getuid()))
}

// Client is a connection to a running session daemon.
type Client struct {
	conn net.Conn
	rd   *bufio.Scanner
}

// Dial connects to the daemon socket at path after verifying it is a
// UNIX socket owned by the caller with no group/other permission bits,
// refusing anything else rather than trusting an unverified peer.
func Dial(path string) (*Client, error) {
	if err := verifySocketSecure(path, os.Getuid()); err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSocketUnavailable, err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)

	return &Client{conn: conn, rd: scanner}, nil
}

func verifySocketSecure(path string, uid int) error {
	fi, err := os.Lstat(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSocketUnavailable, err)
	}

	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%w: refusing to dial a symlink", ErrSocketUnavailable)
	}

	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%w: not a socket", ErrSocketUnavailable)
	}

	if fi.Mode().Perm() != socketPerm {
		return fmt.Errorf("%w: unexpected socket permissions %v", ErrSocketUnavailable, fi.Mode().Perm())
	}

	sysStat, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return fmt.Errorf("%w: cannot determine socket owner", ErrSocketUnavailable)
	}

	if int(sysStat.Uid) != uid {
		return fmt.Errorf("%w: socket owned by a different user", ErrSocketUnavailable)
	}

	return nil
}

func (c *Client) call(req Request) (Response, error) {
	line, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}

	line = append(line, '\n')

	if _, err := c.conn.Write(line); err != nil {
		return Response{}, err
	}

	if !c.rd.Scan() {
		if err := c.rd.Err(); err != nil {
			return Response{}, err
		}

		return Response{}, errors.New("sessiond: connection closed without a response")
	}

	var resp Response
	if err := json.Unmarshal(c.rd.Bytes(), &resp); err != nil {
		return Response{}, err
	}

	return resp, nil
}

// Unlock asks the daemon to verify password against vaultPath's key file
// and, on success, cache the unlocked session.
func (c *Client) Unlock(vaultPath string, password []byte) (Response, error) {
	return c.call(Request{Command: "unlock", VaultPath: vaultPath, Password: string(password)})
}

// Lock asks the daemon to drop and zeroize vaultPath's cached session.
func (c *Client) Lock(vaultPath string) (Response, error) {
	return c.call(Request{Command: "lock", VaultPath: vaultPath})
}

// Touch resets vaultPath's idle timer.
func (c *Client) Touch(vaultPath string) (Response, error) {
	return c.call(Request{Command: "touch", VaultPath: vaultPath})
}

// Status reports vaultPath's cached session status without affecting it.
func (c *Client) Status(vaultPath string) (Response, error) {
	return c.call(Request{Command: "status", VaultPath: vaultPath})
}

// GetKeys retrieves the active session's key material so the caller can
// build its own vaultcrypto.Controller without re-deriving it from a
// password.
func (c *Client) GetKeys(vaultPath string) (Response, error) {
	return c.call(Request{Command: "get_keys", VaultPath: vaultPath})
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
