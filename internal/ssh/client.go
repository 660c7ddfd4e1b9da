package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Raw entry type codes, as defined by the SFTP protocol.
const (
	TypeRegular   uint8 = 1
	TypeDirectory uint8 = 2
	TypeSymlink   uint8 = 3
	TypeSpecial   uint8 = 4
	TypeUnknown   uint8 = 5
)

// RawEntry is one attribute record as returned by a stat or a directory listing.
type RawEntry struct {
	Name        string
	Type        uint8
	Size        int64
	Mtime       int64
	Permissions uint32
}

// IsDir reports whether the entry has the directory type code.
func (e RawEntry) IsDir() bool {
	return e.Type == TypeDirectory
}

// Conn is the SFTP capability set the session and file layers are built on.
// Relative paths are resolved against the current directory, which starts as
// the login directory and is changed by Chdir.
type Conn interface {
	// ServerHostKey returns the host key presented by the server in SSH wire format.
	ServerHostKey(ctx context.Context) ([]byte, error)
	// Login authenticates. A rejected credential yields false and a nil error;
	// an error means the server could not be talked to.
	Login(ctx context.Context, username string, cred Credential) (bool, error)

	Chdir(path string) error
	Getwd() (string, error)
	Stat(path string) (RawEntry, error)
	ReadDir(path string) ([]RawEntry, error)
	Open(path string) (io.ReadCloser, error)
	Put(path string, r io.Reader) error
	Remove(path string) error
	RemoveAll(path string) error
	Rename(oldPath, newPath string) error
	Mkdir(path string, mode os.FileMode, recursive bool) error
	Chmod(path string, mode os.FileMode) error

	IsConnected() bool
	Close() error
}

// Pinger is implemented by connections that support an active liveness probe.
type Pinger interface {
	Ping() error
}

// AgentForwarder is implemented by connections that can forward an SSH agent
// over the authenticated session.
type AgentForwarder interface {
	ForwardAgent(ag agent.Agent) error
}

// Client is a Conn backed by golang.org/x/crypto/ssh and github.com/pkg/sftp.
type Client struct {
	addr    string
	timeout time.Duration

	mu         sync.Mutex
	hostKey    ssh.PublicKey
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	fwdSession *ssh.Session
	cwd        string
	connected  atomic.Bool
}

// NewClient creates a Client for host:port. No connection is made until
// ServerHostKey or Login is called.
func NewClient(host string, port int, timeout time.Duration) *Client {
	if port == 0 {
		port = DefaultPort
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		timeout: timeout,
	}
}

// ServerHostKey performs a key exchange and returns the presented host key. The key
// is remembered and required to match on the following Login.
func (c *Client) ServerHostKey(ctx context.Context) ([]byte, error) {
	key, err := ScanHostKey(ctx, c.addr, c.timeout)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.hostKey = key
	c.mu.Unlock()

	return key.Marshal(), nil
}

// Login dials the server, authenticates and opens the SFTP subsystem.
func (c *Client) Login(ctx context.Context, username string, cred Credential) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeLocked()

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if c.hostKey != nil {
		hostKeyCallback = ssh.FixedHostKey(c.hostKey)
	}

	config := &ssh.ClientConfig{
		User:            username,
		Auth:            AuthMethods(cred),
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.timeout,
	}

	dialer := net.Dialer{Timeout: c.timeout}
	netConn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return false, fmt.Errorf("failed to connect to SSH server: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = netConn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, c.addr, config)
	if err != nil {
		netConn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return false, nil
		}
		return false, fmt.Errorf("SSH handshake failed: %w", err)
	}
	_ = netConn.SetDeadline(time.Time{})

	client := ssh.NewClient(sshConn, chans, reqs)
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return false, fmt.Errorf("failed to start SFTP subsystem: %w", err)
	}

	cwd, err := sftpClient.Getwd()
	if err != nil {
		sftpClient.Close()
		client.Close()
		return false, fmt.Errorf("failed to read login directory: %w", err)
	}

	c.sshClient = client
	c.sftpClient = sftpClient
	c.cwd = cwd
	c.connected.Store(true)

	go c.watch(client)

	return true, nil
}

// watch clears the liveness flag once the SSH connection ends.
func (c *Client) watch(client *ssh.Client) {
	_ = client.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sshClient == client {
		c.connected.Store(false)
	}
}

// IsConnected reports the cached liveness flag.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Ping sends a keepalive request and waits for the reply.
func (c *Client) Ping() error {
	c.mu.Lock()
	client := c.sshClient
	c.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}
	if _, _, err := client.SendRequest("keepalive@openssh.com", true, nil); err != nil {
		c.connected.Store(false)
		return err
	}
	return nil
}

// ForwardAgent makes ag available to processes on the remote side.
func (c *Client) ForwardAgent(ag agent.Agent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sshClient == nil {
		return ErrNotConnected
	}
	if c.fwdSession != nil {
		return nil
	}
	if err := agent.ForwardToAgent(c.sshClient, ag); err != nil {
		return fmt.Errorf("forward to agent: %w", err)
	}

	session, err := c.sshClient.NewSession()
	if err != nil {
		return fmt.Errorf("open session for agent forwarding: %w", err)
	}
	if err := agent.RequestAgentForwarding(session); err != nil {
		session.Close()
		return fmt.Errorf("request agent forwarding: %w", err)
	}
	c.fwdSession = session
	return nil
}

// Close closes the SFTP and SSH connections.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	c.connected.Store(false)

	var errs []error
	if c.fwdSession != nil {
		c.fwdSession.Close()
		c.fwdSession = nil
	}
	if c.sftpClient != nil {
		if err := c.sftpClient.Close(); err != nil {
			errs = append(errs, err)
		}
		c.sftpClient = nil
	}
	if c.sshClient != nil {
		if err := c.sshClient.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
		c.sshClient = nil
	}
	c.cwd = ""
	return errors.Join(errs...)
}

// resolve returns the SFTP client and resolves p against the current directory.
func (c *Client) resolve(p string) (*sftp.Client, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sftpClient == nil {
		return nil, "", ErrNotConnected
	}
	if p == "" {
		return c.sftpClient, c.cwd, nil
	}
	if !path.IsAbs(p) {
		p = path.Join(c.cwd, p)
	}
	return c.sftpClient, p, nil
}

// Chdir changes the directory relative paths are resolved against.
func (c *Client) Chdir(dir string) error {
	client, p, err := c.resolve(dir)
	if err != nil {
		return err
	}

	abs, err := client.RealPath(p)
	if err != nil {
		return err
	}
	info, err := client.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}

	c.mu.Lock()
	c.cwd = abs
	c.mu.Unlock()
	return nil
}

// Getwd returns the current directory.
func (c *Client) Getwd() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sftpClient == nil {
		return "", ErrNotConnected
	}
	return c.cwd, nil
}

// Stat returns the attributes of p, following symlinks.
func (c *Client) Stat(p string) (RawEntry, error) {
	client, p, err := c.resolve(p)
	if err != nil {
		return RawEntry{}, err
	}

	info, err := client.Stat(p)
	if err != nil {
		return RawEntry{}, err
	}
	return rawEntry(info), nil
}

// ReadDir lists the entries of dir without following symlinks.
func (c *Client) ReadDir(dir string) ([]RawEntry, error) {
	client, p, err := c.resolve(dir)
	if err != nil {
		return nil, err
	}

	infos, err := client.ReadDir(p)
	if err != nil {
		return nil, err
	}

	entries := make([]RawEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, rawEntry(info))
	}
	return entries, nil
}

// Open opens p for reading.
func (c *Client) Open(p string) (io.ReadCloser, error) {
	client, p, err := c.resolve(p)
	if err != nil {
		return nil, err
	}
	return client.Open(p)
}

// Put creates or truncates p and copies r into it.
func (c *Client) Put(p string, r io.Reader) error {
	client, p, err := c.resolve(p)
	if err != nil {
		return err
	}

	f, err := client.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	if _, err := f.ReadFrom(r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Remove deletes a file or an empty directory.
func (c *Client) Remove(p string) error {
	client, p, err := c.resolve(p)
	if err != nil {
		return err
	}
	return client.Remove(p)
}

// RemoveAll deletes p and everything below it.
func (c *Client) RemoveAll(p string) error {
	client, p, err := c.resolve(p)
	if err != nil {
		return err
	}
	return removeTree(client, p)
}

func removeTree(client *sftp.Client, dir string) error {
	infos, err := client.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, info := range infos {
		child := path.Join(dir, info.Name())
		if info.IsDir() {
			if err := removeTree(client, child); err != nil {
				return err
			}
			continue
		}
		if err := client.Remove(child); err != nil {
			return err
		}
	}

	return client.RemoveDirectory(dir)
}

// Rename moves oldPath to newPath.
func (c *Client) Rename(oldPath, newPath string) error {
	client, from, err := c.resolve(oldPath)
	if err != nil {
		return err
	}
	_, to, err := c.resolve(newPath)
	if err != nil {
		return err
	}
	return client.Rename(from, to)
}

// Mkdir creates p with the given mode. With recursive set, missing parents are
// created with the same mode and an existing directory is not an error.
func (c *Client) Mkdir(p string, mode os.FileMode, recursive bool) error {
	client, p, err := c.resolve(p)
	if err != nil {
		return err
	}

	if !recursive {
		if err := client.Mkdir(p); err != nil {
			return err
		}
		return client.Chmod(p, mode)
	}

	current := ""
	if path.IsAbs(p) {
		current = "/"
	}
	for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
		if part == "" {
			continue
		}
		current = path.Join(current, part)

		info, err := client.Stat(current)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s exists and is not a directory", current)
			}
			continue
		}
		if err := client.Mkdir(current); err != nil {
			return err
		}
		if err := client.Chmod(current, mode); err != nil {
			return err
		}
	}
	return nil
}

// Chmod sets the permission bits of p.
func (c *Client) Chmod(p string, mode os.FileMode) error {
	client, p, err := c.resolve(p)
	if err != nil {
		return err
	}
	return client.Chmod(p, mode)
}

func rawEntry(info os.FileInfo) RawEntry {
	mode := info.Mode()

	entry := RawEntry{
		Name:        info.Name(),
		Size:        info.Size(),
		Mtime:       info.ModTime().Unix(),
		Permissions: uint32(mode.Perm()),
	}

	switch {
	case mode.IsRegular():
		entry.Type = TypeRegular
	case mode.IsDir():
		entry.Type = TypeDirectory
	case mode&os.ModeSymlink != 0:
		entry.Type = TypeSymlink
	case mode&(os.ModeDevice|os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0:
		entry.Type = TypeSpecial
	default:
		entry.Type = TypeUnknown
	}
	return entry
}
