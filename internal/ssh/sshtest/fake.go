// Package sshtest provides test doubles for the ssh.Conn transport: a scripted
// in-memory connection that records every call, and an in-process SSH server
// with the SFTP subsystem.
package sshtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh/agent"

	"sftp-mcp/internal/ssh"
)

// Call is one recorded invocation on a FakeConn.
type Call struct {
	Op   string
	Path string
	Arg  string
}

// FakeConn is a scripted ssh.Conn. The exported fields configure its behaviour and
// may be set before it is handed to the code under test.
type FakeConn struct {
	// HostKey is returned by ServerHostKey unless HostKeyErr is set.
	HostKey    []byte
	HostKeyErr error

	// LoginResults are consumed one per Login call. Once exhausted, Login succeeds.
	LoginResults []bool
	LoginErr     error

	// Wd is the directory reported by Getwd. Defaults to "/".
	Wd       string
	ChdirErr error

	// Dirs maps a path to its raw listing. Listing a path that is missing fails.
	Dirs  map[string][]ssh.RawEntry
	Stats map[string]ssh.RawEntry
	Files map[string][]byte
	Modes map[string]os.FileMode

	// Pings are consumed one per Ping call. Once exhausted, Ping succeeds.
	Pings      []bool
	ForwardErr error

	// Fail makes the named operation return the given error.
	Fail map[string]error

	mu        sync.Mutex
	calls     []Call
	creds     []ssh.Credential
	connected bool
	closed    int
}

var (
	_ ssh.Conn           = (*FakeConn)(nil)
	_ ssh.Pinger         = (*FakeConn)(nil)
	_ ssh.AgentForwarder = (*FakeConn)(nil)
)

// NewFakeConn returns an empty FakeConn with all maps initialised.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		Wd:    "/",
		Dirs:  make(map[string][]ssh.RawEntry),
		Stats: make(map[string]ssh.RawEntry),
		Files: make(map[string][]byte),
		Modes: make(map[string]os.FileMode),
		Fail:  make(map[string]error),
	}
}

// Calls returns a copy of the recorded calls.
func (f *FakeConn) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsTo returns the recorded calls of one operation.
func (f *FakeConn) CallsTo(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Call
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Credentials returns the credentials passed to Login, in order.
func (f *FakeConn) Credentials() []ssh.Credential {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ssh.Credential(nil), f.creds...)
}

// Closed returns how many times Close was called.
func (f *FakeConn) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Drop simulates the server going away.
func (f *FakeConn) Drop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

// record logs the call and returns the scripted failure for op, or ErrNotConnected
// when the operation needs a live connection.
func (f *FakeConn) record(op, path, arg string, needsConn bool) error {
	f.calls = append(f.calls, Call{Op: op, Path: path, Arg: arg})
	if err := f.Fail[op]; err != nil {
		return err
	}
	if needsConn && !f.connected {
		return ssh.ErrNotConnected
	}
	return nil
}

func notExist(op, path string) error {
	return &fs.PathError{Op: op, Path: path, Err: fs.ErrNotExist}
}

func (f *FakeConn) ServerHostKey(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("hostkey", "", "", false); err != nil {
		return nil, err
	}
	if f.HostKeyErr != nil {
		return nil, f.HostKeyErr
	}
	if len(f.HostKey) == 0 {
		return nil, errors.New("no host key")
	}
	return f.HostKey, nil
}

func (f *FakeConn) Login(ctx context.Context, username string, cred ssh.Credential) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	kind := ""
	if cred != nil {
		kind = cred.Kind()
	}
	if err := f.record("login", username, kind, false); err != nil {
		return false, err
	}
	f.creds = append(f.creds, cred)
	if f.LoginErr != nil {
		return false, f.LoginErr
	}

	ok := true
	if len(f.LoginResults) > 0 {
		ok = f.LoginResults[0]
		f.LoginResults = f.LoginResults[1:]
	}
	f.connected = ok
	return ok, nil
}

func (f *FakeConn) Chdir(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("chdir", path, "", true); err != nil {
		return err
	}
	if f.ChdirErr != nil {
		return f.ChdirErr
	}
	if !strings.HasPrefix(path, "/") {
		path = strings.TrimRight(f.Wd, "/") + "/" + path
	}
	f.Wd = path
	return nil
}

func (f *FakeConn) Getwd() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("getwd", "", "", true); err != nil {
		return "", err
	}
	return f.Wd, nil
}

func (f *FakeConn) Stat(path string) (ssh.RawEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("stat", path, "", true); err != nil {
		return ssh.RawEntry{}, err
	}
	return f.statLocked(path)
}

func (f *FakeConn) statLocked(path string) (ssh.RawEntry, error) {
	name := path[strings.LastIndex(path, "/")+1:]

	if e, ok := f.Stats[path]; ok {
		if mode, ok := f.Modes[path]; ok {
			e.Permissions = uint32(mode.Perm())
		}
		return e, nil
	}
	if data, ok := f.Files[path]; ok {
		perm := os.FileMode(0644)
		if mode, ok := f.Modes[path]; ok {
			perm = mode
		}
		return ssh.RawEntry{Name: name, Type: ssh.TypeRegular, Size: int64(len(data)), Permissions: uint32(perm.Perm())}, nil
	}
	if _, ok := f.Dirs[path]; ok {
		perm := os.FileMode(0755)
		if mode, ok := f.Modes[path]; ok {
			perm = mode
		}
		return ssh.RawEntry{Name: name, Type: ssh.TypeDirectory, Permissions: uint32(perm.Perm())}, nil
	}
	return ssh.RawEntry{}, notExist("stat", path)
}

func (f *FakeConn) ReadDir(path string) ([]ssh.RawEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("readdir", path, "", true); err != nil {
		return nil, err
	}
	entries, ok := f.Dirs[path]
	if !ok {
		return nil, notExist("readdir", path)
	}
	return append([]ssh.RawEntry(nil), entries...), nil
}

func (f *FakeConn) Open(path string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("open", path, "", true); err != nil {
		return nil, err
	}
	data, ok := f.Files[path]
	if !ok {
		return nil, notExist("open", path)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *FakeConn) Put(path string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("put", path, string(data), true); err != nil {
		return err
	}
	f.Files[path] = data
	return nil
}

func (f *FakeConn) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("remove", path, "", true); err != nil {
		return err
	}
	if _, ok := f.Files[path]; ok {
		delete(f.Files, path)
		return nil
	}
	if entries, ok := f.Dirs[path]; ok && len(entries) == 0 {
		delete(f.Dirs, path)
		return nil
	}
	return notExist("remove", path)
}

func (f *FakeConn) RemoveAll(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("removeall", path, "", true); err != nil {
		return err
	}
	if _, ok := f.Dirs[path]; !ok {
		return notExist("removeall", path)
	}
	prefix := strings.TrimRight(path, "/") + "/"
	for p := range f.Files {
		if strings.HasPrefix(p, prefix) {
			delete(f.Files, p)
		}
	}
	for p := range f.Dirs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(f.Dirs, p)
		}
	}
	return nil
}

func (f *FakeConn) Rename(oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("rename", oldPath, newPath, true); err != nil {
		return err
	}
	if data, ok := f.Files[oldPath]; ok {
		delete(f.Files, oldPath)
		f.Files[newPath] = data
		return nil
	}
	if entries, ok := f.Dirs[oldPath]; ok {
		delete(f.Dirs, oldPath)
		f.Dirs[newPath] = entries
		return nil
	}
	return notExist("rename", oldPath)
}

func (f *FakeConn) Mkdir(path string, mode os.FileMode, recursive bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("mkdir", path, fmt.Sprintf("%#o %t", mode.Perm(), recursive), true); err != nil {
		return err
	}
	if _, ok := f.Dirs[path]; ok {
		if recursive {
			return nil
		}
		return &fs.PathError{Op: "mkdir", Path: path, Err: fs.ErrExist}
	}
	f.Dirs[path] = nil
	f.Modes[path] = mode
	return nil
}

func (f *FakeConn) Chmod(path string, mode os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("chmod", path, fmt.Sprintf("%#o", mode.Perm()), true); err != nil {
		return err
	}
	if _, err := f.statLocked(path); err != nil {
		return notExist("chmod", path)
	}
	f.Modes[path] = mode
	return nil
}

func (f *FakeConn) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *FakeConn) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("ping", "", "", false); err != nil {
		return err
	}
	ok := f.connected
	if len(f.Pings) > 0 {
		ok = f.Pings[0]
		f.Pings = f.Pings[1:]
	}
	if !ok {
		f.connected = false
		return errors.New("ping: no reply")
	}
	return nil
}

func (f *FakeConn) ForwardAgent(ag agent.Agent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("forward-agent", "", "", true); err != nil {
		return err
	}
	return f.ForwardErr
}

func (f *FakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, Call{Op: "close"})
	f.closed++
	f.connected = false
	return nil
}
