package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"sftp-mcp/internal/file"
	"sftp-mcp/internal/ssh/sshtest"
)

// executeCommand runs a fresh command tree with the given args and captures combined output.
func executeCommand(args ...string) (string, error) {
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err := root.ExecuteC()
	return buf.String(), err
}

func newTestTree(t *testing.T) (*sshtest.Server, string, []string) {
	t.Helper()

	srv := sshtest.NewServer(t, sshtest.ServerOptions{Username: "alice", Password: "secret"})
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "docs"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "docs", "notes.txt"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	flags := []string{
		"--host", srv.Host,
		"--port", strconv.Itoa(srv.Port),
		"--user", "alice",
		"--password", "secret",
		"--root", root,
		"--timeout", "5",
	}
	return srv, root, flags
}

func TestLs(t *testing.T) {
	_, _, flags := newTestTree(t)

	out, err := executeCommand(append([]string{"ls"}, flags...)...)
	if err != nil {
		t.Fatalf("ls failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "docs/") {
		t.Errorf("Expected docs/ in output: %s", out)
	}
	if strings.Contains(out, "notes.txt") {
		t.Errorf("Non-recursive listing must not descend: %s", out)
	}

	out, err = executeCommand(append([]string{"ls", "-r"}, flags...)...)
	if err != nil {
		t.Fatalf("ls -r failed: %v\n%s", err, out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("Expected 2 lines, got %d: %s", len(lines), out)
	}
	if !strings.HasSuffix(lines[0], "docs/") || !strings.HasSuffix(lines[1], "docs/notes.txt") {
		t.Errorf("Expected pre-order listing, got: %s", out)
	}
	if !strings.Contains(lines[1], "5B") || !strings.Contains(lines[1], "public") {
		t.Errorf("Expected size and visibility, got: %s", lines[1])
	}
}

func TestLsAuthenticationFailure(t *testing.T) {
	srv := sshtest.NewServer(t, sshtest.ServerOptions{Username: "alice", Password: "secret"})

	_, err := executeCommand("ls",
		"--host", srv.Host,
		"--port", strconv.Itoa(srv.Port),
		"--user", "alice",
		"--password", "wrong",
	)
	if err == nil || !strings.Contains(err.Error(), "could not login") {
		t.Errorf("Expected login failure, got %v", err)
	}
}

func TestStat(t *testing.T) {
	_, _, flags := newTestTree(t)

	out, err := executeCommand(append([]string{"stat", "docs/notes.txt", "--mimetype"}, flags...)...)
	if err != nil {
		t.Fatalf("stat failed: %v\n%s", err, out)
	}
	for _, want := range []string{`"path": "docs/notes.txt"`, `"type": "file"`, `"size": 5`, "mimetype: text/plain"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output: %s", want, out)
		}
	}

	out, err = executeCommand(append([]string{"stat", "docs"}, flags...)...)
	if err != nil {
		t.Fatalf("stat failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, `"type": "dir"`) || strings.Contains(out, "size") {
		t.Errorf("Unexpected directory record: %s", out)
	}
}

func TestFingerprint(t *testing.T) {
	srv := sshtest.NewServer(t, sshtest.ServerOptions{Username: "alice", Password: "secret"})

	out, err := executeCommand("fingerprint", srv.Host, "--port", strconv.Itoa(srv.Port))
	if err != nil {
		t.Fatalf("fingerprint failed: %v", err)
	}
	if strings.TrimSpace(out) != "ssh-ed25519 "+srv.Fingerprint() {
		t.Errorf("Unexpected output: %s", out)
	}
}

func TestProfiles(t *testing.T) {
	srv, root, _ := newTestTree(t)

	profiles := fmt.Sprintf(`profiles:
  test:
    host: %s
    port: %d
    username: alice
    password: secret
    root: %s
    hostFingerprint: %q
`, srv.Host, srv.Port, root, srv.Fingerprint())
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte(profiles), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SFTP_MCP_PROFILES_PATH", path)

	out, err := executeCommand("profiles")
	if err != nil {
		t.Fatalf("profiles failed: %v", err)
	}
	if !strings.HasPrefix(out, "test\talice@"+srv.Host) {
		t.Errorf("Unexpected profiles output: %s", out)
	}

	out, err = executeCommand("ls", "-r", "--profile", "test")
	if err != nil {
		t.Fatalf("ls with profile failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "docs/notes.txt") {
		t.Errorf("Expected listing through profile: %s", out)
	}

	if _, err := executeCommand("ls", "--profile", "missing"); err == nil {
		t.Error("Expected error for unknown profile")
	}
}

func TestFormatRecord(t *testing.T) {
	tests := []struct {
		record file.Record
		prefix string
		suffix string
	}{
		{file.Record{Path: "a/b", Type: file.TypeDir}, "d\t-\t-\t", "\ta/b/"},
		{file.Record{Path: "big.bin", Type: file.TypeFile, Size: 2000000, Visibility: file.Private}, "-\tprivate\t2MB\t", "\tbig.bin"},
	}

	for _, tt := range tests {
		got := formatRecord(tt.record)
		if !strings.HasPrefix(got, tt.prefix) || !strings.HasSuffix(got, tt.suffix) {
			t.Errorf("formatRecord(%+v) = %q", tt.record, got)
		}
	}
}
