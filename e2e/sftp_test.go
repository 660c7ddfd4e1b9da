package e2e

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"

	"sftp-mcp/e2e/testcontainers"
	"sftp-mcp/internal/server"
)

const (
	sftpUser     = "testuser"
	sftpPassword = "password"
)

type environment struct {
	sftp   *testcontainers.SFTPContainer
	client *MCPClient
}

func setup(t *testing.T) *environment {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	tc.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	sftpContainer, err := testcontainers.StartSFTPContainer(ctx, sftpUser, sftpPassword)
	if err != nil {
		t.Fatalf("Failed to start SFTP server container: %v", err)
	}
	t.Cleanup(func() { sftpContainer.Stop(context.Background()) })

	mcpServer, err := testcontainers.StartMCPServer(ctx, server.DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to start MCP server: %v", err)
	}
	t.Cleanup(mcpServer.Stop)

	client, err := NewMCPClient(ctx, mcpServer.URL)
	if err != nil {
		t.Fatalf("Failed to create MCP client: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return &environment{sftp: sftpContainer, client: client}
}

func (e *environment) connectArgs() map[string]interface{} {
	return map[string]interface{}{
		"host":     e.sftp.Host,
		"port":     e.sftp.Port,
		"username": e.sftp.Username,
		"password": e.sftp.Password,
		"root":     e.sftp.Dir,
		"timeout":  10,
	}
}

// TestSFTPSession walks one session through the file tools
func TestSFTPSession(t *testing.T) {
	env := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fingerprint, err := env.client.Fingerprint(ctx, env.sftp.Host, env.sftp.Port)
	if err != nil {
		t.Fatalf("Failed to fetch fingerprint: %v", err)
	}

	args := env.connectArgs()
	args["hostFingerprint"] = fingerprint
	sessionID, err := env.client.Connect(ctx, args)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	if _, err := env.client.Call(ctx, "sftp_write", map[string]interface{}{
		"sessionId":  sessionID,
		"path":       "reports/q1.txt",
		"contents":   "quarterly numbers",
		"visibility": "private",
	}); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	contents, err := env.client.Call(ctx, "sftp_read", map[string]interface{}{"sessionId": sessionID, "path": "reports/q1.txt"})
	if err != nil {
		t.Fatalf("Failed to read: %v", err)
	}
	if contents != "quarterly numbers" {
		t.Errorf("Unexpected contents %q", contents)
	}

	listing, err := env.client.Call(ctx, "sftp_list_contents", map[string]interface{}{"sessionId": sessionID, "recursive": true})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	var records []map[string]interface{}
	if err := json.Unmarshal([]byte(listing), &records); err != nil {
		t.Fatalf("Listing is not JSON: %v", err)
	}
	if len(records) != 2 || records[0]["path"] != "reports" || records[1]["path"] != "reports/q1.txt" {
		t.Fatalf("Unexpected listing: %s", listing)
	}
	if records[1]["visibility"] != "private" {
		t.Errorf("Expected private file, got %v", records[1])
	}

	// Test file download
	local := filepath.Join(t.TempDir(), "q1.txt")
	if _, err := env.client.Call(ctx, "sftp_download_file", map[string]interface{}{
		"sessionId":   sessionID,
		"source":      "reports/q1.txt",
		"destination": local,
	}); err != nil {
		t.Fatalf("Failed to download: %v", err)
	}
	if data, _ := os.ReadFile(local); string(data) != "quarterly numbers" {
		t.Errorf("Downloaded %q", data)
	}

	if _, err := env.client.Call(ctx, "sftp_rename", map[string]interface{}{
		"sessionId": sessionID,
		"path":      "reports/q1.txt",
		"newPath":   "archive/q1.txt",
	}); err == nil {
		t.Error("Expected rename into a missing directory to fail")
	}

	if _, err := env.client.Call(ctx, "sftp_delete_dir", map[string]interface{}{"sessionId": sessionID, "path": "reports"}); err != nil {
		t.Fatalf("Failed to delete directory: %v", err)
	}
	listing, err = env.client.Call(ctx, "sftp_list_contents", map[string]interface{}{"sessionId": sessionID})
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if strings.TrimSpace(listing) != "[]" {
		t.Errorf("Expected empty root, got %s", listing)
	}

	if err := env.client.Disconnect(ctx, sessionID); err != nil {
		t.Fatalf("Failed to disconnect: %v", err)
	}
}

// TestSFTPDirectoryOperations tests uploading and downloading directories
func TestSFTPDirectoryOperations(t *testing.T) {
	env := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sessionID, err := env.client.Connect(ctx, env.connectArgs())
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer env.client.Disconnect(ctx, sessionID)

	// Create a test directory structure
	localDir := t.TempDir()
	files := map[string]string{
		"file1.txt":           "Content of file 1",
		"file2.txt":           "Content of file 2",
		"subdir/subfile1.txt": "Content of subdir file 1",
	}
	for name, content := range files {
		p := filepath.Join(localDir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create test file %s: %v", name, err)
		}
	}

	if _, err := env.client.Call(ctx, "sftp_upload_directory", map[string]interface{}{
		"sessionId":   sessionID,
		"source":      localDir,
		"destination": "tree",
	}); err != nil {
		t.Fatalf("Failed to upload directory: %v", err)
	}

	downloadDir := filepath.Join(t.TempDir(), "copy")
	if _, err := env.client.Call(ctx, "sftp_download_directory", map[string]interface{}{
		"sessionId":   sessionID,
		"source":      "tree",
		"destination": downloadDir,
	}); err != nil {
		t.Fatalf("Failed to download directory: %v", err)
	}

	for name, content := range files {
		data, err := os.ReadFile(filepath.Join(downloadDir, filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("Missing downloaded file %s: %v", name, err)
			continue
		}
		if string(data) != content {
			t.Errorf("File %s: expected %q, got %q", name, content, data)
		}
	}
}

// TestSFTPHostVerification checks that a wrong pinned fingerprint blocks login
func TestSFTPHostVerification(t *testing.T) {
	env := setup(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	args := env.connectArgs()
	args["hostFingerprint"] = "00:11:22:33:44:55:66:77:88:99:aa:bb:cc:dd:ee:ff"
	if _, err := env.client.Connect(ctx, args); err == nil || !strings.Contains(err.Error(), "fingerprint mismatch") {
		t.Errorf("Expected fingerprint mismatch, got %v", err)
	}
}
