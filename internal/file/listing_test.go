package file

import (
	"context"
	"errors"
	"testing"

	"sftp-mcp/internal/session"
	"sftp-mcp/internal/ssh"
	"sftp-mcp/internal/ssh/sshtest"
)

func newTestOperations(t *testing.T, fake *sshtest.FakeConn, cfg ssh.Config) *Operations {
	t.Helper()

	cfg.Host = "example.com"
	cfg.Username = "alice"
	cfg.Password = "pw"
	cfg.Conn = fake

	manager, err := session.NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return NewOperations(manager, nil)
}

func TestListContentsSkipsDotEntries(t *testing.T) {
	const mtime = 1234567890

	fake := sshtest.NewFakeConn()
	fake.Dirs[""] = []ssh.RawEntry{
		{Name: ".", Type: ssh.TypeDirectory},
		{Name: "..", Type: ssh.TypeDirectory},
		{Name: "0", Type: ssh.TypeDirectory, Mtime: mtime},
		{Name: "realdir", Type: ssh.TypeDirectory, Mtime: mtime},
		{Name: "file.txt", Type: ssh.TypeRegular, Size: 20, Mtime: mtime, Permissions: 0777},
	}
	ops := newTestOperations(t, fake, ssh.Config{})

	records, err := ops.ListContents(context.Background(), "", false)
	if err != nil {
		t.Fatalf("ListContents failed: %v", err)
	}

	want := []Record{
		{Path: "0", Type: TypeDir, Timestamp: mtime},
		{Path: "realdir", Type: TypeDir, Timestamp: mtime},
		{Path: "file.txt", Type: TypeFile, Timestamp: mtime, Size: 20, Visibility: Public},
	}
	if len(records) != len(want) {
		t.Fatalf("Expected %d records, got %d: %+v", len(want), len(records), records)
	}
	for i := range want {
		if records[i] != want[i] {
			t.Errorf("Record %d: expected %+v, got %+v", i, want[i], records[i])
		}
	}
	if len(fake.CallsTo("readdir")) != 1 {
		t.Error("Non-recursive listing must not descend into directories")
	}
}

func TestListContentsRecursivePreOrder(t *testing.T) {
	fake := sshtest.NewFakeConn()
	fake.Dirs["docs"] = []ssh.RawEntry{
		{Name: "a", Type: ssh.TypeDirectory},
		{Name: "top.txt", Type: ssh.TypeRegular, Size: 1, Permissions: 0600},
		{Name: "link", Type: ssh.TypeSymlink},
	}
	fake.Dirs["docs/a"] = []ssh.RawEntry{
		{Name: ".", Type: ssh.TypeDirectory},
		{Name: "b", Type: ssh.TypeDirectory},
		{Name: "inner.txt", Type: ssh.TypeRegular, Size: 2, Permissions: 0644},
	}
	fake.Dirs["docs/a/b"] = []ssh.RawEntry{
		{Name: "deep.txt", Type: ssh.TypeRegular, Size: 3},
	}
	ops := newTestOperations(t, fake, ssh.Config{})

	records, err := ops.ListContents(context.Background(), "docs", true)
	if err != nil {
		t.Fatalf("ListContents failed: %v", err)
	}

	want := []string{"docs/a", "docs/a/b", "docs/a/b/deep.txt", "docs/a/inner.txt", "docs/top.txt", "docs/link"}
	if len(records) != len(want) {
		t.Fatalf("Expected %d records, got %d: %+v", len(want), len(records), records)
	}
	for i, p := range want {
		if records[i].Path != p {
			t.Errorf("Record %d: expected path %s, got %s", i, p, records[i].Path)
		}
	}
	if len(fake.CallsTo("readdir")) != 3 {
		t.Errorf("Symlinks must not be descended into, got %d listings", len(fake.CallsTo("readdir")))
	}
}

func TestListContentsWithRoot(t *testing.T) {
	fake := sshtest.NewFakeConn()
	fake.Wd = "/srv"
	fake.Dirs["/srv/data/sub"] = []ssh.RawEntry{
		{Name: "x.txt", Type: ssh.TypeRegular},
	}
	ops := newTestOperations(t, fake, ssh.Config{Root: "/srv/data"})

	records, err := ops.ListContents(context.Background(), "/sub", false)
	if err != nil {
		t.Fatalf("ListContents failed: %v", err)
	}
	if len(records) != 1 || records[0].Path != "/sub/x.txt" {
		t.Errorf("Expected root-relative path /sub/x.txt, got %+v", records)
	}
}

func TestListContentsSubdirectoryNamedLikeRoot(t *testing.T) {
	fake := sshtest.NewFakeConn()
	fake.Dirs["/data/"] = []ssh.RawEntry{
		{Name: "data", Type: ssh.TypeDirectory},
		{Name: "a.txt", Type: ssh.TypeRegular},
	}
	fake.Dirs["/data/data"] = []ssh.RawEntry{
		{Name: "inner.txt", Type: ssh.TypeRegular},
	}
	fake.Files["/data/x.txt"] = []byte("outer")
	fake.Files["/data/data/x.txt"] = []byte("inner")
	ops := newTestOperations(t, fake, ssh.Config{Root: "/data"})
	ctx := context.Background()

	records, err := ops.ListContents(ctx, "/", true)
	if err != nil {
		t.Fatalf("ListContents failed: %v", err)
	}

	want := []string{"/data", "/data/inner.txt", "/a.txt"}
	if len(records) != len(want) {
		t.Fatalf("Expected %d records, got %d: %+v", len(want), len(records), records)
	}
	for i, p := range want {
		if records[i].Path != p {
			t.Errorf("Record %d: expected path %s, got %s", i, p, records[i].Path)
		}
	}

	var listed []string
	for _, c := range fake.CallsTo("readdir") {
		listed = append(listed, c.Path)
	}
	if len(listed) != 2 || listed[0] != "/data/" || listed[1] != "/data/data" {
		t.Errorf("Expected the root and its data subdirectory to be listed once each, got %v", listed)
	}

	resp, err := ops.Read(ctx, "/data/x.txt")
	if err != nil || string(resp.Contents) != "inner" {
		t.Errorf("Read(/data/x.txt) = %q, %v; want the file under the data subdirectory", resp.Contents, err)
	}
}

func TestListContentsMissingDirectory(t *testing.T) {
	fake := sshtest.NewFakeConn()
	ops := newTestOperations(t, fake, ssh.Config{})

	for _, recursive := range []bool{false, true} {
		records, err := ops.ListContents(context.Background(), "missing", recursive)
		if err != nil {
			t.Fatalf("Listing a missing directory should not fail: %v", err)
		}
		if records == nil || len(records) != 0 {
			t.Errorf("Expected an empty listing, got %+v", records)
		}
	}
}

func TestListContentsUnlistableSubdirectory(t *testing.T) {
	fake := sshtest.NewFakeConn()
	fake.Dirs[""] = []ssh.RawEntry{
		{Name: "locked", Type: ssh.TypeDirectory},
		{Name: "after.txt", Type: ssh.TypeRegular},
	}
	ops := newTestOperations(t, fake, ssh.Config{})

	records, err := ops.ListContents(context.Background(), "", true)
	if err != nil {
		t.Fatalf("ListContents failed: %v", err)
	}
	if len(records) != 2 || records[0].Path != "locked" || records[1].Path != "after.txt" {
		t.Errorf("Unexpected records: %+v", records)
	}
}

func TestListContentsConnectionLost(t *testing.T) {
	fake := sshtest.NewFakeConn()
	fake.Dirs[""] = []ssh.RawEntry{{Name: "a", Type: ssh.TypeRegular}}
	ops := newTestOperations(t, fake, ssh.Config{})
	ctx := context.Background()

	if _, err := ops.ListContents(ctx, "", false); err != nil {
		t.Fatalf("ListContents failed: %v", err)
	}

	fake.Drop()
	_, err := ops.ListContents(ctx, "", false)
	var lost *ssh.ConnectionLostError
	if !errors.As(err, &lost) {
		t.Fatalf("Expected ConnectionLostError, got %v", err)
	}
}

func TestListContentsConnectFailure(t *testing.T) {
	fake := sshtest.NewFakeConn()
	fake.LoginResults = []bool{false}
	ops := newTestOperations(t, fake, ssh.Config{})

	_, err := ops.ListContents(context.Background(), "", false)
	var authErr *ssh.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Expected AuthenticationError, got %v", err)
	}
}
