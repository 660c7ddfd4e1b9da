package pathutil

import (
	"strings"
	"testing"

	"pgregory.net/rapid"
)

func TestNormalizeRoot(t *testing.T) {
	tests := []struct {
		root string
		want string
	}{
		{"", ""},
		{"/", "/"},
		{"/srv/data", "/srv/data/"},
		{"/srv/data/", "/srv/data/"},
		{"/srv/data///", "/srv/data/"},
		{"//srv//data", "/srv/data/"},
		{"relative", "relative/"},
	}

	for _, tt := range tests {
		if got := NormalizeRoot(tt.root); got != tt.want {
			t.Errorf("NormalizeRoot(%q) = %q, want %q", tt.root, got, tt.want)
		}
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		root string
		path string
		want string
	}{
		{"/srv/", "file.txt", "/srv/file.txt"},
		{"/srv", "/file.txt", "/srv/file.txt"},
		{"/srv/", "///nested//file.txt", "/srv/nested/file.txt"},
		{"/srv/", "/srv/file.txt", "/srv/srv/file.txt"},
		{"/data", "/data", "/data/data"},
		{"/data/", "data/x.txt", "/data/data/x.txt"},
		{"/srv/", "", "/srv/"},
		{"/", "etc/passwd", "/etc/passwd"},
		{"/", "/etc/passwd", "/etc/passwd"},
		{"", "/dir/file", "dir/file"},
		{"", "dir", "dir"},
	}

	for _, tt := range tests {
		if got := Prefix(tt.root, tt.path); got != tt.want {
			t.Errorf("Prefix(%q, %q) = %q, want %q", tt.root, tt.path, got, tt.want)
		}
	}
}

func TestPrefixStripsRootOnce(t *testing.T) {
	segment := rapid.StringMatching(`[a-z0-9/]{0,12}`)

	rapid.Check(t, func(t *rapid.T) {
		root := segment.Draw(t, "root")
		path := segment.Draw(t, "path")

		once := Prefix(root, path)
		if strings.Contains(once, "//") {
			t.Fatalf("Prefix(%q, %q) = %q contains a doubled separator", root, path, once)
		}

		base := NormalizeRoot(root)
		if !strings.HasPrefix(once, base) {
			t.Fatalf("Prefix(%q, %q) = %q does not start with %q", root, path, once, base)
		}
		if again := Prefix(root, once[len(base):]); again != once {
			t.Fatalf("re-prefixing the relative part of %q gave %q", once, again)
		}
	})
}

func TestJoin(t *testing.T) {
	if got := Join("", "file.txt"); got != "file.txt" {
		t.Errorf("Join with empty dir = %q", got)
	}
	if got := Join("dir", "0"); got != "dir/0" {
		t.Errorf("Join(dir, 0) = %q", got)
	}
	if got := Join("dir/", "file"); got != "dir/file" {
		t.Errorf("Join(dir/, file) = %q", got)
	}
}

func TestDirname(t *testing.T) {
	tests := map[string]string{
		"file.txt":     "",
		"dir/file.txt": "dir",
		"a/b/c":        "a/b",
		"/top":         "/",
		"dir/sub/":     "dir",
	}
	for in, want := range tests {
		if got := Dirname(in); got != want {
			t.Errorf("Dirname(%q) = %q, want %q", in, got, want)
		}
	}
}
