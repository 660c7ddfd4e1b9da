package file

import (
	"encoding/json"
	"os"
	"strings"

	"sftp-mcp/internal/ssh"
)

// Record types.
const (
	TypeFile = "file"
	TypeDir  = "dir"
)

// Visibility classifies permission bits as public or private.
type Visibility int

const (
	VisibilityUnset Visibility = iota
	Public
	Private
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Visibility) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ParseVisibility accepts "public" or "private", ignoring case.
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public":
		return Public, nil
	case "private":
		return Private, nil
	default:
		return VisibilityUnset, &ssh.ConfigurationError{Option: "visibility", Reason: "unknown visibility " + s}
	}
}

// Mode returns the permission bits applied for v.
func (v Visibility) Mode(cfg ssh.Config) os.FileMode {
	if v == Public {
		return cfg.PermPublic
	}
	return cfg.PermPrivate
}

// visibilityOf reports Public when any bit of mask is set in perms.
func visibilityOf(perms uint32, mask os.FileMode) Visibility {
	if perms&uint32(mask.Perm()) != 0 {
		return Public
	}
	return Private
}

// Record is the normalized description of one filesystem entry. Directories
// carry neither size nor visibility.
type Record struct {
	Path       string
	Type       string
	Timestamp  int64
	Size       int64
	Visibility Visibility
}

// IsDir reports whether r describes a directory.
func (r Record) IsDir() bool {
	return r.Type == TypeDir
}

type recordJSON struct {
	Path       string `json:"path"`
	Type       string `json:"type"`
	Timestamp  int64  `json:"timestamp"`
	Size       *int64 `json:"size,omitempty"`
	Visibility string `json:"visibility,omitempty"`
}

// MarshalJSON omits size and visibility for directories.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{Path: r.Path, Type: r.Type, Timestamp: r.Timestamp}
	if !r.IsDir() {
		size := r.Size
		out.Size = &size
		out.Visibility = r.Visibility.String()
	}
	return json.Marshal(out)
}

// FromListing maps a directory listing entry. Visibility is derived with the
// listing mask.
func FromListing(path string, e ssh.RawEntry, listingMask os.FileMode) Record {
	return toRecord(path, e, listingMask)
}

// FromStat maps a single stat result. Visibility is derived with the configured
// public permission mask.
func FromStat(path string, e ssh.RawEntry, permPublic os.FileMode) Record {
	return toRecord(path, e, permPublic)
}

func toRecord(path string, e ssh.RawEntry, mask os.FileMode) Record {
	r := Record{
		Path:      path,
		Timestamp: e.Mtime,
	}
	if e.IsDir() {
		r.Type = TypeDir
		return r
	}

	r.Type = TypeFile
	r.Size = max(e.Size, 0)
	r.Visibility = visibilityOf(e.Permissions, mask)
	return r
}
