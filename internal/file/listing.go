package file

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"sftp-mcp/internal/metrics"
	"sftp-mcp/internal/pathutil"
	"sftp-mcp/internal/ssh"
)

type listFrame struct {
	dir     string
	entries []ssh.RawEntry
}

// ListContents lists dir, descending into subdirectories when recursive is set.
// Records come in pre-order: a directory precedes its descendants. A directory
// that cannot be listed contributes no records; only a lost connection or a
// failed connect is reported as an error.
func (o *Operations) ListContents(ctx context.Context, dir string, recursive bool) ([]Record, error) {
	start := time.Now()
	records, err := o.listContents(ctx, dir, recursive)
	metrics.RecordOperation("list", err, time.Since(start))
	metrics.RecordListedEntries(len(records))
	return records, err
}

func (o *Operations) listContents(ctx context.Context, dir string, recursive bool) ([]Record, error) {
	conn, err := o.manager.Conn(ctx, "list")
	if err != nil {
		return nil, err
	}
	mask := o.manager.Config().ListingPublicMask

	entries, err := o.readDir(conn, dir)
	if err != nil {
		return nil, err
	}

	records := []Record{}
	stack := []*listFrame{{dir: dir, entries: entries}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if len(top.entries) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		entry := top.entries[0]
		top.entries = top.entries[1:]
		if entry.Name == "." || entry.Name == ".." {
			continue
		}

		p := pathutil.Join(top.dir, entry.Name)
		records = append(records, FromListing(p, entry, mask))

		if recursive && entry.IsDir() {
			children, err := o.readDir(conn, p)
			if err != nil {
				return records, err
			}
			stack = append(stack, &listFrame{dir: p, entries: children})
		}
	}

	return records, nil
}

// readDir returns the raw entries of dir, or none when it cannot be listed.
func (o *Operations) readDir(conn ssh.Conn, dir string) ([]ssh.RawEntry, error) {
	entries, err := conn.ReadDir(o.manager.Prefix(dir))
	if err == nil {
		return entries, nil
	}

	err = o.manager.CheckLost("list", err)
	var lost *ssh.ConnectionLostError
	if errors.As(err, &lost) {
		return nil, err
	}

	o.logger.Debug("directory not listable", zap.String("path", dir), zap.Error(err))
	return nil, nil
}
