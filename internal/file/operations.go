package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"sftp-mcp/internal/metrics"
	"sftp-mcp/internal/pathutil"
	"sftp-mcp/internal/session"
	"sftp-mcp/internal/ssh"
)

// Operations performs filesystem operations against one session. Paths are
// resolved against the session root.
type Operations struct {
	manager *session.Manager
	logger  *zap.Logger
}

// NewOperations creates a new file operations handler
func NewOperations(manager *session.Manager, logger *zap.Logger) *Operations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Operations{
		manager: manager,
		logger:  logger,
	}
}

// Options are the optional settings of a write.
type Options struct {
	Visibility Visibility
}

// Response is the success payload of a write, read or directory operation.
type Response struct {
	Path       string     `json:"path"`
	Contents   []byte     `json:"contents,omitempty"`
	Visibility Visibility `json:"visibility,omitempty"`
}

// Stream is an open remote file. The caller must close Reader.
type Stream struct {
	Path   string
	Reader io.ReadCloser
}

// run executes fn on the live connection. Transport errors are reported as
// *ssh.OperationError, or *ssh.ConnectionLostError when the connection died.
func (o *Operations) run(ctx context.Context, op, p string, fn func(conn ssh.Conn) error) error {
	start := time.Now()
	err := o.exec(ctx, op, p, fn)
	metrics.RecordOperation(op, err, time.Since(start))
	if err != nil {
		o.logger.Debug("operation failed", zap.String("op", op), zap.String("path", p), zap.Error(err))
	}
	return err
}

func (o *Operations) exec(ctx context.Context, op, p string, fn func(conn ssh.Conn) error) error {
	conn, err := o.manager.Conn(ctx, op)
	if err != nil {
		return err
	}

	err = fn(conn)
	if err == nil {
		return nil
	}

	err = o.manager.CheckLost(op, err)
	var (
		lost  *ssh.ConnectionLostError
		opErr *ssh.OperationError
	)
	if errors.As(err, &lost) || errors.As(err, &opErr) {
		return err
	}
	return &ssh.OperationError{Op: op, Path: p, Err: err}
}

// Write creates or replaces a file.
func (o *Operations) Write(ctx context.Context, p string, contents []byte, opts Options) (Response, error) {
	resp, err := o.WriteStream(ctx, p, bytes.NewReader(contents), opts)
	if err != nil {
		return Response{}, err
	}
	resp.Contents = contents
	return resp, nil
}

// WriteStream creates or replaces a file with the contents of r. Missing parent
// directories are created first.
func (o *Operations) WriteStream(ctx context.Context, p string, r io.Reader, opts Options) (Response, error) {
	full := o.manager.Prefix(p)
	cfg := o.manager.Config()

	err := o.run(ctx, "write", p, func(conn ssh.Conn) error {
		if dir := pathutil.Dirname(full); dir != "" && dir != pathutil.Separator {
			if err := conn.Mkdir(dir, cfg.DirectoryPerm, true); err != nil {
				return err
			}
		}

		counter := &countingReader{r: r}
		if err := conn.Put(full, counter); err != nil {
			return err
		}
		metrics.RecordBytes("write", counter.n)

		if opts.Visibility != VisibilityUnset {
			return conn.Chmod(full, opts.Visibility.Mode(cfg))
		}
		return nil
	})
	if err != nil {
		return Response{}, err
	}

	return Response{Path: p, Visibility: opts.Visibility}, nil
}

// Update replaces the contents of a file. It behaves like Write.
func (o *Operations) Update(ctx context.Context, p string, contents []byte, opts Options) (Response, error) {
	return o.Write(ctx, p, contents, opts)
}

// UpdateStream replaces the contents of a file from r. It behaves like WriteStream.
func (o *Operations) UpdateStream(ctx context.Context, p string, r io.Reader, opts Options) (Response, error) {
	return o.WriteStream(ctx, p, r, opts)
}

// Read returns the contents of a file.
func (o *Operations) Read(ctx context.Context, p string) (Response, error) {
	var contents []byte
	err := o.run(ctx, "read", p, func(conn ssh.Conn) error {
		rc, err := conn.Open(o.manager.Prefix(p))
		if err != nil {
			return err
		}
		defer rc.Close()

		contents, err = io.ReadAll(rc)
		metrics.RecordBytes("read", int64(len(contents)))
		return err
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Path: p, Contents: contents}, nil
}

// ReadStream spools a file into a local temporary file and returns it rewound.
// The temporary file is removed when the stream is closed.
func (o *Operations) ReadStream(ctx context.Context, p string) (Stream, error) {
	var spool *os.File
	err := o.run(ctx, "read", p, func(conn ssh.Conn) error {
		rc, err := conn.Open(o.manager.Prefix(p))
		if err != nil {
			return err
		}
		defer rc.Close()

		spool, err = os.CreateTemp("", "sftp-mcp-*")
		if err != nil {
			return err
		}
		n, err := io.Copy(spool, rc)
		metrics.RecordBytes("read", n)
		if err == nil {
			_, err = spool.Seek(0, io.SeekStart)
		}
		if err != nil {
			spool.Close()
			os.Remove(spool.Name())
			spool = nil
		}
		return err
	})
	if err != nil {
		return Stream{}, err
	}
	return Stream{Path: p, Reader: &tempFile{File: spool}}, nil
}

// Delete removes a file.
func (o *Operations) Delete(ctx context.Context, p string) error {
	return o.run(ctx, "delete", p, func(conn ssh.Conn) error {
		return conn.Remove(o.manager.Prefix(p))
	})
}

// DeleteDir removes a directory and everything below it.
func (o *Operations) DeleteDir(ctx context.Context, dir string) error {
	return o.run(ctx, "delete_dir", dir, func(conn ssh.Conn) error {
		return conn.RemoveAll(o.manager.Prefix(dir))
	})
}

// Rename moves a file or directory.
func (o *Operations) Rename(ctx context.Context, p, newPath string) error {
	return o.run(ctx, "rename", p, func(conn ssh.Conn) error {
		return conn.Rename(o.manager.Prefix(p), o.manager.Prefix(newPath))
	})
}

// CreateDir creates a directory and its missing parents with the configured
// directory permissions.
func (o *Operations) CreateDir(ctx context.Context, dir string) (Response, error) {
	err := o.run(ctx, "create_dir", dir, func(conn ssh.Conn) error {
		return conn.Mkdir(o.manager.Prefix(dir), o.manager.Config().DirectoryPerm, true)
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Path: dir}, nil
}

// Has reports whether p exists.
func (o *Operations) Has(ctx context.Context, p string) (bool, error) {
	_, err := o.GetMetadata(ctx, p)
	if errors.Is(err, ssh.ErrOperationFailed) {
		return false, nil
	}
	return err == nil, err
}

// GetMetadata returns the record of a single path.
func (o *Operations) GetMetadata(ctx context.Context, p string) (Record, error) {
	var record Record
	err := o.run(ctx, "stat", p, func(conn ssh.Conn) error {
		entry, err := conn.Stat(o.manager.Prefix(p))
		if err != nil {
			return err
		}
		record = FromStat(p, entry, o.manager.Config().PermPublic)
		return nil
	})
	return record, err
}

// GetSize returns the size of a file. Directories have no size.
func (o *Operations) GetSize(ctx context.Context, p string) (int64, error) {
	record, err := o.GetMetadata(ctx, p)
	if err != nil {
		return 0, err
	}
	if record.IsDir() {
		return 0, &ssh.OperationError{Op: "size", Path: p, Err: fmt.Errorf("%s is a directory", p)}
	}
	return record.Size, nil
}

// GetTimestamp returns the modification time of p in Unix seconds.
func (o *Operations) GetTimestamp(ctx context.Context, p string) (int64, error) {
	record, err := o.GetMetadata(ctx, p)
	if err != nil {
		return 0, err
	}
	return record.Timestamp, nil
}

// GetVisibility classifies the permissions of p against the public mask. Unlike
// the record, this works for directories too.
func (o *Operations) GetVisibility(ctx context.Context, p string) (Visibility, error) {
	var v Visibility
	err := o.run(ctx, "stat", p, func(conn ssh.Conn) error {
		entry, err := conn.Stat(o.manager.Prefix(p))
		if err != nil {
			return err
		}
		v = visibilityOf(entry.Permissions, o.manager.Config().PermPublic)
		return nil
	})
	return v, err
}

// GetMimetype detects the media type of a file from its contents, falling back
// to the file extension.
func (o *Operations) GetMimetype(ctx context.Context, p string) (string, error) {
	resp, err := o.Read(ctx, p)
	if err != nil {
		return "", err
	}
	return detectMimetype(p, resp.Contents), nil
}

func detectMimetype(p string, contents []byte) string {
	sniffed := mediaType(http.DetectContentType(contents))
	if sniffed != "application/octet-stream" && sniffed != "text/plain" {
		return sniffed
	}
	if byExt := mediaType(mime.TypeByExtension(path.Ext(p))); byExt != "" {
		return byExt
	}
	if len(contents) == 0 {
		return "text/plain"
	}
	return sniffed
}

func mediaType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.TrimSpace(t)
}

// SetVisibility applies the permission bits configured for v.
func (o *Operations) SetVisibility(ctx context.Context, p string, v Visibility) (Response, error) {
	if v != Public && v != Private {
		return Response{}, &ssh.ConfigurationError{Option: "visibility", Reason: fmt.Sprintf("unknown visibility %d", int(v))}
	}

	err := o.run(ctx, "set_visibility", p, func(conn ssh.Conn) error {
		return conn.Chmod(o.manager.Prefix(p), v.Mode(o.manager.Config()))
	})
	if err != nil {
		return Response{}, err
	}
	return Response{Path: p, Visibility: v}, nil
}

// Upload copies a local file to the server.
func (o *Operations) Upload(ctx context.Context, localPath, remotePath string, opts Options) (Response, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return Response{}, fmt.Errorf("failed to open local file: %w", err)
	}
	defer f.Close()

	return o.WriteStream(ctx, remotePath, f, opts)
}

// Download copies a remote file to the local machine.
func (o *Operations) Download(ctx context.Context, remotePath, localPath string) error {
	stream, err := o.ReadStream(ctx, remotePath)
	if err != nil {
		return err
	}
	defer stream.Reader.Close()

	if dir := filepath.Dir(localPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create local directory: %w", err)
		}
	}

	local, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("failed to create local file: %w", err)
	}
	if _, err := io.Copy(local, stream.Reader); err != nil {
		local.Close()
		return fmt.Errorf("failed to write local file: %w", err)
	}
	return local.Close()
}

// UploadDir copies a local directory tree to the server and returns the number
// of files written.
func (o *Operations) UploadDir(ctx context.Context, localDir, remoteDir string) (int, error) {
	count := 0
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		target := remoteDir
		if rel != "." {
			target = pathutil.Join(remoteDir, filepath.ToSlash(rel))
		}

		if d.IsDir() {
			_, err := o.CreateDir(ctx, target)
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if _, err := o.Upload(ctx, p, target, Options{}); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// DownloadDir copies a remote directory tree to the local machine and returns the
// number of files written.
func (o *Operations) DownloadDir(ctx context.Context, remoteDir, localDir string) (int, error) {
	records, err := o.ListContents(ctx, remoteDir, true)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(localDir, 0755); err != nil {
		return 0, fmt.Errorf("failed to create local directory: %w", err)
	}

	base := filepath.Clean(localDir)
	count := 0
	for _, r := range records {
		rel := strings.TrimPrefix(strings.TrimPrefix(r.Path, remoteDir), pathutil.Separator)
		target := filepath.Join(base, filepath.FromSlash(rel))
		if !withinDir(base, target) {
			return count, &ssh.OperationError{Op: "download", Path: r.Path, Err: fmt.Errorf("entry resolves outside %s", base)}
		}

		if r.IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return count, fmt.Errorf("failed to create local directory: %w", err)
			}
			continue
		}
		if err := o.Download(ctx, r.Path, target); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// withinDir reports whether target lies strictly below base.
func withinDir(base, target string) bool {
	rel, err := filepath.Rel(base, target)
	if err != nil || rel == "." || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// tempFile removes itself on Close.
type tempFile struct {
	*os.File
}

func (t *tempFile) Close() error {
	err := t.File.Close()
	if rerr := os.Remove(t.File.Name()); rerr != nil && err == nil {
		err = rerr
	}
	return err
}
