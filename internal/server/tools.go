package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"sftp-mcp/internal/config"
	"sftp-mcp/internal/file"
	"sftp-mcp/internal/security"
	"sftp-mcp/internal/session"
	"sftp-mcp/internal/ssh"
)

// getStringOrEmpty safely converts an interface value to string
// Returns empty string if the value is nil
func getStringOrEmpty(value interface{}) string {
	if value == nil {
		return ""
	}
	if str, ok := value.(string); ok {
		return str
	}
	return ""
}

// getIntOrDefault safely converts an interface value to int
// Returns defaultValue if the value is nil or cannot be converted to int
func getIntOrDefault(value interface{}, defaultValue int) int {
	if value == nil {
		return defaultValue
	}

	switch v := value.(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		// Try to parse string to int, but return default on failure
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}

	return defaultValue
}

// getBool accepts JSON booleans and their string spellings
func getBool(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// HandlerFunc handles one tool call with its decoded arguments
type HandlerFunc func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error)

// Tool represents a tool that can be registered with the MCP server
type Tool struct {
	Name    string
	Opts    []mcp.ToolOption
	Handler HandlerFunc
}

type toolset struct {
	registry *session.Registry
	security *security.Manager
	profiles config.Profiles
	logger   *zap.Logger
}

// operations resolves the session of a call and checks the path policy
// against the absolute server paths
func (ts *toolset) operations(sessionID, op string, modifies bool, paths ...string) (*file.Operations, error) {
	sess, err := ts.registry.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, sessionID)
	}
	resolved := make([]string, len(paths))
	for i, p := range paths {
		resolved[i] = sess.Manager.ServerPath(p)
	}
	if err := ts.security.CheckPath(sess.ID, op, modifies, resolved...); err != nil {
		return nil, err
	}
	return file.NewOperations(sess.Manager, ts.logger.With(zap.String("session", sess.ID))), nil
}

func textResult(text string) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(text), nil
}

func errorResult(prefix string, err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(prefix + ": " + err.Error()), nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func sessionIDOption() mcp.ToolOption {
	return mcp.WithString("sessionId",
		mcp.Required(),
		mcp.Description("The SFTP session identifier"),
	)
}

func pathOption(description string) mcp.ToolOption {
	return mcp.WithString("path",
		mcp.Required(),
		mcp.Description(description),
	)
}

func visibilityOption(required bool) mcp.ToolOption {
	opts := []mcp.PropertyOption{
		mcp.Description("File visibility: public or private"),
		mcp.Enum(file.Public.String(), file.Private.String()),
	}
	if required {
		opts = append(opts, mcp.Required())
	}
	return mcp.WithString("visibility", opts...)
}

func parseConnectArgs(args map[string]interface{}) ssh.ConnectArgs {
	return ssh.ConnectArgs{
		Profile:          getStringOrEmpty(args["profile"]),
		Host:             getStringOrEmpty(args["host"]),
		Port:             getIntOrDefault(args["port"], 0),
		Username:         getStringOrEmpty(args["username"]),
		Password:         getStringOrEmpty(args["password"]),
		PrivateKey:       getStringOrEmpty(args["privateKey"]),
		Passphrase:       getStringOrEmpty(args["passphrase"]),
		UseAgent:         getBool(args["useAgent"]),
		PasswordFallback: getBool(args["passwordFallback"]),
		Root:             getStringOrEmpty(args["root"]),
		HostFingerprint:  getStringOrEmpty(args["hostFingerprint"]),
		Timeout:          getIntOrDefault(args["timeout"], 0),
		PermPublic:       getStringOrEmpty(args["permPublic"]),
		PermPrivate:      getStringOrEmpty(args["permPrivate"]),
		DirectoryPerm:    getStringOrEmpty(args["directoryPerm"]),
		UsePing:          getBool(args["usePingForConnectivityCheck"]),
		Reconnect:        getBool(args["reconnect"]),
	}
}

func (ts *toolset) connect(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	connectArgs := parseConnectArgs(args)

	base := ssh.Config{}
	if connectArgs.Profile != "" {
		profile, err := ts.profiles.Get(connectArgs.Profile)
		if err != nil {
			return errorResult("Connection error", err)
		}
		base = profile
	}

	cfg, err := connectArgs.Apply(base)
	if err != nil {
		return errorResult("Connection error", err)
	}

	// Check security
	if err := ts.security.CheckHost(cfg.Host); err != nil {
		return errorResult("Security error", err)
	}

	manager, err := session.NewManager(cfg, session.WithLogger(ts.logger.Named("manager")))
	if err != nil {
		return errorResult("Connection error", err)
	}
	if err := manager.Connect(ctx); err != nil {
		manager.Close()
		return errorResult("Connection error", err)
	}

	sess := ts.registry.Add(manager)
	ts.logger.Info("session opened", zap.String("session", sess.ID), zap.String("host", sess.Host), zap.String("root", manager.Root()))

	return textResult(fmt.Sprintf("Connected. Session ID: %s\nRoot: %s", sess.ID, manager.Root()))
}

func (ts *toolset) disconnect(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	disconnectArgs := ssh.DisconnectArgs{
		SessionID: getStringOrEmpty(args["sessionId"]),
	}

	if err := ts.registry.Remove(disconnectArgs.SessionID); err != nil {
		return errorResult("Disconnect error", err)
	}
	ts.security.Forget(disconnectArgs.SessionID)

	return textResult("Disconnected session: " + disconnectArgs.SessionID)
}

func (ts *toolset) listSessions(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	sessions := ts.registry.List()
	if len(sessions) == 0 {
		return textResult("No active SFTP sessions")
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	var b strings.Builder
	b.WriteString("Active SFTP Sessions:\n")
	for _, sess := range sessions {
		fmt.Fprintf(&b, "- ID: %s\n", sess.ID)
		fmt.Fprintf(&b, "  Host: %s\n", sess.Host)
		fmt.Fprintf(&b, "  Username: %s\n", sess.Username)
		fmt.Fprintf(&b, "  Root: %s\n", sess.Manager.Root())
		fmt.Fprintf(&b, "  State: %s\n", sess.Manager.State())
		fmt.Fprintf(&b, "  Created: %s\n", sess.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "  Last Activity: %s\n\n", sess.LastActivity.Format(time.RFC3339))
	}

	return textResult(b.String())
}

func (ts *toolset) listContents(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	listArgs := ssh.ListArgs{
		SessionID: getStringOrEmpty(args["sessionId"]),
		Path:      getStringOrEmpty(args["path"]),
		Recursive: getBool(args["recursive"]),
	}

	ops, err := ts.operations(listArgs.SessionID, "list_contents", false, listArgs.Path)
	if err != nil {
		return errorResult("List error", err)
	}

	records, err := ops.ListContents(ctx, listArgs.Path, listArgs.Recursive)
	if err != nil {
		return errorResult("List error", err)
	}
	if records == nil {
		records = []file.Record{}
	}

	return jsonResult(records)
}

func (ts *toolset) read(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	pathArgs := ssh.PathArgs{
		SessionID: getStringOrEmpty(args["sessionId"]),
		Path:      getStringOrEmpty(args["path"]),
	}

	ops, err := ts.operations(pathArgs.SessionID, "read", false, pathArgs.Path)
	if err != nil {
		return errorResult("Read error", err)
	}

	resp, err := ops.Read(ctx, pathArgs.Path)
	if err != nil {
		return errorResult("Read error", err)
	}
	if !utf8.Valid(resp.Contents) {
		return mcp.NewToolResultError(fmt.Sprintf("Read error: %s is a binary file, use sftp_download_file", pathArgs.Path)), nil
	}

	return textResult(string(resp.Contents))
}

func (ts *toolset) write(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	writeArgs := ssh.WriteArgs{
		SessionID:  getStringOrEmpty(args["sessionId"]),
		Path:       getStringOrEmpty(args["path"]),
		Contents:   getStringOrEmpty(args["contents"]),
		Visibility: getStringOrEmpty(args["visibility"]),
	}

	var opts file.Options
	if writeArgs.Visibility != "" {
		visibility, err := file.ParseVisibility(writeArgs.Visibility)
		if err != nil {
			return errorResult("Write error", err)
		}
		opts.Visibility = visibility
	}

	ops, err := ts.operations(writeArgs.SessionID, "write", true, writeArgs.Path)
	if err != nil {
		return errorResult("Write error", err)
	}

	resp, err := ops.Write(ctx, writeArgs.Path, []byte(writeArgs.Contents), opts)
	if err != nil {
		return errorResult("Write error", err)
	}

	return textResult(fmt.Sprintf("Wrote %d bytes to %s", len(writeArgs.Contents), resp.Path))
}

func (ts *toolset) pathTool(op string, modifies bool, fn func(ctx context.Context, ops *file.Operations, p string) (string, error)) HandlerFunc {
	return func(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
		pathArgs := ssh.PathArgs{
			SessionID: getStringOrEmpty(args["sessionId"]),
			Path:      getStringOrEmpty(args["path"]),
		}

		ops, err := ts.operations(pathArgs.SessionID, op, modifies, pathArgs.Path)
		if err != nil {
			return errorResult("Operation error", err)
		}

		text, err := fn(ctx, ops, pathArgs.Path)
		if err != nil {
			return errorResult("Operation error", err)
		}
		return textResult(text)
	}
}

func (ts *toolset) rename(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	renameArgs := ssh.RenameArgs{
		SessionID: getStringOrEmpty(args["sessionId"]),
		Path:      getStringOrEmpty(args["path"]),
		NewPath:   getStringOrEmpty(args["newPath"]),
	}

	ops, err := ts.operations(renameArgs.SessionID, "rename", true, renameArgs.Path, renameArgs.NewPath)
	if err != nil {
		return errorResult("Rename error", err)
	}

	if err := ops.Rename(ctx, renameArgs.Path, renameArgs.NewPath); err != nil {
		return errorResult("Rename error", err)
	}

	return textResult(fmt.Sprintf("Renamed %s to %s", renameArgs.Path, renameArgs.NewPath))
}

func (ts *toolset) getMetadata(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	pathArgs := ssh.PathArgs{
		SessionID: getStringOrEmpty(args["sessionId"]),
		Path:      getStringOrEmpty(args["path"]),
	}

	ops, err := ts.operations(pathArgs.SessionID, "get_metadata", false, pathArgs.Path)
	if err != nil {
		return errorResult("Metadata error", err)
	}

	record, err := ops.GetMetadata(ctx, pathArgs.Path)
	if err != nil {
		return errorResult("Metadata error", err)
	}

	return jsonResult(record)
}

func (ts *toolset) setVisibility(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	visibilityArgs := ssh.VisibilityArgs{
		SessionID:  getStringOrEmpty(args["sessionId"]),
		Path:       getStringOrEmpty(args["path"]),
		Visibility: getStringOrEmpty(args["visibility"]),
	}

	visibility, err := file.ParseVisibility(visibilityArgs.Visibility)
	if err != nil {
		return errorResult("Visibility error", err)
	}

	ops, err := ts.operations(visibilityArgs.SessionID, "set_visibility", true, visibilityArgs.Path)
	if err != nil {
		return errorResult("Visibility error", err)
	}

	resp, err := ops.SetVisibility(ctx, visibilityArgs.Path, visibility)
	if err != nil {
		return errorResult("Visibility error", err)
	}

	return textResult(fmt.Sprintf("Visibility of %s set to %s", resp.Path, resp.Visibility))
}

func parseTransferArgs(args map[string]interface{}) ssh.TransferArgs {
	return ssh.TransferArgs{
		SessionID:   getStringOrEmpty(args["sessionId"]),
		Source:      getStringOrEmpty(args["source"]),
		Destination: getStringOrEmpty(args["destination"]),
	}
}

func (ts *toolset) uploadFile(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	transferArgs := parseTransferArgs(args)

	ops, err := ts.operations(transferArgs.SessionID, "upload", true, transferArgs.Destination)
	if err != nil {
		return errorResult("Upload error", err)
	}

	if _, err := ops.Upload(ctx, transferArgs.Source, transferArgs.Destination, file.Options{}); err != nil {
		return errorResult("Upload error", err)
	}

	return textResult("File uploaded successfully")
}

func (ts *toolset) downloadFile(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	transferArgs := parseTransferArgs(args)

	ops, err := ts.operations(transferArgs.SessionID, "download", false, transferArgs.Source)
	if err != nil {
		return errorResult("Download error", err)
	}

	if err := ops.Download(ctx, transferArgs.Source, transferArgs.Destination); err != nil {
		return errorResult("Download error", err)
	}

	return textResult("File downloaded successfully")
}

func (ts *toolset) uploadDirectory(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	transferArgs := parseTransferArgs(args)

	ops, err := ts.operations(transferArgs.SessionID, "upload_directory", true, transferArgs.Destination)
	if err != nil {
		return errorResult("Directory upload error", err)
	}

	n, err := ops.UploadDir(ctx, transferArgs.Source, transferArgs.Destination)
	if err != nil {
		return errorResult("Directory upload error", err)
	}

	return textResult(fmt.Sprintf("Directory uploaded successfully (%d files)", n))
}

func (ts *toolset) downloadDirectory(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	transferArgs := parseTransferArgs(args)

	ops, err := ts.operations(transferArgs.SessionID, "download_directory", false, transferArgs.Source)
	if err != nil {
		return errorResult("Directory download error", err)
	}

	n, err := ops.DownloadDir(ctx, transferArgs.Source, transferArgs.Destination)
	if err != nil {
		return errorResult("Directory download error", err)
	}

	return textResult(fmt.Sprintf("Directory downloaded successfully (%d files)", n))
}

func (ts *toolset) hostFingerprint(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	host := getStringOrEmpty(args["host"])
	port := getIntOrDefault(args["port"], ssh.DefaultPort)
	timeout := time.Duration(getIntOrDefault(args["timeout"], int(ssh.DefaultTimeout/time.Second))) * time.Second

	if err := ts.security.CheckHost(host); err != nil {
		return errorResult("Security error", err)
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	key, err := ssh.ScanHostKey(ctx, addr, timeout)
	if err != nil {
		return errorResult("Fingerprint error", err)
	}

	fp, err := ssh.Fingerprint(key.Marshal())
	if err != nil {
		return errorResult("Fingerprint error", err)
	}

	return textResult(fmt.Sprintf("%s %s", key.Type(), fp))
}

// GetTools returns all available tools for the SFTP MCP server
func GetTools(registry *session.Registry, securityManager *security.Manager, profiles config.Profiles, logger *zap.Logger) []Tool {
	if logger == nil {
		logger = zap.NewNop()
	}
	ts := &toolset{
		registry: registry,
		security: securityManager,
		profiles: profiles,
		logger:   logger,
	}

	return []Tool{
		{
			Name: "sftp_connect",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Open an SFTP session. Connection options override those of the named profile."),
				mcp.WithString("profile", mcp.Description("Name of a configured connection profile")),
				mcp.WithString("host", mcp.Description("The hostname or IP address of the SFTP server")),
				mcp.WithNumber("port", mcp.DefaultNumber(ssh.DefaultPort), mcp.Description("The port number of the SFTP server")),
				mcp.WithString("username", mcp.Description("The username to authenticate with")),
				mcp.WithString("password", mcp.Description("Password for authentication, also used as key passphrase when none is given")),
				mcp.WithString("privateKey", mcp.Description("Private key text or path to the private key file")),
				mcp.WithString("passphrase", mcp.Description("Passphrase of an encrypted private key")),
				mcp.WithBoolean("useAgent", mcp.Description("Authenticate with the local SSH agent")),
				mcp.WithBoolean("passwordFallback", mcp.Description("Retry a rejected key or agent login once with the password")),
				mcp.WithString("root", mcp.Description("Directory all paths are resolved against")),
				mcp.WithString("hostFingerprint", mcp.Description("Expected MD5 fingerprint of the host key, as returned by sftp_host_fingerprint")),
				mcp.WithNumber("timeout", mcp.DefaultNumber(10), mcp.Description("Connection timeout in seconds")),
				mcp.WithString("permPublic", mcp.Description("Octal mode applied for public visibility (default 0744)")),
				mcp.WithString("permPrivate", mcp.Description("Octal mode applied for private visibility (default 0700)")),
				mcp.WithString("directoryPerm", mcp.Description("Octal mode for created directories (default 0744)")),
				mcp.WithBoolean("usePingForConnectivityCheck", mcp.Description("Probe the server on every liveness check")),
				mcp.WithBoolean("reconnect", mcp.Description("Reconnect transparently when the connection dropped")),
			},
			Handler: ts.connect,
		},
		{
			Name: "sftp_disconnect",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Close an SFTP session"),
				sessionIDOption(),
			},
			Handler: ts.disconnect,
		},
		{
			Name: "sftp_list_sessions",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("List active SFTP sessions"),
			},
			Handler: ts.listSessions,
		},
		{
			Name: "sftp_list_contents",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("List a directory as JSON records with path, type, timestamp, size and visibility"),
				sessionIDOption(),
				mcp.WithString("path", mcp.DefaultString(""), mcp.Description("Directory path to list, empty for the session root")),
				mcp.WithBoolean("recursive", mcp.Description("Descend into subdirectories")),
			},
			Handler: ts.listContents,
		},
		{
			Name: "sftp_read",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Read a text file"),
				sessionIDOption(),
				pathOption("File path to read"),
			},
			Handler: ts.read,
		},
		{
			Name: "sftp_write",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Write a file, creating parent directories and replacing existing contents"),
				sessionIDOption(),
				pathOption("File path to write"),
				mcp.WithString("contents", mcp.Required(), mcp.Description("File contents")),
				visibilityOption(false),
			},
			Handler: ts.write,
		},
		{
			Name: "sftp_delete",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Delete a file"),
				sessionIDOption(),
				pathOption("File path to delete"),
			},
			Handler: ts.pathTool("delete", true, func(ctx context.Context, ops *file.Operations, p string) (string, error) {
				return "Deleted " + p, ops.Delete(ctx, p)
			}),
		},
		{
			Name: "sftp_delete_dir",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Delete a directory and everything below it"),
				sessionIDOption(),
				pathOption("Directory path to delete"),
			},
			Handler: ts.pathTool("delete_dir", true, func(ctx context.Context, ops *file.Operations, p string) (string, error) {
				return "Deleted directory " + p, ops.DeleteDir(ctx, p)
			}),
		},
		{
			Name: "sftp_rename",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Move or rename a file"),
				sessionIDOption(),
				pathOption("Current path"),
				mcp.WithString("newPath", mcp.Required(), mcp.Description("New path")),
			},
			Handler: ts.rename,
		},
		{
			Name: "sftp_create_dir",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Create a directory and any missing parents"),
				sessionIDOption(),
				pathOption("Directory path to create"),
			},
			Handler: ts.pathTool("create_dir", true, func(ctx context.Context, ops *file.Operations, p string) (string, error) {
				resp, err := ops.CreateDir(ctx, p)
				return "Created directory " + resp.Path, err
			}),
		},
		{
			Name: "sftp_has",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Check whether a path exists"),
				sessionIDOption(),
				pathOption("Path to check"),
			},
			Handler: ts.pathTool("has", false, func(ctx context.Context, ops *file.Operations, p string) (string, error) {
				ok, err := ops.Has(ctx, p)
				return strconv.FormatBool(ok), err
			}),
		},
		{
			Name: "sftp_get_metadata",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Get the metadata record of a file or directory"),
				sessionIDOption(),
				pathOption("Path to inspect"),
			},
			Handler: ts.getMetadata,
		},
		{
			Name: "sftp_get_mimetype",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Detect the media type of a file from its contents and extension"),
				sessionIDOption(),
				pathOption("File path to inspect"),
			},
			Handler: ts.pathTool("get_mimetype", false, func(ctx context.Context, ops *file.Operations, p string) (string, error) {
				return ops.GetMimetype(ctx, p)
			}),
		},
		{
			Name: "sftp_set_visibility",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Change the visibility of a file or directory"),
				sessionIDOption(),
				pathOption("Path to change"),
				visibilityOption(true),
			},
			Handler: ts.setVisibility,
		},
		{
			Name: "sftp_upload_file",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Upload a local file to the SFTP server"),
				sessionIDOption(),
				mcp.WithString("source", mcp.Required(), mcp.Description("Local source file path")),
				mcp.WithString("destination", mcp.Required(), mcp.Description("Remote destination file path")),
			},
			Handler: ts.uploadFile,
		},
		{
			Name: "sftp_download_file",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Download a file from the SFTP server"),
				sessionIDOption(),
				mcp.WithString("source", mcp.Required(), mcp.Description("Remote source file path")),
				mcp.WithString("destination", mcp.Required(), mcp.Description("Local destination file path")),
			},
			Handler: ts.downloadFile,
		},
		{
			Name: "sftp_upload_directory",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Upload a local directory tree to the SFTP server"),
				sessionIDOption(),
				mcp.WithString("source", mcp.Required(), mcp.Description("Source directory path on local machine")),
				mcp.WithString("destination", mcp.Required(), mcp.Description("Destination directory path on remote server")),
			},
			Handler: ts.uploadDirectory,
		},
		{
			Name: "sftp_download_directory",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Download a directory tree from the SFTP server"),
				sessionIDOption(),
				mcp.WithString("source", mcp.Required(), mcp.Description("Source directory path on remote server")),
				mcp.WithString("destination", mcp.Required(), mcp.Description("Destination directory path on local machine")),
			},
			Handler: ts.downloadDirectory,
		},
		{
			Name: "sftp_host_fingerprint",
			Opts: []mcp.ToolOption{
				mcp.WithDescription("Fetch the MD5 fingerprint of a server host key without logging in"),
				mcp.WithString("host", mcp.Required(), mcp.Description("The hostname or IP address of the SFTP server")),
				mcp.WithNumber("port", mcp.DefaultNumber(ssh.DefaultPort), mcp.Description("The port number of the SFTP server")),
				mcp.WithNumber("timeout", mcp.DefaultNumber(10), mcp.Description("Connection timeout in seconds")),
			},
			Handler: ts.hostFingerprint,
		},
	}
}
