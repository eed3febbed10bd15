// Package catalog lists and fetches candidate media files from the Google
// Drive folder the bot watches, and enforces the maximum-size policy.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"github.com/kalambet/meetsum/internal/audit"
)

const (
	listPageSize = 25

	// A connection older than this is considered stale and is rebuilt
	// before serving the next request.
	reinitAfter = 24 * time.Hour
)

// driveAPI is the slice of the Drive surface the client uses.
// It exists so tests can substitute a fake store.
type driveAPI interface {
	List(ctx context.Context, query string, pageSize int64) ([]*drive.File, error)
	Get(ctx context.Context, fileID string) (*drive.File, error)
	About(ctx context.Context) error
}

// Config configures a catalog Client.
type Config struct {
	// Credentials is the opaque service-account credential blob, resolved
	// by the config package's provider chain.
	Credentials []byte

	// FolderID is the default folder listed when no folder is requested.
	FolderID string

	// Audit receives catalog audit events; may be nil.
	Audit *audit.Recorder
}

// Client is the file catalog client. The underlying Drive handle is
// (re)initialized lazily under a staleness check; concurrent
// initializations may race and the last writer wins, which is harmless
// because a handle is stateless once built.
type Client struct {
	folderID string
	creds    []byte
	audit    *audit.Recorder

	connect func(ctx context.Context) (driveAPI, error)
	now     func() time.Time

	mu          sync.Mutex
	api         driveAPI
	connectedAt time.Time
}

// New creates a Client. No connection is made until the first request.
func New(cfg Config) *Client {
	c := &Client{
		folderID: cfg.FolderID,
		creds:    cfg.Credentials,
		audit:    cfg.Audit,
		now:      time.Now,
	}
	c.connect = c.dialDrive
	return c
}

func (c *Client) dialDrive(ctx context.Context) (driveAPI, error) {
	svc, err := drive.NewService(ctx,
		option.WithCredentialsJSON(c.creds),
		option.WithScopes(drive.DriveReadonlyScope),
	)
	if err != nil {
		return nil, err
	}
	return realDrive{svc: svc}, nil
}

// handle returns a fresh-enough Drive handle, rebuilding it when the
// current one is absent or older than reinitAfter.
func (c *Client) handle(ctx context.Context) (driveAPI, error) {
	c.mu.Lock()
	api, at := c.api, c.connectedAt
	c.mu.Unlock()

	if api != nil && c.now().Sub(at) <= reinitAfter {
		return api, nil
	}
	return c.reconnect(ctx)
}

// reconnect builds a new handle unconditionally and installs it.
func (c *Client) reconnect(ctx context.Context) (driveAPI, error) {
	logrus.Info("initializing drive catalog connection")
	api, err := c.connect(ctx)
	if err != nil {
		c.record("initialization_failed", err.Error())
		return nil, &Error{Kind: Unknown, Op: "connect", Err: err}
	}

	c.mu.Lock()
	c.api = api
	c.connectedAt = c.now()
	c.mu.Unlock()

	c.record("initialization_success", "drive catalog connection established")
	return api, nil
}

// List returns the newest-modified-first media files in the folder,
// capped at one page. An empty folderID falls back to the configured
// default folder.
func (c *Client) List(ctx context.Context, folderID string) ([]FileSummary, error) {
	if folderID == "" {
		folderID = c.folderID
	}
	if folderID == "" {
		return nil, &Error{Kind: InvalidQuery, Op: "list", Err: fmt.Errorf("no folder configured")}
	}

	files, err := c.withAuthRetry(ctx, func(api driveAPI) ([]*drive.File, error) {
		return api.List(ctx, buildQuery(folderID), listPageSize)
	})
	if err != nil {
		c.record("files_list_failed", err.Error())
		return nil, err
	}

	summaries := make([]FileSummary, len(files))
	for i, f := range files {
		summaries[i] = toSummary(f)
	}

	c.record("files_listed", fmt.Sprintf("found %d files", len(summaries)))
	return summaries, nil
}

// Get fetches the metadata of a single file.
func (c *Client) Get(ctx context.Context, fileID string) (FileSummary, error) {
	files, err := c.withAuthRetry(ctx, func(api driveAPI) ([]*drive.File, error) {
		f, err := api.Get(ctx, fileID)
		if err != nil {
			return nil, err
		}
		return []*drive.File{f}, nil
	})
	if err != nil {
		c.record("file_access_failed", fmt.Sprintf("file %s: %v", fileID, err))
		return FileSummary{}, err
	}

	summary := toSummary(files[0])
	c.record("file_accessed", "file accessed: "+summary.Name)
	return summary, nil
}

// withAuthRetry runs the request once; if the store reports an
// authorization failure it forces a reconnect and retries exactly once.
func (c *Client) withAuthRetry(ctx context.Context, do func(driveAPI) ([]*drive.File, error)) ([]*drive.File, error) {
	api, err := c.handle(ctx)
	if err != nil {
		return nil, err
	}

	files, err := do(api)
	if err == nil {
		return files, nil
	}
	if statusCode(err) != 401 {
		return nil, classify("request", err)
	}

	logrus.Warn("drive reported an authorization failure, reinitializing and retrying once")
	api, rerr := c.reconnect(ctx)
	if rerr != nil {
		return nil, &Error{Kind: AuthExpired, Op: "reauth", Err: rerr}
	}

	files, err = do(api)
	if err != nil {
		return nil, classify("request", err)
	}
	return files, nil
}

// Health probes the store with a minimal request.
func (c *Client) Health(ctx context.Context) error {
	api, err := c.handle(ctx)
	if err != nil {
		return err
	}
	if err := api.About(ctx); err != nil {
		return classify("health", err)
	}
	return nil
}

// Close clears the credential blob and drops the connection handle.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.creds {
		c.creds[i] = 0
	}
	c.creds = nil
	c.api = nil
	c.connectedAt = time.Time{}
	c.record("service_shutdown", "catalog client closed, credentials cleared")
}

func (c *Client) record(event, details string) {
	if c.audit != nil {
		c.audit.Record(event, details)
	}
}

func buildQuery(folderID string) string {
	mimes := []string{"audio/m4a", "audio/mpeg", "audio/mp3", "video/mp4", "audio/mp4"}
	parts := make([]string, len(mimes))
	for i, m := range mimes {
		parts[i] = fmt.Sprintf("mimeType = '%s'", m)
	}
	return fmt.Sprintf("'%s' in parents and trashed = false and (%s)",
		folderID, strings.Join(parts, " or "))
}

// realDrive adapts *drive.Service to the driveAPI interface.
type realDrive struct {
	svc *drive.Service
}

const fileFields = "id, name, mimeType, size, createdTime, modifiedTime, webViewLink"

func (r realDrive) List(ctx context.Context, query string, pageSize int64) ([]*drive.File, error) {
	resp, err := r.svc.Files.List().
		Q(query).
		Fields("files(" + fileFields + ")").
		OrderBy("modifiedTime desc").
		PageSize(pageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Files, nil
}

func (r realDrive) Get(ctx context.Context, fileID string) (*drive.File, error) {
	return r.svc.Files.Get(fileID).Fields(fileFields).Context(ctx).Do()
}

func (r realDrive) About(ctx context.Context) error {
	_, err := r.svc.About.Get().Fields("user").Context(ctx).Do()
	return err
}
