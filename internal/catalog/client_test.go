package catalog

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// fakeDrive is a scriptable driveAPI.
type fakeDrive struct {
	listErr  error
	getErr   error
	files    []*drive.File
	listReqs int
	getReqs  int
	lastQ    string
}

func (f *fakeDrive) List(ctx context.Context, query string, pageSize int64) ([]*drive.File, error) {
	f.listReqs++
	f.lastQ = query
	if f.listErr != nil {
		err := f.listErr
		f.listErr = nil // fail only once
		return nil, err
	}
	return f.files, nil
}

func (f *fakeDrive) Get(ctx context.Context, fileID string) (*drive.File, error) {
	f.getReqs++
	if f.getErr != nil {
		err := f.getErr
		f.getErr = nil
		return nil, err
	}
	for _, file := range f.files {
		if file.Id == fileID {
			return file, nil
		}
	}
	return nil, &googleapi.Error{Code: 404}
}

func (f *fakeDrive) About(ctx context.Context) error { return nil }

func newTestClient(fake *fakeDrive) (*Client, *int) {
	connects := 0
	c := New(Config{FolderID: "folder-1"})
	c.connect = func(ctx context.Context) (driveAPI, error) {
		connects++
		return fake, nil
	}
	return c, &connects
}

func TestList_MapsFilesAndQuery(t *testing.T) {
	fake := &fakeDrive{files: []*drive.File{
		{Id: "f1", Name: "standup.m4a", MimeType: "audio/m4a", Size: 42 << 20, ModifiedTime: "2025-02-10T08:00:00Z"},
		{Id: "f2", Name: "allhands.mp4", MimeType: "video/mp4", Size: 90 << 20, ModifiedTime: "2025-02-09T08:00:00Z"},
	}}
	c, _ := newTestClient(fake)

	got, err := c.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d files, want 2", len(got))
	}
	if got[0].ID != "f1" || got[0].TypeLabel != "Audio (M4A)" || got[0].Size != "42.0 MB" {
		t.Errorf("summary[0] = %+v", got[0])
	}
	if !strings.Contains(fake.lastQ, "'folder-1' in parents") || !strings.Contains(fake.lastQ, "trashed = false") {
		t.Errorf("query = %q", fake.lastQ)
	}
}

func TestList_NoFolderConfigured(t *testing.T) {
	c, _ := newTestClient(&fakeDrive{})
	c.folderID = ""

	_, err := c.List(context.Background(), "")
	if KindOf(err) != InvalidQuery {
		t.Fatalf("err = %v, want InvalidQuery", err)
	}
}

func TestList_RetriesOnceAfterAuthFailure(t *testing.T) {
	fake := &fakeDrive{
		listErr: &googleapi.Error{Code: 401},
		files:   []*drive.File{{Id: "f1", Name: "a.m4a", MimeType: "audio/m4a"}},
	}
	c, connects := newTestClient(fake)

	got, err := c.List(context.Background(), "")
	if err != nil {
		t.Fatalf("List after reauth: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d files, want 1", len(got))
	}
	if fake.listReqs != 2 {
		t.Errorf("list requests = %d, want 2 (original + one retry)", fake.listReqs)
	}
	if *connects != 2 {
		t.Errorf("connects = %d, want 2 (initial + forced reauth)", *connects)
	}
}

func TestList_AuthRetryFailsTerminally(t *testing.T) {
	fake := &fakeDrive{listErr: &googleapi.Error{Code: 401}}
	c := New(Config{FolderID: "folder-1"})
	calls := 0
	c.connect = func(ctx context.Context) (driveAPI, error) {
		calls++
		if calls == 1 {
			return fake, nil
		}
		return nil, fmt.Errorf("credential source unavailable")
	}

	_, err := c.List(context.Background(), "")
	if KindOf(err) != AuthExpired {
		t.Fatalf("err = %v, want AuthExpired", err)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{404, NotFound},
		{403, PermissionDenied},
		{400, InvalidQuery},
		{500, Unknown},
	}
	for _, tt := range tests {
		fake := &fakeDrive{listErr: &googleapi.Error{Code: tt.code}}
		// A retried 401 is covered separately; these must not retry.
		c, _ := newTestClient(fake)
		_, err := c.List(context.Background(), "")
		if KindOf(err) != tt.want {
			t.Errorf("status %d: kind = %v, want %v", tt.code, KindOf(err), tt.want)
		}
		if fake.listReqs != 1 {
			t.Errorf("status %d: list requests = %d, want 1", tt.code, fake.listReqs)
		}
	}
}

func TestHandle_RebuildsWhenStale(t *testing.T) {
	fake := &fakeDrive{files: []*drive.File{}}
	c, connects := newTestClient(fake)

	base := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	now := base
	c.now = func() time.Time { return now }

	if _, err := c.List(context.Background(), ""); err != nil {
		t.Fatalf("first list: %v", err)
	}
	if *connects != 1 {
		t.Fatalf("connects = %d, want 1", *connects)
	}

	// Within the validity window: no rebuild.
	now = base.Add(23 * time.Hour)
	if _, err := c.List(context.Background(), ""); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if *connects != 1 {
		t.Errorf("connects = %d after fresh reuse, want 1", *connects)
	}

	// Past the window: rebuild before serving.
	now = base.Add(25 * time.Hour)
	if _, err := c.List(context.Background(), ""); err != nil {
		t.Fatalf("third list: %v", err)
	}
	if *connects != 2 {
		t.Errorf("connects = %d after staleness, want 2", *connects)
	}
}

func TestGet_NotFound(t *testing.T) {
	c, _ := newTestClient(&fakeDrive{})
	_, err := c.Get(context.Background(), "missing")
	if KindOf(err) != NotFound {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestClose_ClearsCredentials(t *testing.T) {
	creds := []byte(`{"type":"service_account"}`)
	c := New(Config{Credentials: creds, FolderID: "folder-1"})
	c.Close()
	for _, b := range creds {
		if b != 0 {
			t.Fatal("credential bytes not zeroed on Close")
		}
	}
}
