package ingestion

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/gallos-live/backend/internal/models"
)

type resolverFunc func(ctx context.Context, key string) (*models.User, error)

func (f resolverFunc) GetByStreamKey(ctx context.Context, key string) (*models.User, error) {
	return f(ctx, key)
}

func knownPublisher(email string) resolverFunc {
	return func(_ context.Context, key string) (*models.User, error) {
		if key == "" {
			return nil, nil
		}
		return &models.User{ID: uuid.New(), Email: email, StreamKey: key}, nil
	}
}

func noPublisher(_ context.Context, _ string) (*models.User, error) {
	return nil, nil
}

// memoryObjectStore captures uploads.
type memoryObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newMemoryObjectStore() *memoryObjectStore {
	return &memoryObjectStore{objects: make(map[string][]byte)}
}

func (s *memoryObjectStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPut {
		return "", errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.objects[key] = data
	return "https://media.example.com/" + key, nil
}

func (s *memoryObjectStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func recordingServer(t *testing.T, files map[string]string) (*httptest.Server, *[]string) {
	t.Helper()
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		name := strings.TrimPrefix(r.URL.Path, "/")
		content, ok := files[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(content))
	}))
	t.Cleanup(srv.Close)
	return srv, &requested
}

func TestDeriveStorageKey(t *testing.T) {
	ts := time.Date(2026, 8, 27, 15, 4, 5, 0, time.UTC)

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"short key", "abc123", "recordings/abc123_20260827_150405.mp4"},
		{"long key truncated", "0123456789abcdef0123456789abcdef", "recordings/0123456789ab_20260827_150405.mp4"},
		{"empty key", "", "recordings/unattributed_20260827_150405.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveStorageKey(tt.key, ts); got != tt.want {
				t.Fatalf("DeriveStorageKey(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestIngestArchivesRecording(t *testing.T) {
	srv, _ := recordingServer(t, map[string]string{"show.mp4": "fake mp4 bytes"})
	store := newMemoryObjectStore()
	pipeline := NewPipeline(knownPublisher("admin@x.pe"), store, srv.URL, time.Minute, nil)

	result, err := pipeline.Ingest(context.Background(), ArchiveRequest{
		SourcePath:   "/var/recordings/show.mp4",
		PublisherKey: "abc123",
	})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if !strings.HasPrefix(result.StorageKey, "recordings/abc123_") {
		t.Fatalf("unexpected storage key %s", result.StorageKey)
	}
	if result.PublicURL != "https://media.example.com/"+result.StorageKey {
		t.Fatalf("unexpected public url %s", result.PublicURL)
	}
	if result.FileSize != int64(len("fake mp4 bytes")) {
		t.Fatalf("unexpected file size %d", result.FileSize)
	}
	if result.PublisherEmail != "admin@x.pe" {
		t.Fatalf("unexpected publisher %s", result.PublisherEmail)
	}
	if result.Warning != "" {
		t.Fatalf("unexpected warning %q", result.Warning)
	}
	if got := string(store.objects[result.StorageKey]); got != "fake mp4 bytes" {
		t.Fatalf("stored bytes mismatch: %q", got)
	}
}

func TestIngestHonorsPresetStorageKey(t *testing.T) {
	srv, _ := recordingServer(t, map[string]string{"show.mp4": "x"})
	store := newMemoryObjectStore()
	pipeline := NewPipeline(knownPublisher("admin@x.pe"), store, srv.URL, time.Minute, nil)

	result, err := pipeline.Ingest(context.Background(), ArchiveRequest{
		SourcePath:   "show.mp4",
		PublisherKey: "abc123",
		StorageKey:   "recordings/abc123_20260827_150405.mp4",
	})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if result.StorageKey != "recordings/abc123_20260827_150405.mp4" {
		t.Fatalf("expected preset key preserved, got %s", result.StorageKey)
	}
}

func TestIngestUnknownPublisherWarns(t *testing.T) {
	srv, _ := recordingServer(t, map[string]string{"orphan.mp4": "x"})
	store := newMemoryObjectStore()
	pipeline := NewPipeline(resolverFunc(noPublisher), store, srv.URL, time.Minute, nil)

	result, err := pipeline.Ingest(context.Background(), ArchiveRequest{
		SourcePath:   "orphan.mp4",
		PublisherKey: "revoked-key",
	})
	if err != nil {
		t.Fatalf("expected archive despite unknown publisher, got %v", err)
	}
	if result.Warning == "" {
		t.Fatal("expected attribution warning")
	}
	if result.PublisherEmail != "" {
		t.Fatalf("expected empty publisher email, got %s", result.PublisherEmail)
	}
	if store.count() != 1 {
		t.Fatalf("expected upload, got %d objects", store.count())
	}
}

func TestIngestMissingSource(t *testing.T) {
	srv, _ := recordingServer(t, nil)
	store := newMemoryObjectStore()
	pipeline := NewPipeline(knownPublisher("admin@x.pe"), store, srv.URL, time.Minute, nil)

	_, err := pipeline.Ingest(context.Background(), ArchiveRequest{
		SourcePath:   "missing.mp4",
		PublisherKey: "abc123",
	})
	if !errors.Is(err, ErrSourceNotFound) {
		t.Fatalf("expected ErrSourceNotFound, got %v", err)
	}
	if store.count() != 0 {
		t.Fatal("no upload should happen when the source is missing")
	}
}

func TestIngestUnreachableSource(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refuse all connections
	store := newMemoryObjectStore()
	pipeline := NewPipeline(knownPublisher("admin@x.pe"), store, srv.URL, time.Second, nil)

	_, err := pipeline.Ingest(context.Background(), ArchiveRequest{
		SourcePath:   "show.mp4",
		PublisherKey: "abc123",
	})
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
	if store.count() != 0 {
		t.Fatal("no upload should happen when the source is down")
	}
}

func TestIngestStripsTraversalFromSourcePath(t *testing.T) {
	srv, requested := recordingServer(t, map[string]string{"passwd": "x"})
	store := newMemoryObjectStore()
	pipeline := NewPipeline(knownPublisher("admin@x.pe"), store, srv.URL, time.Minute, nil)

	if _, err := pipeline.Ingest(context.Background(), ArchiveRequest{
		SourcePath:   "../../etc/passwd",
		PublisherKey: "abc123",
	}); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if len(*requested) != 1 || (*requested)[0] != "/passwd" {
		t.Fatalf("expected only the filename to be fetched, got %v", *requested)
	}

	if _, err := pipeline.Ingest(context.Background(), ArchiveRequest{
		SourcePath:   `..\..\windows\passwd`,
		PublisherKey: "abc123",
	}); err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if last := (*requested)[len(*requested)-1]; last != "/passwd" {
		t.Fatalf("expected backslash segments stripped, got %s", last)
	}
}

func TestIngestRejectsBareTraversalPath(t *testing.T) {
	srv, requested := recordingServer(t, map[string]string{"show.mp4": "x"})
	store := newMemoryObjectStore()
	pipeline := NewPipeline(knownPublisher("admin@x.pe"), store, srv.URL, time.Minute, nil)

	for _, src := range []string{"show/..", "..", `recordings\..`, ".", ""} {
		_, err := pipeline.Ingest(context.Background(), ArchiveRequest{
			SourcePath:   src,
			PublisherKey: "abc123",
		})
		if !errors.Is(err, ErrSourceNotFound) {
			t.Fatalf("source path %q: expected ErrSourceNotFound, got %v", src, err)
		}
	}
	if len(*requested) != 0 {
		t.Fatalf("no upstream request should be made for traversal paths, got %v", *requested)
	}
	if store.count() != 0 {
		t.Fatal("no upload should happen for traversal paths")
	}
}

func TestIngestCountsBytesWhenSourceIsChunked(t *testing.T) {
	const content = "part one part two"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing mid-body forces chunked encoding, so the response
		// carries no Content-Length.
		w.Write([]byte("part one "))
		w.(http.Flusher).Flush()
		w.Write([]byte("part two"))
	}))
	t.Cleanup(srv.Close)
	store := newMemoryObjectStore()
	pipeline := NewPipeline(knownPublisher("admin@x.pe"), store, srv.URL, time.Minute, nil)

	result, err := pipeline.Ingest(context.Background(), ArchiveRequest{
		SourcePath:   "show.mp4",
		PublisherKey: "abc123",
	})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}
	if result.FileSize != int64(len(content)) {
		t.Fatalf("expected counted size %d, got %d", len(content), result.FileSize)
	}
	if got := string(store.objects[result.StorageKey]); got != content {
		t.Fatalf("stored bytes mismatch: %q", got)
	}
}

func TestIngestUploadFailure(t *testing.T) {
	srv, _ := recordingServer(t, map[string]string{"show.mp4": "x"})
	store := newMemoryObjectStore()
	store.failPut = true
	pipeline := NewPipeline(knownPublisher("admin@x.pe"), store, srv.URL, time.Minute, nil)

	if _, err := pipeline.Ingest(context.Background(), ArchiveRequest{
		SourcePath:   "show.mp4",
		PublisherKey: "abc123",
	}); err == nil {
		t.Fatal("expected upload failure to propagate")
	}
}
