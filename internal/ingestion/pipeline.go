// Package ingestion moves finished broadcast recordings from the media
// server's local storage into durable object storage.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gallos-live/backend/internal/models"
)

var (
	// ErrSourceNotFound means the media server answered but has no such recording.
	ErrSourceNotFound = errors.New("recording source not found")
	// ErrSourceUnavailable means the media server could not be reached or errored.
	ErrSourceUnavailable = errors.New("recording source unavailable")
)

const (
	// keyNamespace prefixes every archival key.
	keyNamespace = "recordings"
	// keyFragmentLen bounds how much of the publisher key appears in the
	// archival key. Object names end up in public URLs, so the full secret
	// must never be embedded.
	keyFragmentLen = 12
	keyExtension   = ".mp4"
	contentType    = "video/mp4"
	// timestampLayout has second resolution; combined with the key fragment it
	// makes archival keys unique per artifact.
	timestampLayout = "20060102_150405"
)

// KeyResolver resolves a stream key to its holder. It is the same lookup the
// publish authenticator uses, but capability and active flags are deliberately
// not re-checked here: a recording made with a key that was valid at record
// start still gets archived even if the account was deactivated afterwards.
type KeyResolver interface {
	GetByStreamKey(ctx context.Context, key string) (*models.User, error)
}

// ObjectStore is the archival storage surface the pipeline writes to.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
}

// ArchiveRequest describes one recording to archive. StorageKey may be empty,
// in which case it is derived from the publisher key and the current time;
// callers that retry should derive it once up front so retries re-upload under
// the same key.
type ArchiveRequest struct {
	SourcePath   string
	PublisherKey string
	StorageKey   string
}

// ArchiveResult is the outcome of a successful archive.
type ArchiveResult struct {
	StorageKey     string `json:"storage_key"`
	PublicURL      string `json:"public_url"`
	FileSize       int64  `json:"file_size"`
	PublisherEmail string `json:"publisher_email,omitempty"`
	Warning        string `json:"warning,omitempty"`
}

// Pipeline fetches a finished recording from the media server and uploads it
// to the archival object store. It performs no internal retries; a failed run
// leaves nothing behind and the whole operation is safe to re-invoke.
type Pipeline struct {
	resolver  KeyResolver
	store     ObjectStore
	client    *http.Client
	sourceURL string
	logger    *zap.Logger
	now       func() time.Time
}

// NewPipeline creates an ingestion pipeline. sourceURL is the HTTP base where
// the media server exposes finished recordings; fetchTimeout bounds the
// download and should be minutes-scale since recordings can be large.
func NewPipeline(resolver KeyResolver, store ObjectStore, sourceURL string, fetchTimeout time.Duration, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		resolver:  resolver,
		store:     store,
		client:    &http.Client{Timeout: fetchTimeout},
		sourceURL: strings.TrimRight(sourceURL, "/"),
		logger:    logger,
		now:       time.Now,
	}
}

// DeriveStorageKey builds the archival key for a recording: namespace prefix,
// a bounded fragment of the publisher key, and a second-resolution timestamp.
func DeriveStorageKey(publisherKey string, ts time.Time) string {
	fragment := publisherKey
	if len(fragment) > keyFragmentLen {
		fragment = fragment[:keyFragmentLen]
	}
	if fragment == "" {
		fragment = "unattributed"
	}
	return fmt.Sprintf("%s/%s_%s%s", keyNamespace, fragment, ts.Format(timestampLayout), keyExtension)
}

// Ingest archives one recording: resolve the publisher, fetch the bytes from
// the media server, upload them under the archival key, and report the public
// URL. An unknown publisher key degrades to a warning on the result rather
// than a failure; a fetch or upload failure aborts with no partial archive.
func (p *Pipeline) Ingest(ctx context.Context, req ArchiveRequest) (*ArchiveResult, error) {
	result := &ArchiveResult{StorageKey: req.StorageKey}
	if result.StorageKey == "" {
		result.StorageKey = DeriveStorageKey(req.PublisherKey, p.now())
	}

	user, err := p.resolver.GetByStreamKey(ctx, req.PublisherKey)
	if err != nil {
		return nil, fmt.Errorf("resolve publisher: %w", err)
	}
	if user != nil {
		result.PublisherEmail = user.Email
	} else {
		result.Warning = "recording could not be attributed to a publisher"
		p.logger.Warn("archiving unattributed recording", zap.String("storage_key", result.StorageKey))
	}

	body, size, err := p.fetch(ctx, req.SourcePath)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	// Chunked upstream responses report no Content-Length; count the bytes
	// as they stream so the recorded size is always real.
	counted := &countingReader{r: body}
	url, err := p.store.Put(ctx, result.StorageKey, contentType, counted, size)
	if err != nil {
		return nil, fmt.Errorf("archive upload: %w", err)
	}
	if size < 0 {
		size = counted.n
	}
	result.PublicURL = url
	result.FileSize = size

	p.logger.Info("recording archived",
		zap.String("storage_key", result.StorageKey),
		zap.String("public_url", result.PublicURL),
		zap.Int64("file_size", result.FileSize),
		zap.String("publisher_email", result.PublisherEmail),
	)
	return result, nil
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

// fetch downloads the recording from the media server. Only the filename
// component of sourcePath is trusted; any directory segments the notifier sent
// are stripped.
func (p *Pipeline) fetch(ctx context.Context, sourcePath string) (io.ReadCloser, int64, error) {
	filename := path.Base(strings.ReplaceAll(sourcePath, "\\", "/"))
	// path.Base leaves a trailing ".." intact, so it must be rejected
	// explicitly or the request escapes the recordings directory.
	if filename == "." || filename == ".." || filename == "/" || filename == "" {
		return nil, 0, fmt.Errorf("%w: unusable source path", ErrSourceNotFound)
	}
	url := p.sourceURL + "/" + filename

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, resp.ContentLength, nil
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, 0, fmt.Errorf("%w: %s", ErrSourceNotFound, filename)
	default:
		resp.Body.Close()
		return nil, 0, fmt.Errorf("%w: status %d fetching %s", ErrSourceUnavailable, resp.StatusCode, filename)
	}
}
