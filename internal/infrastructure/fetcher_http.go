package infrastructure

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/yourusername/qpaper-go/internal/domain"
)

// sniffLen matches the amount of data mimetype inspects by default
const sniffLen = 3072

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// HTTPFetcherOption configures an HTTPFetcher
type HTTPFetcherOption func(*HTTPFetcher)

// WithHTTPClient replaces the HTTP client used for every attempt
func WithHTTPClient(client *http.Client) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

// WithSleep replaces the backoff sleep
func WithSleep(sleep SleepFunc) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.sleep = sleep
	}
}

// WithLockDir serializes fetches to the same destination through lock files in dir
func WithLockDir(dir string) HTTPFetcherOption {
	return func(f *HTTPFetcher) {
		f.lockDir = dir
	}
}

// HTTPFetcher implements domain.Fetcher over HTTP(S)
type HTTPFetcher struct {
	client  *http.Client
	backoff time.Duration
	lockDir string
	sleep   SleepFunc
	logger  *zap.Logger
}

// NewHTTPFetcher creates a fetcher that waits backoff between attempts
func NewHTTPFetcher(backoff time.Duration, logger *zap.Logger, opts ...HTTPFetcherOption) *HTTPFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}

	f := &HTTPFetcher{
		client:  newHTTPClient(),
		backoff: backoff,
		sleep:   SleepContext,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &http.Client{Transport: transport}
}

// Fetch retrieves req.URL into req.Destination, retrying retryable failures
func (f *HTTPFetcher) Fetch(ctx context.Context, req domain.FetchRequest) domain.FetchOutcome {
	var outcome domain.FetchOutcome

	if err := req.Validate(); err != nil {
		outcome.Err = err
		return outcome
	}

	unlock, err := f.lock(ctx, req)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	defer unlock()

	for attempt := 1; attempt <= req.MaxAttempts; attempt++ {
		if attempt > 1 {
			f.logger.Info("Retrying fetch",
				zap.String("url", req.URL),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", req.MaxAttempts),
				zap.Duration("backoff", f.backoff))

			if err := f.sleep(ctx, f.backoff); err != nil {
				outcome.Err = &domain.TransportError{URL: req.URL, Err: err}
				return outcome
			}
			outcome.Backoffs++
		}

		outcome.Attempts = attempt
		size, err := f.attempt(ctx, req)
		if err == nil {
			outcome.Path = req.Destination
			outcome.ByteSize = size
			outcome.Err = nil

			f.logger.Info("Fetched artifact",
				zap.String("url", req.URL),
				zap.String("path", req.Destination),
				zap.Int64("bytes", size),
				zap.Int("attempts", attempt))
			return outcome
		}

		outcome.Err = err
		f.logger.Warn("Fetch attempt failed",
			zap.String("url", req.URL),
			zap.Int("attempt", attempt),
			zap.String("reason", string(domain.ReasonOf(err))),
			zap.Error(err))

		if !domain.IsRetryable(err) {
			break
		}
	}

	f.logger.Error("Fetch failed",
		zap.String("url", req.URL),
		zap.String("path", req.Destination),
		zap.Int("attempts", outcome.Attempts),
		zap.String("reason", string(outcome.Reason())),
		zap.Error(outcome.Err))

	return outcome
}

// attempt performs one GET and, when every check passes, commits the body to the destination
func (f *HTTPFetcher) attempt(ctx context.Context, req domain.FetchRequest) (int64, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return 0, &domain.RequestError{Err: err}
	}
	if req.UserAgent != "" {
		httpReq.Header.Set("User-Agent", req.UserAgent)
	}
	if req.ExpectedMIME != "" {
		httpReq.Header.Set("Accept", req.ExpectedMIME+", */*;q=0.8")
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return 0, &domain.TransportError{URL: req.URL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, &domain.StatusError{URL: req.URL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body := bufio.NewReaderSize(resp.Body, sniffLen)
	if err := checkContentType(req, resp, body); err != nil {
		return 0, err
	}

	if resp.ContentLength >= 0 && resp.ContentLength < req.MinSize {
		return 0, &domain.SizeError{Size: resp.ContentLength, MinSize: req.MinSize}
	}

	return writeArtifact(req, body)
}

// checkContentType accepts the response when the declared type, the URL suffix,
// or the sniffed leading bytes indicate the expected artifact
func checkContentType(req domain.FetchRequest, resp *http.Response, body *bufio.Reader) error {
	if req.ExpectedMIME == "" && req.ExpectedSuffix == "" {
		return nil
	}

	declared := resp.Header.Get("Content-Type")
	if declaredMatches(declared, req.ExpectedMIME) {
		return nil
	}
	if suffixMatches(req.URL, req.ExpectedSuffix) {
		return nil
	}
	if resp.Request != nil && resp.Request.URL != nil && suffixMatches(resp.Request.URL.String(), req.ExpectedSuffix) {
		return nil
	}

	peek, err := body.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return &domain.TransportError{URL: req.URL, Err: err}
	}

	detected := mimetype.Detect(peek)
	if req.ExpectedMIME != "" && detected.Is(req.ExpectedMIME) {
		return nil
	}

	return &domain.ContentTypeError{
		URL:         req.URL,
		ContentType: declared,
		Detected:    detected.String(),
		Expected:    req.ExpectedMIME,
	}
}

func declaredMatches(declared, expected string) bool {
	if declared == "" || expected == "" {
		return false
	}
	token := expected
	if i := strings.LastIndex(expected, "/"); i >= 0 {
		token = expected[i+1:]
	}
	return strings.Contains(strings.ToLower(declared), strings.ToLower(token))
}

func suffixMatches(rawURL, suffix string) bool {
	if suffix == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), strings.ToLower(suffix))
}

// writeArtifact streams body into a temporary sibling of the destination and
// renames it into place only when it reaches the minimum size.
// The temporary file is removed on every other path.
func writeArtifact(req domain.FetchRequest, body io.Reader) (int64, error) {
	dir := filepath.Dir(req.Destination)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, &domain.FilesystemError{Op: "mkdir", Path: dir, Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(req.Destination)+".*.part")
	if err != nil {
		return 0, &domain.FilesystemError{Op: "create", Path: dir, Err: err}
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	src := &trackingReader{r: body}
	n, err := io.Copy(tmp, src)
	if err != nil {
		if src.err != nil {
			return n, &domain.TransportError{URL: req.URL, Err: src.err}
		}
		return n, &domain.FilesystemError{Op: "write", Path: tmpName, Err: err}
	}

	if n < req.MinSize {
		return n, &domain.SizeError{Size: n, MinSize: req.MinSize}
	}

	if err := tmp.Sync(); err != nil {
		return n, &domain.FilesystemError{Op: "sync", Path: tmpName, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return n, &domain.FilesystemError{Op: "close", Path: tmpName, Err: err}
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return n, &domain.FilesystemError{Op: "chmod", Path: tmpName, Err: err}
	}
	if err := os.Rename(tmpName, req.Destination); err != nil {
		return n, &domain.FilesystemError{Op: "rename", Path: req.Destination, Err: err}
	}

	committed = true
	return n, nil
}

// trackingReader remembers the first read error so copy failures can be attributed
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}

// lock takes an advisory lock for the destination so concurrent fetches of the same path never interleave
func (f *HTTPFetcher) lock(ctx context.Context, req domain.FetchRequest) (func(), error) {
	if f.lockDir == "" {
		return func() {}, nil
	}

	if err := os.MkdirAll(f.lockDir, 0755); err != nil {
		return nil, &domain.FilesystemError{Op: "mkdir", Path: f.lockDir, Err: err}
	}

	abs, err := filepath.Abs(req.Destination)
	if err != nil {
		abs = req.Destination
	}
	sum := sha256.Sum256([]byte(abs))
	lockPath := filepath.Join(f.lockDir, hex.EncodeToString(sum[:12])+".lock")

	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.TransportError{URL: req.URL, Err: ctx.Err()}
		}
		return nil, &domain.FilesystemError{Op: "lock", Path: lockPath, Err: err}
	}
	if !locked {
		return nil, &domain.FilesystemError{Op: "lock", Path: lockPath, Err: fmt.Errorf("lock not acquired")}
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			f.logger.Warn("Failed to release destination lock", zap.String("lock", lockPath), zap.Error(err))
		}
	}, nil
}

// SleepContext waits for d, returning early with ctx.Err() when ctx is done
func SleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
