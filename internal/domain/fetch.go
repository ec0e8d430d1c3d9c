package domain

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// FailureReason classifies why a fetch did not produce an artifact
type FailureReason string

const (
	ReasonTransport      FailureReason = "transport"       // network, DNS, timeout
	ReasonStatus         FailureReason = "status"          // non-2xx response
	ReasonContentType    FailureReason = "content_type"    // not the expected artifact type
	ReasonTooSmall       FailureReason = "too_small"       // truncated download or error page
	ReasonFilesystem     FailureReason = "filesystem"      // local create/write/rename failed
	ReasonInvalidRequest FailureReason = "invalid_request" // malformed FetchRequest
)

// FetchRequest describes one artifact to retrieve.
// It is passed by value and never modified by a Fetcher.
type FetchRequest struct {
	URL            string        `json:"url" validate:"required,url"`
	Destination    string        `json:"destination" validate:"required"`
	MaxAttempts    int           `json:"max_attempts" validate:"min=1"`
	Timeout        time.Duration `json:"timeout" validate:"gt=0"`
	MinSize        int64         `json:"min_size" validate:"gte=0"`
	ExpectedSuffix string        `json:"expected_suffix,omitempty"`
	ExpectedMIME   string        `json:"expected_mime,omitempty"`
	UserAgent      string        `json:"user_agent,omitempty"`
}

// NewRequest builds a FetchRequest for url and destination using the configured limits
func (c FetchConfig) NewRequest(rawURL, destination string) FetchRequest {
	return FetchRequest{
		URL:            rawURL,
		Destination:    destination,
		MaxAttempts:    c.MaxAttempts,
		Timeout:        c.Timeout,
		MinSize:        c.MinSize,
		ExpectedSuffix: c.ExpectedSuffix,
		ExpectedMIME:   c.ExpectedMIME,
		UserAgent:      c.UserAgent,
	}
}

// Validate checks the request preconditions
func (r FetchRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return &RequestError{Err: err}
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return &RequestError{Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &RequestError{Err: fmt.Errorf("url must be an absolute http(s) URL: %q", r.URL)}
	}

	return nil
}

// FetchOutcome is the result of a fetch: a success when Err is nil, a failure otherwise
type FetchOutcome struct {
	Path     string `json:"path,omitempty"`
	ByteSize int64  `json:"byte_size,omitempty"`
	Attempts int    `json:"attempts"`
	Backoffs int    `json:"backoffs"`
	Err      error  `json:"-"`
}

// Succeeded reports whether the artifact was written
func (o FetchOutcome) Succeeded() bool {
	return o.Err == nil
}

// Reason returns the failure reason, or an empty reason on success
func (o FetchOutcome) Reason() FailureReason {
	return ReasonOf(o.Err)
}

// ClassifiedError is implemented by every error a Fetcher reports
type ClassifiedError interface {
	error
	Reason() FailureReason
	Retryable() bool
}

// ReasonOf returns the failure reason carried by err.
// Unclassified errors are treated as transport failures.
func ReasonOf(err error) FailureReason {
	if err == nil {
		return ""
	}
	var ce ClassifiedError
	if errors.As(err, &ce) {
		return ce.Reason()
	}
	return ReasonTransport
}

// IsRetryable reports whether another attempt could change the result
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ce ClassifiedError
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return true
}

// TransportError wraps connection, DNS, timeout and body read failures
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error fetching %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error         { return e.Err }
func (e *TransportError) Reason() FailureReason { return ReasonTransport }
func (e *TransportError) Retryable() bool       { return true }

// StatusError reports a response outside the 2xx range
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status fetching %s: %s", e.URL, e.Status)
}

func (e *StatusError) Reason() FailureReason { return ReasonStatus }

// Retryable is true for every status; some servers fail intermittently with 4xx too
func (e *StatusError) Retryable() bool { return true }

// ContentTypeError reports a response that does not look like the expected artifact
type ContentTypeError struct {
	URL         string
	ContentType string
	Detected    string
	Expected    string
}

func (e *ContentTypeError) Error() string {
	return fmt.Sprintf("unexpected content type fetching %s: declared %q, detected %q, want %q",
		e.URL, e.ContentType, e.Detected, e.Expected)
}

func (e *ContentTypeError) Reason() FailureReason { return ReasonContentType }
func (e *ContentTypeError) Retryable() bool       { return false }

// SizeError reports an artifact smaller than the configured minimum
type SizeError struct {
	Size    int64
	MinSize int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("artifact too small: %d bytes (minimum %d)", e.Size, e.MinSize)
}

func (e *SizeError) Reason() FailureReason { return ReasonTooSmall }
func (e *SizeError) Retryable() bool       { return true }

// FilesystemError reports a local failure creating or writing the destination
type FilesystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FilesystemError) Unwrap() error         { return e.Err }
func (e *FilesystemError) Reason() FailureReason { return ReasonFilesystem }
func (e *FilesystemError) Retryable() bool       { return false }

// RequestError reports a malformed FetchRequest
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("invalid fetch request: %v", e.Err)
}

func (e *RequestError) Unwrap() error         { return e.Err }
func (e *RequestError) Reason() FailureReason { return ReasonInvalidRequest }
func (e *RequestError) Retryable() bool       { return false }
