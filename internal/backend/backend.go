package backend

import (
	"context"
	"net/http"
	"strconv"

	"github.com/rohmanhakim/docsmith/internal/config"
	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

/*
Backend boundary

A Backend is any implementation of the fetch capability set. Backends
never throw past their boundary: transport failures come back as a
Result carrying a synthetic HTTP-style status. Rate limiting, retries,
and caching are the engine's job, not the backend's.

Synthetic statuses:
  - 504: timeout
  - 503: connection error
  - 500: unexpected error
  - 403: policy refusal
  - 400: malformed input
*/
type Backend interface {
	// Name identifies the backend in the selector registry and metadata.
	Name() string
	// Crawl fetches one URL into a raw result.
	Crawl(ctx context.Context, info urlinfo.URLInfo, cfg config.Config) Result
	// Validate reports whether the result is usable for processing.
	Validate(result Result) bool
	// Process derives backend-specific metadata from a result.
	Process(result Result) map[string]string
}

const (
	StatusOK              = 200
	StatusBadRequest      = 400
	StatusPolicyRefused   = 403
	StatusServerError     = 500
	StatusConnectionError = 503
	StatusTimeout         = 504
)

// Result is the raw output of a single fetch.
type Result struct {
	finalURL string
	status   int
	headers  http.Header
	body     []byte
	errMsg   string
}

func NewResult(finalURL string, status int, headers http.Header, body []byte) Result {
	if headers == nil {
		headers = http.Header{}
	}
	return Result{
		finalURL: finalURL,
		status:   status,
		headers:  headers,
		body:     body,
	}
}

func NewErrorResult(finalURL string, status int, errMsg string) Result {
	return Result{
		finalURL: finalURL,
		status:   status,
		headers:  http.Header{},
		errMsg:   errMsg,
	}
}

// FinalURL returns the URL after redirects.
func (r Result) FinalURL() string {
	return r.finalURL
}

func (r Result) Status() int {
	return r.status
}

// Headers returns the case-insensitive response header map.
func (r Result) Headers() http.Header {
	return r.headers
}

func (r Result) Body() []byte {
	return r.body
}

// Error returns the failure description, empty on success.
func (r Result) Error() string {
	return r.errMsg
}

func (r Result) ContentType() string {
	return r.headers.Get("Content-Type")
}

func (r Result) IsSuccess() bool {
	return r.status >= 200 && r.status < 300
}

// baseProcess is the metadata shared by all backends' Process output.
func baseProcess(name string, r Result) map[string]string {
	return map[string]string{
		"backend":      name,
		"final_url":    r.finalURL,
		"status":       strconv.Itoa(r.status),
		"content_type": r.ContentType(),
		"size":         strconv.Itoa(len(r.body)),
	}
}
