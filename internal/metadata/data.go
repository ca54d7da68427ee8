package metadata

import (
	"time"
)

type FetchEvent struct {
	fetchUrl    string
	httpStatus  int
	duration    time.Duration
	contentType string
	retryCount  int
	crawlDepth  int
}

func (f FetchEvent) URL() string             { return f.fetchUrl }
func (f FetchEvent) HTTPStatus() int         { return f.httpStatus }
func (f FetchEvent) Duration() time.Duration { return f.duration }
func (f FetchEvent) ContentType() string     { return f.contentType }
func (f FetchEvent) RetryCount() int         { return f.retryCount }
func (f FetchEvent) CrawlDepth() int         { return f.crawlDepth }

/*
crawlStats
  - Represents a terminal, derived summary of a completed crawl
  - Contains only aggregate counts and durations
  - Is computed by the engine after crawl termination
  - Is recorded exactly once
  - Must not influence scheduling, retries, or crawl termination
*/
type crawlStats struct {
	totalPages  int
	totalErrors int
	totalIssues int
	durationMs  int64
}

type ArtifactKind string

const (
	ArtifactMarkdown ArtifactKind = "markdown"
	ArtifactSnapshot ArtifactKind = "snapshot"
)

type ArtifactRecord struct {
	kind  ArtifactKind
	path  string
	attrs []Attribute
}

func (a ArtifactRecord) Kind() ArtifactKind { return a.kind }
func (a ArtifactRecord) Path() string       { return a.path }

/*
ErrorCause is a closed, canonical classification used exclusively for
observability (logging, metrics, reporting).

Rules:
  - ErrorCause is for observability only.
  - It must never be used to derive retry, continuation, or abort decisions.
  - ErrorCause values have stable, package-agnostic semantics.
  - Pipeline packages may map their local errors to ErrorCause,
    but must not invent new meanings.

If a failure does not clearly match a defined cause, CauseUnknown is used.
*/
type ErrorCause int

const (
	// CauseUnknown: the failure does not map cleanly to any known category.
	CauseUnknown ErrorCause = iota
	// CauseNetworkFailure: transport or remote availability failure
	// (timeouts, DNS, connection resets).
	CauseNetworkFailure
	// CausePolicyDisallow: crawling was disallowed by an explicit policy
	// (robots.txt, 403/401, rate-limit enforcement, disallowed scheme).
	CausePolicyDisallow
	// CauseContentInvalid: content was fetched but could not be processed
	// meaningfully (non-allowed content type, unparseable body).
	CauseContentInvalid
	// CauseStorageFailure: failure while persisting crawl artifacts.
	CauseStorageFailure
	// CauseInvariantViolation: a system-level invariant was violated.
	CauseInvariantViolation
)

type ErrorRecord struct {
	packageName string
	action      string
	cause       ErrorCause
	errorString string
	observedAt  time.Time
	attrs       []Attribute
}

func (e ErrorRecord) Package() string       { return e.packageName }
func (e ErrorRecord) Action() string        { return e.action }
func (e ErrorRecord) Cause() ErrorCause     { return e.cause }
func (e ErrorRecord) Message() string       { return e.errorString }
func (e ErrorRecord) ObservedAt() time.Time { return e.observedAt }
func (e ErrorRecord) Attrs() []Attribute    { return e.attrs }

type Attribute struct {
	Key   AttributeKey
	Value string
}

func NewAttr(key AttributeKey, val string) Attribute {
	return Attribute{
		Key:   key,
		Value: val,
	}
}

type AttributeKey string

const (
	AttrTime       AttributeKey = "time"
	AttrURL        AttributeKey = "url"
	AttrHost       AttributeKey = "host"
	AttrPath       AttributeKey = "path"
	AttrDepth      AttributeKey = "depth"
	AttrField      AttributeKey = "field"
	AttrHTTPStatus AttributeKey = "http_status"
	AttrBackend    AttributeKey = "backend"
	AttrFormat     AttributeKey = "format"
	AttrWritePath  AttributeKey = "write_path"
)
