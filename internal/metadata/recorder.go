package metadata

import (
	"sync"
	"time"
)

/*
Recorder captures structured crawl events.

It must not:
- perform I/O decisions
- affect control flow
- impose a logging backend

Ordering guarantees:
- Events are recorded in the order they are received by a single worker.
- No global ordering across workers is guaranteed.
- Consumers MUST NOT assume total ordering across the crawl.

Metadata is write-only during the crawl. No component may read metadata
to influence crawl decisions; the accessors exist for post-run reporting
and tests.
*/
type Recorder struct {
	mu       sync.Mutex
	workerId string

	fetches   []FetchEvent
	errors    []ErrorRecord
	artifacts []ArtifactRecord
	stats     *crawlStats
}

func NewRecorder(workerId string) Recorder {
	return Recorder{
		workerId: workerId,
	}
}

func (r *Recorder) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, ErrorRecord{
		packageName: packageName,
		action:      action,
		cause:       cause,
		errorString: errorString,
		observedAt:  observedAt,
		attrs:       attrs,
	})
}

func (r *Recorder) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = append(r.fetches, FetchEvent{
		fetchUrl:    fetchUrl,
		httpStatus:  httpStatus,
		duration:    duration,
		contentType: contentType,
		retryCount:  retryCount,
		crawlDepth:  crawlDepth,
	})
}

func (r *Recorder) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts = append(r.artifacts, ArtifactRecord{
		kind:  kind,
		path:  path,
		attrs: attrs,
	})
}

/*
RecordFinalCrawlStats records a terminal, derived summary of a completed crawl.

Contract:
  - MUST be called exactly once per crawl execution.
  - MUST be called only after crawl termination
    (frontier exhausted or engine abort).
  - The provided stats MUST be derived from engine state,
    not accumulated incrementally via the recorder.
*/
func (r *Recorder) RecordFinalCrawlStats(
	totalPages int,
	totalErrors int,
	totalIssues int,
	duration time.Duration,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = &crawlStats{
		totalPages:  totalPages,
		totalErrors: totalErrors,
		totalIssues: totalIssues,
		durationMs:  duration.Milliseconds(),
	}
}

// Fetches returns a copy of the recorded fetch events.
func (r *Recorder) Fetches() []FetchEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]FetchEvent, len(r.fetches))
	copy(out, r.fetches)
	return out
}

// Errors returns a copy of the recorded error records.
func (r *Recorder) Errors() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorRecord, len(r.errors))
	copy(out, r.errors)
	return out
}

// Artifacts returns a copy of the recorded artifact records.
func (r *Recorder) Artifacts() []ArtifactRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ArtifactRecord, len(r.artifacts))
	copy(out, r.artifacts)
	return out
}

// HasFinalStats reports whether RecordFinalCrawlStats has been called.
func (r *Recorder) HasFinalStats() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats != nil
}

type MetadataSink interface {
	RecordError(
		observedAt time.Time,
		packageName string,
		action string,
		cause ErrorCause,
		details string,
		attrs []Attribute,
	)

	RecordFetch(
		fetchUrl string,
		httpStatus int,
		duration time.Duration,
		contentType string,
		retryCount int,
		crawlDepth int,
	)

	RecordArtifact(kind ArtifactKind, path string, attrs []Attribute)
}

type CrawlFinalizer interface {
	RecordFinalCrawlStats(
		totalPages int,
		totalErrors int,
		totalIssues int,
		duration time.Duration,
	)
}

// NoopSink implements MetadataSink but does nothing.
// Callers can decide whether to inject a Recorder or a NoopSink;
// metadata stays orthogonal to the pipeline either way.
type NoopSink struct{}

func (n *NoopSink) RecordError(
	observedAt time.Time,
	packageName string,
	action string,
	cause ErrorCause,
	errorString string,
	attrs []Attribute,
) {
}

func (n *NoopSink) RecordFetch(
	fetchUrl string,
	httpStatus int,
	duration time.Duration,
	contentType string,
	retryCount int,
	crawlDepth int,
) {
}

func (n *NoopSink) RecordArtifact(kind ArtifactKind, path string, attrs []Attribute) {}
