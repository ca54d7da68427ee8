package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/rohmanhakim/docsmith/internal/config"
	"github.com/rohmanhakim/docsmith/internal/organizer"
	"github.com/rohmanhakim/docsmith/internal/quality"
)

// CrawlStats are the per-crawl counters. Updates go through the
// mutators so workers never race on the fields.
type CrawlStats struct {
	mu sync.Mutex

	startTime        time.Time
	endTime          time.Time
	pagesAttempted   int
	successfulCrawls int
	failedCrawls     int
	bytesProcessed   int64
	qualityIssues    int
}

func (s *CrawlStats) StartTime() time.Time { return s.startTime }
func (s *CrawlStats) EndTime() time.Time   { return s.endTime }

func (s *CrawlStats) PagesAttempted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pagesAttempted
}

func (s *CrawlStats) SuccessfulCrawls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.successfulCrawls
}

func (s *CrawlStats) FailedCrawls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failedCrawls
}

func (s *CrawlStats) BytesProcessed() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bytesProcessed
}

func (s *CrawlStats) QualityIssues() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.qualityIssues
}

func (s *CrawlStats) recordAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pagesAttempted++
}

func (s *CrawlStats) recordSuccess(bytes int64, issues int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.successfulCrawls++
	s.bytesProcessed += bytes
	s.qualityIssues += issues
}

func (s *CrawlStats) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failedCrawls++
}

// URLIssue ties a quality finding to the URL it was found on.
type URLIssue struct {
	URL   string
	Issue quality.Issue
}

// FailedURL records one URL that exhausted its attempts.
type FailedURL struct {
	URL    string
	Status int
	Error  string
}

// URLMetrics are the per-URL measurements emitted by the checker.
type URLMetrics map[string]int

/*
CrawlResult is the return value of one crawl. Crawl always returns it;
callers inspect FailedURLs, Issues, and the stats to judge the outcome.
A non-empty FatalError means the crawl never started (unresolvable
target, invalid input) and no documents were produced.
*/
type CrawlResult struct {
	Target      config.Target
	Stats       *CrawlStats
	DocumentIDs []string
	Issues      []URLIssue
	Metrics     map[string]URLMetrics
	VisitedURLs []string
	FailedURLs  []FailedURL
	Snapshot    organizer.Snapshot
	FatalError  string
}

// resultCollector accumulates the mutable pieces of a CrawlResult while
// workers run.
type resultCollector struct {
	mu          sync.Mutex
	documentIDs []string
	issues      []URLIssue
	metrics     map[string]URLMetrics
	failed      []FailedURL
}

func newResultCollector() *resultCollector {
	return &resultCollector{
		metrics: map[string]URLMetrics{},
	}
}

func (r *resultCollector) addDocument(docID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.documentIDs {
		if existing == docID {
			return
		}
	}
	r.documentIDs = append(r.documentIDs, docID)
}

func (r *resultCollector) addIssues(url string, issues []quality.Issue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, issue := range issues {
		r.issues = append(r.issues, URLIssue{URL: url, Issue: issue})
	}
}

func (r *resultCollector) addMetrics(url string, metrics URLMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics[url] = metrics
}

func (r *resultCollector) addFailure(url string, status int, errMsg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, FailedURL{URL: url, Status: status, Error: errMsg})
}

func (r *resultCollector) issueCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.issues)
}

func (r *resultCollector) documentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.documentIDs)
}

// ProgressEvent is one entry on the optional progress sink, emitted per
// processed URL. Ordering across workers is best-effort.
type ProgressEvent struct {
	URL            string
	Status         string
	Depth          int
	PagesProcessed int
	QueueSize      int
	IssuesFound    int
	DocumentsFound int
}

const (
	ProgressSuccess = "success"
	ProgressError   = "error"
)

// ProgressSink receives progress events. Implementations must not
// block; a slow sink stalls workers.
type ProgressSink interface {
	Publish(event ProgressEvent)
}

type noopProgress struct{}

func (noopProgress) Publish(event ProgressEvent) {}

func sortedCopy(urls []string) []string {
	out := make([]string, len(urls))
	copy(out, urls)
	sort.Strings(out)
	return out
}
