package engine

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rohmanhakim/docsmith/internal/backend"
	"github.com/rohmanhakim/docsmith/internal/config"
	"github.com/rohmanhakim/docsmith/internal/content"
	"github.com/rohmanhakim/docsmith/internal/identifier"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/organizer"
	"github.com/rohmanhakim/docsmith/internal/quality"
	"github.com/rohmanhakim/docsmith/internal/robots"
	"github.com/rohmanhakim/docsmith/internal/selector"
	"github.com/rohmanhakim/docsmith/internal/urlinfo"
	"github.com/rohmanhakim/docsmith/pkg/failure"
	"github.com/rohmanhakim/docsmith/pkg/limiter"
	"github.com/rohmanhakim/docsmith/pkg/retry"
)

/*
Engine is the sole control-plane authority of the crawl.

Determinism and admission guarantees:
  - The engine is the ONLY component allowed to decide whether a URL
    may enter the frontier.
  - All semantic admission checks (validity, scope, robots, depth,
    limits) complete before a URL is enqueued.
  - Pipeline stages may detect and classify failure, but never decide
    retry, continuation, or abortion.

Engine responsibilities:
  - Coordinate crawl lifecycle
  - Enforce global limits (pages, depth, deadline)
  - Apply rate limiting and per-host pacing
  - Drive retry with exponential backoff
  - Aggregate crawl statistics

Metadata emission is observational only and MUST NOT influence
scheduling, retries, or crawl termination.
*/

// allowedCrawlSchemes gates admission; everything else is refused
// regardless of target configuration.
var allowedCrawlSchemes = map[string]bool{
	"http":  true,
	"https": true,
	"file":  true,
}

// Deps are the engine's collaborators. Nil fields take defaults wired
// from the config, so tests can inject exactly the pieces they fake.
type Deps struct {
	Selector      *selector.Selector
	DirectBackend backend.Backend
	Processor     *content.Processor
	Checker       *quality.Checker
	Organizer     *organizer.Organizer
	Robots        *robots.Policy
	Limiter       *limiter.TokenBucket
	Identifier    identifier.ProjectIdentifier
	SeedSearcher  identifier.SeedSearcher
	Progress      ProgressSink
	MetadataSink  metadata.MetadataSink
	Finalizer     metadata.CrawlFinalizer
}

type Engine struct {
	cfg config.Config

	selector      *selector.Selector
	directBackend backend.Backend
	processor     *content.Processor
	checker       *quality.Checker
	organizer     *organizer.Organizer
	robotsPolicy  *robots.Policy
	rateLimiter   *limiter.TokenBucket
	identifier    identifier.ProjectIdentifier
	seedSearcher  identifier.SeedSearcher
	progress      ProgressSink
	metadataSink  metadata.MetadataSink
	finalizer     metadata.CrawlFinalizer
}

func NewEngine(cfg config.Config, deps Deps) (*Engine, error) {
	sink := deps.MetadataSink
	if sink == nil {
		sink = &metadata.NoopSink{}
	}

	sel := deps.Selector
	if sel == nil && deps.DirectBackend == nil {
		sel = selector.NewSelector(sink)
		httpCriteria, err := selector.NewCriteria().
			WithPriority(10).
			WithSchemes("http", "https").
			Build()
		if err != nil {
			return nil, err
		}
		if err := sel.Register(backend.NewHTTPBackend(sink), httpCriteria); err != nil {
			return nil, err
		}
		fileCriteria, err := selector.NewCriteria().
			WithPriority(10).
			WithSchemes("file").
			Build()
		if err != nil {
			return nil, err
		}
		if err := sel.Register(backend.NewFileBackend(sink), fileCriteria); err != nil {
			return nil, err
		}
	}

	processor := deps.Processor
	if processor == nil {
		processor = content.NewProcessor(content.DefaultOptions(), sink)
	}
	checker := deps.Checker
	if checker == nil {
		checker = quality.NewChecker(quality.DefaultConfig(), sink)
	}
	org := deps.Organizer
	if org == nil {
		org = organizer.NewOrganizer(organizer.DefaultCategoryRules(), 0.3, sink)
	}
	robotsPolicy := deps.Robots
	if robotsPolicy == nil && cfg.RespectRobots() {
		robotsPolicy = robots.NewPolicy(cfg.UserAgent(), cfg.Timeout(), sink)
	}
	rateLimiter := deps.Limiter
	if rateLimiter == nil {
		rateLimiter = limiter.NewTokenBucket(cfg.RequestsPerSecond())
	}
	projectIdentifier := deps.Identifier
	if projectIdentifier == nil {
		projectIdentifier = identifier.NewPatternIdentifier(cfg.UserAgent(), cfg.Timeout(), sink)
	}
	seedSearcher := deps.SeedSearcher
	if seedSearcher == nil {
		seedSearcher = identifier.NoopSearcher{}
	}
	progress := deps.Progress
	if progress == nil {
		progress = noopProgress{}
	}

	return &Engine{
		cfg:           cfg,
		selector:      sel,
		directBackend: deps.DirectBackend,
		processor:     processor,
		checker:       checker,
		organizer:     org,
		robotsPolicy:  robotsPolicy,
		rateLimiter:   rateLimiter,
		identifier:    projectIdentifier,
		seedSearcher:  seedSearcher,
		progress:      progress,
		metadataSink:  sink,
		finalizer:     deps.Finalizer,
	}, nil
}

// Organizer exposes the engine's document organizer for post-crawl
// search and collection building.
func (e *Engine) Organizer() *organizer.Organizer {
	return e.organizer
}

// Close releases backend resources.
func (e *Engine) Close() error {
	if e.selector == nil {
		return nil
	}
	var firstErr error
	for _, b := range e.selector.Backends() {
		if closer, ok := b.(io.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// crawlRun is the per-crawl mutable state shared by workers.
type crawlRun struct {
	engine    *Engine
	target    config.Target
	seed      urlinfo.URLInfo
	frontier  *frontier
	stats     *CrawlStats
	collector *resultCollector

	hostMu    sync.Mutex
	hostNext  map[string]time.Time
	hostDelay map[string]time.Duration
}

/*
Crawl walks the target from its seed and returns a CrawlResult. The
result is always returned; failures are reported through its fields,
never by panicking past the crawl loop.

Cancellation: in-flight tasks finish their current attempt, no new
tasks start, and the remaining frontier is discarded. A context
deadline is checked at each dequeue.
*/
func (e *Engine) Crawl(ctx context.Context, target config.Target) CrawlResult {
	stats := &CrawlStats{startTime: time.Now()}

	run := &crawlRun{
		engine:    e,
		target:    target,
		frontier:  newFrontier(),
		stats:     stats,
		collector: newResultCollector(),
		hostNext:  map[string]time.Time{},
		hostDelay: map[string]time.Duration{},
	}

	seedInfo, fatal := e.resolveSeed(ctx, target)
	if fatal != "" {
		stats.endTime = time.Now()
		e.metadataSink.RecordError(
			time.Now(),
			"engine",
			"Engine.Crawl",
			metadata.CauseInvariantViolation,
			fatal,
			[]metadata.Attribute{},
		)
		return CrawlResult{
			Target:     target,
			Stats:      stats,
			FatalError: fatal,
		}
	}
	run.seed = seedInfo

	if run.frontier.admissionBudget(target.MaxPages()) != 0 && run.admissible(seedInfo) {
		run.frontier.push(seedInfo, 0)
	}
	e.appendSearchSeeds(ctx, run)

	e.dispatch(ctx, run)

	stats.endTime = time.Now()
	result := CrawlResult{
		Target:      target,
		Stats:       stats,
		DocumentIDs: run.collector.documentIDs,
		Issues:      run.collector.issues,
		Metrics:     run.collector.metrics,
		VisitedURLs: sortedCopy(run.frontier.visitedURLs()),
		FailedURLs:  run.collector.failed,
		Snapshot:    e.organizer.Snapshot(),
	}

	if e.finalizer != nil {
		e.finalizer.RecordFinalCrawlStats(
			stats.SuccessfulCrawls(),
			stats.FailedCrawls(),
			run.collector.issueCount(),
			stats.endTime.Sub(stats.startTime),
		)
	}
	return result
}

// resolveSeed turns the target's seed into a URLInfo. A bare package
// name goes through the project identifier.
func (e *Engine) resolveSeed(ctx context.Context, target config.Target) (urlinfo.URLInfo, string) {
	seed := target.Seed()

	if strings.Contains(seed, "://") {
		info := urlinfo.Parse(seed)
		if !info.IsValid() {
			return urlinfo.URLInfo{}, fmt.Sprintf("invalid seed url %q: %s", seed, info.InvalidReason())
		}
		return info, ""
	}

	// A dotted name is taken as a bare host.
	if strings.Contains(seed, ".") && !strings.ContainsAny(seed, " \t") {
		info := urlinfo.Parse("https://" + seed)
		if info.IsValid() {
			return info, ""
		}
	}

	docURL, found := e.identifier.DiscoverDocURL(ctx, seed)
	if !found {
		return urlinfo.URLInfo{}, fmt.Sprintf("could not resolve target %q", seed)
	}
	info := urlinfo.Parse(docURL)
	if !info.IsValid() {
		return urlinfo.URLInfo{}, fmt.Sprintf("resolved documentation url %q is invalid: %s", docURL, info.InvalidReason())
	}
	return info, ""
}

// appendSearchSeeds adds search-service results to the frontier at
// depth 0. Only http and https results are taken.
func (e *Engine) appendSearchSeeds(ctx context.Context, run *crawlRun) {
	if !e.cfg.SeedSearch() {
		return
	}
	results := e.seedSearcher.Search(ctx, run.target.Seed(), e.cfg.SeedSearchLimit())
	for _, raw := range results {
		info := urlinfo.Parse(raw)
		if !info.IsValid() {
			continue
		}
		if info.Scheme() != "http" && info.Scheme() != "https" {
			continue
		}
		if run.frontier.admissionBudget(run.target.MaxPages()) == 0 {
			return
		}
		if run.admissible(info) && !run.frontier.isVisited(info.Normalized()) {
			run.frontier.push(info, 0)
		}
	}
}

// dispatch runs the worker pool until the frontier drains or a limit
// trips. Concurrency is bounded by a channel semaphore.
func (e *Engine) dispatch(ctx context.Context, run *crawlRun) {
	sem := make(chan struct{}, e.cfg.ConcurrentRequests())
	var wg sync.WaitGroup

	for {
		if ctx.Err() != nil {
			break
		}
		if deadline, ok := ctx.Deadline(); ok && !time.Now().Before(deadline) {
			break
		}
		maxPages := run.target.MaxPages()
		if maxPages > 0 && run.frontier.visitedCount() >= maxPages {
			break
		}

		entry, ok := run.frontier.next()
		if !ok {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(entry frontierEntry) {
			defer wg.Done()
			defer run.frontier.taskDone()
			defer func() { <-sem }()
			if ctx.Err() == nil {
				run.processEntry(ctx, entry)
			}
		}(entry)
	}
	wg.Wait()
}

// admissible applies the crawl-target filters from the target spec.
// Content type is checked separately at fetch time.
func (r *crawlRun) admissible(info urlinfo.URLInfo) bool {
	if !info.IsValid() {
		return false
	}
	if !allowedCrawlSchemes[info.Scheme()] {
		return false
	}
	if !r.target.FollowExternal() && info.Type(&r.seed) != urlinfo.TypeInternal {
		return false
	}
	if r.target.MatchesExclude(info.Normalized()) {
		return false
	}
	if !r.target.MatchesRequired(info.Normalized()) {
		return false
	}
	if !r.target.AllowsPath(info.Path()) {
		return false
	}
	return true
}

func (r *crawlRun) processEntry(ctx context.Context, entry frontierEntry) {
	e := r.engine

	// Re-normalization is idempotent; a frontier entry that no longer
	// round-trips is an invariant violation, not a crawl error.
	info := urlinfo.Parse(entry.info.Normalized())
	if !info.IsValid() {
		e.metadataSink.RecordError(
			time.Now(),
			"engine",
			"crawlRun.processEntry",
			metadata.CauseInvariantViolation,
			fmt.Sprintf("frontier entry failed re-normalization: %s", entry.info.Normalized()),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, entry.info.Normalized()),
			},
		)
		return
	}

	if !r.frontier.visit(info.Normalized(), r.target.MaxPages()) {
		return
	}
	r.stats.recordAttempt()

	// Policy refusal: visited but not fetched, not an error.
	crawlDelay := time.Duration(0)
	if e.robotsPolicy != nil {
		decision := e.robotsPolicy.Decide(ctx, info)
		if !decision.Allowed {
			e.metadataSink.RecordError(
				time.Now(),
				"engine",
				"crawlRun.processEntry",
				metadata.CausePolicyDisallow,
				fmt.Sprintf("robots.txt disallows %s", info.Normalized()),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, info.Normalized()),
				},
			)
			r.publishProgress(info.Normalized(), ProgressError, entry.depth)
			return
		}
		crawlDelay = decision.CrawlDelay
	}

	b := e.directBackend
	if b == nil {
		selected, err := e.selector.Select(info)
		if err != nil {
			r.recordFetchFailure(info.Normalized(), entry.depth, 0, err.Error())
			return
		}
		b = selected
	}

	if err := e.rateLimiter.Wait(ctx); err != nil {
		return
	}
	if err := r.waitForHost(ctx, info, crawlDelay); err != nil {
		return
	}

	result, fetchErr := r.fetchWithRetry(ctx, b, info)
	if fetchErr != nil {
		r.recordFetchFailure(info.Normalized(), entry.depth, result.Status(), fetchErr.Error())
		return
	}

	// Redirect dedup: the final URL joins the visited set; a previously
	// visited final URL is not reprocessed.
	finalInfo := info
	if result.FinalURL() != "" && result.FinalURL() != info.Normalized() {
		finalInfo = urlinfo.Parse(result.FinalURL())
		if !finalInfo.IsValid() {
			r.recordFetchFailure(info.Normalized(), entry.depth, result.Status(),
				fmt.Sprintf("redirect target invalid: %s", finalInfo.InvalidReason()))
			return
		}
		if finalInfo.Normalized() != info.Normalized() &&
			!r.frontier.visit(finalInfo.Normalized(), r.target.MaxPages()) {
			r.publishProgress(info.Normalized(), ProgressSuccess, entry.depth)
			return
		}
	}

	// Content-type gate: a type refused by the target or the serving
	// backend's criteria is discarded, counted as visited but not
	// successful.
	if !r.target.AllowsContentType(result.ContentType()) ||
		(e.selector != nil && !e.selector.AllowsContentType(b.Name(), result.ContentType())) {
		e.metadataSink.RecordError(
			time.Now(),
			"engine",
			"crawlRun.processEntry",
			metadata.CauseContentInvalid,
			fmt.Sprintf("content type %q not allowed for %s", result.ContentType(), finalInfo.Normalized()),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, finalInfo.Normalized()),
			},
		)
		r.publishProgress(finalInfo.Normalized(), ProgressError, entry.depth)
		return
	}

	processed := e.processor.Process(result.Body(), result.ContentType(), finalInfo.Normalized(), "")
	issues, metrics := e.checker.Check(processed)

	// Processing failures surface on the result, not just the sink.
	for _, procErr := range processed.Errors() {
		issues = append(issues, quality.NewIssue(
			quality.IssueGeneral,
			quality.SeverityError,
			procErr,
			"",
			map[string]string{"url": finalInfo.Normalized()},
		))
	}

	docID, _ := e.organizer.AddDocument(processed)
	r.collector.addDocument(docID)
	r.collector.addIssues(finalInfo.Normalized(), issues)
	r.collector.addMetrics(finalInfo.Normalized(), metrics)

	if entry.depth < r.target.Depth() {
		r.enqueueLinks(processed, finalInfo, entry.depth+1)
	}

	r.stats.recordSuccess(int64(len(result.Body())), len(issues))
	r.publishProgress(finalInfo.Normalized(), ProgressSuccess, entry.depth)
}

// fetchWithRetry drives the backend through the retry handler: up to
// maxRetries+1 attempts with exponential backoff, retrying only on
// transient statuses (5xx, 429).
func (r *crawlRun) fetchWithRetry(
	ctx context.Context,
	b backend.Backend,
	info urlinfo.URLInfo,
) (backend.Result, failure.ClassifiedError) {
	e := r.engine
	var lastResult backend.Result

	retryParam := retry.NewRetryParam(
		e.cfg.BaseDelay(),
		e.cfg.Jitter(),
		e.cfg.RandomSeed(),
		e.cfg.MaxRetries()+1,
		e.cfg.BackoffParam(),
	)

	result, err := retry.Retry(retryParam, func() (backend.Result, failure.ClassifiedError) {
		if e.selector != nil {
			e.selector.OnRequestStart(b.Name())
		}
		fetchStart := time.Now()
		res := b.Crawl(ctx, info, e.cfg)
		if e.selector != nil {
			e.selector.OnRequestEnd(b.Name(), res.IsSuccess(), time.Since(fetchStart))
		}
		lastResult = res
		if res.IsSuccess() {
			return res, nil
		}
		return res, &backend.FetchError{
			Message:   fmt.Sprintf("fetch of %s failed with status %d: %s", info.Normalized(), res.Status(), res.Error()),
			Retryable: retry.ShouldRetryStatus(res.Status()),
		}
	})
	if err != nil {
		return lastResult, err
	}
	return result, nil
}

// recordFetchFailure books a terminal per-URL failure: a general
// quality issue, a failed-URL entry, and the failure counter.
func (r *crawlRun) recordFetchFailure(url string, depth int, status int, errMsg string) {
	issue := quality.NewIssue(
		quality.IssueGeneral,
		quality.SeverityError,
		errMsg,
		"",
		map[string]string{"url": url},
	)
	r.collector.addIssues(url, []quality.Issue{issue})
	r.collector.addFailure(url, status, errMsg)
	r.stats.recordFailure()
	r.engine.metadataSink.RecordError(
		time.Now(),
		"engine",
		"crawlRun.recordFetchFailure",
		metadata.CauseNetworkFailure,
		errMsg,
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrURL, url),
			metadata.NewAttr(metadata.AttrHTTPStatus, fmt.Sprintf("%d", status)),
		},
	)
	r.publishProgress(url, ProgressError, depth)
}

// enqueueLinks re-applies admission to every outbound link and enqueues
// survivors at the next depth, within the max-pages budget.
func (r *crawlRun) enqueueLinks(processed content.ProcessedContent, base urlinfo.URLInfo, depth int) {
	if depth > r.target.Depth() {
		return
	}
	for _, link := range processed.Links() {
		if r.frontier.admissionBudget(r.target.MaxPages()) == 0 {
			return
		}
		info := urlinfo.ParseWithBase(link.Href(), &base)
		if !r.admissible(info) {
			continue
		}
		if r.frontier.isVisited(info.Normalized()) {
			continue
		}
		r.frontier.push(info, depth)
	}
}

// waitForHost enforces the per-host pacing floor: the larger of the
// configured base delay and the robots crawl delay.
func (r *crawlRun) waitForHost(ctx context.Context, info urlinfo.URLInfo, crawlDelay time.Duration) error {
	host := info.Host()
	if host == "" {
		return nil
	}

	r.hostMu.Lock()
	if crawlDelay > r.hostDelay[host] {
		r.hostDelay[host] = crawlDelay
	}
	pace := r.engine.cfg.BaseDelay()
	if r.hostDelay[host] > pace {
		pace = r.hostDelay[host]
	}

	now := time.Now()
	start := now
	if earliest, ok := r.hostNext[host]; ok && earliest.After(now) {
		start = earliest
	}
	r.hostNext[host] = start.Add(pace)
	r.hostMu.Unlock()

	wait := time.Until(start)
	if wait <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *crawlRun) publishProgress(url string, status string, depth int) {
	r.engine.progress.Publish(ProgressEvent{
		URL:            url,
		Status:         status,
		Depth:          depth,
		PagesProcessed: r.stats.PagesAttempted(),
		QueueSize:      r.frontier.queueLen(),
		IssuesFound:    r.collector.issueCount(),
		DocumentsFound: r.collector.documentCount(),
	})
}
