package selector

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/rohmanhakim/docsmith/internal/backend"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

/*
Selector routes each URL to the backend best suited to fetch it.

Selection rules, in order:
 1. Drop backends whose criteria reject the URL (scheme, URL patterns).
 2. Drop backends at or above their max in-flight load.
 3. Drop backends below their minimum success rate, once enough
    requests have completed to judge them.
 4. Of the survivors, pick the highest priority; insertion order
    breaks ties.

Load and success-rate accounting lives here, not in the backends, so a
backend implementation stays a pure fetch capability.
*/

// minSampleSize is how many completed requests a backend needs before
// its success rate can disqualify it.
const minSampleSize = 5

// Criteria constrains when a registered backend is eligible. The
// content-type allow-list applies after the fetch, once the response
// type is known; the rest gates selection.
type Criteria struct {
	priority       int
	schemes        []string
	urlPatterns    []glob.Glob
	contentTypes   []string
	maxLoad        int
	minSuccessRate float64
}

// CriteriaBuilder assembles Criteria through method chaining.
type CriteriaBuilder struct {
	priority       int
	schemes        []string
	urlPatterns    []string
	contentTypes   []string
	maxLoad        int
	minSuccessRate float64
}

func NewCriteria() CriteriaBuilder {
	return CriteriaBuilder{}
}

func (b CriteriaBuilder) WithPriority(priority int) CriteriaBuilder {
	b.priority = priority
	return b
}

func (b CriteriaBuilder) WithSchemes(schemes ...string) CriteriaBuilder {
	b.schemes = schemes
	return b
}

func (b CriteriaBuilder) WithURLPatterns(patterns ...string) CriteriaBuilder {
	b.urlPatterns = patterns
	return b
}

func (b CriteriaBuilder) WithContentTypes(types ...string) CriteriaBuilder {
	b.contentTypes = types
	return b
}

func (b CriteriaBuilder) WithMaxLoad(maxLoad int) CriteriaBuilder {
	b.maxLoad = maxLoad
	return b
}

func (b CriteriaBuilder) WithMinSuccessRate(rate float64) CriteriaBuilder {
	b.minSuccessRate = rate
	return b
}

func (b CriteriaBuilder) Build() (Criteria, error) {
	if b.minSuccessRate < 0 || b.minSuccessRate > 1 {
		return Criteria{}, &SelectorError{
			Message: fmt.Sprintf("minSuccessRate must be within [0, 1], got %f", b.minSuccessRate),
		}
	}
	if b.maxLoad < 0 {
		return Criteria{}, &SelectorError{
			Message: fmt.Sprintf("maxLoad cannot be negative, got %d", b.maxLoad),
		}
	}
	compiled := make([]glob.Glob, 0, len(b.urlPatterns))
	for _, pattern := range b.urlPatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return Criteria{}, &SelectorError{
				Message: fmt.Sprintf("invalid url pattern %q: %v", pattern, err),
			}
		}
		compiled = append(compiled, g)
	}
	return Criteria{
		priority:       b.priority,
		schemes:        b.schemes,
		urlPatterns:    compiled,
		contentTypes:   b.contentTypes,
		maxLoad:        b.maxLoad,
		minSuccessRate: b.minSuccessRate,
	}, nil
}

func (c Criteria) Priority() int { return c.priority }

func (c Criteria) matchesScheme(scheme string) bool {
	if len(c.schemes) == 0 {
		return true
	}
	for _, s := range c.schemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

// MatchesContentType reports whether a fetched content type satisfies
// the allow-list. Parameters after ";" are ignored; an empty list
// admits everything.
func (c Criteria) MatchesContentType(contentType string) bool {
	if len(c.contentTypes) == 0 {
		return true
	}
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	for _, allowed := range c.contentTypes {
		if strings.EqualFold(strings.TrimSpace(allowed), mediaType) {
			return true
		}
	}
	return false
}

func (c Criteria) matchesURL(normalized string) bool {
	if len(c.urlPatterns) == 0 {
		return true
	}
	for _, g := range c.urlPatterns {
		if g.Match(normalized) {
			return true
		}
	}
	return false
}

// responseTimeSmoothing is the divisor of the exponential moving
// average: each sample moves the average a quarter of the way.
const responseTimeSmoothing = 4

type registration struct {
	backend  backend.Backend
	criteria Criteria

	inFlight        int
	completed       int
	succeeded       int
	avgResponseTime time.Duration
}

func (r *registration) successRate() float64 {
	if r.completed == 0 {
		return 1.0
	}
	return float64(r.succeeded) / float64(r.completed)
}

func (r *registration) observeResponseTime(elapsed time.Duration) {
	if r.avgResponseTime == 0 {
		r.avgResponseTime = elapsed
		return
	}
	r.avgResponseTime += (elapsed - r.avgResponseTime) / responseTimeSmoothing
}

// Selector is a registry of backends with routing criteria. All methods
// are safe for concurrent use.
type Selector struct {
	mu            sync.Mutex
	registrations []*registration
	metadataSink  metadata.MetadataSink
}

func NewSelector(metadataSink metadata.MetadataSink) *Selector {
	return &Selector{metadataSink: metadataSink}
}

// Register appends a backend to the registry. Registration order is the
// tiebreaker between equal priorities.
func (s *Selector) Register(b backend.Backend, criteria Criteria) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, reg := range s.registrations {
		if reg.backend.Name() == b.Name() {
			return &SelectorError{
				Message: fmt.Sprintf("backend %q is already registered", b.Name()),
			}
		}
	}
	s.registrations = append(s.registrations, &registration{
		backend:  b,
		criteria: criteria,
	})
	return nil
}

// Select returns the eligible backend for a URL, or an error when no
// registered backend can take it.
func (s *Selector) Select(info urlinfo.URLInfo) (backend.Backend, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *registration
	for _, reg := range s.registrations {
		if !reg.criteria.matchesScheme(info.Scheme()) {
			continue
		}
		if !reg.criteria.matchesURL(info.Normalized()) {
			continue
		}
		if reg.criteria.maxLoad > 0 && reg.inFlight >= reg.criteria.maxLoad {
			continue
		}
		if reg.criteria.minSuccessRate > 0 &&
			reg.completed >= minSampleSize &&
			reg.successRate() < reg.criteria.minSuccessRate {
			continue
		}
		if best == nil || reg.criteria.priority > best.criteria.priority {
			best = reg
		}
	}

	if best == nil {
		err := &SelectorError{
			Message: fmt.Sprintf("no backend available for %s", info.Normalized()),
		}
		s.metadataSink.RecordError(
			time.Now(),
			"selector",
			"Selector.Select",
			metadata.CausePolicyDisallow,
			err.Message,
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, info.Normalized()),
			},
		)
		return nil, err
	}
	return best.backend, nil
}

// OnRequestStart marks a request as in flight for load accounting.
func (s *Selector) OnRequestStart(backendName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg := s.find(backendName); reg != nil {
		reg.inFlight++
	}
}

// OnRequestEnd completes a request, updating the success rate and the
// response-time moving average.
func (s *Selector) OnRequestEnd(backendName string, success bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg := s.find(backendName)
	if reg == nil {
		return
	}
	if reg.inFlight > 0 {
		reg.inFlight--
	}
	reg.completed++
	if success {
		reg.succeeded++
	}
	reg.observeResponseTime(elapsed)
}

// Backends returns the registered backends in registration order.
func (s *Selector) Backends() []backend.Backend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]backend.Backend, 0, len(s.registrations))
	for _, reg := range s.registrations {
		out = append(out, reg.backend)
	}
	return out
}

// SuccessRate reports the observed success rate for a backend. Backends
// with no completed requests report 1.0.
func (s *Selector) SuccessRate(backendName string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg := s.find(backendName); reg != nil {
		return reg.successRate()
	}
	return 0
}

// AvgResponseTime reports the response-time moving average for a
// backend; zero until a request has completed.
func (s *Selector) AvgResponseTime(backendName string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg := s.find(backendName); reg != nil {
		return reg.avgResponseTime
	}
	return 0
}

// AllowsContentType reports whether the backend's criteria accept a
// fetched content type. Unregistered backends accept everything.
func (s *Selector) AllowsContentType(backendName string, contentType string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg := s.find(backendName); reg != nil {
		return reg.criteria.MatchesContentType(contentType)
	}
	return true
}

// Load reports the current in-flight request count for a backend.
func (s *Selector) Load(backendName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg := s.find(backendName); reg != nil {
		return reg.inFlight
	}
	return 0
}

func (s *Selector) find(backendName string) *registration {
	for _, reg := range s.registrations {
		if reg.backend.Name() == backendName {
			return reg
		}
	}
	return nil
}
