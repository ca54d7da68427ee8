package selector_test

import (
	"context"
	"testing"
	"time"

	"github.com/rohmanhakim/docsmith/internal/backend"
	"github.com/rohmanhakim/docsmith/internal/config"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/selector"
	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

type stubBackend struct {
	name string
}

func (s *stubBackend) Name() string { return s.name }

func (s *stubBackend) Crawl(ctx context.Context, info urlinfo.URLInfo, cfg config.Config) backend.Result {
	return backend.NewResult(info.Normalized(), backend.StatusOK, nil, []byte("ok"))
}

func (s *stubBackend) Validate(result backend.Result) bool { return result.IsSuccess() }

func (s *stubBackend) Process(result backend.Result) map[string]string { return nil }

func mustCriteria(t *testing.T, b selector.CriteriaBuilder) selector.Criteria {
	t.Helper()
	criteria, err := b.Build()
	if err != nil {
		t.Fatalf("criteria build failed: %v", err)
	}
	return criteria
}

func mustParse(t *testing.T, raw string) urlinfo.URLInfo {
	t.Helper()
	info := urlinfo.Parse(raw)
	if !info.IsValid() {
		t.Fatalf("test URL %q invalid: %s", raw, info.InvalidReason())
	}
	return info
}

func TestSelector_HighestPriorityWins(t *testing.T) {
	s := selector.NewSelector(&metadata.NoopSink{})
	if err := s.Register(&stubBackend{name: "low"},
		mustCriteria(t, selector.NewCriteria().WithPriority(1))); err != nil {
		t.Fatal(err)
	}
	if err := s.Register(&stubBackend{name: "high"},
		mustCriteria(t, selector.NewCriteria().WithPriority(5))); err != nil {
		t.Fatal(err)
	}

	chosen, err := s.Select(mustParse(t, "https://example.com/docs"))
	if err != nil {
		t.Fatal(err)
	}
	if chosen.Name() != "high" {
		t.Errorf("expected high-priority backend, got %q", chosen.Name())
	}
}

func TestSelector_InsertionOrderBreaksTies(t *testing.T) {
	s := selector.NewSelector(&metadata.NoopSink{})
	s.Register(&stubBackend{name: "first"}, mustCriteria(t, selector.NewCriteria().WithPriority(3)))
	s.Register(&stubBackend{name: "second"}, mustCriteria(t, selector.NewCriteria().WithPriority(3)))

	chosen, err := s.Select(mustParse(t, "https://example.com/docs"))
	if err != nil {
		t.Fatal(err)
	}
	if chosen.Name() != "first" {
		t.Errorf("expected first-registered backend on tie, got %q", chosen.Name())
	}
}

func TestSelector_SchemeFilter(t *testing.T) {
	s := selector.NewSelector(&metadata.NoopSink{})
	s.Register(&stubBackend{name: "web"},
		mustCriteria(t, selector.NewCriteria().WithSchemes("http", "https")))
	s.Register(&stubBackend{name: "disk"},
		mustCriteria(t, selector.NewCriteria().WithSchemes("file")))

	chosen, err := s.Select(mustParse(t, "file:///srv/docs/index.html"))
	if err != nil {
		t.Fatal(err)
	}
	if chosen.Name() != "disk" {
		t.Errorf("expected file backend for file URL, got %q", chosen.Name())
	}
}

func TestSelector_URLPatternFilter(t *testing.T) {
	s := selector.NewSelector(&metadata.NoopSink{})
	s.Register(&stubBackend{name: "api-only"},
		mustCriteria(t, selector.NewCriteria().WithPriority(9).WithURLPatterns("*://api.example.com/*")))
	s.Register(&stubBackend{name: "general"},
		mustCriteria(t, selector.NewCriteria().WithPriority(1)))

	chosen, err := s.Select(mustParse(t, "https://docs.example.com/guide"))
	if err != nil {
		t.Fatal(err)
	}
	if chosen.Name() != "general" {
		t.Errorf("pattern-restricted backend must not match, got %q", chosen.Name())
	}

	chosen, err = s.Select(mustParse(t, "https://api.example.com/v1/ref"))
	if err != nil {
		t.Fatal(err)
	}
	if chosen.Name() != "api-only" {
		t.Errorf("expected pattern backend for api host, got %q", chosen.Name())
	}
}

func TestSelector_MaxLoadExcludes(t *testing.T) {
	s := selector.NewSelector(&metadata.NoopSink{})
	s.Register(&stubBackend{name: "limited"},
		mustCriteria(t, selector.NewCriteria().WithPriority(5).WithMaxLoad(1)))
	s.Register(&stubBackend{name: "fallback"},
		mustCriteria(t, selector.NewCriteria().WithPriority(1)))

	info := mustParse(t, "https://example.com/docs")

	chosen, _ := s.Select(info)
	if chosen.Name() != "limited" {
		t.Fatalf("expected limited backend first, got %q", chosen.Name())
	}
	s.OnRequestStart("limited")

	chosen, err := s.Select(info)
	if err != nil {
		t.Fatal(err)
	}
	if chosen.Name() != "fallback" {
		t.Errorf("saturated backend must be skipped, got %q", chosen.Name())
	}

	s.OnRequestEnd("limited", true, 10*time.Millisecond)
	chosen, _ = s.Select(info)
	if chosen.Name() != "limited" {
		t.Errorf("backend must be eligible again after load drops, got %q", chosen.Name())
	}
}

func TestSelector_SuccessRateGate(t *testing.T) {
	s := selector.NewSelector(&metadata.NoopSink{})
	s.Register(&stubBackend{name: "flaky"},
		mustCriteria(t, selector.NewCriteria().WithPriority(5).WithMinSuccessRate(0.8)))
	s.Register(&stubBackend{name: "steady"},
		mustCriteria(t, selector.NewCriteria().WithPriority(1)))

	info := mustParse(t, "https://example.com/docs")

	// Below the sample threshold the flaky backend keeps winning.
	for i := 0; i < 4; i++ {
		s.OnRequestStart("flaky")
		s.OnRequestEnd("flaky", false, 10*time.Millisecond)
		chosen, _ := s.Select(info)
		if chosen.Name() != "flaky" {
			t.Fatalf("attempt %d: success rate must not apply before %d samples", i, 5)
		}
	}

	// Fifth completed failure crosses the threshold.
	s.OnRequestStart("flaky")
	s.OnRequestEnd("flaky", false, 10*time.Millisecond)
	chosen, err := s.Select(info)
	if err != nil {
		t.Fatal(err)
	}
	if chosen.Name() != "steady" {
		t.Errorf("failing backend must be disqualified, got %q", chosen.Name())
	}
	if rate := s.SuccessRate("flaky"); rate != 0 {
		t.Errorf("expected success rate 0, got %v", rate)
	}
}

func TestSelector_DuplicateRegistration(t *testing.T) {
	s := selector.NewSelector(&metadata.NoopSink{})
	criteria := mustCriteria(t, selector.NewCriteria())
	if err := s.Register(&stubBackend{name: "dup"}, criteria); err != nil {
		t.Fatal(err)
	}
	if err := s.Register(&stubBackend{name: "dup"}, criteria); err == nil {
		t.Error("expected error on duplicate backend name")
	}
}

func TestSelector_NoMatch(t *testing.T) {
	recorder := metadata.NewRecorder("test")
	s := selector.NewSelector(&recorder)
	s.Register(&stubBackend{name: "web"},
		mustCriteria(t, selector.NewCriteria().WithSchemes("http", "https")))

	_, err := s.Select(mustParse(t, "file:///srv/docs/index.html"))
	if err == nil {
		t.Fatal("expected error when no backend matches")
	}
	if len(recorder.Errors()) != 1 {
		t.Errorf("expected 1 recorded error, got %d", len(recorder.Errors()))
	}
	if recorder.Errors()[0].Cause() != metadata.CausePolicyDisallow {
		t.Errorf("expected CausePolicyDisallow, got %v", recorder.Errors()[0].Cause())
	}
}

func TestSelector_ContentTypeCriterion(t *testing.T) {
	s := selector.NewSelector(&metadata.NoopSink{})
	s.Register(&stubBackend{name: "html-only"},
		mustCriteria(t, selector.NewCriteria().WithContentTypes("text/html", "application/xhtml+xml")))
	s.Register(&stubBackend{name: "open"},
		mustCriteria(t, selector.NewCriteria()))

	if !s.AllowsContentType("html-only", "text/html; charset=utf-8") {
		t.Error("listed media type must pass, parameters ignored")
	}
	if s.AllowsContentType("html-only", "application/pdf") {
		t.Error("unlisted media type must be refused")
	}
	if !s.AllowsContentType("open", "application/pdf") {
		t.Error("empty allow-list admits everything")
	}
	if !s.AllowsContentType("unregistered", "application/pdf") {
		t.Error("unregistered backends accept everything")
	}
}

func TestSelector_AvgResponseTime(t *testing.T) {
	s := selector.NewSelector(&metadata.NoopSink{})
	s.Register(&stubBackend{name: "web"}, mustCriteria(t, selector.NewCriteria()))

	if got := s.AvgResponseTime("web"); got != 0 {
		t.Fatalf("average must start at zero, got %v", got)
	}

	s.OnRequestStart("web")
	s.OnRequestEnd("web", true, 100*time.Millisecond)
	if got := s.AvgResponseTime("web"); got != 100*time.Millisecond {
		t.Errorf("first sample seeds the average, got %v", got)
	}

	// Each further sample moves the average a quarter of the gap.
	s.OnRequestStart("web")
	s.OnRequestEnd("web", true, 200*time.Millisecond)
	if got := s.AvgResponseTime("web"); got != 125*time.Millisecond {
		t.Errorf("expected 125ms after a 200ms sample, got %v", got)
	}

	if got := s.AvgResponseTime("unregistered"); got != 0 {
		t.Errorf("unregistered backends report zero, got %v", got)
	}
}

func TestCriteria_Validation(t *testing.T) {
	if _, err := selector.NewCriteria().WithMinSuccessRate(1.5).Build(); err == nil {
		t.Error("expected error for success rate above 1")
	}
	if _, err := selector.NewCriteria().WithMaxLoad(-1).Build(); err == nil {
		t.Error("expected error for negative max load")
	}
	if _, err := selector.NewCriteria().WithURLPatterns("[").Build(); err == nil {
		t.Error("expected error for invalid glob")
	}
}
