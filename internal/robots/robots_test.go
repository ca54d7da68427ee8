package robots_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/robots"
	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

func localURL(t *testing.T, raw string) urlinfo.URLInfo {
	t.Helper()
	info := urlinfo.ParseWith(raw, nil, urlinfo.Options{AllowPrivateHosts: true})
	if !info.IsValid() {
		t.Fatalf("test URL %q invalid: %s", raw, info.InvalidReason())
	}
	return info
}

func TestPolicy_DisallowedPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	policy := robots.NewPolicy("docsmith/1.0", 2*time.Second, &metadata.NoopSink{})

	decision := policy.Decide(context.Background(), localURL(t, server.URL+"/private/page"))
	if decision.Allowed {
		t.Error("path under Disallow must be refused")
	}

	decision = policy.Decide(context.Background(), localURL(t, server.URL+"/public/page"))
	if !decision.Allowed {
		t.Error("path outside Disallow must be allowed")
	}
}

func TestPolicy_CrawlDelay(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nCrawl-delay: 2\n"))
	}))
	defer server.Close()

	policy := robots.NewPolicy("docsmith/1.0", 2*time.Second, &metadata.NoopSink{})
	decision := policy.Decide(context.Background(), localURL(t, server.URL+"/docs"))
	if !decision.Allowed {
		t.Fatal("expected allowed")
	}
	if decision.CrawlDelay != 2*time.Second {
		t.Errorf("expected crawl delay 2s, got %v", decision.CrawlDelay)
	}
}

func TestPolicy_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	policy := robots.NewPolicy("docsmith/1.0", 2*time.Second, &metadata.NoopSink{})
	decision := policy.Decide(context.Background(), localURL(t, server.URL+"/anything"))
	if !decision.Allowed {
		t.Error("404 robots.txt must not restrict crawling")
	}
}

func TestPolicy_ServerDownAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	recorder := metadata.NewRecorder("test")
	policy := robots.NewPolicy("docsmith/1.0", time.Second, &recorder)
	decision := policy.Decide(context.Background(), localURL(t, url+"/docs"))
	if !decision.Allowed {
		t.Error("robots fetch failure must not block crawling")
	}
	if len(recorder.Errors()) != 1 {
		t.Errorf("expected the fetch failure recorded, got %d records", len(recorder.Errors()))
	}
}

func TestPolicy_CachesPerHost(t *testing.T) {
	var robotsFetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsFetches.Add(1)
		}
		w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer server.Close()

	policy := robots.NewPolicy("docsmith/1.0", 2*time.Second, &metadata.NoopSink{})
	for i := 0; i < 5; i++ {
		policy.Decide(context.Background(), localURL(t, server.URL+"/docs"))
	}
	if got := robotsFetches.Load(); got != 1 {
		t.Errorf("expected robots.txt fetched once per host, got %d", got)
	}
}

func TestPolicy_AgentSpecificGroup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: docsmith\nDisallow: /\n\nUser-agent: *\nAllow: /\n"))
	}))
	defer server.Close()

	policy := robots.NewPolicy("docsmith/1.0", 2*time.Second, &metadata.NoopSink{})
	decision := policy.Decide(context.Background(), localURL(t, server.URL+"/docs"))
	if decision.Allowed {
		t.Error("agent-specific Disallow must apply to our user agent")
	}
}

func TestPolicy_FileAlwaysAllowed(t *testing.T) {
	policy := robots.NewPolicy("docsmith/1.0", time.Second, &metadata.NoopSink{})
	info := urlinfo.Parse("file:///srv/docs/index.html")
	if !info.IsValid() {
		t.Fatal(info.InvalidReason())
	}
	if !policy.Decide(context.Background(), info).Allowed {
		t.Error("file URLs are never subject to robots.txt")
	}
}
