package robots

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

/*
Policy answers "may this URL be crawled, and how fast" per robots.txt.

Rules:
  - robots.txt is fetched once per host and cached for the crawl.
  - A fetch failure or unparseable file permits crawling; robots can
    forbid, never break, a crawl.
  - A 4xx on /robots.txt means no restrictions exist for the host.
  - Crawl-delay, when present for our agent group, is surfaced so the
    engine can widen its per-host pacing.
*/

// Decision is the outcome of a robots.txt check for one URL.
type Decision struct {
	Allowed    bool
	CrawlDelay time.Duration
}

type hostEntry struct {
	group *robotstxt.Group
}

type Policy struct {
	mu           sync.Mutex
	hosts        map[string]*hostEntry
	userAgent    string
	httpClient   *http.Client
	metadataSink metadata.MetadataSink
}

func NewPolicy(userAgent string, timeout time.Duration, metadataSink metadata.MetadataSink) *Policy {
	return &Policy{
		hosts:        map[string]*hostEntry{},
		userAgent:    userAgent,
		httpClient:   &http.Client{Timeout: timeout},
		metadataSink: metadataSink,
	}
}

// Decide checks a URL against the host's cached robots.txt, fetching it
// on first contact with the host. file:// URLs are always allowed.
func (p *Policy) Decide(ctx context.Context, info urlinfo.URLInfo) Decision {
	if info.Scheme() == "file" {
		return Decision{Allowed: true}
	}

	entry := p.entryForHost(ctx, info)
	if entry.group == nil {
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed:    entry.group.Test(info.Path()),
		CrawlDelay: entry.group.CrawlDelay,
	}
}

func (p *Policy) entryForHost(ctx context.Context, info urlinfo.URLInfo) *hostEntry {
	hostKey := info.Host()
	if info.Port() != "" {
		hostKey = info.Host() + ":" + info.Port()
	}

	p.mu.Lock()
	if entry, ok := p.hosts[hostKey]; ok {
		p.mu.Unlock()
		return entry
	}
	p.mu.Unlock()

	entry := p.fetch(ctx, info.Scheme(), hostKey)

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.hosts[hostKey]; ok {
		return existing
	}
	p.hosts[hostKey] = entry
	return entry
}

func (p *Policy) fetch(ctx context.Context, scheme string, hostKey string) *hostEntry {
	robotsURL := fmt.Sprintf("%s://%s/robots.txt", scheme, hostKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return &hostEntry{}
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.metadataSink.RecordError(
			time.Now(),
			"robots",
			"Policy.fetch",
			metadata.CauseNetworkFailure,
			fmt.Sprintf("failed to fetch %s: %v", robotsURL, err),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrHost, hostKey),
			},
		)
		return &hostEntry{}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &hostEntry{}
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		p.metadataSink.RecordError(
			time.Now(),
			"robots",
			"Policy.fetch",
			metadata.CauseContentInvalid,
			fmt.Sprintf("unparseable robots.txt at %s: %v", robotsURL, err),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrHost, hostKey),
			},
		)
		return &hostEntry{}
	}

	return &hostEntry{group: data.FindGroup(p.userAgent)}
}
