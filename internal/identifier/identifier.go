package identifier

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rohmanhakim/docsmith/internal/metadata"
)

// ProjectIdentifier maps a bare package name to a documentation URL.
// Consulted only when the crawl target is not itself a URL.
type ProjectIdentifier interface {
	DiscoverDocURL(ctx context.Context, packageName string) (string, bool)
}

// SeedSearcher supplies extra seed URLs for a query. Implementations
// wrap an external search service; only http and https results are
// used by the engine.
type SeedSearcher interface {
	Search(ctx context.Context, query string, limit int) []string
}

// docURLPatterns are common documentation hosting layouts, probed in
// order; the first pattern answering a HEAD with 200 wins.
var docURLPatterns = []string{
	"https://%s.readthedocs.io/en/latest/",
	"https://docs.%s.org/",
	"https://%s.dev/docs/",
	"https://www.%s.org/docs/",
	"https://%s.github.io/",
}

// PatternIdentifier probes well-known documentation URL layouts.
type PatternIdentifier struct {
	httpClient   *http.Client
	userAgent    string
	metadataSink metadata.MetadataSink
}

func NewPatternIdentifier(userAgent string, timeout time.Duration, metadataSink metadata.MetadataSink) *PatternIdentifier {
	return &PatternIdentifier{
		httpClient:   &http.Client{Timeout: timeout},
		userAgent:    userAgent,
		metadataSink: metadataSink,
	}
}

func (p *PatternIdentifier) DiscoverDocURL(ctx context.Context, packageName string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(packageName))
	if name == "" || strings.ContainsAny(name, "/:") {
		return "", false
	}

	for _, pattern := range docURLPatterns {
		candidate := fmt.Sprintf(pattern, name)
		if p.probe(ctx, candidate) {
			return candidate, true
		}
	}

	p.metadataSink.RecordError(
		time.Now(),
		"identifier",
		"PatternIdentifier.DiscoverDocURL",
		metadata.CauseUnknown,
		fmt.Sprintf("no documentation url found for package %q", packageName),
		[]metadata.Attribute{},
	)
	return "", false
}

func (p *PatternIdentifier) probe(ctx context.Context, candidate string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, candidate, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// NoopSearcher returns no seeds; used when seed search is disabled.
type NoopSearcher struct{}

func (NoopSearcher) Search(ctx context.Context, query string, limit int) []string {
	return nil
}
