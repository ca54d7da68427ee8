package config

import (
	"fmt"
	"regexp"
	"strings"
)

// Target is the user-supplied crawl specification: what to crawl and
// which discovered URLs are admissible. Patterns are compiled at
// construction so admission checks never fail at crawl time.
type Target struct {
	// Seed URL or bare package name.
	seed string
	// Maximum number of hyperlink hops from the seed.
	depth int
	// Whether links leaving the seed's registered domain are followed.
	followExternal bool
	// Content types accepted at fetch time.
	contentTypes []string
	// URLs matching any of these are rejected.
	excludePatterns []*regexp.Regexp
	// When non-empty, URLs must match at least one of these.
	requiredPatterns []*regexp.Regexp
	// Hard cap on visited URLs. Zero means unlimited.
	maxPages int
	// When non-empty, the URL path must start with one of these prefixes.
	allowedPaths []string
	// The URL path must not start with any of these prefixes.
	excludedPaths []string
}

func (t Target) Seed() string             { return t.seed }
func (t Target) Depth() int               { return t.depth }
func (t Target) FollowExternal() bool     { return t.followExternal }
func (t Target) ContentTypes() []string   { return t.contentTypes }
func (t Target) MaxPages() int            { return t.maxPages }
func (t Target) AllowedPaths() []string   { return t.allowedPaths }
func (t Target) ExcludedPaths() []string  { return t.excludedPaths }

// MatchesExclude reports whether any exclude pattern matches the URL.
func (t Target) MatchesExclude(normalizedURL string) bool {
	for _, re := range t.excludePatterns {
		if re.MatchString(normalizedURL) {
			return true
		}
	}
	return false
}

// MatchesRequired reports whether the URL satisfies the required
// patterns. An empty pattern list admits everything.
func (t Target) MatchesRequired(normalizedURL string) bool {
	if len(t.requiredPatterns) == 0 {
		return true
	}
	for _, re := range t.requiredPatterns {
		if re.MatchString(normalizedURL) {
			return true
		}
	}
	return false
}

// AllowsContentType reports whether a fetched content type is accepted.
// Parameters after ";" are ignored.
func (t Target) AllowsContentType(contentType string) bool {
	if len(t.contentTypes) == 0 {
		return true
	}
	mediaType := strings.TrimSpace(strings.ToLower(contentType))
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	for _, allowed := range t.contentTypes {
		if strings.EqualFold(strings.TrimSpace(allowed), mediaType) {
			return true
		}
	}
	return false
}

// AllowsPath checks the path prefix allow/deny lists.
func (t Target) AllowsPath(path string) bool {
	for _, prefix := range t.excludedPaths {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	if len(t.allowedPaths) == 0 {
		return true
	}
	for _, prefix := range t.allowedPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// TargetBuilder assembles a Target through method chaining.
type TargetBuilder struct {
	seed             string
	depth            int
	followExternal   bool
	contentTypes     []string
	excludePatterns  []string
	requiredPatterns []string
	maxPages         int
	allowedPaths     []string
	excludedPaths    []string
}

// NewTarget starts a target builder for a seed URL or package name.
func NewTarget(seed string) TargetBuilder {
	return TargetBuilder{
		seed:         seed,
		depth:        1,
		contentTypes: []string{"text/html", "application/xhtml+xml", "text/markdown", "text/plain"},
	}
}

func (b TargetBuilder) WithDepth(depth int) TargetBuilder {
	b.depth = depth
	return b
}

func (b TargetBuilder) WithFollowExternal(follow bool) TargetBuilder {
	b.followExternal = follow
	return b
}

func (b TargetBuilder) WithContentTypes(types []string) TargetBuilder {
	b.contentTypes = types
	return b
}

func (b TargetBuilder) WithExcludePatterns(patterns []string) TargetBuilder {
	b.excludePatterns = patterns
	return b
}

func (b TargetBuilder) WithRequiredPatterns(patterns []string) TargetBuilder {
	b.requiredPatterns = patterns
	return b
}

func (b TargetBuilder) WithMaxPages(maxPages int) TargetBuilder {
	b.maxPages = maxPages
	return b
}

func (b TargetBuilder) WithAllowedPaths(paths []string) TargetBuilder {
	b.allowedPaths = paths
	return b
}

func (b TargetBuilder) WithExcludedPaths(paths []string) TargetBuilder {
	b.excludedPaths = paths
	return b
}

func (b TargetBuilder) Build() (Target, error) {
	if strings.TrimSpace(b.seed) == "" {
		return Target{}, fmt.Errorf("%w: seed cannot be empty", ErrInvalidTarget)
	}
	if b.depth < 0 {
		return Target{}, fmt.Errorf("%w: depth cannot be negative", ErrInvalidTarget)
	}
	if b.maxPages < 0 {
		return Target{}, fmt.Errorf("%w: maxPages cannot be negative", ErrInvalidTarget)
	}

	excludes, err := compilePatterns(b.excludePatterns)
	if err != nil {
		return Target{}, fmt.Errorf("%w: exclude pattern: %s", ErrInvalidTarget, err.Error())
	}
	required, err := compilePatterns(b.requiredPatterns)
	if err != nil {
		return Target{}, fmt.Errorf("%w: required pattern: %s", ErrInvalidTarget, err.Error())
	}

	return Target{
		seed:             strings.TrimSpace(b.seed),
		depth:            b.depth,
		followExternal:   b.followExternal,
		contentTypes:     b.contentTypes,
		excludePatterns:  excludes,
		requiredPatterns: required,
		maxPages:         b.maxPages,
		allowedPaths:     b.allowedPaths,
		excludedPaths:    b.excludedPaths,
	}, nil
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
