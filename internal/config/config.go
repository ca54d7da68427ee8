package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rohmanhakim/docsmith/pkg/timeutil"
)

// Config holds the operational parameters of a crawl. Fields are private
// and set through the builder so a constructed Config is always valid.
type Config struct {
	//===============
	// Politeness
	//===============
	// Maximum number of crawl worker goroutines processing URLs concurrently.
	concurrentRequests int
	// Global request pacing; the token bucket refills at this rate.
	requestsPerSecond float64
	// Minimum, fixed waiting time enforced between two requests to the same host.
	baseDelay time.Duration
	// Randomized variation added on top of retry delays.
	jitter time.Duration
	// Controls the random number generator used for jitter.
	randomSeed int64

	//===============
	// Retry
	//===============
	// Number of retries after the first attempt.
	maxRetries int
	// Initial delay for exponential backoff between attempts.
	backoffInitialDuration time.Duration
	// Multiplier during exponential backoff.
	backoffMultiplier float64
	// Capped maximum backoff delay.
	backoffMaxDuration time.Duration

	//===============
	// Fetch
	//===============
	// Maximum time of a single fetch request.
	timeout time.Duration
	// User agent used in the request header.
	userAgent string
	// Headers applied to every request, on top of the defaults.
	defaultHeaders map[string]string
	// Whether robots.txt decisions gate admission.
	respectRobots bool

	//===============
	// Seed discovery
	//===============
	// Whether the external search service is consulted for extra seeds.
	seedSearch bool
	// Cap on search-provided seeds.
	seedSearchLimit int

	//===============
	// Output
	//===============
	// Root directory in which to store resulting markdown files.
	outputDir string
	// Simulate the crawl without writing output.
	dryRun bool
}

func (c Config) ConcurrentRequests() int          { return c.concurrentRequests }
func (c Config) RequestsPerSecond() float64       { return c.requestsPerSecond }
func (c Config) BaseDelay() time.Duration         { return c.baseDelay }
func (c Config) Jitter() time.Duration            { return c.jitter }
func (c Config) RandomSeed() int64                { return c.randomSeed }
func (c Config) MaxRetries() int                  { return c.maxRetries }
func (c Config) Timeout() time.Duration           { return c.timeout }
func (c Config) UserAgent() string                { return c.userAgent }
func (c Config) DefaultHeaders() map[string]string { return c.defaultHeaders }
func (c Config) RespectRobots() bool              { return c.respectRobots }
func (c Config) SeedSearch() bool                 { return c.seedSearch }
func (c Config) SeedSearchLimit() int             { return c.seedSearchLimit }
func (c Config) OutputDir() string                { return c.outputDir }
func (c Config) DryRun() bool                     { return c.dryRun }

// BackoffParam derives the retry backoff parameters from the config.
func (c Config) BackoffParam() timeutil.BackoffParam {
	return timeutil.NewBackoffParam(
		c.backoffInitialDuration,
		c.backoffMultiplier,
		c.backoffMaxDuration,
	)
}

// Builder assembles a Config through method chaining:
//
//	cfg, err := config.WithDefault().WithConcurrentRequests(4).Build()
type Builder struct {
	cfg Config
}

// WithDefault starts a builder from the default operational parameters.
func WithDefault() Builder {
	return Builder{cfg: Config{
		concurrentRequests:     3,
		requestsPerSecond:      2,
		baseDelay:              250 * time.Millisecond,
		jitter:                 100 * time.Millisecond,
		randomSeed:             0,
		maxRetries:             2,
		backoffInitialDuration: 1 * time.Second,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     30 * time.Second,
		timeout:                15 * time.Second,
		userAgent:              "docsmith/1.0 (+https://github.com/rohmanhakim/docsmith)",
		defaultHeaders:         map[string]string{},
		respectRobots:          true,
		seedSearch:             false,
		seedSearchLimit:        5,
		outputDir:              "output",
	}}
}

func (b Builder) WithConcurrentRequests(n int) Builder {
	b.cfg.concurrentRequests = n
	return b
}

func (b Builder) WithRequestsPerSecond(rps float64) Builder {
	b.cfg.requestsPerSecond = rps
	return b
}

func (b Builder) WithBaseDelay(d time.Duration) Builder {
	b.cfg.baseDelay = d
	return b
}

func (b Builder) WithJitter(d time.Duration) Builder {
	b.cfg.jitter = d
	return b
}

func (b Builder) WithRandomSeed(seed int64) Builder {
	b.cfg.randomSeed = seed
	return b
}

func (b Builder) WithMaxRetries(n int) Builder {
	b.cfg.maxRetries = n
	return b
}

func (b Builder) WithBackoff(initial time.Duration, multiplier float64, max time.Duration) Builder {
	b.cfg.backoffInitialDuration = initial
	b.cfg.backoffMultiplier = multiplier
	b.cfg.backoffMaxDuration = max
	return b
}

func (b Builder) WithTimeout(d time.Duration) Builder {
	b.cfg.timeout = d
	return b
}

func (b Builder) WithUserAgent(ua string) Builder {
	b.cfg.userAgent = ua
	return b
}

func (b Builder) WithDefaultHeaders(headers map[string]string) Builder {
	b.cfg.defaultHeaders = headers
	return b
}

func (b Builder) WithRespectRobots(respect bool) Builder {
	b.cfg.respectRobots = respect
	return b
}

func (b Builder) WithSeedSearch(enabled bool, limit int) Builder {
	b.cfg.seedSearch = enabled
	if limit > 0 {
		b.cfg.seedSearchLimit = limit
	}
	return b
}

func (b Builder) WithOutputDir(dir string) Builder {
	b.cfg.outputDir = dir
	return b
}

func (b Builder) WithDryRun(dryRun bool) Builder {
	b.cfg.dryRun = dryRun
	return b
}

func (b Builder) Build() (Config, error) {
	if b.cfg.concurrentRequests < 1 {
		return Config{}, fmt.Errorf("%w: concurrentRequests must be at least 1", ErrInvalidConfig)
	}
	if b.cfg.requestsPerSecond < 0 {
		return Config{}, fmt.Errorf("%w: requestsPerSecond cannot be negative", ErrInvalidConfig)
	}
	if b.cfg.maxRetries < 0 {
		return Config{}, fmt.Errorf("%w: maxRetries cannot be negative", ErrInvalidConfig)
	}
	if b.cfg.timeout <= 0 {
		return Config{}, fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	if strings.TrimSpace(b.cfg.userAgent) == "" {
		return Config{}, fmt.Errorf("%w: userAgent cannot be empty", ErrInvalidConfig)
	}
	return b.cfg, nil
}

// configDTO is the on-disk JSON shape. Unknown keys are rejected at
// decode time so typos surface instead of silently using defaults.
type configDTO struct {
	ConcurrentRequests     int               `json:"concurrentRequests,omitempty"`
	RequestsPerSecond      float64           `json:"requestsPerSecond,omitempty"`
	BaseDelayMs            int64             `json:"baseDelayMs,omitempty"`
	JitterMs               int64             `json:"jitterMs,omitempty"`
	RandomSeed             int64             `json:"randomSeed,omitempty"`
	MaxRetries             *int              `json:"maxRetries,omitempty"`
	BackoffInitialMs       int64             `json:"backoffInitialMs,omitempty"`
	BackoffMultiplier      float64           `json:"backoffMultiplier,omitempty"`
	BackoffMaxMs           int64             `json:"backoffMaxMs,omitempty"`
	TimeoutMs              int64             `json:"timeoutMs,omitempty"`
	UserAgent              string            `json:"userAgent,omitempty"`
	DefaultHeaders         map[string]string `json:"defaultHeaders,omitempty"`
	RespectRobots          *bool             `json:"respectRobots,omitempty"`
	SeedSearch             bool              `json:"seedSearch,omitempty"`
	SeedSearchLimit        int               `json:"seedSearchLimit,omitempty"`
	OutputDir              string            `json:"outputDir,omitempty"`
	DryRun                 bool              `json:"dryRun,omitempty"`
}

// WithConfigFile loads a Config from a JSON file, applying defaults for
// omitted fields.
func WithConfigFile(path string) (Config, error) {
	if _, err := os.Stat(path); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	dto := configDTO{}
	decoder := json.NewDecoder(strings.NewReader(string(content)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&dto); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}

	return newConfigFromDTO(dto)
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	builder := WithDefault()

	if dto.ConcurrentRequests != 0 {
		builder = builder.WithConcurrentRequests(dto.ConcurrentRequests)
	}
	if dto.RequestsPerSecond != 0 {
		builder = builder.WithRequestsPerSecond(dto.RequestsPerSecond)
	}
	if dto.BaseDelayMs != 0 {
		builder = builder.WithBaseDelay(time.Duration(dto.BaseDelayMs) * time.Millisecond)
	}
	if dto.JitterMs != 0 {
		builder = builder.WithJitter(time.Duration(dto.JitterMs) * time.Millisecond)
	}
	if dto.RandomSeed != 0 {
		builder = builder.WithRandomSeed(dto.RandomSeed)
	}
	if dto.MaxRetries != nil {
		builder = builder.WithMaxRetries(*dto.MaxRetries)
	}
	if dto.BackoffInitialMs != 0 || dto.BackoffMultiplier != 0 || dto.BackoffMaxMs != 0 {
		initial := builder.cfg.backoffInitialDuration
		multiplier := builder.cfg.backoffMultiplier
		max := builder.cfg.backoffMaxDuration
		if dto.BackoffInitialMs != 0 {
			initial = time.Duration(dto.BackoffInitialMs) * time.Millisecond
		}
		if dto.BackoffMultiplier != 0 {
			multiplier = dto.BackoffMultiplier
		}
		if dto.BackoffMaxMs != 0 {
			max = time.Duration(dto.BackoffMaxMs) * time.Millisecond
		}
		builder = builder.WithBackoff(initial, multiplier, max)
	}
	if dto.TimeoutMs != 0 {
		builder = builder.WithTimeout(time.Duration(dto.TimeoutMs) * time.Millisecond)
	}
	if dto.UserAgent != "" {
		builder = builder.WithUserAgent(dto.UserAgent)
	}
	if len(dto.DefaultHeaders) > 0 {
		builder = builder.WithDefaultHeaders(dto.DefaultHeaders)
	}
	if dto.RespectRobots != nil {
		builder = builder.WithRespectRobots(*dto.RespectRobots)
	}
	if dto.SeedSearch {
		builder = builder.WithSeedSearch(true, dto.SeedSearchLimit)
	}
	if dto.OutputDir != "" {
		builder = builder.WithOutputDir(dto.OutputDir)
	}
	if dto.DryRun {
		builder = builder.WithDryRun(true)
	}

	return builder.Build()
}
