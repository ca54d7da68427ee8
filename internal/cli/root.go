package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohmanhakim/docsmith/internal/build"
	"github.com/rohmanhakim/docsmith/internal/config"
	"github.com/rohmanhakim/docsmith/internal/engine"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/storage"
)

var (
	cfgFile         string
	target          string
	maxDepth        int
	followExternal  bool
	concurrency     int
	requestsPerSec  float64
	outputDir       string
	library         string
	dryRun          bool
	maxPages        int
	maxRetries      int
	userAgent       string
	timeout         time.Duration
	baseDelay       time.Duration
	jitter          time.Duration
	randomSeed      int64
	excludePatterns []string
	requirePatterns []string
	allowedPaths    []string
	excludedPaths   []string
	contentTypes    []string
	noRobots        bool
	seedSearch      bool
	seedSearchLimit int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "docsmith <target>",
	Short:   "A documentation crawler producing a searchable markdown corpus.",
	Version: build.FullVersion(),
	Long: `docsmith crawls technical documentation sites and converts their
content into clean, structured Markdown. The target can be a URL, a bare
hostname, or a package name resolved against common documentation
layouts (readthedocs, docs.<pkg>.org and friends).

Crawled pages are normalized, quality-checked, deduplicated, versioned,
and written as one markdown file per document.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			target = args[0]
		}
		if strings.TrimSpace(target) == "" {
			fmt.Fprintf(os.Stderr, "Error: a crawl target is required (a URL or a package name).\n")
			cmd.Usage()
			os.Exit(1)
		}
		return runCrawl()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path (e.g., /home/myuser/config.json)")
	rootCmd.PersistentFlags().StringVar(&target, "target", "", "crawl target: a URL or a package name")
	rootCmd.PersistentFlags().IntVar(&maxDepth, "max-depth", 1, "maximum link depth from the seed")
	rootCmd.PersistentFlags().BoolVar(&followExternal, "follow-external", false, "follow links leaving the seed's registered domain")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 0, "number of concurrent fetch workers")
	rootCmd.PersistentFlags().Float64Var(&requestsPerSec, "requests-per-second", 0, "global request pacing")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "root output directory for crawled content")
	rootCmd.PersistentFlags().StringVar(&library, "library", "", "library name used in output filenames (defaults to the seed host)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "crawl without writing output")
	rootCmd.PersistentFlags().IntVar(&maxPages, "max-pages", 0, "maximum number of pages to fetch (0 for unlimited)")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "max-retries", -1, "retries after the first attempt (-1 for default)")
	rootCmd.PersistentFlags().StringVar(&userAgent, "user-agent", "", "user agent string for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "timeout for HTTP requests")
	rootCmd.PersistentFlags().DurationVar(&baseDelay, "base-delay", 0, "base delay between HTTP requests to the same host")
	rootCmd.PersistentFlags().DurationVar(&jitter, "jitter", 0, "random jitter added to retry delays")
	rootCmd.PersistentFlags().Int64Var(&randomSeed, "random-seed", 0, "seed for random number generation (0 for current time)")
	rootCmd.PersistentFlags().StringArrayVar(&excludePatterns, "exclude-pattern", []string{}, "regex; matching URLs are rejected (can be repeated)")
	rootCmd.PersistentFlags().StringArrayVar(&requirePatterns, "require-pattern", []string{}, "regex; URLs must match at least one (can be repeated)")
	rootCmd.PersistentFlags().StringArrayVar(&allowedPaths, "allowed-path-prefix", []string{}, "restrict crawl to paths like `/docs`, `/guide`")
	rootCmd.PersistentFlags().StringArrayVar(&excludedPaths, "excluded-path-prefix", []string{}, "paths starting with these prefixes are skipped")
	rootCmd.PersistentFlags().StringArrayVar(&contentTypes, "content-type", []string{}, "accepted content types (defaults to html/markdown/plain)")
	rootCmd.PersistentFlags().BoolVar(&noRobots, "no-robots", false, "ignore robots.txt")
	rootCmd.PersistentFlags().BoolVar(&seedSearch, "seed-search", false, "consult the external search service for extra seeds")
	rootCmd.PersistentFlags().IntVar(&seedSearchLimit, "seed-search-limit", 0, "cap on search-provided seeds")
}

func runCrawl() error {
	cfg, err := initConfig()
	if err != nil {
		return err
	}
	crawlTarget, err := initTarget()
	if err != nil {
		return err
	}

	recorder := metadata.NewRecorder("cli-worker")
	crawler, err := engine.NewEngine(cfg, engine.Deps{
		MetadataSink: &recorder,
		Finalizer:    &recorder,
	})
	if err != nil {
		return err
	}
	defer crawler.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Crawling %s (depth %d", crawlTarget.Seed(), crawlTarget.Depth())
	if crawlTarget.MaxPages() > 0 {
		fmt.Printf(", max %d pages", crawlTarget.MaxPages())
	}
	fmt.Println(")")

	result := crawler.Crawl(ctx, crawlTarget)
	if result.FatalError != "" {
		return fmt.Errorf("crawl failed: %s", result.FatalError)
	}

	if !cfg.DryRun() {
		if err := writeDocuments(cfg, crawlTarget, crawler, &recorder); err != nil {
			return err
		}
	}

	printSummary(result, cfg.DryRun())
	if result.Stats.SuccessfulCrawls() == 0 {
		return fmt.Errorf("no pages crawled successfully")
	}
	return nil
}

func writeDocuments(
	cfg config.Config,
	crawlTarget config.Target,
	crawler *engine.Engine,
	recorder *metadata.Recorder,
) error {
	sink := storage.NewMarkdownSink(recorder)
	libraryName := libraryNameFor(crawlTarget)

	written := 0
	for index, doc := range crawler.Organizer().Documents() {
		latest, ok := doc.LatestVersion()
		if !ok {
			continue
		}
		if _, err := sink.Write(cfg.OutputDir(), libraryName, crawlTarget.Seed(), index+1, latest.Content()); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write %s: %s\n", doc.Metadata().URL(), err.Error())
			continue
		}
		written++
	}
	fmt.Printf("Wrote %d markdown files to %s\n", written, cfg.OutputDir())
	return nil
}

func libraryNameFor(crawlTarget config.Target) string {
	if library != "" {
		return library
	}
	seed := crawlTarget.Seed()
	if idx := strings.Index(seed, "://"); idx >= 0 {
		seed = seed[idx+3:]
	}
	if idx := strings.IndexAny(seed, "/?#"); idx >= 0 {
		seed = seed[:idx]
	}
	if seed == "" {
		return "docs"
	}
	return seed
}

func printSummary(result engine.CrawlResult, dryRun bool) {
	stats := result.Stats
	fmt.Printf("Pages attempted: %d\n", stats.PagesAttempted())
	fmt.Printf("Successful: %d\n", stats.SuccessfulCrawls())
	fmt.Printf("Failed: %d\n", stats.FailedCrawls())
	fmt.Printf("Bytes processed: %d\n", stats.BytesProcessed())
	fmt.Printf("Quality issues: %d\n", stats.QualityIssues())
	fmt.Printf("Documents: %d\n", len(result.DocumentIDs))
	fmt.Printf("Elapsed: %v\n", stats.EndTime().Sub(stats.StartTime()).Round(time.Millisecond))
	if dryRun {
		fmt.Println("Dry run: no output written")
	}
	for _, failed := range result.FailedURLs {
		fmt.Fprintf(os.Stderr, "Failed: %s (%d) %s\n", failed.URL, failed.Status, failed.Error)
	}
}

// initConfig builds the crawler config from the config file when given,
// else from the CLI flags over the defaults.
func initConfig() (config.Config, error) {
	if cfgFile != "" {
		fmt.Printf("Initializing config from file: %s\n", cfgFile)
		cfg, err := config.WithConfigFile(cfgFile)
		if err != nil {
			return cfg, fmt.Errorf("error initializing config from file: %w", err)
		}
		return cfg, nil
	}

	builder := config.WithDefault()
	if concurrency > 0 {
		builder = builder.WithConcurrentRequests(concurrency)
	}
	if requestsPerSec > 0 {
		builder = builder.WithRequestsPerSecond(requestsPerSec)
	}
	if baseDelay > 0 {
		builder = builder.WithBaseDelay(baseDelay)
	}
	if jitter > 0 {
		builder = builder.WithJitter(jitter)
	}
	if randomSeed != 0 {
		builder = builder.WithRandomSeed(randomSeed)
	}
	if maxRetries >= 0 {
		builder = builder.WithMaxRetries(maxRetries)
	}
	if timeout > 0 {
		builder = builder.WithTimeout(timeout)
	}
	if userAgent != "" {
		builder = builder.WithUserAgent(userAgent)
	}
	if noRobots {
		builder = builder.WithRespectRobots(false)
	}
	if seedSearch {
		builder = builder.WithSeedSearch(true, seedSearchLimit)
	}
	if outputDir != "" {
		builder = builder.WithOutputDir(outputDir)
	}
	if dryRun {
		builder = builder.WithDryRun(true)
	}
	return builder.Build()
}

func initTarget() (config.Target, error) {
	builder := config.NewTarget(target).
		WithDepth(maxDepth).
		WithFollowExternal(followExternal).
		WithExcludePatterns(excludePatterns).
		WithRequiredPatterns(requirePatterns).
		WithMaxPages(maxPages).
		WithAllowedPaths(allowedPaths).
		WithExcludedPaths(excludedPaths)
	if len(contentTypes) > 0 {
		builder = builder.WithContentTypes(contentTypes)
	}
	return builder.Build()
}

// ResetFlags restores flag state between test runs.
func ResetFlags() {
	cfgFile = ""
	target = ""
	maxDepth = 1
	followExternal = false
	concurrency = 0
	requestsPerSec = 0
	outputDir = ""
	library = ""
	dryRun = false
	maxPages = 0
	maxRetries = -1
	userAgent = ""
	timeout = 0
	baseDelay = 0
	jitter = 0
	randomSeed = 0
	excludePatterns = []string{}
	requirePatterns = []string{}
	allowedPaths = []string{}
	excludedPaths = []string{}
	contentTypes = []string{}
	noRobots = false
	seedSearch = false
	seedSearchLimit = 0
}
