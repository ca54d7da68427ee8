package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohmanhakim/docsmith/internal/config"
)

func TestInitConfig_Defaults(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	cfg, err := initConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.ConcurrentRequests())
	assert.Equal(t, 2, cfg.MaxRetries())
	assert.True(t, cfg.RespectRobots())
	assert.Equal(t, "output", cfg.OutputDir())
}

func TestInitConfig_FlagOverrides(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	concurrency = 5
	requestsPerSec = 3
	maxRetries = 0
	noRobots = true
	outputDir = "corpus"
	dryRun = true
	userAgent = "tester/1.0"
	timeout = 5 * time.Second

	cfg, err := initConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.ConcurrentRequests())
	assert.Equal(t, float64(3), cfg.RequestsPerSecond())
	assert.Equal(t, 0, cfg.MaxRetries(), "explicit zero retries must stick")
	assert.False(t, cfg.RespectRobots(), "--no-robots must disable robots")
	assert.Equal(t, "corpus", cfg.OutputDir())
	assert.True(t, cfg.DryRun())
	assert.Equal(t, "tester/1.0", cfg.UserAgent())
	assert.Equal(t, 5*time.Second, cfg.Timeout())
}

func TestInitConfig_FromFile(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"userAgent": "file-agent/1.0", "concurrentRequests": 7}`), 0644))
	cfgFile = path

	cfg, err := initConfig()
	require.NoError(t, err)
	assert.Equal(t, "file-agent/1.0", cfg.UserAgent())
	assert.Equal(t, 7, cfg.ConcurrentRequests())
}

func TestInitTarget(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	target = "https://docs.example.com/guide/"
	maxDepth = 2
	maxPages = 7
	excludePatterns = []string{"legacy"}

	crawlTarget, err := initTarget()
	require.NoError(t, err)
	assert.Equal(t, "https://docs.example.com/guide/", crawlTarget.Seed())
	assert.Equal(t, 2, crawlTarget.Depth())
	assert.Equal(t, 7, crawlTarget.MaxPages())
	assert.True(t, crawlTarget.MatchesExclude("https://docs.example.com/guide/legacy.html"))
	assert.True(t, crawlTarget.AllowsContentType("text/html"))
}

func TestInitTarget_InvalidPattern(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	target = "https://docs.example.com/"
	excludePatterns = []string{"["}

	_, err := initTarget()
	assert.Error(t, err, "invalid exclude regex must be rejected")
}

func TestLibraryNameFor(t *testing.T) {
	ResetFlags()
	defer ResetFlags()

	urlTarget, err := config.NewTarget("https://docs.example.com/guide/").Build()
	require.NoError(t, err)
	assert.Equal(t, "docs.example.com", libraryNameFor(urlTarget))

	pkgTarget, err := config.NewTarget("mylib").Build()
	require.NoError(t, err)
	assert.Equal(t, "mylib", libraryNameFor(pkgTarget))

	library = "override"
	assert.Equal(t, "override", libraryNameFor(urlTarget))
}
