package config_test

import (
	"errors"
	"testing"

	"github.com/rohmanhakim/docsmith/internal/config"
)

func TestNewTarget_Defaults(t *testing.T) {
	target, err := config.NewTarget("https://docs.example.com").Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Depth() != 1 {
		t.Errorf("depth: got %d", target.Depth())
	}
	if target.FollowExternal() {
		t.Error("followExternal should default off")
	}
	if target.MaxPages() != 0 {
		t.Errorf("maxPages: got %d", target.MaxPages())
	}
	if len(target.ContentTypes()) == 0 {
		t.Error("expected default content types")
	}
}

func TestTarget_Validation(t *testing.T) {
	cases := []struct {
		name    string
		builder config.TargetBuilder
	}{
		{"empty seed", config.NewTarget("  ")},
		{"negative depth", config.NewTarget("https://example.com").WithDepth(-1)},
		{"negative max pages", config.NewTarget("https://example.com").WithMaxPages(-1)},
		{"bad exclude regex", config.NewTarget("https://example.com").WithExcludePatterns([]string{"["})},
		{"bad required regex", config.NewTarget("https://example.com").WithRequiredPatterns([]string{"("})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.builder.Build(); !errors.Is(err, config.ErrInvalidTarget) {
				t.Errorf("expected ErrInvalidTarget, got %v", err)
			}
		})
	}
}

func TestTarget_Patterns(t *testing.T) {
	target, err := config.NewTarget("https://docs.example.com").
		WithExcludePatterns([]string{`\.pdf$`, `/internal/`}).
		WithRequiredPatterns([]string{`/docs/`}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !target.MatchesExclude("https://docs.example.com/manual.pdf") {
		t.Error("pdf should match exclude")
	}
	if target.MatchesExclude("https://docs.example.com/docs/page") {
		t.Error("plain page should not match exclude")
	}
	if !target.MatchesRequired("https://docs.example.com/docs/page") {
		t.Error("docs page should satisfy required patterns")
	}
	if target.MatchesRequired("https://docs.example.com/blog/post") {
		t.Error("blog page should fail required patterns")
	}
}

func TestTarget_MatchesRequired_EmptyAdmitsAll(t *testing.T) {
	target, err := config.NewTarget("https://docs.example.com").Build()
	if err != nil {
		t.Fatal(err)
	}
	if !target.MatchesRequired("https://anything.example.com/whatever") {
		t.Error("empty required list must admit every URL")
	}
}

func TestTarget_AllowsContentType(t *testing.T) {
	target, err := config.NewTarget("https://docs.example.com").Build()
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		contentType string
		want        bool
	}{
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"text/markdown", true},
		{"text/plain", true},
		{"application/pdf", false},
		{"image/png", false},
	}
	for _, tc := range cases {
		if got := target.AllowsContentType(tc.contentType); got != tc.want {
			t.Errorf("%q: expected %v, got %v", tc.contentType, tc.want, got)
		}
	}
}

func TestTarget_AllowsPath(t *testing.T) {
	target, err := config.NewTarget("https://docs.example.com").
		WithAllowedPaths([]string{"/docs", "/guide"}).
		WithExcludedPaths([]string{"/docs/private"}).
		Build()
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		path string
		want bool
	}{
		{"/docs/intro", true},
		{"/guide/start", true},
		{"/docs/private/secret", false},
		{"/blog/post", false},
	}
	for _, tc := range cases {
		if got := target.AllowsPath(tc.path); got != tc.want {
			t.Errorf("%q: expected %v, got %v", tc.path, tc.want, got)
		}
	}
}
