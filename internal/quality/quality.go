package quality

import (
	"fmt"
	"time"

	"github.com/rohmanhakim/docsmith/internal/content"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/internal/urlinfo"
)

// IssueType is the closed set of quality finding categories.
type IssueType string

const (
	IssueContentLength    IssueType = "content_length"
	IssueHeadingStructure IssueType = "heading_structure"
	IssueLinkCount        IssueType = "link_count"
	IssueCodeBlockLength  IssueType = "code_block_length"
	IssueMetadata         IssueType = "metadata"
	IssueGeneral          IssueType = "general"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one finding from the checker.
type Issue struct {
	issueType IssueType
	severity  Severity
	message   string
	location  string
	details   map[string]string
}

func NewIssue(issueType IssueType, severity Severity, message string, location string, details map[string]string) Issue {
	return Issue{
		issueType: issueType,
		severity:  severity,
		message:   message,
		location:  location,
		details:   details,
	}
}

func (i Issue) Type() IssueType            { return i.issueType }
func (i Issue) Severity() Severity         { return i.severity }
func (i Issue) Message() string            { return i.message }
func (i Issue) Location() string           { return i.location }
func (i Issue) Details() map[string]string { return i.details }

// Config tunes the checks. Zero disables the corresponding bound.
type Config struct {
	MinContentLength   int
	MaxContentLength   int
	MinHeadings        int
	MaxHeadingLevel    int
	MinInternalLinks   int
	MinCodeBlockLength int
	MaxCodeBlockLength int
	RequiredMetadata   []string
}

func DefaultConfig() Config {
	return Config{
		MinContentLength: 100,
		MaxContentLength: 0,
		MinHeadings:      1,
		MaxHeadingLevel:  4,
		MinInternalLinks: 0,
	}
}

/*
Checker evaluates a ProcessedContent against a Config.

Checks:
  - content length outside [min, max]: error below min, warning above max
  - fewer headings than the minimum: error
  - any heading deeper than the maximum level: warning
  - fewer internal links than the minimum: warning
  - any code block outside [min, max] length: warning
  - any missing required metadata field: error

Findings never stop processing and never fail a crawl.
*/
type Checker struct {
	config       Config
	metadataSink metadata.MetadataSink
}

func NewChecker(config Config, metadataSink metadata.MetadataSink) *Checker {
	return &Checker{config: config, metadataSink: metadataSink}
}

// Check runs every check and returns the findings plus a metrics map.
func (c *Checker) Check(pc content.ProcessedContent) ([]Issue, map[string]int) {
	var issues []Issue

	contentLength := len(pc.Markdown())
	internalLinks := countInternalLinks(pc)
	metrics := map[string]int{
		"content_length":      contentLength,
		"heading_count":       len(pc.Headings()),
		"internal_link_count": internalLinks,
		"code_block_count":    len(pc.CodeBlocks()),
	}

	if c.config.MinContentLength > 0 && contentLength < c.config.MinContentLength {
		issues = append(issues, NewIssue(
			IssueContentLength,
			SeverityError,
			fmt.Sprintf("content length %d below minimum %d", contentLength, c.config.MinContentLength),
			"body",
			map[string]string{"length": fmt.Sprintf("%d", contentLength)},
		))
	} else if c.config.MaxContentLength > 0 && contentLength > c.config.MaxContentLength {
		issues = append(issues, NewIssue(
			IssueContentLength,
			SeverityWarning,
			fmt.Sprintf("content length %d exceeds maximum %d", contentLength, c.config.MaxContentLength),
			"body",
			map[string]string{"length": fmt.Sprintf("%d", contentLength)},
		))
	}

	if c.config.MinHeadings > 0 && len(pc.Headings()) < c.config.MinHeadings {
		issues = append(issues, NewIssue(
			IssueHeadingStructure,
			SeverityError,
			fmt.Sprintf("found %d headings, expected at least %d", len(pc.Headings()), c.config.MinHeadings),
			"body",
			nil,
		))
	}
	if c.config.MaxHeadingLevel > 0 {
		for _, heading := range pc.Headings() {
			if heading.Level() > c.config.MaxHeadingLevel {
				issues = append(issues, NewIssue(
					IssueHeadingStructure,
					SeverityWarning,
					fmt.Sprintf("heading %q at level %d deeper than maximum %d",
						heading.Text(), heading.Level(), c.config.MaxHeadingLevel),
					"body",
					nil,
				))
			}
		}
	}

	if c.config.MinInternalLinks > 0 && internalLinks < c.config.MinInternalLinks {
		issues = append(issues, NewIssue(
			IssueLinkCount,
			SeverityWarning,
			fmt.Sprintf("found %d internal links, expected at least %d", internalLinks, c.config.MinInternalLinks),
			"body",
			nil,
		))
	}

	for i, block := range pc.CodeBlocks() {
		length := len(block.Code())
		if c.config.MinCodeBlockLength > 0 && length < c.config.MinCodeBlockLength {
			issues = append(issues, NewIssue(
				IssueCodeBlockLength,
				SeverityWarning,
				fmt.Sprintf("code block %d has length %d, below minimum %d", i, length, c.config.MinCodeBlockLength),
				"body",
				nil,
			))
		} else if c.config.MaxCodeBlockLength > 0 && length > c.config.MaxCodeBlockLength {
			issues = append(issues, NewIssue(
				IssueCodeBlockLength,
				SeverityWarning,
				fmt.Sprintf("code block %d has length %d, exceeds maximum %d", i, length, c.config.MaxCodeBlockLength),
				"body",
				nil,
			))
		}
	}

	for _, field := range c.config.RequiredMetadata {
		if value, ok := pc.Metadata()[field]; !ok || value == "" {
			issues = append(issues, NewIssue(
				IssueMetadata,
				SeverityError,
				fmt.Sprintf("required metadata field %q is missing", field),
				"",
				map[string]string{"field": field},
			))
		}
	}

	for _, issue := range issues {
		if issue.Severity() == SeverityError {
			c.metadataSink.RecordError(
				time.Now(),
				"quality",
				"Checker.Check",
				metadata.CauseContentInvalid,
				issue.Message(),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, pc.SourceURL()),
				},
			)
		}
	}

	return issues, metrics
}

// countInternalLinks counts links sharing the source URL's registered
// domain. Links that fail to parse are not counted.
func countInternalLinks(pc content.ProcessedContent) int {
	base := urlinfo.Parse(pc.SourceURL())
	if !base.IsValid() {
		return 0
	}
	count := 0
	for _, link := range pc.Links() {
		linkInfo := urlinfo.Parse(link.Href())
		if !linkInfo.IsValid() {
			continue
		}
		if linkInfo.Type(&base) == urlinfo.TypeInternal {
			count++
		}
	}
	return count
}
