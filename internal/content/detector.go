package content

import (
	"regexp"
	"strings"
)

// Format names a recognized content format.
type Format string

const (
	FormatHTML      Format = "html"
	FormatMarkdown  Format = "markdown"
	FormatRST       Format = "restructuredtext"
	FormatAsciiDoc  Format = "asciidoc"
	FormatJSON      Format = "json"
	FormatXML       Format = "xml"
	FormatYAML      Format = "yaml"
	FormatPlainText Format = "plaintext"
	FormatUnknown   Format = "unknown"
)

/*
Detector resolves the format of a fetched body.

Detection order:
 1. An explicit format argument.
 2. The MIME type from the response header.
 3. The filename extension of the URL path.
 4. Content sniffing.
*/
type Detector struct{}

func NewDetector() Detector {
	return Detector{}
}

func (d Detector) Detect(body []byte, contentType string, urlPath string, explicit Format) Format {
	if explicit != "" && explicit != FormatUnknown {
		return explicit
	}
	if f := formatFromMIME(contentType); f != FormatUnknown {
		return f
	}
	if f := formatFromExtension(urlPath); f != FormatUnknown {
		return f
	}
	return sniff(body)
}

func formatFromMIME(contentType string) Format {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(mediaType, ";"); idx >= 0 {
		mediaType = strings.TrimSpace(mediaType[:idx])
	}
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return FormatHTML
	case "text/markdown", "text/x-markdown":
		return FormatMarkdown
	case "text/x-rst":
		return FormatRST
	case "text/asciidoc", "text/x-asciidoc":
		return FormatAsciiDoc
	case "application/json", "application/ld+json":
		return FormatJSON
	case "text/xml", "application/xml":
		return FormatXML
	case "application/yaml", "text/yaml", "application/x-yaml":
		return FormatYAML
	case "text/plain":
		// text/plain is what servers send for most raw doc files;
		// let the extension or the body decide.
		return FormatUnknown
	}
	return FormatUnknown
}

func formatFromExtension(urlPath string) Format {
	lower := strings.ToLower(urlPath)
	switch {
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"),
		strings.HasSuffix(lower, ".xhtml"):
		return FormatHTML
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".markdown"):
		return FormatMarkdown
	case strings.HasSuffix(lower, ".rst"):
		return FormatRST
	case strings.HasSuffix(lower, ".adoc"), strings.HasSuffix(lower, ".asciidoc"):
		return FormatAsciiDoc
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON
	case strings.HasSuffix(lower, ".xml"):
		return FormatXML
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return FormatYAML
	case strings.HasSuffix(lower, ".txt"):
		return FormatPlainText
	}
	return FormatUnknown
}

var (
	htmlPattern       = regexp.MustCompile(`(?i)<!doctype\s+html|<html[\s>]|<head[\s>]|<body[\s>]`)
	markdownPattern   = regexp.MustCompile(`(?m)^#{1,6}\s+\S|^\s*[-*+]\s+\S|^\x60\x60\x60|\[[^\]]+\]\([^)]+\)`)
	rstPattern        = regexp.MustCompile(`(?m)^[=\-~^"]{3,}\s*$|^\.\.\s+\w+::`)
	asciidocPattern   = regexp.MustCompile(`(?m)^={1,6}[ \t]+\S|^\[source[,\]]`)
	xmlPattern        = regexp.MustCompile(`^\s*<\?xml`)
	yamlPattern       = regexp.MustCompile(`(?m)^---\s*$|^\w[\w-]*:\s+\S`)
)

// sniff inspects the first chunk of the body for format signatures.
// HTML wins over everything; lightweight markup formats are checked in
// decreasing order of signature specificity.
func sniff(body []byte) Format {
	sample := body
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	text := string(sample)
	trimmed := strings.TrimSpace(text)

	switch {
	case htmlPattern.MatchString(text):
		return FormatHTML
	case xmlPattern.MatchString(text):
		return FormatXML
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return FormatJSON
	case asciidocPattern.MatchString(text):
		return FormatAsciiDoc
	case rstPattern.MatchString(text) && !markdownPattern.MatchString(text):
		return FormatRST
	case markdownPattern.MatchString(text):
		return FormatMarkdown
	case yamlPattern.MatchString(text):
		return FormatYAML
	case len(trimmed) > 0:
		return FormatPlainText
	}
	return FormatUnknown
}
