package content

import (
	"fmt"
	"strings"
)

// plainTextHandler is the fallback of last resort: paragraphs split on
// blank lines, the first non-empty line promoted to title.
type plainTextHandler struct {
	options Options
}

func newPlainTextHandler(options Options) *plainTextHandler {
	return &plainTextHandler{options: options}
}

func (p *plainTextHandler) Name() string {
	return "Plain Text"
}

func (p *plainTextHandler) CanHandle(body []byte, contentType string) bool {
	return true
}

func (p *plainTextHandler) Process(body []byte, sourceURL string) ProcessedContent {
	pc := ProcessedContent{
		sourceURL: sourceURL,
		title:     p.options.DefaultTitle,
		metadata:  map[string]string{},
		format:    FormatPlainText,
	}

	if len(body) > p.options.MaxContentLength {
		pc.errors = append(pc.errors, fmt.Sprintf(
			"content length %d exceeds maximum %d", len(body), p.options.MaxContentLength))
		return pc
	}
	if len(body) < p.options.MinContentLength {
		pc.errors = append(pc.errors, fmt.Sprintf(
			"content length %d below minimum %d", len(body), p.options.MinContentLength))
		return pc
	}

	text := strings.ReplaceAll(string(body), "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			pc.title = collapseWhitespace(trimmed)
			break
		}
	}
	pc.metadata["title"] = pc.title

	for _, block := range strings.Split(text, "\n\n") {
		paragraph := collapseWhitespace(strings.TrimSpace(block))
		if paragraph == "" {
			continue
		}
		pc.structure = append(pc.structure, Node{kind: NodeParagraph, text: paragraph})
	}

	pc.markdown = strings.TrimSpace(blankLinePattern.ReplaceAllString(text, "\n\n"))
	return pc
}
