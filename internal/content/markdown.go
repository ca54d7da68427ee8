package content

import (
	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// markdownHandler renders markdown to HTML and delegates to the HTML
// handler, so markdown sources produce the same structured shape as
// HTML sources.
type markdownHandler struct {
	options Options
	html    *htmlHandler
}

func newMarkdownHandler(options Options, html *htmlHandler) *markdownHandler {
	return &markdownHandler{options: options, html: html}
}

func (m *markdownHandler) Name() string {
	return "Markdown"
}

func (m *markdownHandler) CanHandle(body []byte, contentType string) bool {
	if formatFromMIME(contentType) == FormatMarkdown {
		return true
	}
	return markdownPattern.Match(body) && !htmlPattern.Match(body)
}

func (m *markdownHandler) Process(body []byte, sourceURL string) ProcessedContent {
	rendered := renderMarkdown(body)
	pc := m.html.Process(rendered, sourceURL)
	pc.format = FormatMarkdown
	return pc
}

func renderMarkdown(body []byte) []byte {
	p := parser.NewWithExtensions(
		parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock,
	)
	doc := p.Parse(body)
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags,
	})
	return markdown.Render(doc, renderer)
}
