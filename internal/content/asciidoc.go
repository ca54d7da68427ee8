package content

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

/*
asciidocHandler performs a basic structural extraction of AsciiDoc:
"=" heading markers, "[source,lang]" listing blocks delimited by
"----", and plain paragraphs. The recognized structure is rendered as
HTML and delegated to the HTML handler.
*/
type asciidocHandler struct {
	options Options
	html    *htmlHandler
}

func newAsciiDocHandler(options Options, html *htmlHandler) *asciidocHandler {
	return &asciidocHandler{options: options, html: html}
}

func (a *asciidocHandler) Name() string {
	return "AsciiDoc"
}

func (a *asciidocHandler) CanHandle(body []byte, contentType string) bool {
	if formatFromMIME(contentType) == FormatAsciiDoc {
		return true
	}
	return asciidocPattern.Match(body)
}

func (a *asciidocHandler) Process(body []byte, sourceURL string) ProcessedContent {
	rendered := asciidocToHTML(string(body))
	pc := a.html.Process([]byte(rendered), sourceURL)
	pc.format = FormatAsciiDoc
	return pc
}

var (
	adocHeadingPattern = regexp.MustCompile(`^(={1,6})\s+(.+)$`)
	adocSourcePattern  = regexp.MustCompile(`^\[source(?:\s*,\s*([A-Za-z0-9_+-]+))?[^\]]*\]$`)
	adocDelimiter      = "----"
)

func asciidocToHTML(text string) string {
	lines := strings.Split(text, "\n")
	var out strings.Builder
	out.WriteString("<html><body>\n")

	flushParagraph := func(parts []string) {
		joined := strings.TrimSpace(strings.Join(parts, " "))
		if joined != "" {
			fmt.Fprintf(&out, "<p>%s</p>\n", html.EscapeString(joined))
		}
	}

	var paragraph []string
	i := 0
	for i < len(lines) {
		line := lines[i]
		trimmed := strings.TrimRight(line, " \t")

		if m := adocHeadingPattern.FindStringSubmatch(trimmed); m != nil {
			flushParagraph(paragraph)
			paragraph = nil
			level := len(m[1])
			fmt.Fprintf(&out, "<h%d>%s</h%d>\n", level,
				html.EscapeString(strings.TrimSpace(m[2])), level)
			i++
			continue
		}

		if m := adocSourcePattern.FindStringSubmatch(strings.TrimSpace(trimmed)); m != nil {
			flushParagraph(paragraph)
			paragraph = nil
			language := strings.ToLower(m[1])
			i++
			if i < len(lines) && strings.TrimRight(lines[i], " \t") == adocDelimiter {
				i++
				var codeLines []string
				for i < len(lines) && strings.TrimRight(lines[i], " \t") != adocDelimiter {
					codeLines = append(codeLines, lines[i])
					i++
				}
				if i < len(lines) {
					i++
				}
				class := ""
				if language != "" {
					class = fmt.Sprintf(` class="language-%s"`, language)
				}
				fmt.Fprintf(&out, "<pre><code%s>%s</code></pre>\n", class,
					html.EscapeString(strings.Join(codeLines, "\n")))
			}
			continue
		}

		if strings.TrimSpace(trimmed) == adocDelimiter {
			flushParagraph(paragraph)
			paragraph = nil
			i++
			var codeLines []string
			for i < len(lines) && strings.TrimRight(lines[i], " \t") != adocDelimiter {
				codeLines = append(codeLines, lines[i])
				i++
			}
			if i < len(lines) {
				i++
			}
			fmt.Fprintf(&out, "<pre><code>%s</code></pre>\n",
				html.EscapeString(strings.Join(codeLines, "\n")))
			continue
		}

		if strings.TrimSpace(line) == "" {
			flushParagraph(paragraph)
			paragraph = nil
		} else {
			paragraph = append(paragraph, strings.TrimSpace(line))
		}
		i++
	}
	flushParagraph(paragraph)

	out.WriteString("</body></html>\n")
	return out.String()
}
