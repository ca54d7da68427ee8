package content

import (
	"fmt"
	"html"
	"strings"
)

/*
rstHandler performs a basic structural extraction of reStructuredText:
it recognizes section titles (a line followed by an adornment line of
repeated punctuation), literal blocks introduced by "::", and plain
paragraphs. The recognized structure is rendered as HTML and delegated
to the HTML handler.

Adornment characters are assigned heading levels in order of first
appearance, which matches how docutils infers section hierarchy.
*/
type rstHandler struct {
	options Options
	html    *htmlHandler
}

func newRSTHandler(options Options, html *htmlHandler) *rstHandler {
	return &rstHandler{options: options, html: html}
}

func (r *rstHandler) Name() string {
	return "reStructuredText"
}

func (r *rstHandler) CanHandle(body []byte, contentType string) bool {
	if formatFromMIME(contentType) == FormatRST {
		return true
	}
	return rstPattern.Match(body)
}

func (r *rstHandler) Process(body []byte, sourceURL string) ProcessedContent {
	rendered := rstToHTML(string(body))
	pc := r.html.Process([]byte(rendered), sourceURL)
	pc.format = FormatRST
	return pc
}

const rstAdornmentChars = `=-~^"'` + "`" + `#*+.:_`

func isAdornmentLine(line string) (rune, bool) {
	trimmed := strings.TrimRight(line, " \t")
	if len(trimmed) < 3 {
		return 0, false
	}
	first := rune(trimmed[0])
	if !strings.ContainsRune(rstAdornmentChars, first) {
		return 0, false
	}
	for _, c := range trimmed {
		if c != first {
			return 0, false
		}
	}
	return first, true
}

func rstToHTML(text string) string {
	lines := strings.Split(text, "\n")
	var out strings.Builder
	out.WriteString("<html><body>\n")

	levelByAdornment := map[rune]int{}
	nextLevel := 1

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

		// Section title: non-empty line directly over an adornment line
		// at least as long as the title.
		if strings.TrimSpace(line) != "" && i+1 < len(lines) {
			if adornment, ok := isAdornmentLine(lines[i+1]); ok &&
				len(strings.TrimRight(lines[i+1], " \t")) >= len(strings.TrimSpace(line)) {
				flushParagraph(paragraph)
				paragraph = nil

				level, seen := levelByAdornment[adornment]
				if !seen {
					level = nextLevel
					if nextLevel < 6 {
						nextLevel++
					}
					levelByAdornment[adornment] = level
				}
				fmt.Fprintf(&out, "<h%d>%s</h%d>\n", level,
					html.EscapeString(strings.TrimSpace(line)), level)
				i += 2
				continue
			}
		}

		// Literal block: paragraph ending in "::" followed by an
		// indented block.
		if strings.HasSuffix(strings.TrimRight(line, " \t"), "::") {
			intro := strings.TrimSuffix(strings.TrimRight(line, " \t"), "::")
			if strings.TrimSpace(intro) != "" {
				paragraph = append(paragraph, strings.TrimSpace(intro)+":")
			}
			flushParagraph(paragraph)
			paragraph = nil
			i++
			for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
				i++
			}
			var codeLines []string
			for i < len(lines) {
				if strings.TrimSpace(lines[i]) == "" {
					codeLines = append(codeLines, "")
					i++
					continue
				}
				if !strings.HasPrefix(lines[i], " ") && !strings.HasPrefix(lines[i], "\t") {
					break
				}
				codeLines = append(codeLines, lines[i])
				i++
			}
			if len(codeLines) > 0 {
				fmt.Fprintf(&out, "<pre><code>%s</code></pre>\n",
					html.EscapeString(dedent(strings.Join(codeLines, "\n"))))
			}
			continue
		}

		if strings.TrimSpace(line) == "" {
			flushParagraph(paragraph)
			paragraph = nil
		} else if adornment, ok := isAdornmentLine(line); ok && len(paragraph) == 0 {
			// Transition or stray adornment, skip.
			_ = adornment
		} else {
			paragraph = append(paragraph, strings.TrimSpace(line))
		}
		i++
	}
	flushParagraph(paragraph)

	out.WriteString("</body></html>\n")
	return out.String()
}
