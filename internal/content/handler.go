package content

import (
	"fmt"
	"net/url"
	"time"

	"github.com/rohmanhakim/docsmith/internal/metadata"
)

// Handler processes one content format into a ProcessedContent.
type Handler interface {
	// Name is the display name of the format.
	Name() string
	// CanHandle reports whether this handler accepts the content.
	CanHandle(body []byte, contentType string) bool
	// Process converts raw bytes into structured content. Errors inside
	// the pipeline are best-effort: they land in the result's error list
	// and processing continues.
	Process(body []byte, sourceURL string) ProcessedContent
}

/*
Processor is the entry point of the content pipeline: it detects the
format of a fetched body, routes it to the registered handler, and
falls back to plain text when nothing else matches.

Non-HTML handlers convert their input to HTML and delegate to the HTML
handler, so the structured output has a single shape regardless of the
source format.
*/
type Processor struct {
	detector     Detector
	handlers     map[Format]Handler
	fallback     Handler
	metadataSink metadata.MetadataSink
}

func NewProcessor(options Options, metadataSink metadata.MetadataSink) *Processor {
	options = options.withDefaults()
	htmlHandler := newHTMLHandler(options)
	plaintextHandler := newPlainTextHandler(options)

	return &Processor{
		detector: NewDetector(),
		handlers: map[Format]Handler{
			FormatHTML:      htmlHandler,
			FormatMarkdown:  newMarkdownHandler(options, htmlHandler),
			FormatRST:       newRSTHandler(options, htmlHandler),
			FormatAsciiDoc:  newAsciiDocHandler(options, htmlHandler),
			FormatPlainText: plaintextHandler,
		},
		fallback:     plaintextHandler,
		metadataSink: metadataSink,
	}
}

// Process runs detection and the matching handler over a fetched body.
// The explicit format, when non-empty, overrides detection.
func (p *Processor) Process(body []byte, contentType string, sourceURL string, explicit Format) ProcessedContent {
	format := p.detector.Detect(body, contentType, pathOf(sourceURL), explicit)

	handler, ok := p.handlers[format]
	if !ok || !handler.CanHandle(body, contentType) {
		p.metadataSink.RecordError(
			time.Now(),
			"content",
			"Processor.Process",
			metadata.CauseContentInvalid,
			fmt.Sprintf("no handler for format %q, falling back to plain text", format),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, sourceURL),
				metadata.NewAttr(metadata.AttrFormat, string(format)),
			},
		)
		handler = p.fallback
	}

	result := handler.Process(body, sourceURL)
	for _, errMsg := range result.Errors() {
		p.metadataSink.RecordError(
			time.Now(),
			"content",
			"Processor.Process",
			metadata.CauseContentInvalid,
			errMsg,
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, sourceURL),
				metadata.NewAttr(metadata.AttrFormat, string(result.Format())),
			},
		)
	}
	return result
}

func pathOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Path
}
