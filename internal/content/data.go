package content

/*
ProcessedContent is the format-agnostic representation of one page:
canonical markdown plus a structured tree, with headings, code blocks,
links, assets, and a metadata bag extracted alongside.

Invariants:
  - Every link and asset URL is absolute, or a data URI kept verbatim.
  - Code block languages come from the configured allow-list or are empty.
  - Title falls back to the first H1, then the configured default.
*/
type ProcessedContent struct {
	sourceURL  string
	title      string
	markdown   string
	structure  []Node
	headings   []Heading
	codeBlocks []CodeBlock
	links      []Link
	assets     Assets
	metadata   map[string]string
	errors     []string
	format     Format
}

func (p ProcessedContent) SourceURL() string           { return p.sourceURL }
func (p ProcessedContent) Title() string               { return p.title }
func (p ProcessedContent) Markdown() string            { return p.markdown }
func (p ProcessedContent) Structure() []Node           { return p.structure }
func (p ProcessedContent) Headings() []Heading         { return p.headings }
func (p ProcessedContent) CodeBlocks() []CodeBlock     { return p.codeBlocks }
func (p ProcessedContent) Links() []Link               { return p.links }
func (p ProcessedContent) Assets() Assets              { return p.assets }
func (p ProcessedContent) Metadata() map[string]string { return p.metadata }
func (p ProcessedContent) Errors() []string            { return p.errors }
func (p ProcessedContent) Format() Format              { return p.format }

// Text returns the plain text of the structured tree, used for
// categorization and indexing.
func (p ProcessedContent) Text() string {
	var parts []string
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for _, n := range nodes {
			if n.text != "" {
				parts = append(parts, n.text)
			}
			walk(n.children)
		}
	}
	walk(p.structure)
	return joinNonEmpty(parts, " ")
}

func joinNonEmpty(parts []string, sep string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}

type NodeKind string

const (
	NodeSection   NodeKind = "section"
	NodeHeading   NodeKind = "heading"
	NodeParagraph NodeKind = "paragraph"
	NodeList      NodeKind = "list"
	NodeListItem  NodeKind = "list_item"
	NodeCodeBlock NodeKind = "code_block"
	NodeTable     NodeKind = "table"
	NodeText      NodeKind = "text"
	NodeLink      NodeKind = "link"
	NodeImage     NodeKind = "image"
)

// Node is one element of the structured outline. Sections nest; other
// kinds are leaves or carry inline children (paragraphs hold text and
// link nodes).
type Node struct {
	kind     NodeKind
	text     string
	level    int
	language string
	url      string
	children []Node
}

func (n Node) Kind() NodeKind   { return n.kind }
func (n Node) Text() string     { return n.text }
func (n Node) Level() int       { return n.level }
func (n Node) Language() string { return n.language }
func (n Node) URL() string      { return n.url }
func (n Node) Children() []Node { return n.children }

type Heading struct {
	level int
	text  string
	id    string
}

func NewHeading(level int, text string, id string) Heading {
	return Heading{level: level, text: text, id: id}
}

func (h Heading) Level() int   { return h.level }
func (h Heading) Text() string { return h.text }
func (h Heading) ID() string   { return h.id }

type CodeBlock struct {
	language string
	code     string
}

func NewCodeBlock(language string, code string) CodeBlock {
	return CodeBlock{language: language, code: code}
}

func (c CodeBlock) Language() string { return c.language }
func (c CodeBlock) Code() string     { return c.code }

type Link struct {
	text string
	href string
}

func NewLink(text string, href string) Link {
	return Link{text: text, href: href}
}

func (l Link) Text() string { return l.text }
func (l Link) Href() string { return l.href }

// Assets is the per-page inventory of referenced resources, each as an
// absolute URL or data URI.
type Assets struct {
	images      []string
	stylesheets []string
	scripts     []string
	media       []string
}

func (a Assets) Images() []string      { return a.images }
func (a Assets) Stylesheets() []string { return a.stylesheets }
func (a Assets) Scripts() []string     { return a.scripts }
func (a Assets) Media() []string       { return a.media }

// Options tunes the content pipeline. Zero values take the defaults
// from DefaultOptions.
type Options struct {
	// Decoded pages outside [MinContentLength, MaxContentLength] are rejected.
	MinContentLength int
	MaxContentLength int
	// Headings deeper than this are not recorded.
	MaxHeadingLevel int
	// Code block languages kept as-is; others pass through with empty
	// language. Empty list allows every language.
	CodeLanguages []string
	// Title used when neither <title> nor an H1 exists.
	DefaultTitle string
	// Link hrefs failing any filter are dropped from the link list.
	URLFilters []func(href string) bool
}

func DefaultOptions() Options {
	return Options{
		MinContentLength: 1,
		MaxContentLength: 10 * 1024 * 1024,
		MaxHeadingLevel:  6,
		DefaultTitle:     "Untitled Document",
	}
}

func (o Options) withDefaults() Options {
	defaults := DefaultOptions()
	if o.MinContentLength == 0 {
		o.MinContentLength = defaults.MinContentLength
	}
	if o.MaxContentLength == 0 {
		o.MaxContentLength = defaults.MaxContentLength
	}
	if o.MaxHeadingLevel == 0 {
		o.MaxHeadingLevel = defaults.MaxHeadingLevel
	}
	if o.DefaultTitle == "" {
		o.DefaultTitle = defaults.DefaultTitle
	}
	return o
}

func (o Options) allowsLanguage(language string) bool {
	if len(o.CodeLanguages) == 0 {
		return true
	}
	for _, allowed := range o.CodeLanguages {
		if allowed == language {
			return true
		}
	}
	return false
}
