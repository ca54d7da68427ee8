package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	"github.com/kennygrant/sanitize"
	"golang.org/x/net/html"
)

/*
htmlHandler runs the HTML pipeline:

 1. Length gate.
 2. Forgiving parse.
 3. Strip script/style/noscript/iframe and comments
    (JSON-LD blocks are captured first).
 4. Determine the effective base URL (<base> wins over the caller's).
 5. Extract metadata: title, <meta>, JSON-LD, microdata.
 6. Resolve assets to absolute URLs; data URIs kept verbatim.
 7. Rewrite links: dangerous schemes become "#", relative hrefs become
    absolute in the DOM itself.
 8. Extract the section-centric structure tree.
 9. Record headings up to the configured level.
10. Extract code blocks with language detection and dedent.
11. Convert the cleaned DOM to markdown.
12. Assemble.

Every step is best-effort: a failing step appends to the error list and
the remaining steps run on whatever state is available.
*/
type htmlHandler struct {
	options Options
}

func newHTMLHandler(options Options) *htmlHandler {
	return &htmlHandler{options: options}
}

func (h *htmlHandler) Name() string {
	return "HTML"
}

func (h *htmlHandler) CanHandle(body []byte, contentType string) bool {
	if formatFromMIME(contentType) == FormatHTML {
		return true
	}
	return htmlPattern.Match(body)
}

func (h *htmlHandler) Process(body []byte, sourceURL string) ProcessedContent {
	pc := ProcessedContent{
		sourceURL: sourceURL,
		title:     h.options.DefaultTitle,
		metadata:  map[string]string{},
		format:    FormatHTML,
	}

	if len(body) > h.options.MaxContentLength {
		pc.errors = append(pc.errors, fmt.Sprintf(
			"content length %d exceeds maximum %d", len(body), h.options.MaxContentLength))
		return pc
	}
	if len(body) < h.options.MinContentLength {
		pc.errors = append(pc.errors, fmt.Sprintf(
			"content length %d below minimum %d", len(body), h.options.MinContentLength))
		return pc
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		pc.errors = append(pc.errors, fmt.Sprintf("failed to parse html: %v", err))
		return pc
	}

	// JSON-LD lives in script elements, so capture it before stripping.
	jsonLDBlocks := captureJSONLD(doc)
	doc.Find("script, style, noscript, iframe").Remove()
	removeComments(doc)

	effectiveBase := h.effectiveBase(doc, sourceURL)

	h.extractMetadata(doc, jsonLDBlocks, &pc)
	h.extractAssets(doc, effectiveBase, &pc)
	h.rewriteLinks(doc, effectiveBase, &pc)

	body2 := doc.Find("body")
	if body2.Length() > 0 {
		pc.structure = foldSections(h.collectBlocks(body2, effectiveBase))
	}

	h.extractHeadings(doc, &pc)
	h.extractCodeBlocks(doc, &pc)
	h.convertMarkdown(doc, &pc)

	return pc
}

func (h *htmlHandler) effectiveBase(doc *goquery.Document, sourceURL string) *url.URL {
	callerBase, err := url.Parse(sourceURL)
	if err != nil {
		callerBase = nil
	}

	baseHref, exists := doc.Find("base[href]").First().Attr("href")
	if !exists || strings.TrimSpace(baseHref) == "" {
		return callerBase
	}
	baseURL, err := url.Parse(strings.TrimSpace(baseHref))
	if err != nil {
		return callerBase
	}
	if baseURL.IsAbs() {
		return baseURL
	}
	if callerBase != nil {
		return callerBase.ResolveReference(baseURL)
	}
	return nil
}

func (h *htmlHandler) extractMetadata(doc *goquery.Document, jsonLDBlocks []string, pc *ProcessedContent) {
	title := strings.TrimSpace(doc.Find("head title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title != "" {
		pc.title = collapseWhitespace(title)
	}
	pc.metadata["title"] = pc.title

	doc.Find("meta[name], meta[property]").Each(func(i int, s *goquery.Selection) {
		key, ok := s.Attr("name")
		if !ok {
			key, _ = s.Attr("property")
		}
		value, ok := s.Attr("content")
		if !ok {
			return
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			return
		}
		// First occurrence wins on duplicate keys.
		if _, exists := pc.metadata[key]; exists {
			return
		}
		pc.metadata[key] = strings.TrimSpace(sanitize.HTML(value))
	})

	for _, block := range jsonLDBlocks {
		flattenJSONLD(block, pc.metadata)
	}

	doc.Find("[itemtype]").Each(func(i int, s *goquery.Selection) {
		s.Find("[itemprop]").Each(func(j int, prop *goquery.Selection) {
			name, _ := prop.Attr("itemprop")
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				return
			}
			value := strings.TrimSpace(prop.AttrOr("content", ""))
			if value == "" {
				value = collapseWhitespace(strings.TrimSpace(prop.Text()))
			}
			if value == "" {
				return
			}
			if _, exists := pc.metadata[name]; !exists {
				pc.metadata[name] = value
			}
		})
	})
}

// captureJSONLD returns the text of every application/ld+json script.
func captureJSONLD(doc *goquery.Document) []string {
	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		blocks = append(blocks, s.Text())
	})
	return blocks
}

// flattenJSONLD folds top-level string and number values of a JSON-LD
// block into the metadata bag, prefixed with the declared @type.
// Malformed JSON is ignored silently.
func flattenJSONLD(block string, meta map[string]string) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return
	}

	prefix := ""
	if declaredType, ok := parsed["@type"].(string); ok && declaredType != "" {
		prefix = strings.ToLower(declaredType) + "_"
	}

	for key, value := range parsed {
		if strings.HasPrefix(key, "@") {
			continue
		}
		metaKey := prefix + strings.ToLower(key)
		switch v := value.(type) {
		case string:
			setIfAbsent(meta, metaKey, v)
		case float64:
			setIfAbsent(meta, metaKey, strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), "."))
		case map[string]any:
			for childKey, childValue := range v {
				if strings.HasPrefix(childKey, "@") {
					continue
				}
				if s, ok := childValue.(string); ok {
					setIfAbsent(meta, metaKey+"_"+strings.ToLower(childKey), s)
				}
			}
		}
	}
}

func setIfAbsent(meta map[string]string, key string, value string) {
	if _, exists := meta[key]; !exists {
		meta[key] = value
	}
}

func (h *htmlHandler) extractAssets(doc *goquery.Document, base *url.URL, pc *ProcessedContent) {
	seen := map[string]bool{}
	add := func(bucket *[]string, ref string) {
		resolved, ok := resolveAssetRef(base, ref)
		if !ok || seen[resolved] {
			return
		}
		seen[resolved] = true
		*bucket = append(*bucket, resolved)
	}

	doc.Find("img[src]").Each(func(i int, s *goquery.Selection) {
		add(&pc.assets.images, s.AttrOr("src", ""))
	})
	doc.Find(`link[rel="stylesheet"][href]`).Each(func(i int, s *goquery.Selection) {
		add(&pc.assets.stylesheets, s.AttrOr("href", ""))
	})
	doc.Find("script[src]").Each(func(i int, s *goquery.Selection) {
		add(&pc.assets.scripts, s.AttrOr("src", ""))
	})
	doc.Find("video[src], audio[src], source[src]").Each(func(i int, s *goquery.Selection) {
		add(&pc.assets.media, s.AttrOr("src", ""))
	})
}

// resolveAssetRef makes an asset reference absolute. Data URIs pass
// through verbatim; script-scheme sources are rejected.
func resolveAssetRef(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "data:") {
		return ref, true
	}
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "vbscript:") {
		return "", false
	}
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", false
	}
	if parsed.IsAbs() {
		return parsed.String(), true
	}
	if base == nil {
		return "", false
	}
	return base.ResolveReference(parsed).String(), true
}

var dangerousHrefPattern = regexp.MustCompile(`(?i)^\s*(javascript|data|vbscript|blob|about):`)

// rewriteLinks makes every anchor href absolute in the DOM and collects
// the flat link list. Dangerous schemes are neutralized to "#".
func (h *htmlHandler) rewriteLinks(doc *goquery.Document, base *url.URL, pc *ProcessedContent) {
	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		if dangerousHrefPattern.MatchString(href) {
			s.SetAttr("href", "#")
			return
		}

		parsed, err := url.Parse(href)
		if err != nil {
			s.SetAttr("href", "#")
			return
		}
		absolute := href
		if !parsed.IsAbs() {
			if base == nil {
				return
			}
			absolute = base.ResolveReference(parsed).String()
			s.SetAttr("href", absolute)
		}

		for _, filter := range h.options.URLFilters {
			if !filter(absolute) {
				return
			}
		}
		if strings.HasPrefix(absolute, "#") {
			return
		}
		pc.links = append(pc.links, NewLink(collapseWhitespace(strings.TrimSpace(s.Text())), absolute))
	})
}

func (h *htmlHandler) extractHeadings(doc *goquery.Document, pc *ProcessedContent) {
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(i int, s *goquery.Selection) {
		level := int(goquery.NodeName(s)[1] - '0')
		if level > h.options.MaxHeadingLevel {
			return
		}
		text := collapseWhitespace(strings.TrimSpace(s.Text()))
		if text == "" {
			return
		}
		pc.headings = append(pc.headings, NewHeading(level, text, s.AttrOr("id", "")))
	})
}

func (h *htmlHandler) extractCodeBlocks(doc *goquery.Document, pc *ProcessedContent) {
	doc.Find("pre").Each(func(i int, s *goquery.Selection) {
		code := s.Find("code").First()
		if code.Length() == 0 {
			return
		}
		language := languageFromClass(code.AttrOr("class", ""))
		if !h.options.allowsLanguage(language) {
			language = ""
		}
		pc.codeBlocks = append(pc.codeBlocks, NewCodeBlock(language, dedent(code.Text())))
	})
}

func languageFromClass(class string) string {
	for _, field := range strings.Fields(class) {
		lower := strings.ToLower(field)
		if lang, ok := strings.CutPrefix(lower, "language-"); ok {
			return lang
		}
		if lang, ok := strings.CutPrefix(lower, "lang-"); ok {
			return lang
		}
	}
	return ""
}

// dedent strips the uniform leading indentation shared by all non-empty
// lines of a code block.
func dedent(code string) string {
	lines := strings.Split(strings.TrimRight(code, "\n"), "\n")
	minIndent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if minIndent < 0 || indent < minIndent {
			minIndent = indent
		}
	}
	if minIndent <= 0 {
		return strings.Join(lines, "\n")
	}
	for i, line := range lines {
		if len(line) >= minIndent {
			lines[i] = line[minIndent:]
		}
	}
	return strings.Join(lines, "\n")
}

var blankLinePattern = regexp.MustCompile(`\n{3,}`)

func (h *htmlHandler) convertMarkdown(doc *goquery.Document, pc *ProcessedContent) {
	conv := htmltomd.NewConverter(
		htmltomd.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)

	var root *html.Node
	if body := doc.Find("body"); body.Length() > 0 {
		root = body.Get(0)
	} else if doc.Length() > 0 {
		root = doc.Get(0)
	}
	if root == nil {
		pc.errors = append(pc.errors, "no body to convert to markdown")
		return
	}

	markdown, err := conv.ConvertNode(root)
	if err != nil {
		pc.errors = append(pc.errors, fmt.Sprintf("markdown conversion failed: %v", err))
		return
	}
	pc.markdown = strings.TrimSpace(blankLinePattern.ReplaceAllString(string(markdown), "\n\n"))
}

//===============
// Structure tree
//===============

var containerTags = map[string]bool{
	"div": true, "section": true, "article": true, "main": true,
	"header": true, "footer": true, "aside": true, "nav": true,
	"body": true, "figure": true, "details": true,
}

// collectBlocks walks element children in document order and emits the
// flat block sequence that foldSections nests afterwards.
func (h *htmlHandler) collectBlocks(sel *goquery.Selection, base *url.URL) []Node {
	var blocks []Node
	sel.Children().Each(func(i int, child *goquery.Selection) {
		tag := goquery.NodeName(child)
		switch {
		case len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6':
			text := collapseWhitespace(strings.TrimSpace(child.Text()))
			if text != "" {
				blocks = append(blocks, Node{kind: NodeHeading, text: text, level: int(tag[1] - '0')})
			}
		case tag == "p" || tag == "blockquote":
			if node, ok := h.paragraphNode(child); ok {
				blocks = append(blocks, node)
			}
		case tag == "ul" || tag == "ol":
			if node, ok := listNode(child); ok {
				blocks = append(blocks, node)
			}
		case tag == "pre":
			code := child.Find("code").First()
			text := child.Text()
			language := ""
			if code.Length() > 0 {
				text = code.Text()
				language = languageFromClass(code.AttrOr("class", ""))
				if !h.options.allowsLanguage(language) {
					language = ""
				}
			}
			blocks = append(blocks, Node{kind: NodeCodeBlock, text: dedent(text), language: language})
		case tag == "table":
			text := collapseWhitespace(strings.TrimSpace(child.Text()))
			blocks = append(blocks, Node{kind: NodeTable, text: text})
		case tag == "img":
			if src, ok := resolveAssetRef(base, child.AttrOr("src", "")); ok {
				blocks = append(blocks, Node{kind: NodeImage, text: child.AttrOr("alt", ""), url: src})
			}
		case containerTags[tag]:
			blocks = append(blocks, h.collectBlocks(child, base)...)
		default:
			if child.Children().Length() > 0 {
				blocks = append(blocks, h.collectBlocks(child, base)...)
			} else if node, ok := h.paragraphNode(child); ok {
				blocks = append(blocks, node)
			}
		}
	})
	return blocks
}

// paragraphNode builds a paragraph with inline link and image children.
// Hrefs are read from the DOM after rewriteLinks, so they are already
// absolute or neutralized.
func (h *htmlHandler) paragraphNode(sel *goquery.Selection) (Node, bool) {
	text := collapseWhitespace(strings.TrimSpace(sel.Text()))
	var children []Node
	sel.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		if href == "" || href == "#" || strings.HasPrefix(href, "#") {
			return
		}
		children = append(children, Node{
			kind: NodeLink,
			text: collapseWhitespace(strings.TrimSpace(a.Text())),
			url:  href,
		})
	})
	sel.Find("img[src]").Each(func(i int, img *goquery.Selection) {
		children = append(children, Node{
			kind: NodeImage,
			text: img.AttrOr("alt", ""),
			url:  img.AttrOr("src", ""),
		})
	})
	if text == "" && len(children) == 0 {
		return Node{}, false
	}
	return Node{kind: NodeParagraph, text: text, children: children}, true
}

func listNode(sel *goquery.Selection) (Node, bool) {
	var items []Node
	sel.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
		text := collapseWhitespace(strings.TrimSpace(li.Text()))
		if text == "" {
			return
		}
		item := Node{kind: NodeListItem, text: text}
		li.Find("a[href]").Each(func(j int, a *goquery.Selection) {
			href := a.AttrOr("href", "")
			if href == "" || strings.HasPrefix(href, "#") {
				return
			}
			item.children = append(item.children, Node{
				kind: NodeLink,
				text: collapseWhitespace(strings.TrimSpace(a.Text())),
				url:  href,
			})
		})
		items = append(items, item)
	})
	if len(items) == 0 {
		return Node{}, false
	}
	return Node{kind: NodeList, children: items}, true
}

// foldSections nests a flat block sequence: every heading opens a
// section holding the heading and the blocks up to the next heading of
// equal or shallower level.
func foldSections(blocks []Node) []Node {
	var out []Node
	i := 0
	for i < len(blocks) {
		block := blocks[i]
		if block.kind != NodeHeading {
			out = append(out, block)
			i++
			continue
		}
		section := Node{kind: NodeSection, text: block.text, level: block.level}
		section.children = append(section.children, block)
		i++
		start := i
		for i < len(blocks) && !(blocks[i].kind == NodeHeading && blocks[i].level <= block.level) {
			i++
		}
		section.children = append(section.children, foldSections(blocks[start:i])...)
		out = append(out, section)
	}
	return out
}

func removeComments(doc *goquery.Document) {
	var strip func(n *html.Node)
	strip = func(n *html.Node) {
		child := n.FirstChild
		for child != nil {
			next := child.NextSibling
			if child.Type == html.CommentNode {
				n.RemoveChild(child)
			} else {
				strip(child)
			}
			child = next
		}
	}
	for _, node := range doc.Nodes {
		strip(node)
	}
}

var whitespacePattern = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return whitespacePattern.ReplaceAllString(s, " ")
}
