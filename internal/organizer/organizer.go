package organizer

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rohmanhakim/docsmith/internal/content"
	"github.com/rohmanhakim/docsmith/internal/metadata"
	"github.com/rohmanhakim/docsmith/pkg/hashutil"
)

/*
Organizer owns document identity, versioning, categorization, relation
discovery, and search.

Identity: documents are keyed by normalized URL. Adding content for a
known URL appends a version; a new URL creates a new Document with a
fresh opaque id.

Concurrency: all writes are serialized behind one mutex; searches take
the same lock, so a search briefly blocks behind a write.
*/
type Organizer struct {
	mu sync.RWMutex

	docsByID map[string]*Document
	idByURL  map[string]string
	// insertion order of document ids, for deterministic listings
	docOrder []string

	// inverted index: token -> set of document ids
	index map[string]map[string]bool
	// per-document token multisets for similarity computation
	docTokens map[string]map[string]int

	categoryRules map[string][]string
	// category names sorted once so first-match is deterministic
	categoryOrder []string

	minSimilarity float64
	collections   map[string]*Collection

	metadataSink metadata.MetadataSink
	now          func() time.Time
}

// DefaultCategoryRules covers the buckets technical documentation
// usually falls into.
func DefaultCategoryRules() map[string][]string {
	return map[string][]string{
		"api":       {"api", "reference", "endpoint"},
		"guide":     {"guide", "tutorial", "how-to", "howto", "getting started"},
		"example":   {"example", "sample", "demo"},
		"changelog": {"changelog", "release notes", "what's new"},
		"faq":       {"faq", "frequently asked"},
	}
}

func NewOrganizer(
	categoryRules map[string][]string,
	minSimilarity float64,
	metadataSink metadata.MetadataSink,
) *Organizer {
	order := make([]string, 0, len(categoryRules))
	for name := range categoryRules {
		order = append(order, name)
	}
	sort.Strings(order)

	return &Organizer{
		docsByID:      map[string]*Document{},
		idByURL:       map[string]string{},
		index:         map[string]map[string]bool{},
		docTokens:     map[string]map[string]int{},
		categoryRules: categoryRules,
		categoryOrder: order,
		minSimilarity: minSimilarity,
		collections:   map[string]*Collection{},
		metadataSink:  metadataSink,
		now:           time.Now,
	}
}

// AddDocument stores one ProcessedContent under its source URL and
// returns the document id plus the new version's sequence number.
func (o *Organizer) AddDocument(pc content.ProcessedContent) (string, int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	timestamp := o.now()
	contentHash, hashErr := hashutil.HashBytes([]byte(pc.Markdown()), hashutil.HashAlgoBLAKE3)
	if hashErr != nil {
		o.metadataSink.RecordError(
			timestamp,
			"organizer",
			"Organizer.AddDocument",
			metadata.CauseInvariantViolation,
			fmt.Sprintf("content hash failed: %v", hashErr),
			[]metadata.Attribute{
				metadata.NewAttr(metadata.AttrURL, pc.SourceURL()),
			},
		)
	}

	docID, known := o.idByURL[pc.SourceURL()]
	if !known {
		docID = uuid.NewString()
		category := o.categorize(pc)
		o.docsByID[docID] = &Document{
			id: docID,
			meta: DocumentMetadata{
				url:         pc.SourceURL(),
				title:       pc.Title(),
				category:    category,
				firstSeen:   timestamp,
				lastUpdated: timestamp,
				attributes:  map[string]string{},
			},
			related: map[string]bool{},
		}
		o.idByURL[pc.SourceURL()] = docID
		o.docOrder = append(o.docOrder, docID)
	}

	doc := o.docsByID[docID]
	doc.versions = append(doc.versions, Version{
		sequence:    len(doc.versions) + 1,
		timestamp:   timestamp,
		content:     pc,
		contentHash: contentHash,
	})
	doc.meta.lastUpdated = timestamp
	doc.meta.title = pc.Title()

	o.reindex(docID, pc)
	o.discoverRelations(docID)

	return docID, len(doc.versions)
}

// Document looks up a document by id.
func (o *Organizer) Document(id string) (Document, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	doc, ok := o.docsByID[id]
	if !ok {
		return Document{}, false
	}
	return *doc, true
}

// DocumentByURL looks up a document by its normalized URL.
func (o *Organizer) DocumentByURL(url string) (Document, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	id, ok := o.idByURL[url]
	if !ok {
		return Document{}, false
	}
	return *o.docsByID[id], true
}

// Documents returns every document in insertion order.
func (o *Organizer) Documents() []Document {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]Document, 0, len(o.docOrder))
	for _, id := range o.docOrder {
		out = append(out, *o.docsByID[id])
	}
	return out
}

func (o *Organizer) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.docsByID)
}

// categorize scans title plus extracted text against the category
// rules; the first matching category in sorted-name order wins.
func (o *Organizer) categorize(pc content.ProcessedContent) string {
	haystack := strings.ToLower(pc.Title() + " " + pc.Text())
	for _, name := range o.categoryOrder {
		for _, keyword := range o.categoryRules[name] {
			if keyword == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(keyword)) {
				return name
			}
		}
	}
	return "uncategorized"
}

func (o *Organizer) reindex(docID string, pc content.ProcessedContent) {
	// Remove the previous version's tokens before indexing the new one.
	for token := range o.docTokens[docID] {
		delete(o.index[token], docID)
		if len(o.index[token]) == 0 {
			delete(o.index, token)
		}
	}

	tokens := map[string]int{}
	addTokens(tokens, pc.Title())
	addTokens(tokens, pc.Text())
	for _, heading := range pc.Headings() {
		addTokens(tokens, heading.Text())
	}
	o.docTokens[docID] = tokens

	for token := range tokens {
		if o.index[token] == nil {
			o.index[token] = map[string]bool{}
		}
		o.index[token][docID] = true
	}
}

// discoverRelations links the document to every existing document whose
// token set reaches the Jaccard similarity threshold. O(n) per add.
func (o *Organizer) discoverRelations(docID string) {
	if o.minSimilarity <= 0 {
		return
	}
	newTokens := o.docTokens[docID]
	for otherID, otherTokens := range o.docTokens {
		if otherID == docID {
			continue
		}
		if jaccard(newTokens, otherTokens) >= o.minSimilarity {
			o.docsByID[docID].related[otherID] = true
			o.docsByID[otherID].related[docID] = true
		}
	}
}

func jaccard(a map[string]int, b map[string]int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for token := range a {
		if _, ok := b[token]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

const (
	scoreTitleMatch = 10.0
	scoreTextMatch  = 5.0
	scoreIndexMatch = 3.0
	scoreTagMatch   = 2.0
	// synthetic score for category-keyword hits with no token match
	scoreCategoryMatch = 1.0
)

/*
Search scores documents against a tokenized query:

  - title substring match per token
  - extracted-text substring match per token
  - inverted index hit per token
  - tag match per token

Each hit contributes to the score and a reason string. When the query
contains a token matching a category rule keyword, documents in that
category with no direct match are included at a low synthetic score.
An optional category filters the results. Results sort descending by
score, ties broken by insertion order.
*/
func (o *Organizer) Search(query string, category string) []SearchResult {
	o.mu.RLock()
	defer o.mu.RUnlock()

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil
	}

	scores := map[string]float64{}
	reasons := map[string][]string{}

	for _, token := range queryTokens {
		for _, docID := range o.docOrder {
			doc := o.docsByID[docID]
			latest, ok := doc.LatestVersion()
			if !ok {
				continue
			}
			titleLower := strings.ToLower(doc.meta.title)
			textLower := strings.ToLower(latest.content.Text())

			if strings.Contains(titleLower, token) {
				scores[docID] += scoreTitleMatch
				reasons[docID] = append(reasons[docID],
					fmt.Sprintf("title match: %q", token))
			}
			if strings.Contains(textLower, token) {
				scores[docID] += scoreTextMatch
				reasons[docID] = append(reasons[docID],
					fmt.Sprintf("text match: %q", token))
			}
			for _, tag := range doc.meta.tags {
				if strings.Contains(strings.ToLower(tag), token) {
					scores[docID] += scoreTagMatch
					reasons[docID] = append(reasons[docID],
						fmt.Sprintf("tag match: %q", token))
				}
			}
		}
		for docID := range o.index[token] {
			scores[docID] += scoreIndexMatch
			reasons[docID] = append(reasons[docID],
				fmt.Sprintf("index match: %q", token))
		}
	}

	// Category keyword fallback: a query token naming a category rule
	// pulls in that category's documents even without a direct match.
	for _, token := range queryTokens {
		for categoryName, keywords := range o.categoryRules {
			matched := false
			for _, keyword := range keywords {
				if strings.EqualFold(keyword, token) {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
			for _, docID := range o.docOrder {
				doc := o.docsByID[docID]
				if doc.meta.category != categoryName {
					continue
				}
				if _, alreadyScored := scores[docID]; alreadyScored {
					continue
				}
				scores[docID] = scoreCategoryMatch
				reasons[docID] = append(reasons[docID],
					fmt.Sprintf("category match: %q", categoryName))
			}
		}
	}

	var results []SearchResult
	for _, docID := range o.docOrder {
		score, ok := scores[docID]
		if !ok {
			continue
		}
		if category != "" && !o.matchesCategory(docID, category) {
			continue
		}
		results = append(results, SearchResult{
			documentID: docID,
			score:      score,
			reasons:    reasons[docID],
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	return results
}

// matchesCategory admits a document whose assigned category equals the
// filter, or whose title or content contains the filter term.
func (o *Organizer) matchesCategory(docID string, category string) bool {
	doc := o.docsByID[docID]
	if strings.EqualFold(doc.meta.category, category) {
		return true
	}
	lower := strings.ToLower(category)
	if strings.Contains(strings.ToLower(doc.meta.title), lower) {
		return true
	}
	if latest, ok := doc.LatestVersion(); ok {
		return strings.Contains(strings.ToLower(latest.content.Text()), lower)
	}
	return false
}

// CreateCollection groups document ids under a name. Unknown ids are
// rejected.
func (o *Organizer) CreateCollection(name string, description string, documentIDs []string) (Collection, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, id := range documentIDs {
		if _, ok := o.docsByID[id]; !ok {
			return Collection{}, &OrganizerError{
				Message: fmt.Sprintf("unknown document id %q", id),
			}
		}
	}

	timestamp := o.now()
	collection := &Collection{
		id:          uuid.NewString(),
		name:        name,
		description: description,
		documentIDs: append([]string(nil), documentIDs...),
		createdAt:   timestamp,
		updatedAt:   timestamp,
	}
	o.collections[collection.id] = collection
	return *collection, nil
}

// Collection looks up a collection by id.
func (o *Organizer) Collection(id string) (Collection, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	collection, ok := o.collections[id]
	if !ok {
		return Collection{}, false
	}
	return *collection, true
}

// Snapshot produces the serializable view of the index. Documents and
// collections appear in deterministic order.
func (o *Organizer) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snapshot := Snapshot{
		Categories: map[string][]string{},
	}
	for _, id := range o.docOrder {
		doc := o.docsByID[id]
		hash := ""
		if latest, ok := doc.LatestVersion(); ok {
			hash = latest.contentHash
		}
		related := doc.RelatedIDs()
		sort.Strings(related)
		snapshot.Documents = append(snapshot.Documents, DocumentSnapshot{
			ID:          doc.id,
			URL:         doc.meta.url,
			Title:       doc.meta.title,
			Category:    doc.meta.category,
			FirstSeen:   doc.meta.firstSeen,
			LastUpdated: doc.meta.lastUpdated,
			Versions:    len(doc.versions),
			ContentHash: hash,
			RelatedIDs:  related,
		})
		snapshot.Categories[doc.meta.category] = append(
			snapshot.Categories[doc.meta.category], doc.id)
	}

	collectionIDs := make([]string, 0, len(o.collections))
	for id := range o.collections {
		collectionIDs = append(collectionIDs, id)
	}
	sort.Strings(collectionIDs)
	for _, id := range collectionIDs {
		collection := o.collections[id]
		snapshot.Collections = append(snapshot.Collections, CollectionSnapshot{
			ID:          collection.id,
			Name:        collection.name,
			Description: collection.description,
			DocumentIDs: collection.DocumentIDs(),
		})
	}
	return snapshot
}

//===============
// Tokenization
//===============

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true,
	"at": true, "be": true, "by": true, "for": true, "from": true,
	"has": true, "he": true, "in": true, "is": true, "it": true,
	"its": true, "of": true, "on": true, "or": true, "that": true,
	"the": true, "this": true, "to": true, "was": true, "were": true,
	"will": true, "with": true,
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := make([]string, 0, len(raw))
	for _, token := range raw {
		if len(token) < 2 || stopWords[token] {
			continue
		}
		out = append(out, token)
	}
	return out
}

func addTokens(into map[string]int, text string) {
	for _, token := range tokenize(text) {
		into[token]++
	}
}
