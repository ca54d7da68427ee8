package organizer

import (
	"time"

	"github.com/rohmanhakim/docsmith/internal/content"
)

// DocumentMetadata describes a document independently of its versions.
type DocumentMetadata struct {
	url         string
	title       string
	category    string
	firstSeen   time.Time
	lastUpdated time.Time
	tags        []string
	attributes  map[string]string
}

func (m DocumentMetadata) URL() string                   { return m.url }
func (m DocumentMetadata) Title() string                 { return m.title }
func (m DocumentMetadata) Category() string              { return m.category }
func (m DocumentMetadata) FirstSeen() time.Time          { return m.firstSeen }
func (m DocumentMetadata) LastUpdated() time.Time        { return m.lastUpdated }
func (m DocumentMetadata) Tags() []string                { return m.tags }
func (m DocumentMetadata) Attributes() map[string]string { return m.attributes }

// Version is one snapshot of a document's content. Sequence numbers are
// 1-based and equal the version's position in the document's list.
type Version struct {
	sequence      int
	timestamp     time.Time
	content       content.ProcessedContent
	contentHash   string
	changeSummary string
}

func (v Version) Sequence() int                      { return v.sequence }
func (v Version) Timestamp() time.Time               { return v.timestamp }
func (v Version) Content() content.ProcessedContent  { return v.content }
func (v Version) ContentHash() string                { return v.contentHash }
func (v Version) ChangeSummary() string               { return v.changeSummary }

/*
Document is the set of all versions sharing a URL. Re-adding content
for a known URL appends a version; a different URL is a new Document
even when content is similar. Related documents are stored as ids,
never as object references.
*/
type Document struct {
	id       string
	meta     DocumentMetadata
	versions []Version
	related  map[string]bool
}

func (d Document) ID() string                 { return d.id }
func (d Document) Metadata() DocumentMetadata { return d.meta }

func (d Document) Versions() []Version {
	out := make([]Version, len(d.versions))
	copy(out, d.versions)
	return out
}

// LatestVersion returns the most recent snapshot. The boolean is false
// for a document with no versions, which AddDocument never produces.
func (d Document) LatestVersion() (Version, bool) {
	if len(d.versions) == 0 {
		return Version{}, false
	}
	return d.versions[len(d.versions)-1], true
}

// RelatedIDs returns the ids of documents linked by similarity.
func (d Document) RelatedIDs() []string {
	out := make([]string, 0, len(d.related))
	for id := range d.related {
		out = append(out, id)
	}
	return out
}

// Collection is a named grouping of document ids.
type Collection struct {
	id          string
	name        string
	description string
	documentIDs []string
	createdAt   time.Time
	updatedAt   time.Time
}

func (c Collection) ID() string          { return c.id }
func (c Collection) Name() string        { return c.name }
func (c Collection) Description() string { return c.description }
func (c Collection) CreatedAt() time.Time { return c.createdAt }
func (c Collection) UpdatedAt() time.Time { return c.updatedAt }

func (c Collection) DocumentIDs() []string {
	out := make([]string, len(c.documentIDs))
	copy(out, c.documentIDs)
	return out
}

// SearchResult is one scored hit with human-readable match reasons.
type SearchResult struct {
	documentID string
	score      float64
	reasons    []string
}

func (r SearchResult) DocumentID() string { return r.documentID }
func (r SearchResult) Score() float64     { return r.score }
func (r SearchResult) Reasons() []string  { return r.reasons }

// Snapshot is the serialization boundary of the in-memory index.
type Snapshot struct {
	Documents   []DocumentSnapshot   `json:"documents"`
	Collections []CollectionSnapshot `json:"collections"`
	Categories  map[string][]string  `json:"categories"`
}

type DocumentSnapshot struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	FirstSeen   time.Time `json:"firstSeen"`
	LastUpdated time.Time `json:"lastUpdated"`
	Versions    int       `json:"versions"`
	ContentHash string    `json:"contentHash"`
	RelatedIDs  []string  `json:"relatedIds"`
}

type CollectionSnapshot struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	DocumentIDs []string `json:"documentIds"`
}
