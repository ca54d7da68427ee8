package urlinfo

// URL identity & classification

// URLType classifies a URL against a crawl base.
type URLType string

const (
	TypeInternal URLType = "internal"
	TypeExternal URLType = "external"
	TypeUnknown  URLType = "unknown"
)

// Options controls parse-time policy decisions.
type Options struct {
	// AllowPrivateHosts permits loopback/private/unique-local IP literals,
	// which are rejected by default as SSRF surface.
	AllowPrivateHosts bool
}

/*
URLInfo is an immutable record derived from a raw URL string plus an
optional base URL.

Invariants:
  - Normalization is idempotent: Parse(u.Normalized()).Normalized() == u.Normalized().
  - Equality and hashing are by normalized form.
  - The fragment is never part of the normalized form.
  - Invalid inputs never panic; they yield IsValid() == false with a reason.
*/
type URLInfo struct {
	raw        string
	normalized string

	scheme   string
	host     string
	port     string
	path     string
	rawQuery string
	fragment string

	registeredDomain string
	subdomain        string

	valid  bool
	reason string
}

// Raw returns the original input string.
func (u URLInfo) Raw() string {
	return u.raw
}

// Normalized returns the canonical form: scheme://host[:port]/path[?query].
// Empty when the URL is invalid.
func (u URLInfo) Normalized() string {
	return u.normalized
}

func (u URLInfo) Scheme() string {
	return u.scheme
}

func (u URLInfo) Host() string {
	return u.host
}

// Port returns the explicit non-default port, or empty.
func (u URLInfo) Port() string {
	return u.port
}

func (u URLInfo) Path() string {
	return u.path
}

func (u URLInfo) Query() string {
	return u.rawQuery
}

// Fragment returns the fragment from the raw input. It is preserved for
// inspection only and never appears in the normalized form.
func (u URLInfo) Fragment() string {
	return u.fragment
}

// RegisteredDomain returns the eTLD+1 of the host (public-suffix aware),
// or the host itself for IP literals and unlisted suffixes.
func (u URLInfo) RegisteredDomain() string {
	return u.registeredDomain
}

// Subdomain returns the host labels below the registered domain.
func (u URLInfo) Subdomain() string {
	return u.subdomain
}

func (u URLInfo) IsValid() bool {
	return u.valid
}

// InvalidReason describes why the URL failed validation. Empty for valid URLs.
func (u URLInfo) InvalidReason() string {
	return u.reason
}

// Equal compares two URLInfos by normalized form. Invalid URLs are never
// equal to anything, including themselves.
func (u URLInfo) Equal(other URLInfo) bool {
	return u.valid && other.valid && u.normalized == other.normalized
}

func invalid(raw, reason string) URLInfo {
	return URLInfo{
		raw:    raw,
		valid:  false,
		reason: reason,
	}
}
