package urlinfo

import (
	"net/url"
	"sort"
	"strings"
)

/*
Responsibilities
- Parse raw URL strings, optionally against a base
- Normalize to a single canonical spelling per resource
- Reject unsafe inputs (schemes, traversal, credentials, private hosts)

Parse is total: it never fails. Invalid inputs produce a URLInfo with
IsValid() == false and a reason, so callers can record the rejection
without special-casing errors.
*/

var allowedSchemes = map[string]struct{}{
	"http":  {},
	"https": {},
	"file":  {},
}

var dangerousSchemes = map[string]struct{}{
	"javascript": {},
	"data":       {},
	"vbscript":   {},
	"blob":       {},
	"about":      {},
}

// Parse parses and normalizes a standalone URL with default options.
func Parse(raw string) URLInfo {
	return ParseWith(raw, nil, Options{})
}

// ParseWithBase parses a possibly-relative URL against a base.
func ParseWithBase(raw string, base *URLInfo) URLInfo {
	return ParseWith(raw, base, Options{})
}

// ParseWith runs the full normalization pipeline.
func ParseWith(raw string, base *URLInfo, opts Options) URLInfo {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return invalid(raw, "empty URL")
	}

	if hasControlCharacters(trimmed) {
		return invalid(raw, "control character in URL")
	}

	if reason := scanRawForInjection(trimmed); reason != "" {
		return invalid(raw, reason)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return invalid(raw, "malformed URL: "+err.Error())
	}

	// Resolve against the base before scheme policy so relative hrefs
	// inherit the base's scheme.
	if parsed.Scheme == "" {
		if base == nil || !base.valid {
			return invalid(raw, "missing scheme")
		}
		baseURL, baseErr := url.Parse(base.normalized)
		if baseErr != nil {
			return invalid(raw, "unresolvable base URL")
		}
		parsed = baseURL.ResolveReference(parsed)
	}

	scheme := strings.ToLower(parsed.Scheme)

	if _, bad := dangerousSchemes[scheme]; bad {
		return invalid(raw, "dangerous scheme: "+scheme)
	}
	if scheme == "file" && base != nil && base.valid && base.scheme != "file" {
		return invalid(raw, "file scheme not allowed under http(s) base")
	}
	if _, ok := allowedSchemes[scheme]; !ok {
		return invalid(raw, "unsupported scheme: "+scheme)
	}

	if parsed.User != nil {
		return invalid(raw, "credentials in authority")
	}

	host, hostReason := normalizeHost(parsed.Hostname(), opts)
	if hostReason != "" {
		return invalid(raw, hostReason)
	}
	if host == "" && scheme != "file" {
		return invalid(raw, "missing host")
	}

	port := normalizePort(scheme, parsed.Port())

	normPath, trailingSlash, pathReason := normalizePath(parsed.EscapedPath())
	if pathReason != "" {
		return invalid(raw, pathReason)
	}

	normQuery, queryReason := normalizeQuery(parsed.RawQuery)
	if queryReason != "" {
		return invalid(raw, queryReason)
	}

	// Root handling: the authority alone is addressed without a slash;
	// a bare root with a query keeps "/" so the query has an anchor.
	finalPath := assemblePath(normPath, trailingSlash, normQuery != "")

	registered, sub := splitRegisteredDomain(host)

	info := URLInfo{
		raw:              raw,
		scheme:           scheme,
		host:             host,
		port:             port,
		path:             finalPath,
		rawQuery:         normQuery,
		fragment:         parsed.Fragment,
		registeredDomain: registered,
		subdomain:        sub,
		valid:            true,
	}
	info.normalized = assemble(info)
	return info
}

func hasControlCharacters(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			return true
		}
	}
	return false
}

func normalizePort(scheme, port string) string {
	if port == "" {
		return ""
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		return ""
	}
	return port
}

// normalizePath decodes unreserved percent-escapes, re-encodes anything
// outside the RFC 3986 path set, collapses duplicate slashes, and resolves
// dot segments. It reports whether the input carried a trailing slash.
func normalizePath(escaped string) (string, bool, string) {
	if escaped == "" {
		return "", false, ""
	}

	decoded, nul := renderPathEncoding(escaped)
	if nul {
		return "", false, "NUL byte in path"
	}

	trailing := strings.HasSuffix(decoded, "/") ||
		strings.HasSuffix(decoded, "/.") ||
		strings.HasSuffix(decoded, "/..")

	segments := strings.Split(decoded, "/")
	resolved := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			// collapse duplicate slashes, drop current-dir segments
		case "..":
			if len(resolved) == 0 {
				return "", false, "path traversal escapes root"
			}
			resolved = resolved[:len(resolved)-1]
		default:
			resolved = append(resolved, seg)
		}
	}

	if len(resolved) == 0 {
		return "/", trailing, ""
	}
	return "/" + strings.Join(resolved, "/"), trailing, ""
}

const upperHex = "0123456789ABCDEF"

func isUnreserved(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

func isPathAllowed(c byte) bool {
	if isUnreserved(c) {
		return true
	}
	switch c {
	case '!', '$', '&', '\'', '(', ')', '*', '+', ',', ';', '=', ':', '@', '/':
		return true
	}
	return false
}

// renderPathEncoding walks an escaped path byte-wise: percent triplets for
// unreserved characters are decoded, all other triplets are kept with
// uppercase hex, and raw bytes outside the path set are encoded. Also
// reports whether a decoded NUL was found.
func renderPathEncoding(escaped string) (string, bool) {
	var b strings.Builder
	b.Grow(len(escaped))
	sawNUL := false

	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		if c == '%' && i+2 < len(escaped) {
			hi, okHi := hexVal(escaped[i+1])
			lo, okLo := hexVal(escaped[i+2])
			if okHi && okLo {
				v := hi<<4 | lo
				if v == 0 {
					sawNUL = true
				}
				if isUnreserved(v) {
					b.WriteByte(v)
				} else {
					b.WriteByte('%')
					b.WriteByte(upperHex[v>>4])
					b.WriteByte(upperHex[v&0x0F])
				}
				i += 2
				continue
			}
		}
		if isPathAllowed(c) || c == '%' {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0F])
	}

	return b.String(), sawNUL
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// normalizeQuery re-encodes the query as application/x-www-form-urlencoded
// pairs. Keys keep their first-occurrence order; only values of a repeated
// key are canonically sorted, so URLs differing in repeated-parameter order
// compare equal while distinct-key order stays significant.
func normalizeQuery(rawQuery string) (string, string) {
	if rawQuery == "" {
		return "", ""
	}
	if strings.Contains(rawQuery, ";") {
		return "", "semicolon query separator"
	}

	type pair struct{ key, value string }
	var pairs []pair

	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, hasValue := strings.Cut(part, "=")
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			decodedKey = key
		}
		if strings.ContainsRune(decodedKey, 0) {
			return "", "NUL byte in query"
		}
		p := pair{key: decodedKey}
		if hasValue {
			decodedValue, err := url.QueryUnescape(value)
			if err != nil {
				decodedValue = value
			}
			if strings.ContainsRune(decodedValue, 0) {
				return "", "NUL byte in query"
			}
			p.value = decodedValue
		}
		pairs = append(pairs, p)
	}

	keyOrder := make(map[string]int, len(pairs))
	for _, p := range pairs {
		if _, seen := keyOrder[p.key]; !seen {
			keyOrder[p.key] = len(keyOrder)
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return keyOrder[pairs[i].key] < keyOrder[pairs[j].key]
		}
		return pairs[i].value < pairs[j].value
	})

	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.value))
	}
	return b.String(), ""
}

func assemblePath(normPath string, trailingSlash, hasQuery bool) string {
	switch normPath {
	case "":
		if hasQuery {
			return "/"
		}
		return ""
	case "/":
		// Bare root normalizes to the authority alone unless a query
		// needs an anchor.
		if hasQuery {
			return "/"
		}
		return ""
	}
	if trailingSlash {
		return normPath + "/"
	}
	return normPath
}

func assemble(u URLInfo) string {
	var b strings.Builder
	b.WriteString(u.scheme)
	b.WriteString("://")
	b.WriteString(u.host)
	if u.port != "" {
		b.WriteByte(':')
		b.WriteString(u.port)
	}
	b.WriteString(u.path)
	if u.rawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.rawQuery)
	}
	return b.String()
}
