package urlinfo

import (
	"net"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// Rejection happens before any parsing: these substrings have no
// legitimate spelling inside a documentation URL, so a literal scan on
// the lowercased input is both cheap and robust against parser quirks.
var eventHandlerPattern = regexp.MustCompile(`\bon[a-z]+\s*=`)

func scanRawForInjection(raw string) string {
	lowered := strings.ToLower(raw)

	if strings.Contains(lowered, "<script") {
		return "script tag in URL"
	}
	if strings.Contains(lowered, "javascript:") {
		return "javascript scheme in URL"
	}
	if eventHandlerPattern.MatchString(lowered) {
		return "event handler attribute in URL"
	}
	return ""
}

// normalizeHost lowercases the host, punycodes non-ASCII labels, and
// validates the result. IP literals are checked against the private,
// loopback, and unique-local ranges.
func normalizeHost(host string, opts Options) (string, string) {
	if host == "" {
		return "", ""
	}

	lowered := strings.ToLower(host)

	if ip := parseIPLiteral(lowered); ip != nil {
		if !opts.AllowPrivateHosts && isPrivateAddress(ip) {
			return "", "private or loopback address"
		}
		if ip.To4() == nil {
			return "[" + ip.String() + "]", ""
		}
		return ip.String(), ""
	}

	ascii := lowered
	if !isASCII(lowered) {
		converted, err := idna.Lookup.ToASCII(lowered)
		if err != nil {
			return "", "invalid internationalized host: " + err.Error()
		}
		ascii = converted
	}

	if reason := validateHostLabels(ascii); reason != "" {
		return "", reason
	}
	return ascii, ""
}

func parseIPLiteral(host string) net.IP {
	trimmed := strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")
	return net.ParseIP(trimmed)
}

// isPrivateAddress covers 127.0.0.0/8, 10.0.0.0/8, 172.16.0.0/12,
// 192.168.0.0/16, ::1 and fc00::/7.
func isPrivateAddress(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func validateHostLabels(host string) string {
	if len(host) > 253 {
		return "host exceeds 253 characters"
	}
	labels := strings.Split(strings.TrimSuffix(host, "."), ".")
	for _, label := range labels {
		if label == "" {
			return "empty host label"
		}
		if len(label) > 63 {
			return "host label exceeds 63 characters"
		}
		if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return "host label with leading or trailing hyphen"
		}
		for i := 0; i < len(label); i++ {
			c := label[i]
			if !(c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '-' || c == '_') {
				return "invalid character in host"
			}
		}
	}
	return ""
}
