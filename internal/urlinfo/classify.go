package urlinfo

import (
	"net"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// splitRegisteredDomain computes the eTLD+1 and the subdomain labels
// below it. IP literals and hosts without a listed suffix fall back to
// the host itself.
func splitRegisteredDomain(host string) (string, string) {
	if host == "" {
		return "", ""
	}
	if ip := net.ParseIP(strings.TrimPrefix(strings.TrimSuffix(host, "]"), "[")); ip != nil {
		return host, ""
	}

	registered, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, ""
	}

	sub := strings.TrimSuffix(host, registered)
	sub = strings.TrimSuffix(sub, ".")
	return registered, sub
}

// Type classifies this URL against a base URL.
//
// Rules:
//   - No base, or either side invalid: unknown.
//   - file URLs are internal to file bases.
//   - Matching registered domains are internal, even across http/https.
//   - Everything else is external.
func (u URLInfo) Type(base *URLInfo) URLType {
	if base == nil || !base.valid || !u.valid {
		return TypeUnknown
	}

	if u.scheme == "file" || base.scheme == "file" {
		if u.scheme == "file" && base.scheme == "file" {
			return TypeInternal
		}
		return TypeExternal
	}

	if u.registeredDomain != "" && u.registeredDomain == base.registeredDomain {
		return TypeInternal
	}
	return TypeExternal
}
