// Package urlutil provides URL normalization and stable hashing shared by
// every store keyed on URLs.
package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// Normalize standardizes a URL so equivalent forms collapse to one entity.
// It lowercases the scheme and host, removes default ports, and drops the
// fragment component.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	return u.String(), nil
}

// Hash returns the hex SHA-256 digest of the normalized form of rawURL.
// The digest is the storage key for all persisted URL-keyed state, which
// bounds key length regardless of how long the raw URL is.
func Hash(rawURL string) string {
	normalized, err := Normalize(rawURL)
	if err != nil {
		normalized = rawURL
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Base returns the scheme://host portion of rawURL.
func Base(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return fmt.Sprintf("%s://%s", strings.ToLower(u.Scheme), strings.ToLower(u.Host)), nil
}

// Host returns the lowercased host component of rawURL, or "" when it cannot
// be parsed.
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// IsXML reports whether the URL path ends in .xml, which the pipeline treats
// as a sitemap rather than a content page.
func IsXML(rawURL string) bool {
	return strings.HasSuffix(strings.ToLower(rawURL), ".xml")
}
