package scraper

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint computes the deterministic dedup identity for a listing.
// It hashes the site ID plus the stable listing fields: title, company, and
// the URL when present, falling back to location when it is not. Cosmetic
// whitespace and case differences are normalized away first, so re-fetching
// the same listing always yields the same digest.
func Fingerprint(l Listing) string {
	parts := []string{
		normalizeField(l.SiteID),
		normalizeField(l.Title),
		normalizeField(l.Company),
	}
	if u := strings.TrimSpace(l.URL); u != "" {
		parts = append(parts, normalizeField(u))
	} else {
		parts = append(parts, normalizeField(l.Location))
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// normalizeField lowercases and collapses interior whitespace runs.
func normalizeField(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
