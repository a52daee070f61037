package utils

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
)

var (
	nonSlug   = regexp.MustCompile(`[^a-z0-9\-]+`)
	multiDash = regexp.MustCompile(`-+`)
)

// Slugify turns a title into a URL-safe slug.
// Example: "Intro to Workshops!" -> "intro-to-workshops"
func Slugify(title string) string {
	base := strings.ToLower(strings.TrimSpace(title))
	base = strings.ReplaceAll(base, " ", "-")
	base = nonSlug.ReplaceAllString(base, "")
	base = multiDash.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "resource"
	}
	return base
}

// SlugSuffix returns a short random hex suffix used to disambiguate
// colliding slugs without rewriting the existing one.
func SlugSuffix() string {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "000000"
	}
	return hex.EncodeToString(b)
}
