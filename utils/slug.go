package utils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and collapses every run of non-alphanumerics into a single hyphen
func Slugify(s string) string {
	s = nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// MemorialSlug derives the public slug for a memorial from the name and creation time.
// Identical inputs always produce the identical slug.
func MemorialSlug(firstName, lastName string, at time.Time) string {
	return Slugify(fmt.Sprintf("%s-%s-%d", firstName, lastName, at.UnixMilli()))
}
