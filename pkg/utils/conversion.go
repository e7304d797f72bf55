package utils

import (
	"math"
	"regexp"
	"strings"
)

// RoundMoney rounds half away from zero to 2 decimals
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s and replaces every run of non [a-z0-9] characters with a dash
func Slugify(s string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(slug, "-")
}

// Deref returns the pointed-to string or ""
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
