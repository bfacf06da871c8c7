package model

import "time"

// NormalizeReleaseDate accepts "YYYY" and "YYYY-MM-DD" (RFC3339 date)
// release-date strings and returns a normalized form. On failure it
// returns ("", false) so the caller leaves the release date unset
// instead of storing garbage.
func NormalizeReleaseDate(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format("2006-01-02"), true
	}
	if t, err := time.Parse("2006", s); err == nil {
		return t.Format("2006"), true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format("2006-01-02"), true
	}
	return "", false
}
