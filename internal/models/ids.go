package models

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidID = errors.New("invalid id")

// NormalizeID returns the canonical lowercase form of a UUID identifier.
// Braced, urn-prefixed and upper-case spellings of one id normalize equally.
func NormalizeID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidID
	}
	return id.String(), nil
}

// SameID reports whether a and b name the same identifier.
func SameID(a, b string) bool {
	na, err := NormalizeID(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeID(b)
	if err != nil {
		return false
	}
	return na == nb
}

// SplitIDList parses a comma-separated id list. Blank entries are skipped,
// duplicates collapse, and the first malformed entry fails the whole list.
func SplitIDList(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return []string{}, nil
	}
	seen := map[string]struct{}{}
	ids := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		id, err := NormalizeID(part)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}
