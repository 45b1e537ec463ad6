package effects

import (
	"sort"
	"strings"
)

// Owned answers whether a player holds a keep card.
type Owned interface {
	Has(title string) bool
}

// Set is a case-insensitive set of owned card titles.
type Set map[string]string

// NewSet builds a set from titles.
func NewSet(titles ...string) Set {
	s := make(Set, len(titles))
	for _, title := range titles {
		s.Add(title)
	}
	return s
}

func key(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Add records title. It reports false if it was already present.
func (s Set) Add(title string) bool {
	k := key(title)
	if _, ok := s[k]; ok {
		return false
	}
	s[k] = strings.TrimSpace(title)
	return true
}

// Has reports whether title is in the set.
func (s Set) Has(title string) bool {
	_, ok := s[key(title)]
	return ok
}

// Titles returns the titles in sorted order.
func (s Set) Titles() []string {
	out := make([]string, 0, len(s))
	for _, title := range s {
		out = append(out, title)
	}
	sort.Strings(out)
	return out
}
