package owa

import "sort"

// NameSet is a set of unique, non-empty contact names.
type NameSet map[string]struct{}

// Add inserts name, adding a name twice or adding "" has no effect.
func (s NameSet) Add(name string) {
	if name == "" {
		return
	}
	s[name] = struct{}{}
}

func (s NameSet) Merge(other NameSet) {
	for name := range other {
		s[name] = struct{}{}
	}
}

func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s NameSet) Len() int {
	return len(s)
}

func (s NameSet) Sorted() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
