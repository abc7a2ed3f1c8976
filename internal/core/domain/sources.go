package domain

import "sort"

// SourceGroup is a display grouping of sources sharing a name.
type SourceGroup struct {
	Name    string `json:"name"`
	Pages   []int  `json:"pages,omitempty"` // one-based, sorted, unique
	Learned bool   `json:"learned,omitempty"`
}

// IsSyllabusSource reports whether name refers to an ingested document.
func IsSyllabusSource(name string) bool {
	switch name {
	case SourceOpenAI, SourceGeneratedQA, SourceUnknown, "":
		return false
	}
	return true
}

// GroupSources collapses envelope sources for display.
// Syllabus documents take priority: when any are present the other sources are dropped.
// Syllabus groups merge pages per document and keep the order in which their name
// first appears. Other sources are listed one entry each, without pages.
func GroupSources(sources []Metadata) []SourceGroup {
	if len(sources) == 0 {
		return nil
	}

	var syllabus, other []Metadata
	for _, s := range sources {
		if IsSyllabusSource(s.Source()) {
			syllabus = append(syllabus, s)
		} else {
			other = append(other, s)
		}
	}

	if len(syllabus) > 0 {
		return group(syllabus)
	}

	groups := make([]SourceGroup, 0, len(other))
	for _, s := range other {
		name := s.Source()
		groups = append(groups, SourceGroup{Name: name, Learned: name == SourceGeneratedQA})
	}
	return groups
}

func group(sources []Metadata) []SourceGroup {
	var order []string
	pages := make(map[string]map[int]struct{})
	for _, s := range sources {
		name := s.Source()
		if _, ok := pages[name]; !ok {
			pages[name] = make(map[int]struct{})
			order = append(order, name)
		}
		if p, ok := s.Page(); ok {
			pages[name][p+1] = struct{}{}
		}
	}

	groups := make([]SourceGroup, 0, len(order))
	for _, name := range order {
		g := SourceGroup{Name: name}
		for p := range pages[name] {
			g.Pages = append(g.Pages, p)
		}
		sort.Ints(g.Pages)
		groups = append(groups, g)
	}
	return groups
}
