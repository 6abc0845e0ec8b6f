package selection

import "strings"

// DefaultPageSize is the number of candidates shown per page.
const DefaultPageSize = 20

// Refinement is the interactive narrowing state over an acquired candidate
// set. The free-text filter always narrows the original set: clearing it
// restores everything. Rendering is left to the CLI layer.
type Refinement struct {
	all      []Candidate
	filter   string
	page     int
	pageSize int
	selected map[string]bool
}

// NewRefinement wraps a candidate set for paging and narrowing.
func NewRefinement(candidates []Candidate) *Refinement {
	return &Refinement{
		all:      candidates,
		pageSize: DefaultPageSize,
		selected: make(map[string]bool),
	}
}

// SetPageSize overrides the page size. Values below 1 are ignored.
func (r *Refinement) SetPageSize(n int) {
	if n >= 1 {
		r.pageSize = n
		r.page = 0
	}
}

// SetFilter narrows the visible set by case-insensitive substring match
// over label and metadata, and resets paging.
func (r *Refinement) SetFilter(q string) {
	r.filter = strings.ToLower(strings.TrimSpace(q))
	r.page = 0
}

// ClearFilter restores the full candidate set.
func (r *Refinement) ClearFilter() {
	r.filter = ""
	r.page = 0
}

// Filtered returns the candidates visible under the current filter.
func (r *Refinement) Filtered() []Candidate {
	if r.filter == "" {
		return r.all
	}
	var out []Candidate
	for _, c := range r.all {
		if r.matches(c) {
			out = append(out, c)
		}
	}
	return out
}

func (r *Refinement) matches(c Candidate) bool {
	if strings.Contains(strings.ToLower(c.Label), r.filter) {
		return true
	}
	for _, v := range c.Meta {
		if strings.Contains(strings.ToLower(v), r.filter) {
			return true
		}
	}
	return false
}

// Page returns the candidates on the current page.
func (r *Refinement) Page() []Candidate {
	filtered := r.Filtered()
	start := r.page * r.pageSize
	if start >= len(filtered) {
		return nil
	}
	end := start + r.pageSize
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end]
}

// PageCount returns the number of pages under the current filter.
func (r *Refinement) PageCount() int {
	filtered := r.Filtered()
	if len(filtered) == 0 {
		return 0
	}
	return (len(filtered) + r.pageSize - 1) / r.pageSize
}

// PageIndex returns the current zero-based page index.
func (r *Refinement) PageIndex() int {
	return r.page
}

// NextPage advances to the next page if one exists.
func (r *Refinement) NextPage() {
	if r.page+1 < r.PageCount() {
		r.page++
	}
}

// PrevPage moves back one page if possible.
func (r *Refinement) PrevPage() {
	if r.page > 0 {
		r.page--
	}
}

// Toggle flips the selection state of one candidate id.
func (r *Refinement) Toggle(id string) {
	if r.selected[id] {
		delete(r.selected, id)
	} else {
		r.selected[id] = true
	}
}

// IsSelected reports whether the candidate id is currently selected.
func (r *Refinement) IsSelected(id string) bool {
	return r.selected[id]
}

// SelectPage marks every candidate on the current page as selected.
func (r *Refinement) SelectPage() {
	for _, c := range r.Page() {
		r.selected[c.ID] = true
	}
}

// SelectAllFiltered marks every candidate visible under the current
// filter as selected.
func (r *Refinement) SelectAllFiltered() {
	for _, c := range r.Filtered() {
		r.selected[c.ID] = true
	}
}

// DeselectAll clears the selection.
func (r *Refinement) DeselectAll() {
	r.selected = make(map[string]bool)
}

// Selected returns the selected candidates in their original order.
func (r *Refinement) Selected() []Candidate {
	var out []Candidate
	for _, c := range r.all {
		if r.selected[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// SelectedIDs returns the selected candidate ids in original order.
func (r *Refinement) SelectedIDs() []string {
	var out []string
	for _, c := range r.all {
		if r.selected[c.ID] {
			out = append(out, c.ID)
		}
	}
	return out
}
