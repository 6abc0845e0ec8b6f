package selection

import (
	"fmt"
	"testing"
)

func candidates(n int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{
			ID:    fmt.Sprintf("id-%02d", i),
			Label: fmt.Sprintf("SHOT%03d / v001", i),
			Meta:  map[string]string{"owner": "jane"},
		}
	}
	return out
}

func TestRefinementPaging(t *testing.T) {
	r := NewRefinement(candidates(45))

	if got := r.PageCount(); got != 3 {
		t.Errorf("PageCount() = %d, want 3", got)
	}
	if got := len(r.Page()); got != DefaultPageSize {
		t.Errorf("first page has %d items, want %d", got, DefaultPageSize)
	}

	r.NextPage()
	r.NextPage()
	if got := len(r.Page()); got != 5 {
		t.Errorf("last page has %d items, want 5", got)
	}

	// Advancing past the end stays put.
	r.NextPage()
	if r.PageIndex() != 2 {
		t.Errorf("PageIndex() = %d, want 2", r.PageIndex())
	}

	r.PrevPage()
	r.PrevPage()
	r.PrevPage()
	if r.PageIndex() != 0 {
		t.Errorf("PageIndex() = %d, want 0", r.PageIndex())
	}
}

func TestRefinementFilter(t *testing.T) {
	all := []Candidate{
		{ID: "a", Label: "SHOT010 / v001", Meta: map[string]string{"owner": "jane"}},
		{ID: "b", Label: "SHOT020 / v002", Meta: map[string]string{"owner": "bob"}},
		{ID: "c", Label: "SEQ010 / v001", Meta: map[string]string{"owner": "jane"}},
	}
	r := NewRefinement(all)

	t.Run("case-insensitive substring over label", func(t *testing.T) {
		r.SetFilter("shot")
		if got := len(r.Filtered()); got != 2 {
			t.Errorf("Filtered() has %d items, want 2", got)
		}
	})

	t.Run("matches metadata too", func(t *testing.T) {
		r.SetFilter("bob")
		filtered := r.Filtered()
		if len(filtered) != 1 || filtered[0].ID != "b" {
			t.Errorf("expected only b, got %+v", filtered)
		}
	})

	t.Run("filter is never destructive", func(t *testing.T) {
		r.SetFilter("nothing-matches-this")
		if got := len(r.Filtered()); got != 0 {
			t.Errorf("expected 0 visible, got %d", got)
		}
		r.ClearFilter()
		if got := len(r.Filtered()); got != 3 {
			t.Errorf("expected full set restored, got %d", got)
		}
	})

	t.Run("refilter narrows original set not previous filter", func(t *testing.T) {
		r.SetFilter("shot")
		r.SetFilter("seq")
		filtered := r.Filtered()
		if len(filtered) != 1 || filtered[0].ID != "c" {
			t.Errorf("expected only c, got %+v", filtered)
		}
	})
}

func TestRefinementSelection(t *testing.T) {
	r := NewRefinement(candidates(30))

	t.Run("toggle", func(t *testing.T) {
		r.Toggle("id-03")
		r.Toggle("id-05")
		r.Toggle("id-03")
		selected := r.SelectedIDs()
		if len(selected) != 1 || selected[0] != "id-05" {
			t.Errorf("expected [id-05], got %v", selected)
		}
	})

	t.Run("select page", func(t *testing.T) {
		r.DeselectAll()
		r.NextPage()
		r.SelectPage()
		if got := len(r.Selected()); got != 10 {
			t.Errorf("expected 10 selected, got %d", got)
		}
	})

	t.Run("select all filtered", func(t *testing.T) {
		r.DeselectAll()
		r.SetFilter("shot00")
		r.SelectAllFiltered()
		r.ClearFilter()
		if got := len(r.Selected()); got != 10 {
			t.Errorf("expected 10 selected, got %d", got)
		}
	})

	t.Run("selected preserves original order", func(t *testing.T) {
		r.DeselectAll()
		r.Toggle("id-07")
		r.Toggle("id-02")
		ids := r.SelectedIDs()
		if len(ids) != 2 || ids[0] != "id-02" || ids[1] != "id-07" {
			t.Errorf("expected [id-02 id-07], got %v", ids)
		}
	})
}
