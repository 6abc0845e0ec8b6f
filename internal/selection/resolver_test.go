package selection

import (
	"context"
	"errors"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/MacJediWizard/shotsweep/internal/ftrack"
	"github.com/MacJediWizard/shotsweep/internal/query"
	"github.com/rs/zerolog"
)

const (
	idA = "11111111-1111-1111-1111-111111111111"
	idB = "22222222-2222-2222-2222-222222222222"
	idC = "33333333-3333-3333-3333-333333333333"
)

// fakeReader is an in-memory read capability.
type fakeReader struct {
	versions  []ftrack.AssetVersion
	lists     map[string][]string
	err       error
	lastWhere string
}

func (f *fakeReader) VersionsWhere(ctx context.Context, scope ftrack.Scope, where string) ([]ftrack.AssetVersion, error) {
	f.lastWhere = where
	if f.err != nil {
		return nil, f.err
	}
	// id in (...) filters by id and a leading like predicate matches the
	// parent name; anything else returns the full set.
	if strings.HasPrefix(where, "id in ") {
		var out []ftrack.AssetVersion
		for _, v := range f.versions {
			if strings.Contains(where, `"`+v.ID+`"`) {
				out = append(out, v)
			}
		}
		return out, nil
	}
	if i := strings.Index(where, `like "`); i >= 0 {
		rest := where[i+len(`like "`):]
		expr := regexp.QuoteMeta(rest[:strings.Index(rest, `"`)])
		re := regexp.MustCompile("^" + strings.ReplaceAll(expr, "%", ".*") + "$")
		var out []ftrack.AssetVersion
		for _, v := range f.versions {
			if re.MatchString(v.ParentName) {
				out = append(out, v)
			}
		}
		return out, nil
	}
	return f.versions, nil
}

func (f *fakeReader) VersionWithComponents(ctx context.Context, scope ftrack.Scope, id string) (*ftrack.AssetVersion, error) {
	for i := range f.versions {
		if f.versions[i].ID == id {
			return &f.versions[i], nil
		}
	}
	return nil, ftrack.ErrNotFound
}

func (f *fakeReader) ListMembers(ctx context.Context, scope ftrack.Scope, listName string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.lists[listName], nil
}

func newTestResolver(reader ftrack.Reader, opts ...Option) *Resolver {
	return NewResolver(reader, ftrack.Scope{}, zerolog.Nop(), opts...)
}

func TestByIDs(t *testing.T) {
	reader := &fakeReader{versions: []ftrack.AssetVersion{
		{ID: idA, Label: "SHOT010 / v001"},
		{ID: idB, Label: "SHOT020 / v002"},
	}}
	resolver := newTestResolver(reader)

	t.Run("fetches in one batched query", func(t *testing.T) {
		result, err := resolver.ByIDs(context.Background(), []string{idA, idB})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Candidates) != 2 {
			t.Fatalf("expected 2 candidates, got %d", len(result.Candidates))
		}
		if !strings.HasPrefix(reader.lastWhere, "id in (") {
			t.Errorf("expected batched id query, got %q", reader.lastWhere)
		}
	})

	t.Run("malformed id rejected before executing", func(t *testing.T) {
		reader.lastWhere = ""
		_, err := resolver.ByIDs(context.Background(), []string{"not-a-uuid"})
		if err == nil {
			t.Fatal("expected error for malformed id")
		}
		if reader.lastWhere != "" {
			t.Error("query executed despite malformed input")
		}
	})

	t.Run("missing ids reported as warning not failure", func(t *testing.T) {
		result, err := resolver.ByIDs(context.Background(), []string{idA, idC})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Candidates) != 1 {
			t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
		}
		if len(result.Missing) != 1 || result.Missing[0] != idC {
			t.Errorf("expected missing [%s], got %v", idC, result.Missing)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		result, err := resolver.ByIDs(context.Background(), nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Candidates) != 0 || result.Cancelled {
			t.Errorf("expected empty uncancelled result, got %+v", result)
		}
	})

	t.Run("uppercase id normalized to canonical form", func(t *testing.T) {
		result, err := resolver.ByIDs(context.Background(), []string{strings.ToUpper(idA)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Candidates) != 1 || result.Candidates[0].ID != idA {
			t.Fatalf("expected candidate %s, got %+v", idA, result.Candidates)
		}
		if len(result.Missing) != 0 {
			t.Errorf("normalized id wrongly reported missing: %v", result.Missing)
		}
	})
}

func TestByPatterns(t *testing.T) {
	reader := &fakeReader{versions: []ftrack.AssetVersion{
		{ID: idA, Label: "SHOT010 / v001", ParentName: "SHOT010"},
		{ID: idB, Label: "SEQ010 / v001", ParentName: "SEQ010"},
	}}
	resolver := newTestResolver(reader)

	t.Run("wildcard builds like predicate", func(t *testing.T) {
		_, err := resolver.ByPatterns(context.Background(), []string{"SHOT*"}, query.Criteria{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := `asset.name like "SHOT%"`
		if reader.lastWhere != want {
			t.Errorf("where = %q, want %q", reader.lastWhere, want)
		}
	})

	t.Run("criteria conjoined onto pattern predicate", func(t *testing.T) {
		criteria := query.Criteria{Status: &query.StatusCriterion{Names: []string{"Omitted"}}}
		_, err := resolver.ByPatterns(context.Background(), []string{"SHOT*"}, criteria)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := `(asset.name like "SHOT%") and status.name in ("Omitted")`
		if reader.lastWhere != want {
			t.Errorf("where = %q, want %q", reader.lastWhere, want)
		}
	})

	t.Run("regex post-filters client side", func(t *testing.T) {
		result, err := resolver.ByPatterns(context.Background(), []string{`/^SHOT\d+$/`}, query.Criteria{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Candidates) != 1 || result.Candidates[0].ID != idA {
			t.Errorf("expected only SHOT010 version, got %+v", result.Candidates)
		}
	})

	t.Run("custom search field", func(t *testing.T) {
		r := newTestResolver(reader, WithSearchField("asset.parent.name"))
		_, err := r.ByPatterns(context.Background(), []string{"SHOT*"}, query.Criteria{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(reader.lastWhere, "asset.parent.name like") {
			t.Errorf("expected custom field in %q", reader.lastWhere)
		}
	})

	t.Run("empty search yields suggestions from names in scope", func(t *testing.T) {
		result, err := resolver.ByPatterns(context.Background(), []string{"shot0*"}, query.Criteria{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Candidates) != 0 {
			t.Fatalf("expected no candidates, got %+v", result.Candidates)
		}
		want := []string{"*shot0*", "shot0*", "*shot0", "SHOT010"}
		if !reflect.DeepEqual(result.Suggestions, want) {
			t.Errorf("Suggestions = %v, want %v", result.Suggestions, want)
		}
	})
}

func TestByList(t *testing.T) {
	reader := &fakeReader{
		versions: []ftrack.AssetVersion{
			{ID: idA, Label: "SHOT010 / v001"},
			{ID: idB, Label: "SHOT020 / v002"},
		},
		lists: map[string][]string{"omit-list": {idA}},
	}
	resolver := newTestResolver(reader)

	t.Run("resolves members then hydrates", func(t *testing.T) {
		result, err := resolver.ByList(context.Background(), "omit-list")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Candidates) != 1 || result.Candidates[0].ID != idA {
			t.Errorf("expected member %s, got %+v", idA, result.Candidates)
		}
	})

	t.Run("unknown list yields empty result", func(t *testing.T) {
		result, err := resolver.ByList(context.Background(), "nope")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Candidates) != 0 {
			t.Errorf("expected empty, got %+v", result.Candidates)
		}
	})

	t.Run("reader error surfaces", func(t *testing.T) {
		broken := &fakeReader{err: errors.New("boom")}
		if _, err := newTestResolver(broken).ByList(context.Background(), "x"); err == nil {
			t.Fatal("expected error")
		}
	})
}
