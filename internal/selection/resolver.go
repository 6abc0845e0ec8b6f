// Package selection unifies direct-id, pattern-search, and list-membership
// acquisition of asset versions into one candidate set.
package selection

import (
	"context"
	"fmt"
	"strings"

	"github.com/MacJediWizard/shotsweep/internal/ftrack"
	"github.com/MacJediWizard/shotsweep/internal/pattern"
	"github.com/MacJediWizard/shotsweep/internal/query"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultSearchField is the query field patterns match against when no
// override is configured.
const DefaultSearchField = "asset.name"

// Candidate is the uniform output of every acquisition mode.
type Candidate struct {
	ID    string
	Label string
	Meta  map[string]string
}

// Result is the outcome of an acquisition. Cancelled distinguishes an
// operator abort from a genuine empty match.
type Result struct {
	Candidates []Candidate
	// Missing lists requested ids that had no match. A non-empty Missing
	// is a warning, not a failure.
	Missing []string
	// Suggestions holds alternative patterns worth trying when a pattern
	// search matched nothing.
	Suggestions []string
	Cancelled   bool
}

// Resolver acquires candidates through an injected read capability.
type Resolver struct {
	reader ftrack.Reader
	scope  ftrack.Scope
	field  string
	logger zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSearchField overrides the field pattern searches match against.
func WithSearchField(field string) Option {
	return func(r *Resolver) {
		r.field = field
	}
}

// NewResolver creates a Resolver bound to a project scope.
func NewResolver(reader ftrack.Reader, scope ftrack.Scope, logger zerolog.Logger, opts ...Option) *Resolver {
	r := &Resolver{
		reader: reader,
		scope:  scope,
		field:  DefaultSearchField,
		logger: logger.With().Str("component", "selection").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ByIDs fetches versions for the given id tokens in one batched query.
// Malformed tokens are rejected before anything executes; well-formed ones
// are normalized to the canonical lowercase form the server echoes back.
// Requested ids with no match are reported in Result.Missing.
func (r *Resolver) ByIDs(ctx context.Context, tokens []string) (*Result, error) {
	if len(tokens) == 0 {
		return &Result{}, nil
	}
	ids := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		u, err := uuid.Parse(tok)
		if err != nil {
			return nil, fmt.Errorf("malformed id %q: %w", tok, err)
		}
		ids = append(ids, u.String())
	}

	where := "id in " + quoteList(ids)
	versions, err := r.reader.VersionsWhere(ctx, r.scope, where)
	if err != nil {
		return nil, fmt.Errorf("fetch by ids: %w", err)
	}

	found := make(map[string]bool, len(versions))
	for _, v := range versions {
		found[v.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		r.logger.Warn().Strs("ids", missing).Msg("requested ids not found")
	}

	return &Result{Candidates: toCandidates(versions), Missing: missing}, nil
}

// ByPatterns searches the configured field with the given patterns,
// conjoined with any structured filter criteria. Regex patterns cannot be
// pushed into the remote query, so when any pattern is regex-shaped the
// result is post-filtered client-side.
func (r *Resolver) ByPatterns(ctx context.Context, patterns []string, criteria query.Criteria) (*Result, error) {
	if len(patterns) == 0 {
		return &Result{}, nil
	}

	where := pattern.Conditions(patterns, r.field)
	if filter := query.BuildWhere(criteria); filter != "" {
		where = "(" + where + ") and " + filter
	}
	versions, err := r.reader.VersionsWhere(ctx, r.scope, where)
	if err != nil {
		return nil, fmt.Errorf("pattern search: %w", err)
	}

	if pattern.HasRegex(patterns) {
		versions = pattern.FilterByRegex(versions, patterns, func(v ftrack.AssetVersion) string {
			return v.ParentName
		})
	}

	r.logger.Debug().Int("count", len(versions)).Strs("patterns", patterns).Msg("pattern search complete")
	if len(versions) == 0 {
		return &Result{Suggestions: r.suggestions(ctx, patterns)}, nil
	}
	return &Result{Candidates: toCandidates(versions)}, nil
}

// suggestions proposes alternative patterns for an empty search, drawn
// from the parent names actually present in scope. A failed corpus query
// just means no suggestions.
func (r *Resolver) suggestions(ctx context.Context, patterns []string) []string {
	versions, err := r.reader.VersionsWhere(ctx, r.scope, "")
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, v := range versions {
		if v.ParentName != "" && !seen[v.ParentName] {
			seen[v.ParentName] = true
			names = append(names, v.ParentName)
		}
	}

	stripper := strings.NewReplacer("*", "", "?", "", "[", "", "]", "", "/", "")
	var out []string
	dedupe := make(map[string]bool)
	for _, p := range patterns {
		for _, s := range pattern.Suggest(stripper.Replace(p), names) {
			if !dedupe[s] {
				dedupe[s] = true
				out = append(out, s)
			}
		}
	}
	if len(out) > pattern.SuggestLimit {
		out = out[:pattern.SuggestLimit]
	}
	return out
}

// ByList resolves a named list to member ids, then hydrates their details.
func (r *Resolver) ByList(ctx context.Context, listName string) (*Result, error) {
	ids, err := r.reader.ListMembers(ctx, r.scope, listName)
	if err != nil {
		return nil, fmt.Errorf("list membership: %w", err)
	}
	if len(ids) == 0 {
		return &Result{}, nil
	}

	versions, err := r.reader.VersionsWhere(ctx, r.scope, "id in "+quoteList(ids))
	if err != nil {
		return nil, fmt.Errorf("hydrate list members: %w", err)
	}
	return &Result{Candidates: toCandidates(versions)}, nil
}

func toCandidates(versions []ftrack.AssetVersion) []Candidate {
	candidates := make([]Candidate, 0, len(versions))
	for _, v := range versions {
		meta := map[string]string{
			"parent": v.ParentName,
			"status": v.Status,
			"owner":  v.Owner,
		}
		if !v.Date.IsZero() {
			meta["date"] = v.Date.Format("2006-01-02")
		}
		candidates = append(candidates, Candidate{ID: v.ID, Label: v.Label, Meta: meta})
	}
	return candidates
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return "(" + strings.Join(quoted, ", ") + ")"
}
