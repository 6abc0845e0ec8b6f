// Package ftrack provides a session client and narrow projection types
// for the ftrack entity-query API.
package ftrack

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors used to separate per-item failures from systemic ones.
var (
	// ErrNotFound indicates a requested entity does not exist on the server.
	ErrNotFound = errors.New("entity not found")
	// ErrUnavailable indicates a transport or authentication failure.
	// Callers treat it as fatal for the whole run, not per-item.
	ErrUnavailable = errors.New("server unavailable")
)

// AssetVersion is the projection of a remote asset-version record used by
// the cleanup pipeline. It is a read-only snapshot; mutations happen only
// through the Mutator capability.
type AssetVersion struct {
	ID          string
	Label       string
	ParentName  string
	Status      string
	Owner       string
	Date        time.Time
	ThumbnailID string
	Components  []Component
}

// Component is a stored media artifact attached to an asset version.
type Component struct {
	ID        string
	Name      string
	FileType  string
	Size      int64
	Locations []ComponentLocation
}

// ComponentLocation identifies where a component's payload is stored.
type ComponentLocation struct {
	Name       string
	ResourceID string
}

// Scope carries the project the pipeline operates in. It is threaded
// explicitly through every entry point instead of living in session state.
type Scope struct {
	ProjectID string
}

// Conjoin wraps a base predicate with the project constraint. An empty
// scope passes the predicate through unchanged.
func (s Scope) Conjoin(where string) string {
	if s.ProjectID == "" {
		return where
	}
	if where == "" {
		return `project_id is "` + escapeQuotes(s.ProjectID) + `"`
	}
	return `project_id is "` + escapeQuotes(s.ProjectID) + `" and (` + where + `)`
}

// Reader is the read capability consumed by the selection and deletion
// pipeline. Session implements it; tests supply fakes.
type Reader interface {
	// VersionsWhere returns versions matching the predicate within scope.
	// Components are not hydrated.
	VersionsWhere(ctx context.Context, scope Scope, where string) ([]AssetVersion, error)
	// VersionWithComponents returns one version with its components and
	// thumbnail id. Returns ErrNotFound when the id has no match.
	VersionWithComponents(ctx context.Context, scope Scope, id string) (*AssetVersion, error)
	// ListMembers resolves a named list to its member version ids.
	ListMembers(ctx context.Context, scope Scope, listName string) ([]string, error)
}

// Mutator is the write capability. It is injected separately from Reader
// so dry-run paths can run against read-only fakes.
type Mutator interface {
	// DeleteEntity removes a single entity of the given type.
	DeleteEntity(ctx context.Context, entityType, id string) error
	// Update writes fields on an existing entity.
	Update(ctx context.Context, entityType string, keys []string, fields map[string]any) error
}

func escapeQuotes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '"' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
