package ftrack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout is the default HTTP client timeout.
const DefaultTimeout = 30 * time.Second

// Operation is a single entry in a batched API call.
type Operation map[string]any

// Session is an HTTP client for the ftrack server API. All operations,
// including single queries, go through the batched /api endpoint.
type Session struct {
	serverURL  string
	apiUser    string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewSession creates a new API session.
func NewSession(serverURL, apiUser, apiKey string, logger zerolog.Logger) *Session {
	return &Session{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiUser:   apiUser,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		logger: logger.With().Str("component", "ftrack_session").Logger(),
	}
}

// Query executes one entity-query expression and returns the raw rows.
func (s *Session) Query(ctx context.Context, expression string) ([]map[string]any, error) {
	results, err := s.Call(ctx, []Operation{{
		"action":     "query",
		"expression": expression,
	}})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}

// Update writes fields on an existing entity.
func (s *Session) Update(ctx context.Context, entityType string, keys []string, fields map[string]any) error {
	_, err := s.Call(ctx, []Operation{{
		"action":      "update",
		"entity_type": entityType,
		"entity_key":  keys,
		"entity_data": fields,
	}})
	if err != nil {
		return fmt.Errorf("update %s: %w", entityType, err)
	}
	return nil
}

// DeleteEntity removes a single entity of the given type.
func (s *Session) DeleteEntity(ctx context.Context, entityType, id string) error {
	_, err := s.Call(ctx, []Operation{{
		"action":      "delete",
		"entity_type": entityType,
		"entity_key":  []string{id},
	}})
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", entityType, id, err)
	}
	return nil
}

// Call executes a batch of operations in one request and returns the row
// set of each operation, in order.
func (s *Session) Call(ctx context.Context, ops []Operation) ([][]map[string]any, error) {
	payload, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("marshal operations: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+"/api", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("ftrack-api-user", s.apiUser)
	req.Header.Set("ftrack-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: server returned %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: server returned %d: %s", ErrUnavailable, resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	// The server reports operation-level failures as a JSON object with an
	// exception field instead of the usual result array.
	var failure struct {
		Exception string `json:"exception"`
		Content   string `json:"content"`
	}
	if err := json.Unmarshal(body, &failure); err == nil && failure.Exception != "" {
		return nil, fmt.Errorf("server exception %s: %s", failure.Exception, failure.Content)
	}

	var results []struct {
		Action string           `json:"action"`
		Data   []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	rows := make([][]map[string]any, len(results))
	for i, r := range results {
		rows[i] = r.Data
	}
	return rows, nil
}

const versionFields = "id, version, asset.name, status.name, user.username, date, thumbnail_id"

const componentFields = "id, name, file_type, size, component_locations.location.name, component_locations.resource_identifier"

// VersionsWhere returns versions matching the predicate within scope.
func (s *Session) VersionsWhere(ctx context.Context, scope Scope, where string) ([]AssetVersion, error) {
	expr := fmt.Sprintf("select %s from AssetVersion", versionFields)
	if scoped := scope.Conjoin(where); scoped != "" {
		expr += " where " + scoped
	}

	rows, err := s.Query(ctx, expr)
	if err != nil {
		return nil, fmt.Errorf("query versions: %w", err)
	}

	versions := make([]AssetVersion, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, mapVersion(row))
	}
	s.logger.Debug().Int("count", len(versions)).Str("where", where).Msg("fetched versions")
	return versions, nil
}

// VersionWithComponents returns one version with its components hydrated.
func (s *Session) VersionWithComponents(ctx context.Context, scope Scope, id string) (*AssetVersion, error) {
	where := scope.Conjoin(`id is "` + escapeQuotes(id) + `"`)
	results, err := s.Call(ctx, []Operation{
		{
			"action":     "query",
			"expression": fmt.Sprintf("select %s from AssetVersion where %s", versionFields, where),
		},
		{
			"action":     "query",
			"expression": fmt.Sprintf(`select %s from Component where version_id is "%s"`, componentFields, escapeQuotes(id)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch version %s: %w", id, err)
	}
	if len(results) < 2 || len(results[0]) == 0 {
		return nil, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}

	version := mapVersion(results[0][0])
	for _, row := range results[1] {
		version.Components = append(version.Components, mapComponent(row))
	}
	return &version, nil
}

// ListMembers resolves a named list to its member version ids.
func (s *Session) ListMembers(ctx context.Context, scope Scope, listName string) ([]string, error) {
	where := scope.Conjoin(`list.name is "` + escapeQuotes(listName) + `"`)
	rows, err := s.Query(ctx, "select entity_id from AssetVersionList where "+where)
	if err != nil {
		return nil, fmt.Errorf("resolve list %q: %w", listName, err)
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		if id := stringField(row, "entity_id"); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func mapVersion(row map[string]any) AssetVersion {
	v := AssetVersion{
		ID:          stringField(row, "id"),
		ParentName:  stringField(row, "asset.name"),
		Status:      stringField(row, "status.name"),
		Owner:       stringField(row, "user.username"),
		ThumbnailID: stringField(row, "thumbnail_id"),
		Date:        dateField(row, "date"),
	}
	v.Label = fmt.Sprintf("%s / v%03d", v.ParentName, intField(row, "version"))
	return v
}

func mapComponent(row map[string]any) Component {
	c := Component{
		ID:       stringField(row, "id"),
		Name:     stringField(row, "name"),
		FileType: stringField(row, "file_type"),
		Size:     intField(row, "size"),
	}
	names, _ := row["component_locations.location.name"].([]any)
	resources, _ := row["component_locations.resource_identifier"].([]any)
	for i, n := range names {
		loc := ComponentLocation{Name: toString(n)}
		if i < len(resources) {
			loc.ResourceID = toString(resources[i])
		}
		c.Locations = append(c.Locations, loc)
	}
	return c
}

func stringField(row map[string]any, key string) string {
	return toString(row[key])
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func intField(row map[string]any, key string) int64 {
	switch v := row[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

// dateField handles both plain ISO strings and the typed datetime objects
// the server emits ({"__type__": "datetime", "value": "..."}).
func dateField(row map[string]any, key string) time.Time {
	raw := row[key]
	if obj, ok := raw.(map[string]any); ok {
		raw = obj["value"]
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
