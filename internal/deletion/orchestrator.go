// Package deletion plans and executes batched destructive operations on
// asset versions and their media components, dry-run first.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/MacJediWizard/shotsweep/internal/component"
	"github.com/MacJediWizard/shotsweep/internal/ftrack"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Batch sizing and pacing. Batches run strictly sequentially with a fixed
// pause between them; this is a deliberate simplicity choice, not adaptive
// rate limiting.
const (
	VersionBatchSize   = 10
	ComponentBatchSize = 5
	DefaultBatchPause  = 50 * time.Millisecond
)

// State tracks one id through the per-item pipeline.
type State string

const (
	StatePending    State = "pending"
	StateFetched    State = "fetched"
	StateClassified State = "classified"
	StateReported   State = "reported"
	StateExecuted   State = "executed"
	StateFailed     State = "failed"
)

// Action identifies what a report row describes.
type Action string

const (
	ActionDeleteVersion   Action = "delete-version"
	ActionDeleteComponent Action = "delete-component"
)

// ComponentChoice selects which components of a version are deletable.
type ComponentChoice string

const (
	ChoiceAll          ComponentChoice = "all"
	ChoiceOriginalOnly ComponentChoice = "original_only"
	ChoiceEncodedOnly  ComponentChoice = "encoded_only"
)

// ReportItem is one row of the dry-run/audit report: either a version-level
// row or one row per targeted component.
type ReportItem struct {
	Action        Action         `json:"action"`
	VersionID     string         `json:"version_id"`
	VersionLabel  string         `json:"version_label"`
	ComponentID   string         `json:"component_id,omitempty"`
	ComponentName string         `json:"component_name,omitempty"`
	Role          component.Role `json:"role,omitempty"`
	SizeBytes     int64          `json:"size_bytes"`
	Locations     []string       `json:"locations,omitempty"`
}

// Failure records one per-item error, keyed by the requested version id.
type Failure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Summary aggregates what a run deleted, or would delete in a dry run.
type Summary struct {
	VersionsDeleted   int       `json:"versions_deleted"`
	ComponentsDeleted int       `json:"components_deleted"`
	BytesDeleted      int64     `json:"bytes_deleted"`
	Failures          []Failure `json:"failures,omitempty"`
}

// RunResult pairs the report rows with the summary. A dry run produces a
// result structurally identical to what a real run would target.
type RunResult struct {
	Report  []ReportItem `json:"report"`
	Summary Summary      `json:"summary"`
}

// Options configures a run. The zero value is a dry run; every mutating
// path requires an explicit DryRun=false.
type Options struct {
	DryRun bool
}

// Orchestrator drives the fetch, classify, report, execute pipeline.
type Orchestrator struct {
	reader  ftrack.Reader
	mutator ftrack.Mutator
	scope   ftrack.Scope
	pause   time.Duration
	logger  zerolog.Logger
}

// NewOrchestrator creates an Orchestrator bound to a project scope.
func NewOrchestrator(reader ftrack.Reader, mutator ftrack.Mutator, scope ftrack.Scope, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		reader:  reader,
		mutator: mutator,
		scope:   scope,
		pause:   DefaultBatchPause,
		logger:  logger.With().Str("component", "deletion").Logger(),
	}
}

// SetBatchPause overrides the inter-batch pause. Used by tests.
func (o *Orchestrator) SetBatchPause(d time.Duration) {
	o.pause = d
}

// item is the per-id state machine record. executed tracks the components
// actually removed, which can be a subset of targets when a call fails
// partway through a version.
type item struct {
	id       string
	state    State
	version  *ftrack.AssetVersion
	targets  []ftrack.Component
	executed []ftrack.Component
	reason   string
}

func (it *item) fail(reason string) {
	it.state = StateFailed
	it.reason = reason
}

// DeleteVersions plans and, unless opts.DryRun, executes deletion of whole
// versions. Per-item fetch failures are recorded and the run continues;
// a systemic transport failure aborts the whole run.
func (o *Orchestrator) DeleteVersions(ctx context.Context, ids []string, opts Options) (*RunResult, error) {
	items := make([]*item, 0, len(ids))
	result := &RunResult{}

	for _, id := range ids {
		it := &item{id: id, state: StatePending}
		items = append(items, it)

		version, err := o.reader.VersionWithComponents(ctx, o.scope, id)
		if err != nil {
			if errors.Is(err, ftrack.ErrUnavailable) {
				return nil, fmt.Errorf("analysis aborted: %w", err)
			}
			it.fail(err.Error())
			o.logger.Warn().Str("id", id).Err(err).Msg("skipping version, fetch failed")
			continue
		}
		it.version = version
		it.state = StateFetched

		var total int64
		for _, c := range version.Components {
			total += c.Size
		}
		result.Report = append(result.Report, ReportItem{
			Action:       ActionDeleteVersion,
			VersionID:    version.ID,
			VersionLabel: version.Label,
			SizeBytes:    total,
		})
		for _, c := range version.Components {
			result.Report = append(result.Report, componentRow(version, c))
		}
		it.state = StateReported

		result.Summary.VersionsDeleted++
		result.Summary.ComponentsDeleted += len(version.Components)
		result.Summary.BytesDeleted += total
	}

	if opts.DryRun {
		collectFailures(items, &result.Summary)
		o.logSummary("dry run complete", result.Summary)
		return result, nil
	}

	o.execute(ctx, items, VersionBatchSize, func(ctx context.Context, it *item) error {
		return o.mutator.DeleteEntity(ctx, "AssetVersion", it.id)
	})

	finalizeSummary(items, result)
	o.logSummary("version deletion complete", result.Summary)
	return result, nil
}

// DeleteComponents plans and, unless opts.DryRun, executes deletion of a
// choice-filtered subset of each version's components. The version's
// protected thumbnail component is never targeted, for any choice.
func (o *Orchestrator) DeleteComponents(ctx context.Context, choices map[string]ComponentChoice, opts Options) (*RunResult, error) {
	// Map iteration order is random; report rows must be stable across
	// identical dry runs.
	ids := sortedKeys(choices)

	items := make([]*item, 0, len(ids))
	result := &RunResult{}

	for _, id := range ids {
		it := &item{id: id, state: StatePending}
		items = append(items, it)

		version, err := o.reader.VersionWithComponents(ctx, o.scope, id)
		if err != nil {
			if errors.Is(err, ftrack.ErrUnavailable) {
				return nil, fmt.Errorf("analysis aborted: %w", err)
			}
			it.fail(err.Error())
			o.logger.Warn().Str("id", id).Err(err).Msg("skipping version, fetch failed")
			continue
		}
		it.version = version
		it.state = StateFetched

		it.targets = deletableComponents(version, choices[id])
		it.state = StateClassified

		for _, c := range it.targets {
			result.Report = append(result.Report, componentRow(version, c))
			result.Summary.ComponentsDeleted++
			result.Summary.BytesDeleted += c.Size
		}
		it.state = StateReported
	}

	if opts.DryRun {
		collectFailures(items, &result.Summary)
		o.logSummary("dry run complete", result.Summary)
		return result, nil
	}

	o.executeComponents(ctx, items)

	finalizeComponentSummary(items, result)
	o.logSummary("component deletion complete", result.Summary)
	return result, nil
}

// deletableComponents computes the component set a choice targets,
// always excluding the protected thumbnail.
func deletableComponents(v *ftrack.AssetVersion, choice ComponentChoice) []ftrack.Component {
	var out []ftrack.Component
	for _, c := range v.Components {
		if c.ID == v.ThumbnailID {
			continue
		}
		role := component.Identify(c)
		switch choice {
		case ChoiceOriginalOnly:
			if role != component.RoleOriginal {
				continue
			}
		case ChoiceEncodedOnly:
			if role != component.RoleEncodedHigh && role != component.RoleEncodedLow {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// execute runs the mutating call for every reported item in fixed-size
// batches with a pause between batches. Items that failed during analysis
// are never retried. A call failure is recorded per-id and the batch
// continues.
func (o *Orchestrator) execute(ctx context.Context, items []*item, batchSize int, del func(context.Context, *item) error) {
	limiter := rate.NewLimiter(rate.Every(o.pause), 1)

	pending := make([]*item, 0, len(items))
	for _, it := range items {
		if it.state == StateReported {
			pending = append(pending, it)
		}
	}

	for start := 0; start < len(pending); start += batchSize {
		if err := limiter.Wait(ctx); err != nil {
			for _, it := range pending[start:] {
				it.fail(err.Error())
			}
			return
		}

		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		for _, it := range pending[start:end] {
			if err := del(ctx, it); err != nil {
				it.fail(err.Error())
				o.logger.Error().Str("id", it.id).Err(err).Msg("delete call failed")
				continue
			}
			it.state = StateExecuted
		}
		o.logger.Debug().Int("batch_end", end).Int("total", len(pending)).Msg("batch complete")
	}
}

// executeComponents deletes targeted components in batches of
// ComponentBatchSize across versions. A failed component delete fails its
// owning version's item but remaining components still execute.
func (o *Orchestrator) executeComponents(ctx context.Context, items []*item) {
	limiter := rate.NewLimiter(rate.Every(o.pause), 1)

	type target struct {
		it        *item
		component ftrack.Component
	}
	var targets []target
	for _, it := range items {
		if it.state != StateReported {
			continue
		}
		for _, c := range it.targets {
			targets = append(targets, target{it: it, component: c})
		}
		it.state = StateExecuted
	}

	for start := 0; start < len(targets); start += ComponentBatchSize {
		if err := limiter.Wait(ctx); err != nil {
			for _, t := range targets[start:] {
				t.it.fail(err.Error())
			}
			return
		}

		end := start + ComponentBatchSize
		if end > len(targets) {
			end = len(targets)
		}
		for _, t := range targets[start:end] {
			if err := o.mutator.DeleteEntity(ctx, "Component", t.component.ID); err != nil {
				t.it.fail(fmt.Sprintf("component %s: %v", t.component.Name, err))
				o.logger.Error().
					Str("id", t.it.id).
					Str("component", t.component.Name).
					Err(err).
					Msg("component delete failed")
				continue
			}
			t.it.executed = append(t.it.executed, t.component)
		}
	}
}

func componentRow(v *ftrack.AssetVersion, c ftrack.Component) ReportItem {
	locations := make([]string, 0, len(c.Locations))
	for _, l := range c.Locations {
		locations = append(locations, l.Name+":"+l.ResourceID)
	}
	return ReportItem{
		Action:        ActionDeleteComponent,
		VersionID:     v.ID,
		VersionLabel:  v.Label,
		ComponentID:   c.ID,
		ComponentName: c.Name,
		Role:          component.Identify(c),
		SizeBytes:     c.Size,
		Locations:     locations,
	}
}

func collectFailures(items []*item, s *Summary) {
	for _, it := range items {
		if it.state == StateFailed {
			s.Failures = append(s.Failures, Failure{ID: it.id, Reason: it.reason})
		}
	}
}

// finalizeSummary recomputes version-run counts from execution outcomes:
// only items that actually executed are counted as deleted.
func finalizeSummary(items []*item, result *RunResult) {
	result.Summary.VersionsDeleted = 0
	result.Summary.ComponentsDeleted = 0
	result.Summary.BytesDeleted = 0
	for _, it := range items {
		switch it.state {
		case StateExecuted:
			result.Summary.VersionsDeleted++
			result.Summary.ComponentsDeleted += len(it.version.Components)
			for _, c := range it.version.Components {
				result.Summary.BytesDeleted += c.Size
			}
		case StateFailed:
			result.Summary.Failures = append(result.Summary.Failures, Failure{ID: it.id, Reason: it.reason})
		}
	}
}

// finalizeComponentSummary recomputes component-run counts from what was
// actually removed. A version whose item failed partway still contributes
// the sibling components that did delete, so the summary and audit history
// reflect real destruction.
func finalizeComponentSummary(items []*item, result *RunResult) {
	result.Summary.ComponentsDeleted = 0
	result.Summary.BytesDeleted = 0
	for _, it := range items {
		for _, c := range it.executed {
			result.Summary.ComponentsDeleted++
			result.Summary.BytesDeleted += c.Size
		}
		if it.state == StateFailed {
			result.Summary.Failures = append(result.Summary.Failures, Failure{ID: it.id, Reason: it.reason})
		}
	}
}

func sortedKeys(m map[string]ComponentChoice) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (o *Orchestrator) logSummary(msg string, s Summary) {
	o.logger.Info().
		Int("versions_deleted", s.VersionsDeleted).
		Int("components_deleted", s.ComponentsDeleted).
		Int64("bytes_deleted", s.BytesDeleted).
		Int("failures", len(s.Failures)).
		Msg(msg)
}
