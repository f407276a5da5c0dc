package export

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/backendex/backendex/pkg/telemetry"
)

// RowPolicy decides whether a discovered backend row is excluded from the
// output. Implemented by policy.Engine.
type RowPolicy interface {
	// Exclude returns the name of the policy that rejected the row, or ""
	// if the row is allowed.
	Exclude(ctx context.Context, b Backend) (string, error)
}

// WalkerOptions configures a traversal.
type WalkerOptions struct {
	// ApplicationNames filters applications by regexp search on the name.
	ApplicationNames string

	// BackendTypes filters external-call entities by regexp search on the
	// name.
	BackendTypes string

	// SkipThreadTasks disables the thread-task sub-branch. Deduplication is
	// only performed when thread tasks are searched; direct calls are
	// already unique per tier by construction of the catalog query.
	SkipThreadTasks bool
}

// Summary reports what one export run produced.
type Summary struct {
	RunID        string
	Applications int
	Tiers        int
	Backends     int
	Duplicates   int
	Anomalies    int
	Excluded     int
	Duration     time.Duration
}

// Walker traverses the metric tree of every matching application and streams
// discovered backends to the sink, one tier at a time.
type Walker struct {
	catalog Catalog
	sink    Sink
	policy  RowPolicy

	appNames   *regexp.Regexp
	callFilter Filter
	tierFilter Filter
	skipTasks  bool

	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// NewWalker creates a walker. policy may be nil; metrics and tracer may be
// no-op instances but not nil.
func NewWalker(catalog Catalog, sink Sink, policy RowPolicy, opts WalkerOptions,
	logger zerolog.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer) (*Walker, error) {

	appNames, err := regexp.Compile(opts.ApplicationNames)
	if err != nil {
		return nil, NewConfigError("invalid application name pattern", err)
	}

	typeFilter, err := NameMatches(opts.BackendTypes)
	if err != nil {
		return nil, err
	}
	folders, err := KindMatches(KindFolder)
	if err != nil {
		return nil, err
	}

	return &Walker{
		catalog:    catalog,
		sink:       sink,
		policy:     policy,
		appNames:   appNames,
		callFilter: And(typeFilter, folders),
		tierFilter: folders,
		skipTasks:  opts.SkipThreadTasks,
		logger:     logger.With().Str("component", "walker").Logger(),
		metrics:    metrics,
		tracer:     tracer,
	}, nil
}

// Run executes one full traversal. Rows already flushed to the sink are kept
// when the run fails partway through.
func (w *Walker) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString()}

	ctx, span := w.tracer.StartRunSpan(ctx, summary.RunID)
	defer span.End()

	w.metrics.RecordRunStarted()
	logger := w.logger.With().Str("run_id", summary.RunID).Logger()

	err := w.run(ctx, logger, summary)
	summary.Duration = time.Since(start)

	if err != nil {
		telemetry.RecordError(span, err)
		w.metrics.RecordRunCompleted("failed", summary.Duration)
		return summary, err
	}

	telemetry.RecordSuccess(span)
	w.metrics.RecordRunCompleted("success", summary.Duration)
	logger.Info().
		Int("applications", summary.Applications).
		Int("tiers", summary.Tiers).
		Int("backends", summary.Backends).
		Int("duplicates", summary.Duplicates).
		Dur("duration", summary.Duration).
		Msg("Export run completed")

	return summary, nil
}

func (w *Walker) run(ctx context.Context, logger zerolog.Logger, summary *Summary) error {
	if err := w.sink.Begin(ctx); err != nil {
		return err
	}

	apps, err := w.catalog.Applications(ctx)
	if err != nil {
		return err
	}

	for _, app := range apps {
		if !w.appNames.MatchString(app.Name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return NewTransportError("traversal cancelled", err)
		}

		summary.Applications++
		if err := w.walkApplication(ctx, logger, app, summary); err != nil {
			return err
		}
	}

	return nil
}

func (w *Walker) walkApplication(ctx context.Context, logger zerolog.Logger, app Application, summary *Summary) error {
	ctx, span := w.tracer.StartApplicationSpan(ctx, app.Name, app.ID)
	defer span.End()

	logger = logger.With().Str("application", app.Name).Logger()
	logger.Info().Int("app_id", app.ID).Msg("Processing application")

	entities, err := w.catalog.Entities(ctx, app.ID, PathOverallPerformance)
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	for _, tier := range Select(entities, w.tierFilter) {
		if err := ctx.Err(); err != nil {
			return NewTransportError("traversal cancelled", err)
		}
		summary.Tiers++
		if err := w.walkTier(ctx, logger, app, tier.Name, summary); err != nil {
			telemetry.RecordError(span, err)
			return err
		}
	}

	telemetry.RecordSuccess(span)
	return nil
}

// walkTier gathers the tier's direct external calls, then (unless skipped)
// the external calls nested under each thread task, and streams the merged,
// deduplicated rows to the sink.
func (w *Walker) walkTier(ctx context.Context, logger zerolog.Logger, app Application, tier string, summary *Summary) error {
	ctx, span := w.tracer.StartTierSpan(ctx, tier)
	defer span.End()

	logger = logger.With().Str("tier", tier).Logger()

	tierPath := joinPath(PathOverallPerformance, tier)

	calls, err := w.queryCalls(ctx, app.ID, joinPath(tierPath, SegmentExternalCalls))
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	if !w.skipTasks {
		tasks, err := w.catalog.Entities(ctx, app.ID, joinPath(tierPath, SegmentThreadTasks))
		if err != nil {
			telemetry.RecordError(span, err)
			return err
		}
		for _, task := range Select(tasks, w.tierFilter) {
			nested, err := w.queryCalls(ctx, app.ID,
				joinPath(tierPath, SegmentThreadTasks, task.Name, SegmentExternalCalls))
			if err != nil {
				telemetry.RecordError(span, err)
				return err
			}
			calls = append(calls, nested...)
		}
	}

	rows := w.collectRows(ctx, logger, app.Name, tier, calls, summary)
	span.SetAttributes(telemetry.AttrBackendCount.Int(len(rows)))
	if len(rows) == 0 {
		logger.Debug().Msg("No backends discovered for tier")
		telemetry.RecordSuccess(span)
		return nil
	}

	if err := w.sink.Append(ctx, rows); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	for range rows {
		w.metrics.RecordBackendExported(app.Name)
	}
	summary.Backends += len(rows)
	logger.Debug().Int("backends", len(rows)).Msg("Tier flushed")

	telemetry.RecordSuccess(span)
	return nil
}

// collectRows parses and deduplicates raw call entities in merge order.
// Duplicates are only possible (and only checked) when thread tasks are
// searched: the same backend may be reachable from several async call sites.
func (w *Walker) collectRows(ctx context.Context, logger zerolog.Logger, app, tier string, calls []MetricEntity, summary *Summary) []Backend {
	seen := make(map[string]struct{}, len(calls))
	rows := make([]Backend, 0, len(calls))

	for _, call := range calls {
		backendType, name, ok := ParseBackendName(call.Name)
		if !ok {
			summary.Anomalies++
			w.metrics.RecordParseAnomaly()
			logger.Warn().Str("raw", call.Name).Msg("Backend name does not match call grammar")
		}

		if !w.skipTasks {
			if _, dup := seen[name]; dup {
				summary.Duplicates++
				w.metrics.RecordDuplicateDiscarded()
				continue
			}
		}
		seen[name] = struct{}{}

		row := Backend{Application: app, Tier: tier, Type: backendType, Name: name}

		if w.policy != nil {
			policyName, err := w.policy.Exclude(ctx, row)
			if err != nil {
				logger.Warn().Err(err).Str("backend", name).Msg("Policy evaluation failed, keeping row")
			} else if policyName != "" {
				summary.Excluded++
				w.metrics.RecordPolicyExclusion(policyName)
				logger.Debug().Str("backend", name).Str("policy", policyName).Msg("Backend excluded by policy")
				continue
			}
		}

		rows = append(rows, row)
	}

	return rows
}

func (w *Walker) queryCalls(ctx context.Context, appID int, path string) ([]MetricEntity, error) {
	entities, err := w.catalog.Entities(ctx, appID, path)
	if err != nil {
		return nil, err
	}
	return Select(entities, w.callFilter), nil
}

func joinPath(segments ...string) string {
	return strings.Join(segments, "|")
}
