// Package cascade implements the multi-source acquisition engine: for each
// instrument it walks the prioritized source adapters, merging results into
// the store until the coverage target is met, and records provenance and an
// audit trail for every run.
package cascade

import (
	"context"
	"fmt"
	"time"

	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/provider"
	"github.com/rxtech-lab/merval-data/internal/store"
	"github.com/rxtech-lab/merval-data/internal/throttle"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"go.uber.org/zap"
)

// auditSource tags cascade-level audit entries, as opposed to a single
// adapter's provenance tag on bars.
const auditSource = "cascade"

// Source pairs an adapter with its throttle/retry policy.
type Source struct {
	Provider provider.Provider
	Policy   *throttle.Policy
}

// RunResult is the final state of one instrument's cascade run.
type RunResult struct {
	Symbol string
	// Outcome classifies final coverage against the target.
	Outcome types.Outcome
	// Skipped is set when coverage was already sufficient and no source
	// was consulted.
	Skipped bool
	// BarsFound is the total bar count fetched from all sources this run.
	BarsFound int
	// BarsStored is the total bar count upserted this run.
	BarsStored int
	// Coverage is the stored span after the run.
	Coverage store.Coverage
	// PrimarySource is the first source that contributed any bars.
	PrimarySource string
	// SourcesUsed lists contributing sources as "name(count)" in call order.
	SourcesUsed []string
	// Err is set for cancellation or a store-level failure; per-source
	// fetch failures never surface here.
	Err error
}

// Orchestrator runs the per-instrument cascade state machine.
type Orchestrator struct {
	store    *store.Store
	sources  []Source
	minYears float64
	force    bool
	runID    string
	logger   *logger.Logger
}

// NewOrchestrator creates an orchestrator over the prioritized source list.
// runID tags this run's audit entries.
func NewOrchestrator(st *store.Store, sources []Source, minYears float64, force bool, runID string, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:    st,
		sources:  sources,
		minYears: minYears,
		force:    force,
		runID:    runID,
		logger:   log,
	}
}

// Run acquires history for one instrument.
//
// Sources are tried in priority order until coverage meets the target;
// coverage is re-checked before every source so a source is only consulted
// when still needed. The first source to contribute any bars is recorded as
// the primary source, even when a later source contributes more rows. A
// single source's failure is logged and never aborts the cascade.
func (o *Orchestrator) Run(ctx context.Context, inst types.Instrument) RunResult {
	started := time.Now()
	result := RunResult{Symbol: inst.Symbol}

	cov, err := o.store.CoverageFor(inst.Symbol)
	if err != nil {
		return o.fail(result, started, err)
	}

	// Idempotence: sufficient coverage means no network calls at all.
	if !o.force && cov.Bars > 0 && cov.Years() >= o.minYears {
		o.logger.Debug("coverage already sufficient",
			zap.String("symbol", inst.Symbol),
			zap.Float64("years", cov.Years()),
			zap.Int("bars", cov.Bars))

		result.Outcome = types.OutcomeSufficient
		result.Skipped = true
		result.Coverage = cov
		o.audit(result, started, types.AuditOK, "")

		return result
	}

	var lastFetchErr error

	for _, src := range o.sources {
		if ctx.Err() != nil {
			return o.finalize(ctx, result, started, lastFetchErr)
		}

		cov, err = o.store.CoverageFor(inst.Symbol)
		if err != nil {
			return o.fail(result, started, err)
		}

		// A forced run always consults at least one source; after that the
		// usual sufficiency check stops the walk.
		if (!o.force || result.BarsStored > 0) && cov.Bars > 0 && cov.Years() >= o.minYears {
			break
		}

		name := src.Provider.Name()

		o.logger.Debug("trying source",
			zap.String("symbol", inst.Symbol),
			zap.String("source", name),
			zap.Float64("years", cov.Years()),
			zap.Int("bars", cov.Bars))

		bars, err := src.Policy.Do(ctx, name, inst.Symbol, src.Provider.Fetch)
		if err != nil {
			if errors.HasCode(err, errors.ErrCodeCancelled) {
				return o.finalize(ctx, result, started, lastFetchErr)
			}

			lastFetchErr = err
			o.logger.Warn("source failed",
				zap.String("symbol", inst.Symbol),
				zap.String("source", name),
				zap.Error(err))

			continue
		}

		if len(bars) == 0 {
			o.logger.Debug("source returned no data",
				zap.String("symbol", inst.Symbol),
				zap.String("source", name))

			continue
		}

		stored, err := o.store.UpsertBars(bars)
		if err != nil {
			return o.fail(result, started, err)
		}

		result.BarsFound += len(bars)
		result.BarsStored += stored
		result.SourcesUsed = append(result.SourcesUsed, fmt.Sprintf("%s(%d)", name, stored))

		if result.PrimarySource == "" {
			result.PrimarySource = name
		}
	}

	return o.finalize(ctx, result, started, lastFetchErr)
}

// finalize recomputes coverage, classifies the outcome, updates instrument
// metadata and appends the run's audit entry.
func (o *Orchestrator) finalize(ctx context.Context, result RunResult, started time.Time, lastFetchErr error) RunResult {
	cov, err := o.store.CoverageFor(result.Symbol)
	if err != nil {
		return o.fail(result, started, err)
	}

	result.Coverage = cov

	if ctx.Err() != nil {
		result.Err = errors.Wrap(errors.ErrCodeCancelled, "cascade interrupted", ctx.Err())
	}

	switch {
	case cov.Bars == 0:
		result.Outcome = types.OutcomeEmpty

		errMsg := ""
		if lastFetchErr != nil {
			errMsg = lastFetchErr.Error()
		}

		o.audit(result, started, types.AuditEmpty, errMsg)

		return result
	case cov.Years() >= o.minYears:
		result.Outcome = types.OutcomeSufficient
	default:
		result.Outcome = types.OutcomePartial
	}

	if result.BarsStored > 0 {
		if err := o.store.MarkAcquired(result.Symbol, cov.Bars, result.PrimarySource, time.Now()); err != nil {
			return o.fail(result, started, err)
		}
	}

	o.audit(result, started, types.AuditOK, "")

	return result
}

// fail records a store-level failure; unlike source failures these abort the
// instrument's run.
func (o *Orchestrator) fail(result RunResult, started time.Time, err error) RunResult {
	result.Outcome = types.OutcomeError
	result.Err = err

	o.logger.Error("cascade run failed",
		zap.String("symbol", result.Symbol),
		zap.Error(err))

	o.audit(result, started, types.AuditError, err.Error())

	return result
}

func (o *Orchestrator) audit(result RunResult, started time.Time, status types.AuditStatus, errMsg string) {
	entry := types.AuditEntry{
		RunID:      o.runID,
		Symbol:     result.Symbol,
		StartedAt:  started,
		FinishedAt: time.Now(),
		Status:     status,
		BarsFound:  result.BarsFound,
		BarsStored: result.BarsStored,
		ErrorMsg:   errMsg,
		Source:     auditSource,
	}

	if err := o.store.AppendAudit(entry); err != nil {
		// The audit trail is observability, not correctness; a failed
		// append must not fail the run that produced the data.
		o.logger.Error("failed to append audit entry",
			zap.String("symbol", result.Symbol),
			zap.Error(err))
	}
}
