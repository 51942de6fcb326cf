package cascade

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/provider"
	"github.com/rxtech-lab/merval-data/internal/throttle"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// BuildSources pairs each adapter with a policy tuned by the plan.
func BuildSources(providers []provider.Provider, plan Plan, log *logger.Logger) []Source {
	sources := make([]Source, 0, len(providers))

	for _, p := range providers {
		name := p.Name()
		sources = append(sources, Source{
			Provider: p,
			Policy:   throttle.NewPolicy(plan.DelayFor(name), plan.BackoffFor(name), log),
		})
	}

	return sources
}

// Stats accumulates run outcomes across instruments.
type Stats struct {
	Sufficient int
	Partial    int
	Empty      int
	Errors     int
	Skipped    int
	BarsStored int
	Results    []RunResult
}

func (s *Stats) add(r RunResult) {
	s.Results = append(s.Results, r)
	s.BarsStored += r.BarsStored

	switch {
	case r.Outcome == types.OutcomeError:
		s.Errors++
	case r.Skipped:
		s.Skipped++
	case r.Outcome == types.OutcomeSufficient:
		s.Sufficient++
	case r.Outcome == types.OutcomePartial:
		s.Partial++
	case r.Outcome == types.OutcomeEmpty:
		s.Empty++
	}
}

// Runner processes a list of instruments sequentially, one cascade at a time,
// checking for cancellation between instruments.
type Runner struct {
	orch     *Orchestrator
	logger   *logger.Logger
	progress bool
}

// NewRunner creates a runner. progress controls the console progress bar.
func NewRunner(orch *Orchestrator, progress bool, log *logger.Logger) *Runner {
	return &Runner{
		orch:     orch,
		logger:   log,
		progress: progress,
	}
}

// ProcessAll runs the cascade for every instrument. A cancelled context stops
// the loop at the next instrument boundary; the stats of the completed part
// are still returned.
func (r *Runner) ProcessAll(ctx context.Context, instruments []types.Instrument) Stats {
	var stats Stats

	var bar *progressbar.ProgressBar
	if r.progress {
		bar = progressbar.NewOptions(len(instruments),
			progressbar.OptionSetDescription("Fetching history"),
			progressbar.OptionShowCount())
	}

	for i, inst := range instruments {
		if ctx.Err() != nil {
			r.logger.Warn("run interrupted",
				zap.Int("processed", i),
				zap.Int("total", len(instruments)))

			break
		}

		r.logger.Info("processing instrument",
			zap.String("symbol", inst.Symbol),
			zap.String("category", string(inst.Category)),
			zap.Int("index", i+1),
			zap.Int("total", len(instruments)))

		result := r.orch.Run(ctx, inst)
		stats.add(result)

		if bar != nil {
			bar.Add(1)
		}

		if result.Err != nil && errors.HasCode(result.Err, errors.ErrCodeCancelled) {
			break
		}
	}

	if bar != nil {
		bar.Finish()
	}

	return stats
}

// PrintSummary writes the operator-facing run summary: counts per outcome and
// the symbols needing follow-up (below target, without data, or errored).
func (s Stats) PrintSummary(w io.Writer, minYears float64) {
	line := strings.Repeat("=", 70)

	fmt.Fprintf(w, "\n%s\n", line)
	fmt.Fprintln(w, "CASCADE SUMMARY")
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "  Total instruments:      %d\n", len(s.Results))
	fmt.Fprintf(w, "  Sufficient (>=%.1fyr):   %d\n", minYears, s.Sufficient)
	fmt.Fprintf(w, "  Partial (<%.1fyr):       %d\n", minYears, s.Partial)
	fmt.Fprintf(w, "  No data:                %d\n", s.Empty)
	fmt.Fprintf(w, "  Errors:                 %d\n", s.Errors)
	fmt.Fprintf(w, "  Skipped (already ok):   %d\n", s.Skipped)
	fmt.Fprintf(w, "  Bars stored:            %d\n", s.BarsStored)

	if s.Partial > 0 {
		fmt.Fprintf(w, "\nInstruments below %.1f years:\n", minYears)

		for _, r := range s.Results {
			if r.Outcome == types.OutcomePartial {
				fmt.Fprintf(w, "  %-10s %5d bars, %.1fyr (%s)\n",
					r.Symbol, r.Coverage.Bars, r.Coverage.Years(), r.PrimarySource)
			}
		}
	}

	if s.Empty > 0 {
		fmt.Fprintln(w, "\nInstruments without data:")

		for _, r := range s.Results {
			if r.Outcome == types.OutcomeEmpty && !r.Skipped {
				fmt.Fprintf(w, "  - %s\n", r.Symbol)
			}
		}
	}

	if s.Errors > 0 {
		fmt.Fprintln(w, "\nInstruments with errors:")

		for _, r := range s.Results {
			if r.Outcome == types.OutcomeError {
				fmt.Fprintf(w, "  ! %-10s %v\n", r.Symbol, r.Err)
			}
		}
	}

	fmt.Fprintln(w, line)
}
