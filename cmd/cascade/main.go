package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/merval-data/internal/cascade"
	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/provider"
	"github.com/rxtech-lab/merval-data/internal/registry"
	"github.com/rxtech-lab/merval-data/internal/store"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// cascadeAction is the core logic executed by the CLI command. It opens the
// store, optionally reconciles the declarative list, builds the source
// cascade and processes every eligible instrument.
func cascadeAction(ctx context.Context, cmd *cli.Command) error {
	log, err := buildLogger(cmd.Bool("verbose"))
	if err != nil {
		return err
	}
	defer log.Sync()

	st, err := store.Open(cmd.String("db"), log)
	if err != nil {
		return err
	}
	defer st.Close()

	// Export mode writes the registry back out and does nothing else.
	if out := cmd.String("export-csv"); out != "" {
		n, err := registry.ExportCSV(st, out)
		if err != nil {
			return err
		}

		fmt.Printf("Exported %d instruments to %s\n", n, out)

		return nil
	}

	plan, err := loadPlan(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("sync") {
		records, err := registry.LoadCSV(cmd.String("csv"))
		if err != nil {
			return err
		}

		result, err := registry.Reconcile(st, records, log)
		if err != nil {
			return err
		}

		result.PrintReport(os.Stdout)
	}

	instruments, err := selectInstruments(st, cmd.String("symbol"))
	if err != nil {
		return err
	}

	if len(instruments) == 0 {
		fmt.Println("No enabled instruments to process.")

		return nil
	}

	skip := plan.SkipSet()
	for _, name := range cmd.StringSlice("skip-source") {
		skip[name] = true
	}

	session := provider.NewIOLSession(log)
	if !skip[provider.SourceIOL] {
		if err := session.Start(ctx); err != nil {
			log.Warn("browser session unavailable, skipping iol", zap.Error(err))
			session = nil
		}
	} else {
		session = nil
	}

	if session != nil {
		defer session.Stop()
	}

	providers := provider.BuildCascade(provider.Config{
		Logger:        log,
		HTTPTimeout:   30 * time.Second,
		IOLSession:    session,
		PolygonAPIKey: os.Getenv("POLYGON_API_KEY"),
	}, skip)

	if len(providers) == 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "every source is skipped or unavailable")
	}

	sources := cascade.BuildSources(providers, plan, log)
	orch := cascade.NewOrchestrator(st, sources, plan.MinYears, cmd.Bool("force"), uuid.NewString(), log)
	runner := cascade.NewRunner(orch, !cmd.Bool("verbose"), log)

	stats := runner.ProcessAll(ctx, instruments)
	stats.PrintSummary(os.Stdout, plan.MinYears)

	if stats.Errors > 0 {
		return errors.Newf(errors.ErrCodeUnknown, "%d instruments failed", stats.Errors)
	}

	return ctx.Err()
}

func buildLogger(verbose bool) (*logger.Logger, error) {
	if verbose {
		return logger.NewDevelopmentLogger()
	}

	return logger.NewLogger()
}

// loadPlan resolves the acquisition plan, then applies flag overrides.
func loadPlan(cmd *cli.Command) (cascade.Plan, error) {
	plan := cascade.DefaultPlan()

	if path := cmd.String("plan"); path != "" {
		var err error

		plan, err = cascade.LoadPlan(path)
		if err != nil {
			return plan, err
		}
	}

	if cmd.IsSet("min-years") {
		plan.MinYears = cmd.Float("min-years")
	}

	if cmd.IsSet("delay") {
		plan.Delay = cmd.Duration("delay")
	}

	return plan, plan.Validate()
}

func selectInstruments(st *store.Store, symbol string) ([]types.Instrument, error) {
	if symbol != "" {
		inst, found, err := st.GetInstrument(types.NormalizeSymbol(symbol))
		if err != nil {
			return nil, err
		}

		if !found {
			return nil, errors.Newf(errors.ErrCodeInstrumentNotFound, "instrument %s is not registered", symbol)
		}

		return []types.Instrument{inst}, nil
	}

	return st.ListInstruments(true)
}

func main() {
	cmd := &cli.Command{
		Name:  "cascade",
		Usage: "Acquire daily OHLCV history for the registered instruments",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to the DuckDB database file",
				Value:   "data/merval.duckdb",
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Path to the declarative instrument list",
				Value: "instruments.csv",
			},
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "Reconcile the declarative list before acquiring",
			},
			&cli.StringFlag{
				Name:  "export-csv",
				Usage: "Export the registry to `PATH` and exit",
			},
			&cli.StringFlag{
				Name:    "symbol",
				Aliases: []string{"s"},
				Usage:   "Process a single symbol instead of every enabled instrument",
			},
			&cli.StringSliceFlag{
				Name:  "skip-source",
				Usage: "Source to leave out of the cascade (repeatable)",
			},
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Re-acquire even when coverage already meets the target",
			},
			&cli.FloatFlag{
				Name:  "min-years",
				Usage: "Coverage target in years",
				Value: 5,
			},
			&cli.DurationFlag{
				Name:  "delay",
				Usage: "Minimum delay between requests to the same source",
				Value: 500 * time.Millisecond,
			},
			&cli.StringFlag{
				Name:  "plan",
				Usage: "Path to a YAML acquisition plan",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Debug logging instead of the progress bar",
			},
		},
		Action: cascadeAction,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A second signal aborts without waiting for the current instrument.
	go func() {
		<-ctx.Done()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		fmt.Fprintln(os.Stderr, "aborted")
		os.Exit(130)
	}()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
