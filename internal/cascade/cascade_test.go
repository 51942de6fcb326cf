package cascade

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/store"
	"github.com/rxtech-lab/merval-data/internal/throttle"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// fakeProvider is a scripted source adapter for orchestrator tests.
type fakeProvider struct {
	name  string
	bars  []types.Bar
	err   error
	calls int
}

func (f *fakeProvider) Name() string {
	return f.name
}

func (f *fakeProvider) Fetch(ctx context.Context, symbol string) ([]types.Bar, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	return f.bars, nil
}

type CascadeTestSuite struct {
	suite.Suite
	store  *store.Store
	logger *logger.Logger
}

func TestCascadeSuite(t *testing.T) {
	suite.Run(t, new(CascadeTestSuite))
}

func (suite *CascadeTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	st, err := store.Open(filepath.Join(suite.T().TempDir(), "test.duckdb"), log)
	suite.Require().NoError(err)

	suite.store = st
	suite.logger = log
}

func (suite *CascadeTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

// spanBars produces one bar per month from start over the given number of
// years, enough to exercise coverage without thousands of rows.
func spanBars(symbol, source string, start time.Time, years int) []types.Bar {
	var bars []types.Bar

	for m := 0; m <= years*12; m++ {
		day := start.AddDate(0, m, 0)
		bars = append(bars, types.NewBar(symbol, day.Unix(), 100, 110, 95, 105, 1000, source))
	}

	return bars
}

func (suite *CascadeTestSuite) newOrchestrator(force bool, providers ...*fakeProvider) *Orchestrator {
	fast := []time.Duration{time.Millisecond}
	sources := make([]Source, 0, len(providers))

	for _, p := range providers {
		sources = append(sources, Source{
			Provider: p,
			Policy:   throttle.NewPolicy(0, fast, suite.logger),
		})
	}

	return NewOrchestrator(suite.store, sources, 5, force, "test-run", suite.logger)
}

func (suite *CascadeTestSuite) instrument(symbol string) types.Instrument {
	inst := types.Instrument{
		ID:       1,
		Name:     symbol,
		Symbol:   symbol,
		Category: types.CategoryStock,
		Enabled:  true,
	}
	suite.Require().NoError(suite.store.UpsertInstrument(inst))

	return inst
}

func (suite *CascadeTestSuite) TestEarlyExitSkipsAllSources() {
	inst := suite.instrument("GGAL")
	start := time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)

	_, err := suite.store.UpsertBars(spanBars("GGAL", "byma", start, 6))
	suite.Require().NoError(err)

	src := &fakeProvider{name: "byma", bars: spanBars("GGAL", "byma", start, 6)}

	result := suite.newOrchestrator(false, src).Run(context.Background(), inst)
	suite.Equal(types.OutcomeSufficient, result.Outcome)
	suite.True(result.Skipped)
	suite.Zero(result.BarsStored)
	suite.Zero(src.calls)

	trail, err := suite.store.AuditFor("GGAL")
	suite.Require().NoError(err)
	suite.Require().Len(trail, 1)
	suite.Equal(types.AuditOK, trail[0].Status)
	suite.Zero(trail[0].BarsStored)
}

func (suite *CascadeTestSuite) TestSecondSourceExtendsFirst() {
	inst := suite.instrument("GGAL")

	// A covers two years, B covers six; the cascade needs both but A stays
	// the primary source.
	shortStart := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	longStart := time.Date(2018, 1, 2, 0, 0, 0, 0, time.UTC)
	srcA := &fakeProvider{name: "byma", bars: spanBars("GGAL", "byma", shortStart, 2)}
	srcB := &fakeProvider{name: "yahoo", bars: spanBars("GGAL", "yahoo", longStart, 6)}

	result := suite.newOrchestrator(false, srcA, srcB).Run(context.Background(), inst)
	suite.Require().NoError(result.Err)
	suite.Equal(types.OutcomeSufficient, result.Outcome)
	suite.Equal("byma", result.PrimarySource)
	suite.Equal(1, srcA.calls)
	suite.Equal(1, srcB.calls)
	suite.Len(result.SourcesUsed, 2)

	// Union of both spans.
	suite.Equal(longStart.Format(types.DateLayout), result.Coverage.First.Format(types.DateLayout))
	suite.GreaterOrEqual(result.Coverage.Years(), 6.0)

	got, found, err := suite.store.GetInstrument("GGAL")
	suite.Require().NoError(err)
	suite.Require().True(found)
	suite.Equal("byma", got.PrimarySource)
	suite.Equal(result.Coverage.Bars, got.BarCount)
}

func (suite *CascadeTestSuite) TestSufficientFirstSourceStopsCascade() {
	inst := suite.instrument("GGAL")
	start := time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)
	srcA := &fakeProvider{name: "byma", bars: spanBars("GGAL", "byma", start, 6)}
	srcB := &fakeProvider{name: "yahoo", bars: spanBars("GGAL", "yahoo", start, 6)}

	result := suite.newOrchestrator(false, srcA, srcB).Run(context.Background(), inst)
	suite.Equal(types.OutcomeSufficient, result.Outcome)
	suite.Equal(1, srcA.calls)
	suite.Zero(srcB.calls)
}

func (suite *CascadeTestSuite) TestSourceFailureDoesNotAbort() {
	inst := suite.instrument("GGAL")
	start := time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)
	srcA := &fakeProvider{name: "byma", err: errors.New(errors.ErrCodeFetchPermanent, "404")}
	srcB := &fakeProvider{name: "yahoo", bars: spanBars("GGAL", "yahoo", start, 6)}

	result := suite.newOrchestrator(false, srcA, srcB).Run(context.Background(), inst)
	suite.Require().NoError(result.Err)
	suite.Equal(types.OutcomeSufficient, result.Outcome)
	suite.Equal("yahoo", result.PrimarySource)
}

func (suite *CascadeTestSuite) TestAllSourcesEmpty() {
	inst := suite.instrument("GGAL")
	srcA := &fakeProvider{name: "byma"}
	srcB := &fakeProvider{name: "yahoo", err: errors.New(errors.ErrCodeFetchPermanent, "delisted")}

	result := suite.newOrchestrator(false, srcA, srcB).Run(context.Background(), inst)
	suite.Equal(types.OutcomeEmpty, result.Outcome)
	suite.Zero(result.BarsStored)

	trail, err := suite.store.AuditFor("GGAL")
	suite.Require().NoError(err)
	suite.Require().Len(trail, 1)
	suite.Equal(types.AuditEmpty, trail[0].Status)
	suite.Contains(trail[0].ErrorMsg, "delisted")
}

func (suite *CascadeTestSuite) TestRerunIsIdempotent() {
	inst := suite.instrument("GGAL")
	start := time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)
	src := &fakeProvider{name: "byma", bars: spanBars("GGAL", "byma", start, 6)}
	orch := suite.newOrchestrator(false, src)

	first := orch.Run(context.Background(), inst)
	suite.Equal(types.OutcomeSufficient, first.Outcome)

	second := orch.Run(context.Background(), inst)
	suite.True(second.Skipped)
	suite.Equal(first.Coverage, second.Coverage)
	suite.Equal(1, src.calls)
}

func (suite *CascadeTestSuite) TestCoverageNeverShrinks() {
	inst := suite.instrument("GGAL")
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	src := &fakeProvider{name: "byma", bars: spanBars("GGAL", "byma", start, 2)}
	orch := suite.newOrchestrator(false, src)

	first := orch.Run(context.Background(), inst)
	suite.Equal(types.OutcomePartial, first.Outcome)

	// A later run from a source with a shorter span must not reduce the
	// stored coverage.
	src.bars = spanBars("GGAL", "byma", start.AddDate(1, 0, 0), 0)
	second := orch.Run(context.Background(), inst)
	suite.GreaterOrEqual(second.Coverage.Years(), first.Coverage.Years())
	suite.GreaterOrEqual(second.Coverage.Bars, first.Coverage.Bars)
}

func (suite *CascadeTestSuite) TestForceRefetchesSufficientInstrument() {
	inst := suite.instrument("GGAL")
	start := time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC)

	_, err := suite.store.UpsertBars(spanBars("GGAL", "byma", start, 6))
	suite.Require().NoError(err)

	src := &fakeProvider{name: "byma", bars: spanBars("GGAL", "byma", start, 6)}

	result := suite.newOrchestrator(true, src).Run(context.Background(), inst)
	suite.False(result.Skipped)
	suite.Equal(1, src.calls)
	suite.Equal(types.OutcomeSufficient, result.Outcome)
}

func (suite *CascadeTestSuite) TestCancelledContext() {
	inst := suite.instrument("GGAL")
	src := &fakeProvider{name: "byma", bars: spanBars("GGAL", "byma", time.Date(2017, 1, 2, 0, 0, 0, 0, time.UTC), 6)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := suite.newOrchestrator(false, src).Run(ctx, inst)
	suite.Require().Error(result.Err)
	suite.True(errors.HasCode(result.Err, errors.ErrCodeCancelled))
	suite.Zero(src.calls)
}
