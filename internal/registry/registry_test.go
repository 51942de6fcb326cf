package registry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/store"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type RegistryTestSuite struct {
	suite.Suite
	store  *store.Store
	logger *logger.Logger
	dir    string
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}

func (suite *RegistryTestSuite) SetupTest() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	suite.dir = suite.T().TempDir()

	st, err := store.Open(filepath.Join(suite.dir, "test.duckdb"), log)
	suite.Require().NoError(err)

	suite.store = st
	suite.logger = log
}

func (suite *RegistryTestSuite) TearDownTest() {
	if suite.store != nil {
		suite.store.Close()
	}
}

func (suite *RegistryTestSuite) writeCSV(content string) string {
	path := filepath.Join(suite.dir, "instruments.csv")
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o644))

	return path
}

func (suite *RegistryTestSuite) TestLoadCSV() {
	path := suite.writeCSV(`id,name,symbol,category,settlement_type,enabled,description
1,Grupo Financiero Galicia,ggal,STOCK,,true,Banking group
2,Bonar 2030,AL30,bond,CONTADO,yes,USD sovereign bond
3,Apple Inc,AAPL,CEDEARS,,0,
`)

	records, err := LoadCSV(path)
	suite.Require().NoError(err)
	suite.Require().Len(records, 3)

	suite.Equal("GGAL", records[0].Symbol)
	suite.Equal(types.CategoryStock, records[0].Category)
	suite.True(records[0].Enabled)

	suite.Equal(types.CategoryBond, records[1].Category)
	suite.Equal("CONTADO", records[1].SettlementType)
	suite.True(records[1].Enabled)

	suite.False(records[2].Enabled)
}

func (suite *RegistryTestSuite) TestLoadCSVDuplicateSymbol() {
	path := suite.writeCSV(`id,name,symbol,category,settlement_type,enabled,description
1,One,GGAL,STOCK,,true,
2,Two,ggal,STOCK,,true,
`)

	_, err := LoadCSV(path)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeDuplicateSymbol, errors.GetCode(err))
}

func (suite *RegistryTestSuite) TestLoadCSVUnknownCategory() {
	path := suite.writeCSV(`id,name,symbol,category,settlement_type,enabled,description
1,One,GGAL,CRYPTO,,true,
`)

	_, err := LoadCSV(path)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeInvalidCategory, errors.GetCode(err))
}

func (suite *RegistryTestSuite) TestRecordDerivesSettlement() {
	stock := Record{Symbol: "GGAL", Category: types.CategoryStock}
	suite.Equal(types.SettlementOneWorkingDay, stock.Instrument().SettlementType)

	bond := Record{Symbol: "AL30", Category: types.CategoryBond}
	suite.Equal(types.SettlementContado, bond.Instrument().SettlementType)

	explicit := Record{Symbol: "AL30", Category: types.CategoryBond, SettlementType: "CUSTOM"}
	suite.Equal("CUSTOM", explicit.Instrument().SettlementType)
}

func (suite *RegistryTestSuite) records() []Record {
	return []Record{
		{Name: "Grupo Financiero Galicia", Symbol: "GGAL", Category: types.CategoryStock, Enabled: true},
		{Name: "Bonar 2030", Symbol: "AL30", Category: types.CategoryBond, Enabled: true},
	}
}

func (suite *RegistryTestSuite) TestReconcileRegistersNew() {
	result, err := Reconcile(suite.store, suite.records(), suite.logger)
	suite.Require().NoError(err)
	suite.Equal([]string{"GGAL", "AL30"}, result.New)
	suite.Zero(result.Unchanged)

	ggal, found, err := suite.store.GetInstrument("GGAL")
	suite.Require().NoError(err)
	suite.Require().True(found)
	suite.Equal(int64(1), ggal.ID)

	al30, _, err := suite.store.GetInstrument("AL30")
	suite.Require().NoError(err)
	suite.Equal(int64(2), al30.ID)
}

func (suite *RegistryTestSuite) TestReconcileRerunIsUnchanged() {
	_, err := Reconcile(suite.store, suite.records(), suite.logger)
	suite.Require().NoError(err)

	result, err := Reconcile(suite.store, suite.records(), suite.logger)
	suite.Require().NoError(err)
	suite.Empty(result.New)
	suite.Empty(result.Updated)
	suite.Empty(result.Disabled)
	suite.Equal(2, result.Unchanged)
}

func (suite *RegistryTestSuite) TestReconcileReportsChangedFields() {
	_, err := Reconcile(suite.store, suite.records(), suite.logger)
	suite.Require().NoError(err)

	changed := suite.records()
	changed[0].Name = "Grupo Galicia"
	changed[0].Description = "renamed"

	result, err := Reconcile(suite.store, changed, suite.logger)
	suite.Require().NoError(err)
	suite.Require().Len(result.Updated, 1)
	suite.Equal("GGAL", result.Updated[0].Symbol)
	suite.ElementsMatch([]string{"name", "description"}, result.Updated[0].Fields)
	suite.Equal(1, result.Unchanged)
}

func (suite *RegistryTestSuite) TestReconcileDisabledMasksOtherDiffs() {
	_, err := Reconcile(suite.store, suite.records(), suite.logger)
	suite.Require().NoError(err)

	changed := suite.records()
	changed[0].Name = "Renamed Anyway"
	changed[0].Enabled = false

	result, err := Reconcile(suite.store, changed, suite.logger)
	suite.Require().NoError(err)
	suite.Equal([]string{"GGAL"}, result.Disabled)
	suite.Empty(result.Updated)

	// The row itself still took every field change.
	got, _, err := suite.store.GetInstrument("GGAL")
	suite.Require().NoError(err)
	suite.False(got.Enabled)
	suite.Equal("Renamed Anyway", got.Name)
}

func (suite *RegistryTestSuite) TestReconcileNeverDeletes() {
	_, err := Reconcile(suite.store, suite.records(), suite.logger)
	suite.Require().NoError(err)

	// A shorter file leaves the missing instrument untouched.
	_, err = Reconcile(suite.store, suite.records()[:1], suite.logger)
	suite.Require().NoError(err)

	all, err := suite.store.ListInstruments(false)
	suite.Require().NoError(err)
	suite.Len(all, 2)
}

func (suite *RegistryTestSuite) TestRecordMaturity() {
	bond := Record{
		Symbol:      "AL41",
		Category:    types.CategoryBond,
		Description: "Bono con vencimiento el 9 de julio de 2041",
	}

	got, ok := bond.Maturity()
	suite.Require().True(ok)
	suite.Equal(2041, got.Year())

	// Equities never carry one, even with bond-like prose.
	stock := Record{Symbol: "GGAL", Category: types.CategoryStock, Description: bond.Description}
	_, ok = stock.Maturity()
	suite.False(ok)
}

func (suite *RegistryTestSuite) TestReconcileSurfacesBondMaturities() {
	records := []Record{
		{Name: "Bonar 2041", Symbol: "AL41", Category: types.CategoryBond, Enabled: true,
			Description: "Bono con vencimiento el 9 de julio de 2041"},
		{Name: "Grupo Financiero Galicia", Symbol: "GGAL", Category: types.CategoryStock, Enabled: true},
	}

	result, err := Reconcile(suite.store, records, suite.logger)
	suite.Require().NoError(err)
	suite.Require().Contains(result.Maturities, "AL41")
	suite.Equal(2041, result.Maturities["AL41"].Year())
	suite.NotContains(result.Maturities, "GGAL")

	var report strings.Builder

	result.PrintReport(&report)
	suite.Contains(report.String(), "AL41 (matures 2041-07-09)")
}

func (suite *RegistryTestSuite) TestExportCSVRoundTrip() {
	_, err := Reconcile(suite.store, []Record{
		{Name: "Bonar 2030", Symbol: "AL30", Category: types.CategoryBond, Enabled: true},
		{Name: "Apple Inc", Symbol: "AAPL", Category: types.CategoryCedears, Enabled: true},
		{Name: "Grupo Financiero Galicia", Symbol: "GGAL", Category: types.CategoryStock, Enabled: true},
	}, suite.logger)
	suite.Require().NoError(err)

	out := filepath.Join(suite.dir, "export.csv")

	n, err := ExportCSV(suite.store, out)
	suite.Require().NoError(err)
	suite.Equal(3, n)

	records, err := LoadCSV(out)
	suite.Require().NoError(err)
	suite.Require().Len(records, 3)

	// Stocks come first, then depositary receipts, then bonds.
	suite.Equal("GGAL", records[0].Symbol)
	suite.Equal("AAPL", records[1].Symbol)
	suite.Equal("AL30", records[2].Symbol)
}
