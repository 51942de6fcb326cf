package provider

import (
	"testing"

	"github.com/rxtech-lab/merval-data/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ChartJSONTestSuite struct {
	suite.Suite
}

func TestChartJSONSuite(t *testing.T) {
	suite.Run(t, new(ChartJSONTestSuite))
}

func (suite *ChartJSONTestSuite) TestParseOK() {
	body := []byte(`{
		"s": "ok",
		"t": [1704153600, 1704240000],
		"o": [100.0, 101.0],
		"h": [110.0, 111.0],
		"l": [95.0, 96.0],
		"c": [105.0, 106.0],
		"v": [1000, 2000]
	}`)

	bars, err := parseChartSeries("GGAL", body, SourceByma, false)
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal("2024-01-02", bars[0].Date)
	suite.Equal(105.0, bars[0].Close)
	suite.Equal(int64(1000), bars[0].Volume)
	suite.Equal(SourceByma, bars[0].Source)
	suite.Equal(0, bars[1].DupIndex)
}

func (suite *ChartJSONTestSuite) TestParseNoData() {
	bars, err := parseChartSeries("GGAL", []byte(`{"s": "no_data"}`), SourceByma, false)
	suite.NoError(err)
	suite.Empty(bars)
}

func (suite *ChartJSONTestSuite) TestParseErrorStatus() {
	_, err := parseChartSeries("GGAL", []byte(`{"s": "error", "errmsg": "unknown symbol"}`), SourceByma, false)
	suite.Require().Error(err)
	suite.True(errors.IsPermanent(err))
}

func (suite *ChartJSONTestSuite) TestParseUnexpectedStatus() {
	_, err := parseChartSeries("GGAL", []byte(`{"s": "maybe"}`), SourceByma, false)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeFetchParse, errors.GetCode(err))
}

func (suite *ChartJSONTestSuite) TestParseInvalidJSON() {
	_, err := parseChartSeries("GGAL", []byte(`{"s": "ok"`), SourceByma, false)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeFetchParse, errors.GetCode(err))
}

func (suite *ChartJSONTestSuite) TestParseMismatchedLengths() {
	body := []byte(`{"s": "ok", "t": [1704153600, 1704240000], "o": [100.0], "h": [110.0], "l": [95.0], "c": [105.0], "v": [1000]}`)

	_, err := parseChartSeries("GGAL", body, SourceByma, false)
	suite.Require().Error(err)
	suite.Equal(errors.ErrCodeFetchParse, errors.GetCode(err))
}

func (suite *ChartJSONTestSuite) TestParseSkipsNullDays() {
	body := []byte(`{
		"s": "ok",
		"t": [1704153600, 1704240000, 1704326400],
		"o": [100.0, null, 102.0],
		"h": [110.0, null, 112.0],
		"l": [95.0, null, 97.0],
		"c": [105.0, null, 107.0],
		"v": [1000, null, null]
	}`)

	bars, err := parseChartSeries("GGAL", body, SourceByma, false)
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal("2024-01-02", bars[0].Date)
	suite.Equal("2024-01-04", bars[1].Date)
	suite.Equal(int64(0), bars[1].Volume)
}

func (suite *ChartJSONTestSuite) TestParseIndexesDuplicateDates() {
	// Two timestamps on the same calendar day.
	body := []byte(`{
		"s": "ok",
		"t": [1704153600, 1704196800],
		"o": [100.0, 100.5],
		"h": [110.0, 110.5],
		"l": [95.0, 95.5],
		"c": [105.0, 105.5],
		"v": [1000, 500]
	}`)

	bars, err := parseChartSeries("AL30", body, SourceAnalisisTecnico, true)
	suite.Require().NoError(err)
	suite.Require().Len(bars, 2)
	suite.Equal(bars[0].Date, bars[1].Date)
	suite.Equal(0, bars[0].DupIndex)
	suite.Equal(1, bars[1].DupIndex)
}
