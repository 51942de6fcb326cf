package provider

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type IOLParseTestSuite struct {
	suite.Suite
}

func TestIOLParseSuite(t *testing.T) {
	suite.Run(t, new(IOLParseTestSuite))
}

func (suite *IOLParseTestSuite) TestParseLocaleNumber() {
	for _, tc := range []struct {
		input string
		want  float64
	}{
		{"24,127,424,220.00", 24127424220.0},
		{"1,234.56", 1234.56},
		{"100", 100},
		{" 42.5 ", 42.5},
		{"", 0},
		{"-", 0},
		{"garbage", 0},
	} {
		suite.Equal(tc.want, parseLocaleNumber(tc.input), tc.input)
	}
}

func (suite *IOLParseTestSuite) TestParseTableDate() {
	date, ts, ok := parseTableDate("03/15/2024")
	suite.Require().True(ok)
	suite.Equal("2024-03-15", date)
	suite.NotZero(ts)

	// Day 25 cannot be a month, so the locale-switched fallback applies.
	date, _, ok = parseTableDate("25/03/2024")
	suite.Require().True(ok)
	suite.Equal("2024-03-25", date)

	_, _, ok = parseTableDate("not a date")
	suite.False(ok)
}

func (suite *IOLParseTestSuite) TestBarFromTableRow() {
	cells := []string{"03/15/2024", "1,050.00", "1,100.00", "1,020.00", "1,080.00", "1,080.00", "24,127,424,220.00", "22,340,207"}

	bar, ok := barFromTableRow("GGAL", cells)
	suite.Require().True(ok)
	suite.Equal("2024-03-15", bar.Date)
	suite.Equal(1050.0, bar.Open)
	suite.Equal(1100.0, bar.High)
	suite.Equal(1020.0, bar.Low)
	suite.Equal(1080.0, bar.Close)
	suite.Equal(int64(22340207), bar.Volume)
	suite.Equal(SourceIOL, bar.Source)
}

func (suite *IOLParseTestSuite) TestBarFromTableRowRejectsShortRow() {
	_, ok := barFromTableRow("GGAL", []string{"03/15/2024", "1.0"})
	suite.False(ok)
}

func (suite *IOLParseTestSuite) TestBarFromTableRowRejectsZeroOHLC() {
	cells := []string{"03/15/2024", "0", "0", "0", "0", "0", "0", "0"}

	_, ok := barFromTableRow("GGAL", cells)
	suite.False(ok)
}

func (suite *IOLParseTestSuite) TestBarsFromTableRowsDropsInvalid() {
	rows := [][]string{
		{"03/15/2024", "10", "11", "9", "10.5", "10.5", "1,000", "500"},
		{"bad date", "10", "11", "9", "10.5", "10.5", "1,000", "500"},
		{"03/14/2024", "9.5", "10.5", "9", "10", "10", "900", "450"},
	}

	bars := barsFromTableRows("GGAL", rows)
	suite.Require().Len(bars, 2)
	suite.Equal("2024-03-15", bars[0].Date)
	suite.Equal("2024-03-14", bars[1].Date)
}
