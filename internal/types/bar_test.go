package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type BarTestSuite struct {
	suite.Suite
}

func TestBarSuite(t *testing.T) {
	suite.Run(t, new(BarTestSuite))
}

func (suite *BarTestSuite) TestNewBarDerivesDate() {
	ts := time.Date(2024, 3, 15, 21, 0, 0, 0, time.UTC).Unix()
	bar := NewBar("GGAL", ts, 100, 110, 95, 105, 12345, "byma")

	suite.Equal("2024-03-15", bar.Date)
	suite.Equal("GGAL", bar.Symbol)
	suite.Equal(ts, bar.Timestamp)
	suite.Equal(0, bar.DupIndex)
	suite.Equal("byma", bar.Source)
}

func (suite *BarTestSuite) TestDay() {
	bar := NewBar("GGAL", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC).Unix(), 1, 1, 1, 1, 0, "byma")
	day, err := bar.Day()

	suite.NoError(err)
	suite.Equal(2024, day.Year())
	suite.Equal(time.March, day.Month())
	suite.Equal(15, day.Day())
}
