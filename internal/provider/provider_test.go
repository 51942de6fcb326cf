package provider

import (
	"testing"

	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/stretchr/testify/suite"
)

type ProviderTestSuite struct {
	suite.Suite
	logger *logger.Logger
}

func TestProviderSuite(t *testing.T) {
	suite.Run(t, new(ProviderTestSuite))
}

func (suite *ProviderTestSuite) SetupSuite() {
	log, err := logger.NewLogger()
	suite.Require().NoError(err)

	suite.logger = log
}

func names(providers []Provider) []string {
	out := make([]string, 0, len(providers))
	for _, p := range providers {
		out = append(out, p.Name())
	}

	return out
}

func (suite *ProviderTestSuite) TestBuildCascadeDefault() {
	// No session and no API key leaves iol and polygon out.
	providers := BuildCascade(Config{Logger: suite.logger}, nil)
	suite.Equal([]string{SourceByma, SourceYahoo, SourceAnalisisTecnico}, names(providers))
}

func (suite *ProviderTestSuite) TestBuildCascadeWithPolygonKey() {
	providers := BuildCascade(Config{Logger: suite.logger, PolygonAPIKey: "key"}, nil)
	suite.Equal([]string{SourceByma, SourceYahoo, SourceAnalisisTecnico, SourcePolygon}, names(providers))
}

func (suite *ProviderTestSuite) TestBuildCascadeSkips() {
	skip := map[string]bool{SourceByma: true, SourceAnalisisTecnico: true}

	providers := BuildCascade(Config{Logger: suite.logger}, skip)
	suite.Equal([]string{SourceYahoo}, names(providers))
}

func (suite *ProviderTestSuite) TestDefaultOrderIsStable() {
	suite.Equal([]string{SourceByma, SourceIOL, SourceYahoo, SourceAnalisisTecnico, SourcePolygon}, DefaultOrder())
}
