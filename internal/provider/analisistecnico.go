package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/types"
	"go.uber.org/zap"
)

const analisisTecnicoBaseURL = "https://analisistecnico.com.ar/services/datafeed"

// AnalisisTecnicoClient fetches daily history from the TradingView-style UDF
// datafeed. It is the only source that occasionally reports two bars for the
// same calendar date, so duplicate dates are preserved under increasing dup
// indices.
type AnalisisTecnicoClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewAnalisisTecnicoClient creates the analisistecnico adapter. The endpoint
// serves a self-signed certificate, so TLS verification is skipped.
func NewAnalisisTecnicoClient(timeout time.Duration, log *logger.Logger) *AnalisisTecnicoClient {
	return &AnalisisTecnicoClient{
		httpClient: newHTTPClient(timeout, true),
		baseURL:    analisisTecnicoBaseURL,
		logger:     log,
	}
}

// Name implements Provider.
func (c *AnalisisTecnicoClient) Name() string {
	return SourceAnalisisTecnico
}

// Fetch implements Provider.
func (c *AnalisisTecnicoClient) Fetch(ctx context.Context, symbol string) ([]types.Bar, error) {
	url := fmt.Sprintf("%s/history?symbol=%s&resolution=D", c.baseURL, symbol)

	body, err := httpGet(ctx, c.httpClient, url, nil)
	if err != nil {
		return nil, err
	}

	bars, err := parseChartSeries(symbol, body, SourceAnalisisTecnico, true)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("analisistecnico fetch complete",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)))

	return bars, nil
}
