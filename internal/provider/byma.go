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

const (
	bymaBaseURL    = "https://open.bymadata.com.ar/vanoms-be-core/rest/api/bymadata/free"
	bymaHistoryURL = bymaBaseURL + "/chart/historical-series/history"

	// bymaEpoch is 2000-01-01T00:00:00Z, the earliest history the endpoint serves.
	bymaEpoch = 946684800
)

// BymaClient fetches daily history from the exchange's public chart endpoint.
// Symbols are qualified with the 24-hour settlement segment.
type BymaClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewBymaClient creates the byma adapter. The endpoint serves a self-signed
// certificate, so TLS verification is skipped.
func NewBymaClient(timeout time.Duration, log *logger.Logger) *BymaClient {
	return &BymaClient{
		httpClient: newHTTPClient(timeout, true),
		baseURL:    bymaHistoryURL,
		logger:     log,
	}
}

// Name implements Provider.
func (c *BymaClient) Name() string {
	return SourceByma
}

// Fetch implements Provider.
func (c *BymaClient) Fetch(ctx context.Context, symbol string) ([]types.Bar, error) {
	mangled := fmt.Sprintf("%s+24HS", symbol)
	url := fmt.Sprintf("%s?symbol=%s&resolution=D&from=%d&to=%d",
		c.baseURL, mangled, bymaEpoch, time.Now().Unix())

	headers := map[string]string{
		"Accept":  "application/json",
		"Origin":  "https://open.bymadata.com.ar",
		"Referer": "https://open.bymadata.com.ar/",
	}

	body, err := httpGet(ctx, c.httpClient, url, headers)
	if err != nil {
		return nil, err
	}

	bars, err := parseChartSeries(symbol, body, SourceByma, false)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("byma fetch complete",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)))

	return bars, nil
}
