package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// YahooClient fetches daily history from the Yahoo Finance v8 chart API.
// Locally listed symbols carry the .BA market suffix there.
type YahooClient struct {
	httpClient *http.Client
	baseURL    string
	logger     *logger.Logger
}

// NewYahooClient creates the yahoo adapter.
func NewYahooClient(timeout time.Duration, log *logger.Logger) *YahooClient {
	return &YahooClient{
		httpClient: newHTTPClient(timeout, false),
		baseURL:    yahooChartURL,
		logger:     log,
	}
}

// Name implements Provider.
func (c *YahooClient) Name() string {
	return SourceYahoo
}

// Fetch implements Provider.
// period1=0&period2=9999999999 requests the true full daily history rather
// than the capped range=max window.
func (c *YahooClient) Fetch(ctx context.Context, symbol string) ([]types.Bar, error) {
	url := fmt.Sprintf("%s/%s.BA?period1=0&period2=9999999999&interval=1d", c.baseURL, symbol)

	body, err := httpGet(ctx, c.httpClient, url, nil)
	if err != nil {
		return nil, err
	}

	bars, err := parseYahooChart(symbol, body)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("yahoo fetch complete",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)))

	return bars, nil
}

// parseYahooChart decodes the nested chart response. Days with null OHLC are
// non-trading days and are filtered out before they can reach the store; a
// null volume becomes zero.
func parseYahooChart(symbol string, body []byte) ([]types.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New(errors.ErrCodeFetchParse, "yahoo returned invalid JSON")
	}

	chart := gjson.GetBytes(body, "chart")
	if !chart.Exists() {
		return nil, errors.New(errors.ErrCodeFetchParse, "yahoo response missing chart object")
	}

	if chartErr := chart.Get("error"); chartErr.Exists() && chartErr.Type != gjson.Null {
		return nil, errors.Newf(errors.ErrCodeFetchPermanent, "yahoo error for %s: %s",
			symbol, chartErr.Get("description").String())
	}

	result := chart.Get("result.0")
	if !result.Exists() {
		return nil, nil
	}

	timestamps := result.Get("timestamp").Array()
	if len(timestamps) == 0 {
		return nil, nil
	}

	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	bars := make([]types.Bar, 0, len(timestamps))

	for i, ts := range timestamps {
		if i >= len(opens) || i >= len(highs) || i >= len(lows) || i >= len(closes) {
			break
		}

		if opens[i].Type == gjson.Null || highs[i].Type == gjson.Null ||
			lows[i].Type == gjson.Null || closes[i].Type == gjson.Null {
			continue
		}

		var volume int64
		if i < len(volumes) && volumes[i].Type != gjson.Null {
			volume = int64(volumes[i].Float())
		}

		bars = append(bars, types.NewBar(symbol, ts.Int(), opens[i].Float(), highs[i].Float(),
			lows[i].Float(), closes[i].Float(), volume, SourceYahoo))
	}

	return bars, nil
}
