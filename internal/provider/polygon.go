package provider

import (
	"context"
	"net/http"
	"time"

	polygon "github.com/polygon-io/client-go/rest"
	"github.com/polygon-io/client-go/rest/models"
	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"go.uber.org/zap"
)

// polygonEpoch bounds the history request; the US listings relevant here have
// no earlier daily data.
var polygonEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// PolygonClient fetches daily aggregates for instruments with US listings.
// It participates in the cascade only when an API key is configured.
type PolygonClient struct {
	client *polygon.Client
	logger *logger.Logger
}

// NewPolygonClient creates the polygon adapter.
func NewPolygonClient(apiKey string, log *logger.Logger) *PolygonClient {
	return &PolygonClient{
		client: polygon.New(apiKey),
		logger: log,
	}
}

// Name implements Provider.
func (c *PolygonClient) Name() string {
	return SourcePolygon
}

// Fetch implements Provider.
func (c *PolygonClient) Fetch(ctx context.Context, symbol string) ([]types.Bar, error) {
	//nolint:exhaustruct // third-party struct with many optional fields
	params := models.ListAggsParams{
		Ticker:     symbol,
		Multiplier: 1,
		Timespan:   models.Day,
		From:       models.Millis(polygonEpoch),
		To:         models.Millis(time.Now().UTC()),
	}.WithLimit(50000)

	iter := c.client.ListAggs(ctx, params)

	var bars []types.Bar

	for iter.Next() {
		agg := iter.Item()
		ts := time.Time(agg.Timestamp).Unix()
		bars = append(bars, types.NewBar(symbol, ts, agg.Open, agg.High, agg.Low, agg.Close,
			int64(agg.Volume), SourcePolygon))
	}

	if err := iter.Err(); err != nil {
		return nil, classifyPolygonError(ctx, err, symbol)
	}

	c.logger.Debug("polygon fetch complete",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)))

	return bars, nil
}

// classifyPolygonError maps the client's response errors onto the fetch
// taxonomy using the HTTP status they carry.
func classifyPolygonError(ctx context.Context, err error, symbol string) error {
	if ctx.Err() != nil {
		return errors.Wrap(errors.ErrCodeCancelled, "polygon fetch cancelled", ctx.Err())
	}

	var respErr *models.ErrorResponse
	if errors.As(err, &respErr) {
		switch {
		case respErr.StatusCode == http.StatusTooManyRequests:
			return errors.Wrapf(errors.ErrCodeFetchRateLimited, err, "polygon rate limited for %s", symbol)
		case respErr.StatusCode >= http.StatusInternalServerError:
			return errors.Wrapf(errors.ErrCodeFetchTransient, err, "polygon server error for %s", symbol)
		default:
			return errors.Wrapf(errors.ErrCodeFetchPermanent, err, "polygon rejected %s", symbol)
		}
	}

	return errors.Wrapf(errors.ErrCodeFetchTransient, err, "polygon fetch failed for %s", symbol)
}
