// Package provider implements the source adapters the cascade orchestrator
// walks when acquiring OHLCV history. Each adapter encapsulates one external
// provider's transport, auth headers, symbol mangling and response parsing;
// the orchestrator treats them as opaque.
package provider

import (
	"context"
	"time"

	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/types"
)

// Source tags identify the contributing provider on every stored bar and
// audit entry.
const (
	SourceByma            = "byma"
	SourceIOL             = "iol"
	SourceYahoo           = "yahoo"
	SourceAnalisisTecnico = "analisistecnico"
	SourcePolygon         = "polygon"
)

// Provider is the capability contract every source adapter implements.
//
// Fetch returns the full daily history the provider has for the symbol. A
// symbol the provider simply has no data for is a legitimate empty result
// (nil, nil), not an error. Failures carry a pkg/errors code so the caller
// can distinguish transient from permanent ones.
type Provider interface {
	// Name returns the provenance tag of the adapter.
	Name() string
	// Fetch downloads all available daily bars for the symbol. The context
	// cancels the underlying network call.
	Fetch(ctx context.Context, symbol string) ([]types.Bar, error)
}

// DefaultOrder is the fixed source priority for the cascade. The order is a
// static total order; it is never re-ranked at runtime.
func DefaultOrder() []string {
	return []string{SourceByma, SourceIOL, SourceYahoo, SourceAnalisisTecnico, SourcePolygon}
}

// Config carries the shared dependencies adapters are constructed with.
type Config struct {
	Logger      *logger.Logger
	HTTPTimeout time.Duration
	// IOLSession is the browser session for the IOL adapter. A nil session
	// leaves the adapter unregistered.
	IOLSession *IOLSession
	// PolygonAPIKey enables the optional polygon adapter when non-empty.
	PolygonAPIKey string
}

// BuildCascade constructs the enabled adapters in priority order, leaving out
// any name in skip and any adapter whose prerequisites (session, API key) are
// missing.
func BuildCascade(cfg Config, skip map[string]bool) []Provider {
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	var cascade []Provider

	for _, name := range DefaultOrder() {
		if skip[name] {
			continue
		}

		switch name {
		case SourceByma:
			cascade = append(cascade, NewBymaClient(cfg.HTTPTimeout, cfg.Logger))
		case SourceIOL:
			if cfg.IOLSession != nil {
				cascade = append(cascade, NewIOLClient(cfg.IOLSession, cfg.Logger))
			}
		case SourceYahoo:
			cascade = append(cascade, NewYahooClient(cfg.HTTPTimeout, cfg.Logger))
		case SourceAnalisisTecnico:
			cascade = append(cascade, NewAnalisisTecnicoClient(cfg.HTTPTimeout, cfg.Logger))
		case SourcePolygon:
			if cfg.PolygonAPIKey != "" {
				cascade = append(cascade, NewPolygonClient(cfg.PolygonAPIKey, cfg.Logger))
			}
		}
	}

	return cascade
}
