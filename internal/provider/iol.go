package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"go.uber.org/zap"
)

const (
	iolHistoryURL    = "https://iol.invertironline.com/Titulo/DatosHistoricos"
	iolDateRangeFrom = "01/01/2000"
	iolPageSize      = 200
	iolMaxPages      = 200
	iolFetchTimeout  = 3 * time.Minute
)

// IOLSession owns the headless browser the IOL adapter scrapes through.
// It is constructed by the caller and injected into the adapter; Start and
// Stop bracket the browser lifecycle so teardown happens on every exit path,
// including cancellation.
type IOLSession struct {
	mu          sync.Mutex
	browserCtx  context.Context
	cancelFuncs []context.CancelFunc
	logger      *logger.Logger
}

// NewIOLSession creates an unstarted session.
func NewIOLSession(log *logger.Logger) *IOLSession {
	return &IOLSession{
		browserCtx:  nil,
		cancelFuncs: nil,
		logger:      log,
	}
}

// Start boots the headless browser. Safe to call once; the session is not
// restartable after Stop.
func (s *IOLSession) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx != nil {
		return nil
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, chromedp.DefaultExecAllocatorOptions[:]...)

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()

		return errors.Wrap(errors.ErrCodeSessionUnavailable, "failed to start headless browser", err)
	}

	s.browserCtx = browserCtx
	s.cancelFuncs = []context.CancelFunc{cancelBrowser, cancelAlloc}
	s.logger.Info("browser session started")

	return nil
}

// Stop tears the browser down. Idempotent.
func (s *IOLSession) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx == nil {
		return
	}

	for _, cancel := range s.cancelFuncs {
		cancel()
	}

	s.browserCtx = nil
	s.cancelFuncs = nil
	s.logger.Info("browser session stopped")
}

// context returns the running browser context.
func (s *IOLSession) context() (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.browserCtx == nil {
		return nil, errors.New(errors.ErrCodeSessionUnavailable, "browser session not started")
	}

	return s.browserCtx, nil
}

// IOLClient scrapes the broker's quote-history page. The page renders a
// paginated table; numbers use comma thousands separators and dates are
// MM/DD/YYYY with a locale-switched DD/MM/YYYY fallback.
type IOLClient struct {
	session *IOLSession
	logger  *logger.Logger
}

// NewIOLClient creates the iol adapter on top of a started session.
func NewIOLClient(session *IOLSession, log *logger.Logger) *IOLClient {
	return &IOLClient{
		session: session,
		logger:  log,
	}
}

// Name implements Provider.
func (c *IOLClient) Name() string {
	return SourceIOL
}

const iolExtractRowsJS = `(() => {
	const tables = document.querySelectorAll('table');
	if (tables.length < 2) return [];
	const rows = [];
	tables[1].querySelectorAll('tbody tr').forEach(tr => {
		const cells = [];
		tr.querySelectorAll('td').forEach(td => cells.push(td.innerText.trim()));
		rows.push(cells);
	});
	return rows;
})()`

const iolHasNextPageJS = `document.querySelector('.paginate_button.next:not(.disabled)') !== null`

const iolNoDataJS = `(() => {
	const h = document.querySelector('h2');
	return h ? h.innerText.includes('No hay datos') : false;
})()`

// Fetch implements Provider. It drives the page through a fresh browser tab:
// navigate, widen the date range to the full history, bump the page size, then
// walk the pagination collecting rows.
func (c *IOLClient) Fetch(ctx context.Context, symbol string) ([]types.Bar, error) {
	browserCtx, err := c.session.context()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(browserCtx)
	defer cancelTab()

	runCtx, cancelRun := context.WithTimeout(tabCtx, iolFetchTimeout)
	defer cancelRun()

	// Stop the tab when the caller's context is cancelled mid-scrape.
	go func() {
		select {
		case <-ctx.Done():
			cancelRun()
		case <-runCtx.Done():
		}
	}()

	url := fmt.Sprintf("%s?simbolo=%s&mercado=BCBA", iolHistoryURL, symbol)

	var noData bool

	setRangeJS := fmt.Sprintf(`document.querySelector('#DesdeHasta').value = '%s - %s';`,
		iolDateRangeFrom, time.Now().Format("01/02/2006"))

	err = chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(iolNoDataJS, &noData),
	)
	if err != nil {
		return nil, c.classify(ctx, err, symbol, "failed to load history page")
	}

	if noData {
		return nil, nil
	}

	err = chromedp.Run(runCtx,
		chromedp.Evaluate(setRangeJS, nil),
		chromedp.Click("#aplicarbusqueda", chromedp.ByID),
		chromedp.Sleep(3*time.Second),
		chromedp.SetAttributeValue(`select[name='tbcotizaciones_length']`, "value", fmt.Sprint(iolPageSize), chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
	)
	if err != nil {
		return nil, c.classify(ctx, err, symbol, "failed to apply date range")
	}

	var allRows [][]string

	for page := 1; page <= iolMaxPages; page++ {
		var (
			rows    [][]string
			hasNext bool
		)

		err = chromedp.Run(runCtx,
			chromedp.Evaluate(iolExtractRowsJS, &rows),
			chromedp.Evaluate(iolHasNextPageJS, &hasNext),
		)
		if err != nil {
			return nil, c.classify(ctx, err, symbol, "failed to extract table page")
		}

		if len(rows) == 0 {
			break
		}

		allRows = append(allRows, rows...)

		c.logger.Debug("iol page scraped",
			zap.String("symbol", symbol),
			zap.Int("page", page),
			zap.Int("rows", len(rows)))

		if !hasNext {
			break
		}

		err = chromedp.Run(runCtx,
			chromedp.Click(".paginate_button.next", chromedp.ByQuery),
			chromedp.Sleep(1500*time.Millisecond),
		)
		if err != nil {
			return nil, c.classify(ctx, err, symbol, "failed to advance pagination")
		}
	}

	bars := barsFromTableRows(symbol, allRows)

	c.logger.Debug("iol fetch complete",
		zap.String("symbol", symbol),
		zap.Int("bars", len(bars)))

	return bars, nil
}

// classify maps a browser failure to the fetch taxonomy: caller cancellation
// propagates as such, everything else (timeouts, crashed tabs) is transient.
func (c *IOLClient) classify(ctx context.Context, err error, symbol, message string) error {
	if ctx.Err() != nil {
		return errors.Wrap(errors.ErrCodeCancelled, "scrape cancelled", ctx.Err())
	}

	return errors.Wrapf(errors.ErrCodeFetchTransient, err, "%s for %s", message, symbol)
}
