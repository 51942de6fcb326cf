package provider

import (
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/merval-data/internal/types"
)

// parseLocaleNumber parses the quote page's number format: comma as the
// thousands separator, dot as the decimal ("24,127,424,220.00"). Empty cells
// and dashes read as zero.
func parseLocaleNumber(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" || text == "-" {
		return 0
	}

	cleaned := strings.ReplaceAll(text, ",", "")

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}

	return value
}

// parseTableDate parses the quote page's date cell. The page reports
// MM/DD/YYYY; a DD/MM/YYYY fallback covers the locale-switched variant.
func parseTableDate(text string) (string, int64, bool) {
	text = strings.TrimSpace(text)

	for _, layout := range []string{"01/02/2006", "02/01/2006"} {
		if dt, err := time.Parse(layout, text); err == nil {
			return dt.Format(types.DateLayout), dt.Unix(), true
		}
	}

	return "", 0, false
}

// iolTableColumns is the minimum cell count of a data row:
// date, open, high, low, close, adjusted close, traded amount, nominal volume.
const iolTableColumns = 8

// barFromTableRow assembles one bar from a scraped table row. Rows with an
// unparseable date or all-zero OHLC (placeholder rows) are dropped.
func barFromTableRow(symbol string, cells []string) (types.Bar, bool) {
	if len(cells) < iolTableColumns {
		return types.Bar{}, false
	}

	date, ts, ok := parseTableDate(cells[0])
	if !ok {
		return types.Bar{}, false
	}

	open := parseLocaleNumber(cells[1])
	high := parseLocaleNumber(cells[2])
	low := parseLocaleNumber(cells[3])
	closePrice := parseLocaleNumber(cells[4])
	// Nominal volume, not the traded amount in column 6.
	volume := int64(parseLocaleNumber(cells[7]))

	if open == 0 && high == 0 && low == 0 && closePrice == 0 {
		return types.Bar{}, false
	}

	return types.Bar{
		Symbol:    symbol,
		Date:      date,
		Timestamp: ts,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		DupIndex:  0,
		Source:    SourceIOL,
	}, true
}

// barsFromTableRows converts scraped rows in bulk, dropping invalid ones.
func barsFromTableRows(symbol string, rows [][]string) []types.Bar {
	bars := make([]types.Bar, 0, len(rows))

	for _, cells := range rows {
		if bar, ok := barFromTableRow(symbol, cells); ok {
			bars = append(bars, bar)
		}
	}

	return bars
}
