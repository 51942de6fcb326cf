package types

import "time"

// DateLayout is the calendar-date format used as part of a bar's key.
const DateLayout = "2006-01-02"

// Bar is one trading day's OHLCV observation for one instrument from one
// contributing source. The storage key is (Symbol, Date, DupIndex).
//
// DupIndex exists because some sources occasionally emit two distinct bars for
// the same calendar date (session boundary quirks); index 0 is the primary
// row, higher indices preserve the duplicates instead of discarding them.
type Bar struct {
	Symbol    string
	Date      string
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
	DupIndex  int
	Source    string
}

// NewBar builds a bar from a unix timestamp, deriving the calendar date.
func NewBar(symbol string, ts int64, o, h, l, c float64, volume int64, source string) Bar {
	return Bar{
		Symbol:    symbol,
		Date:      time.Unix(ts, 0).UTC().Format(DateLayout),
		Timestamp: ts,
		Open:      o,
		High:      h,
		Low:       l,
		Close:     c,
		Volume:    volume,
		DupIndex:  0,
		Source:    source,
	}
}

// Day returns the bar's calendar date as a time.Time in UTC.
func (b Bar) Day() (time.Time, error) {
	return time.Parse(DateLayout, b.Date)
}
