package registry

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Bond descriptions carry the maturity in Spanish prose. Two forms appear in
// practice: the full "vencimiento el 9 de julio de 2041" and the abbreviated
// "venciendo el 23/08", whose year is encoded in the ticker's trailing digit
// (2020 plus the digit).
var (
	maturityLongPattern  = regexp.MustCompile(`(?i)vencimiento\s+(?:el\s+)?(\d{1,2})\s+de\s+([\p{L}]+)\s+(?:de(?:l)?\s+)?(\d{4})`)
	maturityShortPattern = regexp.MustCompile(`(?i)venciendo\s+el\s+(\d{1,2})/(\d{1,2})`)
)

var spanishMonths = map[string]time.Month{
	"enero":      time.January,
	"febrero":    time.February,
	"marzo":      time.March,
	"abril":      time.April,
	"mayo":       time.May,
	"junio":      time.June,
	"julio":      time.July,
	"agosto":     time.August,
	"septiembre": time.September,
	"setiembre":  time.September,
	"octubre":    time.October,
	"noviembre":  time.November,
	"diciembre":  time.December,
}

// MaturityFromDescription extracts a bond's maturity date from its free-text
// description. Returns false when no recognizable maturity is present.
func MaturityFromDescription(symbol, description string) (time.Time, bool) {
	if m := maturityLongPattern.FindStringSubmatch(description); m != nil {
		day, _ := strconv.Atoi(m[1])

		month, ok := spanishMonths[strings.ToLower(m[2])]
		if !ok {
			return time.Time{}, false
		}

		year, _ := strconv.Atoi(m[3])

		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), true
	}

	if m := maturityShortPattern.FindStringSubmatch(description); m != nil {
		trimmed := strings.TrimSpace(symbol)
		if trimmed == "" {
			return time.Time{}, false
		}

		last := rune(trimmed[len(trimmed)-1])
		if last < '0' || last > '9' {
			return time.Time{}, false
		}

		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])

		if month < 1 || month > 12 {
			return time.Time{}, false
		}

		year := 2020 + int(last-'0')

		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
	}

	return time.Time{}, false
}
