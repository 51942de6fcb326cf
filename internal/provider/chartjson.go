package provider

import (
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"github.com/tidwall/gjson"
)

// parseChartSeries decodes the chart-style payload shared by the byma and
// analisistecnico endpoints: a status field "s" plus parallel arrays of unix
// timestamps and OHLCV values.
//
// Status "no_data" is a legitimate empty result. When indexDuplicates is set,
// repeated calendar dates get increasing dup indices so the duplicate row is
// preserved instead of overwritten; otherwise every bar is primary.
func parseChartSeries(symbol string, body []byte, source string, indexDuplicates bool) ([]types.Bar, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.Newf(errors.ErrCodeFetchParse, "%s returned invalid JSON", source)
	}

	root := gjson.ParseBytes(body)

	switch root.Get("s").String() {
	case "ok":
	case "no_data":
		return nil, nil
	case "error":
		return nil, errors.Newf(errors.ErrCodeFetchPermanent, "%s reported error: %s", source, root.Get("errmsg").String())
	default:
		return nil, errors.Newf(errors.ErrCodeFetchParse, "%s returned unexpected status %q", source, root.Get("s").String())
	}

	timestamps := root.Get("t").Array()
	opens := root.Get("o").Array()
	highs := root.Get("h").Array()
	lows := root.Get("l").Array()
	closes := root.Get("c").Array()
	volumes := root.Get("v").Array()

	if len(opens) != len(timestamps) || len(highs) != len(timestamps) ||
		len(lows) != len(timestamps) || len(closes) != len(timestamps) {
		return nil, errors.Newf(errors.ErrCodeFetchParse, "%s returned mismatched series lengths", source)
	}

	bars := make([]types.Bar, 0, len(timestamps))
	dupCount := make(map[string]int)

	for i, ts := range timestamps {
		// Non-trading days come back as null OHLC; they never reach the store.
		if opens[i].Type == gjson.Null || highs[i].Type == gjson.Null ||
			lows[i].Type == gjson.Null || closes[i].Type == gjson.Null {
			continue
		}

		var volume int64
		if i < len(volumes) && volumes[i].Type != gjson.Null {
			volume = int64(volumes[i].Float())
		}

		bar := types.NewBar(symbol, ts.Int(), opens[i].Float(), highs[i].Float(),
			lows[i].Float(), closes[i].Float(), volume, source)

		if indexDuplicates {
			bar.DupIndex = dupCount[bar.Date]
			dupCount[bar.Date]++
		}

		bars = append(bars, bar)
	}

	return bars, nil
}
