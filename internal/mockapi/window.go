package mockapi

import (
	"fmt"
	"math"

	"marketdash/pkg/dashapi"
)

// Defaults applied when a request omits timeframe or period.
const (
	DefaultTimeframe = "1d"
	DefaultPeriod    = "1y"
)

// Timeframes is served by /market/timeframes: alias to interval.
var Timeframes = map[string]string{
	"1d": "1d",
	"1w": "1wk",
	"1m": "1mo",
}

// strides maps an interval, or its alias, to how many daily rows one
// observation spans.
var strides = map[string]int{
	"1d": 1, "1w": 5, "1wk": 5, "1m": 21, "1mo": 21,
}

// periods maps a lookback to its number of daily rows. Zero means all rows.
var periods = map[string]int{
	"5d": 5, "1mo": 21, "1m": 21, "3mo": 63, "3m": 63,
	"6mo": 126, "6m": 126, "1y": 252, "5y": 1260, "max": 0,
}

// Window trims series to the trailing period and samples every stride-th row
// ending on the latest. The stored columns are served as-is.
func Window(s *dashapi.Series, timeframe, period string) (*dashapi.Series, error) {
	stride, ok := strides[timeframe]
	if !ok {
		return nil, fmt.Errorf("unknown timeframe %s", timeframe)
	}
	rows, ok := periods[period]
	if !ok {
		return nil, fmt.Errorf("unknown period %s", period)
	}

	n := s.Len()
	start := 0
	if rows > 0 && rows < n {
		start = n - rows
	}
	var idx []int
	for i := n - 1; i >= start; i -= stride {
		idx = append(idx, i)
	}
	// idx is newest first; reverse into ascending order.
	for l, r := 0, len(idx)-1; l < r; l, r = l+1, r-1 {
		idx[l], idx[r] = idx[r], idx[l]
	}

	out := &dashapi.Series{
		Dates:      make([]string, len(idx)),
		Prices:     pick(s.Prices, idx),
		Volumes:    pick(s.Volumes, idx),
		SMA20:      pick(s.SMA20, idx),
		SMA50:      pick(s.SMA50, idx),
		RSI:        pick(s.RSI, idx),
		MACD:       pick(s.MACD, idx),
		MACDSignal: pick(s.MACDSignal, idx),
		MACDHist:   pick(s.MACDHist, idx),
		Metadata:   s.Metadata,
	}
	for i, j := range idx {
		out.Dates[i] = s.Dates[j]
	}
	out.Metadata.Timeframe = timeframe
	out.Metadata.Period = period
	return out, nil
}

func pick(v dashapi.Values, idx []int) dashapi.Values {
	if len(v) == 0 {
		return nil
	}
	out := make(dashapi.Values, len(idx))
	for i, j := range idx {
		out[i] = v[j]
	}
	return out
}

// project keeps only the named metrics; the rest are omitted as empty.
func project(s *dashapi.Series, keep []dashapi.Metric) *dashapi.Series {
	want := make(map[dashapi.Metric]bool, len(keep))
	for _, m := range keep {
		want[m] = true
	}
	col := func(m dashapi.Metric) dashapi.Values {
		if want[m] {
			return s.Values(m)
		}
		return dashapi.Values{}
	}
	return &dashapi.Series{
		Dates:      s.Dates,
		Prices:     col(dashapi.MetricPrice),
		Volumes:    col(dashapi.MetricVolume),
		SMA20:      col(dashapi.MetricSMA20),
		SMA50:      col(dashapi.MetricSMA50),
		RSI:        col(dashapi.MetricRSI),
		MACD:       col(dashapi.MetricMACD),
		MACDSignal: col(dashapi.MetricMACDSignal),
		MACDHist:   col(dashapi.MetricMACDHist),
		Metadata:   s.Metadata,
	}
}

// snapshot reads the latest quote and the final indicator rows. A trailing
// gap is reported as null, as the live backend does.
func snapshot(s *dashapi.Series) dashapi.Snapshot {
	last := func(v dashapi.Values) dashapi.Float {
		if len(v) == 0 {
			return dashapi.Float(math.NaN())
		}
		return dashapi.Float(v[len(v)-1])
	}
	return dashapi.Snapshot{
		CurrentPrice:   s.Metadata.CurrentPrice,
		PriceChange24h: s.Metadata.PriceChange24h,
		Volume24h:      s.Metadata.Volume24h,
		RSI:            last(s.RSI),
		MACD:           last(s.MACD),
		MACDSignal:     last(s.MACDSignal),
		MACDHist:       last(s.MACDHist),
	}
}
