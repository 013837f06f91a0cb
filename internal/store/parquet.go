package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"

	"marketdash/pkg/dashapi"
)

// Compile-time interface check.
var _ SeriesStore = (*ParquetStore)(nil)

// ParquetStore implements SeriesStore using one Parquet file per symbol.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record type (on-disk schema)
// ---------------------------------------------------------------------------

// SeriesRecord is one dated row of a symbol's series. Indicator columns are
// optional because their warm-up windows have no value.
type SeriesRecord struct {
	Date       string   `parquet:"date"`
	Price      float64  `parquet:"price"`
	Volume     float64  `parquet:"volume"`
	SMA20      *float64 `parquet:"sma_20,optional"`
	SMA50      *float64 `parquet:"sma_50,optional"`
	RSI        *float64 `parquet:"rsi,optional"`
	MACD       *float64 `parquet:"macd,optional"`
	MACDSignal *float64 `parquet:"macd_signal,optional"`
	MACDHist   *float64 `parquet:"macd_hist,optional"`
}

// ---------------------------------------------------------------------------
// SeriesStore implementation
// ---------------------------------------------------------------------------

// WriteSeries writes the series for symbol to:
//
//	<DataDir>/series/<SYMBOL>.parquet
func (s *ParquetStore) WriteSeries(_ context.Context, symbol string, series *dashapi.Series) error {
	n := series.Len()
	col := func(m dashapi.Metric) dashapi.Values {
		v := series.Values(m)
		if len(v) != n {
			return nil
		}
		return v
	}
	prices, volumes := col(dashapi.MetricPrice), col(dashapi.MetricVolume)
	sma20, sma50 := col(dashapi.MetricSMA20), col(dashapi.MetricSMA50)
	rsi := col(dashapi.MetricRSI)
	macd, signal, hist := col(dashapi.MetricMACD), col(dashapi.MetricMACDSignal), col(dashapi.MetricMACDHist)

	records := make([]SeriesRecord, n)
	for i, d := range series.Dates {
		records[i] = SeriesRecord{
			Date:       d,
			Price:      at(prices, i),
			Volume:     at(volumes, i),
			SMA20:      optional(sma20, i),
			SMA50:      optional(sma50, i),
			RSI:        optional(rsi, i),
			MACD:       optional(macd, i),
			MACDSignal: optional(signal, i),
			MACDHist:   optional(hist, i),
		}
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].Date < records[j].Date })

	path := s.seriesPath(symbol)
	if err := writeParquetFile(path, records); err != nil {
		return fmt.Errorf("writing series for %s: %w", symbol, err)
	}
	return nil
}

// ReadSeries reads the stored series for symbol.
func (s *ParquetStore) ReadSeries(_ context.Context, symbol string) (*dashapi.Series, error) {
	records, err := readParquetFile[SeriesRecord](s.seriesPath(symbol))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("series %s: %w", symbol, ErrNotFound)
		}
		return nil, fmt.Errorf("reading series for %s: %w", symbol, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("series %s: %w", symbol, ErrNotFound)
	}

	n := len(records)
	out := &dashapi.Series{
		Dates:      make([]string, n),
		Prices:     make(dashapi.Values, n),
		Volumes:    make(dashapi.Values, n),
		SMA20:      make(dashapi.Values, n),
		SMA50:      make(dashapi.Values, n),
		RSI:        make(dashapi.Values, n),
		MACD:       make(dashapi.Values, n),
		MACDSignal: make(dashapi.Values, n),
		MACDHist:   make(dashapi.Values, n),
	}
	for i, r := range records {
		out.Dates[i] = r.Date
		out.Prices[i] = r.Price
		out.Volumes[i] = r.Volume
		out.SMA20[i] = value(r.SMA20)
		out.SMA50[i] = value(r.SMA50)
		out.RSI[i] = value(r.RSI)
		out.MACD[i] = value(r.MACD)
		out.MACDSignal[i] = value(r.MACDSignal)
		out.MACDHist[i] = value(r.MACDHist)
	}
	out.Metadata = Quote(strings.ToUpper(symbol), records)
	return out, nil
}

// ListSymbols lists all symbols that have a series file.
func (s *ParquetStore) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "series"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".parquet") {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(name, ".parquet"))
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (s *ParquetStore) seriesPath(symbol string) string {
	return filepath.Join(s.DataDir, "series", strings.ToUpper(symbol)+".parquet")
}

// Quote derives the latest-quote metadata from the final rows. The 24h change
// is the percentage move between the last two prices, rounded to cents.
func Quote(symbol string, records []SeriesRecord) dashapi.SeriesMeta {
	meta := dashapi.SeriesMeta{
		Symbol:         symbol,
		CurrentPrice:   dashapi.Float(math.NaN()),
		PriceChange24h: dashapi.Float(math.NaN()),
		Volume24h:      dashapi.Float(math.NaN()),
	}
	n := len(records)
	if n == 0 {
		return meta
	}
	last := records[n-1]
	meta.LastUpdated = last.Date
	meta.CurrentPrice = dashapi.Float(last.Price)
	meta.Volume24h = dashapi.Float(last.Volume)
	meta.PriceChange24h = 0
	if n > 1 && records[n-2].Price != 0 {
		prev := records[n-2].Price
		meta.PriceChange24h = dashapi.Float(math.Round((last.Price-prev)/prev*100*100) / 100)
	}
	return meta
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func at(v dashapi.Values, i int) float64 {
	if v == nil {
		return math.NaN()
	}
	return v[i]
}

func optional(v dashapi.Values, i int) *float64 {
	if v == nil || math.IsNaN(v[i]) {
		return nil
	}
	x := v[i]
	return &x
}

func value(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
