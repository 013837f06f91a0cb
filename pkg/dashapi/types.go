package dashapi

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Numeric wire types
// ---------------------------------------------------------------------------

// Float is a float64 that decodes JSON null as NaN and encodes NaN or Inf as
// null. Indicator warm-up windows are sent as null.
type Float float64

func (f *Float) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'f', -1, 64), nil
}

// Valid reports whether f carries a value (is not a gap).
func (f Float) Valid() bool { return !math.IsNaN(float64(f)) }

// Values is one metric sequence of a Series. Gaps are NaN.
type Values []float64

func (v *Values) UnmarshalJSON(b []byte) error {
	var raw []*float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Values, len(raw))
	for i, p := range raw {
		if p == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *p
	}
	*v = out
	return nil
}

func (v Values) MarshalJSON() ([]byte, error) {
	if v == nil {
		return []byte("[]"), nil
	}
	var b bytes.Buffer
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			b.WriteString("null")
			continue
		}
		b.Write(strconv.AppendFloat(nil, x, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.Bytes(), nil
}

// Last returns the most recent non-gap value, or NaN when there is none.
func (v Values) Last() float64 {
	for i := len(v) - 1; i >= 0; i-- {
		if !math.IsNaN(v[i]) {
			return v[i]
		}
	}
	return math.NaN()
}

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// Metric names one sequence of a Series.
type Metric string

const (
	MetricPrice      Metric = "prices"
	MetricVolume     Metric = "volumes"
	MetricSMA20      Metric = "sma_20"
	MetricSMA50      Metric = "sma_50"
	MetricRSI        Metric = "rsi"
	MetricMACD       Metric = "macd"
	MetricMACDSignal Metric = "macd_signal"
	MetricMACDHist   Metric = "macd_hist"
)

// Metrics lists every metric in wire order.
var Metrics = []Metric{
	MetricPrice, MetricVolume, MetricSMA20, MetricSMA50,
	MetricRSI, MetricMACD, MetricMACDSignal, MetricMACDHist,
}

// SeriesMeta describes the request a Series answers plus the latest quote.
type SeriesMeta struct {
	Symbol         string `json:"symbol"`
	Timeframe      string `json:"timeframe"`
	Period         string `json:"period"`
	LastUpdated    string `json:"last_updated"`
	CurrentPrice   Float  `json:"current_price"`
	PriceChange24h Float  `json:"price_change_24h"`
	Volume24h      Float  `json:"volume_24h"`
}

// Series is a time-series bundle for one ticker. Every non-empty metric is
// aligned to Dates, which are ascending YYYY-MM-DD strings.
type Series struct {
	Dates      []string   `json:"dates"`
	Prices     Values     `json:"prices"`
	Volumes    Values     `json:"volumes"`
	SMA20      Values     `json:"sma_20"`
	SMA50      Values     `json:"sma_50"`
	RSI        Values     `json:"rsi"`
	MACD       Values     `json:"macd"`
	MACDSignal Values     `json:"macd_signal"`
	MACDHist   Values     `json:"macd_hist"`
	Metadata   SeriesMeta `json:"metadata"`
}

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.Dates) }

// Values returns the sequence for m, or nil for an unknown metric.
func (s *Series) Values(m Metric) Values {
	switch m {
	case MetricPrice:
		return s.Prices
	case MetricVolume:
		return s.Volumes
	case MetricSMA20:
		return s.SMA20
	case MetricSMA50:
		return s.SMA50
	case MetricRSI:
		return s.RSI
	case MetricMACD:
		return s.MACD
	case MetricMACDSignal:
		return s.MACDSignal
	case MetricMACDHist:
		return s.MACDHist
	}
	return nil
}

// Point is one (date, value) observation.
type Point struct {
	Date  string
	Value float64
}

// Points pairs the metric with Dates. An absent metric yields no points.
func (s *Series) Points(m Metric) []Point {
	vals := s.Values(m)
	if len(vals) == 0 {
		return nil
	}
	pts := make([]Point, len(vals))
	for i, v := range vals {
		pts[i] = Point{Date: s.Dates[i], Value: v}
	}
	return pts
}

// Snapshot is the latest quote and indicator values for one symbol.
type Snapshot struct {
	CurrentPrice   Float `json:"current_price"`
	PriceChange24h Float `json:"price_change_24h"`
	Volume24h      Float `json:"volume_24h"`
	RSI            Float `json:"rsi"`
	MACD           Float `json:"macd"`
	MACDSignal     Float `json:"macd_signal"`
	MACDHist       Float `json:"macd_hist"`
}

// Overview maps symbol to its latest Snapshot.
type Overview struct {
	Timestamp string              `json:"timestamp"`
	Symbols   map[string]Snapshot `json:"symbols"`
}

// SortedSymbols returns the overview's symbols in lexical order.
func (o *Overview) SortedSymbols() []string {
	out := make([]string, 0, len(o.Symbols))
	for s := range o.Symbols {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Lookup finds a symbol case-insensitively.
func (o *Overview) Lookup(symbol string) (Snapshot, bool) {
	if s, ok := o.Symbols[symbol]; ok {
		return s, true
	}
	for k, s := range o.Symbols {
		if strings.EqualFold(k, symbol) {
			return s, true
		}
	}
	return Snapshot{}, false
}

// ---------------------------------------------------------------------------
// Sentiment
// ---------------------------------------------------------------------------

// Label is the closed set of sentiment classes. The wire form is
// case-insensitive; String renders it capitalised.
type Label string

const (
	Positive Label = "positive"
	Negative Label = "negative"
	Neutral  Label = "neutral"
)

// ParseLabel normalises a wire label. ok is false outside the closed set.
func ParseLabel(s string) (Label, bool) {
	switch l := Label(strings.ToLower(strings.TrimSpace(s))); l {
	case Positive, Negative, Neutral:
		return l, true
	}
	return "", false
}

func (l Label) String() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:])
}

func (l Label) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// Polarity selects one side of the sentiment split for article lists.
type Polarity string

const (
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// ParsePolarity accepts "positive" or "negative" in any case.
func ParsePolarity(s string) (Polarity, bool) {
	switch p := Polarity(strings.ToLower(s)); p {
	case PolarityPositive, PolarityNegative:
		return p, true
	}
	return "", false
}

// Sentiment is a classified label with its confidence in [0, 1].
type Sentiment struct {
	Label Label   `json:"label"`
	Score float64 `json:"score"`
}

// SentimentResult answers one analyzed text.
type SentimentResult struct {
	Text      string    `json:"text"`
	Sentiment Sentiment `json:"sentiment"`
	Timestamp string    `json:"timestamp"`
}

// Article is a news item with its classified sentiment.
type Article struct {
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Summary   string    `json:"summary"`
	Link      string    `json:"link"`
	Published string    `json:"published"`
	Sentiment Sentiment `json:"sentiment"`
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

// Report is the daily sentiment digest for one date. TopPositive and
// TopNegative keep the server's ranking.
type Report struct {
	Date                  string                    `json:"date"`
	TotalArticles         int                       `json:"total_articles"`
	Sources               []string                  `json:"sources"`
	SentimentDistribution map[string]int            `json:"sentiment_distribution"`
	SourceStats           map[string]map[string]int `json:"source_stats"`
	TopPositive           []Article                 `json:"top_positive"`
	TopNegative           []Article                 `json:"top_negative"`
}

// Count returns the distribution count for l, matching keys
// case-insensitively.
func (r *Report) Count(l Label) int {
	n := 0
	for k, v := range r.SentimentDistribution {
		if got, ok := ParseLabel(k); ok && got == l {
			n += v
		}
	}
	return n
}
