package mockapi

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"marketdash/internal/store"
	"marketdash/pkg/dashapi"
)

// SeedOptions controls fixture generation.
type SeedOptions struct {
	Symbols []string
	Days    int       // daily rows per symbol
	Reports int       // report dates, counted back from End
	End     time.Time // last fixture date
}

// Seed writes deterministic fixtures: a series per symbol, a report per
// business day, and the canned sentiment samples. Equal options always
// produce equal data.
func Seed(ctx context.Context, series store.SeriesStore, reports store.ReportStore, sentiment store.SentimentStore, opts SeedOptions) error {
	dates := businessDays(opts.End, opts.Days)
	for _, sym := range opts.Symbols {
		if err := series.WriteSeries(ctx, sym, GenerateSeries(sym, dates)); err != nil {
			return err
		}
	}

	reportDates := businessDays(opts.End, opts.Reports)
	for i, d := range reportDates {
		if err := reports.SaveReport(ctx, d, generateArticles(d, i)); err != nil {
			return fmt.Errorf("seeding report %s: %w", d, err)
		}
	}

	for _, s := range samples {
		if err := sentiment.SaveSample(ctx, s.text, s.sentiment); err != nil {
			return fmt.Errorf("seeding sample: %w", err)
		}
	}
	return nil
}

// businessDays returns n weekday dates ending on or before end, ascending.
func businessDays(end time.Time, n int) []string {
	out := make([]string, 0, n)
	d := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	for len(out) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			out = append(out, d.Format("2006-01-02"))
		}
		d = d.AddDate(0, 0, -1)
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

func symbolRand(symbol string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(symbol)))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed>>1|1))
}

// GenerateSeries builds a random-walk price series over dates with the
// indicators the live backend computes: SMA 20/50, 14-period RSI on rolling
// means, and MACD 12/26/9 on exponential means. Values are rounded to cents.
func GenerateSeries(symbol string, dates []string) *dashapi.Series {
	rng := symbolRand(symbol)
	n := len(dates)

	prices := make([]float64, n)
	volumes := make([]float64, n)
	p := 20 + rng.Float64()*480
	for i := range prices {
		p *= 1 + rng.NormFloat64()*0.02
		prices[i] = round2(p)
		volumes[i] = math.Round(1e6 * (0.5 + rng.Float64()))
	}

	macd, signal, hist := macdSeries(prices)
	return &dashapi.Series{
		Dates:      append([]string(nil), dates...),
		Prices:     prices,
		Volumes:    volumes,
		SMA20:      rounded(sma(prices, 20)),
		SMA50:      rounded(sma(prices, 50)),
		RSI:        rounded(rsi(prices, 14)),
		MACD:       rounded(macd),
		MACDSignal: rounded(signal),
		MACDHist:   rounded(hist),
	}
}

func sma(x []float64, window int) []float64 {
	out := make([]float64, len(x))
	sum := 0.0
	for i, v := range x {
		sum += v
		if i >= window {
			sum -= x[i-window]
		}
		if i < window-1 {
			out[i] = math.NaN()
			continue
		}
		out[i] = sum / float64(window)
	}
	return out
}

// rsi uses rolling means of gains and losses. The first change has no
// predecessor, so the first value appears at index window.
func rsi(x []float64, window int) []float64 {
	n := len(x)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := x[i] - x[i-1]
		if d > 0 {
			gains[i] = d
		} else {
			losses[i] = -d
		}
	}
	out := make([]float64, n)
	for i := range out {
		if i < window {
			out[i] = math.NaN()
			continue
		}
		var g, l float64
		for j := i - window + 1; j <= i; j++ {
			g += gains[j]
			l += losses[j]
		}
		if l == 0 {
			out[i] = 100
			continue
		}
		out[i] = 100 - 100/(1+g/l)
	}
	return out
}

func ema(x []float64, span int) []float64 {
	out := make([]float64, len(x))
	alpha := 2 / (float64(span) + 1)
	for i, v := range x {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = alpha*v + (1-alpha)*out[i-1]
	}
	return out
}

func macdSeries(x []float64) (macd, signal, hist []float64) {
	fast, slow := ema(x, 12), ema(x, 26)
	macd = make([]float64, len(x))
	for i := range x {
		macd[i] = fast[i] - slow[i]
	}
	signal = ema(macd, 9)
	hist = make([]float64, len(x))
	for i := range x {
		hist[i] = macd[i] - signal[i]
	}
	return macd, signal, hist
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func rounded(x []float64) dashapi.Values {
	out := make(dashapi.Values, len(x))
	for i, v := range x {
		if math.IsNaN(v) {
			out[i] = v
			continue
		}
		out[i] = round2(v)
	}
	return out
}

// ---------------------------------------------------------------------------
// News fixtures
// ---------------------------------------------------------------------------

var sources = []string{"Reuters", "Bloomberg", "CoinDesk", "MarketWatch"}

var headlines = []struct {
	title string
	label dashapi.Label
}{
	{"Bitcoin rallies as ETF inflows hit record", dashapi.Positive},
	{"Chipmakers extend gains on strong AI demand", dashapi.Positive},
	{"Ethereum upgrade cuts fees, lifts network activity", dashapi.Positive},
	{"Retail sales beat expectations for third month", dashapi.Positive},
	{"Central bank holds rates steady", dashapi.Neutral},
	{"Exchange publishes quarterly reserve audit", dashapi.Neutral},
	{"Treasury yields little changed ahead of data", dashapi.Neutral},
	{"Regulator sues exchange over unregistered securities", dashapi.Negative},
	{"Crypto lender halts withdrawals", dashapi.Negative},
	{"Tech stocks slide after weak guidance", dashapi.Negative},
	{"Mining difficulty jump squeezes margins", dashapi.Negative},
}

// generateArticles derives a stable article set for the report on date.
func generateArticles(date string, offset int) []dashapi.Article {
	rng := symbolRand("report:" + date)
	count := 6 + rng.IntN(5)
	out := make([]dashapi.Article, 0, count)
	for i := 0; i < count; i++ {
		h := headlines[(i+offset)%len(headlines)]
		src := sources[rng.IntN(len(sources))]
		score := 0.5
		if h.label != dashapi.Neutral {
			score = round2(0.55 + rng.Float64()*0.44)
		}
		out = append(out, dashapi.Article{
			Title:     h.title,
			Source:    src,
			Summary:   fmt.Sprintf("%s. Coverage from %s on %s.", h.title, src, date),
			Link:      fmt.Sprintf("https://news.example.com/%s/%d", date, i+1),
			Published: date + "T" + fmt.Sprintf("%02d:%02d:00Z", 8+i, rng.IntN(60)),
			Sentiment: dashapi.Sentiment{Label: h.label, Score: score},
		})
	}
	return out
}

var samples = []struct {
	text      string
	sentiment dashapi.Sentiment
}{
	{"Great earnings beat, stock surges", dashapi.Sentiment{Label: dashapi.Positive, Score: 0.92}},
	{"Company files for bankruptcy", dashapi.Sentiment{Label: dashapi.Negative, Score: 0.88}},
	{"Shares closed unchanged", dashapi.Sentiment{Label: dashapi.Neutral, Score: 0.61}},
}
