package view

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// MsgChoicesFailed is logged when the symbol or timeframe lists cannot be
// fetched. The market page itself still loads.
const MsgChoicesFailed = "Failed to fetch market options"

// MarketChoices are the symbols and timeframes the backend offers.
// Timeframes holds the aliases ordered by interval length, shortest first.
type MarketChoices struct {
	Symbols    []string
	Timeframes []string
	Intervals  map[string]string // alias to interval
}

// SymbolIndex returns the position of ticker in Symbols, ignoring case, or -1.
func (c MarketChoices) SymbolIndex(ticker string) int {
	return indexFold(c.Symbols, ticker)
}

// TimeframeIndex returns the position of tf in Timeframes, or -1.
func (c MarketChoices) TimeframeIndex(tf string) int {
	return indexFold(c.Timeframes, tf)
}

// MarketBrowser is the market page plus the symbol and timeframe choices
// that switch it. A switch reloads the page with new MarketParams, so it
// re-enters Loading and supersedes any load in flight.
type MarketBrowser struct {
	*Page[MarketParams, MarketView]

	api     API
	choices *Resolver[MarketChoices]
}

// NewMarketBrowser creates a market browser. Nothing is fetched until Browse.
func NewMarketBrowser(api API, log *slog.Logger) *MarketBrowser {
	return &MarketBrowser{
		Page:    NewMarketPage(api, log),
		api:     api,
		choices: NewResolver[MarketChoices]("market/choices", MsgChoicesFailed, log),
	}
}

// Browse loads the choices and the page for params concurrently.
func (b *MarketBrowser) Browse(ctx context.Context, params MarketParams) *Ticket {
	return All(b.LoadChoices(ctx), b.Load(ctx, params))
}

// LoadChoices fetches the symbol and timeframe lists.
func (b *MarketBrowser) LoadChoices(ctx context.Context) *Ticket {
	return b.choices.Run(ctx, func(ctx context.Context) (MarketChoices, error) {
		syms, tfs, err := Join2[[]string, map[string]string](ctx, b.api.ListSymbols, b.api.ListTimeframes)
		if err != nil {
			return MarketChoices{}, err
		}
		return MarketChoices{Symbols: syms, Timeframes: orderTimeframes(tfs), Intervals: tfs}, nil
	})
}

// Choices returns the state of the symbol and timeframe lists.
func (b *MarketBrowser) Choices() State[MarketChoices] {
	return b.choices.State()
}

// Retry reloads the page and, if they did not load, the choices.
func (b *MarketBrowser) Retry(ctx context.Context) *Ticket {
	var ct *Ticket
	if st := b.choices.State(); st.Status != Ready && st.Status != Loading {
		ct = b.LoadChoices(ctx)
	}
	return All(ct, b.Page.Retry(ctx))
}

// CycleTimeframe moves delta places along the timeframes and reloads. It
// returns nil when the choices are not loaded or the move changes nothing.
func (b *MarketBrowser) CycleTimeframe(ctx context.Context, delta int) *Ticket {
	c := b.choices.State()
	if c.Status != Ready {
		return nil
	}
	p := b.Params()
	next, ok := cycle(c.Data.Timeframes, c.Data.TimeframeIndex(p.Timeframe), delta)
	if !ok {
		return nil
	}
	p.Timeframe = next
	return b.Load(ctx, p)
}

// CycleSymbol moves delta places along the symbols and reloads. A ticker
// the backend does not list starts from either end.
func (b *MarketBrowser) CycleSymbol(ctx context.Context, delta int) *Ticket {
	c := b.choices.State()
	if c.Status != Ready {
		return nil
	}
	p := b.Params()
	next, ok := cycle(c.Data.Symbols, c.Data.SymbolIndex(p.Ticker), delta)
	if !ok {
		return nil
	}
	p.Ticker = next
	return b.Load(ctx, p)
}

// cycle returns the element delta places from idx, wrapping at both ends.
// A negative idx means the current value is not listed.
func cycle(list []string, idx, delta int) (string, bool) {
	n := len(list)
	if n == 0 || delta == 0 {
		return "", false
	}
	var next int
	switch {
	case idx >= 0:
		next = ((idx+delta)%n + n) % n
		if next == idx {
			return "", false
		}
	case delta > 0:
		next = 0
	default:
		next = n - 1
	}
	return list[next], true
}

func indexFold(list []string, s string) int {
	for i, v := range list {
		if strings.EqualFold(v, s) {
			return i
		}
	}
	return -1
}

// orderTimeframes sorts aliases by the span of their interval.
func orderTimeframes(tfs map[string]string) []string {
	out := make([]string, 0, len(tfs))
	for alias := range tfs {
		out = append(out, alias)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := intervalSpan(tfs[out[i]]), intervalSpan(tfs[out[j]])
		if si != sj {
			return si < sj
		}
		return out[i] < out[j]
	})
	return out
}

// intervalSpan approximates an interval such as "15m", "1d", "1wk" or "3mo"
// in minutes. Unrecognised units sort last.
func intervalSpan(interval string) float64 {
	i := 0
	for i < len(interval) && interval[i] >= '0' && interval[i] <= '9' {
		i++
	}
	n := 1.0
	if i > 0 {
		v, err := strconv.Atoi(interval[:i])
		if err == nil {
			n = float64(v)
		}
	}
	const day = 24 * 60
	switch strings.ToLower(interval[i:]) {
	case "m":
		return n
	case "h":
		return n * 60
	case "d":
		return n * day
	case "w", "wk":
		return n * 7 * day
	case "mo":
		return n * 30 * day
	case "y":
		return n * 365 * day
	}
	return 1e12
}
