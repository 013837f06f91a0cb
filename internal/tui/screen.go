// Package tui is the terminal shell of the dashboard: it opens routes as
// screens backed by view resolvers and draws them with bubbletea.
package tui

import (
	"context"
	"log/slog"

	"marketdash/internal/config"
	"marketdash/internal/dashboard"
	"marketdash/internal/route"
	"marketdash/internal/view"
)

// Session carries the dependencies of one program run. Screens receive it
// instead of reaching for globals.
type Session struct {
	API    view.API
	Log    *slog.Logger
	Config *config.Config
}

// ProbeHint is shown by the sentiment screen before the first submission.
const ProbeHint = "Type some text and press enter to analyze its sentiment."

// Screen is one opened route. Its resolvers run under a context that Close
// cancels, so leaving a screen abandons its fetches.
type Screen struct {
	Route route.Route

	ctx    context.Context
	cancel context.CancelFunc

	start  func(ctx context.Context) *view.Ticket
	retry  func(ctx context.Context) *view.Ticket
	status func() outcome
	render func(width int, spin string) string

	selector *view.Selector
	probe    *view.Probe
	market   *view.MarketBrowser
}

// Open builds the screen for r. Nothing is fetched until Start.
func Open(parent context.Context, s *Session, r route.Route) *Screen {
	var sc *Screen
	switch r.Kind {
	case route.Home:
		sc = pageScreen(view.NewHomePage(s.API, s.Log), struct{}{}, dashboard.Home)

	case route.Market:
		params := view.MarketParams{
			Ticker:    r.Ticker,
			Timeframe: s.Config.Dashboard.Timeframe,
			Period:    s.Config.Dashboard.Period,
		}
		b := view.NewMarketBrowser(s.API, s.Log)
		sc = &Screen{
			start:  func(ctx context.Context) *view.Ticket { return b.Browse(ctx, params) },
			retry:  b.Retry,
			status: statusOf(b.State),
			render: func(w int, spin string) string {
				return renderMarket(b, w, spin)
			},
			market: b,
		}

	case route.SMA, route.RSI, route.MACD:
		ind := view.Indicator(r.Kind.String())
		sc = pageScreen(view.NewIndicatorPage(s.API, ind, s.Log), r.Ticker, dashboard.Indicator)

	case route.Reports:
		sel := view.NewSelector(s.API, s.Log)
		sc = &Screen{
			start:  sel.Load,
			retry:  sel.Retry,
			status: statusOf(sel.State),
			render: func(w int, spin string) string {
				return renderReports(sel, w, spin)
			},
			selector: sel,
		}

	case route.Report:
		sc = pageScreen(view.NewReportPage(s.API, s.Log), r.Date, dashboard.Report)

	case route.Articles:
		params := view.ArticlesParams{Date: r.Date, Polarity: r.Polarity}
		sc = pageScreen(view.NewArticlesPage(s.API, s.Log), params, dashboard.Articles)

	default:
		p := view.NewProbe(s.API, s.Log)
		sc = &Screen{
			start:  func(context.Context) *view.Ticket { return nil },
			retry:  func(context.Context) *view.Ticket { return nil },
			status: statusOf(p.State),
			render: func(w int, spin string) string {
				return dashboard.State(p.State(), spin, ProbeHint, func(v view.ProbeView) string {
					return dashboard.Probe(v, w)
				})
			},
			probe: p,
		}
	}
	sc.Route = r
	sc.ctx, sc.cancel = context.WithCancel(parent)
	return sc
}

// pageScreen adapts a Page with fixed params to a Screen.
func pageScreen[P comparable, T any](p *view.Page[P, T], params P, draw func(T, int) string) *Screen {
	return &Screen{
		start:  func(ctx context.Context) *view.Ticket { return p.Load(ctx, params) },
		retry:  p.Retry,
		status: statusOf(p.State),
		render: func(w int, spin string) string {
			return dashboard.State(p.State(), spin, "", func(v T) string { return draw(v, w) })
		},
	}
}

type outcome struct {
	status  view.Status
	message string
	err     error
}

func statusOf[T any](state func() view.State[T]) func() outcome {
	return func() outcome {
		st := state()
		return outcome{status: st.Status, message: st.Message, err: st.Err}
	}
}

// renderReports keeps the date strip visible while a selected report loads
// or fails; only the first load replaces the whole page.
func renderReports(sel *view.Selector, w int, spin string) string {
	st := sel.State()
	dates := sel.Dates()
	if len(dates) == 0 || st.Status == view.Ready {
		return dashboard.State(st, spin, "", func(v view.ReportsView) string {
			return dashboard.Reports(v, w)
		})
	}
	strip := dashboard.Reports(view.ReportsView{Dates: dates, Selected: sel.Selected()}, w)
	return strip + dashboard.State(st, spin, "", func(view.ReportsView) string { return "" })
}

// renderMarket puts the timeframe and symbol controls above the page once
// the choices are loaded.
func renderMarket(b *view.MarketBrowser, w int, spin string) string {
	page := dashboard.State(b.State(), spin, "", func(v view.MarketView) string {
		return dashboard.Market(v, w)
	})
	c := b.Choices()
	if c.Status != view.Ready {
		return page
	}
	return dashboard.MarketControls(c.Data, b.Params(), w) + page
}

// Start begins the screen's initial load. It returns nil when there is
// nothing to fetch.
func (sc *Screen) Start() *view.Ticket { return sc.start(sc.ctx) }

// Retry repeats the last load.
func (sc *Screen) Retry() *view.Ticket { return sc.retry(sc.ctx) }

// Status reports the screen's state and its banner message, if any.
func (sc *Screen) Status() (view.Status, string) {
	o := sc.status()
	return o.status, o.message
}

// Err returns the error behind a Failed screen.
func (sc *Screen) Err() error { return sc.status().err }

// Render draws the screen at width. spin is the current spinner frame.
func (sc *Screen) Render(width int, spin string) string { return sc.render(width, spin) }

// Close cancels every fetch the screen started.
func (sc *Screen) Close() { sc.cancel() }

// AcceptsText reports whether the screen takes free-text input.
func (sc *Screen) AcceptsText() bool { return sc.probe != nil }

// Submit sends text to the sentiment probe. Multi-line text is analyzed one
// line at a time.
func (sc *Screen) Submit(text string) (*view.Ticket, error) {
	if sc.probe == nil {
		return nil, nil
	}
	return sc.probe.SubmitBatch(sc.ctx, text)
}

// Step moves the report selection; positive is older. It returns nil when
// the screen has no selection or the move leaves the list.
func (sc *Screen) Step(delta int) *view.Ticket {
	if sc.selector == nil {
		return nil
	}
	return sc.selector.Step(sc.ctx, delta)
}

// CycleTimeframe switches the market screen to another timeframe. It returns
// nil on other screens or when there is nothing to switch to.
func (sc *Screen) CycleTimeframe(delta int) *view.Ticket {
	if sc.market == nil {
		return nil
	}
	return sc.market.CycleTimeframe(sc.ctx, delta)
}

// CycleSymbol switches the market screen to another tracked symbol and
// updates the route to match.
func (sc *Screen) CycleSymbol(delta int) *view.Ticket {
	if sc.market == nil {
		return nil
	}
	t := sc.market.CycleSymbol(sc.ctx, delta)
	if t != nil {
		sc.Route.Ticker = sc.market.Params().Ticker
	}
	return t
}

// SelectedDate is the report date the screen is showing, if any.
func (sc *Screen) SelectedDate() string {
	switch {
	case sc.selector != nil:
		return sc.selector.Selected()
	case sc.Route.Kind == route.Report || sc.Route.Kind == route.Articles:
		return sc.Route.Date
	}
	return ""
}

// Resolve opens r, runs its initial load to completion and returns the
// rendered page, its final status and, when Failed, the underlying error.
// A non-empty text is submitted instead on screens that take input.
func Resolve(ctx context.Context, s *Session, r route.Route, text string, width int) (string, view.Status, error) {
	sc := Open(ctx, s, r)
	defer sc.Close()

	var t *view.Ticket
	if sc.AcceptsText() && text != "" {
		// A validation failure settles the probe; the error is in Err.
		t, _ = sc.Submit(text)
	} else {
		t = sc.Start()
	}
	if t != nil {
		if err := t.Wait(ctx); err != nil {
			return "", view.Loading, err
		}
	}
	st, _ := sc.Status()
	return sc.Render(width, ""), st, sc.Err()
}
