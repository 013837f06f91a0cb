package tui

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"marketdash/internal/config"
	"marketdash/internal/mockapi"
	"marketdash/internal/route"
	"marketdash/internal/store"
	"marketdash/internal/util"
	"marketdash/internal/view"
	"marketdash/pkg/dashapi"
)

var fixtureEnd = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)

// newSession serves seeded fixtures over httptest and returns a session
// whose API is a real client pointed at them.
func newSession(t *testing.T) *Session {
	t.Helper()
	dir := t.TempDir()
	db, err := store.NewSQLiteStore(filepath.Join(dir, "fixtures.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ps := store.NewParquetStore(dir)

	err = mockapi.Seed(context.Background(), ps, db, db, mockapi.SeedOptions{
		Symbols: []string{"BTC-USD", "ETH-USD"},
		Days:    120,
		Reports: 3,
		End:     fixtureEnd,
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}

	ts := httptest.NewServer(mockapi.NewServer(ps, db, db, nil, util.Discard()).Handler())
	t.Cleanup(ts.Close)

	cfg := config.Default()
	cfg.API.BaseURL = ts.URL + "/api"
	return &Session{
		API:    dashapi.NewClient(cfg.API.BaseURL),
		Log:    util.Discard(),
		Config: cfg,
	}
}

func mustParse(t *testing.T, path string) route.Route {
	t.Helper()
	r, err := route.Parse(path)
	if err != nil {
		t.Fatalf("Parse(%q): %v", path, err)
	}
	return r
}

func resolve(t *testing.T, s *Session, path, text string) (string, view.Status, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return Resolve(ctx, s, mustParse(t, path), text, 100)
}

func TestResolveReadyPages(t *testing.T) {
	s := newSession(t)
	tests := []struct {
		path string
		want string
	}{
		{"/", "BTC-USD"},
		{"/market/eth-usd", "ETH-USD"},
		{"/market/BTC-USD/rsi", "Relative Strength Index"},
		{"/reports", "2024-01-05"},
		{"/report/2024-01-04", "Sentiment Report for"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			out, st, err := resolve(t, s, tt.path, "")
			if st != view.Ready || err != nil {
				t.Fatalf("status = %v, err = %v\n%s", st, err, out)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("output missing %q:\n%s", tt.want, out)
			}
		})
	}
}

func TestResolveNotFound(t *testing.T) {
	s := newSession(t)

	out, st, err := resolve(t, s, "/market/ZZZZ", "")
	if st != view.Failed {
		t.Fatalf("status = %v, want Failed", st)
	}
	if !dashapi.IsNotFound(err) {
		t.Errorf("err = %v, want not found", err)
	}
	if !strings.Contains(out, view.MsgMarketFailed) {
		t.Errorf("output missing banner:\n%s", out)
	}
	if dashapi.IsTemporary(err) {
		t.Error("a 404 should not be retried")
	}
}

func TestResolveMissingTicker(t *testing.T) {
	s := newSession(t)
	out, st, err := resolve(t, s, "/market", "")
	if st != view.Missing || err != nil {
		t.Fatalf("status = %v, err = %v", st, err)
	}
	if !strings.Contains(out, view.MsgNoTicker) {
		t.Errorf("output = %q", out)
	}
}

func TestResolveSentiment(t *testing.T) {
	s := newSession(t)

	out, st, _ := resolve(t, s, "/sentiment", "")
	if st != view.Idle || !strings.Contains(out, ProbeHint) {
		t.Errorf("idle probe: status %v, output %q", st, out)
	}

	out, st, err := resolve(t, s, "/sentiment", "Company files for bankruptcy")
	if st != view.Ready || err != nil {
		t.Fatalf("status = %v, err = %v", st, err)
	}
	if !strings.Contains(out, "Negative") || !strings.Contains(out, "88") {
		t.Errorf("output = %q", out)
	}

	out, st, _ = resolve(t, s, "/sentiment", "Great earnings beat, stock surges\nhello")
	if st != view.Ready || !strings.Contains(out, "Positive") || !strings.Contains(out, "hello") {
		t.Errorf("batch: status %v, output %q", st, out)
	}
}

func TestScreenBlankSubmit(t *testing.T) {
	s := newSession(t)
	sc := Open(context.Background(), s, route.Route{Kind: route.Sentiment})
	defer sc.Close()

	tk, err := sc.Submit("  \n ")
	var ve *dashapi.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	select {
	case <-tk.Done():
	default:
		t.Fatal("validation failure should settle immediately")
	}
	if st, msg := sc.Status(); st != view.Failed || msg != dashapi.MsgEmptyText {
		t.Errorf("status = %v %q", st, msg)
	}
}

func TestScreenStepReports(t *testing.T) {
	s := newSession(t)
	sc := Open(context.Background(), s, route.Route{Kind: route.Reports})
	defer sc.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sc.Start().Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if got := sc.SelectedDate(); got != "2024-01-05" {
		t.Fatalf("SelectedDate = %s, want most recent", got)
	}
	if sc.Step(-1) != nil {
		t.Error("stepping past the newest report should be a no-op")
	}
	tk := sc.Step(1)
	if tk == nil {
		t.Fatal("Step(1) returned nil")
	}
	if err := tk.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if got := sc.SelectedDate(); got != "2024-01-04" {
		t.Errorf("SelectedDate = %s after stepping older", got)
	}
	if st, _ := sc.Status(); st != view.Ready {
		t.Errorf("status = %v", st)
	}
}

func TestScreenCloseCancelsLoad(t *testing.T) {
	s := newSession(t)
	sc := Open(context.Background(), s, route.Route{Kind: route.Home})
	tk := sc.Start()
	sc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := tk.Wait(ctx); err != nil {
		t.Fatalf("ticket did not close after Close: %v", err)
	}
}

func TestNextTab(t *testing.T) {
	tests := []struct {
		from route.Route
		want route.Route
	}{
		{route.Route{Kind: route.Home}, route.Route{Kind: route.Market, Ticker: "BTC-USD"}},
		{route.Route{Kind: route.Market, Ticker: "NVDA"}, route.Route{Kind: route.SMA, Ticker: "NVDA"}},
		{route.Route{Kind: route.SMA, Ticker: "NVDA"}, route.Route{Kind: route.RSI, Ticker: "NVDA"}},
		{route.Route{Kind: route.RSI, Ticker: "NVDA"}, route.Route{Kind: route.MACD, Ticker: "NVDA"}},
		{route.Route{Kind: route.MACD, Ticker: "NVDA"}, route.Route{Kind: route.Reports}},
		{route.Route{Kind: route.Reports}, route.Route{Kind: route.Sentiment}},
		{route.Route{Kind: route.Sentiment}, route.Route{Kind: route.Home}},
	}
	for _, tt := range tests {
		if got := nextTab(tt.from, "btc-usd"); got != tt.want {
			t.Errorf("nextTab(%v) = %v, want %v", tt.from, got, tt.want)
		}
	}
}

func TestModelNavigation(t *testing.T) {
	s := newSession(t)
	m := newModel(context.Background(), s, route.Route{Kind: route.Home})
	mm, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = mm.(model)

	// Route prompt.
	mm, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(":")})
	m = mm.(model)
	if m.mode != modePrompt {
		t.Fatalf("mode = %v, want prompt", m.mode)
	}
	m.prompt.SetValue("/sentiment")
	mm, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = mm.(model)
	if m.screen.Route.Kind != route.Sentiment || m.mode != modeInput {
		t.Fatalf("after prompt: route %v, mode %v", m.screen.Route, m.mode)
	}
	if len(m.back) != 1 || m.back[0].Kind != route.Home {
		t.Errorf("back = %v", m.back)
	}

	// Blank submit fails without leaving input mode.
	mm, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = mm.(model)
	if st, _ := m.screen.Status(); st != view.Failed {
		t.Errorf("blank submit status = %v", st)
	}

	// esc, then back.
	mm, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = mm.(model)
	mm, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b")})
	m = mm.(model)
	if m.screen.Route.Kind != route.Home || len(m.back) != 0 {
		t.Errorf("after back: route %v, history %v", m.screen.Route, m.back)
	}
}

func TestModelBadRouteFlashes(t *testing.T) {
	s := newSession(t)
	m := newModel(context.Background(), s, route.Route{Kind: route.Home})

	mm, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("g")})
	m = mm.(model)
	m.prompt.SetValue("/nowhere")
	mm, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = mm.(model)
	if m.flash == "" {
		t.Error("unknown route should set a flash message")
	}
	if m.screen.Route.Kind != route.Home {
		t.Errorf("route changed to %v", m.screen.Route)
	}
}

func TestModelIgnoresStaleSettle(t *testing.T) {
	s := newSession(t)
	m := newModel(context.Background(), s, route.Route{Kind: route.Home})
	old := m.screen
	m.navigate(route.Route{Kind: route.Reports}, true)

	mm, cmd := m.Update(settledMsg{screen: old, gen: 1})
	if cmd != nil {
		t.Error("stale settle should produce no command")
	}
	if mm.(model).screen.Route.Kind != route.Reports {
		t.Error("stale settle changed the screen")
	}
}

func TestScreenMarketSwitches(t *testing.T) {
	s := newSession(t)
	sc := Open(context.Background(), s, route.Route{Kind: route.Market, Ticker: "BTC-USD"})
	defer sc.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sc.Start().Wait(ctx); err != nil {
		t.Fatal(err)
	}
	out := sc.Render(120, "")
	if !strings.Contains(out, "Timeframe") || !strings.Contains(out, "1 of 2") {
		t.Fatalf("controls missing:\n%s", out)
	}

	tk := sc.CycleTimeframe(1)
	if tk == nil {
		t.Fatal("CycleTimeframe returned nil")
	}
	if st, _ := sc.Status(); st != view.Loading {
		t.Errorf("status after switch = %v, want loading", st)
	}
	if err := tk.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if st, _ := sc.Status(); st != view.Ready {
		t.Fatalf("status = %v", st)
	}
	if out := sc.Render(120, ""); !strings.Contains(out, "1w / ") {
		t.Errorf("weekly series not shown:\n%s", out)
	}

	tk = sc.CycleSymbol(1)
	if tk == nil {
		t.Fatal("CycleSymbol returned nil")
	}
	if err := tk.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if sc.Route.Ticker != "ETH-USD" {
		t.Errorf("route ticker = %s, want ETH-USD", sc.Route.Ticker)
	}
	if out := sc.Render(120, ""); !strings.Contains(out, "ETH-USD") || !strings.Contains(out, "1w / ") {
		t.Errorf("symbol switch lost the timeframe or ticker:\n%s", out)
	}
}

func TestModelTimeframeKey(t *testing.T) {
	s := newSession(t)
	m := newModel(context.Background(), s, route.Route{Kind: route.Market, Ticker: "BTC-USD"})
	mm, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = mm.(model)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.screen.Start().Wait(ctx); err != nil {
		t.Fatal(err)
	}

	mm, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")})
	m = mm.(model)
	if cmd == nil {
		t.Fatal("timeframe key should wait for the reload")
	}
	if st, _ := m.screen.Status(); st != view.Loading {
		t.Errorf("status = %v, want loading", st)
	}
	mm, _ = m.Update(cmd())
	m = mm.(model)
	if st, _ := m.screen.Status(); st != view.Ready {
		t.Errorf("status after settle = %v", st)
	}

	m.navigate(route.Route{Kind: route.Home}, true)
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("t")}); cmd != nil {
		t.Error("timeframe key off the market screen should do nothing")
	}
}

func TestResolveSentimentHistory(t *testing.T) {
	s := newSession(t)
	resolve(t, s, "/sentiment", "first analysis")
	out, st, err := resolve(t, s, "/sentiment", "second analysis")
	if st != view.Ready || err != nil {
		t.Fatalf("status = %v, err = %v", st, err)
	}
	if !strings.Contains(out, "Recent analyses") || !strings.Contains(out, "first analysis") {
		t.Errorf("history missing:\n%s", out)
	}
}
