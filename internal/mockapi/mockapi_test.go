package mockapi

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"marketdash/internal/config"
	"marketdash/internal/util"
	"marketdash/pkg/dashapi"
)

var seedEnd = time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC) // a Friday

// newTestBackend seeds fixtures into temp stores and serves them through
// httptest, returning a real client pointed at it.
func newTestBackend(t *testing.T) (*Backend, *dashapi.Client) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Mock{DataDir: dir, SQLitePath: filepath.Join(dir, "fixtures.db")}

	b, err := Open(cfg, []string{"BTC-USD", "ETH-USD"}, util.Discard())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	err = Seed(context.Background(), b.Series, b.DB, b.DB, SeedOptions{
		Symbols: []string{"BTC-USD", "ETH-USD", "NVDA"},
		Days:    300,
		Reports: 3,
		End:     seedEnd,
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	b.API.now = func() time.Time { return seedEnd.Add(15 * time.Hour) }

	ts := httptest.NewServer(b.API.Handler())
	t.Cleanup(ts.Close)
	return b, dashapi.NewClient(ts.URL + "/api")
}

func TestBusinessDays(t *testing.T) {
	got := businessDays(seedEnd, 6)
	want := []string{"2023-12-29", "2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"}
	if len(got) != len(want) {
		t.Fatalf("businessDays = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("businessDays[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestGenerateSeriesDeterministic(t *testing.T) {
	dates := businessDays(seedEnd, 60)
	a := GenerateSeries("NVDA", dates)
	b := GenerateSeries("nvda", dates)
	for i := range a.Prices {
		if a.Prices[i] != b.Prices[i] {
			t.Fatalf("price %d differs: %v vs %v", i, a.Prices[i], b.Prices[i])
		}
	}
	// Warm-up windows are gaps.
	if !math.IsNaN(a.SMA20[18]) || math.IsNaN(a.SMA20[19]) {
		t.Errorf("SMA20 warm-up wrong around index 19: %v %v", a.SMA20[18], a.SMA20[19])
	}
	if !math.IsNaN(a.RSI[13]) || math.IsNaN(a.RSI[14]) {
		t.Errorf("RSI warm-up wrong around index 14: %v %v", a.RSI[13], a.RSI[14])
	}
	for i, v := range a.RSI {
		if !math.IsNaN(v) && (v < 0 || v > 100) {
			t.Errorf("RSI[%d] = %v out of range", i, v)
		}
	}
	if math.IsNaN(a.MACD[0]) {
		t.Error("MACD should have a value from the first row")
	}
}

func TestWindow(t *testing.T) {
	s := GenerateSeries("BTC-USD", businessDays(seedEnd, 300))

	out, err := Window(s, "1d", "1mo")
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 21 || out.Dates[20] != "2024-01-05" {
		t.Errorf("1d/1mo: len %d, last %s", out.Len(), out.Dates[out.Len()-1])
	}
	if out.Metadata.Timeframe != "1d" || out.Metadata.Period != "1mo" {
		t.Errorf("metadata = %+v", out.Metadata)
	}

	out, err = Window(s, "1wk", "3mo")
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 13 || out.Dates[out.Len()-1] != "2024-01-05" {
		t.Errorf("1wk/3mo: len %d", out.Len())
	}
	for i := 1; i < out.Len(); i++ {
		if out.Dates[i] <= out.Dates[i-1] {
			t.Fatalf("dates not ascending at %d", i)
		}
	}

	if _, err := Window(s, "2h", "1y"); err == nil {
		t.Error("unknown timeframe should fail")
	}
	if _, err := Window(s, "1d", "forever"); err == nil {
		t.Error("unknown period should fail")
	}
}

func TestMarketRoundTrip(t *testing.T) {
	_, c := newTestBackend(t)
	ctx := context.Background()

	ov, err := c.GetOverview(ctx, "")
	if err != nil {
		t.Fatalf("GetOverview: %v", err)
	}
	syms := ov.SortedSymbols()
	if len(syms) != 2 || syms[0] != "BTC-USD" {
		t.Errorf("overview symbols = %v, want the tracked pair", syms)
	}
	if ov.Timestamp != "2024-01-05 15:00:00" {
		t.Errorf("Timestamp = %q", ov.Timestamp)
	}

	one, err := c.GetOverview(ctx, "nvda")
	if err != nil {
		t.Fatalf("GetOverview(nvda): %v", err)
	}
	if _, ok := one.Lookup("NVDA"); !ok {
		t.Errorf("single overview = %v", one.Symbols)
	}

	s, err := c.GetSeries(ctx, "NVDA", "1d", "1mo")
	if err != nil {
		t.Fatalf("GetSeries: %v", err)
	}
	if s.Len() != 21 || len(s.RSI) != 21 {
		t.Errorf("series len = %d, rsi %d", s.Len(), len(s.RSI))
	}
	if s.Metadata.Symbol != "NVDA" || !s.Metadata.CurrentPrice.Valid() {
		t.Errorf("metadata = %+v", s.Metadata)
	}

	rsi, err := c.GetRSI(ctx, "NVDA")
	if err != nil {
		t.Fatalf("GetRSI: %v", err)
	}
	if len(rsi.RSI) != rsi.Len() || len(rsi.Prices) != 0 {
		t.Errorf("RSI projection: rsi %d prices %d dates %d", len(rsi.RSI), len(rsi.Prices), rsi.Len())
	}

	syms, err = c.ListSymbols(ctx)
	if err != nil || len(syms) != 2 {
		t.Errorf("ListSymbols = %v, %v", syms, err)
	}
	tf, err := c.ListTimeframes(ctx)
	if err != nil || tf["1w"] != "1wk" {
		t.Errorf("ListTimeframes = %v, %v", tf, err)
	}
}

func TestMarketNotFound(t *testing.T) {
	_, c := newTestBackend(t)

	_, err := c.GetSeries(context.Background(), "ZZZZ", "", "")
	var he *dashapi.HTTPError
	if !errors.As(err, &he) || he.Status != 404 {
		t.Fatalf("error = %v, want 404", err)
	}
	if he.Message != "No data found for ZZZZ" {
		t.Errorf("Message = %q", he.Message)
	}

	_, err = c.GetSeries(context.Background(), "NVDA", "2h", "")
	if !errors.As(err, &he) || he.Status != 400 {
		t.Errorf("bad timeframe error = %v, want 400", err)
	}
}

func TestReportRoundTrip(t *testing.T) {
	_, c := newTestBackend(t)
	ctx := context.Background()

	dates, err := c.ListReports(ctx)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(dates) != 3 || dates[0] != "2024-01-05" {
		t.Fatalf("dates = %v, want most recent first", dates)
	}

	r, err := c.GetReport(ctx, dates[0])
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	total := r.Count(dashapi.Positive) + r.Count(dashapi.Neutral) + r.Count(dashapi.Negative)
	if total != r.TotalArticles {
		t.Errorf("distribution sums to %d, total %d", total, r.TotalArticles)
	}
	for i := 1; i < len(r.TopPositive); i++ {
		if r.TopPositive[i].Sentiment.Score > r.TopPositive[i-1].Sentiment.Score {
			t.Errorf("TopPositive not ranked by score: %+v", r.TopPositive)
		}
	}

	neg, err := c.GetReportArticles(ctx, dates[0], dashapi.PolarityNegative)
	if err != nil {
		t.Fatalf("GetReportArticles: %v", err)
	}
	for _, a := range neg {
		if a.Sentiment.Label != dashapi.Negative {
			t.Errorf("negative list has %s article", a.Sentiment.Label)
		}
	}

	cur, err := c.GetSentimentArticles(ctx, dashapi.PolarityPositive)
	if err != nil {
		t.Fatalf("GetSentimentArticles: %v", err)
	}
	if len(cur) != r.Count(dashapi.Positive) {
		t.Errorf("current positive = %d, latest report has %d", len(cur), r.Count(dashapi.Positive))
	}

	_, err = c.GetReport(ctx, "1999-01-01")
	var he *dashapi.HTTPError
	if !errors.As(err, &he) || he.Status != 404 || he.Message != "No report found for 1999-01-01" {
		t.Errorf("missing report error = %v", err)
	}
}

func TestSentimentRoundTrip(t *testing.T) {
	_, c := newTestBackend(t)
	ctx := context.Background()

	res, err := c.AnalyzeSentiment(ctx, "great earnings beat, stock surges")
	if err != nil {
		t.Fatalf("AnalyzeSentiment: %v", err)
	}
	if res.Sentiment.Label != dashapi.Positive || res.Sentiment.Score != 0.92 {
		t.Errorf("sample result = %+v", res.Sentiment)
	}

	res, err = c.AnalyzeSentiment(ctx, "something nobody registered")
	if err != nil {
		t.Fatal(err)
	}
	if res.Sentiment.Label != dashapi.Neutral || res.Sentiment.Score != 0.5 {
		t.Errorf("default result = %+v, want Neutral 0.5", res.Sentiment)
	}

	batch, err := c.AnalyzeBatch(ctx, []string{"Company files for bankruptcy", "hello"})
	if err != nil {
		t.Fatalf("AnalyzeBatch: %v", err)
	}
	if batch[0].Sentiment.Label != dashapi.Negative || batch[1].Text != "hello" {
		t.Errorf("batch = %+v", batch)
	}

	hist, err := c.SentimentHistory(ctx)
	if err != nil {
		t.Fatalf("SentimentHistory: %v", err)
	}
	if len(hist) != 4 {
		t.Errorf("history has %d entries, want 4", len(hist))
	}
}

func TestHealth(t *testing.T) {
	gs, hs := NewGRPCServer()
	lis := bufconn.Listen(1 << 20)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)
	ctx := context.Background()

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		t.Helper()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		return resp.GetStatus()
	}

	if st := check(); st != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("initial status = %v, want NOT_SERVING", st)
	}
	SetServing(hs, true)
	if st := check(); st != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", st)
	}
}
