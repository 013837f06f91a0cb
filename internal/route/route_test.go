package route

import (
	"testing"

	"marketdash/pkg/dashapi"
)

func TestParse(t *testing.T) {
	tests := []struct {
		path string
		want Route
	}{
		{"/", Route{Kind: Home}},
		{"", Route{Kind: Home}},
		{"/market", Route{Kind: Market}},
		{"/market/nvda", Route{Kind: Market, Ticker: "NVDA"}},
		{"market/BTC-USD", Route{Kind: Market, Ticker: "BTC-USD"}},
		{"/market/NVDA/sma", Route{Kind: SMA, Ticker: "NVDA"}},
		{"/market/NVDA/RSI", Route{Kind: RSI, Ticker: "NVDA"}},
		{"/market/NVDA/macd", Route{Kind: MACD, Ticker: "NVDA"}},
		{"/reports", Route{Kind: Reports}},
		{"/reports/", Route{Kind: Report}},
		{"/report", Route{Kind: Report}},
		{"/report/2024-01-04", Route{Kind: Report, Date: "2024-01-04"}},
		{"/reports/2024-01-04", Route{Kind: Report, Date: "2024-01-04"}},
		{"/report/2024-01-04/negative", Route{Kind: Articles, Date: "2024-01-04", Polarity: dashapi.PolarityNegative}},
		{"/articles/positive", Route{Kind: Articles, Polarity: dashapi.PolarityPositive}},
		{"/negative-articles", Route{Kind: Articles, Polarity: dashapi.PolarityNegative}},
		{"/sentiment", Route{Kind: Sentiment}},
	}
	for _, tt := range tests {
		got, err := Parse(tt.path)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.path, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %+v, want %+v", tt.path, got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	for _, path := range []string{
		"/nowhere",
		"/market/NVDA/bollinger",
		"/market/NVDA/rsi/extra",
		"/articles",
		"/articles/mixed",
		"/report/2024-01-04/sideways",
	} {
		if _, err := Parse(path); err == nil {
			t.Errorf("Parse(%q) should fail", path)
		}
	}
}

func TestStringRoundTrip(t *testing.T) {
	for _, path := range []string{
		"/",
		"/market/NVDA",
		"/market/NVDA/rsi",
		"/reports",
		"/report/2024-01-04",
		"/report/2024-01-04/positive",
		"/articles/negative",
		"/sentiment",
	} {
		r, err := Parse(path)
		if err != nil {
			t.Fatalf("Parse(%q): %v", path, err)
		}
		if got := r.String(); got != path {
			t.Errorf("Parse(%q).String() = %q", path, got)
		}
	}
}
