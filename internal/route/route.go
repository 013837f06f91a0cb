// Package route parses dashboard route paths such as "/market/NVDA/rsi"
// into a page kind and its parameters.
package route

import (
	"fmt"
	"strings"

	"marketdash/pkg/dashapi"
)

// Kind identifies a dashboard page.
type Kind int

const (
	Home Kind = iota
	Market
	SMA
	RSI
	MACD
	Reports
	Report
	Articles
	Sentiment
)

func (k Kind) String() string {
	switch k {
	case Home:
		return "home"
	case Market:
		return "market"
	case SMA:
		return "sma"
	case RSI:
		return "rsi"
	case MACD:
		return "macd"
	case Reports:
		return "reports"
	case Report:
		return "report"
	case Articles:
		return "articles"
	case Sentiment:
		return "sentiment"
	}
	return "unknown"
}

// Route is a parsed path. Empty Ticker or Date on a page that needs one is
// kept as-is so the page can report the missing parameter.
type Route struct {
	Kind     Kind
	Ticker   string
	Date     string
	Polarity dashapi.Polarity
}

// Parse maps a path to a Route. Paths are case-insensitive except for the
// date segment; tickers are upper-cased.
//
//	/                                  home
//	/market[/{ticker}]                 market overview and series
//	/market/{ticker}/sma|rsi|macd      indicator
//	/reports                           report browser
//	/report[s]/{date}                  single report
//	/report[s]/{date}/positive|negative  report articles
//	/articles/positive|negative        current articles
//	/positive-articles, /negative-articles
//	/sentiment                         sentiment probe
func Parse(path string) (Route, error) {
	p := strings.TrimSpace(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	trailing := len(p) > 1 && strings.HasSuffix(p, "/")
	segs := strings.Split(strings.Trim(p, "/"), "/")
	if len(segs) == 1 && segs[0] == "" {
		return Route{Kind: Home}, nil
	}
	head := strings.ToLower(segs[0])
	rest := segs[1:]

	switch head {
	case "market":
		r := Route{Kind: Market}
		if len(rest) > 0 {
			r.Ticker = strings.ToUpper(rest[0])
		}
		if len(rest) > 1 {
			switch strings.ToLower(rest[1]) {
			case "sma":
				r.Kind = SMA
			case "rsi":
				r.Kind = RSI
			case "macd":
				r.Kind = MACD
			default:
				return Route{}, fmt.Errorf("unknown indicator %q", rest[1])
			}
		}
		if len(rest) > 2 {
			return Route{}, fmt.Errorf("unexpected path segments after %s", strings.Join(segs[:3], "/"))
		}
		return r, nil

	case "reports", "report":
		if len(rest) == 0 {
			if head == "report" || trailing {
				return Route{Kind: Report}, nil
			}
			return Route{Kind: Reports}, nil
		}
		r := Route{Kind: Report, Date: rest[0]}
		if len(rest) > 1 {
			pol, ok := dashapi.ParsePolarity(rest[1])
			if !ok {
				return Route{}, fmt.Errorf("unknown polarity %q", rest[1])
			}
			r.Kind = Articles
			r.Polarity = pol
		}
		if len(rest) > 2 {
			return Route{}, fmt.Errorf("unexpected path segments in %s", path)
		}
		return r, nil

	case "articles":
		if len(rest) != 1 {
			return Route{}, fmt.Errorf("articles route needs a polarity")
		}
		pol, ok := dashapi.ParsePolarity(rest[0])
		if !ok {
			return Route{}, fmt.Errorf("unknown polarity %q", rest[0])
		}
		return Route{Kind: Articles, Polarity: pol}, nil

	case "positive-articles":
		return Route{Kind: Articles, Polarity: dashapi.PolarityPositive}, nil
	case "negative-articles":
		return Route{Kind: Articles, Polarity: dashapi.PolarityNegative}, nil

	case "sentiment":
		return Route{Kind: Sentiment}, nil
	}
	return Route{}, fmt.Errorf("unknown route %q", path)
}

// String renders the canonical path for r.
func (r Route) String() string {
	switch r.Kind {
	case Home:
		return "/"
	case Market:
		if r.Ticker == "" {
			return "/market"
		}
		return "/market/" + r.Ticker
	case SMA, RSI, MACD:
		return "/market/" + r.Ticker + "/" + r.Kind.String()
	case Reports:
		return "/reports"
	case Report:
		return "/report/" + r.Date
	case Articles:
		if r.Date != "" {
			return "/report/" + r.Date + "/" + string(r.Polarity)
		}
		return "/articles/" + string(r.Polarity)
	case Sentiment:
		return "/sentiment"
	}
	return "/"
}
