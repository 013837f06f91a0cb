// Package dashboard renders resolved view models as styled terminal text.
// Renderers are pure: they take data and a width and return a string.
package dashboard

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"marketdash/internal/view"
	"marketdash/pkg/dashapi"
)

// Styles.
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	symbolStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	colHeadStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	priceStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	neutralStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	volumeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	smaFastStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	smaSlowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	chartStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	linkStyle     = lipgloss.NewStyle().Underline(true).Foreground(lipgloss.Color("39"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")).Padding(0, 1)
	warnStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
	cardStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

// LabelStyle colours a sentiment label.
func LabelStyle(l dashapi.Label) lipgloss.Style {
	switch l {
	case dashapi.Positive:
		return gainStyle
	case dashapi.Negative:
		return lossStyle
	default:
		return neutralStyle
	}
}

func changeStyle(pct float64) lipgloss.Style {
	switch {
	case pct > 0:
		return gainStyle
	case pct < 0:
		return lossStyle
	default:
		return neutralStyle
	}
}

// ---------------------------------------------------------------------------
// State
// ---------------------------------------------------------------------------

// State renders exactly one of: the loading indicator, an error or
// missing-parameter banner, or the populated view. Idle renders hint.
func State[T any](st view.State[T], spinner, hint string, ready func(T) string) string {
	switch st.Status {
	case view.Loading:
		return "  " + spinner + " " + dimStyle.Render("Loading...")
	case view.Failed:
		return ErrorBanner(st.Message)
	case view.Missing:
		return warnStyle.Render(st.Message)
	case view.Ready:
		return ready(st.Data)
	default:
		return dimStyle.Render(hint)
	}
}

// ErrorBanner renders msg as an error alert.
func ErrorBanner(msg string) string {
	return errorStyle.Render("Error: " + msg)
}

// ---------------------------------------------------------------------------
// Market
// ---------------------------------------------------------------------------

// Home renders the overview table of every tracked symbol.
func Home(v view.HomeView, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Market Overview"))
	if v.Overview != nil && v.Overview.Timestamp != "" {
		b.WriteString(dimStyle.Render("  as of " + v.Overview.Timestamp))
	}
	b.WriteString("\n\n")

	if v.Overview == nil || len(v.Overview.Symbols) == 0 {
		b.WriteString(dimStyle.Render("  No symbols tracked."))
		return b.String()
	}

	b.WriteString(colHeadStyle.Render(fmt.Sprintf("  %-10s %12s %10s %10s %8s %9s %9s",
		"Symbol", "Price", "Change", "Volume", "RSI", "MACD", "Signal")))
	b.WriteString("\n")
	for _, sym := range v.Overview.SortedSymbols() {
		s := v.Overview.Symbols[sym]
		chg := float64(s.PriceChange24h)
		b.WriteString("  ")
		b.WriteString(symbolStyle.Render(fmt.Sprintf("%-10s", padOrTrunc(sym, 10))))
		b.WriteString(" ")
		b.WriteString(priceStyle.Render(fmt.Sprintf("%12s", FormatPrice(float64(s.CurrentPrice)))))
		b.WriteString(" ")
		b.WriteString(changeStyle(chg).Render(fmt.Sprintf("%10s", FormatChange(chg))))
		b.WriteString(" ")
		b.WriteString(volumeStyle.Render(fmt.Sprintf("%10s", FormatVolume(float64(s.Volume24h)))))
		b.WriteString(fmt.Sprintf(" %8s %9s %9s",
			FormatIndicator(float64(s.RSI)),
			FormatIndicator(float64(s.MACD)),
			FormatIndicator(float64(s.MACDSignal))))
		b.WriteString("\n")
	}
	return b.String()
}

// Market renders a ticker's snapshot card, price chart and volume strip.
func Market(v view.MarketView, width int) string {
	var b strings.Builder
	s := v.Snapshot
	chg := float64(s.PriceChange24h)

	b.WriteString(symbolStyle.Render(v.Ticker))
	b.WriteString("  ")
	b.WriteString(priceStyle.Render(FormatPrice(float64(s.CurrentPrice))))
	b.WriteString("  ")
	b.WriteString(changeStyle(chg).Render(FormatChange(chg)))
	b.WriteString("\n")

	stats := []string{
		kv("Volume 24h", FormatVolume(float64(s.Volume24h))),
		kv("RSI", FormatIndicator(float64(s.RSI))),
		kv("MACD", FormatIndicator(float64(s.MACD))),
		kv("Signal", FormatIndicator(float64(s.MACDSignal))),
		kv("Hist", FormatIndicator(float64(s.MACDHist))),
	}
	b.WriteString(cardStyle.Render(strings.Join(stats, "   ")))
	b.WriteString("\n\n")

	if v.Series == nil || v.Series.Len() == 0 {
		b.WriteString(dimStyle.Render("  No price history."))
		return b.String()
	}
	cw := chartWidth(width)
	meta := v.Series.Metadata
	b.WriteString(titleStyle.Render("Price"))
	if meta.Timeframe != "" || meta.Period != "" {
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %s / %s", meta.Timeframe, meta.Period)))
	}
	b.WriteString("\n")
	b.WriteString(axisChart(Chart{Width: cw, Height: 8}, v.Series.Prices, chartStyle))
	b.WriteString(dateAxis(v.Series.Dates, cw))
	b.WriteString("\n")
	b.WriteString(titleStyle.Render("Volume"))
	b.WriteString("\n")
	b.WriteString("  " + volumeStyle.Render(Sparkline(v.Series.Volumes, cw)))
	b.WriteString("\n")
	return b.String()
}

// MarketControls renders the timeframe strip and the ticker's place in the
// symbol list.
func MarketControls(c view.MarketChoices, p view.MarketParams, width int) string {
	var b strings.Builder
	b.WriteString(colHeadStyle.Render("Timeframe "))
	for _, tf := range c.Timeframes {
		if strings.EqualFold(tf, p.Timeframe) {
			b.WriteString(selectedStyle.Render(" " + tf + " "))
		} else {
			b.WriteString(dimStyle.Render(" " + tf + " "))
		}
	}
	if i := c.SymbolIndex(p.Ticker); i >= 0 {
		b.WriteString(colHeadStyle.Render("    Symbol "))
		b.WriteString(priceStyle.Render(fmt.Sprintf("%d of %d", i+1, len(c.Symbols))))
	}
	b.WriteString(dimStyle.Render("    t timeframe  [ ] symbol"))
	return lipgloss.NewStyle().MaxWidth(width).Render(b.String()) + "\n\n"
}

// Indicator renders one indicator page.
func Indicator(v view.IndicatorView, width int) string {
	var b strings.Builder
	b.WriteString(symbolStyle.Render(v.Ticker))
	b.WriteString("  ")
	b.WriteString(titleStyle.Render(v.Indicator.Title()))
	b.WriteString("\n\n")

	s := v.Series
	if s == nil || s.Len() == 0 {
		b.WriteString(dimStyle.Render("  No indicator data."))
		return b.String()
	}
	cw := chartWidth(width)

	switch v.Indicator {
	case view.IndicatorSMA:
		b.WriteString(legend(
			priceStyle.Render("Price ")+FormatPrice(s.Prices.Last()),
			smaFastStyle.Render("SMA 20 ")+FormatPrice(s.SMA20.Last()),
			smaSlowStyle.Render("SMA 50 ")+FormatPrice(s.SMA50.Last()),
		))
		lo, hi, _ := bounds(concat(s.Prices, s.SMA20, s.SMA50))
		for _, row := range []struct {
			name  string
			vals  dashapi.Values
			style lipgloss.Style
		}{
			{"Price ", s.Prices, chartStyle},
			{"SMA 20", s.SMA20, smaFastStyle},
			{"SMA 50", s.SMA50, smaSlowStyle},
		} {
			if len(row.vals) == 0 {
				continue
			}
			b.WriteString(colHeadStyle.Render(row.name) + " ")
			b.WriteString(row.style.Render(scaledSparkline(row.vals, cw, lo, hi)))
			b.WriteString("\n")
		}
	case view.IndicatorRSI:
		last := s.RSI.Last()
		b.WriteString(legend("RSI " + rsiStyle(last).Render(FormatIndicator(last)) + dimStyle.Render("  (70 overbought / 30 oversold)")))
		b.WriteString(axisChart(Chart{Width: cw, Height: 8, Min: 0, Max: 100, Refs: []float64{70, 30}}, s.RSI, chartStyle))
	case view.IndicatorMACD:
		b.WriteString(legend(
			"MACD "+FormatIndicator(s.MACD.Last()),
			smaSlowStyle.Render("Signal ")+FormatIndicator(s.MACDSignal.Last()),
			"Hist "+FormatIndicator(s.MACDHist.Last()),
		))
		lo, hi, _ := bounds(concat(s.MACD, s.MACDSignal))
		b.WriteString(colHeadStyle.Render("MACD  ") + " " + chartStyle.Render(scaledSparkline(s.MACD, cw, lo, hi)) + "\n")
		b.WriteString(colHeadStyle.Render("Signal") + " " + smaSlowStyle.Render(scaledSparkline(s.MACDSignal, cw, lo, hi)) + "\n\n")
		above, below := Diverging(s.MACDHist, cw, 3)
		for _, r := range above {
			b.WriteString("       " + gainStyle.Render(r) + "\n")
		}
		b.WriteString("     0 " + dimStyle.Render(strings.Repeat("─", cw)) + "\n")
		for _, r := range below {
			b.WriteString("       " + lossStyle.Render(r) + "\n")
		}
	}
	b.WriteString(dateAxis(s.Dates, cw))
	return b.String()
}

func rsiStyle(v float64) lipgloss.Style {
	switch {
	case v >= 70:
		return lossStyle
	case v <= 30:
		return gainStyle
	default:
		return neutralStyle
	}
}

// ---------------------------------------------------------------------------
// Reports and articles
// ---------------------------------------------------------------------------

// Reports renders the report browser: a date strip with the selection
// highlighted, followed by the selected report.
func Reports(v view.ReportsView, width int) string {
	if len(v.Dates) == 0 {
		return dimStyle.Render("  No reports available.")
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Reports"))
	b.WriteString("\n")
	for i, d := range v.Dates {
		if i > 0 {
			b.WriteString(" ")
		}
		if d == v.Selected {
			b.WriteString(selectedStyle.Render(" " + d + " "))
		} else {
			b.WriteString(dimStyle.Render(" " + d + " "))
		}
	}
	b.WriteString("\n\n")
	if v.Report != nil {
		b.WriteString(Report(v.Report, width))
	}
	return b.String()
}

// Report renders a daily sentiment digest.
func Report(r *dashapi.Report, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Sentiment Report for " + FormatDate(r.Date)))
	b.WriteString("\n\n")

	summary := []string{
		kv("Articles", FormatInt(r.TotalArticles)),
		kv("Sources", FormatInt(len(r.Sources))),
	}
	b.WriteString(cardStyle.Render(strings.Join(summary, "   ")))
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Sentiment Distribution"))
	b.WriteString("\n")
	bw := 30
	for _, l := range []dashapi.Label{dashapi.Positive, dashapi.Neutral, dashapi.Negative} {
		n := r.Count(l)
		frac := 0.0
		if r.TotalArticles > 0 {
			frac = float64(n) / float64(r.TotalArticles)
		}
		filled, empty := Bar(frac, bw)
		b.WriteString(fmt.Sprintf("  %-9s ", l.String()))
		b.WriteString(LabelStyle(l).Render(filled))
		b.WriteString(dimStyle.Render(empty))
		b.WriteString(fmt.Sprintf(" %s (%s)\n", FormatInt(n), FormatConfidence(frac)))
	}

	if len(r.SourceStats) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("By Source"))
		b.WriteString("\n")
		b.WriteString(colHeadStyle.Render(fmt.Sprintf("  %-24s %9s %9s %9s", "Source", "Positive", "Neutral", "Negative")))
		b.WriteString("\n")
		for _, src := range sortedKeys(r.SourceStats) {
			st := r.SourceStats[src]
			b.WriteString(fmt.Sprintf("  %-24s %s %s %s\n", padOrTrunc(src, 24),
				gainStyle.Render(fmt.Sprintf("%9d", labelCount(st, dashapi.Positive))),
				neutralStyle.Render(fmt.Sprintf("%9d", labelCount(st, dashapi.Neutral))),
				lossStyle.Render(fmt.Sprintf("%9d", labelCount(st, dashapi.Negative)))))
		}
	}

	b.WriteString("\n")
	b.WriteString(articleSection("Top Positive", r.TopPositive, width))
	b.WriteString(articleSection("Top Negative", r.TopNegative, width))
	return b.String()
}

// Articles renders an article list page.
func Articles(v view.ArticlesView, width int) string {
	title := "Positive Articles"
	if v.Polarity == dashapi.PolarityNegative {
		title = "Negative Articles"
	}
	if v.Date != "" {
		title += " for " + FormatDate(v.Date)
	}
	return articleSection(title, v.Articles, width)
}

func articleSection(title string, arts []dashapi.Article, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	if len(arts) == 0 {
		b.WriteString(dimStyle.Render("  No articles."))
		b.WriteString("\n\n")
		return b.String()
	}
	for _, a := range arts {
		b.WriteString(ArticleCard(a, width))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return b.String()
}

// ArticleCard renders one article with its sentiment badge.
func ArticleCard(a dashapi.Article, width int) string {
	inner := width - 4
	if inner < 20 {
		inner = 20
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(truncate(a.Title, inner)))
	b.WriteString("\n")
	meta := a.Source
	if a.Published != "" {
		if meta != "" {
			meta += " · "
		}
		meta += FormatDate(a.Published)
	}
	b.WriteString(dimStyle.Render(meta))
	b.WriteString("  ")
	b.WriteString(LabelStyle(a.Sentiment.Label).Render(
		fmt.Sprintf("%s %s", a.Sentiment.Label, FormatConfidence(a.Sentiment.Score))))
	if a.Summary != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(inner).Render(a.Summary))
	}
	if a.Link != "" {
		b.WriteString("\n")
		b.WriteString(linkStyle.Render(truncate(a.Link, inner)))
	}
	return cardStyle.Width(inner + 2).Render(b.String())
}

// ---------------------------------------------------------------------------
// Sentiment probe
// ---------------------------------------------------------------------------

// Probe renders sentiment results.
func Probe(v view.ProbeView, width int) string {
	var b strings.Builder
	for i, r := range v.Results {
		if i > 0 {
			b.WriteString("\n")
		}
		if len(v.Results) > 1 {
			b.WriteString(dimStyle.Render(truncate(r.Text, width-4)))
			b.WriteString("\n")
		}
		b.WriteString(SentimentResult(r.Sentiment, 30))
		b.WriteString("\n")
	}
	if len(v.History) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Recent analyses"))
		b.WriteString("\n")
		for _, r := range v.History {
			st := LabelStyle(r.Sentiment.Label)
			b.WriteString(fmt.Sprintf("  %s %s  %s\n",
				st.Render(fmt.Sprintf("%-8s", r.Sentiment.Label.String())),
				dimStyle.Render(fmt.Sprintf("%6s", FormatConfidence(r.Sentiment.Score))),
				truncate(r.Text, width-20)))
		}
	}
	return b.String()
}

// SentimentResult renders a label with its confidence bar.
func SentimentResult(s dashapi.Sentiment, barWidth int) string {
	filled, empty := Bar(s.Score, barWidth)
	st := LabelStyle(s.Label)
	return fmt.Sprintf("%s  %s%s  %s",
		st.Bold(true).Render(fmt.Sprintf("%-8s", s.Label.String())),
		st.Render(filled), dimStyle.Render(empty),
		"Confidence: "+FormatConfidence(s.Score))
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func kv(k, v string) string {
	return colHeadStyle.Render(k+" ") + priceStyle.Render(v)
}

func legend(parts ...string) string {
	return "  " + strings.Join(parts, "    ") + "\n"
}

func chartWidth(width int) int {
	w := width - 10
	if w < 20 {
		w = 20
	}
	return w
}

// axisChart renders c with min/max labels down the left edge.
func axisChart(c Chart, vals []float64, style lipgloss.Style) string {
	rows := c.Render(vals)
	lo, hi := c.Min, c.Max
	if lo == 0 && hi == 0 {
		lo, hi, _ = bounds(Resample(vals, c.Width))
	}
	var b strings.Builder
	for i, r := range rows {
		label := "       "
		switch i {
		case 0:
			label = fmt.Sprintf("%7s", axisLabel(hi))
		case len(rows) - 1:
			label = fmt.Sprintf("%7s", axisLabel(lo))
		}
		b.WriteString(dimStyle.Render(label) + " " + style.Render(r) + "\n")
	}
	return b.String()
}

func axisLabel(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	if math.Abs(v) >= 1000 {
		return FormatVolume(v)
	}
	return fmt.Sprintf("%.2f", v)
}

// dateAxis labels the first and last dates under a chart of width w.
func dateAxis(dates []string, w int) string {
	if len(dates) == 0 {
		return ""
	}
	first, last := dates[0], dates[len(dates)-1]
	gap := w - len(first) - len(last)
	if gap < 1 {
		return "        " + dimStyle.Render(first) + "\n"
	}
	return "        " + dimStyle.Render(first+strings.Repeat(" ", gap)+last) + "\n"
}

// scaledSparkline draws vals against a shared [lo, hi] so overlaid series
// are comparable.
func scaledSparkline(vals []float64, width int, lo, hi float64) string {
	rows := Chart{Width: width, Height: 1, Min: lo, Max: hi}.Render(vals)
	return rows[0]
}

func concat(vs ...dashapi.Values) []float64 {
	var out []float64
	for _, v := range vs {
		out = append(out, v...)
	}
	return out
}

func labelCount(m map[string]int, l dashapi.Label) int {
	n := 0
	for k, v := range m {
		if got, ok := dashapi.ParseLabel(k); ok && got == l {
			n += v
		}
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// padOrTrunc pads s with spaces to width, or truncates if longer.
func padOrTrunc(s string, width int) string {
	n := len(s)
	if n >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-n)
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width < 1 || len(r) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
