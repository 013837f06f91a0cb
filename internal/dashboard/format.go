package dashboard

import (
	"fmt"
	"math"
	"strings"
)

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	if n < 0 {
		return "-" + FormatInt(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// FormatVolume formats a share volume with B/M/K suffixes, or "-" for a gap.
func FormatVolume(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.0f", v)
	}
}

// FormatPrice formats a price with two decimals, or "-" for a gap.
func FormatPrice(p float64) string {
	if math.IsNaN(p) || math.IsInf(p, 0) {
		return "-"
	}
	if p >= 10_000 {
		return FormatInt(int(math.Round(p)))
	}
	return fmt.Sprintf("%.2f", p)
}

// FormatChange formats a percentage change that is already scaled to
// percent, e.g. 2.5 -> "+2.50%".
func FormatChange(pct float64) string {
	if math.IsNaN(pct) {
		return "-"
	}
	if pct > 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// FormatIndicator formats an indicator reading with two decimals, or "-"
// for a gap.
func FormatIndicator(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatConfidence renders a [0,1] score as a percentage with one decimal,
// e.g. 0.92 -> "92.0%".
func FormatConfidence(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

// FormatDate renders an ISO date as "Jan 2, 2006"; other inputs pass
// through unchanged.
func FormatDate(s string) string {
	if t, ok := parseDate(s); ok {
		return t.Format("Jan 2, 2006")
	}
	return s
}
