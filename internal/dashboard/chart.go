package dashboard

import (
	"math"
	"strings"
	"time"
)

var blocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Resample reduces vals to n columns by averaging each bucket's non-gap
// values. A bucket with no values is NaN. Series shorter than n are
// returned unchanged.
func Resample(vals []float64, n int) []float64 {
	if n <= 0 || len(vals) <= n {
		return vals
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		lo := i * len(vals) / n
		hi := (i + 1) * len(vals) / n
		sum, cnt := 0.0, 0
		for _, v := range vals[lo:hi] {
			if !math.IsNaN(v) {
				sum += v
				cnt++
			}
		}
		if cnt == 0 {
			out[i] = math.NaN()
		} else {
			out[i] = sum / float64(cnt)
		}
	}
	return out
}

// bounds returns the min and max of the non-gap values. ok is false when
// every value is a gap.
func bounds(vals []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	return lo, hi, ok
}

// Sparkline draws vals on a single row. Gaps render as spaces.
func Sparkline(vals []float64, width int) string {
	vals = Resample(vals, width)
	lo, hi, ok := bounds(vals)
	if !ok {
		return strings.Repeat(" ", len(vals))
	}
	var b strings.Builder
	for _, v := range vals {
		if math.IsNaN(v) {
			b.WriteRune(' ')
			continue
		}
		idx := len(blocks) - 1
		if hi > lo {
			idx = 1 + int(math.Round((v-lo)/(hi-lo)*float64(len(blocks)-2)))
		}
		b.WriteRune(blocks[idx])
	}
	return b.String()
}

// Chart is a multi-row column chart. A zero Min and Max scale to the data.
// Refs draw dotted horizontal guides (e.g. RSI 70 and 30).
type Chart struct {
	Width  int
	Height int
	Min    float64
	Max    float64
	Refs   []float64
}

// Render returns Height lines, top row first.
func (c Chart) Render(vals []float64) []string {
	h := c.Height
	if h < 1 {
		h = 1
	}
	vals = Resample(vals, c.Width)
	lo, hi := c.Min, c.Max
	if lo == 0 && hi == 0 {
		var ok bool
		if lo, hi, ok = bounds(vals); !ok {
			return blankRows(h, len(vals))
		}
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return blankRows(h, len(vals))
	}
	if hi == lo {
		hi = lo + 1
	}

	steps := h * 8
	level := func(v float64) int {
		x := (v - lo) / (hi - lo)
		x = math.Max(0, math.Min(1, x))
		return int(math.Round(x * float64(steps)))
	}

	refRows := map[int]bool{}
	for _, r := range c.Refs {
		if r < lo || r > hi {
			continue
		}
		refRows[(level(r)-1)/8] = true
	}

	rows := make([]string, h)
	for row := 0; row < h; row++ {
		// row 0 is the top; base is the bottom level of this row.
		base := (h - 1 - row) * 8
		var b strings.Builder
		for _, v := range vals {
			fill := 0
			if !math.IsNaN(v) {
				fill = level(v) - base
			}
			switch {
			case fill >= 8:
				b.WriteRune('█')
			case fill > 0:
				b.WriteRune(blocks[fill])
			case refRows[h-1-row]:
				b.WriteRune('┄')
			default:
				b.WriteRune(' ')
			}
		}
		rows[row] = b.String()
	}
	return rows
}

// Diverging draws signed values as bars above and below a zero line.
// It returns the rows above zero and the rows below zero separately so the
// caller can colour them.
func Diverging(vals []float64, width, half int) (above, below []string) {
	vals = Resample(vals, width)
	lo, hi, ok := bounds(vals)
	if !ok {
		return blankRows(half, len(vals)), blankRows(half, len(vals))
	}
	span := math.Max(math.Abs(lo), math.Abs(hi))
	if span == 0 {
		span = 1
	}
	pos := make([]float64, len(vals))
	neg := make([]float64, len(vals))
	for i, v := range vals {
		switch {
		case math.IsNaN(v):
			pos[i], neg[i] = math.NaN(), math.NaN()
		case v >= 0:
			pos[i], neg[i] = v, math.NaN()
		default:
			pos[i], neg[i] = math.NaN(), -v
		}
	}
	above = Chart{Width: width, Height: half, Min: 0, Max: span}.Render(pos)
	down := Chart{Width: width, Height: half, Min: 0, Max: span}.Render(neg)
	// Mirror so bars hang from the zero line.
	below = make([]string, len(down))
	for i := range down {
		below[i] = strings.Map(func(r rune) rune {
			if r == ' ' {
				return ' '
			}
			return '█'
		}, down[len(down)-1-i])
	}
	return above, below
}

func blankRows(h, w int) []string {
	rows := make([]string, h)
	for i := range rows {
		rows[i] = strings.Repeat(" ", w)
	}
	return rows
}

// Bar renders a horizontal proportion bar: round(frac*width) filled cells.
func Bar(frac float64, width int) (filled, empty string) {
	if math.IsNaN(frac) {
		frac = 0
	}
	frac = math.Max(0, math.Min(1, frac))
	n := int(math.Round(frac * float64(width)))
	return strings.Repeat("█", n), strings.Repeat("░", width-n)
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
