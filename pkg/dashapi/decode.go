package dashapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// UnmarshalJSON accepts any casing of the three known labels.
func (l *Label) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, ok := ParseLabel(s)
	if !ok {
		return fmt.Errorf("unknown sentiment label %q", s)
	}
	*l = parsed
	return nil
}

// UnmarshalJSON requires both label and score, with score in [0, 1].
func (s *Sentiment) UnmarshalJSON(b []byte) error {
	var raw struct {
		Label *Label   `json:"label"`
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw.Label == nil {
		return fmt.Errorf("sentiment label missing")
	}
	if raw.Score == nil {
		return fmt.Errorf("sentiment score missing for label %s", *raw.Label)
	}
	if math.IsNaN(*raw.Score) || *raw.Score < 0 || *raw.Score > 1 {
		return fmt.Errorf("sentiment score %v out of range [0,1]", *raw.Score)
	}
	s.Label = *raw.Label
	s.Score = *raw.Score
	return nil
}

// validate requires a decoded label. Sentiment.UnmarshalJSON only runs when
// the sentiment key is present, so an absent key leaves the zero value.
func (s Sentiment) validate() error {
	if s.Label == "" {
		return fmt.Errorf("sentiment missing")
	}
	return nil
}

func (r *SentimentResult) validate() error {
	if err := r.Sentiment.validate(); err != nil {
		return fmt.Errorf("result for %q: %w", r.Text, err)
	}
	return nil
}

func (a *Article) validate() error {
	if err := a.Sentiment.validate(); err != nil {
		return fmt.Errorf("article %q: %w", a.Title, err)
	}
	return nil
}

// validator is implemented by list elements that carry their own checks.
type validator interface {
	validate() error
}

// validateEach runs validate on every element that implements validator.
func validateEach[T any](items []T) error {
	for i := range items {
		if v, ok := any(&items[i]).(validator); ok {
			if err := v.validate(); err != nil {
				return fmt.Errorf("item %d: %w", i, err)
			}
		}
	}
	return nil
}

// validate checks metric alignment and date order.
func (s *Series) validate() error {
	for _, m := range Metrics {
		v := s.Values(m)
		if len(v) != 0 && len(v) != len(s.Dates) {
			return fmt.Errorf("metric %s has %d values for %d dates", m, len(v), len(s.Dates))
		}
	}
	for i := 1; i < len(s.Dates); i++ {
		if s.Dates[i] < s.Dates[i-1] {
			return fmt.Errorf("dates out of order at %d: %s after %s", i, s.Dates[i], s.Dates[i-1])
		}
	}
	return nil
}

func (o *Overview) validate(symbol string) error {
	if o.Symbols == nil {
		o.Symbols = map[string]Snapshot{}
	}
	if symbol == "" {
		return nil
	}
	if _, ok := o.Lookup(symbol); !ok {
		return fmt.Errorf("overview missing requested symbol %s", symbol)
	}
	return nil
}

func (r *Report) validate(date string) error {
	if r.Date == "" {
		r.Date = date
	}
	if date != "" && r.Date != date {
		return fmt.Errorf("report for %s returned date %s", date, r.Date)
	}
	if r.TotalArticles < 0 {
		return fmt.Errorf("negative total_articles %d", r.TotalArticles)
	}
	if err := validateEach(r.TopPositive); err != nil {
		return fmt.Errorf("top_positive: %w", err)
	}
	if err := validateEach(r.TopNegative); err != nil {
		return fmt.Errorf("top_negative: %w", err)
	}
	return nil
}

// decodeList decodes either a bare JSON array or an object whose key field
// holds the array. The backend wraps lists inconsistently across routes.
func decodeList[T any](data []byte, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, err
		}
		return nonNil(out), nil
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, err
	}
	raw, ok := env[key]
	if !ok {
		return nil, fmt.Errorf("response has neither an array nor a %q field", key)
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return nonNil(out), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
