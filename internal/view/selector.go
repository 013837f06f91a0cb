package view

import (
	"context"
	"log/slog"
	"sync"

	"marketdash/pkg/dashapi"
)

// ReportsView is the report browser: the available dates plus the detail of
// the selected one. Report is nil when there are no reports.
type ReportsView struct {
	Dates    []string
	Selected string
	Report   *dashapi.Report
}

// Index returns the position of Selected in Dates, or -1.
func (v ReportsView) Index() int {
	for i, d := range v.Dates {
		if d == v.Selected {
			return i
		}
	}
	return -1
}

// Selector lists report dates, opens the most recent one, and re-resolves
// the detail when the user picks another date. The date list is fetched
// once per Load and held in the selector, so it survives a failed detail.
type Selector struct {
	api API
	*Resolver[ReportsView]

	mu       sync.Mutex
	dates    []string
	selected string
	loads    uint64 // bumped by each Load; only the latest may set dates
}

// NewSelector creates a report selector.
func NewSelector(api API, log *slog.Logger) *Selector {
	return &Selector{
		api:      api,
		Resolver: NewResolver[ReportsView]("reports", MsgReportsFailed, log),
	}
}

// Load fetches the date list and, when non-empty, the first date's detail,
// all within one Loading cycle.
func (s *Selector) Load(ctx context.Context) *Ticket {
	s.mu.Lock()
	s.selected = ""
	s.loads++
	seq := s.loads
	s.mu.Unlock()

	return s.Run(ctx, func(ctx context.Context) (ReportsView, error) {
		dates, err := s.api.ListReports(ctx)
		if err != nil {
			return ReportsView{}, err
		}
		s.mu.Lock()
		current := seq == s.loads
		if current {
			s.dates = dates
			if len(dates) > 0 && s.selected == "" {
				s.selected = dates[0]
			}
		}
		s.mu.Unlock()

		if len(dates) == 0 {
			return ReportsView{Dates: []string{}}, nil
		}
		v := ReportsView{Dates: dates, Selected: dates[0]}
		v.Report, err = s.api.GetReport(ctx, v.Selected)
		if err != nil {
			return ReportsView{}, err
		}
		return v, nil
	})
}

// Select resolves date's detail against the held list. The list itself is
// not re-fetched.
func (s *Selector) Select(ctx context.Context, date string) *Ticket {
	if msg := requireDate(date); msg != "" {
		return s.Miss(msg)
	}
	s.mu.Lock()
	dates := s.dates
	s.selected = date
	s.mu.Unlock()

	return s.Run(ctx, func(ctx context.Context) (ReportsView, error) {
		r, err := s.api.GetReport(ctx, date)
		if err != nil {
			return ReportsView{}, err
		}
		return ReportsView{Dates: dates, Selected: date, Report: r}, nil
	})
}

// Step moves the selection delta places along the held list and resolves
// it. Dates run newest first, so a positive delta moves to older reports.
// It returns nil when the move would leave the list.
func (s *Selector) Step(ctx context.Context, delta int) *Ticket {
	s.mu.Lock()
	dates, cur := s.dates, s.selected
	s.mu.Unlock()

	idx := -1
	for i, d := range dates {
		if d == cur {
			idx = i
			break
		}
	}
	next := idx + delta
	if idx < 0 || next < 0 || next >= len(dates) {
		return nil
	}
	return s.Select(ctx, dates[next])
}

// Retry repeats the last Load or Select.
func (s *Selector) Retry(ctx context.Context) *Ticket {
	s.mu.Lock()
	cur, have := s.selected, len(s.dates) > 0
	s.mu.Unlock()
	if cur != "" && have {
		return s.Select(ctx, cur)
	}
	return s.Load(ctx)
}

// Dates returns the held date list.
func (s *Selector) Dates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dates
}

// Selected returns the date the selector is showing or loading.
func (s *Selector) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}
