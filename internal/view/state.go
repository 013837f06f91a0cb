// Package view resolves dashboard pages: it maps route parameters to API
// calls, merges the responses into render-ready models, and tracks each
// page's load state. Results from superseded runs are discarded.
package view

// Status is the load phase of a page.
type Status int

const (
	// Idle means nothing has been requested yet (an unsubmitted probe).
	Idle Status = iota
	Loading
	Ready
	Failed
	// Missing means a required route parameter was absent. No request is
	// made.
	Missing
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	case Missing:
		return "missing-parameter"
	}
	return "unknown"
}

// State is the observable state of one page. Data is set only when Status
// is Ready; Message only when Status is Failed or Missing.
type State[T any] struct {
	Status  Status
	Data    T
	Message string
	Err     error
	Gen     uint64
}

// Settled reports whether the state is terminal for its generation.
func (s State[T]) Settled() bool {
	return s.Status == Ready || s.Status == Failed || s.Status == Missing
}
