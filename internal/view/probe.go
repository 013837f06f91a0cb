package view

import (
	"context"
	"log/slog"
	"strings"

	"marketdash/internal/util"
	"marketdash/pkg/dashapi"
)

// ProbeView holds the outcome of a sentiment submission. Results has one
// entry per submitted text. History is the backend's record of earlier
// analyses, newest first; it is nil when it could not be fetched.
type ProbeView struct {
	Texts   []string
	Results []dashapi.SentimentResult
	History []dashapi.SentimentResult
}

// HistoryLimit caps how many past analyses a ProbeView keeps.
const HistoryLimit = 5

// Probe submits free text for sentiment classification. It starts Idle.
// Blank input fails locally; a new submission supersedes any pending one.
type Probe struct {
	api API
	log *slog.Logger
	*Resolver[ProbeView]
}

// NewProbe creates an idle probe.
func NewProbe(api API, log *slog.Logger) *Probe {
	if log == nil {
		log = util.Discard()
	}
	return &Probe{
		api:      api,
		log:      log,
		Resolver: NewResolver[ProbeView]("sentiment", MsgSentimentFailed, log),
	}
}

// withHistory attaches recent history to a successful submission. A failed
// history fetch is logged and leaves History nil.
func (p *Probe) withHistory(ctx context.Context, v ProbeView) ProbeView {
	h, err := p.api.SentimentHistory(ctx)
	if err != nil {
		p.log.Warn("sentiment history unavailable", "error", err)
		return v
	}
	v.History = recent(h, HistoryLimit)
	return v
}

// recent returns the last n entries of h, which runs oldest first, newest
// first.
func recent(h []dashapi.SentimentResult, n int) []dashapi.SentimentResult {
	out := make([]dashapi.SentimentResult, 0, n)
	for i := len(h) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h[i])
	}
	return out
}

// Submit classifies text. Blank text returns *dashapi.ValidationError
// synchronously, settles the probe as Failed, and discards any submission
// still in flight.
func (p *Probe) Submit(ctx context.Context, text string) (*Ticket, error) {
	if strings.TrimSpace(text) == "" {
		err := &dashapi.ValidationError{Field: "text", Message: dashapi.MsgEmptyText}
		return p.Fail(err), err
	}
	t := p.Run(ctx, func(ctx context.Context) (ProbeView, error) {
		res, err := p.api.AnalyzeSentiment(ctx, text)
		if err != nil {
			return ProbeView{}, err
		}
		v := ProbeView{Texts: []string{text}, Results: []dashapi.SentimentResult{*res}}
		return p.withHistory(ctx, v), nil
	})
	return t, nil
}

// SubmitBatch classifies each non-blank line of input as its own text.
func (p *Probe) SubmitBatch(ctx context.Context, input string) (*Ticket, error) {
	texts := splitLines(input)
	if len(texts) == 0 {
		err := &dashapi.ValidationError{Field: "texts", Message: dashapi.MsgEmptyText}
		return p.Fail(err), err
	}
	if len(texts) == 1 {
		return p.Submit(ctx, texts[0])
	}
	t := p.Run(ctx, func(ctx context.Context) (ProbeView, error) {
		res, err := p.api.AnalyzeBatch(ctx, texts)
		if err != nil {
			return ProbeView{}, err
		}
		return p.withHistory(ctx, ProbeView{Texts: texts, Results: res}), nil
	})
	return t, nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
