// Package mockapi serves the dashboard's REST contract from local fixtures:
// Parquet series, a SQLite report store, and canned sentiment samples.
package mockapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"marketdash/internal/store"
	"marketdash/pkg/dashapi"
)

const timestampLayout = "2006-01-02 15:04:05"

// Server serves the fixture API under /api.
type Server struct {
	series    store.SeriesStore
	reports   store.ReportStore
	sentiment store.SentimentStore
	log       *slog.Logger

	// Symbols reported by the overview and symbol list. Empty means every
	// stored series.
	symbols []string

	now    func() time.Time
	router chi.Router
}

// NewServer creates a fixture API server over the given stores.
func NewServer(
	series store.SeriesStore,
	reports store.ReportStore,
	sentiment store.SentimentStore,
	symbols []string,
	log *slog.Logger,
) *Server {
	s := &Server{
		series:    series,
		reports:   reports,
		sentiment: sentiment,
		symbols:   symbols,
		log:       log,
		now:       time.Now,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the router with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/market", func(r chi.Router) {
			r.Get("/overview", s.handleOverview)
			r.Get("/overview/{symbol}", s.handleOverview)
			r.Get("/data/{symbol}", s.handleSeries)
			r.Get("/sma/{symbol}", s.handleIndicator(dashapi.MetricPrice, dashapi.MetricSMA20, dashapi.MetricSMA50))
			r.Get("/rsi/{symbol}", s.handleIndicator(dashapi.MetricRSI))
			r.Get("/macd/{symbol}", s.handleIndicator(dashapi.MetricMACD, dashapi.MetricMACDSignal, dashapi.MetricMACDHist))
			r.Get("/symbols", s.handleSymbols)
			r.Get("/timeframes", s.handleTimeframes)
		})

		r.Route("/sentiment", func(r chi.Router) {
			r.Post("/analyze", s.handleAnalyze)
			r.Post("/analyze/batch", s.handleAnalyzeBatch)
			r.Get("/articles/{polarity}", s.handleArticles)
			r.Get("/history", s.handleHistory)
		})

		r.Route("/report", func(r chi.Router) {
			r.Get("/reports", s.handleReports)
			r.Get("/reports/{date}", s.handleReport)
			r.Get("/reports/{date}/{polarity}", s.handleArticles)
		})
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ---------------------------------------------------------------------------
// Market
// ---------------------------------------------------------------------------

func (s *Server) trackedSymbols(r *http.Request) ([]string, error) {
	if len(s.symbols) > 0 {
		return s.symbols, nil
	}
	return s.series.ListSymbols(r.Context())
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov := dashapi.Overview{
		Timestamp: s.now().Format(timestampLayout),
		Symbols:   map[string]dashapi.Snapshot{},
	}

	if sym := chi.URLParam(r, "symbol"); sym != "" {
		series, err := s.series.ReadSeries(r.Context(), sym)
		if err != nil {
			s.storeError(w, err, fmt.Sprintf("No data found for %s", sym))
			return
		}
		ov.Symbols[strings.ToUpper(sym)] = snapshot(series)
		writeJSON(w, ov)
		return
	}

	syms, err := s.trackedSymbols(r)
	if err != nil {
		s.internalError(w, "listing symbols", err)
		return
	}
	for _, sym := range syms {
		series, err := s.series.ReadSeries(r.Context(), sym)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			s.internalError(w, "reading series", err)
			return
		}
		ov.Symbols[sym] = snapshot(series)
	}
	writeJSON(w, ov)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	series, ok := s.loadWindow(w, r)
	if !ok {
		return
	}
	writeJSON(w, series)
}

// handleIndicator serves the window with only the named metrics populated.
func (s *Server) handleIndicator(keep ...dashapi.Metric) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		series, ok := s.loadWindow(w, r)
		if !ok {
			return
		}
		writeJSON(w, project(series, keep))
	}
}

func (s *Server) loadWindow(w http.ResponseWriter, r *http.Request) (*dashapi.Series, bool) {
	sym := chi.URLParam(r, "symbol")
	q := r.URL.Query()
	timeframe := q.Get("timeframe")
	if timeframe == "" {
		timeframe = DefaultTimeframe
	}
	period := q.Get("period")
	if period == "" {
		period = DefaultPeriod
	}

	series, err := s.series.ReadSeries(r.Context(), sym)
	if err != nil {
		s.storeError(w, err, fmt.Sprintf("No data found for %s", sym))
		return nil, false
	}
	out, err := Window(series, timeframe, period)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return out, true
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	syms, err := s.trackedSymbols(r)
	if err != nil {
		s.internalError(w, "listing symbols", err)
		return
	}
	if syms == nil {
		syms = []string{}
	}
	writeJSON(w, map[string][]string{"symbols": syms})
}

func (s *Server) handleTimeframes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]map[string]string{"timeframes": Timeframes})
}

// ---------------------------------------------------------------------------
// Sentiment
// ---------------------------------------------------------------------------

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text *string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == nil {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}
	res, err := s.analyze(r, *req.Text)
	if err != nil {
		s.internalError(w, "analyzing text", err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleAnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Texts []string `json:"texts"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Texts == nil {
		writeError(w, http.StatusBadRequest, "No texts provided")
		return
	}
	out := make([]dashapi.SentimentResult, 0, len(req.Texts))
	for _, text := range req.Texts {
		res, err := s.analyze(r, text)
		if err != nil {
			s.internalError(w, "analyzing batch", err)
			return
		}
		out = append(out, res)
	}
	writeJSON(w, out)
}

func (s *Server) analyze(r *http.Request, text string) (dashapi.SentimentResult, error) {
	st, err := s.sentiment.Classify(r.Context(), text)
	if err != nil {
		return dashapi.SentimentResult{}, err
	}
	res := dashapi.SentimentResult{
		Text:      text,
		Sentiment: st,
		Timestamp: s.now().Format(timestampLayout),
	}
	if err := s.sentiment.AppendHistory(r.Context(), res); err != nil {
		s.log.Warn("recording sentiment history", "error", err)
	}
	return res, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	h, err := s.sentiment.History(r.Context())
	if err != nil {
		s.internalError(w, "reading history", err)
		return
	}
	writeJSON(w, h)
}

// handleArticles serves both the report-scoped and the current article
// lists; the latter has no date parameter.
func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	pol, ok := dashapi.ParsePolarity(chi.URLParam(r, "polarity"))
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown polarity %s", chi.URLParam(r, "polarity")))
		return
	}
	label := dashapi.Positive
	if pol == dashapi.PolarityNegative {
		label = dashapi.Negative
	}

	date := chi.URLParam(r, "date")
	arts, err := s.reports.ListArticles(r.Context(), date, label)
	if err != nil {
		s.storeError(w, err, fmt.Sprintf("No report found for %s", date))
		return
	}
	writeJSON(w, map[string][]dashapi.Article{"articles": arts})
}

// ---------------------------------------------------------------------------
// Reports
// ---------------------------------------------------------------------------

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	dates, err := s.reports.ListReports(r.Context())
	if err != nil {
		s.internalError(w, "listing reports", err)
		return
	}
	writeJSON(w, map[string][]string{"reports": dates})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	rep, err := s.reports.GetReport(r.Context(), date)
	if err != nil {
		s.storeError(w, err, fmt.Sprintf("No report found for %s", date))
		return
	}
	writeJSON(w, rep)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// storeError maps store.ErrNotFound to 404 with notFound as the message and
// anything else to 500.
func (s *Server) storeError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	s.internalError(w, "store", err)
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
