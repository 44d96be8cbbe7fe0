// Package dashboard serves the bilingual prediction form, history table and chart.
package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/kjstillabower/energy-forecast-service/internal/client"
	httphandler "github.com/kjstillabower/energy-forecast-service/internal/http"
	"github.com/kjstillabower/energy-forecast-service/internal/models"
	"github.com/kjstillabower/energy-forecast-service/internal/observability"
	"github.com/kjstillabower/energy-forecast-service/internal/store"
	"github.com/kjstillabower/energy-forecast-service/internal/ws"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// maxFormBody caps POST /predict form bodies.
const maxFormBody = 16 << 10

// Options configures page rendering.
type Options struct {
	Location    *time.Location // zone for the default hour and stored timestamps
	DefaultLang string
	HistoryRows int
	Now         func() time.Time
}

// Server renders the dashboard and records successful predictions.
type Server struct {
	client client.PredictionClient
	store  store.HistoryStore
	hub    *ws.Hub
	opts   Options
	logger *zap.Logger
	tmpl   *template.Template
}

// NewServer parses the embedded page template. hub may be nil to disable live updates.
func NewServer(pc client.PredictionClient, hs store.HistoryStore, hub *ws.Hub, opts Options, logger *zap.Logger) (*Server, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HistoryRows <= 0 {
		opts.HistoryRows = 10
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.DefaultLang, _ = Lookup(opts.DefaultLang)
	if logger == nil {
		logger = zap.NewNop()
	}

	tmpl, err := template.New("index.html.tmpl").Funcs(template.FuncMap{
		"kwh":  func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) },
		"num":  func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) },
		"fmt2": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
		"ts":   func(t time.Time) string { return t.Format(models.TimestampLayout) },
		"seq": func(lo, hi int) []int {
			out := make([]int, 0, hi-lo+1)
			for i := lo; i <= hi; i++ {
				out = append(out, i)
			}
			return out
		},
	}).ParseFS(templateFS, "templates/index.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard template: %w", err)
	}

	return &Server{
		client: pc,
		store:  hs,
		hub:    hub,
		opts:   opts,
		logger: logger,
		tmpl:   tmpl,
	}, nil
}

// Register mounts the dashboard routes on router.
func (s *Server) Register(router *mux.Router) {
	router.HandleFunc("/", s.Index).Methods("GET")
	router.HandleFunc("/predict", s.Predict).Methods("POST")
	router.HandleFunc("/api/history", s.History).Methods("GET")
	if s.hub != nil {
		router.Handle("/ws", ws.NewHandler(s.hub, s.hello, s.logger)).Methods("GET")
	}
}

type historyRow struct {
	models.PredictionRecord
	DayName string
}

type pageData struct {
	Lang        string
	T           Strings
	Languages   []string
	Form        FormValues
	Result      *float64
	Error       string
	ErrorDetail string
	History     []historyRow
	HistoryRows int
	Chart       *Chart
	Live        bool
}

// Index handles GET /?lang=en|ar.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	data := s.newPage(r.URL.Query().Get("lang"))
	s.render(w, r, http.StatusOK, data)
}

// Predict handles the form POST: one service call, and one history append on success.
func (s *Server) Predict(w http.ResponseWriter, r *http.Request) {
	logger := s.requestLogger(r)

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		data := s.newPage(r.URL.Query().Get("lang"))
		data.Error, data.ErrorDetail = data.T.InvalidInput, err.Error()
		s.render(w, r, http.StatusBadRequest, data)
		return
	}

	data := s.newPage(r.PostForm.Get("lang"))
	form, err := ParseForm(r.PostForm)
	if err != nil {
		data.Error, data.ErrorDetail = data.T.InvalidInput, err.Error()
		s.render(w, r, http.StatusUnprocessableEntity, data)
		return
	}
	data.Form = form

	kwh, err := s.client.Predict(r.Context(), form.Features())
	if err != nil {
		logger.Warn("prediction request failed",
			zap.Error(err),
			zap.String("category", string(client.CategorizeError(err))))
		data.Error, data.ErrorDetail = data.T.APIError, err.Error()
		s.render(w, r, http.StatusBadGateway, data)
		return
	}
	data.Result = &kwh

	// The service has answered; the record is written even if the client has gone away.
	ctx := context.WithoutCancel(r.Context())
	rec, err := s.store.Append(ctx, models.NewPredictionRecord(s.opts.Now().In(s.opts.Location), form.Features(), kwh))
	if err != nil {
		observability.HistoryWritesTotal.WithLabelValues("error").Inc()
		logger.Error("history append failed", zap.Error(err))
	} else {
		observability.HistoryWritesTotal.WithLabelValues("success").Inc()
		logger.Info("prediction recorded", zap.Int64("id", rec.ID), zap.Float64("predicted_kwh", kwh))
		s.broadcast(rec)
	}

	s.fillHistory(ctx, &data)
	s.render(w, r, http.StatusOK, data)
}

// History handles GET /api/history[?limit=N]: records most-recent-first as JSON.
func (s *Server) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONError(w, r, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	records, err := s.store.List(r.Context(), limit)
	if err != nil {
		s.requestLogger(r).Error("history list failed", zap.Error(err))
		writeJSONError(w, r, http.StatusInternalServerError, "HISTORY_UNAVAILABLE", "Unable to read prediction history")
		return
	}
	if records == nil {
		records = []models.PredictionRecord{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(records)
}

func (s *Server) newPage(lang string) pageData {
	if lang == "" {
		lang = s.opts.DefaultLang
	}
	code, t := Lookup(lang)
	return pageData{
		Lang:        code,
		T:           t,
		Languages:   Languages,
		Form:        DefaultForm(s.opts.Now().In(s.opts.Location).Hour()),
		HistoryRows: s.opts.HistoryRows,
		Live:        s.hub != nil,
	}
}

// fillHistory loads the table rows and chart. A read failure leaves both empty.
func (s *Server) fillHistory(ctx context.Context, data *pageData) {
	records, err := s.store.List(ctx, 0)
	if err != nil {
		s.logger.Error("history list failed", zap.Error(err))
		return
	}
	n := min(len(records), s.opts.HistoryRows)
	data.History = make([]historyRow, 0, n)
	for _, rec := range records[:n] {
		data.History = append(data.History, historyRow{PredictionRecord: rec, DayName: data.T.Days[rec.DayOfWeek%7]})
	}
	data.Chart = BuildChart(records)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, data pageData) {
	if data.History == nil && data.Chart == nil {
		s.fillHistory(r.Context(), &data)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.Execute(w, data); err != nil {
		s.requestLogger(r).Error("render dashboard", zap.Error(err))
	}
}

func (s *Server) broadcast(rec models.PredictionRecord) {
	if s.hub == nil {
		return
	}
	msg, err := ws.PredictionAdded(rec)
	if err != nil {
		s.logger.Warn("encode websocket message", zap.Error(err))
		return
	}
	s.hub.Broadcast(msg)
}

func (s *Server) hello() ws.HelloPayload {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Debug("count history for websocket hello", zap.Error(err))
	}
	return ws.HelloPayload{Records: n}
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if logger := httphandler.LoggerFromContext(r.Context()); logger != nil {
		return logger
	}
	return s.logger
}

func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": httphandler.CorrelationID(r.Context()),
		},
	})
}
