package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"ynot/internal/domain"
	"ynot/internal/usecase"
)

const maxDispatchBody = 16 << 10

// Recognition is the listening control the API exposes.
type Recognition interface {
	Status() domain.Status
	Toggle(ctx context.Context) domain.Status
}

// Dispatcher runs one typed command.
type Dispatcher interface {
	Dispatch(ctx context.Context, event domain.TranscriptEvent) domain.DispatchOutcome
}

// History returns the transcript log, newest first.
type History interface {
	Entries() []domain.LogEntry
}

// HTTPRecorder records request metrics and serves them.
type HTTPRecorder interface {
	RecordHTTPRequest(method, path string, status int, duration time.Duration)
	Handler() http.Handler
}

// API wires the control endpoints.
type API struct {
	Recognition Recognition
	Dispatcher  Dispatcher
	History     History
	Metrics     HTTPRecorder
	Version     string
	Logger      *zap.Logger
}

type dispatchRequest struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler returns the routed, instrumented API.
func (a API) Handler() http.Handler {
	logger := a.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "api"))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /status", a.handleStatus)
	mux.HandleFunc("POST /toggle", a.handleToggle)
	mux.HandleFunc("POST /dispatch", a.handleDispatch(logger))
	mux.HandleFunc("GET /log", a.handleLog)
	if a.Metrics != nil {
		mux.Handle("GET /metrics", a.Metrics.Handler())
	}

	middlewares := []Middleware{Recovery(logger), RequestLogger(logger), OTelTracing()}
	if a.Metrics != nil {
		middlewares = append(middlewares, MetricsMiddleware(a.Metrics))
	}
	return Chain(mux, middlewares...)
}

func (a API) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": a.Version})
}

func (a API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if a.Recognition == nil {
		WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "recognition is not configured"})
		return
	}
	WriteJSON(w, http.StatusOK, a.Recognition.Status())
}

func (a API) handleToggle(w http.ResponseWriter, r *http.Request) {
	if a.Recognition == nil {
		WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "recognition is not configured"})
		return
	}
	WriteJSON(w, http.StatusOK, a.Recognition.Toggle(r.Context()))
}

func (a API) handleDispatch(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.Dispatcher == nil {
			WriteJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "dispatcher is not configured"})
			return
		}

		var req dispatchRequest
		decoder := json.NewDecoder(io.LimitReader(r.Body, maxDispatchBody))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			logger.Debug("invalid dispatch body", zap.Error(err))
			WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
			return
		}

		outcome := a.Dispatcher.Dispatch(r.Context(), usecase.NewTranscriptEvent(text, domain.SourceTyped))
		if outcome.Utterance == "" && errors.Is(r.Context().Err(), context.Canceled) {
			return
		}
		WriteJSON(w, http.StatusOK, outcome)
	}
}

func (a API) handleLog(w http.ResponseWriter, _ *http.Request) {
	entries := []domain.LogEntry{}
	if a.History != nil {
		entries = a.History.Entries()
	}
	WriteJSON(w, http.StatusOK, entries)
}

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
