package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/adaptlearn/practice-engine/internal/engine"
)

type app struct {
	engine *engine.Engine
	db     healthChecker
	cache  healthChecker
}

type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// newMux creates the HTTP router. The API surface is deliberately thin:
// the engine owns all semantics, handlers only translate JSON.
func newMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReadyz)
	mux.HandleFunc("POST /api/practice/next", a.handleNext)
	mux.HandleFunc("POST /api/practice/submit", a.handleSubmit)
	mux.HandleFunc("GET /api/practice/mastery", a.handleMastery)
	mux.HandleFunc("GET /api/practice/weights", a.handleGetWeights)
	mux.HandleFunc("PUT /api/practice/weights", a.handlePutWeights)
	return mux
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *app) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, dep := range map[string]healthChecker{"database": a.db, "cache": a.cache} {
		if dep == nil {
			continue
		}
		if err := dep.HealthCheck(ctx); err != nil {
			slog.Warn("readiness check failed", "dependency", name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "dependency": name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type nextRequest struct {
	StudentID string `json:"student_id"`
}

func (a *app) handleNext(w http.ResponseWriter, r *http.Request) {
	var req nextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	sel, err := a.engine.SelectNext(r.Context(), req.StudentID)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

type submitRequest struct {
	StudentID  string `json:"student_id"`
	ItemID     string `json:"item_id"`
	TopicID    string `json:"topic_id"`
	Correct    bool   `json:"correct"`
	DurationMs int    `json:"duration_ms"`
}

func (a *app) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	res, err := a.engine.Record(r.Context(), req.StudentID, req.ItemID, req.TopicID, req.Correct, req.DurationMs)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *app) handleMastery(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student_id")
	m, err := a.engine.MasteryByTopic(r.Context(), studentID)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"student_id": studentID, "mastery": m})
}

func (a *app) handleGetWeights(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student_id")
	if studentID == "" {
		writeError(w, http.StatusBadRequest, "student_id is required")
		return
	}
	weights, err := a.engine.Weights(r.Context(), studentID)
	if err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weights)
}

type weightsRequest struct {
	StudentID string                 `json:"student_id"`
	Weights   engine.StrategyWeights `json:"weights"`
}

func (a *app) handlePutWeights(w http.ResponseWriter, r *http.Request) {
	var req weightsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "student_id is required")
		return
	}
	if err := a.engine.SetWeights(r.Context(), req.StudentID, req.Weights); err != nil {
		a.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req.Weights)
}

// writeEngineError maps the engine error taxonomy to HTTP statuses:
// validation 400, exhausted supply 503 with a retry hint, anything else
// 500.
func (a *app) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case engine.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrExhausted):
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
