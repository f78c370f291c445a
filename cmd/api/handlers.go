package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/PathwiseAI/pathwise-engine/engine/corpus"
	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/engine/rag"
	"github.com/PathwiseAI/pathwise-engine/pkg/metrics"
)

type application struct {
	svc     *rag.Service
	manager *corpus.Manager
	builder *corpus.Builder
	metrics *metrics.Pipeline
	logger  *slog.Logger
}

// rebuild constructs a fresh corpus version and atomically swaps it in.
// In-flight queries keep reading the previous version.
func (app *application) rebuild(ctx context.Context, docs []domain.DocumentInput) error {
	start := time.Now()
	name := start.UTC().Format("20060102_150405")

	v, err := app.builder.Build(ctx, name, docs)
	if err != nil {
		return err
	}
	app.manager.Swap(v)
	app.metrics.RebuildsTotal.Inc()
	app.metrics.RebuildLatency.Since(start)
	app.metrics.ActiveChunks.Set(int64(v.Len()))
	app.logger.Info("corpus version activated",
		"version", v.Name(), "chunks", v.Len(), "degraded", v.Degraded())
	return nil
}

func (app *application) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := map[string]any{"status": "ok"}
	if v := app.manager.Active(); v != nil {
		status["corpus_version"] = v.Name()
		status["chunks"] = v.Len()
		status["degraded"] = v.Degraded()
	} else {
		status["status"] = "no corpus"
	}
	writeJSON(w, http.StatusOK, status)
}

// AskRequest is the JSON body for POST /api/ask.
type AskRequest struct {
	Query string `json:"query"`
}

// AdviceRequest is the JSON body for POST /api/advice.
type AdviceRequest struct {
	Transcript string `json:"transcript"`
	Emotion    string `json:"emotion"`
}

// AnswerResponse is the JSON response for both answer endpoints.
type AnswerResponse struct {
	Answer    string         `json:"answer"`
	Intent    domain.Intent  `json:"intent"`
	Citations []rag.Citation `json:"citations"`
	Issues    []domain.Issue `json:"issues"`
	Degraded  bool           `json:"degraded"`
}

func (app *application) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	app.respond(w, r, func(ctx context.Context) (*rag.Answer, error) {
		return app.svc.Answer(ctx, req.Query)
	})
}

func (app *application) handleAdvice(w http.ResponseWriter, r *http.Request) {
	var req AdviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	app.respond(w, r, func(ctx context.Context) (*rag.Answer, error) {
		return app.svc.Advise(ctx, req.Transcript, req.Emotion)
	})
}

func (app *application) respond(w http.ResponseWriter, r *http.Request, answer func(context.Context) (*rag.Answer, error)) {
	start := time.Now()
	app.metrics.QueriesTotal.Inc()

	ans, err := answer(r.Context())
	if err != nil {
		app.metrics.QueryErrors.Inc()
		app.logger.Error("answer failed", "err", err)
		writeError(w, statusFor(err), publicMessage(err))
		return
	}

	app.metrics.AnswerLatency.Since(start)
	if ans.Degraded {
		app.metrics.RetrievalDegraded.Inc()
	}
	if ans.RerankFallback {
		app.metrics.RerankFallback.Inc()
	}
	app.metrics.VerifyIssues.Add(int64(len(ans.Issues)))

	writeJSON(w, http.StatusOK, AnswerResponse{
		Answer:    ans.Text,
		Intent:    ans.Intent,
		Citations: ans.Citations,
		Issues:    ans.Issues,
		Degraded:  ans.Degraded,
	})
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery), errors.Is(err, domain.ErrQueryTooLong):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIndexUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyQuery):
		return "query is required"
	case errors.Is(err, domain.ErrQueryTooLong):
		return "query too long"
	case errors.Is(err, domain.ErrIndexUnavailable):
		return "no corpus loaded"
	case errors.Is(err, domain.ErrGenerationFailed):
		return "answer generation failed"
	default:
		return "internal server error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
