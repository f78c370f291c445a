package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PathwiseAI/pathwise-engine/engine/corpus"
	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/engine/orchestrate"
	"github.com/PathwiseAI/pathwise-engine/engine/rag"
	"github.com/PathwiseAI/pathwise-engine/engine/verify"
	"github.com/PathwiseAI/pathwise-engine/pkg/metrics"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 8)
	for i, r := range text {
		v[i%8] += float32(r % 13)
	}
	return v, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = f.Embed(ctx, t)
	}
	return out, nil
}

type fakeScorer struct{}

func (fakeScorer) Score(_ context.Context, _, _ string) (float64, error) { return 0.5, nil }

type fakeGenerator struct{ reply string }

func (g fakeGenerator) Generate(_ context.Context, _ string, _ orchestrate.EvidencePacket) (string, error) {
	return g.reply, nil
}

func newTestApp(t *testing.T, withCorpus bool) *application {
	t.Helper()
	logger := slog.Default()
	manager := corpus.NewManager()
	builder := corpus.NewBuilder(corpus.LocalVectorBackend(fakeEmbedder{}), corpus.DefaultBuildOptions(), logger)

	app := &application{
		svc: rag.New(manager, fakeScorer{}, fakeGenerator{reply: "Try internal transfers [1]."},
			verify.New(verify.DefaultOptions()), rag.DefaultOptions(), logger),
		manager: manager,
		builder: builder,
		metrics: metrics.NewPipeline(metrics.New()),
		logger:  logger,
	}

	if withCorpus {
		docs := []domain.DocumentInput{
			{
				Text:       "Internal transfers are the usual route into product management from engineering.",
				SourcePath: "/data/pm.txt",
				Filename:   "pm.txt",
			},
		}
		if err := app.rebuild(context.Background(), docs); err != nil {
			t.Fatalf("rebuild: %v", err)
		}
	}
	return app
}

func TestHandleAsk(t *testing.T) {
	app := newTestApp(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"query":"how do I move into product management?"}`))
	app.handleAsk(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var resp AnswerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer == "" || len(resp.Citations) == 0 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleAskEmptyQuery(t *testing.T) {
	app := newTestApp(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"query":""}`))
	app.handleAsk(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleAskNoCorpus(t *testing.T) {
	app := newTestApp(t, false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{"query":"anything"}`))
	app.handleAsk(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleAskBadBody(t *testing.T) {
	app := newTestApp(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/ask", strings.NewReader(`{not json`))
	app.handleAsk(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandleAdvice(t *testing.T) {
	app := newTestApp(t, true)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/advice", strings.NewReader(`{"transcript":"I feel stuck in my role","emotion":"frustrated"}`))
	app.handleAdvice(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body)
	}
	var resp AnswerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Intent != domain.IntentAdvice {
		t.Errorf("intent = %v", resp.Intent)
	}
}

func TestHandleHealth(t *testing.T) {
	app := newTestApp(t, true)

	rec := httptest.NewRecorder()
	app.handleHealth(rec, httptest.NewRequest("GET", "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status map[string]any
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status["status"] != "ok" || status["chunks"].(float64) == 0 {
		t.Errorf("status = %v", status)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrEmptyQuery, http.StatusBadRequest},
		{domain.ErrQueryTooLong, http.StatusBadRequest},
		{domain.ErrIndexUnavailable, http.StatusServiceUnavailable},
		{domain.ErrGenerationFailed, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Errorf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
