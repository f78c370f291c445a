// Package rag orchestrates the retrieval-augmented answering pipeline.
// It accepts a user question, classifies and rewrites it, retrieves from
// the active corpus version, reranks, compresses the evidence, calls the
// generator, and runs the post-hoc verifier over the result.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PathwiseAI/pathwise-engine/engine/corpus"
	"github.com/PathwiseAI/pathwise-engine/engine/domain"
	"github.com/PathwiseAI/pathwise-engine/engine/orchestrate"
	"github.com/PathwiseAI/pathwise-engine/engine/rerank"
	"github.com/PathwiseAI/pathwise-engine/engine/retrieve"
	"github.com/PathwiseAI/pathwise-engine/pkg/fn"
)

// Generator produces the final answer text from the query and the
// compressed evidence packet.
type Generator interface {
	Generate(ctx context.Context, query string, packet orchestrate.EvidencePacket) (string, error)
}

// Verifier checks a finished answer against the evidence it was given.
type Verifier interface {
	Check(answer string, packet orchestrate.EvidencePacket) ([]domain.Issue, error)
}

// Options configures the pipeline behaviour.
type Options struct {
	TopK            int
	Breadth         int
	RRFConst        float64
	MaxContextChars int
	RerankWorkers   int
	ScoreTimeout    time.Duration
	GenerateTimeout time.Duration
	SearchTimeout   time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            8,
		Breadth:         40,
		RRFConst:        60,
		MaxContextChars: orchestrate.DefaultMaxChars,
		RerankWorkers:   4,
		ScoreTimeout:    10 * time.Second,
		GenerateTimeout: 30 * time.Second,
		SearchTimeout:   5 * time.Second,
	}
}

// Service is the pipeline orchestration service.
type Service struct {
	versions *corpus.Manager
	reranker *rerank.Reranker
	gen      Generator
	verifier Verifier
	opts     Options
	logger   *slog.Logger
}

// New creates a new Service. The scorer backs the reranking stage; the
// generator and verifier back the answer and self-check stages.
func New(versions *corpus.Manager, scorer rerank.Scorer, gen Generator, verifier Verifier, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.Breadth <= 0 {
		opts.Breadth = DefaultOptions().Breadth
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultOptions().MaxContextChars
	}
	if opts.GenerateTimeout <= 0 {
		opts.GenerateTimeout = DefaultOptions().GenerateTimeout
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = DefaultOptions().SearchTimeout
	}
	return &Service{
		versions: versions,
		reranker: rerank.New(scorer, rerank.Options{
			Workers:     opts.RerankWorkers,
			CallTimeout: opts.ScoreTimeout,
		}, logger),
		gen:      gen,
		verifier: verifier,
		opts:     opts,
		logger:   logger,
	}
}

// Answer is the structured response from the pipeline.
type Answer struct {
	Text           string         `json:"text"`
	Intent         domain.Intent  `json:"intent"`
	Citations      []Citation     `json:"citations"`
	Issues         []domain.Issue `json:"issues"`
	Degraded       bool           `json:"degraded"`
	RerankFallback bool           `json:"rerank_fallback,omitempty"`
}

// Citation is one evidence entry backing the answer, keyed by the index
// the answer text cites.
type Citation struct {
	Index    int    `json:"index"`
	ChunkID  string `json:"chunk_id"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// answerState carries the intermediate products between pipeline stages.
type answerState struct {
	query     string
	rewritten string
	version   *corpus.Version
	retrieval retrieve.Result
	ranked    []rerank.RankedResult
	fellBack  bool
	packet    orchestrate.EvidencePacket
	text      string
}

// Answer runs the full pipeline for a user question. The stages are
// composed as traced fn stages so each one shows up as its own span.
func (s *Service) Answer(ctx context.Context, query string) (*Answer, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, fmt.Errorf("rag: %w", err)
	}

	version := s.versions.Active()
	if version == nil {
		return nil, fmt.Errorf("rag: no corpus loaded: %w", domain.ErrIndexUnavailable)
	}

	intent := orchestrate.DetectIntent(query)
	rewritten := orchestrate.RewriteQuery(query, intent)
	s.logger.Info("rag answer start",
		"query_len", len(query), "intent", intent, "version", version.Name())

	pipe := fn.Pipeline(
		fn.TracedStage("rag.retrieve", s.retrieveStage),
		fn.TracedStage("rag.rerank", s.rerankStage),
		fn.TracedStage("rag.compress", s.compressStage),
		fn.TracedStage("rag.generate", s.generateStage),
	)
	st, err := pipe(ctx, &answerState{query: query, rewritten: rewritten, version: version}).Unwrap()
	if err != nil {
		return nil, err
	}

	// Post-hoc verification. Checker failure means no issues, never a
	// failed answer.
	var issues []domain.Issue
	if s.verifier != nil {
		issues, err = s.verifier.Check(st.text, st.packet)
		if err != nil {
			s.logger.Warn("rag: verification inconclusive", "err", err)
			issues = nil
		}
	}

	citations := make([]Citation, len(st.packet.Items))
	for i, it := range st.packet.Items {
		citations[i] = Citation{
			Index:    it.Index,
			ChunkID:  it.ChunkID,
			Filename: it.Filename,
			Text:     it.Text,
		}
	}

	s.logger.Info("rag answer done",
		"answer_len", len(st.text), "citations", len(citations),
		"issues", len(issues), "degraded", st.retrieval.Degraded, "fallback", st.fellBack)

	return &Answer{
		Text:           st.text,
		Intent:         intent,
		Citations:      citations,
		Issues:         issues,
		Degraded:       st.retrieval.Degraded || version.Degraded(),
		RerankFallback: st.fellBack,
	}, nil
}

// retrieveStage runs hybrid retrieval over the active version.
func (s *Service) retrieveStage(ctx context.Context, st *answerState) fn.Result[*answerState] {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()

	hybrid := retrieve.New(st.version.Vector(), st.version.Lexical(), retrieve.Options{
		Breadth:  s.opts.Breadth,
		RRFConst: s.opts.RRFConst,
	}, s.logger)
	res, err := hybrid.Retrieve(ctx, st.rewritten, s.opts.Breadth)
	if err != nil {
		return fn.Err[*answerState](fmt.Errorf("rag: retrieve: %w", err))
	}
	s.logger.Info("rag retrieval done",
		"candidates", len(res.Candidates), "degraded", res.Degraded)
	st.retrieval = res
	return fn.Ok(st)
}

// rerankStage rescores the fused candidates; an unusable scorer falls
// back to fused order rather than failing the answer.
func (s *Service) rerankStage(ctx context.Context, st *answerState) fn.Result[*answerState] {
	items := make([]rerank.Item, 0, len(st.retrieval.Candidates))
	for i, c := range st.retrieval.Candidates {
		chunk, ok := st.version.Chunk(c.ChunkID)
		if !ok {
			continue
		}
		items = append(items, rerank.Item{ChunkID: chunk.ID, Text: chunk.Text, FusedRank: i})
	}

	ranked, err := s.reranker.Rerank(ctx, st.rewritten, items, s.opts.TopK)
	if err != nil {
		if !errors.Is(err, domain.ErrRerankFailed) {
			return fn.Err[*answerState](fmt.Errorf("rag: rerank: %w", err))
		}
		s.logger.Warn("rag: rerank failed, using fused order", "err", err)
		ranked = rerank.FusedFallback(items, s.opts.TopK)
		st.fellBack = true
	}
	st.ranked = ranked
	return fn.Ok(st)
}

// compressStage packs the ranked evidence into the context budget.
func (s *Service) compressStage(_ context.Context, st *answerState) fn.Result[*answerState] {
	st.packet = orchestrate.CompressContext(st.ranked, st.version.Chunk, s.opts.MaxContextChars)
	return fn.Ok(st)
}

// generateStage calls the generator with the original question.
func (s *Service) generateStage(ctx context.Context, st *answerState) fn.Result[*answerState] {
	ctx, cancel := context.WithTimeout(ctx, s.opts.GenerateTimeout)
	defer cancel()

	text, err := s.gen.Generate(ctx, st.query, st.packet)
	if err != nil {
		return fn.Err[*answerState](fmt.Errorf("rag: generate: %w: %w", domain.ErrGenerationFailed, err))
	}
	st.text = text
	return fn.Ok(st)
}

// Advise composes an advice query from a conversation transcript and an
// emotion label and runs the same pipeline.
func (s *Service) Advise(ctx context.Context, transcript, emotion string) (*Answer, error) {
	transcript = strings.TrimSpace(transcript)
	emotion = strings.TrimSpace(emotion)
	if transcript == "" && emotion == "" {
		return nil, fmt.Errorf("rag: advise: %w", domain.ErrEmptyQuery)
	}
	query := fmt.Sprintf("Transcript: %s\nEmotion: %s\nBased on this, give advice.", transcript, emotion)
	return s.Answer(ctx, query)
}
