// Package oai backs the pipeline's three model roles with the OpenAI API:
// embedding, relevance scoring, and answer generation. All calls go
// through a shared rate limiter and circuit breaker.
package oai

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/PathwiseAI/pathwise-engine/engine/orchestrate"
	"github.com/PathwiseAI/pathwise-engine/pkg/resilience"
)

const answerSystemPrompt = `You are a precise assistant.
- Use ONLY provided context to answer.
- If missing info, say what is missing.
- Cite sources inline as [n] where n indexes the context list.`

const scoreSystemPrompt = `You rate how relevant a passage is to a query.
Reply with a single number between 0 and 1, nothing else.`

// Options configures the OpenAI client.
type Options struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	ChatModel  string
	// RatePerSec bounds outbound calls across all three roles.
	RatePerSec float64
	Burst      int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		EmbedModel: string(openai.EmbeddingModelTextEmbedding3Small),
		ChatModel:  string(openai.ChatModelGPT4oMini),
		RatePerSec: 10,
		Burst:      20,
	}
}

// Client implements the embedder, scorer, and generator contracts over one
// OpenAI connection.
type Client struct {
	api     openai.Client
	opts    Options
	limiter *resilience.Limiter
	breaker *resilience.Breaker
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.EmbedModel == "" {
		opts.EmbedModel = DefaultOptions().EmbedModel
	}
	if opts.ChatModel == "" {
		opts.ChatModel = DefaultOptions().ChatModel
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = DefaultOptions().RatePerSec
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultOptions().Burst
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &Client{
		api:     openai.NewClient(reqOpts...),
		opts:    opts,
		limiter: resilience.NewLimiter(resilience.LimiterOpts{Rate: opts.RatePerSec, Burst: opts.Burst}),
		breaker: resilience.NewBreaker(resilience.DefaultBreakerOpts),
	}
}

// Embed embeds a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var resp *openai.CreateEmbeddingResponse
	err := c.guarded(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Model: openai.EmbeddingModel(c.opts.EmbedModel),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("oai: embed %d texts: %w", len(texts), err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("oai: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

// Score rates the relevance of a passage to a query in [0, 1].
func (c *Client) Score(ctx context.Context, query, text string) (float64, error) {
	user := fmt.Sprintf("Query: %s\n\nPassage:\n%s", query, text)
	reply, err := c.chat(ctx, scoreSystemPrompt, user, 0)
	if err != nil {
		return 0, fmt.Errorf("oai: score: %w", err)
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(reply), 64)
	if err != nil {
		return 0, fmt.Errorf("oai: score: unparseable reply %q: %w", reply, err)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, nil
}

// Generate produces the answer from the query and the evidence packet.
func (c *Client) Generate(ctx context.Context, query string, packet orchestrate.EvidencePacket) (string, error) {
	ctxTxt := packet.Render()
	if packet.Empty() {
		ctxTxt = "(no evidence retrieved)"
	}
	user := fmt.Sprintf("Question: %s\n\nContext:\n%s\n\nAnswer with citations like [1], [2].", query, ctxTxt)

	reply, err := c.chat(ctx, answerSystemPrompt, user, 0.2)
	if err != nil {
		return "", fmt.Errorf("oai: generate: %w", err)
	}
	return reply, nil
}

func (c *Client) chat(ctx context.Context, system, user string, temperature float64) (string, error) {
	var resp *openai.ChatCompletion
	err := c.guarded(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(user),
			},
			Model:       openai.ChatModel(c.opts.ChatModel),
			Temperature: openai.Float(temperature),
		})
		return err
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// guarded runs a remote call behind the rate limiter and circuit breaker.
func (c *Client) guarded(ctx context.Context, f func(context.Context) error) error {
	return c.breaker.Call(ctx, func(ctx context.Context) error {
		return c.limiter.CallWait(ctx, f)
	})
}
