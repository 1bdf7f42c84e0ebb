package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jptamayo/juris-rag/internal/core/ports"
	"github.com/jptamayo/juris-rag/internal/infrastructure/resilience"
)

// Client talks to an Ollama server for embeddings and completions. Retry and
// breaker policy applies here, at the transport boundary, never inside the
// retrieval core.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	guard      *resilience.Guard
}

func New(baseURL, genModel, embedModel string, guard *resilience.Guard) *Client {
	if guard == nil {
		guard = resilience.NewGuard(resilience.DefaultPolicy())
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		guard:      guard,
	}
}

// Embedder adapts the embed endpoint. A model returning no vectors yields
// (nil, nil): the caller treats that as "no embedding available" and degrades
// to an empty result set.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.guard.Do(ctx, "embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyTransportError)
	if err != nil {
		return nil, err
	}
	if len(response.Embeddings) == 0 {
		return nil, nil
	}
	return response.Embeddings[0], nil
}

// Generator adapts the generate endpoint to the completion contract used by
// the optional snippet and title-classifier paths.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Complete(ctx context.Context, systemPrompt, userPrompt string, opts ports.GenerateOptions) (string, error) {
	request := map[string]any{
		"model":  g.client.genModel,
		"prompt": userPrompt,
		"stream": false,
	}
	if systemPrompt != "" {
		request["system"] = systemPrompt
	}
	options := map[string]any{"temperature": opts.Temperature}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}
	request["options"] = options

	var response struct {
		Response string `json:"response"`
	}
	err := g.client.guard.Do(ctx, "generate", func(ctx context.Context) error {
		return g.client.postJSON(ctx, "/api/generate", request, &response, "generate")
	}, classifyTransportError)
	if err != nil {
		return "", fmt.Errorf("ollama complete: %w", err)
	}
	return strings.TrimSpace(response.Response), nil
}
