// Package embedding defines the abstract embedding provider contract
// (E1) and one concrete client against it, adapted from the teacher's
// Voyage AI client. Per spec, only the contract and this one reference
// implementation are in scope — alternative providers (OpenAI, local,
// Ollama) are left to the caller's own Provider implementation.
package embedding

import (
	"context"
	"time"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/retry"
)

// EmbeddingBatchSize is the lowest common max across providers; the
// pipeline never sends more texts than this in a single provider call
// (§4.1).
const EmbeddingBatchSize = 100

// DefaultRequestTimeout bounds a single embedding HTTP call (§5).
const DefaultRequestTimeout = 30 * time.Second

// Provider is the abstract embedding contract every concrete client
// implements. Embed must preserve input order: embeddings[i]
// corresponds to texts[i].
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// Client wraps a Provider with retry+timeout policy, so callers never
// have to re-implement the backoff/timeout wiring per provider.
type Client struct {
	provider Provider
	timeout  time.Duration
	policy   retry.Policy
}

// NewClient wraps provider with the default timeout and retry policy.
func NewClient(provider Provider) *Client {
	return &Client{
		provider: provider,
		timeout:  DefaultRequestTimeout,
		policy:   retry.DefaultPolicy(),
	}
}

// WithTimeout overrides the per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// WithPolicy overrides the retry policy.
func (c *Client) WithPolicy(p retry.Policy) *Client {
	c.policy = p
	return c
}

func (c *Client) Dimension() int { return c.provider.Dimension() }
func (c *Client) Model() string  { return c.provider.Model() }

// EmbedBatched splits texts into EmbeddingBatchSize-sized calls,
// retrying each batch under the client's policy, and errors if any
// batch returns a short vector array (§8 "lined up by array index").
func (c *Client) EmbedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batchSize := EmbeddingBatchSize
	var all [][]float32

	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		var vectors [][]float32
		err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
			cctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()

			v, err := c.provider.Embed(cctx, batch)
			if err != nil {
				return err
			}
			vectors = v
			return nil
		})
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, &errs.ValidationError{
				Field:   "embeddings",
				Message: "provider returned a short vector array for the batch",
			}
		}

		all = append(all, vectors...)
	}

	return all, nil
}
