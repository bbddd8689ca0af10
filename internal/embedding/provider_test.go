package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphindex/core/internal/errs"
	"github.com/graphindex/core/internal/retry"
)

type fakeProvider struct {
	dimension int
	model     string
	calls     [][]string
	embedFn   func(ctx context.Context, texts []string) ([][]float32, error)
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	return f.embedFn(ctx, texts)
}
func (f *fakeProvider) Dimension() int { return f.dimension }
func (f *fakeProvider) Model() string  { return f.model }

func echoVectors(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out
}

func TestEmbedBatchedReturnsNilForEmptyInput(t *testing.T) {
	provider := &fakeProvider{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		return echoVectors(texts), nil
	}}
	client := NewClient(provider)

	vectors, err := client.EmbedBatched(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
	assert.Empty(t, provider.calls)
}

func TestEmbedBatchedSplitsAtBatchSize(t *testing.T) {
	provider := &fakeProvider{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		return echoVectors(texts), nil
	}}
	client := NewClient(provider)

	texts := make([]string, EmbeddingBatchSize+1)
	for i := range texts {
		texts[i] = "t"
	}

	vectors, err := client.EmbedBatched(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vectors, len(texts))
	require.Len(t, provider.calls, 2)
	assert.Len(t, provider.calls[0], EmbeddingBatchSize)
	assert.Len(t, provider.calls[1], 1)
}

func TestEmbedBatchedErrorsOnShortVectorArray(t *testing.T) {
	provider := &fakeProvider{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		return echoVectors(texts)[:len(texts)-1], nil
	}}
	client := NewClient(provider)

	_, err := client.EmbedBatched(context.Background(), []string{"a", "b"})
	var verr *errs.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestEmbedBatchedRetriesRetryableProviderErrors(t *testing.T) {
	attempts := 0
	provider := &fakeProvider{embedFn: func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 2 {
			return nil, &errs.ConnectionError{Backend: "voyage", Cause: errors.New("timeout")}
		}
		return echoVectors(texts), nil
	}}
	client := NewClient(provider).WithPolicy(retry.Policy{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1})

	vectors, err := client.EmbedBatched(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vectors, 1)
	assert.Equal(t, 2, attempts)
}

func TestClientDimensionAndModelDelegateToProvider(t *testing.T) {
	provider := &fakeProvider{dimension: 1024, model: "voyage-4-large"}
	client := NewClient(provider)
	assert.Equal(t, 1024, client.Dimension())
	assert.Equal(t, "voyage-4-large", client.Model())
}
