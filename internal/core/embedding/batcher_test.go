package embedding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/contexta-ingest/internal/core"
)

type MockProvider struct {
	mock.Mock
	dim int
}

func (m *MockProvider) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func (m *MockProvider) Dimension() int { return m.dim }

func vec(x float32) []float32 { return []float32{x, x, x} }

func TestEmbedBatch_ReinterleavesBlanks(t *testing.T) {
	p := &MockProvider{dim: 3}
	p.On("EmbedTexts", mock.Anything, []string{"alpha", "beta"}).Return([][]float32{vec(1), vec(2)}, nil).Once()
	p.On("EmbedTexts", mock.Anything, []string{"gamma"}).Return([][]float32{vec(3)}, nil).Once()

	b, err := New(p, Options{BatchSize: 2})
	require.NoError(t, err)

	out, err := b.EmbedBatch(context.Background(), []string{"alpha", "", "  \n", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, out, 5)
	assert.Equal(t, vec(1), out[0])
	assert.Nil(t, out[1])
	assert.Nil(t, out[2])
	assert.Equal(t, vec(2), out[3])
	assert.Equal(t, vec(3), out[4])
	p.AssertExpectations(t)
}

func TestEmbedBatch_AllBlank(t *testing.T) {
	p := &MockProvider{dim: 3}
	b, err := New(p, Options{BatchSize: 4})
	require.NoError(t, err)

	out, err := b.EmbedBatch(context.Background(), []string{"", " ", "\t"})
	require.NoError(t, err)
	assert.Len(t, out, 3)
	for _, v := range out {
		assert.Nil(t, v)
	}
	p.AssertNotCalled(t, "EmbedTexts", mock.Anything, mock.Anything)
}

func TestEmbedBatch_BatchFailureCarriesRange(t *testing.T) {
	p := &MockProvider{dim: 3}
	p.On("EmbedTexts", mock.Anything, []string{"a", "b"}).Return([][]float32{vec(1), vec(2)}, nil).Once()
	p.On("EmbedTexts", mock.Anything, []string{"c", "d"}).Return(nil, errors.New("quota exceeded")).Once()

	b, err := New(p, Options{BatchSize: 2})
	require.NoError(t, err)

	out, err := b.EmbedBatch(context.Background(), []string{"a", "b", "", "c", "d", "e"})
	assert.Nil(t, out)

	var embErr *core.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 3, embErr.Start)
	assert.Equal(t, 5, embErr.End)
	assert.Contains(t, err.Error(), "quota exceeded")
	p.AssertNotCalled(t, "EmbedTexts", mock.Anything, []string{"e"})
}

func TestEmbedBatch_DimensionMismatch(t *testing.T) {
	p := &MockProvider{dim: 3}
	p.On("EmbedTexts", mock.Anything, []string{"a"}).Return([][]float32{{1, 2}}, nil)

	b, err := New(p, Options{BatchSize: 8})
	require.NoError(t, err)

	_, err = b.EmbedBatch(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	p := &MockProvider{dim: 3}
	p.On("EmbedTexts", mock.Anything, []string{"a", "b"}).Return([][]float32{vec(1)}, nil)

	b, err := New(p, Options{BatchSize: 8})
	require.NoError(t, err)

	_, err = b.EmbedBatch(context.Background(), []string{"a", "b"})
	var embErr *core.EmbeddingError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, 0, embErr.Start)
	assert.Equal(t, 2, embErr.End)
}

func TestEmbedBatch_TruncatesLongInputs(t *testing.T) {
	long := strings.Repeat("Retrieval systems need bounded inputs. ", 200)
	p := &MockProvider{dim: 3}
	p.On("EmbedTexts", mock.Anything, mock.MatchedBy(func(in []string) bool {
		return len(in) == 1 && len(in[0]) < len(long) && strings.HasPrefix(long, in[0])
	})).Return([][]float32{vec(1)}, nil)

	b, err := New(p, Options{BatchSize: 8, MaxInputTokens: 100})
	require.NoError(t, err)

	out, err := b.EmbedBatch(context.Background(), []string{long})
	require.NoError(t, err)
	assert.Equal(t, vec(1), out[0])
	p.AssertExpectations(t)
}

func TestEmbedBatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, rps := range []float64{0, 5} {
		p := &MockProvider{dim: 3}
		b, err := New(p, Options{BatchSize: 8, RequestsPerSecond: rps})
		require.NoError(t, err)

		_, err = b.EmbedBatch(ctx, []string{"a"})
		assert.ErrorIs(t, err, context.Canceled)
		p.AssertNotCalled(t, "EmbedTexts", mock.Anything, mock.Anything)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultOptions())
	assert.Error(t, err)

	_, err = New(&MockProvider{dim: 3}, Options{})
	assert.Error(t, err)

	_, err = New(&MockProvider{dim: 0}, DefaultOptions())
	assert.Error(t, err)

	b, err := New(&MockProvider{dim: 768}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 768, b.EmbeddingDimension())
	assert.Equal(t, 32, b.BatchSize())
}
