package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codecortex/internal/assembler"
	"codecortex/internal/di"
	"codecortex/internal/embeddings"
	"codecortex/internal/logging"
	"codecortex/internal/ranker"
	"codecortex/internal/retriever"
	"codecortex/internal/search"
	"codecortex/internal/storage"
	"codecortex/pkg/codeunit"
	"codecortex/pkg/retrieval"
)

func newTestContainer(t *testing.T) *di.Container {
	t.Helper()
	metadata := storage.NewMemoryMetadataStore()
	graph := storage.NewMemoryGraphStore()
	vectors := storage.NewMemoryVectorStore(8)

	unit := &codeunit.Unit{
		Identifier: "order",
		Type:       codeunit.TypeService,
		FilePath:   "app/services/order.rb",
		SourceCode: "class Order\nend",
	}
	require.NoError(t, metadata.Upsert(context.Background(), unit))
	require.NoError(t, graph.Rebuild(context.Background(), []*codeunit.Unit{unit}))

	embedder := embeddings.NewMockProvider(8)
	executor := search.New(embedder, vectors, metadata, graph)
	rk := ranker.New()
	asm := assembler.New(metadata)
	logger := logging.NewNoOpLogger()
	rtr := retriever.New(executor, rk, asm, graph, metadata, "", logger)

	return &di.Container{
		Executor:  executor,
		Retriever: rtr,
		Logger:    logger,
	}
}

func TestHandleRetrieve_RequiresQuery(t *testing.T) {
	s := &Server{container: newTestContainer(t)}
	_, err := s.handleRetrieve(context.Background(), map[string]interface{}{})
	assert.Error(t, err)
}

func TestHandleRetrieve_ReturnsRetrievalResult(t *testing.T) {
	s := &Server{container: newTestContainer(t)}

	out, err := s.handleRetrieve(context.Background(), map[string]interface{}{"query": "order total"})
	require.NoError(t, err)

	result, ok := out.(*retrieval.RetrievalResult)
	require.True(t, ok)
	assert.NotNil(t, result)
}

func TestHandleSearch_RequiresKeyword(t *testing.T) {
	s := &Server{container: newTestContainer(t)}
	_, err := s.handleSearch(context.Background(), map[string]interface{}{})
	assert.Error(t, err)
}

func TestHandleSearch_ReturnsCandidates(t *testing.T) {
	s := &Server{container: newTestContainer(t)}

	out, err := s.handleSearch(context.Background(), map[string]interface{}{"keyword": "order"})
	require.NoError(t, err)

	response, ok := out.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "order", response["keyword"])
}

func TestHandleRetrieve_DecodesNumericBudgetFromJSONFloat(t *testing.T) {
	s := &Server{container: newTestContainer(t)}

	out, err := s.handleRetrieve(context.Background(), map[string]interface{}{
		"query":  "order total",
		"budget": float64(500),
	})
	require.NoError(t, err)

	result, ok := out.(*retrieval.RetrievalResult)
	require.True(t, ok)
	assert.NotNil(t, result)
}

func TestHandleSearch_RejectsMalformedLimit(t *testing.T) {
	s := &Server{container: newTestContainer(t)}

	_, err := s.handleSearch(context.Background(), map[string]interface{}{
		"keyword": "order",
		"limit":   "not-a-number",
	})
	assert.Error(t, err)
}
