// Package mcp exposes the retrieval core's operations as MCP tools,
// the teacher's own thin layer over the SDK's server/transport/protocol
// primitives: build a *server.Server, register tools with a JSON schema
// and a handler, hand the server a transport.
package mcp

import (
	"context"
	"fmt"

	mcp "github.com/fredcamaral/gomcp-sdk"
	"github.com/fredcamaral/gomcp-sdk/protocol"
	"github.com/fredcamaral/gomcp-sdk/server"
	"github.com/fredcamaral/gomcp-sdk/transport"
	"github.com/go-viper/mapstructure/v2"

	"codecortex/internal/di"
	"codecortex/internal/formatting"
	"codecortex/internal/logging"
	"codecortex/internal/search"
	"codecortex/pkg/retrieval"
)

// toolRetrieve and toolSearch are the names spec §6 assigns the two
// optional MCP adapter tools.
const (
	toolRetrieve = "codebase_retrieve"
	toolSearch   = "codebase_search"
)

// Server wraps the container's Retriever and Executor as MCP tools.
type Server struct {
	container *di.Container
	mcpServer *server.Server
}

// NewServer builds the MCP tool surface over container, registering
// both tools. Serve attaches the stdio transport and starts it.
func NewServer(container *di.Container, name, version string) *Server {
	s := &Server{
		container: container,
		mcpServer: mcp.NewServer(name, version),
	}
	s.registerTools()
	return s
}

// Underlying returns the wrapped SDK server, for transport wiring and
// tests that need to call it directly.
func (s *Server) Underlying() *server.Server {
	return s.mcpServer
}

// Serve runs the MCP server over stdio until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.mcpServer.SetTransport(mcp.NewStdioTransport())
	return s.mcpServer.Start(ctx)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		toolRetrieve,
		"Retrieve a token-budgeted, ranked context assembled from the codebase for a natural-language query.",
		mcp.ObjectSchema("Retrieve parameters", map[string]interface{}{
			"query":     mcp.StringParam("Natural-language question about the codebase", true),
			"budget":    mcp.NumberParam("Maximum tokens the assembled context may use (default 8000)", false),
			"formatter": mcp.StringParam("Output shape: xml, markdown, plain, or human (default: raw context)", false),
		}, []string{"query"}),
	), mcp.ToolHandlerFunc(s.handleRetrieve))

	s.mcpServer.AddTool(mcp.NewTool(
		toolSearch,
		"Search the codebase by keyword, bypassing the embedding path. Optionally filter by unit type.",
		mcp.ObjectSchema("Search parameters", map[string]interface{}{
			"keyword": mcp.StringParam("Keyword or identifier fragment to search for", true),
			"type":    mcp.StringParam("Restrict to one unit type (e.g. service, controller, model)", false),
			"limit":   mcp.NumberParam("Maximum number of results (default 20)", false),
		}, []string{"keyword"}),
	), mcp.ToolHandlerFunc(s.handleSearch))
}

// retrieveParams is the decode target for codebase_retrieve's arguments.
type retrieveParams struct {
	Query     string `mapstructure:"query"`
	Budget    int    `mapstructure:"budget"`
	Formatter string `mapstructure:"formatter"`
}

// searchParams is the decode target for codebase_search's arguments.
type searchParams struct {
	Keyword string `mapstructure:"keyword"`
	Type    string `mapstructure:"type"`
	Limit   int    `mapstructure:"limit"`
}

func decodeParams(raw map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

func (s *Server) handleRetrieve(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	ctx = logging.WithTraceID(ctx, "")

	var p retrieveParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%s: invalid parameters: %w", toolRetrieve, err)
	}
	if p.Query == "" {
		return nil, fmt.Errorf("%s: query parameter is required and must be a non-empty string", toolRetrieve)
	}

	formatterName := formatting.Name(p.Formatter)

	result := s.container.Retriever.RetrieveWithFormatter(ctx, p.Query, p.Budget, formatterName)
	s.container.Logger.InfoContext(ctx, "mcp tool served retrieve", "tool", toolRetrieve, "degradation_tier", result.Trace.DegradationTier)
	return result, nil
}

func (s *Server) handleSearch(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	ctx = logging.WithTraceID(ctx, "")

	var p searchParams
	if err := decodeParams(params, &p); err != nil {
		return nil, fmt.Errorf("%s: invalid parameters: %w", toolSearch, err)
	}
	if p.Keyword == "" {
		return nil, fmt.Errorf("%s: keyword parameter is required and must be a non-empty string", toolSearch)
	}

	targetType := retrieval.NoTargetType
	if p.Type != "" {
		targetType = p.Type
	}

	limit := search.DefaultLimit
	if p.Limit > 0 {
		limit = p.Limit
	}

	classification := retrieval.Classification{
		Intent:     retrieval.IntentFind,
		Scope:      retrieval.ScopeFocused,
		TargetType: targetType,
		Keywords:   []string{p.Keyword},
		Query:      p.Keyword,
	}

	candidates, err := s.container.Executor.KeywordAndGraph(ctx, classification, limit)
	if err != nil {
		s.container.Logger.WarnContext(ctx, "mcp tool search failed", "tool", toolSearch, "error", err.Error())
		return nil, fmt.Errorf("%s: search failed: %w", toolSearch, err)
	}

	s.container.Logger.InfoContext(ctx, "mcp tool served search", "tool", toolSearch, "result_count", len(candidates))
	return map[string]interface{}{
		"keyword": p.Keyword,
		"type":    targetType,
		"results": candidates,
	}, nil
}
