// Package mcpserver bridges AI clients (Claude Code, Cursor) to the
// retrieval pipeline over the Model Context Protocol: search_articles
// runs the entity-weighted stage-1 retriever alone, search_images runs
// the full two-stage cascade for one query, and rerank exposes the
// standalone RRF fusion primitive over caller-supplied ranked lists.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/model"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/pipeline"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/rrf"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/internal/textindex"
	"github.com/PhamPhuHoa-23/Event-Based-Image-Retrieval/pkg/version"
)

// Server is the MCP front end for the retrieval pipeline.
type Server struct {
	mcp          *mcp.Server
	orchestrator *pipeline.Orchestrator
	textIndex    *textindex.Index
	logger       *slog.Logger
}

// NewServer builds an MCP server exposing the retrieval pipeline. text
// may be used directly for search_articles even when orchestrator also
// wraps it for the full cascade.
func NewServer(orchestrator *pipeline.Orchestrator, text *textindex.Index) (*Server, error) {
	if orchestrator == nil {
		return nil, errors.New("mcpserver: orchestrator is required")
	}
	if text == nil {
		return nil, errors.New("mcpserver: text index is required")
	}

	s := &Server{
		orchestrator: orchestrator,
		textIndex:    text,
		logger:       slog.Default(),
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    "retrieval-engine",
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP SDK server, e.g. to run it over
// stdio or an HTTP transport.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server over the named transport until ctx is canceled.
// Only "stdio" is currently supported.
func (s *Server) Serve(ctx context.Context, transport string) error {
	switch transport {
	case "stdio", "":
		s.logger.Info("starting MCP server", slog.String("transport", "stdio"))
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && err != context.Canceled {
			s.logger.Error("MCP server stopped with error", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("MCP server stopped")
		return nil
	default:
		return fmt.Errorf("mcpserver: unknown transport %q (supported: stdio)", transport)
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_articles",
		Description: "Runs the entity-weighted stage-1 article retriever for a caption and its extracted entities, returning the ranked article ID list alone (no image search).",
	}, s.searchArticlesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_images",
		Description: "Runs the full two-stage cascade for one query: stage-1 article retrieval, article-conditioned stage-2 image search across every active model family, rank-aware boosting, and two-level fusion. Returns the final ranked image ID list.",
	}, s.searchImagesHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "rerank",
		Description: "Fuses several already-ranked ID lists for the same queries via reciprocal rank fusion, in anti-biased normal mode or per-query adaptive-cap mode.",
	}, s.rerankHandler)

	s.logger.Info("MCP tools registered", slog.Int("count", 3))
}

// EntityInput mirrors model.Entity for the MCP JSON schema.
type EntityInput struct {
	Text  string `json:"text" jsonschema:"the entity's surface text"`
	Label string `json:"label" jsonschema:"the entity's NER label, e.g. PERSON, GPE, DATE"`
}

// SearchArticlesInput is the input schema for search_articles.
type SearchArticlesInput struct {
	QueryID  string        `json:"query_id" jsonschema:"the query identifier"`
	Caption  string        `json:"caption" jsonschema:"the query caption"`
	Entities []EntityInput `json:"entities,omitempty" jsonschema:"entities extracted from the caption"`
	Limit    int           `json:"limit,omitempty" jsonschema:"maximum number of articles to return, default 1000"`
}

// RankedIDOutput is one (id, score, rank) triple in a returned list.
type RankedIDOutput struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// SearchArticlesOutput is the output schema for search_articles.
type SearchArticlesOutput struct {
	Articles []RankedIDOutput `json:"articles"`
}

func (s *Server) searchArticlesHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchArticlesInput) (
	*mcp.CallToolResult, SearchArticlesOutput, error,
) {
	if input.Caption == "" {
		return nil, SearchArticlesOutput{}, errors.New("caption parameter is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 1000
	}

	q := model.Query{ID: input.QueryID, Caption: input.Caption, Entities: toEntities(input.Entities)}
	list, err := s.textIndex.Search(ctx, q, limit)
	if err != nil {
		return nil, SearchArticlesOutput{}, err
	}

	return nil, SearchArticlesOutput{Articles: toRankedOutput(list)}, nil
}

// SearchImagesInput is the input schema for search_images.
type SearchImagesInput struct {
	QueryID     string        `json:"query_id" jsonschema:"the query identifier"`
	Caption     string        `json:"caption" jsonschema:"the query caption"`
	Entities    []EntityInput `json:"entities,omitempty" jsonschema:"entities extracted from the caption"`
	HasArticles bool          `json:"has_articles,omitempty" jsonschema:"whether stage-1 article retrieval is expected to find candidates for this query"`
}

// SearchImagesOutput is the output schema for search_images.
type SearchImagesOutput struct {
	Images []RankedIDOutput `json:"images"`
}

func (s *Server) searchImagesHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchImagesInput) (
	*mcp.CallToolResult, SearchImagesOutput, error,
) {
	if input.Caption == "" {
		return nil, SearchImagesOutput{}, errors.New("caption parameter is required")
	}

	q := model.Query{
		ID:          input.QueryID,
		Caption:     input.Caption,
		Entities:    toEntities(input.Entities),
		HasArticles: input.HasArticles,
	}

	lists, err := s.orchestrator.Run(ctx, []model.Query{q})
	if err != nil {
		return nil, SearchImagesOutput{}, err
	}

	return nil, SearchImagesOutput{Images: toRankedOutput(lists[0])}, nil
}

// RerankFileInput is one ranked-list source for the rerank tool.
type RerankFileInput struct {
	Name         string              `json:"name" jsonschema:"a label for this source, e.g. a submission filename"`
	QueryEntries map[string][]string `json:"query_entries" jsonschema:"per query ID, an ordered list of result IDs"`
}

// RerankInput is the input schema for rerank.
type RerankInput struct {
	Files    []RerankFileInput `json:"files" jsonschema:"the ranked lists to fuse"`
	QueryIDs []string          `json:"query_ids" jsonschema:"the queries to produce fused output for"`
	K        float64           `json:"k,omitempty" jsonschema:"the RRF constant, default 60"`
	TopN     int               `json:"top_n" jsonschema:"output width per query"`
	Adaptive bool              `json:"adaptive,omitempty" jsonschema:"use the per-query adaptive cap instead of the fixed top_n"`
}

// RerankOutput is the output schema for rerank.
type RerankOutput struct {
	Results map[string][]string `json:"results"`
}

func (s *Server) rerankHandler(_ context.Context, _ *mcp.CallToolRequest, input RerankInput) (
	*mcp.CallToolResult, RerankOutput, error,
) {
	if len(input.Files) == 0 {
		return nil, RerankOutput{}, errors.New("at least one file is required")
	}
	if len(input.QueryIDs) == 0 {
		return nil, RerankOutput{}, errors.New("query_ids is required")
	}

	k := input.K
	if k <= 0 {
		k = 60
	}

	files := make([]rrf.FileResult, len(input.Files))
	for i, f := range input.Files {
		files[i] = rrf.FileResult{Name: f.Name, QueryEntries: f.QueryEntries}
	}

	results := rrf.Rerank(rrf.Config{K: k, TopN: input.TopN, Adaptive: input.Adaptive}, files, input.QueryIDs)
	return nil, RerankOutput{Results: results}, nil
}

func toEntities(in []EntityInput) []model.Entity {
	if len(in) == 0 {
		return nil
	}
	out := make([]model.Entity, len(in))
	for i, e := range in {
		out[i] = model.Entity{Text: e.Text, Label: model.EntityLabel(e.Label)}
	}
	return out
}

func toRankedOutput(list model.RankedList) []RankedIDOutput {
	out := make([]RankedIDOutput, len(list.Entries))
	for i, e := range list.Entries {
		out[i] = RankedIDOutput{ID: e.ID, Score: e.Score, Rank: e.Rank}
	}
	return out
}
