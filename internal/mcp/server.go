package mcp

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/moodcue/moodcue/internal/models"
	"github.com/moodcue/moodcue/internal/prefs"
	"github.com/moodcue/moodcue/internal/recommend"
)

// Server exposes the recommendation engine as MCP tools, so a dialogue
// agent can drive retrieval without knowing the HTTP surface.
type Server struct {
	engine    *recommend.Engine
	tracker   *prefs.Tracker
	mcpServer *server.MCPServer
	log       zerolog.Logger
}

// NewServer creates an MCP server over the engine and tracker.
func NewServer(engine *recommend.Engine, tracker *prefs.Tracker, log zerolog.Logger) *Server {
	s := &Server{
		engine:  engine,
		tracker: tracker,
		log:     log.With().Str("component", "mcp").Logger(),
	}

	s.mcpServer = server.NewMCPServer(
		"Moodcue Movie Recommendations",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "search_movies",
		Description: "Search the movie catalog by free-text query using semantic similarity. Describe the mood, theme or story you are looking for.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language description of what to watch",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (default: 10)",
				},
				"min_rating": map[string]interface{}{
					"type":        "number",
					"description": "Only return movies rated at or above this value. Optional.",
				},
				"mood": map[string]interface{}{
					"type":        "string",
					"description": "Narrow results to one mood bucket (e.g. 治愈, 搞笑). Optional.",
				},
			},
			Required: []string{"query"},
		},
	}, s.handleSearchMovies)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "similar_movies",
		Description: "Find movies similar to a known one. The reference movie itself is excluded from the results.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"movie_id": map[string]interface{}{
					"type":        "string",
					"description": "ID of the reference movie",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (default: 5)",
				},
			},
			Required: []string{"movie_id"},
		},
	}, s.handleSimilarMovies)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "recommend",
		Description: "Get personalized recommendations for a user. Falls back to a popularity list when the user has no stored preferences.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "User to recommend for",
				},
				"mood": map[string]interface{}{
					"type":        "string",
					"description": "The user's current mood (e.g. 孤独, 开心). Optional.",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results (default: 10)",
				},
			},
			Required: []string{"user_id"},
		},
	}, s.handleRecommend)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "add_movie",
		Description: "Add a movie to the catalog. Title is required; vote_average/release_date/tags are accepted as aliases for rating/year/genres.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Movie title",
				},
				"director": map[string]interface{}{
					"type":        "string",
					"description": "Director name. Optional.",
				},
				"overview": map[string]interface{}{
					"type":        "string",
					"description": "Plot summary. Optional.",
				},
				"year": map[string]interface{}{
					"type":        "string",
					"description": "Release year or date. Optional.",
				},
				"rating": map[string]interface{}{
					"type":        "number",
					"description": "Rating between 0 and 10. Optional.",
				},
				"genres": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Genre labels. Optional.",
				},
				"mood_tag": map[string]interface{}{
					"type":        "string",
					"description": "Mood bucket this movie fits. Optional.",
				},
			},
			Required: []string{"title"},
		},
	}, s.handleAddMovie)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "record_interaction",
		Description: "Record one conversation turn for a user so their preferences accumulate. Call after every exchange about movies.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"user_id": map[string]interface{}{
					"type":        "string",
					"description": "User the turn belongs to",
				},
				"mood": map[string]interface{}{
					"type":        "string",
					"description": "Mood detected for this turn, if known. Optional.",
				},
				"utterance": map[string]interface{}{
					"type":        "string",
					"description": "What the user said. Optional; used for keyword extraction.",
				},
			},
			Required: []string{"user_id"},
		},
	}, s.handleRecordInteraction)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_status",
		Description: "Health check for the recommendation service",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
			Required:   []string{},
		},
	}, s.handleGetStatus)
}

// parseParams converts MCP request arguments to a struct
func parseParams(args interface{}, target interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

func (s *Server) handleSearchMovies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		Query     string  `json:"query"`
		K         int     `json:"k"`
		MinRating float64 `json:"min_rating"`
		Mood      string  `json:"mood"`
	}

	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if params.K <= 0 {
		params.K = 10
	}

	hits, err := s.engine.SearchByText(ctx, params.Query, params.K, models.MovieFilter{
		MinRating: params.MinRating,
		MoodTag:   params.Mood,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	result, _ := json.Marshal(hits)
	return mcp.NewToolResultText(string(result)), nil
}

func (s *Server) handleSimilarMovies(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		MovieID string `json:"movie_id"`
		K       int    `json:"k"`
	}

	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if params.K <= 0 {
		params.K = 5
	}

	hits, err := s.engine.SimilarToMovie(ctx, params.MovieID, params.K)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("similarity lookup failed: %v", err)), nil
	}

	result, _ := json.Marshal(hits)
	return mcp.NewToolResultText(string(result)), nil
}

func (s *Server) handleRecommend(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		UserID string `json:"user_id"`
		Mood   string `json:"mood"`
		K      int    `json:"k"`
	}

	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if params.K <= 0 {
		params.K = 10
	}

	movies, err := s.engine.Recommend(ctx, params.UserID, params.Mood, params.K)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("recommendation failed: %v", err)), nil
	}

	result, _ := json.Marshal(movies)
	return mcp.NewToolResultText(string(result)), nil
}

func (s *Server) handleAddMovie(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var ext models.ExternalMovie
	if err := parseParams(request.Params.Arguments, &ext); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	movie, err := s.engine.IngestMovie(ctx, ext)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add movie: %v", err)), nil
	}

	result, _ := json.Marshal(map[string]interface{}{
		"success": true,
		"id":      movie.ID,
		"title":   movie.Title,
	})
	return mcp.NewToolResultText(string(result)), nil
}

func (s *Server) handleRecordInteraction(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params struct {
		UserID    string `json:"user_id"`
		Mood      string `json:"mood"`
		Utterance string `json:"utterance"`
	}

	if err := parseParams(request.Params.Arguments, &params); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	updated, err := s.tracker.Observe(ctx, params.UserID, params.Mood, params.Utterance)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record interaction: %v", err)), nil
	}

	result, _ := json.Marshal(map[string]interface{}{
		"success":             true,
		"preferences_updated": updated,
	})
	return mcp.NewToolResultText(string(result)), nil
}

func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, _ := json.Marshal(map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"message": "Moodcue recommendation service is operational",
	})

	return mcp.NewToolResultText(string(result)), nil
}

// Serve starts the MCP server with stdio transport
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// GetMCPServer returns the underlying MCP server for use with other transports (e.g., SSE)
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}
