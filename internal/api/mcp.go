package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/mealrank/internal/privacy"
	"github.com/kalambet/mealrank/internal/ranking"
	"github.com/kalambet/mealrank/internal/recipe"
	"github.com/kalambet/mealrank/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store           *storage.Store
	Ranking         *ranking.Service
	MinAvailability int
}

// NewMCPServer creates an MCP server exposing the ranking engine as tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"mealrank",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("mealrank: personalized recipe ranking, meal-prep scoring and pantry-based filtering."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("rank_recipes",
			mcp.WithDescription("Rank stored recipes for a user. Personal history is only consulted when data_sharing is true."),
			mcp.WithString("user_id", mcp.Description("User to rank for"), mcp.Required()),
			mcp.WithArray("candidate_ids", mcp.Description("Recipe IDs to rank"), mcp.Required()),
			mcp.WithBoolean("data_sharing", mcp.Description("Allow use of the user's behavioral and preference data (default false)")),
			mcp.WithBoolean("analytics", mcp.Description("Allow analytics logging (default false)")),
			mcp.WithBoolean("location", mcp.Description("Allow use of purchase-location data (default false)")),
			mcp.WithString("weights", mcp.Description(`Optional JSON weight vector, e.g. {"behavioral":0.5,"macro_fit":0.3,"meal_prep":0.2,"availability":0}`)),
		),
		mcpRankRecipes(deps),
	)

	s.AddTool(
		mcp.NewTool("score_meal_prep",
			mcp.WithDescription("Score a recipe's batch-cooking and storage suitability from 0 to 100."),
			mcp.WithString("recipe_id", mcp.Description("ID of a stored recipe")),
			mcp.WithString("recipe", mcp.Description("Recipe JSON, used when recipe_id is not given")),
		),
		mcpScoreMealPrep(deps),
	)

	s.AddTool(
		mcp.NewTool("filter_by_availability",
			mcp.WithDescription("Keep the recipes whose ingredients the user has mostly bought before."),
			mcp.WithString("user_id", mcp.Description("User whose purchases are consulted"), mcp.Required()),
			mcp.WithArray("candidate_ids", mcp.Description("Recipe IDs to filter"), mcp.Required()),
			mcp.WithNumber("min_score", mcp.Description("Minimum availability score, 0-100")),
		),
		mcpFilterByAvailability(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"mealrank://weights",
			"Default Weights",
			mcp.WithResourceDescription("Weight vector applied when a ranking request supplies none"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceWeights(deps),
	)

	return s
}

func mcpRankRecipes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil || userID == "" {
			return mcpError("user_id is required"), nil
		}
		ids := req.GetStringSlice("candidate_ids", nil)

		var weights *ranking.Weights
		if raw := req.GetString("weights", ""); raw != "" {
			weights = &ranking.Weights{}
			if err := json.Unmarshal([]byte(raw), weights); err != nil {
				return mcpError(fmt.Sprintf("invalid weights JSON: %v", err)), nil
			}
		}

		settings := privacy.Settings{
			DataSharingEnabled:      req.GetBool("data_sharing", false),
			AnalyticsEnabled:        req.GetBool("analytics", false),
			LocationServicesEnabled: req.GetBool("location", false),
		}

		results, err := deps.Ranking.RankByIDs(ctx, userID, ids, settings, weights)
		if err != nil {
			if errors.Is(err, ranking.ErrInvalidWeights) {
				return mcpError(err.Error()), nil
			}
			return mcpError(fmt.Sprintf("ranking failed: %v", err)), nil
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpScoreMealPrep(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var rec recipe.Recipe
		if id := req.GetString("recipe_id", ""); id != "" {
			got, err := deps.Store.GetRecipe(ctx, id)
			if errors.Is(err, storage.ErrNotFound) {
				return mcpError(fmt.Sprintf("recipe %s not found", id)), nil
			}
			if err != nil {
				return mcpError(fmt.Sprintf("failed to load recipe: %v", err)), nil
			}
			rec = got
		} else if raw := req.GetString("recipe", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				return mcpError(fmt.Sprintf("invalid recipe JSON: %v", err)), nil
			}
		} else {
			return mcpError("recipe_id or recipe is required"), nil
		}

		return mcpText(fmt.Sprintf("%d", deps.Ranking.ScoreMealPrep(rec))), nil
	}
}

func mcpFilterByAvailability(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil || userID == "" {
			return mcpError("user_id is required"), nil
		}
		ids := req.GetStringSlice("candidate_ids", nil)
		minScore := req.GetInt("min_score", deps.MinAvailability)
		if minScore < 0 || minScore > 100 {
			return mcpError("min_score must be within [0,100]"), nil
		}

		kept, err := deps.Ranking.FilterByAvailability(ctx, userID, ids, minScore)
		if err != nil {
			return mcpError(fmt.Sprintf("availability filter failed: %v", err)), nil
		}

		b, err := json.Marshal(kept)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceWeights(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Ranking.DefaultWeights())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal weights: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
