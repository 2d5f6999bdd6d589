package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/mealrank/internal/config"
	"github.com/kalambet/mealrank/internal/privacy"
	"github.com/kalambet/mealrank/internal/ranking"
	"github.com/kalambet/mealrank/internal/recipe"
)

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseWeights reads "behavioral,macro_fit,meal_prep[,availability]".
func parseWeights(s string) (*ranking.Weights, error) {
	parts := splitList(s)
	if len(parts) != 3 && len(parts) != 4 {
		return nil, fmt.Errorf("weights must have 3 or 4 comma-separated values, got %d", len(parts))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid weight %q: %w", p, err)
		}
		vals[i] = v
	}
	w := &ranking.Weights{Behavioral: vals[0], MacroFit: vals[1], MealPrep: vals[2], Availability: vals[3]}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func readRecipeFile(path string) (recipe.Recipe, error) {
	var r recipe.Recipe
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("reading recipe file: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parsing recipe file: %w", err)
	}
	return r, nil
}

func privacyFlags(cmd *cobra.Command) privacy.Settings {
	dataSharing, _ := cmd.Flags().GetBool("data-sharing")
	analytics, _ := cmd.Flags().GetBool("analytics")
	location, _ := cmd.Flags().GetBool("location")
	return privacy.Settings{
		DataSharingEnabled:      dataSharing,
		AnalyticsEnabled:        analytics,
		LocationServicesEnabled: location,
	}
}

// --- rank ---

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank stored recipes for a user",
	Long: `Rank stored recipes for a user.

Personal history is only used when --data-sharing is set; purchase
history additionally needs --location.

Examples:
  mealrank rank --user u1 --ids r1,r2,r3
  mealrank rank --user u1 --ids r1,r2 --data-sharing --weights 0.6,0.2,0.2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		ids := splitList(flagString(cmd, "ids"))
		if userID == "" || len(ids) == 0 {
			return fmt.Errorf("--user and --ids are required")
		}

		req := map[string]any{
			"user_id":       userID,
			"candidate_ids": ids,
		}
		if raw, _ := cmd.Flags().GetString("weights"); raw != "" {
			w, err := parseWeights(raw)
			if err != nil {
				return err
			}
			req["weights"] = w
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.postPrivate(cmd.Context(), "/rank", req, privacyFlags(cmd))
		if err != nil {
			return err
		}

		var results []ranking.RankedResult
		if err := decodeJSON(resp, &results); err != nil {
			return err
		}
		printRanking(cmd.OutOrStdout(), results)
		return nil
	},
}

func init() {
	rankCmd.Flags().String("user", "", "user to rank for")
	rankCmd.Flags().String("ids", "", "comma-separated candidate recipe IDs")
	rankCmd.Flags().String("weights", "", "behavioral,macro_fit,meal_prep[,availability] summing to 1")
	rankCmd.Flags().Bool("data-sharing", false, "allow use of behavioral and preference data")
	rankCmd.Flags().Bool("analytics", false, "allow analytics logging")
	rankCmd.Flags().Bool("location", false, "allow use of purchase-location data")
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// --- mealprep ---

var mealprepCmd = &cobra.Command{
	Use:   "mealprep",
	Short: "Meal-prep suitability scoring",
}

var mealprepScoreCmd = &cobra.Command{
	Use:   "score [recipe-id]",
	Short: "Score a stored recipe, or a recipe JSON file with --file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")

		req := map[string]any{}
		switch {
		case file != "":
			r, err := readRecipeFile(file)
			if err != nil {
				return err
			}
			req["recipe"] = r
		case len(args) == 1:
			req["recipe_id"] = args[0]
		default:
			return fmt.Errorf("a recipe ID or --file is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/mealprep/score", req)
		if err != nil {
			return err
		}

		var result struct {
			RecipeID string `json:"recipe_id"`
			Score    int    `json:"score"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %d\n", colorize(colorCyan, result.RecipeID), result.Score)
		return nil
	},
}

var mealprepRescoreCmd = &cobra.Command{
	Use:   "rescore [recipe-id]",
	Short: "Queue a background rescore of one recipe, or all recipes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := map[string]any{}
		if len(args) == 1 {
			req["recipe_id"] = args[0]
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/mealprep/rescore", req)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Queued job %s", result["job_id"])
		return nil
	},
}

func init() {
	mealprepScoreCmd.Flags().String("file", "", "recipe JSON file to score without storing it")
	mealprepCmd.AddCommand(mealprepScoreCmd)
	mealprepCmd.AddCommand(mealprepRescoreCmd)
}

// --- availability ---

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Ingredient availability filtering",
}

var availabilityFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Keep recipes whose ingredients the user has mostly bought before",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, _ := cmd.Flags().GetString("user")
		ids := splitList(flagString(cmd, "ids"))
		if userID == "" || len(ids) == 0 {
			return fmt.Errorf("--user and --ids are required")
		}

		req := map[string]any{
			"user_id":       userID,
			"candidate_ids": ids,
		}
		if cmd.Flags().Changed("min-score") {
			minScore, _ := cmd.Flags().GetInt("min-score")
			req["min_score"] = minScore
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/availability/filter", req)
		if err != nil {
			return err
		}

		var result struct {
			RecipeIDs []string `json:"recipe_ids"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		if len(result.RecipeIDs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No recipes pass the filter.")
			return nil
		}
		for _, id := range result.RecipeIDs {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

func init() {
	availabilityFilterCmd.Flags().String("user", "", "user whose purchases are consulted")
	availabilityFilterCmd.Flags().String("ids", "", "comma-separated candidate recipe IDs")
	availabilityFilterCmd.Flags().Int("min-score", ranking.DefaultMinAvailability, "minimum availability score (0-100)")
	availabilityCmd.AddCommand(availabilityFilterCmd)
}

// --- recipe ---

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Manage stored recipes",
}

var recipeAddCmd = &cobra.Command{
	Use:   "add <file.json>",
	Short: "Store a recipe from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := readRecipeFile(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), "/recipes", r)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Stored recipe %s", result["id"])
		return nil
	},
}

var recipeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a stored recipe as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/recipes/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var result any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	recipeCmd.AddCommand(recipeAddCmd)
	recipeCmd.AddCommand(recipeShowCmd)
}

// --- feedback ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback <like|dislike|save|ate> <user-id> <recipe-id>",
	Short: "Record a behavioral signal",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, userID, recipeID := args[0], args[1], args[2]
		body := map[string]any{"user_id": userID, "recipe_id": recipeID}

		var path string
		switch kind {
		case "like":
			path, body["liked"] = "/feedback", true
		case "dislike":
			path, body["disliked"] = "/feedback", true
		case "save":
			path = "/saved"
		case "ate":
			path = "/meal-history"
			if fb, _ := cmd.Flags().GetString("verdict"); fb != "" {
				body["feedback"] = fb
			}
		default:
			return fmt.Errorf("unknown feedback kind %q (want like, dislike, save or ate)", kind)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post(cmd.Context(), path, body)
		if err != nil {
			return err
		}

		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Recorded %s for %s", kind, recipeID)
		return nil
	},
}

func init() {
	feedbackCmd.Flags().String("verdict", "", "for ate: Liked or Disliked")
}

// --- goals ---

var goalsCmd = &cobra.Command{
	Use:   "goals",
	Short: "Manage daily macro goals",
}

var goalsSetCmd = &cobra.Command{
	Use:   "set <user-id>",
	Short: "Set a user's daily macro goals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var g recipe.MacroGoals
		g.Calories, _ = cmd.Flags().GetFloat64("calories")
		g.Protein, _ = cmd.Flags().GetFloat64("protein")
		g.Carbs, _ = cmd.Flags().GetFloat64("carbs")
		g.Fat, _ = cmd.Flags().GetFloat64("fat")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put(cmd.Context(), "/macro-goals/"+url.PathEscape(args[0]), g)
		if err != nil {
			return err
		}

		if err := decodeJSON(resp, &g); err != nil {
			return err
		}
		printSuccess("Goals for %s: %.0f kcal, %.0fg protein, %.0fg carbs, %.0fg fat",
			args[0], g.Calories, g.Protein, g.Carbs, g.Fat)
		return nil
	},
}

var goalsShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show a user's daily macro goals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/macro-goals/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}

		var g recipe.MacroGoals
		if err := decodeJSON(resp, &g); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "  %s %.0f\n", colorize(colorBold, "calories:"), g.Calories)
		fmt.Fprintf(out, "  %s %.0f\n", colorize(colorBold, "protein:"), g.Protein)
		fmt.Fprintf(out, "  %s %.0f\n", colorize(colorBold, "carbs:"), g.Carbs)
		fmt.Fprintf(out, "  %s %.0f\n", colorize(colorBold, "fat:"), g.Fat)
		return nil
	},
}

func init() {
	goalsSetCmd.Flags().Float64("calories", 0, "daily calories")
	goalsSetCmd.Flags().Float64("protein", 0, "daily protein (g)")
	goalsSetCmd.Flags().Float64("carbs", 0, "daily carbohydrates (g)")
	goalsSetCmd.Flags().Float64("fat", 0, "daily fat (g)")
	goalsCmd.AddCommand(goalsSetCmd)
	goalsCmd.AddCommand(goalsShowCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configSetTokenCmd = &cobra.Command{
	Use:   "set-token <token>",
	Short: "Store the API bearer token in the secrets file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SetToken(args[0]); err != nil {
			return err
		}
		printSuccess("API token stored")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configSetTokenCmd)
}
