package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/mealrank/internal/ranking"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// printRanking writes one line per result with its component breakdown.
func printRanking(w io.Writer, results []ranking.RankedResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No candidates.")
		return
	}
	for i, r := range results {
		c := r.Components
		fmt.Fprintf(w, "%2d. %s  %s  (behavioral %.1f, macro %.1f, meal-prep %.0f, availability %.0f)\n",
			i+1,
			colorize(colorCyan, r.RecipeID),
			colorize(colorBold, fmt.Sprintf("%.2f", r.CompositeScore)),
			c.Behavioral, c.MacroFit, c.MealPrep, c.Availability,
		)
	}
}
