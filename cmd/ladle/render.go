package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"ladle/internal/recipes"
)

// shortID returns the first uuid segment, enough to disambiguate in a
// personal collection while keeping tables narrow.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func recipeTable(list []*recipes.Recipe, total int) string {
	rows := make([][]string, 0, len(list))
	for _, recipe := range list {
		created := ""
		if !recipe.CreatedAt.IsZero() {
			created = recipe.CreatedAt.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, []string{
			shortID(recipe.ID),
			truncate(recipe.Title, 48),
			string(recipe.SourceKind),
			strconv.Itoa(len(recipe.Ingredients)),
			strconv.Itoa(len(recipe.Steps)),
			created,
		})
	}
	out := renderTable(
		[]string{"ID", "TITLE", "KIND", "INGREDIENTS", "STEPS", "CREATED"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
	return out + "\n" + fmt.Sprintf("%d of %d recipe(s)", len(list), total)
}

// formatIngredient renders one ingredient line: "2 cups flour (sifted)".
func formatIngredient(item recipes.Ingredient) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{item.Amount, item.Unit, item.Name} {
		if strings.TrimSpace(part) != "" {
			parts = append(parts, strings.TrimSpace(part))
		}
	}
	line := strings.Join(parts, " ")
	if strings.TrimSpace(item.Notes) != "" {
		line += " (" + strings.TrimSpace(item.Notes) + ")"
	}
	return line
}

func printRecipe(w io.Writer, recipe *recipes.Recipe) {
	fmt.Fprintln(w, recipe.Title)
	fmt.Fprintln(w, strings.Repeat("=", len(recipe.Title)))
	fmt.Fprintf(w, "ID:      %s\n", recipe.ID)
	fmt.Fprintf(w, "Source:  %s (%s)\n", recipe.SourceURL, recipe.SourceKind)
	if recipe.Servings != "" {
		fmt.Fprintf(w, "Serves:  %s\n", recipe.Servings)
	}
	times := make([]string, 0, 3)
	if recipe.PrepTime != "" {
		times = append(times, "prep "+recipe.PrepTime)
	}
	if recipe.CookTime != "" {
		times = append(times, "cook "+recipe.CookTime)
	}
	if recipe.TotalTime != "" {
		times = append(times, "total "+recipe.TotalTime)
	}
	if len(times) > 0 {
		fmt.Fprintf(w, "Time:    %s\n", strings.Join(times, ", "))
	}
	if len(recipe.Tags) > 0 {
		fmt.Fprintf(w, "Tags:    %s\n", strings.Join(recipe.Tags, ", "))
	}
	if recipe.Description != "" {
		fmt.Fprintf(w, "\n%s\n", recipe.Description)
	}
	if recipe.IntroText != "" {
		fmt.Fprintf(w, "\n%s\n", recipe.IntroText)
	}

	if len(recipe.Ingredients) > 0 {
		fmt.Fprintln(w, "\nIngredients:")
		for _, item := range recipe.Ingredients {
			fmt.Fprintf(w, "  - %s\n", formatIngredient(item))
		}
	}

	if len(recipe.Steps) > 0 {
		fmt.Fprintln(w, "\nSteps:")
		for _, step := range recipe.Steps {
			fmt.Fprintf(w, "  %d. %s\n", step.Number, step.Instruction)
			if step.Duration != "" {
				fmt.Fprintf(w, "     Duration: %s\n", step.Duration)
			}
			if step.Tips != "" {
				fmt.Fprintf(w, "     Tip: %s\n", step.Tips)
			}
		}
	}

	if recipe.OutroText != "" {
		fmt.Fprintf(w, "\n%s\n", recipe.OutroText)
	}

	if addresses := recipe.AudioAddresses(); len(addresses) > 0 {
		fmt.Fprintf(w, "\nNarration: %d clip(s) under /static/\n", len(addresses))
	}
}
