package structurer

import (
	"encoding/json"
	"strconv"
	"strings"

	"ladle/internal/recipes"
)

// stripFences removes a leading ```json / ``` fence and a trailing ```
// from a model response.
func stripFences(response string) string {
	cleaned := strings.TrimSpace(response)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = cleaned[len("```json"):]
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = cleaned[len("```"):]
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = cleaned[:len(cleaned)-len("```")]
	}
	return strings.TrimSpace(cleaned)
}

// repairJSON decodes raw as a JSON object, mending the damage truncated
// generations typically show: stray fences, a trailing half-written
// element, an unterminated string, and missing closing brackets. The
// bracket deficit closes arrays before objects because the schema nests
// step objects inside a steps array inside the root object.
func repairJSON(raw string) (map[string]any, bool) {
	if data, ok := decodeObject(raw); ok {
		return data, true
	}

	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		lines := strings.Split(raw, "\n")
		lines = lines[1:]
		if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "```") {
			lines = lines[:len(lines)-1]
		}
		raw = strings.Join(lines, "\n")
	}

	raw = strings.TrimRight(raw, " \t\r\n")
	raw = strings.TrimRight(raw, ",")

	if strings.Count(raw, `"`)%2 != 0 {
		raw += `"`
	}

	bracketDeficit := strings.Count(raw, "[") - strings.Count(raw, "]")
	braceDeficit := strings.Count(raw, "{") - strings.Count(raw, "}")
	if bracketDeficit > 0 {
		raw += strings.Repeat("]", bracketDeficit)
	}
	if braceDeficit > 0 {
		raw += strings.Repeat("}", braceDeficit)
	}

	return decodeObject(raw)
}

func decodeObject(raw string) (map[string]any, bool) {
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, false
	}
	return data, true
}

// largestObjectSpan extracts the widest {...} region, for responses that
// wrap the JSON in prose despite the no-chatter instruction.
func largestObjectSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return "", false
	}
	return raw[start : end+1], true
}

// mapRecipe converts the repaired object into a recipe, tolerating the
// shape drift small models produce: numbers as strings, ingredients or
// steps as bare strings, null fields.
func mapRecipe(data map[string]any, kind recipes.SourceKind) *recipes.Recipe {
	return &recipes.Recipe{
		Title:       stringField(data, "title"),
		Description: stringField(data, "description"),
		IntroText:   stringField(data, "intro_text"),
		OutroText:   stringField(data, "outro_text"),
		PrepTime:    stringField(data, "prep_time"),
		CookTime:    stringField(data, "cook_time"),
		TotalTime:   stringField(data, "total_time"),
		Servings:    stringField(data, "servings"),
		SourceKind:  kind,
		Ingredients: mapIngredients(data["ingredients"]),
		Steps:       mapSteps(data["steps"]),
		Tags:        mapTags(data["tags"]),
	}
}

func mapIngredients(value any) []recipes.Ingredient {
	items, ok := value.([]any)
	if !ok {
		return []recipes.Ingredient{}
	}
	ingredients := make([]recipes.Ingredient, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			ingredient := recipes.Ingredient{
				Name:   stringField(v, "name"),
				Amount: stringField(v, "amount"),
				Unit:   stringField(v, "unit"),
				Notes:  stringField(v, "notes"),
			}
			if ingredient.Name != "" || ingredient.Amount != "" {
				ingredients = append(ingredients, ingredient)
			}
		case string:
			if name := strings.TrimSpace(v); name != "" {
				ingredients = append(ingredients, recipes.Ingredient{Name: name})
			}
		}
	}
	return ingredients
}

func mapSteps(value any) []recipes.Step {
	items, ok := value.([]any)
	if !ok {
		return []recipes.Step{}
	}
	steps := make([]recipes.Step, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case map[string]any:
			step := recipes.Step{
				Number:      intField(v, "number"),
				Instruction: stringField(v, "instruction"),
				Duration:    stringField(v, "duration"),
				Tips:        stringField(v, "tips"),
			}
			if step.Instruction != "" {
				steps = append(steps, step)
			}
		case string:
			if instruction := strings.TrimSpace(v); instruction != "" {
				steps = append(steps, recipes.Step{Instruction: instruction})
			}
		}
	}
	return steps
}

func mapTags(value any) []string {
	items, ok := value.([]any)
	if !ok {
		return []string{}
	}
	tags := make([]string, 0, len(items))
	for _, item := range items {
		if tag, ok := item.(string); ok {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

func stringField(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}
