package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoRecipe is returned when a model reply does not contain a usable recipe.
var ErrNoRecipe = errors.New("no recipe found in response")

// DraftPrompt asks a vision model for a Draft as JSON.
const DraftPrompt = "Identify the dish in this media and write a recipe for it. " +
	"Return a single JSON object with the keys 'title' (string), 'description' (one sentence), " +
	"'ingredients' (array of strings, each with its quantity and unit, e.g. \"2 cups flour\") and " +
	"'instructions' (string, one step per line). Do not wrap the JSON in markdown. " +
	"If the media does not show food, return {\"title\": \"\"}."

// Draft is a recipe suggested by a scan of a food photo or video. It is not
// stored as a recipe until a user saves it.
type Draft struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
}

// Recipe turns the draft into a recipe ready to be created.
func (d *Draft) Recipe() *Recipe {
	r := &Recipe{
		Title:        d.Title,
		Description:  d.Description,
		Ingredients:  append([]string(nil), d.Ingredients...),
		Instructions: d.Instructions,
	}
	r.normalize()
	return r
}

// UnmarshalJSON implements the json.Unmarshaler interface for Draft. Models
// do not agree on a shape for ingredients and instructions, so both accept
// several layouts.
func (d *Draft) UnmarshalJSON(data []byte) error {
	type Alias Draft // Alias drops the method set to avoid recursion
	aux := &struct {
		Ingredients  json.RawMessage `json:"ingredients"`
		Instructions json.RawMessage `json:"instructions"`
		*Alias
	}{
		Alias: (*Alias)(d),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ingredients, err := decodeIngredients(aux.Ingredients)
	if err != nil {
		return fmt.Errorf("failed to decode ingredients: %w", err)
	}
	instructions, err := decodeInstructions(aux.Instructions)
	if err != nil {
		return fmt.Errorf("failed to decode instructions: %w", err)
	}

	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	d.Ingredients = ingredients
	d.Instructions = instructions
	return nil
}

type ingredientObject struct {
	Name     string `json:"name"`
	Quantity any    `json:"quantity"`
	Amount   any    `json:"amount"`
	Unit     string `json:"unit"`
}

func (o ingredientObject) String() string {
	qty := o.Quantity
	if qty == nil {
		qty = o.Amount
	}
	var parts []string
	if qty != nil {
		parts = append(parts, fmt.Sprint(qty))
	}
	parts = append(parts, o.Unit, o.Name)
	return joinNonEmpty(parts...)
}

// decodeIngredients accepts a list of strings, a list of {name, quantity}
// objects, or a map of ingredient name to quantity.
func decodeIngredients(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return nil, nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, item := range list {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				out = append(out, strings.TrimSpace(s))
				continue
			}
			var obj ingredientObject
			if err := json.Unmarshal(item, &obj); err != nil {
				return nil, err
			}
			out = append(out, obj.String())
		}
		return out, nil
	}

	var byName map[string]any
	if err := json.Unmarshal(raw, &byName); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		qty := ""
		if v := byName[name]; v != nil {
			qty = fmt.Sprint(v)
		}
		out = append(out, joinNonEmpty(qty, name))
	}
	return out, nil
}

// decodeInstructions accepts a single string or a list of steps.
func decodeInstructions(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text), nil
	}

	var steps []string
	if err := json.Unmarshal(raw, &steps); err != nil {
		return "", err
	}
	return strings.Join(steps, "\n"), nil
}

// ParseDraft extracts a Draft from a model reply. The JSON object may be
// wrapped in prose or markdown fences.
func ParseDraft(reply string) (*Draft, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start == -1 || end == -1 || start > end {
		return nil, fmt.Errorf("%w: %q", ErrNoRecipe, truncate(reply, 200))
	}

	var d Draft
	if err := json.Unmarshal([]byte(reply[start:end+1]), &d); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipe JSON: %w", err)
	}
	if d.Title == "" {
		return nil, fmt.Errorf("%w: reply has no title", ErrNoRecipe)
	}
	return &d, nil
}

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
