package recipe

import (
	"errors"
	"strings"

	"recipelab/internal/units"
)

var (
	// ErrTitleRequired is returned when a recipe has no title.
	ErrTitleRequired = errors.New("title is required")
	// ErrInstructionsRequired is returned when a recipe has no instructions.
	ErrInstructionsRequired = errors.New("instructions are required")
)

// Recipe represents a stored recipe.
type Recipe struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
	Image        *string  `json:"image"`
	Author       string   `json:"author,omitempty"`
}

// Validate checks the fields every stored recipe must have.
func (r *Recipe) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return ErrTitleRequired
	}
	if strings.TrimSpace(r.Instructions) == "" {
		return ErrInstructionsRequired
	}
	return nil
}

func (r *Recipe) normalize() {
	if r.Ingredients == nil {
		r.Ingredients = []string{}
	}
	if r.Image != nil && *r.Image == "" {
		r.Image = nil
	}
}

// Clone returns a deep copy of r.
func (r *Recipe) Clone() *Recipe {
	c := *r
	if r.Ingredients != nil {
		c.Ingredients = append([]string(nil), r.Ingredients...)
	}
	if r.Image != nil {
		img := *r.Image
		c.Image = &img
	}
	return &c
}

// Converted returns a copy of r with ingredients and instructions rewritten
// into the target measurement system.
func (r *Recipe) Converted(target units.System) *Recipe {
	c := r.Clone()
	c.Ingredients = units.ConvertIngredients(c.Ingredients, target)
	c.Instructions = units.ConvertText(c.Instructions, target)
	return c
}

// Patch is a partial update. Nil fields are left unchanged; an empty Image
// removes the image.
type Patch struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	Ingredients  *[]string `json:"ingredients"`
	Instructions *string   `json:"instructions"`
	Image        *string   `json:"image"`
}

// Apply merges p into r and validates the result. r is left untouched when
// the merged recipe is invalid.
func (p Patch) Apply(r *Recipe) error {
	merged := r.Clone()
	if p.Title != nil {
		merged.Title = *p.Title
	}
	if p.Description != nil {
		merged.Description = *p.Description
	}
	if p.Ingredients != nil {
		merged.Ingredients = append([]string(nil), (*p.Ingredients)...)
	}
	if p.Instructions != nil {
		merged.Instructions = *p.Instructions
	}
	if p.Image != nil {
		img := *p.Image
		merged.Image = &img
	}
	merged.normalize()

	if err := merged.Validate(); err != nil {
		return err
	}
	*r = *merged
	return nil
}
