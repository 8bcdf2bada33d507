package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"recipelab/internal/recipe"
	"recipelab/internal/units"
)

type createRecipeRequest struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
	Image        *string  `json:"image"`
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		respondError(c, http.StatusBadRequest, "Invalid recipe id")
		return 0, false
	}
	return id, true
}

func parseUnits(c *gin.Context, raw string) (units.System, bool) {
	system, err := units.ParseSystem(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return "", false
	}
	return system, true
}

// ListRecipes returns recipes, optionally filtered by ?q= on the title.
func (h *Handler) ListRecipes(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	recipes, err := h.Store.ListRecipes(ctx, c.Query("q"))
	if err != nil {
		h.storeError(c, err, "list recipes")
		return
	}
	c.JSON(http.StatusOK, recipes)
}

// GetRecipe returns a single recipe, converted when ?units= is given.
func (h *Handler) GetRecipe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	system, ok := parseUnits(c, c.Query("units"))
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	r, err := h.Store.GetRecipe(ctx, id)
	if err != nil {
		h.storeError(c, err, "get recipe")
		return
	}
	if r == nil {
		respondError(c, http.StatusNotFound, "Recipe not found")
		return
	}

	c.JSON(http.StatusOK, r.Converted(system))
}

// CreateRecipe stores a new recipe authored by the signed-in user.
func (h *Handler) CreateRecipe(c *gin.Context) {
	var req createRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	r := &recipe.Recipe{
		Title:        req.Title,
		Description:  req.Description,
		Ingredients:  req.Ingredients,
		Instructions: req.Instructions,
		Image:        req.Image,
		Author:       sessionFrom(c).Username,
	}
	if err := r.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	created, err := h.Store.CreateRecipe(ctx, r)
	if err != nil {
		h.storeError(c, err, "create recipe")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateRecipe applies a partial update.
func (h *Handler) UpdateRecipe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var patch recipe.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	updated, err := h.Store.UpdateRecipe(ctx, id, patch)
	if err != nil {
		h.storeError(c, err, "update recipe")
		return
	}
	if updated == nil {
		respondError(c, http.StatusNotFound, "Recipe not found")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteRecipe removes a recipe.
func (h *Handler) DeleteRecipe(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	deleted, err := h.Store.DeleteRecipe(ctx, id)
	if err != nil {
		h.storeError(c, err, "delete recipe")
		return
	}
	if !deleted {
		respondError(c, http.StatusNotFound, "Recipe not found")
		return
	}
	c.Status(http.StatusNoContent)
}
