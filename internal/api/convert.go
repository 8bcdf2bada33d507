package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"recipelab/internal/units"
)

type convertRequest struct {
	Units       string   `json:"units"`
	Text        *string  `json:"text"`
	Ingredients []string `json:"ingredients"`
}

// convertResponse mirrors the request: a field present in the request is
// present in the response, even when it is an empty list.
type convertResponse struct {
	Units       units.System `json:"units"`
	Text        *string      `json:"text,omitempty"`
	Ingredients *[]string    `json:"ingredients,omitempty"`
}

// Convert rewrites free text and ingredient lines into another measurement
// system without touching storage.
func (h *Handler) Convert(c *gin.Context) {
	var req convertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	system, ok := parseUnits(c, req.Units)
	if !ok {
		return
	}
	if req.Text == nil && req.Ingredients == nil {
		respondError(c, http.StatusBadRequest, "text or ingredients is required")
		return
	}

	resp := convertResponse{Units: system}
	if req.Ingredients != nil {
		ingredients := units.ConvertIngredients(req.Ingredients, system)
		resp.Ingredients = &ingredients
	}
	if req.Text != nil {
		text := units.ConvertText(*req.Text, system)
		resp.Text = &text
	}
	c.JSON(http.StatusOK, resp)
}
