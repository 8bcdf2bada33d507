package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires the handler into a gin engine.
func NewRouter(h *Handler, corsOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(h.log), Recovery(h.log))

	r.Use(cors.New(corsConfig(corsOrigins)))

	requireAuth := RequireAuth(h.Auth)

	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.POST("/convert", h.Convert)

	recipes := api.Group("/recipes")
	recipes.GET("", h.ListRecipes)
	recipes.GET("/:id", h.GetRecipe)
	recipes.POST("", requireAuth, h.CreateRecipe)
	recipes.PUT("/:id", requireAuth, h.UpdateRecipe)
	recipes.DELETE("/:id", requireAuth, h.DeleteRecipe)

	api.POST("/ai/analyze", h.AnalyzeMedia)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.Register)
	authGroup.POST("/login", h.Login)
	authGroup.GET("/me", requireAuth, h.Me)
	authGroup.POST("/logout", requireAuth, h.Logout)

	return r
}

// corsConfig allows every origin when none are configured or "*" is listed.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
