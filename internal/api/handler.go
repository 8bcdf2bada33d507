package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipelab/internal/auth"
	"recipelab/internal/recipe"
)

// storageTimeout bounds every store call made while serving a request.
const storageTimeout = 5 * time.Second

// Scanner turns a food photo or video into a recipe draft.
type Scanner interface {
	AnalyzeMedia(ctx context.Context, data []byte, mimeType string) (*recipe.Draft, error)
}

// RecipeStore defines the recipe data operations the handlers use.
type RecipeStore interface {
	ListRecipes(ctx context.Context, query string) ([]*recipe.Recipe, error)
	GetRecipe(ctx context.Context, id int64) (*recipe.Recipe, error)
	CreateRecipe(ctx context.Context, r *recipe.Recipe) (*recipe.Recipe, error)
	UpdateRecipe(ctx context.Context, id int64, p recipe.Patch) (*recipe.Recipe, error)
	DeleteRecipe(ctx context.Context, id int64) (bool, error)
	GetScan(ctx context.Context, mediaHash string) (*recipe.Draft, error)
	SaveScan(ctx context.Context, mediaHash string, d *recipe.Draft) error
}

// Authenticator manages accounts and sessions.
type Authenticator interface {
	Register(ctx context.Context, username, password string) (auth.User, string, error)
	Login(ctx context.Context, username, password string) (auth.User, string, error)
	Authenticate(token string) (auth.Session, error)
	User(username string) (auth.User, bool)
	Logout(token string)
}

// Options tunes request limits.
type Options struct {
	ScanTimeout    time.Duration
	MaxUploadBytes int64
}

// Handler handles HTTP requests.
type Handler struct {
	Scanner Scanner
	Store   RecipeStore
	Auth    Authenticator

	log  *zap.Logger
	opts Options
}

// NewHandler creates a new Handler. scanner may be nil, in which case media
// analysis answers 503.
func NewHandler(scanner Scanner, store RecipeStore, authenticator Authenticator, log *zap.Logger, opts Options) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = 45 * time.Second
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 20 << 20
	}
	return &Handler{
		Scanner: scanner,
		Store:   store,
		Auth:    authenticator,
		log:     log,
		opts:    opts,
	}
}

// Health reports that the API is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "API is healthy"})
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// storeError answers for a failed store call.
func (h *Handler) storeError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusRequestTimeout, "Database operation timed out")
	case errors.Is(err, recipe.ErrTitleRequired), errors.Is(err, recipe.ErrInstructionsRequired):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		h.log.Error("Store operation failed",
			zap.String("action", action),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err),
		)
		respondError(c, http.StatusInternalServerError, "Failed to "+action)
	}
}
