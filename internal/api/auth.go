package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"recipelab/internal/auth"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) authError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrCredentialsRequired),
		errors.Is(err, auth.ErrUsernameTooShort),
		errors.Is(err, auth.ErrPasswordTooShort):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUsernameTaken):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusRequestTimeout, "Request timed out")
	default:
		h.storeError(c, err, "authenticate")
	}
}

// Register creates an account and returns a session token.
func (h *Handler) Register(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	user, token, err := h.Auth.Register(ctx, req.Username, req.Password)
	if err != nil {
		h.authError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

// Login returns a session token for valid credentials.
func (h *Handler) Login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), storageTimeout)
	defer cancel()

	user, token, err := h.Auth.Login(ctx, req.Username, req.Password)
	if err != nil {
		h.authError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me returns the signed-in user.
func (h *Handler) Me(c *gin.Context) {
	user, ok := h.Auth.User(sessionFrom(c).Username)
	if !ok {
		respondError(c, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Logout ends the current session.
func (h *Handler) Logout(c *gin.Context) {
	h.Auth.Logout(sessionFrom(c).Token)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
