package handlers

import (
	goerrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixelblog/backend/internal/auth"
	"github.com/pixelblog/backend/internal/database"
	"github.com/pixelblog/backend/internal/models"
	"github.com/pixelblog/backend/internal/util"
)

// Register creates a new profile
// POST /api/v1/auth/register
func (h *Handlers) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Register(req)
	if err != nil {
		switch {
		case goerrors.Is(err, auth.ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": "email_taken"})
		case goerrors.Is(err, auth.ErrUsernameExists):
			c.JSON(http.StatusConflict, gin.H{"error": "username_taken"})
		default:
			respondServiceError(c, err)
		}
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login authenticates with email/password
// POST /api/v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	resp, err := h.auth.Login(req)
	if err != nil {
		// One shape for both failures; login probing learns nothing
		if goerrors.Is(err, auth.ErrUserNotFound) || goerrors.Is(err, auth.ErrInvalidCredentials) {
			util.RespondUnauthorized(c, "invalid email or password")
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Me returns the caller's profile
// GET /api/v1/auth/me
func (h *Handlers) Me(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}
	if !id.IsAuthenticated() {
		util.RespondUnauthorized(c)
		return
	}

	var profile models.Profile
	if err := database.DB.First(&profile, "id = ?", id.UserID).Error; err != nil {
		util.RespondNotFound(c, "profile")
		return
	}

	c.JSON(http.StatusOK, profile)
}
