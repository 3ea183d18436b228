package handlers

import (
	goerrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pixelblog/backend/internal/engagement"
	apperrors "github.com/pixelblog/backend/internal/errors"
	"github.com/pixelblog/backend/internal/metrics"
	"github.com/pixelblog/backend/internal/util"
)

// ToggleLike flips the caller's like on a post
// POST /api/v1/posts/:id/like
func (h *Handlers) ToggleLike(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	result, err := h.engagement.ToggleLike(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		var apiErr *apperrors.APIError
		if goerrors.As(err, &apiErr) && apiErr.Code == apperrors.ErrToggleInFlight {
			metrics.Get().ToggleRejectionsTotal.WithLabelValues().Inc()
		}
		respondServiceError(c, err)
		return
	}

	direction := "unlike"
	if result.Liked {
		direction = "like"
	}
	metrics.Get().LikeTogglesTotal.WithLabelValues(direction).Inc()

	c.JSON(http.StatusOK, result)
}

// GetLikeStates returns like counts and the caller's liked flags for a batch
// of posts
// GET /api/v1/posts/likes?ids=a,b,c
func (h *Handlers) GetLikeStates(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	raw := c.Query("ids")
	if raw == "" {
		util.RespondBadRequest(c, "ids query parameter is required")
		return
	}

	postIDs := strings.Split(raw, ",")
	if len(postIDs) > 100 {
		util.RespondBadRequest(c, "too many ids, max 100")
		return
	}

	states, err := h.engagement.LikeStates(c.Request.Context(), id, postIDs)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"likes": states})
}

// GetComments lists a post's comments, oldest first
// GET /api/v1/posts/:id/comments
func (h *Handlers) GetComments(c *gin.Context) {
	comments, err := h.engagement.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

// CreateComment posts a comment on a post
// POST /api/v1/posts/:id/comments
func (h *Handlers) CreateComment(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	// Emptiness is the service's call so blank and whitespace-only content
	// share one validation-error shape; binding only bounds lengths
	var input struct {
		Content    string  `json:"content" binding:"max=2000"`
		AuthorName string  `json:"author_name" binding:"max=50"`
		ParentID   *string `json:"parent_id"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	comment, err := h.engagement.PostComment(c.Request.Context(), id, c.Param("id"), engagement.CommentInput{
		Content:    input.Content,
		AuthorName: input.AuthorName,
		ParentID:   input.ParentID,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	metrics.Get().CommentsTotal.WithLabelValues(string(id.Kind)).Inc()

	c.JSON(http.StatusCreated, comment)
}
