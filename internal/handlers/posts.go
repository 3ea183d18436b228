package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pixelblog/backend/internal/authoring"
	"github.com/pixelblog/backend/internal/feed"
	"github.com/pixelblog/backend/internal/metrics"
	"github.com/pixelblog/backend/internal/util"
)

// GetPosts serves one feed page
// GET /api/v1/posts?category=&offset=&limit=
func (h *Handlers) GetPosts(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	var query feed.Query
	if err := c.ShouldBindQuery(&query); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	start := time.Now()
	page, err := h.feed.LoadPosts(c.Request.Context(), id, query)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	category := query.Category
	if category == "" {
		category = "all"
	}
	metrics.Get().FeedPageLoads.WithLabelValues(category).Inc()
	metrics.Get().FeedPageDuration.WithLabelValues(category).Observe(time.Since(start).Seconds())

	c.JSON(http.StatusOK, page)
}

// GetPost serves a single post hydrated for the caller
// GET /api/v1/posts/:id
func (h *Handlers) GetPost(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	view, err := h.feed.GetPost(c.Request.Context(), id, c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// CreatePost creates a new post (owner only)
// POST /api/v1/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	var input authoring.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	post, err := h.authoring.Create(c.Request.Context(), id, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	draft := "false"
	if post.IsDraft {
		draft = "true"
	}
	metrics.Get().PostsWritten.WithLabelValues(string(post.Category), draft).Inc()

	c.JSON(http.StatusCreated, post)
}

// UpdatePost applies partial edits to a post (owner only)
// PUT /api/v1/posts/:id
func (h *Handlers) UpdatePost(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	var input authoring.UpdateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	post, err := h.authoring.Update(c.Request.Context(), id, c.Param("id"), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, post)
}

// DeletePost removes a post and its engagement (owner only)
// DELETE /api/v1/posts/:id
func (h *Handlers) DeletePost(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	if err := h.authoring.Delete(c.Request.Context(), id, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetDrafts lists the owner's unpublished posts
// GET /api/v1/posts/drafts
func (h *Handlers) GetDrafts(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}

	drafts, err := h.authoring.ListDrafts(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"drafts": drafts})
}
