package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixelblog/backend/internal/cache"
	"github.com/pixelblog/backend/internal/database"
	"github.com/pixelblog/backend/internal/models"
	"github.com/pixelblog/backend/internal/util"
)

// Health reports service health for load balancers
// GET /health
func (h *Handlers) Health(c *gin.Context) {
	status := http.StatusOK
	checks := gin.H{"database": "ok", "redis": "ok"}

	if err := database.Health(); err != nil {
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
	}

	if redis := cache.GetRedisClient(); redis != nil {
		if err := redis.Ping(c.Request.Context()); err != nil {
			checks["redis"] = "down"
		}
	} else {
		checks["redis"] = "disabled"
	}

	c.JSON(status, gin.H{"status": checks})
}

// GetCategories lists the fixed category set, in display order
// GET /api/v1/categories
func (h *Handlers) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": models.Categories})
}

// GetWeather returns the current weather snapshot the composer previews
// GET /api/v1/weather
func (h *Handlers) GetWeather(c *gin.Context) {
	if h.weather == nil {
		util.RespondInternalError(c, "weather is not configured")
		return
	}

	c.JSON(http.StatusOK, h.weather.Current(c.Request.Context()))
}

// ResolveMusic turns a Spotify link into the snapshot stored on a post
// GET /api/v1/music/resolve?url=
func (h *Handlers) ResolveMusic(c *gin.Context) {
	if h.music == nil {
		util.RespondInternalError(c, "music lookup is not configured")
		return
	}

	rawURL := c.Query("url")
	if rawURL == "" {
		util.RespondBadRequest(c, "url query parameter is required")
		return
	}

	snapshot, err := h.music.Resolve(c.Request.Context(), rawURL)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, snapshot)
}
