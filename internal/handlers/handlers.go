// Package handlers contains the HTTP layer: thin Gin handlers that bind
// requests, call the services, and shape responses. Authorization decisions
// live in the services; handlers only translate errors.
package handlers

import (
	goerrors "errors"

	"github.com/gin-gonic/gin"
	"github.com/pixelblog/backend/internal/auth"
	"github.com/pixelblog/backend/internal/authoring"
	"github.com/pixelblog/backend/internal/engagement"
	apperrors "github.com/pixelblog/backend/internal/errors"
	"github.com/pixelblog/backend/internal/feed"
	"github.com/pixelblog/backend/internal/logger"
	"github.com/pixelblog/backend/internal/music"
	"github.com/pixelblog/backend/internal/storage"
	"github.com/pixelblog/backend/internal/util"
	"github.com/pixelblog/backend/internal/weather"
	"go.uber.org/zap"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	auth       *auth.Service
	feed       *feed.Service
	engagement *engagement.Service
	authoring  *authoring.Service
	weather    *weather.Client
	music      *music.Client
	uploader   *storage.S3Uploader
}

// NewHandlers creates a new handlers instance
func NewHandlers(authService *auth.Service, feedService *feed.Service, engagementService *engagement.Service, authoringService *authoring.Service) *Handlers {
	return &Handlers{
		auth:       authService,
		feed:       feedService,
		engagement: engagementService,
		authoring:  authoringService,
	}
}

// SetWeatherClient sets the weather client for the weather endpoint
func (h *Handlers) SetWeatherClient(client *weather.Client) {
	h.weather = client
}

// SetMusicClient sets the music client for the resolve endpoint
func (h *Handlers) SetMusicClient(client *music.Client) {
	h.music = client
}

// SetUploader sets the S3 uploader for media endpoints
func (h *Handlers) SetUploader(uploader *storage.S3Uploader) {
	h.uploader = uploader
}

// respondServiceError translates a service error into an HTTP response
func respondServiceError(c *gin.Context, err error) {
	var apiErr *apperrors.APIError
	if goerrors.As(err, &apiErr) {
		util.RespondWithAPIError(c, apiErr)
		return
	}

	logger.Log.Error("Unhandled service error", zap.Error(err))
	util.RespondInternalError(c, "something went wrong")
}
