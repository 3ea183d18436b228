package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixelblog/backend/internal/database"
	"github.com/pixelblog/backend/internal/models"
	"github.com/pixelblog/backend/internal/storage"
	"github.com/pixelblog/backend/internal/util"
)

// maxUploadSize caps media uploads at 25MB
const maxUploadSize = 25 << 20

// UploadMedia stores a post image or video (owner only)
// POST /api/v1/media/upload  (multipart: file, kind=image|video)
func (h *Handlers) UploadMedia(c *gin.Context) {
	if _, ok := util.RequireOwner(c); !ok {
		return
	}
	if h.uploader == nil {
		util.RespondInternalError(c, "media storage is not configured")
		return
	}

	kind := storage.MediaImage
	if c.PostForm("kind") == "video" {
		kind = storage.MediaVideo
	}

	data, filename, ok := readUpload(c)
	if !ok {
		return
	}

	result, err := h.uploader.UploadMedia(c.Request.Context(), data, kind, filename)
	if err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	c.JSON(http.StatusCreated, result)
}

// UploadAvatar stores the caller's avatar and updates their profile
// POST /api/v1/profile/avatar  (multipart: file)
func (h *Handlers) UploadAvatar(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}
	if !id.IsAuthenticated() {
		util.RespondUnauthorized(c)
		return
	}
	if h.uploader == nil {
		util.RespondInternalError(c, "media storage is not configured")
		return
	}

	data, filename, ok := readUpload(c)
	if !ok {
		return
	}

	result, err := h.uploader.UploadMedia(c.Request.Context(), data, storage.MediaAvatar, filename)
	if err != nil {
		util.RespondBadRequest(c, err.Error())
		return
	}

	err = database.DB.Model(&models.Profile{}).
		Where("id = ?", id.UserID).
		Update("avatar_url", result.URL).Error
	if err != nil {
		util.RespondInternalError(c, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatar_url": result.URL})
}

// readUpload pulls the multipart file out of the request, bounded by
// maxUploadSize
func readUpload(c *gin.Context) ([]byte, string, bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		util.RespondBadRequest(c, "file is required")
		return nil, "", false
	}
	defer file.Close()

	if header.Size > maxUploadSize {
		util.RespondBadRequest(c, "file exceeds the 25MB limit")
		return nil, "", false
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		util.RespondInternalError(c, "failed to read upload")
		return nil, "", false
	}
	if len(data) > maxUploadSize {
		util.RespondBadRequest(c, "file exceeds the 25MB limit")
		return nil, "", false
	}

	return data, header.Filename, true
}
