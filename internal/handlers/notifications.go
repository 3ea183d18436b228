package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pixelblog/backend/internal/database"
	"github.com/pixelblog/backend/internal/models"
	"github.com/pixelblog/backend/internal/util"
)

// GetNotifications lists the caller's notifications, newest first
// GET /api/v1/notifications?limit=
func (h *Handlers) GetNotifications(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}
	if !id.IsAuthenticated() {
		util.RespondUnauthorized(c)
		return
	}

	limit := 50
	var notifications []models.Notification
	err := database.DB.
		Where("recipient_id = ?", id.UserID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		util.RespondInternalError(c, "failed to load notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

// GetUnreadCount returns the caller's unread notification count
// GET /api/v1/notifications/unread
func (h *Handlers) GetUnreadCount(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}
	if !id.IsAuthenticated() {
		util.RespondUnauthorized(c)
		return
	}

	var count int64
	err := database.DB.Model(&models.Notification{}).
		Where("recipient_id = ? AND read = false", id.UserID).
		Count(&count).Error
	if err != nil {
		util.RespondInternalError(c, "failed to count notifications")
		return
	}

	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkNotificationsRead marks the caller's notifications as read. With ids in
// the body only those are marked; with an empty body, all of them.
// POST /api/v1/notifications/read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	id, ok := util.GetIdentityFromContext(c)
	if !ok {
		return
	}
	if !id.IsAuthenticated() {
		util.RespondUnauthorized(c)
		return
	}

	var input struct {
		IDs []string `json:"ids"`
	}
	_ = c.ShouldBindJSON(&input)

	query := database.DB.Model(&models.Notification{}).
		Where("recipient_id = ?", id.UserID)
	if len(input.IDs) > 0 {
		query = query.Where("id IN ?", input.IDs)
	}

	result := query.Update("read", true)
	if result.Error != nil {
		util.RespondInternalError(c, "failed to mark notifications read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": result.RowsAffected})
}
