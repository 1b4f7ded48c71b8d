package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/BivasNandan/Law-Aid-sub001/internal/http/middleware"
	"github.com/BivasNandan/Law-Aid-sub001/internal/notification"
)

type NotificationHandler struct {
	Notifications *notification.Service
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID := middleware.MustUserID(c)

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.Notifications.List(c.Request.Context(), userID, notification.Query{
		Page:       page,
		Limit:      limit,
		UnreadOnly: c.Query("unread") == "true",
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID := middleware.MustUserID(c)

	n, err := h.Notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unreadCount": n})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID := middleware.MustUserID(c)

	n, err := h.Notifications.MarkRead(c.Request.Context(), c.Param("notificationId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read", "notification": n})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID := middleware.MustUserID(c)

	n, err := h.Notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications marked as read", "updated": n})
}

func (h *NotificationHandler) DeleteAll(c *gin.Context) {
	userID := middleware.MustUserID(c)

	n, err := h.Notifications.DeleteAll(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "All notifications deleted", "deleted": n})
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID := middleware.MustUserID(c)

	if err := h.Notifications.Delete(c.Request.Context(), c.Param("notificationId"), userID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}
