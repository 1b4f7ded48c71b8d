package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/BivasNandan/Law-Aid-sub001/internal/chat"
	"github.com/BivasNandan/Law-Aid-sub001/internal/http/middleware"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

type ChatHandler struct {
	Chat *chat.Service
}

// GetOrCreateConversation reads the context from the query string:
// type plus appointmentId, consultationId, lawyerId or otherUserId.
func (h *ChatHandler) GetOrCreateConversation(c *gin.Context) {
	userID := middleware.MustUserID(c)

	conv, err := h.Chat.GetOrCreate(c.Request.Context(), userID, chat.ContextRequest{
		Type:           models.ConversationType(c.Query("type")),
		AppointmentID:  c.Query("appointmentId"),
		ConsultationID: c.Query("consultationId"),
		LawyerID:       c.Query("lawyerId"),
		OtherUserID:    c.Query("otherUserId"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

func (h *ChatHandler) ListConversations(c *gin.Context) {
	userID := middleware.MustUserID(c)

	limit, _ := strconv.Atoi(c.Query("limit"))
	convs, err := h.Chat.ListForUser(c.Request.Context(), userID, models.ConversationType(c.Query("type")), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, convs)
}

func (h *ChatHandler) ConversationDetail(c *gin.Context) {
	userID := middleware.MustUserID(c)

	conv, err := h.Chat.Detail(c.Request.Context(), c.Param("conversationId"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conv)
}

// ListMessages pages newest first; before is an RFC 3339 timestamp.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var page chat.Page
	if v := c.Query("before"); v != "" {
		before, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": "before must be an RFC 3339 timestamp"})
			return
		}
		page.Before = &before
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"message": "limit must be a positive integer"})
			return
		}
		page.Limit = limit
	}

	msgs, err := h.Chat.ListMessages(c.Request.Context(), c.Param("conversationId"), userID, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type sendMessageReq struct {
	ConversationID string              `json:"conversationId"`
	Text           string              `json:"text"`
	Attachments    []models.Attachment `json:"attachments"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body"})
		return
	}

	msg, err := h.Chat.CreateMessage(c.Request.Context(), req.ConversationID, userID, req.Text, req.Attachments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

type editMessageReq struct {
	Text        string              `json:"text"`
	Attachments []models.Attachment `json:"attachments"`
}

func (h *ChatHandler) EditMessage(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var req editMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body"})
		return
	}
	// An empty list keeps the existing attachments.
	if len(req.Attachments) == 0 {
		req.Attachments = nil
	}

	msg, err := h.Chat.EditMessage(c.Request.Context(), c.Param("messageId"), userID, req.Text, req.Attachments)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}
