package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/BivasNandan/Law-Aid-sub001/internal/auth"
	"github.com/BivasNandan/Law-Aid-sub001/internal/chat"
	"github.com/BivasNandan/Law-Aid-sub001/internal/http/middleware"
	"github.com/BivasNandan/Law-Aid-sub001/internal/notification"
)

type Deps struct {
	DB             *gorm.DB
	Chat           *chat.Service
	Notifications  *notification.Service
	Reminders      ReminderRunner
	Gateway        http.Handler
	Verifier       *auth.Verifier
	Logger         zerolog.Logger
	FrontendURL    string
	InternalAPIKey string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.Logger(d.Logger), middleware.Metrics())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{d.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", health(d.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	wsH := &WSHandler{Gateway: d.Gateway}
	r.GET("/ws", wsH.Handle)

	authed := r.Group("/api")
	authed.Use(middleware.AuthMiddleware(d.Verifier))

	authH := &AuthHandler{DB: d.DB}
	authed.GET("/auth/me", authH.Me)

	chatH := &ChatHandler{Chat: d.Chat}
	authed.POST("/chat/conversation", chatH.GetOrCreateConversation)
	authed.GET("/chat/conversations", chatH.ListConversations)
	authed.GET("/chat/conversation/:conversationId", chatH.ConversationDetail)
	authed.GET("/chat/conversation/:conversationId/messages", chatH.ListMessages)
	authed.POST("/chat/message", chatH.SendMessage)
	authed.PATCH("/chat/message/:messageId", chatH.EditMessage)

	notifH := &NotificationHandler{Notifications: d.Notifications}
	authed.GET("/notifications", notifH.List)
	authed.GET("/notifications/unread/count", notifH.UnreadCount)
	authed.PATCH("/notifications/read-all", notifH.MarkAllRead)
	authed.PATCH("/notifications/:notificationId/read", notifH.MarkRead)
	authed.DELETE("/notifications", notifH.DeleteAll)
	authed.DELETE("/notifications/:notificationId", notifH.Delete)

	internal := r.Group("/api/internal")
	internal.Use(middleware.InternalKey(d.InternalAPIKey))
	remH := &ReminderHandler{Runner: d.Reminders}
	internal.POST("/reminders/run", remH.Run)

	return r
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		check := "pass"
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			status, code, check = "degraded", http.StatusServiceUnavailable, "fail"
		}
		c.JSON(code, gin.H{
			"status":    status,
			"checks":    gin.H{"database": check},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
