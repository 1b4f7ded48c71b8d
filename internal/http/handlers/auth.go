package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/BivasNandan/Law-Aid-sub001/internal/http/middleware"
	"github.com/BivasNandan/Law-Aid-sub001/internal/models"
)

// AuthHandler exposes the caller's identity as resolved from the session
// credential. Sessions are issued by the account service.
type AuthHandler struct {
	DB *gorm.DB
}

func (h *AuthHandler) Me(c *gin.Context) {
	userID := middleware.MustUserID(c)

	var user models.User
	err := h.DB.WithContext(c.Request.Context()).
		Select("id", "user_name", "email", "profile_pic", "role", "specialization").
		First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "user no longer exists"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
