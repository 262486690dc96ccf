package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/config"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/hearthbakery/bakery-orders-api/services"
	"gorm.io/gorm"
)

// CurrentUser resolves the local user for the authenticated Auth0 subject.
// The result is cached on the context for the rest of the request.
func CurrentUser(c *gin.Context) (*models.User, error) {
	if cached, exists := c.Get("current_user"); exists {
		if user, ok := cached.(*models.User); ok {
			return user, nil
		}
	}

	auth0ID, err := GetUserID(c)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := config.GetDB().Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &AuthError{Code: "USER_NOT_FOUND", Message: "User profile not found. Please create a profile first."}
		}
		return nil, err
	}

	c.Set("current_user", &user)
	return &user, nil
}

// ActorFromUser builds the actor passed into mutating service calls.
func ActorFromUser(user *models.User) *services.Actor {
	if user == nil {
		return nil
	}
	return &services.Actor{UserID: user.ID, Role: user.Role}
}

// RequireUser aborts with 404 unless the caller has a local profile
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := loadUser(c); !ok {
			return
		}
		c.Next()
	}
}

// RequireStaff aborts with 403 unless the caller is a staff member
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := loadUser(c)
		if !ok {
			return
		}

		if !user.IsStaff() {
			c.JSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Only bakery staff can perform this action",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func loadUser(c *gin.Context) (*models.User, bool) {
	user, err := CurrentUser(c)
	if err == nil {
		return user, true
	}

	var authErr *AuthError
	switch {
	case errors.As(err, &authErr) && authErr.Code == "USER_NOT_FOUND":
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    authErr.Code,
				"message": authErr.Message,
			},
		})
	case errors.As(err, &authErr):
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load user",
			},
		})
	}
	c.Abort()
	return nil, false
}
