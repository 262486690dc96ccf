package controllers

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/config"
	"github.com/hearthbakery/bakery-orders-api/middleware"
	"github.com/hearthbakery/bakery-orders-api/models"
	"github.com/hearthbakery/bakery-orders-api/services"
	"gorm.io/gorm"
)

// UpdateUserRequest is the body of PUT /users/me. The phone number is where
// pickup reminders go.
type UpdateUserRequest struct {
	Name  string `json:"name" binding:"omitempty,max=120"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone" binding:"omitempty,max=32"`
}

// CreateUser handles POST /api/v1/users. The profile is built from Auth0's
// /userinfo; the staff role is granted only by the token's role claim.
func CreateUser(c *gin.Context) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user ID from token")
		return
	}
	accessToken, err := middleware.GetAccessToken(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Access token not found")
		return
	}

	userInfo, err := services.NewAuth0Service(config.GetConfig()).GetUserInfo(c.Request.Context(), accessToken)
	switch {
	case errors.Is(err, services.ErrUserInfoRejected):
		respondError(c, http.StatusUnauthorized, "AUTH0_REJECTED", "Auth0 did not accept the access token")
		return
	case err != nil:
		log.Printf("ERROR: userinfo lookup for %s failed: %v", auth0ID, err)
		respondError(c, http.StatusBadGateway, "AUTH0_ERROR", "Failed to fetch user information from Auth0")
		return
	}
	if missing := userInfo.MissingField(); missing != "" {
		respondError(c, http.StatusBadRequest, "MISSING_"+strings.ToUpper(missing), "Auth0 did not provide a "+missing)
		return
	}

	role := models.RoleCustomer
	if claims, err := middleware.GetCustomClaims(c); err == nil && claims.Role == models.RoleStaff {
		role = models.RoleStaff
	}

	user := models.User{
		Auth0ID: auth0ID,
		Name:    strings.TrimSpace(userInfo.Name),
		Email:   strings.ToLower(strings.TrimSpace(userInfo.Email)),
		Role:    role,
	}
	if userInfo.PhoneNumber != "" {
		user.Phone = &userInfo.PhoneNumber
	}

	if err := config.GetDB().WithContext(c.Request.Context()).Create(&user).Error; err != nil {
		if isDuplicateError(err) {
			respondError(c, http.StatusConflict, "USER_EXISTS", "A user with this Auth0 ID or email already exists")
			return
		}
		log.Printf("ERROR: failed to register %s: %v", auth0ID, err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to create user")
		return
	}

	log.Printf("Registered %s user %d", user.Role, user.ID)
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": user})
}

// GetMyProfile handles GET /api/v1/users/me
func GetMyProfile(c *gin.Context) {
	user, ok := profileOrAbort(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
}

// UpdateMyProfile handles PUT /api/v1/users/me. Empty fields are left alone;
// the role cannot be changed here.
func UpdateMyProfile(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondValidation(c, err)
		return
	}

	user, ok := profileOrAbort(c)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if name := strings.TrimSpace(req.Name); name != "" {
		updates["name"] = name
	}
	if req.Email != "" {
		updates["email"] = strings.ToLower(req.Email)
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		updates["phone"] = phone
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": user})
		return
	}

	db := config.GetDB().WithContext(c.Request.Context())
	if err := db.Model(user).Updates(updates).Error; err != nil {
		if isDuplicateError(err) {
			respondError(c, http.StatusConflict, "EMAIL_EXISTS", "A user with this email already exists")
			return
		}
		log.Printf("ERROR: failed to update user %d: %v", user.ID, err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to update user profile")
		return
	}

	var updated models.User
	if err := db.First(&updated, user.ID).Error; err != nil {
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to fetch updated profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": updated})
}

// profileOrAbort resolves the caller's local profile, writing the error response when it cannot.
func profileOrAbort(c *gin.Context) (*models.User, bool) {
	user, err := middleware.CurrentUser(c)
	if err == nil {
		return user, true
	}

	var authErr *middleware.AuthError
	switch {
	case errors.As(err, &authErr) && authErr.Code == "USER_NOT_FOUND":
		respondError(c, http.StatusNotFound, authErr.Code, authErr.Message)
	case errors.As(err, &authErr):
		respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Could not extract user information")
	default:
		log.Printf("ERROR: failed to load profile: %v", err)
		respondError(c, http.StatusInternalServerError, "DATABASE_ERROR", "Failed to load user")
	}
	return nil, false
}

// isDuplicateError recognises unique violations whether or not the
// connection translates driver errors
func isDuplicateError(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	errMsg := strings.ToLower(err.Error())
	return strings.Contains(errMsg, "duplicate") || strings.Contains(errMsg, "unique")
}
