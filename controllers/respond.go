package controllers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/services"
	"github.com/hearthbakery/bakery-orders-api/utils"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": "Invalid request data",
			"details": err.Error(),
		},
	})
}

// respondServiceError maps a service error to an HTTP response. Not-found and
// conflict messages stay generic so internal identifiers never leak.
func respondServiceError(c *gin.Context, err error, action string) {
	var uploadErr *utils.FileUploadError
	if errors.As(err, &uploadErr) {
		respondError(c, http.StatusBadRequest, uploadErr.Code, uploadErr.Message)
		return
	}

	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		log.Printf("ERROR: failed to %s: %v", action, err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action)
		return
	}

	switch svcErr.Code {
	case services.CodeValidation:
		respondError(c, http.StatusBadRequest, svcErr.Code, svcErr.Message)
	case services.CodeInsufficientStock:
		respondError(c, http.StatusUnprocessableEntity, svcErr.Code, svcErr.Message)
	case services.CodeNotFound:
		respondError(c, http.StatusNotFound, svcErr.Code, "Resource not found")
	case services.CodeConflict:
		respondError(c, http.StatusConflict, svcErr.Code, "The request conflicts with an existing record")
	case services.CodeConcurrencyTimeout:
		c.Header("Retry-After", "1")
		respondError(c, http.StatusServiceUnavailable, svcErr.Code, "The server is busy, please retry")
	default:
		log.Printf("ERROR: failed to %s: %v", action, err)
		respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to "+action)
	}
}

// parseIDParam reads a positive numeric path parameter, writing a 400 when it is malformed.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}
