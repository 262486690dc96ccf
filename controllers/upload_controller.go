package controllers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/hearthbakery/bakery-orders-api/middleware"
	"github.com/hearthbakery/bakery-orders-api/utils"
)

// GetUploadedProof handles GET /api/v1/uploads/:filename. It serves payment
// proofs kept on local disk when no S3 bucket is configured; staff only.
func GetUploadedProof(c *gin.Context) {
	filename := c.Param("filename")
	switch {
	case filename == "":
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Filename is required")
		return
	case strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`):
		respondError(c, http.StatusBadRequest, "INVALID_FILENAME", "Invalid filename")
		return
	}

	if _, ok := utils.AllowedProofFormats[strings.ToLower(filepath.Ext(filename))]; !ok {
		respondError(c, http.StatusBadRequest, "INVALID_FILE_TYPE", "Only PNG and JPEG files are supported")
		return
	}

	filePath := filepath.Join(utils.UploadDir, filename)
	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		respondError(c, http.StatusNotFound, "FILE_NOT_FOUND", "Proof not found")
		return
	}

	if user, err := middleware.CurrentUser(c); err == nil {
		log.Printf("Proof %s viewed by user %d", filename, user.ID)
	}

	c.Header("Content-Type", utils.ProofContentType(filename))
	c.Header("Cache-Control", "private, max-age=300")
	c.File(filePath)
}
