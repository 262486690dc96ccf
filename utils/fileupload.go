package utils

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// MaxFileSize is 5MB in bytes
	MaxFileSize = 5 * 1024 * 1024
)

var (
	// AllowedProofFormats are the file extensions accepted as payment proof
	AllowedProofFormats = map[string]string{
		".png":  "image/png",
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
	}

	// UploadDir is the directory where proofs are stored when S3 is not configured
	// Can be overridden for testing
	UploadDir = "./uploads"
)

// FileUploadError represents a file upload validation error
type FileUploadError struct {
	Code    string
	Message string
}

func (e *FileUploadError) Error() string {
	return e.Message
}

// ValidateProofFile validates the uploaded payment proof format and size
func ValidateProofFile(fileHeader *multipart.FileHeader) error {
	if fileHeader == nil {
		return &FileUploadError{
			Code:    "NO_FILE",
			Message: "A proof file is required",
		}
	}

	// Check file size
	if fileHeader.Size > MaxFileSize {
		return &FileUploadError{
			Code:    "FILE_TOO_LARGE",
			Message: fmt.Sprintf("File size exceeds maximum allowed size of %d MB", MaxFileSize/(1024*1024)),
		}
	}
	if fileHeader.Size == 0 {
		return &FileUploadError{
			Code:    "EMPTY_FILE",
			Message: "Uploaded file is empty",
		}
	}

	// Check file extension
	if _, ok := AllowedProofFormats[ProofExtension(fileHeader.Filename)]; !ok {
		return &FileUploadError{
			Code:    "INVALID_FILE_FORMAT",
			Message: "Only PNG and JPEG files are allowed",
		}
	}

	return nil
}

// ProofExtension returns the lower-cased extension of a proof filename
func ProofExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}

// ProofContentType returns the MIME type stored alongside a proof file
func ProofContentType(filename string) string {
	if contentType, ok := AllowedProofFormats[ProofExtension(filename)]; ok {
		return contentType
	}
	return "application/octet-stream"
}

// ProofObjectName builds a collision-resistant storage name for a payment proof
func ProofObjectName(paymentID uint, filename string) string {
	return fmt.Sprintf("payment_%d_%d%s", paymentID, time.Now().UnixNano(), ProofExtension(filename))
}

// SaveUploadedFile saves the uploaded file to the local filesystem under name
// Returns the name of the saved file
func SaveUploadedFile(fileHeader *multipart.FileHeader, uploadDir, name string) (filename string, err error) {
	// Create uploads directory if it doesn't exist
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	filename = filepath.Base(name)
	fullPath := filepath.Join(uploadDir, filename)

	// Open the uploaded file
	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			fmt.Printf("warning: failed to close source file: %v\n", closeErr)
		}
	}()

	// Create the destination file
	dst, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close destination file: %w", closeErr)
		}
	}()

	// Copy the file
	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return filename, nil
}

// GetUploadURL returns the URL path for a locally stored proof
func GetUploadURL(filename string) string {
	if filename == "" {
		return ""
	}
	return fmt.Sprintf("/api/v1/uploads/%s", filename)
}
