package services

import (
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strconv"

	"github.com/hearthbakery/bakery-orders-api/utils"
)

// ProofStorage stores bank-transfer payment proofs.
type ProofStorage interface {
	// UploadProof validates and stores a proof for a payment, returns the storage key
	UploadProof(ctx context.Context, paymentID uint, fileHeader *multipart.FileHeader) (string, error)

	// GetProofURL generates a URL for viewing a stored proof
	GetProofURL(ctx context.Context, key string) (string, error)

	// DeleteProof removes a proof from storage
	DeleteProof(ctx context.Context, key string) error
}

// proofKeyPrefix groups proofs in the bucket so lifecycle rules can target them.
const proofKeyPrefix = "payment-proofs/"

// S3ProofStorage keeps proofs in a private bucket and hands out presigned links
type S3ProofStorage struct {
	s3Service S3Interface
}

// NewS3ProofStorage creates proof storage backed by S3
func NewS3ProofStorage(s3Service S3Interface) *S3ProofStorage {
	return &S3ProofStorage{s3Service: s3Service}
}

func (s *S3ProofStorage) UploadProof(ctx context.Context, paymentID uint, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateProofFile(fileHeader); err != nil {
		return "", err
	}

	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open proof: %w", err)
	}
	defer file.Close()

	key := proofKeyPrefix + utils.ProofObjectName(paymentID, fileHeader.Filename)
	metadata := map[string]string{
		"payment-id":        strconv.FormatUint(uint64(paymentID), 10),
		"original-filename": filepath.Base(fileHeader.Filename),
	}
	if err := s.s3Service.PutObject(ctx, key, file, fileHeader.Size, utils.ProofContentType(fileHeader.Filename), metadata); err != nil {
		return "", fmt.Errorf("failed to upload proof: %w", err)
	}
	return key, nil
}

func (s *S3ProofStorage) GetProofURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", nil
	}
	url, err := s.s3Service.PresignGet(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to generate proof URL: %w", err)
	}
	return url, nil
}

func (s *S3ProofStorage) DeleteProof(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := s.s3Service.DeleteObject(ctx, key); err != nil {
		return fmt.Errorf("failed to delete proof: %w", err)
	}
	return nil
}

// LocalProofStorage keeps proofs on the local filesystem; used when no S3 bucket is configured
type LocalProofStorage struct {
	dir string
}

// NewLocalProofStorage creates proof storage rooted at dir
func NewLocalProofStorage(dir string) *LocalProofStorage {
	return &LocalProofStorage{dir: dir}
}

// UploadProof validates and saves a proof file under the upload directory
func (s *LocalProofStorage) UploadProof(ctx context.Context, paymentID uint, fileHeader *multipart.FileHeader) (string, error) {
	if err := utils.ValidateProofFile(fileHeader); err != nil {
		return "", err
	}
	return utils.SaveUploadedFile(fileHeader, s.dir, utils.ProofObjectName(paymentID, fileHeader.Filename))
}

// GetProofURL returns the API path serving the proof
func (s *LocalProofStorage) GetProofURL(ctx context.Context, key string) (string, error) {
	return utils.GetUploadURL(key), nil
}

// DeleteProof removes the proof file
func (s *LocalProofStorage) DeleteProof(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, filepath.Base(key))); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete proof: %w", err)
	}
	return nil
}
