package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hearthbakery/bakery-orders-api/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3ProofStorage(t *testing.T) {
	ctx := context.Background()
	mockS3 := NewMockS3Service()
	storage := NewS3ProofStorage(mockS3)

	key, err := storage.UploadProof(ctx, 12, newFileHeader(t, "Transfer.PNG", []byte("png")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "payment-proofs/payment_12_"))
	assert.True(t, strings.HasSuffix(key, ".png"))
	content, contentType, metadata, ok := mockS3.Object(key)
	require.True(t, ok)
	assert.Equal(t, "png", string(content))
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "12", metadata["payment-id"])
	assert.Equal(t, "Transfer.PNG", metadata["original-filename"])

	url, err := storage.GetProofURL(ctx, key)
	require.NoError(t, err)
	assert.Contains(t, url, key)

	url, err = storage.GetProofURL(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, url)

	require.NoError(t, storage.DeleteProof(ctx, key))
	assert.False(t, mockS3.FileExists(key))
	_, err = storage.GetProofURL(ctx, key)
	assert.Error(t, err)
}

func TestS3ProofStorage_RejectsInvalidFiles(t *testing.T) {
	ctx := context.Background()
	mockS3 := NewMockS3Service()
	storage := NewS3ProofStorage(mockS3)

	_, err := storage.UploadProof(ctx, 1, newFileHeader(t, "proof.pdf", []byte("%PDF")))
	var uploadErr *utils.FileUploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "INVALID_FILE_FORMAT", uploadErr.Code)

	_, err = storage.UploadProof(ctx, 1, nil)
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, "NO_FILE", uploadErr.Code)
	assert.Equal(t, 0, mockS3.FileCount())
}

func TestLocalProofStorage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	storage := NewLocalProofStorage(dir)

	key, err := storage.UploadProof(ctx, 3, newFileHeader(t, "slip.jpg", []byte("jpeg-bytes")))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "payment_3_"))

	content, err := os.ReadFile(filepath.Join(dir, key))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(content))

	url, err := storage.GetProofURL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/uploads/"+key, url)

	require.NoError(t, storage.DeleteProof(ctx, key))
	_, err = os.Stat(filepath.Join(dir, key))
	assert.True(t, os.IsNotExist(err))

	// deleting twice is not an error
	assert.NoError(t, storage.DeleteProof(ctx, key))
}
