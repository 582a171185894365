package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds proof artifact storage configuration
type Config struct {
	Bucket        string `json:"bucket"`
	Region        string `json:"region"`
	Endpoint      string `json:"endpoint"` // For S3-compatible storage
	AccessKey     string `json:"access_key"`
	SecretKey     string `json:"secret_key"`
	BaseURL       string `json:"base_url"` // Public URL prefix
	MaxFileSizeMB int    `json:"max_file_size_mb"`
}

// UploadResult contains the result of an upload operation
type UploadResult struct {
	Key        string    `json:"key"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mime_type"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// PresignedURLResult contains a presigned URL for direct download
type PresignedURLResult struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Storage interface defines the proof artifact storage operations
type Storage interface {
	// Upload uploads a proof artifact to storage
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (*UploadResult, error)

	// Download downloads a proof artifact from storage
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete deletes a proof artifact from storage
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for an artifact
	GetURL(key string) string

	// KeyFromURL maps a stored artifact URL back to its storage key
	KeyFromURL(url string) (string, bool)

	// GetPresignedDownloadURL generates a presigned URL so manual reviewers
	// can inspect a private artifact
	GetPresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (*PresignedURLResult, error)

	// Exists checks if an artifact exists
	Exists(ctx context.Context, key string) (bool, error)
}

// GenerateProofKey generates a unique storage key for a proof artifact.
// Format: users/{user_id}/proofs/{proof_type}/{timestamp}_{unique_id}{ext}
func GenerateProofKey(userID uuid.UUID, proofType, filename string) string {
	ext := path.Ext(filename)
	uniqueID := uuid.New().String()[:8]
	timestamp := time.Now().Format("20060102")

	return fmt.Sprintf("users/%s/proofs/%s/%s_%s%s",
		userID.String(),
		strings.ToLower(proofType),
		timestamp,
		uniqueID,
		ext,
	)
}

// ValidateMimeType checks if the mime type is allowed for proof artifacts
func ValidateMimeType(mimeType string, allowedTypes []string) bool {
	if len(allowedTypes) == 0 {
		return true
	}

	mimeType = strings.ToLower(mimeType)
	for _, allowed := range allowedTypes {
		if strings.ToLower(allowed) == mimeType {
			return true
		}
		// Support wildcards like "image/*"
		if strings.HasSuffix(allowed, "/*") {
			prefix := strings.TrimSuffix(allowed, "*")
			if strings.HasPrefix(mimeType, prefix) {
				return true
			}
		}
	}
	return false
}

// GetMimeTypeFromExtension returns the MIME type for supported proof file
// extensions
func GetMimeTypeFromExtension(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	mimeTypes := map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".heic": "image/heic",
		".pdf":  "application/pdf",
	}

	if mime, ok := mimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsImageMimeType checks if the mime type is an image
func IsImageMimeType(mimeType string) bool {
	return strings.HasPrefix(strings.ToLower(mimeType), "image/")
}
