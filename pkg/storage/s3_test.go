package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestS3Storage_KeyFromURL(t *testing.T) {
	s := &S3Storage{bucket: "proofs", baseURL: "https://cdn.example.com"}

	key, ok := s.KeyFromURL("https://cdn.example.com/proofs/user/p.jpg")
	assert.True(t, ok)
	assert.Equal(t, "proofs/user/p.jpg", key)

	// Path-style URLs from S3-compatible endpoints strip the bucket prefix.
	key, ok = s.KeyFromURL("https://minio.internal/proofs/user/p.jpg")
	assert.True(t, ok)
	assert.Equal(t, "user/p.jpg", key)

	_, ok = s.KeyFromURL("https://cdn.example.com/")
	assert.False(t, ok)

	_, ok = s.KeyFromURL("://bad")
	assert.False(t, ok)
}
