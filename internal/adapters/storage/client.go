// Package storage provides S3-compatible object storage for progress media.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"contractor_portal_backend/platform/apperr"
	"contractor_portal_backend/platform/config"
)

// PresignedURLTTL is the expiration time for presigned download URLs.
const PresignedURLTTL = 15 * time.Minute

// PresignedURL is a time-limited link to an object.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service stores and retrieves media objects.
type Service interface {
	Upload(ctx context.Context, folder, fileName string, reader io.Reader, size int64, contentType string) (string, error)
	DownloadURL(ctx context.Context, fileKey string) (PresignedURL, error)
	Delete(ctx context.Context, fileKey string) error
}

// MinIOService implements Service using MinIO.
type MinIOService struct {
	client            *minio.Client
	bucket            string
	maxFileSize       int64
	allowedExtensions []string
}

// NewMinIOService creates a new MinIO storage service.
func NewMinIOService(minioCfg config.MinIOConfig, uploadCfg config.UploadConfig) (*MinIOService, error) {
	if !minioCfg.IsMinIOEnabled() {
		return nil, fmt.Errorf("MinIO is not configured")
	}

	client, err := minio.New(minioCfg.GetMinIOEndpoint(), &minio.Options{
		Creds:  credentials.NewStaticV4(minioCfg.GetMinIOAccessKey(), minioCfg.GetMinIOSecretKey(), ""),
		Secure: minioCfg.GetMinIOUseSSL(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &MinIOService{
		client:            client,
		bucket:            minioCfg.GetMinioBucketProgressMedia(),
		maxFileSize:       uploadCfg.GetMaxFileSize(),
		allowedExtensions: uploadCfg.GetAllowedFileExtensions(),
	}, nil
}

// EnsureBucketExists creates the media bucket if it doesn't exist.
func (s *MinIOService) EnsureBucketExists(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
		}
	}

	return nil
}

// Upload validates and stores a file, returning its object key. The key is
// suffixed with a short UUID to prevent overwrites.
func (s *MinIOService) Upload(ctx context.Context, folder, fileName string, reader io.Reader, size int64, contentType string) (string, error) {
	if err := s.validateFile(fileName, size); err != nil {
		return "", err
	}

	ext := path.Ext(fileName)
	baseName := strings.TrimSuffix(fileName, ext)
	uniqueFileName := fmt.Sprintf("%s_%s%s", baseName, uuid.New().String()[:8], ext)
	fileKey := filepath.ToSlash(filepath.Join(folder, uniqueFileName))

	_, err := s.client.PutObject(ctx, s.bucket, fileKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload file %s: %w", fileKey, err)
	}
	return fileKey, nil
}

// DownloadURL creates a presigned URL for downloading an object.
func (s *MinIOService) DownloadURL(ctx context.Context, fileKey string) (PresignedURL, error) {
	expiresAt := time.Now().Add(PresignedURLTTL)

	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, fileKey, PresignedURLTTL, make(url.Values))
	if err != nil {
		return PresignedURL{}, fmt.Errorf("failed to generate presigned download URL: %w", err)
	}

	return PresignedURL{
		URL:       presignedURL.String(),
		FileKey:   fileKey,
		ExpiresAt: expiresAt,
	}, nil
}

// Delete removes an object from storage.
func (s *MinIOService) Delete(ctx context.Context, fileKey string) error {
	err := s.client.RemoveObject(ctx, s.bucket, fileKey, minio.RemoveObjectOptions{})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", fileKey, err)
	}
	return nil
}

func (s *MinIOService) validateFile(fileName string, size int64) error {
	if size <= 0 {
		return apperr.Validation("file is empty")
	}
	if size > s.maxFileSize {
		return apperr.Validation(fmt.Sprintf("file exceeds the maximum size of %d bytes", s.maxFileSize)).
			WithDetails(map[string]interface{}{"maxFileSize": s.maxFileSize})
	}

	ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), ".")
	for _, allowed := range s.allowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return apperr.Validation(fmt.Sprintf("file type %q is not allowed", ext)).
		WithDetails(map[string]interface{}{"allowedTypes": s.allowedExtensions})
}
