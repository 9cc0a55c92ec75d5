package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const avatarPathPrefix = "avatars"

var (
	ErrStorageDisabled    = errors.New("avatar storage is disabled")
	ErrFileTooBig         = errors.New("avatar exceeds the size limit")
	ErrInvalidFileType    = errors.New("only JPEG and PNG images are allowed")
	ErrBucketInitFailed   = errors.New("failed to prepare avatar bucket")
	ErrUploadFailed       = errors.New("failed to upload avatar")
	ErrUnauthorizedAccess = errors.New("avatar does not belong to user")

	avatarContentTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
	}
)

type StoredAvatar struct {
	ObjectKey   string
	URL         string
	ContentType string
	Size        int64
}

type AvatarStore interface {
	PutAvatar(ctx context.Context, userID string, file io.Reader, size int64) (*StoredAvatar, error)
	RemoveAvatar(ctx context.Context, userID, objectKey string) error
	// ObjectKeyFromURL returns the key of an avatar URL this store issued, or "".
	ObjectKeyFromURL(avatarURL string) string
}

// MinIOAvatarStore keeps avatars in an S3 compatible bucket whose avatars/
// prefix is anonymously readable, so the stored URL never expires.
type MinIOAvatarStore struct {
	client   *minio.Client
	bucket   string
	maxBytes int64
	initOnce sync.Once
	initErr  error
}

func NewMinIOAvatarStore(endpoint, accessKey, secretKey, bucket string, useSSL bool, maxBytes int64) (*MinIOAvatarStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOAvatarStore{client: client, bucket: bucket, maxBytes: maxBytes}, nil
}

// ensureBucket runs once, on first use, so startup does not depend on MinIO.
func (s *MinIOAvatarStore) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = fmt.Errorf("%w: %v", ErrBucketInitFailed, err)
			return
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
				s.initErr = fmt.Errorf("%w: %v", ErrBucketInitFailed, err)
				return
			}
		}
		policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/%s/*"]}]}`, s.bucket, avatarPathPrefix)
		if err := s.client.SetBucketPolicy(ctx, s.bucket, policy); err != nil {
			s.initErr = fmt.Errorf("%w: set policy: %v", ErrBucketInitFailed, err)
		}
	})
	return s.initErr
}

// PutAvatar sniffs the first bytes instead of trusting the client content type.
func (s *MinIOAvatarStore) PutAvatar(ctx context.Context, userID string, file io.Reader, size int64) (*StoredAvatar, error) {
	if size > s.maxBytes {
		return nil, ErrFileTooBig
	}
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: read: %v", ErrUploadFailed, err)
	}
	head = head[:n]
	contentType := strings.ToLower(http.DetectContentType(head))
	ext, ok := avatarContentTypes[contentType]
	if !ok {
		return nil, ErrInvalidFileType
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s/%s%s", avatarPathPrefix, userID, uuid.NewString(), ext)
	_, err = s.client.PutObject(ctx, s.bucket, key, io.MultiReader(bytes.NewReader(head), file), size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"User-ID":     userID,
			"Uploaded-At": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return &StoredAvatar{ObjectKey: key, URL: s.publicURL(key), ContentType: contentType, Size: size}, nil
}

func (s *MinIOAvatarStore) RemoveAvatar(ctx context.Context, userID, objectKey string) error {
	if strings.TrimSpace(objectKey) == "" {
		return nil
	}
	if strings.Contains(objectKey, "..") || !strings.HasPrefix(objectKey, avatarPathPrefix+"/"+userID+"/") {
		return ErrUnauthorizedAccess
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
}

func (s *MinIOAvatarStore) ObjectKeyFromURL(avatarURL string) string {
	prefix := s.publicURL("")
	if !strings.HasPrefix(avatarURL, prefix) {
		return ""
	}
	return strings.TrimPrefix(avatarURL, prefix)
}

func (s *MinIOAvatarStore) publicURL(key string) string {
	return strings.TrimRight(s.client.EndpointURL().String(), "/") + "/" + s.bucket + "/" + key
}

// DisabledAvatarStore is wired when AVATAR_STORAGE_ENABLED=false.
type DisabledAvatarStore struct{}

func (DisabledAvatarStore) PutAvatar(context.Context, string, io.Reader, int64) (*StoredAvatar, error) {
	return nil, ErrStorageDisabled
}

func (DisabledAvatarStore) RemoveAvatar(context.Context, string, string) error { return nil }

func (DisabledAvatarStore) ObjectKeyFromURL(string) string { return "" }
