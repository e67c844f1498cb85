package service

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jimp5978/dshi-field-app/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Archiver 업로드 원본 보관
type Archiver interface {
	Archive(ctx context.Context, prefix, fileName string, data []byte, contentType string) (string, error)
}

// MinIOArchiver MinIO 버킷에 날짜별로 저장
type MinIOArchiver struct {
	client *minio.Client
	bucket string
}

// NewMinIOArchiver endpoint가 없으면 nil, nil
func NewMinIOArchiver(cfg config.MinIOConfig) (*MinIOArchiver, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinIOArchiver{client: client, bucket: cfg.Bucket}, nil
}

func (a *MinIOArchiver) Archive(ctx context.Context, prefix, fileName string, data []byte, contentType string) (string, error) {
	objectName := fmt.Sprintf("%s/%s/%s%s", prefix, time.Now().Format("2006/01/02"), uuid.New().String()[:8], filepath.Ext(fileName))
	_, err := a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-name": fileName,
		},
	})
	if err != nil {
		return "", fmt.Errorf("upload file: %w", err)
	}
	return objectName, nil
}
