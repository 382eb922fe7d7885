package store

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"github.com/minio/minio-go/v7"

	"github.com/pattty847/Multi-Agent-Team/pkg/logger"
)

// ArtifactStore 负责把团队会话在工作区里产出的文件上传到 MinIO，
// 对象按 "<workflowID>/<文件名>" 组织，方便按工作流检索。
type ArtifactStore struct {
	minioClient *minio.Client
	bucket      string
	logger      *logger.Logger
}

// NewArtifactStore 创建一个新的 ArtifactStore 实例。
func NewArtifactStore(minioClient *minio.Client, bucket string, log *logger.Logger) *ArtifactStore {
	if bucket == "" {
		bucket = "team-artifacts"
	}
	return &ArtifactStore{
		minioClient: minioClient,
		bucket:      bucket,
		logger:      log,
	}
}

// UploadArtifacts 把一组本地文件上传到工作流对应的前缀下，
// 返回上传成功的对象名称列表。
func (s *ArtifactStore) UploadArtifacts(ctx context.Context, workflowID string, paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, err
	}

	objects := make([]string, 0, len(paths))
	for _, path := range paths {
		objectName := fmt.Sprintf("%s/%s", workflowID, filepath.Base(path))
		contentType := mime.TypeByExtension(filepath.Ext(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		_, err := s.minioClient.FPutObject(ctx, s.bucket, objectName, path, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return objects, fmt.Errorf("failed to upload artifact '%s' to MinIO: %w", path, err)
		}
		objects = append(objects, objectName)
	}

	s.logger.WithPayload(map[string]interface{}{
		"workflowID": workflowID,
		"count":      len(objects),
	}).Info("Uploaded workflow artifacts to MinIO")
	return objects, nil
}

// ensureBucketExists 检查存储桶是否存在，不存在则创建。
func (s *ArtifactStore) ensureBucketExists(ctx context.Context) error {
	found, err := s.minioClient.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket '%s' exists: %w", s.bucket, err)
	}
	if !found {
		s.logger.Info(fmt.Sprintf("Bucket '%s' not found, creating it.", s.bucket))
		if err := s.minioClient.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket '%s': %w", s.bucket, err)
		}
	}
	return nil
}
