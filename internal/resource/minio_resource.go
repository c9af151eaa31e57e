package resource

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"media-service/ddd/infrastructure/signer"
	"media-service/pkg/config"
	"media-service/pkg/logger"
)

// MinioResource MinIO资源管理器
type MinioResource struct {
	client     *minio.Client
	bucketName string
	publicBase string
}

// NewMinioResource 初始化MinIO资源
func NewMinioResource(storageCfg config.StorageConfig) (*MinioResource, error) {
	endpoint, err := signer.ParseEndpoint(storageCfg.Endpoint)
	if err != nil {
		return nil, err
	}
	secure := storageCfg.UseSSL || endpoint.Scheme == "https"

	client, err := minio.New(endpoint.Host, &minio.Options{
		Creds:  credentials.NewStaticV4(storageCfg.AccessKey, storageCfg.SecretKey, ""),
		Secure: secure,
		Region: storageCfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	publicBase := storageCfg.PublicBase
	if publicBase == "" {
		publicBase = endpoint.Scheme + "://" + endpoint.Host
	}

	r := &MinioResource{client: client, bucketName: storageCfg.Bucket, publicBase: publicBase}
	logger.Info("MinIO resource initialized", map[string]interface{}{
		"endpoint":    endpoint.Host,
		"bucket_name": r.bucketName,
	})
	return r, nil
}

// EnsureBucket 确保桶存在
func (r *MinioResource) EnsureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check minio bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := r.client.MakeBucket(ctx, r.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create minio bucket: %w", err)
	}
	return nil
}

// GetClient 获取MinIO客户端
func (r *MinioResource) GetClient() *minio.Client {
	return r.client
}

// GetBucketName 获取桶名称
func (r *MinioResource) GetBucketName() string {
	return r.bucketName
}

// GetPublicBase 直链前缀，不含桶名
func (r *MinioResource) GetPublicBase() string {
	return r.publicBase
}

// Close 释放资源
func (r *MinioResource) Close() {
	// minio-go客户端无需关闭连接
}
