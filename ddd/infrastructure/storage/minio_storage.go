package storage

import (
	"bytes"
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"

	"media-service/ddd/domain/gateway"
	"media-service/ddd/domain/vo"
	"media-service/ddd/infrastructure/signer"
	"media-service/pkg/errno"
	"media-service/pkg/logger"
)

// MinioStorage MinIO存储实现，与 S3Storage 满足同一网关接口
type MinioStorage struct {
	client     *minio.Client
	bucketName string
	publicBase string
}

// NewMinioStorage 创建MinIO存储实例
func NewMinioStorage(client *minio.Client, bucketName, publicBase string) *MinioStorage {
	return &MinioStorage{
		client:     client,
		bucketName: bucketName,
		publicBase: strings.TrimRight(publicBase, "/"),
	}
}

var _ gateway.StorageGateway = (*MinioStorage)(nil)

// Put 上传对象
func (s *MinioStorage) Put(ctx context.Context, artifact gateway.Artifact) error {
	key := artifact.Key.String()
	contentType := artifact.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	acl := artifact.ACL
	if acl == "" {
		acl = vo.ACLForKey(artifact.Key)
	}

	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(artifact.Body), int64(len(artifact.Body)), minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: map[string]string{"x-amz-acl": string(acl)},
	})
	if err != nil {
		logger.WithContext(ctx).Error("Failed to upload object to MinIO", map[string]interface{}{
			"object_key": key,
			"error":      err.Error(),
		})
		return toStorageError("put", key, err)
	}

	logger.WithContext(ctx).Debug("Object uploaded to MinIO", map[string]interface{}{
		"object_key": key,
		"size":       len(artifact.Body),
	})
	return nil
}

// Delete 删除对象
func (s *MinioStorage) Delete(ctx context.Context, key vo.ObjectKey) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, key.String(), minio.RemoveObjectOptions{}); err != nil {
		return toStorageError("delete", key.String(), err)
	}
	logger.WithContext(ctx).Info("Object removed from MinIO", map[string]interface{}{"object_key": key.String()})
	return nil
}

// PresignedGet 生成预签名下载地址
func (s *MinioStorage) PresignedGet(ctx context.Context, key vo.ObjectKey, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key.String(), signer.ClampExpiry(expiry), url.Values{})
	if err != nil {
		return "", toStorageError("presign", key.String(), err)
	}
	return u.String(), nil
}

// PublicURL 返回直链
func (s *MinioStorage) PublicURL(key vo.ObjectKey) string {
	return s.publicBase + "/" + signer.EncodeSegment(s.bucketName) + "/" + signer.EncodePath(key.String())
}

func toStorageError(op, key string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == 0 {
		return &errno.StorageError{Op: op, Key: key, Err: err}
	}
	return &errno.StorageError{
		Op:         op,
		Key:        key,
		StatusCode: resp.StatusCode,
		Body:       resp.Code + ": " + resp.Message,
	}
}
