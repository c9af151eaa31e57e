package gateway

import (
	"context"
	"time"

	"media-service/ddd/domain/vo"
)

// Artifact 待上传的对象
type Artifact struct {
	Key         vo.ObjectKey
	Body        []byte
	ContentType string
	ACL         vo.ACL
}

// StorageGateway 对象存储网关。所有调用方共用一份签名凭证
type StorageGateway interface {
	// Put 上传对象，ACL 为空时按 key 的命名空间推导
	Put(ctx context.Context, artifact Artifact) error
	// Delete 删除对象
	Delete(ctx context.Context, key vo.ObjectKey) error
	// PresignedGet 生成限时读取地址，不访问网络
	PresignedGet(ctx context.Context, key vo.ObjectKey, expiry time.Duration) (string, error)
	// PublicURL 返回 public/ 对象的直链
	PublicURL(key vo.ObjectKey) string
}
