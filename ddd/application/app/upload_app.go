package app

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"media-service/ddd/application/cqe"
	"media-service/ddd/application/dto"
	"media-service/ddd/domain/gateway"
	"media-service/ddd/domain/service"
	"media-service/ddd/domain/vo"
	"media-service/ddd/infrastructure/signer"
	"media-service/pkg/errno"
	"media-service/pkg/logger"
)

const amzDateFormat = "20060102T150405Z"

type UploadApp interface {
	// HandleUpload 校验、转码（image/video）或直存（raw），返回清单
	HandleUpload(ctx context.Context, req *cqe.UploadReq) (*dto.UploadManifest, error)
	// Delete 删除对象，接受 key 或完整 URL
	Delete(ctx context.Context, keyOrURL string) error
	// PresignedGet 生成限时读取地址，接受 key 或完整 URL
	PresignedGet(ctx context.Context, keyOrURL string, expiry time.Duration) (*dto.PresignDTO, error)
}

// UploadOptions 应用层参数
type UploadOptions struct {
	Bucket        string
	PresignExpiry time.Duration
	// PathPrefixes 端点或 CDN 地址中位于桶名之前的路径，如 "/s3"
	PathPrefixes []string
}

type uploadAppImpl struct {
	storage   gateway.StorageGateway
	transcode service.TranscodeService
	publisher gateway.EventPublisher
	opts      UploadOptions
	now       func() time.Time
}

func NewUploadApp(storage gateway.StorageGateway, transcode service.TranscodeService, publisher gateway.EventPublisher, opts UploadOptions) UploadApp {
	if publisher == nil {
		publisher = gateway.NopPublisher{}
	}
	if opts.PresignExpiry <= 0 {
		opts.PresignExpiry = time.Hour
	}
	return &uploadAppImpl{
		storage:   storage,
		transcode: transcode,
		publisher: publisher,
		opts:      opts,
		now:       time.Now,
	}
}

func (a *uploadAppImpl) HandleUpload(ctx context.Context, req *cqe.UploadReq) (*dto.UploadManifest, error) {
	if req == nil {
		return nil, &errno.ValidationError{Field: "request", Reason: "is nil"}
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	scope, _ := req.ToScope()
	kind := req.MediaKind()

	var (
		manifest *dto.UploadManifest
		err      error
	)
	switch kind {
	case vo.MediaKindImage:
		var m vo.TranscodeManifest
		if m, err = a.transcode.ToWebp(ctx, scope, req.File()); err == nil {
			manifest = dto.NewUploadManifest(m)
		}
	case vo.MediaKindVideo:
		var m vo.TranscodeManifest
		if m, err = a.transcode.ToHLS(ctx, scope, req.File()); err == nil {
			manifest = dto.NewUploadManifest(m)
		}
	default:
		manifest, err = a.storeRaw(ctx, scope, req)
	}
	if err != nil {
		logger.WithContext(ctx).Error("upload failed", map[string]interface{}{
			"kind":  kind.String(),
			"scope": req.Scope,
			"error": err.Error(),
		})
		return nil, err
	}

	a.publish(ctx, kind, req.Scope, manifest)
	return manifest, nil
}

func (a *uploadAppImpl) storeRaw(ctx context.Context, scope vo.Scope, req *cqe.UploadReq) (*dto.UploadManifest, error) {
	file := req.File()
	visibility := vo.ParseVisibility(req.Visibility)
	key, err := vo.BuildKey(visibility, scope, vo.NewArtifactName(file.Ext("")))
	if err != nil {
		return nil, &errno.ValidationError{Field: "scope", Reason: err.Error()}
	}
	if err := a.storage.Put(ctx, gateway.Artifact{
		Key:         key,
		Body:        file.Data,
		ContentType: file.MimeType,
		ACL:         visibility.ACL(),
	}); err != nil {
		return nil, err
	}

	m := &dto.UploadManifest{Storage: dto.StoragePrivateBucket, SourceURL: key.String()}
	if visibility == vo.VisibilityPublic {
		m.SourceURL = a.storage.PublicURL(key)
	}
	return m, nil
}

func (a *uploadAppImpl) publish(ctx context.Context, kind vo.MediaKind, scope string, m *dto.UploadManifest) {
	err := a.publisher.PublishArtifactsStored(ctx, gateway.ArtifactsStoredEvent{
		Kind:        kind.String(),
		Scope:       scope,
		SourceURL:   m.SourceURL,
		ImageKey:    m.ImageKey,
		PlaylistKey: m.PlaylistKey,
		SegmentKeys: m.SegmentKeys,
		StoredAt:    a.now().UTC(),
	})
	if err != nil {
		logger.WithContext(ctx).Warn("publish artifacts stored event failed", map[string]interface{}{
			"kind":  kind.String(),
			"error": err.Error(),
		})
	}
}

func (a *uploadAppImpl) Delete(ctx context.Context, keyOrURL string) error {
	key := vo.NormalizeKey(keyOrURL, a.opts.Bucket, a.opts.PathPrefixes...)
	if key == "" {
		return &errno.ValidationError{Field: "key", Reason: "is required"}
	}
	return a.storage.Delete(ctx, key)
}

func (a *uploadAppImpl) PresignedGet(ctx context.Context, keyOrURL string, expiry time.Duration) (*dto.PresignDTO, error) {
	key := vo.NormalizeKey(keyOrURL, a.opts.Bucket, a.opts.PathPrefixes...)
	if key == "" {
		return nil, &errno.ValidationError{Field: "key", Reason: "is required"}
	}
	if expiry <= 0 {
		expiry = a.opts.PresignExpiry
	}
	expiry = signer.ClampExpiry(expiry)
	issued := a.now()
	u, err := a.storage.PresignedGet(ctx, key, expiry)
	if err != nil {
		return nil, err
	}
	expiresAt, ok := signedExpiry(u)
	if !ok {
		// 未签名的直链没有过期时间，按本地时钟估算
		expiresAt = issued.Add(expiry)
	}
	return &dto.PresignDTO{Key: key.String(), URL: u, ExpiresAt: expiresAt.UTC()}, nil
}

// signedExpiry reads X-Amz-Date + X-Amz-Expires from a presigned URL.
func signedExpiry(rawURL string) (time.Time, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return time.Time{}, false
	}
	q := u.Query()
	issued, err := time.Parse(amzDateFormat, q.Get("X-Amz-Date"))
	if err != nil {
		return time.Time{}, false
	}
	secs, err := strconv.Atoi(q.Get("X-Amz-Expires"))
	if err != nil {
		return time.Time{}, false
	}
	return issued.Add(time.Duration(secs) * time.Second), true
}
