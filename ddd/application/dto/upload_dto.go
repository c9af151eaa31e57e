package dto

import (
	"time"

	"media-service/ddd/domain/vo"
)

// StoragePrivateBucket marks manifests whose keys need presigned reads.
const StoragePrivateBucket = "private-bucket"

// UploadManifest 上传结果，调用方据此持久化对象 key
type UploadManifest struct {
	Storage     string   `json:"storage"`
	SourceURL   string   `json:"sourceUrl,omitempty"`
	ImageKey    string   `json:"imageKey,omitempty"`
	PlaylistKey string   `json:"playlistKey,omitempty"`
	SegmentKeys []string `json:"segmentKeys,omitempty"`
}

// NewUploadManifest 由转码清单构造
func NewUploadManifest(m vo.TranscodeManifest) *UploadManifest {
	return &UploadManifest{
		Storage:     StoragePrivateBucket,
		ImageKey:    m.ImageKey.String(),
		PlaylistKey: m.PlaylistKey.String(),
		SegmentKeys: m.SegmentStrings(),
	}
}

// PresignDTO 预签名结果
type PresignDTO struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
