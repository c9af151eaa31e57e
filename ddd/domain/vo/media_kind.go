package vo

import "strings"

// MediaKind 上传文件的处理方式
type MediaKind string

const (
	MediaKindImage MediaKind = "image" // 转 WebP
	MediaKindVideo MediaKind = "video" // 切 HLS
	MediaKindRaw   MediaKind = "raw"   // 原样存储
)

func (k MediaKind) String() string { return string(k) }

// IsValid 检查类型是否支持
func (k MediaKind) IsValid() bool {
	switch k {
	case MediaKindImage, MediaKindVideo, MediaKindRaw:
		return true
	default:
		return false
	}
}

// ParseMediaKind lower-cases and trims s. Unknown kinds are returned as is and fail IsValid.
func ParseMediaKind(s string) MediaKind {
	return MediaKind(strings.ToLower(strings.TrimSpace(s)))
}

// GuessMediaKind picks a kind from a MIME type when the caller did not name one.
func GuessMediaKind(mimeType string) MediaKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return MediaKindImage
	case strings.HasPrefix(mt, "video/"):
		return MediaKindVideo
	default:
		return MediaKindRaw
	}
}
