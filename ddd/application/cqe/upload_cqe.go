package cqe

import (
	"strings"

	"media-service/ddd/domain/vo"
	"media-service/pkg/errno"
)

// UploadReq 上传请求
type UploadReq struct {
	Scope      string   `form:"scope" json:"scope"`           // course_thumbnail | lesson_module | review
	ScopeIDs   []string `form:"ids" json:"ids"`               // 作用域ID，按 scope 顺序
	Kind       string   `form:"kind" json:"kind"`             // image | video | raw，为空时按 MIME 推断
	Visibility string   `form:"visibility" json:"visibility"` // 仅 raw 生效，默认 private
	Filename   string   `form:"-" json:"filename"`
	MimeType   string   `form:"-" json:"mime_type"`
	Data       []byte   `form:"-" json:"-"`
}

// Validate 校验请求，在任何编码或网络调用之前执行
func (req *UploadReq) Validate() error {
	if len(req.Data) == 0 {
		return &errno.ValidationError{Field: "file", Reason: "is empty"}
	}
	if strings.TrimSpace(req.Scope) == "" {
		return &errno.ValidationError{Field: "scope", Reason: "is required"}
	}
	if _, err := req.ToScope(); err != nil {
		return &errno.ValidationError{Field: "scope", Reason: err.Error()}
	}
	if !req.MediaKind().IsValid() {
		return &errno.ValidationError{Field: "kind", Reason: "must be image, video or raw"}
	}
	return nil
}

// ToScope 转换为领域作用域
func (req *UploadReq) ToScope() (vo.Scope, error) {
	return vo.ParseScope(req.Scope, req.ScopeIDs)
}

// MediaKind 解析处理方式
func (req *UploadReq) MediaKind() vo.MediaKind {
	if strings.TrimSpace(req.Kind) == "" {
		return vo.GuessMediaKind(req.MimeType)
	}
	return vo.ParseMediaKind(req.Kind)
}

// File 转换为领域文件
func (req *UploadReq) File() vo.MediaFile {
	return vo.MediaFile{Filename: req.Filename, MimeType: req.MimeType, Data: req.Data}
}

// PresignReq 预签名请求
type PresignReq struct {
	Key     string `form:"key" json:"key"`
	Expires int    `form:"expires" json:"expires"` // 秒，<=0 使用默认值
}

// Validate 校验
func (req *PresignReq) Validate() error {
	if strings.TrimSpace(req.Key) == "" {
		return &errno.ValidationError{Field: "key", Reason: "is required"}
	}
	return nil
}
