package http

import (
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"media-service/ddd/application/app"
	"media-service/ddd/application/cqe"
	"media-service/pkg/errno"
	"media-service/pkg/restapi"
)

// MediaController 上传、删除、预签名接口
type MediaController struct {
	uploadApp app.UploadApp
}

func NewMediaController(uploadApp app.UploadApp) *MediaController {
	return &MediaController{uploadApp: uploadApp}
}

// Upload POST /api/v1/media，multipart 字段：file、kind、scope、ids、visibility
func (m *MediaController) Upload(ctx *gin.Context) {
	var req cqe.UploadReq
	if err := ctx.ShouldBind(&req); err != nil {
		restapi.Failed(ctx, &errno.ValidationError{Field: "form", Reason: err.Error()})
		return
	}
	req.ScopeIDs = splitIDs(req.ScopeIDs)

	fh, err := ctx.FormFile("file")
	if err != nil {
		restapi.Failed(ctx, &errno.ValidationError{Field: "file", Reason: "is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		restapi.Failed(ctx, &errno.ValidationError{Field: "file", Reason: err.Error()})
		return
	}
	req.Filename = fh.Filename
	req.MimeType = fh.Header.Get("Content-Type")
	req.Data = data

	manifest, err := m.uploadApp.HandleUpload(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, manifest)
}

// Delete DELETE /api/v1/media?key=
func (m *MediaController) Delete(ctx *gin.Context) {
	key := ctx.Query("key")
	if strings.TrimSpace(key) == "" {
		restapi.Failed(ctx, &errno.ValidationError{Field: "key", Reason: "is required"})
		return
	}
	if err := m.uploadApp.Delete(ctx.Request.Context(), key); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, gin.H{"key": key})
}

// Presign GET /api/v1/media/presign?key=&expires=
func (m *MediaController) Presign(ctx *gin.Context) {
	var req cqe.PresignReq
	if err := ctx.ShouldBindQuery(&req); err != nil {
		restapi.Failed(ctx, &errno.ValidationError{Field: "expires", Reason: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		restapi.Failed(ctx, err)
		return
	}
	resp, err := m.uploadApp.PresignedGet(ctx.Request.Context(), req.Key, time.Duration(req.Expires)*time.Second)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, resp)
}

// splitIDs 兼容 ids=a&ids=b 与 ids=a,b 两种写法
func splitIDs(in []string) []string {
	var out []string
	for _, v := range in {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				out = append(out, id)
			}
		}
	}
	return out
}
