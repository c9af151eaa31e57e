package restapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"media-service/pkg/errno"
	"media-service/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 返回成功响应
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, Response{
		Code:    errno.OK.Code,
		Message: errno.OK.Message,
		Data:    data,
	})
}

// Failed 按错误类型映射状态码和业务码
func Failed(ctx *gin.Context, err error) {
	e, status := errno.Classify(err)
	if status >= http.StatusInternalServerError {
		logger.WithContext(ctx.Request.Context()).Error("request failed", map[string]interface{}{
			"path":  ctx.FullPath(),
			"code":  e.Code,
			"error": err.Error(),
		})
	}
	ctx.AbortWithStatusJSON(status, Response{Code: e.Code, Message: e.Message})
}
