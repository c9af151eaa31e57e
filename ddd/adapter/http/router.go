package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"media-service/ddd/application/app"
	"media-service/pkg/middleware"
)

// Router 路由配置
type Router struct {
	uploadApp      app.UploadApp
	maxUploadBytes int64
}

// NewRouter 创建路由配置
func NewRouter(uploadApp app.UploadApp, maxUploadBytes int64) *Router {
	return &Router{uploadApp: uploadApp, maxUploadBytes: maxUploadBytes}
}

// SetupMiddleware 设置中间件
func (r *Router) SetupMiddleware(engine *gin.Engine) {
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestContextMiddleware())
	engine.Use(middleware.MaxBodySize(r.maxUploadBytes))
}

// SetupRoutes 设置路由
func (r *Router) SetupRoutes(engine *gin.Engine) {
	media := NewMediaController(r.uploadApp)

	v1 := engine.Group("/api/v1")
	{
		v1.POST("/media", media.Upload)         // 上传并转码
		v1.DELETE("/media", media.Delete)       // 删除对象
		v1.GET("/media/presign", media.Presign) // 预签名读取
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"service":   "media-service",
			"timestamp": time.Now().Unix(),
		})
	})
}

// Engine 组装完整的 gin 引擎
func (r *Router) Engine() *gin.Engine {
	engine := gin.New()
	r.SetupMiddleware(engine)
	r.SetupRoutes(engine)
	return engine
}
