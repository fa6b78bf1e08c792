package router

import (
	"github.com/gin-gonic/gin"

	"github.com/executa/knowledge-engine/internal/handler"
	"github.com/executa/knowledge-engine/internal/middleware"
)

// SetupRouter 设置路由
func SetupRouter(h *handler.Handlers) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())
	r.Use(middleware.CORSMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1，全部接口以账户为边界
	v1 := r.Group("/api/v1")
	v1.Use(middleware.AccountMiddleware())
	{
		// 文件与处理会话
		files := v1.Group("/files")
		{
			files.POST("/upload", h.File.UploadFiles)
			files.GET("", h.File.ListFiles)
			files.GET("/:id", h.File.GetFile)
			files.POST("/:id/retry", h.File.RetryFile)
		}
		v1.GET("/sessions/:id", h.File.GetSession)

		// 助手关联与同步
		assistants := v1.Group("/assistants")
		{
			assistants.POST("/:id/sync", h.Sync.SyncFromSource)
			assistants.GET("/:id/files", h.Sync.ListAssistantFiles)
			assistants.DELETE("/:id/files/:fileId", h.Sync.UnlinkFile)
		}

		// 外部数据源集成
		integrations := v1.Group("/integrations")
		{
			integrations.POST("/:provider", h.Sync.ConnectIntegration)
			integrations.GET("/:provider", h.Sync.GetIntegration)
			integrations.DELETE("/:provider", h.Sync.DisconnectIntegration)
		}
	}

	return r
}
