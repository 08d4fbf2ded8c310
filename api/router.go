package api

import (
	"github.com/fyerfyer/contract-analyzer/api/handler"
	"github.com/fyerfyer/contract-analyzer/api/middleware"
	"github.com/gin-gonic/gin"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
// taskHandler为nil时不注册任务相关路由（未启用异步处理）
func SetupRouter(
	contractHandler *handler.ContractHandler,
	analysisHandler *handler.AnalysisHandler,
	taskHandler *handler.TaskHandler,
) *gin.Engine {
	// 创建默认的Gin路由引擎
	router := gin.Default()

	// 应用全局中间件
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(middleware.SetTraceID())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	// 创建API分组
	api := router.Group("/api")
	{
		// 合同管理API
		contractGroup := api.Group("/contracts")
		{
			// 上传合同 - POST /api/contracts
			contractGroup.POST("", contractHandler.UploadContract)

			// 获取合同列表 - GET /api/contracts
			contractGroup.GET("", contractHandler.ListContracts)

			// 获取合同信息 - GET /api/contracts/:id
			contractGroup.GET("/:id", contractHandler.GetContract)

			// 获取合同正文 - GET /api/contracts/:id/text
			contractGroup.GET("/:id/text", contractHandler.GetContractText)

			// 更新合同标签 - PUT /api/contracts/:id/tags
			contractGroup.PUT("/:id/tags", contractHandler.UpdateContractTags)

			// 删除合同 - DELETE /api/contracts/:id
			contractGroup.DELETE("/:id", contractHandler.DeleteContract)

			// 执行合同分析 - POST /api/contracts/:id/analyze
			contractGroup.POST("/:id/analyze", analysisHandler.AnalyzeContract)

			// 获取分析报告 - GET /api/contracts/:id/report
			contractGroup.GET("/:id/report", analysisHandler.GetReport)

			// 导出分析报告 - GET /api/contracts/:id/report/export
			contractGroup.GET("/:id/report/export", analysisHandler.ExportReport)

			// 获取条款块 - GET /api/contracts/:id/clauses
			contractGroup.GET("/:id/clauses", analysisHandler.GetClauses)

			// 条款检索 - GET /api/contracts/:id/search
			contractGroup.GET("/:id/search", analysisHandler.SearchClauses)

			// 获取合同相关任务 - GET /api/contracts/:id/tasks
			if taskHandler != nil {
				contractGroup.GET("/:id/tasks", taskHandler.GetContractTasks)
			}
		}

		// 任务API（仅在启用异步处理时注册）
		if taskHandler != nil {
			taskGroup := api.Group("/tasks")
			{
				// 任务回调 - POST /api/tasks/callback
				taskGroup.POST("/callback", taskHandler.HandleCallback)

				// 获取任务状态 - GET /api/tasks/:id
				taskGroup.GET("/:id", taskHandler.GetTaskStatus)
			}
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件
// 如果需要支持跨域请求，可以启用此中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
