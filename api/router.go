package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/neurocme/api/handler"
	"github.com/fyerfyer/neurocme/api/middleware"
)

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(analysisHandler *handler.AnalysisHandler) *gin.Engine {
	router := gin.New()

	// 应用全局中间件
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
		router.Use(middleware.ResponseLogger())
	}

	api := router.Group("/api")
	{
		// 分析入口
		analyze := api.Group("/analyze")
		{
			analyze.POST("/pdf", analysisHandler.AnalyzePDF)
			analyze.POST("/url", analysisHandler.AnalyzeURL)
			analyze.POST("/text", analysisHandler.AnalyzeText)
		}

		// 网页预览，确认后再分析
		preview := api.Group("/preview")
		{
			preview.POST("/url", analysisHandler.PreviewURL)
			preview.GET("/:id", analysisHandler.GetPreview)
			preview.POST("/:id/analyze", analysisHandler.AnalyzePreview)
		}

		// 分析结果
		analyses := api.Group("/analyses")
		{
			analyses.GET("/:id", analysisHandler.GetAnalysis)
			analyses.GET("/:id/topics", analysisHandler.ListTopics)
			analyses.GET("/:id/export", analysisHandler.Export)
			analyses.POST("/:id/archive", analysisHandler.Archive)
		}

		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}
