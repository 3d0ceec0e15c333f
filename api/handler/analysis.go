package handler

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/neurocme/api/middleware"
	"github.com/fyerfyer/neurocme/api/model"
	"github.com/fyerfyer/neurocme/internal/outputs"
	"github.com/fyerfyer/neurocme/internal/services"
)

// DefaultMaxUploadBytes PDF上传的默认大小上限
const DefaultMaxUploadBytes int64 = 25 << 20

// AnalysisHandler 处理文档分析相关的API请求
type AnalysisHandler struct {
	service        *services.AnalysisService // 分析服务
	maxUploadBytes int64                     // 上传大小上限
	logger         *logrus.Logger            // 日志记录器
}

// NewAnalysisHandler 创建新的分析处理器
func NewAnalysisHandler(service *services.AnalysisService, maxUploadBytes int64) *AnalysisHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &AnalysisHandler{
		service:        service,
		maxUploadBytes: maxUploadBytes,
		logger:         middleware.GetLogger(),
	}
}

// bindError 记录并返回参数绑定错误
func (h *AnalysisHandler) bindError(c *gin.Context, err error) {
	h.logger.WithFields(logrus.Fields{
		middleware.FieldError:   err.Error(),
		middleware.FieldPath:    c.Request.URL.Path,
		middleware.FieldTraceID: middleware.TraceID(c),
	}).Warn("Invalid request parameters")
	middleware.HandleError(c, middleware.NewValidationError("invalid request parameters", err.Error()))
}

// AnalyzePDF 上传PDF并分析
// POST /api/analyze/pdf
func (h *AnalysisHandler) AnalyzePDF(c *gin.Context) {
	var req model.AnalyzePDFRequest
	if err := c.ShouldBind(&req); err != nil {
		h.bindError(c, err)
		return
	}

	filename := req.File.Filename
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		middleware.HandleError(c, middleware.NewValidationError("only .pdf files are accepted", filename))
		return
	}
	if req.File.Size > h.maxUploadBytes {
		middleware.HandleError(c, middleware.AppError{
			Type:    middleware.ErrorTypeValidation,
			Message: "uploaded file is too large",
			Details: fmt.Sprintf("limit is %d bytes", h.maxUploadBytes),
			Code:    http.StatusRequestEntityTooLarge,
		})
		return
	}

	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to open uploaded file", err.Error()))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes))
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to read uploaded file", err.Error()))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"filename":              filename,
		"size":                  len(data),
		middleware.FieldTraceID: middleware.TraceID(c),
	}).Info("PDF received for analysis")

	analysis, err := h.service.AnalyzePDF(c.Request.Context(), data, filename, req.ToOptions())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewAnalysisResponse(analysis)))
}

// AnalyzeURL 抓取网页并分析
// POST /api/analyze/url
func (h *AnalysisHandler) AnalyzeURL(c *gin.Context) {
	var req model.AnalyzeURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	analysis, err := h.service.AnalyzeURL(c.Request.Context(), req.URL, req.Options.ToOptions())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewAnalysisResponse(analysis)))
}

// AnalyzeText 分析粘贴的文本或Markdown
// POST /api/analyze/text
func (h *AnalysisHandler) AnalyzeText(c *gin.Context) {
	var req model.AnalyzeTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	analysis, err := h.service.AnalyzeText(c.Request.Context(), req.Title, req.Text,
		services.TextFormat(req.Format), req.Options.ToOptions())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewAnalysisResponse(analysis)))
}

// PreviewURL 抓取网页并返回预览
// POST /api/preview/url
func (h *AnalysisHandler) PreviewURL(c *gin.Context) {
	var req model.PreviewURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.bindError(c, err)
		return
	}

	preview, err := h.service.PreviewURL(c.Request.Context(), req.URL)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewPreviewResponse(preview)))
}

// GetPreview 获取已缓存的预览
// GET /api/preview/:id
func (h *AnalysisHandler) GetPreview(c *gin.Context) {
	var uri model.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.bindError(c, err)
		return
	}

	preview, err := h.service.GetPreview(c.Request.Context(), uri.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewPreviewResponse(preview)))
}

// AnalyzePreview 分析已预览的网页，不再重新抓取
// POST /api/preview/:id/analyze
func (h *AnalysisHandler) AnalyzePreview(c *gin.Context) {
	var uri model.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.bindError(c, err)
		return
	}

	// 请求体可以为空，此时使用默认选项
	var req model.AnalyzePreviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.bindError(c, err)
			return
		}
	}

	analysis, err := h.service.AnalyzePreview(c.Request.Context(), uri.ID, req.Options.ToOptions())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewAnalysisResponse(analysis)))
}

// GetAnalysis 获取分析结果
// GET /api/analyses/:id
func (h *AnalysisHandler) GetAnalysis(c *gin.Context) {
	var uri model.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.bindError(c, err)
		return
	}

	analysis, err := h.service.GetAnalysis(c.Request.Context(), uri.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewAnalysisResponse(analysis)))
}

// ListTopics 按优先级、等级和关键字筛选主题
// GET /api/analyses/:id/topics
func (h *AnalysisHandler) ListTopics(c *gin.Context) {
	var uri model.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.bindError(c, err)
		return
	}
	var query model.TopicQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		h.bindError(c, err)
		return
	}

	analysis, err := h.service.GetAnalysis(c.Request.Context(), uri.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	topics, err := h.service.ListTopics(c.Request.Context(), uri.ID, query.Priorities(), query.Levels(), query.Q)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.NewTopicListResponse(topics, analysis.Options.OutputType)))
}

// Export 下载导出文件
// GET /api/analyses/:id/export?format=json|csv|markdown|anki
func (h *AnalysisHandler) Export(c *gin.Context) {
	var uri model.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.bindError(c, err)
		return
	}
	format, err := h.exportFormat(c)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	content, err := h.service.Export(c.Request.Context(), uri.ID, format)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	filename := uri.ID + format.Extension()
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, format.ContentType(), []byte(content))
}

// Archive 导出并保存到归档存储
// POST /api/analyses/:id/archive?format=
func (h *AnalysisHandler) Archive(c *gin.Context) {
	var uri model.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.bindError(c, err)
		return
	}
	format, err := h.exportFormat(c)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	info, err := h.service.ArchiveExport(c.Request.Context(), uri.ID, format)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ArchiveResponse{
		AnalysisID: uri.ID,
		Format:     string(format),
		File:       info,
	}))
}

// exportFormat 读取format参数，缺省为json
func (h *AnalysisHandler) exportFormat(c *gin.Context) (outputs.Format, error) {
	var query model.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		return "", middleware.NewValidationError("invalid request parameters", err.Error())
	}
	if query.Format == "" {
		return outputs.FormatJSON, nil
	}
	return outputs.ParseFormat(query.Format)
}
