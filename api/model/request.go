package model

import (
	"mime/multipart"
	"strings"

	"github.com/fyerfyer/neurocme/internal/models"
)

// AnalysisOptionsRequest 分析选项，未填写的字段使用服务默认值
type AnalysisOptionsRequest struct {
	SpecialtyFocus string `form:"specialty_focus" json:"specialty_focus" binding:"omitempty,oneof='Neuro ICU' 'General ICU' ECMO"`
	DesiredDepth   string `form:"desired_depth" json:"desired_depth" binding:"omitempty,oneof=boards fellowship attending"`
	OutputType     string `form:"output_type" json:"output_type" binding:"omitempty,oneof=outline pearls flashcards"`
	UseLLM         bool   `form:"use_llm" json:"use_llm"`
	MaxTopics      int    `form:"max_topics" json:"max_topics" binding:"omitempty,min=1"`
}

// ToOptions 转换为分析配置
func (r AnalysisOptionsRequest) ToOptions() models.AnalysisOptions {
	return models.AnalysisOptions{
		SpecialtyFocus: models.Specialty(r.SpecialtyFocus),
		DesiredDepth:   r.DesiredDepth,
		OutputType:     r.OutputType,
		UseLLM:         r.UseLLM,
		MaxTopics:      r.MaxTopics,
	}
}

// AnalyzePDFRequest PDF上传分析请求
type AnalyzePDFRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"` // PDF文件
	AnalysisOptionsRequest
}

// AnalyzeURLRequest 网页分析请求
type AnalyzeURLRequest struct {
	URL     string                 `json:"url" binding:"required,url"`
	Options AnalysisOptionsRequest `json:"options"`
}

// AnalyzeTextRequest 文本分析请求
type AnalyzeTextRequest struct {
	Title   string                 `json:"title"`
	Text    string                 `json:"text" binding:"required"`
	Format  string                 `json:"format" binding:"omitempty,oneof=text markdown"`
	Options AnalysisOptionsRequest `json:"options"`
}

// PreviewURLRequest 网页预览请求
type PreviewURLRequest struct {
	URL string `json:"url" binding:"required,url"`
}

// AnalyzePreviewRequest 分析已预览的网页
type AnalyzePreviewRequest struct {
	Options AnalysisOptionsRequest `json:"options"`
}

// IDRequest 路径中的资源ID
type IDRequest struct {
	ID string `uri:"id" binding:"required"`
}

// TopicQuery 主题筛选参数，多个取值可以重复参数或用逗号分隔
type TopicQuery struct {
	Priority []string `form:"priority"`
	Level    []string `form:"level"`
	Q        string   `form:"q"`
}

// Priorities 解析优先级筛选
func (q TopicQuery) Priorities() []models.Priority {
	var out []models.Priority
	for _, v := range splitList(q.Priority) {
		out = append(out, models.Priority(strings.ToUpper(v)))
	}
	return out
}

// Levels 解析等级筛选
func (q TopicQuery) Levels() []models.Level {
	var out []models.Level
	for _, v := range splitList(q.Level) {
		out = append(out, models.Level(strings.ToUpper(v)))
	}
	return out
}

// ExportQuery 导出参数
type ExportQuery struct {
	Format string `form:"format"`
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
