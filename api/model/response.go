package model

import (
	"time"

	"github.com/fyerfyer/neurocme/internal/models"
	"github.com/fyerfyer/neurocme/internal/outputs"
	"github.com/fyerfyer/neurocme/pkg/storage"
)

// previewParagraphs 预览中展示的段落数量
const previewParagraphs = 3

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Details string      `json:"details,omitempty"`  // 错误详情
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// DocumentSummary 文档摘要信息
type DocumentSummary struct {
	DocumentID     string            `json:"document_id"`
	Title          string            `json:"title"`
	SourceType     models.SourceKind `json:"source_type"`
	SourceRef      string            `json:"source_ref"`
	ParagraphCount int               `json:"paragraph_count"`
}

// NewDocumentSummary 从规范化文档生成摘要
func NewDocumentSummary(doc models.NormalizedDocument) DocumentSummary {
	return DocumentSummary{
		DocumentID:     doc.DocumentID,
		Title:          doc.Title,
		SourceType:     doc.SourceType,
		SourceRef:      doc.SourceRef,
		ParagraphCount: len(doc.Paragraphs),
	}
}

// AnalysisResponse 分析结果响应
type AnalysisResponse struct {
	AnalysisID string                 `json:"analysis_id"`
	CreatedAt  time.Time              `json:"created_at"`
	Document   DocumentSummary        `json:"document"`
	Options    models.AnalysisOptions `json:"options"`
	ChunkCount int                    `json:"chunk_count"`
	Enriched   bool                   `json:"enriched"`
	Rows       []outputs.TopicRow     `json:"rows"`
	Topics     []models.Topic         `json:"topics"`
}

// NewAnalysisResponse 构造分析结果响应
func NewAnalysisResponse(a *models.Analysis) AnalysisResponse {
	topics := a.Topics
	if topics == nil {
		topics = []models.Topic{}
	}
	return AnalysisResponse{
		AnalysisID: a.AnalysisID,
		CreatedAt:  a.CreatedAt,
		Document:   NewDocumentSummary(a.Document),
		Options:    a.Options,
		ChunkCount: a.ChunkCount,
		Enriched:   a.Enriched,
		Rows:       outputs.TopicRows(topics),
		Topics:     topics,
	}
}

// PreviewParagraph 预览中的段落
type PreviewParagraph struct {
	Anchor string `json:"anchor"`
	Text   string `json:"text"`
}

// PreviewResponse 网页预览响应
type PreviewResponse struct {
	PreviewID  string             `json:"preview_id"`
	Document   DocumentSummary    `json:"document"`
	Paragraphs []PreviewParagraph `json:"paragraphs"`
}

// NewPreviewResponse 构造网页预览响应，只带前几个段落
func NewPreviewResponse(p *models.Preview) PreviewResponse {
	paragraphs := p.Document.Paragraphs
	if len(paragraphs) > previewParagraphs {
		paragraphs = paragraphs[:previewParagraphs]
	}
	items := make([]PreviewParagraph, 0, len(paragraphs))
	for _, para := range paragraphs {
		items = append(items, PreviewParagraph{Anchor: para.Anchor.Label(), Text: para.Anchor.Snippet})
	}
	return PreviewResponse{
		PreviewID:  p.PreviewID,
		Document:   NewDocumentSummary(p.Document),
		Paragraphs: items,
	}
}

// TopicView 主题详情视图，小节顺序由输出类型决定
type TopicView struct {
	outputs.TopicRow
	TopicID   string            `json:"topic_id"`
	Rationale string            `json:"rationale"`
	Sections  []outputs.Section `json:"sections"`
}

// TopicListResponse 主题筛选响应
type TopicListResponse struct {
	Total      int         `json:"total"`
	OutputType string      `json:"output_type"`
	Topics     []TopicView `json:"topics"`
}

// NewTopicListResponse 构造主题筛选响应
func NewTopicListResponse(topics []models.Topic, outputType string) TopicListResponse {
	rows := outputs.TopicRows(topics)
	views := make([]TopicView, 0, len(topics))
	for i, t := range topics {
		views = append(views, TopicView{
			TopicRow:  rows[i],
			TopicID:   t.TopicID,
			Rationale: t.Rationale,
			Sections:  outputs.TopicSections(t, outputType),
		})
	}
	return TopicListResponse{
		Total:      len(views),
		OutputType: outputType,
		Topics:     views,
	}
}

// ArchiveResponse 导出归档响应
type ArchiveResponse struct {
	AnalysisID string           `json:"analysis_id"`
	Format     string           `json:"format"`
	File       storage.FileInfo `json:"file"`
}
