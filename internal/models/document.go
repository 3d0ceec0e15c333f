package models

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// SourceKind 文档来源类型
type SourceKind string

const (
	// SourcePDF PDF文档
	SourcePDF SourceKind = "pdf"
	// SourceURL 网页文章
	SourceURL SourceKind = "url"
	// SourceText 纯文本或Markdown
	SourceText SourceKind = "text"
)

// SourceAnchor 溯源锚点
// 指向原文中的页码、段落编号和章节
type SourceAnchor struct {
	Page      *int   `json:"page"`      // 页码（可选）
	Paragraph *int   `json:"paragraph"` // 段落编号（可选）
	Section   string `json:"section"`   // 章节名称（可选）
	Snippet   string `json:"snippet"`   // 原文片段
}

// Label 返回锚点的展示标签
func (a SourceAnchor) Label() string {
	var parts []string
	if a.Page != nil {
		parts = append(parts, fmt.Sprintf("Page %d", *a.Page))
	}
	if a.Paragraph != nil {
		parts = append(parts, fmt.Sprintf("Paragraph %d", *a.Paragraph))
	}
	if a.Section != "" {
		parts = append(parts, a.Section)
	}
	if len(parts) == 0 {
		return "Source anchor"
	}
	return strings.Join(parts, " | ")
}

// Key 返回锚点的身份键 (page, paragraph, section)
func (a SourceAnchor) Key() string {
	page, paragraph := "-", "-"
	if a.Page != nil {
		page = fmt.Sprint(*a.Page)
	}
	if a.Paragraph != nil {
		paragraph = fmt.Sprint(*a.Paragraph)
	}
	return page + "\x1f" + paragraph + "\x1f" + a.Section
}

// MarshalJSON 序列化时附带label字段
func (a SourceAnchor) MarshalJSON() ([]byte, error) {
	type anchor SourceAnchor
	return json.Marshal(struct {
		anchor
		Label string `json:"label"`
	}{anchor: anchor(a), Label: a.Label()})
}

// IntPtr 返回整数指针，用于构造可选字段
func IntPtr(v int) *int {
	return &v
}

// Paragraph 规范化后的段落
type Paragraph struct {
	Text           string       `json:"text"`
	Anchor         SourceAnchor `json:"anchor"`
	SectionHeading string       `json:"section_heading"`
}

// NormalizedDocument 规范化文档
// 由摄取层产生，段落顺序与原文一致
type NormalizedDocument struct {
	DocumentID string         `json:"document_id"`
	Title      string         `json:"title"`
	SourceType SourceKind     `json:"source_type"`
	SourceRef  string         `json:"source_ref"`
	Paragraphs []Paragraph    `json:"paragraphs"`
	Metadata   map[string]any `json:"metadata"`
}

// Text 返回以空行连接的全文
func (d NormalizedDocument) Text() string {
	texts := make([]string, 0, len(d.Paragraphs))
	for _, p := range d.Paragraphs {
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n\n")
}

// Chunk 文本块
// 由若干连续段落合并而成，带有每个段落的锚点
type Chunk struct {
	ChunkID        string         `json:"chunk_id"`
	DocumentID     string         `json:"document_id"`
	Heading        string         `json:"heading"`
	Text           string         `json:"text"`
	Anchors        []SourceAnchor `json:"anchors"`
	ParagraphCount int            `json:"paragraph_count"`
	Metadata       map[string]any `json:"metadata"`
}

// ShortHash 计算稳定的短哈希（sha1前12位十六进制）
func ShortHash(input string) string {
	sum := sha1.Sum([]byte(input))
	return hex.EncodeToString(sum[:])[:12]
}

// TruncateRunes 按字符（而非字节）截断字符串
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
