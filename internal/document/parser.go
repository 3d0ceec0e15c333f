package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/fyerfyer/neurocme/internal/models"
)

// Parser 文档解析器接口
// 负责将不同格式的文档解析为规范化文档
type Parser interface {
	// Parse 解析文件
	Parse(filePath string) (*models.NormalizedDocument, error)

	// ParseReader 从Reader解析文档
	// filename用于生成文档ID和标题
	ParseReader(r io.Reader, filename string) (*models.NormalizedDocument, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// HTML 网页文档
	HTML ContentType = "html"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// ParserFactory 解析器工厂函数，根据文件类型创建对应的解析器
func ParserFactory(filePath string) (Parser, error) {
	switch DetectContentType(filePath) {
	case PDF:
		return NewPDFParser(), nil
	case HTML:
		return NewHTMLParser(), nil
	case Markdown:
		return NewMarkdownParser(), nil
	case PlainText:
		return NewPlainTextParser(), nil
	default:
		return nil, errors.New("unsupported document type")
	}
}

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(filePath string) ContentType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".pdf":
		return PDF
	case ".html", ".htm":
		return HTML
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// parseFile 打开文件并交给ParseReader处理
func parseFile(p Parser, filePath string) (*models.NormalizedDocument, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filePath, err)
	}
	defer file.Close()
	return p.ParseReader(file, filepath.Base(filePath))
}

// IngestError 摄取阶段的错误
// 在核心流程看到文档之前由摄取层返回
type IngestError struct {
	Source  models.SourceKind // 来源类型
	Message string            // 错误消息
	Err     error             // 底层错误（可选）
}

// Error 实现error接口
func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s ingest error: %s: %v", e.Source, e.Message, e.Err)
	}
	return fmt.Sprintf("%s ingest error: %s", e.Source, e.Message)
}

// Unwrap 返回底层错误
func (e *IngestError) Unwrap() error {
	return e.Err
}

// NewPDFError 创建PDF摄取错误
func NewPDFError(message string, err error) *IngestError {
	return &IngestError{Source: models.SourcePDF, Message: message, Err: err}
}

// NewURLError 创建URL摄取错误
func NewURLError(message string, err error) *IngestError {
	return &IngestError{Source: models.SourceURL, Message: message, Err: err}
}

// NewTextError 创建文本摄取错误
func NewTextError(message string, err error) *IngestError {
	return &IngestError{Source: models.SourceText, Message: message, Err: err}
}

// IsIngestError 判断错误是否来自摄取阶段
func IsIngestError(err error) bool {
	var ie *IngestError
	return errors.As(err, &ie)
}

const snippetLimit = 180

// spaceRunRe 同时匹配不换行空格等Unicode空白
var spaceRunRe = regexp.MustCompile(`[\s\p{Z}]+`)

// normalizeSpace 压缩空白并去除首尾空白
func normalizeSpace(text string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(text, " "))
}

// snippet 生成锚点用的原文片段
func snippet(text string) string {
	compact := normalizeSpace(text)
	if utf8.RuneCountInString(compact) <= snippetLimit {
		return compact
	}
	cut := strings.TrimRightFunc(models.TruncateRunes(compact, snippetLimit-3), unicode.IsSpace)
	return cut + "..."
}

// isHeading 判断一行文本是否像章节标题
// 4-90个字符、不以句号结尾，并且全大写或多数单词首字母大写
func isHeading(line string) bool {
	clean := normalizeSpace(line)
	n := utf8.RuneCountInString(clean)
	if n < 4 || n > 90 {
		return false
	}
	if strings.HasSuffix(clean, ".") {
		return false
	}
	if isUpper(clean) {
		return true
	}
	words := strings.Fields(clean)
	if len(words) > 8 {
		return false
	}
	capitalised := 0
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if unicode.IsUpper(r) {
			capitalised++
		}
	}
	return capitalised >= max(1, len(words)-1)
}

// isUpper 至少含一个字母且所有字母均为大写
func isUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			hasLetter = true
			if unicode.IsLower(r) {
				return false
			}
		}
	}
	return hasLetter
}

// newParagraph 构造段落及其锚点
func newParagraph(text string, page, index *int, heading string) models.Paragraph {
	return models.Paragraph{
		Text: text,
		Anchor: models.SourceAnchor{
			Page:      page,
			Paragraph: index,
			Section:   heading,
			Snippet:   snippet(text),
		},
		SectionHeading: heading,
	}
}
