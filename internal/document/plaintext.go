package document

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/fyerfyer/neurocme/internal/models"
)

// PlainTextParser 纯文本解析器
type PlainTextParser struct{}

// NewPlainTextParser 创建一个新的纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 解析纯文本文件
func (p *PlainTextParser) Parse(filePath string) (*models.NormalizedDocument, error) {
	return parseFile(p, filePath)
}

// ParseReader 读取纯文本，文件名（去掉扩展名）作为标题
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) (*models.NormalizedDocument, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, NewTextError("failed to read text", err)
	}
	return DocumentFromText(string(content), titleFromFilename(filename))
}

func titleFromFilename(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// DocumentFromText 将粘贴的纯文本构造为规范化文档
// 以空行分块；单行且像标题的块更新当前章节，其余块成为段落
func DocumentFromText(text, title string) (*models.NormalizedDocument, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Pasted Text"
	}

	section := htmlDefaultSection
	var paragraphs []models.Paragraph
	for _, block := range blankLinesRe.Split(strings.ReplaceAll(text, "\r\n", "\n"), -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if !strings.Contains(block, "\n") && isHeading(block) {
			section = normalizeSpace(block)
			continue
		}
		index := len(paragraphs) + 1
		paragraphs = append(paragraphs, newParagraph(normalizeSpace(block), nil, models.IntPtr(index), section))
	}
	if len(paragraphs) == 0 {
		return nil, NewTextError("no readable text provided", nil)
	}

	return &models.NormalizedDocument{
		DocumentID: models.ShortHash("text::" + title),
		Title:      title,
		SourceType: models.SourceText,
		SourceRef:  title,
		Paragraphs: paragraphs,
		Metadata:   map[string]any{"paragraph_count": len(paragraphs)},
	}, nil
}
