package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/fyerfyer/neurocme/internal/models"
)

const (
	// DefaultPDFName 上传的PDF没有文件名时使用的名称
	DefaultPDFName = "uploaded.pdf"

	minParagraphRunes   = 25
	sentenceFlushRunes  = 60
	pdfHeadingPrefix    = "Page"
	sentenceTerminators = ".?!"
)

// PDFParser PDF文档解析器
type PDFParser struct{}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{}
}

// Parse 解析PDF文件
func (p *PDFParser) Parse(filePath string) (*models.NormalizedDocument, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader读取PDF内容并解析
func (p *PDFParser) ParseReader(r io.Reader, filename string) (*models.NormalizedDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewPDFError("could not read PDF", err)
	}
	return IngestPDFBytes(data, filename)
}

// IngestPDFPath 读取并解析本地PDF文件
func IngestPDFPath(path string) (*models.NormalizedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewPDFError("could not open PDF", err)
	}
	return IngestPDFBytes(data, filepath.Base(path))
}

// IngestPDFBytes 将PDF字节解析为规范化文档
// 每页单独切分段落，段落序号在整个文档中连续编号
func IngestPDFBytes(data []byte, sourceName string) (*models.NormalizedDocument, error) {
	if sourceName == "" {
		sourceName = DefaultPDFName
	}

	// 先用pdfcpu校验文件结构并获取页数
	pageCount, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, NewPDFError("could not read PDF", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, NewPDFError("could not read PDF", err)
	}

	var paragraphs []models.Paragraph
	title := ""
	index := 0

	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText := strings.TrimSpace(strings.ReplaceAll(pageLines(page), "\x00", " "))
		if pageText == "" {
			continue
		}
		if title == "" {
			title = firstNonEmptyLine(pageText)
		}

		for _, para := range extractPageParagraphs(pageText, pageNum) {
			index++
			para.Anchor.Paragraph = models.IntPtr(index)
			paragraphs = append(paragraphs, para)
		}
	}

	if len(paragraphs) == 0 {
		return nil, NewPDFError("no readable text extracted from PDF", nil)
	}
	if title == "" {
		title = sourceName
	}

	return &models.NormalizedDocument{
		DocumentID: models.ShortHash(fmt.Sprintf("pdf::%s::%d", sourceName, len(data))),
		Title:      title,
		SourceType: models.SourcePDF,
		SourceRef:  sourceName,
		Paragraphs: paragraphs,
		Metadata: map[string]any{
			"page_count":      pageCount,
			"paragraph_count": len(paragraphs),
		},
	}, nil
}

// pageLines 提取页面纯文本，每个文本对象单独成行
func pageLines(page pdf.Page) string {
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// extractPageParagraphs 将单页文本切分为段落
// 空行和标题行会结束当前段落；以句末标点结尾且缓冲区足够长时也会结束；过短的段落被丢弃
func extractPageParagraphs(pageText string, pageNum int) []models.Paragraph {
	heading := fmt.Sprintf("%s %d", pdfHeadingPrefix, pageNum)
	var paragraphs []models.Paragraph
	var buffer []string

	flush := func() {
		if len(buffer) == 0 {
			return
		}
		text := normalizeSpace(strings.Join(buffer, " "))
		buffer = buffer[:0]
		if utf8.RuneCountInString(text) < minParagraphRunes {
			return
		}
		paragraphs = append(paragraphs, newParagraph(text, models.IntPtr(pageNum), nil, heading))
	}

	for _, raw := range strings.Split(pageText, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			flush()
			continue
		}
		if isHeading(line) {
			flush()
			heading = line
			continue
		}
		buffer = append(buffer, line)
		joined := strings.Join(buffer, " ")
		if strings.ContainsAny(line[len(line)-1:], sentenceTerminators) &&
			utf8.RuneCountInString(joined) >= sentenceFlushRunes {
			flush()
		}
	}
	flush()
	return paragraphs
}
