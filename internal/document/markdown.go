package document

import (
	"io"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"

	"github.com/fyerfyer/neurocme/internal/models"
)

// MarkdownParser Markdown文档解析器
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件
func (p *MarkdownParser) Parse(filePath string) (*models.NormalizedDocument, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析Markdown内容
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) (*models.NormalizedDocument, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, NewTextError("failed to read markdown content", err)
	}
	return DocumentFromMarkdown(string(content), titleFromFilename(filename))
}

// DocumentFromMarkdown 将Markdown构造为规范化文档
// 标题节点成为章节，段落、列表项与代码块成为段落；未提供标题时取第一个一级标题
func DocumentFromMarkdown(md, title string) (*models.NormalizedDocument, error) {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs
	root := parser.NewWithExtensions(extensions).Parse([]byte(md))

	title = strings.TrimSpace(title)
	section := htmlDefaultSection
	var paragraphs []models.Paragraph

	ast.WalkFunc(root, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n := node.(type) {
		case *ast.Heading:
			text := normalizeSpace(markdownText(n))
			if text == "" {
				return ast.SkipChildren
			}
			if title == "" && n.Level == 1 {
				title = text
			}
			section = text
			return ast.SkipChildren
		case *ast.Paragraph, *ast.CodeBlock, *ast.ListItem:
			text := normalizeSpace(markdownText(n))
			if text != "" {
				index := len(paragraphs) + 1
				paragraphs = append(paragraphs, newParagraph(text, nil, models.IntPtr(index), section))
			}
			return ast.SkipChildren
		}
		return ast.GoToNext
	})

	if len(paragraphs) == 0 {
		return nil, NewTextError("no readable markdown content", nil)
	}
	if title == "" {
		title = "Markdown Document"
	}

	return &models.NormalizedDocument{
		DocumentID: models.ShortHash("markdown::" + title),
		Title:      title,
		SourceType: models.SourceText,
		SourceRef:  title,
		Paragraphs: paragraphs,
		Metadata: map[string]any{
			"paragraph_count": len(paragraphs),
			"format":          "markdown",
		},
	}, nil
}

// markdownText 拼接节点下所有叶子节点的字面文本
func markdownText(node ast.Node) string {
	var b strings.Builder
	ast.WalkFunc(node, func(n ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			return ast.GoToNext
		}
		switch n.(type) {
		case *ast.Softbreak, *ast.Hardbreak:
			b.WriteString(" ")
			return ast.GoToNext
		}
		if leaf := n.AsLeaf(); leaf != nil {
			b.Write(leaf.Literal)
		}
		return ast.GoToNext
	})
	return b.String()
}
