package document

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/fyerfyer/neurocme/internal/models"
)

const (
	// defaultHeading 段落没有章节标题时使用的标题
	defaultHeading = "Overview"
	// chunkIDPrefixRunes 参与文本块ID计算的文本前缀长度
	chunkIDPrefixRunes = 120
	paragraphSeparator = "\n\n"
)

// ChunkerConfig 分块器配置
type ChunkerConfig struct {
	MaxChars int // 文本块最大字符数（硬上限）
	MinChars int // 因标题变化或超长而提前切分时，缓冲区至少需要的字符数
}

// DefaultChunkerConfig 返回默认分块器配置
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChars: 1100,
		MinChars: 280,
	}
}

// Chunker 将规范化文档的段落合并为有界的文本块
type Chunker struct {
	config ChunkerConfig
}

// NewChunker 创建新的分块器，零值字段使用默认配置
func NewChunker(config ChunkerConfig) *Chunker {
	def := DefaultChunkerConfig()
	if config.MaxChars <= 0 {
		config.MaxChars = def.MaxChars
	}
	if config.MinChars <= 0 {
		config.MinChars = def.MinChars
	}
	return &Chunker{config: config}
}

// Config 返回分块器配置
func (c *Chunker) Config() ChunkerConfig {
	return c.config
}

// ExtractChunks 使用默认配置对文档分块
func ExtractChunks(doc *models.NormalizedDocument) []models.Chunk {
	return NewChunker(DefaultChunkerConfig()).Chunk(doc)
}

// chunkBuffer 待合并的段落缓冲区
type chunkBuffer struct {
	paragraphs []models.Paragraph
	runes      int // 以空行连接后的字符数
}

func (b *chunkBuffer) empty() bool {
	return len(b.paragraphs) == 0
}

// sizeWith 返回追加段落后的连接长度
func (b *chunkBuffer) sizeWith(p models.Paragraph) int {
	n := utf8.RuneCountInString(p.Text)
	if b.empty() {
		return n
	}
	return b.runes + utf8.RuneCountInString(paragraphSeparator) + n
}

func (b *chunkBuffer) add(p models.Paragraph) {
	b.runes = b.sizeWith(p)
	b.paragraphs = append(b.paragraphs, p)
}

func (b *chunkBuffer) reset() {
	b.paragraphs = nil
	b.runes = 0
}

// Chunk 单次贪心合并
// 标题变化或即将超长且缓冲区已达到MinChars时先切分；追加后达到MaxChars立即切分；
// 文末剩余段落无条件切分。每个段落恰好进入一个文本块。
func (c *Chunker) Chunk(doc *models.NormalizedDocument) []models.Chunk {
	if doc == nil || len(doc.Paragraphs) == 0 {
		return []models.Chunk{}
	}

	var chunks []models.Chunk
	var buf chunkBuffer
	currentHeading := doc.Paragraphs[0].SectionHeading
	if currentHeading == "" {
		currentHeading = defaultHeading
	}

	flush := func() {
		if buf.empty() {
			return
		}
		chunks = append(chunks, newChunk(doc, len(chunks)+1, currentHeading, buf.paragraphs))
		buf.reset()
	}

	for _, p := range doc.Paragraphs {
		heading := p.SectionHeading
		if heading == "" {
			heading = currentHeading
		}
		if heading == "" {
			heading = defaultHeading
		}

		headingChanged := heading != currentHeading
		tooLarge := buf.sizeWith(p) > c.config.MaxChars
		if !buf.empty() && (headingChanged || tooLarge) && buf.runes >= c.config.MinChars {
			flush()
		}
		if buf.empty() {
			currentHeading = heading
		}
		buf.add(p)
		if buf.runes >= c.config.MaxChars {
			flush()
		}
	}
	flush()
	return chunks
}

func newChunk(doc *models.NormalizedDocument, index int, heading string, paragraphs []models.Paragraph) models.Chunk {
	texts := make([]string, 0, len(paragraphs))
	anchors := make([]models.SourceAnchor, 0, len(paragraphs))
	for _, p := range paragraphs {
		texts = append(texts, p.Text)
		anchors = append(anchors, p.Anchor)
	}
	text := strings.TrimSpace(strings.Join(texts, paragraphSeparator))
	id := models.ShortHash(fmt.Sprintf("%s:%d:%s:%s",
		doc.DocumentID, index, heading, models.TruncateRunes(text, chunkIDPrefixRunes)))

	return models.Chunk{
		ChunkID:        id,
		DocumentID:     doc.DocumentID,
		Heading:        heading,
		Text:           text,
		Anchors:        anchors,
		ParagraphCount: len(paragraphs),
		Metadata:       map[string]any{"source_type": string(doc.SourceType)},
	}
}
