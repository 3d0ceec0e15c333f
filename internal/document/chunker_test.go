package document

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/neurocme/internal/models"
)

// sizedText 生成指定字符数的文本
func sizedText(prefix string, n int) string {
	return prefix + strings.Repeat("x", n-len(prefix)-1) + "."
}

func testDocument(paragraphs ...models.Paragraph) *models.NormalizedDocument {
	return &models.NormalizedDocument{
		DocumentID: "doc123",
		Title:      "Test",
		SourceType: models.SourceText,
		SourceRef:  "test",
		Paragraphs: paragraphs,
	}
}

func para(index int, heading, text string) models.Paragraph {
	return newParagraph(text, nil, models.IntPtr(index), heading)
}

// TestChunkerCoverage 每个段落恰好进入一个文本块，且顺序保持
func TestChunkerCoverage(t *testing.T) {
	var paragraphs []models.Paragraph
	for i := 1; i <= 10; i++ {
		paragraphs = append(paragraphs, para(i, "Status Epilepticus", sizedText(fmt.Sprintf("p%d ", i), 300)))
	}
	doc := testDocument(paragraphs...)

	chunks := ExtractChunks(doc)
	require.Len(t, chunks, 4)

	total := 0
	next := 1
	for _, c := range chunks {
		total += c.ParagraphCount
		assert.Len(t, c.Anchors, c.ParagraphCount)
		assert.LessOrEqual(t, utf8.RuneCountInString(c.Text), DefaultChunkerConfig().MaxChars)
		assert.Equal(t, "Status Epilepticus", c.Heading)
		assert.Equal(t, "doc123", c.DocumentID)
		assert.Equal(t, "text", c.Metadata["source_type"])
		for _, a := range c.Anchors {
			require.NotNil(t, a.Paragraph)
			assert.Equal(t, next, *a.Paragraph)
			next++
		}
	}
	assert.Equal(t, 10, total)
	assert.Equal(t, []int{3, 3, 3, 1}, []int{
		chunks[0].ParagraphCount, chunks[1].ParagraphCount, chunks[2].ParagraphCount, chunks[3].ParagraphCount,
	})
	assert.Equal(t, 300*3+2*2, utf8.RuneCountInString(chunks[0].Text))
}

// TestChunkerHeadingChange 测试标题变化时的切分规则
func TestChunkerHeadingChange(t *testing.T) {
	t.Run("flush when buffer is large enough", func(t *testing.T) {
		doc := testDocument(
			para(1, "Alpha", sizedText("a ", 300)),
			para(2, "Beta", sizedText("b ", 300)),
		)
		chunks := ExtractChunks(doc)
		require.Len(t, chunks, 2)
		assert.Equal(t, "Alpha", chunks[0].Heading)
		assert.Equal(t, "Beta", chunks[1].Heading)
	})

	t.Run("small buffer absorbs the next heading", func(t *testing.T) {
		doc := testDocument(
			para(1, "Alpha", sizedText("a ", 100)),
			para(2, "Beta", sizedText("b ", 100)),
		)
		chunks := ExtractChunks(doc)
		require.Len(t, chunks, 1)
		assert.Equal(t, "Alpha", chunks[0].Heading)
		assert.Equal(t, 2, chunks[0].ParagraphCount)
	})

	t.Run("missing heading uses overview", func(t *testing.T) {
		chunks := ExtractChunks(testDocument(para(1, "", sizedText("a ", 50))))
		require.Len(t, chunks, 1)
		assert.Equal(t, "Overview", chunks[0].Heading)
	})
}

func TestChunkerOversizedParagraph(t *testing.T) {
	doc := testDocument(
		para(1, "Alpha", sizedText("a ", 1200)),
		para(2, "Alpha", sizedText("b ", 100)),
	)
	chunks := ExtractChunks(doc)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, chunks[0].ParagraphCount)
	assert.Equal(t, 1200, utf8.RuneCountInString(chunks[0].Text))
}

func TestChunkerCustomConfig(t *testing.T) {
	c := NewChunker(ChunkerConfig{MaxChars: 200})
	assert.Equal(t, 200, c.Config().MaxChars)
	assert.Equal(t, 280, c.Config().MinChars)

	c = NewChunker(ChunkerConfig{})
	assert.Equal(t, DefaultChunkerConfig(), c.Config())
}

// TestChunkIDs 文本块ID确定且互不相同
func TestChunkIDs(t *testing.T) {
	doc := testDocument(
		para(1, "Alpha", sizedText("a ", 300)),
		para(2, "Beta", sizedText("b ", 300)),
	)
	first := ExtractChunks(doc)
	second := ExtractChunks(doc)
	require.Len(t, first, 2)

	assert.Equal(t, first[0].ChunkID, second[0].ChunkID)
	assert.NotEqual(t, first[0].ChunkID, first[1].ChunkID)
	assert.Len(t, first[0].ChunkID, 12)

	expected := models.ShortHash(fmt.Sprintf("%s:%d:%s:%s", "doc123", 1, "Alpha",
		models.TruncateRunes(first[0].Text, 120)))
	assert.Equal(t, expected, first[0].ChunkID)
}

func TestChunkEmptyDocument(t *testing.T) {
	assert.Empty(t, ExtractChunks(testDocument()))
	assert.NotNil(t, ExtractChunks(nil))
}
