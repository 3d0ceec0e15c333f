package document

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/neurocme/internal/models"
)

const sampleHTML = `<html><head><title>ICU Seizure Guide</title></head><body>
<h1>Status Epilepticus</h1>
<p>Benzodiazepines are the first line therapy for convulsive status epilepticus.</p>
<p>Too short.</p>
<h2>Airway</h2>
<ul><li>Secure the airway early when mental status declines rapidly.</li></ul>
<script>var ignored = "script text is never a paragraph";</script>
</body></html>`

func createTempFile(t *testing.T, content, ext string) string {
	path := filepath.Join(t.TempDir(), "neurocme-test"+ext)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func createPDFBytes(t *testing.T, text string) []byte {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)
	pdf.MultiCell(0, 10, text, "", "", false)

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestIsHeading(t *testing.T) {
	tests := []struct {
		line     string
		expected bool
	}{
		{"STATUS EPILEPTICUS", true},
		{"Intracranial Pressure", true},
		{"Management Of The patient", true},
		{"Management of the patient", false},
		{"This is a sentence.", false},
		{"ICP", false},
		{strings.Repeat("A", 91), false},
		{"1234 5678", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, isHeading(tt.line), tt.line)
	}
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short text", snippet("  short \n text "))

	long := snippet(strings.Repeat("ab ", 100))
	assert.Len(t, []rune(long), 179)
	assert.True(t, strings.HasSuffix(long, "ab..."))

	exact := snippet(strings.Repeat("a", 200))
	assert.Len(t, []rune(exact), 180)
	assert.True(t, strings.HasSuffix(exact, "a..."))
}

// TestExtractPageParagraphs 测试单页段落切分
func TestExtractPageParagraphs(t *testing.T) {
	pageText := strings.Join([]string{
		"STATUS EPILEPTICUS",
		"Benzodiazepines are first line therapy for convulsive seizures.",
		"Escalate to second line agents within ten minutes",
		"if seizures persist after two doses.",
		"",
		"short line",
	}, "\n")

	paragraphs := extractPageParagraphs(pageText, 3)
	require.Len(t, paragraphs, 2)

	assert.Equal(t, "Benzodiazepines are first line therapy for convulsive seizures.", paragraphs[0].Text)
	assert.Equal(t, "Escalate to second line agents within ten minutes if seizures persist after two doses.", paragraphs[1].Text)
	for _, p := range paragraphs {
		assert.Equal(t, "STATUS EPILEPTICUS", p.SectionHeading)
		require.NotNil(t, p.Anchor.Page)
		assert.Equal(t, 3, *p.Anchor.Page)
		assert.Nil(t, p.Anchor.Paragraph)
		assert.Equal(t, p.Text, p.Anchor.Snippet)
	}

	plain := extractPageParagraphs("Sedation holidays shorten the duration of mechanical ventilation", 2)
	require.Len(t, plain, 1)
	assert.Equal(t, "Page 2", plain[0].SectionHeading)
}

// TestIngestPDFBytes 测试标题、章节识别以及跨行文本不粘连
func TestIngestPDFBytes(t *testing.T) {
	text := "STATUS EPILEPTICUS\n\n" +
		"Benzodiazepines are the first line therapy for convulsive status epilepticus.\n" +
		"Escalate to a second line agent if seizures persist after two doses."
	data := createPDFBytes(t, text)

	doc, err := IngestPDFBytes(data, "seizure.pdf")
	require.NoError(t, err)

	assert.Equal(t, models.SourcePDF, doc.SourceType)
	assert.Equal(t, "seizure.pdf", doc.SourceRef)
	assert.Equal(t, "STATUS EPILEPTICUS", doc.Title)
	assert.Equal(t, 1, doc.Metadata["page_count"])
	assert.Equal(t, len(doc.Paragraphs), doc.Metadata["paragraph_count"])
	assert.Equal(t, models.ShortHash("pdf::seizure.pdf::"+strconv.Itoa(len(data))), doc.DocumentID)

	require.Len(t, doc.Paragraphs, 2)
	for i, p := range doc.Paragraphs {
		require.NotNil(t, p.Anchor.Page)
		assert.Equal(t, 1, *p.Anchor.Page)
		require.NotNil(t, p.Anchor.Paragraph)
		assert.Equal(t, i+1, *p.Anchor.Paragraph)
		assert.Equal(t, "STATUS EPILEPTICUS", p.SectionHeading)
		assert.Equal(t, "STATUS EPILEPTICUS", p.Anchor.Section)
	}
	assert.Equal(t, "Benzodiazepines are the first line therapy for convulsive status epilepticus.", doc.Paragraphs[0].Text)
	assert.Equal(t, "Escalate to a second line agent if seizures persist after two doses.", doc.Paragraphs[1].Text)
	assert.NotContains(t, doc.Text(), "lineagent")
	assert.NotContains(t, doc.Text(), "epilepticus.Escalate")
}

func TestIngestPDFPath(t *testing.T) {
	data := createPDFBytes(t, "Intracranial pressure targets guide osmotherapy decisions in the neuro ICU.")
	path := filepath.Join(t.TempDir(), "icp.pdf")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	doc, err := IngestPDFPath(path)
	require.NoError(t, err)
	assert.Equal(t, "icp.pdf", doc.SourceRef)

	parser, err := ParserFactory(path)
	require.NoError(t, err)
	viaParser, err := parser.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, doc.DocumentID, viaParser.DocumentID)
}

func TestIngestPDFErrors(t *testing.T) {
	_, err := IngestPDFBytes([]byte("definitely not a pdf"), "bad.pdf")
	require.Error(t, err)
	assert.True(t, IsIngestError(err))

	var ie *IngestError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, models.SourcePDF, ie.Source)

	_, err = IngestPDFPath(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.True(t, IsIngestError(err))
}

// TestDocumentFromHTML 测试HTML段落提取与章节归属
func TestDocumentFromHTML(t *testing.T) {
	doc, err := DocumentFromHTML(sampleHTML, "https://example.org/se", "")
	require.NoError(t, err)

	assert.Equal(t, "ICU Seizure Guide", doc.Title)
	assert.Equal(t, models.SourceURL, doc.SourceType)
	assert.Equal(t, models.ShortHash("url::https://example.org/se"), doc.DocumentID)
	require.Len(t, doc.Paragraphs, 2)

	first := doc.Paragraphs[0]
	assert.Equal(t, "Status Epilepticus", first.SectionHeading)
	assert.Nil(t, first.Anchor.Page)
	require.NotNil(t, first.Anchor.Paragraph)
	assert.Equal(t, 1, *first.Anchor.Paragraph)

	second := doc.Paragraphs[1]
	assert.Equal(t, "Airway", second.SectionHeading)
	assert.Equal(t, "Secure the airway early when mental status declines rapidly.", second.Text)
	assert.Equal(t, 2, *second.Anchor.Paragraph)
	assert.Equal(t, "Paragraph 2 | Airway", second.Anchor.Label())

	titled, err := DocumentFromHTML(sampleHTML, "https://example.org/se", "Custom")
	require.NoError(t, err)
	assert.Equal(t, "Custom", titled.Title)
}

func TestDocumentFromHTMLFallback(t *testing.T) {
	doc, err := DocumentFromHTML(`<html><body><div>Only a div with text.</div></body></html>`, "https://example.org/x", "")
	require.NoError(t, err)
	assert.Equal(t, UntitledURLDocument, doc.Title)
	require.Len(t, doc.Paragraphs, 1)
	assert.Equal(t, "Body", doc.Paragraphs[0].SectionHeading)
	assert.Equal(t, "Only a div with text.", doc.Paragraphs[0].Text)

	_, err = DocumentFromHTML(`<html><body></body></html>`, "https://example.org/empty", "")
	assert.True(t, IsIngestError(err))
}

// TestDocumentFromHTMLMainContent 导航和页脚不进入段落
func TestDocumentFromHTMLMainContent(t *testing.T) {
	page := `<html><head><title>Cerebral Edema</title></head><body>
<nav><ul>
<li><a href="/subscribe">Subscribe to our newsletter for weekly critical care updates</a></li>
<li><a href="/cme">Browse every continuing medical education course we offer</a></li>
</ul></nav>
<div class="article-body">
<h2>Osmotherapy</h2>
<p>Hypertonic saline and mannitol lower intracranial pressure, and the choice depends on volume status, serum sodium, and renal function.</p>
<p>Escalate osmotherapy when intracranial pressure remains above twenty two millimetres of mercury despite sedation, head elevation, and normocarbia.</p>
<p>Check serum sodium and osmolality every six hours during hypertonic infusions, and stop escalation when sodium exceeds one hundred sixty.</p>
<p>Avoid hypotonic fluids in patients with cerebral edema, because even small free water loads can worsen swelling and raise pressure.</p>
</div>
<footer><p>Copyright 2024 Example Health Media. All rights reserved worldwide.</p></footer>
</body></html>`

	doc, err := DocumentFromHTML(page, "https://example.org/edema", "")
	require.NoError(t, err)
	assert.Equal(t, "Cerebral Edema", doc.Title)
	require.Len(t, doc.Paragraphs, 4)

	for _, p := range doc.Paragraphs {
		assert.Equal(t, "Osmotherapy", p.SectionHeading)
		assert.NotContains(t, p.Text, "Subscribe")
		assert.NotContains(t, p.Text, "Copyright")
	}
	assert.True(t, strings.HasPrefix(doc.Paragraphs[0].Text, "Hypertonic saline and mannitol"))
}

// TestDocumentFromHTMLNoBreakSpace 不换行空格按普通空白压缩
func TestDocumentFromHTMLNoBreakSpace(t *testing.T) {
	page := `<html><body><h1>Cerebral&nbsp;Edema</h1>
<p>Avoid hypotonic fluids in patients with cerebral edema.&nbsp;Escalate osmotherapy&nbsp;&nbsp;when pressure stays high.</p>
</body></html>`

	doc, err := DocumentFromHTML(page, "https://example.org/nbsp", "")
	require.NoError(t, err)
	require.Len(t, doc.Paragraphs, 1)
	assert.Equal(t, "Cerebral Edema", doc.Paragraphs[0].SectionHeading)
	assert.Equal(t, "Avoid hypotonic fluids in patients with cerebral edema. Escalate osmotherapy when pressure stays high.",
		doc.Paragraphs[0].Text)
	assert.NotContains(t, doc.Paragraphs[0].Anchor.Snippet, "\u00a0")
}

func TestFetcher(t *testing.T) {
	var userAgent, accept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			userAgent = r.Header.Get("User-Agent")
			accept = r.Header.Get("Accept")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(sampleHTML))
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok": true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := NewFetcher(FetchConfig{Timeout: 2 * time.Second})
	ctx := context.Background()

	doc, err := fetcher.IngestURL(ctx, server.URL+"/article")
	require.NoError(t, err)
	assert.Len(t, doc.Paragraphs, 2)
	assert.Equal(t, server.URL+"/article", doc.SourceRef)
	assert.Equal(t, DefaultUserAgent, userAgent)
	assert.Equal(t, "text/html,application/xhtml+xml", accept)

	_, err = fetcher.FetchHTML(ctx, server.URL+"/json")
	assert.True(t, IsIngestError(err))
	assert.Contains(t, err.Error(), "did not return HTML")

	_, err = fetcher.FetchHTML(ctx, server.URL+"/missing")
	assert.True(t, IsIngestError(err))
	assert.Contains(t, err.Error(), "404")
}

func TestDocumentFromText(t *testing.T) {
	text := "Status Epilepticus\n\nBenzodiazepines are first line.\nThey work fast.\n\nSecond paragraph here."
	doc, err := DocumentFromText(text, "Notes")
	require.NoError(t, err)

	assert.Equal(t, models.SourceText, doc.SourceType)
	assert.Equal(t, models.ShortHash("text::Notes"), doc.DocumentID)
	require.Len(t, doc.Paragraphs, 2)
	assert.Equal(t, "Benzodiazepines are first line. They work fast.", doc.Paragraphs[0].Text)
	assert.Equal(t, "Status Epilepticus", doc.Paragraphs[0].SectionHeading)
	assert.Equal(t, "Benzodiazepines are first line. They work fast.\n\nSecond paragraph here.", doc.Text())

	_, err = DocumentFromText("   \n\n ", "Empty")
	assert.True(t, IsIngestError(err))
}

func TestDocumentFromMarkdown(t *testing.T) {
	md := "# Seizure Care\n\nBenzodiazepines are **first line** therapy.\n\n## Airway\n\n- Intubate when GCS falls.\n- Second item text.\n"
	doc, err := DocumentFromMarkdown(md, "")
	require.NoError(t, err)

	assert.Equal(t, "Seizure Care", doc.Title)
	assert.Equal(t, models.ShortHash("markdown::Seizure Care"), doc.DocumentID)
	require.Len(t, doc.Paragraphs, 3)
	assert.Equal(t, "Benzodiazepines are first line therapy.", doc.Paragraphs[0].Text)
	assert.Equal(t, "Seizure Care", doc.Paragraphs[0].SectionHeading)
	assert.Equal(t, "Intubate when GCS falls.", doc.Paragraphs[1].Text)
	assert.Equal(t, "Airway", doc.Paragraphs[2].SectionHeading)

	_, err = DocumentFromMarkdown("", "Empty")
	assert.True(t, IsIngestError(err))
}

func TestParserFactory(t *testing.T) {
	tests := []struct {
		path     string
		expected ContentType
	}{
		{"a.pdf", PDF},
		{"b.HTML", HTML},
		{"c.md", Markdown},
		{"d.txt", PlainText},
		{"e.docx", Unknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, DetectContentType(tt.path))
	}

	_, err := ParserFactory("e.docx")
	assert.Error(t, err)

	path := createTempFile(t, "Delirium screening should happen every shift.", ".txt")
	parser, err := ParserFactory(path)
	require.NoError(t, err)
	doc, err := parser.Parse(path)
	require.NoError(t, err)
	assert.Equal(t, "neurocme-test", doc.Title)
	require.Len(t, doc.Paragraphs, 1)

	mdParser := NewMarkdownParser()
	mdDoc, err := mdParser.ParseReader(strings.NewReader("Plain markdown paragraph."), "notes.md")
	require.NoError(t, err)
	assert.Equal(t, "notes", mdDoc.Title)

	htmlDoc, err := NewHTMLParser().ParseReader(strings.NewReader(sampleHTML), "guide.html")
	require.NoError(t, err)
	assert.Equal(t, "guide.html", htmlDoc.SourceRef)
}
