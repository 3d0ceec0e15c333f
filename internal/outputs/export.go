package outputs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyerfyer/neurocme/internal/models"
)

// Format 导出格式
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
	FormatAnki     Format = "anki"
)

// Disclaimer Markdown导出中的免责声明
const Disclaimer = "> Educational use only. Not medical advice."

var (
	csvHeader  = []string{"topic", "priority", "level", "score", "anchors", "rationale"}
	ankiHeader = []string{"front", "back", "anchor", "card_type"}
)

// ParseFormat 解析导出格式名称
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatJSON, FormatCSV, FormatMarkdown, FormatAnki:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "tsv":
		return FormatAnki, nil
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, name)
	}
}

// ContentType 返回格式对应的MIME类型
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatAnki:
		return "text/tab-separated-values; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Extension 返回格式对应的文件扩展名
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatAnki:
		return ".tsv"
	default:
		return "." + string(f)
	}
}

// Export 按格式导出主题列表
func Export(format Format, doc *models.NormalizedDocument, topics []models.Topic) (string, error) {
	switch format {
	case FormatJSON:
		return ExportTopicsJSON(doc, topics)
	case FormatCSV:
		return ExportTopicsCSV(topics)
	case FormatMarkdown:
		return ExportTopicsMarkdown(doc, topics), nil
	case FormatAnki:
		return ExportAnkiTSV(topics)
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, format)
	}
}

// ExportTopicsJSON 导出为 {document, topics} JSON对象
func ExportTopicsJSON(doc *models.NormalizedDocument, topics []models.Topic) (string, error) {
	if topics == nil {
		topics = []models.Topic{}
	}
	payload := struct {
		Document *models.NormalizedDocument `json:"document"`
		Topics   []models.Topic             `json:"topics"`
	}{Document: doc, Topics: topics}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return "", fmt.Errorf("failed to encode topics: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// ExportTopicsCSV 导出主题表格，行以CRLF结尾
func ExportTopicsCSV(topics []models.Topic) (string, error) {
	rows := [][]string{csvHeader}
	for _, t := range topics {
		rows = append(rows, []string{
			t.Label,
			string(t.Priority),
			string(t.Level),
			fmt.Sprintf("%.3f", t.Score),
			strings.Join(t.Citations, "; "),
			t.Rationale,
		})
	}
	return writeDelimited(rows, ',', "\r\n"), nil
}

// ExportTopicsMarkdown 导出为Markdown学习提纲
func ExportTopicsMarkdown(doc *models.NormalizedDocument, topics []models.Topic) string {
	title := ""
	if doc != nil {
		title = doc.Title
	}
	lines := []string{"# " + title, "", Disclaimer, ""}

	section := func(heading string, items []string) {
		lines = append(lines, "### "+heading)
		for _, item := range items {
			lines = append(lines, "- "+item)
		}
		lines = append(lines, "")
	}

	for _, t := range topics {
		lines = append(lines,
			"## "+t.Label,
			"- Priority: "+string(t.Priority),
			"- Level: "+string(t.Level),
			"- Anchors: "+strings.Join(t.Citations, ", "),
			"- Rationale: "+t.Rationale,
			"",
		)
		section("Summary", t.SummaryBullets)
		section("What You Should Know", t.WhatYouShouldKnow)
		section("Pitfalls", t.Pitfalls)
		section("Key Decision Points", t.KeyDecisionPoints)
	}
	return strings.Join(lines, "\n")
}

// ExportAnkiTSV 导出闪卡为制表符分隔表格
func ExportAnkiTSV(topics []models.Topic) (string, error) {
	rows := [][]string{ankiHeader}
	for _, t := range topics {
		for _, card := range t.Flashcards {
			rows = append(rows, []string{card.Front, card.Back, card.AnchorLabel, string(card.CardType)})
		}
	}
	return writeDelimited(rows, '\t', "\n"), nil
}

// writeDelimited 按最小引用规则写出表格
// 只有包含分隔符、双引号、回车或换行的字段才加引号，字段内的双引号写成两个；首尾空白原样保留
func writeDelimited(rows [][]string, comma byte, lineEnd string) string {
	special := string(comma) + "\"\r\n"
	var b strings.Builder
	for _, row := range rows {
		for i, field := range row {
			if i > 0 {
				b.WriteByte(comma)
			}
			if !strings.ContainsAny(field, special) {
				b.WriteString(field)
				continue
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(field, `"`, `""`))
			b.WriteByte('"')
		}
		b.WriteString(lineEnd)
	}
	return b.String()
}
