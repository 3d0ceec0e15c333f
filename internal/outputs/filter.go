package outputs

import (
	"fmt"
	"strings"

	"github.com/fyerfyer/neurocme/internal/models"
)

// TopicRow 主题概览表的一行
type TopicRow struct {
	Topic    string `json:"topic"`
	Priority string `json:"priority"`
	Level    string `json:"level"`
	Score    string `json:"score"`
	Anchors  string `json:"anchors"`
}

// Section 主题详情中的一个小节
type Section struct {
	Title string   `json:"title"`
	Items []string `json:"items"`
}

// FilterTopics 按优先级、等级和标签关键字筛选主题
// 空的优先级或等级集合表示不限制；query按标签做不区分大小写的子串匹配
func FilterTopics(topics []models.Topic, priorities []models.Priority, levels []models.Level, query string) []models.Topic {
	allowedPriorities := make(map[models.Priority]bool, len(priorities))
	for _, p := range priorities {
		allowedPriorities[models.Priority(strings.ToUpper(string(p)))] = true
	}
	allowedLevels := make(map[models.Level]bool, len(levels))
	for _, l := range levels {
		allowedLevels[models.Level(strings.ToUpper(string(l)))] = true
	}
	query = strings.ToLower(strings.TrimSpace(query))

	filtered := make([]models.Topic, 0, len(topics))
	for _, t := range topics {
		if len(allowedPriorities) > 0 && !allowedPriorities[t.Priority] {
			continue
		}
		if len(allowedLevels) > 0 && !allowedLevels[t.Level] {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(t.Label), query) {
			continue
		}
		filtered = append(filtered, t)
	}
	return filtered
}

// TopicRows 生成主题概览表，最多展示前3个引用
func TopicRows(topics []models.Topic) []TopicRow {
	rows := make([]TopicRow, 0, len(topics))
	for _, t := range topics {
		citations := t.Citations
		if len(citations) > 3 {
			citations = citations[:3]
		}
		rows = append(rows, TopicRow{
			Topic:    t.Label,
			Priority: string(t.Priority),
			Level:    string(t.Level),
			Score:    fmt.Sprintf("%.2f", t.Score),
			Anchors:  strings.Join(citations, ", "),
		})
	}
	return rows
}

// TopicSections 按输出类型选择并排列主题详情小节
func TopicSections(t models.Topic, outputType string) []Section {
	switch outputType {
	case models.OutputPearls:
		return []Section{
			{Title: "Pitfalls", Items: t.Pitfalls},
			{Title: "Key Decision Points", Items: t.KeyDecisionPoints},
			{Title: "What You Should Know", Items: t.WhatYouShouldKnow},
		}
	case models.OutputFlashcards:
		cards := make([]string, 0, len(t.Flashcards))
		for _, c := range t.Flashcards {
			cards = append(cards, fmt.Sprintf("[%s] %s -> %s", c.CardType, c.Front, c.Back))
		}
		return []Section{
			{Title: "Summary", Items: t.SummaryBullets},
			{Title: "Flashcards", Items: cards},
		}
	default:
		return []Section{
			{Title: "Summary", Items: t.SummaryBullets},
			{Title: "What You Should Know", Items: t.WhatYouShouldKnow},
			{Title: "Pitfalls", Items: t.Pitfalls},
			{Title: "Key Decision Points", Items: t.KeyDecisionPoints},
		}
	}
}
