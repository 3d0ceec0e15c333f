package outputs

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/fyerfyer/neurocme/internal/models"
)

const (
	minSentenceRunes = 35
	clozeAnswerRunes = 80
	knowBulletLimit  = 3
	filteredLimit    = 3
)

var (
	// cueTerms 句子排序使用的提示词
	cueTerms = []string{"should", "target", "avoid", "urgent", "refractory", "contraindication", "escalate"}
	// pitfallTerms 陷阱句筛选词
	pitfallTerms = []string{"avoid", "pitfall", "warning", "contraindication", "delay"}
	// decisionTerms 决策句筛选词
	decisionTerms = []string{"should", "if", "when", "escalate", "target", "consider"}

	whitespaceRe  = regexp.MustCompile(`[\s\p{Z}]+`)
	sentenceEndRe = regexp.MustCompile(`[.!?][\s\p{Z}]+`)
	labelPrefixRe = regexp.MustCompile(`^[A-Z][^:]+:[\s\p{Z}]*`)
)

// CleanSentences 规范化空白后在句末标点处切分，只保留长度超过35个字符的句子
func CleanSentences(text string) []string {
	normalized := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if normalized == "" {
		return nil
	}

	var sentences []string
	keep := func(s string) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) > minSentenceRunes {
			sentences = append(sentences, s)
		}
	}

	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(normalized, -1) {
		keep(normalized[start : loc[0]+1])
		start = loc[1]
	}
	keep(normalized[start:])
	return sentences
}

// rankSentences 按(提示词命中数, 句子长度)降序稳定排序
func rankSentences(sentences []string) []string {
	type scored struct {
		text   string
		hits   int
		length int
	}
	items := make([]scored, 0, len(sentences))
	for _, s := range sentences {
		items = append(items, scored{text: s, hits: containsCount(strings.ToLower(s), cueTerms), length: utf8.RuneCountInString(s)})
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].hits != items[j].hits {
			return items[i].hits > items[j].hits
		}
		return items[i].length > items[j].length
	})

	ranked := make([]string, 0, len(items))
	for _, it := range items {
		ranked = append(ranked, it.text)
	}
	return ranked
}

// containsCount 统计出现在文本中的不同词条个数
func containsCount(lower string, terms []string) int {
	n := 0
	for _, term := range terms {
		if strings.Contains(lower, term) {
			n++
		}
	}
	return n
}

func filterSentences(text string, terms []string) []string {
	var matched []string
	for _, s := range CleanSentences(text) {
		if containsCount(strings.ToLower(s), terms) > 0 {
			matched = append(matched, s)
			if len(matched) == filteredLimit {
				break
			}
		}
	}
	return matched
}

func firstAnchorLabel(anchors []models.SourceAnchor) string {
	if len(anchors) == 0 {
		return "source text"
	}
	return anchors[0].Label()
}

// BuildSummaryBullets 摘要要点：boards深度取3条，其余取4条
func BuildSummaryBullets(label, text, depth string) []string {
	limit := 4
	if depth == models.DepthBoards {
		limit = 3
	}
	ranked := rankSentences(CleanSentences(text))
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if len(ranked) == 0 {
		return []string{fmt.Sprintf("%s is a practical ICU topic with source-supported decision points.", label)}
	}
	return ranked
}

// BuildWhatYouShouldKnow 必知要点，每条以"标签: "开头
func BuildWhatYouShouldKnow(label, text string, priority models.Priority, level models.Level) []string {
	ranked := rankSentences(CleanSentences(text))
	if len(ranked) > knowBulletLimit {
		ranked = ranked[:knowBulletLimit]
	}
	if len(ranked) == 0 {
		return []string{fmt.Sprintf("%s: %s priority, %s level topic.", label, priority, strings.ToLower(string(level)))}
	}

	bullets := make([]string, 0, len(ranked))
	for _, s := range ranked {
		bullets = append(bullets, label+": "+s)
	}
	return bullets
}

// BuildPitfalls 按原文顺序返回最多3条含警示词的句子
func BuildPitfalls(text string, anchors []models.SourceAnchor) []string {
	if matched := filterSentences(text, pitfallTerms); len(matched) > 0 {
		return matched
	}
	return []string{fmt.Sprintf("Watch for delayed escalation or missed contraindications flagged near %s.", firstAnchorLabel(anchors))}
}

// BuildKeyDecisionPoints 按原文顺序返回最多3条含决策词的句子
func BuildKeyDecisionPoints(text string, anchors []models.SourceAnchor) []string {
	if matched := filterSentences(text, decisionTerms); len(matched) > 0 {
		return matched
	}
	return []string{fmt.Sprintf("Use the decision thresholds summarized around %s to guide escalation.", firstAnchorLabel(anchors))}
}

// BuildFlashcards 由第一条必知要点生成问答卡和填空卡
// 没有锚点时不生成任何闪卡
func BuildFlashcards(label string, bullets []string, anchors []models.SourceAnchor) []models.Flashcard {
	if len(anchors) == 0 {
		return []models.Flashcard{}
	}
	anchorLabel := anchors[0].Label()

	first := fmt.Sprintf("%s matters because it changes ICU decision making.", label)
	if len(bullets) > 0 {
		first = bullets[0]
	}
	answer := labelPrefixRe.ReplaceAllString(first, "")

	return []models.Flashcard{
		{
			Front:       fmt.Sprintf("What should you know first about %s?", label),
			Back:        answer,
			AnchorLabel: anchorLabel,
			CardType:    models.CardQA,
		},
		{
			Front:       fmt.Sprintf("%s requires {{c1::%s}}.", label, models.TruncateRunes(answer, clozeAnswerRunes)),
			Back:        "Source anchor: " + anchorLabel,
			AnchorLabel: anchorLabel,
			CardType:    models.CardCloze,
		},
	}
}
