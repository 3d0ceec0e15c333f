package topics

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/fyerfyer/neurocme/internal/models"
)

// FallbackLabel 所有规则都不适用时的主题标签
const FallbackLabel = "Key Topic"

const (
	maxHeadingWords  = 10
	maxSentenceRunes = 120
	minNgram         = 2
	maxNgram         = 3
)

// genericHeadings 不能直接作为主题标签的通用标题
var genericHeadings = map[string]bool{
	"overview":     true,
	"body":         true,
	"introduction": true,
	"background":   true,
	"page 1":       true,
	"page 2":       true,
	"page 3":       true,
	"page 4":       true,
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "for": true, "from": true, "in": true, "is": true,
	"it": true, "of": true, "on": true, "or": true, "that": true, "the": true,
	"to": true, "with": true,
}

// lexiconEntry 规范主题及其别名
type lexiconEntry struct {
	Label   string
	Aliases []string
}

// topicLexicon 按顺序匹配，先命中者优先
var topicLexicon = []lexiconEntry{
	{"Status Epilepticus", []string{"status epilepticus", "refractory status epilepticus", "seizure"}},
	{"Intracranial Pressure", []string{"intracranial pressure", "cerebral perfusion pressure", "icp", "herniation"}},
	{"Neurocritical Airway", []string{"airway", "intubation", "ventilation", "oxygenation", "hyperventilation"}},
	{"Brain Perfusion Targets", []string{"map", "cpp", "perfusion", "blood pressure target"}},
	{"Sedation and Analgesia", []string{"sedation", "analgesia", "propofol", "midazolam", "ketamine"}},
	{"ECMO and Neuromonitoring", []string{"ecmo", "extracorporeal membrane oxygenation", "neuromonitoring"}},
}

var (
	whitespaceRe    = regexp.MustCompile(`[\s\p{Z}]+`)
	sentenceEndRe   = regexp.MustCompile(`[.!?][\s\p{Z}]+`)
	nounPhraseRe    = regexp.MustCompile(`^([A-Z][A-Za-z0-9/\- ]{3,70}?)(?: is| are| remains| requires| should| can| may)`)
	wordTokenRe     = regexp.MustCompile(`[A-Za-z][A-Za-z0-9\-]+`)
	nonAlnumRunesRe = regexp.MustCompile(`[^a-z0-9]+`)
)

// DeriveTopicLabel 为文本块推导主题标签
// 依次尝试：有效标题、规范词表、首句名词短语、高频n-gram，最后回退到"Key Topic"
func DeriveTopicLabel(chunk models.Chunk) string {
	if label, ok := labelFromHeading(chunk.Heading); ok {
		return label
	}

	lower := strings.ToLower(chunk.Text)
	for _, entry := range topicLexicon {
		for _, alias := range entry.Aliases {
			if strings.Contains(lower, alias) {
				return entry.Label
			}
		}
	}

	sentence := firstSentence(chunk.Text)
	if m := nounPhraseRe.FindStringSubmatch(sentence); m != nil {
		if phrase := strings.TrimSpace(m[1]); phrase != "" {
			return phrase
		}
	}

	if phrase := mostFrequentNgram(lower); phrase != "" {
		return titleCase(phrase)
	}
	return FallbackLabel
}

func labelFromHeading(heading string) (string, bool) {
	heading = strings.TrimSpace(whitespaceRe.ReplaceAllString(heading, " "))
	if heading == "" || genericHeadings[strings.ToLower(heading)] {
		return "", false
	}
	if len(strings.Fields(heading)) > maxHeadingWords {
		return "", false
	}
	return heading, true
}

// firstSentence 返回文本的第一句，最多120个字符
func firstSentence(text string) string {
	text = strings.TrimSpace(text)
	if loc := sentenceEndRe.FindStringIndex(text); loc != nil {
		text = text[:loc[0]+1]
	}
	return models.TruncateRunes(text, maxSentenceRunes)
}

// mostFrequentNgram 统计首尾都不是停用词的2-gram和3-gram
// 频次相同时取更长的短语，再相同时取最先出现的
func mostFrequentNgram(lower string) string {
	tokens := wordTokenRe.FindAllString(lower, -1)
	counts := make(map[string]int)
	var order []string

	for size := minNgram; size <= maxNgram; size++ {
		for i := 0; i+size <= len(tokens); i++ {
			gram := tokens[i : i+size]
			if stopwords[gram[0]] || stopwords[gram[len(gram)-1]] {
				continue
			}
			phrase := strings.Join(gram, " ")
			if _, ok := counts[phrase]; !ok {
				order = append(order, phrase)
			}
			counts[phrase]++
		}
	}

	best, bestCount := "", 0
	for _, phrase := range order {
		c := counts[phrase]
		if c > bestCount || (c == bestCount && len(phrase) > len(best)) {
			best, bestCount = phrase, c
		}
	}
	return best
}

// titleCase 单词首字母大写，其余小写；字母后的字母视为同一单词
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// NormalizeLabel 生成用于分组的标签键
func NormalizeLabel(label string) string {
	key := nonAlnumRunesRe.ReplaceAllString(strings.ToLower(label), "-")
	return strings.Trim(key, "-")
}
