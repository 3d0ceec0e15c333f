package outputs

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/neurocme/internal/models"
)

const guidance = "Short one. " +
	"Patients with declining consciousness need airway protection before transport. " +
	"Consider early intubation when the gag reflex is absent! " +
	"Avoid hyperventilation unless herniation is imminent and target normocarbia otherwise? " +
	"Escalate sedation if ventilator dyssynchrony persists despite adjustment."

func TestCleanSentences(t *testing.T) {
	sentences := CleanSentences("  " + guidance + "\n\nTiny.")
	assert.Equal(t, []string{
		"Patients with declining consciousness need airway protection before transport.",
		"Consider early intubation when the gag reflex is absent!",
		"Avoid hyperventilation unless herniation is imminent and target normocarbia otherwise?",
		"Escalate sedation if ventilator dyssynchrony persists despite adjustment.",
	}, sentences)

	assert.Empty(t, CleanSentences("   "))
	assert.Equal(t, []string{"No terminal punctuation but long enough to be kept here"},
		CleanSentences("No terminal punctuation but long enough to be kept here"))
	assert.Len(t, CleanSentences("e.g. this abbreviation splits the sentence in two parts."), 1)
}

// TestCleanSentencesUnicodeSpace 不换行空格同样视为句间空白
func TestCleanSentencesUnicodeSpace(t *testing.T) {
	sentences := CleanSentences("Avoid hypotonic fluids in patients with cerebral edema.\u00a0Escalate osmotherapy when intracranial pressure remains elevated.")
	assert.Equal(t, []string{
		"Avoid hypotonic fluids in patients with cerebral edema.",
		"Escalate osmotherapy when intracranial pressure remains elevated.",
	}, sentences)

	assert.Equal(t, []string{"Target normocarbia after intubation in every comatose patient"},
		CleanSentences("Target\u00a0\u00a0normocarbia after intubation\u2003in every comatose patient"))
}

// TestBuildSummaryBullets 按提示词命中数和长度排序
func TestBuildSummaryBullets(t *testing.T) {
	bullets := BuildSummaryBullets("Airway", guidance, models.DepthBoards)
	assert.Equal(t, []string{
		"Avoid hyperventilation unless herniation is imminent and target normocarbia otherwise?",
		"Escalate sedation if ventilator dyssynchrony persists despite adjustment.",
		"Patients with declining consciousness need airway protection before transport.",
	}, bullets)

	assert.Len(t, BuildSummaryBullets("Airway", guidance, models.DepthFellowship), 4)
	assert.Equal(t, []string{"Airway is a practical ICU topic with source-supported decision points."},
		BuildSummaryBullets("Airway", "Too short.", models.DepthAttending))
}

func TestRankSentencesStable(t *testing.T) {
	a := strings.Repeat("a", 40) + "."
	b := strings.Repeat("b", 40) + "."
	assert.Equal(t, []string{a, b}, rankSentences([]string{a, b}))
	assert.Equal(t, []string{b, a}, rankSentences([]string{b, a}))
}

func TestBuildWhatYouShouldKnow(t *testing.T) {
	bullets := BuildWhatYouShouldKnow("Airway", guidance, models.PriorityHigh, models.LevelAdvanced)
	require.Len(t, bullets, 3)
	for _, b := range bullets {
		assert.True(t, strings.HasPrefix(b, "Airway: "))
	}

	assert.Equal(t, []string{"Airway: MEDIUM priority, intermediate level topic."},
		BuildWhatYouShouldKnow("Airway", "", models.PriorityMedium, models.LevelIntermediate))
}

func TestBuildPitfallsAndDecisionPoints(t *testing.T) {
	anchors := []models.SourceAnchor{{Page: models.IntPtr(2), Section: "Airway"}}

	assert.Equal(t, []string{
		"Avoid hyperventilation unless herniation is imminent and target normocarbia otherwise?",
	}, BuildPitfalls(guidance, anchors))
	assert.Equal(t, []string{
		"Consider early intubation when the gag reflex is absent!",
		"Avoid hyperventilation unless herniation is imminent and target normocarbia otherwise?",
		"Escalate sedation if ventilator dyssynchrony persists despite adjustment.",
	}, BuildKeyDecisionPoints(guidance, anchors))

	assert.Equal(t, []string{"Watch for delayed escalation or missed contraindications flagged near Page 2 | Airway."},
		BuildPitfalls("Nothing relevant appears in this particular sentence here.", anchors))
	assert.Equal(t, []string{"Use the decision thresholds summarized around source text to guide escalation."},
		BuildKeyDecisionPoints("", nil))
}

// TestBuildFlashcards 测试问答卡与填空卡
func TestBuildFlashcards(t *testing.T) {
	anchors := []models.SourceAnchor{{Page: models.IntPtr(1), Paragraph: models.IntPtr(3), Section: "Airway"}}
	long := "Airway: " + strings.Repeat("x", 100)

	cards := BuildFlashcards("Airway", []string{long}, anchors)
	require.Len(t, cards, 2)

	qa, cloze := cards[0], cards[1]
	assert.Equal(t, models.CardQA, qa.CardType)
	assert.Equal(t, "What should you know first about Airway?", qa.Front)
	assert.Equal(t, strings.Repeat("x", 100), qa.Back)
	assert.Equal(t, "Page 1 | Paragraph 3 | Airway", qa.AnchorLabel)

	assert.Equal(t, models.CardCloze, cloze.CardType)
	assert.Equal(t, "Airway requires {{c1::"+strings.Repeat("x", 80)+"}}.", cloze.Front)
	assert.Equal(t, "Source anchor: Page 1 | Paragraph 3 | Airway", cloze.Back)
	assert.Equal(t, qa.AnchorLabel, cloze.AnchorLabel)

	fallback := BuildFlashcards("Airway", nil, anchors)
	assert.Equal(t, "Airway matters because it changes ICU decision making.", fallback[0].Back)

	lower := BuildFlashcards("Airway", []string{"lowercase: prefix stays"}, anchors)
	assert.Equal(t, "lowercase: prefix stays", lower[0].Back)

	assert.Empty(t, BuildFlashcards("Airway", []string{long}, nil))
}
