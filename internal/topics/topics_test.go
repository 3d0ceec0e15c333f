package topics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/neurocme/internal/models"
)

func chunk(id, heading, text string) models.Chunk {
	return models.Chunk{ChunkID: id, DocumentID: "doc", Heading: heading, Text: text, ParagraphCount: 1}
}

// TestDeriveTopicLabel 测试各级标签推导规则
func TestDeriveTopicLabel(t *testing.T) {
	tests := []struct {
		name     string
		heading  string
		text     string
		expected string
	}{
		{"specific heading is used verbatim", "Status Epilepticus", "anything", "Status Epilepticus"},
		{"heading whitespace is collapsed", "  Status \n Epilepticus ", "anything", "Status Epilepticus"},
		{"no-break space is collapsed", "Status\u00a0\u00a0Epilepticus", "anything", "Status Epilepticus"},
		{"generic heading falls through to lexicon", "Introduction", "Propofol infusion syndrome is rare.", "Sedation and Analgesia"},
		{"lexicon order wins over text order", "Overview", "Sedation is paused before the seizure workup.", "Status Epilepticus"},
		{"noun phrase before verb cue", "Overview", "Cerebral edema management requires careful osmotherapy. More text here.", "Cerebral edema management"},
		{"most frequent ngram", "Background", "Patients with delirium benefit from early mobility; early mobility reduces delirium.", "Early Mobility"},
		{"longer ngram wins ties", "Overview", "Osmotic therapy dosing osmotic therapy dosing and fluid balance review of osmotic therapy dosing.", "Osmotic Therapy Dosing"},
		{"heading longer than ten words", "A very long heading that has many more words than ten allowed here", "Hypertonic saline lowers pressure.", "Hypertonic Saline Lowers"},
		{"page heading is generic in any case", "page 1", "Fever control matters because fever worsens outcomes in fever cohorts.", "Control Matters Because"},
		{"stopword text falls back", "Page 1", "a to be or it is.", FallbackLabel},
		{"empty chunk falls back", "", "", FallbackLabel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveTopicLabel(chunk("c", tt.heading, tt.text)))
		})
	}
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "ecmo-and-neuromonitoring", NormalizeLabel("ECMO and Neuromonitoring!!"))
	assert.Equal(t, "status-epilepticus", NormalizeLabel("  Status -- Epilepticus "))
	assert.Equal(t, "", NormalizeLabel("---"))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "First-Line Therapy", titleCase("first-line therapy"))
	assert.Equal(t, "Cpp2X Goal", titleCase("cpp2x goal"))
}

func TestFirstSentence(t *testing.T) {
	assert.Equal(t, "One sentence here.", firstSentence("  One sentence here. Second one follows."))
	assert.Equal(t, "One sentence here.", firstSentence("One sentence here.\u00a0Second one follows."))
	long := strings.Repeat("word ", 40)
	assert.Len(t, []rune(firstSentence(long)), 120)
}

// TestProposeTopicSeeds 测试分组顺序与首个展示标签
func TestProposeTopicSeeds(t *testing.T) {
	chunks := []models.Chunk{
		chunk("c1", "Status Epilepticus", "first"),
		chunk("c2", "Intracranial Pressure", "second"),
		chunk("c3", "status  epilepticus", "third"),
		chunk("c4", "Overview", "Seizure control requires benzodiazepines."),
	}

	seeds := ProposeTopicSeeds(chunks)
	require.Len(t, seeds, 2)

	assert.Equal(t, "Status Epilepticus", seeds[0].Label)
	require.Len(t, seeds[0].Chunks, 3)
	assert.Equal(t, "c1", seeds[0].Chunks[0].ChunkID)
	assert.Equal(t, "c3", seeds[0].Chunks[1].ChunkID)
	assert.Equal(t, "c4", seeds[0].Chunks[2].ChunkID)

	assert.Equal(t, "Intracranial Pressure", seeds[1].Label)
	assert.Len(t, seeds[1].Chunks, 1)

	assert.Empty(t, ProposeTopicSeeds(nil))
}
