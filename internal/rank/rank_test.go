package rank

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/neurocme/internal/document"
	"github.com/fyerfyer/neurocme/internal/llm"
	"github.com/fyerfyer/neurocme/internal/models"
	"github.com/fyerfyer/neurocme/internal/scoring"
)

const seText = "Refractory status epilepticus is an emergency and clinicians should escalate to " +
	"anesthetic infusion if seizures persist after first-line benzodiazepines and a second-line agent. " +
	"Delay increases mortality and brain injury, so avoid waiting for imaging before treatment."

func seizureGuide() *models.NormalizedDocument {
	paragraphs := []struct{ heading, text string }{
		{"Status Epilepticus", seText},
		{"Status Epilepticus", "Benzodiazepine dosing should target the full weight-based dose when seizures continue. " +
			"Avoid underdosing lorazepam because partial doses delay seizure control."},
		{"Airway Management", "Patients with declining consciousness need airway protection before transport. " +
			"Consider early intubation when the gag reflex is absent."},
		{"Fever Control", "Fever worsens secondary brain injury and should be treated promptly with antipyretics " +
			"and surface cooling devices."},
	}

	doc := &models.NormalizedDocument{
		DocumentID: "doc1",
		Title:      "Seizure Guide",
		SourceType: models.SourceText,
		SourceRef:  "Seizure Guide",
	}
	for i, p := range paragraphs {
		doc.Paragraphs = append(doc.Paragraphs, models.Paragraph{
			Text:           p.text,
			Anchor:         models.SourceAnchor{Paragraph: models.IntPtr(i + 1), Section: p.heading, Snippet: p.text},
			SectionHeading: p.heading,
		})
	}
	return doc
}

// stubProvider 记录调用次数的增强提供者
type stubProvider struct {
	available bool
	err       error
	calls     int
}

func (s *stubProvider) IsAvailable() bool { return s.available }

func (s *stubProvider) EnrichTopics(_ context.Context, _ *models.NormalizedDocument, _ []models.Chunk,
	topics []models.Topic, _ models.AnalysisOptions) ([]models.Topic, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]models.Topic, len(topics))
	copy(out, topics)
	for i := range out {
		out[i].SummaryBullets = []string{"enriched"}
	}
	return out, nil
}

// TestRankChunksSeizureGuide 端到端验证分组、评分和内容生成
func TestRankChunksSeizureGuide(t *testing.T) {
	doc := seizureGuide()
	chunks := document.ExtractChunks(doc)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a964ce7978c4", chunks[0].ChunkID)
	assert.Equal(t, "7f9c4f69c5b9", chunks[1].ChunkID)

	topics := RankChunks(chunks, models.DefaultAnalysisOptions())
	require.Len(t, topics, 2)

	se := topics[0]
	assert.Equal(t, "ecd0072eb5c6", se.TopicID)
	assert.Equal(t, "Status Epilepticus", se.Label)
	assert.Equal(t, models.PriorityHigh, se.Priority)
	assert.Equal(t, models.LevelAdvanced, se.Level)
	assert.InDelta(t, 0.895, se.Score, 1e-9)
	assert.Equal(t, []string{"Paragraph 1 | Status Epilepticus", "Paragraph 2 | Status Epilepticus"}, se.Citations)
	assert.Equal(t, "Level ADVANCED. Priority driven by high-stakes neurologic or ICU consequences, dense management "+
		"branching, board-style recommendations or targets, pearls, pitfalls, or contraindications; evidence terms: "+
		"first-line, status epilepticus, mortality, emergency, injury. Anchors: Paragraph 1 | Status Epilepticus, "+
		"Paragraph 2 | Status Epilepticus.", se.Rationale)
	assert.Equal(t, []string{
		"Refractory status epilepticus is an emergency and clinicians should escalate to anesthetic infusion if seizures persist after first-line benzodiazepines and a second-line agent.",
		"Benzodiazepine dosing should target the full weight-based dose when seizures continue.",
		"Delay increases mortality and brain injury, so avoid waiting for imaging before treatment.",
	}, se.SummaryBullets)
	assert.Equal(t, []string{
		"Delay increases mortality and brain injury, so avoid waiting for imaging before treatment.",
		"Avoid underdosing lorazepam because partial doses delay seizure control.",
	}, se.Pitfalls)
	assert.Len(t, se.KeyDecisionPoints, 2)
	assert.Equal(t, []string{chunks[0].ChunkID}, se.SupportingChunkIDs)

	require.Len(t, se.Flashcards, 2)
	assert.Equal(t, "Status Epilepticus requires {{c1::Refractory status epilepticus is an emergency and clinicians should escalate to }}.",
		se.Flashcards[1].Front)
	assert.Equal(t, "Source anchor: Paragraph 1 | Status Epilepticus", se.Flashcards[1].Back)

	airway := topics[1]
	assert.Equal(t, "cef51f025f6f", airway.TopicID)
	assert.Equal(t, "Airway Management", airway.Label)
	assert.Equal(t, models.PriorityMedium, airway.Priority)
	assert.Equal(t, models.LevelBasic, airway.Level)
	assert.InDelta(t, 0.3916666666666666, airway.Score, 1e-9)
	assert.Equal(t, []string{"Paragraph 3 | Airway Management", "Paragraph 4 | Fever Control"}, airway.Citations)
	assert.Equal(t, []string{
		"Watch for delayed escalation or missed contraindications flagged near Paragraph 3 | Airway Management.",
	}, airway.Pitfalls)
	assert.Equal(t, []string{
		"Consider early intubation when the gag reflex is absent.",
		"Fever worsens secondary brain injury and should be treated promptly with antipyretics and surface cooling devices.",
	}, airway.KeyDecisionPoints)
}

func TestRankChunksDeterministic(t *testing.T) {
	chunks := document.ExtractChunks(seizureGuide())
	first := RankChunks(chunks, models.DefaultAnalysisOptions())
	second := RankChunks(chunks, models.DefaultAnalysisOptions())
	assert.Equal(t, first, second)
}

// TestRankChunksOrdering 分数相同时按标签升序，并按MaxTopics截断
func TestRankChunksOrdering(t *testing.T) {
	anchor := func(i int) []models.SourceAnchor {
		return []models.SourceAnchor{{Paragraph: models.IntPtr(i)}}
	}
	chunks := []models.Chunk{
		{ChunkID: "c1", Heading: "Zeta Topic", Text: "plain words only", Anchors: anchor(1)},
		{ChunkID: "c2", Heading: "Alpha Topic", Text: "plain words only", Anchors: anchor(2)},
		{ChunkID: "c3", Heading: "Mid Topic", Text: "Refractory seizures are an emergency.", Anchors: anchor(3)},
	}

	topics := RankChunks(chunks, models.DefaultAnalysisOptions())
	require.Len(t, topics, 3)
	assert.Equal(t, "Mid Topic", topics[0].Label)
	assert.Equal(t, "Alpha Topic", topics[1].Label)
	assert.Equal(t, "Zeta Topic", topics[2].Label)
	for i := 1; i < len(topics); i++ {
		assert.GreaterOrEqual(t, topics[i-1].Score, topics[i].Score)
	}

	opts := models.DefaultAnalysisOptions()
	opts.MaxTopics = 1
	assert.Len(t, RankChunks(chunks, opts), 1)

	assert.Empty(t, RankChunks(nil, models.DefaultAnalysisOptions()))
}

func TestRankChunksWithoutAnchors(t *testing.T) {
	topics := RankChunks([]models.Chunk{{ChunkID: "c1", Heading: "Overview", Text: "short"}}, models.DefaultAnalysisOptions())
	require.Len(t, topics, 1)
	assert.Equal(t, "Key Topic", topics[0].Label)
	assert.Empty(t, topics[0].Flashcards)
	assert.Equal(t, []string{"Key Topic is a practical ICU topic with source-supported decision points."}, topics[0].SummaryBullets)
	assert.Equal(t, []string{"Key Topic: LOW priority, basic level topic."}, topics[0].WhatYouShouldKnow)
	assert.Equal(t, "Level BASIC. Priority driven by foundational clinical teaching points; evidence terms: "+
		"text structure and keyword density. Anchors: .", topics[0].Rationale)
}

// TestRankDocumentEnrichment 测试增强提供者的调用条件与错误传递
func TestRankDocumentEnrichment(t *testing.T) {
	doc := seizureGuide()
	chunks := document.ExtractChunks(doc)
	ctx := context.Background()
	ranker := func(p llm.EnrichmentProvider) *Ranker {
		return NewRanker(scoring.NewEngine(scoring.DefaultWeights()), WithProvider(p))
	}

	t.Run("use_llm disabled", func(t *testing.T) {
		p := &stubProvider{available: true}
		topics, err := ranker(p).RankDocument(ctx, doc, chunks, models.DefaultAnalysisOptions())
		require.NoError(t, err)
		assert.Zero(t, p.calls)
		assert.Equal(t, RankChunks(chunks, models.DefaultAnalysisOptions()), topics)
	})

	opts := models.DefaultAnalysisOptions()
	opts.UseLLM = true

	t.Run("provider unavailable", func(t *testing.T) {
		p := &stubProvider{available: false}
		_, err := ranker(p).RankDocument(ctx, doc, chunks, opts)
		require.NoError(t, err)
		assert.Zero(t, p.calls)
	})

	t.Run("provider replaces topics", func(t *testing.T) {
		p := &stubProvider{available: true}
		topics, err := ranker(p).RankDocument(ctx, doc, chunks, opts)
		require.NoError(t, err)
		assert.Equal(t, 1, p.calls)
		assert.Equal(t, []string{"enriched"}, topics[0].SummaryBullets)
	})

	t.Run("provider error is returned", func(t *testing.T) {
		boom := errors.New("provider timeout")
		_, err := RankDocument(ctx, doc, chunks, opts, &stubProvider{available: true, err: boom})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nil provider", func(t *testing.T) {
		topics, err := RankDocument(ctx, doc, chunks, opts, nil)
		require.NoError(t, err)
		assert.Len(t, topics, 2)
	})
}

func TestDedupeAnchors(t *testing.T) {
	anchors := []models.SourceAnchor{
		{Page: models.IntPtr(1), Paragraph: models.IntPtr(1), Section: "A", Snippet: "first"},
		{Page: models.IntPtr(1), Paragraph: models.IntPtr(1), Section: "A", Snippet: "dup"},
		{Page: models.IntPtr(1), Paragraph: models.IntPtr(2), Section: "A"},
		{Paragraph: models.IntPtr(1), Section: "A"},
	}
	unique := DedupeAnchors(anchors)
	require.Len(t, unique, 3)
	assert.Equal(t, "first", unique[0].Snippet)
}
