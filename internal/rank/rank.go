package rank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fyerfyer/neurocme/internal/llm"
	"github.com/fyerfyer/neurocme/internal/models"
	"github.com/fyerfyer/neurocme/internal/outputs"
	"github.com/fyerfyer/neurocme/internal/scoring"
	"github.com/fyerfyer/neurocme/internal/topics"
)

const (
	topicIDPrefixRunes = 120
	rationaleAnchors   = 3
)

// Ranker 主题聚合与排序器
type Ranker struct {
	engine   *scoring.Engine
	provider llm.EnrichmentProvider
}

// RankerOption 排序器配置选项
type RankerOption func(*Ranker)

// WithProvider 设置主题增强提供者
func WithProvider(p llm.EnrichmentProvider) RankerOption {
	return func(r *Ranker) {
		if p != nil {
			r.provider = p
		}
	}
}

// NewRanker 创建主题排序器，默认不做增强
func NewRanker(engine *scoring.Engine, opts ...RankerOption) *Ranker {
	r := &Ranker{engine: engine, provider: llm.NullProvider{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RankChunks 纯启发式路径：分组、评分、生成内容，然后排序截断
// 排序键为(分数降序, 标签升序)
func (r *Ranker) RankChunks(chunks []models.Chunk, options models.AnalysisOptions) []models.Topic {
	seeds := topics.ProposeTopicSeeds(chunks)
	result := make([]models.Topic, 0, len(seeds))
	for _, seed := range seeds {
		result = append(result, r.topicFromSeed(seed, options))
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		return result[i].Label < result[j].Label
	})

	if options.MaxTopics >= 0 && len(result) > options.MaxTopics {
		result = result[:options.MaxTopics]
	}
	return result
}

// RankDocument 在启发式结果上按需调用增强提供者
// 提供者返回的错误原样向上传递
func (r *Ranker) RankDocument(ctx context.Context, doc *models.NormalizedDocument, chunks []models.Chunk,
	options models.AnalysisOptions) ([]models.Topic, error) {
	result := r.RankChunks(chunks, options)
	if !options.UseLLM || !r.provider.IsAvailable() {
		return result, nil
	}

	enriched, err := r.provider.EnrichTopics(ctx, doc, chunks, result, options)
	if err != nil {
		return nil, fmt.Errorf("topic enrichment failed: %w", err)
	}
	return enriched, nil
}

// RankChunks 使用打包的默认权重排序文本块
func RankChunks(chunks []models.Chunk, options models.AnalysisOptions) []models.Topic {
	return NewRanker(scoring.NewEngine(scoring.DefaultWeights())).RankChunks(chunks, options)
}

// RankDocument 使用默认权重和给定提供者完成排序与增强，provider为nil时不做增强
func RankDocument(ctx context.Context, doc *models.NormalizedDocument, chunks []models.Chunk,
	options models.AnalysisOptions, provider llm.EnrichmentProvider) ([]models.Topic, error) {
	ranker := NewRanker(scoring.NewEngine(scoring.DefaultWeights()), WithProvider(provider))
	return ranker.RankDocument(ctx, doc, chunks, options)
}

func (r *Ranker) topicFromSeed(seed topics.TopicSeed, options models.AnalysisOptions) models.Topic {
	texts := make([]string, 0, len(seed.Chunks))
	var allAnchors []models.SourceAnchor
	chunkIDs := make([]string, 0, len(seed.Chunks))
	for _, c := range seed.Chunks {
		texts = append(texts, c.Text)
		allAnchors = append(allAnchors, c.Anchors...)
		chunkIDs = append(chunkIDs, c.ChunkID)
	}
	merged := strings.Join(texts, "\n\n")
	anchors := DedupeAnchors(allAnchors)

	breakdown := r.engine.ScoreText(merged, options)
	level := scoring.ClassifyLevel(merged)
	priority := scoring.PriorityFromScore(breakdown.Total)

	citations := make([]string, 0, len(anchors))
	for _, a := range anchors {
		citations = append(citations, a.Label())
	}
	shown := citations
	if len(shown) > rationaleAnchors {
		shown = shown[:rationaleAnchors]
	}
	rationale := fmt.Sprintf("%s Anchors: %s.", scoring.ScoreExplanation(breakdown, level), strings.Join(shown, ", "))

	know := outputs.BuildWhatYouShouldKnow(seed.Label, merged, priority, level)

	return models.Topic{
		TopicID:            models.ShortHash(seed.Label + ":" + models.TruncateRunes(merged, topicIDPrefixRunes)),
		Label:              seed.Label,
		Priority:           priority,
		Level:              level,
		Score:              breakdown.Total,
		Rationale:          rationale,
		Anchors:            anchors,
		Citations:          citations,
		Breakdown:          breakdown,
		SummaryBullets:     outputs.BuildSummaryBullets(seed.Label, merged, options.DesiredDepth),
		WhatYouShouldKnow:  know,
		Pitfalls:           outputs.BuildPitfalls(merged, anchors),
		KeyDecisionPoints:  outputs.BuildKeyDecisionPoints(merged, anchors),
		Flashcards:         outputs.BuildFlashcards(seed.Label, know, anchors),
		SupportingChunkIDs: chunkIDs,
	}
}

// DedupeAnchors 按(页码, 段落, 章节)去重，保留首次出现的锚点
func DedupeAnchors(anchors []models.SourceAnchor) []models.SourceAnchor {
	seen := make(map[string]bool, len(anchors))
	unique := make([]models.SourceAnchor, 0, len(anchors))
	for _, a := range anchors {
		key := a.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, a)
	}
	return unique
}
