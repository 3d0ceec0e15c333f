package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fyerfyer/neurocme/internal/models"
)

// EnrichmentProvider 可选的主题增强提供者
// 只有在AnalysisOptions.UseLLM为true且IsAvailable返回true时才会被调用
type EnrichmentProvider interface {
	IsAvailable() bool
	EnrichTopics(ctx context.Context, doc *models.NormalizedDocument, chunks []models.Chunk,
		topics []models.Topic, options models.AnalysisOptions) ([]models.Topic, error)
}

// NullProvider 默认提供者，保持启发式结果不变
type NullProvider struct{}

// IsAvailable 始终不可用
func (NullProvider) IsAvailable() bool {
	return false
}

// EnrichTopics 原样返回主题列表
func (NullProvider) EnrichTopics(_ context.Context, _ *models.NormalizedDocument, _ []models.Chunk,
	topics []models.Topic, _ models.AnalysisOptions) ([]models.Topic, error) {
	out := make([]models.Topic, len(topics))
	copy(out, topics)
	return out, nil
}

const (
	excerptRunes   = 1200
	maxEnrichedLen = 4
)

const enrichSystemPrompt = `You rewrite study summaries for critical care continuing education.
Use only facts present in the provided excerpts. Do not add dosing that is not in the excerpt.
Reply with JSON only, no prose, using this shape:
{"topics":[{"topic_id":"<id>","summary_bullets":["<bullet>", "..."]}]}
Return at most 4 concise bullets per topic and keep every topic_id unchanged.`

// ClientProvider 使用大模型客户端改写每个主题的摘要要点
// 主题ID、锚点、评分和闪卡保持不变
type ClientProvider struct {
	client Client
}

// NewClientProvider 创建基于大模型客户端的增强提供者
func NewClientProvider(client Client) *ClientProvider {
	return &ClientProvider{client: client}
}

// IsAvailable 配置了客户端时可用
func (p *ClientProvider) IsAvailable() bool {
	return p != nil && p.client != nil
}

type enrichRequestTopic struct {
	TopicID        string   `json:"topic_id"`
	Label          string   `json:"label"`
	Priority       string   `json:"priority"`
	SummaryBullets []string `json:"summary_bullets"`
	Excerpt        string   `json:"excerpt"`
}

type enrichReply struct {
	Topics []struct {
		TopicID        string   `json:"topic_id"`
		SummaryBullets []string `json:"summary_bullets"`
	} `json:"topics"`
}

// EnrichTopics 调用模型改写摘要要点，任何调用或解析错误都会返回给调用方
func (p *ClientProvider) EnrichTopics(ctx context.Context, doc *models.NormalizedDocument, chunks []models.Chunk,
	topics []models.Topic, options models.AnalysisOptions) ([]models.Topic, error) {
	if len(topics) == 0 {
		return []models.Topic{}, nil
	}

	prompt, err := buildEnrichPrompt(doc, chunks, topics, options)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Chat(ctx, []Message{
		{Role: RoleSystem, Content: enrichSystemPrompt},
		{Role: RoleUser, Content: prompt},
	})
	if err != nil {
		return nil, WrapError(err, ErrCodeServerError)
	}

	reply, err := parseEnrichReply(resp.Text)
	if err != nil {
		return nil, err
	}
	return applyEnrichment(topics, reply)
}

func buildEnrichPrompt(doc *models.NormalizedDocument, chunks []models.Chunk,
	topics []models.Topic, options models.AnalysisOptions) (string, error) {
	byID := make(map[string]models.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ChunkID] = c
	}

	items := make([]enrichRequestTopic, 0, len(topics))
	for _, t := range topics {
		var parts []string
		for _, id := range t.SupportingChunkIDs {
			if c, ok := byID[id]; ok {
				parts = append(parts, c.Text)
			}
		}
		items = append(items, enrichRequestTopic{
			TopicID:        t.TopicID,
			Label:          t.Label,
			Priority:       string(t.Priority),
			SummaryBullets: t.SummaryBullets,
			Excerpt:        models.TruncateRunes(strings.Join(parts, "\n\n"), excerptRunes),
		})
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return "", NewLLMError(ErrCodeInvalidRequest, fmt.Sprintf("failed to encode topics: %v", err))
	}

	title := ""
	if doc != nil {
		title = doc.Title
	}
	return fmt.Sprintf("Document: %s\nSpecialty focus: %s\nDepth: %s\n\nTopics:\n%s",
		title, options.SpecialtyFocus, options.DesiredDepth, payload), nil
}

// parseEnrichReply 解析模型回复，容忍Markdown代码块包裹
func parseEnrichReply(text string) (*enrichReply, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return nil, NewLLMError(ErrCodeMalformedReply, ErrMsgMalformedReply)
	}

	var reply enrichReply
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return nil, NewLLMError(ErrCodeMalformedReply, fmt.Sprintf("%s: %v", ErrMsgMalformedReply, err))
	}
	return &reply, nil
}

func applyEnrichment(topics []models.Topic, reply *enrichReply) ([]models.Topic, error) {
	index := make(map[string]int, len(topics))
	out := make([]models.Topic, len(topics))
	for i, t := range topics {
		out[i] = t
		index[t.TopicID] = i
	}

	for _, item := range reply.Topics {
		i, ok := index[item.TopicID]
		if !ok {
			return nil, NewLLMError(ErrCodeTopicMismatch, "unknown topic_id in reply: "+item.TopicID)
		}
		var bullets []string
		for _, b := range item.SummaryBullets {
			if b = strings.TrimSpace(b); b != "" {
				bullets = append(bullets, b)
			}
		}
		if len(bullets) == 0 {
			continue
		}
		if len(bullets) > maxEnrichedLen {
			bullets = bullets[:maxEnrichedLen]
		}
		out[i].SummaryBullets = bullets
	}
	return out, nil
}
