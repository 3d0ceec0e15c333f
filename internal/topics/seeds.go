package topics

import "github.com/fyerfyer/neurocme/internal/models"

// TopicSeed 共享同一主题标签的一组文本块
type TopicSeed struct {
	Label  string
	Chunks []models.Chunk
}

// ProposeTopicSeeds 按推导出的标签对文本块分组
// 分组顺序为首次出现的顺序，展示标签取该组第一次出现的标签
func ProposeTopicSeeds(chunks []models.Chunk) []TopicSeed {
	index := make(map[string]int)
	var seeds []TopicSeed

	for _, chunk := range chunks {
		label := DeriveTopicLabel(chunk)
		key := NormalizeLabel(label)
		if i, ok := index[key]; ok {
			seeds[i].Chunks = append(seeds[i].Chunks, chunk)
			continue
		}
		index[key] = len(seeds)
		seeds = append(seeds, TopicSeed{Label: label, Chunks: []models.Chunk{chunk}})
	}
	return seeds
}
