package models

import "time"

// Analysis 一次完整分析的结果
// 只保存在缓存中，过期后即不可再取
type Analysis struct {
	AnalysisID string             `json:"analysis_id"`
	CreatedAt  time.Time          `json:"created_at"`
	Options    AnalysisOptions    `json:"options"`
	Document   NormalizedDocument `json:"document"`
	ChunkCount int                `json:"chunk_count"`
	Topics     []Topic            `json:"topics"`
	Enriched   bool               `json:"enriched"`
}

// Preview URL预览结果，保存已抓取的文档以便稍后分析
type Preview struct {
	PreviewID string             `json:"preview_id"`
	CreatedAt time.Time          `json:"created_at"`
	Document  NormalizedDocument `json:"document"`
}
