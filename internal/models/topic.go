package models

// Priority 主题优先级
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Level 教学深度等级
type Level string

const (
	LevelBasic        Level = "BASIC"
	LevelIntermediate Level = "INTERMEDIATE"
	LevelAdvanced     Level = "ADVANCED"
	LevelExpert       Level = "EXPERT"
)

// CardType 闪卡类型
type CardType string

const (
	// CardQA 问答卡
	CardQA CardType = "qa"
	// CardCloze 填空卡
	CardCloze CardType = "cloze"
)

// ScoreBreakdown 评分明细
// 六个信号得分均在[0,1]内，SpecialtyBonus在[0,0.12]内
type ScoreBreakdown struct {
	ClinicalFrequency float64  `json:"clinical_frequency"`
	HighStakes        float64  `json:"high_stakes"`
	DecisionDensity   float64  `json:"decision_density"`
	GuidelineDensity  float64  `json:"guideline_density"`
	PitfallDensity    float64  `json:"pitfall_density"`
	RareCritical      float64  `json:"rare_critical"`
	SpecialtyBonus    float64  `json:"specialty_bonus"`
	Total             float64  `json:"total"`
	EvidenceTerms     []string `json:"evidence_terms"`
}

// Flashcard 闪卡
type Flashcard struct {
	Front       string   `json:"front"`
	Back        string   `json:"back"`
	AnchorLabel string   `json:"anchor_label"`
	CardType    CardType `json:"card_type"`
}

// Topic 排序后的学习主题
type Topic struct {
	TopicID            string         `json:"topic_id"`
	Label              string         `json:"label"`
	Priority           Priority       `json:"priority"`
	Level              Level          `json:"level"`
	Score              float64        `json:"score"`
	Rationale          string         `json:"rationale"`
	Anchors            []SourceAnchor `json:"anchors"`
	Citations          []string       `json:"citations"`
	Breakdown          ScoreBreakdown `json:"breakdown"`
	SummaryBullets     []string       `json:"summary_bullets"`
	WhatYouShouldKnow  []string       `json:"what_you_should_know"`
	Pitfalls           []string       `json:"pitfalls"`
	KeyDecisionPoints  []string       `json:"key_decision_points"`
	Flashcards         []Flashcard    `json:"flashcards"`
	SupportingChunkIDs []string       `json:"supporting_chunk_ids"`
}
