package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/fyerfyer/neurocme/internal/models"
)

// Signal 评分信号类别
type Signal string

const (
	ClinicalFrequency Signal = "clinical_frequency"
	HighStakes        Signal = "high_stakes"
	DecisionDensity   Signal = "decision_density"
	GuidelineDensity  Signal = "guideline_density"
	PitfallDensity    Signal = "pitfall_density"
	RareCritical      Signal = "rare_critical"
)

// Signals 信号的固定顺序，证据词按此顺序收集
var Signals = []Signal{
	ClinicalFrequency,
	HighStakes,
	DecisionDensity,
	GuidelineDensity,
	PitfallDensity,
	RareCritical,
}

const (
	// maxEvidenceTerms 证据词数量上限
	maxEvidenceTerms = 12
	// maxSpecialtyBonus 专科加分上限
	maxSpecialtyBonus = 0.12
	// specialtyHitBonus 每次专科词命中的加分
	specialtyHitBonus = 0.03

	highPriorityThreshold   = 0.63
	mediumPriorityThreshold = 0.34

	// driverThreshold 解释文本中列为驱动因素的最低信号分
	driverThreshold = 0.3
)

var signalTerms = map[Signal][]string{
	ClinicalFrequency: {
		"common", "frequent", "routine", "typical", "first-line", "initial",
		"status epilepticus", "stroke", "sedation", "airway", "ventilation",
	},
	HighStakes: {
		"death", "mortality", "herniation", "irreversible", "emergency", "urgent",
		"injury", "cannot miss", "time-sensitive", "brain injury",
	},
	DecisionDensity: {
		"if", "when", "versus", "escalate", "algorithm", "next", "refractory",
		"titrate", "consider", "should",
	},
	GuidelineDensity: {
		"guideline", "recommend", "recommended", "should", "target", "dose",
		"classification", "contraindication", "board",
	},
	PitfallDensity: {
		"pitfall", "pearl", "avoid", "contraindication", "warning", "mistake",
		"do not", "watch for",
	},
	RareCritical: {
		"rare", "salvage", "can't miss", "can’t miss", "super refractory",
		"ecmo", "malignant", "decompressive",
	},
}

var levelTerms = map[models.Level][]string{
	models.LevelBasic:        {"basic", "fundamental", "definition", "recognition", "initial", "first-line"},
	models.LevelIntermediate: {"second-line", "nuance", "consult", "adjust", "titrate", "adjunct"},
	models.LevelAdvanced:     {"advanced", "refractory", "algorithm", "invasive", "multimodal", "ivig", "plex"},
	models.LevelExpert:       {"expert", "ecmo", "impella", "salvage", "tertiary", "neuromonitoring"},
}

var specialtyTerms = map[models.Specialty][]string{
	models.SpecialtyNeuroICU:   {"seizure", "status epilepticus", "intracranial", "brain", "herniation", "cpp", "icp"},
	models.SpecialtyGeneralICU: {"shock", "pressor", "ventilation", "sepsis", "antibiotic", "sedation"},
	models.SpecialtyECMO:       {"ecmo", "extracorporeal", "cannula", "anticoagulation", "oxygenator"},
}

// Engine 评分引擎
// 只依赖构造时传入的权重，ScoreText是(text, options, weights)的纯函数
type Engine struct {
	weights Weights
}

// NewEngine 使用给定权重创建评分引擎
func NewEngine(weights Weights) *Engine {
	return &Engine{weights: weights}
}

// Weights 返回引擎使用的权重
func (e *Engine) Weights() Weights {
	return e.weights
}

// ScoreText 计算文本的评分明细
func (e *Engine) ScoreText(text string, options models.AnalysisOptions) models.ScoreBreakdown {
	lower := strings.ToLower(text)
	scores := make(map[Signal]float64, len(Signals))
	var evidence []string
	seen := make(map[string]bool)

	for _, signal := range Signals {
		terms := signalTerms[signal]
		hits := countTermHits(lower, terms)
		if hits > 0 {
			for _, term := range terms {
				if strings.Contains(lower, term) && !seen[term] {
					seen[term] = true
					evidence = append(evidence, term)
				}
			}
		}
		scores[signal] = math.Min(1.0, float64(hits)/e.weights.Normalizer(signal))
	}

	specialtyHits := countTermHits(lower, specialtyTerms[options.SpecialtyFocus])
	bonus := math.Min(maxSpecialtyBonus, float64(specialtyHits)*specialtyHitBonus)

	total := 0.0
	for _, signal := range Signals {
		total += scores[signal] * e.weights.Weight(signal)
	}
	total = math.Min(1.0, total+bonus)

	if len(evidence) > maxEvidenceTerms {
		evidence = evidence[:maxEvidenceTerms]
	}
	if evidence == nil {
		evidence = []string{}
	}

	return models.ScoreBreakdown{
		ClinicalFrequency: scores[ClinicalFrequency],
		HighStakes:        scores[HighStakes],
		DecisionDensity:   scores[DecisionDensity],
		GuidelineDensity:  scores[GuidelineDensity],
		PitfallDensity:    scores[PitfallDensity],
		RareCritical:      scores[RareCritical],
		SpecialtyBonus:    bonus,
		Total:             total,
		EvidenceTerms:     evidence,
	}
}

// PriorityFromScore 将总分映射到优先级
func PriorityFromScore(score float64) models.Priority {
	if score >= highPriorityThreshold {
		return models.PriorityHigh
	}
	if score >= mediumPriorityThreshold {
		return models.PriorityMedium
	}
	return models.PriorityLow
}

// ClassifyLevel 根据等级词命中数判断教学深度
func ClassifyLevel(text string) models.Level {
	lower := strings.ToLower(text)
	expert := countTermHits(lower, levelTerms[models.LevelExpert])
	advanced := countTermHits(lower, levelTerms[models.LevelAdvanced])
	intermediate := countTermHits(lower, levelTerms[models.LevelIntermediate])

	switch {
	case expert >= 1 && advanced+expert >= 2:
		return models.LevelExpert
	case advanced >= 1:
		return models.LevelAdvanced
	case intermediate >= 1:
		return models.LevelIntermediate
	default:
		return models.LevelBasic
	}
}

// ScoreExplanation 生成评分理由说明
func ScoreExplanation(b models.ScoreBreakdown, level models.Level) string {
	checks := []struct {
		value  float64
		phrase string
	}{
		{b.HighStakes, "high-stakes neurologic or ICU consequences"},
		{b.DecisionDensity, "dense management branching"},
		{b.GuidelineDensity, "board-style recommendations or targets"},
		{b.PitfallDensity, "pearls, pitfalls, or contraindications"},
		{b.RareCritical, "rare-but-critical rescue content"},
	}

	var drivers []string
	for _, c := range checks {
		if c.value >= driverThreshold {
			drivers = append(drivers, c.phrase)
		}
	}
	if len(drivers) == 0 {
		drivers = append(drivers, "foundational clinical teaching points")
	}

	evidence := "text structure and keyword density"
	if len(b.EvidenceTerms) > 0 {
		terms := b.EvidenceTerms
		if len(terms) > 5 {
			terms = terms[:5]
		}
		evidence = strings.Join(terms, ", ")
	}

	return fmt.Sprintf("Level %s. Priority driven by %s; evidence terms: %s.",
		level, strings.Join(drivers, ", "), evidence)
}

// countTermHits 统计所有词条在文本中的不重叠出现次数
func countTermHits(text string, terms []string) int {
	total := 0
	for _, term := range terms {
		if term == "" {
			continue
		}
		total += strings.Count(text, term)
	}
	return total
}
