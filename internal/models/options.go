package models

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Specialty 专科方向
type Specialty string

const (
	SpecialtyNeuroICU   Specialty = "Neuro ICU"
	SpecialtyGeneralICU Specialty = "General ICU"
	SpecialtyECMO       Specialty = "ECMO"
)

// 期望深度，只有boards与其它取值在摘要条数上有区别
const (
	DepthBoards     = "boards"
	DepthFellowship = "fellowship"
	DepthAttending  = "attending"
)

// 输出类型，由展示层使用
const (
	OutputOutline    = "outline"
	OutputPearls     = "pearls"
	OutputFlashcards = "flashcards"
)

// DefaultMaxTopics 默认最多输出的主题数量
const DefaultMaxTopics = 12

var validate = validator.New()

// AnalysisOptions 单次分析的运行配置
type AnalysisOptions struct {
	SpecialtyFocus Specialty `json:"specialty_focus" mapstructure:"specialty_focus" validate:"oneof='Neuro ICU' 'General ICU' ECMO"`
	DesiredDepth   string    `json:"desired_depth" mapstructure:"desired_depth" validate:"oneof=boards fellowship attending"`
	OutputType     string    `json:"output_type" mapstructure:"output_type" validate:"oneof=outline pearls flashcards"`
	UseLLM         bool      `json:"use_llm" mapstructure:"use_llm"`
	MaxTopics      int       `json:"max_topics" mapstructure:"max_topics" validate:"gt=0"`
}

// DefaultAnalysisOptions 返回默认分析配置
func DefaultAnalysisOptions() AnalysisOptions {
	return AnalysisOptions{
		SpecialtyFocus: SpecialtyNeuroICU,
		DesiredDepth:   DepthBoards,
		OutputType:     OutputOutline,
		UseLLM:         false,
		MaxTopics:      DefaultMaxTopics,
	}
}

// Validate 校验枚举取值和主题数量
func (o AnalysisOptions) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// WithDefaults 用默认值补齐未设置的字段
func (o AnalysisOptions) WithDefaults() AnalysisOptions {
	def := DefaultAnalysisOptions()
	if o.SpecialtyFocus == "" {
		o.SpecialtyFocus = def.SpecialtyFocus
	}
	if o.DesiredDepth == "" {
		o.DesiredDepth = def.DesiredDepth
	}
	if o.OutputType == "" {
		o.OutputType = def.OutputType
	}
	if o.MaxTopics == 0 {
		o.MaxTopics = def.MaxTopics
	}
	return o
}
