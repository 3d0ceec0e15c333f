package models

import "errors"

var (
	// ErrEmptyDocument 文档没有任何段落
	ErrEmptyDocument = errors.New("document has no paragraphs")

	// ErrInvalidOptions 分析配置无效
	ErrInvalidOptions = errors.New("invalid analysis options")

	// ErrAnalysisNotFound 分析结果不存在或已过期
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrUnsupportedSource 不支持的来源类型
	ErrUnsupportedSource = errors.New("unsupported document source")

	// ErrUnsupportedFormat 不支持的导出格式
	ErrUnsupportedFormat = errors.New("unsupported export format")

	// ErrPreviewNotFound URL预览不存在或已过期
	ErrPreviewNotFound = errors.New("preview not found")

	// ErrArchiveDisabled 未配置导出归档存储
	ErrArchiveDisabled = errors.New("export archive is not configured")
)
