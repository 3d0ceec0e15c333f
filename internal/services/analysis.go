package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/neurocme/internal/cache"
	"github.com/fyerfyer/neurocme/internal/document"
	"github.com/fyerfyer/neurocme/internal/llm"
	"github.com/fyerfyer/neurocme/internal/models"
	"github.com/fyerfyer/neurocme/internal/outputs"
	"github.com/fyerfyer/neurocme/internal/rank"
	"github.com/fyerfyer/neurocme/internal/scoring"
	"github.com/fyerfyer/neurocme/pkg/storage"
)

// TextFormat 粘贴文本的格式
type TextFormat string

const (
	TextPlain    TextFormat = "text"
	TextMarkdown TextFormat = "markdown"
)

// URLIngester 抓取网页并生成规范化文档
type URLIngester interface {
	IngestURL(ctx context.Context, url string) (*models.NormalizedDocument, error)
}

// AnalysisService 分析服务
// 负责串联摄取、分块、排序与增强，并把结果写入缓存
type AnalysisService struct {
	engine    *scoring.Engine        // 评分引擎
	provider  llm.EnrichmentProvider // 主题增强提供者
	chunker   *document.Chunker      // 段落分块器
	fetcher   URLIngester            // 网页摄取
	cache     cache.Cache            // 结果缓存
	storage   storage.Storage        // 导出归档，可为空
	keyPrefix string                 // 缓存键前缀
	resultTTL time.Duration          // 分析结果与预览的过期时间
	timeout   time.Duration          // 单次分析超时
	defaults  models.AnalysisOptions // 请求未指定时使用的分析配置
	logger    *logrus.Logger         // 日志记录器
}

// AnalysisOption 分析服务配置选项
type AnalysisOption func(*AnalysisService)

// NewAnalysisService 创建分析服务
func NewAnalysisService(opts ...AnalysisOption) *AnalysisService {
	s := &AnalysisService{
		engine:    scoring.NewEngine(scoring.DefaultWeights()),
		provider:  llm.NullProvider{},
		chunker:   document.NewChunker(document.DefaultChunkerConfig()),
		fetcher:   document.NewFetcher(document.DefaultFetchConfig()),
		keyPrefix: cache.DefaultConfig().KeyPrefix,
		resultTTL: cache.DefaultConfig().DefaultTTL,
		timeout:   time.Minute * 2,
		defaults:  models.DefaultAnalysisOptions(),
		logger:    logrus.New(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cache == nil {
		s.cache, _ = cache.NewMemoryCache(cache.Config{DefaultTTL: s.resultTTL})
	}
	return s
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) AnalysisOption {
	return func(s *AnalysisService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCache 设置结果缓存
func WithCache(c cache.Cache) AnalysisOption {
	return func(s *AnalysisService) {
		s.cache = c
	}
}

// WithKeyPrefix 设置缓存键前缀
func WithKeyPrefix(prefix string) AnalysisOption {
	return func(s *AnalysisService) {
		if prefix != "" {
			s.keyPrefix = prefix
		}
	}
}

// WithProvider 设置主题增强提供者
func WithProvider(p llm.EnrichmentProvider) AnalysisOption {
	return func(s *AnalysisService) {
		if p != nil {
			s.provider = p
		}
	}
}

// WithEngine 设置评分引擎
func WithEngine(engine *scoring.Engine) AnalysisOption {
	return func(s *AnalysisService) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithChunker 设置分块器
func WithChunker(c *document.Chunker) AnalysisOption {
	return func(s *AnalysisService) {
		if c != nil {
			s.chunker = c
		}
	}
}

// WithFetcher 设置网页摄取实现
func WithFetcher(f URLIngester) AnalysisOption {
	return func(s *AnalysisService) {
		if f != nil {
			s.fetcher = f
		}
	}
}

// WithStorage 设置导出归档存储
func WithStorage(st storage.Storage) AnalysisOption {
	return func(s *AnalysisService) {
		s.storage = st
	}
}

// WithResultTTL 设置结果过期时间
func WithResultTTL(ttl time.Duration) AnalysisOption {
	return func(s *AnalysisService) {
		if ttl > 0 {
			s.resultTTL = ttl
		}
	}
}

// WithTimeout 设置单次分析超时时间
func WithTimeout(timeout time.Duration) AnalysisOption {
	return func(s *AnalysisService) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithDefaultOptions 设置默认分析配置
func WithDefaultOptions(opts models.AnalysisOptions) AnalysisOption {
	return func(s *AnalysisService) {
		s.defaults = opts.WithDefaults()
	}
}

// DefaultOptions 返回服务的默认分析配置
func (s *AnalysisService) DefaultOptions() models.AnalysisOptions {
	return s.defaults
}

// ResolveOptions 用服务默认值补齐请求配置并校验
func (s *AnalysisService) ResolveOptions(opts models.AnalysisOptions) (models.AnalysisOptions, error) {
	if opts.SpecialtyFocus == "" {
		opts.SpecialtyFocus = s.defaults.SpecialtyFocus
	}
	if opts.DesiredDepth == "" {
		opts.DesiredDepth = s.defaults.DesiredDepth
	}
	if opts.OutputType == "" {
		opts.OutputType = s.defaults.OutputType
	}
	if opts.MaxTopics == 0 {
		opts.MaxTopics = s.defaults.MaxTopics
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// AnalyzeDocument 对已规范化的文档执行分块、排序与可选增强，并缓存结果
func (s *AnalysisService) AnalyzeDocument(ctx context.Context, doc *models.NormalizedDocument,
	opts models.AnalysisOptions) (*models.Analysis, error) {
	if doc == nil || len(doc.Paragraphs) == 0 {
		return nil, models.ErrEmptyDocument
	}

	opts, err := s.ResolveOptions(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	chunks := s.chunker.Chunk(doc)
	s.logger.WithFields(logrus.Fields{
		"document_id": doc.DocumentID,
		"source_type": doc.SourceType,
		"paragraphs":  len(doc.Paragraphs),
		"chunks":      len(chunks),
	}).Info("Document chunked")

	ranker := rank.NewRanker(s.engine, rank.WithProvider(s.provider))
	topics, err := ranker.RankDocument(ctx, doc, chunks, opts)
	if err != nil {
		s.logger.WithError(err).WithField("document_id", doc.DocumentID).Error("Failed to rank document")
		return nil, err
	}

	analysis := &models.Analysis{
		AnalysisID: uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
		Options:    opts,
		Document:   *doc,
		ChunkCount: len(chunks),
		Topics:     topics,
		Enriched:   opts.UseLLM && s.provider.IsAvailable(),
	}

	if err := cache.SetJSON(ctx, s.cache, cache.AnalysisKey(s.keyPrefix, analysis.AnalysisID), analysis, s.resultTTL); err != nil {
		return nil, fmt.Errorf("failed to cache analysis: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"analysis_id": analysis.AnalysisID,
		"document_id": doc.DocumentID,
		"topics":      len(topics),
		"enriched":    analysis.Enriched,
		"elapsed_ms":  time.Since(start).Milliseconds(),
	}).Info("Analysis completed")

	return analysis, nil
}

// AnalyzePDF 摄取PDF字节并分析
func (s *AnalysisService) AnalyzePDF(ctx context.Context, data []byte, filename string,
	opts models.AnalysisOptions) (*models.Analysis, error) {
	doc, err := document.IngestPDFBytes(data, filename)
	if err != nil {
		s.logger.WithError(err).WithField("filename", filename).Warn("PDF ingestion failed")
		return nil, err
	}
	return s.AnalyzeDocument(ctx, doc, opts)
}

// AnalyzeURL 抓取网页并分析
func (s *AnalysisService) AnalyzeURL(ctx context.Context, url string, opts models.AnalysisOptions) (*models.Analysis, error) {
	doc, err := s.fetcher.IngestURL(ctx, url)
	if err != nil {
		s.logger.WithError(err).WithField("url", url).Warn("URL ingestion failed")
		return nil, err
	}
	return s.AnalyzeDocument(ctx, doc, opts)
}

// AnalyzeText 分析粘贴的纯文本或Markdown
func (s *AnalysisService) AnalyzeText(ctx context.Context, title, text string, format TextFormat,
	opts models.AnalysisOptions) (*models.Analysis, error) {
	var (
		doc *models.NormalizedDocument
		err error
	)
	switch TextFormat(strings.ToLower(string(format))) {
	case "", TextPlain:
		doc, err = document.DocumentFromText(text, title)
	case TextMarkdown, "md":
		doc, err = document.DocumentFromMarkdown(text, title)
	default:
		return nil, fmt.Errorf("%w: text format %q", models.ErrUnsupportedSource, format)
	}
	if err != nil {
		return nil, err
	}
	return s.AnalyzeDocument(ctx, doc, opts)
}

// PreviewURL 抓取网页并缓存文档，返回预览供确认后再分析
func (s *AnalysisService) PreviewURL(ctx context.Context, url string) (*models.Preview, error) {
	doc, err := s.fetcher.IngestURL(ctx, url)
	if err != nil {
		return nil, err
	}

	preview := &models.Preview{
		PreviewID: uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Document:  *doc,
	}
	if err := cache.SetJSON(ctx, s.cache, cache.PreviewKey(s.keyPrefix, preview.PreviewID), preview, s.resultTTL); err != nil {
		return nil, fmt.Errorf("failed to cache preview: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"preview_id": preview.PreviewID,
		"url":        url,
		"paragraphs": len(doc.Paragraphs),
	}).Info("URL preview fetched")
	return preview, nil
}

// GetPreview 读取缓存的URL预览
func (s *AnalysisService) GetPreview(ctx context.Context, previewID string) (*models.Preview, error) {
	var preview models.Preview
	found, err := cache.GetJSON(ctx, s.cache, cache.PreviewKey(s.keyPrefix, previewID), &preview)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrPreviewNotFound
	}
	return &preview, nil
}

// AnalyzePreview 分析之前抓取的URL预览，不再重新请求网页
func (s *AnalysisService) AnalyzePreview(ctx context.Context, previewID string, opts models.AnalysisOptions) (*models.Analysis, error) {
	preview, err := s.GetPreview(ctx, previewID)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeDocument(ctx, &preview.Document, opts)
}

// GetAnalysis 读取缓存的分析结果
func (s *AnalysisService) GetAnalysis(ctx context.Context, analysisID string) (*models.Analysis, error) {
	var analysis models.Analysis
	found, err := cache.GetJSON(ctx, s.cache, cache.AnalysisKey(s.keyPrefix, analysisID), &analysis)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, models.ErrAnalysisNotFound
	}
	return &analysis, nil
}

// ListTopics 按优先级、等级和关键字筛选分析结果中的主题
func (s *AnalysisService) ListTopics(ctx context.Context, analysisID string, priorities []models.Priority,
	levels []models.Level, query string) ([]models.Topic, error) {
	analysis, err := s.GetAnalysis(ctx, analysisID)
	if err != nil {
		return nil, err
	}
	return outputs.FilterTopics(analysis.Topics, priorities, levels, query), nil
}

// Export 将分析结果导出为指定格式
func (s *AnalysisService) Export(ctx context.Context, analysisID string, format outputs.Format) (string, error) {
	analysis, err := s.GetAnalysis(ctx, analysisID)
	if err != nil {
		return "", err
	}
	return outputs.Export(format, &analysis.Document, analysis.Topics)
}

// ArchiveExport 导出并保存到归档存储
func (s *AnalysisService) ArchiveExport(ctx context.Context, analysisID string, format outputs.Format) (storage.FileInfo, error) {
	if s.storage == nil {
		return storage.FileInfo{}, models.ErrArchiveDisabled
	}

	analysis, err := s.GetAnalysis(ctx, analysisID)
	if err != nil {
		return storage.FileInfo{}, err
	}
	content, err := outputs.Export(format, &analysis.Document, analysis.Topics)
	if err != nil {
		return storage.FileInfo{}, err
	}

	filename := fmt.Sprintf("%s-%s%s", analysis.Document.DocumentID, format, format.Extension())
	info, err := s.storage.Save(ctx, strings.NewReader(content), filename)
	if err != nil {
		return storage.FileInfo{}, fmt.Errorf("failed to archive export: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"analysis_id": analysisID,
		"format":      format,
		"file_id":     info.ID,
		"size":        info.Size,
	}).Info("Export archived")
	return info, nil
}
