// Package app 根据配置组装分析服务，供HTTP服务和命令行共用
package app

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/neurocme/config"
	"github.com/fyerfyer/neurocme/internal/cache"
	"github.com/fyerfyer/neurocme/internal/document"
	"github.com/fyerfyer/neurocme/internal/scoring"
	"github.com/fyerfyer/neurocme/internal/services"
	"github.com/fyerfyer/neurocme/pkg/storage"
)

// Components 组装好的服务及其清理函数
type Components struct {
	Service *services.AnalysisService
	Cache   cache.Cache
	Storage storage.Storage

	closers []io.Closer
}

// Close 释放缓存等外部连接
func (c *Components) Close() {
	for _, closer := range c.closers {
		_ = closer.Close()
	}
}

// Build 按配置创建缓存、归档存储、评分引擎和增强提供者，并组装分析服务
func Build(cfg *config.Config, logger *logrus.Logger) (*Components, error) {
	comps := &Components{}

	// 结果缓存
	resultCache, err := cache.NewCache(cfg.CacheConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	if closer, ok := resultCache.(io.Closer); ok {
		comps.closers = append(comps.closers, closer)
	}
	comps.Cache = resultCache
	logger.WithField("type", cfg.Cache.Type).Info("Result cache initialized")

	// 评分权重
	weights, err := scoring.LoadWeights(cfg.Scoring.WeightsFile)
	if err != nil {
		comps.Close()
		return nil, err
	}

	// 主题增强
	provider, err := cfg.EnrichmentProvider()
	if err != nil {
		comps.Close()
		return nil, fmt.Errorf("failed to initialize LLM provider: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"provider":  cfg.LLM.Provider,
		"available": provider.IsAvailable(),
	}).Info("Enrichment provider initialized")

	opts := []services.AnalysisOption{
		services.WithLogger(logger),
		services.WithCache(resultCache),
		services.WithKeyPrefix(cfg.Cache.KeyPrefix),
		services.WithResultTTL(cfg.ResultTTL()),
		services.WithTimeout(cfg.Analysis.Timeout),
		services.WithDefaultOptions(cfg.AnalysisOptions()),
		services.WithEngine(scoring.NewEngine(weights)),
		services.WithChunker(document.NewChunker(cfg.ChunkerConfig())),
		services.WithFetcher(document.NewFetcher(cfg.FetchConfig())),
		services.WithProvider(provider),
	}

	// 导出归档（可选）
	if cfg.Storage.Enable {
		st, err := storage.New(cfg.StorageConfig())
		if err != nil {
			comps.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		comps.Storage = st
		opts = append(opts, services.WithStorage(st))
		logger.WithField("type", cfg.Storage.Type).Info("Export archive initialized")
	}

	comps.Service = services.NewAnalysisService(opts...)
	return comps, nil
}
