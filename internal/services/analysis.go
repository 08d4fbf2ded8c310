package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyerfyer/contract-analyzer/internal/analyzer"
	"github.com/fyerfyer/contract-analyzer/internal/cache"
	"github.com/fyerfyer/contract-analyzer/internal/llm"
	"github.com/fyerfyer/contract-analyzer/internal/models"
	"github.com/fyerfyer/contract-analyzer/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// SummarizerExtractive 抽取式摘要的来源标识
const SummarizerExtractive = "extractive"

// AnalysisService 合同分析服务
// 负责协调条款分段、分类、风险评分、摘要和合规清单的完整分析流程
type AnalysisService struct {
	repo             repository.ContractRepository // 合同仓储
	statusManager    *ContractStatusManager        // 合同状态管理器
	segmenter        *analyzer.ClauseSegmenter     // 条款分段器
	classifier       *analyzer.ClauseClassifier    // 条款分类器
	scorer           *analyzer.RiskScorer          // 风险评分器
	llm              llm.Client                    // 大模型客户端（可选，摘要增强）
	cache            cache.Cache                   // 缓存
	cacheTTL         time.Duration                 // 缓存有效期
	summarySentences int                           // 摘要句数
	logger           *logrus.Logger                // 日志记录器
}

// AnalysisOption 分析服务配置选项
type AnalysisOption func(*AnalysisService)

// NewAnalysisService 创建分析服务实例
func NewAnalysisService(repo repository.ContractRepository, c cache.Cache, opts ...AnalysisOption) *AnalysisService {
	service := &AnalysisService{
		repo:             repo,
		segmenter:        analyzer.NewClauseSegmenter(),
		classifier:       analyzer.NewClauseClassifier(nil),
		scorer:           analyzer.NewRiskScorer(nil),
		cache:            c,
		cacheTTL:         24 * time.Hour, // 默认缓存24小时
		summarySentences: analyzer.DefaultSummarySentences,
		logger:           logrus.New(),
	}

	// 应用配置选项
	for _, opt := range opts {
		opt(service)
	}

	if service.statusManager == nil {
		service.statusManager = NewContractStatusManager(repo, service.logger)
	}

	return service
}

// WithLLMClient 设置大模型客户端
// 配置后优先用大模型生成摘要，失败时回退为抽取式摘要
func WithLLMClient(client llm.Client) AnalysisOption {
	return func(s *AnalysisService) {
		s.llm = client
	}
}

// WithAnalysisStatusManager 设置合同状态管理器
func WithAnalysisStatusManager(manager *ContractStatusManager) AnalysisOption {
	return func(s *AnalysisService) {
		s.statusManager = manager
	}
}

// WithCategories 设置条款类别列表
func WithCategories(categories []string) AnalysisOption {
	return func(s *AnalysisService) {
		s.classifier = analyzer.NewClauseClassifier(categories)
	}
}

// WithRiskTiers 设置风险关键词层级配置
func WithRiskTiers(tiers []analyzer.RiskTier) AnalysisOption {
	return func(s *AnalysisService) {
		s.scorer = analyzer.NewRiskScorer(tiers)
	}
}

// WithSummarySentences 设置摘要句数
func WithSummarySentences(n int) AnalysisOption {
	return func(s *AnalysisService) {
		if n > 0 {
			s.summarySentences = n
		}
	}
}

// WithAnalysisCacheTTL 设置缓存有效期
func WithAnalysisCacheTTL(ttl time.Duration) AnalysisOption {
	return func(s *AnalysisService) {
		s.cacheTTL = ttl
	}
}

// WithAnalysisLogger 设置日志记录器
func WithAnalysisLogger(logger *logrus.Logger) AnalysisOption {
	return func(s *AnalysisService) {
		s.logger = logger
	}
}

// Analyze 对合同执行完整分析流程并持久化结果
// 同一合同重复分析时覆盖旧的条款块和分析结果
func (s *AnalysisService) Analyze(ctx context.Context, contractID string) (*analyzer.Report, error) {
	report, _, err := s.AnalyzeWithSentences(ctx, contractID, s.summarySentences)
	return report, err
}

// AnalyzeWithSentences 指定摘要句数执行完整分析流程
// 返回报告和切分出的条款块数量
func (s *AnalysisService) AnalyzeWithSentences(ctx context.Context, contractID string, summarySentences int) (*analyzer.Report, int, error) {
	if summarySentences <= 0 {
		summarySentences = s.summarySentences
	}
	contract, err := s.repo.GetByID(contractID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get contract: %w", err)
	}

	if contract.RawText == "" {
		return nil, 0, fmt.Errorf("contract %s has no parsed text to analyze", contractID)
	}

	// 标记为分析中（异步流程可能已提前进入处理状态）
	if contract.Status != models.ContractStatusProcessing {
		if err := s.statusManager.MarkAsProcessing(ctx, contractID); err != nil {
			return nil, 0, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"contract_id": contractID,
		"chars":       len(contract.RawText),
	}).Info("Starting contract analysis")

	report, clauses, summarizer := s.runPipeline(ctx, contract.RawText, summarySentences)

	// 持久化分析结果
	if err := s.persistResults(ctx, contractID, report, clauses, summarizer); err != nil {
		s.failAnalysis(ctx, contractID, err.Error())
		return nil, 0, err
	}

	// 标记为分析完成
	if err := s.statusManager.MarkAsAnalyzed(ctx, contractID, len(clauses)); err != nil {
		s.logger.WithError(err).Error("Failed to mark contract as analyzed")
		// 分析结果已持久化，状态更新失败不返回错误
	}

	s.logger.WithFields(logrus.Fields{
		"contract_id":        contractID,
		"clause_count":       len(clauses),
		"overall_risk_score": report.OverallRiskScore,
		"summarizer":         summarizer,
	}).Info("Contract analysis completed")

	return report, len(clauses), nil
}

// runPipeline 执行分析流水线：分段、分类、风险评分、摘要、合规清单
func (s *AnalysisService) runPipeline(ctx context.Context, text string, summarySentences int) (*analyzer.Report, []analyzer.Clause, string) {
	clauses := s.segmenter.Segment(text)
	found := s.classifier.FindClauses(clauses)
	risks, overallScore := s.scorer.Analyze(found)
	summary, summarizer := s.summarize(ctx, text, summarySentences)
	checklist := analyzer.BuildChecklist(s.classifier.Categories(), found)

	report := analyzer.NewReport(summary, found, risks, overallScore, checklist)
	return report, clauses, summarizer
}

// summarize 生成合同摘要
// 配置了大模型客户端时优先调用，失败则静默回退为抽取式摘要
func (s *AnalysisService) summarize(ctx context.Context, text string, summarySentences int) (string, string) {
	if s.llm != nil {
		resp, err := s.llm.Summarize(ctx, text, llm.WithSummarySentences(summarySentences))
		if err == nil && resp.Text != "" {
			return resp.Text, s.llm.Name()
		}
		if err != nil {
			s.logger.WithError(err).Warn("LLM summarization failed, falling back to extractive summary")
		}
	}

	return analyzer.Summarize(text, summarySentences), SummarizerExtractive
}

// persistResults 保存条款块和分析结果，并写入缓存
func (s *AnalysisService) persistResults(ctx context.Context, contractID string, report *analyzer.Report, clauses []analyzer.Clause, summarizer string) error {
	// 覆盖旧的条款块
	if err := s.repo.DeleteClauses(contractID); err != nil {
		return fmt.Errorf("failed to delete old clauses: %w", err)
	}

	if len(clauses) > 0 {
		records := make([]*models.ContractClause, len(clauses))
		for i, clause := range clauses {
			records[i] = &models.ContractClause{
				ContractID: contractID,
				Position:   clause.Index,
				Heading:    clause.Heading,
				Text:       clause.Text,
			}
		}
		if err := s.repo.SaveClauses(records); err != nil {
			return fmt.Errorf("failed to save clauses: %w", err)
		}
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	analysis := &models.Analysis{
		ContractID:       contractID,
		Summary:          report.Summary,
		Report:           datatypes.JSON(reportJSON),
		OverallRiskScore: report.OverallRiskScore,
		Summarizer:       summarizer,
	}
	if err := s.repo.SaveAnalysis(analysis); err != nil {
		return fmt.Errorf("failed to save analysis: %w", err)
	}

	// 缓存报告，失败不影响主流程
	if err := s.cache.Set(cache.ReportKey(contractID), string(reportJSON), s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache analysis report")
	}

	return nil
}

// GetReport 获取合同的分析报告
// 优先读缓存，未命中时回源数据库并回填
func (s *AnalysisService) GetReport(ctx context.Context, contractID string) (*analyzer.Report, error) {
	key := cache.ReportKey(contractID)
	cached, found, err := s.cache.Get(key)
	if err == nil && found {
		var report analyzer.Report
		if err := json.Unmarshal([]byte(cached), &report); err == nil {
			return &report, nil
		}
		// 缓存损坏时回源数据库
		s.logger.WithField("contract_id", contractID).Warn("Cached report is corrupted, falling back to database")
	}

	analysis, err := s.repo.GetAnalysis(contractID)
	if err != nil {
		return nil, err
	}

	var report analyzer.Report
	if err := json.Unmarshal(analysis.Report, &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored report: %w", err)
	}

	// 回填缓存
	if err := s.cache.Set(key, string(analysis.Report), s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache analysis report")
	}

	return &report, nil
}

// GetAnalysis 获取合同的分析记录
func (s *AnalysisService) GetAnalysis(ctx context.Context, contractID string) (*models.Analysis, error) {
	return s.repo.GetAnalysis(contractID)
}

// ExportReport 导出分析报告为格式化的JSON
func (s *AnalysisService) ExportReport(ctx context.Context, contractID string) ([]byte, error) {
	report, err := s.GetReport(ctx, contractID)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export report: %w", err)
	}

	return data, nil
}

// GetClauses 获取合同切分出的条款块
func (s *AnalysisService) GetClauses(ctx context.Context, contractID string) ([]analyzer.Clause, error) {
	records, err := s.repo.GetClauses(contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to get clauses: %w", err)
	}

	clauses := make([]analyzer.Clause, len(records))
	for i, record := range records {
		clauses[i] = analyzer.Clause{
			Index:   record.Position,
			Heading: record.Heading,
			Text:    record.Text,
		}
	}
	return clauses, nil
}

// SearchClauses 在合同条款块中做大小写不敏感的子串检索
func (s *AnalysisService) SearchClauses(ctx context.Context, contractID string, query string) ([]analyzer.Clause, error) {
	clauses, err := s.GetClauses(ctx, contractID)
	if err != nil {
		return nil, err
	}

	return analyzer.SearchClauses(clauses, query), nil
}

// Categories 返回分析使用的条款类别列表
func (s *AnalysisService) Categories() []string {
	return s.classifier.Categories()
}

// failAnalysis 将合同标记为分析失败
func (s *AnalysisService) failAnalysis(ctx context.Context, contractID string, errorMsg string) {
	if err := s.statusManager.MarkAsFailed(ctx, contractID, errorMsg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"contract_id": contractID,
			"error":       err,
		}).Error("Failed to mark contract analysis as failed")
	}
}

// ClearCache 清除分析缓存
func (s *AnalysisService) ClearCache() error {
	return s.cache.Clear()
}
