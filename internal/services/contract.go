package services

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fyerfyer/contract-analyzer/internal/analyzer"
	"github.com/fyerfyer/contract-analyzer/internal/cache"
	"github.com/fyerfyer/contract-analyzer/internal/document"
	"github.com/fyerfyer/contract-analyzer/internal/models"
	"github.com/fyerfyer/contract-analyzer/internal/repository"
	"github.com/fyerfyer/contract-analyzer/pkg/storage"
	"github.com/fyerfyer/contract-analyzer/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// ContractService 合同服务
// 负责合同文件的上传、解析、正文管理和删除
type ContractService struct {
	storage       storage.Storage               // 文件存储
	repo          repository.ContractRepository // 合同仓储
	statusManager *ContractStatusManager        // 合同状态管理器
	cache         cache.Cache                   // 缓存
	taskQueue     taskqueue.Queue               // 任务队列（可选）
	callbacks     *taskqueue.CallbackProcessor  // 任务回调处理器（异步模式）
	analysis      *AnalysisService              // 分析服务（异步回调时使用）
	asyncEnabled  bool                          // 是否启用异步处理
	cacheTTL      time.Duration                 // 缓存有效期
	timeout       time.Duration                 // 同步处理超时时间
	logger        *logrus.Logger                // 日志记录器
}

// ContractOption 合同服务配置选项
type ContractOption func(*ContractService)

// NewContractService 创建合同服务实例
func NewContractService(store storage.Storage, c cache.Cache, opts ...ContractOption) *ContractService {
	service := &ContractService{
		storage:  store,
		cache:    c,
		cacheTTL: 24 * time.Hour,  // 默认缓存24小时
		timeout:  2 * time.Minute, // 默认同步处理超时
		logger:   logrus.New(),
	}

	// 应用配置选项
	for _, opt := range opts {
		opt(service)
	}

	return service
}

// WithContractRepository 设置合同仓储
func WithContractRepository(repo repository.ContractRepository) ContractOption {
	return func(s *ContractService) {
		s.repo = repo
	}
}

// WithStatusManager 设置合同状态管理器
func WithStatusManager(manager *ContractStatusManager) ContractOption {
	return func(s *ContractService) {
		s.statusManager = manager
	}
}

// WithTaskQueue 设置任务队列
func WithTaskQueue(queue taskqueue.Queue) ContractOption {
	return func(s *ContractService) {
		s.taskQueue = queue
	}
}

// WithAsyncProcessing 设置是否启用异步处理
func WithAsyncProcessing(enabled bool) ContractOption {
	return func(s *ContractService) {
		s.asyncEnabled = enabled
	}
}

// WithAnalysisService 设置分析服务
// 异步解析完成后由回调触发本地分析时使用
func WithAnalysisService(analysis *AnalysisService) ContractOption {
	return func(s *ContractService) {
		s.analysis = analysis
	}
}

// WithContractCacheTTL 设置缓存有效期
func WithContractCacheTTL(ttl time.Duration) ContractOption {
	return func(s *ContractService) {
		s.cacheTTL = ttl
	}
}

// WithProcessTimeout 设置同步处理超时时间
func WithProcessTimeout(timeout time.Duration) ContractOption {
	return func(s *ContractService) {
		s.timeout = timeout
	}
}

// WithContractLogger 设置日志记录器
func WithContractLogger(logger *logrus.Logger) ContractOption {
	return func(s *ContractService) {
		s.logger = logger
	}
}

// Init 初始化服务依赖
// 未注入仓储和状态管理器时创建默认实现
func (s *ContractService) Init() error {
	if s.repo == nil {
		s.repo = repository.NewContractRepository()
	}

	if s.statusManager == nil {
		s.statusManager = NewContractStatusManager(s.repo, s.logger)
	}

	return nil
}

// UploadContract 上传合同文件并解析出规整后的正文
// 同步模式下解析在本次调用内完成；异步模式下创建解析任务后立即返回，
// 正文由任务回调写入
func (s *ContractService) UploadContract(ctx context.Context, reader io.Reader, filename string, tags string) (*models.Contract, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return nil, err
	}

	// 校验文件类型
	ext := filepath.Ext(filename)
	if !document.IsSupportedExt(ext) {
		return nil, fmt.Errorf("unsupported contract file type: %s", ext)
	}

	// 保存文件到存储
	fileInfo, err := s.storage.Save(reader, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to save contract file: %w", err)
	}

	contractID := fileInfo.ID

	s.logger.WithFields(logrus.Fields{
		"contract_id": contractID,
		"filename":    filename,
		"size":        fileInfo.Size,
	}).Info("Contract file uploaded")

	// 创建合同记录
	if err := s.statusManager.MarkAsUploaded(ctx, contractID, filename, fileInfo.Path, fileInfo.Size); err != nil {
		return nil, fmt.Errorf("failed to create contract record: %w", err)
	}

	// 设置标签
	if tags != "" {
		if err := s.UpdateContractTags(ctx, contractID, tags); err != nil {
			s.logger.WithError(err).Warn("Failed to set contract tags")
		}
	}

	// 解析合同正文
	if err := s.ProcessContract(ctx, contractID); err != nil {
		return nil, err
	}

	return s.repo.GetByID(contractID)
}

// ProcessContract 解析合同文件并保存规整后的正文
// 根据配置选择同步或异步处理
func (s *ContractService) ProcessContract(ctx context.Context, contractID string) error {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return err
	}

	if s.asyncEnabled && s.taskQueue != nil {
		return s.ProcessContractAsync(ctx, contractID)
	}

	return s.processContractSync(ctx, contractID)
}

// processContractSync 同步解析合同
func (s *ContractService) processContractSync(ctx context.Context, contractID string) error {
	// 设置处理超时
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.logger.WithField("contract_id", contractID).Info("Processing contract synchronously")

	// 解析文件内容
	text, degraded, err := s.parseContract(contractID)
	if err != nil {
		s.failContract(ctx, contractID, err.Error())
		return fmt.Errorf("failed to parse contract: %w", err)
	}

	if degraded {
		s.logger.WithField("contract_id", contractID).Warn("Contract parsed with degraded raw decoding")
	}

	// 保存规整后的正文
	if err := s.saveContractText(ctx, contractID, text); err != nil {
		s.failContract(ctx, contractID, err.Error())
		return err
	}

	return nil
}

// parseContract 从存储读取合同文件并提取文本
// 解析器不可用或解析失败时降级为按UTF-8尽力解码原始字节
func (s *ContractService) parseContract(contractID string) (string, bool, error) {
	contract, err := s.repo.GetByID(contractID)
	if err != nil {
		return "", false, fmt.Errorf("failed to get contract: %w", err)
	}

	reader, err := s.storage.Get(contractID)
	if err != nil {
		return "", false, fmt.Errorf("failed to get contract file from storage: %w", err)
	}
	defer reader.Close()

	parser, err := document.ParserFactory(contract.FileName)
	if err == nil {
		content, parseErr := parser.ParseReader(reader, contract.FileName)
		if parseErr == nil {
			return content, false, nil
		}
		s.logger.WithError(parseErr).WithField("contract_id", contractID).Warn("Parser failed, falling back to raw decoding")
		// Reader已被消费，重新读取
		reader, err = s.storage.Get(contractID)
		if err != nil {
			return "", false, fmt.Errorf("failed to reopen contract file: %w", err)
		}
		defer reader.Close()
	}

	// 降级处理：尽力解码原始字节
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", false, fmt.Errorf("failed to read contract file: %w", err)
	}
	return document.DecodeRaw(data), true, nil
}

// saveContractText 规范化正文并写入合同记录和缓存
func (s *ContractService) saveContractText(ctx context.Context, contractID string, text string) error {
	normalized := analyzer.Normalize(text)
	if normalized == "" {
		return fmt.Errorf("contract %s has no readable text content", contractID)
	}

	contract, err := s.repo.GetByID(contractID)
	if err != nil {
		return fmt.Errorf("failed to get contract: %w", err)
	}

	contract.RawText = normalized
	if err := s.repo.Update(contract); err != nil {
		return fmt.Errorf("failed to save contract text: %w", err)
	}

	// 缓存正文，失败不影响主流程
	if err := s.cache.Set(cache.TextKey(contractID), normalized, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache contract text")
	}

	s.logger.WithFields(logrus.Fields{
		"contract_id": contractID,
		"chars":       len(normalized),
	}).Info("Contract text saved")

	return nil
}

// GetContract 获取合同信息
func (s *ContractService) GetContract(ctx context.Context, contractID string) (*models.Contract, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return nil, err
	}

	return s.repo.GetByID(contractID)
}

// GetContractText 获取合同规整后的正文
// 优先读缓存，未命中时回源数据库并回填
func (s *ContractService) GetContractText(ctx context.Context, contractID string) (string, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return "", err
	}

	key := cache.TextKey(contractID)
	text, found, err := s.cache.Get(key)
	if err == nil && found {
		return text, nil
	}

	contract, err := s.repo.GetByID(contractID)
	if err != nil {
		return "", fmt.Errorf("failed to get contract: %w", err)
	}

	if contract.RawText == "" {
		return "", fmt.Errorf("contract %s has not been parsed yet", contractID)
	}

	// 回填缓存
	if err := s.cache.Set(key, contract.RawText, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Failed to cache contract text")
	}

	return contract.RawText, nil
}

// GetContractStatus 获取合同处理状态
func (s *ContractService) GetContractStatus(ctx context.Context, contractID string) (models.ContractStatus, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return "", err
	}

	return s.statusManager.GetStatus(ctx, contractID)
}

// ListContracts 获取合同列表
func (s *ContractService) ListContracts(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Contract, int64, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return nil, 0, err
	}

	return s.statusManager.ListContracts(ctx, offset, limit, filters)
}

// UpdateContractTags 更新合同标签
func (s *ContractService) UpdateContractTags(ctx context.Context, contractID string, tags string) error {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return err
	}

	contract, err := s.repo.GetByID(contractID)
	if err != nil {
		return fmt.Errorf("failed to get contract: %w", err)
	}

	contract.Tags = tags
	return s.repo.Update(contract)
}

// DeleteContract 删除合同及其相关数据
func (s *ContractService) DeleteContract(ctx context.Context, contractID string) error {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return err
	}

	s.logger.WithField("contract_id", contractID).Info("Deleting contract")

	// 1. 从存储中删除文件
	if err := s.storage.Delete(contractID); err != nil {
		// 文件可能已被删除，记录错误但不中断流程
		s.logger.WithError(err).Warn("Failed to delete contract file from storage")
	}

	// 2. 清理该合同的缓存条目
	if err := s.cache.DeleteContract(contractID); err != nil {
		s.logger.WithError(err).Warn("Failed to delete cached contract entries")
	}

	// 3. 删除合同记录及条款块、分析结果
	if err := s.statusManager.DeleteContract(ctx, contractID); err != nil {
		s.logger.WithError(err).Error("Failed to delete contract record")
		return fmt.Errorf("failed to delete contract record: %w", err)
	}

	// 4. 如果任务队列已配置，删除相关任务
	if s.taskQueue != nil {
		tasks, err := s.taskQueue.GetTasksByContract(ctx, contractID)
		if err == nil && len(tasks) > 0 {
			for _, task := range tasks {
				if err := s.taskQueue.DeleteTask(ctx, task.ID); err != nil {
					s.logger.WithError(err).WithField("task_id", task.ID).Warn("Failed to delete contract task")
				}
			}
		}
	}

	s.logger.WithField("contract_id", contractID).Info("Contract deleted successfully")
	return nil
}

// GetContractInfo 获取合同信息概览
func (s *ContractService) GetContractInfo(ctx context.Context, contractID string) (map[string]interface{}, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return nil, err
	}

	contract, err := s.statusManager.GetContract(ctx, contractID)
	if err != nil {
		return nil, fmt.Errorf("failed to get contract: %w", err)
	}

	info := map[string]interface{}{
		"contract_id":  contract.ID,
		"filename":     contract.FileName,
		"file_type":    contract.FileType,
		"status":       contract.Status,
		"uploaded_at":  contract.UploadedAt.Format(time.RFC3339),
		"updated_at":   contract.UpdatedAt.Format(time.RFC3339),
		"size":         contract.FileSize,
		"clause_count": contract.ClauseCount,
	}

	if contract.Error != "" {
		info["error"] = contract.Error
	}

	if contract.AnalyzedAt != nil {
		info["analyzed_at"] = contract.AnalyzedAt.Format(time.RFC3339)
	}

	if contract.Tags != "" {
		info["tags"] = contract.Tags
	}

	// 如果启用了异步处理，附带最近的任务信息
	if s.asyncEnabled && s.taskQueue != nil {
		tasks, err := s.taskQueue.GetTasksByContract(ctx, contractID)
		if err == nil && len(tasks) > 0 {
			latestTask := tasks[0]
			for _, task := range tasks {
				if task.UpdatedAt.After(latestTask.UpdatedAt) {
					latestTask = task
				}
			}

			info["task_id"] = latestTask.ID
			info["task_type"] = latestTask.Type
			info["task_status"] = latestTask.Status
			if latestTask.Error != "" {
				info["task_error"] = latestTask.Error
			}
		}
	}

	return info, nil
}

// failContract 将合同标记为失败状态
func (s *ContractService) failContract(ctx context.Context, contractID string, errorMsg string) {
	if s.statusManager == nil {
		s.logger.Error("Cannot mark contract as failed: status manager not initialized")
		return
	}

	if err := s.statusManager.MarkAsFailed(ctx, contractID, errorMsg); err != nil {
		s.logger.WithFields(logrus.Fields{
			"contract_id": contractID,
			"error":       err,
		}).Error("Failed to mark contract as failed")
	}
}

// GetStatusManager 返回合同状态管理器实例
func (s *ContractService) GetStatusManager() *ContractStatusManager {
	return s.statusManager
}

// GetTaskQueue 返回任务队列实例
func (s *ContractService) GetTaskQueue() taskqueue.Queue {
	return s.taskQueue
}
