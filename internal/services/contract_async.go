package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fyerfyer/contract-analyzer/internal/models"
	"github.com/fyerfyer/contract-analyzer/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// AsyncContractOptions 异步合同处理的选项
type AsyncContractOptions struct {
	SummarySentences int               // 摘要句数
	Metadata         map[string]string // 元数据
	Priority         string            // 任务优先级
}

// DefaultAsyncContractOptions 返回默认的异步处理选项
func DefaultAsyncContractOptions() *AsyncContractOptions {
	return &AsyncContractOptions{
		SummarySentences: 5,
		Priority:         "default",
		Metadata:         make(map[string]string), // 初始化一个空map，避免nil错误
	}
}

// AsyncContractOption 异步选项函数类型
type AsyncContractOption func(*AsyncContractOptions)

// WithAsyncSummarySentences 设置摘要句数
func WithAsyncSummarySentences(n int) AsyncContractOption {
	return func(o *AsyncContractOptions) {
		o.SummarySentences = n
	}
}

// WithAsyncMetadata 设置任务元数据
func WithAsyncMetadata(metadata map[string]string) AsyncContractOption {
	return func(o *AsyncContractOptions) {
		o.Metadata = metadata
	}
}

// WithAsyncPriority 设置任务优先级
func WithAsyncPriority(priority string) AsyncContractOption {
	return func(o *AsyncContractOptions) {
		o.Priority = priority
	}
}

// EnableAsyncProcessing 启用异步处理
// 回调处理器使用进程内共享实例
func (s *ContractService) EnableAsyncProcessing(queue taskqueue.Queue) {
	s.enableAsyncProcessing(queue, taskqueue.GetSharedCallbackProcessor(queue, s.logger))
}

// enableAsyncProcessing 启用异步处理并在指定的回调处理器上注册任务回调
func (s *ContractService) enableAsyncProcessing(queue taskqueue.Queue, processor *taskqueue.CallbackProcessor) {
	s.asyncEnabled = true
	s.taskQueue = queue
	s.callbacks = processor

	// 确保重要依赖已设置
	if s.statusManager == nil {
		s.logger.Warn("Status manager not set, creating default one")
		if err := s.Init(); err != nil {
			s.logger.WithError(err).Error("Failed to initialize contract service")
			return
		}
	}

	// 注册任务回调处理器
	s.registerContractTaskHandlers()

	s.logger.Info("Async contract processing enabled")
}

// CallbackProcessor 返回异步模式下使用的任务回调处理器
func (s *ContractService) CallbackProcessor() *taskqueue.CallbackProcessor {
	return s.callbacks
}

// DisableAsyncProcessing 禁用异步处理
func (s *ContractService) DisableAsyncProcessing() {
	s.asyncEnabled = false
	s.logger.Info("Async contract processing disabled")
}

// ProcessContractAsync 异步处理合同
func (s *ContractService) ProcessContractAsync(ctx context.Context, contractID string, opts ...AsyncContractOption) error {
	options := DefaultAsyncContractOptions()

	// 应用选项
	for _, opt := range opts {
		opt(options)
	}

	return s.processContractAsync(ctx, contractID, options)
}

// processContractAsync 异步处理合同
// 将解析任务加入队列并立即返回，正文和分析结果由任务回调写入
func (s *ContractService) processContractAsync(ctx context.Context, contractID string, options *AsyncContractOptions) error {
	if !s.asyncEnabled || s.taskQueue == nil {
		return fmt.Errorf("async processing not enabled or task queue not configured")
	}

	// 确保有选项
	if options == nil {
		options = DefaultAsyncContractOptions()
	}

	contract, err := s.repo.GetByID(contractID)
	if err != nil {
		return fmt.Errorf("failed to get contract: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"contract_id": contractID,
		"file_path":   contract.FilePath,
	}).Info("Enqueuing contract for async processing")

	// 更新合同状态为处理中
	if err := s.statusManager.MarkAsProcessing(ctx, contractID); err != nil {
		s.logger.WithError(err).Error("Failed to mark contract as processing")
		return fmt.Errorf("failed to update contract status: %w", err)
	}

	// 创建解析任务
	payload := taskqueue.ContractParsePayload{
		FilePath: contract.FilePath,
		FileName: contract.FileName,
		FileType: contract.FileType,
		Metadata: options.Metadata,
	}

	taskID, err := s.taskQueue.Enqueue(ctx, taskqueue.TaskContractParse, contractID, payload)
	if err != nil {
		s.logger.WithError(err).Error("Failed to enqueue contract parse task")
		s.failContract(ctx, contractID, err.Error())
		return fmt.Errorf("failed to enqueue contract parse task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"contract_id": contractID,
		"task_id":     taskID,
	}).Info("Contract parse task created successfully")

	return nil
}

// registerContractTaskHandlers 注册合同任务的回调处理器
func (s *ContractService) registerContractTaskHandlers() {
	if s.taskQueue == nil || s.callbacks == nil {
		s.logger.Warn("Task queue not available, cannot register handlers")
		return
	}

	s.callbacks.RegisterHandler(taskqueue.TaskContractParse, s.handleContractParseResult)
	s.callbacks.RegisterHandler(taskqueue.TaskContractAnalyze, s.handleContractAnalyzeResult)
	s.callbacks.RegisterHandler(taskqueue.TaskAnalyzePipeline, s.handleAnalyzePipelineResult)

	s.logger.Info("Registered contract task handlers")
}

// handleContractParseResult 处理合同解析任务结果
// 保存规整后的正文；配置了分析服务时随即触发本地分析
func (s *ContractService) handleContractParseResult(ctx context.Context, task *taskqueue.Task, result json.RawMessage) error {
	s.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"contract_id": task.ContractID,
	}).Info("Handling contract parse result")

	// 解析结果
	var parseResult taskqueue.ContractParseResult
	if err := json.Unmarshal(result, &parseResult); err != nil {
		return fmt.Errorf("failed to unmarshal contract parse result: %w", err)
	}

	// 检查处理错误
	if parseResult.Error != "" {
		s.failContract(ctx, task.ContractID, parseResult.Error)
		return fmt.Errorf("contract parsing failed: %s", parseResult.Error)
	}

	// 检查内容是否为空
	if parseResult.Content == "" {
		err := fmt.Errorf("empty contract content")
		s.failContract(ctx, task.ContractID, err.Error())
		return err
	}

	if parseResult.Degraded {
		s.logger.WithField("contract_id", task.ContractID).Warn("Contract parsed with degraded raw decoding")
	}

	// 保存正文
	if err := s.saveContractText(ctx, task.ContractID, parseResult.Content); err != nil {
		s.failContract(ctx, task.ContractID, err.Error())
		return err
	}

	// 触发本地分析
	if s.analysis != nil {
		if _, err := s.analysis.Analyze(ctx, task.ContractID); err != nil {
			s.logger.WithError(err).WithField("contract_id", task.ContractID).Error("Failed to analyze contract after parsing")
			return err
		}
	}

	return nil
}

// handleContractAnalyzeResult 处理外部工作进程的合同分析任务结果
func (s *ContractService) handleContractAnalyzeResult(ctx context.Context, task *taskqueue.Task, result json.RawMessage) error {
	s.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"contract_id": task.ContractID,
	}).Info("Handling contract analyze result")

	// 解析结果
	var analyzeResult taskqueue.ContractAnalyzeResult
	if err := json.Unmarshal(result, &analyzeResult); err != nil {
		return fmt.Errorf("failed to unmarshal contract analyze result: %w", err)
	}

	// 检查处理错误
	if analyzeResult.Error != "" {
		s.logger.WithFields(logrus.Fields{
			"contract_id": task.ContractID,
			"error":       analyzeResult.Error,
		}).Error("Contract analysis failed")
		s.failContract(ctx, task.ContractID, analyzeResult.Error)
		return fmt.Errorf("contract analysis failed: %s", analyzeResult.Error)
	}

	// 同步合同状态
	status, err := s.statusManager.GetStatus(ctx, task.ContractID)
	if err != nil {
		return fmt.Errorf("failed to get contract status: %w", err)
	}

	if status != models.ContractStatusAnalyzed {
		if err := s.statusManager.MarkAsAnalyzed(ctx, task.ContractID, analyzeResult.ClauseCount); err != nil {
			s.logger.WithError(err).Error("Failed to mark contract as analyzed")
			return err
		}
	}

	return nil
}

// handleAnalyzePipelineResult 处理完整流程任务结果
func (s *ContractService) handleAnalyzePipelineResult(ctx context.Context, task *taskqueue.Task, result json.RawMessage) error {
	s.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"contract_id": task.ContractID,
	}).Info("Handling analyze pipeline result")

	// 解析结果
	var pipelineResult taskqueue.AnalyzePipelineResult
	if err := json.Unmarshal(result, &pipelineResult); err != nil {
		return fmt.Errorf("failed to unmarshal pipeline result: %w", err)
	}

	// 检查处理错误
	if pipelineResult.Error != "" {
		s.logger.WithFields(logrus.Fields{
			"contract_id": task.ContractID,
			"error":       pipelineResult.Error,
		}).Error("Contract pipeline failed")
		s.failContract(ctx, task.ContractID, pipelineResult.Error)
		return fmt.Errorf("contract pipeline failed: %s", pipelineResult.Error)
	}

	// 解析和分析都成功时标记为分析完成
	// 进程内工作者执行分析时状态已同步更新，避免重复转换
	if pipelineResult.ParseStatus == "completed" && pipelineResult.AnalyzeStatus == "completed" {
		status, err := s.statusManager.GetStatus(ctx, task.ContractID)
		if err != nil {
			return fmt.Errorf("failed to get contract status: %w", err)
		}

		if status != models.ContractStatusAnalyzed {
			if err := s.statusManager.MarkAsAnalyzed(ctx, task.ContractID, pipelineResult.ClauseCount); err != nil {
				s.logger.WithError(err).Error("Failed to mark contract as analyzed")
				return err
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"contract_id":        task.ContractID,
		"clause_count":       pipelineResult.ClauseCount,
		"overall_risk_score": pipelineResult.OverallRiskScore,
	}).Info("Contract pipeline completed successfully")

	return nil
}

// GetContractTasks 获取合同相关的任务
func (s *ContractService) GetContractTasks(ctx context.Context, contractID string) ([]*taskqueue.Task, error) {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return nil, err
	}

	if !s.asyncEnabled || s.taskQueue == nil {
		return nil, fmt.Errorf("async processing not enabled")
	}

	return s.taskQueue.GetTasksByContract(ctx, contractID)
}

// WaitForTaskResult 等待任务完成并返回结果
func (s *ContractService) WaitForTaskResult(ctx context.Context, taskID string, timeout time.Duration) (*taskqueue.Task, error) {
	if !s.asyncEnabled || s.taskQueue == nil {
		return nil, fmt.Errorf("async processing not enabled")
	}

	return s.taskQueue.WaitForTask(ctx, taskID, timeout)
}

// WaitForContractProcessing 等待合同处理完成
func (s *ContractService) WaitForContractProcessing(ctx context.Context, contractID string, timeout time.Duration) error {
	// 确保初始化完成
	if err := s.Init(); err != nil {
		return err
	}

	if !s.asyncEnabled || s.taskQueue == nil {
		// 如果未启用异步处理，直接检查合同状态
		status, err := s.statusManager.GetStatus(ctx, contractID)
		if err != nil {
			return err
		}
		if status == models.ContractStatusFailed {
			return fmt.Errorf("contract processing failed")
		}
		if status != models.ContractStatusAnalyzed {
			return fmt.Errorf("contract not analyzed")
		}
		return nil
	}

	// 设置上下文超时
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// 获取合同相关的任务
	tasks, err := s.taskQueue.GetTasksByContract(ctx, contractID)
	if err != nil {
		return fmt.Errorf("failed to get contract tasks: %w", err)
	}

	if len(tasks) == 0 {
		return fmt.Errorf("no processing tasks found for contract %s", contractID)
	}

	// 找到最新的解析任务
	var latestTask *taskqueue.Task
	for _, task := range tasks {
		if task.Type == taskqueue.TaskContractParse || task.Type == taskqueue.TaskAnalyzePipeline {
			if latestTask == nil || task.CreatedAt.After(latestTask.CreatedAt) {
				latestTask = task
			}
		}
	}

	if latestTask == nil {
		return fmt.Errorf("no processing task found for contract %s", contractID)
	}

	// 等待任务完成
	_, err = s.taskQueue.WaitForTask(ctx, latestTask.ID, timeout)
	if err != nil {
		return fmt.Errorf("failed to wait for contract processing: %w", err)
	}

	// 再次检查合同状态
	status, err := s.statusManager.GetStatus(ctx, contractID)
	if err != nil {
		return err
	}

	if status == models.ContractStatusFailed {
		return fmt.Errorf("contract processing failed")
	}

	if status != models.ContractStatusAnalyzed {
		return fmt.Errorf("contract processing incomplete")
	}

	return nil
}
