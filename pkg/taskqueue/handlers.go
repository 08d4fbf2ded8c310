package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// TaskCallbackHandler 任务回调处理函数类型
// 处理特定类型任务的回调，返回处理结果
type TaskCallbackHandler func(ctx context.Context, task *Task, result json.RawMessage) error

// CallbackProcessor 回调处理器
// 负责接收和处理任务回调
type CallbackProcessor struct {
	queue     Queue                            // 任务队列
	handlers  map[TaskType]TaskCallbackHandler // 任务类型对应的处理函数
	defaultFn TaskCallbackHandler              // 默认处理函数
	logger    *logrus.Logger                   // 日志记录器
}

// NewCallbackProcessor 创建新的回调处理器
func NewCallbackProcessor(queue Queue, logger *logrus.Logger) *CallbackProcessor {
	if logger == nil {
		logger = logrus.New()
	}

	return &CallbackProcessor{
		queue:    queue,
		handlers: make(map[TaskType]TaskCallbackHandler),
		logger:   logger,
	}
}

// RegisterHandler 注册特定类型的任务处理函数
func (p *CallbackProcessor) RegisterHandler(taskType TaskType, handler TaskCallbackHandler) {
	p.handlers[taskType] = handler
	p.logger.Infof("Registered handler for task type: %s", taskType)
}

// SetDefaultHandler 设置默认处理函数
// 没有注册对应类型处理函数时使用
func (p *CallbackProcessor) SetDefaultHandler(handler TaskCallbackHandler) {
	p.defaultFn = handler
}

// ProcessCallback 处理回调数据
func (p *CallbackProcessor) ProcessCallback(ctx context.Context, callbackData []byte) error {
	// 解析回调数据
	var callback TaskCallback
	if err := json.Unmarshal(callbackData, &callback); err != nil {
		return fmt.Errorf("failed to unmarshal callback data: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"task_id":     callback.TaskID,
		"contract_id": callback.ContractID,
		"status":      callback.Status,
		"type":        callback.Type,
	}).Info("Processing task callback")

	// 获取任务
	task, err := p.queue.GetTask(ctx, callback.TaskID)
	if err != nil {
		p.logger.WithError(err).Errorf("Failed to get task: %s", callback.TaskID)
		return fmt.Errorf("failed to get task: %w", err)
	}

	// 更新任务状态
	err = p.queue.UpdateTaskStatus(ctx, callback.TaskID, callback.Status, callback.Result, callback.Error)
	if err != nil {
		p.logger.WithError(err).Errorf("Failed to update task status: %s", callback.TaskID)
		return fmt.Errorf("failed to update task status: %w", err)
	}

	// 通知状态更新，失败也继续处理
	_ = p.queue.NotifyTaskUpdate(ctx, callback.TaskID)

	// 如果任务失败，记录错误但不调用处理函数
	if callback.Status == StatusFailed {
		p.logger.WithFields(logrus.Fields{
			"task_id": callback.TaskID,
			"error":   callback.Error,
		}).Error("Task failed")
	}

	// 找到对应的处理函数
	handler, exists := p.handlers[callback.Type]
	if !exists {
		handler = p.defaultFn
		p.logger.WithField("type", callback.Type).Info("No handler registered for task type: " + string(callback.Type))
	}

	if handler == nil {
		p.logger.Debug("No handler available for task type: " + string(callback.Type))
		return nil
	}

	// 调用处理函数
	p.logger.Debugf("Calling handler for task: %s (type: %s)", task.ID, task.Type)
	return handler(ctx, task, callback.Result)
}

// CallbackRequest HTTP回调请求结构体
type CallbackRequest struct {
	TaskID     string          `json:"task_id"`     // 任务ID
	ContractID string          `json:"contract_id"` // 合同ID
	Status     TaskStatus      `json:"status"`      // 任务状态
	Type       TaskType        `json:"type"`        // 任务类型
	Result     json.RawMessage `json:"result"`      // 任务结果
	Error      string          `json:"error"`       // 错误信息
	Timestamp  string          `json:"timestamp"`   // 时间戳
}

// CallbackResponse HTTP回调响应结构体
type CallbackResponse struct {
	Success   bool   `json:"success"`           // 是否成功
	Message   string `json:"message,omitempty"` // 消息
	TaskID    string `json:"task_id"`           // 任务ID
	Timestamp string `json:"timestamp"`         // 时间戳
}

// HandleCallback 处理HTTP回调请求
func (p *CallbackProcessor) HandleCallback(ctx context.Context, req *CallbackRequest) (*CallbackResponse, error) {
	p.logger.WithFields(logrus.Fields{
		"task_id":     req.TaskID,
		"contract_id": req.ContractID,
		"status":      req.Status,
		"type":        req.Type,
	}).Info("Received callback request")

	// 外部工作进程上报的时间戳格式不统一，逐个尝试
	var timestamp time.Time
	if req.Timestamp != "" {
		formats := []string{
			time.RFC3339,                 // 2006-01-02T15:04:05Z07:00
			"2006-01-02T15:04:05Z",       // 带Z的UTC时间
			"2006-01-02T15:04:05.999999", // 带毫秒不带时区
			"2006-01-02T15:04:05",        // 不带时区
		}

		var parseErr error
		for _, format := range formats {
			timestamp, parseErr = time.Parse(format, req.Timestamp)
			if parseErr == nil {
				break
			}
		}

		if parseErr != nil {
			p.logger.WithFields(logrus.Fields{
				"timestamp": req.Timestamp,
				"error":     parseErr,
			}).Warn("Failed to parse timestamp, using current time")
			timestamp = time.Now()
		}
	} else {
		timestamp = time.Now()
	}

	// 创建回调对象
	callback := &TaskCallback{
		TaskID:     req.TaskID,
		ContractID: req.ContractID,
		Status:     req.Status,
		Type:       req.Type,
		Result:     req.Result,
		Error:      req.Error,
		Timestamp:  timestamp,
	}

	callbackData, err := json.Marshal(callback)
	if err != nil {
		p.logger.WithError(err).Error("Failed to marshal callback data")
		return &CallbackResponse{
			Success:   false,
			Message:   fmt.Sprintf("failed to marshal callback: %v", err),
			TaskID:    req.TaskID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, err
	}

	// 处理回调
	err = p.ProcessCallback(ctx, callbackData)
	if err != nil {
		p.logger.WithError(err).Error("Failed to process callback")
		return &CallbackResponse{
			Success:   false,
			Message:   err.Error(),
			TaskID:    req.TaskID,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}, err
	}

	return &CallbackResponse{
		Success:   true,
		Message:   "Task callback processed successfully",
		TaskID:    req.TaskID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// DefaultContractParseHandler 默认的合同解析回调处理函数
// 解析完成后创建分析任务
func DefaultContractParseHandler(ctx context.Context, queue Queue, logger *logrus.Logger) TaskCallbackHandler {
	return func(ctx context.Context, task *Task, result json.RawMessage) error {
		// 解析结果
		var parseResult ContractParseResult
		if err := json.Unmarshal(result, &parseResult); err != nil {
			logger.WithError(err).Error("Failed to unmarshal contract parse result")
			return fmt.Errorf("failed to unmarshal contract parse result: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"task_id":     task.ID,
			"contract_id": task.ContractID,
			"chars":       parseResult.Chars,
			"degraded":    parseResult.Degraded,
		}).Info("Contract parse completed")

		// 如果合同内容为空，不创建后续任务
		if parseResult.Content == "" {
			logger.Warn("Empty contract content, skipping analyze task")
			return nil
		}

		// 创建合同分析任务
		analyzePayload := ContractAnalyzePayload{
			ContractID: task.ContractID,
			Text:       parseResult.Content,
		}

		taskID, err := queue.Enqueue(ctx, TaskContractAnalyze, task.ContractID, analyzePayload)
		if err != nil {
			logger.WithError(err).Error("Failed to enqueue analyze task")
			return fmt.Errorf("failed to enqueue analyze task: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"contract_id":     task.ContractID,
			"analyze_task_id": taskID,
		}).Info("Created contract analyze task")

		return nil
	}
}

// DefaultContractAnalyzeHandler 默认的合同分析回调处理函数
// 分析是任务流程的最后一步，具体的落库逻辑由服务层注册的处理函数完成
func DefaultContractAnalyzeHandler(ctx context.Context, queue Queue, logger *logrus.Logger) TaskCallbackHandler {
	return func(ctx context.Context, task *Task, result json.RawMessage) error {
		var analyzeResult ContractAnalyzeResult
		if err := json.Unmarshal(result, &analyzeResult); err != nil {
			logger.WithError(err).Error("Failed to unmarshal contract analyze result")
			return fmt.Errorf("failed to unmarshal contract analyze result: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"task_id":            task.ID,
			"contract_id":        task.ContractID,
			"clause_count":       analyzeResult.ClauseCount,
			"overall_risk_score": analyzeResult.OverallRiskScore,
			"summarizer":         analyzeResult.Summarizer,
		}).Info("Contract analysis completed")

		return nil
	}
}

// DefaultAnalyzePipelineHandler 默认的完整处理流程回调处理函数
func DefaultAnalyzePipelineHandler(ctx context.Context, queue Queue, logger *logrus.Logger) TaskCallbackHandler {
	return func(ctx context.Context, task *Task, result json.RawMessage) error {
		var pipelineResult AnalyzePipelineResult
		if err := json.Unmarshal(result, &pipelineResult); err != nil {
			logger.WithError(err).Error("Failed to unmarshal pipeline result")
			return fmt.Errorf("failed to unmarshal pipeline result: %w", err)
		}

		logger.WithFields(logrus.Fields{
			"task_id":            task.ID,
			"contract_id":        task.ContractID,
			"clause_count":       pipelineResult.ClauseCount,
			"overall_risk_score": pipelineResult.OverallRiskScore,
			"parse_status":       pipelineResult.ParseStatus,
			"analyze_status":     pipelineResult.AnalyzeStatus,
		}).Info("Contract pipeline completed")

		return nil
	}
}

// RegisterDefaultHandlers 注册默认的任务处理函数
func (p *CallbackProcessor) RegisterDefaultHandlers(queue Queue) {
	p.RegisterHandler(TaskContractParse, DefaultContractParseHandler(context.Background(), queue, p.logger))
	p.RegisterHandler(TaskContractAnalyze, DefaultContractAnalyzeHandler(context.Background(), queue, p.logger))
	p.RegisterHandler(TaskAnalyzePipeline, DefaultAnalyzePipelineHandler(context.Background(), queue, p.logger))

	p.logger.Info("Registered default task handlers")
}

// GetRegisteredHandlerTypes 返回已注册处理函数的任务类型集合
func (p *CallbackProcessor) GetRegisteredHandlerTypes() map[TaskType]bool {
	result := make(map[TaskType]bool)
	for handlerType := range p.handlers {
		result[handlerType] = true
	}
	return result
}
