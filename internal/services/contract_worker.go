package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fyerfyer/contract-analyzer/pkg/taskqueue"
	"github.com/sirupsen/logrus"
)

// ContractTaskProcessor 进程内的合同任务执行器
// 实现taskqueue.Handler接口，由工作者从队列取出任务后调用；
// 解析和分析直接在本进程完成，结果通过回调处理器写回任务并同步合同状态
type ContractTaskProcessor struct {
	contracts *ContractService             // 合同服务（文件解析）
	analysis  *AnalysisService             // 分析服务
	callbacks *taskqueue.CallbackProcessor // 回调处理器（结果落库和状态同步）
	logger    *logrus.Logger               // 日志记录器
}

// NewContractTaskProcessor 创建合同任务执行器
func NewContractTaskProcessor(contracts *ContractService, analysis *AnalysisService, callbacks *taskqueue.CallbackProcessor, logger *logrus.Logger) *ContractTaskProcessor {
	if logger == nil {
		logger = logrus.New()
	}

	return &ContractTaskProcessor{
		contracts: contracts,
		analysis:  analysis,
		callbacks: callbacks,
		logger:    logger,
	}
}

// GetTaskTypes 返回此执行器支持的任务类型
func (p *ContractTaskProcessor) GetTaskTypes() []taskqueue.TaskType {
	return []taskqueue.TaskType{
		taskqueue.TaskContractParse,
		taskqueue.TaskContractAnalyze,
		taskqueue.TaskAnalyzePipeline,
	}
}

// ProcessTask 处理队列任务
func (p *ContractTaskProcessor) ProcessTask(ctx context.Context, task *taskqueue.Task) error {
	p.logger.WithFields(logrus.Fields{
		"task_id":     task.ID,
		"task_type":   task.Type,
		"contract_id": task.ContractID,
	}).Info("Processing contract task")

	switch task.Type {
	case taskqueue.TaskContractParse:
		return p.processParse(ctx, task)
	case taskqueue.TaskContractAnalyze:
		return p.processAnalyze(ctx, task)
	case taskqueue.TaskAnalyzePipeline:
		return p.processPipeline(ctx, task)
	default:
		return fmt.Errorf("unsupported task type: %s", task.Type)
	}
}

// processParse 执行合同解析任务
// 正文的保存和后续分析由解析回调完成
func (p *ContractTaskProcessor) processParse(ctx context.Context, task *taskqueue.Task) error {
	text, degraded, err := p.contracts.parseContract(task.ContractID)

	result := taskqueue.ContractParseResult{
		Content:  text,
		Chars:    len(text),
		Words:    len(strings.Fields(text)),
		Degraded: degraded,
	}
	if err != nil {
		result.Error = err.Error()
	}

	return p.deliver(ctx, task, result, err)
}

// processAnalyze 执行合同分析任务
func (p *ContractTaskProcessor) processAnalyze(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.ContractAnalyzePayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal analyze payload: %w", err)
	}

	contractID := payload.ContractID
	if contractID == "" {
		contractID = task.ContractID
	}

	result := taskqueue.ContractAnalyzeResult{ContractID: contractID}

	report, clauseCount, err := p.analysis.AnalyzeWithSentences(ctx, contractID, payload.SummarySentences)
	if err != nil {
		result.Error = err.Error()
		return p.deliver(ctx, task, result, err)
	}

	result.ClauseCount = clauseCount
	result.OverallRiskScore = report.OverallRiskScore
	if record, recordErr := p.analysis.GetAnalysis(ctx, contractID); recordErr == nil {
		result.Summarizer = record.Summarizer
	}

	return p.deliver(ctx, task, result, nil)
}

// processPipeline 执行解析加分析的完整流程任务
func (p *ContractTaskProcessor) processPipeline(ctx context.Context, task *taskqueue.Task) error {
	var payload taskqueue.AnalyzePipelinePayload
	if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal pipeline payload: %w", err)
	}

	contractID := payload.ContractID
	if contractID == "" {
		contractID = task.ContractID
	}

	result := taskqueue.AnalyzePipelineResult{ContractID: contractID}

	// 解析并保存正文
	text, degraded, err := p.contracts.parseContract(contractID)
	if err == nil {
		err = p.contracts.saveContractText(ctx, contractID, text)
	}
	if err != nil {
		result.ParseStatus = "failed"
		result.Error = err.Error()
		return p.deliver(ctx, task, result, err)
	}

	if degraded {
		p.logger.WithField("contract_id", contractID).Warn("Contract parsed with degraded raw decoding")
	}
	result.ParseStatus = "completed"

	// 执行分析
	report, clauseCount, err := p.analysis.AnalyzeWithSentences(ctx, contractID, payload.SummarySentences)
	if err != nil {
		result.AnalyzeStatus = "failed"
		result.Error = err.Error()
		return p.deliver(ctx, task, result, err)
	}

	result.AnalyzeStatus = "completed"
	result.ClauseCount = clauseCount
	result.OverallRiskScore = report.OverallRiskScore

	return p.deliver(ctx, task, result, nil)
}

// deliver 将任务结果交给回调处理器
// 回调处理器负责更新任务状态、保存结果并触发服务层注册的处理函数；
// 返回原始的任务错误以便工作者将任务标记为失败
func (p *ContractTaskProcessor) deliver(ctx context.Context, task *taskqueue.Task, result interface{}, taskErr error) error {
	status := taskqueue.StatusCompleted
	errMsg := ""
	if taskErr != nil {
		status = taskqueue.StatusFailed
		errMsg = taskErr.Error()
	}

	resultBytes, err := taskqueue.MarshalPayload(result)
	if err != nil {
		return fmt.Errorf("failed to marshal task result: %w", err)
	}

	req := &taskqueue.CallbackRequest{
		TaskID:     task.ID,
		ContractID: task.ContractID,
		Status:     status,
		Type:       task.Type,
		Result:     resultBytes,
		Error:      errMsg,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	if _, err := p.callbacks.HandleCallback(ctx, req); err != nil {
		return err
	}

	return taskErr
}
