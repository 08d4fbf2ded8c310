package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskContractParse 合同解析任务
	TaskContractParse TaskType = "contract_parse"
	// TaskContractAnalyze 合同分析任务
	TaskContractAnalyze TaskType = "contract_analyze"
	// TaskAnalyzePipeline 解析加分析的完整流程任务
	TaskAnalyzePipeline TaskType = "analyze_pipeline"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	ContractID  string          `json:"contract_id"`  // 关联的合同ID
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据，不同任务类型对应不同结构
	Result      json.RawMessage `json:"result"`       // 任务结果数据，不同任务类型对应不同结构
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	Attempts    int             `json:"attempts"`     // 尝试次数
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// ContractParsePayload 合同解析任务载荷
type ContractParsePayload struct {
	FilePath string            `json:"file_path"` // 文件存储路径
	FileName string            `json:"file_name"` // 文件名
	FileType string            `json:"file_type"` // 文件类型
	Metadata map[string]string `json:"metadata"`  // 元数据
}

// ContractParseResult 合同解析任务结果
type ContractParseResult struct {
	Content  string `json:"content"`  // 规整后的文本内容
	Chars    int    `json:"chars"`    // 字符数
	Words    int    `json:"words"`    // 单词数
	Degraded bool   `json:"degraded"` // 是否走了降级解码
	Error    string `json:"error"`    // 错误信息（如果有）
}

// ContractAnalyzePayload 合同分析任务载荷
type ContractAnalyzePayload struct {
	ContractID       string `json:"contract_id"`       // 合同ID
	Text             string `json:"text"`              // 规整后的合同文本
	SummarySentences int    `json:"summary_sentences"` // 摘要句数
}

// ContractAnalyzeResult 合同分析任务结果
type ContractAnalyzeResult struct {
	ContractID       string `json:"contract_id"`        // 合同ID
	ClauseCount      int    `json:"clause_count"`       // 条款块数量
	OverallRiskScore int    `json:"overall_risk_score"` // 总体风险分
	Summarizer       string `json:"summarizer"`         // 摘要来源
	Error            string `json:"error"`              // 错误信息（如果有）
}

// AnalyzePipelinePayload 完整流程任务载荷
type AnalyzePipelinePayload struct {
	ContractID       string            `json:"contract_id"`       // 合同ID
	FilePath         string            `json:"file_path"`         // 文件路径
	FileName         string            `json:"file_name"`         // 文件名
	FileType         string            `json:"file_type"`         // 文件类型
	SummarySentences int               `json:"summary_sentences"` // 摘要句数
	Metadata         map[string]string `json:"metadata"`          // 元数据
}

// AnalyzePipelineResult 完整流程结果
type AnalyzePipelineResult struct {
	ContractID       string `json:"contract_id"`        // 合同ID
	ClauseCount      int    `json:"clause_count"`       // 条款块数量
	OverallRiskScore int    `json:"overall_risk_score"` // 总体风险分
	ParseStatus      string `json:"parse_status"`       // 解析状态
	AnalyzeStatus    string `json:"analyze_status"`     // 分析状态
	Error            string `json:"error"`              // 错误信息（如果有）
}

// TaskCallback 任务回调信息
type TaskCallback struct {
	TaskID     string          `json:"task_id"`     // 任务ID
	ContractID string          `json:"contract_id"` // 合同ID
	Status     TaskStatus      `json:"status"`      // 任务状态
	Type       TaskType        `json:"type"`        // 任务类型
	Result     json.RawMessage `json:"result"`      // 任务结果
	Error      string          `json:"error"`       // 错误信息
	Timestamp  time.Time       `json:"timestamp"`   // 回调时间戳
}
