package model

import (
	"time"

	"github.com/fyerfyer/contract-analyzer/internal/analyzer"
	"github.com/fyerfyer/contract-analyzer/internal/models"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// ContractUploadResponse 合同上传响应
type ContractUploadResponse struct {
	ContractID string `json:"contract_id"` // 合同ID
	FileName   string `json:"filename"`    // 文件名
	Status     string `json:"status"`      // 合同状态：uploaded、processing、analyzed、failed
}

// ContractInfo 合同信息
type ContractInfo struct {
	ContractID  string    `json:"contract_id"`           // 合同ID
	FileName    string    `json:"filename"`              // 文件名
	FileType    string    `json:"file_type"`             // 文件类型
	Status      string    `json:"status"`                // 状态
	Tags        string    `json:"tags,omitempty"`        // 标签
	UploadedAt  time.Time `json:"uploaded_at"`           // 上传时间
	AnalyzedAt  *time.Time `json:"analyzed_at,omitempty"` // 分析完成时间
	FileSize    int64     `json:"file_size"`             // 文件大小
	ClauseCount int       `json:"clause_count"`          // 条款块数量
	Error       string    `json:"error,omitempty"`       // 错误信息
}

// ContractListResponse 合同列表响应
type ContractListResponse struct {
	Total     int64          `json:"total"`     // 总数量
	Page      int            `json:"page"`      // 当前页码
	PageSize  int            `json:"page_size"` // 每页大小
	Contracts []ContractInfo `json:"contracts"` // 合同列表
}

// ContractDeleteResponse 合同删除响应
type ContractDeleteResponse struct {
	Success    bool   `json:"success"`     // 是否成功
	ContractID string `json:"contract_id"` // 合同ID
}

// ContractTextResponse 合同正文响应
type ContractTextResponse struct {
	ContractID string `json:"contract_id"` // 合同ID
	Text       string `json:"text"`        // 规整后的正文
	Chars      int    `json:"chars"`       // 字符数
}

// ClauseInfo 条款块信息
type ClauseInfo struct {
	Index   int    `json:"index"`             // 块顺序编号
	Heading string `json:"heading,omitempty"` // 条款标题
	Text    string `json:"text"`              // 条款文本
}

// ClausesResponse 条款块列表响应
type ClausesResponse struct {
	ContractID string       `json:"contract_id"` // 合同ID
	Total      int          `json:"total"`       // 条款块数量
	Clauses    []ClauseInfo `json:"clauses"`     // 条款块列表
}

// ClauseSearchResponse 条款检索响应
type ClauseSearchResponse struct {
	ContractID string       `json:"contract_id"` // 合同ID
	Query      string       `json:"query"`       // 检索关键词
	Total      int          `json:"total"`       // 命中数量
	Hits       []ClauseInfo `json:"hits"`        // 命中的条款块
}

// AnalyzeResponse 合同分析响应
type AnalyzeResponse struct {
	ContractID       string           `json:"contract_id"`        // 合同ID
	ClauseCount      int              `json:"clause_count"`       // 条款块数量
	OverallRiskScore int              `json:"overall_risk_score"` // 总体风险分
	Report           *analyzer.Report `json:"report"`             // 完整分析报告
}

// ReportResponse 分析报告响应
type ReportResponse struct {
	ContractID string           `json:"contract_id"` // 合同ID
	Report     *analyzer.Report `json:"report"`      // 完整分析报告
}

// ConvertToContractInfo 将合同模型转换为响应信息
func ConvertToContractInfo(contract *models.Contract) ContractInfo {
	return ContractInfo{
		ContractID:  contract.ID,
		FileName:    contract.FileName,
		FileType:    contract.FileType,
		Status:      string(contract.Status),
		Tags:        contract.Tags,
		UploadedAt:  contract.UploadedAt,
		AnalyzedAt:  contract.AnalyzedAt,
		FileSize:    contract.FileSize,
		ClauseCount: contract.ClauseCount,
		Error:       contract.Error,
	}
}

// ConvertToClauseInfo 将条款块转换为响应信息
func ConvertToClauseInfo(clauses []analyzer.Clause) []ClauseInfo {
	if len(clauses) == 0 {
		return []ClauseInfo{}
	}

	infos := make([]ClauseInfo, len(clauses))
	for i, clause := range clauses {
		infos[i] = ClauseInfo{
			Index:   clause.Index,
			Heading: clause.Heading,
			Text:    clause.Text,
		}
	}
	return infos
}

// PaginationResponse 分页响应信息
type PaginationResponse struct {
	Total    int `json:"total"`     // 总记录数
	Page     int `json:"page"`      // 当前页码
	PageSize int `json:"page_size"` // 每页大小
}
