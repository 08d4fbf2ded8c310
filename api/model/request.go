package model

import (
	"mime/multipart"
	"time"
)

// 分页请求参数
type PaginationRequest struct {
	Page     int `form:"page" json:"page" binding:"omitempty,min=1"`           // 当前页码，从1开始
	PageSize int `form:"page_size" json:"page_size" binding:"omitempty,min=1"` // 每页记录数
}

// GetPage 获取页码，默认为1
func (p *PaginationRequest) GetPage() int {
	if p.Page <= 0 {
		return 1
	}
	return p.Page
}

// GetPageSize 获取每页记录数，默认为10，最大为100
func (p *PaginationRequest) GetPageSize() int {
	if p.PageSize <= 0 {
		return 10
	}
	if p.PageSize > 100 {
		return 100
	}
	return p.PageSize
}

// ContractUploadRequest 合同上传请求
type ContractUploadRequest struct {
	File *multipart.FileHeader `form:"file" binding:"required"` // 合同文件
	Tags string                `form:"tags" binding:"omitempty"` // 合同标签，逗号分隔
}

// ContractIDRequest 按合同ID操作的请求
type ContractIDRequest struct {
	ID string `uri:"id" binding:"required"` // 合同ID
}

// ContractListRequest 合同列表请求
type ContractListRequest struct {
	PaginationRequest
	StartTime *time.Time `form:"start_time" json:"start_time" binding:"omitempty"` // 开始时间
	EndTime   *time.Time `form:"end_time" json:"end_time" binding:"omitempty"`     // 结束时间
	Status    string     `form:"status" json:"status" binding:"omitempty"`         // 合同状态
	Tags      string     `form:"tags" json:"tags" binding:"omitempty"`             // 标签过滤
	FileName  string     `form:"file_name" json:"file_name" binding:"omitempty"`   // 文件名过滤
}

// AnalyzeRequest 合同分析请求
type AnalyzeRequest struct {
	SummarySentences int `json:"summary_sentences" binding:"omitempty,min=1,max=20"` // 摘要句数
}

// ClauseSearchRequest 条款检索请求
type ClauseSearchRequest struct {
	Query string `form:"q" binding:"required"` // 检索关键词
}

// UpdateTagsRequest 更新合同标签请求
type UpdateTagsRequest struct {
	Tags string `json:"tags"` // 标签，逗号分隔
}
