package models

import "errors"

var (
	// ErrContractNotFound 合同不存在错误
	ErrContractNotFound = errors.New("contract not found")

	// ErrAnalysisNotFound 分析结果不存在错误
	ErrAnalysisNotFound = errors.New("analysis not found")

	// ErrInvalidContractStatus 无效的合同状态错误
	ErrInvalidContractStatus = errors.New("invalid contract status")
)
