package repository

import "github.com/fyerfyer/contract-analyzer/internal/models"

// ContractRepository 合同仓储接口
// 负责合同元数据、条款块和分析结果的存储与检索
type ContractRepository interface {
	// Create 创建合同记录
	Create(contract *models.Contract) error

	// Update 更新合同记录
	Update(contract *models.Contract) error

	// GetByID 根据ID获取合同
	GetByID(id string) (*models.Contract, error)

	// List 列出合同列表，支持分页和筛选
	List(offset, limit int, filters map[string]interface{}) ([]*models.Contract, int64, error)

	// Delete 删除合同及其条款块和分析结果
	Delete(id string) error

	// UpdateStatus 更新合同状态
	UpdateStatus(id string, status models.ContractStatus, errorMsg string) error

	// SaveClauses 批量保存合同条款块
	SaveClauses(clauses []*models.ContractClause) error

	// GetClauses 获取合同的所有条款块
	GetClauses(contractID string) ([]*models.ContractClause, error)

	// DeleteClauses 删除合同的所有条款块
	DeleteClauses(contractID string) error

	// SaveAnalysis 保存分析结果，同一合同重复分析时覆盖
	SaveAnalysis(analysis *models.Analysis) error

	// GetAnalysis 获取合同的分析结果
	GetAnalysis(contractID string) (*models.Analysis, error)
}
