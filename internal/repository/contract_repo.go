package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fyerfyer/contract-analyzer/internal/database"
	"github.com/fyerfyer/contract-analyzer/internal/models"
	"gorm.io/gorm"
)

// contractRepository 合同仓储实现
type contractRepository struct {
	db  *gorm.DB        // 数据库连接
	ctx context.Context // 上下文，可用于事务或超时控制
}

// NewContractRepository 创建合同仓储实例
func NewContractRepository() ContractRepository {
	return &contractRepository{
		db:  database.MustDB(),
		ctx: context.Background(),
	}
}

// NewContractRepositoryWithDB 使用指定的数据库连接创建合同仓储实例
func NewContractRepositoryWithDB(db *gorm.DB) ContractRepository {
	if db == nil {
		db = database.MustDB()
	}
	return &contractRepository{
		db:  db,
		ctx: context.Background(),
	}
}

// Create 创建合同记录
func (r *contractRepository) Create(contract *models.Contract) error {
	if contract.ID == "" {
		return errors.New("contract ID cannot be empty")
	}

	return r.db.Create(contract).Error
}

// Update 更新合同记录
func (r *contractRepository) Update(contract *models.Contract) error {
	if contract.ID == "" {
		return errors.New("contract ID cannot be empty")
	}

	return r.db.Save(contract).Error
}

// GetByID 根据ID获取合同
func (r *contractRepository) GetByID(id string) (*models.Contract, error) {
	var contract models.Contract
	err := r.db.Where("id = ?", id).First(&contract).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrContractNotFound
		}
		return nil, err
	}
	return &contract, nil
}

// List 列出合同列表，支持分页和筛选
func (r *contractRepository) List(offset, limit int, filters map[string]interface{}) ([]*models.Contract, int64, error) {
	var contracts []*models.Contract
	var total int64

	query := r.db.Model(&models.Contract{})

	// 应用筛选条件
	if filters != nil {
		// 状态过滤
		if status, ok := filters["status"]; ok {
			switch s := status.(type) {
			case models.ContractStatus:
				query = query.Where("status = ?", string(s))
			case string:
				if s != "" {
					query = query.Where("status = ?", s)
				}
			default:
				statusStr := fmt.Sprintf("%v", status)
				if statusStr != "" {
					query = query.Where("status = ?", statusStr)
				}
			}
		}

		// 标签过滤
		if tags, ok := filters["tags"].(string); ok && tags != "" {
			query = query.Where("tags LIKE ?", "%"+tags+"%")
		}

		// 时间范围过滤
		if startTime, ok := filters["start_time"].(string); ok && startTime != "" {
			query = query.Where("uploaded_at >= ?", startTime)
		}

		if endTime, ok := filters["end_time"].(string); ok && endTime != "" {
			query = query.Where("uploaded_at <= ?", endTime)
		}

		// 文件名过滤
		if fileName, ok := filters["file_name"].(string); ok && fileName != "" {
			query = query.Where("file_name LIKE ?", "%"+fileName+"%")
		}
	}

	// 获取总数
	err := query.Count(&total).Error
	if err != nil {
		return nil, 0, err
	}

	// 应用排序、分页并执行查询
	err = query.Order("uploaded_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&contracts).Error

	if err != nil {
		return nil, 0, err
	}

	return contracts, total, nil
}

// Delete 删除合同及其条款块和分析结果
func (r *contractRepository) Delete(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// 1. 删除条款块
		if err := tx.Where("contract_id = ?", id).Delete(&models.ContractClause{}).Error; err != nil {
			return err
		}

		// 2. 删除分析结果
		if err := tx.Where("contract_id = ?", id).Delete(&models.Analysis{}).Error; err != nil {
			return err
		}

		// 3. 删除合同记录
		return tx.Where("id = ?", id).Delete(&models.Contract{}).Error
	})
}

// UpdateStatus 更新合同状态
func (r *contractRepository) UpdateStatus(id string, status models.ContractStatus, errorMsg string) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	if errorMsg != "" {
		updates["error"] = errorMsg
	}

	// 分析结束时记录完成时间
	if status == models.ContractStatusAnalyzed || status == models.ContractStatusFailed {
		now := time.Now()
		updates["analyzed_at"] = &now
	}

	return r.db.Model(&models.Contract{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SaveClauses 批量保存合同条款块
func (r *contractRepository) SaveClauses(clauses []*models.ContractClause) error {
	if len(clauses) == 0 {
		return nil
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(clauses, 100).Error
	})
}

// GetClauses 获取合同的所有条款块
func (r *contractRepository) GetClauses(contractID string) ([]*models.ContractClause, error) {
	var clauses []*models.ContractClause
	err := r.db.Where("contract_id = ?", contractID).
		Order("position ASC").
		Find(&clauses).Error
	return clauses, err
}

// DeleteClauses 删除合同的所有条款块
func (r *contractRepository) DeleteClauses(contractID string) error {
	return r.db.Where("contract_id = ?", contractID).
		Delete(&models.ContractClause{}).Error
}

// SaveAnalysis 保存分析结果，同一合同重复分析时覆盖
func (r *contractRepository) SaveAnalysis(analysis *models.Analysis) error {
	if analysis.ContractID == "" {
		return errors.New("contract ID cannot be empty")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var existing models.Analysis
		err := tx.Where("contract_id = ?", analysis.ContractID).First(&existing).Error
		if err == nil {
			analysis.ID = existing.ID
			analysis.CreatedAt = existing.CreatedAt
			return tx.Save(analysis).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(analysis).Error
	})
}

// GetAnalysis 获取合同的分析结果
func (r *contractRepository) GetAnalysis(contractID string) (*models.Analysis, error) {
	var analysis models.Analysis
	err := r.db.Where("contract_id = ?", contractID).First(&analysis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrAnalysisNotFound
		}
		return nil, err
	}
	return &analysis, nil
}
