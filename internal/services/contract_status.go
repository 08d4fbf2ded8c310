package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fyerfyer/contract-analyzer/internal/models"
	"github.com/fyerfyer/contract-analyzer/internal/repository"
	"github.com/sirupsen/logrus"
)

// ContractStatusManager 合同状态管理器
// 负责管理合同处理的生命周期状态
type ContractStatusManager struct {
	repo   repository.ContractRepository // 合同仓储接口
	logger *logrus.Logger                // 日志记录器
	mu     sync.Mutex                    // 互斥锁，保证状态转换的原子性
}

// NewContractStatusManager 创建合同状态管理器
func NewContractStatusManager(repo repository.ContractRepository, logger *logrus.Logger) *ContractStatusManager {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	return &ContractStatusManager{
		repo:   repo,
		logger: logger,
	}
}

// MarkAsUploaded 将合同标记为已上传状态
func (m *ContractStatusManager) MarkAsUploaded(ctx context.Context, contractID string, fileName string, filePath string, fileSize int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithFields(logrus.Fields{
		"contract_id": contractID,
		"filename":    fileName,
	}).Info("Marking contract as uploaded")

	// 创建新的合同记录
	contract := &models.Contract{
		ID:         contractID,
		FileName:   fileName,
		FileType:   getFileType(fileName),
		FilePath:   filePath,
		FileSize:   fileSize,
		Status:     models.ContractStatusUploaded,
		UploadedAt: time.Now(),
		UpdatedAt:  time.Now(),
	}

	// 保存到仓储
	return m.repo.Create(contract)
}

// MarkAsProcessing 将合同标记为分析中状态
// 允许从uploaded进入，也允许analyzed/failed进入（重新分析和重试）
func (m *ContractStatusManager) MarkAsProcessing(ctx context.Context, contractID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前合同
	contract, err := m.repo.GetByID(contractID)
	if err != nil {
		return fmt.Errorf("failed to get contract: %w", err)
	}

	// 检查状态转换的有效性
	if contract.Status == models.ContractStatusProcessing {
		return fmt.Errorf("invalid state transition: contract %s is already being processed", contractID)
	}

	m.logger.WithField("contract_id", contractID).Info("Marking contract as processing")

	// 更新状态
	return m.repo.UpdateStatus(contractID, models.ContractStatusProcessing, "")
}

// MarkAsAnalyzed 将合同标记为分析完成状态
func (m *ContractStatusManager) MarkAsAnalyzed(ctx context.Context, contractID string, clauseCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前合同
	contract, err := m.repo.GetByID(contractID)
	if err != nil {
		return fmt.Errorf("failed to get contract: %w", err)
	}

	// 检查状态转换的有效性
	if contract.Status != models.ContractStatusProcessing && contract.Status != models.ContractStatusUploaded {
		return fmt.Errorf("invalid state transition: contract %s is in %s state, expected %s or %s",
			contractID, contract.Status, models.ContractStatusProcessing, models.ContractStatusUploaded)
	}

	m.logger.WithFields(logrus.Fields{
		"contract_id":  contractID,
		"clause_count": clauseCount,
	}).Info("Marking contract as analyzed")

	// 更新状态
	if err := m.repo.UpdateStatus(contractID, models.ContractStatusAnalyzed, ""); err != nil {
		return err
	}

	// 更新合同记录，记录条款块数量
	contract.Status = models.ContractStatusAnalyzed
	contract.ClauseCount = clauseCount
	return m.repo.Update(contract)
}

// MarkAsFailed 将合同标记为处理失败状态
func (m *ContractStatusManager) MarkAsFailed(ctx context.Context, contractID string, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// 获取当前合同
	_, err := m.repo.GetByID(contractID)
	if err != nil {
		return fmt.Errorf("failed to get contract: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"contract_id": contractID,
		"error":       errorMsg,
	}).Error("Marking contract as failed")

	// 更新状态
	return m.repo.UpdateStatus(contractID, models.ContractStatusFailed, errorMsg)
}

// GetStatus 获取合同当前状态
func (m *ContractStatusManager) GetStatus(ctx context.Context, contractID string) (models.ContractStatus, error) {
	contract, err := m.repo.GetByID(contractID)
	if err != nil {
		return "", fmt.Errorf("failed to get contract status: %w", err)
	}
	return contract.Status, nil
}

// GetContract 获取完整的合同对象
func (m *ContractStatusManager) GetContract(ctx context.Context, contractID string) (*models.Contract, error) {
	return m.repo.GetByID(contractID)
}

// ListContracts 获取合同列表
func (m *ContractStatusManager) ListContracts(ctx context.Context, offset, limit int, filters map[string]interface{}) ([]*models.Contract, int64, error) {
	return m.repo.List(offset, limit, filters)
}

// DeleteContract 删除合同记录
func (m *ContractStatusManager) DeleteContract(ctx context.Context, contractID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.logger.WithField("contract_id", contractID).Info("Deleting contract record")
	return m.repo.Delete(contractID)
}

// ValidateStateTransition 验证状态转换的有效性
func (m *ContractStatusManager) ValidateStateTransition(from, to models.ContractStatus) error {
	// 定义有效的状态转换
	validTransitions := map[models.ContractStatus][]models.ContractStatus{
		models.ContractStatusUploaded: {
			models.ContractStatusProcessing,
			models.ContractStatusAnalyzed, // 小合同可能同步直接完成
			models.ContractStatusFailed,   // 上传后解析可能立即失败
		},
		models.ContractStatusProcessing: {
			models.ContractStatusAnalyzed,
			models.ContractStatusFailed,
		},
		// 分析完成和失败都允许重新进入处理（重新分析、重试）
		models.ContractStatusAnalyzed: {models.ContractStatusProcessing},
		models.ContractStatusFailed:   {models.ContractStatusProcessing},
	}

	// 检查是否是有效转换
	allowed := false
	for _, validTo := range validTransitions[from] {
		if validTo == to {
			allowed = true
			break
		}
	}

	if !allowed {
		return errors.New("invalid state transition")
	}

	return nil
}

// getFileType 根据文件名获取文件类型
func getFileType(fileName string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
}
