package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ContractStatus 合同处理状态类型
type ContractStatus string

const (
	// ContractStatusUploaded 合同已上传，等待分析
	ContractStatusUploaded ContractStatus = "uploaded"
	// ContractStatusProcessing 合同分析中
	ContractStatusProcessing ContractStatus = "processing"
	// ContractStatusAnalyzed 合同分析完成
	ContractStatusAnalyzed ContractStatus = "analyzed"
	// ContractStatusFailed 合同分析失败
	ContractStatusFailed ContractStatus = "failed"
)

// Contract 合同数据模型
// 用于存储合同文件的元数据和规整后的正文
type Contract struct {
	ID          string         `gorm:"primaryKey"`        // 合同ID，主键
	FileName    string         `gorm:"not null"`          // 文件名
	FileType    string         `gorm:"not null"`          // 文件类型
	FilePath    string         `gorm:"not null"`          // 存储路径
	FileSize    int64          `gorm:"not null"`          // 文件大小（字节）
	Status      ContractStatus `gorm:"not null;index"`    // 处理状态
	RawText     string         `gorm:"type:text"`         // 规整后的合同全文
	UploadedAt  time.Time      `gorm:"not null;index"`    // 上传时间
	AnalyzedAt  *time.Time     `gorm:"index"`             // 分析完成时间
	UpdatedAt   time.Time      `gorm:"not null;index"`    // 更新时间
	Error       string         `gorm:"type:text"`         // 错误信息
	ClauseCount int            `gorm:"not null;default:0"` // 切分出的条款块数量
	Tags        string         `gorm:"type:varchar(255)"` // 标签，逗号分隔
	Metadata    datatypes.JSON `gorm:"type:json"`         // 元数据，JSON格式
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (c *Contract) BeforeCreate(tx *gorm.DB) (err error) {
	if c.UploadedAt.IsZero() {
		c.UploadedAt = time.Now()
	}
	c.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (c *Contract) BeforeUpdate(tx *gorm.DB) (err error) {
	c.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Contract) TableName() string {
	return "contracts"
}

// ContractClause 合同条款块数据模型
// 用于在数据库中跟踪合同切分出的条款块
type ContractClause struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"` // 主键ID
	ContractID string    `gorm:"not null;index"`           // 所属合同ID
	Position   int       `gorm:"not null"`                 // 条款块位置
	Heading    string    `gorm:"type:varchar(255)"`        // 条款标题（如果有）
	Text       string    `gorm:"type:text;not null"`       // 条款文本内容
	CreatedAt  time.Time `gorm:"not null"`                 // 创建时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (cc *ContractClause) BeforeCreate(tx *gorm.DB) (err error) {
	if cc.CreatedAt.IsZero() {
		cc.CreatedAt = time.Now()
	}
	return nil
}

// TableName 明确指定表名
func (ContractClause) TableName() string {
	return "contract_clauses"
}

// Analysis 合同分析结果数据模型
// 完整报告以JSON形式整体存储，总分单列便于检索
type Analysis struct {
	ID               uint           `gorm:"primaryKey;autoIncrement"` // 主键ID
	ContractID       string         `gorm:"not null;uniqueIndex"`     // 所属合同ID
	Summary          string         `gorm:"type:text"`                // 摘要文本
	Report           datatypes.JSON `gorm:"type:json"`                // 完整分析报告
	OverallRiskScore int            `gorm:"not null;default:0;index"` // 总体风险分
	Summarizer       string         `gorm:"size:50"`                  // 摘要来源（extractive或模型名）
	CreatedAt        time.Time      `gorm:"not null"`                 // 创建时间
	UpdatedAt        time.Time      `gorm:"not null"`                 // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (a *Analysis) BeforeCreate(tx *gorm.DB) (err error) {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (a *Analysis) BeforeUpdate(tx *gorm.DB) (err error) {
	a.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (Analysis) TableName() string {
	return "contract_analyses"
}
