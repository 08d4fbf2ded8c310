package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/contract-analyzer/internal/cache"
	"github.com/fyerfyer/contract-analyzer/internal/models"
	"github.com/fyerfyer/contract-analyzer/internal/repository"
	"github.com/fyerfyer/contract-analyzer/pkg/storage"
)

// 测试用的合同文本，覆盖多个条款类别和风险关键词
const sampleContractText = `Confidentiality: Each party shall keep all disclosed information secret. The receiving party shall indemnify the disclosing party against third party claims.

Termination: Either party may terminate this agreement with thirty days notice. The sole remedy for breach is liquidated damages.

Governing Law: This agreement is governed by the laws of Delaware. Payment is due within thirty days of invoice.`

// newTestContractService 创建使用临时目录存储和内存缓存的合同服务
func newTestContractService(t *testing.T) (*ContractService, repository.ContractRepository) {
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	c, err := cache.NewCache(cache.DefaultConfig())
	require.NoError(t, err)

	repo := setupServiceRepo(t)
	service := NewContractService(store, c,
		WithContractRepository(repo),
		WithStatusManager(NewContractStatusManager(repo, nil)),
	)
	require.NoError(t, service.Init())

	return service, repo
}

// uploadTestContract 上传一份文本合同并返回记录
func uploadTestContract(t *testing.T, service *ContractService) *models.Contract {
	contract, err := service.UploadContract(context.Background(), strings.NewReader(sampleContractText), "agreement.txt", "")
	require.NoError(t, err)
	return contract
}

func TestUploadContract(t *testing.T) {
	service, _ := newTestContractService(t)

	contract := uploadTestContract(t, service)
	assert.NotEmpty(t, contract.ID)
	assert.Equal(t, "agreement.txt", contract.FileName)
	assert.Equal(t, "txt", contract.FileType)
	assert.Equal(t, models.ContractStatusUploaded, contract.Status)

	// 正文已同步解析并保存
	assert.Contains(t, contract.RawText, "Confidentiality")
	assert.Contains(t, contract.RawText, "liquidated damages")
}

func TestUploadContract_WithTags(t *testing.T) {
	service, _ := newTestContractService(t)

	contract, err := service.UploadContract(context.Background(), strings.NewReader(sampleContractText), "agreement.txt", "nda,vendor")
	require.NoError(t, err)
	assert.Equal(t, "nda,vendor", contract.Tags)
}

func TestUploadContract_UnsupportedType(t *testing.T) {
	service, _ := newTestContractService(t)

	_, err := service.UploadContract(context.Background(), strings.NewReader("binary"), "photo.png", "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestGetContractText(t *testing.T) {
	service, repo := newTestContractService(t)
	contract := uploadTestContract(t, service)

	// 首次获取命中缓存（上传时写入）
	text, err := service.GetContractText(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.Contains(t, text, "Confidentiality")

	// 清空缓存后回源数据库
	require.NoError(t, service.cache.Clear())
	text, err = service.GetContractText(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.Contains(t, text, "Termination")

	// 未解析的合同报错
	require.NoError(t, repo.Create(&models.Contract{
		ID:       "unparsed",
		FileName: "raw.txt",
		FileType: "txt",
		FilePath: "contracts/raw.txt",
		Status:   models.ContractStatusUploaded,
	}))
	_, err = service.GetContractText(context.Background(), "unparsed")
	assert.Error(t, err)
}

func TestGetContractTextNormalization(t *testing.T) {
	service, _ := newTestContractService(t)

	// 非ASCII片段在保存时被替换为空格
	content := "Payment due in 30 days – net terms apply."
	contract, err := service.UploadContract(context.Background(), strings.NewReader(content), "payment.txt", "")
	require.NoError(t, err)

	assert.NotContains(t, contract.RawText, "–")
	assert.Contains(t, contract.RawText, "Payment due in 30 days")
}

func TestListContracts(t *testing.T) {
	service, _ := newTestContractService(t)

	uploadTestContract(t, service)
	_, err := service.UploadContract(context.Background(), strings.NewReader("Notice: short contract."), "short.md", "")
	require.NoError(t, err)

	contracts, total, err := service.ListContracts(context.Background(), 0, 10, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, contracts, 2)

	// 按文件名筛选
	contracts, total, err = service.ListContracts(context.Background(), 0, 10, map[string]interface{}{"file_name": "short"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, contracts, 1)
	assert.Equal(t, "short.md", contracts[0].FileName)
}

func TestUpdateContractTags(t *testing.T) {
	service, _ := newTestContractService(t)
	contract := uploadTestContract(t, service)

	require.NoError(t, service.UpdateContractTags(context.Background(), contract.ID, "legal,urgent"))

	got, err := service.GetContract(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.Equal(t, "legal,urgent", got.Tags)
}

func TestDeleteContract(t *testing.T) {
	service, _ := newTestContractService(t)
	contract := uploadTestContract(t, service)

	require.NoError(t, service.DeleteContract(context.Background(), contract.ID))

	_, err := service.GetContract(context.Background(), contract.ID)
	assert.ErrorIs(t, err, models.ErrContractNotFound)

	// 文件也已删除
	exists, err := service.storage.Exists(contract.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGetContractInfo(t *testing.T) {
	service, _ := newTestContractService(t)
	contract := uploadTestContract(t, service)

	info, err := service.GetContractInfo(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.Equal(t, contract.ID, info["contract_id"])
	assert.Equal(t, "agreement.txt", info["filename"])
	assert.Equal(t, models.ContractStatusUploaded, info["status"])
	assert.NotContains(t, info, "error")
}

func TestGetContractStatus(t *testing.T) {
	service, _ := newTestContractService(t)
	contract := uploadTestContract(t, service)

	status, err := service.GetContractStatus(context.Background(), contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusUploaded, status)

	_, err = service.GetContractStatus(context.Background(), "missing")
	assert.Error(t, err)
}
