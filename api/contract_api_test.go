package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fyerfyer/contract-analyzer/api/handler"
	"github.com/fyerfyer/contract-analyzer/internal/cache"
	"github.com/fyerfyer/contract-analyzer/internal/models"
	"github.com/fyerfyer/contract-analyzer/internal/repository"
	"github.com/fyerfyer/contract-analyzer/internal/services"
	"github.com/fyerfyer/contract-analyzer/pkg/storage"
)

// 测试用的合同文本
const testContractText = `Confidentiality: Each party shall keep all disclosed information secret. The receiving party shall indemnify the disclosing party against third party claims.

Termination: Either party may terminate this agreement with thirty days notice. The sole remedy for breach is liquidated damages.

Governing Law: This agreement is governed by the laws of Delaware. Payment is due within thirty days of invoice.`

// setupTestRouter 构建带完整服务栈的测试路由
func setupTestRouter(t *testing.T) *gin.Engine {
	gin.SetMode(gin.TestMode)

	dbName := fmt.Sprintf("file:memdb_api_%d?mode=memory", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Contract{}, &models.ContractClause{}, &models.Analysis{}))
	repo := repository.NewContractRepositoryWithDB(db)

	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	c, err := cache.NewCache(cache.DefaultConfig())
	require.NoError(t, err)

	statusManager := services.NewContractStatusManager(repo, nil)
	contractService := services.NewContractService(store, c,
		services.WithContractRepository(repo),
		services.WithStatusManager(statusManager),
	)
	analysisService := services.NewAnalysisService(repo, c,
		services.WithAnalysisStatusManager(statusManager),
	)

	return SetupRouter(
		handler.NewContractHandler(contractService),
		handler.NewAnalysisHandler(analysisService),
		nil,
	)
}

// uploadContractFile 通过multipart表单上传合同，返回合同ID
func uploadContractFile(t *testing.T, router *gin.Engine, filename, content string) string {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/contracts", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Code int `json:"code"`
		Data struct {
			ContractID string `json:"contract_id"`
			Status     string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Code)
	require.NotEmpty(t, resp.Data.ContractID)
	return resp.Data.ContractID
}

// doRequest 发送请求并返回响应记录器
func doRequest(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestUploadContractEndpoint(t *testing.T) {
	router := setupTestRouter(t)

	contractID := uploadContractFile(t, router, "agreement.txt", testContractText)
	assert.NotEmpty(t, contractID)

	// 获取合同信息
	w := doRequest(router, http.MethodGet, "/api/contracts/"+contractID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "agreement.txt")
	assert.Contains(t, w.Body.String(), "uploaded")
}

func TestUploadContract_InvalidType(t *testing.T) {
	router := setupTestRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a contract"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/contracts", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadContract_MissingFile(t *testing.T) {
	router := setupTestRouter(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("tags", "nda"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/contracts", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeContractEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	contractID := uploadContractFile(t, router, "agreement.txt", testContractText)

	w := doRequest(router, http.MethodPost, "/api/contracts/"+contractID+"/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Code int `json:"code"`
		Data struct {
			ContractID       string `json:"contract_id"`
			ClauseCount      int    `json:"clause_count"`
			OverallRiskScore int    `json:"overall_risk_score"`
			Report           struct {
				Summary   string `json:"summary"`
				Checklist []struct {
					Item    string `json:"item"`
					Present bool   `json:"present"`
				} `json:"checklist"`
			} `json:"report"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, contractID, resp.Data.ContractID)
	assert.Equal(t, 3, resp.Data.ClauseCount)
	assert.Greater(t, resp.Data.OverallRiskScore, 0)
	assert.NotEmpty(t, resp.Data.Report.Summary)
	assert.Len(t, resp.Data.Report.Checklist, 15)
}

func TestAnalyzeContract_NotFound(t *testing.T) {
	router := setupTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/contracts/missing/analyze", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetReportEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	contractID := uploadContractFile(t, router, "agreement.txt", testContractText)

	// 未分析时报告不存在
	w := doRequest(router, http.MethodGet, "/api/contracts/"+contractID+"/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// 分析后可获取报告
	w = doRequest(router, http.MethodPost, "/api/contracts/"+contractID+"/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/contracts/"+contractID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "overall_risk_score")
	assert.Contains(t, w.Body.String(), "confidentiality")
}

func TestExportReportEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	contractID := uploadContractFile(t, router, "agreement.txt", testContractText)

	w := doRequest(router, http.MethodPost, "/api/contracts/"+contractID+"/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/contracts/"+contractID+"/report/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	// 导出内容是合法的报告JSON
	var report map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Contains(t, report, "summary")
	assert.Contains(t, report, "checklist")
}

func TestGetClausesEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	contractID := uploadContractFile(t, router, "agreement.txt", testContractText)

	w := doRequest(router, http.MethodPost, "/api/contracts/"+contractID+"/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/contracts/"+contractID+"/clauses", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Total   int `json:"total"`
			Clauses []struct {
				Index   int    `json:"index"`
				Heading string `json:"heading"`
			} `json:"clauses"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Data.Total)
	require.Len(t, resp.Data.Clauses, 3)
	assert.Equal(t, "Confidentiality:", resp.Data.Clauses[0].Heading)
}

func TestSearchClausesEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	contractID := uploadContractFile(t, router, "agreement.txt", testContractText)

	w := doRequest(router, http.MethodPost, "/api/contracts/"+contractID+"/analyze", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// 命中检索
	w = doRequest(router, http.MethodGet, "/api/contracts/"+contractID+"/search?q=liquidated", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Total int `json:"total"`
			Hits  []struct {
				Text string `json:"text"`
			} `json:"hits"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Total)

	// 缺少检索关键词
	w = doRequest(router, http.MethodGet, "/api/contracts/"+contractID+"/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetContractTextEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	contractID := uploadContractFile(t, router, "agreement.txt", testContractText)

	w := doRequest(router, http.MethodGet, "/api/contracts/"+contractID+"/text", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Confidentiality")
}

func TestListContractsEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	uploadContractFile(t, router, "agreement.txt", testContractText)
	uploadContractFile(t, router, "nda.md", "Privacy: personal data shall be protected.")

	w := doRequest(router, http.MethodGet, "/api/contracts?page=1&page_size=10", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Total     int64 `json:"total"`
			Contracts []struct {
				FileName string `json:"filename"`
			} `json:"contracts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Data.Total)
	assert.Len(t, resp.Data.Contracts, 2)
}

func TestUpdateTagsEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	contractID := uploadContractFile(t, router, "agreement.txt", testContractText)

	body, _ := json.Marshal(map[string]string{"tags": "nda,vendor"})
	w := doRequest(router, http.MethodPut, "/api/contracts/"+contractID+"/tags", body)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/contracts/"+contractID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nda,vendor")
}

func TestDeleteContractEndpoint(t *testing.T) {
	router := setupTestRouter(t)
	contractID := uploadContractFile(t, router, "agreement.txt", testContractText)

	w := doRequest(router, http.MethodDelete, "/api/contracts/"+contractID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(router, http.MethodGet, "/api/contracts/"+contractID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetContract_NotFound(t *testing.T) {
	router := setupTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/contracts/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
