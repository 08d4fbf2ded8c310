package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/fyerfyer/contract-analyzer/api/middleware"
	"github.com/fyerfyer/contract-analyzer/api/model"
	"github.com/fyerfyer/contract-analyzer/internal/models"
	"github.com/fyerfyer/contract-analyzer/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AnalysisHandler 处理合同分析相关的API请求
type AnalysisHandler struct {
	analysisService *services.AnalysisService // 分析服务
	logger          *logrus.Logger            // 日志记录器
}

// NewAnalysisHandler 创建新的分析处理器
func NewAnalysisHandler(analysisService *services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		logger:          middleware.GetLogger(),
	}
}

// AnalyzeContract 对合同执行完整分析
// POST /api/contracts/:id/analyze
func (h *AnalysisHandler) AnalyzeContract(c *gin.Context) {
	var req model.ContractIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的合同ID"))
		return
	}

	// 分析参数可选
	var body model.AnalyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil && err.Error() != "EOF" {
		middleware.HandleError(c, middleware.NewValidationError("无效的分析参数"))
		return
	}

	report, clauseCount, err := h.analysisService.AnalyzeWithSentences(c.Request.Context(), req.ID, body.SummarySentences)
	if err != nil {
		if errors.Is(err, models.ErrContractNotFound) {
			middleware.HandleError(c, err)
			return
		}

		h.logger.WithError(err).WithField("contract_id", req.ID).Error("Failed to analyze contract")
		middleware.HandleError(c, middleware.NewInternalError("合同分析失败", err.Error()))
		return
	}

	resp := model.AnalyzeResponse{
		ContractID:       req.ID,
		ClauseCount:      clauseCount,
		OverallRiskScore: report.OverallRiskScore,
		Report:           report,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetReport 获取合同的分析报告
// GET /api/contracts/:id/report
func (h *AnalysisHandler) GetReport(c *gin.Context) {
	var req model.ContractIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的合同ID"))
		return
	}

	report, err := h.analysisService.GetReport(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrAnalysisNotFound) {
			middleware.HandleError(c, err)
			return
		}

		h.logger.WithError(err).WithField("contract_id", req.ID).Error("Failed to get report")
		middleware.HandleError(c, middleware.NewInternalError("获取分析报告失败"))
		return
	}

	resp := model.ReportResponse{
		ContractID: req.ID,
		Report:     report,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ExportReport 导出分析报告为JSON文件
// GET /api/contracts/:id/report/export
func (h *AnalysisHandler) ExportReport(c *gin.Context) {
	var req model.ContractIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的合同ID"))
		return
	}

	data, err := h.analysisService.ExportReport(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrAnalysisNotFound) {
			middleware.HandleError(c, err)
			return
		}

		h.logger.WithError(err).WithField("contract_id", req.ID).Error("Failed to export report")
		middleware.HandleError(c, middleware.NewInternalError("导出分析报告失败"))
		return
	}

	filename := fmt.Sprintf("contract-report-%s.json", req.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// GetClauses 获取合同切分出的条款块
// GET /api/contracts/:id/clauses
func (h *AnalysisHandler) GetClauses(c *gin.Context) {
	var req model.ContractIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的合同ID"))
		return
	}

	clauses, err := h.analysisService.GetClauses(c.Request.Context(), req.ID)
	if err != nil {
		h.logger.WithError(err).WithField("contract_id", req.ID).Error("Failed to get clauses")
		middleware.HandleError(c, middleware.NewInternalError("获取条款块失败"))
		return
	}

	resp := model.ClausesResponse{
		ContractID: req.ID,
		Total:      len(clauses),
		Clauses:    model.ConvertToClauseInfo(clauses),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// SearchClauses 在合同条款块中检索
// GET /api/contracts/:id/search?q=keyword
func (h *AnalysisHandler) SearchClauses(c *gin.Context) {
	var req model.ContractIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的合同ID"))
		return
	}

	var query model.ClauseSearchRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("检索关键词不能为空"))
		return
	}

	hits, err := h.analysisService.SearchClauses(c.Request.Context(), req.ID, query.Query)
	if err != nil {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"contract_id": req.ID,
			"query":       query.Query,
		}).Error("Failed to search clauses")

		middleware.HandleError(c, middleware.NewInternalError("条款检索失败"))
		return
	}

	resp := model.ClauseSearchResponse{
		ContractID: req.ID,
		Query:      query.Query,
		Total:      len(hits),
		Hits:       model.ConvertToClauseInfo(hits),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
