package handler

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fyerfyer/contract-analyzer/api/middleware"
	"github.com/fyerfyer/contract-analyzer/api/model"
	"github.com/fyerfyer/contract-analyzer/internal/document"
	"github.com/fyerfyer/contract-analyzer/internal/models"
	"github.com/fyerfyer/contract-analyzer/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ContractHandler 处理合同相关的API请求
type ContractHandler struct {
	contractService *services.ContractService // 合同服务
	logger          *logrus.Logger            // 日志记录器
}

// NewContractHandler 创建新的合同处理器
func NewContractHandler(contractService *services.ContractService) *ContractHandler {
	return &ContractHandler{
		contractService: contractService,
		logger:          middleware.GetLogger(),
	}
}

// UploadContract 处理合同上传请求
// POST /api/contracts
func (h *ContractHandler) UploadContract(c *gin.Context) {
	// 绑定请求参数
	var req model.ContractUploadRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithError(err).Warn("Invalid contract upload request")
		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数"))
		return
	}

	// 检查文件
	if req.File == nil {
		middleware.HandleError(c, middleware.NewValidationError("未提供文件"))
		return
	}

	// 检查文件类型
	filename := req.File.Filename
	if !document.IsSupportedExt(filepath.Ext(filename)) {
		middleware.HandleError(c, middleware.NewValidationError(
			"不支持的文件类型，仅支持 .pdf, .docx, .doc, .md, .markdown, .txt",
		))
		return
	}

	// 打开上传的文件
	file, err := req.File.Open()
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to open uploaded file")

		middleware.HandleError(c, middleware.NewInternalError("无法打开上传的文件"))
		return
	}
	defer file.Close()

	// 上传并解析合同
	contract, err := h.contractService.UploadContract(c.Request.Context(), file, filename, req.Tags)
	if err != nil {
		h.logger.WithFields(logrus.Fields{
			"error":    err.Error(),
			"filename": filename,
		}).Error("Failed to upload contract")

		middleware.HandleError(c, middleware.NewInternalError("合同上传失败", err.Error()))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"contract_id": contract.ID,
		"filename":    contract.FileName,
		"size":        contract.FileSize,
	}).Info("Contract uploaded successfully")

	resp := model.ContractUploadResponse{
		ContractID: contract.ID,
		FileName:   contract.FileName,
		Status:     string(contract.Status),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// GetContract 获取合同信息
// GET /api/contracts/:id
func (h *ContractHandler) GetContract(c *gin.Context) {
	var req model.ContractIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的合同ID"))
		return
	}

	contract, err := h.contractService.GetContract(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrContractNotFound) {
			middleware.HandleError(c, err)
			return
		}

		h.logger.WithError(err).WithField("contract_id", req.ID).Error("Failed to get contract")
		middleware.HandleError(c, middleware.NewInternalError("获取合同信息失败"))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.ConvertToContractInfo(contract)))
}

// GetContractText 获取合同规整后的正文
// GET /api/contracts/:id/text
func (h *ContractHandler) GetContractText(c *gin.Context) {
	var req model.ContractIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的合同ID"))
		return
	}

	text, err := h.contractService.GetContractText(c.Request.Context(), req.ID)
	if err != nil {
		if errors.Is(err, models.ErrContractNotFound) {
			middleware.HandleError(c, err)
			return
		}

		h.logger.WithError(err).WithField("contract_id", req.ID).Error("Failed to get contract text")
		middleware.HandleError(c, middleware.NewNotFoundError("合同正文不可用"))
		return
	}

	resp := model.ContractTextResponse{
		ContractID: req.ID,
		Text:       text,
		Chars:      len(text),
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// ListContracts 获取合同列表
// GET /api/contracts
func (h *ContractHandler) ListContracts(c *gin.Context) {
	// 绑定查询参数
	var req model.ContractListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的查询参数"))
		return
	}

	// 构建过滤条件
	filters := make(map[string]interface{})

	if req.Status != "" {
		filters["status"] = req.Status
	}

	if req.Tags != "" {
		filters["tags"] = req.Tags
	}

	if req.FileName != "" {
		filters["file_name"] = req.FileName
	}

	if req.StartTime != nil {
		filters["start_time"] = req.StartTime.Format(time.RFC3339)
	}

	if req.EndTime != nil {
		filters["end_time"] = req.EndTime.Format(time.RFC3339)
	}

	offset := (req.GetPage() - 1) * req.GetPageSize()
	contracts, total, err := h.contractService.ListContracts(c.Request.Context(), offset, req.GetPageSize(), filters)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list contracts")
		middleware.HandleError(c, middleware.NewInternalError("获取合同列表失败"))
		return
	}

	infos := make([]model.ContractInfo, len(contracts))
	for i, contract := range contracts {
		infos[i] = model.ConvertToContractInfo(contract)
	}

	resp := model.ContractListResponse{
		Total:     total,
		Page:      req.GetPage(),
		PageSize:  req.GetPageSize(),
		Contracts: infos,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}

// UpdateContractTags 更新合同标签
// PUT /api/contracts/:id/tags
func (h *ContractHandler) UpdateContractTags(c *gin.Context) {
	var req model.ContractIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的合同ID"))
		return
	}

	var body model.UpdateTagsRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的请求参数"))
		return
	}

	if err := h.contractService.UpdateContractTags(c.Request.Context(), req.ID, body.Tags); err != nil {
		if errors.Is(err, models.ErrContractNotFound) {
			middleware.HandleError(c, err)
			return
		}

		h.logger.WithError(err).WithField("contract_id", req.ID).Error("Failed to update contract tags")
		middleware.HandleError(c, middleware.NewInternalError("更新合同标签失败"))
		return
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(gin.H{
		"contract_id": req.ID,
		"tags":        body.Tags,
	}))
}

// DeleteContract 删除合同
// DELETE /api/contracts/:id
func (h *ContractHandler) DeleteContract(c *gin.Context) {
	var req model.ContractIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("无效的合同ID"))
		return
	}

	if err := h.contractService.DeleteContract(c.Request.Context(), req.ID); err != nil {
		if errors.Is(err, models.ErrContractNotFound) {
			middleware.HandleError(c, err)
			return
		}

		h.logger.WithError(err).WithField("contract_id", req.ID).Error("Failed to delete contract")
		middleware.HandleError(c, middleware.NewInternalError("删除合同失败"))
		return
	}

	h.logger.WithField("contract_id", req.ID).Info("Contract deleted successfully")

	resp := model.ContractDeleteResponse{
		Success:    true,
		ContractID: req.ID,
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(resp))
}
