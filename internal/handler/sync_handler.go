package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/executa/knowledge-engine/internal/middleware"
	"github.com/executa/knowledge-engine/internal/model"
	"github.com/executa/knowledge-engine/internal/repository"
	"github.com/executa/knowledge-engine/internal/service/ingest"
	syncsvc "github.com/executa/knowledge-engine/internal/service/sync"
)

// SyncHandler 数据源同步与助手关联处理器
type SyncHandler struct {
	syncSvc     *syncsvc.Orchestrator
	ingestSvc   *ingest.Service
	connections *repository.ConnectionRepository
}

// NewSyncHandler 创建同步处理器
func NewSyncHandler(syncSvc *syncsvc.Orchestrator, ingestSvc *ingest.Service, connections *repository.ConnectionRepository) *SyncHandler {
	return &SyncHandler{
		syncSvc:     syncSvc,
		ingestSvc:   ingestSvc,
		connections: connections,
	}
}

// SyncRequest 触发同步的请求体
type SyncRequest struct {
	Provider string `json:"provider" binding:"required"`
}

// SyncFromSource 从外部数据源同步到助手
// @Summary      触发同步
// @Description  从已连接的数据源增量同步文件并关联到助手
// @Tags         同步
// @Accept       json
// @Produce      json
// @Param        id       path  string       true  "助手ID"
// @Param        request  body  SyncRequest  true  "同步请求"
// @Success      200  {object}  SuccessResponse  "同步统计"
// @Failure      400  {object}  ErrorResponse    "数据源未连接"
// @Failure      409  {object}  ErrorResponse    "已有同步在执行"
// @Router       /assistants/{id}/sync [post]
func (h *SyncHandler) SyncFromSource(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	var req SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.syncSvc.SyncFromSource(
		c.Request.Context(),
		accountID,
		c.Param("id"),
		req.Provider,
		middleware.GetAccountPlan(c),
	)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, result)
}

// ListAssistantFiles 列出助手已关联的文件
// @Summary      助手文件列表
// @Tags         同步
// @Produce      json
// @Param        id   path      string  true  "助手ID"
// @Success      200  {object}  SuccessResponse
// @Router       /assistants/{id}/files [get]
func (h *SyncHandler) ListAssistantFiles(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	files, err := h.ingestSvc.ListAssistantFiles(accountID, c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, files)
}

// UnlinkFile 把文件从助手上解除关联
// @Summary      解除关联
// @Description  解除助手与文件的关联，最后一个引用消失时删除文件本体
// @Tags         同步
// @Produce      json
// @Param        id      path  string  true  "助手ID"
// @Param        fileId  path  string  true  "文件ID"
// @Success      200  {object}  SuccessResponse  "解除结果"
// @Failure      404  {object}  ErrorResponse    "关联不存在"
// @Router       /assistants/{id}/files/{fileId} [delete]
func (h *SyncHandler) UnlinkFile(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	// 先确认文件属于该账户，避免跨账户解除关联
	if _, err := h.ingestSvc.GetFile(accountID, c.Param("fileId")); err != nil {
		Error(c, err)
		return
	}

	result, err := h.ingestSvc.UnlinkFile(c.Request.Context(), c.Param("id"), c.Param("fileId"))
	if err != nil {
		NotFound(c, "link not found")
		return
	}
	Success(c, result)
}

// ConnectRequest 连接数据源的请求体
type ConnectRequest struct {
	Email        string     `json:"email"`
	AccessToken  string     `json:"access_token" binding:"required"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresAt    *time.Time `json:"expires_at"`
}

// ConnectIntegration 保存数据源凭证
// @Summary      连接数据源
// @Tags         集成
// @Accept       json
// @Produce      json
// @Param        provider  path  string          true  "提供方"
// @Param        request   body  ConnectRequest  true  "凭证"
// @Success      201  {object}  SuccessResponse
// @Router       /integrations/{provider} [post]
func (h *SyncHandler) ConnectIntegration(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	provider := c.Param("provider")
	switch provider {
	case model.ProviderDropbox, model.ProviderGoogleDrive, model.ProviderGmail:
	default:
		BadRequest(c, "unsupported provider: "+provider)
		return
	}

	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}

	conn := &model.SourceConnection{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Provider:     provider,
		Email:        req.Email,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    req.ExpiresAt,
		IsActive:     true,
	}
	if err := h.connections.Upsert(conn); err != nil {
		Error(c, err)
		return
	}

	stored, err := h.connections.GetActive(accountID, provider)
	if err != nil || stored == nil {
		Error(c, err)
		return
	}
	Created(c, stored)
}

// GetIntegration 查询数据源连接状态
// @Summary      连接状态
// @Tags         集成
// @Produce      json
// @Param        provider  path  string  true  "提供方"
// @Success      200  {object}  SuccessResponse
// @Failure      404  {object}  ErrorResponse  "未连接"
// @Router       /integrations/{provider} [get]
func (h *SyncHandler) GetIntegration(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	conn, err := h.connections.GetActive(accountID, c.Param("provider"))
	if err != nil {
		Error(c, err)
		return
	}
	if conn == nil {
		NotFound(c, "not connected: "+c.Param("provider"))
		return
	}
	Success(c, conn)
}

// DisconnectIntegration 断开数据源连接
// @Summary      断开连接
// @Description  停用连接，已同步的文件保留
// @Tags         集成
// @Produce      json
// @Param        provider  path  string  true  "提供方"
// @Success      200  {object}  SuccessResponse
// @Router       /integrations/{provider} [delete]
func (h *SyncHandler) DisconnectIntegration(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	if err := h.connections.Deactivate(accountID, c.Param("provider")); err != nil {
		Error(c, err)
		return
	}
	Success(c, gin.H{"disconnected": true})
}
