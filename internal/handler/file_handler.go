package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/executa/knowledge-engine/internal/middleware"
	"github.com/executa/knowledge-engine/internal/service/ingest"
)

// FileHandler 知识文件处理器
type FileHandler struct {
	ingestSvc *ingest.Service
}

// NewFileHandler 创建文件处理器
func NewFileHandler(ingestSvc *ingest.Service) *FileHandler {
	return &FileHandler{ingestSvc: ingestSvc}
}

// UploadFiles 直接上传文件批次
// @Summary      上传文件
// @Description  上传一批文件并提取文本，内容相同的文件自动去重
// @Tags         文件管理
// @Accept       multipart/form-data
// @Produce      json
// @Param        files        formData  file    true   "文件（可多个）"
// @Param        session_name formData  string  false  "批次名称"
// @Param        assistant_id formData  string  false  "关联的助手ID"
// @Success      201  {object}  SuccessResponse  "上传结果"
// @Failure      400  {object}  ErrorResponse    "请求无效"
// @Router       /files/upload [post]
func (h *FileHandler) UploadFiles(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "invalid multipart form: "+err.Error())
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		BadRequest(c, "no files provided")
		return
	}

	items := make([]ingest.Item, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		f, err := fh.Open()
		if err != nil {
			BadRequest(c, "open uploaded file: "+err.Error())
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			BadRequest(c, "read uploaded file: "+err.Error())
			return
		}
		items = append(items, ingest.Item{
			Name:     fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	result, err := h.ingestSvc.UploadDirect(
		c.Request.Context(),
		accountID,
		c.PostForm("assistant_id"),
		middleware.GetAccountPlan(c),
		c.PostForm("session_name"),
		items,
	)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, result)
}

// ListFiles 分页列出账户文件
// @Summary      文件列表
// @Tags         文件管理
// @Produce      json
// @Param        page       query  int  false  "页码"
// @Param        page_size  query  int  false  "每页数量"
// @Success      200  {object}  SuccessResponse
// @Router       /files [get]
func (h *FileHandler) ListFiles(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	files, total, err := h.ingestSvc.ListFiles(accountID, page, pageSize)
	if err != nil {
		Error(c, err)
		return
	}
	SuccessWithPagination(c, files, total, page, pageSize)
}

// GetFile 获取文件详情
// @Summary      获取文件
// @Tags         文件管理
// @Produce      json
// @Param        id   path      string  true  "文件ID"
// @Success      200  {object}  SuccessResponse
// @Failure      404  {object}  ErrorResponse  "文件不存在"
// @Router       /files/{id} [get]
func (h *FileHandler) GetFile(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	file, err := h.ingestSvc.GetFile(accountID, c.Param("id"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, file)
}

// RetryFile 重试失败的文件
// @Summary      重试提取
// @Description  对 ERROR 状态的文件重新执行提取流水线
// @Tags         文件管理
// @Produce      json
// @Param        id   path      string  true  "文件ID"
// @Success      200  {object}  SuccessResponse
// @Failure      400  {object}  ErrorResponse  "文件不处于可重试状态"
// @Router       /files/{id}/retry [post]
func (h *FileHandler) RetryFile(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	file, err := h.ingestSvc.RetryFile(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		// 重试再次失败时文件记录仍然返回，供前端展示错误
		if file != nil {
			Success(c, gin.H{"file": file, "error": err.Error()})
			return
		}
		Error(c, err)
		return
	}
	Success(c, file)
}

// GetSession 查询处理会话进度
// @Summary      会话进度
// @Tags         文件管理
// @Produce      json
// @Param        id   path      string  true  "会话ID"
// @Success      200  {object}  SuccessResponse
// @Failure      404  {object}  ErrorResponse  "会话不存在"
// @Router       /sessions/{id} [get]
func (h *FileHandler) GetSession(c *gin.Context) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		Unauthorized(c, "account not resolved")
		return
	}

	session, err := h.ingestSvc.GetSession(accountID, c.Param("id"))
	if err != nil {
		NotFound(c, err.Error())
		return
	}
	Success(c, session)
}
