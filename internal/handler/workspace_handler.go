// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"kb-space-go/internal/model"
	"kb-space-go/internal/service"
	"kb-space-go/pkg/log"
	"kb-space-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// WorkSpaceHandler 负责处理所有与工作空间树相关的 API 请求。
// 路由同时挂在组织层和项目层两个分组下，租户边界从路径参数解析。
type WorkSpaceHandler struct {
	wsService service.WorkSpaceService
}

// NewWorkSpaceHandler 创建一个新的 WorkSpaceHandler 实例。
func NewWorkSpaceHandler(wsService service.WorkSpaceService) *WorkSpaceHandler {
	return &WorkSpaceHandler{wsService: wsService}
}

// scopeFromContext 从路径参数解析租户边界：组织层或项目层二选一。
func scopeFromContext(c *gin.Context) (model.Scope, bool) {
	if raw := c.Param("organizationId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return model.Scope{}, false
		}
		return model.Scope{OrganizationID: uint(id)}, true
	}
	if raw := c.Param("projectId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return model.Scope{}, false
		}
		return model.Scope{ProjectID: uint(id)}, true
	}
	return model.Scope{}, false
}

// operatorFromContext 从认证中间件写入的 claims 中取出调用方身份。
func operatorFromContext(c *gin.Context) *token.CustomClaims {
	claimsValue, _ := c.Get("claims")
	return claimsValue.(*token.CustomClaims)
}

// pathID 解析路径中的节点 id。
func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// queryID 解析查询串中的可选 id 参数，缺省为 0。
func queryID(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}

// respondError 把树引擎的错误类别映射为 HTTP 状态码。
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrScopeMismatch), errors.Is(err, service.ErrCycle):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		// ErrIntegrity、ErrTreeTooLarge 与未知错误统一按服务端错误处理
		log.Error("工作空间操作失败", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "服务内部错误"})
	}
}

// Create 处理创建节点（及空页面）的请求。
func (h *WorkSpaceHandler) Create(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}

	var req struct {
		ParentID uint `json:"parentId"`
		service.CreateSpec
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := operatorFromContext(c)
	info, err := h.wsService.CreateWorkSpaceAndPage(c.Request.Context(), scope, req.ParentID, req.CreateSpec, claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "工作空间创建成功",
		"data":    info,
	})
}

// Query 处理单节点查询请求，searchStr 非空时返回内容高亮区间。
func (h *WorkSpaceHandler) Query(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的工作空间 id"})
		return
	}

	info, err := h.wsService.QueryWorkSpaceInfo(c.Request.Context(), scope, id, c.Query("searchStr"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "查询成功",
		"data":    info,
	})
}

// Update 处理节点与页面的部分更新请求。
func (h *WorkSpaceHandler) Update(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的工作空间 id"})
		return
	}

	var spec service.UpdateSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := operatorFromContext(c)
	info, err := h.wsService.UpdateWorkSpaceAndPage(c.Request.Context(), scope, id, c.Query("searchStr"), spec, claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "工作空间更新成功",
		"data":    info,
	})
}

// Move 处理节点移动请求。
func (h *WorkSpaceHandler) Move(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的工作空间 id"})
		return
	}

	var spec service.MoveSpec
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := operatorFromContext(c)
	if err := h.wsService.MoveWorkSpace(c.Request.Context(), scope, id, spec, claims.UserID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "工作空间移动成功",
	})
}

// QueryAllTree 处理全树查询请求，可按知识库过滤并围绕指定节点展开。
func (h *WorkSpaceHandler) QueryAllTree(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}
	expandID, ok := queryID(c, "expandWorkSpaceId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的展开节点 id"})
		return
	}
	baseID, ok := queryID(c, "baseId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的知识库 id"})
		return
	}

	tree, err := h.wsService.QueryAllTreeList(c.Request.Context(), scope, expandID, baseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "查询成功",
		"data":    tree,
	})
}

// QueryAllSpace 处理知识库下全部空间的平铺列表查询。
func (h *WorkSpaceHandler) QueryAllSpace(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}
	baseID, ok := queryID(c, "baseId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的知识库 id"})
		return
	}

	spaces, err := h.wsService.QueryAllSpaceByOptions(c.Request.Context(), scope, baseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "查询成功",
		"data":    spaces,
	})
}

// Remove 处理管理员删除请求：删除任意节点及其整棵子树。
func (h *WorkSpaceHandler) Remove(c *gin.Context) {
	h.remove(c, true)
}

// RemoveMy 处理普通用户删除请求：只能删除自己创建的节点。
func (h *WorkSpaceHandler) RemoveMy(c *gin.Context) {
	h.remove(c, false)
}

func (h *WorkSpaceHandler) remove(c *gin.Context, isAdmin bool) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的工作空间 id"})
		return
	}

	claims := operatorFromContext(c)
	if err := h.wsService.RemoveWorkSpaceAndPage(c.Request.Context(), scope, id, claims.UserID, isAdmin); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "工作空间删除成功",
	})
}

// ClonePage 处理单节点复制请求。
func (h *WorkSpaceHandler) ClonePage(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}
	id, ok := queryID(c, "workSpaceId")
	if !ok || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的工作空间 id"})
		return
	}

	claims := operatorFromContext(c)
	info, err := h.wsService.ClonePage(c.Request.Context(), scope, id, claims.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "页面复制成功",
		"data":    info,
	})
}

// BelongBaseExist 处理节点所属知识库存在性查询。
func (h *WorkSpaceHandler) BelongBaseExist(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的工作空间 id"})
		return
	}

	exist, err := h.wsService.BelongToBaseExist(c.Request.Context(), scope, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "查询成功",
		"data":    exist,
	})
}

// RecentUpdateList 处理最近更新列表查询。
func (h *WorkSpaceHandler) RecentUpdateList(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}
	baseID, ok := queryID(c, "baseId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的知识库 id"})
		return
	}

	list, err := h.wsService.RecentUpdateList(c.Request.Context(), scope, baseID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "查询成功",
		"data":    list,
	})
}
