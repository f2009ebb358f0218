// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kb-space-go/internal/config"
	"kb-space-go/internal/model"
	"kb-space-go/internal/repository"
	"kb-space-go/pkg/events"
	"kb-space-go/pkg/kafka"
	"kb-space-go/pkg/log"

	"gorm.io/gorm"
)

// 克隆节点的名称后缀，与前端展示约定一致。
const cloneNameSuffix = "-副本"

// CreateSpec 描述一次节点创建请求。
type CreateSpec struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required,oneof=folder document"`
	// BaseID 仅创建根节点时有效，子节点总是继承父节点的知识库。
	BaseID uint `json:"baseId"`
	// Content 是 document 类型节点的初始页面内容，可为空。
	Content string `json:"content"`
}

// UpdateSpec 描述一次字段级的部分更新，nil 表示该字段保持不变。
type UpdateSpec struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

// MoveSpec 描述一次移动请求：重挂到 NewParentID 下（0 表示根），
// 并以 TargetID 为锚点决定兄弟间的位置（0 表示追加到末尾）。
type MoveSpec struct {
	NewParentID uint `json:"newParentId"`
	TargetID    uint `json:"targetId"`
	Before      bool `json:"before"`
}

// WorkSpaceService 接口定义了工作空间树引擎的全部业务操作。
// 所有修改操作先完成校验再落库，校验失败不产生任何副作用；
// 级联修改在仓储层的单个事务内完成，全有或全无。
type WorkSpaceService interface {
	CreateWorkSpaceAndPage(ctx context.Context, scope model.Scope, parentID uint, spec CreateSpec, operatorID uint) (*model.WorkSpaceInfo, error)
	QueryWorkSpaceInfo(ctx context.Context, scope model.Scope, id uint, searchStr string) (*model.WorkSpaceInfo, error)
	UpdateWorkSpaceAndPage(ctx context.Context, scope model.Scope, id uint, searchStr string, spec UpdateSpec, operatorID uint) (*model.WorkSpaceInfo, error)
	MoveWorkSpace(ctx context.Context, scope model.Scope, id uint, spec MoveSpec, operatorID uint) error
	QueryAllTreeList(ctx context.Context, scope model.Scope, expandID, baseID uint) (*model.WorkSpaceTree, error)
	QueryAllSpaceByOptions(ctx context.Context, scope model.Scope, baseID uint) ([]model.WorkSpace, error)
	RemoveWorkSpaceAndPage(ctx context.Context, scope model.Scope, id uint, operatorID uint, isAdmin bool) error
	ClonePage(ctx context.Context, scope model.Scope, id uint, operatorID uint) (*model.WorkSpaceInfo, error)
	BelongToBaseExist(ctx context.Context, scope model.Scope, id uint) (bool, error)
	RecentUpdateList(ctx context.Context, scope model.Scope, baseID uint) ([]model.WorkSpaceSummary, error)
}

// workSpaceService 是 WorkSpaceService 接口的实现。
type workSpaceService struct {
	wsRepo    repository.WorkSpaceRepository
	pageRepo  repository.PageRepository
	baseRepo  repository.KnowledgeBaseRepository
	treeCache repository.TreeCacheRepository
	notifier  *Notifier
	cfg       config.WorkspaceConfig
}

// NewWorkSpaceService 创建一个新的 WorkSpaceService 实例。
// treeCache 可以为 nil（例如测试环境没有 Redis），此时全树查询直接走数据库。
func NewWorkSpaceService(
	wsRepo repository.WorkSpaceRepository,
	pageRepo repository.PageRepository,
	baseRepo repository.KnowledgeBaseRepository,
	treeCache repository.TreeCacheRepository,
	notifier *Notifier,
	cfg config.WorkspaceConfig,
) WorkSpaceService {
	return &workSpaceService{
		wsRepo:    wsRepo,
		pageRepo:  pageRepo,
		baseRepo:  baseRepo,
		treeCache: treeCache,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// loadNode 加载节点并校验租户归属。跨租户的节点对调用方表现为不存在。
func (s *workSpaceService) loadNode(scope model.Scope, id uint) (*model.WorkSpace, error) {
	ws, err := s.wsRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
		}
		return nil, err
	}
	if !scope.Contains(ws) {
		return nil, fmt.Errorf("%w: id=%d", ErrNotFound, id)
	}
	return ws, nil
}

// CreateWorkSpaceAndPage 在租户下创建一个节点；document 类型同时创建空页面并关联。
func (s *workSpaceService) CreateWorkSpaceAndPage(ctx context.Context, scope model.Scope, parentID uint, spec CreateSpec, operatorID uint) (*model.WorkSpaceInfo, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: 必须且只能指定组织或项目之一", ErrScopeMismatch)
	}

	baseID := spec.BaseID
	if parentID != 0 {
		parent, err := s.loadNode(scope, parentID)
		if err != nil {
			return nil, err
		}
		// 子节点继承父节点的知识库；显式指定了不同知识库视为边界冲突
		if spec.BaseID != 0 && spec.BaseID != parent.BaseID {
			return nil, fmt.Errorf("%w: 父节点属于知识库 %d", ErrScopeMismatch, parent.BaseID)
		}
		baseID = parent.BaseID
	} else if baseID != 0 {
		exist, err := s.baseRepo.ExistsInScope(baseID, scope)
		if err != nil {
			return nil, err
		}
		if !exist {
			return nil, fmt.Errorf("%w: 知识库 id=%d", ErrNotFound, baseID)
		}
	}

	maxRank, err := s.wsRepo.MaxSiblingRank(scope, parentID)
	if err != nil {
		return nil, err
	}

	ws := &model.WorkSpace{
		OrganizationID: scope.OrganizationID,
		ProjectID:      scope.ProjectID,
		BaseID:         baseID,
		ParentID:       parentID,
		Type:           spec.Type,
		Name:           spec.Name,
		Rank:           maxRank + repository.RankGap,
		Version:        1,
		CreatedBy:      operatorID,
		UpdatedBy:      operatorID,
	}

	var page *model.Page
	if spec.Type == model.WorkSpaceTypeDocument {
		page = &model.Page{
			Title:     spec.Name,
			Content:   spec.Content,
			CreatedBy: operatorID,
			UpdatedBy: operatorID,
		}
	}

	if err := s.wsRepo.CreateWithPage(ws, page); err != nil {
		return nil, err
	}
	s.afterChange(ctx, events.ActionCreated, ws, nil, operatorID)

	return &model.WorkSpaceInfo{WorkSpace: ws, Page: page, BaseExist: true}, nil
}

// QueryWorkSpaceInfo 查询单个节点及其页面内容，searchStr 非空时附带高亮区间。
func (s *workSpaceService) QueryWorkSpaceInfo(ctx context.Context, scope model.Scope, id uint, searchStr string) (*model.WorkSpaceInfo, error) {
	ws, err := s.loadNode(scope, id)
	if err != nil {
		return nil, err
	}
	return s.assembleInfo(scope, ws, searchStr)
}

// assembleInfo 组装节点的聚合视图：页面、高亮与知识库存在性。
func (s *workSpaceService) assembleInfo(scope model.Scope, ws *model.WorkSpace, searchStr string) (*model.WorkSpaceInfo, error) {
	info := &model.WorkSpaceInfo{WorkSpace: ws, BaseExist: true}

	if ws.IsDocument() {
		page, err := s.pageRepo.FindByID(ws.PageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 节点声明的页面不存在，属于数据损坏
				log.Errorw("文档节点关联的页面缺失", "workSpaceId", ws.ID, "pageId", ws.PageID)
				return nil, fmt.Errorf("%w: 节点 %d 关联的页面 %d 不存在", ErrIntegrity, ws.ID, ws.PageID)
			}
			return nil, err
		}
		info.Page = page
		if searchStr != "" {
			info.Highlights = HighlightSpans(page.Content, searchStr)
		}
	}

	if ws.BaseID != 0 {
		exist, err := s.baseRepo.ExistsInScope(ws.BaseID, scope)
		if err != nil {
			return nil, err
		}
		info.BaseExist = exist
	}
	return info, nil
}

// UpdateWorkSpaceAndPage 对节点做字段级的部分更新，并发更新按最后写入者胜出合并。
// 只有节点已被并发删除时返回 ErrConflict；节点和页面在同一个事务内落库。
func (s *workSpaceService) UpdateWorkSpaceAndPage(ctx context.Context, scope model.Scope, id uint, searchStr string, spec UpdateSpec, operatorID uint) (*model.WorkSpaceInfo, error) {
	ws, err := s.loadNode(scope, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{"updated_by": operatorID}
	if spec.Name != nil {
		fields["name"] = *spec.Name
	}

	var pageID uint
	var pageFields map[string]interface{}
	if ws.IsDocument() {
		pageID = ws.PageID
		pageFields = map[string]interface{}{"updated_by": operatorID}
		if spec.Name != nil {
			pageFields["title"] = *spec.Name
		}
		if spec.Content != nil {
			pageFields["content"] = *spec.Content
		}
	}

	ok, err := s.wsRepo.UpdateWithPage(ws.ID, fields, pageID, pageFields)
	if err != nil {
		return nil, err
	}
	if !ok {
		// 节点已被并发删除，更新没有落点
		return nil, fmt.Errorf("%w: id=%d", ErrConflict, id)
	}

	refreshed, err := s.loadNode(scope, id)
	if err != nil {
		return nil, err
	}
	s.afterChange(ctx, events.ActionUpdated, refreshed, nil, operatorID)
	return s.assembleInfo(scope, refreshed, searchStr)
}

// MoveWorkSpace 把节点重挂到新父节点下并调整兄弟间的顺序。
// 校验顺序：目标存在、新父存在且同租户同知识库、不构成环、策略允许；
// 全部通过后以 CAS 提交，版本落后的并发移动者得到 ErrConflict。
func (s *workSpaceService) MoveWorkSpace(ctx context.Context, scope model.Scope, id uint, spec MoveSpec, operatorID uint) error {
	ws, err := s.loadNode(scope, id)
	if err != nil {
		return err
	}
	if spec.NewParentID == id {
		return fmt.Errorf("%w: 不能把节点移动到自身之下", ErrCycle)
	}

	newBaseID := ws.BaseID
	rebase := false
	if spec.NewParentID != 0 {
		parent, err := s.loadNode(scope, spec.NewParentID)
		if err != nil {
			return err
		}
		if parent.BaseID != ws.BaseID {
			if !s.cfg.AllowCrossBaseMove {
				return fmt.Errorf("%w: 不允许跨知识库移动", ErrScopeMismatch)
			}
			newBaseID = parent.BaseID
			rebase = true
		}

		// 环检测：沿新父节点的祖先链向上走，出现待移动节点即成环
		if err := s.checkNoCycle(scope, id, parent); err != nil {
			return err
		}
	}

	orderedSiblings, err := s.orderedSiblingsAfterMove(scope, id, spec)
	if err != nil {
		return err
	}

	moved, err := s.wsRepo.Move(id, ws.Version, spec.NewParentID, newBaseID, rebase, orderedSiblings, operatorID)
	if err != nil {
		if errors.Is(err, repository.ErrTreeCorrupted) {
			log.Errorw("迁移子树时发现父引用成环", "workSpaceId", id, "error", err)
			return fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
		return err
	}
	if !moved {
		return fmt.Errorf("%w: id=%d", ErrConflict, id)
	}

	// 跨知识库移动时，旧知识库的树快照同样需要失效
	if rebase && s.treeCache != nil {
		if err := s.treeCache.Invalidate(ctx, scope, ws.BaseID); err != nil {
			log.Warnf("失效旧知识库树缓存失败: %v", err)
		}
	}

	ws.ParentID = spec.NewParentID
	ws.BaseID = newBaseID
	s.afterChange(ctx, events.ActionMoved, ws, nil, operatorID)
	return nil
}

// checkNoCycle 沿着候选父节点的祖先链向上走到根，确认待移动节点不在其中。
// 祖先链本身成环说明数据已损坏，按 ErrIntegrity 上报。
func (s *workSpaceService) checkNoCycle(scope model.Scope, movingID uint, parent *model.WorkSpace) error {
	visited := map[uint]bool{}
	for cur := parent; ; {
		if cur.ID == movingID {
			return fmt.Errorf("%w: 节点 %d 是目标父节点的祖先", ErrCycle, movingID)
		}
		if visited[cur.ID] {
			log.Errorw("检测到工作空间树中的残留环", "workSpaceId", cur.ID)
			return fmt.Errorf("%w: 祖先链在节点 %d 处成环", ErrIntegrity, cur.ID)
		}
		visited[cur.ID] = true

		if cur.ParentID == 0 {
			return nil
		}
		next, err := s.loadNode(scope, cur.ParentID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// 祖先缺失按根对待（孤儿子树），不构成环
				return nil
			}
			return err
		}
		cur = next
	}
}

// orderedSiblingsAfterMove 计算移动完成后新父节点下的兄弟顺序。
// 返回的序列用于事务内的整体重排，包含被移动节点自身。
func (s *workSpaceService) orderedSiblingsAfterMove(scope model.Scope, id uint, spec MoveSpec) ([]uint, error) {
	children, err := s.wsRepo.FindChildren(scope, spec.NewParentID)
	if err != nil {
		return nil, err
	}

	ordered := make([]uint, 0, len(children)+1)
	inserted := false
	for _, c := range children {
		if c.ID == id {
			continue // 同父内移动：先移除旧位置
		}
		if spec.TargetID != 0 && c.ID == spec.TargetID {
			if spec.Before {
				ordered = append(ordered, id, c.ID)
			} else {
				ordered = append(ordered, c.ID, id)
			}
			inserted = true
			continue
		}
		ordered = append(ordered, c.ID)
	}
	if !inserted {
		// 锚点未指定或已不存在，追加到末尾
		ordered = append(ordered, id)
	}
	return ordered, nil
}

// QueryAllTreeList 加载租户（可选限定知识库）下的全部节点并组装成森林。
// expandID 非零时计算根到该节点的展开路径；不带展开的全量结果可由 Redis 缓存。
func (s *workSpaceService) QueryAllTreeList(ctx context.Context, scope model.Scope, expandID, baseID uint) (*model.WorkSpaceTree, error) {
	cacheable := expandID == 0 && s.treeCache != nil && s.cfg.TreeCacheTTLSeconds > 0
	if cacheable {
		cached, err := s.treeCache.Get(ctx, scope, baseID)
		if err != nil {
			log.Warnf("读取树缓存失败，回退到数据库: %v", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	nodes, err := s.wsRepo.FindAllInScope(scope, baseID, s.cfg.MaxTreeNodes)
	if err != nil {
		return nil, err
	}
	if s.cfg.MaxTreeNodes > 0 && len(nodes) > s.cfg.MaxTreeNodes {
		log.Errorw("租户节点数超过全树加载上限",
			"organizationId", scope.OrganizationID, "projectId", scope.ProjectID,
			"baseId", baseID, "limit", s.cfg.MaxTreeNodes)
		return nil, fmt.Errorf("%w: 超过 %d 个节点", ErrTreeTooLarge, s.cfg.MaxTreeNodes)
	}

	tree, err := BuildTree(nodes, expandID)
	if err != nil {
		if errors.Is(err, ErrIntegrity) {
			log.Errorw("组装工作空间树时发现结构损坏",
				"organizationId", scope.OrganizationID, "projectId", scope.ProjectID,
				"baseId", baseID, "error", err)
		}
		return nil, err
	}

	if cacheable {
		ttl := time.Duration(s.cfg.TreeCacheTTLSeconds) * time.Second
		if err := s.treeCache.Set(ctx, scope, baseID, tree, ttl); err != nil {
			log.Warnf("写入树缓存失败: %v", err)
		}
	}
	return tree, nil
}

// QueryAllSpaceByOptions 返回知识库下全部节点的平铺列表。
func (s *workSpaceService) QueryAllSpaceByOptions(ctx context.Context, scope model.Scope, baseID uint) ([]model.WorkSpace, error) {
	return s.wsRepo.FindAllInScope(scope, baseID, 0)
}

// RemoveWorkSpaceAndPage 删除节点及其整棵后代子树和关联页面。
// isAdmin 为 false 时只允许删除自己创建的节点。
func (s *workSpaceService) RemoveWorkSpaceAndPage(ctx context.Context, scope model.Scope, id uint, operatorID uint, isAdmin bool) error {
	ws, err := s.loadNode(scope, id)
	if err != nil {
		return err
	}
	if !isAdmin && ws.CreatedBy != operatorID {
		return fmt.Errorf("%w: id=%d", ErrForbidden, id)
	}

	nodeIDs, pageIDs, err := s.wsRepo.DeleteSubtree(id, ws.Version)
	if err != nil {
		if errors.Is(err, repository.ErrTreeCorrupted) {
			log.Errorw("删除子树时发现父引用成环", "workSpaceId", id, "error", err)
			return fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
		return err
	}
	if len(nodeIDs) == 0 {
		// CAS 未命中：节点已被并发移动或删除
		return fmt.Errorf("%w: id=%d", ErrConflict, id)
	}

	log.Infow("工作空间子树已删除",
		"workSpaceId", id, "removedNodes", len(nodeIDs), "removedPages", len(pageIDs))
	s.afterChange(ctx, events.ActionRemoved, ws, nodeIDs, operatorID)
	return nil
}

// ClonePage 复制单个节点：新 id、页面深拷贝、同一父节点、紧跟在源节点之后。
// 后代不会被复制。
func (s *workSpaceService) ClonePage(ctx context.Context, scope model.Scope, id uint, operatorID uint) (*model.WorkSpaceInfo, error) {
	src, err := s.loadNode(scope, id)
	if err != nil {
		return nil, err
	}

	clone := &model.WorkSpace{
		OrganizationID: src.OrganizationID,
		ProjectID:      src.ProjectID,
		BaseID:         src.BaseID,
		ParentID:       src.ParentID,
		Type:           src.Type,
		Name:           src.Name + cloneNameSuffix,
		Rank:           src.Rank + 1, // 占位，事务内会整体重排
		Version:        1,
		CreatedBy:      operatorID,
		UpdatedBy:      operatorID,
	}

	var pageCopy *model.Page
	if src.IsDocument() {
		srcPage, err := s.pageRepo.FindByID(src.PageID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Errorw("克隆时发现文档节点关联的页面缺失", "workSpaceId", src.ID, "pageId", src.PageID)
				return nil, fmt.Errorf("%w: 节点 %d 关联的页面 %d 不存在", ErrIntegrity, src.ID, src.PageID)
			}
			return nil, err
		}
		pageCopy = &model.Page{
			Title:     clone.Name,
			Content:   srcPage.Content,
			CreatedBy: operatorID,
			UpdatedBy: operatorID,
		}
	}

	// 兄弟序列：克隆节点（占位 0）插到源节点之后
	children, err := s.wsRepo.FindChildren(scope, src.ParentID)
	if err != nil {
		return nil, err
	}
	ordered := make([]uint, 0, len(children)+1)
	for _, c := range children {
		ordered = append(ordered, c.ID)
		if c.ID == src.ID {
			ordered = append(ordered, 0)
		}
	}

	if err := s.wsRepo.CloneWithPage(clone, pageCopy, ordered); err != nil {
		return nil, err
	}
	s.afterChange(ctx, events.ActionCloned, clone, nil, operatorID)

	return &model.WorkSpaceInfo{WorkSpace: clone, Page: pageCopy, BaseExist: true}, nil
}

// BelongToBaseExist 查询节点声明的知识库是否仍然存在。纯读操作。
func (s *workSpaceService) BelongToBaseExist(ctx context.Context, scope model.Scope, id uint) (bool, error) {
	ws, err := s.loadNode(scope, id)
	if err != nil {
		return false, err
	}
	if ws.BaseID == 0 {
		// 未启用知识库划分的节点不存在“所属知识库被删”的问题
		return true, nil
	}
	return s.baseRepo.ExistsInScope(ws.BaseID, scope)
}

// RecentUpdateList 返回知识库下最近更新的节点，按更新时间倒序，条数由配置限定。
func (s *workSpaceService) RecentUpdateList(ctx context.Context, scope model.Scope, baseID uint) ([]model.WorkSpaceSummary, error) {
	nodes, err := s.wsRepo.FindRecentUpdated(scope, baseID, s.cfg.RecentListSize)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.WorkSpaceSummary, 0, len(nodes))
	for _, n := range nodes {
		summaries = append(summaries, model.WorkSpaceSummary{
			ID:        n.ID,
			Name:      n.Name,
			Type:      n.Type,
			BaseID:    n.BaseID,
			UpdatedBy: n.UpdatedBy,
			UpdatedAt: model.LocalTime(n.UpdatedAt),
		})
	}
	return summaries, nil
}

// afterChange 在一次成功的结构性变更后做缓存失效、事件发布与进程内广播。
// 这些都是尽力而为的后置动作，失败不影响已提交的事务。
func (s *workSpaceService) afterChange(ctx context.Context, action string, ws *model.WorkSpace, removedIDs []uint, operatorID uint) {
	scope := model.Scope{OrganizationID: ws.OrganizationID, ProjectID: ws.ProjectID}

	if s.treeCache != nil {
		if err := s.treeCache.Invalidate(ctx, scope, ws.BaseID); err != nil {
			log.Warnf("失效树缓存失败: %v", err)
		}
	}

	event := events.WorkSpaceEvent{
		Action:         action,
		WorkSpaceID:    ws.ID,
		OrganizationID: ws.OrganizationID,
		ProjectID:      ws.ProjectID,
		BaseID:         ws.BaseID,
		PageID:         ws.PageID,
		RemovedIDs:     removedIDs,
		OperatorID:     operatorID,
		OccurredAt:     time.Now(),
	}
	kafka.PublishWorkSpaceEvent(ctx, event)
	if s.notifier != nil {
		s.notifier.Publish(scope, event)
	}
}
