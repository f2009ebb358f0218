package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"testing"
	"time"

	"kb-space-go/internal/config"
	"kb-space-go/internal/model"
	"kb-space-go/internal/repository"
	"kb-space-go/pkg/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

// ---- 内存版仓储实现，镜像 GORM 实现的 CAS 与排序语义 ----

const rankGap = 100

type fakePageRepo struct {
	pages  map[uint]*model.Page
	nextID uint
}

func newFakePageRepo() *fakePageRepo {
	return &fakePageRepo{pages: make(map[uint]*model.Page), nextID: 1}
}

func (r *fakePageRepo) FindByID(id uint) (*model.Page, error) {
	p, ok := r.pages[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePageRepo) Create(page *model.Page) error {
	page.ID = r.nextID
	r.nextID++
	copied := *page
	r.pages[page.ID] = &copied
	return nil
}

func (r *fakePageRepo) UpdateFields(id uint, fields map[string]interface{}) error {
	p, ok := r.pages[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "title":
			p.Title = v.(string)
		case "content":
			p.Content = v.(string)
		case "updated_by":
			p.UpdatedBy = v.(uint)
		}
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (r *fakePageRepo) Delete(id uint) error {
	delete(r.pages, id)
	return nil
}

type fakeBaseRepo struct {
	bases map[uint]model.Scope
}

func newFakeBaseRepo() *fakeBaseRepo {
	return &fakeBaseRepo{bases: make(map[uint]model.Scope)}
}

func (r *fakeBaseRepo) FindByID(id uint) (*model.KnowledgeBase, error) {
	scope, ok := r.bases[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.KnowledgeBase{ID: id, OrganizationID: scope.OrganizationID, ProjectID: scope.ProjectID}, nil
}

func (r *fakeBaseRepo) ExistsInScope(id uint, scope model.Scope) (bool, error) {
	owner, ok := r.bases[id]
	return ok && owner == scope, nil
}

type fakeWorkSpaceRepo struct {
	nodes  map[uint]*model.WorkSpace
	pages  *fakePageRepo
	nextID uint

	// 测试钩子，在 CAS 检查前执行，用来模拟并发写者
	beforeMove   func()
	beforeUpdate func()
	beforeDelete func()
}

func newFakeWorkSpaceRepo(pages *fakePageRepo) *fakeWorkSpaceRepo {
	return &fakeWorkSpaceRepo{nodes: make(map[uint]*model.WorkSpace), pages: pages, nextID: 1}
}

func (r *fakeWorkSpaceRepo) FindByID(id uint) (*model.WorkSpace, error) {
	n, ok := r.nodes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *n
	return &copied, nil
}

func (r *fakeWorkSpaceRepo) sortedByRank(nodes []model.WorkSpace) []model.WorkSpace {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Rank != nodes[j].Rank {
			return nodes[i].Rank < nodes[j].Rank
		}
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}

func (r *fakeWorkSpaceRepo) FindChildren(scope model.Scope, parentID uint) ([]model.WorkSpace, error) {
	var out []model.WorkSpace
	for _, n := range r.nodes {
		if scope.Contains(n) && n.ParentID == parentID {
			out = append(out, *n)
		}
	}
	return r.sortedByRank(out), nil
}

func (r *fakeWorkSpaceRepo) FindAllInScope(scope model.Scope, baseID uint, limit int) ([]model.WorkSpace, error) {
	var out []model.WorkSpace
	for _, n := range r.nodes {
		if scope.Contains(n) && (baseID == 0 || n.BaseID == baseID) {
			out = append(out, *n)
		}
	}
	out = r.sortedByRank(out)
	if limit > 0 && len(out) > limit+1 {
		out = out[:limit+1]
	}
	return out, nil
}

func (r *fakeWorkSpaceRepo) FindRecentUpdated(scope model.Scope, baseID uint, limit int) ([]model.WorkSpace, error) {
	var out []model.WorkSpace
	for _, n := range r.nodes {
		if scope.Contains(n) && (baseID == 0 || n.BaseID == baseID) {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeWorkSpaceRepo) MaxSiblingRank(scope model.Scope, parentID uint) (int, error) {
	maxRank := 0
	for _, n := range r.nodes {
		if scope.Contains(n) && n.ParentID == parentID && n.Rank > maxRank {
			maxRank = n.Rank
		}
	}
	return maxRank, nil
}

func (r *fakeWorkSpaceRepo) CreateWithPage(ws *model.WorkSpace, page *model.Page) error {
	if page != nil {
		if err := r.pages.Create(page); err != nil {
			return err
		}
		ws.PageID = page.ID
	}
	ws.ID = r.nextID
	r.nextID++
	ws.CreatedAt = time.Now()
	ws.UpdatedAt = time.Now()
	copied := *ws
	r.nodes[ws.ID] = &copied
	return nil
}

func (r *fakeWorkSpaceRepo) CloneWithPage(ws *model.WorkSpace, page *model.Page, orderedSiblings []uint) error {
	if err := r.CreateWithPage(ws, page); err != nil {
		return err
	}
	for i, sid := range orderedSiblings {
		if sid == 0 {
			sid = ws.ID
		}
		if n, ok := r.nodes[sid]; ok {
			n.Rank = (i + 1) * rankGap
		}
	}
	if n, ok := r.nodes[ws.ID]; ok {
		ws.Rank = n.Rank
	}
	return nil
}

func (r *fakeWorkSpaceRepo) Move(id uint, version int64, newParentID uint, newBaseID uint, rebase bool, orderedSiblings []uint, updatedBy uint) (bool, error) {
	if r.beforeMove != nil {
		r.beforeMove()
	}
	n, ok := r.nodes[id]
	if !ok || n.Version != version {
		return false, nil
	}
	n.ParentID = newParentID
	n.Version = version + 1
	n.UpdatedBy = updatedBy
	n.UpdatedAt = time.Now()
	if rebase {
		n.BaseID = newBaseID
		visited := map[uint]bool{id: true}
		frontier := []uint{id}
		for len(frontier) > 0 {
			var next []uint
			for _, d := range r.nodes {
				for _, f := range frontier {
					if d.ParentID == f {
						if visited[d.ID] {
							return false, fmt.Errorf("%w: id=%d", repository.ErrTreeCorrupted, d.ID)
						}
						visited[d.ID] = true
						d.BaseID = newBaseID
						next = append(next, d.ID)
					}
				}
			}
			frontier = next
		}
	}
	for i, sid := range orderedSiblings {
		if s, ok := r.nodes[sid]; ok {
			s.Rank = (i + 1) * rankGap
		}
	}
	return true, nil
}

func (r *fakeWorkSpaceRepo) UpdateWithPage(id uint, fields map[string]interface{}, pageID uint, pageFields map[string]interface{}) (bool, error) {
	if r.beforeUpdate != nil {
		r.beforeUpdate()
	}
	n, ok := r.nodes[id]
	if !ok {
		return false, nil
	}
	for k, v := range fields {
		switch k {
		case "name":
			n.Name = v.(string)
		case "updated_by":
			n.UpdatedBy = v.(uint)
		}
	}
	n.UpdatedAt = time.Now()
	if pageID != 0 && len(pageFields) > 0 {
		if err := r.pages.UpdateFields(pageID, pageFields); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (r *fakeWorkSpaceRepo) DeleteSubtree(rootID uint, version int64) ([]uint, []uint, error) {
	if r.beforeDelete != nil {
		r.beforeDelete()
	}
	root, ok := r.nodes[rootID]
	if !ok || root.Version != version {
		return nil, nil, nil
	}

	var nodeIDs, pageIDs []uint
	visited := map[uint]bool{rootID: true}
	frontier := []uint{rootID}
	for len(frontier) > 0 {
		var next []uint
		for _, f := range frontier {
			n := r.nodes[f]
			nodeIDs = append(nodeIDs, n.ID)
			if n.PageID != 0 {
				pageIDs = append(pageIDs, n.PageID)
			}
			for _, c := range r.nodes {
				if c.ParentID == f {
					if visited[c.ID] {
						return nil, nil, fmt.Errorf("%w: id=%d", repository.ErrTreeCorrupted, c.ID)
					}
					visited[c.ID] = true
					next = append(next, c.ID)
				}
			}
		}
		frontier = next
	}
	for _, id := range nodeIDs {
		delete(r.nodes, id)
	}
	for _, id := range pageIDs {
		_ = r.pages.Delete(id)
	}
	return nodeIDs, pageIDs, nil
}

// ---- 测试脚手架 ----

type testEnv struct {
	svc      WorkSpaceService
	wsRepo   *fakeWorkSpaceRepo
	pageRepo *fakePageRepo
	baseRepo *fakeBaseRepo
}

func newTestEnv(cfg config.WorkspaceConfig) *testEnv {
	pages := newFakePageRepo()
	wsRepo := newFakeWorkSpaceRepo(pages)
	baseRepo := newFakeBaseRepo()
	svc := NewWorkSpaceService(wsRepo, pages, baseRepo, nil, NewNotifier(), cfg)
	return &testEnv{svc: svc, wsRepo: wsRepo, pageRepo: pages, baseRepo: baseRepo}
}

func defaultCfg() config.WorkspaceConfig {
	return config.WorkspaceConfig{RecentListSize: 10, MaxTreeNodes: 5000}
}

var orgScope = model.Scope{OrganizationID: 7}

const operator = uint(42)

// mustCreate 在测试里快速建一个节点。
func (e *testEnv) mustCreate(t *testing.T, parentID uint, name, typ string, baseID uint) *model.WorkSpace {
	t.Helper()
	info, err := e.svc.CreateWorkSpaceAndPage(context.Background(), orgScope, parentID, CreateSpec{
		Name:   name,
		Type:   typ,
		BaseID: baseID,
	}, operator)
	require.NoError(t, err)
	return info.WorkSpace
}

// ---- 创建 ----

func TestCreateDocumentCreatesLinkedPage(t *testing.T) {
	env := newTestEnv(defaultCfg())

	info, err := env.svc.CreateWorkSpaceAndPage(context.Background(), orgScope, 0, CreateSpec{
		Name:    "设计文档",
		Type:    model.WorkSpaceTypeDocument,
		Content: "初始内容",
	}, operator)
	require.NoError(t, err)

	require.NotNil(t, info.Page)
	assert.NotZero(t, info.WorkSpace.PageID)
	assert.Equal(t, info.Page.ID, info.WorkSpace.PageID)
	assert.Equal(t, "初始内容", info.Page.Content)
	assert.Equal(t, operator, info.WorkSpace.CreatedBy)
}

func TestCreateFolderHasNoPage(t *testing.T) {
	env := newTestEnv(defaultCfg())

	ws := env.mustCreate(t, 0, "目录", model.WorkSpaceTypeFolder, 0)
	assert.Zero(t, ws.PageID)
}

func TestCreateParentMissing(t *testing.T) {
	env := newTestEnv(defaultCfg())

	_, err := env.svc.CreateWorkSpaceAndPage(context.Background(), orgScope, 99, CreateSpec{
		Name: "x", Type: model.WorkSpaceTypeFolder,
	}, operator)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateChildInheritsParentBase(t *testing.T) {
	env := newTestEnv(defaultCfg())
	env.baseRepo.bases[3] = orgScope

	parent := env.mustCreate(t, 0, "root", model.WorkSpaceTypeFolder, 3)
	child := env.mustCreate(t, parent.ID, "child", model.WorkSpaceTypeFolder, 0)
	assert.Equal(t, uint(3), child.BaseID)
}

func TestCreateChildBaseMismatch(t *testing.T) {
	env := newTestEnv(defaultCfg())
	env.baseRepo.bases[3] = orgScope

	parent := env.mustCreate(t, 0, "root", model.WorkSpaceTypeFolder, 3)
	_, err := env.svc.CreateWorkSpaceAndPage(context.Background(), orgScope, parent.ID, CreateSpec{
		Name: "x", Type: model.WorkSpaceTypeFolder, BaseID: 4,
	}, operator)
	assert.ErrorIs(t, err, ErrScopeMismatch)
}

func TestCreateSiblingsOrderedByInsertion(t *testing.T) {
	env := newTestEnv(defaultCfg())

	a := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)
	b := env.mustCreate(t, 0, "b", model.WorkSpaceTypeFolder, 0)

	children, err := env.wsRepo.FindChildren(orgScope, 0)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, a.ID, children[0].ID)
	assert.Equal(t, b.ID, children[1].ID)
}

// ---- 查询 ----

func TestQueryNotFoundForOtherScope(t *testing.T) {
	env := newTestEnv(defaultCfg())
	ws := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)

	_, err := env.svc.QueryWorkSpaceInfo(context.Background(), model.Scope{OrganizationID: 8}, ws.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryReturnsHighlights(t *testing.T) {
	env := newTestEnv(defaultCfg())

	info, err := env.svc.CreateWorkSpaceAndPage(context.Background(), orgScope, 0, CreateSpec{
		Name: "doc", Type: model.WorkSpaceTypeDocument, Content: "Alpha beta ALPHA",
	}, operator)
	require.NoError(t, err)

	got, err := env.svc.QueryWorkSpaceInfo(context.Background(), orgScope, info.WorkSpace.ID, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []model.HighlightSpan{{Start: 0, End: 5}, {Start: 11, End: 16}}, got.Highlights)
}

// ---- 更新 ----

func TestUpdateRenamesNodeAndPage(t *testing.T) {
	env := newTestEnv(defaultCfg())
	info, err := env.svc.CreateWorkSpaceAndPage(context.Background(), orgScope, 0, CreateSpec{
		Name: "old", Type: model.WorkSpaceTypeDocument, Content: "body",
	}, operator)
	require.NoError(t, err)

	newName := "new"
	newContent := "updated body"
	got, err := env.svc.UpdateWorkSpaceAndPage(context.Background(), orgScope, info.WorkSpace.ID, "", UpdateSpec{
		Name: &newName, Content: &newContent,
	}, operator)
	require.NoError(t, err)

	assert.Equal(t, "new", got.WorkSpace.Name)
	assert.Equal(t, "new", got.Page.Title)
	assert.Equal(t, "updated body", got.Page.Content)
}

func TestUpdateLastWriterWinsUnderConcurrentRename(t *testing.T) {
	env := newTestEnv(defaultCfg())
	ws := env.mustCreate(t, 0, "original", model.WorkSpaceTypeFolder, 0)

	// 另一个写者抢先提交了一次改名，节点仍然存在
	env.wsRepo.beforeUpdate = func() {
		env.wsRepo.nodes[ws.ID].Name = "first-writer"
		env.wsRepo.nodes[ws.ID].Version++
		env.wsRepo.beforeUpdate = nil
	}

	// 字段更新按最后写入者胜出合并，不应报并发冲突
	name := "second-writer"
	info, err := env.svc.UpdateWorkSpaceAndPage(context.Background(), orgScope, ws.ID, "", UpdateSpec{Name: &name}, operator)
	require.NoError(t, err)
	assert.Equal(t, "second-writer", info.WorkSpace.Name)
}

func TestUpdateConflictWhenDeletedConcurrently(t *testing.T) {
	env := newTestEnv(defaultCfg())
	ws := env.mustCreate(t, 0, "doomed", model.WorkSpaceTypeFolder, 0)

	// 在 CAS 提交前模拟并发删除
	env.wsRepo.beforeUpdate = func() {
		delete(env.wsRepo.nodes, ws.ID)
	}

	name := "renamed"
	_, err := env.svc.UpdateWorkSpaceAndPage(context.Background(), orgScope, ws.ID, "", UpdateSpec{Name: &name}, operator)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateConflictLeavesPageUntouched(t *testing.T) {
	env := newTestEnv(defaultCfg())
	info, err := env.svc.CreateWorkSpaceAndPage(context.Background(), orgScope, 0, CreateSpec{
		Name: "doc", Type: model.WorkSpaceTypeDocument, Content: "原始内容",
	}, operator)
	require.NoError(t, err)

	env.wsRepo.beforeUpdate = func() {
		delete(env.wsRepo.nodes, info.WorkSpace.ID)
	}

	// 节点删除被检测到时，页面不应留下半截更新
	newContent := "不该落库的内容"
	_, err = env.svc.UpdateWorkSpaceAndPage(context.Background(), orgScope, info.WorkSpace.ID, "", UpdateSpec{Content: &newContent}, operator)
	assert.ErrorIs(t, err, ErrConflict)

	page, err := env.pageRepo.FindByID(info.Page.ID)
	require.NoError(t, err)
	assert.Equal(t, "原始内容", page.Content)
}

// ---- 移动 ----

func TestMoveReparent(t *testing.T) {
	env := newTestEnv(defaultCfg())
	a := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)
	b := env.mustCreate(t, 0, "b", model.WorkSpaceTypeFolder, 0)

	err := env.svc.MoveWorkSpace(context.Background(), orgScope, b.ID, MoveSpec{NewParentID: a.ID}, operator)
	require.NoError(t, err)

	moved, err := env.wsRepo.FindByID(b.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, moved.ParentID)
	assert.Equal(t, b.Version+1, moved.Version)
}

func TestMoveToSelf(t *testing.T) {
	env := newTestEnv(defaultCfg())
	a := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)

	err := env.svc.MoveWorkSpace(context.Background(), orgScope, a.ID, MoveSpec{NewParentID: a.ID}, operator)
	assert.ErrorIs(t, err, ErrCycle)
}

func TestMoveUnderOwnDescendantFails(t *testing.T) {
	env := newTestEnv(defaultCfg())
	a := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)
	b := env.mustCreate(t, a.ID, "b", model.WorkSpaceTypeFolder, 0)
	c := env.mustCreate(t, b.ID, "c", model.WorkSpaceTypeFolder, 0)

	err := env.svc.MoveWorkSpace(context.Background(), orgScope, a.ID, MoveSpec{NewParentID: c.ID}, operator)
	assert.ErrorIs(t, err, ErrCycle)

	// 树保持原状
	unchanged, err := env.wsRepo.FindByID(a.ID)
	require.NoError(t, err)
	assert.Zero(t, unchanged.ParentID)
	assert.Equal(t, a.Version, unchanged.Version)
}

func TestMovePositionBeforeTarget(t *testing.T) {
	env := newTestEnv(defaultCfg())
	a := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)
	b := env.mustCreate(t, 0, "b", model.WorkSpaceTypeFolder, 0)
	c := env.mustCreate(t, 0, "c", model.WorkSpaceTypeFolder, 0)

	// 把 c 移到 a 之前
	err := env.svc.MoveWorkSpace(context.Background(), orgScope, c.ID, MoveSpec{NewParentID: 0, TargetID: a.ID, Before: true}, operator)
	require.NoError(t, err)

	children, err := env.wsRepo.FindChildren(orgScope, 0)
	require.NoError(t, err)
	ids := []uint{children[0].ID, children[1].ID, children[2].ID}
	assert.Equal(t, []uint{c.ID, a.ID, b.ID}, ids)
}

func TestMoveCrossBaseRejectedByPolicy(t *testing.T) {
	env := newTestEnv(defaultCfg())
	env.baseRepo.bases[1] = orgScope
	env.baseRepo.bases[2] = orgScope

	r1 := env.mustCreate(t, 0, "base1-root", model.WorkSpaceTypeFolder, 1)
	r2 := env.mustCreate(t, 0, "base2-root", model.WorkSpaceTypeFolder, 2)

	err := env.svc.MoveWorkSpace(context.Background(), orgScope, r1.ID, MoveSpec{NewParentID: r2.ID}, operator)
	assert.ErrorIs(t, err, ErrScopeMismatch)
}

func TestMoveCrossBaseAllowedRebasesSubtree(t *testing.T) {
	cfg := defaultCfg()
	cfg.AllowCrossBaseMove = true
	env := newTestEnv(cfg)
	env.baseRepo.bases[1] = orgScope
	env.baseRepo.bases[2] = orgScope

	r1 := env.mustCreate(t, 0, "base1-root", model.WorkSpaceTypeFolder, 1)
	child := env.mustCreate(t, r1.ID, "child", model.WorkSpaceTypeFolder, 0)
	r2 := env.mustCreate(t, 0, "base2-root", model.WorkSpaceTypeFolder, 2)

	err := env.svc.MoveWorkSpace(context.Background(), orgScope, r1.ID, MoveSpec{NewParentID: r2.ID}, operator)
	require.NoError(t, err)

	movedRoot, _ := env.wsRepo.FindByID(r1.ID)
	movedChild, _ := env.wsRepo.FindByID(child.ID)
	assert.Equal(t, uint(2), movedRoot.BaseID)
	assert.Equal(t, uint(2), movedChild.BaseID)
}

func TestMoveConcurrentConflict(t *testing.T) {
	env := newTestEnv(defaultCfg())
	a := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)
	b := env.mustCreate(t, 0, "b", model.WorkSpaceTypeFolder, 0)
	c := env.mustCreate(t, 0, "c", model.WorkSpaceTypeFolder, 0)

	// 模拟另一个移动者抢先提交：版本前进，后来者 CAS 失败
	env.wsRepo.beforeMove = func() {
		env.wsRepo.nodes[c.ID].ParentID = a.ID
		env.wsRepo.nodes[c.ID].Version++
		env.wsRepo.beforeMove = nil
	}

	err := env.svc.MoveWorkSpace(context.Background(), orgScope, c.ID, MoveSpec{NewParentID: b.ID}, operator)
	assert.ErrorIs(t, err, ErrConflict)

	// 终态只反映先提交的移动
	final, _ := env.wsRepo.FindByID(c.ID)
	assert.Equal(t, a.ID, final.ParentID)
}

// ---- 删除 ----

func TestRemoveCascadesSubtreeAndPages(t *testing.T) {
	env := newTestEnv(defaultCfg())
	root := env.mustCreate(t, 0, "root", model.WorkSpaceTypeFolder, 0)
	docInfo, err := env.svc.CreateWorkSpaceAndPage(context.Background(), orgScope, root.ID, CreateSpec{
		Name: "doc", Type: model.WorkSpaceTypeDocument, Content: "x",
	}, operator)
	require.NoError(t, err)
	env.mustCreate(t, docInfo.WorkSpace.ID, "grandchild", model.WorkSpaceTypeFolder, 0)
	other := env.mustCreate(t, 0, "survivor", model.WorkSpaceTypeFolder, 0)

	err = env.svc.RemoveWorkSpaceAndPage(context.Background(), orgScope, root.ID, operator, true)
	require.NoError(t, err)

	// 整棵子树（N+1 个节点）与页面被删除，树外节点不受影响
	assert.Len(t, env.wsRepo.nodes, 1)
	_, ok := env.wsRepo.nodes[other.ID]
	assert.True(t, ok)
	assert.Empty(t, env.pageRepo.pages)
}

func TestRemoveForbiddenForNonOwner(t *testing.T) {
	env := newTestEnv(defaultCfg())
	ws := env.mustCreate(t, 0, "owned", model.WorkSpaceTypeFolder, 0)

	err := env.svc.RemoveWorkSpaceAndPage(context.Background(), orgScope, ws.ID, operator+1, false)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRemoveConflictWhenMovedConcurrently(t *testing.T) {
	env := newTestEnv(defaultCfg())
	ws := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)

	env.wsRepo.beforeDelete = func() {
		env.wsRepo.nodes[ws.ID].Version++
	}

	err := env.svc.RemoveWorkSpaceAndPage(context.Background(), orgScope, ws.ID, operator, true)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRemoveDetectsCorruptedSubtree(t *testing.T) {
	env := newTestEnv(defaultCfg())

	// 两个节点互为父节点：级联收集会再次遇到已访问的节点
	env.wsRepo.nodes[1] = &model.WorkSpace{
		ID: 1, OrganizationID: orgScope.OrganizationID, ParentID: 2,
		Type: model.WorkSpaceTypeFolder, Name: "a", Version: 1, CreatedBy: operator,
	}
	env.wsRepo.nodes[2] = &model.WorkSpace{
		ID: 2, OrganizationID: orgScope.OrganizationID, ParentID: 1,
		Type: model.WorkSpaceTypeFolder, Name: "b", Version: 1, CreatedBy: operator,
	}
	env.wsRepo.nextID = 3

	err := env.svc.RemoveWorkSpaceAndPage(context.Background(), orgScope, 1, operator, true)
	assert.ErrorIs(t, err, ErrIntegrity)
}

// ---- 克隆 ----

func TestClonePageDeepCopiesContent(t *testing.T) {
	env := newTestEnv(defaultCfg())
	srcInfo, err := env.svc.CreateWorkSpaceAndPage(context.Background(), orgScope, 0, CreateSpec{
		Name: "原稿", Type: model.WorkSpaceTypeDocument, Content: "正文",
	}, operator)
	require.NoError(t, err)

	cloneInfo, err := env.svc.ClonePage(context.Background(), orgScope, srcInfo.WorkSpace.ID, operator)
	require.NoError(t, err)

	assert.NotEqual(t, srcInfo.WorkSpace.ID, cloneInfo.WorkSpace.ID)
	assert.Equal(t, srcInfo.WorkSpace.ParentID, cloneInfo.WorkSpace.ParentID)
	assert.Equal(t, "原稿-副本", cloneInfo.WorkSpace.Name)
	assert.NotEqual(t, srcInfo.Page.ID, cloneInfo.Page.ID)
	assert.Equal(t, "正文", cloneInfo.Page.Content)

	// 深拷贝：改克隆的页面不影响源页面
	err = env.pageRepo.UpdateFields(cloneInfo.Page.ID, map[string]interface{}{"content": "改过的正文"})
	require.NoError(t, err)
	srcPage, err := env.pageRepo.FindByID(srcInfo.Page.ID)
	require.NoError(t, err)
	assert.Equal(t, "正文", srcPage.Content)
}

func TestCloneInsertsRightAfterSource(t *testing.T) {
	env := newTestEnv(defaultCfg())
	a := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)
	b := env.mustCreate(t, 0, "b", model.WorkSpaceTypeFolder, 0)

	cloneInfo, err := env.svc.ClonePage(context.Background(), orgScope, a.ID, operator)
	require.NoError(t, err)

	children, err := env.wsRepo.FindChildren(orgScope, 0)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, a.ID, children[0].ID)
	assert.Equal(t, cloneInfo.WorkSpace.ID, children[1].ID)
	assert.Equal(t, b.ID, children[2].ID)
}

func TestCloneDoesNotCopyChildren(t *testing.T) {
	env := newTestEnv(defaultCfg())
	a := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)
	env.mustCreate(t, a.ID, "child", model.WorkSpaceTypeFolder, 0)

	cloneInfo, err := env.svc.ClonePage(context.Background(), orgScope, a.ID, operator)
	require.NoError(t, err)

	cloneChildren, err := env.wsRepo.FindChildren(orgScope, cloneInfo.WorkSpace.ID)
	require.NoError(t, err)
	assert.Empty(t, cloneChildren)
}

// ---- 知识库存在性 ----

func TestBelongToBaseExist(t *testing.T) {
	env := newTestEnv(defaultCfg())
	env.baseRepo.bases[5] = orgScope
	ws := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 5)

	exist, err := env.svc.BelongToBaseExist(context.Background(), orgScope, ws.ID)
	require.NoError(t, err)
	assert.True(t, exist)

	// 知识库被删除后应返回 false
	delete(env.baseRepo.bases, 5)
	exist, err = env.svc.BelongToBaseExist(context.Background(), orgScope, ws.ID)
	require.NoError(t, err)
	assert.False(t, exist)
}

// ---- 全树查询 ----

func TestQueryAllTreeListExpandPath(t *testing.T) {
	env := newTestEnv(defaultCfg())
	a := env.mustCreate(t, 0, "A", model.WorkSpaceTypeFolder, 0)
	b := env.mustCreate(t, a.ID, "B", model.WorkSpaceTypeFolder, 0)
	c := env.mustCreate(t, b.ID, "C", model.WorkSpaceTypeFolder, 0)

	tree, err := env.svc.QueryAllTreeList(context.Background(), orgScope, c.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{a.ID, b.ID}, tree.ExpandPath)
}

func TestQueryAllTreeListTooLarge(t *testing.T) {
	cfg := defaultCfg()
	cfg.MaxTreeNodes = 2
	env := newTestEnv(cfg)
	env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)
	env.mustCreate(t, 0, "b", model.WorkSpaceTypeFolder, 0)
	env.mustCreate(t, 0, "c", model.WorkSpaceTypeFolder, 0)

	_, err := env.svc.QueryAllTreeList(context.Background(), orgScope, 0, 0)
	assert.ErrorIs(t, err, ErrTreeTooLarge)
}

// ---- 最近更新列表 ----

func TestRecentUpdateListOrderAndCap(t *testing.T) {
	cfg := defaultCfg()
	cfg.RecentListSize = 2
	env := newTestEnv(cfg)

	a := env.mustCreate(t, 0, "a", model.WorkSpaceTypeFolder, 0)
	b := env.mustCreate(t, 0, "b", model.WorkSpaceTypeFolder, 0)
	c := env.mustCreate(t, 0, "c", model.WorkSpaceTypeFolder, 0)

	// 人为固定更新时间：c 最新，a 与 b 并列
	now := time.Now()
	env.wsRepo.nodes[a.ID].UpdatedAt = now
	env.wsRepo.nodes[b.ID].UpdatedAt = now
	env.wsRepo.nodes[c.ID].UpdatedAt = now.Add(time.Minute)

	list, err := env.svc.RecentUpdateList(context.Background(), orgScope, 0)
	require.NoError(t, err)

	require.Len(t, list, 2)
	assert.Equal(t, c.ID, list[0].ID)
	// 并列时按 id 兜底，结果确定
	assert.Equal(t, b.ID, list[1].ID)
}
