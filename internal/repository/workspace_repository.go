// Package repository 包含了所有与数据库交互的逻辑。
package repository

import (
	"errors"
	"fmt"

	"kb-space-go/internal/model"

	"gorm.io/gorm"
)

// RankGap 是兄弟节点排序键之间预留的间隔。
// 新节点追加到末尾时按该间隔递增，整体重排时也按它重新编号。
const RankGap = 100

// ErrTreeCorrupted 表示遍历子树时发现父引用成环。
// 遍历在打开的事务内进行，发现环必须立刻终止而不是无限循环。
var ErrTreeCorrupted = errors.New("工作空间子树的父引用成环")

// WorkSpaceRepository 接口定义了工作空间节点的数据操作方法。
// 结构性变更（建、移、克隆、删）都以单个事务为粒度实现，
// 移动和删除通过 version 字段做 compare-and-swap，由调用方处理冲突。
type WorkSpaceRepository interface {
	FindByID(id uint) (*model.WorkSpace, error)
	FindChildren(scope model.Scope, parentID uint) ([]model.WorkSpace, error)
	// FindAllInScope 加载租户（可选限定知识库）下的全部节点，最多 limit+1 条，
	// 调用方据此判断是否超出了可加载上限。limit<=0 表示不限制。
	FindAllInScope(scope model.Scope, baseID uint, limit int) ([]model.WorkSpace, error)
	FindRecentUpdated(scope model.Scope, baseID uint, limit int) ([]model.WorkSpace, error)
	MaxSiblingRank(scope model.Scope, parentID uint) (int, error)

	// CreateWithPage 在一个事务中插入节点及其独占页面。page 为 nil 时只插入节点。
	CreateWithPage(ws *model.WorkSpace, page *model.Page) error
	// CloneWithPage 在一个事务中插入克隆出的节点与页面深拷贝，并按给定顺序重排兄弟。
	// orderedSiblings 中为 0 的位置表示克隆节点自身（插入前其 id 尚未分配）。
	CloneWithPage(ws *model.WorkSpace, page *model.Page, orderedSiblings []uint) error
	// Move 在一个事务中对节点做 CAS 重挂载，并按给定顺序重排新父节点下的兄弟。
	// rebase 为 true 时，节点连同全部后代改挂到 newBaseID 知识库下，
	// 维持子节点与父节点知识库一致的不变式。版本不匹配时返回 (false, nil)。
	Move(id uint, version int64, newParentID uint, newBaseID uint, rebase bool, orderedSiblings []uint, updatedBy uint) (bool, error)
	// UpdateWithPage 在一个事务中对节点及其页面做字段级更新（最后写入者胜出）。
	// pageID 为 0 或 pageFields 为空时只更新节点。
	// 节点已不存在时返回 (false, nil)，由调用方报告并发删除。
	UpdateWithPage(id uint, fields map[string]interface{}, pageID uint, pageFields map[string]interface{}) (bool, error)
	// DeleteSubtree 在一个事务中删除节点及其全部后代与关联页面，
	// 根节点需通过 CAS 版本检查，返回实际删除的节点 id 与页面 id。
	DeleteSubtree(rootID uint, version int64) (nodeIDs []uint, pageIDs []uint, err error)
}

// workSpaceRepository 是 WorkSpaceRepository 接口的 GORM 实现。
type workSpaceRepository struct {
	db *gorm.DB
}

// NewWorkSpaceRepository 创建一个新的 WorkSpaceRepository 实例。
func NewWorkSpaceRepository(db *gorm.DB) WorkSpaceRepository {
	return &workSpaceRepository{db: db}
}

// scoped 为查询追加租户边界条件。
func scoped(db *gorm.DB, scope model.Scope) *gorm.DB {
	return db.Where("organization_id = ? AND project_id = ?", scope.OrganizationID, scope.ProjectID)
}

// FindByID 根据主键查找一个工作空间节点。
func (r *workSpaceRepository) FindByID(id uint) (*model.WorkSpace, error) {
	var ws model.WorkSpace
	if err := r.db.First(&ws, id).Error; err != nil {
		return nil, err
	}
	return &ws, nil
}

// FindChildren 查找某节点的直接子节点，按 rank、id 排序。
func (r *workSpaceRepository) FindChildren(scope model.Scope, parentID uint) ([]model.WorkSpace, error) {
	var children []model.WorkSpace
	err := scoped(r.db, scope).
		Where("parent_id = ?", parentID).
		Order("`rank` asc, id asc").
		Find(&children).Error
	return children, err
}

// FindAllInScope 加载租户下（可选限定知识库）的全部节点。
func (r *workSpaceRepository) FindAllInScope(scope model.Scope, baseID uint, limit int) ([]model.WorkSpace, error) {
	var nodes []model.WorkSpace
	query := scoped(r.db, scope)
	if baseID != 0 {
		query = query.Where("base_id = ?", baseID)
	}
	if limit > 0 {
		query = query.Limit(limit + 1)
	}
	err := query.Order("`rank` asc, id asc").Find(&nodes).Error
	return nodes, err
}

// FindRecentUpdated 按更新时间倒序返回知识库下最近变更的节点，id 兜底保证稳定排序。
func (r *workSpaceRepository) FindRecentUpdated(scope model.Scope, baseID uint, limit int) ([]model.WorkSpace, error) {
	var nodes []model.WorkSpace
	query := scoped(r.db, scope)
	if baseID != 0 {
		query = query.Where("base_id = ?", baseID)
	}
	err := query.Order("updated_at desc, id desc").Limit(limit).Find(&nodes).Error
	return nodes, err
}

// MaxSiblingRank 返回某父节点下当前最大的排序键，没有子节点时返回 0。
func (r *workSpaceRepository) MaxSiblingRank(scope model.Scope, parentID uint) (int, error) {
	var maxRank *int
	err := scoped(r.db.Model(&model.WorkSpace{}), scope).
		Where("parent_id = ?", parentID).
		Select("MAX(`rank`)").
		Scan(&maxRank).Error
	if err != nil {
		return 0, err
	}
	if maxRank == nil {
		return 0, nil
	}
	return *maxRank, nil
}

// CreateWithPage 在一个事务中插入节点与其页面，保证两者要么同时可见要么都不可见。
func (r *workSpaceRepository) CreateWithPage(ws *model.WorkSpace, page *model.Page) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if page != nil {
			if err := tx.Create(page).Error; err != nil {
				return err
			}
			ws.PageID = page.ID
		}
		return tx.Create(ws).Error
	})
}

// CloneWithPage 插入克隆节点及其页面副本，并把它排到兄弟序列中的指定位置。
func (r *workSpaceRepository) CloneWithPage(ws *model.WorkSpace, page *model.Page, orderedSiblings []uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if page != nil {
			if err := tx.Create(page).Error; err != nil {
				return err
			}
			ws.PageID = page.ID
		}
		if err := tx.Create(ws).Error; err != nil {
			return err
		}

		for i, sid := range orderedSiblings {
			if sid == 0 {
				sid = ws.ID
			}
			if err := tx.Model(&model.WorkSpace{}).
				Where("id = ?", sid).
				Update("rank", (i+1)*RankGap).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Move 以 CAS 方式更新节点的父引用，并在同一事务内重排兄弟顺序。
func (r *workSpaceRepository) Move(id uint, version int64, newParentID uint, newBaseID uint, rebase bool, orderedSiblings []uint, updatedBy uint) (bool, error) {
	moved := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"parent_id":  newParentID,
			"version":    version + 1,
			"updated_by": updatedBy,
		}
		if rebase {
			updates["base_id"] = newBaseID
		}
		res := tx.Model(&model.WorkSpace{}).
			Where("id = ? AND version = ?", id, version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 版本已经前进或节点已被删除，让事务原样提交（无任何修改）
			return nil
		}
		moved = true

		// 跨知识库移动时，后代必须跟随迁移到新知识库
		if rebase {
			visited := map[uint]bool{id: true}
			frontier := []uint{id}
			for len(frontier) > 0 {
				var next []uint
				if err := tx.Model(&model.WorkSpace{}).
					Where("parent_id IN ?", frontier).
					Pluck("id", &next).Error; err != nil {
					return err
				}
				if len(next) == 0 {
					break
				}
				// 父引用成环时同一节点会被再次拉出来，必须终止事务
				for _, cid := range next {
					if visited[cid] {
						return fmt.Errorf("%w: id=%d", ErrTreeCorrupted, cid)
					}
					visited[cid] = true
				}
				if err := tx.Model(&model.WorkSpace{}).
					Where("id IN ?", next).
					Update("base_id", newBaseID).Error; err != nil {
					return err
				}
				frontier = next
			}
		}

		// 按调用方给定的顺序重新编号新父节点下的兄弟
		for i, sid := range orderedSiblings {
			if err := tx.Model(&model.WorkSpace{}).
				Where("id = ?", sid).
				Update("rank", (i+1)*RankGap).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return moved, err
}

// UpdateWithPage 对节点及其页面做字段级更新，两者在同一个事务内提交。
// 不做版本比较：字段更新是最后写入者胜出，version 只保护结构性变更。
// 节点侧 RowsAffected 为 0 只可能是节点已被并发删除（GORM 总会更新 updated_at，
// 行存在时受影响行数必然大于 0）。
func (r *workSpaceRepository) UpdateWithPage(id uint, fields map[string]interface{}, pageID uint, pageFields map[string]interface{}) (bool, error) {
	updated := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.WorkSpace{}).
			Where("id = ?", id).
			Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		updated = true

		if pageID != 0 && len(pageFields) > 0 {
			if err := tx.Model(&model.Page{}).
				Where("id = ?", pageID).
				Updates(pageFields).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return updated, err
}

// DeleteSubtree 逐层收集后代节点后做批量删除，整个过程在一个事务内完成，
// 读者要么看到整棵子树要么什么都看不到。
func (r *workSpaceRepository) DeleteSubtree(rootID uint, version int64) ([]uint, []uint, error) {
	var nodeIDs []uint
	var pageIDs []uint

	err := r.db.Transaction(func(tx *gorm.DB) error {
		// 根节点 CAS：先占住版本，并发的移动或删除会在这里失败
		res := tx.Model(&model.WorkSpace{}).
			Where("id = ? AND version = ?", rootID, version).
			Update("version", version+1)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		// 从根开始逐层收集整棵子树，避免递归的逐节点删除
		visited := map[uint]bool{rootID: true}
		frontier := []uint{rootID}
		for len(frontier) > 0 {
			var rows []model.WorkSpace
			if err := tx.Select("id", "page_id").
				Where("id IN ?", frontier).
				Find(&rows).Error; err != nil {
				return err
			}
			for _, row := range rows {
				nodeIDs = append(nodeIDs, row.ID)
				if row.PageID != 0 {
					pageIDs = append(pageIDs, row.PageID)
				}
			}

			var next []uint
			if err := tx.Model(&model.WorkSpace{}).
				Where("parent_id IN ?", frontier).
				Pluck("id", &next).Error; err != nil {
				return err
			}
			// 父引用成环时收集永远不会终止，必须在事务内及时失败
			for _, cid := range next {
				if visited[cid] {
					return fmt.Errorf("%w: id=%d", ErrTreeCorrupted, cid)
				}
				visited[cid] = true
			}
			frontier = next
		}

		if err := tx.Where("id IN ?", nodeIDs).Delete(&model.WorkSpace{}).Error; err != nil {
			return fmt.Errorf("删除工作空间子树失败（rootID=%d）: %w", rootID, err)
		}
		if len(pageIDs) > 0 {
			if err := tx.Where("id IN ?", pageIDs).Delete(&model.Page{}).Error; err != nil {
				return fmt.Errorf("删除子树关联页面失败（rootID=%d）: %w", rootID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return nodeIDs, pageIDs, nil
}
