// Package repository 包含了所有与数据库交互的逻辑。
package repository

import (
	"errors"

	"kb-space-go/internal/model"

	"gorm.io/gorm"
)

// KnowledgeBaseRepository 接口定义了知识库的数据操作方法。
type KnowledgeBaseRepository interface {
	FindByID(id uint) (*model.KnowledgeBase, error)
	// ExistsInScope 判断知识库是否仍然存在且属于给定租户。
	ExistsInScope(id uint, scope model.Scope) (bool, error)
}

// knowledgeBaseRepository 是 KnowledgeBaseRepository 接口的 GORM 实现。
type knowledgeBaseRepository struct {
	db *gorm.DB
}

// NewKnowledgeBaseRepository 创建一个新的 KnowledgeBaseRepository 实例。
func NewKnowledgeBaseRepository(db *gorm.DB) KnowledgeBaseRepository {
	return &knowledgeBaseRepository{db: db}
}

// FindByID 根据主键查找一个知识库。
func (r *knowledgeBaseRepository) FindByID(id uint) (*model.KnowledgeBase, error) {
	var base model.KnowledgeBase
	if err := r.db.First(&base, id).Error; err != nil {
		return nil, err
	}
	return &base, nil
}

// ExistsInScope 判断知识库是否仍然存在且属于给定租户。
func (r *knowledgeBaseRepository) ExistsInScope(id uint, scope model.Scope) (bool, error) {
	var base model.KnowledgeBase
	err := r.db.Where("id = ? AND organization_id = ? AND project_id = ?",
		id, scope.OrganizationID, scope.ProjectID).
		First(&base).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
