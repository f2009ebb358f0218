// Package repository 包含了所有与数据库交互的逻辑。
package repository

import (
	"kb-space-go/internal/model"

	"gorm.io/gorm"
)

// PageRepository 接口定义了页面内容的数据操作方法。
// 页面由 document 节点独占持有，级联删除在 WorkSpaceRepository 的事务里完成，
// 这里只提供单页粒度的读写。
type PageRepository interface {
	FindByID(id uint) (*model.Page, error)
	Create(page *model.Page) error
	// UpdateFields 对页面做字段级更新（最后写入者胜出）。
	UpdateFields(id uint, fields map[string]interface{}) error
	Delete(id uint) error
}

// pageRepository 是 PageRepository 接口的 GORM 实现。
type pageRepository struct {
	db *gorm.DB
}

// NewPageRepository 创建一个新的 PageRepository 实例。
func NewPageRepository(db *gorm.DB) PageRepository {
	return &pageRepository{db: db}
}

// FindByID 根据主键查找一篇页面。
func (r *pageRepository) FindByID(id uint) (*model.Page, error) {
	var page model.Page
	if err := r.db.First(&page, id).Error; err != nil {
		return nil, err
	}
	return &page, nil
}

// Create 在数据库中插入一篇新页面。
func (r *pageRepository) Create(page *model.Page) error {
	return r.db.Create(page).Error
}

// UpdateFields 更新页面的部分字段。
func (r *pageRepository) UpdateFields(id uint, fields map[string]interface{}) error {
	return r.db.Model(&model.Page{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 根据主键删除一篇页面。
func (r *pageRepository) Delete(id uint) error {
	return r.db.Delete(&model.Page{}, id).Error
}
