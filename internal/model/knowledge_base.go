// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// KnowledgeBase 对应于数据库中的 'kb_knowledge_base' 表。
// 知识库是租户内工作空间树的命名集合，节点的 BaseID 指向它。
// 知识库可能在节点仍存在时被删除，因此节点侧需要 belong_base_exist 检查。
type KnowledgeBase struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrganizationID uint      `gorm:"not null;default:0;index" json:"organizationId"`
	ProjectID      uint      `gorm:"not null;default:0;index" json:"projectId"`
	Name           string    `gorm:"type:varchar(255);not null" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	CreatedBy      uint      `gorm:"not null" json:"createdBy"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (KnowledgeBase) TableName() string {
	return "kb_knowledge_base"
}
