// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 工作空间节点的类型。文件夹不持有页面内容，文档节点通过 PageID 关联一篇页面。
const (
	WorkSpaceTypeFolder   = "folder"
	WorkSpaceTypeDocument = "document"
)

// WorkSpace 对应于数据库中的 'kb_workspace' 表。
// 它是树形结构的权威记录：每个节点通过 ParentID 挂在同租户的另一个节点下，
// ParentID 为 0 表示根节点。
type WorkSpace struct {
	// ID 是工作空间节点的唯一标识符，作为主键。
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`
	// OrganizationID 与 ProjectID 二者有且只有一个非零，构成节点的租户边界。
	OrganizationID uint `gorm:"not null;default:0;index:idx_ws_scope" json:"organizationId"`
	ProjectID      uint `gorm:"not null;default:0;index:idx_ws_scope" json:"projectId"`
	// BaseID 指向节点所属的知识库，0 表示未启用知识库划分。
	// 子节点的 BaseID 必须与父节点一致。
	BaseID uint `gorm:"not null;default:0;index:idx_ws_scope" json:"baseId"`
	// ParentID 指向同一租户下的父节点，0 表示根节点。
	ParentID uint `gorm:"not null;default:0;index" json:"parentId"`
	// Type 取值为 folder 或 document。
	Type string `gorm:"type:varchar(30);not null" json:"type"`
	// Name 是节点的显示名称。
	Name string `gorm:"type:varchar(255);not null" json:"name"`
	// PageID 仅 document 类型节点持有，指向其独占的页面内容。
	PageID uint `gorm:"not null;default:0" json:"pageId"`
	// Rank 是兄弟节点间的排序键，按插入顺序留有间隙以便插入。
	Rank int `gorm:"not null;default:0" json:"rank"`
	// Version 用于乐观并发控制，每次结构性修改递增。
	Version   int64     `gorm:"not null;default:1" json:"version"`
	CreatedBy uint      `gorm:"not null" json:"createdBy"`
	UpdatedBy uint      `gorm:"not null" json:"updatedBy"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (WorkSpace) TableName() string {
	return "kb_workspace"
}

// IsDocument 判断节点是否为文档节点。
func (w *WorkSpace) IsDocument() bool {
	return w.Type == WorkSpaceTypeDocument
}

// Scope 表示一次操作的租户边界：组织或项目，二者有且只有一个非零。
type Scope struct {
	OrganizationID uint `json:"organizationId"`
	ProjectID      uint `json:"projectId"`
}

// Valid 校验 Scope 是否恰好指定了组织或项目之一。
func (s Scope) Valid() bool {
	return (s.OrganizationID == 0) != (s.ProjectID == 0)
}

// Contains 判断节点是否属于该租户边界。
func (s Scope) Contains(w *WorkSpace) bool {
	return w.OrganizationID == s.OrganizationID && w.ProjectID == s.ProjectID
}
