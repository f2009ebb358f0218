// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Page 对应于数据库中的 'kb_page' 表。
// 一篇页面内容由且仅由一个 document 类型的工作空间节点持有，
// 生命周期与该节点绑定：节点删除时页面一并删除。
type Page struct {
	ID uint `gorm:"primaryKey;autoIncrement" json:"id"`
	// Title 冗余存储节点名称，便于页面单独检索时展示。
	Title string `gorm:"type:varchar(255);not null" json:"title"`
	// Content 是页面的纯文本投影，高亮检索在其上进行。
	Content   string    `gorm:"type:longtext" json:"content"`
	CreatedBy uint      `gorm:"not null" json:"createdBy"`
	UpdatedBy uint      `gorm:"not null" json:"updatedBy"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Page) TableName() string {
	return "kb_page"
}
