// Package model 定义了与数据库表对应的 Go 结构体。
package model

// WorkSpaceTreeNode represents a node in the workspace tree view.
// Children 保存的是子节点 id 而不是指针，树本身通过 Items 索引表表达，
// 避免在内存里构造可能成环的指针结构。
type WorkSpaceTreeNode struct {
	ID          uint   `json:"id"`
	ParentID    uint   `json:"parentId"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	HasChildren bool   `json:"hasChildren"`
	Children    []uint `json:"children"`
	// IsExpand 标记该节点位于展开路径上，前端据此预先展开。
	IsExpand bool `json:"isExpand"`
}

// WorkSpaceTree 是全树查询的返回结构：根节点列表 + id 到节点的索引表。
type WorkSpaceTree struct {
	Roots []uint                      `json:"rootIds"`
	Items map[uint]*WorkSpaceTreeNode `json:"items"`
	// ExpandPath 是从根到目标节点父级的祖先 id 序列（不含目标节点本身）。
	ExpandPath []uint `json:"expandPath"`
}

// HighlightSpan 标记页面纯文本内容中一段与检索串匹配的区间，[Start, End)。
type HighlightSpan struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// WorkSpaceInfo 是单节点查询的聚合视图：节点本身、关联页面与高亮区间。
type WorkSpaceInfo struct {
	WorkSpace  *WorkSpace      `json:"workSpace"`
	Page       *Page           `json:"page,omitempty"`
	Highlights []HighlightSpan `json:"highlights,omitempty"`
	// BaseExist 标记节点所属知识库是否仍然存在。
	BaseExist bool `json:"baseExist"`
}

// WorkSpaceSummary 是最近更新列表的行视图。
type WorkSpaceSummary struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	BaseID    uint      `json:"baseId"`
	UpdatedBy uint      `json:"updatedBy"`
	UpdatedAt LocalTime `json:"updatedAt"`
}
