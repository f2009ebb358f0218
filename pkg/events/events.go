// Package events 定义了服务之间传递的事件载荷。
// 独立成包是为了让生产者和潜在的消费者共享类型而不引入循环依赖。
package events

import "time"

// 工作空间变更事件的动作类型。
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionMoved   = "moved"
	ActionRemoved = "removed"
	ActionCloned  = "cloned"
)

// WorkSpaceEvent 描述一次工作空间树的结构或内容变更。
// 外部的全文索引等服务消费该事件来增量维护自己的视图；
// 树引擎只负责发出事件，不关心索引如何构建。
type WorkSpaceEvent struct {
	Action         string    `json:"action"`
	WorkSpaceID    uint      `json:"workSpaceId"`
	OrganizationID uint      `json:"organizationId"`
	ProjectID      uint      `json:"projectId"`
	BaseID         uint      `json:"baseId"`
	PageID         uint      `json:"pageId,omitempty"`
	// RemovedIDs 在级联删除时携带整棵被删子树的节点 id。
	RemovedIDs []uint    `json:"removedIds,omitempty"`
	OperatorID uint      `json:"operatorId"`
	OccurredAt time.Time `json:"occurredAt"`
}
