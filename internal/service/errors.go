// Package service 包含了应用的业务逻辑层。
package service

import "errors"

// 树引擎的错误类别。校验错误在任何修改发生之前返回，整个操作无副作用；
// ErrConflict 表示调用方应重新加载后重试（引擎内部不做重试）；
// ErrIntegrity 表示数据已经损坏（如树中出现残留环），只能大声上报，不做静默修复。
var (
	// ErrNotFound 表示引用的节点、父节点或页面不存在（或不属于当前租户）。
	ErrNotFound = errors.New("工作空间节点不存在")
	// ErrScopeMismatch 表示操作跨越了租户或知识库边界。
	ErrScopeMismatch = errors.New("节点不属于当前租户或知识库")
	// ErrCycle 表示移动操作会让节点成为自己的祖先。
	ErrCycle = errors.New("移动会在树中产生环")
	// ErrConflict 表示乐观并发检查失败，目标已被并发修改或删除。
	ErrConflict = errors.New("节点已被并发修改，请重新加载后重试")
	// ErrForbidden 表示非管理员调用方试图删除不属于自己的节点。
	ErrForbidden = errors.New("没有权限删除该节点")
	// ErrIntegrity 表示检测到树结构损坏。
	ErrIntegrity = errors.New("工作空间树结构损坏")
	// ErrTreeTooLarge 表示租户下的节点数超过了一次全树查询允许加载的上限。
	ErrTreeTooLarge = errors.New("工作空间树超出单次加载上限")
)
