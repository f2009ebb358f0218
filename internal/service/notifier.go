// Package service 包含了应用的业务逻辑层。
package service

import (
	"fmt"
	"sync"

	"kb-space-go/internal/model"
	"kb-space-go/pkg/events"
)

// 每个订阅者的事件缓冲大小。缓冲写满说明客户端消费太慢，事件会被丢弃，
// 客户端重新拉取全树即可补齐，因此丢事件只影响实时性不影响正确性。
const subscriberBuffer = 16

// Notifier 是进程内的变更事件分发器。
// WebSocket 层按租户订阅，树引擎在每次结构性变更后广播事件，
// 前端据此刷新树视图。
type Notifier struct {
	mu   sync.RWMutex
	subs map[string]map[chan events.WorkSpaceEvent]struct{}
}

// NewNotifier 创建一个新的 Notifier 实例。
func NewNotifier() *Notifier {
	return &Notifier{
		subs: make(map[string]map[chan events.WorkSpaceEvent]struct{}),
	}
}

func scopeKey(scope model.Scope) string {
	return fmt.Sprintf("%d:%d", scope.OrganizationID, scope.ProjectID)
}

// Subscribe 订阅某个租户下的变更事件，返回事件通道和取消函数。
// 取消函数可以安全地多次调用。
func (n *Notifier) Subscribe(scope model.Scope) (<-chan events.WorkSpaceEvent, func()) {
	ch := make(chan events.WorkSpaceEvent, subscriberBuffer)
	key := scopeKey(scope)

	n.mu.Lock()
	if n.subs[key] == nil {
		n.subs[key] = make(map[chan events.WorkSpaceEvent]struct{})
	}
	n.subs[key][ch] = struct{}{}
	n.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs[key], ch)
			if len(n.subs[key]) == 0 {
				delete(n.subs, key)
			}
			n.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish 向租户下的所有订阅者广播一条事件，从不阻塞发布方。
func (n *Notifier) Publish(scope model.Scope, event events.WorkSpaceEvent) {
	key := scopeKey(scope)

	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.subs[key] {
		select {
		case ch <- event:
		default:
			// 订阅者消费太慢，丢弃事件
		}
	}
}
