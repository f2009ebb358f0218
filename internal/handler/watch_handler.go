// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"sync"
	"time"

	"kb-space-go/internal/model"
	"kb-space-go/internal/service"
	"kb-space-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// watchTicketTTL 是一次性连接票据的有效期。
const watchTicketTTL = 30 * time.Second

// watchTicket 记录票据绑定的租户与签发时间。
type watchTicket struct {
	scope    model.Scope
	issuedAt time.Time
}

// WatchHandler 负责处理树变更事件的 WebSocket 订阅。
// 浏览器的 WebSocket 不便携带 Authorization 头，因此先通过已认证的
// REST 接口换取一次性票据，再用票据建立连接。
type WatchHandler struct {
	notifier *service.Notifier
	tickets  sync.Map // key: ticket string, value: watchTicket
}

// NewWatchHandler 创建一个新的 WatchHandler 实例。
func NewWatchHandler(notifier *service.Notifier) *WatchHandler {
	return &WatchHandler{notifier: notifier}
}

// sweepExpiredTickets 清理已过期但从未被兑换的票据，防止废弃票据无限堆积。
func (h *WatchHandler) sweepExpiredTickets() {
	h.tickets.Range(func(key, value interface{}) bool {
		if time.Since(value.(watchTicket).issuedAt) > watchTicketTTL {
			h.tickets.Delete(key)
		}
		return true
	})
}

// IssueTicket 为当前认证用户签发一张一次性的 WebSocket 连接票据。
func (h *WatchHandler) IssueTicket(c *gin.Context) {
	scope, ok := scopeFromContext(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的租户参数"})
		return
	}

	h.sweepExpiredTickets()
	ticket := uuid.NewString()
	h.tickets.Store(ticket, watchTicket{scope: scope, issuedAt: time.Now()})
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "success",
		"data":    gin.H{"ticket": ticket},
	})
}

// redeemTicket 取出并销毁票据，过期票据视为无效。
func (h *WatchHandler) redeemTicket(ticket string) (model.Scope, bool) {
	value, ok := h.tickets.LoadAndDelete(ticket)
	if !ok {
		return model.Scope{}, false
	}
	t := value.(watchTicket)
	if time.Since(t.issuedAt) > watchTicketTTL {
		return model.Scope{}, false
	}
	return t.scope, true
}

// Handle 处理一个传入的 WebSocket 连接，把租户下的树变更事件实时推给客户端。
// 事件只是变更通知，客户端收到后重新拉取全树即可；推送通道写满时事件会被丢弃。
func (h *WatchHandler) Handle(c *gin.Context) {
	scope, ok := h.redeemTicket(c.Param("ticket"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效或已过期的票据", "data": nil})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	events, cancel := h.notifier.Subscribe(scope)
	defer cancel()

	log.Infof("树变更订阅已建立: organizationId=%d, projectId=%d", scope.OrganizationID, scope.ProjectID)

	// 读协程只用于感知客户端断开
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			log.Infof("树变更订阅已断开: organizationId=%d, projectId=%d", scope.OrganizationID, scope.ProjectID)
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				log.Warnf("推送树变更事件失败: %v", err)
				return
			}
		}
	}
}
