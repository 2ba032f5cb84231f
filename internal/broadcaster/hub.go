// Package broadcaster 将完整快照扇出给所有已连接的观察者。
// 每条消息都是全量状态而非增量：掉消息的客户端只会看到旧数据，
// 不会因为部分应用而看到不一致状态。
package broadcaster

import (
	"context"

	"go.uber.org/zap"
)

// SnapshotFunc 获取当前快照序列化副本（新连接立即收到）
type SnapshotFunc func() []byte

// Hub 维护活跃观察者集合并扇出快照。
// 发送是非阻塞的：发不动的慢客户端直接摘除，绝不阻塞触发广播的一侧。
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	snapshotFn SnapshotFunc
	logger     *zap.Logger
}

// NewHub 创建 Hub
func NewHub(snapshotFn SnapshotFunc, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		snapshotFn: snapshotFn,
		logger:     logger,
	}
}

// Run 事件循环，ctx 取消时退出并关闭所有客户端
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			// 新观察者先收到完整当前快照，才会收到后续更新
			select {
			case client.Send <- h.snapshotFn():
			default:
			}
			h.logger.Info("Observer connected",
				zap.String("client_id", client.ID),
				zap.Int("observers", len(h.clients)),
			)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Info("Observer disconnected",
					zap.String("client_id", client.ID),
					zap.Int("observers", len(h.clients)),
				)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// 发送缓冲已满，静默摘除慢客户端
					delete(h.clients, client)
					close(client.Send)
					h.logger.Warn("Observer send buffer full, dropping",
						zap.String("client_id", client.ID),
					)
				}
			}
		}
	}
}

// Register 注册新观察者
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销观察者
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast 将快照副本投递给所有观察者。
// 非阻塞：广播队列满时丢弃本次（后续广播仍是全量状态，观察者不会不一致）。
func (h *Hub) Broadcast(snapshot []byte) {
	select {
	case h.broadcast <- snapshot:
	default:
		h.logger.Warn("Broadcast queue full, dropping snapshot update")
	}
}
