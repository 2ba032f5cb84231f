package broadcaster

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second    // 单条消息写超时
	pongWait       = 60 * time.Second    // 等待下一个 pong 的时限
	pingPeriod     = (pongWait * 9) / 10 // ping 周期，必须小于 pongWait
	maxMessageSize = 512                 // 观察者入站消息上限（观察者不应发大消息）
	sendBufferSize = 32                  // 出站缓冲，写满即视为慢客户端
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 鉴权在范围外，放行所有来源
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client 一个已连接的观察者
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte

	logger *zap.Logger
}

// ServeWS WebSocket 升级入口（挂在 HTTP 路由上）
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := &Client{
		ID:     uuid.New().String(),
		Hub:    h,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
		logger: h.logger,
	}

	h.Register(client)

	go client.writePump()
	go client.readPump()
}

// readPump 消费观察者入站消息（仅用于探测断开，内容忽略）
func (c *Client) readPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("Websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// writePump 将 Send 通道的快照写给观察者，定期 ping 保活
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 已关闭该客户端
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
