package websocket

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// 写超时时间
	writeWait = 10 * time.Second

	// 读超时时间
	pongWait = 60 * time.Second

	// ping 周期 (必须小于 pongWait)
	pingPeriod = (pongWait * 9) / 10

	// 订阅是只读的,客户端只会发送控制帧,入站负载按协议滥用处理
	maxInboundSize = 512
)

// Client 一个状态变更事件的订阅连接
// 事件从 Hub 单向流向客户端;Send 满时 Hub 直接断开该订阅者,
// 慢消费者不会拖住广播
type Client struct {
	ID     string
	UserID string
	Hub    *Hub
	Conn   *websocket.Conn

	// Send 待推送的事件负载,每个元素是一个完整的 JSON 事件
	Send chan []byte
}

// NewClient 创建订阅连接
func NewClient(id string, userID string, hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		Hub:    hub,
		Conn:   conn,
		Send:   make(chan []byte, 256),
	}
}

// ReadPump 维持连接的读端
// 入站数据一律丢弃,只处理 pong 保活;读错误意味着连接结束,触发注销
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetReadLimit(maxInboundSize)
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithFields(logrus.Fields{
					"client_id": c.ID,
					"user_id":   c.UserID,
				}).WithError(err).Warn("event subscription closed unexpectedly")
			}
			return
		}
	}
}

// WritePump 推送事件并定期 ping
// 每个事件单独一帧: 负载是独立的 JSON 文档,合并成一帧会破坏消费端解析
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 注销了该订阅者
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, event); err != nil {
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
