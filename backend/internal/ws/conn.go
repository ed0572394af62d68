package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"canvasServer/backend/internal/session"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 20 // 画布内容整体上行，给足空间
)

// EventHandler 会话层入口，session.Service 实现了它
type EventHandler interface {
	Connect(connID string)
	Handle(connID, event string, payload json.RawMessage)
	Disconnect(connID string)
}

type Conn struct {
	id  string
	ws  *websocket.Conn
	hub *Hub
	svc EventHandler

	// 出站队列，writeLoop 消费；满了直接丢，不阻塞事件处理
	send   chan session.Message
	mu     sync.Mutex
	closed bool
}

func NewConn(id string, ws *websocket.Conn, hub *Hub, svc EventHandler, queueSize int) *Conn {
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Conn{id: id, ws: ws, hub: hub, svc: svc, send: make(chan session.Message, queueSize)}
}

func (c *Conn) ID() string { return c.id }

// Enqueue 放入发送队列；连接已关闭或队列已满返回 false
func (c *Conn) Enqueue(msg session.Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		// 如果队列满了，则丢弃消息
		return false
	}
}

func (c *Conn) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readLoop 阻塞读取直到连接断开；同一连接的事件按到达顺序依次处理
func (c *Conn) readLoop() {
	defer func() {
		c.hub.Remove(c.id)
		c.svc.Disconnect(c.id)
		c.closeSend()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("read json error (conn=%s): %v", c.id, err)
			}
			return
		}
		if msg.Event == "" {
			continue
		}
		// disconnect 只由传输层产生，客户端不能伪造
		if msg.Event == session.EventDisconnect {
			continue
		}
		c.svc.Handle(c.id, msg.Event, msg.Payload)
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				log.Printf("write json error (conn=%s, event=%s): %v", c.id, msg.Event, err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
