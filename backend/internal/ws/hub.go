package ws

import (
	"errors"
	"sync"

	"canvasServer/backend/internal/session"
)

var (
	ErrConnNotFound  = errors.New("connection not found")
	ErrSendQueueFull = errors.New("send queue full")
)

// Hub 保存本进程所有 websocket 连接，按连接 id 投递，实现 session.Transport。
// 画布分组由会话层维护，这里只负责把消息交给具体连接。
type Hub struct {
	// 读写锁，保护 conns；加入/离开、投递时都会先加锁
	mu    sync.RWMutex
	conns map[string]*Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

func (h *Hub) Add(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, connID)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Send 非阻塞：连接不存在或发送队列已满都直接返回错误
func (h *Hub) Send(connID string, msg session.Message) error {
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c == nil {
		return ErrConnNotFound
	}
	if !c.Enqueue(msg) {
		return ErrSendQueueFull
	}
	return nil
}
