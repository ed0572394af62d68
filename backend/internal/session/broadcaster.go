package session

import (
	"log"
	"sync"

	"canvasServer/backend/internal/presence"
)

// Transport 把消息投递到某条连接；实现方必须立即返回（队列满就丢弃）
type Transport interface {
	Send(connID string, msg Message) error
}

// groupKey 画布广播组的键，只在进程内使用
func groupKey(canvasID string) string { return "canvas_" + canvasID }

// Broadcaster 维护在线连接集合和画布广播组。广播组只是缓存，
// 每次上线/断开/成员变化时重新推导，不是事实来源。
type Broadcaster struct {
	transport Transport
	presence  *presence.Registry
	metrics   *Metrics

	mu     sync.RWMutex
	conns  map[string]struct{}
	groups map[string]map[string]struct{}
}

func NewBroadcaster(t Transport, p *presence.Registry, m *Metrics) *Broadcaster {
	return &Broadcaster{
		transport: t,
		presence:  p,
		metrics:   m,
		conns:     make(map[string]struct{}),
		groups:    make(map[string]map[string]struct{}),
	}
}

func (b *Broadcaster) Register(connID string) {
	b.mu.Lock()
	b.conns[connID] = struct{}{}
	n := len(b.conns)
	b.mu.Unlock()
	b.metrics.SetConnections(n)
}

// Unregister 移除连接，并把它从所有广播组中摘掉
func (b *Broadcaster) Unregister(connID string) {
	b.mu.Lock()
	delete(b.conns, connID)
	for key, members := range b.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(b.groups, key)
		}
	}
	n := len(b.conns)
	b.mu.Unlock()
	b.metrics.SetConnections(n)
}

// Attach 幂等：重复加入同一组没有副作用
func (b *Broadcaster) Attach(connID, canvasID string) {
	key := groupKey(canvasID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.groups[key] == nil {
		b.groups[key] = make(map[string]struct{})
	}
	b.groups[key][connID] = struct{}{}
}

func (b *Broadcaster) Detach(connID, canvasID string) {
	key := groupKey(canvasID)
	b.mu.Lock()
	defer b.mu.Unlock()
	if members, ok := b.groups[key]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(b.groups, key)
		}
	}
}

// DetachAll 把连接从所有画布组中摘掉，但仍保留在全局广播集合里
func (b *Broadcaster) DetachAll(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, members := range b.groups {
		delete(members, connID)
		if len(members) == 0 {
			delete(b.groups, key)
		}
	}
}

func (b *Broadcaster) DropGroup(canvasID string) {
	b.mu.Lock()
	delete(b.groups, groupKey(canvasID))
	b.mu.Unlock()
}

func (b *Broadcaster) IsAttached(connID, canvasID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.groups[groupKey(canvasID)][connID]
	return ok
}

// GroupMembers 当前组内连接的拷贝
func (b *Broadcaster) GroupMembers(canvasID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	members := b.groups[groupKey(canvasID)]
	out := make([]string, 0, len(members))
	for connID := range members {
		out = append(out, connID)
	}
	return out
}

// SendTo 单连接投递，失败只记录，不向上传播
func (b *Broadcaster) SendTo(connID string, msg Message) {
	if err := b.transport.Send(connID, msg); err != nil {
		log.Printf("deliver %s to conn=%s failed: %v", msg.Event, connID, err)
		b.metrics.RecordDropped()
	}
}

func (b *Broadcaster) BroadcastAll(msg Message) {
	b.mu.RLock()
	targets := make([]string, 0, len(b.conns))
	for connID := range b.conns {
		targets = append(targets, connID)
	}
	b.mu.RUnlock()
	for _, connID := range targets {
		b.SendTo(connID, msg)
	}
}

func (b *Broadcaster) BroadcastToCanvas(canvasID string, msg Message) {
	for _, connID := range b.GroupMembers(canvasID) {
		b.SendTo(connID, msg)
	}
}

// BroadcastToUser 按在线表找到连接后直接发送；不在线返回 false
func (b *Broadcaster) BroadcastToUser(userID string, msg Message) bool {
	e, ok := b.presence.Get(userID)
	if !ok {
		return false
	}
	b.SendTo(e.ConnID, msg)
	return true
}
