package presence

import "sync"

// Profile 用户的公开资料，随邀请、成员列表一起下发
type Profile struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	ProfilePhoto string `json:"profilePhoto,omitempty"`
}

// Entry 在线表中的一条记录：userId -> 当前连接
type Entry struct {
	Profile
	ConnID string `json:"-"`
}

// Mirror 在线表的外部镜像（一般是 Redis），只做旁路写入，不参与判定
type Mirror interface {
	Online(e Entry)
	Offline(userID string)
}

// Registry 谁在线、在哪条连接上的唯一事实来源
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	// 反向索引 connID -> userID，避免每次按连接线性查找
	byConn map[string]string
	mirror Mirror
}

func NewRegistry(mirror Mirror) *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		byConn:  make(map[string]string),
		mirror:  mirror,
	}
}

// Announce 写入/覆盖 userId 的在线记录。userId 或 username 为空时直接忽略。
// 同一 userId 再次上线会覆盖旧连接，旧连接之后不再能解析出该用户。
func (r *Registry) Announce(e Entry) bool {
	if e.UserID == "" || e.Username == "" {
		return false
	}
	r.mu.Lock()
	if prev, ok := r.entries[e.UserID]; ok && prev.ConnID != e.ConnID {
		delete(r.byConn, prev.ConnID)
	}
	// 同一连接换了身份：旧身份随之下线
	if prevUser, ok := r.byConn[e.ConnID]; ok && prevUser != e.UserID {
		delete(r.entries, prevUser)
	}
	r.entries[e.UserID] = e
	r.byConn[e.ConnID] = e.UserID
	r.mu.Unlock()

	if r.mirror != nil {
		r.mirror.Online(e)
	}
	return true
}

func (r *Registry) ResolveByConnection(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	userID, ok := r.byConn[connID]
	return userID, ok
}

func (r *Registry) Forget(userID string) bool {
	r.mu.Lock()
	e, ok := r.entries[userID]
	if ok {
		delete(r.entries, userID)
		delete(r.byConn, e.ConnID)
	}
	r.mu.Unlock()

	if ok && r.mirror != nil {
		r.mirror.Offline(userID)
	}
	return ok
}

func (r *Registry) Get(userID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[userID]
	return e, ok
}

// All 返回在线表的拷贝，用于全局广播 get-online-users
func (r *Registry) All() map[string]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Entry, len(r.entries))
	for k, v := range r.entries {
		out[k] = v
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
