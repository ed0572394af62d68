package membership

import (
	"encoding/json"
	"sync"

	"canvasServer/backend/internal/presence"
)

// Collaborator 画布协作者（不包含管理员）
type Collaborator = presence.Profile

// Canvas 单个画布的成员关系与最近一次快照
type Canvas struct {
	ID            string
	Name          string
	Admin         *presence.Profile
	Collaborators []Collaborator
	// 不透明的画布内容（lines），从未更新过时为 nil
	Snapshot json.RawMessage
	// LastSeq 最近一次分配给协作者的序号，只增不减；持久化时按它排序恢复加入顺序
	LastSeq int
}

// Persister 旁路持久化：每次变更后通知，实现方不得阻塞调用方
type Persister interface {
	SaveCanvas(c Canvas)
	SaveCollaborator(canvasID string, c Collaborator, position int)
	RemoveCollaborator(canvasID, userID string)
	SaveSnapshot(canvasID string, content json.RawMessage)
	DeleteCanvas(canvasID string)
}

// Store 内存中的画布成员关系；内存是事实来源，Persister 只是镜像
type Store struct {
	mu       sync.RWMutex
	canvases map[string]*Canvas
	// 画布创建顺序，保证按用户扫描画布时结果稳定
	order     []string
	persister Persister
}

func NewStore(p Persister) *Store {
	return &Store{canvases: make(map[string]*Canvas), persister: p}
}

func (s *Store) getOrCreate(canvasID string) *Canvas {
	c := s.canvases[canvasID]
	if c == nil {
		c = &Canvas{ID: canvasID}
		s.canvases[canvasID] = c
		s.order = append(s.order, canvasID)
	}
	return c
}

func indexOf(list []Collaborator, userID string) int {
	for i, c := range list {
		if c.UserID == userID {
			return i
		}
	}
	return -1
}

// SetAdmin 设置/覆盖画布管理员。新管理员若已是协作者则从协作者中移除，
// 保证同一画布上不会同时是管理员和协作者。
func (s *Store) SetAdmin(canvasID string, admin presence.Profile) {
	s.mu.Lock()
	c := s.getOrCreate(canvasID)
	a := admin
	c.Admin = &a
	removed := false
	if i := indexOf(c.Collaborators, admin.UserID); i >= 0 {
		c.Collaborators = append(c.Collaborators[:i], c.Collaborators[i+1:]...)
		removed = true
	}
	record := cloneCanvas(c)
	s.mu.Unlock()

	if s.persister != nil {
		if removed {
			s.persister.RemoveCollaborator(canvasID, admin.UserID)
		}
		s.persister.SaveCanvas(record)
	}
}

func (s *Store) IsAdmin(canvasID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.canvases[canvasID]
	return c != nil && c.Admin != nil && c.Admin.UserID == userID
}

// Admin 返回管理员资料；尚未发出过邀请的画布没有管理员
func (s *Store) Admin(canvasID string) (presence.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.canvases[canvasID]
	if c == nil || c.Admin == nil {
		return presence.Profile{}, false
	}
	return *c.Admin, true
}

func (s *Store) IsCollaborator(canvasID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.canvases[canvasID]
	if c == nil {
		return false
	}
	return indexOf(c.Collaborators, userID) >= 0
}

// AddCollaborator 追加协作者，保持加入顺序。已存在或是管理员时不做任何事，返回 false。
func (s *Store) AddCollaborator(canvasID string, collab Collaborator) bool {
	s.mu.Lock()
	c := s.getOrCreate(canvasID)
	if indexOf(c.Collaborators, collab.UserID) >= 0 || (c.Admin != nil && c.Admin.UserID == collab.UserID) {
		s.mu.Unlock()
		return false
	}
	c.Collaborators = append(c.Collaborators, collab)
	c.LastSeq++
	position := c.LastSeq
	s.mu.Unlock()

	if s.persister != nil {
		s.persister.SaveCollaborator(canvasID, collab, position)
	}
	return true
}

func (s *Store) RemoveCollaborator(canvasID, userID string) bool {
	s.mu.Lock()
	c := s.canvases[canvasID]
	if c == nil {
		s.mu.Unlock()
		return false
	}
	i := indexOf(c.Collaborators, userID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	c.Collaborators = append(c.Collaborators[:i], c.Collaborators[i+1:]...)
	s.mu.Unlock()

	if s.persister != nil {
		s.persister.RemoveCollaborator(canvasID, userID)
	}
	return true
}

func (s *Store) Collaborators(canvasID string) []Collaborator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.canvases[canvasID]
	if c == nil {
		return []Collaborator{}
	}
	out := make([]Collaborator, len(c.Collaborators))
	copy(out, c.Collaborators)
	return out
}

// ListCanvasesFor 扫描所有画布，返回 userID 作为协作者的画布
func (s *Store) ListCanvasesFor(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.order {
		if indexOf(s.canvases[id].Collaborators, userID) >= 0 {
			out = append(out, id)
		}
	}
	return out
}

// ListAdminCanvases 返回 userID 担任管理员的画布
func (s *Store) ListAdminCanvases(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []string{}
	for _, id := range s.order {
		if a := s.canvases[id].Admin; a != nil && a.UserID == userID {
			out = append(out, id)
		}
	}
	return out
}

// SetSnapshot 只更新已存在的画布；画布由 SetAdmin/AddCollaborator 创建，未知画布返回 false
func (s *Store) SetSnapshot(canvasID string, content json.RawMessage) bool {
	s.mu.Lock()
	c := s.canvases[canvasID]
	if c == nil {
		s.mu.Unlock()
		return false
	}
	c.Snapshot = append(json.RawMessage(nil), content...)
	s.mu.Unlock()

	if s.persister != nil {
		s.persister.SaveSnapshot(canvasID, content)
	}
	return true
}

func (s *Store) Snapshot(canvasID string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.canvases[canvasID]
	if c == nil || c.Snapshot == nil {
		return nil, false
	}
	return append(json.RawMessage(nil), c.Snapshot...), true
}

func (s *Store) SetName(canvasID, name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	c := s.getOrCreate(canvasID)
	changed := c.Name != name
	c.Name = name
	record := cloneCanvas(c)
	s.mu.Unlock()

	if changed && s.persister != nil {
		s.persister.SaveCanvas(record)
	}
}

func (s *Store) Name(canvasID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.canvases[canvasID]; c != nil {
		return c.Name
	}
	return ""
}

// DeleteCanvas 一次性移除管理员、协作者和快照，返回被删除的记录
func (s *Store) DeleteCanvas(canvasID string) (Canvas, bool) {
	s.mu.Lock()
	c := s.canvases[canvasID]
	if c == nil {
		s.mu.Unlock()
		return Canvas{}, false
	}
	delete(s.canvases, canvasID)
	for i, id := range s.order {
		if id == canvasID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	if s.persister != nil {
		s.persister.DeleteCanvas(canvasID)
	}
	return *c, true
}

// Get 返回画布记录的拷贝
func (s *Store) Get(canvasID string) (Canvas, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.canvases[canvasID]
	if c == nil {
		return Canvas{}, false
	}
	return cloneCanvas(c), true
}

// Restore 启动时从持久化层回填，不会再回写 Persister
func (s *Store) Restore(canvases []Canvas) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, in := range canvases {
		if in.ID == "" {
			continue
		}
		c := s.getOrCreate(in.ID)
		restored := cloneCanvas(&in)
		if restored.LastSeq < len(restored.Collaborators) {
			restored.LastSeq = len(restored.Collaborators)
		}
		*c = restored
	}
}

func cloneCanvas(c *Canvas) Canvas {
	out := Canvas{ID: c.ID, Name: c.Name, LastSeq: c.LastSeq}
	if c.Admin != nil {
		a := *c.Admin
		out.Admin = &a
	}
	out.Collaborators = make([]Collaborator, len(c.Collaborators))
	copy(out.Collaborators, c.Collaborators)
	if c.Snapshot != nil {
		out.Snapshot = append(json.RawMessage(nil), c.Snapshot...)
	}
	return out
}
