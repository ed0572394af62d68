package membership

import (
	"encoding/json"
	"reflect"
	"testing"

	"canvasServer/backend/internal/presence"
)

type fakePersister struct {
	calls []string
	seqs  map[string]int
}

func (f *fakePersister) SaveCanvas(c Canvas) { f.calls = append(f.calls, "canvas:"+c.ID) }
func (f *fakePersister) SaveCollaborator(canvasID string, c Collaborator, position int) {
	f.calls = append(f.calls, "add:"+canvasID+":"+c.UserID)
	if f.seqs == nil {
		f.seqs = make(map[string]int)
	}
	f.seqs[c.UserID] = position
}
func (f *fakePersister) RemoveCollaborator(canvasID, userID string) {
	f.calls = append(f.calls, "remove:"+canvasID+":"+userID)
}
func (f *fakePersister) SaveSnapshot(canvasID string, content json.RawMessage) {
	f.calls = append(f.calls, "snapshot:"+canvasID)
}
func (f *fakePersister) DeleteCanvas(canvasID string) { f.calls = append(f.calls, "delete:"+canvasID) }

func profile(userID string) presence.Profile {
	return presence.Profile{UserID: userID, Username: "name-" + userID}
}

func TestIsCollaborator_AbsentCanvas(t *testing.T) {
	s := NewStore(nil)
	if s.IsCollaborator("missing", "u1") {
		t.Fatalf("IsCollaborator on absent canvas = true")
	}
	if got := s.Collaborators("missing"); len(got) != 0 {
		t.Fatalf("Collaborators(missing) = %v, want empty", got)
	}
	if s.IsAdmin("missing", "u1") {
		t.Fatalf("IsAdmin on absent canvas = true")
	}
}

func TestAddCollaborator_IdempotentAndOrdered(t *testing.T) {
	s := NewStore(nil)
	s.SetAdmin("c1", profile("admin"))
	for _, id := range []string{"u2", "u1", "u3", "u1"} {
		s.AddCollaborator("c1", profile(id))
	}
	var ids []string
	for _, c := range s.Collaborators("c1") {
		ids = append(ids, c.UserID)
	}
	if want := []string{"u2", "u1", "u3"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("collaborators = %v, want %v", ids, want)
	}
}

func TestAdminNeverCollaborator(t *testing.T) {
	s := NewStore(nil)
	s.SetAdmin("c1", profile("u1"))
	if s.AddCollaborator("c1", profile("u1")) {
		t.Fatalf("AddCollaborator(admin) = true, want false")
	}

	s.AddCollaborator("c1", profile("u2"))
	// 协作者发起邀请会接管管理员，同时离开协作者列表
	s.SetAdmin("c1", profile("u2"))
	if s.IsCollaborator("c1", "u2") {
		t.Fatalf("u2 is both admin and collaborator")
	}
	if !s.IsAdmin("c1", "u2") {
		t.Fatalf("IsAdmin(c1, u2) = false after overwrite")
	}
}

func TestRemoveCollaborator(t *testing.T) {
	s := NewStore(nil)
	s.AddCollaborator("c1", profile("u1"))
	if s.RemoveCollaborator("c1", "nobody") {
		t.Fatalf("RemoveCollaborator(nobody) = true")
	}
	if !s.RemoveCollaborator("c1", "u1") {
		t.Fatalf("RemoveCollaborator(u1) = false")
	}
	if s.IsCollaborator("c1", "u1") {
		t.Fatalf("u1 still collaborator after removal")
	}
}

func TestListCanvases(t *testing.T) {
	s := NewStore(nil)
	s.SetAdmin("a", profile("owner"))
	s.SetAdmin("b", profile("other"))
	s.SetAdmin("c", profile("owner"))
	s.AddCollaborator("c", profile("u1"))
	s.AddCollaborator("a", profile("u1"))

	if got, want := s.ListCanvasesFor("u1"), []string{"a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ListCanvasesFor(u1) = %v, want %v", got, want)
	}
	if got, want := s.ListAdminCanvases("owner"), []string{"a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ListAdminCanvases(owner) = %v, want %v", got, want)
	}
	if got := s.ListCanvasesFor("nobody"); len(got) != 0 {
		t.Fatalf("ListCanvasesFor(nobody) = %v", got)
	}
}

func TestSetSnapshotUnknownCanvas(t *testing.T) {
	p := &fakePersister{}
	s := NewStore(p)
	if s.SetSnapshot("ghost", json.RawMessage(`"X"`)) {
		t.Fatalf("SetSnapshot on unknown canvas reported ok")
	}
	if _, ok := s.Get("ghost"); ok {
		t.Fatalf("SetSnapshot created a canvas")
	}
	if len(p.calls) != 0 {
		t.Fatalf("persister calls = %v", p.calls)
	}
}

func TestSnapshotAndDelete(t *testing.T) {
	p := &fakePersister{}
	s := NewStore(p)
	if _, ok := s.Snapshot("c1"); ok {
		t.Fatalf("Snapshot before any update reported present")
	}
	s.SetAdmin("c1", profile("u1"))
	s.AddCollaborator("c1", profile("u2"))
	s.SetSnapshot("c1", json.RawMessage(`"X"`))

	got, ok := s.Snapshot("c1")
	if !ok || string(got) != `"X"` {
		t.Fatalf("Snapshot(c1) = %s, %v", got, ok)
	}

	removed, ok := s.DeleteCanvas("c1")
	if !ok || len(removed.Collaborators) != 1 || removed.Admin.UserID != "u1" {
		t.Fatalf("DeleteCanvas(c1) = %+v, %v", removed, ok)
	}
	if s.IsAdmin("c1", "u1") || s.IsCollaborator("c1", "u2") {
		t.Fatalf("membership survived DeleteCanvas")
	}
	if _, ok := s.Snapshot("c1"); ok {
		t.Fatalf("snapshot survived DeleteCanvas")
	}
	if _, ok := s.DeleteCanvas("c1"); ok {
		t.Fatalf("second DeleteCanvas reported ok")
	}

	want := []string{"canvas:c1", "add:c1:u2", "snapshot:c1", "delete:c1"}
	if !reflect.DeepEqual(p.calls, want) {
		t.Fatalf("persister calls = %v, want %v", p.calls, want)
	}
}

func TestRestore(t *testing.T) {
	p := &fakePersister{}
	s := NewStore(p)
	admin := profile("u1")
	s.Restore([]Canvas{{
		ID:            "c1",
		Name:          "board",
		Admin:         &admin,
		Collaborators: []Collaborator{profile("u2")},
		Snapshot:      json.RawMessage(`[1,2]`),
	}})
	if !s.IsAdmin("c1", "u1") || !s.IsCollaborator("c1", "u2") || s.Name("c1") != "board" {
		t.Fatalf("restore lost membership: %+v", s.canvases["c1"])
	}
	if len(p.calls) != 0 {
		t.Fatalf("Restore wrote back to persister: %v", p.calls)
	}
}

func TestCollaboratorSeqSurvivesRemovals(t *testing.T) {
	p := &fakePersister{}
	s := NewStore(p)
	s.SetAdmin("c1", profile("admin"))
	for _, id := range []string{"a", "b", "c"} {
		s.AddCollaborator("c1", profile(id))
	}
	s.RemoveCollaborator("c1", "a")
	s.RemoveCollaborator("c1", "b")
	s.AddCollaborator("c1", profile("d"))

	if p.seqs["d"] <= p.seqs["c"] {
		t.Fatalf("seq of d (%d) must be after c (%d)", p.seqs["d"], p.seqs["c"])
	}

	// 按持久化的 seq 排序后回填，加入顺序不变，后续分配继续递增
	c, _ := s.Get("c1")
	restored := NewStore(p)
	restored.Restore([]Canvas{c})
	var ids []string
	for _, col := range restored.Collaborators("c1") {
		ids = append(ids, col.UserID)
	}
	if want := []string{"c", "d"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("restored collaborators = %v, want %v", ids, want)
	}
	restored.AddCollaborator("c1", profile("e"))
	if p.seqs["e"] <= p.seqs["d"] {
		t.Fatalf("seq after restore reused: e=%d d=%d", p.seqs["e"], p.seqs["d"])
	}
}
