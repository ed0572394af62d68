package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"canvasServer/backend/internal/membership"
	"canvasServer/backend/internal/presence"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	failures int // 前 N 次调用失败
}

func (b *fakeBackend) record(call string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return errors.New("backend unavailable")
	}
	b.calls = append(b.calls, call)
	return nil
}

func (b *fakeBackend) SaveCanvas(_ context.Context, c membership.Canvas) error {
	return b.record("canvas:" + c.ID)
}

func (b *fakeBackend) SaveCollaborator(_ context.Context, canvasID string, c membership.Collaborator, _ int) error {
	return b.record("add:" + canvasID + ":" + c.UserID)
}

func (b *fakeBackend) RemoveCollaborator(_ context.Context, canvasID, userID string) error {
	return b.record("remove:" + canvasID + ":" + userID)
}

func (b *fakeBackend) SaveSnapshot(_ context.Context, canvasID string, content []byte) error {
	return b.record("snapshot:" + canvasID + ":" + string(content))
}

func (b *fakeBackend) DeleteCanvas(_ context.Context, canvasID string) error {
	return b.record("delete:" + canvasID)
}

func TestWriterKeepsOrder(t *testing.T) {
	b := &fakeBackend{}
	w := NewWriter(b, WriterOptions{QueueSize: 16})
	s := membership.NewStore(w)

	s.SetAdmin("c1", presence.Profile{UserID: "u1", Username: "alice"})
	s.AddCollaborator("c1", membership.Collaborator{UserID: "u2", Username: "bob"})
	s.SetSnapshot("c1", []byte(`"X"`))
	s.RemoveCollaborator("c1", "u2")
	s.DeleteCanvas("c1")
	w.Close()

	want := []string{"canvas:c1", "add:c1:u2", `snapshot:c1:"X"`, "remove:c1:u2", "delete:c1"}
	if len(b.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", b.calls, want)
	}
	for i := range want {
		if b.calls[i] != want[i] {
			t.Fatalf("calls[%d] = %s, want %s", i, b.calls[i], want[i])
		}
	}
}

func TestWriterRetries(t *testing.T) {
	b := &fakeBackend{failures: 2}
	w := NewWriter(b, WriterOptions{QueueSize: 4, MaxRetry: 3, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})

	w.SaveSnapshot("c1", []byte(`1`))
	w.Close()

	if len(b.calls) != 1 || b.calls[0] != "snapshot:c1:1" {
		t.Fatalf("calls = %v", b.calls)
	}
}

func TestWriterDropsAfterMaxRetry(t *testing.T) {
	b := &fakeBackend{failures: 5}
	w := NewWriter(b, WriterOptions{QueueSize: 4, MaxRetry: 1, BaseBackoff: time.Millisecond})

	w.DeleteCanvas("c1")
	w.SaveCanvas(membership.Canvas{ID: "c2"})
	w.Close()

	// 第一个操作两次都失败被丢弃，第二个操作还剩 3 次失败，同样被丢弃
	if len(b.calls) != 0 {
		t.Fatalf("calls = %v", b.calls)
	}
	if b.failures != 1 {
		t.Fatalf("failures left = %d, want 1", b.failures)
	}
}
