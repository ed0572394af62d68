package store

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"canvasServer/backend/internal/membership"
)

type writeKind int

const (
	writeCanvas writeKind = iota
	writeCollaborator
	removeCollaborator
	writeSnapshot
	deleteCanvas
)

type writeOp struct {
	kind     writeKind
	canvasID string
	canvas   membership.Canvas
	collab   membership.Collaborator
	seq      int
	userID   string
	content  []byte
}

// Writer 实现 membership.Persister：内存变更先入队，单个 worker 按顺序写库。
// - 写库失败有限重试，之后丢弃（内存仍是事实来源）
// - 队列满时丢弃，不阻塞事件处理
type Writer struct {
	backend Backend
	queue   chan writeOp

	maxRetry    int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	timeout     time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type WriterOptions struct {
	QueueSize   int
	MaxRetry    int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// 单次写库超时
	Timeout time.Duration
}

func NewWriter(backend Backend, opt WriterOptions) *Writer {
	if opt.Timeout <= 0 {
		opt.Timeout = 3 * time.Second
	}
	w := &Writer{
		backend:     backend,
		queue:       make(chan writeOp, opt.QueueSize),
		maxRetry:    opt.MaxRetry,
		baseBackoff: opt.BaseBackoff,
		maxBackoff:  opt.MaxBackoff,
		timeout:     opt.Timeout,
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *Writer) SaveCanvas(c membership.Canvas) {
	w.enqueue(writeOp{kind: writeCanvas, canvasID: c.ID, canvas: c})
}

func (w *Writer) SaveCollaborator(canvasID string, c membership.Collaborator, position int) {
	w.enqueue(writeOp{kind: writeCollaborator, canvasID: canvasID, collab: c, seq: position})
}

func (w *Writer) RemoveCollaborator(canvasID, userID string) {
	w.enqueue(writeOp{kind: removeCollaborator, canvasID: canvasID, userID: userID})
}

func (w *Writer) SaveSnapshot(canvasID string, content json.RawMessage) {
	w.enqueue(writeOp{kind: writeSnapshot, canvasID: canvasID, content: append([]byte(nil), content...)})
}

func (w *Writer) DeleteCanvas(canvasID string) {
	w.enqueue(writeOp{kind: deleteCanvas, canvasID: canvasID})
}

func (w *Writer) enqueue(op writeOp) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.queue <- op:
	default:
		log.Printf("store write queue full, drop op=%d canvas=%s", op.kind, op.canvasID)
	}
}

// Close 停止接收，等待已入队的写入完成
func (w *Writer) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for op := range w.queue {
		w.applyWithRetry(op)
	}
}

func (w *Writer) applyWithRetry(op writeOp) {
	for attempt := 0; attempt <= w.maxRetry; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		err := w.apply(ctx, op)
		cancel()
		if err == nil {
			return
		}
		if attempt == w.maxRetry {
			log.Printf("store write failed, drop op=%d canvas=%s err=%v", op.kind, op.canvasID, err)
			return
		}
		// 退避，每次退避时间X2
		backoff := w.baseBackoff * time.Duration(1<<attempt)
		if w.maxBackoff > 0 && backoff > w.maxBackoff {
			backoff = w.maxBackoff
		}
		time.Sleep(backoff)
	}
}

func (w *Writer) apply(ctx context.Context, op writeOp) error {
	switch op.kind {
	case writeCanvas:
		return w.backend.SaveCanvas(ctx, op.canvas)
	case writeCollaborator:
		return w.backend.SaveCollaborator(ctx, op.canvasID, op.collab, op.seq)
	case removeCollaborator:
		return w.backend.RemoveCollaborator(ctx, op.canvasID, op.userID)
	case writeSnapshot:
		return w.backend.SaveSnapshot(ctx, op.canvasID, op.content)
	case deleteCanvas:
		return w.backend.DeleteCanvas(ctx, op.canvasID)
	}
	return nil
}
