package speech

import (
	"context"
	"sync"
)

// ClipQueue is a Player that buffers clips for the web client to fetch
type ClipQueue struct {
	max int

	mu    sync.Mutex
	clips []Clip
}

// NewClipQueue creates a queue holding at most max clips; the oldest are dropped first
func NewClipQueue(max int) *ClipQueue {
	if max <= 0 {
		max = 64
	}
	return &ClipQueue{max: max}
}

// Play enqueues clip
func (q *ClipQueue) Play(ctx context.Context, clip Clip) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clips = append(q.clips, clip)
	if over := len(q.clips) - q.max; over > 0 {
		q.clips = append([]Clip(nil), q.clips[over:]...)
	}
	return nil
}

// Stop discards every queued clip
func (q *ClipQueue) Stop() {
	q.mu.Lock()
	q.clips = nil
	q.mu.Unlock()
}

// Drain removes and returns every queued clip
func (q *ClipQueue) Drain() []Clip {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.clips
	q.clips = nil
	if out == nil {
		out = []Clip{}
	}
	return out
}

// Len returns the number of queued clips
func (q *ClipQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.clips)
}
