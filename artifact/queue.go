package artifact

import (
	"context"
	"sync"

	"mercurial/fence"
	"mercurial/modes"
)

// Result is the outcome of persisting one queued block.
type Result struct {
	Block    fence.Block
	Artifact Artifact
	Err      error
}

// Queue persists the blocks of one stream on a background goroutine, in
// submission order. Submit never blocks, so the relay loop is not held up
// by slow disks.
type Queue struct {
	p       *Persister
	mode    modes.Spec
	session string
	ctx     context.Context

	mu      sync.Mutex
	pending []fence.Block
	closed  bool

	wake    chan struct{}
	results chan Result
}

// NewQueue starts a queue for one stream. Writes use a context detached from
// ctx's cancellation: a block whose closing marker was seen is written even if
// the stream is cancelled afterwards.
func (p *Persister) NewQueue(ctx context.Context, mode modes.Spec, sessionID string) *Queue {
	q := &Queue{
		p:       p,
		mode:    mode,
		session: sessionID,
		ctx:     context.WithoutCancel(ctx),
		wake:    make(chan struct{}, 1),
		results: make(chan Result, 16),
	}
	go q.run()
	return q
}

// Submit enqueues b. It reports false if the queue is already closed.
func (q *Queue) Submit(b fence.Block) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, b)
	q.mu.Unlock()

	q.signal()
	return true
}

// Close stops intake. Blocks already submitted are still written, then
// Results is closed.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.signal()
}

// Results delivers one Result per submitted block.
func (q *Queue) Results() <-chan Result {
	return q.results
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run() {
	defer close(q.results)

	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		b := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		a, err := q.p.Persist(q.ctx, Request{Block: b, Mode: q.mode, SessionID: q.session})
		q.results <- Result{Block: b, Artifact: a, Err: err}
	}
}
