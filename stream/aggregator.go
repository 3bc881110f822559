// Package stream relays one turn's upstream reply to a display sink while
// extracting fenced code blocks from it.
//
// The upstream provider runs on its own goroutine and hands fragments over a
// channel. The relay loop forwards each fragment to the sink, feeds it to a
// fence.Parser when the turn extracts code, and submits completed blocks to an
// artifact.Queue. Save confirmations are relayed as soon as the queue reports
// them, so a slow disk never holds up forwarding. Every confirmation is sent
// before the single terminal event.
package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mercurial/artifact"
	"mercurial/config"
	"mercurial/fence"
	"mercurial/model"
	"mercurial/session"
)

var (
	ErrUpstreamTransport = errors.New("upstream transport error")
	ErrUpstreamProtocol  = errors.New("upstream protocol error")
	ErrCancelled         = errors.New("stream cancelled")
)

// Error kinds carried by model.Event.Kind on error events.
const (
	KindTransport = "transport"
	KindProtocol  = "protocol"
)

// Sink is the display channel. A Send error means the client is gone.
type Sink interface {
	Send(e model.Event) error
}

type SinkFunc func(e model.Event) error

func (f SinkFunc) Send(e model.Event) error {
	return f(e)
}

// Result summarizes a finished turn.
type Result struct {
	Reply     string
	Artifacts []artifact.Artifact
	Failures  int
	Warnings  []string
}

// Files returns the paths of the written artifacts in order.
func (r Result) Files() []string {
	files := make([]string, len(r.Artifacts))
	for i, a := range r.Artifacts {
		files[i] = a.Path
	}
	return files
}

// Aggregator runs turns against one provider. It holds no per-turn state and
// may run any number of turns concurrently.
type Aggregator struct {
	provider  model.Provider
	persister *artifact.Persister
}

func New(provider model.Provider, persister *artifact.Persister) *Aggregator {
	return &Aggregator{provider: provider, persister: persister}
}

// Run streams the reply to turn into sink and finishes the turn.
//
// On success the reply is committed to the session and a done event listing
// the written files ends the stream. An upstream failure aborts the turn and
// ends the stream with an error event; the returned error wraps
// ErrUpstreamTransport or ErrUpstreamProtocol. Cancellation of ctx, or a sink
// failure, cancels the upstream request and aborts the turn without a terminal
// event; the returned error wraps ErrCancelled. In every case blocks whose
// closing marker arrived are written, and an unterminated block is not.
func (a *Aggregator) Run(ctx context.Context, turn *session.Turn, sink Sink) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{turn: turn, sink: sink}
	if turn.Extract() {
		r.parser = fence.NewParser()
		r.queue = a.persister.NewQueue(ctx, turn.Mode(), turn.SessionID())
		r.results = r.queue.Results()
	}

	frags := make(chan string)
	upstream := make(chan error, 1)
	go func() {
		upstream <- a.provider.Chat(ctx, turn.Messages(), func(chunk string) error {
			select {
			case frags <- chunk:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Stream] %s: started (mode: %s, extract: %v)", turn.SessionID(), turn.Mode().ID, turn.Extract())
	}

	for {
		select {
		case chunk := <-frags:
			r.reply.WriteString(chunk)
			if r.parser != nil {
				for b := range r.parser.Feed(chunk) {
					r.queue.Submit(b)
				}
			}
			if !r.send(model.Fragment(chunk)) {
				cancel()
				return r.cancelled(r.sinkErr)
			}

		case res := <-r.results:
			if !r.record(res) {
				cancel()
				return r.cancelled(r.sinkErr)
			}

		case err := <-upstream:
			if ctx.Err() != nil {
				return r.cancelled(context.Cause(ctx))
			}
			if err != nil {
				return r.failed(err)
			}
			return r.finish()

		case <-ctx.Done():
			return r.cancelled(context.Cause(ctx))
		}
	}
}

// run is the state of one Run call. It is owned by the relay goroutine.
type run struct {
	turn    *session.Turn
	sink    Sink
	sinkErr error

	parser  *fence.Parser
	queue   *artifact.Queue
	results <-chan artifact.Result

	reply strings.Builder
	res   Result
}

// send delivers e unless the sink has already failed.
func (r *run) send(e model.Event) bool {
	if r.sinkErr != nil {
		return false
	}
	if err := r.sink.Send(e); err != nil {
		r.sinkErr = err
		return false
	}
	return true
}

func (r *run) record(res artifact.Result) bool {
	if res.Err != nil {
		r.res.Failures++
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Stream] %s: %v", r.turn.SessionID(), res.Err)
		}
		return r.send(model.SaveFailed(res.Err.Error()))
	}
	r.res.Artifacts = append(r.res.Artifacts, res.Artifact)
	return r.send(model.Saved(res.Artifact.Path, res.Artifact.Language))
}

func (r *run) warn(msg string) {
	r.res.Warnings = append(r.res.Warnings, msg)
	r.send(model.Warning(msg))
}

// drain waits for every submitted block to be written and relays the
// outcomes while the sink is still accepting events.
func (r *run) drain() {
	if r.queue == nil {
		return
	}
	r.queue.Close()
	for res := range r.results {
		r.record(res)
	}
}

func (r *run) finish() (Result, error) {
	if r.parser != nil {
		for b := range r.parser.Close() {
			r.queue.Submit(b)
		}
		if b, open := r.parser.Pending(); open {
			r.warn(unterminatedMessage(b))
		}
	}
	r.drain()

	if r.sinkErr != nil {
		return r.cancelled(r.sinkErr)
	}

	r.res.Reply = r.reply.String()
	if err := r.turn.Commit(r.res.Reply); err != nil {
		r.warn("conversation was cleared while the reply was streaming; the reply was not kept")
	}

	if !r.send(model.Done(r.res.Files())) && config.DebugLog != nil {
		config.DebugLog.Printf("[Stream] %s: client gone before completion event: %v", r.turn.SessionID(), r.sinkErr)
	}
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Stream] %s: done (%d bytes, %d files, %d save failures)",
			r.turn.SessionID(), len(r.res.Reply), len(r.res.Artifacts), r.res.Failures)
	}
	return r.res, nil
}

func (r *run) failed(cause error) (Result, error) {
	r.turn.Abort()
	r.drain()

	kind, sentinel := KindTransport, ErrUpstreamTransport
	if errors.Is(cause, model.ErrProtocol) {
		kind, sentinel = KindProtocol, ErrUpstreamProtocol
	}
	r.send(model.Failed(kind, cause.Error()))

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Stream] %s: upstream %s error: %v", r.turn.SessionID(), kind, cause)
	}
	return r.res, fmt.Errorf("%w: %w", sentinel, cause)
}

// cancelled finishes the turn after the caller or the client went away. Only
// blocks that were already complete are written; nothing more is sent.
func (r *run) cancelled(cause error) (Result, error) {
	r.turn.Abort()
	if r.sinkErr == nil {
		r.sinkErr = ErrCancelled
	}
	r.drain()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Stream] %s: cancelled (%v), %d files kept", r.turn.SessionID(), cause, len(r.res.Artifacts))
	}
	if cause == nil {
		return r.res, ErrCancelled
	}
	return r.res, fmt.Errorf("%w: %w", ErrCancelled, cause)
}

func unterminatedMessage(b fence.Block) string {
	lang := b.Language
	if lang == "" {
		lang = "untagged"
	}
	return fmt.Sprintf("code block (%s) opened at offset %d was never closed and was not saved", lang, b.Start)
}
