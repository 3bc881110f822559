package stream

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"mercurial/artifact"
	"mercurial/model"
	"mercurial/modes"
	"mercurial/provider/testutil"
	"mercurial/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Sink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []model.Event
	onSend func(model.Event) error
}

func (r *recorder) Send(e model.Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	onSend := r.onSend
	r.mu.Unlock()
	if onSend != nil {
		return onSend(e)
	}
	return nil
}

func (r *recorder) Events() []model.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Event(nil), r.events...)
}

func (r *recorder) ofType(t model.EventType) []model.Event {
	var out []model.Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) fragments() []string {
	var out []string
	for _, e := range r.ofType(model.EventFragment) {
		out = append(out, e.Content)
	}
	return out
}

type fixture struct {
	dir     string
	session *session.Session
	sink    *recorder
}

func newFixture(t *testing.T, mode modes.Mode) *fixture {
	t.Helper()
	return &fixture{
		dir:     filepath.Join(t.TempDir(), "codes"),
		session: session.New(modes.MustLookup(mode), session.Options{}),
		sink:    &recorder{},
	}
}

func (f *fixture) run(t *testing.T, ctx context.Context, p model.Provider, input string) (Result, error) {
	t.Helper()
	turn, err := f.session.Begin(ctx, input)
	require.NoError(t, err)
	return New(p, artifact.NewPersister(f.dir)).Run(ctx, turn, f.sink)
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// assertTerminalLast checks that exactly one terminal event was sent and
// that it came last.
func assertTerminalLast(t *testing.T, events []model.Event, want model.EventType) {
	t.Helper()
	require.NotEmpty(t, events)
	for i, e := range events[:len(events)-1] {
		assert.False(t, e.Terminal(), "event %d (%s) is terminal but not last", i, e.Type)
	}
	assert.Equal(t, want, events[len(events)-1].Type)
}

func TestForwardsFragmentsInOrder(t *testing.T) {
	f := newFixture(t, modes.General)
	chunks := []string{"Hel", "lo", ", ", "", "wor", "ld\n", "ü"}

	res, err := f.run(t, context.Background(), testutil.NewScriptedProvider(chunks...), "hi")
	require.NoError(t, err)

	assert.Equal(t, chunks, f.sink.fragments())
	assert.Equal(t, strings.Join(chunks, ""), res.Reply)
	assertTerminalLast(t, f.sink.Events(), model.EventDone)

	h := f.session.History()
	require.Len(t, h, 2)
	assert.Equal(t, "hi", h[0].Content)
	assert.Equal(t, res.Reply, h[1].Content)
}

func TestProgrammingModePersistsEveryBlock(t *testing.T) {
	f := newFixture(t, modes.Python)

	res, err := f.run(t, context.Background(), testutil.NewScriptedProvider(testutil.CodeReply()...), "print hi")
	require.NoError(t, err)

	require.Len(t, res.Artifacts, 2)
	assert.Equal(t, "python", res.Artifacts[0].Language)
	assert.Equal(t, "c", res.Artifacts[1].Language)
	assert.True(t, strings.HasSuffix(res.Artifacts[0].Path, ".py"))
	assert.True(t, strings.HasSuffix(res.Artifacts[1].Path, ".c"))
	assert.Len(t, f.files(t), 2)

	body, err := os.ReadFile(res.Artifacts[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(body))

	events := f.sink.Events()
	assertTerminalLast(t, events, model.EventDone)
	saved := f.sink.ofType(model.EventSaved)
	require.Len(t, saved, 2)
	assert.Equal(t, res.Artifacts[0].Path, saved[0].Path)
	assert.Equal(t, res.Artifacts[1].Path, saved[1].Path)
	assert.Equal(t, res.Files(), events[len(events)-1].Files)
	assert.Equal(t, strings.Join(testutil.CodeReply(), ""), strings.Join(f.sink.fragments(), ""))
}

func TestGeneralModeDoesNotExtract(t *testing.T) {
	f := newFixture(t, modes.General)

	res, err := f.run(t, context.Background(), testutil.NewScriptedProvider(testutil.CodeReply()...), "show me code")
	require.NoError(t, err)
	assert.Empty(t, res.Artifacts)
	assert.Empty(t, f.files(t))
	assert.Empty(t, f.sink.ofType(model.EventSaved))
}

func TestCodePrefixForcesExtraction(t *testing.T) {
	f := newFixture(t, modes.General)
	reply := []string{"Sure:\n```python\ndef sort(xs):\n    return sorted(xs)\n```\n"}

	res, err := f.run(t, context.Background(), testutil.NewScriptedProvider(reply...), "code: write a sorter")
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	assert.Equal(t, []string{filepath.Base(res.Artifacts[0].Path)}, f.files(t))
	assert.Equal(t, "py", res.Artifacts[0].Extension)

	// The next turn in the same mode is not forced.
	res, err = f.run(t, context.Background(), testutil.NewScriptedProvider(reply...), "write another")
	require.NoError(t, err)
	assert.Empty(t, res.Artifacts)
	assert.Len(t, f.files(t), 1)
}

func TestBlockIsSavedBeforeStreamCompletes(t *testing.T) {
	f := newFixture(t, modes.Python)
	savedSeen := make(chan struct{})
	var once sync.Once
	f.sink.onSend = func(e model.Event) error {
		if e.Type == model.EventSaved {
			once.Do(func() { close(savedSeen) })
		}
		return nil
	}

	p := testutil.NewMockProvider("m")
	p.ChatFunc = func(ctx context.Context, _ []model.Message, cb model.StreamCallback) error {
		for _, chunk := range []string{"Here:\n```py", "thon\ndef f(): pass\n", "```\nDone."} {
			if err := cb(chunk); err != nil {
				return err
			}
		}
		select {
		case <-savedSeen:
		case <-time.After(5 * time.Second):
			return errors.New("block was not saved while the stream was open")
		}
		return cb(" Bye.")
	}

	res, err := f.run(t, context.Background(), p, "x")
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)

	events := f.sink.Events()
	savedAt, byeAt := -1, -1
	for i, e := range events {
		switch {
		case e.Type == model.EventSaved:
			savedAt = i
		case e.Type == model.EventFragment && e.Content == " Bye.":
			byeAt = i
		}
	}
	assert.Less(t, savedAt, byeAt)
	assertTerminalLast(t, events, model.EventDone)
}

type recorderFunc func(ctx context.Context, a artifact.Artifact) error

func (f recorderFunc) RecordArtifact(ctx context.Context, a artifact.Artifact) error {
	return f(ctx, a)
}

func TestSlowSaveDoesNotStallForwarding(t *testing.T) {
	f := newFixture(t, modes.Python)
	tail := []string{" one", " two", " three"}

	forwarded := make(chan struct{})
	var once sync.Once
	f.sink.onSend = func(e model.Event) error {
		if e.Type == model.EventFragment && e.Content == tail[len(tail)-1] {
			once.Do(func() { close(forwarded) })
		}
		return nil
	}

	var stalled bool
	slow := recorderFunc(func(context.Context, artifact.Artifact) error {
		select {
		case <-forwarded:
		case <-time.After(5 * time.Second):
			stalled = true
		}
		return nil
	})

	chunks := append([]string{"```py\nx = 1\n```\n"}, tail...)
	turn, err := f.session.Begin(context.Background(), "x")
	require.NoError(t, err)
	persister := artifact.NewPersister(f.dir, artifact.WithRecorder(slow))
	res, err := New(testutil.NewScriptedProvider(chunks...), persister).Run(context.Background(), turn, f.sink)
	require.NoError(t, err)
	require.Len(t, res.Artifacts, 1)
	assert.False(t, stalled, "fragments after the block waited for its save")

	events := f.sink.Events()
	savedAt, lastAt := -1, -1
	for i, e := range events {
		switch {
		case e.Type == model.EventSaved:
			savedAt = i
		case e.Type == model.EventFragment && e.Content == tail[len(tail)-1]:
			lastAt = i
		}
	}
	assert.Greater(t, savedAt, lastAt)
	assertTerminalLast(t, events, model.EventDone)
}

func TestSinkFailureStillSavesBlockClosedInSameFragment(t *testing.T) {
	f := newFixture(t, modes.Python)
	closing := "```\nafter"
	f.sink.onSend = func(e model.Event) error {
		if e.Type == model.EventFragment && e.Content == closing {
			return errors.New("client disconnected")
		}
		return nil
	}

	res, err := f.run(t, context.Background(), testutil.NewScriptedProvider("```py\nx = 1\n", closing, " more"), "x")
	assert.ErrorIs(t, err, ErrCancelled)
	require.Len(t, res.Artifacts, 1)
	assert.Len(t, f.files(t), 1)
	assert.Empty(t, f.session.History())
}

func TestTransportErrorDiscardsTurn(t *testing.T) {
	f := newFixture(t, modes.Python)
	cause := errors.New("connection reset by peer")
	p := testutil.NewFailingProvider(cause, "partial ", "```python\nprint(1)\n")

	res, err := f.run(t, context.Background(), p, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstreamTransport)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, res.Artifacts)

	events := f.sink.Events()
	assertTerminalLast(t, events, model.EventError)
	assert.Equal(t, KindTransport, events[len(events)-1].Kind)
	assert.Empty(t, f.session.History())
	assert.Empty(t, f.files(t))
	assert.False(t, f.session.Busy())
}

func TestProtocolErrorIsReportedAsProtocol(t *testing.T) {
	f := newFixture(t, modes.General)
	p := testutil.NewFailingProvider(errors.Join(model.ErrProtocol, errors.New("bad chunk")), "a")

	_, err := f.run(t, context.Background(), p, "x")
	assert.ErrorIs(t, err, ErrUpstreamProtocol)

	events := f.sink.Events()
	assertTerminalLast(t, events, model.EventError)
	assert.Equal(t, KindProtocol, events[len(events)-1].Kind)
	assert.Empty(t, f.session.History())
}

func TestErrorKeepsCompletedBlocks(t *testing.T) {
	f := newFixture(t, modes.Python)
	p := testutil.NewFailingProvider(errors.New("eof"), "```py\na = 1\n```\n", "```py\nb = ")

	res, err := f.run(t, context.Background(), p, "x")
	assert.ErrorIs(t, err, ErrUpstreamTransport)
	require.Len(t, res.Artifacts, 1)
	assert.Len(t, f.files(t), 1)

	events := f.sink.Events()
	assertTerminalLast(t, events, model.EventError)
	assert.Len(t, f.sink.ofType(model.EventSaved), 1)
}

func TestCancelAfterOpenFence(t *testing.T) {
	f := newFixture(t, modes.Python)
	started := make(chan struct{})
	p := testutil.NewBlockingProvider(started, "Here:\n", "```python\nprint(1)\n")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	res, err := f.run(t, ctx, p, "x")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Empty(t, res.Artifacts)
	assert.Empty(t, f.files(t))
	assert.Empty(t, f.session.History())
	assert.False(t, f.session.Busy())
	for _, e := range f.sink.Events() {
		assert.False(t, e.Terminal(), "no terminal event after cancellation")
	}
}

func TestCancelKeepsCompletedBlocks(t *testing.T) {
	f := newFixture(t, modes.C)
	started := make(chan struct{})
	p := testutil.NewBlockingProvider(started, "```c\nint a;\n```\n", "```c\nint b")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	res, err := f.run(t, ctx, p, "x")
	assert.ErrorIs(t, err, ErrCancelled)
	require.Len(t, res.Artifacts, 1)
	assert.Len(t, f.files(t), 1)
	assert.Empty(t, f.session.History())
}

func TestSinkFailureCancelsUpstream(t *testing.T) {
	f := newFixture(t, modes.General)
	gone := errors.New("client disconnected")
	f.sink.onSend = func(model.Event) error { return gone }

	upstreamDone := make(chan error, 1)
	p := testutil.NewMockProvider("m")
	p.ChatFunc = func(ctx context.Context, _ []model.Message, cb model.StreamCallback) error {
		err := testutil.ScriptedChat("a", "b", "c")(ctx, nil, cb)
		upstreamDone <- err
		return err
	}

	_, err := f.run(t, context.Background(), p, "x")
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, gone)
	assert.Len(t, f.sink.Events(), 1)
	assert.Empty(t, f.session.History())

	select {
	case err := <-upstreamDone:
		assert.Error(t, err, "upstream saw cancellation")
	case <-time.After(5 * time.Second):
		t.Fatal("upstream was not cancelled")
	}
}

func TestUnterminatedBlockWarns(t *testing.T) {
	f := newFixture(t, modes.Java)

	res, err := f.run(t, context.Background(), testutil.NewScriptedProvider("```java\nclass A {}\n"), "x")
	require.NoError(t, err)
	assert.Empty(t, res.Artifacts)
	assert.Empty(t, f.files(t))
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "java")
	assert.Len(t, f.sink.ofType(model.EventWarning), 1)
	assertTerminalLast(t, f.sink.Events(), model.EventDone)
	assert.Len(t, f.session.History(), 2)
}

func TestClosingMarkerWithoutNewlineAtEnd(t *testing.T) {
	f := newFixture(t, modes.Python)

	res, err := f.run(t, context.Background(), testutil.NewScriptedProvider("```py\nx = 1\n", "```"), "x")
	require.NoError(t, err)
	assert.Len(t, res.Artifacts, 1)
	assert.Empty(t, res.Warnings)
}

func TestPersistenceFailureDoesNotAbortStream(t *testing.T) {
	f := newFixture(t, modes.Python)
	require.NoError(t, os.WriteFile(f.dir, []byte("not a directory"), 0o644))

	res, err := f.run(t, context.Background(), testutil.NewScriptedProvider("```py\nx = 1\n```\n", "after"), "x")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failures)
	assert.Empty(t, res.Artifacts)

	failed := f.sink.ofType(model.EventSaveFailed)
	require.Len(t, failed, 1)
	assert.NotEmpty(t, failed[0].Message)
	assert.Contains(t, f.sink.fragments(), "after")
	assertTerminalLast(t, f.sink.Events(), model.EventDone)
	assert.Len(t, f.session.History(), 2)
}

func TestRerunNeverOverwrites(t *testing.T) {
	f := newFixture(t, modes.Python)
	reply := "```py\nx = 1\n```\n"

	for range 3 {
		_, err := f.run(t, context.Background(), testutil.NewScriptedProvider(reply), "x")
		require.NoError(t, err)
	}
	assert.Len(t, f.files(t), 3)
}

func TestClearDuringStreamDropsReply(t *testing.T) {
	f := newFixture(t, modes.General)
	p := testutil.NewMockProvider("m")
	p.ChatFunc = func(ctx context.Context, _ []model.Message, cb model.StreamCallback) error {
		if err := cb("partial"); err != nil {
			return err
		}
		f.session.Clear(false)
		return cb(" rest")
	}

	res, err := f.run(t, context.Background(), p, "x")
	require.NoError(t, err)
	assert.Equal(t, "partial rest", res.Reply)
	assert.Empty(t, f.session.History())
	assert.Len(t, res.Warnings, 1)
	assertTerminalLast(t, f.sink.Events(), model.EventDone)
}

func TestConcurrentSessionsShareDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "codes")
	persister := artifact.NewPersister(dir)
	reply := testutil.CodeReply()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := session.New(modes.MustLookup(modes.Python), session.Options{})
			turn, err := s.Begin(context.Background(), "x")
			if !assert.NoError(t, err) {
				return
			}
			_, err = New(testutil.NewScriptedProvider(reply...), persister).Run(context.Background(), turn, &recorder{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 16)
}

func TestSinkFunc(t *testing.T) {
	var got model.Event
	var s Sink = SinkFunc(func(e model.Event) error {
		got = e
		return nil
	})
	require.NoError(t, s.Send(model.Fragment("x")))
	assert.Equal(t, model.Fragment("x"), got)
}
