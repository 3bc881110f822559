// Package session holds per-conversation state: the rolling message history,
// the current mode and the single in-flight turn.
//
// A Session admits one turn at a time. Begin snapshots everything the turn
// needs (mode, extraction flag, prompt context) so that a mode switch or a
// Clear during streaming never changes the request already sent upstream.
// When the reply finishes, Turn.Commit appends the user and assistant
// messages together, unless the session was cleared in the meantime.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mercurial/config"
	"mercurial/model"
	"mercurial/modes"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	ErrBusy       = errors.New("a reply is still streaming for this session")
	ErrCleared    = errors.New("session was cleared while the reply was streaming")
	ErrEmptyInput = errors.New("message must not be empty")
	ErrNotEmpty   = errors.New("session already has history")
	ErrBadRole    = errors.New("history may only contain user and assistant messages")
)

// DefaultPersona opens every system prompt unless the configuration supplies
// its own.
const DefaultPersona = "You are Mercurial, a programming assistant. Be accurate and direct. " +
	"When you write code, put each file in its own fenced code block tagged with the language."

// Preamble supplies per-user text (preferences, long-term notes) for the
// system prompt. It is consulted on every turn.
type Preamble interface {
	Preamble(ctx context.Context) (string, error)
}

// Options configure new sessions.
type Options struct {
	Persona     string     // empty selects DefaultPersona
	Preamble    Preamble   // optional
	DefaultMode modes.Spec // mode restored by Clear(true); zero selects general
	MaxHistory  int        // messages kept after each commit; <= 0 keeps all
}

func (o Options) persona() string {
	if o.Persona == "" {
		return DefaultPersona
	}
	return o.Persona
}

func (o Options) defaultMode() modes.Spec {
	if o.DefaultMode.ID == "" {
		return modes.MustLookup(modes.General)
	}
	return o.DefaultMode
}

// Session is one conversation. All methods are safe for concurrent use.
type Session struct {
	id      string
	seq     uint64
	created time.Time
	opts    Options

	mu      sync.Mutex
	mode    modes.Spec
	history []model.Message
	gen     uint64 // bumped by Clear
	active  *Turn
}

// Info is a point-in-time summary of a session.
type Info struct {
	ID        string     `json:"id"`
	Mode      modes.Mode `json:"mode"`
	Messages  int        `json:"messages"`
	Busy      bool       `json:"busy"`
	CreatedAt time.Time  `json:"created_at"`
}

var sessionSeq atomic.Uint64

// New creates an empty session in mode.
func New(mode modes.Spec, opts Options) *Session {
	if mode.ID == "" {
		mode = opts.defaultMode()
	}
	return &Session{
		id:      uuid.NewString(),
		seq:     sessionSeq.Add(1),
		created: time.Now(),
		opts:    opts,
		mode:    mode,
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Mode() modes.Spec {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode switches the mode for subsequent turns. A turn already streaming
// keeps the mode it started with.
func (s *Session) SetMode(id string) error {
	spec, err := modes.Lookup(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.mode = spec
	s.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Session] %s: mode set to %s", s.id, spec.ID)
	}
	return nil
}

// History returns a copy of the committed messages in order.
func (s *Session) History() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Info{
		ID:        s.id,
		Mode:      s.mode.ID,
		Messages:  len(s.history),
		Busy:      s.active != nil,
		CreatedAt: s.created,
	}
}

// Busy reports whether a turn is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil
}

// Clear empties the history. The mode is kept unless resetMode is set, in
// which case the configured default mode is restored. A reply in flight is
// dropped when it finishes.
func (s *Session) Clear(resetMode bool) {
	s.mu.Lock()
	s.history = nil
	s.gen++
	if resetMode {
		s.mode = s.opts.defaultMode()
	}
	inFlight := s.active != nil
	s.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Session] %s: cleared (reset mode: %v, reply in flight: %v)", s.id, resetMode, inFlight)
	}
}

// Seed loads prior turns supplied by a client into an empty session.
// System messages are skipped since the system prompt is rebuilt per turn.
func (s *Session) Seed(messages []model.Message) error {
	seeded := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case model.RoleSystem:
			continue
		case model.RoleUser, model.RoleAssistant:
		default:
			return fmt.Errorf("%w: got %q", ErrBadRole, m.Role)
		}
		if m.ID == "" {
			m.ID = ulid.Make().String()
		}
		seeded = append(seeded, m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history) > 0 || s.active != nil {
		return ErrNotEmpty
	}
	s.history = trim(seeded, s.opts.MaxHistory)
	return nil
}

// Begin starts a turn for input. It fails with ErrBusy while another turn of
// this session is in flight. The caller must finish the turn with Commit or
// Abort.
func (s *Session) Begin(ctx context.Context, input string) (*Turn, error) {
	return s.BeginIn(ctx, "", input)
}

// BeginIn is Begin after switching the session to mode. The switch only
// happens when the turn is admitted, so a busy session keeps its mode. An
// empty mode keeps the current one.
func (s *Session) BeginIn(ctx context.Context, mode, input string) (*Turn, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyInput
	}
	var spec modes.Spec
	if mode != "" {
		var err error
		if spec, err = modes.Lookup(mode); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	if s.active != nil {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if mode != "" && spec.ID != s.mode.ID {
		s.mode = spec
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Session] %s: mode set to %s", s.id, spec.ID)
		}
	}
	t := &Turn{
		s:       s,
		gen:     s.gen,
		mode:    s.mode,
		input:   input,
		extract: s.mode.ExtractFor(input),
		started: time.Now(),
	}
	history := slices.Clone(s.history)
	s.active = t
	s.mu.Unlock()

	t.messages = make([]model.Message, 0, len(history)+2)
	t.messages = append(t.messages, model.Message{
		Role:    model.RoleSystem,
		Content: s.systemPrompt(ctx, t.mode),
	})
	t.messages = append(t.messages, history...)
	t.messages = append(t.messages, model.Message{
		ID:        ulid.Make().String(),
		Role:      model.RoleUser,
		Content:   input,
		Timestamp: t.started,
	})

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Session] %s: turn started (mode: %s, extract: %v, history: %d)", s.id, t.mode.ID, t.extract, len(history))
	}
	return t, nil
}

// systemPrompt joins persona, preamble and mode instructions.
func (s *Session) systemPrompt(ctx context.Context, mode modes.Spec) string {
	parts := []string{s.opts.persona()}
	if s.opts.Preamble != nil {
		pre, err := s.opts.Preamble.Preamble(ctx)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Session] %s: preamble unavailable: %v", s.id, err)
			}
		} else if pre = strings.TrimSpace(pre); pre != "" {
			parts = append(parts, pre)
		}
	}
	if mode.SystemPrompt != "" {
		parts = append(parts, mode.SystemPrompt)
	}
	return strings.Join(parts, "\n\n")
}

// finish releases t and, when commit is set and no Clear intervened, appends
// msgs.
func (s *Session) finish(t *Turn, msgs []model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == t {
		s.active = nil
	}
	if msgs == nil {
		return nil
	}
	if s.gen != t.gen {
		return ErrCleared
	}
	s.history = trim(append(s.history, msgs...), s.opts.MaxHistory)
	return nil
}

// trim drops the oldest messages in pairs until at most max remain.
func trim(history []model.Message, max int) []model.Message {
	if max <= 0 || len(history) <= max {
		return history
	}
	drop := len(history) - max
	if drop%2 == 1 && drop < len(history) {
		drop++
	}
	return slices.Clone(history[drop:])
}
