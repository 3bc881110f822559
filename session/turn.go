package session

import (
	"slices"
	"sync"
	"time"

	"mercurial/config"
	"mercurial/model"
	"mercurial/modes"

	"github.com/oklog/ulid/v2"
)

// Turn is one in-flight exchange. It carries the snapshot taken by Begin.
type Turn struct {
	s        *Session
	gen      uint64
	mode     modes.Spec
	input    string
	extract  bool
	started  time.Time
	messages []model.Message

	once sync.Once
}

// Messages returns the prompt context: system message, prior history and the
// new user message.
func (t *Turn) Messages() []model.Message {
	return slices.Clone(t.messages)
}

func (t *Turn) Mode() modes.Spec {
	return t.mode
}

// Extract reports whether fenced code in the reply is persisted.
func (t *Turn) Extract() bool {
	return t.extract
}

func (t *Turn) Input() string {
	return t.input
}

func (t *Turn) SessionID() string {
	return t.s.id
}

// Commit appends the user message and reply to the history and releases the
// session. It returns ErrCleared, without appending, if the session was
// cleared after Begin. Only the first Commit or Abort has any effect.
func (t *Turn) Commit(reply string) error {
	var err error
	t.once.Do(func() {
		user := t.messages[len(t.messages)-1]
		assistant := model.Message{
			ID:        ulid.Make().String(),
			Role:      model.RoleAssistant,
			Content:   reply,
			Timestamp: time.Now(),
		}
		err = t.s.finish(t, []model.Message{user, assistant})
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Session] %s: turn committed (%d bytes, err: %v)", t.s.id, len(reply), err)
		}
	})
	return err
}

// Abort releases the session without touching the history.
func (t *Turn) Abort() {
	t.once.Do(func() {
		_ = t.s.finish(t, nil)
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Session] %s: turn aborted", t.s.id)
		}
	})
}
