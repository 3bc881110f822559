// Package artifact writes completed code blocks to disk.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"mercurial/config"
	"mercurial/fence"
	"mercurial/modes"

	"github.com/oklog/ulid/v2"
)

// ErrPersistence wraps every failure to write an artifact.
var ErrPersistence = errors.New("persistence error")

const (
	timeLayout  = "20060102_150405.000000"
	maxAttempts = 64
)

// Artifact is a code block that has been written to disk.
type Artifact struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Path      string    `json:"path"`
	Language  string    `json:"language,omitempty"`
	Extension string    `json:"extension"`
	Bytes     int       `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}

// Request describes one block to persist.
type Request struct {
	Block     fence.Block
	Mode      modes.Spec
	SessionID string
}

// Recorder keeps a ledger of written artifacts.
type Recorder interface {
	RecordArtifact(ctx context.Context, a Artifact) error
}

// Persister writes blocks to uniquely named files under one directory.
// It is safe for concurrent use by any number of streams.
type Persister struct {
	dir      string
	seq      atomic.Uint64
	now      func() time.Time
	recorder Recorder
	perm     os.FileMode
}

// Option configures a Persister.
type Option func(*Persister)

// WithClock replaces time.Now for file naming.
func WithClock(now func() time.Time) Option {
	return func(p *Persister) { p.now = now }
}

// WithRecorder records every written artifact.
func WithRecorder(r Recorder) Option {
	return func(p *Persister) { p.recorder = r }
}

// WithFileMode sets the permission bits of new files.
func WithFileMode(perm os.FileMode) Option {
	return func(p *Persister) { p.perm = perm }
}

// NewPersister returns a Persister rooted at dir. The directory is created on
// first use.
func NewPersister(dir string, opts ...Option) *Persister {
	p := &Persister{
		dir:  dir,
		now:  time.Now,
		perm: 0o644,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dir returns the artifact directory.
func (p *Persister) Dir() string {
	return p.dir
}

// Persist writes req.Block to <timestamp>_<sequence>.<ext>. Existing files are
// never touched: a name that is already taken moves on to the next sequence.
func (p *Persister) Persist(ctx context.Context, req Request) (Artifact, error) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return Artifact{}, fmt.Errorf("%w: failed to create directory %s: %w", ErrPersistence, p.dir, err)
	}

	created := p.now()
	stamp := created.Format(timeLayout)
	ext := Extension(req.Block.Language, req.Mode.FileExtension)

	var (
		f    *os.File
		path string
		err  error
	)
	for attempt := 1; ; attempt++ {
		path = filepath.Join(p.dir, fmt.Sprintf("%s_%06d.%s", stamp, p.seq.Add(1), ext))
		f, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, p.perm)
		if err == nil {
			break
		}
		if !errors.Is(err, fs.ErrExist) || attempt >= maxAttempts {
			return Artifact{}, fmt.Errorf("%w: failed to create %s: %w", ErrPersistence, path, err)
		}
	}

	n, err := f.WriteString(req.Block.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return Artifact{}, fmt.Errorf("%w: failed to write %s: %w", ErrPersistence, path, err)
	}

	a := Artifact{
		ID:        ulid.Make().String(),
		SessionID: req.SessionID,
		Path:      path,
		Language:  req.Block.Language,
		Extension: ext,
		Bytes:     n,
		CreatedAt: created,
	}

	if p.recorder != nil {
		if err := p.recorder.RecordArtifact(ctx, a); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[Persist] Warning: failed to record %s: %v", path, err)
		}
	}
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Persist] Wrote %s (%d bytes, session %s)", path, n, req.SessionID)
	}

	return a, nil
}
