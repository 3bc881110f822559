package storage

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"mercurial/artifact"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "mercurial.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestArtifactLedger(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 18, 10, 0, 0, 0, time.UTC)

	for i, lang := range []string{"python", "c", "java"} {
		require.NoError(t, s.RecordArtifact(ctx, artifact.Artifact{
			ID:        lang,
			SessionID: "s1",
			Path:      "codes/" + lang,
			Language:  lang,
			Extension: lang,
			Bytes:     10 * (i + 1),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	n, err := s.CountArtifacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	recent, err := s.ListArtifacts(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "java", recent[0].ID)
	assert.Equal(t, "c", recent[1].ID)
	assert.Equal(t, "s1", recent[0].SessionID)
	assert.Equal(t, 30, recent[0].Bytes)
	assert.True(t, recent[0].CreatedAt.Equal(base.Add(2*time.Second)))

	all, err := s.ListArtifacts(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.Error(t, s.RecordArtifact(ctx, artifact.Artifact{ID: "python", Path: "dup", Extension: "py", CreatedAt: base}))
}

func TestPrefsAndPreamble(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	prefs, err := s.GetPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrefs(), prefs)

	require.NoError(t, s.SetPrefs(ctx, Prefs{Tone: "playful", CiteStyle: "[n]"}))
	prefs, err = s.GetPrefs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "en", prefs.Language)
	assert.Equal(t, "playful", prefs.Tone)
	assert.Empty(t, prefs.FormatHint)

	preamble, err := s.Preamble(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Preferred output language: en\nPreferred tone: playful\nCitation style: [n]", preamble)

	require.NoError(t, s.SetMemory(ctx, "  Works on embedded C.  "))
	memory, err := s.GetMemory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "  Works on embedded C.  ", memory)

	preamble, err = s.Preamble(ctx)
	require.NoError(t, err)
	assert.Contains(t, preamble, "\n\nLong-term notes about the user (use only when relevant):\nWorks on embedded C.")
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mercurial.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetMemory(context.Background(), "remember me"))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	memory, err := s.GetMemory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "remember me", memory)
}

func TestMigrationAddsSessionColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE artifacts (
		id TEXT PRIMARY KEY, path TEXT NOT NULL, language TEXT NOT NULL DEFAULT '',
		extension TEXT NOT NULL, bytes INTEGER NOT NULL DEFAULT 0, created_at DATETIME NOT NULL)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	ok, err := s.columnExists("artifacts", "session_id")
	require.NoError(t, err)
	assert.True(t, ok)
}
