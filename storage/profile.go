package storage

import (
	"context"
	"fmt"
	"strings"
)

// Prefs are the user's answer-style preferences, injected into every system
// prompt.
type Prefs struct {
	Language   string `json:"language"`
	Tone       string `json:"tone"`
	FormatHint string `json:"format_hint"`
	CiteStyle  string `json:"cite_style"`
}

func DefaultPrefs() Prefs {
	return Prefs{
		Language:   "en",
		Tone:       "professional and concise",
		FormatHint: "conclusion first, then key points, then next steps when useful",
	}
}

func (s *Store) GetPrefs(ctx context.Context) (Prefs, error) {
	var p Prefs
	err := s.db.QueryRowContext(ctx,
		`SELECT language, tone, format_hint, cite_style FROM user_prefs WHERE id = 1`,
	).Scan(&p.Language, &p.Tone, &p.FormatHint, &p.CiteStyle)
	if err != nil {
		return Prefs{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	return p, nil
}

// SetPrefs replaces the preferences. An empty language falls back to the
// default.
func (s *Store) SetPrefs(ctx context.Context, p Prefs) error {
	if strings.TrimSpace(p.Language) == "" {
		p.Language = DefaultPrefs().Language
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE user_prefs SET language = ?, tone = ?, format_hint = ?, cite_style = ? WHERE id = 1`,
		p.Language, p.Tone, p.FormatHint, p.CiteStyle,
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// GetMemory returns the free-form long-term notes about the user.
func (s *Store) GetMemory(ctx context.Context) (string, error) {
	var memory string
	if err := s.db.QueryRowContext(ctx, `SELECT memory FROM user_profile WHERE id = 1`).Scan(&memory); err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}
	return memory, nil
}

func (s *Store) SetMemory(ctx context.Context, memory string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE user_profile SET memory = ? WHERE id = 1`, memory); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// Preamble renders the preferences and memory as system-prompt lines.
func (s *Store) Preamble(ctx context.Context) (string, error) {
	prefs, err := s.GetPrefs(ctx)
	if err != nil {
		return "", err
	}
	memory, err := s.GetMemory(ctx)
	if err != nil {
		return "", err
	}

	var lines []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, label+": "+value)
		}
	}
	add("Preferred output language", prefs.Language)
	add("Preferred tone", prefs.Tone)
	add("Preferred format", prefs.FormatHint)
	add("Citation style", prefs.CiteStyle)

	if memory = strings.TrimSpace(memory); memory != "" {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, "Long-term notes about the user (use only when relevant):", memory)
	}

	return strings.Join(lines, "\n"), nil
}
