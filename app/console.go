package app

import (
	"os"
	"strings"

	"mercurial/config"

	"github.com/peterh/liner"
)

// Console provides line editing and input history for the chat REPL.
type Console struct {
	line        *liner.State
	historyFile string
}

// NewConsole opens the terminal and loads input history from historyFile.
func NewConsole(historyFile string) *Console {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &Console{line: line, historyFile: historyFile}
	if f, err := os.Open(historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// Prompt reads a line, recording non-empty input in the history.
func (c *Console) Prompt(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (c *Console) Close() error {
	if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		if _, err := c.line.WriteHistory(f); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[Console] failed to save history: %v", err)
		}
		f.Close()
	}
	return c.line.Close()
}
