package testutil

import (
	"time"

	"mercurial/model"
)

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleSystem, Content: "You are a helpful assistant.", Timestamp: time.Now()},
		{Role: model.RoleUser, Content: "Hello, how are you?", Timestamp: time.Now()},
		{Role: model.RoleAssistant, Content: "I'm doing well, thank you!", Timestamp: time.Now()},
		{Role: model.RoleUser, Content: "Can you help me with a task?", Timestamp: time.Now()},
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{
		{Role: model.RoleUser, Content: content, Timestamp: time.Now()},
	}
}

// CodeReply is an assistant reply containing two fenced blocks, split into
// fragments at awkward places.
func CodeReply() []string {
	return []string{
		"Here is the code:\n``",
		"`python\nprint('hi')\n",
		"```\nAnd in C:\n```c\nint main(void) { return 0; }\n`",
		"``\nDone.",
	}
}

// SystemMessage returns a system message for testing
func SystemMessage(content string) model.Message {
	return model.Message{
		Role:      model.RoleSystem,
		Content:   content,
		Timestamp: time.Now(),
	}
}
