package model

// EventType identifies an event on the display channel.
type EventType string

const (
	EventFragment   EventType = "fragment"
	EventSaved      EventType = "saved"
	EventSaveFailed EventType = "save_failed"
	EventWarning    EventType = "warning"
	EventDone       EventType = "done"
	EventError      EventType = "error"
	EventBusy       EventType = "busy"
)

// Event is one message on the display channel. A stream is a sequence of
// fragment, saved, save_failed and warning events terminated by exactly one
// done or error event.
type Event struct {
	Type     EventType `json:"type"`
	Content  string    `json:"content,omitempty"`
	Path     string    `json:"path,omitempty"`
	Language string    `json:"language,omitempty"`
	Files    []string  `json:"files,omitempty"`
	Message  string    `json:"message,omitempty"`
	Kind     string    `json:"kind,omitempty"`
}

// Terminal reports whether e ends a stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError || e.Type == EventBusy
}

func Fragment(chunk string) Event {
	return Event{Type: EventFragment, Content: chunk}
}

func Saved(path, language string) Event {
	return Event{Type: EventSaved, Path: path, Language: language}
}

func SaveFailed(msg string) Event {
	return Event{Type: EventSaveFailed, Message: msg}
}

func Warning(msg string) Event {
	return Event{Type: EventWarning, Message: msg}
}

func Done(files []string) Event {
	return Event{Type: EventDone, Files: files}
}

func Failed(kind, msg string) Event {
	return Event{Type: EventError, Kind: kind, Message: msg}
}

func Busy(msg string) Event {
	return Event{Type: EventBusy, Message: msg}
}
