// Package modes holds the static table of conversation modes. A mode picks the
// system prompt sent upstream and whether fenced code in replies is saved.
package modes

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
)

// Mode identifies a conversation mode.
type Mode string

const (
	General Mode = "general"
	C       Mode = "c"
	Python  Mode = "python"
	Java    Mode = "java"
)

// ErrUnknownMode is returned by Lookup for ids not in the registry.
var ErrUnknownMode = errors.New("unknown mode")

// forcePrefix turns on extraction for a single turn in a mode that does not
// extract by default.
const forcePrefix = "code"

// Spec is the read-only configuration of a mode.
type Spec struct {
	ID            Mode   `json:"id"`
	Name          string `json:"name"`
	SystemPrompt  string `json:"system_prompt"`
	FileExtension string `json:"file_extension"`
	ForceExtract  bool   `json:"force_extract"`
}

var registry = []Spec{
	{
		ID:            General,
		Name:          "General",
		SystemPrompt:  "Answer conversationally. When you include code, put it in a fenced code block tagged with its language.",
		FileExtension: "txt",
	},
	{
		ID:            C,
		Name:          "C",
		SystemPrompt:  programmingPrompt("C"),
		FileExtension: "c",
		ForceExtract:  true,
	},
	{
		ID:            Python,
		Name:          "Python",
		SystemPrompt:  programmingPrompt("Python"),
		FileExtension: "py",
		ForceExtract:  true,
	},
	{
		ID:            Java,
		Name:          "Java",
		SystemPrompt:  programmingPrompt("Java"),
		FileExtension: "java",
		ForceExtract:  true,
	},
}

var aliases = map[string]Mode{
	"":     General,
	"chat": General,
	"py":   Python,
}

func programmingPrompt(language string) string {
	return fmt.Sprintf("Implement every request in %[1]s. Reply with the complete program in a single fenced code block tagged %[2]s, "+
		"then at most a short explanation. Do not split the program across several blocks.", language, strings.ToLower(language))
}

// Lookup returns the mode for id. Matching ignores case and surrounding
// whitespace; "chat" and the empty string select General.
func Lookup(id string) (Spec, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if m, ok := aliases[key]; ok {
		key = string(m)
	}
	for _, spec := range registry {
		if string(spec.ID) == key {
			return spec, nil
		}
	}

	if suggestions := Suggest(key); len(suggestions) > 0 {
		return Spec{}, fmt.Errorf("%w %q (did you mean %s?)", ErrUnknownMode, id, strings.Join(suggestions, ", "))
	}
	return Spec{}, fmt.Errorf("%w %q", ErrUnknownMode, id)
}

// MustLookup is Lookup for ids known at compile time.
func MustLookup(id Mode) Spec {
	spec, err := Lookup(string(id))
	if err != nil {
		panic(err)
	}
	return spec
}

// All returns every mode in display order.
func All() []Spec {
	out := make([]Spec, len(registry))
	copy(out, registry)
	return out
}

// IDs returns the mode ids in display order.
func IDs() []string {
	ids := make([]string, len(registry))
	for i, spec := range registry {
		ids[i] = string(spec.ID)
	}
	return ids
}

// Suggest returns mode ids that fuzzily match input, best first.
func Suggest(input string) []string {
	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return nil
	}
	matches := fuzzy.Find(input, IDs())
	out := make([]string, 0, len(matches))
	for _, match := range matches {
		out = append(out, match.Str)
	}
	return out
}

// ForcedByInput reports whether input asks for extraction on this turn only:
// after leading whitespace it must begin with the literal, case-sensitive "code".
func ForcedByInput(input string) bool {
	return strings.HasPrefix(strings.TrimLeftFunc(input, unicode.IsSpace), forcePrefix)
}

// ExtractFor reports whether code blocks in the reply to input are persisted.
func (s Spec) ExtractFor(input string) bool {
	return s.ForceExtract || ForcedByInput(input)
}
