package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtension(t *testing.T) {
	tests := []struct {
		name     string
		language string
		mode     string
		want     string
	}{
		{"known tag", "python", "c", "py"},
		{"tag case folded", "JavaScript", "", "js"},
		{"alias", "c++", "", "cpp"},
		{"unknown tag falls back to mode", "brainfuck", "java", "java"},
		{"empty tag falls back to mode", "", "c", "c"},
		{"nothing known", "", "", "txt"},
		{"unknown tag and no mode", "klingon", "", "txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extension(tt.language, tt.mode))
		})
	}
}
