package modes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"general", General},
		{"  Python ", Python},
		{"py", Python},
		{"chat", General},
		{"", General},
		{"JAVA", Java},
		{"c", C},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			spec, err := Lookup(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec.ID)
		})
	}
}

func TestLookupUnknownSuggests(t *testing.T) {
	_, err := Lookup("jva")
	require.ErrorIs(t, err, ErrUnknownMode)
	assert.Contains(t, err.Error(), "java")

	_, err = Lookup("cobol")
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestRegistryPolicy(t *testing.T) {
	assert.False(t, MustLookup(General).ForceExtract)
	for _, id := range []Mode{C, Python, Java} {
		spec := MustLookup(id)
		assert.True(t, spec.ForceExtract, id)
		assert.NotEmpty(t, spec.SystemPrompt, id)
	}
	assert.Equal(t, "py", MustLookup(Python).FileExtension)
	assert.Equal(t, "c", MustLookup(C).FileExtension)
	assert.Equal(t, "java", MustLookup(Java).FileExtension)
	assert.Equal(t, []string{"general", "c", "python", "java"}, IDs())
}

func TestForcedByInput(t *testing.T) {
	assert.True(t, ForcedByInput("code: write a sorter"))
	assert.True(t, ForcedByInput("  \n\tcode it"))
	assert.True(t, ForcedByInput("codes please"))
	assert.False(t, ForcedByInput("Code: write a sorter"))
	assert.False(t, ForcedByInput("write code"))
	assert.False(t, ForcedByInput(""))
}

func TestExtractFor(t *testing.T) {
	general := MustLookup(General)
	assert.False(t, general.ExtractFor("write a sorter"))
	assert.True(t, general.ExtractFor("code: write a sorter"))
	assert.True(t, MustLookup(Python).ExtractFor("hello"))
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].Name = "changed"
	assert.Equal(t, "General", MustLookup(General).Name)
}
