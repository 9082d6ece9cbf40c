package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grant-insights/internal/common/errors"
)

func TestRootCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	rc := NewRootCommand(nil, &stdout, &stderr)

	names := make([]string, 0)
	for _, c := range rc.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"enrich", "show", "delete", "list", "status", "insights"}, names)

	tests := []struct {
		name string
		args []string
	}{
		{"show needs an id", []string{"show"}},
		{"status takes one job", []string{"status", "a", "b"}},
		{"insights takes at most a name", []string{"insights", "id", "summary", "extra"}},
		{"enrich takes no arguments", []string{"enrich", "grants.csv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := NewRootCommand(nil, &stdout, &stderr)
			rc.SetArgs(tt.args)
			assert.Error(t, rc.Execute())
		})
	}
}

func TestEnrichInputs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grants.csv")
	require.NoError(t, os.WriteFile(path, []byte("Amount Awarded\n10\n"), 0o644))

	t.Run("files and urls", func(t *testing.T) {
		inputs, err := enrichInputs([]string{path}, []string{"https://example.org/grants.json"}, "v2")
		require.NoError(t, err)
		require.Len(t, inputs, 2)
		assert.Equal(t, "grants.csv", inputs[0].Filename)
		assert.Equal(t, "Amount Awarded\n10\n", string(inputs[0].Contents))
		assert.Equal(t, "v2", inputs[0].Version)
		assert.Equal(t, "https://example.org/grants.json", inputs[1].URL)
		assert.Equal(t, "v2", inputs[1].Version)
	})

	t.Run("nothing to enrich", func(t *testing.T) {
		_, err := enrichInputs(nil, nil, "")
		assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
	})

	t.Run("unreadable file", func(t *testing.T) {
		_, err := enrichInputs([]string{filepath.Join(dir, "missing.csv")}, nil, "")
		assert.True(t, errors.IsType(err, errors.ErrTypeInput))
	})
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, map[string]string{"band": "Under £500 & more"}))
	assert.Equal(t, "{\n  \"band\": \"Under £500 & more\"\n}\n", buf.String())
}
