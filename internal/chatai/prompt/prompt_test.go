package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePrompt(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestFormatMessage(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "translate.toml", `
description = "Translate text"
system = "You are a translator into {{lang}}."
user = "Translate: {{input}}"
`)
	writePrompt(t, dir, "user_only.toml", `user = "Summarize {{input}}"`)

	tests := []struct {
		name    string
		prompt  string
		args    []string
		want    string
		wantErr bool
	}{
		{name: "no prompt", want: "hello"},
		{name: "system and user", prompt: "translate", args: []string{"lang:French"}, want: "You are a translator into French.\n\nTranslate: hello"},
		{name: "with extension", prompt: "translate.toml", args: []string{`"lang:Japanese"`}, want: "You are a translator into Japanese.\n\nTranslate: hello"},
		{name: "user only", prompt: "user_only", want: "Summarize hello"},
		{name: "escaped colon", prompt: "translate", args: []string{`lang:a\:b`}, want: "You are a translator into a:b.\n\nTranslate: hello"},
		{name: "missing prompt", prompt: "missing", wantErr: true},
		{name: "reserved key", prompt: "translate", args: []string{"input:x"}, wantErr: true},
		{name: "bad argument", prompt: "translate", args: []string{"lang"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatMessage("hello", tt.prompt, []string{dir}, tt.args)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFind_LaterDirectoryWins(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writePrompt(t, first, "p.toml", `user = "first"`)
	writePrompt(t, second, "p.toml", `user = "second"`)

	path, err := Find("p", []string{first, second})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(second, "p.toml"), path)
}

func TestLoadPrompt_Invalid(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "empty.toml", `description = "nothing"`)
	writePrompt(t, dir, "unknown.toml", "user = \"x\"\nmodel = \"gpt\"")

	_, err := LoadPrompt(filepath.Join(dir, "empty.toml"))
	assert.Error(t, err)
	_, err = LoadPrompt(filepath.Join(dir, "unknown.toml"))
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writePrompt(t, first, "b.toml", `user = "b"`)
	writePrompt(t, first, "a.toml", "description = \"old a\"\nuser = \"a\"")
	writePrompt(t, first, "notes.txt", "ignored")
	writePrompt(t, second, "a.toml", "description = \"new a\"\nuser = \"a\"")
	writePrompt(t, second, "code/review.toml", "description = \"Review\"\nuser = \"{{input}}\"")

	entries, err := List([]string{first, second, filepath.Join(first, "missing")})
	require.NoError(t, err)

	var names, descriptions []string
	for _, e := range entries {
		names = append(names, e.Name)
		descriptions = append(descriptions, e.Description)
	}
	assert.Equal(t, []string{"a", "b", "code/review"}, names)
	assert.Equal(t, []string{"new a", "", "Review"}, descriptions)
}
