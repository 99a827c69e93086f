// Package prompt renders TOML prompt templates into a single chat message.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

const fileExt = ".toml"

// Prompt represents the structure of a TOML prompt file
type Prompt struct {
	Description string `toml:"description,omitempty"`
	System      string `toml:"system"`
	User        string `toml:"user"`
}

// Entry is a prompt found in one of the prompt directories.
type Entry struct {
	Name        string
	Path        string
	Description string
}

// LoadPrompt loads a prompt file and returns its contents
func LoadPrompt(filePath string) (*Prompt, error) {
	var prompt Prompt
	md, err := toml.DecodeFile(filePath, &prompt)
	if err != nil {
		return nil, fmt.Errorf("error decoding prompt file: %v", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in prompt file %s: %v", filePath, undecoded)
	}
	if strings.TrimSpace(prompt.User) == "" && strings.TrimSpace(prompt.System) == "" {
		return nil, fmt.Errorf("prompt file %s defines neither system nor user template", filePath)
	}
	return &prompt, nil
}

// Find returns the path of the named prompt. Later directories take
// precedence over earlier ones.
func Find(name string, promptDirs []string) (string, error) {
	file := name
	if !strings.HasSuffix(file, fileExt) {
		file += fileExt
	}

	var found string
	for _, dir := range promptDirs {
		candidate := filepath.Join(dir, file)
		if _, err := os.Stat(candidate); err == nil {
			found = candidate
		}
	}
	if found == "" {
		return "", fmt.Errorf("prompt file '%s' not found in any of the prompt directories: %v", file, promptDirs)
	}
	return found, nil
}

// List returns every prompt in promptDirs sorted by name, including
// prompts in subdirectories. When a name exists in several directories the
// later directory wins, as in Find.
func List(promptDirs []string) ([]Entry, error) {
	byName := make(map[string]Entry)
	for _, dir := range promptDirs {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) && path == dir {
					return filepath.SkipDir
				}
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), fileExt) {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			name := filepath.ToSlash(strings.TrimSuffix(rel, fileExt))
			entry := Entry{Name: name, Path: path}
			if p, err := LoadPrompt(path); err == nil {
				entry.Description = p.Description
			}
			byName[name] = entry
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error reading prompt directory %s: %v", dir, err)
		}
	}

	entries := make([]Entry, 0, len(byName))
	for _, e := range byName {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}
