package prompt

import (
	"fmt"
	"strings"
)

// FormatMessage formats the message with the named prompt. Without a prompt
// the message is returned unchanged. The chat server takes a single message,
// so the system template is prepended to the user template.
func FormatMessage(message string, promptName string, promptDirs []string, args []string) (string, error) {
	if promptName == "" {
		return message, nil
	}

	// Search for prompt file in all directories (later directories take precedence)
	path, err := Find(promptName, promptDirs)
	if err != nil {
		return "", err
	}

	// Load prompt template
	tmpl, err := LoadPrompt(path)
	if err != nil {
		return "", fmt.Errorf("error loading prompt file: %v", err)
	}

	// Process command line arguments
	argMap, err := processArgs(args)
	if err != nil {
		return "", fmt.Errorf("error processing arguments: %v", err)
	}
	// The message itself is always available as {{input}}
	argMap["input"] = message

	return tmpl.Render(argMap), nil
}

// Render substitutes {{key}} placeholders in both templates.
func (p *Prompt) Render(values map[string]string) string {
	pairs := make([]string, 0, len(values)*2)
	for key, value := range values {
		pairs = append(pairs, "{{"+key+"}}", value)
	}
	r := strings.NewReplacer(pairs...)

	// Format both prompts with all replacements
	system := strings.TrimSpace(r.Replace(p.System))
	user := strings.TrimSpace(r.Replace(p.User))
	switch {
	case system == "":
		return user
	case user == "":
		return system
	default:
		return system + "\n\n" + user
	}
}

// processArgs processes the command line arguments and returns a map of key-value pairs
func processArgs(args []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, arg := range args {
		arg = strings.TrimSpace(arg)
		// Handle quoted values
		if len(arg) >= 2 && strings.HasPrefix(arg, `"`) && strings.HasSuffix(arg, `"`) {
			arg = arg[1 : len(arg)-1]
		}

		// Split on first colon
		key, value, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("invalid argument format: %s. Expected format: key:value", arg)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		// Remove escape characters from value
		value = strings.ReplaceAll(value, `\:`, ":")
		value = strings.ReplaceAll(value, `\"`, `"`)

		if key == "" {
			return nil, fmt.Errorf("invalid argument format: %s. Key must not be empty", arg)
		}
		if key == "input" {
			return nil, fmt.Errorf("'input' is a reserved keyword and cannot be used as a key")
		}
		result[key] = value
	}
	return result, nil
}
