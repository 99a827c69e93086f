/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/longkey1/chatai/internal/chatai"
	promptpkg "github.com/longkey1/chatai/internal/chatai/prompt"
	"github.com/longkey1/chatai/internal/chatai/transcript"
)

var (
	prompt          string
	argFlags        []string
	useEditor       bool
	conversationArg string
	newConversation bool
)

// chatCmd represents the chat command
var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message and stream the reply",
	Long: `Send a message to the chat server and print the reply as it streams in.

By default the message continues your most recent conversation. Use
--conversation to pick another one, or --new to start a new conversation.

If no message is provided as an argument, it reads from stdin.
If --editor flag is set, it opens the default editor (from EDITOR environment variable) to compose the message.

The prompt file should be in TOML format with the following structure:
system = "Instructions with optional {{input}} placeholder"
user = "User message with optional {{input}} placeholder"

Press Ctrl+C to stop reading the reply. The server is not notified; the
reply may still be stored in the conversation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if conversationArg != "" && newConversation {
			return fmt.Errorf("cannot specify both --conversation and --new")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var message string
		if useEditor {
			message, err = getMessageFromEditor()
			if err != nil {
				return fmt.Errorf("getting message from editor: %w", err)
			}
		} else if len(args) > 0 {
			message = strings.Join(args, " ")
		} else {
			input, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading from stdin: %w", err)
			}
			message = strings.TrimSpace(string(input))
		}

		message, err = promptpkg.FormatMessage(message, prompt, a.cfg.PromptDirs, argFlags)
		if err != nil {
			return fmt.Errorf("formatting message with prompt: %w", err)
		}

		orch, err := a.orchestrator()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if !newConversation {
			id, err := a.resolveConversation(ctx, conversationArg)
			if err != nil {
				return err
			}
			if err := orch.OpenConversation(ctx, id); err != nil {
				return fmt.Errorf("opening conversation: %w", err)
			}
			if verbose && orch.ConversationID() != "" {
				fmt.Fprintf(os.Stderr, "Continuing conversation: %s (%d messages)\n", orch.ConversationID(), orch.Transcript().Len())
			}
		}

		out := cmd.OutOrStdout()
		w := &replyWriter{out: out, pending: -1}
		unsubscribe := orch.Transcript().Subscribe(w.observe)
		defer unsubscribe()

		sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		go func() {
			<-sigCtx.Done()
			orch.Abandon()
		}()

		err = orch.Submit(ctx, message)
		fmt.Fprintln(out)

		if verbose {
			a.metrics.WriteSummary(os.Stderr)
		}

		switch {
		case errors.Is(err, chatai.ErrExchangeAbandoned):
			fmt.Fprintln(os.Stderr, "Interrupted.")
			return nil
		case err != nil:
			return fmt.Errorf("chat request failed: %w", err)
		}

		if id := orch.ConversationID(); id != "" {
			fmt.Fprintf(os.Stderr, "\nConversation: %s\n", id)
			fmt.Fprintf(os.Stderr, "Continue with:\n  chatai chat -c %s \"your message\"\n", id)
		}
		return nil
	},
}

// replyWriter prints the growing assistant reply as it is folded.
type replyWriter struct {
	out     io.Writer
	pending int
	printed int
}

func (w *replyWriter) observe(snap transcript.Snapshot) {
	if !snap.Streaming {
		w.pending, w.printed = -1, 0
		return
	}
	if snap.Pending != w.pending {
		w.pending, w.printed = snap.Pending, 0
	}
	content := snap.Messages[snap.Pending].Content
	if len(content) > w.printed {
		io.WriteString(w.out, content[w.printed:])
		w.printed = len(content)
	}
}

// getMessageFromEditor opens the default editor and returns the edited message
func getMessageFromEditor() (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		return "", fmt.Errorf("EDITOR environment variable is not set")
	}

	tmpFile, err := os.CreateTemp("", "chatai-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %v", err)
	}
	tmpFile.Close()
	defer os.Remove(tmpFile.Name())

	cmd := exec.Command(editor, tmpFile.Name())
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to open editor: %v", err)
	}

	content, err := os.ReadFile(tmpFile.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited content: %v", err)
	}

	return strings.TrimSpace(string(content)), nil
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVarP(&prompt, "prompt", "p", "", "Name of the prompt template (without .toml extension)")
	chatCmd.Flags().StringArrayVar(&argFlags, "arg", []string{}, "Key-value pairs for prompt template (format: key:value)")
	chatCmd.Flags().BoolVarP(&useEditor, "editor", "e", false, "Use default editor (from EDITOR environment variable) to compose message")
	chatCmd.Flags().StringVarP(&conversationArg, "conversation", "c", "", "Conversation ID to continue, or 'latest' (default: most recent)")
	chatCmd.Flags().BoolVarP(&newConversation, "new", "n", false, "Start a new conversation")
}
