package cmd

import (
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/longkey1/chatai/internal/chatai"
	"github.com/longkey1/chatai/internal/tui"
)

const debugLogFile = "chatai-debug.log"

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui [id]",
	Short: "Start the interactive chat interface",
	Long: `Start the interactive chat interface.

The conversation list is shown on the left and the open conversation on the
right; replies appear as they stream in. Without an ID the most recent
conversation is opened. With --verbose, logs are written to chatai-debug.log
in the current directory.

Keys:
  enter    send the message (or open the selected conversation)
  tab      switch between the input and the conversation list
  ctrl+n   start a new conversation (stops reading the current reply)
  ctrl+r   refresh the conversation list
  esc      quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Logs would corrupt the screen.
		logSink = io.Discard
		if verbose {
			f, err := tea.LogToFile(debugLogFile, "chatai")
			if err != nil {
				return fmt.Errorf("opening debug log: %w", err)
			}
			defer f.Close()
			logSink = f
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var initial chatai.ID
		if len(args) > 0 {
			if initial, err = a.resolveConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
		}

		orch, err := a.orchestrator()
		if err != nil {
			return err
		}

		model := tui.NewModel(cmd.Context(), orch, initial)
		defer model.Close()

		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("running interface: %w", err)
		}

		if verbose {
			a.metrics.WriteSummary(cmd.ErrOrStderr())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
