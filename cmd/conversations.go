package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/longkey1/chatai/internal/chatai"
)

// conversationsCmd represents the conversations command
var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"conv"},
	Short:   "Browse your conversations",
	Long: `Browse the conversations stored on the chat server.

Conversations are created by the server when you send the first message
of a new chat.`,
}

// conversationsListCmd represents the conversations list command
var conversationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Long:  `List all conversations, most recently created first.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.identity()
		if err != nil {
			return err
		}

		refs, err := a.loader.ListConversations(cmd.Context(), user.ID)
		if err != nil {
			return fmt.Errorf("listing conversations: %w", err)
		}

		if len(refs) == 0 {
			fmt.Println("No conversations found.")
			fmt.Println("\nStart a new conversation with:")
			fmt.Println("  chatai chat \"your message\"")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE")
		fmt.Fprintln(w, "--\t-----")
		for _, ref := range refs {
			title := ref.Title
			if title == "" {
				title = "-"
			}
			fmt.Fprintf(w, "%s\t%s\n", ref.ID, title)
		}
		w.Flush()

		fmt.Println("\nUse 'chatai conversations show <id>' to view a conversation.")
		return nil
	},
}

// conversationsShowCmd represents the conversations show command
var conversationsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show the messages of a conversation",
	Long: `Show all messages of a conversation.

The ID can be a conversation ID or "latest" for the most recent conversation,
which is also the default.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.identity()
		if err != nil {
			return err
		}

		idArg := "latest"
		if len(args) > 0 {
			idArg = args[0]
		}
		id, err := a.resolveConversation(cmd.Context(), idArg)
		if err != nil {
			return err
		}

		msgs, err := a.loader.LoadTranscript(cmd.Context(), user.ID, id)
		if err != nil {
			return fmt.Errorf("loading conversation: %w", err)
		}

		fmt.Printf("Conversation: %s\n", id)
		fmt.Printf("Messages: %d\n", len(msgs))
		fmt.Println()

		if len(msgs) == 0 {
			fmt.Println("No messages in this conversation.")
			return nil
		}

		fmt.Println("Message History:")
		fmt.Println("----------------")
		for i, msg := range msgs {
			roleLabel := "You"
			if msg.Role == chatai.RoleAssistant {
				roleLabel = "Assistant"
			}
			fmt.Printf("\n[%d] %s:\n%s\n", i+1, roleLabel, msg.Content)
		}

		fmt.Printf("\nContinue this conversation with:\n  chatai chat -c %s \"your message\"\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(conversationsCmd)
	conversationsCmd.AddCommand(conversationsListCmd)
	conversationsCmd.AddCommand(conversationsShowCmd)
}
