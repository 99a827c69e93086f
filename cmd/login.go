package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"github.com/longkey1/chatai/internal/chatai"
)

var (
	username string
	password string
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the chat server",
	Long: `Sign in to the chat server and store the issued access token.

The credential is written to credentials.json next to the config file,
readable only by the current user. Missing username or password are asked
for interactively. The password can also be given with CHATAI_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		user, pass, err := readCredentials(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		cred, err := a.client.Login(cmd.Context(), user, pass)
		if err != nil {
			if chatai.IsAuthRejected(err) {
				return errors.New("login failed: invalid username or password")
			}
			return fmt.Errorf("login failed: %w", err)
		}
		if err := a.credentials.Save(cred); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", cred.User.Username)
		a.logger.Debug("credential stored", "path", a.credentials.Path(), "user_id", cred.User.ID.String())
		return nil
	},
}

// registerCmd represents the register command
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account on the chat server",
	Long: `Create an account on the chat server.
Run 'chatai login' afterwards to sign in.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		user, pass, err := readCredentials(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		identity, err := a.client.Register(cmd.Context(), user, pass)
		if err != nil {
			return fmt.Errorf("registration failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Account %s created.\n\nSign in with:\n  chatai login -u %s\n", identity.Username, identity.Username)
		return nil
	},
}

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.credentials.Delete(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

// whoamiCmd represents the whoami command
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and verify the token",
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

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User: %s (id %s)\n", user.Username, user.ID)
		fmt.Fprintf(out, "Server: %s\n", a.client.BaseURL())

		info, err := a.client.VerifyToken(cmd.Context())
		if err != nil {
			return fmt.Errorf("verifying token: %w", err)
		}
		fmt.Fprintf(out, "Token valid: %v\n", info.Valid)
		if verbose && len(info.DecodedToken) > 0 {
			keys := make([]string, 0, len(info.DecodedToken))
			for k := range info.DecodedToken {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "  %s: %v\n", k, info.DecodedToken[k])
			}
		}
		return nil
	},
}

// readCredentials fills in a missing username or password from the terminal.
func readCredentials(in io.Reader, prompt io.Writer) (string, string, error) {
	user, pass := username, password
	if pass == "" {
		pass = os.Getenv("CHATAI_PASSWORD")
	}

	reader := bufio.NewReader(in)
	if user == "" {
		fmt.Fprint(prompt, "Username: ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", "", fmt.Errorf("reading username: %w", err)
		}
		user = strings.TrimSpace(line)
	}
	if pass == "" {
		fmt.Fprint(prompt, "Password: ")
		if f, ok := in.(*os.File); ok && term.IsTerminal(f.Fd()) {
			b, err := term.ReadPassword(f.Fd())
			fmt.Fprintln(prompt)
			if err != nil {
				return "", "", fmt.Errorf("reading password: %w", err)
			}
			pass = string(b)
		} else {
			line, err := reader.ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return "", "", fmt.Errorf("reading password: %w", err)
			}
			pass = strings.TrimRight(line, "\r\n")
		}
	}

	if user == "" || pass == "" {
		return "", "", errors.New("username and password are required")
	}
	return user, pass, nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVarP(&username, "username", "u", "", "Username")
		c.Flags().StringVarP(&password, "password", "p", "", "Password (prefer the interactive prompt or CHATAI_PASSWORD)")
	}
}
