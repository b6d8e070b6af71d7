package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/shelfwise/shelfwise-server/internal/service"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var passwordStdin bool
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Long: `Create an account. The password is prompted for on a terminal, or read
from the first line of standard input with --password-stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd, passwordStdin)
			if err != nil {
				return err
			}
			resp, err := a.auth.Register(cmd.Context(), service.Credentials{Username: args[0], Password: password})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", resp.Username, resp.User.ID)
			return nil
		},
	}
	add.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from standard input")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			users, err := a.store.ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("list users: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USERNAME\tID\tCREATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\n", u.Username, u.ID, u.CreatedAt.Format(time.DateTime))
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

// readPassword prompts without echo when stdin is a terminal and otherwise
// reads one line from the command's input.
func readPassword(cmd *cobra.Command, fromStdin bool) (string, error) {
	if !fromStdin && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		pw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password")
	}
	return line, nil
}
