package commands

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spdm-io/spdm-responder/internal/server"
)

var errSessionIDRequired = errors.New("session id must be a positive integer")

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect secure sessions",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())

	return cmd
}

func sessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all secure sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var views []server.SessionView
			if err := getJSON("/v1/sessions", &views); err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			out, err := formatSessions(views, outputFormat)
			if err != nil {
				return fmt.Errorf("format sessions: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show details of a secure session",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("%w: %q", errSessionIDRequired, args[0])
			}

			var view server.SessionView
			if err := getJSON("/v1/sessions/"+strconv.FormatUint(id, 10), &view); err != nil {
				return fmt.Errorf("get session: %w", err)
			}

			out, err := formatSession(view, outputFormat)
			if err != nil {
				return fmt.Errorf("format session: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}
