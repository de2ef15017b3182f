package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spdm-io/spdm-responder/internal/server"
)

func contextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Show the responder's current connection state",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var view server.ContextView
			if err := getJSON("/v1/context", &view); err != nil {
				return fmt.Errorf("get context: %w", err)
			}

			out, err := formatContext(view, outputFormat)
			if err != nil {
				return fmt.Errorf("format context: %w", err)
			}

			fmt.Print(out)
			return nil
		},
	}
}
