package main

import (
	"errors"
	"fmt"

	"github.com/jmau0/riobutcher/internal/core"
	"github.com/jmau0/riobutcher/internal/export"
	"github.com/jmau0/riobutcher/internal/store"
	"github.com/spf13/cobra"
)

func newTranscriptCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "transcript <session-id>",
		Short: "Print the visible transcript of a conversation",
		Long: `Print a conversation the way operators see it: routing decisions
and empty records are hidden, wrapped payloads are unwrapped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]

			exporter, err := export.NewExporter(format)
			if err != nil {
				return err
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			conversations := core.NewConversationService(st, nil, nil, a.logger)
			turns, err := conversations.History(cmd.Context(), sessionID)
			if err != nil {
				return err
			}

			t := &export.Transcript{SessionID: sessionID, Turns: turns}
			client, err := st.GetClient(cmd.Context(), sessionID)
			switch {
			case err == nil:
				t.ClientName = client.Name
				t.Phone = client.Phone
			case !errors.Is(err, store.ErrNotFound):
				return err
			case len(turns) == 0:
				return fmt.Errorf("no conversation found for %s", sessionID)
			}

			return exporter.Export(t, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json, yaml, md)")
	return cmd
}
