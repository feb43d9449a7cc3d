package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmau0/riobutcher/internal/core"
	"github.com/spf13/cobra"
)

func newMetricsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show lead counts and the last 24 hours of messages per hour",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			summary, err := core.NewMetricsService(st, time.Local).Summary(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("Leads"))
			fmt.Fprintf(out, "  total: %d  urgentes: %d  humano: %d  IA: %d\n",
				summary.TotalLeads, summary.UrgentLeads, summary.HumanOwned, summary.AIOwned)
			fmt.Fprintf(out, "  eficiência da IA: %.1f%%\n\n", summary.AIEfficiency)

			fmt.Fprintln(out, headerStyle.Render("Mensagens nas últimas 24h"))
			for _, b := range summary.TurnsByHour {
				if b.Count == 0 {
					continue
				}
				fmt.Fprintf(out, "  %s %s %d\n", b.Hour, successStyle.Render(strings.Repeat("█", min(b.Count, 40))), b.Count)
			}
			return nil
		},
	}
}
