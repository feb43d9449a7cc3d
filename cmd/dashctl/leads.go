package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/jmau0/riobutcher/internal/core"
	"github.com/jmau0/riobutcher/internal/store"
	"github.com/spf13/cobra"
)

func newLeadsCmd(a *app) *cobra.Command {
	var (
		urgent bool
		search string
	)

	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List conversations with their last message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			leadService := core.NewLeadService(st, nil, a.logger)
			if _, err := leadService.Refresh(cmd.Context()); err != nil {
				return err
			}

			filter := core.LeadFilter{Tab: core.TabAll, Search: search}
			if urgent {
				filter.Tab = core.TabUrgent
			}
			leads := leadService.Leads(filter)

			out := cmd.OutOrStdout()
			if len(leads) == 0 {
				fmt.Fprintln(out, headerStyle.Render("Nenhum lead encontrado"))
				return nil
			}
			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d lead(s), %d urgente(s)", len(leads), leadService.UrgentCount())))
			fmt.Fprintln(out)

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "SESSÃO\tNOME\tTELEFONE\tATENDIMENTO\tÚLTIMA MENSAGEM\tHORA")
			for _, l := range leads {
				owner := "IA"
				if l.AgentPaused {
					owner = "Humano"
				}
				name := l.Name
				if l.Urgent {
					name = urgentStyle.Render("! " + name)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					l.SessionID, name, l.Phone, owner, truncate(l.LastMessage, 48), mutedStyle.Render(l.LastTime))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&urgent, "urgent", false, "Only show urgent leads")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter by name or phone")
	return cmd
}

func newAttendanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "attendance <session-id> <human|ia>",
		Short: "Set who owns a conversation in the local database",
		Long: `Overwrite the attendance column of a client. This does not notify the
automation; use the dashboard pause toggle for that.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			attendance := args[1]
			if attendance != store.AttendanceHuman && attendance != store.AttendanceAI {
				return fmt.Errorf("attendance must be %q or %q", store.AttendanceHuman, store.AttendanceAI)
			}

			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SetAttendance(cmd.Context(), args[0], attendance); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("%s → %s", args[0], attendance)))
			return nil
		},
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
