package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newJobsCmd(st *state) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}
	cmd.AddCommand(newJobsTriggerCmd(st), newJobsInspectCmd(st))
	return cmd
}

func newJobsTriggerCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger NAME",
		Short: "Enqueue a maintenance job now",
		Long:  "Enqueue a maintenance job now. Supported: purge-sessions.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := st.deps.Jobs(st.cfg)
			defer api.Close()
			info, err := api.Trigger(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
}

func newJobsInspectCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show worker queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			api := st.deps.Jobs(st.cfg)
			defer api.Close()
			queues, err := api.Inspect(cmd.Context())
			if err != nil {
				return err
			}
			return st.render(cmd.OutOrStdout(), queues, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tRETRY\tFAILED\tPAUSED")
				for _, q := range queues {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%t\n", q.Queue, q.Pending, q.Active, q.Retry, q.Failed, q.Paused)
				}
			})
		},
	}
}
