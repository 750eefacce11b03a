// Package jobs implements the jobs subcommand for inspecting migration jobs.
package jobs

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cartbridge/cartbridge/internal/conf"
	"github.com/cartbridge/cartbridge/internal/jobstore"
	"github.com/cartbridge/cartbridge/internal/logging"
)

// Command creates the jobs command with its list and show subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect migration jobs",
	}

	cmd.AddCommand(listCommand(settings), showCommand(settings))
	return cmd
}

func openStore(settings *conf.Settings) (*jobstore.Store, error) {
	return jobstore.NewStore(settings.Migration.DataDir, logging.ForService("jobs"))
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			jobs, err := store.List()
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("No jobs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tKIND\tSTATUS\tCREATED\tERRORS")
			for _, job := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					job.ID, job.Kind, job.Status,
					job.CreatedAt.Format("2006-01-02 15:04:05"),
					len(job.Errors))
			}
			return w.Flush()
		},
	}
}

func showCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(settings)
			if err != nil {
				return err
			}
			job, err := store.Get(args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(job, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
