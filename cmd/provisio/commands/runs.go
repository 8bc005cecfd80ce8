package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/provisio/provisio/pkg/stores"
)

func newRunsCommand() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded resolution runs",
	}

	cmd.PersistentFlags().StringVar(&storePath, "store", "provisio.db", "SQLite database with resolution history")

	cmd.AddCommand(newRunsListCommand(&storePath))
	cmd.AddCommand(newRunsShowCommand(&storePath))
	cmd.AddCommand(newRunsDeleteCommand(&storePath))

	return cmd
}

func newRunsListCommand(storePath *string) *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List resolution runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), *storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListResolutions(cmd.Context(), limit, offset)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tROOT\tFEATURES\tSTARTED")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					r.ID, r.Status, r.Root, r.FeaturesResolved,
					r.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	cmd.Flags().IntVar(&offset, "offset", 0, "runs to skip")

	return cmd
}

func newRunsShowCommand(storePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one resolution run in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), *storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetResolution(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(runDetail(run))
		},
	}
}

func newRunsDeleteCommand(storePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded resolution run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd.Context(), *storePath)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.DeleteResolution(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted run %s\n", args[0])
			return nil
		},
	}
}

// runDetail expands the stored JSON blobs so `runs show` prints structured
// directives and warnings instead of escaped strings.
func runDetail(r *stores.Resolution) map[string]interface{} {
	detail := map[string]interface{}{
		"id":                r.ID,
		"root":              r.Root,
		"status":            r.Status,
		"features_resolved": r.FeaturesResolved,
		"started_at":        r.StartedAt,
	}
	if r.CompletedAt != nil {
		detail["completed_at"] = *r.CompletedAt
	}
	if r.Error != nil {
		detail["error"] = *r.Error
	}

	var requested []string
	if err := json.Unmarshal([]byte(r.Requested), &requested); err == nil {
		detail["requested"] = requested
	}
	var directives interface{}
	if err := json.Unmarshal([]byte(r.Directives), &directives); err == nil {
		detail["directives"] = directives
	}
	var warnings interface{}
	if err := json.Unmarshal([]byte(r.Warnings), &warnings); err == nil {
		detail["warnings"] = warnings
	}

	return detail
}
