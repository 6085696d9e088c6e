package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/skylens-io/skylens/internal/history"
)

// NewDatasetsCommand creates the datasets command.
func NewDatasetsCommand() *cobra.Command {
	var (
		limit     int
		snapshots bool
	)

	cmd := &cobra.Command{
		Use:   "datasets",
		Short: "List previously loaded datasets",
		Long: `List datasets recorded in the local history database, most recent
first. With --snapshots, list saved-session snapshots instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := ConfigFrom(cmd.Context())
			if err := cfg.EnsureHistoryDir(); err != nil {
				return err
			}

			store := history.NewStore()
			if err := store.Open(cfg.HistoryPath); err != nil {
				return err
			}
			defer store.Close()
			if err := store.InitSchema(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)

			if snapshots {
				list, err := store.ListSnapshots(limit)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(out, "No snapshots recorded.")
					return nil
				}
				t.AppendHeader(table.Row{"Saved", "Dataset", "Path", "Pages"})
				for _, s := range list {
					t.AppendRow(table.Row{
						s.SavedAt.Format("2006-01-02 15:04:05"),
						s.DatasetHandle, s.Path, s.PageCount,
					})
				}
				t.Render()
				return nil
			}

			list, err := store.ListDatasets(limit)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(out, "No datasets recorded.")
				return nil
			}
			t.AppendHeader(table.Row{"Loaded", "Name", "Handle", "Description"})
			for _, d := range list {
				t.AppendRow(table.Row{
					d.LoadedAt.Format("2006-01-02 15:04:05"),
					d.Name, d.Handle, d.Description,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum rows to list")
	cmd.Flags().BoolVar(&snapshots, "snapshots", false, "list saved-session snapshots instead")
	return cmd
}
