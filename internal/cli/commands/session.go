package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/skylens-io/skylens/internal/session"
)

// NewSessionCommand creates the session command group.
func NewSessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Work with saved session files",
	}
	cmd.AddCommand(newSessionShowCommand())
	return cmd
}

func newSessionShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show [file]",
		Short: "Summarize a saved session file",
		Long: `Parse a saved session file and print one line per page: its id, the
page it was derived from, the view kind, and the remote object behind
it. Defaults to the configured session file.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ConfigFrom(cmd.Context())
			path := cfg.SessionFile
			if len(args) == 1 {
				path = args[0]
			}

			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("reading session file: %w", err)
			}

			// Peek at the envelope for the root handle, then rebuild the
			// pages through the normal restore path.
			var envelope struct {
				RemoteObjectID string `json:"remoteObjectId"`
			}
			if err := json.Unmarshal(data, &envelope); err != nil {
				return fmt.Errorf("parsing session file: %w", err)
			}

			s := session.New(session.Config{Logger: LoggerFrom(cmd.Context())})
			if err := s.Reconstruct(data); err != nil {
				return fmt.Errorf("restoring session from %s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Dataset object: %s\n", envelope.RemoteObjectID)

			pages := s.Pages()
			if len(pages) == 0 {
				fmt.Fprintln(out, "No pages.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Page", "Source", "Kind", "Title", "Rows", "Object"})
			for _, p := range pages {
				source := "-"
				if p.SourceID != 0 {
					source = fmt.Sprintf("%d", p.SourceID)
				}
				v := p.View()
				t.AppendRow(table.Row{
					p.ID, source, v.Kind(), p.Title, v.RowCount(), v.Handle(),
				})
			}
			t.Render()
			return nil
		},
	}
}
