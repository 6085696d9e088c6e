package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/skylens-io/skylens/internal/remote"
	"github.com/skylens-io/skylens/pkg/core"
)

// maxDistinctConcurrency bounds the parallel sketch requests issued by
// inspect --distinct.
const maxDistinctConcurrency = 4

// schemaResult is the result shape of getSchema.
type schemaResult struct {
	Schema   core.Schema `json:"schema"`
	RowCount int64       `json:"rowCount"`
}

// hllResult is the result shape of hLogLog.
type hllResult struct {
	DistinctItemCount int64 `json:"distinctItemCount"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	var (
		distinct bool
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "inspect <object-id>",
		Short: "Show the schema of a remote object",
		Long: `Fetch the schema and row count of a remote object and print them as
a table. With --distinct, also estimate the distinct value count of
each column using a hyperloglog sketch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ConfigFrom(cmd.Context())
			logger := LoggerFrom(cmd.Context())

			client := remote.NewClient(remote.ClientConfig{
				ServiceURL: cfg.ServiceURL,
				Logger:     logger,
			})

			seedValue := uint64(cfg.Seed)
			if seedValue == 0 {
				seedValue = uint64(time.Now().UnixNano())
			}
			seed := remote.NewSeed(seedValue)

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			handle := core.Handle(args[0])
			proxy := remote.NewTableProxy(handle, seed)

			summary, err := fetchSchema(ctx, client, proxy)
			if err != nil {
				return err
			}

			var distinctCounts map[string]int64
			if distinct {
				distinctCounts, err = fetchDistinctCounts(ctx, client, proxy, summary.Schema)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Object: %s\n", handle)
			fmt.Fprintf(out, "Rows: %d\n", summary.RowCount)

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			if distinct {
				t.AppendHeader(table.Row{"Column", "Kind", "Distinct (approx)"})
			} else {
				t.AppendHeader(table.Row{"Column", "Kind"})
			}
			for _, col := range summary.Schema {
				if distinct {
					t.AppendRow(table.Row{col.Name, col.Kind, distinctCounts[col.Name]})
				} else {
					t.AppendRow(table.Row{col.Name, col.Kind})
				}
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&distinct, "distinct", false, "estimate distinct values per column")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}

// fetchSchema runs getSchema to completion and decodes the summary.
func fetchSchema(ctx context.Context, sub remote.Submitter, proxy *remote.TableProxy) (*schemaResult, error) {
	recv, done := remote.NewBlockingReceiver()
	if _, err := sub.Submit(ctx, proxy.GetSchema(), recv); err != nil {
		return nil, err
	}
	term := <-done
	if term.Err != nil {
		return nil, fmt.Errorf("fetching schema: %w", term.Err)
	}
	var summary schemaResult
	if err := json.Unmarshal(term.Data, &summary); err != nil {
		return nil, fmt.Errorf("malformed schema result: %w", err)
	}
	return &summary, nil
}

// fetchDistinctCounts runs one hLogLog sketch per column, a few in parallel.
func fetchDistinctCounts(ctx context.Context, sub remote.Submitter, proxy *remote.TableProxy, schema core.Schema) (map[string]int64, error) {
	counts := make([]int64, len(schema))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxDistinctConcurrency)
	for i, col := range schema {
		g.Go(func() error {
			recv, done := remote.NewBlockingReceiver()
			if _, err := sub.Submit(ctx, proxy.HLogLog(col.Name), recv); err != nil {
				return err
			}
			term := <-done
			if term.Err != nil {
				return fmt.Errorf("counting distinct values of %s: %w", col.Name, term.Err)
			}
			var res hllResult
			if err := json.Unmarshal(term.Data, &res); err != nil {
				return fmt.Errorf("malformed hyperloglog result for %s: %w", col.Name, err)
			}
			counts[i] = res.DistinctItemCount
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(schema))
	for i, col := range schema {
		out[col.Name] = counts[i]
	}
	return out, nil
}
