package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"gmdl/internal/services"
	"gmdl/pkg/pagination"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const defaultRunsLimit = 20

func newRunsCommand(load loader) *cobra.Command {
	var (
		filter services.RunFilter
		format string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent tenant operation runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				format = "json"
			}
			switch format {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unknown output format %q (table, json, yaml)", format)
			}

			return withApp(load, func(a *app) error {
				filter.Limit = pagination.ClampLimit(filter.Limit)
				runs, _, err := a.runs.List(cmd.Context(), filter)
				if err != nil {
					return printFailure(cmd, err)
				}

				views := make([]services.RunView, 0, len(runs))
				for _, run := range runs {
					views = append(views, services.NewRunView(run))
				}

				out := cmd.OutOrStdout()
				switch format {
				case "json":
					return writeJSON(out, map[string]interface{}{
						"ok":    true,
						"count": len(views),
						"data":  views,
					})
				case "yaml":
					enc := yaml.NewEncoder(out)
					defer enc.Close()
					return enc.Encode(views)
				default:
					return writeRunsTable(out, views)
				}
			})
		},
	}
	cmd.Flags().StringVar(&filter.Tenant, "tenant", "", "Filter by tenant id or key")
	cmd.Flags().StringVar(&filter.Action, "action", "", "Filter by action (provision, migrate, repair)")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status (started, success, failed)")
	cmd.Flags().IntVar(&filter.Limit, "limit", defaultRunsLimit, "Number of runs to show (1-200)")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json or yaml")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Shorthand for --output json")
	return cmd
}

func writeRunsTable(w io.Writer, runs []services.RunView) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTENANT\tACTION\tSTATUS\tSTARTED_AT\tFINISHED_AT\tDURATION_MS\tBATCH_ID")
	for _, run := range runs {
		tenant := "-"
		if run.TenantKey != nil {
			tenant = *run.TenantKey
		} else if run.TenantID != nil {
			tenant = strconv.FormatUint(uint64(*run.TenantID), 10)
		}
		finished := "-"
		if run.FinishedAt != nil {
			finished = run.FinishedAt.UTC().Format(time.RFC3339)
		}
		duration := "-"
		if run.DurationMs != nil {
			duration = strconv.FormatInt(*run.DurationMs, 10)
		}
		batch := "-"
		if run.BatchID != nil {
			batch = *run.BatchID
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.ID, tenant, run.Action, run.Status,
			run.StartedAt.UTC().Format(time.RFC3339), finished, duration, batch)
	}
	return tw.Flush()
}
