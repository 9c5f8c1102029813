package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"timetrack/internal/core"
	"timetrack/internal/report"
	"timetrack/internal/services"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// opener returns the services a command runs against, plus a release func
// for anything else it opened.
type opener func(ctx context.Context, logLevel string) (*services.Services, func(), error)

// app carries what subcommands share once the root has run.
type app struct {
	open     opener
	logLevel string
	svc      *services.Services
	release  func()
	now      func() time.Time
}

func newApp(open opener) *app {
	return &app{open: open, now: time.Now}
}

func (a *app) services(cmd *cobra.Command) (*services.Services, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	svc, release, err := a.open(cmd.Context(), a.logLevel)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	a.release = release
	return svc, nil
}

func (a *app) close() {
	if a.svc != nil {
		_ = a.svc.Close()
		a.svc = nil
	}
	if a.release != nil {
		a.release()
		a.release = nil
	}
}

// execute runs the command tree for args. Whatever a command opened is
// closed afterwards, whether or not it failed.
func execute(ctx context.Context, open opener, args []string, out, errOut io.Writer) error {
	a := newApp(open)
	defer a.close()

	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Operate the timetrack store from the terminal",
		Long: `timetrackctl runs the same project, timer and report operations as the
HTTP API directly against the configured store (DATA_BACKEND). When AMQP_URL
is set, changes are relayed to the broker like the API does.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		projectsCmd(a),
		startCmd(a),
		stopCmd(a),
		statusCmd(a),
		reportCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

func projectsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List or add projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd)
			if err != nil {
				return err
			}
			projects, err := svc.Projects.List(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tCOLOR\tID")
			for _, p := range projects {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Color, p.ID)
			}
			return tw.Flush()
		},
	})

	var color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd)
			if err != nil {
				return err
			}
			p, err := svc.Projects.Create(cmd.Context(), args[0], color)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
	add.Flags().StringVar(&color, "color", "", "Display color, e.g. #10b981 (default #3b82f6)")
	cmd.AddCommand(add)

	return cmd
}

func startCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start <project-name> <notes...>",
		Short: "Start the timer on a project",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd)
			if err != nil {
				return err
			}
			p, err := svc.Projects.GetByName(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			e, err := svc.TimeEntries.Start(cmd.Context(), services.StartInput{
				ProjectID: p.ID,
				Notes:     strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started %q on %s at %s\n", e.Notes, p.Name, e.StartedAt.Local().Format("15:04"))
			return nil
		},
	}
}

func stopCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd)
			if err != nil {
				return err
			}
			active, err := svc.TimeEntries.Active(cmd.Context())
			if err != nil {
				return err
			}
			if active == nil {
				return errors.New("no timer is running")
			}
			e, err := svc.TimeEntries.Stop(cmd.Context(), active.ID)
			if err != nil {
				return err
			}
			d, _ := e.Duration()
			fmt.Fprintf(cmd.OutOrStdout(), "Stopped %q after %s\n", e.Notes, core.FormatHHMM(d))
			return nil
		},
	}
}

func statusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running timer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.services(cmd)
			if err != nil {
				return err
			}
			active, err := svc.TimeEntries.Active(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if active == nil {
				fmt.Fprintln(out, "No timer running")
				return nil
			}

			projectName := "Unknown Project"
			if p, err := svc.Projects.Get(cmd.Context(), active.ProjectID); err == nil {
				projectName = p.Name
			}
			fmt.Fprintf(out, "Running: %s - %s for %s (since %s)\n",
				projectName,
				active.Notes,
				core.FormatHHMM(active.Elapsed(a.now())),
				active.StartedAt.Local().Format("15:04"))
			return nil
		},
	}
}

func reportCmd(a *app) *cobra.Command {
	var period, format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the grouped report for a period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "table", "csv", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q: must be table, csv, json or yaml", format)
			}

			svc, err := a.services(cmd)
			if err != nil {
				return err
			}
			r, err := svc.Reports.Report(cmd.Context(), core.ParsePeriod(period))
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), r, format)
		},
	}
	cmd.Flags().StringVar(&period, "period", "day", "Report period (day, week, month)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format (table, csv, json, yaml)")
	return cmd
}

func writeReport(w io.Writer, r services.Report, format string) error {
	switch format {
	case "csv":
		return report.WriteCSV(w, r.Rows)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tENTRIES\tTOTAL")
	for _, row := range r.Rows {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", row.ProjectName, len(row.Entries), core.FormatMinutes(row.TotalMinutes))
	}
	fmt.Fprintf(tw, "TOTAL\t\t%s\n", core.FormatMinutes(r.TotalMinutes))
	return tw.Flush()
}
