package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"dutybot/internal/app"
	"dutybot/internal/duty"
)

var (
	seedDate   string
	unseedDate string
	resetYes   bool
	icsDays    int
	icsFrom    string
	icsOut     string
	auditLimit int
)

var showCmd = &cobra.Command{
	Use:   "show [YYYY-MM-DD]",
	Short: "Print the duty report (today by default) and a state summary",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := optionalDate(args)
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		r, err := env.duty.Report(ctx, date)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, app.ReportText(r))
		if len(args) > 0 {
			return nil
		}
		s, err := env.duty.Status(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, app.FormatStatus(s))
		return nil
	},
}

var postCmd = &cobra.Command{
	Use:   "post [YYYY-MM-DD]",
	Short: "Publish and pin the report in the group",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := optionalDate(args)
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		r, err := env.duty.Post(ctx, actor(), date)
		if err != nil {
			return posted(cmd, err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "posted", duty.DateKey(r.Date))
		return nil
	},
}

func stepCmd(use, short string, step func(*app.Duty, context.Context, app.Actor) (duty.Report, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := cmdContext(cmd)
			defer cancel()
			r, err := step(env.duty, ctx, actor())
			if err != nil && !errors.Is(err, app.ErrNoPublisher) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), app.ReportText(r))
			return posted(cmd, err)
		},
	}
}

var nextCmd = stepCmd("next", "Advance the simulated date one working day and post it", (*app.Duty).Next)

var prevCmd = stepCmd("prev", "Move the simulated date back one working day and post it", (*app.Duty).Prev)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Simulated date",
}

var clockResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return to the real date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		return env.duty.ClockReset(ctx, actor())
	},
}

var shiftCmd = &cobra.Command{
	Use:   "shift N",
	Short: "Move the rotation anchor by N working days (N>0 advances the rotation)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("N must be an integer: %w", err)
		}
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		anchor, err := env.duty.Shift(ctx, actor(), n)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "anchor", duty.DateKey(anchor))
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   `seed "NAME1;NAME2"`,
	Short: "Pin a pair for a date (today by default) and post it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := flagDate(seedDate)
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		r, err := env.duty.Seed(ctx, actor(), args[0], date)
		if err != nil && !errors.Is(err, app.ErrNoPublisher) {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), app.ReportText(r))
		return posted(cmd, err)
	},
}

var unseedCmd = &cobra.Command{
	Use:   "unseed",
	Short: "Remove the pinned pair for a date (today by default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := flagDate(unseedDate)
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		removed, err := env.duty.Unseed(ctx, actor(), date)
		if err != nil {
			return err
		}
		if !removed {
			fmt.Fprintln(cmd.OutOrStdout(), "no override for that date")
		}
		return nil
	},
}

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Print the roster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		r, err := env.duty.Roster(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), r.Text())
		return nil
	},
}

var rosterImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the roster with FILE (one name per line, - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		r, err := env.duty.SetRoster(ctx, actor(), string(data))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "roster saved: %d names\n", len(r))
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Print the task table as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		t, err := env.duty.Tasks(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(t.JSON()))
		return nil
	},
}

var scheduleImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the task table with FILE (JSON or YAML, - for stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args[0])
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		t, err := env.duty.SetTasks(ctx, actor(), data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schedule saved: %d keys\n", len(t))
		return nil
	},
}

var debtorsCmd = &cobra.Command{
	Use:   "debtors",
	Short: "Manage the debtors list",
}

var debtorsLsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List debtors",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		list, err := env.duty.Debtors(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), app.FormatList(list))
		return nil
	},
}

var debtorsAddCmd = &cobra.Command{
	Use:   "add TEXT",
	Short: "Append a debtor entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		added, err := env.duty.AddDebtor(ctx, actor(), args[0])
		if err != nil {
			return err
		}
		if !added {
			return app.ErrEmptyText
		}
		return nil
	},
}

var debtorsRmCmd = &cobra.Command{
	Use:   "rm TEXT",
	Short: "Remove a debtor entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		removed, err := env.duty.RemoveDebtor(ctx, actor(), args[0])
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("no entry %q", args[0])
		}
		return nil
	},
}

var sayCmd = &cobra.Command{
	Use:   "say TEXT",
	Short: "Send free text to the group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		return posted(cmd, env.duty.Say(ctx, actor(), args[0]))
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Re-anchor at today and clear overrides, debtors and the simulated date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			return errors.New("refusing to reset without --yes")
		}
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		anchor, err := env.duty.Reset(ctx, actor())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "anchor", duty.DateKey(anchor))
		return nil
	},
}

var exportICSCmd = &cobra.Command{
	Use:   "export-ics",
	Short: "Write the upcoming rotation as an iCalendar file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := flagDate(icsFrom)
		if err != nil {
			return err
		}
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		data, err := env.duty.ExportICS(ctx, from, icsDays)
		if err != nil {
			return err
		}
		if icsOut == "" || icsOut == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		return os.WriteFile(icsOut, data, 0o644)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent operator actions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		entries, err := env.duty.Audit(ctx, auditLimit)
		if err != nil {
			return err
		}
		loc, err := env.cfg.Duty.Location()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), app.FormatAudit(entries, loc))
		return nil
	},
}

func optionalDate(args []string) (time.Time, error) {
	if len(args) == 0 {
		return time.Time{}, nil
	}
	return duty.ParseDate(args[0])
}

func flagDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return duty.ParseDate(v)
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func init() {
	seedCmd.Flags().StringVar(&seedDate, "date", "", "date YYYY-MM-DD (default today)")
	unseedCmd.Flags().StringVar(&unseedDate, "date", "", "date YYYY-MM-DD (default today)")
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "confirm the reset")
	exportICSCmd.Flags().IntVar(&icsDays, "days", 30, "number of calendar days to export")
	exportICSCmd.Flags().StringVar(&icsFrom, "from", "", "first date YYYY-MM-DD (default today)")
	exportICSCmd.Flags().StringVarP(&icsOut, "out", "o", "", "output file (default stdout)")
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "number of entries")

	clockCmd.AddCommand(clockResetCmd)
	rosterCmd.AddCommand(rosterImportCmd)
	scheduleCmd.AddCommand(scheduleImportCmd)
	debtorsCmd.AddCommand(debtorsLsCmd, debtorsAddCmd, debtorsRmCmd)

	rootCmd.AddCommand(
		showCmd, postCmd, nextCmd, prevCmd, clockCmd, shiftCmd,
		seedCmd, unseedCmd, rosterCmd, scheduleCmd, debtorsCmd,
		sayCmd, resetCmd, exportICSCmd, auditCmd,
	)
}
