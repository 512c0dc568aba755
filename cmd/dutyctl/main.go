// Command dutyctl inspects and edits the duty state from a shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"dutybot/internal/app"
	"dutybot/internal/config"
	"dutybot/internal/storage"
	logx "dutybot/pkg/logx"
)

var (
	cfgPath string
	verbose bool
	timeout time.Duration

	env *cliEnv
)

// cliEnv is what every subcommand works on; built in PersistentPreRunE.
type cliEnv struct {
	cfg   *config.Config
	log   logx.Logger
	store storage.Store
	duty  *app.Duty
}

var rootCmd = &cobra.Command{
	Use:           "dutyctl",
	Short:         "Inspect and edit the duty roster state",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := cmdContext(cmd)
		defer cancel()
		e, err := openEnv(ctx, cfgPath, verbose)
		if err != nil {
			return err
		}
		env = e
		return nil
	},
}

// openEnv opens the store and pins a missing anchor, so read-only commands
// on a fresh store agree from one day to the next.
func openEnv(ctx context.Context, path string, verbose bool) (*cliEnv, error) {
	cfg, err := config.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	log := logx.NewConsole(level)
	d, store, err := app.OpenDuty(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := d.EnsureAnchor(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load state: %w", err)
	}
	return &cliEnv{cfg: cfg, log: log, store: store, duty: d}, nil
}

func cmdContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func actor() app.Actor {
	a := app.Actor{Source: "cli"}
	if u := os.Getenv("USER"); u != "" {
		a.Username = u
	}
	return a
}

// posted prints the outcome of an operation that publishes. A missing
// Telegram configuration is not fatal: the state change already happened.
func posted(cmd *cobra.Command, err error) error {
	if errors.Is(err, app.ErrNoPublisher) {
		fmt.Fprintln(cmd.ErrOrStderr(), "note: telegram is not configured; state saved, nothing posted")
		return nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config (yaml or json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", time.Minute, "operation timeout")
}

// run executes one command line and closes the store afterwards.
func run(args []string, out io.Writer) error {
	rootCmd.SetArgs(negativesAsArgs(args))
	rootCmd.SetOut(out)
	err := rootCmd.Execute()
	if env != nil {
		if cerr := env.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
		env = nil
	}
	return err
}

// negativesAsArgs inserts "--" before the first bare negative integer
// ("shift -3") so pflag does not read it as a shorthand flag. A number right
// after a flag is left alone as that flag's value.
func negativesAsArgs(args []string) []string {
	for i, a := range args {
		if a == "--" {
			return args
		}
		if len(a) < 2 || a[0] != '-' {
			continue
		}
		if _, err := strconv.Atoi(a); err != nil {
			continue
		}
		if i > 0 && strings.HasPrefix(args[i-1], "-") && !strings.Contains(args[i-1], "=") {
			continue
		}
		out := make([]string, 0, len(args)+1)
		out = append(out, args[:i]...)
		out = append(out, "--")
		return append(out, args[i:]...)
	}
	return args
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}
