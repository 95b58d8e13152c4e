package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/visitsched/internal/aptner"
	"github.com/example/visitsched/internal/booking"
	"github.com/example/visitsched/internal/config"
	xlog "github.com/example/visitsched/internal/log"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

type rootFlags struct {
	envFile   string
	logLevel  string
	logFormat string
}

// app is filled by the root command before any subcommand runs.
type app struct {
	flags rootFlags
	cfg   config.Config
}

func (a *app) aptnerClient() *aptner.Client {
	return aptner.New(aptner.Options{
		BaseURL:           a.cfg.AptnerBaseURL,
		Timeout:           a.cfg.AptnerTimeout,
		RequestsPerSecond: a.cfg.AptnerRate,
	})
}

func (a *app) orchestrator(opts ...booking.Option) *booking.Orchestrator {
	c := a.aptnerClient()
	return booking.New(c, c, opts...)
}

func (a *app) credentials() (aptner.Credentials, error) {
	if err := a.cfg.RequireAptner(); err != nil {
		return aptner.Credentials{}, err
	}
	return aptner.Credentials{ID: a.cfg.AptnerID, Password: a.cfg.AptnerPassword}, nil
}

func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "visitsched",
		Short:         "Bulk visitor-parking reservations for Aptner apartment residents",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.flags.envFile)
			if err != nil {
				return err
			}
			if a.flags.logLevel != "" {
				cfg.LogLevel = a.flags.logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = a.flags.logFormat
			}
			xlog.Configure(xlog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
			a.cfg = cfg
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.envFile, "env-file", ".env", "dotenv file with APTNER_ID / APTNER_PW and other settings")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")
	pf.StringVar(&a.flags.logFormat, "log-format", "console", "log format (console or json)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newReserveCmd(a))
	root.AddCommand(newPreviewCmd(a))
	root.AddCommand(newReservationsCmd(a))
	root.AddCommand(newHistoryCmd(a))
	root.AddCommand(newServerCmd(a))
	root.AddCommand(newUserCmd(a))
	root.AddCommand(newPlanCmd(a))

	return root
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		cancel()
		os.Exit(1)
	}
}

func seoul() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}
