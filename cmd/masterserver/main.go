package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/TheGojiOG/masterserver/internal/config"
	"github.com/TheGojiOG/masterserver/internal/console"
	"github.com/TheGojiOG/masterserver/internal/logging"
	"github.com/TheGojiOG/masterserver/internal/masterserver"
	"github.com/TheGojiOG/masterserver/internal/server"
)

func main() {
	if err := newRootCommand(run).Execute(); err != nil {
		os.Exit(1)
	}
}

// runFunc starts the supervisor from parsed options
type runFunc func(ctx context.Context, cmd *cobra.Command, opts *config.Options) error

func newRootCommand(runner runFunc) *cobra.Command {
	opts := &config.Options{}

	cmd := &cobra.Command{
		Use:           "masterserver",
		Short:         "Run and supervise a matchmaking master server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(c *cobra.Command, args []string) error {
			if err := cobra.NoArgs(c, args); err != nil {
				fmt.Fprintln(c.ErrOrStderr(), err)
				c.Usage()
				return fmt.Errorf("%w: %v", config.ErrAbort, err)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runner(cmd.Context(), cmd, opts)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				if errors.Is(err, config.ErrAbort) {
					cmd.Usage()
				}
			}
			return err
		},
	}

	cmd.Flags().AddFlagSet(config.NewFlagSet(opts))
	// -h belongs to --host, so help gets no shorthand
	cmd.Flags().Bool("help", false, "help for masterserver")
	cmd.Flags().SortFlags = false
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		fmt.Fprintln(c.ErrOrStderr(), err)
		c.Usage()
		return fmt.Errorf("%w: %v", config.ErrAbort, err)
	})

	return cmd
}

func run(ctx context.Context, cmd *cobra.Command, opts *config.Options) error {
	settings, err := config.LoadSettings(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	if _, err := logging.Init(settings.Logging, os.Stderr); err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logging.Close()
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = logging.Writer(slog.LevelDebug)
	gin.DefaultErrorWriter = logging.Writer(slog.LevelError)

	stdin := console.NewReader(os.Stdin)
	out := cmd.OutOrStdout()

	cfg, err := config.NewResolver(stdin, out).Resolve(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := server.NewSupervisor(cfg, masterserver.NewFactory(settings.Service), out)
	if err := sup.Start(); err != nil {
		if cfg.Daemon {
			return err
		}
		// interactive operators can retry with restart
		logging.L().Warn("initial start failed", "error", err, "addr", cfg.Address())
	}

	return sup.Serve(ctx, stdin)
}
