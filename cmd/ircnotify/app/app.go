/*
Copyright 2026 Ardika Saputro.
Licensed under the Apache License, Version 2.0.
*/

// Package app wires the ircnotify command line: run the daemon, validate or
// export configuration, print the version.
package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ardikabs/ircnotify/internal/api"
	"github.com/ardikabs/ircnotify/internal/config"
	"github.com/ardikabs/ircnotify/internal/orchestrator"
	"github.com/ardikabs/ircnotify/internal/version"
	"github.com/ardikabs/ircnotify/pkg/envutil"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitConfig     = 1
	ExitIO         = 2
	ExitValidation = 3
	ExitRuntime    = 4
)

type options struct {
	configPath string
	debug      bool
}

// Run executes the root command and maps errors to exit codes.
func Run() int {
	opts := &options{}

	root := &cobra.Command{
		Use:           "ircnotify",
		Short:         "Watch IRC client logs and dispatch matching events to notification sinks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c",
		envutil.GetString("IRCNOTIFY_CONFIG", "config/config.json"),
		"Path to the root config file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug",
		envutil.GetBool("IRCNOTIFY_DEBUG", false),
		"Enable debug logging")

	root.AddCommand(newRunCommand(opts))
	root.AddCommand(newValidateCommand(opts))
	root.AddCommand(newExportCommand(opts))
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCode(err)
	}
	return ExitOK
}

func exitCode(err error) int {
	var verr *config.ValidationError
	var eerr *config.EnvError
	switch {
	case errors.As(err, &verr):
		return ExitValidation
	case errors.As(err, &eerr):
		return ExitConfig
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return ExitIO
	default:
		return ExitRuntime
	}
}

func newLogger(debug bool) (logr.Logger, error) {
	var zl *zap.Logger
	var err error
	if debug {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return logr.Logger{}, err
	}
	return zapr.NewLogger(zl), nil
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the watcher pipeline and the control plane",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger(opts.debug)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store := config.NewStore(opts.configPath, log)
			orch := orchestrator.New(store, log)
			if err := orch.Initialize(ctx); err != nil {
				return err
			}
			if err := orch.Start(ctx); err != nil {
				return err
			}
			defer orch.Stop()

			reg := store.Registry()
			if reg.Root.API != nil && reg.Root.API.Enabled {
				srv, err := api.NewServer(api.Options{
					Orchestrator: orch,
					Settings:     reg.Root.API,
					Log:          log,
				})
				if err != nil {
					return err
				}
				go func() {
					if err := srv.Start(ctx); err != nil {
						log.Error(err, "control plane failed")
					}
				}()
			}

			<-ctx.Done()
			log.Info("shutting down")
			return nil
		},
	}
}

func newValidateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := config.NewStore(opts.configPath, logr.Discard())
			reg, err := store.Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"configuration OK: %d clients, %d servers, %d events, %d sinks\n",
				len(reg.Clients), len(reg.Servers), len(reg.Events), len(reg.Sinks))
			return nil
		},
	}
}

func newExportCommand(opts *options) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the configuration tree as a gzip bundle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store := config.NewStore(opts.configPath, logr.Discard())
			if _, err := store.Load(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			return store.ExportBundle(out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the bundle to a file instead of stdout")
	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ircnotify", version.GetVersion())
		},
	}
}
