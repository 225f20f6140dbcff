package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "uptimed",
		Short:         "Uptime monitor: probes registered checks and alerts owners by SMS",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to a config file (yaml, json or toml)")

	root.AddCommand(
		newServeCmd(&cfgPath),
		newRunOnceCmd(&cfgPath),
		newRotateCmd(&cfgPath),
	)
	return root
}

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and both scheduled cycles",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.scheduler()
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil {
				return err
			}
			defer sched.Stop()

			srv := &http.Server{
				Addr:              a.cfg.API.Addr,
				Handler:           a.server().Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				a.logger.Info("api_listen", zap.String("addr", srv.Addr))
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				a.logger.Info("shutdown_requested")
			}
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		},
	}
}

func newRunOnceCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Run a single probe cycle and wait for it to finish",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			id := uuid.NewString()
			if err := a.rechecker.RunCycle(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "probe cycle %s done\n", id)
			return nil
		},
	}
}

func newRotateCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Archive and truncate every active check log",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			id := uuid.NewString()
			if err := a.rotator.RunCycle(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rotation cycle %s done\n", id)
			return nil
		},
	}
}
