// Command ynot runs the assistant in a terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ynot/internal/bootstrap"
	"ynot/internal/server"
	"ynot/internal/transcript"
	"ynot/internal/usecase"
)

var version = "dev"

var (
	cfgPath  string
	logLevel string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ynot",
		Short:         "Ynot AI voice command assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				_ = os.Setenv("YNOT_LOG_LEVEL", logLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.config/ynot/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.AddCommand(listenCmd(), askCmd(), intentsCmd(), &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "ynot", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func build(listeners ...transcript.Listener) (*bootstrap.Services, error) {
	return bootstrap.Build(bootstrap.Options{
		ConfigPath:   cfgPath,
		Version:      version,
		Opener:       browserOpener{},
		LogListeners: listeners,
	})
}

func listenCmd() *cobra.Command {
	var (
		serveAddr string
		manual    bool
	)
	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Listen for voice commands and read typed ones from stdin",
		Long: `Starts recognition and dispatches every final transcript.

Lines typed on stdin are dispatched as commands. /mic toggles listening,
/quit exits. Closing stdin leaves voice listening running until
interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			services, err := build(transcript.Console(cmd.OutOrStdout()))
			if err != nil {
				return err
			}
			defer closeServices(services)

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error { return services.Dispatcher.Run(ctx) })

			if addr := firstNonEmpty(serveAddr, services.Config.Server.Addr); addr != "" {
				cfg := services.Config.Server
				cfg.Addr = addr
				manager := server.NewManager(services.API().Handler(), cfg, services.Logger)
				if err := manager.Start(); err != nil {
					return err
				}
				g.Go(func() error {
					select {
					case <-ctx.Done():
					case err := <-manager.Errors():
						return err
					}
					shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
					defer cancel()
					return manager.Shutdown(shutdownCtx)
				})
			}

			g.Go(func() error {
				defer cancel()
				return runConsole(ctx, cmd.InOrStdin(), cmd.ErrOrStderr(), services.Controller, services)
			})

			if !manual {
				if err := services.Controller.Start(ctx); err != nil && !errors.Is(err, usecase.ErrRecognitionUnsupported) {
					services.Logger.Warn("auto-start failed", zap.Error(err))
				}
			}

			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serveAddr, "serve", "", "also serve the HTTP control API on this address")
	cmd.Flags().BoolVar(&manual, "manual", false, "do not start listening until /mic")
	return cmd
}

func askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <command...>",
		Short: "Dispatch one typed command and speak the reply",
		Example: `  ynot ask mausam batao
  ynot ask wikipedia alan turing`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			services, err := build()
			if err != nil {
				return err
			}
			defer closeServices(services)

			outcome := services.Submit(ctx, joinArgs(args))
			fmt.Fprintln(cmd.OutOrStdout(), formatOutcome(outcome))
			if err := services.Speech.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

func intentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intents",
		Short: "List intents in priority order",
		RunE: func(cmd *cobra.Command, args []string) error {
			services, err := build()
			if err != nil {
				return err
			}
			defer closeServices(services)

			for i, name := range services.Intents.Names() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, name)
			}
			return nil
		},
	}
}

func closeServices(services *bootstrap.Services) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := services.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
	}
}

type browserOpener struct{}

func (browserOpener) Open(url string) error {
	return browser.OpenURL(url)
}
