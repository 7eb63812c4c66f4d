package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/input"
	"github.com/microsoft/DeepVideoDiscovery/internal/application/port/output"
	"github.com/microsoft/DeepVideoDiscovery/internal/di"
	"github.com/microsoft/DeepVideoDiscovery/internal/domain/entity"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/env"
	"github.com/microsoft/DeepVideoDiscovery/internal/infrastructure/userinteraction"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "agent",
		Short:         "Answer questions about long videos with an agentic tool loop",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(askCMD(), serveCMD())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func askCMD() *cobra.Command {
	var (
		dbPath        string
		question      string
		maxIterations int
		maxDuration   time.Duration
		timeout       time.Duration
		verbose       bool
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Run one session against a video database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if question == "" {
				fmt.Println("\nВведите вопрос по видео:")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return fmt.Errorf("read question: %w", err)
				}
				question = strings.TrimSpace(line)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cfg := di.ConfigFromEnv(env.NewEnvService())
			var progress output.ProgressPort
			if !asJSON {
				progress = userinteraction.NewConsoleProgress(nil, verbose)
			}
			container, err := di.NewContainer(ctx, cfg, progress)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			defer container.Close()

			store, err := container.OpenStore(dbPath)
			if err != nil {
				return err
			}

			if !asJSON {
				fmt.Println("\nАгент начал работу...")
			}
			result, err := container.Runner.Run(ctx, input.SessionRequest{
				Store:    store,
				Question: question,
				Budget: entity.Budget{
					MaxIterations: maxIterations,
					MaxDuration:   maxDuration,
				},
			})
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			}
			if result.Reason == entity.ReasonFailed {
				return fmt.Errorf("session %s failed", result.SessionID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "path to the video's database.json")
	cmd.Flags().StringVarP(&question, "question", "q", "", "question about the video (read from stdin when empty)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "iteration budget (0 = MAX_ITERATIONS or default)")
	cmd.Flags().DurationVar(&maxDuration, "max-duration", 0, "wall clock budget (0 = MAX_DURATION or default)")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "hard deadline for the whole command")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "print tool outputs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the session result as JSON instead of progress")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func serveCMD() *cobra.Command {
	var (
		addr          string
		dataRoot      string
		maxConcurrent int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP session API",
		RunE: func(cmd *cobra.Command, args []string) error {
			envService := env.NewEnvService()
			if addr == "" {
				addr = envService.GetWithDefault("DVD_HTTP_ADDR", ":8080")
			}
			if dataRoot == "" {
				dataRoot = envService.GetWithDefault("DVD_DATA_ROOT", "video_database")
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			container, err := di.NewContainer(ctx, di.ConfigFromEnv(envService), nil)
			if err != nil {
				return fmt.Errorf("init: %w", err)
			}
			defer container.Close()

			server := &http.Server{
				Addr:              addr,
				Handler:           container.HTTPHandler(dataRoot, maxConcurrent),
				ReadHeaderTimeout: 5 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				container.Logger.Info("HTTP server listening", "addr", addr, "data_root", dataRoot)
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			container.Logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default DVD_HTTP_ADDR or :8080)")
	cmd.Flags().StringVar(&dataRoot, "data-root", "", "directory holding video databases (default DVD_DATA_ROOT or video_database)")
	cmd.Flags().Int64Var(&maxConcurrent, "max-concurrent", 4, "sessions running at once")

	return cmd
}
