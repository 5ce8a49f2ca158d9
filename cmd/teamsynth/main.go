package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httpapi "github.com/Ntarekp/teamSynth/internal/api/http"
	"github.com/Ntarekp/teamSynth/internal/application/agents"
	"github.com/Ntarekp/teamSynth/internal/application/scheduler"
	"github.com/Ntarekp/teamSynth/internal/config"
	"github.com/Ntarekp/teamSynth/internal/domain/execution"
	"github.com/Ntarekp/teamSynth/internal/domain/knowledge"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "teamsynth",
		Short:         "Agent workflow orchestration server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), runCmd(), planCmd(), ingestCmd(), hashTokenCmd())
	return root
}

// withApp loads configuration, wires the service graph and hands it to fn.
// Logs go to stderr so command output on stdout stays machine readable.
func withApp(ctx context.Context, fn func(a *app) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg, cfg.NewLogger(os.Stderr))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(a *app) error { return serve(ctx, a) })
		},
	}
}

func serve(ctx context.Context, a *app) error {
	if a.cfg.SchedulerEnabled {
		descs, err := agents.DefaultCatalog()
		if err != nil {
			return err
		}
		sched, err := scheduler.New(a.runner, descs, a.logger)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	// WriteTimeout stays zero: the execution stream is long-lived and the
	// router applies its own per-request timeout elsewhere.
	srv := &http.Server{
		Addr:              a.cfg.ServerAddr,
		Handler:           a.server().Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", srv.Addr).Msg("http server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down")
	a.hub.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runCmd() *cobra.Command {
	var task, rawContext string
	cmd := &cobra.Command{
		Use:   "run <agentType>",
		Short: "Execute one agent and print the execution record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := agents.Request{Task: task, User: "cli"}
			if rawContext != "" {
				if err := json.Unmarshal([]byte(rawContext), &req.Context); err != nil {
					return fmt.Errorf("--context: %w", err)
				}
			}
			return withApp(cmd.Context(), func(a *app) error {
				rec, err := a.runner.Run(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				return printJSON(cmd, rec)
			})
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "task description handed to the agent")
	cmd.Flags().StringVar(&rawContext, "context", "", "agent context as a JSON object")
	return cmd
}

func planCmd() *cobra.Command {
	var task, rawParams string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan and execute a free-form task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if task == "" {
				return errors.New("--task is required")
			}
			t := execution.Task{Description: task}
			if rawParams != "" {
				if err := json.Unmarshal([]byte(rawParams), &t.Parameters); err != nil {
					return fmt.Errorf("--params: %w", err)
				}
			}
			return withApp(cmd.Context(), func(a *app) error {
				return printJSON(cmd, a.orchestrator.Run(cmd.Context(), t))
			})
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "natural-language task")
	cmd.Flags().StringVar(&rawParams, "params", "", "task parameters as a JSON object")
	return cmd
}

func ingestCmd() *cobra.Command {
	var sourceType, sourceID string
	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Chunk a text file into the knowledge store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if sourceID == "" {
				sourceID = args[0]
			}
			return withApp(cmd.Context(), func(a *app) error {
				if a.knowledge == nil {
					return errors.New("knowledge store is not configured, set CHROMA_URL")
				}
				n, err := a.knowledge.Ingest(cmd.Context(), string(data), knowledge.Metadata{
					SourceType: sourceType,
					SourceID:   sourceID,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks from %s\n", n, args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&sourceType, "source-type", knowledge.SourceDocument, "metadata source type")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "metadata source id (defaults to the file path)")
	return cmd
}

func hashTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-token <token>",
		Short: "Print the bcrypt hash to use as AUTH_TOKEN_HASH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := httpapi.HashToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
