package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fabfab/psy-assistant/chat"
	"github.com/fabfab/psy-assistant/config"
	"github.com/fabfab/psy-assistant/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	var cfg config.Config

	root := &cobra.Command{
		Use:           "psy-assistant",
		Short:         "Psychiatric assistant chat front-end and reference backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			setupLogging(cfg.LogLevel)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a yaml or json config file")

	root.AddCommand(
		newServeCmd(&cfg),
		newAskCmd(&cfg),
		newBackendCmd(&cfg),
		newIngestCmd(&cfg),
		newClearCmd(&cfg),
	)
	return root
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat page and the /api/chatPsy proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.Server.Address
			}

			ctx, cancel := signalContext()
			defer cancel()

			srv := web.NewServer(web.Options{
				ProxyTarget:    cfg.Server.ProxyTarget,
				BackendURL:     cfg.Server.BackendURL,
				BackendTimeout: cfg.Server.BackendTimeout,
				Logger:         slog.Default(),
			})
			return srv.Start(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return cmd
}

func newAskCmd(cfg *config.Config) *cobra.Command {
	var question string
	cmd := &cobra.Command{
		Use:   "ask",
		Short: "Ask the backend one question and print the structured answer",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(question) == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Décrivez vos symptômes : ")
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					question = scanner.Text()
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("read question: %w", err)
				}
			}
			if strings.TrimSpace(question) == "" {
				return fmt.Errorf("question is required")
			}

			ctx, cancel := signalContext()
			defer cancel()

			client := web.NewBackendClient(cfg.Server.BackendURL, cfg.Server.BackendTimeout, nil)
			orchestrator := web.NewOrchestrator(client, nil)
			if _, err := orchestrator.Submit(ctx, question); err != nil {
				return fmt.Errorf("ask backend: %w", err)
			}

			printAnswer(cmd.OutOrStdout(), orchestrator.State().Answer)
			return nil
		},
	}
	cmd.Flags().StringVar(&question, "question", "", "question to ask (read from stdin when empty)")
	return cmd
}

func printAnswer(w io.Writer, answer *chat.Answer) {
	if answer == nil {
		return
	}
	sections := answer.Sections()
	for _, zone := range []struct{ title, body string }{
		{"Évaluation", sections.Evaluation},
		{"Hypothèse Diagnostique", sections.Diagnosis},
		{"Recommandations", sections.Recommendations},
		{"Avertissement", sections.Disclaimer},
	} {
		fmt.Fprintf(w, "## %s\n%s\n\n", zone.title, strings.TrimSpace(zone.body))
	}

	fmt.Fprintln(w, "Sources utilisées :")
	for _, source := range chat.DedupeSources(answer.Sources) {
		fmt.Fprintf(w, "• %s\n", source.Label())
	}
}
