package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/glunkad/caresimplfyservice/internal/agent"
	"github.com/glunkad/caresimplfyservice/internal/config"
	"github.com/glunkad/caresimplfyservice/internal/document"
	"github.com/glunkad/caresimplfyservice/internal/gateway"
	"github.com/glunkad/caresimplfyservice/internal/llm"
	"github.com/glunkad/caresimplfyservice/internal/session"
	"github.com/glunkad/caresimplfyservice/internal/store"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Care Simplify server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Server.Port = port
			}
			if bind != "" {
				cfg.Server.Bind = bind
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			log = log.Sub("serve")

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if err := document.CheckAvailable(); err != nil {
				log.Error().Msg(document.InstallInstructions())
				return err
			}

			registry := llm.NewRegistryFromConfig(cfg.LLM, log)
			if len(registry.List()) == 0 {
				return fmt.Errorf("no LLM provider configured; set llm.apiKey or switch to ollama")
			}

			// Session store (SQLite or in-memory)
			ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
			var sessions session.Store
			if cfg.Session.Store == "sqlite" {
				if err := paths.EnsureDirs(); err != nil {
					return err
				}
				dbPath := filepath.Join(paths.Data, "caresimplify.db")
				db, err := store.Open(dbPath, log)
				if err != nil {
					return fmt.Errorf("opening database: %w", err)
				}
				defer db.Close()
				sessions = store.NewSQLiteSessionStore(db,
					store.WithMaxSessions(cfg.Session.MaxSessions),
					store.WithTTL(ttl),
				)
				log.Info().Str("path", dbPath).Msg("using SQLite session store")
			} else {
				sessions = session.NewMemoryStore(
					session.WithMaxSessions(cfg.Session.MaxSessions),
					session.WithTTL(ttl),
				)
				log.Info().Msg("using in-memory session store")
			}

			runner := agent.NewRunner(
				agent.RunnerConfig{
					Model:             cfg.LLM.Model,
					Fallbacks:         cfg.LLM.Fallbacks,
					MaxTokens:         cfg.LLM.MaxTokens,
					Temperature:       cfg.LLM.Temperature,
					MaxHistoryTurns:   cfg.Session.MaxHistoryTurns,
					RequestsPerMinute: cfg.LLM.RequestsPerMinute,
				},
				registry,
				sessions,
				document.NewPreparer(),
				log,
			)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sweeper := session.NewSweeper(
				sessions,
				ttl,
				time.Duration(cfg.Session.SweepIntervalMinutes)*time.Minute,
				log,
			)
			go sweeper.Run(ctx)

			srv := gateway.New(cfg, runner, log)
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: loopback, lan, custom (overrides config)")

	return cmd
}
