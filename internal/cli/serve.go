package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vendazap/vendazap/internal/actions"
	"github.com/vendazap/vendazap/internal/config"
	"github.com/vendazap/vendazap/internal/contacts"
	"github.com/vendazap/vendazap/internal/gateway"
	"github.com/vendazap/vendazap/internal/gating"
	"github.com/vendazap/vendazap/internal/logging"
	"github.com/vendazap/vendazap/internal/nlu"
	"github.com/vendazap/vendazap/internal/outbound"
	"github.com/vendazap/vendazap/internal/reply"
	"github.com/vendazap/vendazap/internal/session"
	"github.com/vendazap/vendazap/internal/store"
	"github.com/vendazap/vendazap/internal/transport"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engagement core and admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Local .env files are a convenience for development; a
			// missing file is not an error.
			_ = godotenv.Load()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}

			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			if logLevel == "" {
				var w io.Writer
				if cfg.Logging.ConsoleStyle == "json" {
					w = os.Stderr
				}
				log = logging.New(w, cfg.Logging.Level)
			}

			if err := paths.EnsureDirs(); err != nil {
				return fmt.Errorf("creating data directories: %w", err)
			}

			dbPath := paths.DatabasePath(cfg.Database)
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()
			log.Info().Str("path", dbPath).Msg("database open")

			contactStore := store.NewContactStore(db)
			messageStore := store.NewMessageStore(db)
			settingsStore := store.NewSettingsStore(db)
			productStore := store.NewProductStore(db)
			followupStore := store.NewFollowupStore(db)

			if cfg.Bridge.URL == "" {
				return fmt.Errorf("bridge.url is required to reach the chat network")
			}
			dialer := &transport.BridgeDialer{
				URL:         cfg.Bridge.URL,
				Token:       cfg.Bridge.Token,
				EventBuffer: cfg.Bridge.EventBuffer,
				Log:         log,
			}

			mgr := session.NewManager(session.Config{
				PairingWait: time.Duration(cfg.Session.PairingWaitSeconds) * time.Second,
			}, dialer, settingsStore, log)

			dispatcher := outbound.NewDispatcher(mgr, messageStore, log)
			scheduler := actions.NewScheduler(followupStore, contactStore, dispatcher, log, nil)
			executor := actions.NewExecutor(contactStore, dispatcher, scheduler, log)

			if cfg.NLU.APIKey == "" {
				log.Warn().Msg("nlu.apiKey is empty — replies will fall back to canned responses")
			}
			nluClient := nlu.NewOpenAIClient(cfg.NLU.APIKey, cfg.NLU.BaseURL, cfg.NLU.Model, log)

			orch := reply.NewOrchestrator(reply.Config{
				WindowSize: cfg.Reply.WindowSize,
				NLUTimeout: time.Duration(cfg.NLU.TimeoutSeconds) * time.Second,
				Fallbacks:  cfg.Reply.Fallbacks,
			}, reply.Deps{
				Resolver:   contacts.NewResolver(contactStore, log),
				Settings:   settingsStore,
				Products:   productStore,
				Messages:   messageStore,
				Gate:       gating.New(nil),
				NLU:        nluClient,
				Dispatcher: dispatcher,
				Actions:    executor,
			}, log)

			mgr.Bind(orch, dispatcher)

			if err := scheduler.Start(); err != nil {
				return fmt.Errorf("rescheduling pending followups: %w", err)
			}
			defer scheduler.Stop()
			defer mgr.Shutdown()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := gateway.New(cfg.Gateway, gateway.Deps{
				Sessions:   mgr,
				Settings:   settingsStore,
				Contacts:   contactStore,
				Messages:   messageStore,
				Products:   productStore,
				Dispatcher: dispatcher,
			}, log)

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override admin API port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")

	return cmd
}
