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

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/config"
	idb "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/database"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/httpapi"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/logger"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/scheduler"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/telegram"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gopkg.in/telebot.v3"
)

const shutdownTimeout = 20 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfg *config.AppConfig
	root := &cobra.Command{
		Use:           "portal",
		Short:         "Volunteer portal notification engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
				return err
			}
			logger.Init(cfg)
			logger.Log.Infof("Configuration loaded. LogLevel: %s, Environment: %s", cfg.LogLevel, cfg.Environment)
			return nil
		},
	}
	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the scheduler, HTTP API and admin bot",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd.Context(), cfg)
			},
		},
		newRunCmd(func() *config.AppConfig { return cfg }),
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the database schema",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return migrate(cmd.Context(), cfg)
			},
		},
	)
	return root
}

func newRunCmd(cfg func() *config.AppConfig) *cobra.Command {
	var mode string
	var asJSON bool
	cmd := &cobra.Command{
		Use:       "run <workflow>",
		Short:     "Run one workflow now, ignoring its schedule and enabled flag",
		Args:      cobra.ExactArgs(1),
		ValidArgs: workflowNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := build(ctx, cfg())
			if err != nil {
				logger.Log.Errorf("Setup failed: %v", err)
				return err
			}
			defer c.Close()

			run, err := c.runner.RunWorkflow(ctx, notification.WorkflowID(args[0]), app.RunOptions{
				Trigger: notification.TriggerManual,
				Mode:    app.Mode(mode),
				Force:   true,
			})
			if run == nil {
				return err
			}
			if asJSON {
				out, jerr := json.MarshalIndent(run, "", "  ")
				if jerr != nil {
					return jerr
				}
				fmt.Println(string(out))
			} else {
				fmt.Println(app.FormatRun(run, run.FinishedAt.Sub(run.StartedAt)))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "run mode (three_hour for the three-hour SMS track)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run record as JSON")
	return cmd
}

func workflowNames() []string {
	out := make([]string, 0, len(notification.AllWorkflows))
	for _, id := range notification.AllWorkflows {
		out = append(out, string(id))
	}
	return out
}

func migrate(ctx context.Context, cfg *config.AppConfig) error {
	log := logger.Component("migrate")
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Errorf("Could not connect to database: %v", err)
		return err
	}
	defer db.Close()
	if err := idb.Migrate(ctx, db); err != nil {
		log.Errorf("Migration failed: %v", err)
		return err
	}
	log.Info("Schema applied.")
	return nil
}

func serve(parent context.Context, cfg *config.AppConfig) error {
	log := logger.Component("main")
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := build(ctx, cfg)
	if err != nil {
		log.Errorf("Setup failed: %v", err)
		return err
	}
	defer c.Close()

	if err := idb.Migrate(ctx, c.db); err != nil {
		log.Errorf("Migration failed: %v", err)
		return err
	}

	var bot *telebot.Bot
	if cfg.TelegramConfigured() {
		bot, err = newBot(ctx, cfg, c)
		if err != nil {
			log.Errorf("Could not create Telegram bot: %v", err)
			return err
		}
		log.Info("Admin bot handlers registered.")
	} else {
		log.Warn("Telegram is not configured; admin bot and run alerts are off.")
	}

	loc, _ := time.LoadLocation(cfg.Timezone)
	sched := scheduler.NewWorkflowScheduler(c.runner, loc, scheduler.Specs{
		Daily:          cfg.CronSpecDaily,
		Scheduled:      cfg.CronSpecScheduled,
		ThreeHour:      cfg.CronSpecThreeHour,
		TenMinute:      cfg.CronSpecTenMinute,
		SMOEnforcement: cfg.CronSpecSMOEnforcement,
	}, cfg.StartupCatchupDelay, logger.Component("scheduler"))
	if err := sched.Start(); err != nil {
		log.Errorf("Could not start scheduler: %v", err)
		return err
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(
			httpapi.Config{CronSecret: cfg.CronSecret, AdminAPIKey: cfg.AdminAPIKey},
			httpapi.Deps{
				Runner:  c.runner,
				Admin:   c.admin,
				SMO:     c.smo,
				Metrics: c.metrics.Handler(),
				Logger:  logger.Component("http"),
			},
		),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		log.Infof("HTTP API listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()
	if bot != nil {
		go bot.Start()
	}

	log.Info("Application setup complete. Scheduler, HTTP API and bot are running.")
	select {
	case <-ctx.Done():
	case err = <-srvErr:
		if err != nil {
			log.Errorf("HTTP server failed: %v", err)
		}
	}

	log.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		log.Warnf("HTTP shutdown: %v", serr)
	}
	if bot != nil {
		bot.Stop()
	}
	sched.Stop()
	log.Info("Application shut down gracefully.")
	return err
}

func newBot(ctx context.Context, cfg *config.AppConfig, c *components) (*telebot.Bot, error) {
	botLog := logger.Component("telebot")
	bot, err := telebot.NewBot(telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, tc telebot.Context) {
			entry := botLog.WithError(err)
			if tc != nil && tc.Sender() != nil {
				entry = entry.WithField("sender_id", tc.Sender().ID)
			}
			entry.Error("Telebot error")
		},
	})
	if err != nil {
		return nil, err
	}

	handlers := telegram.NewAdminHandlers(ctx, c.admin, c.runner, logger.Component("telegram"))
	telegram.RegisterBotCommands(bot, handlers)
	telegram.RegisterAdminHandlers(bot, handlers)
	telegram.RegisterRunActionHandlers(bot, handlers)

	c.runner.AddObserver(app.NewRunAlerter(telegram.NewTelebotAdapter(bot, cfg.AdminTelegramID), logger.Component("alerts")))
	return bot, nil
}
