package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/app"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/cadence"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/domain/notification"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/config"
	idb "github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/database"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/email"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/logger"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/metrics"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/redisledger"
	"github.com/TEAMHMC/hmc-volunteer-portal-sub000/internal/infra/sms"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// components holds everything the commands share.
type components struct {
	cfg      *config.AppConfig
	db       *sql.DB
	redis    *redis.Client
	calendar *cadence.Calendar
	runs     *idb.PostgresNotificationRepository
	admin    *app.AdminService
	smo      *app.SMOService
	runner   *app.Runner
	metrics  *metrics.Metrics
	log      *logrus.Entry
}

func (c *components) Close() {
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			c.log.Warnf("Failed to close redis client: %v", err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			c.log.Warnf("Failed to close database: %v", err)
		}
	}
}

func build(ctx context.Context, cfg *config.AppConfig) (*components, error) {
	log := logger.Component("main")
	c := &components{cfg: cfg, log: log}

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}
	c.db = db
	log.Info("Database connection established successfully.")

	c.calendar, err = cadence.NewCalendar(cfg.Timezone, time.Now)
	if err != nil {
		c.Close()
		return nil, err
	}

	volunteers := idb.NewPostgresVolunteerRepository(db)
	opportunities := idb.NewPostgresOpportunityRepository(db)
	cycles := idb.NewPostgresSMORepository(db)
	c.runs = idb.NewPostgresNotificationRepository(db)
	flags := idb.NewPostgresWorkflowConfigRepository(db)

	var ledger notification.Ledger = c.runs
	if cfg.LedgerBackend == config.LedgerRedis {
		c.redis, err = redisledger.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			c.Close()
			return nil, err
		}
		ledger = redisledger.New(c.redis)
		log.Infof("Using redis dedup ledger at %s", cfg.RedisAddr)
	}

	var emailSender notification.EmailSender
	if cfg.EmailConfigured() {
		emailSender = email.NewSender(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.EmailFrom,
		})
	} else {
		log.Warn("SMTP is not configured; email sends will be skipped.")
	}
	var smsSender notification.SMSSender
	if cfg.SMSConfigured() {
		smsSender = sms.NewSender(sms.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			From:       cfg.TwilioFromNumber,
		}, logger.Component("sms"))
	} else {
		log.Warn("Twilio is not configured; SMS sends will be skipped.")
	}

	templates, err := app.NewTemplates(cfg.PortalBaseURL)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("could not parse templates: %w", err)
	}

	c.metrics = metrics.New()
	deps := app.Deps{
		Volunteers:    volunteers,
		Opportunities: opportunities,
		Cycles:        cycles,
		Ledger:        ledger,
		Sender:        app.NewDispatcher(emailSender, smsSender, cfg.DispatchTimeout, logger.Component("dispatch")),
		Templates:     templates,
		Calendar:      c.calendar,
		Observer:      c.metrics,
		BaseURL:       cfg.PortalBaseURL,
		Logger:        logger.Component("workflow"),
	}

	c.admin = app.NewAdminService(c.runs, flags, cfg.AdminTelegramID, logger.Component("admin"))
	c.smo = app.NewSMOService(cycles, volunteers, c.calendar, logger.Component("smo"))
	c.runner = app.NewRunner(c.runs, c.admin, c.calendar, logger.Component("runner"),
		app.NewShiftReminder(deps),
		app.NewThankYou(deps),
		app.NewNewOpportunity(deps),
		app.NewBirthday(deps),
		app.NewCompliance(deps),
		app.NewEventCadence(deps),
		app.NewSMOCycle(deps),
		app.NewDebrief(deps),
	)
	c.runner.AddObserver(c.metrics)

	return c, nil
}
