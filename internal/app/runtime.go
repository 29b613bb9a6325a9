// Package app wires configuration into the running service.
package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mghunch/dot-traffic/internal/airtable"
	"github.com/mghunch/dot-traffic/internal/brain"
	"github.com/mghunch/dot-traffic/internal/config"
	"github.com/mghunch/dot-traffic/internal/connect"
	imapconn "github.com/mghunch/dot-traffic/internal/connectors/imap"
	"github.com/mghunch/dot-traffic/internal/httpapi"
	"github.com/mghunch/dot-traffic/internal/hub"
	"github.com/mghunch/dot-traffic/internal/janitor"
	"github.com/mghunch/dot-traffic/internal/jobnum"
	"github.com/mghunch/dot-traffic/internal/llm/anthropic"
	"github.com/mghunch/dot-traffic/internal/prompt"
	"github.com/mghunch/dot-traffic/internal/router"
	"github.com/mghunch/dot-traffic/internal/session"
)

const Version = "0.1.0"

// Runtime owns every long-lived component.
type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	janitor    *janitor.Service
	imap       *imapconn.Connector
	prompts    *prompt.Store
	sessions   session.Store
}

func New(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}

	store := airtable.NewClient(cfg.AirtableBaseURL, cfg.AirtableBaseID, cfg.AirtableAPIKey,
		time.Duration(cfg.AirtableTimeoutSec)*time.Second, logger)
	traffic := airtable.NewTraffic(store, cfg.TrafficTable)
	projects := airtable.NewProjects(store, cfg.ProjectsTable)
	clients := airtable.NewClients(store, cfg.ClientsTable)
	updates := airtable.NewUpdates(store, cfg.UpdatesTable)
	meetings := airtable.NewMeetings(store, cfg.MeetingsTable)

	prompts := prompt.NewStore(cfg.TrafficPromptFile, cfg.HubPromptFile, logger)

	caller := anthropic.New(anthropic.Config{
		APIKey:  cfg.AnthropicAPIKey,
		BaseURL: cfg.AnthropicBaseURL,
		Model:   cfg.AnthropicModel,
		Timeout: time.Duration(cfg.AnthropicTimeoutSec) * time.Second,
	}, logger)
	registry := brain.StandardRegistry(brain.Lookups{Projects: projects, Clients: clients, Meetings: meetings})
	engine := brain.NewEngine(caller, registry, cfg.MaxToolRounds, logger)

	routes := connect.DefaultRegistry()
	dispatcher := connect.NewDispatcher(routes, time.Duration(cfg.WorkerTimeoutSec)*time.Second, logger)
	mailer := connect.NewMailer(cfg.PostmanURL, time.Duration(cfg.MailTimeoutSec)*time.Second, logger)
	templates := connect.NewTemplates(cfg.HubURL, cfg.LogoURL)
	notifier := connect.NewNotifier(mailer, templates, logger)

	trafficRouter := router.New(router.Config{
		Traffic:       traffic,
		Projects:      projects,
		Clients:       clients,
		Engine:        engine,
		Registry:      routes,
		Dispatcher:    dispatcher,
		Notifier:      notifier,
		Prompts:       prompts,
		Extractor:     jobnum.NewExtractor(cfg.ClientCodes()),
		Updates:       airtable.UpdateRecorder{Projects: projects, Updates: updates},
		SelfSender:    cfg.SelfSenderEmail,
		AllowedDomain: cfg.AllowedDomain,
		Logger:        logger,
	})

	sessionOpts := session.Options{
		Timeout:  time.Duration(cfg.SessionTimeoutSec) * time.Second,
		MaxTurns: cfg.SessionMaxTurns,
	}
	var sessions session.Store
	var pruner janitor.SessionPruner
	switch cfg.SessionBackend {
	case "sqlite":
		sqliteStore, err := session.NewSQLiteStore(cfg.SessionDBPath, sessionOpts)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
		sessions = sqliteStore
		pruner = sqliteStore
	default:
		sessions = session.NewMemoryStore(sessionOpts)
	}

	hubService := hub.NewService(engine, prompts, sessions, logger)

	handler := httpapi.NewRouter(httpapi.Dependencies{
		Router:  trafficRouter,
		Hub:     hubService,
		Logger:  logger,
		Version: Version,
	})

	return &Runtime{
		cfg:    cfg,
		logger: logger,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		janitor: janitor.New(traffic, pruner,
			time.Duration(cfg.PendingTTLDays)*24*time.Hour, cfg.JanitorSchedule, logger),
		imap: imapconn.New(imapconn.Config{
			Host:          cfg.IMAPHost,
			Port:          cfg.IMAPPort,
			Username:      cfg.IMAPUsername,
			Password:      cfg.IMAPPassword,
			Mailbox:       cfg.IMAPMailbox,
			PollSeconds:   cfg.IMAPPollSeconds,
			TLSSkipVerify: cfg.IMAPTLSSkipVerify,
		}, trafficRouter, logger),
		prompts:  prompts,
		sessions: sessions,
	}, nil
}

func (r *Runtime) Close() error {
	if r.sessions == nil {
		return nil
	}
	return r.sessions.Close()
}
