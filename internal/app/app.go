// Package app wires configuration into the services shared by the server and worker binaries.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/inbox"
	"github.com/unclebandit/outreach-backend/internal/integrations/openai"
	"github.com/unclebandit/outreach-backend/internal/mailer"
	"github.com/unclebandit/outreach-backend/internal/pkg/distlock"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// App holds every long-lived dependency. Close releases them in reverse order.
type App struct {
	Config *config.Config
	DB     *sql.DB
	Redis  *redis.Client
	Queue  queue.Queue

	Campaigns *repository.CampaignRepository
	Leads     *repository.LeadRepository
	Drafts    *repository.DraftRepository
	Messages  *repository.OutboundMessageRepository

	Gateway      *mailer.Gateway
	Pool         *service.DraftPool
	Orchestrator *service.Orchestrator
	Runner       *service.CampaignRunner
	Campaign     *service.CampaignService
	Poller       *inbox.Poller
}

// Build opens the database, applies the schema and constructs the services.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	conn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.DB = conn
	if err := db.Migrate(ctx, conn); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		a.Redis = redis.NewClient(opts)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("campaign locks use redis")
	} else {
		logger.Info("campaign locks use postgres advisory locks")
	}

	if cfg.Queue.AMQPURL != "" {
		q, err := queue.DialAMQP(cfg.Queue.AMQPURL, cfg.Queue.MaxRetries)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Queue = q
	} else {
		a.Queue = queue.NewInMemoryQueue(cfg.Queue.MaxRetries)
	}

	a.Campaigns = &repository.CampaignRepository{DB: conn}
	a.Leads = &repository.LeadRepository{DB: conn}
	a.Drafts = &repository.DraftRepository{DB: conn}
	a.Messages = &repository.OutboundMessageRepository{DB: conn}

	gateway, err := mailer.FromConfig(cfg.Email)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Gateway = gateway

	gen, err := NewGenerator(cfg.Drafts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Pool = service.NewDraftPool(a.Drafts, gen, cfg.Drafts.RequestDelay)

	a.Orchestrator = &service.Orchestrator{
		Campaigns: a.Campaigns,
		Leads:     a.Leads,
		Messages:  a.Messages,
		Pool:      a.Pool,
		Sender:    a.Gateway,
		Locks:     &distlock.Factory{Redis: a.Redis, DB: conn, TTL: cfg.Redis.LockTTL},
		LockTTL:   cfg.Redis.LockTTL,
		From:      cfg.Email.From,
	}
	a.Runner = service.NewCampaignRunner(a.Queue, a.Orchestrator, 64)
	a.Campaign = &service.CampaignService{
		CampaignRepo:   a.Campaigns,
		LeadRepo:       a.Leads,
		OutboundRepo:   a.Messages,
		Pool:           a.Pool,
		Runner:         a.Runner,
		BootstrapCount: cfg.Drafts.BootstrapCount,
	}

	correlator := inbox.NewCorrelator(a.Messages, a.Leads, a.Drafts)
	a.Poller = inbox.NewPoller(
		inbox.NewIMAPMailbox(cfg.IMAP),
		correlator,
		a.Campaigns,
		cfg.IMAP.PollInterval,
		cfg.IMAP.MaxConsecutiveErrors,
	)
	return a, nil
}

// NewGenerator returns the configured draft generator, always backed by the
// built-in templates.
func NewGenerator(cfg config.DraftsConfig) (service.Generator, error) {
	templates, err := service.NewTemplateGenerator()
	if err != nil {
		return nil, err
	}
	if cfg.Provider != "openai" {
		return templates, nil
	}
	if cfg.OpenAIKey == "" {
		logger.Warn("AI_PROVIDER=openai without OPENAI_API_KEY, using templates")
		return templates, nil
	}
	client, err := openai.NewClient(cfg.OpenAIKey, cfg.OpenAIModel, openai.WithBaseURL(cfg.OpenAIBaseURL))
	if err != nil {
		return nil, err
	}
	logger.Info("draft generation uses openai", "model", cfg.OpenAIModel)
	return &service.FallbackGenerator{Primary: client, Fallback: templates}, nil
}

// Close stops background work and releases connections.
func (a *App) Close() {
	if a.Poller != nil {
		a.Poller.Stop()
	}
	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil {
			logger.Warn("failed to close queue", "error", err)
		}
	}
	if a.Gateway != nil {
		if err := a.Gateway.Close(); err != nil {
			logger.Warn("failed to close mail transport", "error", err)
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}
