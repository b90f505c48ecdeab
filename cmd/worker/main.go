package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/unclebandit/outreach-backend/internal/app"
	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
	"github.com/unclebandit/outreach-backend/internal/queue"
)

// The worker consumes campaign_process jobs from RabbitMQ so that sends run
// outside the API process. It needs AMQP_URL.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if cfg.Queue.AMQPURL == "" {
		logger.Error("worker requires AMQP_URL")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Runner.Start(); err != nil {
		logger.Error("failed to subscribe", "topic", queue.TopicCampaignProcess, "error", err)
		os.Exit(1)
	}
	logger.Info("worker waiting for campaign jobs", "topic", queue.TopicCampaignProcess)

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopping")
			return
		case res := <-a.Runner.Results():
			logResult(res.CampaignID, res.Sent, res.Failed, res.Completed, res.Err)
		}
	}
}

func logResult(campaignID, sent, failed int, completed bool, err error) {
	if err != nil {
		logger.Warn("campaign run finished with error", "campaign_id", campaignID, "error", err)
		return
	}
	logger.Info("campaign run finished",
		"campaign_id", campaignID, "sent", sent, "failed", failed, "completed", completed)
}
