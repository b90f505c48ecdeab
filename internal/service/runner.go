package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
	"github.com/unclebandit/outreach-backend/internal/queue"
)

// CampaignProcessor runs one pass over a campaign.
type CampaignProcessor interface {
	ProcessCampaign(ctx context.Context, campaignID int) (*RunResult, error)
}

// CampaignRunner turns triggers into queued jobs and reports each finished
// pass on Results.
type CampaignRunner struct {
	Queue     queue.Queue
	Processor CampaignProcessor
	results   chan RunResult
}

func NewCampaignRunner(q queue.Queue, p CampaignProcessor, buffer int) *CampaignRunner {
	return &CampaignRunner{Queue: q, Processor: p, results: make(chan RunResult, buffer)}
}

// Trigger enqueues a processing job for the campaign.
func (r *CampaignRunner) Trigger(ctx context.Context, campaignID int, reason string) error {
	job := queue.CampaignJob{CampaignID: campaignID, Reason: reason, EnqueuedAt: time.Now().UTC()}
	if err := r.Queue.Publish(ctx, queue.TopicCampaignProcess, job); err != nil {
		return err
	}
	logger.Info("campaign run queued", "campaign_id", campaignID, "reason", reason)
	return nil
}

// Start subscribes the runner to campaign jobs.
func (r *CampaignRunner) Start() error {
	return r.Queue.Subscribe(queue.TopicCampaignProcess, r.Handle)
}

// Results reports every finished pass. Results are dropped when nobody reads them.
func (r *CampaignRunner) Results() <-chan RunResult {
	return r.results
}

// Handle processes one queued job. A busy campaign is handed back with
// queue.RetryLater, so waiting for the lock never exhausts the retry budget;
// a missing campaign is reported and dropped.
func (r *CampaignRunner) Handle(ctx context.Context, payload []byte) error {
	var job queue.CampaignJob
	if err := json.Unmarshal(payload, &job); err != nil {
		logger.Error("invalid campaign job payload", "error", err)
		return nil
	}

	res, err := r.Processor.ProcessCampaign(ctx, job.CampaignID)
	if res == nil {
		res = &RunResult{CampaignID: job.CampaignID}
	}
	res.Err = err

	switch {
	case err == nil:
	case errors.Is(err, appErrors.ErrCampaignBusy):
		logger.Info("campaign busy, will retry", "campaign_id", job.CampaignID)
		return queue.RetryLater(err)
	case appErrors.IsNotFound(err):
		logger.Warn("campaign job for missing campaign", "campaign_id", job.CampaignID)
		err = nil
	default:
		logger.Error("campaign run failed", "campaign_id", job.CampaignID, "error", err)
		err = fmt.Errorf("process campaign %d: %w", job.CampaignID, err)
	}

	select {
	case r.results <- *res:
	default:
		logger.Debug("run result dropped", "campaign_id", job.CampaignID)
	}
	return err
}
