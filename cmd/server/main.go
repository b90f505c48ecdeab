// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/unclebandit/outreach-backend/internal/app"
	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/controller"
	"github.com/unclebandit/outreach-backend/internal/handler"
	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	// with RabbitMQ the worker binary consumes jobs; in-process jobs run here
	if _, inProcess := a.Queue.(*queue.InMemoryQueue); inProcess {
		if err := a.Runner.Start(); err != nil {
			logger.Error("failed to start campaign runner", "error", err)
			os.Exit(1)
		}
		go logResults(ctx, a.Runner)
	}

	if cfg.IMAP.Enabled {
		if err := a.Poller.Start(ctx); err != nil {
			logger.Error("failed to start inbox poller", "error", err)
		}
	} else {
		logger.Info("inbox poller disabled")
	}

	campaignController := &controller.CampaignController{
		CampaignService: a.Campaign,
		ReplyDrafts:     a.Pool,
		Replies:         a.Orchestrator,
	}
	draftController := &controller.DraftController{Drafts: a.Pool}
	inboxHandler := handler.NewInboxHandler(ctx, a.Poller)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	campaignController.Register(r)
	draftController.Register(r)
	inboxHandler.Register(r)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server running", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", "error", err)
	}
	logger.Info("server stopped")
}

func logResults(ctx context.Context, runner *service.CampaignRunner) {
	for {
		select {
		case <-ctx.Done():
			return
		case res := <-runner.Results():
			if res.Err != nil {
				logger.Warn("campaign run finished with error", "campaign_id", res.CampaignID, "error", res.Err)
				continue
			}
			logger.Info("campaign run finished",
				"campaign_id", res.CampaignID, "sent", res.Sent, "failed", res.Failed, "completed", res.Completed)
		}
	}
}
