package inbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unclebandit/outreach-backend/internal/pkg/logger"
)

// SchedulerState is whether the poller will fire further cycles on its own.
type SchedulerState string

const (
	SchedulerStopped   SchedulerState = "STOPPED"
	SchedulerScheduled SchedulerState = "SCHEDULED"
	SchedulerRunning   SchedulerState = "RUNNING"
)

// CycleState tracks progress through one poll cycle.
type CycleState string

const (
	CycleIdle       CycleState = "IDLE"
	CycleConnecting CycleState = "CONNECTING"
	CycleSearching  CycleState = "SEARCHING"
	CycleFetching   CycleState = "FETCHING"
	CycleDone       CycleState = "DONE"
	CycleError      CycleState = "ERROR"
)

const (
	DefaultMaxConsecutiveErrors = 5
	defaultWatermarkLookback    = 30 * 24 * time.Hour
	imapDateLayout              = "2-Jan-2006"
)

var ErrAlreadyStarted = errors.New("inbox poller already started")

// WatermarkSource reports the creation time of the oldest campaign, or nil if there is none.
type WatermarkSource interface {
	OldestCreatedAt(ctx context.Context) (*time.Time, error)
}

// CycleStats counts what one cycle did.
type CycleStats struct {
	Since    string `json:"since"`
	Found    int    `json:"found"`
	Linked   int    `json:"linked"`
	Ignored  int    `json:"ignored"`
	Failed   int    `json:"failed"`
	Duration string `json:"duration"`
}

// Status is a snapshot for the admin surface.
type Status struct {
	Scheduler         SchedulerState `json:"scheduler"`
	Cycle             CycleState     `json:"cycle"`
	ConsecutiveErrors int            `json:"consecutive_errors"`
	MaxErrors         int            `json:"max_consecutive_errors"`
	LastError         string         `json:"last_error,omitempty"`
	LastCycleAt       *time.Time     `json:"last_cycle_at,omitempty"`
	LastStats         *CycleStats    `json:"last_stats,omitempty"`
}

// Poller runs poll cycles on a ticker and stops scheduling after
// MaxErrors consecutive failed cycles until Start is called again.
type Poller struct {
	mailbox    Mailbox
	correlator *Correlator
	watermark  WatermarkSource
	interval   time.Duration
	maxErrors  int
	now        func() time.Time

	// cycleMu keeps cycles from overlapping between the ticker and manual polls.
	cycleMu sync.Mutex

	mu                sync.Mutex
	scheduler         SchedulerState
	cycle             CycleState
	consecutiveErrors int
	lastError         string
	lastCycleAt       *time.Time
	lastStats         *CycleStats
	cancel            context.CancelFunc
	done              chan struct{}
}

func NewPoller(mailbox Mailbox, correlator *Correlator, watermark WatermarkSource, interval time.Duration, maxErrors int) *Poller {
	if maxErrors < 1 {
		maxErrors = DefaultMaxConsecutiveErrors
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Poller{
		mailbox:    mailbox,
		correlator: correlator,
		watermark:  watermark,
		interval:   interval,
		maxErrors:  maxErrors,
		now:        time.Now,
		scheduler:  SchedulerStopped,
		cycle:      CycleIdle,
	}
}

// Start runs one cycle immediately and then one per interval.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.scheduler != SchedulerStopped {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	// a previous loop that tripped the breaker may still be unwinding
	if p.done != nil {
		done := p.done
		p.mu.Unlock()
		<-done
		p.mu.Lock()
	}
	if p.cancel != nil {
		p.cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.scheduler = SchedulerScheduled
	p.consecutiveErrors = 0
	done := p.done
	p.mu.Unlock()

	logger.Info("inbox poller started", "interval", p.interval.String())
	go p.loop(loopCtx, done)
	return nil
}

// Stop cancels the ticker and waits for an in-flight cycle to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done

	p.mu.Lock()
	p.scheduler = SchedulerStopped
	p.cancel = nil
	p.mu.Unlock()
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if !p.tick(ctx) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one scheduled cycle and reports whether scheduling continues.
func (p *Poller) tick(ctx context.Context) bool {
	p.mu.Lock()
	if p.scheduler == SchedulerStopped {
		p.mu.Unlock()
		return false
	}
	p.scheduler = SchedulerRunning
	p.mu.Unlock()

	p.RunCycle(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		p.scheduler = SchedulerStopped
		return false
	}
	if p.consecutiveErrors >= p.maxErrors {
		p.scheduler = SchedulerStopped
		logger.Error("inbox poller stopped after consecutive failures",
			"consecutive_errors", p.consecutiveErrors, "last_error", p.lastError)
		return false
	}
	p.scheduler = SchedulerScheduled
	return true
}

// ManualPoll resets the failure counter and runs exactly one cycle. It does
// not resume scheduling after the breaker tripped.
func (p *Poller) ManualPoll(ctx context.Context) (CycleStats, error) {
	p.mu.Lock()
	p.consecutiveErrors = 0
	p.mu.Unlock()
	logger.Info("manual inbox poll requested")
	return p.RunCycle(ctx)
}

func (p *Poller) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{
		Scheduler:         p.scheduler,
		Cycle:             p.cycle,
		ConsecutiveErrors: p.consecutiveErrors,
		MaxErrors:         p.maxErrors,
		LastError:         p.lastError,
		LastCycleAt:       p.lastCycleAt,
		LastStats:         p.lastStats,
	}
}

func (p *Poller) setCycle(state CycleState) {
	p.mu.Lock()
	p.cycle = state
	p.mu.Unlock()
}

// Since returns the search watermark: the oldest campaign's creation time,
// or 30 days ago when no campaign exists.
func (p *Poller) Since(ctx context.Context) time.Time {
	if p.watermark != nil {
		oldest, err := p.watermark.OldestCreatedAt(ctx)
		if err != nil {
			logger.Warn("watermark lookup failed, using default lookback", "error", err)
		} else if oldest != nil {
			return *oldest
		}
	}
	return p.now().Add(-defaultWatermarkLookback)
}

// RunCycle connects, searches, fetches and correlates once. Only connection,
// search and fetch failures count against the breaker; per-message problems
// are logged and skipped.
func (p *Poller) RunCycle(ctx context.Context) (CycleStats, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	start := p.now()
	stats, err := p.runCycle(ctx)
	stats.Duration = p.now().Sub(start).String()

	p.mu.Lock()
	finished := p.now()
	p.lastCycleAt = &finished
	p.lastStats = &stats
	if err != nil {
		p.cycle = CycleError
		p.consecutiveErrors++
		p.lastError = err.Error()
		logger.Error("inbox poll cycle failed", "error", err, "consecutive_errors", p.consecutiveErrors)
	} else {
		p.cycle = CycleDone
		p.consecutiveErrors = 0
		p.lastError = ""
		logger.Info("inbox poll cycle done", "found", stats.Found, "linked", stats.Linked, "failed", stats.Failed)
	}
	p.mu.Unlock()
	return stats, err
}

func (p *Poller) runCycle(ctx context.Context) (stats CycleStats, err error) {
	since := p.Since(ctx)
	stats.Since = since.Format(imapDateLayout)

	p.setCycle(CycleConnecting)
	session, err := p.mailbox.Open(ctx)
	if err != nil {
		return stats, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			logger.Debug("closing mailbox session", "error", cerr)
		}
	}()

	p.setCycle(CycleSearching)
	uids, err := session.SearchUnseenSince(ctx, since)
	if err != nil {
		return stats, fmt.Errorf("search: %w", err)
	}
	stats.Found = len(uids)
	if len(uids) == 0 {
		logger.Debug("no new unseen messages", "since", stats.Since)
		return stats, nil
	}

	p.setCycle(CycleFetching)
	err = session.Fetch(ctx, uids, func(uid uint32, raw []byte) {
		outcome, perr := p.process(ctx, raw)
		switch {
		case perr != nil:
			stats.Failed++
			logger.Error("failed to process inbound message", "uid", uid, "error", perr)
		case outcome == OutcomeLinked:
			stats.Linked++
		default:
			stats.Ignored++
		}
	})
	if err != nil {
		return stats, fmt.Errorf("fetch: %w", err)
	}
	return stats, nil
}

func (p *Poller) process(ctx context.Context, raw []byte) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic processing message: %v", r)
		}
	}()
	msg, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return p.correlator.Correlate(ctx, msg)
}
