package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/unclebandit/outreach-backend/internal/mailer"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/pkg/distlock"
	"github.com/unclebandit/outreach-backend/internal/repository/memrepo"
)

// fakeSender records emails and fails for addresses listed in reject.
type fakeSender struct {
	mu     sync.Mutex
	sent   []mailer.Email
	reject map[string]bool
	n      int
	// onSend runs after each accepted email, outside the sender's lock.
	onSend func(mailer.Email)
}

func (s *fakeSender) SendEmail(_ context.Context, e mailer.Email) mailer.Result {
	s.mu.Lock()
	if s.reject[e.To] {
		s.mu.Unlock()
		return mailer.Result{Error: "550 mailbox unavailable"}
	}
	s.n++
	s.sent = append(s.sent, e)
	id := fmt.Sprintf("msg-%d@outreach.test", s.n)
	hook := s.onSend
	s.mu.Unlock()

	if hook != nil {
		hook(e)
	}
	return mailer.Result{Success: true, MessageID: id}
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

// stubGenerator returns a fixed draft and counts calls.
type stubGenerator struct {
	mu    sync.Mutex
	calls []model.DraftRequest
	err   error
}

func (g *stubGenerator) Generate(_ context.Context, req model.DraftRequest) (model.DraftContent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	if g.err != nil {
		return model.DraftContent{}, g.err
	}
	return model.DraftContent{Subject: "Hi {{firstName}}", Body: "Hello {{name}} at {{company}}"}, nil
}

// busyLocks hands out locks that are never acquired.
type busyLocks struct{}

func (busyLocks) Lock(string) distlock.DistLock { return busyLock{} }

type busyLock struct{}

func (busyLock) Acquire(context.Context) (bool, error) { return false, nil }
func (busyLock) Release(context.Context) error         { return nil }

type harness struct {
	campaigns memrepo.Campaigns
	leads     memrepo.Leads
	drafts    memrepo.Drafts
	messages  memrepo.Messages
	sender    *fakeSender
	gen       *stubGenerator
	pool      *DraftPool
	orch      *Orchestrator
}

func newHarness() *harness {
	st := memrepo.NewStore()
	h := &harness{
		campaigns: memrepo.Campaigns{Store: st},
		leads:     memrepo.Leads{Store: st},
		drafts:    memrepo.Drafts{Store: st},
		messages:  memrepo.Messages{Store: st},
		sender:    &fakeSender{reject: map[string]bool{}},
		gen:       &stubGenerator{},
	}
	h.pool = &DraftPool{Drafts: h.drafts, Generator: h.gen, Intn: func(int) int { return 0 }}
	h.orch = &Orchestrator{
		Campaigns: h.campaigns,
		Leads:     h.leads,
		Messages:  h.messages,
		Pool:      h.pool,
		Sender:    h.sender,
		From:      "sales@outreach.test",
	}
	return h
}

func (h *harness) campaign(status model.CampaignStatus) *model.Campaign {
	c := &model.Campaign{Name: "Q3", Status: status, SenderName: "Sam"}
	_ = h.campaigns.Create(context.Background(), c)
	return c
}

func (h *harness) lead(campaignID int, email string, status model.OutreachStatus) *model.Lead {
	cid := campaignID
	l := &model.Lead{Name: "Jane Doe", Email: email, Company: "Acme", CampaignID: &cid, OutreachStatus: status}
	_ = h.leads.Create(context.Background(), l)
	return l
}

func (h *harness) draft(campaignID *int, subject string) *model.Draft {
	d := &model.Draft{CampaignID: campaignID, Subject: subject, Body: "Hi {{firstName}}", Tone: "professional", UseCase: model.UseCaseInitial}
	_ = h.drafts.Create(context.Background(), d)
	return d
}

func (h *harness) leadState(id int) model.Lead {
	l, _ := h.leads.GetByID(context.Background(), id)
	return *l
}

func (h *harness) campaignState(id int) model.Campaign {
	c, _ := h.campaigns.GetByID(context.Background(), id)
	return *c
}

var (
	_ mailer.Sender     = (*fakeSender)(nil)
	_ Generator         = (*stubGenerator)(nil)
	_ distlock.Provider = busyLocks{}
)
