// Package memrepo implements the repository interfaces in memory. Service and
// inbox tests use it in place of PostgreSQL.
package memrepo

import (
	"context"
	"sort"
	"sync"
	"time"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/repository"
)

// Store keeps campaigns, leads, drafts and messages in maps. The repository
// views below share one Store, so a test can read back what a service wrote.
type Store struct {
	mu        sync.Mutex
	nextID    int
	campaigns map[int]*model.Campaign
	leads     map[int]*model.Lead
	drafts    map[int]*model.Draft
	messages  []*model.OutboundMessage
}

// NewStore returns an empty store. IDs are shared across all entity kinds.
func NewStore() *Store {
	return &Store{
		campaigns: map[int]*model.Campaign{},
		leads:     map[int]*model.Lead{},
		drafts:    map[int]*model.Draft{},
	}
}

func (s *Store) id() int {
	s.nextID++
	return s.nextID
}

type (
	Campaigns struct{ *Store }
	Leads     struct{ *Store }
	Drafts    struct{ *Store }
	Messages  struct{ *Store }
)

// campaigns

func (r Campaigns) Create(_ context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = r.id()
	c.CreatedAt = time.Now()
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r Campaigns) GetByID(_ context.Context, id int) (*model.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (r Campaigns) Update(_ context.Context, c *model.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.campaigns[c.ID]; !ok {
		return appErrors.NewCampaignNotFound(c.ID)
	}
	cp := *c
	r.campaigns[c.ID] = &cp
	return nil
}

func (r Campaigns) UpdateStatus(_ context.Context, id int, status model.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return appErrors.NewCampaignNotFound(id)
	}
	c.Status = status
	return nil
}

func (r Campaigns) transition(id int, from, to model.CampaignStatus, stamp func(*model.Campaign, time.Time)) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	stamp(c, time.Now())
	return true, nil
}

func (r Campaigns) Activate(_ context.Context, id int) (bool, error) {
	return r.transition(id, model.CampaignDraft, model.CampaignActive, func(c *model.Campaign, t time.Time) { c.StartedAt = &t })
}

func (r Campaigns) Complete(_ context.Context, id int) (bool, error) {
	return r.transition(id, model.CampaignActive, model.CampaignCompleted, func(c *model.Campaign, t time.Time) { c.CompletedAt = &t })
}

func (r Campaigns) ListCampaigns(_ context.Context, offset, limit int, status string) ([]*model.Campaign, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*model.Campaign
	for _, c := range r.campaigns {
		if status == "" || string(c.Status) == status {
			cp := *c
			all = append(all, &cp)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r Campaigns) OldestCreatedAt(_ context.Context) (*time.Time, error) { return nil, nil }

func (r Campaigns) GetCampaignStats(_ context.Context, id int) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := map[string]int{"total": 0, "SENT": 0, "FAILED": 0, "REPLIED": 0}
	for _, m := range r.messages {
		if m.CampaignID != id || m.IsIncoming {
			continue
		}
		stats["total"]++
		stats[string(m.Status)]++
		if m.RepliedAt != nil {
			stats["REPLIED"]++
		}
	}
	return stats, nil
}

// leads

func (r Leads) Create(_ context.Context, l *model.Lead) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l.ID = r.id()
	if l.Status == "" {
		l.Status = model.LeadNew
	}
	if l.OutreachStatus == "" {
		l.OutreachStatus = model.OutreachPending
	}
	cp := *l
	r.leads[l.ID] = &cp
	return nil
}

func (r Leads) GetByID(_ context.Context, id int) (*model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return nil, appErrors.NewLeadNotFound(id)
	}
	cp := *l
	return &cp, nil
}

func (r Leads) matching(campaignID int, statuses []model.OutreachStatus) []model.Lead {
	var out []model.Lead
	for _, l := range r.leads {
		if l.CampaignID == nil || *l.CampaignID != campaignID {
			continue
		}
		for _, s := range statuses {
			if l.OutreachStatus == s {
				out = append(out, *l)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r Leads) ListByCampaign(_ context.Context, campaignID int, statuses []model.OutreachStatus) ([]model.Lead, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matching(campaignID, statuses), nil
}

func (r Leads) CountByCampaign(_ context.Context, campaignID int, statuses []model.OutreachStatus) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matching(campaignID, statuses)), nil
}

func (r Leads) AttachToCampaign(_ context.Context, campaignID int, leadIDs []int) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var attached []int
	for _, id := range leadIDs {
		l, ok := r.leads[id]
		if !ok || (l.CampaignID != nil && *l.CampaignID == campaignID) {
			continue
		}
		cid := campaignID
		l.CampaignID = &cid
		l.OutreachStatus = model.OutreachPending
		attached = append(attached, id)
	}
	return attached, nil
}

func (r Leads) UpdateOutreachStatus(_ context.Context, id int, status model.OutreachStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return appErrors.NewLeadNotFound(id)
	}
	l.OutreachStatus = status
	return nil
}

func (r Leads) UpdateStatus(_ context.Context, id int, status model.LeadStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return appErrors.NewLeadNotFound(id)
	}
	l.Status = status
	return nil
}

func (r Leads) MarkSent(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leads[id]
	if !ok {
		return appErrors.NewLeadNotFound(id)
	}
	l.OutreachStatus = model.OutreachSent
	l.Status = model.LeadContacted
	return nil
}

func (r Leads) OutreachCounts(_ context.Context, campaignID int) (map[string]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[string]int{}
	for _, l := range r.leads {
		if l.CampaignID != nil && *l.CampaignID == campaignID {
			counts[string(l.OutreachStatus)]++
		}
	}
	return counts, nil
}

// drafts

func sameScope(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r Drafts) Create(_ context.Context, d *model.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = r.id()
	d.Version = 1
	d.IsActive = true
	d.CreatedAt = time.Now().Add(time.Duration(d.ID) * time.Millisecond)
	if d.UseCase == "" {
		d.UseCase = model.UseCaseInitial
	}
	cp := *d
	r.drafts[d.ID] = &cp
	return nil
}

func (r Drafts) GetByID(_ context.Context, id int) (*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return nil, appErrors.NewDraftNotFound(id)
	}
	cp := *d
	return &cp, nil
}

func (r Drafts) Update(_ context.Context, id int, upd model.DraftUpdate) (*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[id]
	if !ok {
		return nil, appErrors.NewDraftNotFound(id)
	}
	if upd.Subject != nil {
		d.Subject = *upd.Subject
	}
	if upd.Body != nil {
		d.Body = *upd.Body
	}
	if upd.Tone != nil {
		d.Tone = *upd.Tone
	}
	d.Version++
	cp := *d
	return &cp, nil
}

func (r Drafts) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[id]; !ok {
		return appErrors.NewDraftNotFound(id)
	}
	delete(r.drafts, id)
	return nil
}

func (r Drafts) active(campaignID *int, useCase model.UseCase, tone string) []model.Draft {
	var out []model.Draft
	for _, d := range r.drafts {
		if !d.IsActive || d.IsReplyDraft || d.UseCase != useCase || !sameScope(d.CampaignID, campaignID) {
			continue
		}
		if tone != "" && d.Tone != tone {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r Drafts) ListActive(_ context.Context, campaignID *int, useCase model.UseCase, tone string) ([]model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active(campaignID, useCase, tone), nil
}

func (r Drafts) FindBest(_ context.Context, campaignID *int, useCase model.UseCase, tone string) (*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.active(campaignID, useCase, tone)
	if len(list) == 0 {
		return nil, appErrors.NewDraftNotFound(0)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.ReplyCount != b.ReplyCount {
			return a.ReplyCount > b.ReplyCount
		}
		if a.SentCount != b.SentCount {
			return a.SentCount > b.SentCount
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return &list[0], nil
}

func (r Drafts) ListByCampaign(_ context.Context, campaignID int) ([]model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Draft
	for _, d := range r.drafts {
		if d.CampaignID != nil && *d.CampaignID == campaignID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (r Drafts) IncrementSentCount(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drafts[id]; ok {
		d.SentCount++
	}
	return nil
}

func (r Drafts) IncrementReplyCount(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.drafts[id]; ok {
		d.ReplyCount++
	}
	return nil
}

func (r Drafts) replyDraft(campaignID, leadID int) *model.Draft {
	for _, d := range r.drafts {
		if d.IsReplyDraft && sameScope(d.CampaignID, &campaignID) && sameScope(d.LeadID, &leadID) {
			return d
		}
	}
	return nil
}

func (r Drafts) ReplaceReplyDraft(_ context.Context, d *model.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old := r.replyDraft(*d.CampaignID, *d.LeadID); old != nil {
		delete(r.drafts, old.ID)
	}
	d.ID = r.id()
	d.IsReplyDraft = true
	d.UseCase = model.UseCaseReply
	d.IsActive = true
	d.Version = 1
	cp := *d
	r.drafts[d.ID] = &cp
	return nil
}

func (r Drafts) GetReplyDraft(_ context.Context, campaignID, leadID int) (*model.Draft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.replyDraft(campaignID, leadID)
	if d == nil {
		return nil, appErrors.NewDraftNotFound(0)
	}
	cp := *d
	return &cp, nil
}

func (r Drafts) DeleteReplyDraft(_ context.Context, campaignID, leadID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.replyDraft(campaignID, leadID)
	if d == nil {
		return false, nil
	}
	delete(r.drafts, d.ID)
	return true, nil
}

// ReplyDraftCount counts reply drafts for the lead in the campaign.
func (r Drafts) ReplyDraftCount(campaignID, leadID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, d := range r.drafts {
		if d.IsReplyDraft && sameScope(d.CampaignID, &campaignID) && sameScope(d.LeadID, &leadID) {
			n++
		}
	}
	return n
}

// messages

func (r Messages) Create(_ context.Context, m *model.OutboundMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.messages {
		if m.MessageID != "" && e.MessageID == m.MessageID {
			return appErrors.ErrDuplicateMessage
		}
		if m.Status == model.MessageSent && !m.IsIncoming && m.ReplyToID == nil &&
			e.Status == model.MessageSent && !e.IsIncoming && e.ReplyToID == nil &&
			e.LeadID == m.LeadID && e.CampaignID == m.CampaignID {
			return appErrors.ErrAlreadySent
		}
	}
	m.ID = r.id()
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r Messages) GetByID(_ context.Context, id int) (*model.OutboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r Messages) HasSent(_ context.Context, leadID, campaignID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.LeadID == leadID && m.CampaignID == campaignID && m.Status == model.MessageSent && !m.IsIncoming && m.ReplyToID == nil {
			return true, nil
		}
	}
	return false, nil
}

func (r Messages) FindOutgoingByMessageIDs(_ context.Context, ids []string) (*model.OutboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		for _, id := range ids {
			if !m.IsIncoming && m.MessageID == id {
				cp := *m
				return &cp, nil
			}
		}
	}
	return nil, nil
}

func (r Messages) ExistsByMessageID(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.MessageID == id {
			return true, nil
		}
	}
	return false, nil
}

func (r Messages) MarkReplied(_ context.Context, id int, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id && m.RepliedAt == nil {
			m.RepliedAt = &at
		}
	}
	return nil
}

func (r Messages) ListThread(_ context.Context, campaignID, leadID int) ([]model.OutboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.OutboundMessage
	for _, m := range r.messages {
		if m.CampaignID == campaignID && m.LeadID == leadID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (r Messages) LatestIncoming(_ context.Context, campaignID, leadID int) (*model.OutboundMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *model.OutboundMessage
	for _, m := range r.messages {
		if m.IsIncoming && m.CampaignID == campaignID && m.LeadID == leadID {
			latest = m
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

// SentCount counts initial SENT messages for the lead in the campaign.
func (r Messages) SentCount(leadID, campaignID int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.LeadID == leadID && m.CampaignID == campaignID && m.Status == model.MessageSent && !m.IsIncoming {
			n++
		}
	}
	return n
}

var (
	_ repository.CampaignRepositoryInterface        = Campaigns{}
	_ repository.LeadRepositoryInterface            = Leads{}
	_ repository.DraftRepositoryInterface           = Drafts{}
	_ repository.OutboundMessageRepositoryInterface = Messages{}
)
