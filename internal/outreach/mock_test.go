package outreach

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/homebid/match-cli/internal/model"
	"github.com/homebid/match-cli/internal/resilience"
	"github.com/homebid/match-cli/pkg/places"
)

// mockStore implements Store for testing.
type mockStore struct {
	prospects        map[string]*model.Prospect
	findErr          error
	createErr        error
	refreshErr       error
	inviteErr        error
	uniqueViolations int
	raceProspect     *model.Prospect
	existingInvites  map[string]bool

	created   []*model.Prospect
	refreshed []*model.Prospect
	invites   []*model.Invitation
}

func (m *mockStore) FindProspect(_ context.Context, placeID, phone, email string) (*model.Prospect, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	if placeID != "" {
		for _, p := range m.prospects {
			if p.PlaceID != nil && *p.PlaceID == placeID {
				return p, nil
			}
		}
	}
	if phone != "" {
		for _, p := range m.prospects {
			if p.Phone != nil && strings.EqualFold(*p.Phone, phone) {
				return p, nil
			}
		}
	}
	if email != "" {
		for _, p := range m.prospects {
			if p.Email != nil && strings.EqualFold(*p.Email, email) {
				return p, nil
			}
		}
	}
	return nil, nil
}

func (m *mockStore) CreateProspect(_ context.Context, p *model.Prospect) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.prospects == nil {
		m.prospects = make(map[string]*model.Prospect)
	}
	if m.uniqueViolations > 0 {
		m.uniqueViolations--
		if m.raceProspect != nil {
			m.prospects[m.raceProspect.ID] = m.raceProspect
		}
		return eris.New("UNIQUE constraint failed: prospects.place_id")
	}
	if p.ID == "" {
		p.ID = fmt.Sprintf("pros-%d", len(m.prospects)+1)
	}
	m.prospects[p.ID] = p
	m.created = append(m.created, p)
	return nil
}

func (m *mockStore) RefreshProspect(_ context.Context, p *model.Prospect) error {
	if m.refreshErr != nil {
		return m.refreshErr
	}
	m.refreshed = append(m.refreshed, p)
	return nil
}

func (m *mockStore) CreateInvitation(_ context.Context, inv *model.Invitation) (bool, error) {
	if m.inviteErr != nil {
		return false, m.inviteErr
	}
	if err := inv.Validate(); err != nil {
		return false, err
	}
	key := inv.BidCardID + "/"
	if inv.ProspectID != nil {
		key += *inv.ProspectID
	}
	if m.existingInvites == nil {
		m.existingInvites = make(map[string]bool)
	}
	if m.existingInvites[key] {
		return false, nil
	}
	m.existingInvites[key] = true
	m.invites = append(m.invites, inv)
	return true, nil
}

// mockDirectory implements places.Client for testing.
type mockDirectory struct {
	mu        sync.Mutex
	responses map[string]*places.KeywordSearchResponse
	errs      map[string]error
	requests  []places.KeywordSearchRequest
}

func (m *mockDirectory) KeywordSearch(_ context.Context, req places.KeywordSearchRequest) (*places.KeywordSearchResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if err, ok := m.errs[req.TextQuery]; ok {
		return nil, err
	}
	if resp, ok := m.responses[req.TextQuery]; ok {
		return resp, nil
	}
	return &places.KeywordSearchResponse{}, nil
}

// mockSender implements Sender for testing. errs is consumed one entry per
// call; a nil entry means success.
type mockSender struct {
	err  error
	errs []error

	sent []model.Invitation
}

func (m *mockSender) Send(_ context.Context, inv model.Invitation) error {
	m.sent = append(m.sent, inv)
	if m.err != nil {
		return m.err
	}
	if len(m.errs) > 0 {
		e := m.errs[0]
		m.errs = m.errs[1:]
		return e
	}
	return nil
}

type deliveryUpdate struct {
	id       string
	status   model.InviteStatus
	attempts int
	reason   string
}

// mockDeliveryStore implements DeliveryStore for testing. Invitation
// statuses in the statuses map drive RequeueInvitation's conditional
// update; absent IDs count as failed.
type mockDeliveryStore struct {
	queued     []model.Invitation
	listErr    error
	updErr     error
	dequeueErr error
	requeueErr error
	statuses   map[string]model.InviteStatus

	listCalls int
	updates   []deliveryUpdate
	dlq       []resilience.DLQEntry
	requeued  []string
	bumped    []string
	removed   []string
}

func (m *mockDeliveryStore) ListQueuedInvitations(_ context.Context, _ int) ([]model.Invitation, error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.queued, nil
}

func (m *mockDeliveryStore) UpdateInvitationDelivery(_ context.Context, id string, status model.InviteStatus, attempts int, reason string) error {
	if m.updErr != nil {
		return m.updErr
	}
	m.updates = append(m.updates, deliveryUpdate{id: id, status: status, attempts: attempts, reason: reason})
	return nil
}

func (m *mockDeliveryStore) RequeueInvitation(_ context.Context, id string) (bool, error) {
	if m.requeueErr != nil {
		return false, m.requeueErr
	}
	if status, ok := m.statuses[id]; ok && status != model.InviteFailed {
		return false, nil
	}
	m.requeued = append(m.requeued, id)
	return true, nil
}

func (m *mockDeliveryStore) EnqueueDLQ(_ context.Context, entry resilience.DLQEntry) error {
	m.dlq = append(m.dlq, entry)
	return nil
}

func (m *mockDeliveryStore) DequeueDLQ(_ context.Context, _ resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	if m.dequeueErr != nil {
		return nil, m.dequeueErr
	}
	return m.dlq, nil
}

func (m *mockDeliveryStore) IncrementDLQRetry(_ context.Context, id string, _ time.Time, _ string) error {
	m.bumped = append(m.bumped, id)
	return nil
}

func (m *mockDeliveryStore) RemoveDLQ(_ context.Context, id string) error {
	m.removed = append(m.removed, id)
	return nil
}
