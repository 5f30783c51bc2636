package application

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/ticket"
)

// MockItineraryRepository は itinerary.Repository のモック
type MockItineraryRepository struct {
	mock.Mock
}

func (m *MockItineraryRepository) Create(ctx context.Context, it *itinerary.Itinerary) error {
	args := m.Called(ctx, it)
	return args.Error(0)
}

func (m *MockItineraryRepository) GetByID(ctx context.Context, id string) (*itinerary.Itinerary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*itinerary.Itinerary), args.Error(1)
}

func (m *MockItineraryRepository) Search(ctx context.Context, filter itinerary.SearchFilter) ([]*itinerary.Itinerary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*itinerary.Itinerary), args.Error(1)
}

func (m *MockItineraryRepository) Update(ctx context.Context, it *itinerary.Itinerary) error {
	args := m.Called(ctx, it)
	return args.Error(0)
}

func (m *MockItineraryRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockTicketRepository は ticket.Repository のモック
type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) Create(ctx context.Context, t *ticket.Ticket) (*ticket.Ticket, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id string) (*ticket.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByToken(ctx context.Context, token string) (*ticket.Ticket, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}

func (m *MockTicketRepository) Search(ctx context.Context, filter ticket.SearchFilter) ([]*ticket.Ticket, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ticket.Ticket), args.Error(1)
}

func (m *MockTicketRepository) ListConfirmed(ctx context.Context, itineraryID string) ([]*ticket.Ticket, error) {
	args := m.Called(ctx, itineraryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ticket.Ticket), args.Error(1)
}

func (m *MockTicketRepository) UpdateStatus(ctx context.Context, t *ticket.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *MockTicketRepository) UpdatePassenger(ctx context.Context, t *ticket.Ticket) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// MockEventPublisher は TicketEventPublisher のモック
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event ticket.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// memTicketStore はテスト用のメモリ上のチケットストア
// トークンの一意性と、座席ごとに CONFIRMED は1枚という制約を再現する
type memTicketStore struct {
	mu      sync.Mutex
	byID    map[string]*ticket.Ticket
	byToken map[string]string
	failN   int   // 次の Create を何回失敗させるか
	failErr error // 失敗時に返すエラー

	readFailN   int // 次の GetByID/GetByToken を何回失敗させるか
	readFailErr error
}

func newMemTicketStore() *memTicketStore {
	return &memTicketStore{byID: map[string]*ticket.Ticket{}, byToken: map[string]string{}}
}

var _ ticket.Repository = (*memTicketStore)(nil)

func (s *memTicketStore) failNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failN = n
	s.failErr = err
}

func (s *memTicketStore) failReads(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readFailN = n
	s.readFailErr = err
}

// readFailure は s.mu を保持して呼ぶ
func (s *memTicketStore) readFailure() error {
	if s.readFailN > 0 {
		s.readFailN--
		return s.readFailErr
	}
	return nil
}

func (s *memTicketStore) Create(_ context.Context, t *ticket.Ticket) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failN > 0 {
		s.failN--
		return nil, s.failErr
	}
	if id, ok := s.byToken[t.Token]; ok {
		c := *s.byID[id]
		return &c, nil
	}
	for _, existing := range s.byID {
		if existing.ItineraryID == t.ItineraryID && existing.SeatLabel == t.SeatLabel && !existing.IsCancelled() {
			return nil, ticket.ErrSeatAlreadyTicketed
		}
	}
	c := *t
	c.ID = uuid.NewString()
	s.byID[c.ID] = &c
	s.byToken[c.Token] = c.ID
	out := c
	return &out, nil
}

func (s *memTicketStore) GetByID(_ context.Context, id string) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readFailure(); err != nil {
		return nil, err
	}
	t, ok := s.byID[id]
	if !ok {
		return nil, ticket.ErrTicketNotFound
	}
	c := *t
	return &c, nil
}

func (s *memTicketStore) GetByToken(_ context.Context, token string) (*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readFailure(); err != nil {
		return nil, err
	}
	id, ok := s.byToken[token]
	if !ok {
		return nil, ticket.ErrTicketNotFound
	}
	c := *s.byID[id]
	return &c, nil
}

func (s *memTicketStore) Search(_ context.Context, f ticket.SearchFilter) ([]*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ticket.Ticket
	for _, t := range s.byID {
		if f.ItineraryID != "" && t.ItineraryID != f.ItineraryID {
			continue
		}
		if f.HolderID != "" && t.HolderID != f.HolderID {
			continue
		}
		if f.TransportType != "" && t.TransportType != f.TransportType {
			continue
		}
		if f.PassengerName != "" && !strings.Contains(strings.ToLower(t.PassengerName), strings.ToLower(f.PassengerName)) {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memTicketStore) ListConfirmed(_ context.Context, itineraryID string) ([]*ticket.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ticket.Ticket
	for _, t := range s.byID {
		if t.IsCancelled() || (itineraryID != "" && t.ItineraryID != itineraryID) {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memTicketStore) UpdateStatus(_ context.Context, t *ticket.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[t.ID]
	if !ok {
		return ticket.ErrTicketNotFound
	}
	stored.Status = t.Status
	stored.CancelledAt = t.CancelledAt
	return nil
}

func (s *memTicketStore) UpdatePassenger(_ context.Context, t *ticket.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[t.ID]
	if !ok {
		return ticket.ErrTicketNotFound
	}
	stored.PassengerName = t.PassengerName
	stored.Contact = t.Contact
	return nil
}
