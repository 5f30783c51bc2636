package handler

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/application"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/ticket"
)

// MockCatalogService はCatalogServiceInterfaceのモック
type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) CreateItinerary(ctx context.Context, input application.ItineraryInput) (*itinerary.Itinerary, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*itinerary.Itinerary), args.Error(1)
}

func (m *MockCatalogService) GetItinerary(ctx context.Context, id string) (*itinerary.Itinerary, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*itinerary.Itinerary), args.Error(1)
}

func (m *MockCatalogService) SearchItineraries(ctx context.Context, filter itinerary.SearchFilter) ([]*itinerary.Itinerary, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*itinerary.Itinerary), args.Error(1)
}

func (m *MockCatalogService) UpdateItinerary(ctx context.Context, id string, input application.ItineraryInput) (*itinerary.Itinerary, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*itinerary.Itinerary), args.Error(1)
}

func (m *MockCatalogService) DeleteItinerary(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockSeatMapService はSeatMapServiceInterfaceのモック
type MockSeatMapService struct {
	mock.Mock
}

func (m *MockSeatMapService) GetSeatMap(ctx context.Context, itineraryID string) (*seat.Map, error) {
	args := m.Called(ctx, itineraryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*seat.Map), args.Error(1)
}

func (m *MockSeatMapService) CountAvailable(ctx context.Context, itineraryID string) (int, error) {
	args := m.Called(ctx, itineraryID)
	return args.Int(0), args.Error(1)
}

// MockReservationService はReservationServiceInterfaceのモック
type MockReservationService struct {
	mock.Mock
}

func (m *MockReservationService) Reserve(ctx context.Context, input application.ReserveInput) (*reservation.Hold, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Hold), args.Error(1)
}

func (m *MockReservationService) ReserveAny(ctx context.Context, input application.ReserveAnyInput) (*reservation.Hold, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reservation.Hold), args.Error(1)
}

func (m *MockReservationService) ReleaseHold(ctx context.Context, token, holderID string) error {
	args := m.Called(ctx, token, holderID)
	return args.Error(0)
}

func (m *MockReservationService) Purchase(ctx context.Context, input application.PurchaseInput) (*ticket.Ticket, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}

func (m *MockReservationService) Cancel(ctx context.Context, input application.CancelInput) (*ticket.Ticket, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}

// MockTicketService はTicketServiceInterfaceのモック
type MockTicketService struct {
	mock.Mock
}

func (m *MockTicketService) GetTicket(ctx context.Context, id, holderID string) (*ticket.Ticket, error) {
	args := m.Called(ctx, id, holderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}

func (m *MockTicketService) ListMyTickets(ctx context.Context, holderID string, limit, offset int) ([]*ticket.Ticket, error) {
	args := m.Called(ctx, holderID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ticket.Ticket), args.Error(1)
}

func (m *MockTicketService) SearchPassengers(ctx context.Context, filter ticket.SearchFilter) ([]*ticket.Ticket, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ticket.Ticket), args.Error(1)
}

func (m *MockTicketService) UpdatePassenger(ctx context.Context, id string, p ticket.Passenger) (*ticket.Ticket, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}
