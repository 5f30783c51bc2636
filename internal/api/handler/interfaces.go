package handler

import (
	"context"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/application"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/ticket"
)

// CatalogServiceInterface は旅程管理サービスのインターフェース
type CatalogServiceInterface interface {
	CreateItinerary(ctx context.Context, input application.ItineraryInput) (*itinerary.Itinerary, error)
	GetItinerary(ctx context.Context, id string) (*itinerary.Itinerary, error)
	SearchItineraries(ctx context.Context, filter itinerary.SearchFilter) ([]*itinerary.Itinerary, error)
	UpdateItinerary(ctx context.Context, id string, input application.ItineraryInput) (*itinerary.Itinerary, error)
	DeleteItinerary(ctx context.Context, id string) error
}

// SeatMapServiceInterface は座席表サービスのインターフェース
type SeatMapServiceInterface interface {
	GetSeatMap(ctx context.Context, itineraryID string) (*seat.Map, error)
	CountAvailable(ctx context.Context, itineraryID string) (int, error)
}

// ReservationServiceInterface は予約サービスのインターフェース
type ReservationServiceInterface interface {
	Reserve(ctx context.Context, input application.ReserveInput) (*reservation.Hold, error)
	ReserveAny(ctx context.Context, input application.ReserveAnyInput) (*reservation.Hold, error)
	ReleaseHold(ctx context.Context, token, holderID string) error
	Purchase(ctx context.Context, input application.PurchaseInput) (*ticket.Ticket, error)
	Cancel(ctx context.Context, input application.CancelInput) (*ticket.Ticket, error)
}

// TicketServiceInterface はチケットサービスのインターフェース
type TicketServiceInterface interface {
	GetTicket(ctx context.Context, id, holderID string) (*ticket.Ticket, error)
	ListMyTickets(ctx context.Context, holderID string, limit, offset int) ([]*ticket.Ticket, error)
	SearchPassengers(ctx context.Context, filter ticket.SearchFilter) ([]*ticket.Ticket, error)
	UpdatePassenger(ctx context.Context, id string, p ticket.Passenger) (*ticket.Ticket, error)
}
