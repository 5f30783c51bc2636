package ticket

import (
	"strings"
	"time"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
)

// Status はチケットの状態を表す
type Status string

const (
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
)

// Ticket は購入が完了した座席の記録を表す
// Token は仮押さえの冪等性トークンで、1トークンにつき1件だけ作成される
type Ticket struct {
	ID            string
	Token         string
	HolderID      string
	PassengerName string
	Contact       string
	ItineraryID   string
	SeatLabel     string
	TransportType itinerary.TransportType
	SeatClass     itinerary.SeatClass
	Price         int
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CancelledAt   *time.Time
}

// Passenger は乗客情報を表す
type Passenger struct {
	Name    string
	Contact string
}

// NewTicket は確定済みのチケットを作成する
func NewTicket(token, holderID string, p Passenger, it *itinerary.Itinerary, seatLabel string) *Ticket {
	now := time.Now()
	return &Ticket{
		Token:         token,
		HolderID:      holderID,
		PassengerName: strings.TrimSpace(p.Name),
		Contact:       strings.TrimSpace(p.Contact),
		ItineraryID:   it.ID,
		SeatLabel:     seatLabel,
		TransportType: it.TransportType,
		SeatClass:     it.SeatClass,
		Price:         it.Price,
		Status:        StatusConfirmed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsCancelled はキャンセル済みかを返す
func (t *Ticket) IsCancelled() bool {
	return t.Status == StatusCancelled
}

// Cancel はチケットをキャンセルする
func (t *Ticket) Cancel(now time.Time) error {
	if t.IsCancelled() {
		return ErrTicketAlreadyCancelled
	}
	t.Status = StatusCancelled
	t.CancelledAt = &now
	t.UpdatedAt = now
	return nil
}

// UpdatePassenger は乗客情報を更新する
func (t *Ticket) UpdatePassenger(p Passenger) error {
	if t.IsCancelled() {
		return ErrTicketAlreadyCancelled
	}
	if err := p.Validate(); err != nil {
		return err
	}
	t.PassengerName = strings.TrimSpace(p.Name)
	t.Contact = strings.TrimSpace(p.Contact)
	t.UpdatedAt = time.Now()
	return nil
}

// Validate は乗客情報の検証を行う
func (p Passenger) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrPassengerNameRequired
	}
	if strings.TrimSpace(p.Contact) == "" {
		return ErrContactRequired
	}
	return nil
}

// Validate はチケットの検証を行う
func (t *Ticket) Validate() error {
	if t.Token == "" {
		return ErrTokenRequired
	}
	if t.ItineraryID == "" || t.SeatLabel == "" {
		return ErrSeatRequired
	}
	return Passenger{Name: t.PassengerName, Contact: t.Contact}.Validate()
}

// EventType はチケットイベントの種類
type EventType string

const (
	EventConfirmed EventType = "ticket.confirmed"
	EventCancelled EventType = "ticket.cancelled"
)

// Event は下流に配信するチケットの状態変化
type Event struct {
	Type          EventType               `json:"type"`
	TicketID      string                  `json:"ticket_id"`
	ItineraryID   string                  `json:"itinerary_id"`
	SeatLabel     string                  `json:"seat_label"`
	HolderID      string                  `json:"holder_id"`
	TransportType itinerary.TransportType `json:"transport_type"`
	OccurredAt    time.Time               `json:"occurred_at"`
}

// NewEvent はチケットからイベントを作成する
func NewEvent(typ EventType, t *Ticket, now time.Time) Event {
	return Event{
		Type:          typ,
		TicketID:      t.ID,
		ItineraryID:   t.ItineraryID,
		SeatLabel:     t.SeatLabel,
		HolderID:      t.HolderID,
		TransportType: t.TransportType,
		OccurredAt:    now.UTC(),
	}
}
