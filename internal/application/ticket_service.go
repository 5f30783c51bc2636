package application

import (
	"context"
	"fmt"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/ticket"
)

// TicketService は発行済みチケットの参照と乗客情報の管理を扱う
type TicketService struct {
	ticketRepo ticket.Repository
}

func NewTicketService(ticketRepo ticket.Repository) *TicketService {
	return &TicketService{ticketRepo: ticketRepo}
}

// GetTicket はチケットを取得する
// holderID が空でなければ、その保持者のチケットのみ返す
func (s *TicketService) GetTicket(ctx context.Context, id, holderID string) (*ticket.Ticket, error) {
	tk, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if holderID != "" && tk.HolderID != holderID {
		return nil, ticket.ErrTicketNotFound
	}
	return tk, nil
}

// ListMyTickets は保持者のチケットを新しい順に返す
func (s *TicketService) ListMyTickets(ctx context.Context, holderID string, limit, offset int) ([]*ticket.Ticket, error) {
	return s.search(ctx, ticket.SearchFilter{HolderID: holderID, Limit: limit, Offset: offset})
}

// SearchPassengers はオペレーター向けの乗客検索
func (s *TicketService) SearchPassengers(ctx context.Context, filter ticket.SearchFilter) ([]*ticket.Ticket, error) {
	return s.search(ctx, filter)
}

func (s *TicketService) search(ctx context.Context, filter ticket.SearchFilter) ([]*ticket.Ticket, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.ticketRepo.Search(ctx, filter)
}

// UpdatePassenger は乗客の氏名と連絡先を更新する
func (s *TicketService) UpdatePassenger(ctx context.Context, id string, p ticket.Passenger) (*ticket.Ticket, error) {
	tk, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := tk.UpdatePassenger(p); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.ticketRepo.UpdatePassenger(ctx, tk); err != nil {
		return nil, fmt.Errorf("乗客情報の更新に失敗: %w", err)
	}
	return tk, nil
}
