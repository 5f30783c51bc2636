package ticket

import (
	"context"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
)

// SearchFilter は乗客検索の条件
type SearchFilter struct {
	ItineraryID   string
	TransportType itinerary.TransportType
	PassengerName string // 部分一致（大文字小文字を区別しない）
	HolderID      string
	Limit         int
	Offset        int
}

// Repository はチケットストアのインターフェース
type Repository interface {
	// Create はチケットを作成する
	// 同じトークンのチケットが既にあればそれを返す（冪等）
	Create(ctx context.Context, t *Ticket) (*Ticket, error)

	// GetByID はIDからチケットを取得する
	GetByID(ctx context.Context, id string) (*Ticket, error)

	// GetByToken は冪等性トークンからチケットを取得する
	GetByToken(ctx context.Context, token string) (*Ticket, error)

	// Search は条件に合うチケットを作成日時の新しい順に取得する
	Search(ctx context.Context, filter SearchFilter) ([]*Ticket, error)

	// ListConfirmed は CONFIRMED のチケットを取得する（itineraryID が空なら全旅程）
	ListConfirmed(ctx context.Context, itineraryID string) ([]*Ticket, error)

	// UpdateStatus はチケットの状態を更新する
	UpdateStatus(ctx context.Context, t *Ticket) error

	// UpdatePassenger は乗客情報を更新する
	UpdatePassenger(ctx context.Context, t *Ticket) error
}
