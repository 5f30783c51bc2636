package itinerary

import (
	"context"
	"time"
)

// SearchFilter は旅程検索の条件
// 空の項目は条件に含めない
type SearchFilter struct {
	Origin        string
	Destination   string
	Date          *time.Time // 出発日（時刻は無視する）
	TransportType TransportType
	Limit         int
	Offset        int
}

// Repository は旅程リポジトリのインターフェース
type Repository interface {
	// Create は新しい旅程を作成する
	Create(ctx context.Context, itinerary *Itinerary) error

	// GetByID はIDから旅程を取得する
	GetByID(ctx context.Context, id string) (*Itinerary, error)

	// Search は条件に合う旅程を出発日時順に取得する
	Search(ctx context.Context, filter SearchFilter) ([]*Itinerary, error)

	// Update は旅程を更新する（楽観的ロック）
	Update(ctx context.Context, itinerary *Itinerary) error

	// Delete は旅程を削除する
	Delete(ctx context.Context, id string) error
}
