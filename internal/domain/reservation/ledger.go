package reservation

import (
	"context"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
)

// Ledger は座席状態の唯一の正本
// FREE/HELD/SOLD の遷移は Ledger のみが行う。同じ（旅程, 座席）への操作は直列化され、
// 異なる座席同士は競合しない
type Ledger interface {
	// TryHold は座席が FREE の場合にのみ仮押さえを作成する
	// 同じ（保持者, トークン）の再試行には既存の仮押さえを返す
	TryHold(ctx context.Context, req HoldRequest) (*Hold, error)

	// Confirm は有効な仮押さえを SOLD にする（同じトークンの再試行は同じ結果を返す）
	Confirm(ctx context.Context, itineraryID, seatLabel, token string) (*Hold, error)

	// Release は仮押さえを解放する（既に無い場合は何もしない）
	Release(ctx context.Context, itineraryID, seatLabel, token string) error

	// CancelSale は販売済みの座席を FREE に戻す
	// token が空でなければそのトークンの販売のみを対象にする
	CancelSale(ctx context.Context, itineraryID, seatLabel, token string) error

	// RestoreSale はチケットストアにある販売を台帳に書き戻す
	// 同じトークンで SOLD なら何もせず、別のトークンで SOLD なら ErrAlreadySold
	// HELD の仮押さえは販売で置き換える。容量の上限は確認しない
	RestoreSale(ctx context.Context, sale *Hold) error

	// Lookup はトークンから現在の仮押さえ・販売を取得する
	Lookup(ctx context.Context, token string) (*Hold, error)

	// Snapshot は旅程の FREE 以外の座席状態を返す
	Snapshot(ctx context.Context, itineraryID string) (map[string]seat.Status, error)

	// Occupancy は旅程の HELD/SOLD 座席数を返す
	Occupancy(ctx context.Context, itineraryID string) (int, error)

	// SweepExpired は期限切れの仮押さえを回収し、件数を返す
	SweepExpired(ctx context.Context) (int, error)
}
