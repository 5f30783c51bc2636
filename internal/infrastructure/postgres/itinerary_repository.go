package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
)

const itineraryColumns = `id, origin, destination, departure_at, carrier, transport_type, seat_class, total_seats,
	layout_rows, layout_columns, seat_labels, row_width, price, created_at, updated_at, version`

// itineraryRow はDBの行を表す構造体
type itineraryRow struct {
	ID            string         `db:"id"`
	Origin        string         `db:"origin"`
	Destination   string         `db:"destination"`
	DepartureAt   time.Time      `db:"departure_at"`
	Carrier       string         `db:"carrier"`
	TransportType string         `db:"transport_type"`
	SeatClass     string         `db:"seat_class"`
	TotalSeats    int            `db:"total_seats"`
	LayoutRows    int            `db:"layout_rows"`
	LayoutColumns int            `db:"layout_columns"`
	SeatLabels    pq.StringArray `db:"seat_labels"`
	RowWidth      int            `db:"row_width"`
	Price         int            `db:"price"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`
	Version       int            `db:"version"`
}

func (r *itineraryRow) toEntity() *itinerary.Itinerary {
	layout := itinerary.GridLayout(r.LayoutRows, r.LayoutColumns)
	if len(r.SeatLabels) > 0 {
		layout = itinerary.ExplicitLayout(r.SeatLabels, r.RowWidth)
	}
	return &itinerary.Itinerary{
		ID:            r.ID,
		Origin:        r.Origin,
		Destination:   r.Destination,
		DepartureAt:   r.DepartureAt,
		Carrier:       r.Carrier,
		TransportType: itinerary.TransportType(r.TransportType),
		SeatClass:     itinerary.SeatClass(r.SeatClass),
		TotalSeats:    r.TotalSeats,
		Layout:        layout,
		Price:         r.Price,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Version:       r.Version,
	}
}

// seatLabels は明示ラベル配置の場合のみ配列を返す（グリッドは NULL）
func seatLabels(l itinerary.Layout) any {
	if !l.IsExplicit() {
		return nil
	}
	return pq.Array(l.Explicit)
}

// ItineraryRepository は旅程リポジトリのPostgreSQL実装
type ItineraryRepository struct {
	db *sqlx.DB
}

// NewItineraryRepository はItineraryRepositoryを作成する
func NewItineraryRepository(db *sqlx.DB) *ItineraryRepository {
	return &ItineraryRepository{db: db}
}

// Create は新しい旅程を作成する
func (r *ItineraryRepository) Create(ctx context.Context, it *itinerary.Itinerary) error {
	query := `
		INSERT INTO itineraries (origin, destination, departure_at, carrier, transport_type, seat_class, total_seats,
			layout_rows, layout_columns, seat_labels, row_width, price, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		it.Origin, it.Destination, it.DepartureAt, it.Carrier, string(it.TransportType), string(it.SeatClass), it.TotalSeats,
		it.Layout.Rows, it.Layout.Columns, seatLabels(it.Layout), it.Layout.RowWidth, it.Price, it.CreatedAt, it.UpdatedAt, it.Version,
	).Scan(&it.ID)
	if err != nil {
		return storeError("itinerary.create", "旅程作成に失敗しました", err)
	}
	return nil
}

// GetByID はIDから旅程を取得する
func (r *ItineraryRepository) GetByID(ctx context.Context, id string) (*itinerary.Itinerary, error) {
	var row itineraryRow
	err := r.db.GetContext(ctx, &row, `SELECT `+itineraryColumns+` FROM itineraries WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
			return nil, itinerary.ErrItineraryNotFound
		}
		return nil, storeError("itinerary.get", "旅程取得に失敗しました", err)
	}
	return row.toEntity(), nil
}

// Search は条件に合う旅程を出発日時順に取得する
func (r *ItineraryRepository) Search(ctx context.Context, f itinerary.SearchFilter) ([]*itinerary.Itinerary, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Origin != "" {
		add("lower(origin) = lower($%d)", f.Origin)
	}
	if f.Destination != "" {
		add("lower(destination) = lower($%d)", f.Destination)
	}
	if f.Date != nil {
		day := time.Date(f.Date.Year(), f.Date.Month(), f.Date.Day(), 0, 0, 0, 0, f.Date.Location())
		add("departure_at >= $%d", day)
		add("departure_at < $%d", day.AddDate(0, 0, 1))
	}
	if f.TransportType != "" {
		add("transport_type = $%d", string(f.TransportType))
	}

	query := `SELECT ` + itineraryColumns + ` FROM itineraries`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY departure_at ASC`
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var rows []itineraryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, storeError("itinerary.search", "旅程検索に失敗しました", err)
	}
	itineraries := make([]*itinerary.Itinerary, len(rows))
	for i := range rows {
		itineraries[i] = rows[i].toEntity()
	}
	return itineraries, nil
}

// Update は旅程を更新する（楽観的ロック）
func (r *ItineraryRepository) Update(ctx context.Context, it *itinerary.Itinerary) error {
	query := `
		UPDATE itineraries
		SET origin = $1, destination = $2, departure_at = $3, carrier = $4, transport_type = $5, seat_class = $6,
		    total_seats = $7, layout_rows = $8, layout_columns = $9, seat_labels = $10, row_width = $11, price = $12,
		    updated_at = $13, version = version + 1
		WHERE id = $14 AND version = $15
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		it.Origin, it.Destination, it.DepartureAt, it.Carrier, string(it.TransportType), string(it.SeatClass),
		it.TotalSeats, it.Layout.Rows, it.Layout.Columns, seatLabels(it.Layout), it.Layout.RowWidth, it.Price,
		now, it.ID, it.Version,
	)
	if err != nil {
		if isMalformedID(err) {
			return itinerary.ErrItineraryNotFound
		}
		return storeError("itinerary.update", "旅程更新に失敗しました", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		// 存在しないのかバージョン不一致なのかを区別する
		if _, err := r.GetByID(ctx, it.ID); err != nil {
			return err
		}
		return itinerary.ErrOptimisticLockConflict
	}

	it.Version++
	it.UpdatedAt = now
	return nil
}

// Delete は旅程を削除する
// チケットが1枚でも参照していれば削除できない
func (r *ItineraryRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM itineraries WHERE id = $1`, id)
	if err != nil {
		switch {
		case isPQCode(err, codeForeignKeyViolation):
			return itinerary.ErrItineraryHasBookings
		case isMalformedID(err):
			return itinerary.ErrItineraryNotFound
		}
		return storeError("itinerary.delete", "旅程削除に失敗しました", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return itinerary.ErrItineraryNotFound
	}
	return nil
}

// インターフェースを満たしているか確認
var _ itinerary.Repository = (*ItineraryRepository)(nil)
