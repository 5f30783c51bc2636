package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/ticket"
)

const ticketColumns = `id, token, holder_id, passenger_name, contact, itinerary_id, seat_label, transport_type,
	seat_class, price, status, created_at, updated_at, cancelled_at`

type ticketRow struct {
	ID            string     `db:"id"`
	Token         string     `db:"token"`
	HolderID      string     `db:"holder_id"`
	PassengerName string     `db:"passenger_name"`
	Contact       string     `db:"contact"`
	ItineraryID   string     `db:"itinerary_id"`
	SeatLabel     string     `db:"seat_label"`
	TransportType string     `db:"transport_type"`
	SeatClass     string     `db:"seat_class"`
	Price         int        `db:"price"`
	Status        string     `db:"status"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	CancelledAt   *time.Time `db:"cancelled_at"`
}

func (r *ticketRow) toEntity() *ticket.Ticket {
	return &ticket.Ticket{
		ID:            r.ID,
		Token:         r.Token,
		HolderID:      r.HolderID,
		PassengerName: r.PassengerName,
		Contact:       r.Contact,
		ItineraryID:   r.ItineraryID,
		SeatLabel:     r.SeatLabel,
		TransportType: itinerary.TransportType(r.TransportType),
		SeatClass:     itinerary.SeatClass(r.SeatClass),
		Price:         r.Price,
		Status:        ticket.Status(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		CancelledAt:   r.CancelledAt,
	}
}

// TicketRepository はチケットストアのPostgreSQL実装
type TicketRepository struct {
	db *sqlx.DB
}

// NewTicketRepository はTicketRepositoryを作成する
func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

// Create はチケットを作成する
// 同じトークンのチケットが既にあれば、新しく作らずにそれを返す
func (r *TicketRepository) Create(ctx context.Context, t *ticket.Ticket) (*ticket.Ticket, error) {
	query := `
		INSERT INTO tickets (token, holder_id, passenger_name, contact, itinerary_id, seat_label, transport_type,
			seat_class, price, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (token) DO NOTHING
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query,
		t.Token, t.HolderID, t.PassengerName, t.Contact, t.ItineraryID, t.SeatLabel, string(t.TransportType),
		string(t.SeatClass), t.Price, string(t.Status), t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	switch {
	case err == nil:
		return t, nil
	case errors.Is(err, sql.ErrNoRows):
		return r.GetByToken(ctx, t.Token)
	case isPQCode(err, codeUniqueViolation):
		return nil, ticket.ErrSeatAlreadyTicketed
	default:
		return nil, storeError("ticket.create", "チケット作成に失敗しました", err)
	}
}

// GetByID はIDからチケットを取得する
func (r *TicketRepository) GetByID(ctx context.Context, id string) (*ticket.Ticket, error) {
	return r.getOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, id)
}

// GetByToken は冪等性トークンからチケットを取得する
func (r *TicketRepository) GetByToken(ctx context.Context, token string) (*ticket.Ticket, error) {
	return r.getOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE token = $1`, token)
}

func (r *TicketRepository) getOne(ctx context.Context, query string, arg string) (*ticket.Ticket, error) {
	var row ticketRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
			return nil, ticket.ErrTicketNotFound
		}
		return nil, storeError("ticket.get", "チケット取得に失敗しました", err)
	}
	return row.toEntity(), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search は条件に合うチケットを作成日時の新しい順に取得する
func (r *TicketRepository) Search(ctx context.Context, f ticket.SearchFilter) ([]*ticket.Ticket, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.ItineraryID != "" {
		add("itinerary_id = $%d", f.ItineraryID)
	}
	if f.TransportType != "" {
		add("transport_type = $%d", string(f.TransportType))
	}
	if f.HolderID != "" {
		add("holder_id = $%d", f.HolderID)
	}
	if name := strings.TrimSpace(f.PassengerName); name != "" {
		add("passenger_name ILIKE '%%' || $%d || '%%'", likeEscaper.Replace(name))
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		if isMalformedID(err) {
			return []*ticket.Ticket{}, nil
		}
		return nil, storeError("ticket.search", "チケット検索に失敗しました", err)
	}
	return toTickets(rows), nil
}

// ListConfirmed は CONFIRMED のチケットを作成日時順に取得する
// itineraryID が空なら全旅程が対象
func (r *TicketRepository) ListConfirmed(ctx context.Context, itineraryID string) ([]*ticket.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE status = $1`
	args := []any{string(ticket.StatusConfirmed)}
	if itineraryID != "" {
		query += ` AND itinerary_id = $2`
		args = append(args, itineraryID)
	}
	query += ` ORDER BY created_at ASC`

	var rows []ticketRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		if isMalformedID(err) {
			return []*ticket.Ticket{}, nil
		}
		return nil, storeError("ticket.listConfirmed", "有効なチケットの取得に失敗しました", err)
	}
	return toTickets(rows), nil
}

func toTickets(rows []ticketRow) []*ticket.Ticket {
	tickets := make([]*ticket.Ticket, len(rows))
	for i := range rows {
		tickets[i] = rows[i].toEntity()
	}
	return tickets
}

// UpdateStatus はチケットの状態を更新する
func (r *TicketRepository) UpdateStatus(ctx context.Context, t *ticket.Ticket) error {
	return r.exec(ctx, "チケット状態の更新",
		`UPDATE tickets SET status = $1, cancelled_at = $2, updated_at = $3 WHERE id = $4`,
		string(t.Status), t.CancelledAt, t.UpdatedAt, t.ID,
	)
}

// UpdatePassenger は乗客情報を更新する
func (r *TicketRepository) UpdatePassenger(ctx context.Context, t *ticket.Ticket) error {
	return r.exec(ctx, "乗客情報の更新",
		`UPDATE tickets SET passenger_name = $1, contact = $2, updated_at = $3 WHERE id = $4`,
		t.PassengerName, t.Contact, t.UpdatedAt, t.ID,
	)
}

func (r *TicketRepository) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isMalformedID(err) {
			return ticket.ErrTicketNotFound
		}
		return storeError("ticket.update", op+"に失敗しました", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return ticket.ErrTicketNotFound
	}
	return nil
}

// インターフェースを満たしているか確認
var _ ticket.Repository = (*TicketRepository)(nil)
