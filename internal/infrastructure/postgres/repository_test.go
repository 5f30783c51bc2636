package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/ticket"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return sqlx.NewDb(db, "postgres"), mock
}

var itineraryRowColumns = []string{
	"id", "origin", "destination", "departure_at", "carrier", "transport_type", "seat_class", "total_seats",
	"layout_rows", "layout_columns", "seat_labels", "row_width", "price", "created_at", "updated_at", "version",
}

var ticketRowColumns = []string{
	"id", "token", "holder_id", "passenger_name", "contact", "itinerary_id", "seat_label", "transport_type",
	"seat_class", "price", "status", "created_at", "updated_at", "cancelled_at",
}

func TestItineraryRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewItineraryRepository(db)

	it := itinerary.NewItinerary("Brasília", "Salvador", "Azul", time.Now().Add(48*time.Hour),
		itinerary.TransportFlight, itinerary.ClassEconomica, 3, itinerary.ExplicitLayout([]string{"12A", "12B", "14A"}, 2), 52000)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO itineraries")).
		WithArgs("Brasília", "Salvador", sqlmock.AnyArg(), "Azul", "flight", "ECONOMICA", 3,
			0, 0, sqlmock.AnyArg(), 2, 52000, sqlmock.AnyArg(), sqlmock.AnyArg(), 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("itin-1"))

	require.NoError(t, repo.Create(context.Background(), it))
	assert.Equal(t, "itin-1", it.ID)
}

func TestItineraryRepository_GetByID(t *testing.T) {
	now := time.Now()

	t.Run("グリッド配置の旅程を取得できる", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM itineraries WHERE id = $1")).
			WithArgs("itin-1").
			WillReturnRows(sqlmock.NewRows(itineraryRowColumns).AddRow(
				"itin-1", "Brasília", "Goiânia", now, "Real", "bus", "SEMI_LEITO", 40,
				10, 4, nil, 0, 9000, now, now, 2,
			))

		it, err := repo.GetByID(context.Background(), "itin-1")
		require.NoError(t, err)
		assert.Equal(t, itinerary.TransportBus, it.TransportType)
		assert.Equal(t, itinerary.GridLayout(10, 4), it.Layout)
		assert.Equal(t, 2, it.Version)
	})

	t.Run("明示ラベルの旅程を取得できる", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM itineraries WHERE id = $1")).
			WithArgs("itin-2").
			WillReturnRows(sqlmock.NewRows(itineraryRowColumns).AddRow(
				"itin-2", "Recife", "Natal", now, "GOL", "flight", "EXECUTIVA", 2,
				0, 0, "{1A,1B}", 2, 70000, now, now, 0,
			))

		it, err := repo.GetByID(context.Background(), "itin-2")
		require.NoError(t, err)
		assert.True(t, it.Layout.IsExplicit())
		assert.Equal(t, []string{"1A", "1B"}, it.SeatLabels())
	})

	t.Run("存在しない旅程はErrItineraryNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM itineraries WHERE id = $1")).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByID(context.Background(), "missing")
		assert.ErrorIs(t, err, itinerary.ErrItineraryNotFound)
	})

	t.Run("UUIDでないIDは見つからない扱い", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM itineraries WHERE id = $1")).
			WithArgs("abc").
			WillReturnError(&pq.Error{Code: "22P02"})

		_, err := repo.GetByID(context.Background(), "abc")
		assert.ErrorIs(t, err, itinerary.ErrItineraryNotFound)
	})

	t.Run("接続障害は一時的な障害", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM itineraries WHERE id = $1")).
			WithArgs("itin-1").
			WillReturnError(&pq.Error{Code: "08006"})

		_, err := repo.GetByID(context.Background(), "itin-1")
		assert.ErrorIs(t, err, reservation.ErrTransient)
		assert.NotErrorIs(t, err, itinerary.ErrItineraryNotFound)
	})

	t.Run("それ以外のDBエラーは一時的な障害として扱わない", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM itineraries WHERE id = $1")).
			WithArgs("itin-1").
			WillReturnError(&pq.Error{Code: "42P01"})

		_, err := repo.GetByID(context.Background(), "itin-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, reservation.ErrTransient)
	})
}

func TestItineraryRepository_Search(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewItineraryRepository(db)
	date := time.Date(2026, 5, 10, 15, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE lower(origin) = lower($1) AND lower(destination) = lower($2) AND departure_at >= $3 AND departure_at < $4 AND transport_type = $5 ORDER BY departure_at ASC LIMIT $6 OFFSET $7",
	)).
		WithArgs("brasília", "são paulo",
			time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC), time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC),
			"bus", 20, 0).
		WillReturnRows(sqlmock.NewRows(itineraryRowColumns))

	result, err := repo.Search(context.Background(), itinerary.SearchFilter{
		Origin:        "brasília",
		Destination:   "são paulo",
		Date:          &date,
		TransportType: itinerary.TransportBus,
	})
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestItineraryRepository_Update(t *testing.T) {
	now := time.Now()

	t.Run("バージョンが一致すれば更新される", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)
		it := itinerary.NewItinerary("A", "B", "C", now, itinerary.TransportBus, itinerary.ClassConvencional, 4, itinerary.GridLayout(2, 2), 100)
		it.ID = "itin-1"
		it.Version = 3

		mock.ExpectExec(regexp.QuoteMeta("UPDATE itineraries")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Update(context.Background(), it))
		assert.Equal(t, 4, it.Version)
	})

	t.Run("バージョン不一致は競合", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)
		it := itinerary.NewItinerary("A", "B", "C", now, itinerary.TransportBus, itinerary.ClassConvencional, 4, itinerary.GridLayout(2, 2), 100)
		it.ID = "itin-1"

		mock.ExpectExec(regexp.QuoteMeta("UPDATE itineraries")).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta("FROM itineraries WHERE id = $1")).
			WithArgs("itin-1").
			WillReturnRows(sqlmock.NewRows(itineraryRowColumns).AddRow(
				"itin-1", "A", "B", now, "C", "bus", "CONVENCIONAL", 4, 2, 2, nil, 0, 100, now, now, 1,
			))

		assert.ErrorIs(t, repo.Update(context.Background(), it), itinerary.ErrOptimisticLockConflict)
	})
}

func TestItineraryRepository_Delete(t *testing.T) {
	t.Run("チケットが参照していると削除できない", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM itineraries")).
			WithArgs("itin-1").
			WillReturnError(&pq.Error{Code: "23503"})

		assert.ErrorIs(t, repo.Delete(context.Background(), "itin-1"), itinerary.ErrItineraryHasBookings)
	})

	t.Run("存在しない旅程", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM itineraries")).
			WithArgs("itin-x").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(context.Background(), "itin-x"), itinerary.ErrItineraryNotFound)
	})

	t.Run("UUIDでないIDは見つからない扱い", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewItineraryRepository(db)

		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM itineraries")).
			WithArgs("abc").
			WillReturnError(&pq.Error{Code: "22P02"})

		assert.ErrorIs(t, repo.Delete(context.Background(), "abc"), itinerary.ErrItineraryNotFound)
	})
}

func newTestTicket() *ticket.Ticket {
	it := itinerary.NewItinerary("A", "B", "C", time.Now().Add(time.Hour), itinerary.TransportFlight, itinerary.ClassEconomica, 4, itinerary.GridLayout(2, 2), 30000)
	it.ID = "itin-1"
	return ticket.NewTicket("tok-1", "user-1", ticket.Passenger{Name: "Maria", Contact: "maria@example.com"}, it, "1A")
}

func TestTicketRepository_Create(t *testing.T) {
	now := time.Now()

	t.Run("新しいチケットを作成できる", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTicketRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (token) DO NOTHING")).
			WithArgs("tok-1", "user-1", "Maria", "maria@example.com", "itin-1", "1A", "flight", "ECONOMICA", 30000,
				"CONFIRMED", sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("ticket-1"))

		created, err := repo.Create(context.Background(), newTestTicket())
		require.NoError(t, err)
		assert.Equal(t, "ticket-1", created.ID)
	})

	t.Run("同じトークンなら既存のチケットを返す", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTicketRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (token) DO NOTHING")).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE token = $1")).
			WithArgs("tok-1").
			WillReturnRows(sqlmock.NewRows(ticketRowColumns).AddRow(
				"ticket-1", "tok-1", "user-1", "Maria", "maria@example.com", "itin-1", "1A", "flight",
				"ECONOMICA", 30000, "CONFIRMED", now, now, nil,
			))

		existing, err := repo.Create(context.Background(), newTestTicket())
		require.NoError(t, err)
		assert.Equal(t, "ticket-1", existing.ID)
		assert.Equal(t, ticket.StatusConfirmed, existing.Status)
	})

	t.Run("同じ座席の有効なチケットがあれば拒否", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTicketRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (token) DO NOTHING")).
			WillReturnError(&pq.Error{Code: "23505"})

		_, err := repo.Create(context.Background(), newTestTicket())
		assert.ErrorIs(t, err, ticket.ErrSeatAlreadyTicketed)
	})
}

func TestTicketRepository_GetByID(t *testing.T) {
	t.Run("UUIDでないIDは見つからない扱い", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTicketRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = $1")).
			WithArgs("abc").
			WillReturnError(&pq.Error{Code: "22P02"})

		_, err := repo.GetByID(context.Background(), "abc")
		assert.ErrorIs(t, err, ticket.ErrTicketNotFound)
	})

	t.Run("接続障害は一時的な障害", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTicketRepository(db)

		mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE id = $1")).
			WithArgs("ticket-1").
			WillReturnError(&pq.Error{Code: "57P01"})

		_, err := repo.GetByID(context.Background(), "ticket-1")
		assert.ErrorIs(t, err, reservation.ErrTransient)
	})
}

func TestTicketRepository_ListConfirmed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTicketRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM tickets WHERE status = $1 AND itinerary_id = $2 ORDER BY created_at ASC")).
		WithArgs("CONFIRMED", "itin-1").
		WillReturnRows(sqlmock.NewRows(ticketRowColumns).AddRow(
			"ticket-1", "tok-1", "user-1", "Maria", "maria@example.com", "itin-1", "1A", "flight",
			"ECONOMICA", 30000, "CONFIRMED", now, now, nil,
		))

	result, err := repo.ListConfirmed(context.Background(), "itin-1")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "tok-1", result[0].Token)
	assert.Equal(t, ticket.StatusConfirmed, result[0].Status)
}

func TestTicketRepository_Search(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewTicketRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(
		"WHERE itinerary_id = $1 AND transport_type = $2 AND passenger_name ILIKE '%' || $3 || '%' ORDER BY created_at DESC LIMIT $4 OFFSET $5",
	)).
		WithArgs("itin-1", "bus", `50\%`, 50, 0).
		WillReturnRows(sqlmock.NewRows(ticketRowColumns).AddRow(
			"ticket-1", "tok-1", "user-1", "Maria 50%", "x", "itin-1", "1A", "bus",
			"SEMI_LEITO", 9000, "CANCELLED", now, now, now,
		))

	result, err := repo.Search(context.Background(), ticket.SearchFilter{
		ItineraryID:   "itin-1",
		TransportType: itinerary.TransportBus,
		PassengerName: " 50% ",
	})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.True(t, result[0].IsCancelled())
	require.NotNil(t, result[0].CancelledAt)
}

func TestTicketRepository_UpdateStatus(t *testing.T) {
	t.Run("状態を更新できる", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTicketRepository(db)
		tk := newTestTicket()
		tk.ID = "ticket-1"
		require.NoError(t, tk.Cancel(time.Now()))

		mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status = $1")).
			WithArgs("CANCELLED", sqlmock.AnyArg(), sqlmock.AnyArg(), "ticket-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.UpdateStatus(context.Background(), tk))
	})

	t.Run("存在しないチケット", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTicketRepository(db)
		tk := newTestTicket()
		tk.ID = "missing"

		mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET passenger_name = $1")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.UpdatePassenger(context.Background(), tk), ticket.ErrTicketNotFound)
	})

	t.Run("接続障害は一時的な障害", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTicketRepository(db)
		tk := newTestTicket()
		tk.ID = "ticket-1"
		require.NoError(t, tk.Cancel(time.Now()))

		mock.ExpectExec(regexp.QuoteMeta("UPDATE tickets SET status = $1")).
			WillReturnError(&pq.Error{Code: "08003"})

		assert.ErrorIs(t, repo.UpdateStatus(context.Background(), tk), reservation.ErrTransient)
	})
}
