package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/infrastructure/memory"
)

func busInput() ItineraryInput {
	return ItineraryInput{
		Origin:        "Brasília",
		Destination:   "Goiânia",
		DepartureAt:   time.Now().Add(48 * time.Hour),
		Carrier:       "Viação Real",
		TransportType: itinerary.TransportBus,
		SeatClass:     itinerary.ClassSemiLeito,
		TotalSeats:    4,
		Rows:          2,
		Columns:       2,
		Price:         12000,
	}
}

func TestCatalogService_CreateItinerary(t *testing.T) {
	t.Run("正常に作成できる", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		service := NewCatalogService(repo, memory.NewLedger())
		repo.On("Create", mock.Anything, mock.AnythingOfType("*itinerary.Itinerary")).Return(nil)

		it, err := service.CreateItinerary(context.Background(), busInput())

		require.NoError(t, err)
		assert.Equal(t, "Brasília", it.Origin)
		assert.Equal(t, 4, it.TotalSeats)
		assert.Equal(t, []string{"1A", "1B", "2A", "2B"}, it.Layout.Labels())
		repo.AssertExpectations(t)
	})

	t.Run("明示ラベルで作成できる", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		service := NewCatalogService(repo, memory.NewLedger())
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		in := busInput()
		in.Rows, in.Columns = 0, 0
		in.SeatLabels = []string{"01", "02", "03", "04"}
		in.RowWidth = 2
		it, err := service.CreateItinerary(context.Background(), in)

		require.NoError(t, err)
		assert.Equal(t, [][]string{{"01", "02"}, {"03", "04"}}, it.Layout.Grid())
	})

	t.Run("グリッドと明示ラベルの両方はエラー", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		service := NewCatalogService(repo, memory.NewLedger())

		in := busInput()
		in.SeatLabels = []string{"1", "2"}
		_, err := service.CreateItinerary(context.Background(), in)

		assert.ErrorIs(t, err, itinerary.ErrAmbiguousLayout)
		repo.AssertNotCalled(t, "Create")
	})

	t.Run("交通手段と座席クラスの不一致はエラー", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		service := NewCatalogService(repo, memory.NewLedger())

		in := busInput()
		in.SeatClass = itinerary.ClassPrimeiraClasse
		_, err := service.CreateItinerary(context.Background(), in)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "バリデーションエラー")
		assert.ErrorIs(t, err, itinerary.ErrSeatClassMismatch)
	})

	t.Run("リポジトリエラー", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		service := NewCatalogService(repo, memory.NewLedger())
		repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("database error"))

		_, err := service.CreateItinerary(context.Background(), busInput())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "旅程作成に失敗しました")
	})
}

func TestCatalogService_SearchItineraries(t *testing.T) {
	tests := []struct {
		name           string
		input          itinerary.SearchFilter
		expectedLimit  int
		expectedOffset int
	}{
		{"既定値", itinerary.SearchFilter{}, 20, 0},
		{"上限を超える", itinerary.SearchFilter{Limit: 500}, 100, 0},
		{"負のオフセット", itinerary.SearchFilter{Limit: 10, Offset: -3}, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockItineraryRepository)
			service := NewCatalogService(repo, memory.NewLedger())
			repo.On("Search", mock.Anything, mock.MatchedBy(func(f itinerary.SearchFilter) bool {
				return f.Limit == tt.expectedLimit && f.Offset == tt.expectedOffset
			})).Return([]*itinerary.Itinerary{}, nil)

			_, err := service.SearchItineraries(context.Background(), tt.input)

			require.NoError(t, err)
			repo.AssertExpectations(t)
		})
	}

	t.Run("不明な交通手段はエラー", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		service := NewCatalogService(repo, memory.NewLedger())

		_, err := service.SearchItineraries(context.Background(), itinerary.SearchFilter{TransportType: "train"})

		assert.ErrorIs(t, err, itinerary.ErrInvalidTransportType)
		repo.AssertNotCalled(t, "Search")
	})
}

func holdSeat(t *testing.T, ledger reservation.Ledger, itineraryID, label string) {
	t.Helper()
	_, err := ledger.TryHold(context.Background(), reservation.HoldRequest{
		ItineraryID: itineraryID,
		SeatLabel:   label,
		HolderID:    "user-1",
		Token:       "tok-" + itineraryID + "-" + label,
		TTL:         time.Minute,
		Capacity:    10,
	})
	require.NoError(t, err)
}

func TestCatalogService_UpdateItinerary(t *testing.T) {
	existing := func() *itinerary.Itinerary {
		in := busInput()
		it := itinerary.NewItinerary(in.Origin, in.Destination, in.Carrier, in.DepartureAt,
			in.TransportType, in.SeatClass, in.TotalSeats, itinerary.GridLayout(2, 2), in.Price)
		it.ID = "itin-1"
		return it
	}

	t.Run("予約が無ければ座席構成を変更できる", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		service := NewCatalogService(repo, memory.NewLedger())
		repo.On("GetByID", mock.Anything, "itin-1").Return(existing(), nil)
		repo.On("Update", mock.Anything, mock.AnythingOfType("*itinerary.Itinerary")).Return(nil)

		in := busInput()
		in.Rows = 3
		in.TotalSeats = 6
		it, err := service.UpdateItinerary(context.Background(), "itin-1", in)

		require.NoError(t, err)
		assert.Equal(t, 6, it.TotalSeats)
		repo.AssertExpectations(t)
	})

	t.Run("予約があると座席構成は変更できない", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		ledger := memory.NewLedger()
		holdSeat(t, ledger, "itin-1", "1A")
		service := NewCatalogService(repo, ledger)
		repo.On("GetByID", mock.Anything, "itin-1").Return(existing(), nil)

		in := busInput()
		in.TotalSeats = 3
		_, err := service.UpdateItinerary(context.Background(), "itin-1", in)

		assert.ErrorIs(t, err, itinerary.ErrItineraryHasBookings)
		repo.AssertNotCalled(t, "Update")
	})

	t.Run("予約があっても価格は変更できる", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		ledger := memory.NewLedger()
		holdSeat(t, ledger, "itin-1", "1A")
		service := NewCatalogService(repo, ledger)
		repo.On("GetByID", mock.Anything, "itin-1").Return(existing(), nil)
		repo.On("Update", mock.Anything, mock.Anything).Return(nil)

		in := busInput()
		in.Price = 15000
		it, err := service.UpdateItinerary(context.Background(), "itin-1", in)

		require.NoError(t, err)
		assert.Equal(t, 15000, it.Price)
	})

	t.Run("存在しない旅程", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		service := NewCatalogService(repo, memory.NewLedger())
		repo.On("GetByID", mock.Anything, "missing").Return(nil, itinerary.ErrItineraryNotFound)

		_, err := service.UpdateItinerary(context.Background(), "missing", busInput())

		assert.ErrorIs(t, err, itinerary.ErrItineraryNotFound)
	})
}

func TestCatalogService_DeleteItinerary(t *testing.T) {
	it := &itinerary.Itinerary{ID: "itin-1"}

	t.Run("予約が無ければ削除できる", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		service := NewCatalogService(repo, memory.NewLedger())
		repo.On("GetByID", mock.Anything, "itin-1").Return(it, nil)
		repo.On("Delete", mock.Anything, "itin-1").Return(nil)

		require.NoError(t, service.DeleteItinerary(context.Background(), "itin-1"))
		repo.AssertExpectations(t)
	})

	t.Run("予約があると削除できない", func(t *testing.T) {
		repo := new(MockItineraryRepository)
		ledger := memory.NewLedger()
		holdSeat(t, ledger, "itin-1", "2B")
		service := NewCatalogService(repo, ledger)
		repo.On("GetByID", mock.Anything, "itin-1").Return(it, nil)

		err := service.DeleteItinerary(context.Background(), "itin-1")

		assert.ErrorIs(t, err, itinerary.ErrItineraryHasBookings)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}
