package itinerary

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validItinerary() *Itinerary {
	return NewItinerary("Brasília", "Goiânia", "Viação Real", time.Now().Add(48*time.Hour),
		TransportBus, ClassSemiLeito, 4, GridLayout(2, 2), 12000)
}

func TestNewItinerary(t *testing.T) {
	departure := time.Now().Add(24 * time.Hour)

	it := NewItinerary("Brasília", "São Paulo", "Azul", departure,
		TransportFlight, ClassEconomica, 6, GridLayout(2, 3), 45000)

	assert.Equal(t, "Brasília", it.Origin)
	assert.Equal(t, "São Paulo", it.Destination)
	assert.Equal(t, departure, it.DepartureAt)
	assert.Equal(t, TransportFlight, it.TransportType)
	assert.Equal(t, ClassEconomica, it.SeatClass)
	assert.Equal(t, 6, it.TotalSeats)
	assert.Equal(t, 45000, it.Price)
	assert.Equal(t, 0, it.Version)
	assert.NotZero(t, it.CreatedAt)
}

func TestItinerary_Validate(t *testing.T) {
	tests := []struct {
		name        string
		modify      func(it *Itinerary)
		expectedErr error
	}{
		{"有効な旅程", func(it *Itinerary) {}, nil},
		{"出発地が空", func(it *Itinerary) { it.Origin = "" }, ErrOriginRequired},
		{"目的地が空", func(it *Itinerary) { it.Destination = "" }, ErrDestinationRequired},
		{"出発日時が空", func(it *Itinerary) { it.DepartureAt = time.Time{} }, ErrDepartureRequired},
		{"交通手段が不正", func(it *Itinerary) { it.TransportType = "train" }, ErrInvalidTransportType},
		{"バスに航空便のクラス", func(it *Itinerary) { it.SeatClass = ClassPrimeiraClasse }, ErrSeatClassMismatch},
		{"航空便にバスの座席種別", func(it *Itinerary) {
			it.TransportType = TransportFlight
			it.SeatClass = ClassCamaLeito
		}, ErrSeatClassMismatch},
		{"EXECUTIVA は両方で有効", func(it *Itinerary) { it.SeatClass = ClassExecutiva }, nil},
		{"価格が負", func(it *Itinerary) { it.Price = -1 }, ErrInvalidPrice},
		{"座席数が0", func(it *Itinerary) { it.TotalSeats = 0 }, ErrInvalidTotalSeats},
		{"座席数が配置より多い", func(it *Itinerary) { it.TotalSeats = 5 }, ErrInvalidTotalSeats},
		{"座席数が配置より少ないのは有効", func(it *Itinerary) { it.TotalSeats = 3 }, nil},
		{"配置が空", func(it *Itinerary) { it.Layout = Layout{} }, ErrInvalidLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := validItinerary()
			tt.modify(it)
			err := it.Validate()
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestItinerary_HasDeparted(t *testing.T) {
	it := validItinerary()

	assert.False(t, it.HasDeparted(it.DepartureAt.Add(-time.Second)))
	assert.True(t, it.HasDeparted(it.DepartureAt))
	assert.True(t, it.HasDeparted(it.DepartureAt.Add(time.Second)))
}

func TestItinerary_SameInventory(t *testing.T) {
	a := validItinerary()
	b := validItinerary()
	b.Price = 99999
	b.Carrier = "outra"

	assert.True(t, a.SameInventory(b))

	b.TotalSeats = 3
	assert.False(t, a.SameInventory(b))

	b.TotalSeats = a.TotalSeats
	b.Layout = GridLayout(1, 4)
	assert.False(t, a.SameInventory(b))
}
