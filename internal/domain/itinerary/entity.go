package itinerary

import "time"

// TransportType は交通手段を表す
type TransportType string

const (
	TransportBus    TransportType = "bus"
	TransportFlight TransportType = "flight"
)

// SeatClass は座席クラスを表す
type SeatClass string

// 航空便の座席クラス
const (
	ClassEconomica      SeatClass = "ECONOMICA"
	ClassExecutiva      SeatClass = "EXECUTIVA"
	ClassPrimeiraClasse SeatClass = "PRIMEIRA_CLASSE"
)

// バスの座席種別（EXECUTIVA は航空便と共通）
const (
	ClassCamaLeito    SeatClass = "CAMA_LEITO"
	ClassSemiLeito    SeatClass = "SEMI_LEITO"
	ClassConvencional SeatClass = "CONVENCIONAL"
)

var seatClassesByTransport = map[TransportType][]SeatClass{
	TransportFlight: {ClassEconomica, ClassExecutiva, ClassPrimeiraClasse},
	TransportBus:    {ClassCamaLeito, ClassSemiLeito, ClassExecutiva, ClassConvencional},
}

// IsValid は交通手段が定義済みかを返す
func (t TransportType) IsValid() bool {
	_, ok := seatClassesByTransport[t]
	return ok
}

// Allows は座席クラスが交通手段で利用できるかを返す
func (t TransportType) Allows(c SeatClass) bool {
	for _, allowed := range seatClassesByTransport[t] {
		if allowed == c {
			return true
		}
	}
	return false
}

// Itinerary は旅程エンティティを表す
type Itinerary struct {
	ID            string
	Origin        string
	Destination   string
	DepartureAt   time.Time
	Carrier       string
	TransportType TransportType
	SeatClass     SeatClass
	TotalSeats    int // 同時に HELD/SOLD にできる座席数の上限
	Layout        Layout
	Price         int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int // 楽観的ロック用
}

// NewItinerary は新しい旅程を作成する
func NewItinerary(origin, destination, carrier string, departureAt time.Time, transport TransportType, class SeatClass, totalSeats int, layout Layout, price int) *Itinerary {
	now := time.Now()
	return &Itinerary{
		Origin:        origin,
		Destination:   destination,
		DepartureAt:   departureAt,
		Carrier:       carrier,
		TransportType: transport,
		SeatClass:     class,
		TotalSeats:    totalSeats,
		Layout:        layout,
		Price:         price,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       0,
	}
}

// HasDeparted は指定時刻に出発済みかを返す
func (i *Itinerary) HasDeparted(now time.Time) bool {
	return !now.Before(i.DepartureAt)
}

// SeatLabels はレイアウトから導出した座席ラベルを返す
func (i *Itinerary) SeatLabels() []string {
	return i.Layout.Labels()
}

// HasSeat は座席ラベルが存在するかを返す
func (i *Itinerary) HasSeat(label string) bool {
	return i.Layout.Contains(label)
}

// SameInventory は座席在庫に関わる項目が一致するかを返す
func (i *Itinerary) SameInventory(other *Itinerary) bool {
	return i.TotalSeats == other.TotalSeats && i.Layout.Equal(other.Layout)
}

// Validate は旅程の検証を行う
func (i *Itinerary) Validate() error {
	if i.Origin == "" {
		return ErrOriginRequired
	}
	if i.Destination == "" {
		return ErrDestinationRequired
	}
	if i.DepartureAt.IsZero() {
		return ErrDepartureRequired
	}
	if !i.TransportType.IsValid() {
		return ErrInvalidTransportType
	}
	if !i.TransportType.Allows(i.SeatClass) {
		return ErrSeatClassMismatch
	}
	if i.Price < 0 {
		return ErrInvalidPrice
	}
	if err := i.Layout.Validate(); err != nil {
		return err
	}
	if i.TotalSeats <= 0 || i.TotalSeats > i.Layout.Size() {
		return ErrInvalidTotalSeats
	}
	return nil
}
