package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
)

// CatalogService はオペレーターによる旅程の管理と旅行者の検索を扱う
type CatalogService struct {
	itineraryRepo itinerary.Repository
	ledger        reservation.Ledger
}

func NewCatalogService(itineraryRepo itinerary.Repository, ledger reservation.Ledger) *CatalogService {
	return &CatalogService{itineraryRepo: itineraryRepo, ledger: ledger}
}

type ItineraryInput struct {
	Origin        string
	Destination   string
	DepartureAt   time.Time
	Carrier       string
	TransportType itinerary.TransportType
	SeatClass     itinerary.SeatClass
	TotalSeats    int
	Rows          int
	Columns       int
	SeatLabels    []string
	RowWidth      int
	Price         int
}

func (in ItineraryInput) layout() itinerary.Layout {
	return itinerary.Layout{Rows: in.Rows, Columns: in.Columns, Explicit: in.SeatLabels, RowWidth: in.RowWidth}
}

func (s *CatalogService) CreateItinerary(ctx context.Context, input ItineraryInput) (*itinerary.Itinerary, error) {
	it := itinerary.NewItinerary(
		strings.TrimSpace(input.Origin), strings.TrimSpace(input.Destination), strings.TrimSpace(input.Carrier),
		input.DepartureAt, input.TransportType, input.SeatClass, input.TotalSeats, input.layout(), input.Price,
	)
	if err := it.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.itineraryRepo.Create(ctx, it); err != nil {
		return nil, fmt.Errorf("旅程作成に失敗しました: %w", err)
	}
	return it, nil
}

func (s *CatalogService) GetItinerary(ctx context.Context, id string) (*itinerary.Itinerary, error) {
	return s.itineraryRepo.GetByID(ctx, id)
}

func (s *CatalogService) SearchItineraries(ctx context.Context, filter itinerary.SearchFilter) ([]*itinerary.Itinerary, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.TransportType != "" && !filter.TransportType.IsValid() {
		return nil, itinerary.ErrInvalidTransportType
	}
	return s.itineraryRepo.Search(ctx, filter)
}

// UpdateItinerary は旅程を更新する
// 座席数や座席配置の変更は、HELD/SOLD の座席が1つもない場合のみ許可する
func (s *CatalogService) UpdateItinerary(ctx context.Context, id string, input ItineraryInput) (*itinerary.Itinerary, error) {
	it, err := s.itineraryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *it
	updated.Origin = strings.TrimSpace(input.Origin)
	updated.Destination = strings.TrimSpace(input.Destination)
	updated.Carrier = strings.TrimSpace(input.Carrier)
	updated.DepartureAt = input.DepartureAt
	updated.TransportType = input.TransportType
	updated.SeatClass = input.SeatClass
	updated.TotalSeats = input.TotalSeats
	updated.Layout = input.layout()
	updated.Price = input.Price
	if err := updated.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}

	if !it.SameInventory(&updated) {
		if err := s.ensureNoBookings(ctx, id); err != nil {
			return nil, err
		}
	}
	if err := s.itineraryRepo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteItinerary は HELD/SOLD の座席が無い旅程を削除する
func (s *CatalogService) DeleteItinerary(ctx context.Context, id string) error {
	if _, err := s.itineraryRepo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.ensureNoBookings(ctx, id); err != nil {
		return err
	}
	return s.itineraryRepo.Delete(ctx, id)
}

func (s *CatalogService) ensureNoBookings(ctx context.Context, id string) error {
	occupied, err := s.ledger.Occupancy(ctx, id)
	if err != nil {
		return fmt.Errorf("座席状況の確認に失敗: %w", err)
	}
	if occupied > 0 {
		return itinerary.ErrItineraryHasBookings
	}
	return nil
}
