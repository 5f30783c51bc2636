package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
	redisinfra "github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/infrastructure/redis"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/logger"
)

const defaultSeatCacheTTL = 5 * time.Second

// SeatMapService は旅程の座席配置と台帳の状態を合成して座席表を作る
type SeatMapService struct {
	itineraryRepo itinerary.Repository
	ledger        reservation.Ledger
	cache         *redisinfra.SeatCache
	cacheTTL      time.Duration
}

// NewSeatMapService は SeatMapService を作成する。cache は nil でもよい
func NewSeatMapService(itineraryRepo itinerary.Repository, ledger reservation.Ledger, cache *redisinfra.SeatCache, cacheTTL time.Duration) *SeatMapService {
	if cacheTTL <= 0 {
		cacheTTL = defaultSeatCacheTTL
	}
	return &SeatMapService{itineraryRepo: itineraryRepo, ledger: ledger, cache: cache, cacheTTL: cacheTTL}
}

// GetSeatMap は旅程の座席表を返す
// HELD/SOLD の座席は予約不可として示し、期限切れの仮押さえは FREE になる
func (s *SeatMapService) GetSeatMap(ctx context.Context, itineraryID string) (*seat.Map, error) {
	it, err := s.itineraryRepo.GetByID(ctx, itineraryID)
	if err != nil {
		return nil, err
	}
	return s.seatMapOf(ctx, it)
}

func (s *SeatMapService) seatMapOf(ctx context.Context, it *itinerary.Itinerary) (*seat.Map, error) {
	snapshot, err := s.ledger.Snapshot(ctx, it.ID)
	if err != nil {
		return nil, fmt.Errorf("座席状況の取得に失敗: %w", err)
	}
	return seat.BuildMap(it.ID, it.Layout.Grid(), it.TotalSeats, snapshot), nil
}

// CountAvailable は容量の範囲で新たに押さえられる座席数を返す
func (s *SeatMapService) CountAvailable(ctx context.Context, itineraryID string) (int, error) {
	if s.cache != nil {
		count, err := s.cache.GetAvailableCount(ctx, itineraryID)
		if err == nil {
			logger.Debug("キャッシュヒット", zap.String("itinerary_id", itineraryID), zap.Int("count", count))
			return count, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー", zap.Error(err))
		}
	}

	m, err := s.GetSeatMap(ctx, itineraryID)
	if err != nil {
		return 0, err
	}
	count := m.Available()

	if s.cache != nil {
		if cacheErr := s.cache.SetAvailableCount(ctx, itineraryID, count, s.cacheTTL); cacheErr != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(cacheErr))
		}
	}
	return count, nil
}

// InvalidateCache は旅程の空席数キャッシュを無効化する
func (s *SeatMapService) InvalidateCache(ctx context.Context, itineraryID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, itineraryID); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.String("itinerary_id", itineraryID), zap.Error(err))
	}
}
