package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheMiss = errors.New("キャッシュが見つかりません")
)

// SeatCache は旅程ごとの空席数を短時間キャッシュする
// 正本は座席台帳で、状態遷移のたびに Invalidate される
type SeatCache struct {
	client *redis.Client
}

// NewSeatCache は新しいSeatCacheインスタンスを作成する
func NewSeatCache(client *redis.Client) *SeatCache {
	return &SeatCache{client: client}
}

// GetAvailableCount は旅程の空席数をキャッシュから取得する
func (c *SeatCache) GetAvailableCount(ctx context.Context, itineraryID string) (int, error) {
	val, err := c.client.Get(ctx, availableCountKey(itineraryID)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("キャッシュ取得に失敗: %w", err)
	}
	return val, nil
}

// SetAvailableCount は旅程の空席数をキャッシュに保存する
func (c *SeatCache) SetAvailableCount(ctx context.Context, itineraryID string, count int, ttl time.Duration) error {
	if err := c.client.Set(ctx, availableCountKey(itineraryID), count, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュ保存に失敗: %w", err)
	}
	return nil
}

// Invalidate は旅程のキャッシュを無効化する
func (c *SeatCache) Invalidate(ctx context.Context, itineraryID string) error {
	if err := c.client.Del(ctx, availableCountKey(itineraryID)).Err(); err != nil {
		return fmt.Errorf("キャッシュ無効化に失敗: %w", err)
	}
	return nil
}

func availableCountKey(itineraryID string) string {
	return "seats:available:" + itineraryID
}
