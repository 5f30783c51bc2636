package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	redislock "github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/infrastructure/redis"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/logger"
)

const (
	sweeperLockKey       = "ledger:sweeper"
	defaultSweepInterval = 30 * time.Second
)

// HoldReclaimer は期限切れの仮押さえの回収と、記録待ちチケットの再書き込みを行う
type HoldReclaimer interface {
	ReleaseExpiredHolds(ctx context.Context) (int, error)
	ReconcilePendingTickets(ctx context.Context) (int, error)
}

// HoldSweeper は期限切れの仮押さえを定期的に回収するワーカー
// 期限切れは各操作でも判定されるため、これは台帳を掃除するための補助
type HoldSweeper struct {
	reclaimer   HoldReclaimer
	lockManager *redislock.LockManager
	interval    time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
}

// NewHoldSweeper は新しいスイーパーを作成する
// lm を渡すと、複数インスタンスのうちロックを取れた1台だけが各回の掃除を行う
func NewHoldSweeper(r HoldReclaimer, lm *redislock.LockManager, interval time.Duration) *HoldSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &HoldSweeper{
		reclaimer:   r,
		lockManager: lm,
		interval:    interval,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start はスイーパーを開始する
func (s *HoldSweeper) Start(ctx context.Context) {
	logger.Info("仮押さえスイーパー開始", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("仮押さえスイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			logger.Info("仮押さえスイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Stop はスイーパーを停止する
func (s *HoldSweeper) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *HoldSweeper) sweep(ctx context.Context) {
	log := logger.Get()

	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLock(ctx, sweeperLockKey, s.interval)
		if err != nil {
			if errors.Is(err, redislock.ErrLockNotAcquired) {
				log.Debug("他のインスタンスが掃除中")
			} else {
				log.Warn("スイーパーのロック取得に失敗", zap.Error(err))
			}
			return
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				log.Warn("スイーパーのロック解放に失敗", zap.Error(err))
			}
		}()
	}

	count, err := s.reclaimer.ReleaseExpiredHolds(ctx)
	switch {
	case err != nil:
		log.Error("期限切れの仮押さえの回収失敗", zap.Error(err))
	case count > 0:
		log.Info("期限切れの仮押さえを回収", zap.Int("count", count))
	default:
		log.Debug("期限切れの仮押さえなし")
	}

	reconciled, err := s.reclaimer.ReconcilePendingTickets(ctx)
	if err != nil {
		log.Error("記録待ちチケットの書き込み失敗", zap.Int("reconciled", reconciled), zap.Error(err))
		return
	}
	if reconciled > 0 {
		log.Info("記録待ちチケットを記録", zap.Int("count", reconciled))
	}
}
