package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/itinerary"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/ticket"
	redislock "github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/infrastructure/redis"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/logger"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/metrics"
)

// TicketEventPublisher はチケットの状態変化を下流に配信する
type TicketEventPublisher interface {
	Publish(ctx context.Context, event ticket.Event) error
}

// ReservationOptions は予約処理の設定
type ReservationOptions struct {
	HoldTTL             time.Duration
	TicketWriteAttempts int
	TicketWriteBackoff  time.Duration
}

func (o ReservationOptions) withDefaults() ReservationOptions {
	if o.HoldTTL <= 0 {
		o.HoldTTL = reservation.DefaultHoldTTL
	}
	if o.TicketWriteAttempts <= 0 {
		o.TicketWriteAttempts = 4
	}
	if o.TicketWriteBackoff <= 0 {
		o.TicketWriteBackoff = 100 * time.Millisecond
	}
	return o
}

type ReservationService struct {
	itineraryRepo itinerary.Repository
	ticketRepo    ticket.Repository
	ledger        reservation.Ledger
	seatMaps      *SeatMapService
	opts          ReservationOptions

	lockManager *redislock.LockManager
	publisher   TicketEventPublisher
	metrics     *metrics.Metrics
	now         func() time.Time

	mu      sync.Mutex
	pending map[string]*ticket.Ticket // トークン → 記録待ちのチケット
}

type ReservationServiceOption func(*ReservationService)

// WithLockManager はチケットのキャンセルを分散ロックで直列化する
func WithLockManager(lm *redislock.LockManager) ReservationServiceOption {
	return func(s *ReservationService) { s.lockManager = lm }
}

func WithEventPublisher(p TicketEventPublisher) ReservationServiceOption {
	return func(s *ReservationService) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) ReservationServiceOption {
	return func(s *ReservationService) { s.metrics = m }
}

func WithClock(now func() time.Time) ReservationServiceOption {
	return func(s *ReservationService) { s.now = now }
}

func NewReservationService(ir itinerary.Repository, tr ticket.Repository, l reservation.Ledger, sm *SeatMapService, opts ReservationOptions, options ...ReservationServiceOption) *ReservationService {
	s := &ReservationService{
		itineraryRepo: ir,
		ticketRepo:    tr,
		ledger:        l,
		seatMaps:      sm,
		opts:          opts.withDefaults(),
		now:           time.Now,
		pending:       make(map[string]*ticket.Ticket),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

type ReserveInput struct {
	ItineraryID      string
	SeatLabel        string
	HolderID         string
	IdempotencyToken string
}

// Reserve は指定した座席を仮押さえする
// 同じトークンでの再試行は既存の仮押さえを返す
func (s *ReservationService) Reserve(ctx context.Context, input ReserveInput) (*reservation.Hold, error) {
	it, err := s.bookableItinerary(ctx, input.ItineraryID)
	if err != nil {
		s.countHold(err)
		return nil, err
	}
	if input.SeatLabel == "" {
		s.countHold(seat.ErrSeatLabelRequired)
		return nil, seat.ErrSeatLabelRequired
	}
	if !it.Layout.Contains(input.SeatLabel) {
		s.countHold(seat.ErrSeatNotFound)
		return nil, seat.ErrSeatNotFound
	}
	if err := s.ensureTokenUnused(ctx, input.IdempotencyToken, it.ID, input.SeatLabel, input.HolderID); err != nil {
		s.countHold(err)
		return nil, err
	}

	h, err := s.ledger.TryHold(ctx, s.holdRequest(it, input.SeatLabel, input.HolderID, input.IdempotencyToken))
	s.countHold(err)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, it.ID)
	logger.Info("座席を仮押さえしました",
		zap.String("itinerary_id", it.ID),
		zap.String("seat", h.SeatLabel),
		zap.String("holder_id", h.HolderID),
		zap.Time("expires_at", h.ExpiresAt))
	return h, nil
}

type ReserveAnyInput struct {
	ItineraryID      string
	HolderID         string
	IdempotencyToken string
}

// ReserveAny は空いている座席を座席表の順に探して仮押さえする
func (s *ReservationService) ReserveAny(ctx context.Context, input ReserveAnyInput) (*reservation.Hold, error) {
	it, err := s.bookableItinerary(ctx, input.ItineraryID)
	if err != nil {
		s.countHold(err)
		return nil, err
	}
	if input.IdempotencyToken == "" {
		s.countHold(reservation.ErrIdempotencyTokenRequired)
		return nil, reservation.ErrIdempotencyTokenRequired
	}
	if err := s.ensureTokenUnused(ctx, input.IdempotencyToken, it.ID, "", input.HolderID); err != nil {
		s.countHold(err)
		return nil, err
	}

	// 同じトークンの再試行は、先に確保した座席を返す
	existing, err := s.ledger.Lookup(ctx, input.IdempotencyToken)
	switch {
	case err == nil:
		if existing.ItineraryID != it.ID || existing.HolderID != input.HolderID {
			s.countHold(reservation.ErrTokenReused)
			return nil, reservation.ErrTokenReused
		}
		s.countHold(nil)
		return existing, nil
	case errors.Is(err, reservation.ErrHoldNotFound), errors.Is(err, reservation.ErrExpiredHold):
	default:
		s.countHold(err)
		return nil, err
	}

	m, err := s.seatMaps.seatMapOf(ctx, it)
	if err != nil {
		s.countHold(err)
		return nil, err
	}
	for _, label := range m.FreeLabels() {
		h, err := s.ledger.TryHold(ctx, s.holdRequest(it, label, input.HolderID, input.IdempotencyToken))
		if err == nil {
			s.countHold(nil)
			s.invalidate(ctx, it.ID)
			logger.Info("空席を割り当てました",
				zap.String("itinerary_id", it.ID),
				zap.String("seat", h.SeatLabel),
				zap.String("holder_id", h.HolderID))
			return h, nil
		}
		if errors.Is(err, reservation.ErrSeatUnavailable) {
			continue
		}
		if errors.Is(err, reservation.ErrCapacityExceeded) {
			break
		}
		s.countHold(err)
		return nil, err
	}
	s.countHold(seat.ErrNoSeatAvailable)
	return nil, seat.ErrNoSeatAvailable
}

func (s *ReservationService) bookableItinerary(ctx context.Context, id string) (*itinerary.Itinerary, error) {
	it, err := s.getItinerary(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.HasDeparted(s.now()) {
		return nil, reservation.ErrBookingClosed
	}
	return it, nil
}

func (s *ReservationService) getItinerary(ctx context.Context, id string) (*itinerary.Itinerary, error) {
	var it *itinerary.Itinerary
	err := s.withStoreRetry(ctx, "itinerary.get", func() error {
		var err error
		it, err = s.itineraryRepo.GetByID(ctx, id)
		return err
	})
	return it, err
}

func (s *ReservationService) getTicketByToken(ctx context.Context, token string) (*ticket.Ticket, error) {
	var tk *ticket.Ticket
	err := s.withStoreRetry(ctx, "ticket.getByToken", func() error {
		var err error
		tk, err = s.ticketRepo.GetByToken(ctx, token)
		return err
	})
	return tk, err
}

// ensureTokenUnused は発行済みチケットのトークンを別の仮押さえに使わせない
// 購入済みの同じ座席への再試行は台帳の冪等性に任せる
func (s *ReservationService) ensureTokenUnused(ctx context.Context, token, itineraryID, seatLabel, holderID string) error {
	if token == "" {
		return nil
	}
	tk, err := s.getTicketByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ticket.ErrTicketNotFound) {
			return nil
		}
		return err
	}
	if tk.IsCancelled() || tk.ItineraryID != itineraryID || tk.HolderID != holderID ||
		(seatLabel != "" && tk.SeatLabel != seatLabel) {
		return reservation.ErrTokenReused
	}
	return nil
}

func (s *ReservationService) holdRequest(it *itinerary.Itinerary, label, holderID, token string) reservation.HoldRequest {
	return reservation.HoldRequest{
		ItineraryID: it.ID,
		SeatLabel:   label,
		HolderID:    holderID,
		Token:       token,
		TTL:         s.opts.HoldTTL,
		Capacity:    it.TotalSeats,
	}
}

// ReleaseHold は保持者による仮押さえの解放
// 既に解放済み・期限切れの場合は何もしない
func (s *ReservationService) ReleaseHold(ctx context.Context, token, holderID string) error {
	h, err := s.ledger.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, reservation.ErrHoldNotFound) || errors.Is(err, reservation.ErrExpiredHold) {
			return nil
		}
		return err
	}
	if h.HolderID != holderID {
		return reservation.ErrHolderMismatch
	}
	if h.IsSold() {
		return reservation.ErrAlreadySold
	}
	if err := s.ledger.Release(ctx, h.ItineraryID, h.SeatLabel, token); err != nil {
		return err
	}
	s.invalidate(ctx, h.ItineraryID)
	return nil
}

type PurchaseInput struct {
	HoldToken     string
	HolderID      string
	PassengerName string
	Contact       string
}

// Purchase は仮押さえを販売済みにしてチケットを発行する
// 同じトークンでの再試行は発行済みのチケットを返す
func (s *ReservationService) Purchase(ctx context.Context, input PurchaseInput) (*ticket.Ticket, error) {
	tk, err := s.purchase(ctx, input)
	s.countPurchase(err)
	return tk, err
}

func (s *ReservationService) purchase(ctx context.Context, input PurchaseInput) (*ticket.Ticket, error) {
	if input.HoldToken == "" {
		return nil, reservation.ErrIdempotencyTokenRequired
	}
	passenger := ticket.Passenger{Name: input.PassengerName, Contact: input.Contact}
	if err := passenger.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}

	// 冪等性チェック
	existing, err := s.getTicketByToken(ctx, input.HoldToken)
	if err == nil {
		if existing.HolderID != input.HolderID {
			return nil, reservation.ErrHolderMismatch
		}
		// キャンセル済みのトークンが別の座席を押さえていれば、それは別の購入
		if existing.IsCancelled() {
			if h, err := s.ledger.Lookup(ctx, input.HoldToken); err == nil &&
				(h.ItineraryID != existing.ItineraryID || h.SeatLabel != existing.SeatLabel) {
				return nil, reservation.ErrTokenReused
			}
		}
		return existing, nil
	}
	if !errors.Is(err, ticket.ErrTicketNotFound) {
		return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
	}
	if s.isPending(input.HoldToken) {
		return nil, reservation.ErrPendingReconciliation
	}

	h, err := s.ledger.Lookup(ctx, input.HoldToken)
	if err != nil {
		return nil, err
	}
	if h.HolderID != input.HolderID {
		return nil, reservation.ErrHolderMismatch
	}
	it, err := s.getItinerary(ctx, h.ItineraryID)
	if err != nil {
		return nil, err
	}

	sold, err := s.ledger.Confirm(ctx, h.ItineraryID, h.SeatLabel, input.HoldToken)
	if err != nil {
		if errors.Is(err, reservation.ErrExpiredHold) {
			s.invalidate(ctx, h.ItineraryID)
		}
		return nil, err
	}
	s.invalidate(ctx, sold.ItineraryID)

	// 台帳のロックは解放済み。チケットの書き込みはバックオフ付きで再試行する
	tk := ticket.NewTicket(input.HoldToken, input.HolderID, passenger, it, sold.SeatLabel)
	created, err := s.writeTicket(ctx, tk)
	if err != nil {
		if errors.Is(err, ticket.ErrSeatAlreadyTicketed) {
			// 台帳がチケットストアより古い。この販売を取り消し、有効なチケットを書き戻す
			logger.Error("座席に有効なチケットが既にあるため販売を取り消します",
				zap.String("token", tk.Token),
				zap.String("itinerary_id", tk.ItineraryID),
				zap.String("seat", tk.SeatLabel))
			s.revokeSale(ctx, tk)
			return nil, err
		}
		s.enqueuePending(tk)
		logger.Error("チケットの記録に失敗したため後で再試行します",
			zap.String("token", tk.Token),
			zap.String("itinerary_id", tk.ItineraryID),
			zap.String("seat", tk.SeatLabel),
			zap.Error(err))
		return nil, reservation.ErrPendingReconciliation
	}

	logger.Info("チケットを発行しました",
		zap.String("ticket_id", created.ID),
		zap.String("itinerary_id", created.ItineraryID),
		zap.String("seat", created.SeatLabel))
	s.publish(ctx, ticket.EventConfirmed, created)
	return created, nil
}

const opTicketCreate = "ticket.create"

// writeTicket は指数バックオフでチケットを書き込む
func (s *ReservationService) writeTicket(ctx context.Context, tk *ticket.Ticket) (*ticket.Ticket, error) {
	var created *ticket.Ticket
	err := s.withStoreRetry(ctx, opTicketCreate, func() error {
		var err error
		created, err = s.ticketRepo.Create(ctx, tk)
		return err
	})
	return created, err
}

// ドメインのエラーは再試行しても結果が変わらない
var permanentStoreErrors = []error{
	itinerary.ErrItineraryNotFound,
	ticket.ErrTicketNotFound,
	ticket.ErrSeatAlreadyTicketed,
	context.Canceled,
}

func isRetryable(err error) bool {
	for _, target := range permanentStoreErrors {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}

// withStoreRetry は旅程・チケットストアの操作を指数バックオフで再試行する
// 再試行しきれなかった障害は TransientError として返す
func (s *ReservationService) withStoreRetry(ctx context.Context, op string, fn func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.opts.TicketWriteBackoff
	eb.MaxElapsedTime = 0
	eb.Reset()
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(s.opts.TicketWriteAttempts-1)), ctx)

	attempt := func() error {
		err := fn()
		if err != nil && !isRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if op == opTicketCreate && s.metrics != nil {
			s.metrics.TicketWriteRetries.Inc()
		}
		logger.Warn("ストア操作を再試行します", zap.String("op", op), zap.Duration("wait", wait), zap.Error(err))
	}
	err := backoff.RetryNotify(attempt, b, notify)
	if err == nil || !isRetryable(err) || errors.Is(err, reservation.ErrTransient) {
		return err
	}
	return reservation.NewTransientError(op, err)
}

type CancelInput struct {
	TicketID string
	HolderID string // 空ならオペレーターによるキャンセル
}

// Cancel はチケットをキャンセルし、座席を FREE に戻す
// キャンセル済みのチケットへの再実行は成功扱い
func (s *ReservationService) Cancel(ctx context.Context, input CancelInput) (*ticket.Ticket, error) {
	if s.lockManager != nil {
		start := time.Now()
		lock, err := s.lockManager.AcquireLockWithRetry(ctx, "ticket:"+input.TicketID, 10*time.Second, 3, 100*time.Millisecond)
		s.observeLock("acquire", start, err)
		if err != nil {
			if errors.Is(err, redislock.ErrLockNotAcquired) {
				return nil, fmt.Errorf("チケットが他の処理で更新中です: %w", reservation.NewTransientError("ticket.lock", err))
			}
			return nil, fmt.Errorf("ロック取得に失敗: %w", reservation.NewTransientError("ticket.lock", err))
		}
		defer func() {
			start := time.Now()
			err := lock.Release(context.WithoutCancel(ctx))
			s.observeLock("release", start, err)
			if err != nil {
				logger.Warn("ロック解放に失敗", zap.String("ticket_id", input.TicketID), zap.Error(err))
			}
		}()
	}

	var tk *ticket.Ticket
	err := s.withStoreRetry(ctx, "ticket.get", func() error {
		var err error
		tk, err = s.ticketRepo.GetByID(ctx, input.TicketID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if input.HolderID != "" && tk.HolderID != input.HolderID {
		return nil, ticket.ErrTicketNotFound
	}
	if tk.IsCancelled() {
		// 前回のキャンセルで台帳の更新に失敗していれば、ここで座席を戻す
		freed, err := s.cancelSale(ctx, tk)
		if err != nil {
			return nil, err
		}
		if freed {
			s.cancelled(ctx, tk)
		}
		return tk, nil
	}

	it, err := s.getItinerary(ctx, tk.ItineraryID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if it.HasDeparted(now) {
		return nil, reservation.ErrCancellationWindowClosed
	}

	if err := tk.Cancel(now); err != nil {
		return nil, err
	}
	err = s.withStoreRetry(ctx, "ticket.updateStatus", func() error {
		return s.ticketRepo.UpdateStatus(ctx, tk)
	})
	if err != nil {
		return nil, fmt.Errorf("チケット更新に失敗: %w", err)
	}
	freed, err := s.cancelSale(ctx, tk)
	if err != nil {
		return nil, err
	}
	if !freed {
		logger.Warn("販売記録が台帳にありません",
			zap.String("ticket_id", tk.ID),
			zap.String("itinerary_id", tk.ItineraryID),
			zap.String("seat", tk.SeatLabel))
	}
	s.cancelled(ctx, tk)
	return tk, nil
}

// cancelSale はチケットの販売を台帳から取り消す
// 台帳にそのトークンの販売が無ければ false を返す
func (s *ReservationService) cancelSale(ctx context.Context, tk *ticket.Ticket) (bool, error) {
	err := s.ledger.CancelSale(ctx, tk.ItineraryID, tk.SeatLabel, tk.Token)
	switch {
	case err == nil:
		s.invalidate(ctx, tk.ItineraryID)
		return true, nil
	case errors.Is(err, reservation.ErrNotSold):
		return false, nil
	default:
		return false, err
	}
}

func (s *ReservationService) cancelled(ctx context.Context, tk *ticket.Ticket) {
	logger.Info("チケットをキャンセルしました",
		zap.String("ticket_id", tk.ID),
		zap.String("itinerary_id", tk.ItineraryID),
		zap.String("seat", tk.SeatLabel))
	s.publish(ctx, ticket.EventCancelled, tk)
}

// revokeSale は記録できなかった販売を台帳から取り消し、旅程の有効なチケットを書き戻す
func (s *ReservationService) revokeSale(ctx context.Context, tk *ticket.Ticket) {
	ctx = context.WithoutCancel(ctx)
	err := s.ledger.CancelSale(ctx, tk.ItineraryID, tk.SeatLabel, tk.Token)
	if err != nil && !errors.Is(err, reservation.ErrNotSold) {
		logger.Error("販売の取り消しに失敗", zap.String("token", tk.Token), zap.Error(err))
	}
	if _, err := s.restoreSales(ctx, tk.ItineraryID); err != nil {
		logger.Error("有効なチケットの書き戻しに失敗", zap.String("itinerary_id", tk.ItineraryID), zap.Error(err))
	}
	s.invalidate(ctx, tk.ItineraryID)
}

// RestoreSales は CONFIRMED のチケットを台帳の販売記録として書き戻し、件数を返す
// 起動時に呼ぶ。memory 台帳は空で始まるため、これが無いと販売済みの座席が FREE に見える
func (s *ReservationService) RestoreSales(ctx context.Context) (int, error) {
	return s.restoreSales(ctx, "")
}

func (s *ReservationService) restoreSales(ctx context.Context, itineraryID string) (int, error) {
	var tickets []*ticket.Ticket
	err := s.withStoreRetry(ctx, "ticket.listConfirmed", func() error {
		var err error
		tickets, err = s.ticketRepo.ListConfirmed(ctx, itineraryID)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("有効なチケットの取得に失敗: %w", err)
	}

	for i, tk := range tickets {
		sale := saleOf(tk)
		err := s.ledger.RestoreSale(ctx, sale)
		if errors.Is(err, reservation.ErrAlreadySold) {
			// チケットの無い販売が座席を占めている。チケットを優先する
			logger.Warn("チケットの無い販売を取り消して書き戻します",
				zap.String("ticket_id", tk.ID),
				zap.String("itinerary_id", tk.ItineraryID),
				zap.String("seat", tk.SeatLabel))
			if err = s.ledger.CancelSale(ctx, tk.ItineraryID, tk.SeatLabel, ""); err == nil {
				err = s.ledger.RestoreSale(ctx, sale)
			}
		}
		if err != nil {
			return i, fmt.Errorf("販売記録の書き戻しに失敗: %w", err)
		}
		s.invalidate(ctx, tk.ItineraryID)
	}
	return len(tickets), nil
}

func saleOf(tk *ticket.Ticket) *reservation.Hold {
	soldAt := tk.CreatedAt
	return &reservation.Hold{
		ItineraryID: tk.ItineraryID,
		SeatLabel:   tk.SeatLabel,
		HolderID:    tk.HolderID,
		Token:       tk.Token,
		Status:      seat.StatusSold,
		CreatedAt:   tk.CreatedAt,
		ExpiresAt:   tk.CreatedAt,
		SoldAt:      &soldAt,
	}
}

// ReleaseExpiredHolds は期限切れの仮押さえを回収する
func (s *ReservationService) ReleaseExpiredHolds(ctx context.Context) (int, error) {
	n, err := s.ledger.SweepExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("期限切れの仮押さえの回収に失敗: %w", err)
	}
	if n > 0 && s.metrics != nil {
		s.metrics.ExpiredHoldsReclaimed.Add(float64(n))
	}
	return n, nil
}

// ReconcilePendingTickets は記録待ちのチケットの書き込みを再試行し、記録できた件数を返す
func (s *ReservationService) ReconcilePendingTickets(ctx context.Context) (int, error) {
	s.mu.Lock()
	queued := make([]*ticket.Ticket, 0, len(s.pending))
	for _, tk := range s.pending {
		queued = append(queued, tk)
	}
	s.mu.Unlock()

	var done int
	var lastErr error
	for _, tk := range queued {
		created, err := s.ticketRepo.Create(ctx, tk)
		if err != nil && !errors.Is(err, ticket.ErrSeatAlreadyTicketed) {
			lastErr = err
			continue
		}
		s.dropPending(tk.Token)
		if err != nil {
			// 同じ座席に別の CONFIRMED チケットがある。チケットを優先して販売を取り消す
			logger.Error("記録待ちのチケットが座席の既存チケットと競合しました",
				zap.String("token", tk.Token),
				zap.String("itinerary_id", tk.ItineraryID),
				zap.String("seat", tk.SeatLabel))
			s.revokeSale(ctx, tk)
			continue
		}
		done++
		s.publish(ctx, ticket.EventConfirmed, created)
	}
	if lastErr != nil {
		return done, fmt.Errorf("記録待ちのチケットの書き込みに失敗: %w", lastErr)
	}
	return done, nil
}

// PendingCount は記録待ちのチケット数を返す
func (s *ReservationService) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *ReservationService) isPending(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[token]
	return ok
}

func (s *ReservationService) enqueuePending(tk *ticket.Ticket) {
	s.mu.Lock()
	s.pending[tk.Token] = tk
	n := len(s.pending)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.PendingTicketReconciliations.Set(float64(n))
	}
}

func (s *ReservationService) dropPending(token string) {
	s.mu.Lock()
	delete(s.pending, token)
	n := len(s.pending)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.PendingTicketReconciliations.Set(float64(n))
	}
}

func (s *ReservationService) invalidate(ctx context.Context, itineraryID string) {
	if s.seatMaps != nil {
		s.seatMaps.InvalidateCache(ctx, itineraryID)
	}
}

// publish はイベントを配信する。失敗しても処理は続ける
func (s *ReservationService) publish(ctx context.Context, typ ticket.EventType, tk *ticket.Ticket) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ticket.NewEvent(typ, tk, s.now())); err != nil {
		logger.Warn("イベント配信に失敗", zap.String("type", string(typ)), zap.String("ticket_id", tk.ID), zap.Error(err))
	}
}

func (s *ReservationService) countHold(err error) {
	if s.metrics != nil {
		s.metrics.HoldsTotal.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (s *ReservationService) countPurchase(err error) {
	if s.metrics != nil {
		s.metrics.PurchasesTotal.WithLabelValues(resultLabel(err)).Inc()
	}
}

func (s *ReservationService) observeLock(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	s.metrics.DistributedLockDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
}
