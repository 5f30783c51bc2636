package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/reservation"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/seat"
)

// DefaultTokenRetention は期限切れトークンを ErrExpiredHold として判別できる期間
const DefaultTokenRetention = time.Hour

var _ reservation.Ledger = (*Ledger)(nil)

// Ledger はプロセス内で座席状態を管理する reservation.Ledger の実装
// 座席ごとに1つのミューテックスを持ち、同じ座席への操作だけが直列化される
// 容量の上限は旅程ごとのアトミックなカウンタで守る
type Ledger struct {
	books     sync.Map // itineraryID -> *book
	tokens    sync.Map // token -> *tokenRef
	now       func() time.Time
	retention time.Duration
}

type book struct {
	mu       sync.RWMutex
	slots    map[string]*slot
	occupied atomic.Int64
}

type slot struct {
	mu   sync.Mutex
	hold *reservation.Hold
}

// tokenRef はトークンの索引エントリ（不変。更新は差し替えで行う）
type tokenRef struct {
	itineraryID string
	seatLabel   string
	holderID    string
	expiresAt   time.Time
	sold        bool
	expiredAt   time.Time // ゼロ値でなければ期限切れで回収済み
}

func (r *tokenRef) points(itineraryID, seatLabel string) bool {
	return r.itineraryID == itineraryID && r.seatLabel == seatLabel
}

func (r *tokenRef) live(now time.Time) bool {
	if !r.expiredAt.IsZero() {
		return false
	}
	return r.sold || now.Before(r.expiresAt)
}

// Option は Ledger の設定
type Option func(*Ledger)

// WithClock は現在時刻の取得方法を差し替える
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithTokenRetention は期限切れトークンの保持期間を設定する
func WithTokenRetention(d time.Duration) Option {
	return func(l *Ledger) { l.retention = d }
}

// NewLedger は Ledger を作成する
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		now:       time.Now,
		retention: DefaultTokenRetention,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) book(itineraryID string, create bool) *book {
	if b, ok := l.books.Load(itineraryID); ok {
		return b.(*book)
	}
	if !create {
		return nil
	}
	b, _ := l.books.LoadOrStore(itineraryID, &book{slots: make(map[string]*slot)})
	return b.(*book)
}

func (b *book) slot(label string, create bool) *slot {
	b.mu.RLock()
	s, ok := b.slots[label]
	b.mu.RUnlock()
	if ok || !create {
		return s
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok = b.slots[label]; !ok {
		s = &slot{}
		b.slots[label] = s
	}
	return s
}

func (b *book) reserve(capacity int) bool {
	for {
		cur := b.occupied.Load()
		if cur >= int64(capacity) {
			return false
		}
		if b.occupied.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

func (b *book) each(fn func(label string, s *slot)) {
	b.mu.RLock()
	slots := make(map[string]*slot, len(b.slots))
	for label, s := range b.slots {
		slots[label] = s
	}
	b.mu.RUnlock()
	for label, s := range slots {
		fn(label, s)
	}
}

// TryHold は座席が FREE の場合にのみ仮押さえを作成する
func (l *Ledger) TryHold(ctx context.Context, req reservation.HoldRequest) (*reservation.Hold, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := l.book(req.ItineraryID, true)
	s := b.slot(req.SeatLabel, true)
	now := l.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if h := s.hold; h != nil {
		switch {
		case h.IsExpiredAt(now):
			l.reclaim(b, s, now)
		case h.BelongsTo(req.HolderID, req.Token):
			return h.Clone(), nil
		default:
			return nil, reservation.ErrSeatUnavailable
		}
	}

	hold := reservation.NewHold(req, now)
	ref := &tokenRef{
		itineraryID: req.ItineraryID,
		seatLabel:   req.SeatLabel,
		holderID:    req.HolderID,
		expiresAt:   hold.ExpiresAt,
	}
	if err := l.claimToken(req.Token, ref, now); err != nil {
		return nil, err
	}

	if !b.reserve(req.Capacity) {
		// 回収されていない期限切れの仮押さえが枠を占めている可能性がある
		if l.reclaimBook(b, s, now) == 0 || !b.reserve(req.Capacity) {
			l.tokens.CompareAndDelete(req.Token, ref)
			return nil, reservation.ErrCapacityExceeded
		}
	}

	s.hold = hold
	return hold.Clone(), nil
}

func (l *Ledger) claimToken(token string, ref *tokenRef, now time.Time) error {
	for {
		existing, loaded := l.tokens.LoadOrStore(token, ref)
		if !loaded {
			return nil
		}
		old := existing.(*tokenRef)
		if old.live(now) {
			return reservation.ErrTokenReused
		}
		if l.tokens.CompareAndSwap(token, old, ref) {
			return nil
		}
	}
}

// reclaim は期限切れの仮押さえを解放する。s.mu を保持して呼ぶ
func (l *Ledger) reclaim(b *book, s *slot, now time.Time) {
	h := s.hold
	s.hold = nil
	b.occupied.Add(-1)

	if v, ok := l.tokens.Load(h.Token); ok {
		ref := v.(*tokenRef)
		if ref.points(h.ItineraryID, h.SeatLabel) && ref.expiredAt.IsZero() {
			tomb := *ref
			tomb.expiredAt = now
			l.tokens.CompareAndSwap(h.Token, ref, &tomb)
		}
	}
}

// reclaimBook は旅程内の期限切れの仮押さえを回収する
// 呼び出し元が保持している座席 held はスキップし、他の座席はロックを取れた場合のみ対象にする
func (l *Ledger) reclaimBook(b *book, held *slot, now time.Time) int {
	n := 0
	b.each(func(_ string, s *slot) {
		if s == held || !s.mu.TryLock() {
			return
		}
		defer s.mu.Unlock()
		if s.hold != nil && s.hold.IsExpiredAt(now) {
			l.reclaim(b, s, now)
			n++
		}
	})
	return n
}

// free は仮押さえ・販売を取り除く。s.mu を保持して呼ぶ
func (l *Ledger) free(b *book, s *slot) {
	h := s.hold
	s.hold = nil
	b.occupied.Add(-1)

	if v, ok := l.tokens.Load(h.Token); ok && v.(*tokenRef).points(h.ItineraryID, h.SeatLabel) {
		l.tokens.CompareAndDelete(h.Token, v)
	}
}

// Confirm は有効な仮押さえを SOLD にする
func (l *Ledger) Confirm(ctx context.Context, itineraryID, seatLabel, token string) (*reservation.Hold, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := l.now()

	var s *slot
	b := l.book(itineraryID, false)
	if b != nil {
		s = b.slot(seatLabel, false)
	}
	if s == nil {
		return nil, l.missingHold(itineraryID, seatLabel, token)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.hold
	if h != nil && h.Token == token {
		if h.IsSold() {
			return h.Clone(), nil
		}
		if h.IsExpiredAt(now) {
			l.reclaim(b, s, now)
			return nil, reservation.ErrExpiredHold
		}
		if err := h.MarkSold(now); err != nil {
			return nil, err
		}
		l.markTokenSold(h)
		return h.Clone(), nil
	}

	if h != nil && h.IsExpiredAt(now) {
		l.reclaim(b, s, now)
		h = nil
	}
	if h != nil {
		if err := l.missingHold(itineraryID, seatLabel, token); errors.Is(err, reservation.ErrExpiredHold) {
			return nil, err
		}
		return nil, reservation.ErrTokenMismatch
	}
	return nil, l.missingHold(itineraryID, seatLabel, token)
}

// missingHold は座席にトークンの仮押さえがない場合のエラーを返す
func (l *Ledger) missingHold(itineraryID, seatLabel, token string) error {
	if v, ok := l.tokens.Load(token); ok {
		ref := v.(*tokenRef)
		if ref.points(itineraryID, seatLabel) && !ref.expiredAt.IsZero() {
			return reservation.ErrExpiredHold
		}
	}
	return reservation.ErrHoldNotFound
}

func (l *Ledger) markTokenSold(h *reservation.Hold) {
	sold := &tokenRef{
		itineraryID: h.ItineraryID,
		seatLabel:   h.SeatLabel,
		holderID:    h.HolderID,
		expiresAt:   h.ExpiresAt,
		sold:        true,
	}
	l.tokens.Store(h.Token, sold)
}

// Release は仮押さえを解放する
// 既に解放・回収されている場合や販売済みの場合は何もしない
func (l *Ledger) Release(ctx context.Context, itineraryID, seatLabel, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := l.book(itineraryID, false)
	if b == nil {
		return nil
	}
	s := b.slot(seatLabel, false)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.hold
	if h == nil || h.Token != token || h.IsSold() {
		return nil
	}
	l.free(b, s)
	return nil
}

// CancelSale は販売済みの座席を FREE に戻す
func (l *Ledger) CancelSale(ctx context.Context, itineraryID, seatLabel, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b := l.book(itineraryID, false)
	if b == nil {
		return reservation.ErrNotSold
	}
	s := b.slot(seatLabel, false)
	if s == nil {
		return reservation.ErrNotSold
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.hold
	if h == nil || !h.IsSold() || (token != "" && h.Token != token) {
		return reservation.ErrNotSold
	}
	l.free(b, s)
	return nil
}

// RestoreSale は販売記録を台帳に書き戻す
func (l *Ledger) RestoreSale(ctx context.Context, sale *reservation.Hold) error {
	if err := sale.ValidateSale(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b := l.book(sale.ItineraryID, true)
	s := b.slot(sale.SeatLabel, true)

	s.mu.Lock()
	defer s.mu.Unlock()

	if h := s.hold; h != nil {
		if h.IsSold() {
			if h.Token == sale.Token {
				return nil
			}
			return reservation.ErrAlreadySold
		}
		l.free(b, s)
	}

	h := sale.Clone()
	h.Status = seat.StatusSold
	if h.SoldAt == nil {
		soldAt := h.CreatedAt
		h.SoldAt = &soldAt
	}
	b.occupied.Add(1)
	s.hold = h
	l.markTokenSold(h)
	return nil
}

// Lookup はトークンから現在の仮押さえ・販売を取得する
func (l *Ledger) Lookup(ctx context.Context, token string) (*reservation.Hold, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := l.tokens.Load(token)
	if !ok {
		return nil, reservation.ErrHoldNotFound
	}
	ref := v.(*tokenRef)
	if !ref.expiredAt.IsZero() {
		return nil, reservation.ErrExpiredHold
	}

	var s *slot
	b := l.book(ref.itineraryID, false)
	if b != nil {
		s = b.slot(ref.seatLabel, false)
	}
	if s == nil {
		return nil, reservation.ErrHoldNotFound
	}

	now := l.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.hold
	if h == nil || h.Token != token {
		return nil, l.missingHold(ref.itineraryID, ref.seatLabel, token)
	}
	if h.IsExpiredAt(now) {
		l.reclaim(b, s, now)
		return nil, reservation.ErrExpiredHold
	}
	return h.Clone(), nil
}

// Snapshot は旅程の FREE 以外の座席状態を返す
// 期限切れの仮押さえはここで回収され、FREE として扱われる
func (l *Ledger) Snapshot(ctx context.Context, itineraryID string) (map[string]seat.Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	snapshot := make(map[string]seat.Status)
	b := l.book(itineraryID, false)
	if b == nil {
		return snapshot, nil
	}

	now := l.now()
	b.each(func(label string, s *slot) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.hold == nil {
			return
		}
		if s.hold.IsExpiredAt(now) {
			l.reclaim(b, s, now)
			return
		}
		snapshot[label] = s.hold.Status
	})
	return snapshot, nil
}

// Occupancy は旅程の HELD/SOLD 座席数を返す
func (l *Ledger) Occupancy(ctx context.Context, itineraryID string) (int, error) {
	snapshot, err := l.Snapshot(ctx, itineraryID)
	if err != nil {
		return 0, err
	}
	return len(snapshot), nil
}

// SweepExpired は期限切れの仮押さえを回収し、保持期間を過ぎたトークンを削除する
func (l *Ledger) SweepExpired(ctx context.Context) (int, error) {
	now := l.now()
	reclaimed := 0

	l.books.Range(func(_, v any) bool {
		if ctx.Err() != nil {
			return false
		}
		b := v.(*book)
		b.each(func(_ string, s *slot) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.hold != nil && s.hold.IsExpiredAt(now) {
				l.reclaim(b, s, now)
				reclaimed++
			}
		})
		return true
	})
	if err := ctx.Err(); err != nil {
		return reclaimed, err
	}

	l.tokens.Range(func(k, v any) bool {
		ref := v.(*tokenRef)
		if !ref.expiredAt.IsZero() && now.Sub(ref.expiredAt) >= l.retention {
			l.tokens.CompareAndDelete(k, v)
		}
		return true
	})
	return reclaimed, nil
}
