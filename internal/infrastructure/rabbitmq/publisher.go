package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/domain/ticket"
	"github.com/GabrielMEsteves/TPPE-2025.1-Project/internal/pkg/logger"
)

// Channel は Publisher が使う AMQP チャネルの操作
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer はブローカーに接続してチャネルを開く
// 戻り値の close はチャネルと接続の両方を閉じる
type Dialer func(url string) (ch Channel, close func() error, err error)

// Publisher はチケットイベントを永続メッセージとしてキューに配信する
// 配信はベストエフォートで、失敗しても購入・キャンセルの結果は変わらない
type Publisher struct {
	url   string
	queue string
	dial  Dialer

	mu      sync.Mutex
	ch      Channel
	closeFn func() error
}

// NewPublisher は Publisher を作成する。接続は最初の配信時に行う
func NewPublisher(url, queue string) *Publisher {
	return NewPublisherWithDialer(url, queue, dialAMQP)
}

// NewPublisherWithDialer は接続方法を指定して Publisher を作成する
func NewPublisherWithDialer(url, queue string, dial Dialer) *Publisher {
	return &Publisher{url: url, queue: queue, dial: dial}
}

func dialAMQP(url string) (Channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, func() error {
		_ = ch.Close()
		return conn.Close()
	}, nil
}

// Publish はイベントを配信する
// nil の Publisher は何もしない
func (p *Publisher) Publish(ctx context.Context, event ticket.Event) error {
	if p == nil {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         string(event.Type),
		Body:         body,
	})
	if err != nil {
		// 次回は接続し直す
		p.reset()
		logger.Warn("チケットイベントの配信に失敗しました",
			zap.String("type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
		return fmt.Errorf("イベント配信に失敗: %w", err)
	}
	return nil
}

// channel は接続済みのチャネルを返す。p.mu を保持して呼ぶ
func (p *Publisher) channel() (Channel, error) {
	if p.ch != nil {
		return p.ch, nil
	}
	ch, closeFn, err := p.dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("ブローカー接続に失敗: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = closeFn()
		return nil, fmt.Errorf("キュー宣言に失敗: %w", err)
	}
	p.ch, p.closeFn = ch, closeFn
	return ch, nil
}

func (p *Publisher) reset() {
	if p.closeFn != nil {
		_ = p.closeFn()
	}
	p.ch, p.closeFn = nil, nil
}

// Close は接続を閉じる
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}
