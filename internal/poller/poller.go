package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/internal/order"
)

// MessageReader is the subset of *kafka.Reader the poller uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, c order.PaymentConfirmation) (*domain.Order, error)
}

// Poller consumes payment confirmations and applies them to orders. A message
// is committed once it is handled or found to be permanently bad. Transient
// failures are retried until they clear or the poller stops, and a message left
// uncommitted is redelivered to the group.
type Poller struct {
	reader     MessageReader
	verifier   PaymentVerifier
	log        *zap.Logger
	backoff    time.Duration
	maxBackoff time.Duration
}

func NewPoller(verifier PaymentVerifier, topic, groupID string, log *zap.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return NewPollerWithReader(reader, verifier, log)
}

func NewPollerWithReader(reader MessageReader, verifier PaymentVerifier, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		reader:     reader,
		verifier:   verifier,
		log:        log,
		backoff:    500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.processMessage(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Error("error closing kafka reader", zap.Error(err))
	}
}

func (p *Poller) processMessage(ctx context.Context) {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Error("error reading message", zap.Error(err))
		}
		return
	}

	log := p.log.With(
		zap.String("topic", m.Topic),
		zap.Int("partition", m.Partition),
		zap.Int64("offset", m.Offset))

	var c order.PaymentConfirmation
	if err := json.Unmarshal(m.Value, &c); err != nil {
		log.Error("error parsing payment confirmation", zap.Error(err))
		p.commit(ctx, m)
		return
	}

	backoff := p.backoff
	for attempt := 1; ; attempt++ {
		_, err = p.verifier.VerifyPayment(ctx, c)
		if err == nil || permanent(err) {
			break
		}
		log.Warn("payment verification failed, retrying",
			zap.String("order_id", c.OrderID.String()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			log.Error("payment confirmation left uncommitted",
				zap.String("order_id", c.OrderID.String()), zap.Error(err))
			return
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, p.maxBackoff)
	}

	switch {
	case err == nil:
		log.Info("payment confirmation applied", zap.String("order_id", c.OrderID.String()))
	case errors.Is(err, domain.ErrPaymentSignatureMismatch):
		log.Warn("payment confirmation rejected", zap.String("order_id", c.OrderID.String()), zap.Error(err))
	default:
		log.Error("payment confirmation discarded", zap.String("order_id", c.OrderID.String()), zap.Error(err))
	}
	p.commit(ctx, m)
}

func (p *Poller) commit(ctx context.Context, m kafka.Message) {
	if err := p.reader.CommitMessages(ctx, m); err != nil {
		p.log.Error("error committing message", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

// permanent errors will not change on retry.
func permanent(err error) bool {
	return errors.Is(err, domain.ErrPaymentSignatureMismatch) ||
		errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrIllegalTransition)
}
