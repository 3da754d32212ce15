package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vali024/valix-shop/internal/domain"
	"github.com/vali024/valix-shop/internal/order"
)

type mockReader struct {
	m         sync.RWMutex
	msgs      chan kafka.Message
	committed []int64
}

func newMockReader(msgs ...kafka.Message) *mockReader {
	r := &mockReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *mockReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *mockReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.m.Lock()
	defer r.m.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *mockReader) Close() error { return nil }

func (r *mockReader) commits() []int64 {
	r.m.RLock()
	defer r.m.RUnlock()
	return append([]int64(nil), r.committed...)
}

type mockVerifier struct {
	m     sync.Mutex
	calls []order.PaymentConfirmation
	errs  []error // returned in order, then fail
	fail  error
}

func (v *mockVerifier) VerifyPayment(_ context.Context, c order.PaymentConfirmation) (*domain.Order, error) {
	v.m.Lock()
	defer v.m.Unlock()
	v.calls = append(v.calls, c)
	if len(v.errs) > 0 {
		err := v.errs[0]
		v.errs = v.errs[1:]
		return nil, err
	}
	if v.fail != nil {
		return nil, v.fail
	}
	return &domain.Order{ID: c.OrderID, Status: domain.OrderStatusConfirmed}, nil
}

func (v *mockVerifier) callCount() int {
	v.m.Lock()
	defer v.m.Unlock()
	return len(v.calls)
}

func confirmationMessage(t *testing.T, offset int64, c order.PaymentConfirmation) kafka.Message {
	t.Helper()
	b, err := json.Marshal(c)
	require.NoError(t, err)
	return kafka.Message{Topic: "payment-confirmations", Offset: offset, Value: b}
}

func newTestPoller(r *mockReader, v *mockVerifier) *Poller {
	p := NewPollerWithReader(r, v, nil)
	p.backoff = time.Millisecond
	p.maxBackoff = 4 * time.Millisecond
	return p
}

func TestPoller_AppliesConfirmation(t *testing.T) {
	c := order.PaymentConfirmation{OrderID: uuid.New(), GatewayOrderID: "gw", GatewayPaymentID: "pay", Signature: "sig"}
	r := newMockReader(confirmationMessage(t, 7, c))
	v := &mockVerifier{}

	newTestPoller(r, v).processMessage(context.Background())

	require.Equal(t, 1, v.callCount())
	assert.Equal(t, c, v.calls[0])
	assert.Equal(t, []int64{7}, r.commits())
}

func TestPoller_CommitsMalformedMessage(t *testing.T) {
	r := newMockReader(kafka.Message{Offset: 3, Value: []byte("{not json")})
	v := &mockVerifier{}

	newTestPoller(r, v).processMessage(context.Background())

	assert.Equal(t, 0, v.callCount())
	assert.Equal(t, []int64{3}, r.commits())
}

func TestPoller_DoesNotRetryPermanentErrors(t *testing.T) {
	c := order.PaymentConfirmation{OrderID: uuid.New()}
	r := newMockReader(confirmationMessage(t, 1, c))
	v := &mockVerifier{errs: []error{domain.ErrPaymentSignatureMismatch}}

	newTestPoller(r, v).processMessage(context.Background())

	assert.Equal(t, 1, v.callCount())
	assert.Equal(t, []int64{1}, r.commits())
}

func TestPoller_RetriesTransientErrors(t *testing.T) {
	c := order.PaymentConfirmation{OrderID: uuid.New()}
	r := newMockReader(confirmationMessage(t, 1, c))
	boom := errors.New("connection reset")
	v := &mockVerifier{errs: []error{boom, boom}}

	newTestPoller(r, v).processMessage(context.Background())

	assert.Equal(t, 3, v.callCount())
	assert.Equal(t, []int64{1}, r.commits())
}

func TestPoller_KeepsTransientFailuresUncommitted(t *testing.T) {
	c := order.PaymentConfirmation{OrderID: uuid.New()}
	r := newMockReader(confirmationMessage(t, 9, c))
	v := &mockVerifier{fail: errors.New("connection refused")}
	p := newTestPoller(r, v)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.processMessage(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return v.callCount() > 5 }, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Empty(t, r.commits(), "a confirmation that was never applied must be redelivered")
}

func TestPoller_AppliesAfterLongOutage(t *testing.T) {
	c := order.PaymentConfirmation{OrderID: uuid.New()}
	r := newMockReader(confirmationMessage(t, 4, c))
	boom := errors.New("connection refused")
	v := &mockVerifier{errs: []error{boom, boom, boom, boom, boom, boom}}

	newTestPoller(r, v).processMessage(context.Background())

	assert.Equal(t, 7, v.callCount())
	assert.Equal(t, []int64{4}, r.commits())
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	c := order.PaymentConfirmation{OrderID: uuid.New()}
	r := newMockReader(confirmationMessage(t, 1, c), confirmationMessage(t, 2, c))
	v := &mockVerifier{}
	p := newTestPoller(r, v)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(r.commits()) == 2 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
