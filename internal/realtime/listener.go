package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/enum"
	"github.com/cuckooeats/backoffice/internal/metrics"
	"github.com/cuckooeats/backoffice/internal/order"
)

const (
	newOrderTitle   = "Nuevo Pedido"
	newOrderBodyFmt = "Pedido #%d recibido"

	resubscribeInitial = 100 * time.Millisecond
	resubscribeMax     = 30 * time.Second
)

// Feed hands out change subscriptions. Satisfied by *Hub.
type Feed interface {
	Subscribe(ctx context.Context, table string) (*Subscription, error)
	Unsubscribe(sub *Subscription)
}

// RefetchFunc reloads the full order list.
type RefetchFunc func(ctx context.Context) error

// Listener keeps one order list in sync with the change feed. It holds at
// most one live subscription.
type Listener struct {
	feed     Feed
	refetch  RefetchFunc
	notifier Notifier
	sound    SoundPlayer
	logger   *zap.Logger
	metrics  *metrics.Metrics

	retryInitial time.Duration
	retryMax     time.Duration

	mu              sync.Mutex
	sub             *Subscription
	cancel          context.CancelFunc
	done            chan struct{}
	permissionAsked bool
}

func NewListener(feed Feed, refetch RefetchFunc, notifier Notifier, sound SoundPlayer, logger *zap.Logger, m *metrics.Metrics) *Listener {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if sound == nil {
		sound = NopSound{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		feed:     feed,
		refetch:  refetch,
		notifier: notifier,
		sound:    sound,
		logger:   logger,
		metrics:  m,

		retryInitial: resubscribeInitial,
		retryMax:     resubscribeMax,
	}
}

// Subscribe replaces any existing subscription with a fresh one. Events are
// handled in arrival order on a single goroutine until Unsubscribe or ctx ends.
func (l *Listener) Subscribe(ctx context.Context) error {
	l.Unsubscribe()

	sub, err := l.feed.Subscribe(ctx, enum.TableOrders)
	if err != nil {
		return &order.Error{Kind: order.KindSubscription, Op: "subscribe to order changes", Err: err}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	l.mu.Lock()
	l.sub = sub
	l.cancel = cancel
	l.done = done
	l.mu.Unlock()

	go l.loop(loopCtx, sub, done)
	return nil
}

// Unsubscribe tears the subscription down and waits for the dispatch
// goroutine to exit. Calling it with nothing subscribed does nothing.
func (l *Listener) Unsubscribe() {
	l.mu.Lock()
	sub, cancel, done := l.sub, l.cancel, l.done
	l.sub, l.cancel, l.done = nil, nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	l.feed.Unsubscribe(sub)
	<-done
}

// Subscribed reports whether a subscription is live. It is false while a
// dropped subscription is being re-established.
func (l *Listener) Subscribed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sub != nil
}

// RequestPermissionOnce asks for notification permission the first time it
// is called, and only if the user has not decided yet.
func (l *Listener) RequestPermissionOnce(ctx context.Context) {
	l.mu.Lock()
	if l.permissionAsked {
		l.mu.Unlock()
		return
	}
	l.permissionAsked = true
	l.mu.Unlock()

	if l.notifier.Permission(ctx) != PermissionDefault {
		return
	}
	if _, err := l.notifier.RequestPermission(ctx); err != nil {
		l.logger.Debug("notification permission request failed", zap.Error(err))
	}
}

// loop dispatches events until ctx ends. When the feed drops the
// subscription it resubscribes and refetches once, since events may have been
// missed in between.
func (l *Listener) loop(ctx context.Context, sub *Subscription, done chan struct{}) {
	defer close(done)
	defer func() { l.feed.Unsubscribe(sub) }()

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub.Events():
			if !ok {
				if ctx.Err() != nil {
					return
				}
				next := l.resubscribe(ctx, done)
				if next == nil {
					return
				}
				sub = next
				if err := l.refetch(ctx); err != nil {
					l.logger.Warn("refetch after resubscribe failed", zap.Error(err))
				}
				continue
			}
			l.handle(ctx, evt)
		}
	}
}

// resubscribe replaces a dropped subscription, backing off between failed
// attempts. It returns nil when ctx ends, the feed is shut down, or the
// listener was unsubscribed meanwhile.
func (l *Listener) resubscribe(ctx context.Context, done chan struct{}) *Subscription {
	l.mu.Lock()
	if l.done == done {
		l.sub = nil
	}
	l.mu.Unlock()

	l.metrics.ObserveFeedError("hub")
	l.logger.Warn("order change subscription dropped; resubscribing",
		zap.Error(&order.Error{Kind: order.KindSubscription, Op: "order change feed", Err: ErrSubscriptionDropped}))

	backoff := l.retryInitial
	for {
		sub, err := l.feed.Subscribe(ctx, enum.TableOrders)
		if err == nil {
			l.mu.Lock()
			if l.done != done || ctx.Err() != nil {
				l.mu.Unlock()
				l.feed.Unsubscribe(sub)
				return nil
			}
			l.sub = sub
			l.mu.Unlock()
			l.logger.Info("order change subscription restored")
			return sub
		}
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrHubClosed) {
			l.logger.Info("order change feed closed", zap.Error(err))
			return nil
		}

		l.logger.Warn("resubscribe to order changes failed",
			zap.Duration("retry_in", backoff),
			zap.Error(err),
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff *= 2
		if backoff > l.retryMax {
			backoff = l.retryMax
		}
	}
}

func (l *Listener) handle(ctx context.Context, evt ChangeEvent) {
	l.metrics.ObserveChange(evt.Type)

	switch evt.Type {
	case enum.ChangeInsert:
		l.announce(ctx, evt.OrderID)
	case enum.ChangeUpdate:
	default:
		return
	}

	if err := l.refetch(ctx); err != nil {
		l.logger.Warn("refetch after change failed",
			zap.String("type", evt.Type),
			zap.Int64("order_id", evt.OrderID),
			zap.Error(err),
		)
	}
}

// announce is best effort; failures never block the refetch.
func (l *Listener) announce(ctx context.Context, orderID int64) {
	if err := l.sound.Play(ctx); err != nil {
		l.logger.Debug("new order sound failed", zap.Error(err))
	}
	if l.notifier.Permission(ctx) != PermissionGranted {
		return
	}
	if err := l.notifier.Notify(ctx, newOrderTitle, fmt.Sprintf(newOrderBodyFmt, orderID)); err != nil {
		l.logger.Debug("new order notification failed", zap.Error(err))
	}
}
