package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cuckooeats/backoffice/internal/order"
)

// --- Fakes ---

type fakeNotifier struct {
	mu         sync.Mutex
	permission Permission
	requests   int
	notifyErr  error
	titles     []string
	bodies     []string
}

func (f *fakeNotifier) Permission(context.Context) Permission {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.permission
}

func (f *fakeNotifier) RequestPermission(context.Context) (Permission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	f.permission = PermissionGranted
	return f.permission, nil
}

func (f *fakeNotifier) Notify(_ context.Context, title, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.titles = append(f.titles, title)
	f.bodies = append(f.bodies, body)
	return f.notifyErr
}

func (f *fakeNotifier) notified() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.titles...), append([]string(nil), f.bodies...)
}

type fakeSound struct {
	plays atomic.Int32
	err   error
}

func (f *fakeSound) Play(context.Context) error {
	f.plays.Add(1)
	return f.err
}

type failingFeed struct{}

func (failingFeed) Subscribe(context.Context, string) (*Subscription, error) {
	return nil, errors.New("realtime unavailable")
}
func (failingFeed) Unsubscribe(*Subscription) {}

// waitFor polls cond for up to a second.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

// --- Tests ---

func TestListenerInsertAnnouncesAndRefetches(t *testing.T) {
	hub, _ := startHub(t)
	var refetches atomic.Int32
	notifier := &fakeNotifier{permission: PermissionGranted}
	sound := &fakeSound{}

	l := NewListener(hub, func(context.Context) error {
		refetches.Add(1)
		return nil
	}, notifier, sound, zap.NewNop(), nil)

	if err := l.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer l.Unsubscribe()

	hub.Publish(ChangeEvent{Type: "INSERT", Table: "orders", OrderID: 42})

	waitFor(t, func() bool { return refetches.Load() == 1 })
	if sound.plays.Load() != 1 {
		t.Errorf("sound plays: got %d, want 1", sound.plays.Load())
	}
	titles, bodies := notifier.notified()
	if len(titles) != 1 || titles[0] != "Nuevo Pedido" || bodies[0] != "Pedido #42 recibido" {
		t.Errorf("notification: got %v / %v", titles, bodies)
	}
}

func TestListenerUpdateOnlyRefetches(t *testing.T) {
	hub, _ := startHub(t)
	var refetches atomic.Int32
	notifier := &fakeNotifier{permission: PermissionGranted}
	sound := &fakeSound{}

	l := NewListener(hub, func(context.Context) error {
		refetches.Add(1)
		return nil
	}, notifier, sound, zap.NewNop(), nil)
	if err := l.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer l.Unsubscribe()

	hub.Publish(ChangeEvent{Type: "UPDATE", Table: "orders", OrderID: 42})

	waitFor(t, func() bool { return refetches.Load() == 1 })
	if sound.plays.Load() != 0 {
		t.Error("update should not play sound")
	}
	if titles, _ := notifier.notified(); len(titles) != 0 {
		t.Error("update should not notify")
	}
}

func TestListenerNoNotificationWithoutPermission(t *testing.T) {
	hub, _ := startHub(t)
	var refetches atomic.Int32
	notifier := &fakeNotifier{permission: PermissionDenied}

	l := NewListener(hub, func(context.Context) error {
		refetches.Add(1)
		return nil
	}, notifier, nil, zap.NewNop(), nil)
	if err := l.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer l.Unsubscribe()

	hub.Publish(ChangeEvent{Type: "INSERT", Table: "orders", OrderID: 1})

	waitFor(t, func() bool { return refetches.Load() == 1 })
	if titles, _ := notifier.notified(); len(titles) != 0 {
		t.Errorf("notified without permission: %v", titles)
	}
}

func TestListenerAnnouncementFailuresStillRefetch(t *testing.T) {
	hub, _ := startHub(t)
	var refetches atomic.Int32
	notifier := &fakeNotifier{permission: PermissionGranted, notifyErr: errors.New("blocked")}
	sound := &fakeSound{err: errors.New("autoplay blocked")}

	l := NewListener(hub, func(context.Context) error {
		refetches.Add(1)
		return nil
	}, notifier, sound, zap.NewNop(), nil)
	if err := l.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer l.Unsubscribe()

	hub.Publish(ChangeEvent{Type: "INSERT", Table: "orders", OrderID: 3})
	waitFor(t, func() bool { return refetches.Load() == 1 })
}

func TestListenerResubscribeKeepsSingleSubscription(t *testing.T) {
	hub, _ := startHub(t)
	var refetches atomic.Int32

	l := NewListener(hub, func(context.Context) error {
		refetches.Add(1)
		return nil
	}, nil, nil, zap.NewNop(), nil)

	for i := 0; i < 3; i++ {
		if err := l.Subscribe(context.Background()); err != nil {
			t.Fatalf("Subscribe #%d: %v", i, err)
		}
	}
	defer l.Unsubscribe()

	waitFor(t, func() bool { return hub.Subscribers("orders") == 1 })

	hub.Publish(ChangeEvent{Type: "UPDATE", Table: "orders", OrderID: 9})
	waitFor(t, func() bool { return refetches.Load() == 1 })

	time.Sleep(30 * time.Millisecond)
	if refetches.Load() != 1 {
		t.Fatalf("refetches: got %d, want exactly 1", refetches.Load())
	}
}

func TestListenerUnsubscribeIsIdempotent(t *testing.T) {
	hub, _ := startHub(t)
	var refetches atomic.Int32

	l := NewListener(hub, func(context.Context) error {
		refetches.Add(1)
		return nil
	}, nil, nil, zap.NewNop(), nil)

	l.Unsubscribe()
	if err := l.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	l.Unsubscribe()
	l.Unsubscribe()

	if l.Subscribed() {
		t.Fatal("still subscribed")
	}

	hub.Publish(ChangeEvent{Type: "UPDATE", Table: "orders", OrderID: 1})
	time.Sleep(30 * time.Millisecond)
	if refetches.Load() != 0 {
		t.Fatalf("refetched after unsubscribe")
	}
}

func TestListenerSubscribeFailureIsSubscriptionError(t *testing.T) {
	l := NewListener(failingFeed{}, func(context.Context) error { return nil }, nil, nil, zap.NewNop(), nil)

	err := l.Subscribe(context.Background())
	if order.KindOf(err) != order.KindSubscription {
		t.Fatalf("kind: got %v, want subscription", order.KindOf(err))
	}
	l.Unsubscribe()
}

func TestRequestPermissionOnce(t *testing.T) {
	notifier := &fakeNotifier{permission: PermissionDefault}
	l := NewListener(failingFeed{}, nil, notifier, nil, zap.NewNop(), nil)

	l.RequestPermissionOnce(context.Background())
	l.RequestPermissionOnce(context.Background())

	if notifier.requests != 1 {
		t.Fatalf("requests: got %d, want 1", notifier.requests)
	}
}

func TestRequestPermissionSkippedWhenDecided(t *testing.T) {
	notifier := &fakeNotifier{permission: PermissionDenied}
	l := NewListener(failingFeed{}, nil, notifier, nil, zap.NewNop(), nil)

	l.RequestPermissionOnce(context.Background())

	if notifier.requests != 0 {
		t.Fatalf("requests: got %d, want 0", notifier.requests)
	}
}

// flakyFeed fails the first failures resubscribe attempts after the initial
// subscription, then delegates to the hub.
type flakyFeed struct {
	*Hub
	mu       sync.Mutex
	calls    int
	failures int
}

func (f *flakyFeed) Subscribe(ctx context.Context, table string) (*Subscription, error) {
	f.mu.Lock()
	f.calls++
	fail := f.calls > 1 && f.calls <= 1+f.failures
	f.mu.Unlock()
	if fail {
		return nil, errors.New("feed unavailable")
	}
	return f.Hub.Subscribe(ctx, table)
}

func TestListenerRecoversAfterHubDropsIt(t *testing.T) {
	hub, _ := startHub(t)
	var refetches atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	l := NewListener(hub, func(ctx context.Context) error {
		refetches.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil
	}, nil, nil, zap.NewNop(), nil)
	if err := l.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer l.Unsubscribe()

	// Park the dispatcher inside a refetch, then overflow its buffer.
	hub.Publish(ChangeEvent{Type: "INSERT", Table: "orders", OrderID: 1})
	<-started
	for i := 0; i < subscriptionBuffer+10; i++ {
		hub.Publish(ChangeEvent{Type: "INSERT", Table: "orders", OrderID: int64(i + 2)})
	}
	waitFor(t, func() bool { return hub.Subscribers("orders") == 0 })

	close(release)
	waitFor(t, func() bool { return l.Subscribed() && hub.Subscribers("orders") == 1 })
	time.Sleep(20 * time.Millisecond)

	before := refetches.Load()
	hub.Publish(ChangeEvent{Type: "UPDATE", Table: "orders", OrderID: 1})
	waitFor(t, func() bool { return refetches.Load() > before })
}

func TestListenerResubscribeBacksOffOnFailure(t *testing.T) {
	hub, _ := startHub(t)
	feed := &flakyFeed{Hub: hub, failures: 2}
	var refetches atomic.Int32

	l := NewListener(feed, func(context.Context) error {
		refetches.Add(1)
		return nil
	}, nil, nil, zap.NewNop(), nil)
	l.retryInitial = time.Millisecond
	l.retryMax = 5 * time.Millisecond

	if err := l.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer l.Unsubscribe()
	waitFor(t, func() bool { return hub.Subscribers("orders") == 1 })

	// Drop the subscription the way the hub does for a slow consumer.
	l.mu.Lock()
	sub := l.sub
	l.mu.Unlock()
	hub.Unsubscribe(sub)

	waitFor(t, func() bool { return l.Subscribed() && hub.Subscribers("orders") == 1 })
	// One catch-up refetch once the subscription is back.
	waitFor(t, func() bool { return refetches.Load() == 1 })

	feed.mu.Lock()
	calls := feed.calls
	feed.mu.Unlock()
	if calls != 4 {
		t.Fatalf("subscribe calls: got %d, want 4", calls)
	}
}

func TestListenerStopsWhenHubShutsDown(t *testing.T) {
	hub, cancel := startHub(t)

	l := NewListener(hub, func(context.Context) error { return nil }, nil, nil, zap.NewNop(), nil)
	if err := l.Subscribe(context.Background()); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	cancel()

	waitFor(t, func() bool { return !l.Subscribed() })

	finished := make(chan struct{})
	go func() {
		l.Unsubscribe()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Unsubscribe hung after hub shutdown")
	}
}
