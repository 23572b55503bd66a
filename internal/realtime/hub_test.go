package realtime

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestHubSubscribeAndUnsubscribe(t *testing.T) {
	hub, _ := startHub(t)

	sub, err := hub.Subscribe(context.Background(), "orders")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)
	if n := hub.Subscribers("orders"); n != 1 {
		t.Fatalf("subscribers: got %d, want 1", n)
	}

	hub.Unsubscribe(sub)
	time.Sleep(10 * time.Millisecond)

	if n := hub.Subscribers("orders"); n != 0 {
		t.Fatalf("room not cleaned up: %d subscribers", n)
	}
	if _, ok := <-sub.Events(); ok {
		t.Fatal("events channel should be closed")
	}
}

func TestHubPublishRoutesByTable(t *testing.T) {
	hub, _ := startHub(t)

	orders, _ := hub.Subscribe(context.Background(), "orders")
	other, _ := hub.Subscribe(context.Background(), "products")

	hub.Publish(ChangeEvent{Type: "INSERT", Table: "orders", OrderID: 5})

	select {
	case evt := <-orders.Events():
		if evt.OrderID != 5 {
			t.Errorf("order id: got %d, want 5", evt.OrderID)
		}
	case <-time.After(time.Second):
		t.Fatal("orders subscriber did not receive event")
	}

	select {
	case evt := <-other.Events():
		t.Fatalf("products subscriber received %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub, _ := startHub(t)

	sub, _ := hub.Subscribe(context.Background(), "orders")
	for i := 0; i < subscriptionBuffer+1; i++ {
		hub.Publish(ChangeEvent{Type: "UPDATE", Table: "orders", OrderID: int64(i)})
	}
	time.Sleep(50 * time.Millisecond)

	if n := hub.Subscribers("orders"); n != 0 {
		t.Fatalf("slow subscriber still registered")
	}

	// Unsubscribing a dropped subscription must not panic.
	hub.Unsubscribe(sub)
}

func TestHubShutdownClosesSubscriptions(t *testing.T) {
	hub, cancel := startHub(t)

	sub, _ := hub.Subscribe(context.Background(), "orders")
	cancel()

	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("subscription not closed on shutdown")
	}

	if _, err := hub.Subscribe(context.Background(), "orders"); err != ErrHubClosed {
		t.Fatalf("Subscribe after shutdown: got %v, want ErrHubClosed", err)
	}
	hub.Publish(ChangeEvent{Type: "INSERT", Table: "orders"})
}
