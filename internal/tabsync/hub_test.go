package tabsync

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sgd-notifier/sgdn/internal/notify"
)

type staticSource struct {
	mu sync.Mutex
	n  *notify.Notification
}

func (s *staticSource) Active(context.Context) (*notify.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n, nil
}

func startHub(t *testing.T, src ActiveSource) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	if src != nil {
		hub.SetSource(src)
	}
	srv := httptest.NewServer(hub.Handler())
	t.Cleanup(srv.Close)
	return hub, srv.URL
}

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg, ok := <-ch:
		if !ok {
			t.Fatal("push stream closed")
		}
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for push")
	}
	return Message{}
}

func waitClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for hub.Clients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastsToAllClients(t *testing.T) {
	hub, url := startHub(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := Subscribe(ctx, url, "")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	b, err := Subscribe(ctx, url, "")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	waitClients(t, hub, 2)

	n := notify.Notification{ID: "sgd_1", Message: "Submit SGD report", Kind: notify.KindReminder}
	hub.ShowNotification(n)
	for _, ch := range []<-chan Message{a, b} {
		msg := receive(t, ch)
		if msg.Type != TypeShow || msg.Notification == nil || msg.Notification.ID != "sgd_1" {
			t.Errorf("push = %+v", msg)
		}
	}

	hub.DismissNotification()
	hub.RemindersUpdated()
	if msg := receive(t, a); msg.Type != TypeDismiss {
		t.Errorf("push = %+v, want dismiss", msg)
	}
	if msg := receive(t, a); msg.Type != TypeRemindersUpdated {
		t.Errorf("push = %+v, want reminders_updated", msg)
	}
}

func TestHub_ShowsActiveOnConnect(t *testing.T) {
	src := &staticSource{n: &notify.Notification{ID: "sgd_active", Kind: notify.KindPeak}}
	_, url := startHub(t, src)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := Subscribe(ctx, url, "")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	msg := receive(t, ch)
	if msg.Type != TypeShow || msg.Notification.ID != "sgd_active" {
		t.Errorf("push on connect = %+v", msg)
	}
}

func TestHub_DropsDisconnectedClients(t *testing.T) {
	hub, url := startHub(t, &staticSource{})
	ctx, cancel := context.WithCancel(context.Background())

	if _, err := Subscribe(ctx, url, ""); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	waitClients(t, hub, 1)

	cancel()
	waitClients(t, hub, 0)

	// Broadcasting with nobody listening is a silent no-op.
	hub.DismissNotification()
}
