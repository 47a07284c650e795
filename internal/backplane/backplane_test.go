package backplane

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// exerciseBus publishes a few messages and expects to see them in order.
func exerciseBus(t *testing.T, bus Bus) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Message, 8)
	if err := bus.Subscribe(ctx, func(m Message) { got <- m }); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	for i := uint(1); i <= 3; i++ {
		m := Message{ConsultationID: i, Payload: json.RawMessage(`{"n":1}`)}
		if err := bus.Publish(ctx, m); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	for want := uint(1); want <= 3; want++ {
		select {
		case m := <-got:
			if m.ConsultationID != want {
				t.Fatalf("got consultation %d, want %d", m.ConsultationID, want)
			}
			if string(m.Payload) != `{"n":1}` {
				t.Fatalf("payload = %s", m.Payload)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", want)
		}
	}
}

func TestLocal(t *testing.T) {
	bus := NewLocal()
	exerciseBus(t, bus)

	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := bus.Publish(context.Background(), Message{ConsultationID: 1}); !errors.Is(err, ErrClosed) {
		t.Fatalf("publish after close: got %v", err)
	}
}

func TestLocal_FanOutToEverySubscriber(t *testing.T) {
	bus := NewLocal()
	var a, b int
	_ = bus.Subscribe(context.Background(), func(Message) { a++ })
	_ = bus.Subscribe(context.Background(), func(Message) { b++ })
	if err := bus.Publish(context.Background(), Message{ConsultationID: 7}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if a != 1 || b != 1 {
		t.Fatalf("deliveries a=%d b=%d, want 1 each", a, b)
	}
}

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	bus, err := NewRedis(context.Background(), url, "telehealth_test_"+time.Now().Format("150405.000"))
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer bus.Close()
	exerciseBus(t, bus)
}

func TestRedis_BadURL(t *testing.T) {
	if _, err := NewRedis(context.Background(), "not a url", "c"); err == nil {
		t.Fatal("expected an error for a malformed url")
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	bus := NewPostgres(db, dsn, "telehealth_test")
	defer bus.Close()
	exerciseBus(t, bus)
}

func TestPostgres_RejectsOversizedPayload(t *testing.T) {
	bus := NewPostgres(nil, "", "c")
	big := make([]byte, maxNotifyPayload)
	for i := range big {
		big[i] = 'a'
	}
	payload, _ := json.Marshal(string(big))
	if err := bus.Publish(context.Background(), Message{ConsultationID: 1, Payload: payload}); err == nil {
		t.Fatal("expected size error")
	}
}
