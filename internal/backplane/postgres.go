package backplane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// NOTIFY payloads must be shorter than 8000 bytes.
	maxNotifyPayload = 7999

	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

// Postgres relays messages with LISTEN/NOTIFY on the application database.
// Publishing goes through the gorm pool; each subscription holds its own
// pq.Listener connection.
type Postgres struct {
	db      *gorm.DB
	dsn     string
	channel string

	mu        sync.Mutex
	listeners []*pq.Listener
	closed    bool
}

func NewPostgres(db *gorm.DB, dsn, channel string) *Postgres {
	return &Postgres{db: db, dsn: dsn, channel: channel}
}

func (p *Postgres) Publish(ctx context.Context, m Message) error {
	b, err := encode(m)
	if err != nil {
		return err
	}
	if len(b) > maxNotifyPayload {
		return fmt.Errorf("backplane: message of %d bytes exceeds the notify payload limit", len(b))
	}
	if err := p.db.WithContext(ctx).Exec("SELECT pg_notify(?, ?)", p.channel, string(b)).Error; err != nil {
		return fmt.Errorf("backplane: pg_notify: %w", err)
	}
	return nil
}

func (p *Postgres) Subscribe(ctx context.Context, h Handler) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	l := pq.NewListener(p.dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logrus.WithError(err).WithField("event", ev).Warn("Postgres listener event.")
		}
	})
	if err := l.Listen(p.channel); err != nil {
		_ = l.Close()
		return fmt.Errorf("backplane: listen %s: %w", p.channel, err)
	}
	p.listeners = append(p.listeners, l)

	go func() {
		ticker := time.NewTicker(listenerPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = l.Close()
				return
			case n, ok := <-l.Notify:
				if !ok {
					return
				}
				// nil after a reconnect
				if n == nil {
					continue
				}
				m, err := decode([]byte(n.Extra))
				if err != nil {
					logrus.WithError(err).Warn("Dropping malformed backplane message.")
					continue
				}
				h(m)
			case <-ticker.C:
				go func() { _ = l.Ping() }()
			}
		}
	}()
	return nil
}

func (p *Postgres) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	for _, l := range p.listeners {
		_ = l.Close()
	}
	return nil
}
