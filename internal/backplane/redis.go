package backplane

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	redisConnectAttempts = 5
	redisRetryDelay      = 2 * time.Second
)

// Redis relays messages over a Redis pub/sub channel.
type Redis struct {
	client  *redis.Client
	channel string

	mu     sync.Mutex
	subs   []*redis.PubSub
	closed bool
}

// NewRedis connects to url (redis://...) and pings it, retrying a few times
// while the server comes up.
func NewRedis(ctx context.Context, url, channel string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("backplane: parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	for i := 1; ; i++ {
		err = client.Ping(ctx).Err()
		if err == nil {
			break
		}
		if i == redisConnectAttempts {
			_ = client.Close()
			return nil, fmt.Errorf("backplane: connect to redis after %d attempts: %w", i, err)
		}
		logrus.WithError(err).WithField("attempt", i).Warn("Failed to connect to Redis, retrying.")
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(redisRetryDelay):
		}
	}
	return &Redis{client: client, channel: channel}, nil
}

func (r *Redis) Publish(ctx context.Context, m Message) error {
	b, err := encode(m)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, b).Err(); err != nil {
		return fmt.Errorf("backplane: redis publish: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}

	ps := r.client.Subscribe(ctx, r.channel)
	// wait for the subscription confirmation so nothing published after
	// Subscribe returns is missed
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("backplane: redis subscribe: %w", err)
	}
	r.subs = append(r.subs, ps)

	go func() {
		ch := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = ps.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				m, err := decode([]byte(msg.Payload))
				if err != nil {
					logrus.WithError(err).Warn("Dropping malformed backplane message.")
					continue
				}
				h(m)
			}
		}
	}()
	return nil
}

func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	for _, ps := range r.subs {
		_ = ps.Close()
	}
	return r.client.Close()
}
