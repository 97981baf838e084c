package rulesync

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/looplj/webproxy/internal/log"
)

type redisBus struct {
	subscribers

	client  *redis.Client
	channel string

	// Guards the pubsub lifecycle, which runs while at least one subscriber exists.
	lifecycle sync.Mutex
	pubsub    *redis.PubSub
	cancel    context.CancelFunc
}

// NewRedisBus publishes changes on a redis pub/sub channel shared by all instances.
func NewRedisBus(client *redis.Client, channel string) (Bus, error) {
	if client == nil {
		return nil, errors.New("rulesync: redis client is required")
	}

	if channel == "" {
		return nil, errors.New("rulesync: channel is required")
	}

	return &redisBus{
		client:  client,
		channel: channel,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, change Change) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}

	return b.client.Publish(ctx, b.channel, payload).Err()
}

func (b *redisBus) Subscribe() (<-chan Change, func()) {
	b.lifecycle.Lock()
	defer b.lifecycle.Unlock()

	id, ch := b.add()
	b.startLocked()

	var once sync.Once

	return ch, func() {
		once.Do(func() {
			b.lifecycle.Lock()
			defer b.lifecycle.Unlock()

			if b.remove(id) == 0 {
				b.stopLocked()
			}
		})
	}
}

func (b *redisBus) Close() error {
	b.lifecycle.Lock()
	b.stopLocked()
	b.lifecycle.Unlock()

	return b.client.Close()
}

func (b *redisBus) startLocked() {
	if b.pubsub != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel

	b.pubsub = b.client.Subscribe(ctx, b.channel)
	// Wait for the subscription so changes published right after Subscribe are seen.
	_, _ = b.pubsub.Receive(ctx)

	go b.receive(ctx, b.pubsub)
}

func (b *redisBus) receive(ctx context.Context, ps *redis.PubSub) {
	for {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) || ctx.Err() != nil {
				return
			}

			log.Warn(ctx, "rule sync receive failed",
				log.String("channel", b.channel),
				log.Cause(err))

			continue
		}

		var change Change
		if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
			log.Warn(ctx, "rule sync decode failed",
				log.String("channel", b.channel),
				log.String("payload", msg.Payload),
				log.Cause(err))

			continue
		}

		b.broadcast(change)
	}
}

func (b *redisBus) stopLocked() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}

	if b.pubsub != nil {
		_ = b.pubsub.Close()
		b.pubsub = nil
	}
}

func newRedisClient(cfg RedisConfig) (*redis.Client, error) {
	opts, err := newRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("rulesync: ping redis: %w", err)
	}

	return client, nil
}

// newRedisOptions prefers URL (redis:// or rediss://) over Addr. Explicit credentials and
// DB override the ones in the URL.
func newRedisOptions(cfg RedisConfig) (*redis.Options, error) {
	opts := &redis.Options{}

	switch {
	case cfg.URL != "":
		u, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}

		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return nil, fmt.Errorf("unsupported redis scheme: %s (expected redis:// or rediss://)", u.Scheme)
		}

		if u.Host == "" {
			return nil, errors.New("redis url missing host")
		}

		opts.Addr = u.Host

		if u.User != nil {
			opts.Username = u.User.Username()
			opts.Password, _ = u.User.Password()
		}

		if db := strings.TrimPrefix(u.Path, "/"); db != "" {
			n, err := strconv.Atoi(db)
			if err != nil {
				return nil, fmt.Errorf("invalid redis db in url: %w", err)
			}

			opts.DB = n
		}

		if u.Scheme == "rediss" {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
	case strings.TrimSpace(cfg.Addr) != "":
		opts.Addr = strings.TrimSpace(cfg.Addr)
	default:
		return nil, errors.New("redis addr or url is required")
	}

	if cfg.Username != "" {
		opts.Username = cfg.Username
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.DB != nil {
		opts.DB = *cfg.DB
	}

	if cfg.TLS && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if cfg.TLSInsecureSkipVerify {
		if opts.TLSConfig == nil {
			return nil, errors.New("tls_insecure_skip_verify requires TLS to be enabled (tls=true or rediss://)")
		}

		opts.TLSConfig.InsecureSkipVerify = true // #nosec G402 -- explicitly requested in config
	}

	return opts, nil
}
