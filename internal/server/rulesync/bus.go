package rulesync

import (
	"context"
	"fmt"
	"time"
)

type ChangeKind string

const (
	ChangeBypassList    ChangeKind = "bypass_list"
	ChangeBypassOnLocal ChangeKind = "bypass_on_local"
)

// Change is a bypass rule edit made on one instance.
type Change struct {
	// Origin identifies the publishing instance so it can skip its own changes.
	Origin string     `json:"origin"`
	Kind   ChangeKind `json:"kind"`
	At     time.Time  `json:"at"`

	BypassList    []string `json:"bypass_list,omitempty"`
	BypassOnLocal bool     `json:"bypass_on_local,omitempty"`
}

// Bus delivers changes to every subscriber, on this instance and, in redis mode, on others.
// Delivery is best effort: slow subscribers miss changes instead of blocking publishers.
type Bus interface {
	Publish(ctx context.Context, change Change) error

	// Subscribe returns the change stream and a stop function that must be called once.
	Subscribe() (<-chan Change, func())

	Close() error
}

func New(cfg Config) (Bus, error) {
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultChannel
	}

	switch cfg.Mode {
	case "", ModeMemory:
		return NewMemoryBus(), nil
	case ModeRedis:
		client, err := newRedisClient(cfg.Redis)
		if err != nil {
			return nil, err
		}

		return NewRedisBus(client, channel)
	default:
		return nil, fmt.Errorf("rulesync: unknown mode %q", cfg.Mode)
	}
}
