package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "issueboard:issues:changed"

type announcement struct {
	Origin string `json:"origin"`
	At     int64  `json:"at"`
}

// RedisRelay tells other instances sharing the same database that the issue
// collection changed, so they can refresh and publish to their own subscribers.
type RedisRelay struct {
	rc       *redis.Client
	channel  string
	instance string
	logger   *slog.Logger
}

// NewRedisRelay creates a relay on the given channel with a fresh instance id.
func NewRedisRelay(rc *redis.Client, channel string, logger *slog.Logger) *RedisRelay {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{
		rc:       rc,
		channel:  channel,
		instance: uuid.NewString(),
		logger:   logger,
	}
}

// Instance returns the id stamped on announcements from this process.
func (r *RedisRelay) Instance() string {
	return r.instance
}

// Announce publishes a change notification for this instance.
func (r *RedisRelay) Announce(ctx context.Context) error {
	data, err := json.Marshal(announcement{Origin: r.instance, At: time.Now().UnixNano()})
	if err != nil {
		return fmt.Errorf("marshal announcement: %w", err)
	}
	if err := r.rc.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish announcement: %w", err)
	}
	return nil
}

// Run listens for announcements from other instances and calls refresh for each.
// It reconnects when the pub/sub channel closes and returns when ctx is done.
func (r *RedisRelay) Run(ctx context.Context, refresh func(context.Context) error) {
	for {
		sub := r.rc.Subscribe(ctx, r.channel)
		ch := sub.Channel()
	recv:
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-ch:
				if !ok {
					break recv
				}
				var ev announcement
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn("unable to parse announcement", slog.String("error", err.Error()))
					continue
				}
				if ev.Origin == r.instance {
					continue
				}
				if err := refresh(ctx); err != nil {
					r.logger.Error("refresh after announcement failed", slog.String("origin", ev.Origin), slog.String("error", err.Error()))
				}
			}
		}
		_ = sub.Close()
		if ctx.Err() != nil {
			return
		}
		r.logger.Error("pubsub channel closed, reconnecting", slog.String("channel", r.channel))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}
