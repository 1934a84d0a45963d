// Package redisstore records transitions in Redis lists, one per
// execution, and publishes each new transition on a per-execution channel.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/pipeflow/errors"
	"github.com/kbukum/pipeflow/redis"
	"github.com/kbukum/pipeflow/tracker"
)

// record appends ARGV[2] to the list KEYS[2] unless ARGV[1] is already in
// the set KEYS[1], and returns 1 when it appended.
var record = goredis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 0 then
  return 0
end
redis.call('RPUSH', KEYS[2], ARGV[2])
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
  redis.call('EXPIRE', KEYS[2], ttl)
end
return 1
`)

// Store is a tracker.Tracker and tracker.Reader backed by Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

var (
	_ tracker.Tracker = (*Store)(nil)
	_ tracker.Reader  = (*Store)(nil)
)

// New creates a Store. Keys expire ttl after the last write; zero keeps them
// forever.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Channel returns the pub/sub channel transitions of executionID are
// published on.
func (s *Store) Channel(executionID string) string {
	return s.client.Key("events", executionID)
}

// RecordTransition implements tracker.Tracker.
func (s *Store) RecordTransition(ctx context.Context, t tracker.Transition) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	keys := []string{s.client.Key("seen", t.ExecutionID), s.client.Key("transitions", t.ExecutionID)}
	added, err := record.Run(ctx, s.client.Unwrap(), keys, t.Key(), string(data), int64(s.ttl/time.Second)).Int()
	if err != nil {
		return errors.ConnectionFailed("redis").WithCause(err)
	}
	if added == 1 {
		// Subscribers are best-effort; the list is the record.
		_ = s.client.Unwrap().Publish(ctx, s.Channel(t.ExecutionID), data).Err()
	}
	return nil
}

// Transitions implements tracker.Reader.
func (s *Store) Transitions(ctx context.Context, executionID string) ([]tracker.Transition, error) {
	raw, err := s.client.Unwrap().LRange(ctx, s.client.Key("transitions", executionID), 0, -1).Result()
	if err != nil {
		return nil, errors.ConnectionFailed("redis").WithCause(err)
	}
	out := make([]tracker.Transition, 0, len(raw))
	for _, r := range raw {
		var t tracker.Transition
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Subscribe streams transitions of executionID published after the call.
// The channel closes when ctx is done.
func (s *Store) Subscribe(ctx context.Context, executionID string) (<-chan tracker.Transition, error) {
	sub := s.client.Unwrap().Subscribe(ctx, s.Channel(executionID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.ConnectionFailed("redis").WithCause(err)
	}
	out := make(chan tracker.Transition)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var t tracker.Transition
				if err := json.Unmarshal([]byte(msg.Payload), &t); err != nil {
					continue
				}
				select {
				case out <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
