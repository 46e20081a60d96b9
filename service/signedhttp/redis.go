package signedhttp

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "nexus:signedhttp:replay:"

// redisEntry is the stored JSON value; Response stays nil while the
// original request is in flight.
type redisEntry struct {
	RequestHash string          `json:"request_hash"`
	Response    *SignedResponse `json:"response,omitempty"`
}

// RedisReplayStore shares replay state between responder instances.
// Entry lifetime is enforced by redis TTLs derived from the claims
// expiry, so no explicit purge pass is needed. Backend errors surface as
// in-flight decisions so the invoker retries instead of executing twice.
type RedisReplayStore struct {
	client *redis.Client
}

// NewRedisReplayStore creates a replay store on an existing client.
func NewRedisReplayStore(client *redis.Client) *RedisReplayStore {
	return &RedisReplayStore{client: client}
}

func (s *RedisReplayStore) BeginOrReplay(nonceKey string, requestHash [32]byte, expiresAtMs, nowMs uint64) (ReplayDecision, *SignedResponse) {
	ctx := context.Background()
	key := redisKeyPrefix + nonceKey
	ttl := entryTTL(expiresAtMs, nowMs)
	if ttl <= 0 {
		// Already past its window; treat as first sighting with a minimal
		// reservation so concurrent duplicates still collide.
		ttl = time.Second
	}

	reservation, err := json.Marshal(&redisEntry{RequestHash: hex.EncodeToString(requestHash[:])})
	if err != nil {
		return ReplayInFlight, nil
	}
	created, err := s.client.SetNX(ctx, key, reservation, ttl).Result()
	if err != nil {
		return ReplayInFlight, nil
	}
	if created {
		return ReplayProceed, nil
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		// Reservation expired between SetNX and Get; take it now.
		if created, err := s.client.SetNX(ctx, key, reservation, ttl).Result(); err == nil && created {
			return ReplayProceed, nil
		}
		return ReplayInFlight, nil
	}
	if err != nil {
		return ReplayInFlight, nil
	}
	entry := &redisEntry{}
	if err := json.Unmarshal(raw, entry); err != nil {
		return ReplayInFlight, nil
	}
	if entry.RequestHash != hex.EncodeToString(requestHash[:]) {
		return ReplayReject, nil
	}
	if entry.Response == nil {
		return ReplayInFlight, nil
	}
	return ReplayReturn, entry.Response
}

func (s *RedisReplayStore) Complete(nonceKey string, requestHash [32]byte, expiresAtMs uint64, response *SignedResponse) {
	ctx := context.Background()
	data, err := json.Marshal(&redisEntry{
		RequestHash: hex.EncodeToString(requestHash[:]),
		Response:    response,
	})
	if err != nil {
		return
	}
	ttl := entryTTL(expiresAtMs, uint64(time.Now().UnixMilli()))
	if ttl <= 0 {
		ttl = time.Second
	}
	s.client.Set(ctx, redisKeyPrefix+nonceKey, data, ttl)
}

func (s *RedisReplayStore) Remove(nonceKey string) {
	s.client.Del(context.Background(), redisKeyPrefix+nonceKey)
}

func entryTTL(expiresAtMs, nowMs uint64) time.Duration {
	if expiresAtMs <= nowMs {
		return 0
	}
	return time.Duration(expiresAtMs-nowMs) * time.Millisecond
}
