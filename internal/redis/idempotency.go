package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Key pattern: payment:idempotency:{key} -> payment id, 24h TTL.
//
// The TTL bounds the duplicate-detection window: a key replayed after
// expiry is treated as a novel request. That trade-off is deliberate; the
// unique constraint on payments.idempotency_key still rejects a second
// insert for the lifetime of the row.

const (
	idempotencyKeyPrefix = "payment:idempotency:"
	idempotencyTTL       = 24 * time.Hour
)

// ReserveResult reports the outcome of a reservation attempt.
type ReserveResult struct {
	Reserved   bool
	ExistingID uuid.UUID
}

// IdempotencyGuard is a membership service mapping idempotency keys to
// payment ids. It never stores payment data beyond the id; the aggregate's
// true state always comes from the payment store.
type IdempotencyGuard struct {
	client *goredis.Client
}

func NewIdempotencyGuard(client *goredis.Client) *IdempotencyGuard {
	return &IdempotencyGuard{client: client}
}

// Reserve atomically claims key for candidateID. When another request
// already holds the key, the winner's payment id is returned instead.
func (g *IdempotencyGuard) Reserve(ctx context.Context, key string, candidateID uuid.UUID) (ReserveResult, error) {
	redisKey := idempotencyKeyPrefix + key

	ok, err := g.client.SetNX(ctx, redisKey, candidateID.String(), idempotencyTTL).Result()
	if err != nil {
		return ReserveResult{}, fmt.Errorf("idempotency reserve failed: %w", err)
	}
	if ok {
		return ReserveResult{Reserved: true}, nil
	}

	existing, err := g.client.Get(ctx, redisKey).Result()
	if err == goredis.Nil {
		// Winner expired between SETNX and GET; treat the key as novel and
		// claim it now.
		if err := g.client.Set(ctx, redisKey, candidateID.String(), idempotencyTTL).Err(); err != nil {
			return ReserveResult{}, fmt.Errorf("idempotency reserve failed: %w", err)
		}
		return ReserveResult{Reserved: true}, nil
	}
	if err != nil {
		return ReserveResult{}, fmt.Errorf("idempotency reserve failed: %w", err)
	}

	existingID, err := uuid.Parse(existing)
	if err != nil {
		return ReserveResult{}, fmt.Errorf("corrupt idempotency entry for %q: %w", key, err)
	}
	return ReserveResult{Reserved: false, ExistingID: existingID}, nil
}

// Lookup returns the payment id reserved under key, if any. It is a pure
// read used to short-circuit before minting a new identifier.
func (g *IdempotencyGuard) Lookup(ctx context.Context, key string) (uuid.UUID, bool, error) {
	value, err := g.client.Get(ctx, idempotencyKeyPrefix+key).Result()
	if err == goredis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("idempotency lookup failed: %w", err)
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt idempotency entry for %q: %w", key, err)
	}
	return id, true, nil
}
