package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Idempotency claims a client-supplied Idempotency-Key, scoped per user,
// before the order is placed. The key holds IdemPending until Complete
// swaps in the order id.
type Idempotency struct{ RDB *redis.Client }

// Claim reports claimed=true when the caller now owns the key. Otherwise
// orderID is the order a previous request produced, or empty while that
// request is still in flight.
func (i *Idempotency) Claim(ctx context.Context, userID int64, key string) (orderID string, claimed bool, err error) {
	k := fmt.Sprintf(KeyIdemOrderPlace, userID, key)
	ok, err := i.RDB.SetNX(ctx, k, IdemPending, TTLIdempotency).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) || v == IdemPending {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID int64, key, orderID string) error {
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemOrderPlace, userID, key), orderID, TTLIdempotency).Err()
}

// Release frees a claim whose placement failed so the client may retry.
func (i *Idempotency) Release(ctx context.Context, userID int64, key string) error {
	return i.RDB.Del(ctx, fmt.Sprintf(KeyIdemOrderPlace, userID, key)).Err()
}
