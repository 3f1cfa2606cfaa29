// Package stats projects order events into per-day Redis counters that back
// the live admin dashboard.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	FieldOrders       = "orders"
	FieldRevenue      = "revenue"
	FieldStatusPrefix = "status:"
)

// Delta is the set of counter increments one event contributes to a day.
type Delta struct {
	Day      string // YYYY-MM-DD, UTC
	Fields   map[string]int64
	Variants map[int64]int64 // variant_id -> units
}

// DeltaFor maps an envelope to its increments. Unknown event types yield nil.
func DeltaFor(env orders.Envelope) (*Delta, error) {
	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return nil, err
		}
		at := p.CreatedAt
		if at.IsZero() {
			at = env.OccurredAt
		}
		d := &Delta{
			Day: orders.Day(at).Format(time.DateOnly),
			Fields: map[string]int64{
				FieldOrders:  1,
				FieldRevenue: p.Total,
				FieldStatusPrefix + string(orders.StatusPending): 1,
			},
			Variants: map[int64]int64{},
		}
		for _, it := range p.Items {
			d.Variants[it.VariantID] += int64(it.Qty)
		}
		return d, nil

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return nil, err
		}
		if _, err := orders.ParseStatus(string(p.Status)); err != nil {
			return nil, err
		}
		return &Delta{
			Day:    orders.Day(env.OccurredAt).Format(time.DateOnly),
			Fields: map[string]int64{FieldStatusPrefix + string(p.Status): 1},
		}, nil
	}
	return nil, nil
}

type Projector struct {
	Redis       *redis.Client
	ServiceName string
}

// HandleMessage is installed as the consumer handler. Malformed messages are
// logged and acknowledged so they do not block the partition.
func (p *Projector) HandleMessage(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		log.Printf("projector: drop undecodable message topic=%s offset=%d: %v", m.Topic, m.Offset, err)
		return nil
	}
	if env.EventVersion != orders.EventVersion {
		log.Printf("projector: skip event %s version %d", env.EventID, env.EventVersion)
		return nil
	}

	d, err := DeltaFor(env)
	if err != nil {
		log.Printf("projector: drop event %s (%s): %v", env.EventID, env.EventType, err)
		return nil
	}
	if d == nil {
		return nil
	}
	return p.apply(ctx, d, fmt.Sprintf(redisx.KeyDedup, p.ServiceName, env.EventID))
}

const maxWatchRetries = 5

// apply checks the dedup marker under WATCH and writes it together with the
// increments in one MULTI, so concurrent or repeated deliveries of one event
// are counted exactly once.
func (p *Projector) apply(ctx context.Context, d *Delta, dedupKey string) error {
	hk := fmt.Sprintf(redisx.KeyStatsDay, d.Day)
	zk := fmt.Sprintf(redisx.KeyStatsDayVariants, d.Day)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, dedupKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for f, v := range d.Fields {
				pipe.HIncrBy(ctx, hk, f, v)
			}
			pipe.Expire(ctx, hk, redisx.TTLStats)
			if len(d.Variants) > 0 {
				for id, qty := range d.Variants {
					pipe.ZIncrBy(ctx, zk, float64(qty), strconv.FormatInt(id, 10))
				}
				pipe.Expire(ctx, zk, redisx.TTLStats)
			}
			pipe.Set(ctx, dedupKey, "1", redisx.TTLDedup)
			return nil
		})
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := p.Redis.Watch(ctx, txf, dedupKey)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("dedup key %s: %w", dedupKey, redis.TxFailedErr)
}
