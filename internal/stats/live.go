package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

const liveTopVariants = 10

type VariantSold struct {
	VariantID int64 `json:"variant_id"`
	Sold      int64 `json:"sold"`
}

type Live struct {
	Date        string           `json:"date"`
	Orders      int64            `json:"orders"`
	Revenue     int64            `json:"revenue"`
	Statuses    map[string]int64 `json:"statuses"`
	TopVariants []VariantSold    `json:"top_variants"`
}

type Reader struct{ Redis *redis.Client }

func (r *Reader) Live(ctx context.Context, day time.Time) (*Live, error) {
	date := orders.Day(day).Format(time.DateOnly)
	fields, err := r.Redis.HGetAll(ctx, fmt.Sprintf(redisx.KeyStatsDay, date)).Result()
	if err != nil {
		return nil, err
	}
	top, err := r.Redis.ZRevRangeWithScores(ctx, fmt.Sprintf(redisx.KeyStatsDayVariants, date), 0, liveTopVariants-1).Result()
	if err != nil {
		return nil, err
	}
	return liveFrom(date, fields, top), nil
}

func liveFrom(date string, fields map[string]string, top []redis.Z) *Live {
	l := &Live{Date: date, Statuses: map[string]int64{}, TopVariants: []VariantSold{}}
	for k, v := range fields {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		switch {
		case k == FieldOrders:
			l.Orders = n
		case k == FieldRevenue:
			l.Revenue = n
		case strings.HasPrefix(k, FieldStatusPrefix):
			l.Statuses[strings.TrimPrefix(k, FieldStatusPrefix)] = n
		}
	}
	for _, z := range top {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		l.TopVariants = append(l.TopVariants, VariantSold{VariantID: id, Sold: int64(z.Score)})
	}
	return l
}
