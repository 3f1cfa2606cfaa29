package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS product_variants (
		id          BIGSERIAL PRIMARY KEY,
		product_id  BIGINT NOT NULL,
		model_name  TEXT NOT NULL DEFAULT '',
		color_name  TEXT NOT NULL DEFAULT '',
		price       BIGINT NOT NULL CHECK (price >= 0),
		sale_price  BIGINT,
		stock       INTEGER NOT NULL DEFAULT 0 CHECK (stock >= 0),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_product_variants_product_id ON product_variants(product_id)`,

	`CREATE TABLE IF NOT EXISTS orders (
		id               UUID PRIMARY KEY,
		user_id          BIGINT NOT NULL,
		status           TEXT NOT NULL DEFAULT 'pending'
		                 CHECK (status IN ('pending','confirmed','shipping','delivered','cancelled')),
		total            BIGINT NOT NULL,
		shipping_address TEXT NOT NULL,
		shipping_phone   TEXT NOT NULL,
		note             TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders(user_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at)`,

	// variant_id is a snapshot reference; variants may be replaced later.
	`CREATE TABLE IF NOT EXISTS order_items (
		id            BIGSERIAL PRIMARY KEY,
		order_id      UUID NOT NULL REFERENCES orders(id),
		product_id    BIGINT NOT NULL,
		variant_id    BIGINT NOT NULL,
		product_name  TEXT NOT NULL DEFAULT '',
		variant_label TEXT NOT NULL DEFAULT '',
		price         BIGINT NOT NULL,
		quantity      INTEGER NOT NULL CHECK (quantity > 0)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
}

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := db.Exec(ctx, m); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
