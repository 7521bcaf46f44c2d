package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"localdeals/controlplane/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS tb_shop (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT        NOT NULL,
	type_id     BIGINT      NOT NULL DEFAULT 0,
	area        TEXT        NOT NULL DEFAULT '',
	address     TEXT        NOT NULL DEFAULT '',
	avg_price   BIGINT      NOT NULL DEFAULT 0,
	score       INT         NOT NULL DEFAULT 0,
	open_hours  TEXT        NOT NULL DEFAULT '',
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tb_seckill_voucher (
	voucher_id  BIGINT PRIMARY KEY,
	stock       INT         NOT NULL CHECK (stock >= 0),
	begin_time  TIMESTAMPTZ,
	end_time    TIMESTAMPTZ,
	create_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	update_time TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS tb_voucher_order (
	id          BIGINT PRIMARY KEY,
	user_id     BIGINT      NOT NULL,
	voucher_id  BIGINT      NOT NULL,
	create_time TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, voucher_id)
);
`

// DB é o colaborador relacional sobre pgxpool.
type DB struct {
	pool *pgxpool.Pool
}

func NewDB(ctx context.Context, dsn string) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, schema)
	return err
}

func (db *DB) Shops() *PostgresShops       { return &PostgresShops{pool: db.pool} }
func (db *DB) Orders() *PostgresOrders     { return &PostgresOrders{pool: db.pool} }
func (db *DB) Vouchers() *PostgresVouchers { return &PostgresVouchers{pool: db.pool} }

type PostgresShops struct {
	pool *pgxpool.Pool
}

func (r *PostgresShops) LoadByID(ctx context.Context, id int64) (domain.Shop, error) {
	var s domain.Shop
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, type_id, area, address, avg_price, score, open_hours, update_time
		FROM tb_shop
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Name, &s.TypeID, &s.Area, &s.Address, &s.AvgPrice, &s.Score, &s.OpenHours, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Shop{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Shop{}, fmt.Errorf("load shop %d: %w", id, err)
	}
	return s, nil
}

func (r *PostgresShops) Update(ctx context.Context, s domain.Shop) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tb_shop
		SET name=$2, type_id=$3, area=$4, address=$5, avg_price=$6, score=$7, open_hours=$8, update_time=now()
		WHERE id=$1
	`, s.ID, s.Name, s.TypeID, s.Area, s.Address, s.AvgPrice, s.Score, s.OpenHours)
	if err != nil {
		return fmt.Errorf("update shop %d: %w", s.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type PostgresOrders struct {
	pool *pgxpool.Pool
}

func (r *PostgresOrders) Exists(ctx context.Context, userID, voucherID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM tb_voucher_order WHERE user_id=$1 AND voucher_id=$2)
	`, userID, voucherID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("order exists user %d voucher %d: %w", userID, voucherID, err)
	}
	return exists, nil
}

// Insert grava o pedido e espelha o decremento de estoque na mesma transação.
// O índice único (user_id, voucher_id) é a última linha de defesa: só essa
// colisão vira ErrPersistenceConflict. Um id repetido para outro par
// usuário/voucher volta como erro comum.
func (r *PostgresOrders) Insert(ctx context.Context, o domain.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if tx != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO tb_voucher_order (id, user_id, voucher_id, create_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, voucher_id) DO NOTHING
	`, o.ID, o.UserID, o.VoucherID, o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order %d: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPersistenceConflict
	}

	_, err = tx.Exec(ctx, `
		UPDATE tb_seckill_voucher SET stock = stock - 1, update_time = now()
		WHERE voucher_id = $1 AND stock > 0
	`, o.VoucherID)
	if err != nil {
		return fmt.Errorf("mirror stock voucher %d: %w", o.VoucherID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	tx = nil
	return nil
}

type PostgresVouchers struct {
	pool *pgxpool.Pool
}

func (r *PostgresVouchers) CreateSeckill(ctx context.Context, v domain.VoucherStock) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO tb_seckill_voucher (voucher_id, stock, begin_time, end_time)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (voucher_id) DO UPDATE SET
		  stock=EXCLUDED.stock,
		  begin_time=EXCLUDED.begin_time,
		  end_time=EXCLUDED.end_time,
		  update_time=now()
	`, v.VoucherID, v.Stock, nullTime(v.WindowStart), nullTime(v.WindowEnd))
	if err != nil {
		return fmt.Errorf("create seckill voucher %d: %w", v.VoucherID, err)
	}
	return nil
}

func (r *PostgresVouchers) SetStock(ctx context.Context, voucherID, stock int64) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tb_seckill_voucher SET stock=$2, update_time=now() WHERE voucher_id=$1
	`, voucherID, stock)
	if err != nil {
		return fmt.Errorf("restock voucher %d: %w", voucherID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
