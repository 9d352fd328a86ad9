package database

import (
	"context"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

var DB *pgxpool.Pool

// InitDB initializes the database connection pool and registers the
// decimal codec so NUMERIC columns round-trip through decimal.Decimal.
func InitDB(ctx context.Context, dbURL string) error {
	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return fmt.Errorf("parsing database url: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	DB, err = pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	if err := DB.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	logrus.Info("connected to the database")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		DB.Close()
		logrus.Info("database connection closed")
	}
}

// schema is applied idempotently at startup.
//
// The partial unique index on transactions is load-bearing: it is what
// guarantees at most one pending deposit and one pending withdrawal per
// account even under concurrent create requests.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                        UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	title                     TEXT NOT NULL DEFAULT '',
	first_name                TEXT NOT NULL DEFAULT '',
	last_name                 TEXT NOT NULL DEFAULT '',
	full_name                 TEXT NOT NULL DEFAULT '',
	username                  TEXT NOT NULL UNIQUE,
	email                     TEXT NOT NULL UNIQUE,
	phone                     TEXT NOT NULL DEFAULT '',
	country                   TEXT NOT NULL DEFAULT '',
	city                      TEXT NOT NULL DEFAULT '',
	address                   TEXT NOT NULL DEFAULT '',
	zip_code                  TEXT NOT NULL DEFAULT '',
	document_number           TEXT NOT NULL DEFAULT '',
	document_front            TEXT NOT NULL DEFAULT '',
	document_back             TEXT NOT NULL DEFAULT '',
	document_exp_date         TEXT NOT NULL DEFAULT '',
	id_verified               BOOLEAN NOT NULL DEFAULT FALSE,
	password_hash             TEXT NOT NULL DEFAULT '',
	deposit                   NUMERIC(20,8) NOT NULL DEFAULT 0 CHECK (deposit >= 0),
	demo                      NUMERIC(20,8) NOT NULL DEFAULT 0,
	interest                  NUMERIC(20,8) NOT NULL DEFAULT 0,
	withdraw                  NUMERIC(20,8) NOT NULL DEFAULT 0,
	bonus                     NUMERIC(20,8) NOT NULL DEFAULT 0,
	withdrawal_limit          NUMERIC(20,8) NOT NULL DEFAULT 100000,
	min_withdrawal            NUMERIC(20,8) NOT NULL DEFAULT 10,
	withdrawal_status         BOOLEAN NOT NULL DEFAULT TRUE,
	referred_by               TEXT NOT NULL DEFAULT '',
	profile_image             TEXT NOT NULL DEFAULT '',
	rank                      TEXT NOT NULL DEFAULT 'welcome',
	is_admin                  BOOLEAN NOT NULL DEFAULT FALSE,
	mfa                       BOOLEAN NOT NULL DEFAULT FALSE,
	two_factor_secret         TEXT NOT NULL DEFAULT '',
	temp_two_factor_secret    TEXT NOT NULL DEFAULT '',
	temp_two_factor_expires   TIMESTAMPTZ,
	created_at                TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	type             TEXT NOT NULL CHECK (type IN ('deposit','withdrawal','trade')),
	status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','success','rejected')),
	amount           NUMERIC(20,8) NOT NULL DEFAULT 0,
	user_id          UUID,
	user_email       TEXT NOT NULL DEFAULT '',
	user_name        TEXT NOT NULL DEFAULT '',
	converted_amount NUMERIC(20,8) NOT NULL DEFAULT 0,
	coin_name        TEXT NOT NULL DEFAULT '',
	network          TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL DEFAULT '',
	trade_package    TEXT,
	trade_interest   NUMERIC(20,8),
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS transactions_one_pending_per_type
	ON transactions (user_id, type)
	WHERE status = 'pending' AND user_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS activity_logs (
	id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	actor_id          UUID,
	actor_email       TEXT NOT NULL DEFAULT '',
	actor_role        TEXT NOT NULL DEFAULT 'user',
	action            TEXT NOT NULL,
	target_collection TEXT NOT NULL DEFAULT '',
	target_id         TEXT NOT NULL DEFAULT '',
	metadata          JSONB NOT NULL DEFAULT '{}',
	ip_address        TEXT NOT NULL DEFAULT '',
	user_agent        TEXT NOT NULL DEFAULT '',
	location          JSONB,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS activity_logs_created_at ON activity_logs (created_at DESC);

CREATE TABLE IF NOT EXISTS demo_trades (
	id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	email            TEXT NOT NULL,
	symbol           TEXT NOT NULL DEFAULT '',
	market_direction TEXT NOT NULL DEFAULT '',
	amount           NUMERIC(20,8) NOT NULL DEFAULT 0,
	duration         TEXT NOT NULL DEFAULT '',
	profit           NUMERIC(20,8) NOT NULL DEFAULT 0,
	settle_at        TIMESTAMPTZ NOT NULL,
	settled          BOOLEAN NOT NULL DEFAULT FALSE,
	outcome          TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS demo_trades_due ON demo_trades (settle_at) WHERE settled = FALSE;

CREATE TABLE IF NOT EXISTS otps (
	email      TEXT NOT NULL,
	code       TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// InitSchema creates tables and indexes if they do not exist yet.
func InitSchema(ctx context.Context) error {
	if _, err := DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}
