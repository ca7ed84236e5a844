// Package dbtest opens throwaway sqlite databases carrying the reconciliation
// schema. The DDL mirrors pkg/migrate/migrations with sqlite types.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var seq atomic.Int64

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		price NUMERIC NOT NULL,
		stock INTEGER NOT NULL DEFAULT 0,
		stock_min INTEGER NOT NULL DEFAULT 0,
		stock_max INTEGER,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		order_number INTEGER NOT NULL DEFAULT 0,
		customer_id TEXT,
		payment_status TEXT NOT NULL DEFAULT 'pending',
		delivery_status TEXT NOT NULL DEFAULT 'awaiting',
		payment_method TEXT NOT NULL,
		pix_txid TEXT UNIQUE,
		pix_copy_paste TEXT,
		card_session_id TEXT UNIQUE,
		card_payment_intent_id TEXT,
		delivery_date DATE,
		delivery_time_slot TEXT,
		total_amount NUMERIC NOT NULL,
		confirmed_at DATETIME,
		declined_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price NUMERIC NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		customer_id TEXT,
		status TEXT NOT NULL DEFAULT 'paused',
		frequency TEXT,
		is_emergency BOOLEAN NOT NULL DEFAULT 0,
		delivery_weekday TEXT,
		delivery_weekdays TEXT,
		payment_method TEXT NOT NULL,
		pix_txid TEXT UNIQUE,
		pix_copy_paste TEXT,
		pix_recurrence_id TEXT,
		card_session_id TEXT,
		card_subscription_id TEXT,
		recurrence_authorized BOOLEAN NOT NULL DEFAULT 0,
		recurrence_status TEXT,
		next_delivery_date DATE,
		total_amount NUMERIC NOT NULL,
		activated_at DATETIME,
		stock_reserved_at DATETIME,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS subscription_items (
		id TEXT PRIMARY KEY,
		subscription_id TEXT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price NUMERIC NOT NULL,
		reserved_stock INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS subscription_deliveries (
		id TEXT PRIMARY KEY,
		subscription_id TEXT NOT NULL,
		delivery_date DATE NOT NULL,
		total_amount NUMERIC NOT NULL,
		payment_status TEXT NOT NULL,
		delivery_status TEXT NOT NULL DEFAULT 'awaiting',
		charge_reference TEXT,
		created_at DATETIME,
		updated_at DATETIME,
		UNIQUE (subscription_id, delivery_date)
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS payment_audit_log (
		id INTEGER PRIMARY KEY,
		trace_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		source TEXT NOT NULL,
		event TEXT NOT NULL,
		entity_type TEXT,
		entity_id TEXT,
		ok BOOLEAN NOT NULL,
		already_confirmed BOOLEAN NOT NULL DEFAULT 0,
		error TEXT,
		payload TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL UNIQUE,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME
	)`,
}

// Open returns a private in-memory database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}
