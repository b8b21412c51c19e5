/*
 * Copyright 2025 the storekit authors.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// Engine owns the connection pool to one database. It is long-lived,
// process-wide, and safe for concurrent session acquisition; sessions are
// the only write path exposed to callers.
type Engine struct {
	config    *ConnectionConfig
	db        *bun.DB
	sqlDB     *sql.DB
	logger    Logger
	mu        sync.RWMutex
	connected bool
	lastError error
}

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	ResponseTime  time.Duration `json:"response_time"`
	ActiveConns   int           `json:"active_conns"`
	IdleConns     int           `json:"idle_conns"`
	MaxOpenConns  int           `json:"max_open_conns"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// PoolStats mirrors database/sql pool statistics.
type PoolStats struct {
	MaxOpenConns      int           `json:"max_open_conns"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxIdleTimeClosed int64         `json:"max_idle_time_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

func newEngine(config *ConnectionConfig) *Engine {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &Engine{config: config, logger: GetLogger()}
}

// Config returns a copy of the engine's connection configuration.
func (e *Engine) Config() ConnectionConfig {
	return *e.config
}

// Connect opens the pool. No connections are established eagerly unless the
// EagerPing flag is set, in which case an unreachable target fails here.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.connected && e.db != nil {
		return nil
	}

	var err error
	e.sqlDB, e.db, err = e.createConnection()
	if err != nil {
		e.lastError = err
		return ConfigurationError("failed to create database connection", err)
	}

	e.configureConnectionPool()

	if e.config.EagerPing {
		ctxTimeout, cancel := context.WithTimeout(ctx, e.config.ConnectTimeout)
		defer cancel()
		if err := e.db.PingContext(ctxTimeout); err != nil {
			e.lastError = err
			_ = e.db.Close()
			e.db, e.sqlDB = nil, nil
			return ConfigurationError("connection target unreachable", err)
		}
	}

	e.connected = true
	e.lastError = nil

	if e.logger != nil {
		e.logger.Info("Database engine ready", "type", e.config.Type, "host", e.config.Host, "dbname", e.config.DBName)
	}
	return nil
}

func (e *Engine) createConnection() (*sql.DB, *bun.DB, error) {
	var sqlDB *sql.DB
	var db *bun.DB
	var err error

	if e.config.ConnectTimeout <= 0 {
		e.config.ConnectTimeout = 30 * time.Second
	}

	switch e.config.Type {
	case "mysql":
		sqlDB, db, err = e.createMySQLConnection()
	case "postgres", "postgresql":
		sqlDB, db, err = e.createPostgreSQLConnection()
	case "sqlite", "sqlite3":
		sqlDB, db, err = e.createSQLiteConnection()
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", e.config.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	if e.config.Echo {
		db.AddQueryHook(NewEchoHook(true))
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	if e.config.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(e.config.SlowQueryTime, e.logger))
	}

	return sqlDB, db, nil
}

func (e *Engine) createMySQLConnection() (*sql.DB, *bun.DB, error) {
	charset := e.config.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local&timeout=%s",
		e.config.Username,
		e.config.Password,
		e.config.Host,
		e.config.Port,
		e.config.DBName,
		charset,
		e.config.ConnectTimeout,
	)

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, mysqldialect.New()), nil
}

func (e *Engine) createPostgreSQLConnection() (*sql.DB, *bun.DB, error) {
	sslMode := e.config.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		e.config.Username,
		e.config.Password,
		e.config.Host,
		e.config.Port,
		e.config.DBName,
		sslMode,
		int(e.config.ConnectTimeout.Seconds()),
	)

	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, pgdialect.New()), nil
}

func (e *Engine) createSQLiteConnection() (*sql.DB, *bun.DB, error) {
	dsn := e.config.DBName
	if !strings.Contains(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
		dsn = fmt.Sprintf("%s.db", dsn)
	}

	sqlDB, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, nil, err
	}
	// Referential integrity is opt-in on sqlite.
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return sqlDB, bun.NewDB(sqlDB, sqlitedialect.New()), nil
}

func (e *Engine) configureConnectionPool() {
	if e.sqlDB == nil {
		return
	}
	e.sqlDB.SetMaxIdleConns(e.config.PoolMin)
	e.sqlDB.SetMaxOpenConns(e.config.PoolMax)
	e.sqlDB.SetConnMaxLifetime(e.config.ConnMaxLifetime)
	e.sqlDB.SetConnMaxIdleTime(e.config.ConnMaxIdleTime)
}

// Close shuts the pool down. Sessions acquired from this engine become
// unusable and report TransactionError on commit.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.db == nil {
		return nil
	}
	err := e.db.Close()
	e.db = nil
	e.sqlDB = nil
	e.connected = false

	if e.logger != nil {
		if err != nil {
			e.logger.Error("Failed to close database engine", "error", err)
		} else {
			e.logger.Info("Database engine closed")
		}
	}
	return err
}

// Reconnect tears the pool down and opens it again.
func (e *Engine) Reconnect(ctx context.Context) error {
	if err := e.Close(); err != nil && e.logger != nil {
		e.logger.Warn("Error closing existing pool", "error", err)
	}
	return e.Connect(ctx)
}

func (e *Engine) Ping(ctx context.Context) error {
	e.mu.RLock()
	db := e.db
	e.mu.RUnlock()

	if db == nil {
		return fmt.Errorf("%w: engine not connected", ErrTransaction)
	}
	return WrapDBError(db.PingContext(ctx))
}

// DB exposes the underlying Bun handle for administrative work such as
// migrations and seeding. Regular reads and writes go through sessions.
func (e *Engine) DB() *bun.DB {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.db
}

func (e *Engine) SQLDB() *sql.DB {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sqlDB
}

// HealthCheck pings the database and reports pool occupancy.
func (e *Engine) HealthCheck(ctx context.Context) *HealthStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	status := &HealthStatus{
		LastCheckTime: start,
		Connected:     e.connected,
	}

	if e.db == nil {
		status.Healthy = false
		status.LastError = "engine not connected"
		return status
	}

	ctxTimeout, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	err := e.db.PingContext(ctxTimeout)
	status.ResponseTime = time.Since(start)

	if err != nil {
		status.Healthy = false
		status.Connected = false
		status.LastError = err.Error()
		e.lastError = err
	} else {
		status.Healthy = true
		status.Connected = true
		e.lastError = nil
	}

	if e.sqlDB != nil {
		stats := e.sqlDB.Stats()
		status.ActiveConns = stats.InUse
		status.IdleConns = stats.Idle
		status.MaxOpenConns = stats.MaxOpenConnections
	}
	return status
}

// Stats returns pool statistics.
func (e *Engine) Stats() *PoolStats {
	e.mu.RLock()
	sqlDB := e.sqlDB
	e.mu.RUnlock()

	if sqlDB == nil {
		return &PoolStats{}
	}
	stats := sqlDB.Stats()
	return &PoolStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (e *Engine) SetLogger(logger Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}
