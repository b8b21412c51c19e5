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
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/uptrace/bun"
)

type sessionState int

const (
	sessionOpen sessionState = iota
	sessionCommitted
	sessionRolledBack
)

// Session is a short-lived, single-owner unit of work bound to one
// transaction boundary. It begins with no open transaction; the first read
// or write starts one implicitly. A session must be committed or rolled
// back; Close releases its connection on every exit path, so the usual
// shape is:
//
//	session := engine.NewSession()
//	defer session.Close()
//	...
//	return session.Commit()
//
// Uncommitted writes are never visible to other sessions. Sessions must not
// be shared across concurrent callers.
type Session struct {
	engine *Engine
	logger Logger

	mu     sync.Mutex
	tx     *bun.Tx
	cancel context.CancelFunc
	state  sessionState
}

// NewSession produces a new unit of work bound to the engine's pool.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e, logger: e.logger}
}

// NewSession is the package-level form of Engine.NewSession.
func NewSession(engine *Engine) *Session {
	return engine.NewSession()
}

// DB returns the transaction-scoped query surface, beginning the
// transaction on first use. Connection acquisition honors the configured
// acquire timeout; a saturated pool surfaces TimeoutError.
func (s *Session) DB(ctx context.Context) (bun.IDB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dbLocked(ctx)
}

func (s *Session) dbLocked(ctx context.Context) (bun.IDB, error) {
	if s.state != sessionOpen {
		return nil, fmt.Errorf("%w: session already finished", ErrTransaction)
	}
	if s.tx != nil {
		return s.tx, nil
	}

	db := s.engine.DB()
	if db == nil {
		return nil, fmt.Errorf("%w: engine not connected", ErrTransaction)
	}

	if err := ctx.Err(); err != nil {
		return nil, WrapDBError(err)
	}

	// The transaction stays bound to its begin context until commit or
	// rollback, so that context must live for the session's lifetime. The
	// acquire timeout is enforced by a timer that is disarmed once the
	// transaction is live; caller cancellation is only propagated while
	// the begin is in flight.
	txCtx, cancel := context.WithCancel(context.Background())
	stop := context.AfterFunc(ctx, cancel)
	var timer *time.Timer
	if t := s.engine.config.AcquireTimeout; t > 0 {
		timer = time.AfterFunc(t, cancel)
	}

	tx, err := db.BeginTx(txCtx, &sql.TxOptions{})
	stop()
	if timer != nil {
		timer.Stop()
	}
	if err != nil {
		cancel()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, WrapDBError(ctxErr)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if stats := db.Stats(); stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
				return nil, fmt.Errorf("%w: all %d connections in use", ErrPoolExhausted, stats.MaxOpenConnections)
			}
			return nil, fmt.Errorf("%w: transaction begin exceeded %s", ErrTimeout, s.engine.config.AcquireTimeout)
		}
		return nil, WrapDBError(err)
	}
	s.tx = &tx
	s.cancel = cancel
	return s.tx, nil
}

// releaseLocked tears down the begin context once the transaction finished.
func (s *Session) releaseLocked() {
	s.tx = nil
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Commit makes the unit of work durable. A session whose connection was
// lost reports TransactionError; a commit-time conflict reports
// ConcurrencyError and the caller should retry with a fresh session.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case sessionCommitted:
		return fmt.Errorf("%w: session already committed", ErrTransaction)
	case sessionRolledBack:
		return fmt.Errorf("%w: session already rolled back", ErrTransaction)
	}

	// Nothing read or written: there is no transaction to commit.
	if s.tx == nil {
		s.state = sessionCommitted
		return nil
	}

	if err := s.tx.Commit(); err != nil {
		s.state = sessionRolledBack
		s.releaseLocked()
		return WrapDBError(err)
	}
	s.state = sessionCommitted
	s.releaseLocked()
	return nil
}

// Rollback discards the unit of work. Rolling back a finished session is an
// error; Close is the tolerant variant for defer.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case sessionCommitted:
		return fmt.Errorf("%w: session already committed", ErrTransaction)
	case sessionRolledBack:
		return fmt.Errorf("%w: session already rolled back", ErrTransaction)
	}

	s.state = sessionRolledBack
	if s.tx == nil {
		return nil
	}
	err := s.tx.Rollback()
	s.releaseLocked()
	return WrapDBError(err)
}

// Close releases the session's connection, rolling back any transaction
// that was neither committed nor rolled back. It is safe to call multiple
// times and on every exit path.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != sessionOpen {
		return
	}
	s.state = sessionRolledBack
	if s.tx == nil {
		return
	}
	if err := s.tx.Rollback(); err != nil && s.logger != nil {
		s.logger.Warn("Session rollback on close failed", "error", err)
	}
	s.releaseLocked()
}

// Finished reports whether the session was committed or rolled back.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != sessionOpen
}

// RunInSession executes fn in one unit of work: commit when fn returns nil,
// rollback otherwise. The session never escapes its scope.
func RunInSession(ctx context.Context, engine *Engine, fn func(ctx context.Context, session *Session) error) error {
	session := engine.NewSession()
	defer session.Close()

	if err := fn(ctx, session); err != nil {
		if rbErr := session.Rollback(); rbErr != nil && engine.logger != nil {
			engine.logger.Warn("Rollback after failed unit of work", "error", rbErr)
		}
		return err
	}
	return session.Commit()
}
