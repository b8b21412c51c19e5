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

// Package storekit is a commerce data-access foundation built on bun. It
// provides a configuration-driven engine factory, transactional sessions,
// the relational commerce model and the store operations on top of it.
package storekit

import (
	"context"

	"github.com/storekit/storekit/database"
	"github.com/storekit/storekit/repository"
	"github.com/storekit/storekit/store"
	"github.com/storekit/storekit/types"
)

// Service exposes generic entity access bound to an engine. Every call opens
// its own session, runs inside that session's transaction and commits or
// rolls back before returning.
type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any) (*T, error)

	// All returns all entities.
	All(ctx context.Context) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter) ([]*T, error)

	// Query executes a raw query and maps the results to entities.
	Query(ctx context.Context, query string, args ...interface{}) ([]*T, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Save inserts one or more new entities.
	Save(ctx context.Context, model ...*T) error

	// SaveOrUpdate upserts entities based on fields and duplicate keys.
	SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error

	// Update modifies an existing entity.
	Update(ctx context.Context, model *T) error

	// Delete removes an entity by its identifier.
	Delete(ctx context.Context, id any) error
}

type baseServiceImpl[T any] struct {
	engine *database.Engine
}

// NewService returns a Service implementation backed by the given engine.
func NewService[T any](engine *database.Engine) Service[T] {
	return &baseServiceImpl[T]{engine: engine}
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (entity *T, err error) {
	err = database.RunInSession(ctx, s.engine, func(ctx context.Context, session *database.Session) error {
		entity, err = repository.NewRepository[T](session).Get(ctx, id)
		return err
	})
	return entity, err
}

func (s *baseServiceImpl[T]) All(ctx context.Context) (entities []*T, err error) {
	err = database.RunInSession(ctx, s.engine, func(ctx context.Context, session *database.Session) error {
		entities, err = repository.NewRepository[T](session).All(ctx)
		return err
	})
	return entities, err
}

func (s *baseServiceImpl[T]) List(ctx context.Context, filter *types.QueryFilter) (entities []*T, err error) {
	err = database.RunInSession(ctx, s.engine, func(ctx context.Context, session *database.Session) error {
		entities, err = repository.NewRepository[T](session).List(ctx, filter)
		return err
	})
	return entities, err
}

func (s *baseServiceImpl[T]) Query(ctx context.Context, query string, args ...interface{}) (entities []*T, err error) {
	err = database.RunInSession(ctx, s.engine, func(ctx context.Context, session *database.Session) error {
		entities, err = repository.NewRepository[T](session).Query(ctx, query, args...)
		return err
	})
	return entities, err
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (result *types.Pagination[T], err error) {
	err = database.RunInSession(ctx, s.engine, func(ctx context.Context, session *database.Session) error {
		result, err = repository.NewRepository[T](session).Page(ctx, page)
		return err
	})
	return result, err
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, model ...*T) error {
	return database.RunInSession(ctx, s.engine, func(ctx context.Context, session *database.Session) error {
		return repository.NewRepository[T](session).Create(ctx, model...)
	})
}

func (s *baseServiceImpl[T]) SaveOrUpdate(ctx context.Context, fields []string, duplicateKeys []string, model ...*T) error {
	return database.RunInSession(ctx, s.engine, func(ctx context.Context, session *database.Session) error {
		return repository.NewRepository[T](session).Upsert(ctx, fields, duplicateKeys, model...)
	})
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, model *T) error {
	return database.RunInSession(ctx, s.engine, func(ctx context.Context, session *database.Session) error {
		return repository.NewRepository[T](session).Update(ctx, model)
	})
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	return database.RunInSession(ctx, s.engine, func(ctx context.Context, session *database.Session) error {
		return repository.NewRepository[T](session).Delete(ctx, id)
	})
}

// RunStore opens a session on the engine, hands a Store to fn and commits
// when fn returns nil, rolls back otherwise. Use it to compose several
// commerce operations into one atomic unit of work.
func RunStore(ctx context.Context, engine *database.Engine, fn func(ctx context.Context, s *store.Store) error) error {
	return database.RunInSession(ctx, engine, func(ctx context.Context, session *database.Session) error {
		return fn(ctx, store.New(session))
	})
}
