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

package repository

import (
	"fmt"
	"strings"

	"context"

	"github.com/storekit/storekit/database"
	"github.com/storekit/storekit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
)

type baseRepositoryImpl[T any] struct {
	session *database.Session
}

// NewRepository returns a generic repository bound to the provided session.
// All reads and writes execute within the session's transaction.
func NewRepository[T any](session *database.Session) Repository[T] {
	return &baseRepositoryImpl[T]{session: session}
}

func (r *baseRepositoryImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	idb, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	var entity T
	if err := idb.NewSelect().Model(&entity).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	return &entity, nil
}

func (r *baseRepositoryImpl[T]) All(ctx context.Context) ([]*T, error) {
	idb, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	var entities []*T
	if err := idb.NewSelect().Model(&entities).Scan(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter) ([]*T, error) {
	idb, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	var entities []*T
	query := idb.NewSelect().Model(&entities)
	if filter != nil {
		query = query.Where(filter.Schema, filter.Args...)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Query(ctx context.Context, query string, args ...interface{}) ([]*T, error) {
	idb, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	var entities []*T
	if err := idb.NewSelect().Model(&entities).Where(query, args...).Scan(ctx); err != nil {
		return nil, database.WrapDBError(err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest) (*types.Pagination[T], error) {
	idb, err := r.session.DB(ctx)
	if err != nil {
		return nil, err
	}
	var entities []*T
	query := idb.NewSelect().Model(&entities)
	if pageRequest.GetFilter() != nil {
		query = query.Where(pageRequest.GetFilter().Schema, pageRequest.GetFilter().Args...)
	}
	pagination := types.NewDefaultPagination[T](pageRequest.GetPage(), pageRequest.GetPageSize())
	total, err := query.Count(ctx)
	if err != nil {
		return nil, database.WrapDBError(err)
	}
	if total == 0 {
		return pagination, nil
	}
	err = query.
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()).
		Order(pageRequest.GetOrders()...).
		Scan(ctx)
	if err != nil {
		return nil, database.WrapDBError(err)
	}
	pagination.Total = total
	pagination.Items = entities
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	idb, err := r.session.DB(ctx)
	if err != nil {
		return err
	}
	entities := entitySlice(entity...)
	_, err = idb.NewInsert().Model(&entities).Exec(ctx)
	return database.WrapDBError(err)
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) error {
	idb, err := r.session.DB(ctx)
	if err != nil {
		return err
	}
	_, err = idb.NewUpdate().Model(entity).WherePK().Exec(ctx)
	return database.WrapDBError(err)
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any) error {
	idb, err := r.session.DB(ctx)
	if err != nil {
		return err
	}
	var entity T
	_, err = idb.NewDelete().Model(&entity).Where("id = ?", id).Exec(ctx)
	return database.WrapDBError(err)
}

func (r *baseRepositoryImpl[T]) Upsert(ctx context.Context, fields []string, duplicateKeys []string, entity ...*T) error {
	if len(fields) == 0 {
		return fmt.Errorf("fields cannot be empty")
	}
	idb, err := r.session.DB(ctx)
	if err != nil {
		return err
	}
	entities := entitySlice(entity...)
	features := idb.Dialect().Features()

	switch {
	case features.Has(feature.InsertOnConflict):
		return r.upsertOnConflict(ctx, idb, fields, duplicateKeys, entities)
	case features.Has(feature.InsertOnDuplicateKey):
		return r.upsertOnDuplicateKey(ctx, idb, fields, entities)
	default:
		return r.upsertFallback(ctx, idb, entities)
	}
}

func (r *baseRepositoryImpl[T]) upsertOnConflict(ctx context.Context, idb bun.IDB, fields []string, duplicateKeys []string, entities []*T) error {
	if len(duplicateKeys) == 0 {
		duplicateKeys = []string{"id"}
	}
	keyNames := strings.Join(duplicateKeys, ",")
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = EXCLUDED.%s", bun.Ident(field), bun.Ident(field)))
	}
	_, err := idb.NewInsert().
		Model(&entities).
		On("CONFLICT (" + keyNames + ") DO UPDATE").
		Set(strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return database.WrapDBError(err)
}

func (r *baseRepositoryImpl[T]) upsertOnDuplicateKey(ctx context.Context, idb bun.IDB, fields []string, entities []*T) error {
	var queryArgs []string
	for _, field := range fields {
		queryArgs = append(queryArgs, fmt.Sprintf("%s = VALUES(%s)", bun.Ident(field), bun.Ident(field)))
	}
	_, err := idb.NewInsert().
		Model(&entities).
		On("DUPLICATE KEY UPDATE " + strings.Join(queryArgs, ", ")).
		Exec(ctx)
	return database.WrapDBError(err)
}

func (r *baseRepositoryImpl[T]) upsertFallback(ctx context.Context, idb bun.IDB, entities []*T) error {
	for _, entity := range entities {
		if _, err := idb.NewInsert().Model(entity).Exec(ctx); err != nil {
			if _, updateErr := idb.NewUpdate().Model(entity).WherePK().Exec(ctx); updateErr != nil {
				return fmt.Errorf("upsert failed for entity: insert error: %v, update error: %v", err, updateErr)
			}
		}
	}
	return nil
}

func entitySlice[T any](entity ...*T) []*T {
	entities := make([]*T, len(entity))
	copy(entities, entity)
	return entities
}
