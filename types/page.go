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

package types

const defaultPageSize = 10

// QueryFilter narrows a listing to rows matching a WHERE fragment with
// positional arguments, e.g. NewQueryFilter("category_id = ?", 3).
type QueryFilter struct {
	Schema string
	Args   []interface{}
}

// NewQueryFilter builds a filter from a WHERE fragment and its arguments.
func NewQueryFilter(schema string, args ...interface{}) *QueryFilter {
	return &QueryFilter{Schema: schema, Args: args}
}

// PageRequest selects one page of a listing: a 1-based page number, a page
// size, an optional row filter, and optional ORDER BY clauses such as
// "name ASC". Out-of-range values fall back to page 1 at the default size.
type PageRequest struct {
	page     int
	pageSize int
	filter   *QueryFilter
	orders   []string
}

// NewPageRequest selects a page with no filter or ordering.
func NewPageRequest(page, pageSize int) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize}
}

// NewPageRequestWithFilter selects a page of the rows matching filter.
func NewPageRequestWithFilter(page, pageSize int, filter *QueryFilter) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize, filter: filter}
}

// NewPageRequestWithOrders selects a page ordered by the given clauses.
func NewPageRequestWithOrders(page, pageSize int, orders []string) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize, orders: orders}
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		return 1
	}
	return p.page
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		return defaultPageSize
	}
	return p.pageSize
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetFilter() *QueryFilter {
	return p.filter
}

func (p *PageRequest) GetOrders() []string {
	return p.orders
}

// Pagination carries one page of results along with the totals a caller
// needs to render paging controls.
type Pagination[T any] struct {
	Page     int
	PageSize int
	Total    int
	Items    []*T
}

// NewDefaultPagination builds an empty page container for the given window.
func NewDefaultPagination[T any](page, pageSize int) *Pagination[T] {
	return &Pagination[T]{Page: page, PageSize: pageSize, Items: make([]*T, 0)}
}
