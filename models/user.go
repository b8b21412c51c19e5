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

package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/storekit/storekit/database"
	"github.com/uptrace/bun"
)

// User is the identity of a person or account. ID and Handle are immutable
// after creation and globally unique. Users are never hard-deleted; the
// soft-delete column preserves referential history in orders and reviews.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        int64     `bun:"id,pk,autoincrement" json:"id"`
	Handle    string    `bun:"handle,notnull,unique" json:"handle"`
	Email     string    `bun:"email,notnull" json:"email"`
	Name      string    `bun:"name" json:"name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	DeletedAt time.Time `bun:"deleted_at,soft_delete,nullzero" json:"-"`

	Orders  []*Order  `bun:"rel:has-many,join:id=user_id" json:"orders,omitempty"`
	Reviews []*Review `bun:"rel:has-many,join:id=user_id" json:"reviews,omitempty"`
}

// Active reports whether the user has not been deactivated.
func (u *User) Active() bool {
	return u.DeletedAt.IsZero()
}

// Validate checks the user's attributes before persistence.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Handle) == "" {
		return fmt.Errorf("%w: user handle must not be empty", database.ErrConstraintViolation)
	}
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: user email must not be empty", database.ErrConstraintViolation)
	}
	return nil
}
