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

	"github.com/storekit/storekit/database"
	"github.com/uptrace/bun"
)

// Category is a classification node for products. A category that still has
// products cannot be deleted; the reference is restrict, not cascade.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Name        string `bun:"name,notnull,unique" json:"name"`
	Slug        string `bun:"slug,notnull,unique" json:"slug"`
	Description string `bun:"description" json:"description"`

	Products []*Product `bun:"rel:has-many,join:id=category_id" json:"products,omitempty"`
}

// Validate checks the category's attributes before persistence.
func (c *Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name must not be empty", database.ErrConstraintViolation)
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return nil
}

// Slugify derives a URL-safe slug from a display name.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
