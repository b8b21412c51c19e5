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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type migrateWidget struct {
	bun.BaseModel `bun:"table:widgets,alias:w"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull"`
}

func init() {
	RegisterModel(NewModel(&migrateWidget{}, 10))
}

func TestRunMigrationsIsTrackedAndIdempotent(t *testing.T) {
	engine, err := GetEngine(memoryConfig("migrate_tracked"))
	require.NoError(t, err)

	ctx := context.Background()
	mm := NewMigrationManager(engine.DB(), &MigrateConfig{MigrateOnStartup: true}, GetLogger())
	require.NoError(t, mm.RunMigrations(ctx))

	applied, err := mm.AppliedMigrations(ctx)
	require.NoError(t, err)
	firstRun := len(applied)
	require.NotZero(t, firstRun)

	// A second run applies nothing new.
	require.NoError(t, mm.RunMigrations(ctx))
	applied, err = mm.AppliedMigrations(ctx)
	require.NoError(t, err)
	assert.Len(t, applied, firstRun)

	// The registered model's table exists and accepts writes.
	_, err = engine.DB().NewInsert().Model(&migrateWidget{Name: "w1"}).Exec(ctx)
	require.NoError(t, err)
}

func TestSeederRunsEnvironmentScriptsInOrder(t *testing.T) {
	engine, err := GetEngine(memoryConfig("seed_env"))
	require.NoError(t, err)

	ctx := context.Background()
	mm := NewMigrationManager(engine.DB(), &MigrateConfig{MigrateOnStartup: true}, GetLogger())
	require.NoError(t, mm.RunMigrations(ctx))

	dir := t.TempDir()
	envDir := filepath.Join(dir, "test")
	require.NoError(t, os.MkdirAll(envDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(envDir, "001_widgets.sql"),
		[]byte("-- base widgets\nINSERT INTO widgets (name) VALUES ('alpha');\nINSERT INTO widgets (name) VALUES ('beta');\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(envDir, "002_more.sql"),
		[]byte("INSERT INTO widgets (name) VALUES ('gamma');\n"), 0o644))

	seeder := NewSeeder(engine.DB(), "test")
	seeder.SetRootPath(dir)
	require.NoError(t, seeder.Run(ctx))

	count, err := engine.DB().NewSelect().Model((*migrateWidget)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestConstraintSQLGeneration(t *testing.T) {
	fk := ForeignKeyConstraint{
		Table:           "order_items",
		Column:          "order_id",
		ReferenceTable:  "orders",
		ReferenceColumn: "id",
		OnDelete:        "CASCADE",
	}
	assert.Equal(t, "fk_order_items_order_id", fk.Name())
	assert.Contains(t, fk.SQL(), "ALTER TABLE order_items")
	assert.Contains(t, fk.SQL(), "REFERENCES orders(id)")
	assert.Contains(t, fk.SQL(), "ON DELETE CASCADE")

	check := CheckConstraint{
		Table: "reviews",
		Name:  "ck_reviews_rating_range",
		Expr:  "rating BETWEEN 1 AND 5",
	}
	assert.Contains(t, check.SQL(), "CHECK (rating BETWEEN 1 AND 5)")
}
