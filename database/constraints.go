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
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"gopkg.in/yaml.v3"
)

// ForeignKeyConstraint describes a foreign key relationship between tables.
// The OnDelete policy encodes the ownership model: CASCADE only where the
// parent exclusively owns the child rows, RESTRICT where the reference is
// historical and must survive the parent.
type ForeignKeyConstraint struct {
	Table           string `yaml:"table"`
	Column          string `yaml:"column"`
	ReferenceTable  string `yaml:"reference_table"`
	ReferenceColumn string `yaml:"reference_column"`
	OnDelete        string `yaml:"on_delete"` // CASCADE, RESTRICT, SET NULL, NO ACTION
	OnUpdate        string `yaml:"on_update"`
	ConstraintName  string `yaml:"constraint_name"`
}

// CheckConstraint describes a table-level range or non-negativity check.
type CheckConstraint struct {
	Table string `yaml:"table"`
	Name  string `yaml:"name"`
	Expr  string `yaml:"expr"`
}

// ConstraintSet is the full declarative constraint configuration, both the
// code-registered defaults and the YAML file format.
type ConstraintSet struct {
	ForeignKeys []ForeignKeyConstraint `yaml:"foreign_keys"`
	Checks      []CheckConstraint      `yaml:"checks"`
}

var (
	registeredConstraintsMu sync.Mutex
	registeredConstraints   ConstraintSet
)

// RegisterForeignKeys adds code-defined foreign keys to the default set.
func RegisterForeignKeys(fks ...ForeignKeyConstraint) {
	registeredConstraintsMu.Lock()
	defer registeredConstraintsMu.Unlock()
	registeredConstraints.ForeignKeys = append(registeredConstraints.ForeignKeys, fks...)
}

// RegisterChecks adds code-defined check constraints to the default set.
func RegisterChecks(checks ...CheckConstraint) {
	registeredConstraintsMu.Lock()
	defer registeredConstraintsMu.Unlock()
	registeredConstraints.Checks = append(registeredConstraints.Checks, checks...)
}

func registeredConstraintSet() ConstraintSet {
	registeredConstraintsMu.Lock()
	defer registeredConstraintsMu.Unlock()
	set := ConstraintSet{
		ForeignKeys: make([]ForeignKeyConstraint, len(registeredConstraints.ForeignKeys)),
		Checks:      make([]CheckConstraint, len(registeredConstraints.Checks)),
	}
	copy(set.ForeignKeys, registeredConstraints.ForeignKeys)
	copy(set.Checks, registeredConstraints.Checks)
	return set
}

// Name returns the explicit constraint name or a derived one.
func (fk *ForeignKeyConstraint) Name() string {
	if fk.ConstraintName != "" {
		return fk.ConstraintName
	}
	return fmt.Sprintf("fk_%s_%s", fk.Table, fk.Column)
}

// SQL returns the ALTER TABLE statement adding the foreign key.
func (fk *ForeignKeyConstraint) SQL() string {
	s := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
		fk.Table, fk.Name(), fk.Column, fk.ReferenceTable, fk.ReferenceColumn)
	if fk.OnDelete != "" {
		s += fmt.Sprintf(" ON DELETE %s", fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		s += fmt.Sprintf(" ON UPDATE %s", fk.OnUpdate)
	}
	return s
}

// SQL returns the ALTER TABLE statement adding the check.
func (c *CheckConstraint) SQL() string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)", c.Table, c.Name, c.Expr)
}

// ConstraintManager applies the declarative constraint set to a database.
type ConstraintManager struct {
	set    ConstraintSet
	logger Logger
}

// NewConstraintManager creates a manager with the code-registered set.
func NewConstraintManager(logger Logger) *ConstraintManager {
	return &ConstraintManager{set: registeredConstraintSet(), logger: logger}
}

// NewConstraintManagerFromFile creates a manager from a YAML constraint
// file, falling back to the code-registered set when the file is absent or
// unparseable.
func NewConstraintManagerFromFile(logger Logger, path string) *ConstraintManager {
	set, err := loadConstraintFile(path)
	if err != nil {
		if logger != nil {
			logger.Debug("Falling back to code-registered constraints", "error", err.Error(), "path", path)
		}
		set = registeredConstraintSet()
	}
	return &ConstraintManager{set: set, logger: logger}
}

func loadConstraintFile(path string) (ConstraintSet, error) {
	var set ConstraintSet
	if path == "" {
		return set, fmt.Errorf("no constraint file configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return set, fmt.Errorf("failed to read constraint file: %w", err)
	}
	if err := yaml.Unmarshal(data, &set); err != nil {
		return set, fmt.Errorf("failed to parse constraint file: %w", err)
	}
	return set, nil
}

// Export writes the current set to a YAML file.
func (cm *ConstraintManager) Export(path string) error {
	data, err := yaml.Marshal(&cm.set)
	if err != nil {
		return fmt.Errorf("failed to serialize constraint set: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyAll adds every constraint in the set. sqlite cannot add constraints
// after table creation; there the foreign keys come from the create-table
// hooks and checks are enforced in the model layer, so sqlite is skipped.
// Already-existing constraints are logged and skipped.
func (cm *ConstraintManager) ApplyAll(ctx context.Context, db bun.IDB) error {
	if db.Dialect().Name() == dialect.SQLite {
		if cm.logger != nil {
			cm.logger.Debug("Skipping ALTER TABLE constraints on sqlite")
		}
		return nil
	}
	if errs := cm.Validate(); len(errs) > 0 {
		return fmt.Errorf("constraint validation failed, %d errors in total", len(errs))
	}

	for _, fk := range cm.set.ForeignKeys {
		cm.exec(ctx, db, fk.Name(), fk.SQL())
	}
	for _, check := range cm.set.Checks {
		cm.exec(ctx, db, check.Name, check.SQL())
	}
	return nil
}

func (cm *ConstraintManager) exec(ctx context.Context, db bun.IDB, name, stmt string) {
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		if cm.logger != nil {
			cm.logger.Debug("Failed to add constraint", "constraint", name, "error", err.Error())
		}
		return
	}
	if cm.logger != nil {
		cm.logger.Debug("Added constraint", "constraint", name)
	}
}

// ByTable returns the foreign keys defined for a table.
func (cm *ConstraintManager) ByTable(tableName string) []ForeignKeyConstraint {
	var result []ForeignKeyConstraint
	for _, fk := range cm.set.ForeignKeys {
		if strings.EqualFold(fk.Table, tableName) {
			result = append(result, fk)
		}
	}
	return result
}

// Validate checks the configured constraints for common issues.
func (cm *ConstraintManager) Validate() []error {
	var errs []error
	validActions := []string{"CASCADE", "RESTRICT", "SET NULL", "NO ACTION"}

	for _, fk := range cm.set.ForeignKeys {
		if fk.Table == "" {
			errs = append(errs, fmt.Errorf("table name cannot be empty"))
		}
		if fk.Column == "" {
			errs = append(errs, fmt.Errorf("column name cannot be empty: %s", fk.Table))
		}
		if fk.ReferenceTable == "" || fk.ReferenceColumn == "" {
			errs = append(errs, fmt.Errorf("reference cannot be empty: %s.%s", fk.Table, fk.Column))
		}
		if fk.OnDelete != "" {
			valid := false
			for _, action := range validActions {
				if strings.EqualFold(fk.OnDelete, action) {
					valid = true
					break
				}
			}
			if !valid {
				errs = append(errs, fmt.Errorf("invalid delete policy: %s, constraint: %s", fk.OnDelete, fk.Name()))
			}
		}
	}
	for _, check := range cm.set.Checks {
		if check.Table == "" || check.Name == "" || check.Expr == "" {
			errs = append(errs, fmt.Errorf("check constraint requires table, name and expr: %+v", check))
		}
	}
	return errs
}
