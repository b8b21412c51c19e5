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
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// Seeder discovers and executes SQL files to seed initial data. Files live
// under <root>/<environment>/ and are executed in numeric prefix order
// (01_categories.sql before 02_products.sql). Each file runs in its own
// transaction.
type Seeder struct {
	db          *bun.DB
	environment string
	rootPath    string
	logger      Logger
}

type seedFile struct {
	Path  string
	Name  string
	Order int
}

var seedOrderPattern = regexp.MustCompile(`^(\d+)[_-]`)

// NewSeeder creates a seeder for the given environment.
func NewSeeder(db *bun.DB, environment string) *Seeder {
	if environment == "" {
		environment = "development"
	}
	return &Seeder{
		db:          db,
		environment: environment,
		rootPath:    "configs/sql",
		logger:      GetLogger(),
	}
}

// SetRootPath sets the directory from which seed files are loaded.
func (s *Seeder) SetRootPath(path string) {
	s.rootPath = path
}

// Run executes all discovered seed files in order.
func (s *Seeder) Run(ctx context.Context) error {
	files, err := s.discover()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		if s.logger != nil {
			s.logger.Info("No seed files found", "environment", s.environment, "path", s.rootPath)
		}
		return nil
	}

	for _, file := range files {
		start := time.Now()
		if err := s.executeFile(ctx, file); err != nil {
			return fmt.Errorf("seed file %s failed: %w", file.Name, err)
		}
		if s.logger != nil {
			s.logger.Info("Seed file executed", "file", file.Name, "duration", time.Since(start))
		}
	}
	return nil
}

func (s *Seeder) discover() ([]seedFile, error) {
	dir := filepath.Join(s.rootPath, s.environment)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read seed directory %s: %w", dir, err)
	}

	var files []seedFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		order := 0
		if m := seedOrderPattern.FindStringSubmatch(entry.Name()); m != nil {
			order, _ = strconv.Atoi(m[1])
		}
		files = append(files, seedFile{
			Path:  filepath.Join(dir, entry.Name()),
			Name:  entry.Name(),
			Order: order,
		})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

func (s *Seeder) executeFile(ctx context.Context, file seedFile) error {
	data, err := os.ReadFile(file.Path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	statements := splitStatements(string(data))
	if len(statements) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	var committed bool
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return WrapDBError(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return WrapDBError(err)
	}
	committed = true
	return nil
}

// splitStatements splits a SQL script on semicolons, dropping comment lines
// and empty fragments. Quoted semicolons inside string literals are not
// handled; seed files keep their statements simple.
func splitStatements(script string) []string {
	var cleaned []string
	for _, line := range strings.Split(script, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "--") || strings.HasPrefix(trimmed, "#") {
			continue
		}
		cleaned = append(cleaned, line)
	}

	var statements []string
	for _, stmt := range strings.Split(strings.Join(cleaned, "\n"), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
