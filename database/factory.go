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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

var (
	engineRegistryMu sync.Mutex
	engineRegistry   = map[string]*Engine{}
)

// GetEngine returns the process-wide engine for the given configuration,
// building it on first call. Repeated calls with an identical configuration
// return the same engine, so duplicate pools to one target cannot pile up.
func GetEngine(cfg *ConnectionConfig) (*Engine, error) {
	if cfg == nil {
		return nil, ConfigurationError("connection configuration cannot be empty", nil)
	}

	overrideFromEnv(cfg)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key := cfg.fingerprint()

	engineRegistryMu.Lock()
	defer engineRegistryMu.Unlock()

	if engine, ok := engineRegistry[key]; ok {
		return engine, nil
	}

	engine := newEngine(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := engine.Connect(ctx); err != nil {
		return nil, err
	}

	engineRegistry[key] = engine
	return engine, nil
}

// CloseAll closes every registered engine. Intended for process shutdown.
func CloseAll() error {
	engineRegistryMu.Lock()
	defer engineRegistryMu.Unlock()

	var firstErr error
	for key, engine := range engineRegistry {
		if err := engine.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(engineRegistry, key)
	}
	return firstErr
}

// fingerprint derives the singleton key for a configuration. Two configs
// with the same fingerprint share one engine and one pool.
func (c *ConnectionConfig) fingerprint() string {
	text := fmt.Sprintf("%s|%s|%d|%s|%s|%s|%s|%d|%d|%v|%v|%v|%v|%v",
		c.Type, c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
		c.PoolMin, c.PoolMax, c.ConnMaxLifetime, c.ConnMaxIdleTime,
		c.Echo, c.SlowQueryTime, c.EagerPing,
	)
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// overrideFromEnv overrides configuration values from environment variables.
func overrideFromEnv(cfg *ConnectionConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if username := os.Getenv("DB_USERNAME"); username != "" {
		cfg.Username = username
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.SSLMode = sslmode
	}
	if poolMin := os.Getenv("DB_POOL_MIN"); poolMin != "" {
		if val, err := strconv.Atoi(poolMin); err == nil {
			cfg.PoolMin = val
		}
	}
	if poolMax := os.Getenv("DB_POOL_MAX"); poolMax != "" {
		if val, err := strconv.Atoi(poolMax); err == nil {
			cfg.PoolMax = val
		}
	}
	if maxLifetime := os.Getenv("DB_CONN_MAX_LIFETIME"); maxLifetime != "" {
		if val, err := strconv.Atoi(maxLifetime); err == nil {
			cfg.ConnMaxLifetime = time.Duration(val) * time.Second
		}
	}
	if echo := os.Getenv("DB_ECHO"); echo != "" {
		cfg.Echo = echo == "true" || echo == "1"
	}
	if _, eager := os.LookupEnv("DB_EAGER_PING"); eager {
		cfg.EagerPing = true
	}
}

// InitDatabase builds (or reuses) the engine for cfg and optionally runs
// migrations and seeding per the migrate/seed sections.
func InitDatabase(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, ConfigurationError("database configuration cannot be empty", nil)
	}
	engine, err := GetEngine(&cfg.Connection)
	if err != nil {
		return nil, err
	}

	if cfg.Migrate.MigrateOnStartup {
		mm := NewMigrationManager(engine.DB(), &cfg.Migrate, engine.logger)
		if err := mm.RunMigrations(context.Background()); err != nil {
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
		if cfg.Seed.SeedOnMigration {
			seeder := NewSeeder(engine.DB(), cfg.Seed.Environment)
			if cfg.Seed.Dir != "" {
				seeder.SetRootPath(cfg.Seed.Dir)
			}
			if err := seeder.Run(context.Background()); err != nil {
				return nil, fmt.Errorf("failed to seed initial data: %w", err)
			}
		}
	}
	return engine, nil
}
