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
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConnectionConfig describes how to connect to a database and tune its pool.
// The pool is sized by PoolMin (idle connections kept warm) and PoolMax
// (hard upper bound); connections are established lazily on first use.
type ConnectionConfig struct {
	Type            string        `yaml:"type" json:"type" validate:"required,oneof=mysql postgres postgresql sqlite sqlite3"`
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port" validate:"min=0,max=65535"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	DBName          string        `yaml:"dbname" json:"dbname"`
	SSLMode         string        `yaml:"sslmode" json:"sslmode"`
	PoolMin         int           `yaml:"pool_min" json:"pool_min" validate:"min=0"`
	PoolMax         int           `yaml:"pool_max" json:"pool_max" validate:"min=1"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" json:"connect_timeout"`
	AcquireTimeout  time.Duration `yaml:"acquire_timeout" json:"acquire_timeout"`
	Echo            bool          `yaml:"echo" json:"echo"`
	SlowQueryTime   time.Duration `yaml:"slow_query_time" json:"slow_query_time"`
	EagerPing       bool          `yaml:"eager_ping" json:"eager_ping"`
	Charset         string        `yaml:"charset" json:"charset"` // MySQL:utf8mb4, Postgres:UTF8
}

// MigrateConfig controls table creation and constraint application on startup.
type MigrateConfig struct {
	MigrateOnStartup  bool   `yaml:"migrate_on_startup" json:"migrate_on_startup"`
	EnableConstraints bool   `yaml:"enable_constraints" json:"enable_constraints"`
	ConstraintFile    string `yaml:"constraint_file" json:"constraint_file"`
}

// SeedConfig controls data seeding behavior and environment selection.
type SeedConfig struct {
	SeedOnMigration bool   `yaml:"seed_on_migration" json:"seed_on_migration"`
	Dir             string `yaml:"dir" json:"dir"`
	Environment     string `yaml:"environment" json:"environment"`
}

// Config aggregates connection, migration, and seeding settings.
type Config struct {
	Connection ConnectionConfig `yaml:"connection" json:"connection"`
	Migrate    MigrateConfig    `yaml:"migrate" json:"migrate"`
	Seed       SeedConfig       `yaml:"seed" json:"seed"`
}

// ConfigProvider exposes configuration loading to external callers. Tools
// built on top of this layer implement it against their own settings source.
type ConfigProvider interface {
	ConfigLoader() *Config
}

var configValidator = validator.New()

// DefaultConnectionConfig returns a connection config with sensible defaults.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		PoolMin:         10,
		PoolMax:         100,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute * 30,
		ConnectTimeout:  time.Second * 10,
		AcquireTimeout:  time.Second * 30,
		SlowQueryTime:   time.Second * 2,
	}
}

// applyDefaults fills zero-valued pool and timeout settings.
func (c *ConnectionConfig) applyDefaults() {
	d := DefaultConnectionConfig()
	if c.PoolMin == 0 && c.PoolMax == 0 {
		c.PoolMin = d.PoolMin
		c.PoolMax = d.PoolMax
	}
	if c.PoolMax == 0 {
		c.PoolMax = c.PoolMin
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = d.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = d.ConnMaxIdleTime
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.AcquireTimeout == 0 {
		c.AcquireTimeout = d.AcquireTimeout
	}
}

// Validate checks the connection settings before an engine is constructed.
// The connection target must be non-empty and pool bounds must be ordered.
func (c *ConnectionConfig) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return ConfigurationError("invalid connection config", err)
	}
	switch c.Type {
	case "sqlite", "sqlite3":
		if c.DBName == "" {
			return ConfigurationError("sqlite requires a dbname", nil)
		}
	default:
		if c.Host == "" || c.DBName == "" {
			return ConfigurationError("connection target host and dbname must not be empty", nil)
		}
	}
	if c.PoolMin > c.PoolMax {
		return ConfigurationError(fmt.Sprintf("pool_min %d exceeds pool_max %d", c.PoolMin, c.PoolMax), nil)
	}
	return nil
}

// LoadConfig reads a YAML configuration file, loads a .env file when present,
// and applies environment variable overrides. The returned config is validated.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; environment variables win either way.
	_ = godotenv.Load()

	cfg := &Config{Connection: *DefaultConnectionConfig()}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, ConfigurationError(fmt.Sprintf("failed to read config file %s", path), err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, ConfigurationError(fmt.Sprintf("failed to parse config file %s", path), err)
		}
	}
	overrideFromEnv(&cfg.Connection)
	cfg.Connection.applyDefaults()
	if err := cfg.Connection.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
