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

package utils

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Logger = logrus.Logger

var (
	defaultConsoleLevel = logrus.InfoLevel
	loggerRegistryMu    sync.RWMutex
	loggerRegistry      = map[string]*logrus.Logger{}
	consoleLogFormat    = EnvDefaultString("CONSOLE_LOG_FORMAT", "text")
)

// EnvDefaultString returns the environment value for key, or def when unset.
func EnvDefaultString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

// EnvDefaultBool returns the boolean environment value for key, or def.
func EnvDefaultBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

type namedFormatter struct {
	name  string
	inner logrus.Formatter
}

func (f *namedFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Data["component"] = f.name
	return f.inner.Format(e)
}

func newFormatter(name string) logrus.Formatter {
	if strings.EqualFold(consoleLogFormat, "json") {
		return &namedFormatter{name: name, inner: &logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		}}
	}
	return &namedFormatter{name: name, inner: &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	}}
}

// NewLogger returns the named logger, creating and registering it on first
// use. Loggers are shared process-wide by name.
func NewLogger(name string) *logrus.Logger {
	key := strings.ToUpper(strings.TrimSpace(name))
	loggerRegistryMu.RLock()
	l, ok := loggerRegistry[key]
	loggerRegistryMu.RUnlock()
	if ok {
		return l
	}

	loggerRegistryMu.Lock()
	defer loggerRegistryMu.Unlock()
	if l, ok = loggerRegistry[key]; ok {
		return l
	}
	l = logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(levelFromEnv(key))
	l.SetFormatter(newFormatter(key))
	loggerRegistry[key] = l
	return l
}

// SetLoggerLevel changes the level of a registered logger. Unknown levels
// fall back to the default console level.
func SetLoggerLevel(name, level string) {
	l := NewLogger(name)
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = defaultConsoleLevel
	}
	l.SetLevel(parsed)
}

func levelFromEnv(name string) logrus.Level {
	for _, key := range []string{fmt.Sprintf("%s_LOG_LEVEL", name), "LOG_LEVEL"} {
		if v, ok := os.LookupEnv(key); ok {
			if parsed, err := logrus.ParseLevel(strings.ToLower(v)); err == nil {
				return parsed
			}
		}
	}
	return defaultConsoleLevel
}
