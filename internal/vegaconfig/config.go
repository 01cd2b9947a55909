// Copyright 2026 The Vega Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package vegaconfig loads runtime configuration the way cmd/looms/config.go
// loads server configuration: viper-backed, layered CLI flags > environment
// > config file > defaults, with fsnotify live-reload of the tunables that
// are safe to change without restarting a run (spec.md §6).
package vegaconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"

	"github.com/vega-lang/vega/internal/budget"
	"github.com/vega-lang/vega/internal/vegalog"
	"go.uber.org/zap"
)

// ServiceName is the OS keyring service under which the API key may be
// stored (mirrors cmd/looms/config.go's ServiceName convention).
const ServiceName = "vega"

// VegaDir returns $HOME/.vega, creating nothing -- callers that need the
// directory to exist create it themselves (e.g. `vega init`).
func VegaDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vega"
	}
	return filepath.Join(home, ".vega")
}

// Config holds the runtime tunables spec.md §6 and §4.7-§4.9 name: budget
// ceilings and retry/backoff/circuit-breaker defaults. CLI flags bind over
// these via viper; see cmd/vega.
type Config struct {
	Budget struct {
		MaxInputTokens  int64   `mapstructure:"max_input_tokens"`
		MaxOutputTokens int64   `mapstructure:"max_output_tokens"`
		MaxCostUSD      float64 `mapstructure:"max_cost_usd"`
	} `mapstructure:"budget"`

	Retry struct {
		BaseDelayMs int64 `mapstructure:"base_delay_ms"`
		MaxDelayMs  int64 `mapstructure:"max_delay_ms"`
	} `mapstructure:"retry"`

	CircuitBreaker struct {
		FailureThreshold int   `mapstructure:"failure_threshold"`
		CooldownMs       int64 `mapstructure:"cooldown_ms"`
	} `mapstructure:"circuit_breaker"`

	// AnthropicAPIKey is resolved separately from the viper tree (see
	// ResolveAPIKey) because its precedence order is spec'd explicitly
	// and differs from the general CLI > env > file > default chain.
	AnthropicAPIKey string `mapstructure:"-"`
}

// ToBudgetLimits adapts the loaded config into budget.Limits.
func (c *Config) ToBudgetLimits() budget.Limits {
	return budget.Limits{
		MaxInputTokens:  c.Budget.MaxInputTokens,
		MaxOutputTokens: c.Budget.MaxOutputTokens,
		MaxCostUSD:      c.Budget.MaxCostUSD,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("budget.max_input_tokens", 0)
	v.SetDefault("budget.max_output_tokens", 0)
	v.SetDefault("budget.max_cost_usd", 0.0)
	v.SetDefault("retry.base_delay_ms", 500)
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("circuit_breaker.failure_threshold", 5)
	v.SetDefault("circuit_breaker.cooldown_ms", 30000)
}

// Load builds a Config from the VEGA_ environment prefix, $HOME/.vega/
// config.yaml (if present), and built-in defaults, in that descending
// precedence order (viper's merge: env over file over defaults). CLI flags
// are bound by the caller (cmd/vega) before calling Load, so they win over
// all three. The API key is resolved and attached last via ResolveAPIKey.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(VegaDir())

	v.SetEnvPrefix("VEGA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("vegaconfig: reading config file: %w", err)
		}
		// No config file is not an error (spec.md §6: config file is optional).
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("vegaconfig: unmarshaling config: %w", err)
	}

	cfg.AnthropicAPIKey = ResolveAPIKey()
	return &cfg, nil
}

// ResolveAPIKey implements spec.md §6's precedence exactly: ANTHROPIC_API_KEY
// env var first, then a literal "ANTHROPIC_API_KEY=sk-..." line in
// $HOME/.vega. The OS keyring is consulted last, as a convenience the
// distillation dropped but the teacher's config loader supports (see
// DESIGN.md). Missing key returns "" -- callers warn rather than fail, since
// non-agent programs never need it.
func ResolveAPIKey() string {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key
	}
	if key := readKeyFromDotfile(); key != "" {
		return key
	}
	if key, err := keyring.Get(ServiceName, "anthropic_api_key"); err == nil && key != "" {
		return key
	}
	return ""
}

func readKeyFromDotfile() string {
	data, err := os.ReadFile(VegaDir())
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if after, ok := strings.CutPrefix(line, "ANTHROPIC_API_KEY="); ok {
			return strings.TrimSpace(after)
		}
	}
	return ""
}

// SaveAPIKeyToKeyring stores key for future ResolveAPIKey calls (`vega init`
// offers this instead of writing the key into a plaintext dotfile).
func SaveAPIKeyToKeyring(key string) error {
	return keyring.Set(ServiceName, "anthropic_api_key", key)
}

// Watcher live-reloads the budget/retry/circuit-breaker tunables from the
// config file (spec.md's hot-reload non-goal excludes bytecode/behavior
// changes, not config values -- see SPEC_FULL.md §2.3).
type Watcher struct {
	mu      sync.RWMutex
	v       *viper.Viper
	cfg     *Config
	onApply func(*Config)
}

// WatchConfig starts an fsnotify watch on the config file backing v (a no-op
// if v was constructed without ConfigFileUsed, e.g. no file was found) and
// invokes onApply with the freshly reloaded Config on every write.
func WatchConfig(v *viper.Viper, initial *Config, onApply func(*Config)) *Watcher {
	w := &Watcher{v: v, cfg: initial, onApply: onApply}
	if v.ConfigFileUsed() == "" {
		return w
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg); err != nil {
			vegalog.Warn("vegaconfig_reload_failed", zap.Error(err))
			return
		}
		cfg.AnthropicAPIKey = w.Snapshot().AnthropicAPIKey
		w.mu.Lock()
		w.cfg = &cfg
		w.mu.Unlock()
		vegalog.Info("vegaconfig_reloaded", zap.String("file", e.Name))
		if w.onApply != nil {
			w.onApply(&cfg)
		}
	})
	v.WatchConfig()
	return w
}

// Snapshot returns the most recently applied Config.
func (w *Watcher) Snapshot() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}
