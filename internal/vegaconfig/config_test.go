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

package vegaconfig

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), cfg.Budget.MaxInputTokens)
	assert.Equal(t, 0.0, cfg.Budget.MaxCostUSD)
	assert.Equal(t, int64(500), cfg.Retry.BaseDelayMs)
	assert.Equal(t, int64(30000), cfg.Retry.MaxDelayMs)
	assert.Equal(t, 5, cfg.CircuitBreaker.FailureThreshold)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("VEGA_BUDGET_MAX_COST_USD", "1.5")
	cfg, err := Load(viper.New())
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.Budget.MaxCostUSD)
}

func TestResolveAPIKeyEnvTakesPrecedence(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")
	assert.Equal(t, "sk-from-env", ResolveAPIKey())
}

func TestToBudgetLimits(t *testing.T) {
	cfg := &Config{}
	cfg.Budget.MaxInputTokens = 100
	cfg.Budget.MaxOutputTokens = 200
	cfg.Budget.MaxCostUSD = 0.5
	limits := cfg.ToBudgetLimits()
	assert.Equal(t, int64(100), limits.MaxInputTokens)
	assert.Equal(t, int64(200), limits.MaxOutputTokens)
	assert.Equal(t, 0.5, limits.MaxCostUSD)
}
