package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParsePlanPrices(t *testing.T) {
	prices, err := ParsePlanPrices("free:0, bronze:39 ,PRATA:69,ouro:119")
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"free": 0, "bronze": 39, "prata": 69, "ouro": 119}, prices)

	_, err = ParsePlanPrices("ouro=119")
	require.Error(t, err)

	_, err = ParsePlanPrices("ouro:-1")
	require.Error(t, err)

	_, err = ParsePlanPrices(" , ")
	require.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("ASAAS_API_KEY", " key ")
	t.Setenv("ASAAS_BASE_URL", "https://sandbox.asaas.com/api/v3/")
	t.Setenv("ASAAS_TIMEOUT", "3s")
	t.Setenv("SWEEP_CONCURRENCY", "0")
	t.Setenv("PLAN_PRICES", "free:0,ouro:149")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
	require.Equal(t, "key", cfg.Asaas.APIKey)
	require.Equal(t, "https://sandbox.asaas.com/api/v3", cfg.Asaas.BaseURL)
	require.Equal(t, 3*time.Second, cfg.Asaas.Timeout)
	require.Equal(t, 1, cfg.Sweep.Concurrency)
	require.Equal(t, 7, cfg.Sweep.GracePeriodDays)
	require.Equal(t, 149.0, cfg.Plans.Prices["ouro"])
}
