package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchConstants(t *testing.T) {
	d := Defaults()
	assert.Equal(t, 100, d.Enumerate.MaxPage)
	assert.Equal(t, 95, d.Enumerate.LastPageThreshold)
	assert.Equal(t, 750, d.Enumerate.MaxItemsInRequest)
	assert.Equal(t, 500, d.Enumerate.MaxItemsInBrandsFilter)
	assert.Equal(t, 20, d.Enumerate.MaxBrandsInRequest)
	assert.Equal(t, 20000, d.Enumerate.MinPriceRange)
	assert.Equal(t, 10, d.Fetch.AttemptsCounter)
	assert.Equal(t, 200, d.Fetch.RequestLimit)
	assert.Equal(t, 100, d.Pipeline.WorkerCount)
	assert.False(t, d.Fetch.InsecureSkipVerify)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("FETCH_REQUEST_LIMIT", "50")
	t.Setenv("PIPELINE_WORKER_COUNT", "10")
	t.Setenv("FETCH_INSECURE_SKIP_VERIFY", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Fetch.RequestLimit)
	assert.Equal(t, 10, cfg.Pipeline.WorkerCount)
	assert.True(t, cfg.Fetch.InsecureSkipVerify)
}

func TestLoadRejectsInvalidRequestLimit(t *testing.T) {
	t.Setenv("FETCH_REQUEST_LIMIT", "0")
	_, err := Load()
	require.Error(t, err)
}
