package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tonimelisma/fredsync/internal/config"
)

func TestRedactedConfig_DoesNotMutateOriginal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.APIKey = "abcdef0123456789abcdef0123456789"

	out := redactedConfig(cfg)

	assert.NotEqual(t, cfg.APIKey, out.APIKey)
	assert.NotContains(t, out.APIKey, "0123456789abcdef")
	assert.Equal(t, "abcdef0123456789abcdef0123456789", cfg.APIKey)
	assert.Equal(t, cfg.DBPath, out.DBPath)
}
