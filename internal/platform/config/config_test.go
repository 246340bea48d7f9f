package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pixconfig "pixkeys/internal/pixkey/config"
)

func TestDefaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	def := pixconfig.DefaultConfig()
	assert.Equal(t, ":8081", cfg.OpsAddr)
	assert.Equal(t, def.Decode, cfg.Engine.Decode)
	assert.Equal(t, def.Lifecycle, cfg.Engine.Lifecycle)
	assert.Equal(t, def.Reconcile.StaleRules, cfg.Engine.Reconcile.StaleRules)
	assert.Empty(t, cfg.Database.DSN)
	assert.False(t, cfg.KafkaEnabled())
	assert.Equal(t, 5, cfg.Kafka.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Database.TxTimeout)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("PIXKEYS_ISPB", "12345678")
	t.Setenv("PIXKEYS_KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PIXKEYS_DECODE_CACHE_TTL", "2m")
	t.Setenv("PIXKEYS_PORTABILITY_AUTO_APPROVE", "true")
	t.Setenv("PIXKEYS_LIFECYCLE_MAX_KEYS_NATURAL_PERSON", "7")
	t.Setenv("PIXKEYS_RECONCILE_REGISTRY_RPS", "2.5")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "12345678", cfg.Engine.ISPB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.Equal(t, 2*time.Minute, cfg.Engine.Decode.CacheTTL)
	assert.True(t, cfg.Engine.Portability.AutoApprove)
	assert.Equal(t, 7, cfg.Engine.Lifecycle.MaxKeysNaturalPerson)
	assert.InDelta(t, 2.5, cfg.Engine.Reconcile.RegistryRPS, 0.0001)
}

func TestValidation(t *testing.T) {
	t.Run("ispb", func(t *testing.T) {
		t.Setenv("PIXKEYS_ISPB", "123")
		_, err := FromViper(viper.New())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ispb")
	})
	t.Run("attempts", func(t *testing.T) {
		t.Setenv("PIXKEYS_KAFKA_MAX_ATTEMPTS", "0")
		_, err := FromViper(viper.New())
		require.Error(t, err)
	})
}
