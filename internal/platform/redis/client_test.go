package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixkeys/internal/platform/config"
)

func TestNew(t *testing.T) {
	t.Run("unconfigured", func(t *testing.T) {
		c, err := New(context.Background(), config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, c)
	})
	t.Run("bad url", func(t *testing.T) {
		_, err := New(context.Background(), config.RedisConfig{URL: "mysql://nope"})
		assert.Error(t, err)
	})
}
