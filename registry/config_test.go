package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg, err := (*Config)(nil).resolve()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 30*time.Second, cfg.dynamicTTL())
}

func TestDynamicTTL(t *testing.T) {
	tests := []struct {
		maxAge time.Duration
		want   time.Duration
	}{
		{30 * time.Second, 30 * time.Second},
		{30*time.Second + 900*time.Millisecond, 30 * time.Second},
		{1500 * time.Millisecond, time.Second},
		{time.Second, time.Second},
	}
	for _, tt := range tests {
		cfg := &Config{MaxAge: tt.maxAge}
		assert.Equal(t, tt.want, cfg.dynamicTTL(), tt.maxAge.String())
	}
}

func TestConfigValidate(t *testing.T) {
	bad := []*Config{
		{MaxAge: 500 * time.Millisecond},
		{PageSize: -1},
		{StatsWindowSize: 99},
		{Serializer: "yaml"},
		{DynamicRefreshInterval: -time.Second},
	}
	for _, cfg := range bad {
		_, err := cfg.resolve()
		assert.ErrorIs(t, err, ErrInvalidConfig, "%+v", cfg)
	}

	cfg, err := (&Config{StatsWindowSize: 100, Serializer: SerializerMsgpack}).resolve()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.StatsWindowSize)
}
