package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPoolConfig_WithDefaults(t *testing.T) {
	assert.Equal(t, DefaultPool, PoolConfig{}.withDefaults())

	got := PoolConfig{MaxOpenConns: 10, MaxIdleConns: 40, ConnMaxLifetime: time.Hour}.withDefaults()
	assert.Equal(t, 10, got.MaxOpenConns)
	assert.Equal(t, 10, got.MaxIdleConns, "idle is capped at open")
	assert.Equal(t, time.Hour, got.ConnMaxLifetime)
	assert.Equal(t, DefaultPool.ConnMaxIdleTime, got.ConnMaxIdleTime)
}
