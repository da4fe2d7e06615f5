package monitor

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/roverhub/pkg/options"
)

func TestConnect(t *testing.T) {
	c, err := Connect("redis://:secret@cache:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)
	assert.Equal(t, "secret", c.Options().Password)

	c, err = Connect("localhost:6379")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", c.Options().Addr)

	_, err = Connect("redis://host:notaport/x")
	assert.Error(t, err)
}

func TestLocalLease(t *testing.T) {
	ok, err := LocalLease{}.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

// TestRedisLeaseSingleHolder needs a Redis at ROVERHUB_TEST_REDIS_ADDR.
func TestRedisLeaseSingleHolder(t *testing.T) {
	addr := os.Getenv("ROVERHUB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROVERHUB_TEST_REDIS_ADDR not set")
	}

	opts := options.NewRedisOptions()
	opts.LockKey = "roverhub:test:" + uuid.NewString()
	opts.LockTTL = time.Second

	first, err := Connect(addr)
	require.NoError(t, err)
	second, err := Connect(addr)
	require.NoError(t, err)

	a, b := NewRedisLease(first, opts), NewRedisLease(second, opts)
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
