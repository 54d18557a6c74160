package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, PaymentKey("pay_1"), []byte(`{"id":"pay_1"}`), time.Minute))
	require.NoError(t, c.Set(ctx, "forever", []byte("x"), 0))

	data, ok, err := c.Get(ctx, "payment:pay_1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"id":"pay_1"}`, string(data))

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "payment:pay_1")
	assert.False(t, ok, "истекший ключ")
	_, ok, _ = c.Get(ctx, "forever")
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "forever"))
	_, ok, _ = c.Get(ctx, "forever")
	assert.False(t, ok)
	assert.Equal(t, []string{"forever"}, c.Deleted())
}

func TestNopCache(t *testing.T) {
	var c Cache = NopCache{}
	require.NoError(t, c.Set(context.Background(), "k", []byte("v"), time.Minute))
	_, ok, err := c.Get(context.Background(), "k")
	assert.NoError(t, err)
	assert.False(t, ok)
}
