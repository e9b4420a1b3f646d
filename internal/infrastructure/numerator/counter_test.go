package numerator

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	corenumerator "inspecta/internal/core/numerator"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

// counterContract runs the behaviour every Counter must share.
func counterContract(t *testing.T, c Counter) {
	ctx := context.Background()
	key := corenumerator.Key{Prefix: "NDT", Year: 2025}
	other := corenumerator.Key{Prefix: "NDT", Year: 2026}

	cur, err := c.Current(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)

	v, err := c.Increment(ctx, key, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	v, err = c.Increment(ctx, key, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(11), v)

	v, err = c.Raise(ctx, key, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(11), v, "raise must not lower")

	v, err = c.Raise(ctx, key, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(30), v)

	require.NoError(t, c.Set(ctx, key, 7))
	cur, err = c.Current(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(7), cur)

	cur, err = c.Current(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cur)

	const workers = 50
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := c.Increment(ctx, other, 1)
			return err
		})
	}
	require.NoError(t, g.Wait())

	cur, err = c.Current(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int64(workers), cur)
}

func TestMemoryCounter(t *testing.T) {
	counterContract(t, NewMemoryCounter())
}

func TestRedisCounter(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	counterContract(t, NewRedisCounter(client, "test"))
}

func TestRedisCounter_KeyLayout(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()
	ctx := context.Background()

	c := NewRedisCounter(client, "")
	_, err := c.Increment(ctx, corenumerator.Key{Prefix: "PT", Year: 2025}, 3)
	require.NoError(t, err)

	val, err := client.Get(ctx, "inspecta:seq:PT:2025").Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(3), val)
}

func TestPostgresCounter(t *testing.T) {
	counterContract(t, NewPostgresCounter(newMockQuerier()))
}

func TestPostgresCounter_FromContext(t *testing.T) {
	q := newMockQuerier()
	var resolved int
	c := NewPostgresCounterFromContext(func(ctx context.Context) Querier {
		resolved++
		return q
	})

	_, err := c.Increment(context.Background(), corenumerator.Key{Prefix: "ENG", Year: 2025}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
}
