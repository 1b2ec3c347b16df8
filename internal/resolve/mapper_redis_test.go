package resolve

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/kb"
)

// TestMapperAgainstRedis runs the cache round trip against a real redis
// protocol implementation instead of per-command expectations.
func TestMapperAgainstRedis(t *testing.T) {
	ctx := context.Background()

	srv := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	defer cache.Close()

	ttl := 5 * time.Minute
	m := NewMapper(kb.NewDemoGraph(), cache, ttl, logger.NewNoOpLogger())

	v, err := m.EntityType(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, kb.TypeTransaction, v)

	cached, err := srv.Get("kbmap:entity-type-mapping:payments")
	require.NoError(t, err)
	assert.Equal(t, kb.TypeTransaction, cached)

	// The entry expires with its TTL and the next call repopulates it.
	srv.FastForward(ttl + time.Second)
	assert.False(t, srv.Exists("kbmap:entity-type-mapping:payments"))

	v, err = m.EntityType(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, kb.TypeTransaction, v)
	assert.True(t, srv.Exists("kbmap:entity-type-mapping:payments"))
}
