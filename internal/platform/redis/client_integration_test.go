//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"workerhub/internal/platform/config"
	"workerhub/pkg/testutil/containers"
)

func TestNewConnects(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()

	client, err := New(ctx, config.RedisConfig{URL: rc.URL, PoolSize: 2, DialTimeout: time.Second})
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())
}

func TestNewRejectsBadURL(t *testing.T) {
	_, err := New(context.Background(), config.RedisConfig{})
	require.Error(t, err)

	_, err = New(context.Background(), config.RedisConfig{URL: "not-a-url"})
	require.Error(t, err)
}
