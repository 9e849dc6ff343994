//go:build integration

package redis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"workerhub/internal/workers/models"
	"workerhub/pkg/platform/sentinel"
	"workerhub/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *Store
	ctx   context.Context
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.ctx = context.Background()
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
	s.store = New(s.redis.Client)
}

func (s *RedisStoreSuite) TestRoundTrip() {
	s.Run("missing key is reported as not found", func() {
		got, err := s.store.Load(s.ctx)
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.Empty(got)
	})

	s.Run("write then load", func() {
		want := []models.Worker{
			{Name: "Jane Doe", Address: "1 Main St", Lat: 40, Lng: -75, Level: models.LevelCritical},
		}
		s.Require().NoError(s.store.Write(s.ctx, want))

		got, err := s.store.Load(s.ctx)
		s.Require().NoError(err)
		s.Equal(want, got)
	})

	s.Run("garbage value is corrupt", func() {
		s.Require().NoError(s.redis.Client.Set(s.ctx, DefaultKey, "nope", 0).Err())

		_, err := s.store.Load(s.ctx)
		s.ErrorIs(err, sentinel.ErrCorrupt)
	})
}
