package window

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const (
	testMax    = 30
	testWindow = 2 * time.Second
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type LimiterSuite struct {
	suite.Suite
	clock   *fakeClock
	limiter *Limiter
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.clock = &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.limiter = New(Config{MaxOps: testMax, Window: testWindow}, WithClock(s.clock.Now))
}

func (s *LimiterSuite) TestAllow() {
	s.Run("admits up to the limit", func() {
		for i := range testMax {
			s.True(s.limiter.Allow(), "operation %d", i+1)
		}
		s.Equal(0, s.limiter.Remaining())
	})

	s.Run("drops the operation past the limit", func() {
		s.False(s.limiter.Allow())
	})

	s.Run("keeps dropping within the same window", func() {
		s.clock.Advance(testWindow)
		s.False(s.limiter.Allow(), "window resets only once fully elapsed")
	})

	s.Run("resets after the window elapses", func() {
		s.clock.Advance(time.Millisecond)
		s.True(s.limiter.Allow())
		s.Equal(testMax-1, s.limiter.Remaining())
	})
}

func (s *LimiterSuite) TestRemainingAfterIdle() {
	s.limiter.Allow()
	s.clock.Advance(testWindow + time.Second)
	s.Equal(testMax, s.limiter.Remaining())
}

func (s *LimiterSuite) TestConcurrentAllow() {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.limiter.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(testMax, allowed)
}

func (s *LimiterSuite) TestConfigValidate() {
	s.NoError(DefaultConfig().Validate())
	s.Error(Config{MaxOps: 0, Window: time.Second}.Validate())
	s.Error(Config{MaxOps: 1, Window: 0}.Validate())
}
