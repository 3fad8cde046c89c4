package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/vaxcart-api/internal/resilience"
)

var errDown = errors.New("courier down")

func fail(context.Context) (int, error) { return 0, errDown }
func succeed(context.Context) (int, error) { return 7, nil }

func TestBreakerTransitions(t *testing.T) {
	breaker := resilience.NewBreaker[int](resilience.BreakerConfig{
		Target:              "transitions",
		ConsecutiveFailures: 2,
		OpenFor:             50 * time.Millisecond,
	})
	ctx := context.Background()

	_, err := breaker.Execute(ctx, fail)
	require.ErrorIs(t, err, errDown)
	_, err = breaker.Execute(ctx, fail)
	require.ErrorIs(t, err, errDown)
	require.Equal(t, "open", breaker.State())

	_, err = breaker.Execute(ctx, succeed)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit, "breaker should reject while open")

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, "half_open", breaker.State())
	v, err := breaker.Execute(ctx, succeed)
	require.NoError(t, err)
	require.Equal(t, 7, v)
	require.Equal(t, "closed", breaker.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	breaker := resilience.NewBreaker[int](resilience.BreakerConfig{Target: "cancel", ConsecutiveFailures: 1})
	_, err := breaker.Execute(context.Background(), func(context.Context) (int, error) {
		return 0, context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "closed", breaker.State())
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, resilience.Backoff(base, 1, 0))
	require.Equal(t, base*4, resilience.Backoff(base, 3, 0))
	require.Equal(t, base, resilience.Backoff(base, 0, 0))

	d := resilience.Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-(base*2/5))
	require.LessOrEqual(t, d, base*2+(base*2/5))
}
