package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/straycare/internal/domain"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	breaker := NewCircuitBreaker(2, time.Minute, nil)
	failing := errors.New("network down")

	for i := 0; i < 2; i++ {
		err := breaker.Execute("op", func() error { return failing }, nil)
		require.ErrorIs(t, err, failing)
	}
	assert.Equal(t, CircuitOpen, breaker.State())

	called := false
	err := breaker.Execute("op", func() error { called = true; return nil }, nil)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.False(t, called, "open breaker must not call through")
}

func TestCircuitBreaker_HalfOpenProbe(t *testing.T) {
	breaker := NewCircuitBreaker(1, time.Second, nil)
	now := time.Now()
	breaker.now = func() time.Time { return now }

	var states []CircuitState
	breaker.OnStateChange(func(s CircuitState) { states = append(states, s) })

	_ = breaker.Execute("op", func() error { return errors.New("boom") }, nil)
	require.Equal(t, CircuitOpen, breaker.State())

	now = now.Add(2 * time.Second)
	require.NoError(t, breaker.Execute("op", func() error { return nil }, nil))
	assert.Equal(t, CircuitClosed, breaker.State())
	assert.Equal(t, []CircuitState{CircuitOpen, CircuitHalfOpen, CircuitClosed}, states)
}

func TestCircuitBreaker_IgnoresNonCountableErrors(t *testing.T) {
	breaker := NewCircuitBreaker(1, time.Minute, nil)
	declined := &domain.PaymentProviderError{Op: "capture order", StatusCode: 422, Name: "INSTRUMENT_DECLINED"}

	err := breaker.Execute("op", func() error { return declined }, IsTransient)
	require.Error(t, err)
	assert.Equal(t, CircuitClosed, breaker.State(), "business rejection must not trip the breaker")
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	breaker := NewCircuitBreaker(1000, time.Minute, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = breaker.Execute("op", func() error {
				if i%2 == 0 {
					return errors.New("odd failure")
				}
				return nil
			}, nil)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, CircuitClosed, breaker.State())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(errors.New("dial tcp: refused")))
	assert.True(t, IsTransient(&domain.PaymentProviderError{Timeout: true}))
	assert.True(t, IsTransient(&domain.PaymentProviderError{StatusCode: 503}))
	assert.False(t, IsTransient(&domain.PaymentProviderError{StatusCode: 404, Name: "RESOURCE_NOT_FOUND"}))
}

func TestGuardedProvider_FailsFastWhenOpen(t *testing.T) {
	mock := NewMockProvider()
	mock.CreateErr = &domain.PaymentProviderError{Op: "create order", StatusCode: 500}
	provider := NewGuardedProvider(mock, NewCircuitBreaker(1, time.Minute, nil), nil)
	ctx := context.Background()

	_, err := provider.CreateOrder(ctx, decimal.NewFromInt(5), "USD", "")
	require.Error(t, err)

	_, err = provider.CaptureOrder(ctx, "ORDER-1")
	var perr *domain.PaymentProviderError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Equal(t, 0, mock.CaptureCalls())
}

func TestGuardedProvider_PassesThrough(t *testing.T) {
	mock := NewMockProvider()
	provider := NewGuardedProvider(mock, nil, nil)

	order, err := provider.CreateOrder(context.Background(), decimal.NewFromInt(5), "USD", "")
	require.NoError(t, err)
	capture, err := provider.CaptureOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, capture.Completed())
}
