package resilience

import (
	"context"
	"time"
)

// Policy combines retries with a per-service circuit breaker. Retries run
// inside the breaker so one exhausted call counts as a single failure.
type Policy struct {
	Retry    RetryConfig
	Breakers *ServiceBreakers
}

// NewPolicy builds a Policy from flat config values. Zero values keep the
// defaults.
func NewPolicy(maxAttempts int, initialBackoff, maxBackoff time.Duration, failureThreshold int, resetTimeout time.Duration) *Policy {
	retry := DefaultRetryConfig()
	if maxAttempts > 0 {
		retry.MaxAttempts = maxAttempts
	}
	if initialBackoff > 0 {
		retry.InitialBackoff = initialBackoff
	}
	if maxBackoff > 0 {
		retry.MaxBackoff = maxBackoff
	}

	circuit := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		circuit.FailureThreshold = failureThreshold
	}
	if resetTimeout > 0 {
		circuit.ResetTimeout = resetTimeout
	}
	return &Policy{Retry: retry, Breakers: NewServiceBreakers(circuit)}
}

// Call runs fn for service under the policy. A nil Policy calls fn once.
func (p *Policy) Call(ctx context.Context, service, operation string, fn func(ctx context.Context) error) error {
	_, err := CallVal(ctx, p, service, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// CallVal is Policy.Call for calls that return a value.
func CallVal[T any](ctx context.Context, p *Policy, service, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	if p == nil {
		return fn(ctx)
	}
	retry := p.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = RetryLogger(service, operation)
	}
	call := func(ctx context.Context) (T, error) { return DoVal(ctx, retry, fn) }
	if p.Breakers == nil {
		return call(ctx)
	}
	return ExecuteVal(ctx, p.Breakers.Get(service), call)
}
