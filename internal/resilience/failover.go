package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every member of a [Failover] failed or had an
// open breaker.
var ErrAllFailed = errors.New("resilience: all backends failed")

type member[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// Failover holds a primary and zero or more fallbacks of the same type, each
// behind its own [CircuitBreaker]. Members are tried in registration order.
type Failover[T any] struct {
	cfg     BreakerConfig
	members []member[T]
}

// NewFailover returns a group with primary as its first member. cfg is the
// template for every member's breaker; its Name is replaced by the member
// name.
func NewFailover[T any](name string, primary T, cfg BreakerConfig) *Failover[T] {
	f := &Failover[T]{cfg: cfg}
	f.Add(name, primary)
	return f
}

// Add registers a fallback tried after the members added before it. Add must
// not be called concurrently with [Failover.Do].
func (f *Failover[T]) Add(name string, value T) {
	cfg := f.cfg
	cfg.Name = name
	f.members = append(f.members, member[T]{name: name, value: value, breaker: NewCircuitBreaker(cfg)})
}

// Breaker returns the breaker of the named member, or nil.
func (f *Failover[T]) Breaker(name string) *CircuitBreaker {
	for _, m := range f.members {
		if m.name == name {
			return m.breaker
		}
	}
	return nil
}

// Do calls fn with each member until one succeeds and returns the name of the
// member that served the call. When all fail it returns [ErrAllFailed]
// joined with every member's error.
func (f *Failover[T]) Do(fn func(T) error) (string, error) {
	var errs []error
	for _, m := range f.members {
		err := m.breaker.Execute(func() error { return fn(m.value) })
		if err == nil {
			return m.name, nil
		}
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping backend, circuit open", "backend", m.name)
		} else {
			slog.Warn("backend failed, trying next", "backend", m.name, "err", err)
		}
		errs = append(errs, fmt.Errorf("%s: %w", m.name, err))
	}
	return "", errors.Join(append([]error{ErrAllFailed}, errs...)...)
}

// Value runs fn like [Failover.Do] and returns the result of the first member
// that succeeds. It is a function because methods cannot have type
// parameters.
func Value[T, R any](f *Failover[T], fn func(T) (R, error)) (R, error) {
	var out R
	_, err := f.Do(func(v T) error {
		r, err := fn(v)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	return out, err
}
