package secrets

import (
	"context"
	"errors"
	"fmt"
)

// Chain asks each source in order; the first success wins.
type Chain struct {
	sources []Source
}

var _ Source = (*Chain)(nil)

var errEmptyChain = errors.New("no secret sources configured")

func NewChain(sources ...Source) *Chain {
	var nonNil []Source
	for _, s := range sources {
		if s != nil {
			nonNil = append(nonNil, s)
		}
	}
	return &Chain{sources: nonNil}
}

func (c *Chain) Get(ctx context.Context, key string) (string, error) {
	if len(c.sources) == 0 {
		return "", errEmptyChain
	}

	var errs []error
	for i, s := range c.sources {
		value, err := s.Get(ctx, key)
		if err == nil && value != "" {
			return value, nil
		}
		if err == nil {
			err = errNotSet
		}
		if shouldSkipFallback(err) {
			return "", err
		}
		errs = append(errs, fmt.Errorf("source %d: %w", i, err))
	}

	return "", errors.Join(errs...)
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
