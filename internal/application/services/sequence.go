package services

import (
	"context"
	"fmt"

	apperrors "github.com/zatekoja/hospitalqueue/pkg/errors"
)

// existsFunc reports whether an identifier is already held
type existsFunc func(ctx context.Context, candidate string) (bool, error)

// probeUnique formats candidates from seed upwards and returns the first one
// exists reports as free. It gives up after maxAttempts candidates.
func probeUnique(ctx context.Context, seed, maxAttempts int, format func(int) string, exists existsFunc) (string, error) {
	if seed < 1 {
		seed = 1
	}
	for n := seed; n < seed+maxAttempts; n++ {
		candidate := format(n)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", apperrors.NewGenerationFailedError("could not check identifier uniqueness", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", apperrors.NewGenerationFailedError(
		fmt.Sprintf("no free identifier after %d candidates starting at %s", maxAttempts, format(seed)), nil)
}
