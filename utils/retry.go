package utils

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Retry runs op up to attempts times, sequentially, waiting delay between
// attempts. notify is called after every failed attempt, including the
// last one. The error of the final attempt is returned once the budget is
// spent. An error wrapped with Permanent stops the loop immediately.
func Retry(
	ctx context.Context,
	attempts int,
	delay time.Duration,
	op func(ctx context.Context, attempt int) error,
	notify func(attempt int, err error),
) error {
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)

	attempt := 0
	return backoff.Retry(func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}

		attempt++
		err := op(ctx, attempt)
		if err != nil && notify != nil {
			notify(attempt, unwrapPermanent(err))
		}
		return err
	}, policy)
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func unwrapPermanent(err error) error {
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return permanent.Err
	}
	return err
}
