package util_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xolisbeamed/deathstar-pi-hole-setup/internal/errors"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/pkg/log"
	"github.com/xolisbeamed/deathstar-pi-hole-setup/util"
)

func TestDoWithRetry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	logger := log.New(io.Discard)

	t.Run("succeeds first try", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := util.DoWithRetry(ctx, "always works", 3, time.Millisecond, logger, func(ctx context.Context) error {
			calls++
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("succeeds after failures", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := util.DoWithRetry(ctx, "flaky", 3, time.Millisecond, logger, func(ctx context.Context) error {
			calls++
			if calls < 3 {
				return errors.Errorf("not yet")
			}

			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausts retries", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := util.DoWithRetry(ctx, "hopeless", 2, time.Millisecond, logger, func(ctx context.Context) error {
			calls++
			return errors.Errorf("still broken")
		})

		require.Error(t, err)
		assert.Equal(t, 3, calls)

		var retriesErr util.MaxRetriesExceeded
		require.ErrorAs(t, err, &retriesErr)
		assert.Equal(t, 2, retriesErr.MaxRetries)
		assert.Contains(t, retriesErr.Error(), "hopeless")
	})

	t.Run("fatal error short-circuits", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := util.DoWithRetry(ctx, "doomed", 5, time.Millisecond, logger, func(ctx context.Context) error {
			calls++
			return util.FatalError{Underlying: errors.Errorf("do not retry this")}
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)

		var fatalErr util.FatalError
		assert.ErrorAs(t, err, &fatalErr)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		t.Parallel()

		cancelCtx, cancel := context.WithCancel(context.Background())

		calls := 0
		err := util.DoWithRetry(cancelCtx, "interrupted", 10, time.Millisecond, logger, func(ctx context.Context) error {
			calls++
			cancel()
			return errors.Errorf("transient")
		})

		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
