package schedule_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/regrun/regrun/schedule"
	"github.com/stretchr/testify/require"
)

func TestRunPreservesDiscoveryOrder(t *testing.T) {
	items := []int{5, 1, 4, 1, 3}

	results := schedule.Run(context.Background(), items, 10,
		func(i int) int64 { return 1 },
		func(ctx context.Context, item int) (int, error) {
			time.Sleep(time.Duration(item) * time.Millisecond)

			return item * 10, nil
		},
	)

	require.Len(t, results, len(items))

	for i, r := range results {
		require.Equal(t, i, r.Index)
		require.Equal(t, items[i]*10, r.Value)
	}
}

// With permits=2 and weights 1,1,2, no more than 2 permits are held
// concurrently.
func TestRunRespectsPermitBound(t *testing.T) {
	var (
		mu      sync.Mutex
		held    int64
		maxHeld int64
	)

	track := func(delta int64) {
		mu.Lock()
		held += delta
		if held > maxHeld {
			maxHeld = held
		}
		mu.Unlock()
	}

	weights := []int64{1, 1, 2}

	results := schedule.Run(context.Background(), weights, 2,
		func(w int64) int64 { return w },
		func(ctx context.Context, w int64) (struct{}, error) {
			track(w)
			time.Sleep(20 * time.Millisecond)
			track(-w)

			return struct{}{}, nil
		},
	)

	require.Len(t, results, 3)
	require.LessOrEqual(t, maxHeld, int64(2))
}

func TestRunOversizedWeightRunsAloneWithoutDeadlock(t *testing.T) {
	items := []int64{5}

	results := schedule.Run(context.Background(), items, 2,
		func(w int64) int64 { return w },
		func(ctx context.Context, w int64) (int64, error) { return w, nil },
	)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Equal(t, int64(5), results[0].Value)
}

func TestRunCarriesPerItemErrors(t *testing.T) {
	items := []int{1, 2, 3}

	var calls int32

	results := schedule.Run(context.Background(), items, 1,
		func(i int) int64 { return 1 },
		func(ctx context.Context, item int) (int, error) {
			atomic.AddInt32(&calls, 1)
			if item == 2 {
				return 0, assertErr
			}

			return item, nil
		},
	)

	require.EqualValues(t, 3, calls, "one task's error must not abort the others")
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
}

var assertErr = errString("boom")

type errString string

func (e errString) Error() string { return string(e) }
