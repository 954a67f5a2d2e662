package chrono

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"covid19-tracker/internal/telemetry"

	"github.com/stretchr/testify/require"
)

func TestCronRejectsBadSpec(t *testing.T) {
	c := NewStandardCron(&telemetry.Recorder{})
	err := c.Cron("not a spec", func() {})
	require.Error(t, err)
	require.Equal(t, 0, c.Entries())
}

func TestCronSkipsOverlappingRuns(t *testing.T) {
	rec := &telemetry.Recorder{}
	c := NewStandardCron(rec)

	var running, maxRunning int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	err := c.Cron("@every 1s", func() {
		n := atomic.AddInt32(&running, 1)
		defer atomic.AddInt32(&running, -1)
		if n > atomic.LoadInt32(&maxRunning) {
			atomic.StoreInt32(&maxRunning, n)
		}
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
	})
	require.NoError(t, err)

	c.Start()
	select {
	case <-started:
	case <-time.After(10 * time.Second):
		t.Fatal("job never started")
	}

	// the next tick finds the first run still blocked and is skipped
	skipped := func() bool {
		for _, r := range rec.Reports(telemetry.LevelDebug) {
			if r.ID == "cron: skip" {
				return true
			}
		}
		return false
	}
	require.Eventually(t, skipped, 10*time.Second, 20*time.Millisecond)
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Stop(ctx))

	require.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
}

func TestFixedClock(t *testing.T) {
	at := time.Date(2020, time.March, 15, 14, 30, 0, 0, time.UTC)
	require.Equal(t, int64(1584282600000), FixedClock{T: at}.Now().UnixMilli())
}
