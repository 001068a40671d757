package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/refnet/internal/common"
	"github.com/ternarybob/refnet/internal/models"
	"github.com/ternarybob/refnet/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Manager {
	t.Helper()

	mgr, err := sqlite.NewManager(common.GetLogger(), &common.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "refnet.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func newTestNotifier(t *testing.T, mgr *sqlite.Manager) *Notifier {
	t.Helper()

	notifier, err := NewNotifier(mgr.DB().DB(), 10*time.Second, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { notifier.Close() })
	return notifier
}

func TestNotifierWakesWaiter(t *testing.T) {
	mgr := newTestStore(t)
	notifier := newTestNotifier(t, mgr)
	ctx := context.Background()

	notifier.Notify(ctx, models.StageCrawl)

	woken, err := notifier.Wait(ctx, models.StageCrawl, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, woken)
}

func TestNotifierWaitTimesOutQuiet(t *testing.T) {
	mgr := newTestStore(t)
	notifier := newTestNotifier(t, mgr)

	start := time.Now()
	woken, err := notifier.Wait(context.Background(), models.StageCrawl, 300*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, woken)
	assert.GreaterOrEqual(t, time.Since(start), 250*time.Millisecond)
}

func TestNotifierStagesAreIndependent(t *testing.T) {
	mgr := newTestStore(t)
	notifier := newTestNotifier(t, mgr)
	ctx := context.Background()

	notifier.Notify(ctx, models.StageSummarize)

	woken, err := notifier.Wait(ctx, models.StageCrawl, 300*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, woken)

	woken, err = notifier.Wait(ctx, models.StageSummarize, time.Second)
	require.NoError(t, err)
	assert.True(t, woken)
}

func TestNotifierHintsAreSingleUse(t *testing.T) {
	mgr := newTestStore(t)
	notifier := newTestNotifier(t, mgr)
	ctx := context.Background()

	notifier.Notify(ctx, models.StageCrawl)

	woken, err := notifier.Wait(ctx, models.StageCrawl, time.Second)
	require.NoError(t, err)
	require.True(t, woken)

	woken, err = notifier.Wait(ctx, models.StageCrawl, 300*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, woken)
}

func TestNotifierOnDedicatedBrokerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker", "queue.db")
	db, err := sqlite.OpenBrokerDB(common.GetLogger(), path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notifier, err := NewNotifier(db, 10*time.Second, common.GetLogger())
	require.NoError(t, err)
	t.Cleanup(func() { notifier.Close() })

	ctx := context.Background()
	notifier.Notify(ctx, models.StageGenerate)

	woken, err := notifier.Wait(ctx, models.StageGenerate, 5*time.Second)
	require.NoError(t, err)
	assert.True(t, woken)

	_, err = os.Stat(path)
	assert.NoError(t, err, "broker tables must live in their own file")
}

func TestNopNotifier(t *testing.T) {
	var notifier NopNotifier
	ctx := context.Background()

	notifier.Notify(ctx, models.StageCrawl)

	woken, err := notifier.Wait(ctx, models.StageCrawl, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, woken)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = notifier.Wait(cancelled, models.StageCrawl, time.Minute)
	assert.Error(t, err)
}
