package plugin

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/leapstack-labs/typedgql/internal/testutil"
	"github.com/leapstack-labs/typedgql/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu      sync.Mutex
	written []string
	removed []string
	fail    map[string]error
}

func (f *fakeWriter) WriteQueryDeclaration(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[path]; err != nil {
		return err
	}
	f.written = append(f.written, path)
	return nil
}

func (f *fakeWriter) RemoveQueryDeclaration(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail[path]; err != nil {
		return err
	}
	f.removed = append(f.removed, path)
	return nil
}

func TestDispatcher_Handlers(t *testing.T) {
	fw := &fakeWriter{}
	d := NewDispatcher(fw, testutil.NewTestLogger(t), 1)
	ctx := context.Background()

	require.NotNil(t, d.Handler(watch.Add))
	require.NotNil(t, d.Handler(watch.Change))
	require.NotNil(t, d.Handler(watch.Unlink))
	assert.Nil(t, d.Handler(watch.Error))

	require.NoError(t, d.Handler(watch.Add)(ctx, "src/a.gql"))
	require.NoError(t, d.Handler(watch.Change)(ctx, "src/a.gql"))
	require.NoError(t, d.Handler(watch.Unlink)(ctx, "src/a.gql"))

	assert.Equal(t, []string{"src/a.gql", "src/a.gql"}, fw.written)
	assert.Equal(t, []string{"src/a.gql"}, fw.removed)

	stats := d.Stats()
	assert.Equal(t, 2, stats.Generated)
	assert.Equal(t, 1, stats.Removed)
	assert.Zero(t, stats.Failed)
}

func TestDispatcher_FailureIsLoggedAndCounted(t *testing.T) {
	fw := &fakeWriter{fail: map[string]error{"src/bad.gql": errors.New("unknown field")}}
	logger, buf := testutil.NewCaptureLogger()
	d := NewDispatcher(fw, logger, 1)
	ctx := context.Background()

	d.Dispatch(ctx, watch.Event{Op: watch.Add, Path: "src/bad.gql"})
	d.Dispatch(ctx, watch.Event{Op: watch.Add, Path: "src/good.gql"})

	assert.Equal(t, []string{"src/good.gql"}, fw.written)

	stats := d.Stats()
	assert.Equal(t, 1, stats.Generated)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Failures, 1)
	assert.Equal(t, Failure{Path: "src/bad.gql", Op: "add", Reason: "unknown field"}, stats.Failures[0])

	out := buf.String()
	assert.Contains(t, out, "failed to generate declaration")
	assert.Contains(t, out, "path=src/bad.gql")
	assert.Contains(t, out, "level=WARN")
}

func TestDispatcher_ErrorEvent(t *testing.T) {
	fw := &fakeWriter{}
	logger, buf := testutil.NewCaptureLogger()
	d := NewDispatcher(fw, logger, 1)

	d.Dispatch(context.Background(), watch.Event{Op: watch.Error, Err: errors.New("too many open files")})

	assert.Contains(t, buf.String(), "watcher error")
	assert.Empty(t, fw.written)
	assert.Zero(t, d.Stats().Failed)
}

func TestDispatcher_Run(t *testing.T) {
	fw := &fakeWriter{fail: map[string]error{"src/c.gql": errors.New("boom")}}
	d := NewDispatcher(fw, testutil.NewTestLogger(t), 2)

	events := make(chan watch.Event, 4)
	events <- watch.Event{Op: watch.Add, Path: "src/a.gql"}
	events <- watch.Event{Op: watch.Add, Path: "src/b.gql"}
	events <- watch.Event{Op: watch.Change, Path: "src/c.gql"}
	events <- watch.Event{Op: watch.Unlink, Path: "src/a.gql"}
	close(events)

	d.Run(context.Background(), events)
	d.Wait()

	stats := d.Stats()
	assert.Equal(t, 2, stats.Generated)
	assert.Equal(t, 1, stats.Removed)
	assert.Equal(t, 1, stats.Failed)
	assert.ElementsMatch(t, []string{"src/a.gql", "src/b.gql"}, fw.written)
}

func TestDispatcher_RunStopsOnCancel(t *testing.T) {
	d := NewDispatcher(&fakeWriter{}, nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		d.Run(ctx, make(chan watch.Event))
		close(done)
	}()
	<-done
	d.Wait()
}

