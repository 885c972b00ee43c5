package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"xlsconv/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeRunner struct {
	mu   sync.Mutex
	reqs []pipeline.Request
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return &pipeline.Result{Input: req.Input, ResultDir: "results"}, nil
}

func (f *fakeRunner) requests() []pipeline.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]pipeline.Request, len(f.reqs))
	copy(out, f.reqs)
	return out
}

func TestCandidate(t *testing.T) {
	assert.True(t, Candidate("/in/66 bom.xls"))
	assert.True(t, Candidate("67.xlsx"))
	assert.False(t, Candidate("~$67.xlsx"))
	assert.False(t, Candidate(".67.xlsx"))
	assert.False(t, Candidate("66 bom_processed.xlsx"))
	assert.False(t, Candidate("25-066_by_thickness.xlsx"))
	assert.False(t, Candidate("notes.txt"))
}

func TestWatcherRunsPipeline(t *testing.T) {
	inbox := filepath.Join(t.TempDir(), "inbox")
	runner := &fakeRunner{}
	results := make(chan string, 4)

	w, err := New(inbox, runner,
		WithDebounce(50*time.Millisecond),
		WithResultHandler(func(path string, _ *pipeline.Result, err error) {
			if err == nil {
				results <- path
			}
		}),
	)
	require.NoError(t, err)
	require.DirExists(t, inbox)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	input := filepath.Join(inbox, "0113 bom.xlsx")
	require.NoError(t, os.WriteFile(input, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(input, []byte("ab"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("x"), 0644))

	select {
	case got := <-results:
		assert.Equal(t, input, got)
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline was not triggered")
	}

	// Debounced into a single run.
	time.Sleep(200 * time.Millisecond)
	reqs := runner.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "113", reqs[0].OrderNumber)
	assert.Equal(t, 1, w.Stats().Runs)
}

func TestWatcherSkipsFilesWithoutOrderNumber(t *testing.T) {
	inbox := t.TempDir()
	runner := &fakeRunner{}

	w, err := New(inbox, runner, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(inbox, "bom.xlsx"), []byte("a"), 0644))

	require.Eventually(t, func() bool { return w.Stats().Skipped == 1 }, 5*time.Second, 20*time.Millisecond)
	assert.Empty(t, runner.requests())
}

func TestWatcherStopsOnCancel(t *testing.T) {
	w, err := New(t.TempDir(), &fakeRunner{}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()

	select {
	case <-w.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
	w.Stop()
}

func TestWatcherStartTwiceAndStopWithoutStart(t *testing.T) {
	w, err := New(t.TempDir(), &fakeRunner{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	require.NoError(t, w.Start(ctx))
	w.Stop()

	idle, err := New(t.TempDir(), &fakeRunner{})
	require.NoError(t, err)
	idle.Stop()
}
