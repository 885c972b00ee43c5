package logging

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTemp(t *testing.T, opts Options) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, Initialize(dir, opts))
	t.Cleanup(CloseAll)
	return dir
}

func logFile(dir string, cat Category) string {
	return filepath.Join(dir, time.Now().Format("2006-01-02")+"_"+string(cat)+".log")
}

// TestAllCategoriesLog checks that every category gets its own file.
func TestAllCategoriesLog(t *testing.T) {
	dir := initTemp(t, Options{Enabled: true, Level: "debug"})

	categories := []Category{
		CategoryBoot,
		CategoryProcessor,
		CategorySorter,
		CategoryConverter,
		CategoryPipeline,
		CategoryHistory,
		CategoryWatch,
		CategoryUpdater,
		CategoryUI,
	}

	for _, cat := range categories {
		require.True(t, IsCategoryEnabled(cat), "category %s", cat)
		l := Get(cat)
		l.Info("info for %s", cat)
		l.Debug("debug for %s", cat)
		l.Warn("warn for %s", cat)
		l.Error("error for %s", cat)
	}
	CloseAll()

	for _, cat := range categories {
		data, err := os.ReadFile(logFile(dir, cat))
		require.NoError(t, err, "log file for %s", cat)
		content := string(data)
		assert.Contains(t, content, "info for "+string(cat))
		assert.Contains(t, content, "debug for "+string(cat))
		assert.Contains(t, content, "ERROR")
	}
}

func TestDisabledLoggingWritesNothing(t *testing.T) {
	dir := initTemp(t, Options{Enabled: false})

	assert.False(t, IsEnabled())
	Pipeline("should not be written")
	Audit(AuditEvent{Type: AuditRunStart})

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err), "logs dir must not be created when disabled")
}

func TestCategoryToggle(t *testing.T) {
	dir := initTemp(t, Options{
		Enabled:    true,
		Categories: map[string]bool{"watch": false},
	})

	assert.False(t, IsCategoryEnabled(CategoryWatch))
	assert.True(t, IsCategoryEnabled(CategoryUpdater))

	Watch("hidden")
	Updater("shown")
	CloseAll()

	_, err := os.Stat(logFile(dir, CategoryWatch))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(logFile(dir, CategoryUpdater))
	assert.NoError(t, err)
}

func TestLevelFiltering(t *testing.T) {
	dir := initTemp(t, Options{Enabled: true, Level: "warn"})

	Processor("info line")
	ProcessorWarn("warn line")
	CloseAll()

	data, err := os.ReadFile(logFile(dir, CategoryProcessor))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "info line")
	assert.Contains(t, string(data), "warn line")
}

func TestInvalidLevel(t *testing.T) {
	err := Initialize(t.TempDir(), Options{Enabled: true, Level: "loud"})
	assert.Error(t, err)
	CloseAll()
}

func TestJSONFormat(t *testing.T) {
	dir := initTemp(t, Options{Enabled: true, JSON: true})

	Get(CategorySorter).With("order", "25-066").Info("grouped %d rows", 12)
	CloseAll()

	f, err := os.Open(logFile(dir, CategorySorter))
	require.NoError(t, err)
	defer f.Close()

	var entry map[string]interface{}
	sc := bufio.NewScanner(f)
	require.True(t, sc.Scan())
	require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
	assert.Equal(t, "grouped 12 rows", entry["msg"])
	assert.Equal(t, "sorter", entry["cat"])
	assert.Equal(t, "25-066", entry["order"])
}

func TestAuditStep(t *testing.T) {
	dir := initTemp(t, Options{Enabled: true})

	done := AuditStep("run-1", "clean")
	done(nil)
	fail := AuditStep("run-1", "sort")
	fail(errors.New("boom"))
	Audit(AuditEvent{Type: AuditFileWrite, RunID: "run-1", Target: "a.xlsx", Success: true,
		Fields: map[string]interface{}{"rows": 3}})
	CloseAll()

	data, err := os.ReadFile(filepath.Join(dir, auditFileName))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 5)

	var last map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[3]), &last))
	assert.Equal(t, string(AuditStepError), last["event"])
	assert.Equal(t, "boom", last["error"])
	assert.Equal(t, false, last["success"])
}

func TestConcurrentGet(t *testing.T) {
	initTemp(t, Options{Enabled: true})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Get(CategoryConverter).Info("worker %d", i)
		}(i)
	}
	wg.Wait()

	assert.Same(t, Get(CategoryConverter), Get(CategoryConverter))
}

func TestNoopLoggerBeforeInit(t *testing.T) {
	CloseAll()
	optionsMu.Lock()
	options = Options{}
	logsDir = ""
	optionsMu.Unlock()

	l := Get(CategoryUI)
	assert.NotPanics(t, func() {
		l.Info("x")
		l.With("k", "v").Error("y")
	})
}
