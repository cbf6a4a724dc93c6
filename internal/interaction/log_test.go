package interaction

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(filepath.Join(t.TempDir(), "logs", "log.jsonl"), zap.NewNop())
}

func sampleEntry(i int, success bool, duration int64) Entry {
	e := Entry{
		Timestamp:  time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC),
		Prompt:     fmt.Sprintf("prompt %d", i),
		Response:   fmt.Sprintf("response %d", i),
		Model:      "llama2",
		DurationMS: duration,
		Success:    success,
	}
	if !success {
		e.ErrorReason = "Ollama service unavailable"
	}
	return e
}

func TestAppend_CreatesDirectoryAndRoundTrips(t *testing.T) {
	records := newTestLog(t)

	want := sampleEntry(1, true, 120)
	records.Append(want)

	got := records.Recent(1)
	require.Len(t, got, 1)
	assert.Equal(t, want.Prompt, got[0].Prompt)
	assert.Equal(t, want.Response, got[0].Response)
	assert.Equal(t, want.Model, got[0].Model)
	assert.Equal(t, want.DurationMS, got[0].DurationMS)
	assert.Equal(t, want.Success, got[0].Success)
	assert.True(t, want.Timestamp.Equal(got[0].Timestamp))
}

func TestAppend_FailureEntryKeepsReason(t *testing.T) {
	records := newTestLog(t)
	records.Append(sampleEntry(1, false, 0))

	got := records.Recent(1)
	require.Len(t, got, 1)
	assert.False(t, got[0].Success)
	assert.Equal(t, "Ollama service unavailable", got[0].ErrorReason)
}

func TestRecent_MissingFile(t *testing.T) {
	records := newTestLog(t)
	assert.Empty(t, records.Recent(10))
}

func TestRecent_LimitAndOrder(t *testing.T) {
	records := newTestLog(t)
	for i := 0; i < 5; i++ {
		records.Append(sampleEntry(i, true, int64(i*10)))
	}

	got := records.Recent(3)
	require.Len(t, got, 3)

	// last three, oldest first
	assert.Equal(t, "prompt 2", got[0].Prompt)
	assert.Equal(t, "prompt 3", got[1].Prompt)
	assert.Equal(t, "prompt 4", got[2].Prompt)
}

func TestRecent_LimitLargerThanCount(t *testing.T) {
	records := newTestLog(t)
	records.Append(sampleEntry(0, true, 10))
	records.Append(sampleEntry(1, true, 20))

	assert.Len(t, records.Recent(50), 2)
}

func TestRecent_SkipsUnparseableLines(t *testing.T) {
	records := newTestLog(t)
	records.Append(sampleEntry(0, true, 10))

	f, err := os.OpenFile(records.path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("{\"timestamp\": \"partial wri")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records.Append(sampleEntry(1, true, 20))

	got := records.Recent(10)
	require.Len(t, got, 2)
	assert.Equal(t, "prompt 0", got[0].Prompt)
	assert.Equal(t, "prompt 1", got[1].Prompt)
}

func TestStats_EmptyLog(t *testing.T) {
	records := newTestLog(t)
	assert.Equal(t, Stats{}, records.Stats())
}

func TestStats_Aggregation(t *testing.T) {
	records := newTestLog(t)
	records.Append(sampleEntry(0, true, 100))
	records.Append(sampleEntry(1, true, 200))
	records.Append(sampleEntry(2, false, 0))

	got := records.Stats()
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 2, got.Successful)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 100.0, got.AverageDurationMS)
}

func TestStats_RoundsToTwoDecimals(t *testing.T) {
	records := newTestLog(t)
	records.Append(sampleEntry(0, true, 100))
	records.Append(sampleEntry(1, true, 101))
	records.Append(sampleEntry(2, true, 101))

	assert.Equal(t, 100.67, records.Stats().AverageDurationMS)
}

func TestAppend_ConcurrentWritesStayLineAtomic(t *testing.T) {
	records := newTestLog(t)

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				records.Append(sampleEntry(w*perWriter+i, true, 5))
			}
		}(w)
	}
	wg.Wait()

	f, err := os.Open(records.path)
	require.NoError(t, err)
	defer f.Close()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e), "every line must parse independently")
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, writers*perWriter, lines)
}
