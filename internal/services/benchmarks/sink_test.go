package benchmarks

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/open_voice_gateway/internal/timeutil"
)

func ms(v int64) *int64 { return &v }

func TestRecordAppendsOneLinePerRun(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir)
	ts := time.Date(2025, 5, 4, 23, 59, 0, 0, time.FixedZone("PDT", -7*3600))

	require.NoError(t, sink.Record(Entry{Timestamp: ts, STTProvider: "whisper-small", TranslateProvider: "ollama/ministral:3b", TTSProvider: "piper", STTMs: 100, TranslateMs: 200, TTSMs: ms(50), TotalMs: 360}))
	require.NoError(t, sink.Record(Entry{Timestamp: ts, STTProvider: "whisper-small", TranslateProvider: "deepl", TTSProvider: "piper", TotalMs: 10}))

	// Timestamps are bucketed by UTC day.
	raw, err := os.ReadFile(filepath.Join(dir, "2025-05-05.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)

	var e map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &e))
	require.Nil(t, e["tts_ms"])
	require.Equal(t, "deepl", e["translate_provider"])
	require.True(t, strings.HasSuffix(e["timestamp"].(string), "Z"))
}

func TestRecordIsSafeForConcurrentUse(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	sink.now = func() time.Time { return now }

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			require.NoError(t, sink.Record(Entry{STTProvider: "whisper-small", TranslateProvider: "openai", TTSProvider: "chatterbox", TextLength: i, TotalMs: int64(i)}))
		}(i)
	}
	wg.Wait()

	summary, err := sink.Summary(timeutil.Day(now))
	require.NoError(t, err)
	require.Equal(t, 50, summary.Runs)
	require.Zero(t, summary.Skipped)
}

func TestSummaryAveragesPerProviderCombination(t *testing.T) {
	dir := t.TempDir()
	sink := NewSink(dir)
	day := time.Date(2025, 2, 1, 8, 0, 0, 0, time.UTC)
	for _, e := range []Entry{
		{TranslateProvider: "ollama/ministral:3b", TTSProvider: "piper", STTMs: 100, TranslateMs: 300, TTSMs: ms(100), TotalMs: 500},
		{TranslateProvider: "ollama/ministral:3b", TTSProvider: "piper", STTMs: 300, TranslateMs: 500, TotalMs: 800},
		{TranslateProvider: "deepl", TTSProvider: "piper", STTMs: 10, TranslateMs: 20, TTSMs: ms(30), TotalMs: 60},
	} {
		e.Timestamp = day
		e.STTProvider = "whisper-small"
		require.NoError(t, sink.Record(e))
	}
	f, err := os.OpenFile(filepath.Join(dir, "2025-02-01.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, _ = f.WriteString("{not json\n")
	f.Close()

	summary, err := sink.Summary("2025-02-01")
	require.NoError(t, err)
	require.Equal(t, 3, summary.Runs)
	require.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.Providers, 2)

	top := summary.Providers[0]
	require.Equal(t, "ollama/ministral:3b", top.TranslateProvider)
	require.Equal(t, 2, top.Runs)
	require.Equal(t, 200.0, top.AvgSTTMs)
	require.Equal(t, 400.0, top.AvgTranslateMs)
	require.Equal(t, 100.0, *top.AvgTTSMs)
	require.Equal(t, 650.0, top.AvgTotalMs)
}

func TestSummaryErrors(t *testing.T) {
	sink := NewSink(t.TempDir())
	_, err := sink.Summary("2025-02-30")
	require.ErrorIs(t, err, timeutil.ErrInvalidDay)
	_, err = sink.Summary("2025-02-01")
	require.ErrorIs(t, err, ErrNotFound)
}
