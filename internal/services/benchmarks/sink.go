package benchmarks

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ncecere/open_voice_gateway/internal/timeutil"
)

var ErrNotFound = errors.New("no benchmarks recorded for day")

// Entry is one pipeline run as written to the day's JSON-lines file.
type Entry struct {
	Timestamp         time.Time `json:"timestamp"`
	STTProvider       string    `json:"stt_provider"`
	TranslateProvider string    `json:"translate_provider"`
	TTSProvider       string    `json:"tts_provider"`
	SourceLang        string    `json:"source_lang"`
	TargetLang        string    `json:"target_lang"`
	TextLength        int       `json:"text_length"`
	STTMs             int64     `json:"stt_ms"`
	TranslateMs       int64     `json:"translate_ms"`
	TTSMs             *int64    `json:"tts_ms"`
	TotalMs           int64     `json:"total_ms"`
}

// Sink appends entries to <dir>/<YYYY-MM-DD>.jsonl. Appends are serialized
// so concurrent runs never interleave lines.
type Sink struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewSink(dir string) *Sink {
	if dir == "" {
		dir = "benchmarks"
	}
	return &Sink{dir: dir, now: time.Now}
}

func (s *Sink) path(day string) string {
	return filepath.Join(s.dir, day+".jsonl")
}

// Record appends e. A zero timestamp is stamped with the current time.
func (s *Sink) Record(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.now()
	}
	e.Timestamp = e.Timestamp.UTC()
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode benchmark: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("benchmark dir: %w", err)
	}
	f, err := os.OpenFile(s.path(timeutil.Day(e.Timestamp)), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open benchmark file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append benchmark: %w", err)
	}
	return nil
}

// ProviderSummary averages runs sharing the same provider combination.
type ProviderSummary struct {
	STTProvider       string   `json:"stt_provider"`
	TranslateProvider string   `json:"translate_provider"`
	TTSProvider       string   `json:"tts_provider"`
	Runs              int      `json:"runs"`
	AvgSTTMs          float64  `json:"avg_stt_ms"`
	AvgTranslateMs    float64  `json:"avg_translate_ms"`
	AvgTTSMs          *float64 `json:"avg_tts_ms"`
	AvgTotalMs        float64  `json:"avg_total_ms"`
}

type Summary struct {
	Day       string            `json:"day"`
	Runs      int               `json:"runs"`
	Skipped   int               `json:"skipped_lines"`
	Providers []ProviderSummary `json:"providers"`
}

type accumulator struct {
	ProviderSummary
	stt, translate, tts, total float64
	ttsRuns                    int
}

// Summary reads one day's file and averages stage latencies per provider
// combination. Malformed lines are counted and skipped.
func (s *Sink) Summary(day string) (Summary, error) {
	if _, err := timeutil.ParseDay(day); err != nil {
		return Summary{}, err
	}
	f, err := os.Open(s.path(day))
	if errors.Is(err, os.ErrNotExist) {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, fmt.Errorf("open benchmark file: %w", err)
	}
	defer f.Close()

	out := Summary{Day: day}
	groups := map[[3]string]*accumulator{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			out.Skipped++
			continue
		}
		key := [3]string{e.STTProvider, e.TranslateProvider, e.TTSProvider}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{ProviderSummary: ProviderSummary{STTProvider: key[0], TranslateProvider: key[1], TTSProvider: key[2]}}
			groups[key] = acc
		}
		acc.Runs++
		acc.stt += float64(e.STTMs)
		acc.translate += float64(e.TranslateMs)
		acc.total += float64(e.TotalMs)
		if e.TTSMs != nil {
			acc.tts += float64(*e.TTSMs)
			acc.ttsRuns++
		}
		out.Runs++
	}
	if err := scanner.Err(); err != nil {
		return Summary{}, fmt.Errorf("read benchmark file: %w", err)
	}

	for _, acc := range groups {
		ps := acc.ProviderSummary
		n := float64(acc.Runs)
		ps.AvgSTTMs = acc.stt / n
		ps.AvgTranslateMs = acc.translate / n
		ps.AvgTotalMs = acc.total / n
		if acc.ttsRuns > 0 {
			avg := acc.tts / float64(acc.ttsRuns)
			ps.AvgTTSMs = &avg
		}
		out.Providers = append(out.Providers, ps)
	}
	sort.Slice(out.Providers, func(i, j int) bool {
		if out.Providers[i].Runs != out.Providers[j].Runs {
			return out.Providers[i].Runs > out.Providers[j].Runs
		}
		return out.Providers[i].TranslateProvider < out.Providers[j].TranslateProvider
	})
	return out, nil
}
