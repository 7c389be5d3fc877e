package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTabHandler_Handle(t *testing.T) {
	ts := time.Date(2026, 3, 2, 14, 30, 45, 0, time.UTC)

	tests := []struct {
		name    string
		runID   string
		level   slog.Level
		message string
		attrs   []slog.Attr
		want    string
	}{
		{
			name:    "basic info message",
			runID:   "serve-1",
			level:   slog.LevelInfo,
			message: "audit finalized",
			want:    "2026-03-02T14:30:45Z\tINFO\tserve-1\taudit finalized\n",
		},
		{
			name:    "warn level",
			runID:   "seed-2",
			level:   slog.LevelWarn,
			message: "template skipped",
			want:    "2026-03-02T14:30:45Z\tWARN\tseed-2\ttemplate skipped\n",
		},
		{
			name:    "with record attrs",
			runID:   "serve-3",
			level:   slog.LevelInfo,
			message: "item reviewed",
			attrs:   []slog.Attr{slog.String("item_id", "id-7"), slog.Int("files", 2)},
			want:    "2026-03-02T14:30:45Z\tINFO\tserve-3\titem reviewed\titem_id=id-7\tfiles=2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h := newTabHandler(&buf, tt.runID, slog.LevelDebug)

			r := slog.NewRecord(ts, tt.level, tt.message, 0)
			r.AddAttrs(tt.attrs...)

			if err := h.Handle(context.Background(), r); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Handle() output =\n%q\nwant:\n%q", got, tt.want)
			}
		})
	}
}

func TestTabHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newTabHandler(&buf, "run-1", nil)
	h.attrs = []slog.Attr{slog.String("a", "1")}

	h2 := h.WithAttrs([]slog.Attr{slog.String("component", "http")}).(*tabHandler)
	if len(h.attrs) != 1 {
		t.Errorf("original handler attrs modified: got %d, want 1", len(h.attrs))
	}
	if h2.mu != h.mu {
		t.Error("derived handler does not share the write lock")
	}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "request", 0)
	r.AddAttrs(slog.Int("status", 200))
	if err := h2.Handle(context.Background(), r); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	got := buf.String()
	for _, want := range []string{"a=1", "component=http", "status=200"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %s", got, want)
		}
	}
}

func TestTabHandler_Enabled(t *testing.T) {
	h := newTabHandler(nil, "", nil)
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Enabled(DEBUG) = true with the default INFO level")
	}
	for _, level := range []slog.Level{slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if !h.Enabled(context.Background(), level) {
			t.Errorf("Enabled(%v) = false, want true", level)
		}
	}
}

func TestTabHandler_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newTabHandler(&buf, "run", nil))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.With("worker", i).Info("tick", "n", i)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 20 {
		t.Fatalf("got %d lines, want 20", len(lines))
	}
	for _, l := range lines {
		if strings.Count(l, "\t") != 5 {
			t.Errorf("malformed line %q", l)
		}
	}
}

func TestNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "log")

	logger, f, err := newLogger(dir, "test-run", slog.LevelInfo)
	if err != nil {
		t.Fatalf("newLogger() error = %v", err)
	}
	logger.Info("hello", "k", "v")
	f.Close()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "\ttest-run\thello\tk=v") {
		t.Errorf("log file = %q", data)
	}
}
