package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefaultLogDir(t *testing.T) {
	dir := DefaultLogDir()
	if dir == "" {
		t.Fatal("DefaultLogDir returned empty string")
	}
	if !strings.Contains(dir, ".syncignore") || filepath.Base(dir) != "logs" {
		t.Errorf("DefaultLogDir should end with .syncignore/logs, got: %s", dir)
	}
}

func TestDefaultLogPath(t *testing.T) {
	if got := filepath.Base(DefaultLogPath()); got != "watch.log" {
		t.Errorf("DefaultLogPath should end with watch.log, got: %s", got)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.FilePath != "" {
		t.Errorf("expected no log file by default, got: %s", cfg.FilePath)
	}
	if cfg.MaxSizeMB != 10 || cfg.MaxFiles != 5 {
		t.Errorf("unexpected rotation defaults: %d MB, %d files", cfg.MaxSizeMB, cfg.MaxFiles)
	}
	if DebugConfig().Level != "debug" {
		t.Error("DebugConfig should use debug level")
	}
}

func TestSetup_StderrText(t *testing.T) {
	var buf bytes.Buffer

	logger, cleanup, err := Setup(DefaultConfig(), &buf)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	logger.Debug("hidden")
	logger.Info("ignore file registered", "path", ".gitignore")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}
	if !strings.Contains(out, `msg="ignore file registered"`) || !strings.Contains(out, "path=.gitignore") {
		t.Errorf("expected text record, got: %s", out)
	}
}

func TestSetup_FileJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "watch.log")
	var stderr bytes.Buffer

	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: logPath}, &stderr)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Debug("decision", "path", "a.log", "ignored", true)
	cleanup()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("log file should hold JSON records: %v", err)
	}
	if record["msg"] != "decision" || record["ignored"] != true {
		t.Errorf("unexpected record: %v", record)
	}
	if stderr.Len() != 0 {
		t.Errorf("stderr should stay quiet without WriteToStderr, got: %s", stderr.String())
	}
}

func TestSetup_FileMirroredToStderr(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "watch.log")
	var stderr bytes.Buffer

	logger, cleanup, err := Setup(Config{FilePath: logPath, WriteToStderr: true}, &stderr)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	logger.Warn("watch error")

	if !strings.Contains(stderr.String(), "watch error") {
		t.Error("record should also reach stderr")
	}
}

func TestSetup_Rejects(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown level", Config{Level: "verbose"}},
		{"unknown format", Config{Format: "xml"}},
		{"unknown format with file", Config{Format: "xml", FilePath: filepath.Join(t.TempDir(), "x.log")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := Setup(tc.cfg, &bytes.Buffer{}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"debug", "DEBUG", false},
		{"DEBUG", "DEBUG", false},
		{"info", "INFO", false},
		{"", "INFO", false},
		{"warn", "WARN", false},
		{"warning", "WARN", false},
		{"error", "ERROR", false},
		{"unknown", "INFO", true},
	}

	for _, tc := range tests {
		level, err := ParseLevel(tc.input)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
		}
		if level.String() != tc.expected {
			t.Errorf("ParseLevel(%q) = %s, want %s", tc.input, level, tc.expected)
		}
		if LevelFromString(tc.input).String() != tc.expected {
			t.Errorf("LevelFromString(%q) = %s, want %s", tc.input, LevelFromString(tc.input), tc.expected)
		}
	}
}

func TestFindLogFile(t *testing.T) {
	if _, err := FindLogFile("/nonexistent/path/to/log.log"); err == nil {
		t.Error("expected error for nonexistent file")
	}

	logPath := filepath.Join(t.TempDir(), "watch.log")
	if err := os.WriteFile(logPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	found, err := FindLogFile(logPath)
	if err != nil || found != logPath {
		t.Errorf("FindLogFile(%q) = %q, %v", logPath, found, err)
	}
}

// ============================================================================
// Viewer Tests
// ============================================================================

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watch.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseLine(t *testing.T) {
	entry := ParseLine(`{"time":"2026-01-02T03:04:05.5Z","level":"WARN","msg":"flag failed","path":"/w/a.log","error_code":"ERR_203_ATTRIBUTE_APPLY"}`)

	if !entry.IsValid {
		t.Fatal("expected valid entry")
	}
	if entry.Level != "WARN" || entry.Msg != "flag failed" {
		t.Errorf("unexpected entry: %+v", entry)
	}
	if !entry.Time.Equal(time.Date(2026, 1, 2, 3, 4, 5, 500_000_000, time.UTC)) {
		t.Errorf("unexpected time: %v", entry.Time)
	}
	if entry.Attrs["path"] != "/w/a.log" || len(entry.Attrs) != 2 {
		t.Errorf("unexpected attrs: %v", entry.Attrs)
	}

	if ParseLine("time=x level=INFO msg=text").IsValid {
		t.Error("text records are not parsed")
	}
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	got := v.FormatEntry(ParseLine(`{"time":"2026-01-02T03:04:05Z","level":"INFO","msg":"registered","z":1,"a":"x"}`))
	if got != "03:04:05.000 INFO  registered a=x z=1" {
		t.Errorf("unexpected format: %q", got)
	}

	if got := v.FormatEntry(ParseLine("not json")); got != "not json" {
		t.Errorf("raw lines pass through, got %q", got)
	}
}

func TestViewer_Tail(t *testing.T) {
	path := writeLog(t,
		`{"level":"DEBUG","msg":"one"}`,
		`{"level":"INFO","msg":"two"}`,
		`{"level":"WARN","msg":"three"}`,
		`{"level":"ERROR","msg":"four"}`,
	)

	tests := []struct {
		name string
		cfg  ViewerConfig
		n    int
		want []string
	}{
		{"last two", ViewerConfig{}, 2, []string{"three", "four"}},
		{"whole file", ViewerConfig{}, 0, []string{"one", "two", "three", "four"}},
		{"level filter", ViewerConfig{Level: "warn"}, 10, []string{"three", "four"}},
		{"pattern filter", ViewerConfig{Pattern: regexp.MustCompile(`t[wh]`)}, 10, []string{"two", "three"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := NewViewer(tc.cfg, &bytes.Buffer{}).Tail(path, tc.n)
			if err != nil {
				t.Fatalf("Tail failed: %v", err)
			}
			var got []string
			for _, e := range entries {
				got = append(got, e.Msg)
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	if _, err := NewViewer(ViewerConfig{}, &bytes.Buffer{}).Tail(filepath.Join(t.TempDir(), "none.log"), 5); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestViewer_Print(t *testing.T) {
	var buf bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &buf)

	v.Print([]LogEntry{ParseLine("a"), ParseLine("b")})

	if buf.String() != "a\nb\n" {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestViewer_Follow(t *testing.T) {
	path := writeLog(t, `{"level":"INFO","msg":"before"}`)
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// Give Follow time to seek to the end.
	time.Sleep(150 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(`{"level":"INFO","msg":"after"}` + "\n")
	_ = f.Close()

	select {
	case e := <-entries:
		if e.Msg != "after" {
			t.Errorf("expected only new entries, got %q", e.Msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no entry followed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned %v", err)
	}
}

// ============================================================================
// Writer Rotation Tests
// ============================================================================

func TestRotatingWriter_Rotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "rotate.log")

	// 0 MB rotates before every write to a non-empty file
	w, err := NewRotatingWriter(logPath, 0, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer func() { _ = w.Close() }()

	for _, msg := range []string{"first\n", "second\n"} {
		if _, err := w.Write([]byte(msg)); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	current, _ := os.ReadFile(logPath)
	rotated, _ := os.ReadFile(logPath + ".1")
	if string(current) != "second\n" || string(rotated) != "first\n" {
		t.Errorf("unexpected rotation: current=%q rotated=%q", current, rotated)
	}
	if w.Path() != logPath {
		t.Errorf("Path() = %s", w.Path())
	}
}

func TestRotatingWriter_MaxFilesLimit(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "maxfiles.log")

	w, err := NewRotatingWriter(logPath, 0, 2)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer func() { _ = w.Close() }()

	for i := 0; i < 5; i++ {
		_, _ = fmt.Fprintf(w, "line %d\n", i)
	}

	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("rotated file .3 should not exist (beyond maxFiles)")
	}
	oldest, _ := os.ReadFile(logPath + ".2")
	if string(oldest) != "line 2\n" {
		t.Errorf("expected .2 to hold line 2, got %q", oldest)
	}
}

func TestRotatingWriter_CloseAndSync(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "close.log")

	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}

	if _, err := w.Write([]byte("test data to sync\n")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}

	content, _ := os.ReadFile(logPath)
	if !strings.Contains(string(content), "test data to sync") {
		t.Error("synced data should be readable")
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "concurrent.log")

	w, err := NewRotatingWriter(logPath, 10, 3)
	if err != nil {
		t.Fatalf("failed to create writer: %v", err)
	}
	defer func() { _ = w.Close() }()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = fmt.Fprintf(w, `{"id":%d,"iter":%d,"msg":"test"}`+"\n", id, j)
			}
		}(i)
	}
	wg.Wait()

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file should exist: %v", err)
	}
	if n := strings.Count(string(content), "\n"); n != 1000 {
		t.Errorf("expected 1000 lines, got %d", n)
	}
}
