// Package profiling records CPU and heap profiles of a watch session.
package profiling

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
)

// Options names the profile files to write. Empty paths are skipped.
type Options struct {
	CPUProfile string
	MemProfile string
}

// Enabled reports whether any profile was requested.
func (o Options) Enabled() bool {
	return o.CPUProfile != "" || o.MemProfile != ""
}

// Session is a running profile. Stop it exactly once.
type Session struct {
	opts    Options
	cpuFile *os.File
}

// Start begins CPU profiling if requested. The heap profile is written by
// Stop so it reflects the registry and cache after the watch ran.
func Start(opts Options) (*Session, error) {
	s := &Session{opts: opts}
	if opts.CPUProfile == "" {
		return s, nil
	}

	f, err := os.Create(opts.CPUProfile)
	if err != nil {
		return nil, fmt.Errorf("failed to create CPU profile file: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to start CPU profile: %w", err)
	}
	s.cpuFile = f
	slog.Debug("cpu profiling started", slog.String("path", opts.CPUProfile))
	return s, nil
}

// Stop flushes the CPU profile and writes the heap profile.
func (s *Session) Stop() error {
	var errs []error

	if s.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := s.cpuFile.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close CPU profile: %w", err))
		}
		s.cpuFile = nil
	}

	if s.opts.MemProfile != "" {
		if err := writeHeap(s.opts.MemProfile); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create heap profile file: %w", err)
	}
	defer func() { _ = f.Close() }()

	// Live objects only.
	runtime.GC()

	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("failed to write heap profile: %w", err)
	}

	m := MemStats()
	slog.Debug("heap profile written",
		slog.String("path", path),
		slog.String("heap_alloc", FormatBytes(m.HeapAlloc)),
		slog.Uint64("heap_objects", m.HeapObjects))
	return nil
}

// MemStats returns current memory statistics.
func MemStats() runtime.MemStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m
}

// FormatBytes formats bytes into human-readable form.
func FormatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
