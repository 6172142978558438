// Copyright (c) 2025 SQLAgent
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sqlagent/cli/internal/xdg"
)

// QueryLog appends one human-readable line per processed request to a log
// file under the XDG state directory. Generated SQL is flattened to a single
// line and masked before writing. A nil *QueryLog is safe to use; all
// methods become no-ops, so callers never need to guard logging calls.
type QueryLog struct {
	mu   sync.Mutex
	file *os.File
}

// OpenQueryLog opens (or creates) the append-only query log.
func OpenQueryLog() (*QueryLog, error) {
	dir, err := xdg.StateDir()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "query.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	return &QueryLog{file: f}, nil
}

// Record writes one line for a completed request: timestamp, elapsed time,
// outcome, and the generated SQL (or failure reason).
func (l *QueryLog) Record(sql string, elapsed time.Duration, success bool, errMsg string) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	status := "ok"
	if !success {
		status = "error"
	}
	line := fmt.Sprintf("%s %s elapsed=%s sql=%q",
		time.Now().Format(time.RFC3339), status, elapsed.Round(time.Millisecond), flatten(sql))
	if errMsg != "" {
		line += fmt.Sprintf(" err=%q", Mask(errMsg))
	}
	fmt.Fprintln(l.file, Mask(line))
}

// Close releases the underlying file.
func (l *QueryLog) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// flatten collapses a multi-line SQL statement into one log-friendly line.
func flatten(sql string) string {
	return strings.Join(strings.Fields(sql), " ")
}
