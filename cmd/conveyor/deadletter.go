package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/yoonhogo/conveyor/pkg/executor/channel"
	"github.com/yoonhogo/conveyor/pkg/executor/level"
)

// fileDeadLetterWriter appends one JSON object per line to
// error_handling.dead_letter_path (spec.md §6.4 "one record per line").
// This is the concrete I/O collaborator the executors' DeadLetterWriter
// interfaces expect; the core executor packages only know the interface
// (spec.md §1 "concrete I/O implementations ... are external
// collaborators"). pkg/executor/level and pkg/executor/channel each
// declare their own DeadLetterRecord/DeadLetterWriter pair rather than
// sharing a type, so fileDeadLetterWriter implements level's Write
// directly and has a small channel-facing adapter (channelDeadLetterAdapter)
// for the channel-executor branch.
type fileDeadLetterWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

func newFileDeadLetterWriter(path string) (*fileDeadLetterWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening dead-letter file %q: %w", path, err)
	}
	return &fileDeadLetterWriter{file: f, enc: json.NewEncoder(f)}, nil
}

func (w *fileDeadLetterWriter) Write(rec level.DeadLetterRecord) error {
	return w.encode(rec.StageID, rec.Timestamp, rec.ErrorMessage, rec.FailingInputSummary)
}

func (w *fileDeadLetterWriter) encode(stageID string, ts time.Time, message, failingInput string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(struct {
		StageID             string    `json:"stage_id"`
		Timestamp           time.Time `json:"timestamp"`
		ErrorMessage        string    `json:"error_message"`
		FailingInputSummary string    `json:"failing_input_snapshot,omitempty"`
	}{stageID, ts, message, failingInput})
}

func (w *fileDeadLetterWriter) Close() error {
	return w.file.Close()
}

// channelDeadLetterAdapter adapts a fileDeadLetterWriter to
// channel.DeadLetterWriter: channel.DeadLetterRecord and
// level.DeadLetterRecord are distinct named types, so one method can't
// satisfy both interfaces on fileDeadLetterWriter directly.
type channelDeadLetterAdapter struct {
	w *fileDeadLetterWriter
}

func (a channelDeadLetterAdapter) Write(rec channel.DeadLetterRecord) error {
	return a.w.encode(rec.StageID, rec.Timestamp, rec.ErrorMessage, rec.FailingInputSummary)
}
