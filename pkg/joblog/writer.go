package joblog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = errors.New("job log writer is closed")

// Writer emits JSONL event records for one job.
//
// Implementations must be safe for concurrent use: the job's background
// goroutine and the read path can both emit records.
type Writer interface {
	// WritePhase emits a phase transition record.
	WritePhase(phase *PhaseRecord) error

	// WriteRemoteStatus emits a poll observation record.
	WriteRemoteStatus(status *RemoteStatusRecord) error

	// WriteError emits an error record.
	WriteError(errRec *ErrorRecord) error

	// WriteSummary emits the final summary record.
	WriteSummary(sum *SummaryRecord) error

	// Close flushes buffered output and releases resources.
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// Writes are serialized with a mutex so lines never interleave.
type JSONLWriter struct {
	w     io.Writer
	jobID string
	mu    sync.Mutex

	closed bool
}

// NewJSONLWriter creates a writer emitting records for jobID to w.
//
// If w implements io.Closer, Close closes it.
func NewJSONLWriter(w io.Writer, jobID string) *JSONLWriter {
	return &JSONLWriter{w: w, jobID: jobID}
}

// OpenFile opens (or creates) a JSONL event log at path in append mode.
func OpenFile(path, jobID string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open job log: %w", err)
	}
	return NewJSONLWriter(f, jobID), nil
}

func (jw *JSONLWriter) WritePhase(phase *PhaseRecord) error {
	return jw.writeRecord(TypePhase, phase)
}

func (jw *JSONLWriter) WriteRemoteStatus(status *RemoteStatusRecord) error {
	return jw.writeRecord(TypeRemoteStatus, status)
}

func (jw *JSONLWriter) WriteError(errRec *ErrorRecord) error {
	return jw.writeRecord(TypeError, errRec)
}

func (jw *JSONLWriter) WriteSummary(sum *SummaryRecord) error {
	return jw.writeRecord(TypeSummary, sum)
}

// Close marks the writer closed and closes the underlying writer when it
// is an io.Closer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return nil
	}
	jw.closed = true
	if c, ok := jw.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// writeRecord marshals data and writes a complete record line.
//
// The mutex is held for the whole operation so each record lands as one
// atomic line.
func (jw *JSONLWriter) writeRecord(recordType string, data any) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", recordType, err)
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:  recordType,
		TS:    time.Now().UTC(),
		JobID: jw.jobID,
		Data:  dataBytes,
	}
	recordBytes, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	recordBytes = append(recordBytes, '\n')
	return writeAll(jw.w, recordBytes)
}

// writeAll writes all bytes to w, handling short writes.
//
// io.Writer.Write may return n < len(p) with a nil error; looping until
// everything is written keeps JSONL lines intact.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// Discard is a Writer that drops all records. Used when a job log cannot
// be opened - logging must never fail a job.
type Discard struct{}

func (Discard) WritePhase(*PhaseRecord) error               { return nil }
func (Discard) WriteRemoteStatus(*RemoteStatusRecord) error { return nil }
func (Discard) WriteError(*ErrorRecord) error               { return nil }
func (Discard) WriteSummary(*SummaryRecord) error           { return nil }
func (Discard) Close() error                                { return nil }

// Compile-time checks.
var (
	_ Writer = (*JSONLWriter)(nil)
	_ Writer = Discard{}
)
