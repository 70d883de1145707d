package execlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultName returns the default log file name of a run with the given
// number of workers started at t: replay_M<threads>.<YYYYmmddHHMMSS>.csv.
func DefaultName(threads int, t time.Time) string {
	return fmt.Sprintf("replay_M%d.%s.csv", threads, t.Format("20060102150405"))
}

// Writer appends records to a sink. It is safe for concurrent use; every
// record is written as one complete line.
type Writer struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
	lines  atomic.Int64
	bytes  atomic.Int64
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{out: w}
}

// Create opens path for appending, creating it when needed.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening execution log: %w", err)
	}
	return &Writer{out: f, closer: f}, nil
}

// Write appends r.
func (w *Writer) Write(r *Record) error {
	line := r.Format() + "\n"
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := io.WriteString(w.out, line); err != nil {
		return fmt.Errorf("writing execution log: %w", err)
	}
	w.lines.Add(1)
	w.bytes.Add(r.Bytes)
	return nil
}

// Count returns the number of records written.
func (w *Writer) Count() int64 {
	return w.lines.Load()
}

// ResponseBytes returns the sum of response sizes written.
func (w *Writer) ResponseBytes() int64 {
	return w.bytes.Load()
}

// Close closes the underlying file, if the Writer opened one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closer == nil {
		return nil
	}
	err := w.closer.Close()
	w.closer = nil
	return err
}

// ReadResult is the outcome of reading a log.
type ReadResult struct {
	Records []*Record
	// Skipped lists malformed lines; they are left out of Records.
	Skipped []LineError
}

// LineError describes a malformed line.
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// rolloverGap is how far a start time may fall behind the latest start seen
// before the record is taken to belong to the next day.
const rolloverGap = 12 * time.Hour

// Read parses every line of r. Blank lines are ignored and malformed lines
// are reported in Skipped; only I/O failures return an error.
//
// Records only carry a time of day, so a run that crosses midnight is
// unrolled in log order: once a start falls more than 12 hours behind the
// latest start seen, it and every later record move one day forward.
func Read(r io.Reader) (*ReadResult, error) {
	res := &ReadResult{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	var (
		day    time.Duration
		latest time.Time
	)
	n := 0
	for scanner.Scan() {
		n++
		line := scanner.Text()
		if len(line) == 0 {
			continue
		}
		rec, err := ParseRecord(line)
		if err != nil {
			res.Skipped = append(res.Skipped, LineError{Line: n, Err: err})
			continue
		}
		shift := day
		if len(res.Records) > 0 {
			switch start := rec.Start.Add(day); {
			case latest.Sub(start) > rolloverGap:
				day += 24 * time.Hour
				shift = day
			case day > 0 && start.Sub(latest) > rolloverGap:
				// written late, started before midnight
				shift = day - 24*time.Hour
			}
		}
		rec.Start = rec.Start.Add(shift)
		rec.End = rec.End.Add(shift)
		if len(res.Records) == 0 || rec.Start.After(latest) {
			latest = rec.Start
		}
		res.Records = append(res.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading execution log: %w", err)
	}
	return res, nil
}

// ReadFile reads the log at path.
func ReadFile(path string) (*ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening execution log: %w", err)
	}
	defer f.Close()
	return Read(f)
}
