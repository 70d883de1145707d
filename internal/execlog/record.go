// Package execlog writes and reads the execution log: one line per request
// attempt, consumed later by the statistics pipeline.
//
// A line holds ten comma separated fields:
//
//	thread,start,end,duration,bytes,status,testcase,tag,url,input
//
// start and end are wall clock times of day (HH:MM:SS.mmm), duration is in
// seconds with three decimals, url has the service root stripped and input
// has its commas replaced by semicolons.
package execlog

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ClockLayout is the timestamp layout of the start and end fields.
const ClockLayout = "15:04:05.000"

// MinFields is the number of leading fields a line needs to be usable.
const MinFields = 7

const numFields = 10

// Record is one request attempt. Records are immutable once written.
type Record struct {
	Thread     string
	Start      time.Time
	End        time.Time
	Duration   float64
	Bytes      int64
	Status     int
	TestCaseID string
	Tag        string
	URL        string
	Input      string
}

// Format renders r as a log line without the trailing newline.
func (r *Record) Format() string {
	var b strings.Builder
	b.Grow(96 + len(r.URL) + len(r.Input))
	b.WriteString(r.Thread)
	b.WriteByte(',')
	b.WriteString(r.Start.Format(ClockLayout))
	b.WriteByte(',')
	b.WriteString(r.End.Format(ClockLayout))
	b.WriteByte(',')
	b.WriteString(strconv.FormatFloat(r.Duration, 'f', 3, 64))
	b.WriteByte(',')
	b.WriteString(strconv.FormatInt(r.Bytes, 10))
	b.WriteByte(',')
	b.WriteString(strconv.Itoa(r.Status))
	b.WriteByte(',')
	b.WriteString(r.TestCaseID)
	b.WriteByte(',')
	b.WriteString(r.Tag)
	b.WriteByte(',')
	b.WriteString(strings.ReplaceAll(r.URL, ",", "%2C"))
	b.WriteByte(',')
	b.WriteString(strings.ReplaceAll(r.Input, ",", ";"))
	return b.String()
}

// ParseRecord decodes a log line. Lines with only the first MinFields fields
// are accepted; missing trailing fields are left empty. Start and End carry
// only a time of day (on January 1, year 0, UTC); an End earlier than Start
// is taken to have crossed midnight.
func ParseRecord(line string) (*Record, error) {
	fields := strings.SplitN(strings.TrimRight(line, "\r\n"), ",", numFields)
	if len(fields) < MinFields {
		return nil, fmt.Errorf("want at least %d fields, got %d", MinFields, len(fields))
	}

	r := &Record{Thread: strings.TrimSpace(fields[0])}
	var err error
	if r.Start, err = ParseClock(fields[1]); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	if r.End, err = ParseClock(fields[2]); err != nil {
		return nil, fmt.Errorf("end: %w", err)
	}
	if r.End.Before(r.Start) {
		r.End = r.End.Add(24 * time.Hour)
	}
	if r.Duration, err = strconv.ParseFloat(strings.TrimSpace(fields[3]), 64); err != nil {
		return nil, fmt.Errorf("duration: %w", err)
	}
	if r.Bytes, err = strconv.ParseInt(strings.TrimSpace(fields[4]), 10, 64); err != nil {
		return nil, fmt.Errorf("bytes: %w", err)
	}
	if r.Status, err = strconv.Atoi(strings.TrimSpace(fields[5])); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}
	r.TestCaseID = strings.TrimSpace(fields[6])
	if len(fields) > 7 {
		r.Tag = fields[7]
	}
	if len(fields) > 8 {
		r.URL = fields[8]
	}
	if len(fields) > 9 {
		// older logs prefix the input with "--"
		r.Input = strings.TrimPrefix(fields[9], "--")
	}
	return r, nil
}

// ParseClock parses HH:MM:SS[.fff]. The fraction is read as a whole number
// of milliseconds, so both "09:00:01.005" and "09:00:01.5" mean 5ms past the
// second.
func ParseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	hms, frac, _ := strings.Cut(s, ".")
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("invalid time of day %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return time.Time{}, fmt.Errorf("invalid time of day %q", s)
		}
		v[i] = n
	}
	if frac != "" {
		n, err := strconv.Atoi(frac)
		if err != nil || n < 0 || n > 999 {
			return time.Time{}, fmt.Errorf("invalid milliseconds in %q", s)
		}
		v[3] = n
	}
	if v[0] > 23 || v[1] > 59 || v[2] > 59 {
		return time.Time{}, fmt.Errorf("invalid time of day %q", s)
	}
	return time.Date(0, time.January, 1, v[0], v[1], v[2], v[3]*int(time.Millisecond), time.UTC), nil
}
