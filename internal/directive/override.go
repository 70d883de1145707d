package directive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TokenFlag is the override value that switches a worker into token mode.
const TokenFlag = "U"

// Override is the decoded trailing block of a directive:
//
//	pacing_ms;think_ms : duration_min;count;token_flag : prefix_tag
//
// A nil field (or an empty Tag) means the field was absent and must leave
// the corresponding schedule value untouched.
type Override struct {
	Pacing    *time.Duration
	Think     *time.Duration
	Duration  *time.Duration
	Count     *int
	TokenMode *bool
	Tag       string
}

// IsZero reports whether no field was supplied.
func (o *Override) IsZero() bool {
	return o == nil || (o.Pacing == nil && o.Think == nil && o.Duration == nil &&
		o.Count == nil && o.TokenMode == nil && o.Tag == "")
}

func (o *Override) String() string {
	if o == nil {
		return ""
	}
	ms := func(d *time.Duration) string {
		if d == nil {
			return ""
		}
		return strconv.FormatInt(d.Milliseconds(), 10)
	}
	var b strings.Builder
	b.WriteString(ms(o.Pacing))
	b.WriteByte(';')
	b.WriteString(ms(o.Think))
	b.WriteByte(':')
	if o.Duration != nil {
		b.WriteString(strconv.FormatInt(int64(*o.Duration/time.Minute), 10))
	}
	b.WriteByte(';')
	if o.Count != nil {
		b.WriteString(strconv.Itoa(*o.Count))
	}
	b.WriteByte(';')
	if o.TokenMode != nil {
		if *o.TokenMode {
			b.WriteString(TokenFlag)
		} else {
			b.WriteString("-")
		}
	}
	b.WriteByte(':')
	b.WriteString(o.Tag)
	return b.String()
}

// ParseOverride decodes an override block. Segments are separated by ':' and
// fields within a segment by ';'. Surrounding whitespace is ignored and every
// field is optional; the tag keeps any further colons verbatim.
func ParseOverride(s string) (*Override, error) {
	segs := strings.SplitN(s, ":", 3)
	for len(segs) < 3 {
		segs = append(segs, "")
	}

	o := &Override{}
	timing := fields(segs[0], 2)
	var err error
	if o.Pacing, err = parseMillis("pacing", timing[0]); err != nil {
		return nil, err
	}
	if o.Think, err = parseMillis("think", timing[1]); err != nil {
		return nil, err
	}

	control := fields(segs[1], 3)
	if control[0] != "" {
		min, err := parseNonNegative("duration", control[0])
		if err != nil {
			return nil, err
		}
		d := time.Duration(min) * time.Minute
		o.Duration = &d
	}
	if control[1] != "" {
		n, err := parseNonNegative("count", control[1])
		if err != nil {
			return nil, err
		}
		o.Count = &n
	}
	if control[2] != "" {
		token := control[2] == TokenFlag
		o.TokenMode = &token
	}

	o.Tag = strings.TrimSpace(segs[2])
	return o, nil
}

// fields splits seg on ';' into exactly n trimmed values. Extra values are
// ignored.
func fields(seg string, n int) []string {
	out := make([]string, n)
	for i, f := range strings.Split(seg, ";") {
		if i >= n {
			break
		}
		out[i] = strings.TrimSpace(f)
	}
	return out
}

func parseMillis(name, v string) (*time.Duration, error) {
	if v == "" {
		return nil, nil
	}
	ms, err := parseNonNegative(name, v)
	if err != nil {
		return nil, err
	}
	d := time.Duration(ms) * time.Millisecond
	return &d, nil
}

func parseNonNegative(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, v, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", name, v)
	}
	return n, nil
}
