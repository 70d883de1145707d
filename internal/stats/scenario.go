package stats

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wesleyorama2/replay/internal/execlog"
)

// Dimension selects how records are grouped. Its values are the scenario ids
// accepted on the command line.
type Dimension int

const (
	ByTestCase          Dimension = 100
	ByThreadTestCase    Dimension = 101
	ByThreadTestCaseTag Dimension = 102
	ByURL               Dimension = 103
	ByURLTag            Dimension = 104
)

// Scenario describes one grouping dimension.
type Scenario struct {
	ID          Dimension
	Description string
	// Columns are the headings of the key columns.
	Columns []string
}

var scenarios = []Scenario{
	{ByTestCase, "general statistics, segregated by test case", []string{"API"}},
	{ByThreadTestCase, "general statistics, segregated by thread and test case", []string{"Thread", "API"}},
	{ByThreadTestCaseTag, "general statistics, segregated by thread, test case and tag", []string{"Thread", "API", "Tag"}},
	{ByURL, "general statistics, segregated by resource URL", []string{"URL"}},
	{ByURLTag, "general statistics, segregated by resource URL and tag", []string{"URL", "Tag"}},
}

// Scenarios returns every supported dimension in id order.
func Scenarios() []Scenario {
	out := make([]Scenario, len(scenarios))
	copy(out, scenarios)
	return out
}

// ParseDimension parses a scenario id.
func ParseDimension(s string) (Dimension, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid scenario %q: %w", s, err)
	}
	d := Dimension(n)
	if _, ok := d.scenario(); !ok {
		return 0, fmt.Errorf("unsupported scenario %d", n)
	}
	return d, nil
}

func (d Dimension) scenario() (Scenario, bool) {
	for _, s := range scenarios {
		if s.ID == d {
			return s, true
		}
	}
	return Scenario{}, false
}

// Columns returns the key column headings of d.
func (d Dimension) Columns() []string {
	s, _ := d.scenario()
	return s.Columns
}

func (d Dimension) String() string {
	return strconv.Itoa(int(d))
}

// key returns the group key of r.
func (d Dimension) key(r *execlog.Record) []string {
	switch d {
	case ByThreadTestCase:
		return []string{r.Thread, r.TestCaseID}
	case ByThreadTestCaseTag:
		return []string{r.Thread, r.TestCaseID, r.Tag}
	case ByURL:
		return []string{r.URL}
	case ByURLTag:
		return []string{r.URL, r.Tag}
	default:
		return []string{r.TestCaseID}
	}
}
