package directive

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/replay/internal/failure"
	"github.com/wesleyorama2/replay/internal/testcase"
)

func TestParseOverride(t *testing.T) {
	ms := func(n int) *time.Duration { d := time.Duration(n) * time.Millisecond; return &d }
	mins := func(n int) *time.Duration { d := time.Duration(n) * time.Minute; return &d }
	intp := func(n int) *int { return &n }
	boolp := func(b bool) *bool { return &b }

	tests := []struct {
		name string
		in   string
		want Override
	}{
		{name: "empty", in: "", want: Override{}},
		{name: "pacing only", in: "1000", want: Override{Pacing: ms(1000)}},
		{name: "think only", in: ";3000:;20", want: Override{Think: ms(3000), Count: intp(20)}},
		{name: "duration and token", in: "1000:30;;U", want: Override{Pacing: ms(1000), Duration: mins(30), TokenMode: boolp(true)}},
		{name: "token off", in: ":;;x", want: Override{TokenMode: boolp(false)}},
		{name: "duration beats count", in: ":5;7", want: Override{Duration: mins(5), Count: intp(7)}},
		{name: "tag", in: "::GRP-A", want: Override{Tag: "GRP-A"}},
		{name: "tag keeps colons", in: "::a:b", want: Override{Tag: "a:b"}},
		{name: "spaces", in: " 250 ; 10 : ; 3 ; : tag ", want: Override{Pacing: ms(250), Think: ms(10), Count: intp(3), Tag: "tag"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOverride(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseOverride_Malformed(t *testing.T) {
	for _, in := range []string{"abc", ";x", ":1.5", ":;-2", "-1"} {
		_, err := ParseOverride(in)
		assert.Error(t, err, in)
	}
}

func TestOverride_StringRoundTrip(t *testing.T) {
	for _, in := range []string{"1000;20:30;;U:grp", ";:;5;-:", "0;0:;;:"} {
		o, err := ParseOverride(in)
		require.NoError(t, err)
		again, err := ParseOverride(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, again, in)
	}
	assert.True(t, (&Override{}).IsZero())
	var nilOverride *Override
	assert.True(t, nilOverride.IsZero())
}

func TestParseLine(t *testing.T) {
	d, err := ParseLine("  C07,CMPG-1,BNDL-2,variants,+a,300:;;U:grp  # trailing comment")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "C07", d.TestCaseID)
	assert.Equal(t, []string{"CMPG-1", "BNDL-2", "variants"}, d.Params)
	require.NotNil(t, d.Override)
	assert.Equal(t, 300*time.Millisecond, *d.Override.Pacing)
	assert.True(t, *d.Override.TokenMode)
	assert.Equal(t, "grp", d.Tag())

	d, err = ParseLine("C01,alice:pw")
	require.NoError(t, err)
	assert.Nil(t, d.Override)
	assert.Equal(t, DefaultTag, d.Tag())
	assert.Equal(t, []string{"alice:pw"}, d.Params)

	d, err = ParseLine("C02")
	require.NoError(t, err)
	assert.Empty(t, d.Params)

	// "+a" is only a marker in the second-to-last position.
	d, err = ParseLine("C03,+a,x,y")
	require.NoError(t, err)
	assert.Nil(t, d.Override)
	assert.Equal(t, []string{"+a", "x", "y"}, d.Params)

	for _, blank := range []string{"", "   ", "# comment", "  #x,y"} {
		d, err := ParseLine(blank)
		assert.NoError(t, err)
		assert.Nil(t, d, blank)
	}

	_, err = ParseLine(",p1")
	assert.Error(t, err)
	_, err = ParseLine("C01,p,+a,bad;")
	assert.Error(t, err)
}

func TestRead(t *testing.T) {
	input := strings.Join([]string{
		"# header",
		"C01,a",
		"",
		"C02,b,+a,:;3",
	}, "\n")

	ds, err := Read("input.txt", strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, 2, ds[0].Line)
	assert.Equal(t, 4, ds[1].Line)
	assert.Equal(t, "input.txt", ds[1].Source)
	assert.Equal(t, 3, *ds[1].Override.Count)
}

func TestRead_Errors(t *testing.T) {
	_, err := Read("empty.txt", strings.NewReader("# nothing\n\n"))
	var cerr *failure.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	assert.True(t, errors.Is(err, ErrEmptySource))

	_, err = Read("bad.txt", strings.NewReader("C01,a\nC02,b,+a,x:y\n"))
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 2, cerr.Line)
	assert.Contains(t, err.Error(), "bad.txt line 2")
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "directives.txt")
	require.NoError(t, os.WriteFile(path, []byte("C01,a\nC01,b\n"), 0o644))

	src := NewFileSource(path)
	ds, err := src.Load()
	require.NoError(t, err)
	assert.Len(t, ds, 2)

	// A source that disappears between waves is a configuration error.
	require.NoError(t, os.Remove(path))
	_, err = src.Load()
	var cerr *failure.ConfigurationError
	assert.True(t, errors.As(err, &cerr))
}

func TestStaticSource(t *testing.T) {
	src := &StaticSource{Lines: []string{"C01,a", "#skip", "C02"}}
	ds, err := src.Load()
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, 3, ds[1].Line)

	_, err = (&StaticSource{}).Load()
	assert.ErrorIs(t, err, ErrEmptySource)
}

func TestLoader_ResolvesTestCases(t *testing.T) {
	reg, err := testcase.ParseCatalog([]byte(`
testCases:
  - id: C01
    steps:
      - method: GET
        resource: /a
`), "c.yaml")
	require.NoError(t, err)

	l := &Loader{Source: &StaticSource{Lines: []string{"C01,x"}}, Registry: reg}
	ds, err := l.Load()
	require.NoError(t, err)
	require.NotNil(t, ds[0].TestCase)
	assert.Equal(t, "C01", ds[0].TestCase.ID())

	l.Source = &StaticSource{Lines: []string{"C01,x", "Z9,y", "Z8"}}
	_, err = l.Load()
	var cerr *failure.ConfigurationError
	require.True(t, errors.As(err, &cerr))
	var verrs *failure.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Len(t, verrs.Errors, 2)
}
