package sink

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chy506r/aggregate"
	"chy506r/frame"
)

func sample(h, m, s int, t1, t2 float64) aggregate.Sample {
	return aggregate.Sample{Time: frame.Timestamp{Hour: h, Minute: m, Second: s}, Channel1: t1, Channel2: t2}
}

func TestFormatSample(t *testing.T) {
	tests := []struct {
		name   string
		sample aggregate.Sample
		want   string
	}{
		{"fraction", sample(7, 9, 0, 0.002, 2), "07:09:00;0.002;2\n"},
		{"negative", sample(23, 59, 59, -12.5, 0), "23:59:59;-12.5;0\n"},
		{"midnight", sample(0, 0, 0, 100.125, 299.999), "00:00:00;100.125;299.999\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatSample(tt.sample))
		})
	}
}

func TestParseRow(t *testing.T) {
	s, err := ParseRow("07:09:00;0.002;-2\n")
	require.NoError(t, err)
	assert.Equal(t, sample(7, 9, 0, 0.002, -2), s)

	for _, bad := range []string{Header, "07:09:00;1", "xx:09:00;1;2", "07:09:00;a;2", "07:09:00;1;b"} {
		_, err := ParseRow(bad)
		assert.Error(t, err, bad)
	}
}

func TestCSVWritesTable(t *testing.T) {
	var buf bytes.Buffer
	c := NewCSV("mem", &buf)

	require.NoError(t, c.WriteHeader())
	assert.Equal(t, "TIME;T1;T2\n", buf.String())

	require.NoError(t, c.WriteSample(sample(12, 0, 0, 21.5, 22)))
	// visible without Close
	assert.Equal(t, "TIME;T1;T2\n12:00:00;21.5;22\n", buf.String())
	require.NoError(t, c.Close())
	assert.Equal(t, "mem", c.Path())
}

func TestOpenCSVTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, os.WriteFile(path, []byte("old contents\n"), 0644))

	c, err := OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, c.WriteHeader())
	require.NoError(t, c.WriteSample(sample(1, 2, 3, 4, 5)))
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "TIME;T1;T2\n01:02:03;4;5\n", string(data))
}

func TestOpenCSVFailure(t *testing.T) {
	_, err := OpenCSV(filepath.Join(t.TempDir(), "missing", "out.csv"))
	assert.Error(t, err)
}

func TestReadAllSkipsHeaderAndJunk(t *testing.T) {
	table := strings.Join([]string{
		Header,
		"07:09:00;0.002;2",
		"",
		"not a row",
		"07:09:01;1;-2",
		"07:09:02;1.5",
	}, "\n")

	samples, err := ReadAll(strings.NewReader(table))
	require.NoError(t, err)
	assert.Equal(t, []aggregate.Sample{
		sample(7, 9, 0, 0.002, 2),
		sample(7, 9, 1, 1, -2),
	}, samples)
}

type recordingSink struct {
	name     string
	log      *[]string
	failOn   string
	closeErr error
}

func (r *recordingSink) WriteHeader() error {
	*r.log = append(*r.log, r.name+":header")
	if r.failOn == "header" {
		return errors.New(r.name + " header failed")
	}
	return nil
}

func (r *recordingSink) WriteSample(s aggregate.Sample) error {
	*r.log = append(*r.log, r.name+":"+s.Time.String())
	if r.failOn == "sample" {
		return errors.New(r.name + " sample failed")
	}
	return nil
}

func (r *recordingSink) Close() error {
	*r.log = append(*r.log, r.name+":close")
	return r.closeErr
}

func TestMultiFansOutInOrder(t *testing.T) {
	var log []string
	m := Multi{&recordingSink{name: "a", log: &log}, &recordingSink{name: "b", log: &log}}

	require.NoError(t, m.WriteHeader())
	require.NoError(t, m.WriteSample(sample(0, 0, 1, 0, 0)))
	require.NoError(t, m.Close())

	assert.Equal(t, []string{"a:header", "b:header", "a:00:00:01", "b:00:00:01", "a:close", "b:close"}, log)
}

func TestMultiStopsAtFirstError(t *testing.T) {
	var log []string
	m := Multi{&recordingSink{name: "a", log: &log, failOn: "sample"}, &recordingSink{name: "b", log: &log}}

	assert.EqualError(t, m.WriteSample(sample(0, 0, 1, 0, 0)), "a sample failed")
	assert.Equal(t, []string{"a:00:00:01"}, log)
}

func TestMultiMirrorFailureKeepsWriting(t *testing.T) {
	var log []string
	m := Multi{
		&recordingSink{name: "a", log: &log},
		&recordingSink{name: "b", log: &log, failOn: "sample"},
		&recordingSink{name: "c", log: &log},
	}

	err := m.WriteSample(sample(0, 0, 1, 0, 0))
	var mirrorErr *MirrorError
	require.ErrorAs(t, err, &mirrorErr)
	assert.EqualError(t, mirrorErr.Err, "b sample failed")
	assert.Equal(t, []string{"a:00:00:01", "b:00:00:01", "c:00:00:01"}, log)

	assert.NoError(t, Multi{}.WriteHeader())
}

func TestMultiCloseJoinsErrors(t *testing.T) {
	var log []string
	errA := errors.New("a close")
	errB := errors.New("b close")
	m := Multi{
		&recordingSink{name: "a", log: &log, closeErr: errA},
		&recordingSink{name: "b", log: &log, closeErr: errB},
	}

	err := m.Close()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []string{"a:close", "b:close"}, log)
}
