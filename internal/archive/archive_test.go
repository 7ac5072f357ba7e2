package archive

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/plenoptics/internal/fsutil"
	"github.com/banshee-data/plenoptics/internal/report"
)

func TestWriter_RoundTrip(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	w := NewWriter(fsys, "analysis/diag9_default/phantom.zip")
	require.NoError(t, w.Add("000000", map[string]any{}))
	require.NoError(t, w.Add("000001", map[string]int{"n": 1}))
	assert.Equal(t, 2, w.Len())

	assert.False(t, fsys.Exists("analysis/diag9_default/phantom.zip"), "archive must not appear before Close")
	require.NoError(t, w.Close())
	assert.False(t, fsys.HasIncomplete())

	got, err := ReadReports(fsys, "analysis/diag9_default/phantom.zip")
	require.NoError(t, err)
	assert.Equal(t, []string{"000000", "000001"}, Keys(got))
	assert.JSONEq(t, `{}`, string(got["000000"]))
	assert.JSONEq(t, `{"n": 1}`, string(got["000001"]))
}

func TestWriter_Empty(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, NewWriter(fsys, "empty.zip").Close())

	got, err := ReadReports(fsys, "empty.zip")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestWriter_RejectsBadEntries(t *testing.T) {
	w := NewWriter(fsutil.NewMemoryFileSystem(), "a.zip")
	require.NoError(t, w.AddRaw("000000", []byte(`{}`)))

	assert.Error(t, w.AddRaw("000000", []byte(`{}`)), "duplicate")
	assert.Error(t, w.AddRaw("", []byte(`{}`)))
	assert.Error(t, w.AddRaw("../x", []byte(`{}`)))
	assert.Error(t, w.AddRaw("000001", []byte(`{`)))
	assert.Error(t, w.Add("000002", math.Inf(1)), "json cannot encode +Inf")
	assert.Equal(t, 1, w.Len())
}

func TestReadPointSourceReports(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	r := &report.PointSourceReport{
		Statistics: report.Statistics{
			ImageBeams: report.Count{Total: 9, Valid: 0},
			Photons:    report.PhotonCount{Total: 3, Valid: 0},
		},
		Image: report.ImageSection{Angle80: report.Number(math.NaN()), Raw: [][]float64{{0}}},
	}
	w := NewWriter(fsys, "star.zip")
	require.NoError(t, w.Add("000007", r))
	require.NoError(t, w.Close())

	got, err := ReadPointSourceReports(fsys, "star.zip")
	require.NoError(t, err)
	require.Contains(t, got, "000007")
	assert.Equal(t, r.Statistics, got["000007"].Statistics)
	assert.True(t, math.IsNaN(got["000007"].Image.Angle80.Float()))
}

func TestReadReports_Errors(t *testing.T) {
	fsys := fsutil.NewMemoryFileSystem()
	_, err := ReadReports(fsys, "missing.zip")
	assert.Error(t, err)

	require.NoError(t, fsys.WriteFile("junk.zip", []byte("not a zip"), 0o644))
	_, err = ReadReports(fsys, "junk.zip")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	raw := map[string]json.RawMessage{"a": json.RawMessage(`1`), "b": json.RawMessage(`2`)}
	got, err := Decode[int](raw)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, got)

	raw["c"] = json.RawMessage(`"x"`)
	_, err = Decode[int](raw)
	assert.Error(t, err)
}
