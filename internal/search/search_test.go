package search

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/viddup/internal/knn"
	"github.com/banshee-data/viddup/internal/store"
)

// fakeIndex serves canned neighbor lists.
type fakeIndex struct {
	neighbors [][]int
}

func (f *fakeIndex) Len() int { return len(f.neighbors) }

func (f *fakeIndex) Query(n int, radius float64) ([]int, error) {
	return f.neighbors[n], nil
}

// fakeWhitelist marks explicit fid pairs.
type fakeWhitelist struct {
	pairs map[[2]int64]bool
}

func (f *fakeWhitelist) IsWhitelisted(a, b int64) (bool, error) {
	if a > b {
		a, b = b, a
	}
	return f.pairs[[2]int64{a, b}], nil
}

func emptyWhitelist() *fakeWhitelist {
	return &fakeWhitelist{pairs: map[[2]int64]bool{}}
}

// twoFileSet builds windows 0,1 for fid 1 and 2,3 for fid 2 at 25 fps,
// anchored at frames 0 and 250 within each file.
func twoFileSet() *knn.ItemSet {
	set := &knn.ItemSet{Dim: 2}
	for _, ref := range []struct {
		fid   int64
		frame int64
	}{
		{1, 0}, {1, 250}, {2, 0}, {2, 250},
	} {
		set.Items = append(set.Items, []float64{0, 0})
		set.FileRefs = append(set.FileRefs, store.FileInfo{
			FID: ref.fid, Name: "/v/" + string(rune('a'+ref.fid)) + ".mkv", FPS: 25,
		})
		set.FrameRefs = append(set.FrameRefs, ref.frame)
	}
	return set
}

func TestRunReportsPairOnce(t *testing.T) {
	set := twoFileSet()
	// Windows 0/2 match, and so do 1/3. The second match repeats the
	// same file pair and must not produce a second group.
	idx := &fakeIndex{neighbors: [][]int{
		{0, 2},
		{1, 3},
		{0, 2},
		{1, 3},
	}}

	p := knn.DefaultParams()
	groups, err := Run(idx, set, emptyWhitelist(), p)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 2)
	assert.Equal(t, int64(1), groups[0][0].File.FID)
	assert.Equal(t, int64(2), groups[0][1].File.FID)
	assert.Zero(t, groups[0][0].Offset)
	assert.Zero(t, groups[0][1].Offset)
}

func TestRunFirstOccurrencePerFile(t *testing.T) {
	set := twoFileSet()
	// Window 1 (frame 250 of fid 1) leads; both windows of fid 2 are in
	// the neighbor set, the earlier one wins.
	idx := &fakeIndex{neighbors: [][]int{
		{},
		{1, 2, 3},
		{},
		{},
	}}

	groups, err := Run(idx, set, emptyWhitelist(), knn.DefaultParams())
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0], 2)
	assert.Equal(t, int64(1), groups[0][0].File.FID)
	assert.InDelta(t, 10.0, groups[0][0].Offset, 1e-9)
	assert.Equal(t, int64(2), groups[0][1].File.FID)
	assert.Zero(t, groups[0][1].Offset)
}

func TestRunSkipsWhitelistedPairs(t *testing.T) {
	set := twoFileSet()
	idx := &fakeIndex{neighbors: [][]int{{0, 2}, {}, {}, {}}}
	wl := &fakeWhitelist{pairs: map[[2]int64]bool{{1, 2}: true}}

	groups, err := Run(idx, set, wl, knn.DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestRunSelfMatchesOnly(t *testing.T) {
	set := twoFileSet()
	// All neighbors stay within fid 1: no pair, no group.
	idx := &fakeIndex{neighbors: [][]int{{0, 1}, {0, 1}, {}, {}}}

	groups, err := Run(idx, set, emptyWhitelist(), knn.DefaultParams())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestRunHonorsStep(t *testing.T) {
	set := twoFileSet()
	// The only match sits on an odd window index and step 2 never
	// queries it.
	idx := &fakeIndex{neighbors: [][]int{{}, {1, 3}, {}, {}}}

	p := knn.DefaultParams()
	p.Step = 2
	groups, err := Run(idx, set, emptyWhitelist(), p)
	require.NoError(t, err)
	assert.Empty(t, groups)

	p.Step = 1
	groups, err = Run(idx, set, emptyWhitelist(), p)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}

func TestRunRejectsBadStep(t *testing.T) {
	p := knn.DefaultParams()
	p.Step = 0
	_, err := Run(&fakeIndex{}, &knn.ItemSet{}, emptyWhitelist(), p)
	assert.Error(t, err)
}

func tempVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestSaveLoadRoundTrip(t *testing.T) {
	groups := []Group{
		{
			{File: store.FileInfo{FID: 1, Name: "/v/a.mkv", FPS: 25, Duration: 600}, Offset: 12.5},
			{File: store.FileInfo{FID: 2, Name: "/v/b.mkv", FPS: 30, Duration: 300}, Offset: 0},
		},
		{
			{File: store.FileInfo{FID: 3, Name: "/v/c.mkv", FPS: 24, Duration: 90}, Offset: 42},
			{File: store.FileInfo{FID: 4, Name: "/v/d.mkv", FPS: 24, Duration: 90}, Offset: 43},
		},
	}

	path := filepath.Join(t.TempDir(), "results.yaml")
	require.NoError(t, Save(path, groups))

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(groups, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReprojectDropsUnreadable(t *testing.T) {
	a := tempVideo(t, "a.mkv")
	groups := []Group{{
		{File: store.FileInfo{FID: 1, Name: a}, Offset: 1},
		{File: store.FileInfo{FID: 2, Name: "/nonexistent/b.mkv"}, Offset: 2},
	}}

	kept, err := Reproject(groups, emptyWhitelist())
	require.NoError(t, err)
	assert.Empty(t, kept)
}

func TestReprojectDropsFreshlyWhitelisted(t *testing.T) {
	a := tempVideo(t, "a.mkv")
	b := tempVideo(t, "b.mkv")
	c := tempVideo(t, "c.mkv")

	groups := []Group{
		{
			{File: store.FileInfo{FID: 1, Name: a}, Offset: 1},
			{File: store.FileInfo{FID: 2, Name: b}, Offset: 2},
		},
		{
			{File: store.FileInfo{FID: 1, Name: a}, Offset: 1},
			{File: store.FileInfo{FID: 3, Name: c}, Offset: 3},
		},
	}
	wl := &fakeWhitelist{pairs: map[[2]int64]bool{{1, 2}: true}}

	kept, err := Reproject(groups, wl)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, int64(3), kept[0][1].File.FID)
}

func TestPrintFFplayLines(t *testing.T) {
	groups := []Group{
		{
			{File: store.FileInfo{Name: "/v/a.mkv"}, Offset: 3661.9},
			{File: store.FileInfo{Name: "/v/b.mkv"}, Offset: 59},
		},
		{
			{File: store.FileInfo{Name: "/v/c.mkv"}, Offset: 0},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, groups))
	assert.Equal(t,
		"ffplay -ss 01:01:01 '/v/a.mkv'\n"+
			"ffplay -ss 00:00:59 '/v/b.mkv'\n"+
			"\n"+
			"ffplay -ss 00:00:00 '/v/c.mkv'\n",
		buf.String())
}

func TestFormatOffset(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00:00"},
		{59.4, "00:00:59"},
		{61, "00:01:01"},
		{3600, "01:00:00"},
		{7325, "02:02:05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatOffset(tt.seconds))
	}
}
