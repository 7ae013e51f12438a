package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/viddup/internal/store"
)

func TestMeanBrightness(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  float32
	}{
		{name: "empty frame", frame: nil, want: 0},
		{name: "uniform", frame: []byte{10, 10, 10, 10}, want: 10},
		{name: "mixed", frame: []byte{0, 255}, want: 127.5},
		{name: "single", frame: []byte{42}, want: 42},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MeanBrightness(tt.frame))
		})
	}
}

func TestCollect(t *testing.T) {
	frames := [][]byte{{10, 10}, {20, 20}, {30, 30}}
	i := 0
	series := Collect(func() ([]byte, bool) {
		if i >= len(frames) {
			return nil, false
		}
		f := frames[i]
		i++
		return f, true
	})
	assert.Equal(t, []float32{10, 20, 30}, series)
}

func TestNormalizeFlatRuns(t *testing.T) {
	tests := []struct {
		name   string
		series []float32
		want   []float32
	}{
		{
			name:   "plateau keeps one representative",
			series: []float32{5, 5, 5, 5},
			want:   []float32{5, 0, 0, 0},
		},
		{
			name:   "distinct values untouched",
			series: []float32{1, 2, 3},
			want:   []float32{1, 2, 3},
		},
		{
			name:   "zero runs stay zero",
			series: []float32{0, 0, 3, 3, 0},
			want:   []float32{0, 0, 3, 0, 0},
		},
		{
			name:   "value equal to an introduced zero survives",
			series: []float32{3, 3, 0},
			want:   []float32{3, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeFlatRuns(append([]float32(nil), tt.series...))
			assert.Equal(t, tt.want, got)

			// Postcondition: no two consecutive equal values unless both 0.
			for i := 1; i < len(got); i++ {
				if got[i] == got[i-1] {
					assert.Zero(t, got[i], "non-zero plateau at %d", i)
				}
			}
		})
	}
}

// peakSeries builds a series of the given length with isolated peaks at the
// listed frame indices.
func peakSeries(n int, peaks ...int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(i%7) * 0.1
	}
	for _, p := range peaks {
		s[p] = 200
	}
	return s
}

func TestExtremaGaps(t *testing.T) {
	const fps = 2.0 // order = 20 frames
	series := peakSeries(300, 50, 120, 200)

	entries := Extrema(series, fps)
	require.Len(t, entries, 3)

	assert.Equal(t, store.HashEntry{Frame: 50, Gap: 25}, entries[0],
		"first gap counts from the start of the file")
	assert.Equal(t, store.HashEntry{Frame: 120, Gap: 35}, entries[1])
	assert.Equal(t, store.HashEntry{Frame: 200, Gap: 40}, entries[2])

	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Frame, entries[i].Frame)
	}
	for _, e := range entries {
		assert.GreaterOrEqual(t, e.Gap, 0.0)
	}
}

func TestExtremaBoundaryExclusion(t *testing.T) {
	const fps = 2.0 // order = 20 frames
	// Peaks inside the boundary margin must be ignored.
	series := peakSeries(100, 5, 95)
	assert.Empty(t, Extrema(series, fps))

	// The same peaks away from the boundary are found.
	series = peakSeries(100, 30, 70)
	entries := Extrema(series, fps)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(30), entries[0].Frame)
	assert.Equal(t, int64(70), entries[1].Frame)
}

func TestExtremaPlateauBreaksTies(t *testing.T) {
	const fps = 2.0 // order = 20
	series := make([]float32, 100)
	// A flat plateau of the maximum value: normalization keeps only its
	// first frame, which then dominates strictly.
	for i := 40; i < 45; i++ {
		series[i] = 100
	}
	entries := Extrema(series, fps)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(40), entries[0].Frame)
}

func TestExtremaInvalidFPS(t *testing.T) {
	assert.Nil(t, Extrema([]float32{1, 2, 1}, 0))
}

func TestOrder(t *testing.T) {
	assert.Equal(t, 250, Order(25))
	assert.Equal(t, 300, Order(29.97))
}
