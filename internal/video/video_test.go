package video

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		name    string
		rate    string
		want    float64
		wantErr bool
	}{
		{name: "integer rational", rate: "25/1", want: 25},
		{name: "ntsc rational", rate: "30000/1001", want: 29.97002997002997},
		{name: "plain number", rate: "23.976", want: 23.976},
		{name: "zero denominator", rate: "25/0", wantErr: true},
		{name: "garbage", rate: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRate(tt.rate)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestProbeOutputDecoding(t *testing.T) {
	raw := `{
		"streams": [{
			"width": 1280, "height": 720,
			"r_frame_rate": "25/1",
			"nb_frames": "750",
			"duration": "30.000000"
		}],
		"format": {"duration": "30.033000"}
	}`

	var probed probeOutput
	require.NoError(t, json.Unmarshal([]byte(raw), &probed))
	require.Len(t, probed.Streams, 1)
	assert.Equal(t, 1280, probed.Streams[0].Width)
	assert.Equal(t, "750", probed.Streams[0].NBFrames)
	assert.Equal(t, "30.033000", probed.Format.Duration)
}

func TestFrameReaderFraming(t *testing.T) {
	// Three 4-byte frames.
	data := []byte{
		1, 1, 1, 1,
		2, 2, 2, 2,
		3, 3, 3, 3,
	}
	r := newFrameReaderFromStream(io.NopCloser(bytes.NewReader(data)), 4)

	for want := byte(1); want <= 3; want++ {
		frame, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, []byte{want, want, want, want}, frame)
	}

	_, err := r.Next()
	assert.Equal(t, io.EOF, err)
}

func TestFrameReaderTruncation(t *testing.T) {
	// One full frame then a partial one.
	data := []byte{1, 1, 1, 1, 2, 2}
	r := newFrameReaderFromStream(io.NopCloser(bytes.NewReader(data)), 4)

	_, err := r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrSourceTruncated)
}
