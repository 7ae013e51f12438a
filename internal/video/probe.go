// Package video adapts container files into decoded luminance frame streams
// using the ffmpeg tool family as the decoder.
package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Sentinel errors for source handling.
var (
	// ErrSourceUnreadable means the container could not be opened or probed.
	ErrSourceUnreadable = errors.New("video: source unreadable")

	// ErrSourceTruncated means the frame stream ended mid-frame. Callers
	// accept the frames decoded so far.
	ErrSourceTruncated = errors.New("video: source truncated")
)

// maxSaneDuration is the duration beyond which container metadata is
// considered broken and worth a remux attempt.
const maxSaneDuration = 3 * 60 * 60.0

// Metadata describes the probed video stream.
type Metadata struct {
	FPS      float64
	Duration float64
	NFrames  int64
	Width    int
	Height   int
}

type probeOutput struct {
	Streams []struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NBFrames   string `json:"nb_frames"`
		Duration   string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe reads stream metadata with ffprobe.
func Probe(ctx context.Context, path string) (Metadata, error) {
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return Metadata{}, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobe,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,nb_frames,duration",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: probe %s: %v", ErrSourceUnreadable, path, err)
	}

	var probed probeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return Metadata{}, fmt.Errorf("%w: parse probe of %s: %v", ErrSourceUnreadable, path, err)
	}
	if len(probed.Streams) == 0 {
		return Metadata{}, fmt.Errorf("%w: no video stream in %s", ErrSourceUnreadable, path)
	}

	s := probed.Streams[0]
	fps, err := parseRate(s.RFrameRate)
	if err != nil || fps <= 0 {
		return Metadata{}, fmt.Errorf("%w: frame rate %q of %s", ErrSourceUnreadable, s.RFrameRate, path)
	}

	meta := Metadata{FPS: fps, Width: s.Width, Height: s.Height}
	if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
		meta.Duration = d
	} else if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
		meta.Duration = d
	}
	if n, err := strconv.ParseInt(s.NBFrames, 10, 64); err == nil {
		meta.NFrames = n
	} else if meta.Duration > 0 {
		meta.NFrames = int64(meta.Duration * fps)
	}
	return meta, nil
}

// ProbeWithRepair probes path and, when the reported duration is missing or
// implausibly long and repair is enabled, remuxes the container once and
// probes again with repair disabled.
func ProbeWithRepair(ctx context.Context, path string, repair bool) (Metadata, error) {
	meta, err := Probe(ctx, path)
	if err != nil {
		return Metadata{}, err
	}
	if repair && (meta.Duration <= 0 || meta.Duration > maxSaneDuration) {
		if err := Remux(ctx, path); err != nil {
			return Metadata{}, err
		}
		return ProbeWithRepair(ctx, path, false)
	}
	return meta, nil
}

// parseRate parses an ffprobe rational like "30000/1001" or a plain number.
func parseRate(rate string) (float64, error) {
	if num, den, ok := strings.Cut(rate, "/"); ok {
		n, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return 0, err
		}
		d, err := strconv.ParseFloat(den, 64)
		if err != nil {
			return 0, err
		}
		if d == 0 {
			return 0, fmt.Errorf("zero denominator in rate %q", rate)
		}
		return n / d, nil
	}
	return strconv.ParseFloat(rate, 64)
}
