package video

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// FrameReader yields 8-bit luminance planes decoded by an ffmpeg child
// process, one Width×Height byte slice per frame.
type FrameReader struct {
	cmd    *exec.Cmd
	stream io.ReadCloser
	buf    []byte
}

// OpenFrames starts the decoder for path. The returned reader must be
// closed; cancelling ctx kills the decoder.
func OpenFrames(ctx context.Context, path string, meta Metadata) (*FrameReader, error) {
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, fmt.Errorf("%w: no frame geometry for %s", ErrSourceUnreadable, path)
	}

	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffmpeg,
		"-v", "error",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "gray",
		"-",
	)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder pipe for %s: %w", path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: start decoder for %s: %v", ErrSourceUnreadable, path, err)
	}

	return &FrameReader{
		cmd:    cmd,
		stream: stdout,
		buf:    make([]byte, meta.Width*meta.Height),
	}, nil
}

// Next returns the next luminance plane. The slice is reused between calls.
// It returns io.EOF at the end of the stream and ErrSourceTruncated when the
// stream ends mid-frame.
func (r *FrameReader) Next() ([]byte, error) {
	n, err := io.ReadFull(r.stream, r.buf)
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSourceTruncated, n)
	case err != nil:
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return r.buf, nil
}

// Close tears down the decoder process.
func (r *FrameReader) Close() error {
	r.stream.Close()
	if r.cmd.Process != nil {
		r.cmd.Process.Kill()
	}
	// Wait reaps the child; the error is uninteresting after a kill.
	r.cmd.Wait()
	return nil
}

// newFrameReaderFromStream builds a reader over an in-memory stream. Tests
// use it to exercise framing without a decoder process.
func newFrameReaderFromStream(stream io.ReadCloser, frameSize int) *FrameReader {
	return &FrameReader{
		cmd:    &exec.Cmd{},
		stream: stream,
		buf:    make([]byte, frameSize),
	}
}
